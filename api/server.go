package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"riskplane/marketplace"
	"riskplane/model"
	"riskplane/render"
	"riskplane/scheduler"
	"riskplane/storage"
	"riskplane/theme"
)

// Server exposes the theme, template and marketplace subsystems over HTTP
// and bridges the event bus onto WebSocket listeners.
type Server struct {
	market    *marketplace.Marketplace
	renderer  *render.Registry
	sink      *theme.PageSink
	store     *storage.Store
	sched     *scheduler.Scheduler
	wsManager *WSConnectionManager
	upgrader  websocket.Upgrader
}

// NewServer wires the server and subscribes the WebSocket fan-out to bus.
func NewServer(market *marketplace.Marketplace, renderer *render.Registry, sink *theme.PageSink, store *storage.Store, sched *scheduler.Scheduler, bus *theme.Bus) *Server {
	s := &Server{
		market:    market,
		renderer:  renderer,
		sink:      sink,
		store:     store,
		sched:     sched,
		wsManager: NewWSConnectionManager(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	bus.Subscribe(s.wsManager.BroadcastEvent)
	return s
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/themes", s.handleThemes)
	mux.HandleFunc("/api/themes/installed", s.handleInstalled)
	mux.HandleFunc("/api/themes/install", s.handleInstall)
	mux.HandleFunc("/api/themes/activate", s.handleActivate)
	mux.HandleFunc("/api/themes/uninstall", s.handleUninstall)
	mux.HandleFunc("/api/theme.css", s.handleThemeCSS)
	mux.HandleFunc("/api/page", s.handlePage)
	mux.HandleFunc("/api/templates", s.handleTemplates)
	mux.HandleFunc("/api/render", s.handleRender)
	mux.HandleFunc("/api/reports", s.handleReports)
	mux.HandleFunc("/api/reports/export", s.handleExportReport)
	mux.HandleFunc("/api/schedules", s.handleSchedules)
	mux.HandleFunc("/api/schedules/", s.handleScheduleByID)
	mux.HandleFunc("/api/events", s.handleEvents)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---------- themes / marketplace ----------

func (s *Server) handleThemes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := q.Get("category")
	tag := q.Get("tag")

	var entries []model.CatalogEntry
	if category == "" && tag == "" {
		entries = s.market.Catalog()
	} else {
		entries = s.market.FilterCatalog(category, tag)
	}
	if entries == nil {
		entries = []model.CatalogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleInstalled(w http.ResponseWriter, r *http.Request) {
	themes, err := s.market.Installed()
	if err != nil {
		http.Error(w, "failed to load installed themes", http.StatusInternalServerError)
		return
	}
	if themes == nil {
		themes = []model.InstalledTheme{}
	}
	writeJSON(w, http.StatusOK, themes)
}

type themeRequest struct {
	ID              string `json:"id"`
	ConfirmPurchase bool   `json:"confirm_purchase,omitempty"`
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeThemeRequest(w, r)
	if !ok {
		return
	}

	err := s.market.Install(r.Context(), req.ID, marketplace.InstallOptions{ConfirmPurchase: req.ConfirmPurchase})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"id": req.ID, "installed": true})
	case errors.Is(err, marketplace.ErrNotInCatalog):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, marketplace.ErrPurchaseRequired):
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"id":                req.ID,
			"purchase_required": true,
			"message":           "confirm the purchase to install this premium theme",
		})
	default:
		log.Printf("[api] install %s: %v", req.ID, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeThemeRequest(w, r)
	if !ok {
		return
	}

	err := s.market.Activate(r.Context(), req.ID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"id": req.ID, "active": true})
	case errors.Is(err, marketplace.ErrNotInstalled):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, theme.ErrDanglingToken):
		log.Printf("[api] activate %s: %v", req.ID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func (s *Server) handleUninstall(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeThemeRequest(w, r)
	if !ok {
		return
	}

	err := s.market.Uninstall(req.ID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, marketplace.ErrNotInstalled):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func decodeThemeRequest(w http.ResponseWriter, r *http.Request) (themeRequest, bool) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return themeRequest{}, false
	}
	var req themeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		http.Error(w, "invalid json: id required", http.StatusBadRequest)
		return themeRequest{}, false
	}
	return req, true
}

// ---------- page state ----------

func (s *Server) handleThemeCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(s.sink.CSS()))
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sink.Snapshot())
}

// ---------- templates / rendering ----------

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.renderer.Names())
}

type renderRequest struct {
	Template string         `json:"template"`
	Data     map[string]any `json:"data"`
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRenderRequest(w, r)
	if !ok {
		return
	}

	html := s.renderer.Render(req.Template, req.Data)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

func (s *Server) decodeRenderRequest(w http.ResponseWriter, r *http.Request) (renderRequest, bool) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return renderRequest{}, false
	}
	var req renderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Malformed payloads still get an inline boundary, not a blank
		// error page.
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(render.Boundary(render.BoundaryDataValidation, "", fmt.Sprintf("invalid request body: %v", err))))
		return renderRequest{}, false
	}
	if req.Template == "" {
		req.Template = "standard"
	}
	return req, true
}

// ---------- report archive ----------

func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRenderRequest(w, r)
	if !ok {
		return
	}

	html := s.renderer.Render(req.Template, req.Data)

	toolName, _ := req.Data["ToolName"].(string)
	if toolName == "" {
		toolName = "report"
	}
	meta, err := s.store.SaveReport(toolName, html)
	if err != nil {
		log.Printf("[api] archive report: %v", err)
		http.Error(w, "failed to archive report", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("%s-%s.html", strings.ReplaceAll(strings.ToLower(toolName), " ", "-"), time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("X-Report-Path", meta.Path)
	_, _ = w.Write([]byte(html))
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid from", http.StatusBadRequest)
			return
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid to", http.StatusBadRequest)
			return
		}
		to = t
	}

	reports, err := s.store.ListReports(from, to)
	if err != nil {
		http.Error(w, "failed to load reports", http.StatusInternalServerError)
		return
	}
	if reports == nil {
		reports = []storage.ReportMeta{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// ---------- schedules ----------

func (s *Server) handleSchedules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.sched.Schedules())

	case http.MethodPost:
		var sc model.Schedule
		if err := json.NewDecoder(r.Body).Decode(&sc); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if sc.Type == "" {
			sc.Type = model.ScheduleInterval
		}
		sc.ID = generateID()
		if sc.Name == "" {
			sc.Name = sc.ID
		}

		cur := append(s.sched.Schedules(), sc)
		s.sched.SetSchedules(cur)
		writeJSON(w, http.StatusCreated, sc)

	default:
		w.Header().Set("Allow", http.MethodGet+", "+http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleScheduleByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/schedules/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	cur := s.sched.Schedules()

	switch r.Method {
	case http.MethodGet:
		for _, sc := range cur {
			if sc.ID == id {
				writeJSON(w, http.StatusOK, sc)
				return
			}
		}
		http.NotFound(w, r)

	case http.MethodPut:
		var upd model.Schedule
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		upd.ID = id

		found := false
		for i := range cur {
			if cur[i].ID == id {
				cur[i] = upd
				found = true
				break
			}
		}
		if !found {
			http.NotFound(w, r)
			return
		}
		s.sched.SetSchedules(cur)
		writeJSON(w, http.StatusOK, upd)

	case http.MethodDelete:
		out := cur[:0]
		found := false
		for _, sc := range cur {
			if sc.ID == id {
				found = true
				continue
			}
			out = append(out, sc)
		}
		if !found {
			http.NotFound(w, r)
			return
		}
		s.sched.SetSchedules(out)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", http.MethodGet+", "+http.MethodPut+", "+http.MethodDelete)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ---------- events ----------

// handleEvents upgrades to WebSocket and streams bus events until the
// client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[api] websocket upgrade: %v", err)
		return
	}
	s.wsManager.Add(conn)

	go func() {
		defer func() {
			s.wsManager.Remove(conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON error: %v", err)
	}
}

func generateID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
