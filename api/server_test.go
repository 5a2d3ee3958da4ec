package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/websocket"

	"riskplane/marketplace"
	"riskplane/model"
	"riskplane/render"
	"riskplane/scheduler"
	"riskplane/storage"
	"riskplane/theme"
)

func themeFS() fstest.MapFS {
	return fstest.MapFS{
		"themes/base.css":                     {Data: []byte("body{margin:0}")},
		"themes/layouts/theme-minimalist.css": {Data: []byte(".layout{}")},
		"themes/schemes/theme-minimalist.css": {Data: []byte(".scheme{}")},
		"themes/theme-minimalist.css":         {Data: []byte(".minimalist{letter-spacing:1px}")},
	}
}

type harness struct {
	srv *httptest.Server
	bus *theme.Bus
}

func newTestServer(t *testing.T) *harness {
	t.Helper()

	store := storage.New(t.TempDir())
	if err := store.EnsureDirs(); err != nil {
		t.Fatal(err)
	}

	sink := theme.NewPageSink()
	bus := theme.NewBus()
	loader := theme.NewLoader(theme.FSFetcher{FS: themeFS()}, sink)
	registry := theme.NewConfigRegistry(loader, sink, bus, "")

	market := marketplace.New(marketplace.BuiltinSource{}, registry, loader, store, bus)
	if _, err := market.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	renderer := render.NewRegistry()
	if err := render.RegisterBuiltins(renderer); err != nil {
		t.Fatal(err)
	}

	sched := scheduler.New(nil, nil, nil)

	mux := http.NewServeMux()
	NewServer(market, renderer, sink, store, sched, bus).Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &harness{srv: srv, bus: bus}
}

func (h *harness) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(h.srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func (h *harness) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(h.srv.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var b strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		b.Write(buf[:n])
		if err != nil {
			return b.String()
		}
	}
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)
	resp := h.get(t, "/api/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody[map[string]string](t, resp)
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}

func TestThemesListingAndFilters(t *testing.T) {
	h := newTestServer(t)

	entries := decodeBody[[]model.CatalogEntry](t, h.get(t, "/api/themes"))
	if len(entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(entries))
	}

	business := decodeBody[[]model.CatalogEntry](t, h.get(t, "/api/themes?category=business"))
	if len(business) != 2 {
		t.Fatalf("business entries = %d, want 2", len(business))
	}

	none := decodeBody[[]model.CatalogEntry](t, h.get(t, "/api/themes?tag=nope"))
	if none == nil || len(none) != 0 {
		t.Fatalf("empty filter must yield [], got %v", none)
	}
}

func TestInstallActivateFlow(t *testing.T) {
	h := newTestServer(t)

	resp := h.post(t, "/api/themes/install", `{"id":"theme-minimalist"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("install status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	installed := decodeBody[[]model.InstalledTheme](t, h.get(t, "/api/themes/installed"))
	if len(installed) != 1 || installed[0].ID != "theme-minimalist" {
		t.Fatalf("installed = %+v", installed)
	}

	resp = h.post(t, "/api/themes/activate", `{"id":"theme-minimalist"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activate status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	css := readBody(t, h.get(t, "/api/theme.css"))
	if !strings.Contains(css, "letter-spacing:1px") {
		t.Fatalf("theme.css missing loaded stylesheet content:\n%s", css)
	}

	snap := decodeBody[theme.Snapshot](t, h.get(t, "/api/page"))
	if snap.ThemeClass != "theme-theme-minimalist" {
		t.Fatalf("theme class = %q", snap.ThemeClass)
	}
}

func TestInstallPremiumWithoutConfirmation(t *testing.T) {
	h := newTestServer(t)

	resp := h.post(t, "/api/themes/install", `{"id":"theme-corporate"}`)
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", resp.StatusCode)
	}
	body := decodeBody[map[string]any](t, resp)
	if body["purchase_required"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestInstallUnknownThemeNotFound(t *testing.T) {
	h := newTestServer(t)
	resp := h.post(t, "/api/themes/install", `{"id":"theme-ghost"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestActivateNotInstalledConflicts(t *testing.T) {
	h := newTestServer(t)
	resp := h.post(t, "/api/themes/activate", `{"id":"theme-darkmode"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestInstallRequiresPost(t *testing.T) {
	h := newTestServer(t)
	resp := h.get(t, "/api/themes/install")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

func TestRenderDefaultsToStandardTemplate(t *testing.T) {
	h := newTestServer(t)

	resp := h.post(t, "/api/render", `{"data":{}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	html := readBody(t, resp)
	if !strings.Contains(html, "Unnamed Tool") || !strings.Contains(html, "MEDIUM") {
		t.Fatalf("fallback render missing defaults:\n%s", html)
	}
}

func TestRenderMalformedBodyGetsBoundary(t *testing.T) {
	h := newTestServer(t)

	resp := h.post(t, "/api/render", `{broken`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	html := readBody(t, resp)
	if !strings.Contains(html, `data-boundary="data-validation"`) {
		t.Fatalf("malformed body did not yield a validation boundary:\n%s", html)
	}
}

func TestExportReportArchives(t *testing.T) {
	h := newTestServer(t)

	resp := h.post(t, "/api/reports/export", `{"template":"standard","data":{"ToolName":"Code Helper","Vendor":"Acme","RiskLevel":"LOW","TotalScore":12}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Fatalf("content disposition = %q", cd)
	}
	if resp.Header.Get("X-Report-Path") == "" {
		t.Fatal("no archive path header")
	}
	resp.Body.Close()

	reports := decodeBody[[]storage.ReportMeta](t, h.get(t, "/api/reports"))
	if len(reports) != 1 {
		t.Fatalf("archived reports = %d, want 1", len(reports))
	}
}

func TestScheduleCRUD(t *testing.T) {
	h := newTestServer(t)

	created := decodeBody[model.Schedule](t, h.post(t, "/api/schedules", `{"name":"hourly","enabled":true,"type":"interval","every":"1h"}`))
	if created.ID == "" {
		t.Fatal("created schedule has no id")
	}

	list := decodeBody[[]model.Schedule](t, h.get(t, "/api/schedules"))
	if len(list) != 1 {
		t.Fatalf("schedules = %d, want 1", len(list))
	}

	req, _ := http.NewRequest(http.MethodPut, h.srv.URL+"/api/schedules/"+created.ID, strings.NewReader(`{"name":"daily","enabled":true,"type":"daily","time_of_day":"09:00"}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	updated := decodeBody[model.Schedule](t, resp)
	if updated.Type != model.ScheduleDaily || updated.ID != created.ID {
		t.Fatalf("updated = %+v", updated)
	}

	req, _ = http.NewRequest(http.MethodDelete, h.srv.URL+"/api/schedules/"+created.ID, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	list = decodeBody[[]model.Schedule](t, h.get(t, "/api/schedules"))
	if len(list) != 0 {
		t.Fatalf("schedules after delete = %d, want 0", len(list))
	}
}

func TestEventsStreamOverWebSocket(t *testing.T) {
	h := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	h.bus.Publish(theme.Event{Kind: theme.EventThemeChanged, ThemeID: "theme-minimalist"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev theme.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Kind != theme.EventThemeChanged || ev.ThemeID != "theme-minimalist" {
		t.Fatalf("event = %+v", ev)
	}
}
