package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"riskplane/model"
)

const (
	installedFile = "installed_themes.json"
	selectedFile  = "selected_theme"
)

// Store provides durable storage for the installed theme set, the selected
// theme id and the rendered report archive.
type Store struct {
	baseDir string
	mu      sync.Mutex
}

// New creates a Store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// EnsureDirs creates the directory structure the store writes into.
func (s *Store) EnsureDirs() error {
	return os.MkdirAll(filepath.Join(s.baseDir, "reports"), 0o755)
}

// InstalledThemes returns the persisted installed set. A missing file is an
// empty set, not an error.
func (s *Store) InstalledThemes() ([]model.InstalledTheme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readInstalled()
}

func (s *Store) readInstalled() ([]model.InstalledTheme, error) {
	f, err := os.Open(filepath.Join(s.baseDir, installedFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var themes []model.InstalledTheme
	if err := json.NewDecoder(f).Decode(&themes); err != nil {
		return nil, fmt.Errorf("decode installed themes: %w", err)
	}
	return themes, nil
}

// IsInstalled reports membership of id in the persisted installed set.
func (s *Store) IsInstalled(id string) bool {
	themes, err := s.InstalledThemes()
	if err != nil {
		return false
	}
	for _, t := range themes {
		if t.ID == id {
			return true
		}
	}
	return false
}

// AddInstalled appends rec to the installed set, replacing any existing
// record with the same id.
func (s *Store) AddInstalled(rec model.InstalledTheme) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	themes, err := s.readInstalled()
	if err != nil {
		return err
	}
	out := themes[:0]
	for _, t := range themes {
		if t.ID != rec.ID {
			out = append(out, t)
		}
	}
	out = append(out, rec)
	return s.writeInstalled(out)
}

// RemoveInstalled deletes id from the installed set, reporting whether a
// record was removed.
func (s *Store) RemoveInstalled(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	themes, err := s.readInstalled()
	if err != nil {
		return false, err
	}
	out := themes[:0]
	found := false
	for _, t := range themes {
		if t.ID == id {
			found = true
			continue
		}
		out = append(out, t)
	}
	if !found {
		return false, nil
	}
	return true, s.writeInstalled(out)
}

func (s *Store) writeInstalled(themes []model.InstalledTheme) error {
	if themes == nil {
		themes = []model.InstalledTheme{}
	}
	path := filepath.Join(s.baseDir, installedFile)
	return atomicWriteJSON(path, themes)
}

// SelectedTheme returns the persisted current theme id, or "" when none was
// ever selected.
func (s *Store) SelectedTheme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(filepath.Join(s.baseDir, selectedFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// SetSelectedTheme persists id as the current theme choice.
func (s *Store) SetSelectedTheme(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return atomicWrite(filepath.Join(s.baseDir, selectedFile), []byte(id+"\n"))
}

// ReportMeta describes one archived rendered report.
type ReportMeta struct {
	Path      string    `json:"path"`
	ToolName  string    `json:"tool_name"`
	Timestamp time.Time `json:"timestamp"`
}

// SaveReport archives rendered HTML under a dated path and returns its
// location.
func (s *Store) SaveReport(toolName, html string) (ReportMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	dir := filepath.Join(
		s.baseDir,
		"reports",
		fmt.Sprintf("%04d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()),
	)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ReportMeta{}, err
	}

	filename := fmt.Sprintf("%s-%s.html", slugify(toolName), now.Format("2006-01-02T15-04-05Z"))
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return ReportMeta{}, err
	}
	return ReportMeta{Path: path, ToolName: toolName, Timestamp: now}, nil
}

// ListReports returns the archived reports within [from, to], oldest first.
func (s *Store) ListReports(from, to time.Time) ([]ReportMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := filepath.Join(s.baseDir, "reports")
	var out []ReportMeta

	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".html" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		t := info.ModTime().UTC()
		if t.Before(from.UTC()) || t.After(to.UTC()) {
			return nil
		}
		out = append(out, ReportMeta{Path: path, ToolName: nameFromFile(d.Name()), Timestamp: t})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func slugify(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "report"
	}
	return b.String()
}

func nameFromFile(filename string) string {
	base := strings.TrimSuffix(filename, ".html")
	if i := strings.LastIndex(base, "-20"); i > 0 {
		base = base[:i]
	}
	return base
}

func atomicWriteJSON(path string, v any) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
