// Package marketplace manages the installable theme catalog: install and
// activation lifecycle, durable install state, and activation notification.
// It depends only on the theme.Registry interface; the concrete strategy is
// chosen by whoever constructs it.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"riskplane/model"
	"riskplane/storage"
	"riskplane/theme"
)

var (
	// ErrNotInCatalog is returned for ids the catalog does not list.
	ErrNotInCatalog = errors.New("theme not in catalog")

	// ErrNotInstalled is returned when activating or uninstalling a theme
	// that was never installed.
	ErrNotInstalled = errors.New("theme not installed")

	// ErrPurchaseRequired is returned when installing a premium theme
	// without purchase confirmation. There is no real payment integration;
	// confirmation is a caller-supplied flag.
	ErrPurchaseRequired = errors.New("purchase confirmation required")
)

// InstallOptions modify Install behavior.
type InstallOptions struct {
	ConfirmPurchase bool
}

// Marketplace routes catalog themes into the active registry and tracks
// install state in the store.
type Marketplace struct {
	source   CatalogSource
	registry theme.Registry
	loader   *theme.Loader
	store    *storage.Store
	bus      *theme.Bus

	mu      sync.Mutex
	catalog []model.CatalogEntry
}

// New creates a marketplace. The catalog starts empty until Refresh runs.
func New(source CatalogSource, registry theme.Registry, loader *theme.Loader, store *storage.Store, bus *theme.Bus) *Marketplace {
	return &Marketplace{
		source:   source,
		registry: registry,
		loader:   loader,
		store:    store,
		bus:      bus,
	}
}

// Refresh fetches the catalog from the source and replaces the cached
// listing.
func (m *Marketplace) Refresh(ctx context.Context) ([]model.CatalogEntry, error) {
	entries, err := m.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}

	m.mu.Lock()
	m.catalog = entries
	m.mu.Unlock()

	m.bus.Publish(theme.Event{Kind: theme.EventCatalogUpdated})
	return m.Catalog(), nil
}

// Catalog returns the cached listing with the installed flag derived from
// the persisted installed set. Entries are sorted free-before-premium,
// then by id.
func (m *Marketplace) Catalog() []model.CatalogEntry {
	m.mu.Lock()
	entries := make([]model.CatalogEntry, len(m.catalog))
	copy(entries, m.catalog)
	m.mu.Unlock()

	for i := range entries {
		entries[i].Installed = m.store.IsInstalled(entries[i].ID)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Premium != entries[j].Premium {
			return !entries[i].Premium
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}

// FilterCatalog returns the catalog entries matching category and/or tag;
// empty filters match everything.
func (m *Marketplace) FilterCatalog(category, tag string) []model.CatalogEntry {
	var out []model.CatalogEntry
	for _, e := range m.Catalog() {
		if category != "" && e.Category != category {
			continue
		}
		if tag != "" && !hasTag(e, tag) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func hasTag(e model.CatalogEntry, tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (m *Marketplace) lookup(id string) (model.CatalogEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.catalog {
		if e.ID == id {
			return e, true
		}
	}
	return model.CatalogEntry{}, false
}

// Install validates and persists the catalog theme id, registering it with
// the active registry. Premium entries require opts.ConfirmPurchase.
// Installing an already-installed theme refreshes its record.
func (m *Marketplace) Install(ctx context.Context, id string, opts InstallOptions) error {
	entry, ok := m.lookup(id)
	if !ok {
		return fmt.Errorf("install %s: %w", id, ErrNotInCatalog)
	}
	if entry.Premium && !opts.ConfirmPurchase {
		return fmt.Errorf("install %s: %w", id, ErrPurchaseRequired)
	}

	cfg := synthesizeConfig(entry)
	if err := validateCandidate(installCandidate{Entry: entry, Config: cfg}); err != nil {
		return fmt.Errorf("install %s: %w", id, err)
	}

	if err := m.registry.Register(cfg); err != nil {
		return fmt.Errorf("install %s: %w", id, err)
	}

	rec := model.InstalledTheme{
		ID:          entry.ID,
		Name:        entry.Name,
		Description: entry.Description,
		Version:     entry.Version,
		Author:      entry.Author,
		CSSFiles:    cfg.CSSFiles,
		InstalledAt: time.Now().UTC(),
	}
	if err := m.store.AddInstalled(rec); err != nil {
		return fmt.Errorf("install %s: persist: %w", id, err)
	}

	log.Printf("[marketplace] installed %s (%s)", entry.ID, entry.Version)
	m.bus.Publish(theme.Event{Kind: theme.EventThemeInstalled, ThemeID: entry.ID})
	return nil
}

// synthesizeConfig builds the installable config from a catalog entry. The
// stylesheet list follows the loader's conventions, so component-structured
// themes get their four-file set and everything else gets
// base/layout/colors/main.
func synthesizeConfig(entry model.CatalogEntry) model.ThemeConfig {
	return model.ThemeConfig{
		ID:       entry.ID,
		Name:     entry.Name,
		CSSFiles: theme.ResolveStylesheets(entry.ID),
	}
}

// RestoreInstalled re-registers every persisted installed record into the
// registry, reconstructing each config from its stored stylesheet list. Run
// at startup: without it a restart leaves IsInstalled true for themes the
// fresh registry has never seen, so activation would quietly fall back.
// Individual failures are logged and skipped.
func (m *Marketplace) RestoreInstalled() (int, error) {
	recs, err := m.store.InstalledThemes()
	if err != nil {
		return 0, fmt.Errorf("restore installed themes: %w", err)
	}

	n := 0
	for _, rec := range recs {
		cfg := model.ThemeConfig{
			ID:       rec.ID,
			Name:     rec.Name,
			CSSFiles: rec.CSSFiles,
		}
		if err := m.registry.Register(cfg); err != nil {
			log.Printf("[marketplace] restore %s: %v", rec.ID, err)
			continue
		}
		n++
	}
	return n, nil
}

// IsInstalled reports membership in the persisted installed set.
func (m *Marketplace) IsInstalled(id string) bool {
	return m.store.IsInstalled(id)
}

// Installed returns the persisted installed records.
func (m *Marketplace) Installed() ([]model.InstalledTheme, error) {
	return m.store.InstalledThemes()
}

// Activate loads the installed theme's stylesheets, activates it in the
// registry and persists the selection. Stylesheet loading strictly precedes
// registry activation so generated classes never point at missing styles.
func (m *Marketplace) Activate(ctx context.Context, id string) error {
	if !m.store.IsInstalled(id) {
		return fmt.Errorf("activate %s: %w", id, ErrNotInstalled)
	}

	if !m.loader.LoadTheme(ctx, id) {
		log.Printf("[marketplace] activate %s: degraded stylesheet load", id)
	}
	if err := m.registry.Activate(ctx, id); err != nil {
		return fmt.Errorf("activate %s: %w", id, err)
	}
	if err := m.store.SetSelectedTheme(id); err != nil {
		log.Printf("[marketplace] persist selected theme: %v", err)
	}
	return nil
}

// Uninstall removes the persisted record and the registry entry. The
// theme's stylesheets are disabled, not removed, so reinstalling is cheap.
func (m *Marketplace) Uninstall(id string) error {
	removed, err := m.store.RemoveInstalled(id)
	if err != nil {
		return fmt.Errorf("uninstall %s: %w", id, err)
	}
	if !removed {
		return fmt.Errorf("uninstall %s: %w", id, ErrNotInstalled)
	}

	m.registry.Remove(id)
	m.loader.UnloadTheme(id)
	m.bus.Publish(theme.Event{Kind: theme.EventThemeUninstalled, ThemeID: id})
	return nil
}
