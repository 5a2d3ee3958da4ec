package marketplace

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"riskplane/model"
	"riskplane/storage"
	"riskplane/theme"
)

func catalogFS() fstest.MapFS {
	return fstest.MapFS{
		"themes/base.css":                       {Data: []byte("body{}")},
		"themes/layouts/theme-minimalist.css":   {Data: []byte(".layout{}")},
		"themes/schemes/theme-minimalist.css":   {Data: []byte(".scheme{}")},
		"themes/theme-minimalist.css":           {Data: []byte(".main{}")},
		"themes/layouts/theme-darkmode.css":     {Data: []byte(".layout{}")},
		"themes/schemes/theme-darkmode.css":     {Data: []byte(".scheme{}")},
		"themes/theme-darkmode.css":             {Data: []byte(".main{}")},
		"themes/theme-corporate/variables.css":  {Data: []byte(":root{}")},
		"themes/theme-corporate/layout.css":     {Data: []byte(".layout{}")},
		"themes/theme-corporate/typography.css": {Data: []byte("body{}")},
		"themes/theme-corporate/components.css": {Data: []byte(".badge{}")},
	}
}

func newTestMarketplace(t *testing.T) (*Marketplace, *storage.Store, *theme.Bus) {
	t.Helper()

	store := storage.New(t.TempDir())
	if err := store.EnsureDirs(); err != nil {
		t.Fatal(err)
	}

	sink := theme.NewPageSink()
	bus := theme.NewBus()
	loader := theme.NewLoader(theme.FSFetcher{FS: catalogFS()}, sink)
	registry := theme.NewConfigRegistry(loader, sink, bus, "")

	m := New(BuiltinSource{}, registry, loader, store, bus)
	if _, err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return m, store, bus
}

func TestInstallActivateRoundTrip(t *testing.T) {
	m, store, bus := newTestMarketplace(t)
	ctx := context.Background()

	var changed []theme.Event
	bus.Subscribe(func(ev theme.Event) {
		if ev.Kind == theme.EventThemeChanged {
			changed = append(changed, ev)
		}
	})

	if err := m.Install(ctx, "theme-minimalist", InstallOptions{}); err != nil {
		t.Fatalf("install: %v", err)
	}
	if !m.IsInstalled("theme-minimalist") {
		t.Fatal("not reported installed after install")
	}

	recs, err := store.InstalledThemes()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].ID != "theme-minimalist" {
		t.Fatalf("persisted records = %+v", recs)
	}
	if len(recs[0].CSSFiles) != 4 {
		t.Fatalf("persisted css files = %v, want the full 4-file set", recs[0].CSSFiles)
	}
	if recs[0].InstalledAt.IsZero() {
		t.Error("installed record carries no timestamp")
	}

	if err := m.Activate(ctx, "theme-minimalist"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if len(changed) != 1 {
		t.Fatalf("themeChanged events = %d, want exactly 1", len(changed))
	}
	if changed[0].ThemeID != "theme-minimalist" {
		t.Fatalf("event theme id = %q", changed[0].ThemeID)
	}
	if got := store.SelectedTheme(); got != "theme-minimalist" {
		t.Fatalf("selected theme = %q", got)
	}
}

func TestInstallUnknownTheme(t *testing.T) {
	m, _, _ := newTestMarketplace(t)
	err := m.Install(context.Background(), "theme-ghost", InstallOptions{})
	if !errors.Is(err, ErrNotInCatalog) {
		t.Fatalf("err = %v, want ErrNotInCatalog", err)
	}
}

func TestPremiumRequiresConfirmation(t *testing.T) {
	m, _, _ := newTestMarketplace(t)
	ctx := context.Background()

	err := m.Install(ctx, "theme-corporate", InstallOptions{})
	if !errors.Is(err, ErrPurchaseRequired) {
		t.Fatalf("err = %v, want ErrPurchaseRequired", err)
	}
	if m.IsInstalled("theme-corporate") {
		t.Fatal("declined purchase still installed the theme")
	}

	if err := m.Install(ctx, "theme-corporate", InstallOptions{ConfirmPurchase: true}); err != nil {
		t.Fatalf("confirmed install: %v", err)
	}
	if !m.IsInstalled("theme-corporate") {
		t.Fatal("confirmed purchase did not install the theme")
	}
}

func TestActivateNotInstalled(t *testing.T) {
	m, _, _ := newTestMarketplace(t)
	err := m.Activate(context.Background(), "theme-darkmode")
	if !errors.Is(err, ErrNotInstalled) {
		t.Fatalf("err = %v, want ErrNotInstalled", err)
	}
}

func TestUninstall(t *testing.T) {
	m, _, bus := newTestMarketplace(t)
	ctx := context.Background()

	uninstalls := 0
	bus.Subscribe(func(ev theme.Event) {
		if ev.Kind == theme.EventThemeUninstalled {
			uninstalls++
		}
	})

	if err := m.Install(ctx, "theme-minimalist", InstallOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := m.Uninstall("theme-minimalist"); err != nil {
		t.Fatalf("uninstall: %v", err)
	}
	if m.IsInstalled("theme-minimalist") {
		t.Fatal("still installed after uninstall")
	}
	if uninstalls != 1 {
		t.Fatalf("uninstall events = %d, want 1", uninstalls)
	}

	err := m.Uninstall("theme-minimalist")
	if !errors.Is(err, ErrNotInstalled) {
		t.Fatalf("second uninstall err = %v, want ErrNotInstalled", err)
	}
}

func TestRestoreInstalledAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	newSession := func() (*Marketplace, theme.Registry) {
		store := storage.New(dir)
		if err := store.EnsureDirs(); err != nil {
			t.Fatal(err)
		}
		sink := theme.NewPageSink()
		bus := theme.NewBus()
		loader := theme.NewLoader(theme.FSFetcher{FS: catalogFS()}, sink)
		registry := theme.NewConfigRegistry(loader, sink, bus, "theme-base")
		registry.Register(model.ThemeConfig{ID: "theme-base"})

		m := New(BuiltinSource{}, registry, loader, store, bus)
		if _, err := m.Refresh(ctx); err != nil {
			t.Fatal(err)
		}
		return m, registry
	}

	m1, _ := newSession()
	if err := m1.Install(ctx, "theme-minimalist", InstallOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := m1.Activate(ctx, "theme-minimalist"); err != nil {
		t.Fatal(err)
	}

	// A fresh process over the same data dir: the persisted install must be
	// usable again, not just reported installed.
	m2, reg2 := newSession()
	restored, err := m2.RestoreInstalled()
	if err != nil {
		t.Fatal(err)
	}
	if restored != 1 {
		t.Fatalf("restored = %d, want 1", restored)
	}

	if !m2.IsInstalled("theme-minimalist") {
		t.Fatal("install state lost across restart")
	}
	if err := m2.Activate(ctx, "theme-minimalist"); err != nil {
		t.Fatalf("activate after restart: %v", err)
	}
	if got := reg2.Current(); got != "theme-minimalist" {
		t.Fatalf("current after restart = %q, want theme-minimalist (not a base-theme fallback)", got)
	}
}

func TestCatalogInstalledFlagAndOrder(t *testing.T) {
	m, _, _ := newTestMarketplace(t)

	if err := m.Install(context.Background(), "theme-minimalist", InstallOptions{}); err != nil {
		t.Fatal(err)
	}

	entries := m.Catalog()
	if len(entries) != 4 {
		t.Fatalf("catalog size = %d, want 4", len(entries))
	}

	// Free entries sort before premium ones, then by id.
	wantOrder := []string{"theme-darkmode", "theme-minimalist", "theme-corporate", "theme-executive"}
	for i, want := range wantOrder {
		if entries[i].ID != want {
			t.Fatalf("entries[%d] = %s, want %s", i, entries[i].ID, want)
		}
	}

	for _, e := range entries {
		wantInstalled := e.ID == "theme-minimalist"
		if e.Installed != wantInstalled {
			t.Errorf("%s installed = %v, want %v", e.ID, e.Installed, wantInstalled)
		}
	}
}

func TestFilterCatalog(t *testing.T) {
	m, _, _ := newTestMarketplace(t)

	if got := m.FilterCatalog("business", ""); len(got) != 2 {
		t.Errorf("business entries = %d, want 2", len(got))
	}
	if got := m.FilterCatalog("", "dark"); len(got) != 1 || got[0].ID != "theme-darkmode" {
		t.Errorf("dark-tagged entries = %+v", got)
	}
	if got := m.FilterCatalog("free", "simple"); len(got) != 1 || got[0].ID != "theme-minimalist" {
		t.Errorf("free+simple entries = %+v", got)
	}
	if got := m.FilterCatalog("", ""); len(got) != 4 {
		t.Errorf("unfiltered entries = %d, want 4", len(got))
	}
}
