package theme

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"
	"testing/fstest"

	"riskplane/model"
)

func newTestTokenRegistry() (*TokenRegistry, *PageSink, *Bus) {
	sink := NewPageSink()
	bus := NewBus()
	loader := NewLoader(FSFetcher{FS: fstest.MapFS{}}, sink)
	return NewTokenRegistry(loader, sink, bus, DefaultTokenTables()), sink, bus
}

func TestTokenActivateUnknownTheme(t *testing.T) {
	reg, _, _ := newTestTokenRegistry()
	err := reg.Activate(context.Background(), "missing")
	if !errors.Is(err, ErrThemeNotRegistered) {
		t.Fatalf("err = %v, want ErrThemeNotRegistered", err)
	}
}

func TestTokenDanglingReferenceIsFatal(t *testing.T) {
	reg, sink, _ := newTestTokenRegistry()
	if err := reg.Register(model.ThemeConfig{ID: "bad", ColorScheme: "doesnotexist"}); err != nil {
		t.Fatal(err)
	}

	err := reg.Activate(context.Background(), "bad")
	if !errors.Is(err, ErrDanglingToken) {
		t.Fatalf("err = %v, want ErrDanglingToken", err)
	}
	if sink.GeneratedCSS() != "" {
		t.Fatal("sink was mutated despite a dangling token reference")
	}
}

func TestTokenActivateGeneratesCSSAndHints(t *testing.T) {
	reg, sink, bus := newTestTokenRegistry()

	events := 0
	bus.Subscribe(func(ev Event) {
		if ev.Kind == EventThemeChanged {
			events++
		}
	})

	if err := reg.Register(model.ThemeConfig{
		ID:          "dense-dark",
		Layout:      "two-column",
		ColorScheme: "dark",
		Density:     "compact",
		Components:  "minimal",
		Sections:    []string{"header", "content", "sidebar"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Activate(context.Background(), "dense-dark"); err != nil {
		t.Fatal(err)
	}

	css := sink.GeneratedCSS()
	for _, want := range []string{
		"--theme-color-background: #111827;",
		"--theme-spacing: 0.5rem;",
		"grid-template-columns: 2fr 1fr;",
		`"content sidebar"`,
	} {
		if !strings.Contains(css, want) {
			t.Errorf("token CSS missing %q", want)
		}
	}

	snap := sink.Snapshot()
	if snap.LayoutClass != "layout-two-column" {
		t.Errorf("layout class = %q", snap.LayoutClass)
	}
	if snap.Hints.MaxTableRows != 5 || snap.Hints.ShowCharts || snap.Hints.ShowDetails {
		t.Errorf("hints = %+v, want minimal component token", snap.Hints)
	}
	if events != 1 {
		t.Errorf("themeChanged events = %d, want 1", events)
	}

	// Sections named by the theme but absent from the page get placeholders.
	foundSidebar := false
	for _, sec := range snap.Sections {
		if sec.Name == "sidebar" {
			foundSidebar = true
			if !sec.Visible {
				t.Error("sidebar section created but not visible")
			}
		}
	}
	if !foundSidebar {
		t.Error("sidebar placeholder section was not created")
	}
}

func TestTokenActivateLogsDegradedLoad(t *testing.T) {
	reg, sink, _ := newTestTokenRegistry()
	reg.Register(model.ThemeConfig{
		ID:       "styled",
		CSSFiles: []string{"themes/does-not-exist.css"},
	})

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	if err := reg.Activate(context.Background(), "styled"); err != nil {
		t.Fatalf("degraded load must not fail activation: %v", err)
	}
	if !strings.Contains(buf.String(), "continuing degraded") {
		t.Fatalf("no degraded-load log, got:\n%s", buf.String())
	}
	if sink.GeneratedCSS() == "" {
		t.Fatal("generated CSS missing after degraded activation")
	}
}

func TestTokenUnlimitedRows(t *testing.T) {
	reg, sink, _ := newTestTokenRegistry()
	reg.Register(model.ThemeConfig{ID: "full", Components: "full"})
	if err := reg.Activate(context.Background(), "full"); err != nil {
		t.Fatal(err)
	}
	if got := sink.Snapshot().Hints.MaxTableRows; got != -1 {
		t.Fatalf("MaxTableRows = %d, want -1 sentinel for unlimited", got)
	}
}

func TestTokenResolveDoesNotTouchSink(t *testing.T) {
	reg, sink, _ := newTestTokenRegistry()
	reg.Register(model.ThemeConfig{ID: "plain"})

	resolved, err := reg.Resolve("plain")
	if err != nil {
		t.Fatal(err)
	}
	if resolved.CSS == "" {
		t.Fatal("resolved CSS is empty")
	}
	if sink.GeneratedCSS() != "" {
		t.Fatal("Resolve mutated the sink")
	}
}
