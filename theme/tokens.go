package theme

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"riskplane/model"
)

// LayoutToken drives the report grid.
type LayoutToken struct {
	Columns string
	Areas   []string
}

// ColorSchemeToken supplies the semantic color roles.
type ColorSchemeToken struct {
	Primary    string
	Secondary  string
	Background string
	Surface    string
	Text       string
	TextMuted  string
	Accent     string
	Border     string
}

// DensityToken drives spacing and type scale.
type DensityToken struct {
	Spacing    string
	FontSize   string
	LineHeight string
}

// ComponentToken sets the component detail level. MaxRows -1 means
// unlimited.
type ComponentToken struct {
	MaxRows     int
	ShowCharts  bool
	ShowDetails bool
}

// TokenTables are the shared value tables every token theme selects from.
type TokenTables struct {
	Layouts      map[string]LayoutToken
	ColorSchemes map[string]ColorSchemeToken
	Densities    map[string]DensityToken
	Components   map[string]ComponentToken
}

// DefaultTokenTables returns the built-in table set.
func DefaultTokenTables() TokenTables {
	return TokenTables{
		Layouts: map[string]LayoutToken{
			"single": {
				Columns: "1fr",
				Areas:   []string{"header", "content", "footer"},
			},
			"two-column": {
				Columns: "2fr 1fr",
				Areas:   []string{"header header", "content sidebar", "footer footer"},
			},
			"three-column": {
				Columns: "1fr 2fr 1fr",
				Areas:   []string{"header header header", "nav content sidebar", "footer footer footer"},
			},
		},
		ColorSchemes: map[string]ColorSchemeToken{
			"light": {
				Primary: "#1a56db", Secondary: "#374151", Background: "#ffffff",
				Surface: "#f9fafb", Text: "#111827", TextMuted: "#6b7280",
				Accent: "#1a56db", Border: "#e5e7eb",
			},
			"dark": {
				Primary: "#60a5fa", Secondary: "#9ca3af", Background: "#111827",
				Surface: "#1f2937", Text: "#f9fafb", TextMuted: "#9ca3af",
				Accent: "#60a5fa", Border: "#374151",
			},
			"slate": {
				Primary: "#0f766e", Secondary: "#475569", Background: "#f8fafc",
				Surface: "#f1f5f9", Text: "#0f172a", TextMuted: "#64748b",
				Accent: "#0d9488", Border: "#cbd5e1",
			},
		},
		Densities: map[string]DensityToken{
			"compact":  {Spacing: "0.5rem", FontSize: "13px", LineHeight: "1.35"},
			"normal":   {Spacing: "1rem", FontSize: "15px", LineHeight: "1.5"},
			"spacious": {Spacing: "1.75rem", FontSize: "16px", LineHeight: "1.7"},
		},
		Components: map[string]ComponentToken{
			"minimal":  {MaxRows: 5, ShowCharts: false, ShowDetails: false},
			"standard": {MaxRows: 15, ShowCharts: true, ShowDetails: false},
			"full":     {MaxRows: -1, ShowCharts: true, ShowDetails: true},
		},
	}
}

// sectionPlaceholders are the minimal fragments created when a theme names
// a section the page does not have yet.
var sectionPlaceholders = map[string]string{
	"header":  `<header class="report-section report-header"><h1></h1></header>`,
	"content": `<main class="report-section report-content"></main>`,
	"sidebar": `<aside class="report-section report-sidebar"></aside>`,
	"footer":  `<footer class="report-section report-footer"></footer>`,
}

const defaultSectionPlaceholder = `<div class="report-section"></div>`

// TokenRegistry is the scalable strategy: a theme is a selection of keys
// into the shared token tables rather than a full config. A theme name that
// is absent fails with ErrThemeNotRegistered; a registered theme whose
// selection points at a missing table key fails with ErrDanglingToken at
// activation, never silently defaulted.
type TokenRegistry struct {
	loader *Loader
	sink   *PageSink
	bus    *Bus
	tables TokenTables

	mu      sync.Mutex
	themes  map[string]model.ThemeConfig
	current string
}

// NewTokenRegistry returns a token registry over tables.
func NewTokenRegistry(loader *Loader, sink *PageSink, bus *Bus, tables TokenTables) *TokenRegistry {
	return &TokenRegistry{
		loader: loader,
		sink:   sink,
		bus:    bus,
		tables: tables,
		themes: make(map[string]model.ThemeConfig),
	}
}

// Register stores the theme's token selection. Selections are not resolved
// here: a dangling key is a configuration error surfaced by Activate or
// Resolve, where it fails loudly instead of being defaulted away.
func (r *TokenRegistry) Register(cfg model.ThemeConfig) error {
	if cfg.ID == "" {
		return fmt.Errorf("register theme: empty id")
	}
	if cfg.Layout == "" {
		cfg.Layout = "single"
	}
	if cfg.ColorScheme == "" {
		cfg.ColorScheme = "light"
	}
	if cfg.Density == "" {
		cfg.Density = "normal"
	}
	if cfg.Components == "" {
		cfg.Components = "standard"
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.themes[cfg.ID] = cfg
	return nil
}

type resolvedTokens struct {
	cfg    model.ThemeConfig
	layout LayoutToken
	scheme ColorSchemeToken
	dens   DensityToken
	comp   ComponentToken
}

func (r *TokenRegistry) resolve(name string) (resolvedTokens, error) {
	r.mu.Lock()
	cfg, ok := r.themes[name]
	r.mu.Unlock()
	if !ok {
		return resolvedTokens{}, fmt.Errorf("resolve theme %q: %w", name, ErrThemeNotRegistered)
	}

	layout, ok := r.tables.Layouts[cfg.Layout]
	if !ok {
		return resolvedTokens{}, fmt.Errorf("theme %q: layout %q: %w", name, cfg.Layout, ErrDanglingToken)
	}
	scheme, ok := r.tables.ColorSchemes[cfg.ColorScheme]
	if !ok {
		return resolvedTokens{}, fmt.Errorf("theme %q: color scheme %q: %w", name, cfg.ColorScheme, ErrDanglingToken)
	}
	dens, ok := r.tables.Densities[cfg.Density]
	if !ok {
		return resolvedTokens{}, fmt.Errorf("theme %q: density %q: %w", name, cfg.Density, ErrDanglingToken)
	}
	comp, ok := r.tables.Components[cfg.Components]
	if !ok {
		return resolvedTokens{}, fmt.Errorf("theme %q: components %q: %w", name, cfg.Components, ErrDanglingToken)
	}

	return resolvedTokens{cfg: cfg, layout: layout, scheme: scheme, dens: dens, comp: comp}, nil
}

// Activate switches the sink to name. Stylesheet loading completes before
// any CSS generation or sink mutation.
func (r *TokenRegistry) Activate(ctx context.Context, name string) error {
	rt, err := r.resolve(name)
	if err != nil {
		return err
	}

	if len(rt.cfg.CSSFiles) > 0 {
		if !r.loader.LoadFiles(ctx, name, rt.cfg.CSSFiles) {
			log.Printf("[theme] activate %s: some stylesheets failed to load, continuing degraded", name)
		}
	}

	r.sink.SetGeneratedCSS(generateTokenCSS(rt))
	r.sink.SetThemeClass(name)
	r.sink.SetLayoutClass(rt.cfg.Layout)
	if len(rt.cfg.Sections) > 0 {
		r.sink.ShowSections(rt.cfg.Sections, sectionPlaceholder)
	}
	r.sink.SetHints(RenderHints{
		MaxTableRows: rt.comp.MaxRows,
		ShowCharts:   rt.comp.ShowCharts,
		ShowDetails:  rt.comp.ShowDetails,
	})

	r.mu.Lock()
	r.current = name
	cfg := rt.cfg
	r.mu.Unlock()

	r.bus.Publish(Event{Kind: EventThemeChanged, ThemeID: name, Config: &cfg})
	return nil
}

func sectionPlaceholder(name string) string {
	if ph, ok := sectionPlaceholders[name]; ok {
		return ph
	}
	return defaultSectionPlaceholder
}

// Resolve returns the generated CSS for name without sink mutation.
func (r *TokenRegistry) Resolve(name string) (ResolvedCSS, error) {
	rt, err := r.resolve(name)
	if err != nil {
		return ResolvedCSS{}, err
	}
	return ResolvedCSS{
		ThemeID:  name,
		CSS:      generateTokenCSS(rt),
		CSSFiles: append([]string(nil), rt.cfg.CSSFiles...),
	}, nil
}

// Remove deletes name from the registry.
func (r *TokenRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.themes, name)
}

// Current returns the most recently activated theme name.
func (r *TokenRegistry) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Names returns all registered theme ids, sorted.
func (r *TokenRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.themes))
	for n := range r.themes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// generateTokenCSS substitutes the resolved token values into the fixed
// CSS template shape shared by every token theme.
func generateTokenCSS(rt resolvedTokens) string {
	var b strings.Builder

	b.WriteString(":root {\n")
	fmt.Fprintf(&b, "  --theme-color-primary: %s;\n", rt.scheme.Primary)
	fmt.Fprintf(&b, "  --theme-color-secondary: %s;\n", rt.scheme.Secondary)
	fmt.Fprintf(&b, "  --theme-color-background: %s;\n", rt.scheme.Background)
	fmt.Fprintf(&b, "  --theme-color-surface: %s;\n", rt.scheme.Surface)
	fmt.Fprintf(&b, "  --theme-color-text: %s;\n", rt.scheme.Text)
	fmt.Fprintf(&b, "  --theme-color-text-muted: %s;\n", rt.scheme.TextMuted)
	fmt.Fprintf(&b, "  --theme-color-accent: %s;\n", rt.scheme.Accent)
	fmt.Fprintf(&b, "  --theme-color-border: %s;\n", rt.scheme.Border)
	fmt.Fprintf(&b, "  --theme-spacing: %s;\n", rt.dens.Spacing)
	fmt.Fprintf(&b, "  --theme-font-size: %s;\n", rt.dens.FontSize)
	fmt.Fprintf(&b, "  --theme-line-height: %s;\n", rt.dens.LineHeight)
	b.WriteString("}\n")

	b.WriteString(".report-container {\n  display: grid;\n")
	fmt.Fprintf(&b, "  grid-template-columns: %s;\n", rt.layout.Columns)
	b.WriteString("  grid-template-areas:\n")
	for _, area := range rt.layout.Areas {
		fmt.Fprintf(&b, "    %q\n", area)
	}
	b.WriteString("  ;\n  gap: var(--theme-spacing);\n}\n")

	b.WriteString("body {\n")
	b.WriteString("  background: var(--theme-color-background);\n")
	b.WriteString("  color: var(--theme-color-text);\n")
	b.WriteString("  font-size: var(--theme-font-size);\n")
	b.WriteString("  line-height: var(--theme-line-height);\n")
	b.WriteString("}\n")

	for _, sel := range sortedKeys(rt.cfg.CustomRules) {
		b.WriteString(sel)
		b.WriteString(" {\n")
		props := rt.cfg.CustomRules[sel]
		for _, prop := range sortedKeys(props) {
			fmt.Fprintf(&b, "  %s: %s;\n", prop, props[prop])
		}
		b.WriteString("}\n")
	}

	return b.String()
}
