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

// ConfigRegistry is the full-config strategy: each theme carries literal
// colors, typography and spacing, optionally inheriting from a registered
// parent via a one-level-deep merge. A designated base theme is the
// fallback target when an unknown name is activated.
type ConfigRegistry struct {
	loader *Loader
	sink   *PageSink
	bus    *Bus

	mu        sync.Mutex
	themes    map[string]*configEntry
	baseTheme string
	current   string
}

type configEntry struct {
	cfg       model.ThemeConfig
	cssLoaded bool
}

// NewConfigRegistry returns a registry writing through loader into sink and
// announcing activations on bus. baseTheme is the fallback for unknown
// names; it does not need to be registered yet.
func NewConfigRegistry(loader *Loader, sink *PageSink, bus *Bus, baseTheme string) *ConfigRegistry {
	return &ConfigRegistry{
		loader:    loader,
		sink:      sink,
		bus:       bus,
		themes:    make(map[string]*configEntry),
		baseTheme: baseTheme,
	}
}

// Register validates and stores cfg. If cfg.Parent is set the parent must
// already be registered, and the stored config is the one-level-deep merge
// of the child over the parent. Because parents must pre-exist and the
// merge is materialized at registration, ancestor chains cannot cycle.
func (r *ConfigRegistry) Register(cfg model.ThemeConfig) error {
	if cfg.ID == "" {
		return fmt.Errorf("register theme: empty id")
	}
	if cfg.Name == "" {
		log.Printf("[theme] register %s: missing display name", cfg.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg.Parent != "" {
		parent, ok := r.themes[cfg.Parent]
		if !ok {
			log.Printf("[theme] register %s: parent %q not registered", cfg.ID, cfg.Parent)
			return fmt.Errorf("register theme %s: %w: %s", cfg.ID, ErrParentNotRegistered, cfg.Parent)
		}
		cfg = mergeConfigs(parent.cfg, cfg)
	}

	r.themes[cfg.ID] = &configEntry{cfg: cfg}
	return nil
}

// mergeConfigs merges child over parent, one level deep: map-valued fields
// are merged key-wise with the child winning on overlapping keys; scalar
// and slice fields are replaced wholesale when the child sets them. For
// custom rules the per-selector property maps are the "second level" and a
// child selector replaces the parent's whole map for that selector.
func mergeConfigs(parent, child model.ThemeConfig) model.ThemeConfig {
	out := child

	out.Colors = mergeStringMap(parent.Colors, child.Colors)
	out.Typography = mergeStringMap(parent.Typography, child.Typography)
	out.Spacing = mergeStringMap(parent.Spacing, child.Spacing)
	out.Variables = mergeStringMap(parent.Variables, child.Variables)

	if child.Layout == "" {
		out.Layout = parent.Layout
	}
	if child.ColorScheme == "" {
		out.ColorScheme = parent.ColorScheme
	}
	if child.Density == "" {
		out.Density = parent.Density
	}
	if child.Components == "" {
		out.Components = parent.Components
	}
	if child.Sections == nil {
		out.Sections = parent.Sections
	}
	if child.CSSFiles == nil {
		out.CSSFiles = parent.CSSFiles
	}

	if parent.CustomRules != nil || child.CustomRules != nil {
		rules := make(map[string]map[string]string, len(parent.CustomRules)+len(child.CustomRules))
		for sel, props := range parent.CustomRules {
			rules[sel] = props
		}
		for sel, props := range child.CustomRules {
			rules[sel] = props
		}
		out.CustomRules = rules
	}

	return out
}

func mergeStringMap(parent, child map[string]string) map[string]string {
	if parent == nil && child == nil {
		return nil
	}
	out := make(map[string]string, len(parent)+len(child))
	for k, v := range parent {
		out[k] = v
	}
	for k, v := range child {
		out[k] = v
	}
	return out
}

// Activate resolves name (falling back to the base theme when unknown),
// loads the theme's stylesheet files exactly once, then generates CSS and
// mutates the sink. Loading strictly precedes sink mutation so classes are
// never applied before their backing styles exist.
func (r *ConfigRegistry) Activate(ctx context.Context, name string) error {
	r.mu.Lock()
	entry, ok := r.themes[name]
	if !ok {
		if r.baseTheme == "" {
			r.mu.Unlock()
			return fmt.Errorf("activate theme %q: %w", name, ErrThemeNotRegistered)
		}
		log.Printf("[theme] activate %q: unknown, falling back to base theme %q", name, r.baseTheme)
		name = r.baseTheme
		entry, ok = r.themes[name]
		if !ok {
			r.mu.Unlock()
			return fmt.Errorf("activate base theme %q: %w", name, ErrThemeNotRegistered)
		}
	}
	cfg := entry.cfg
	needLoad := !entry.cssLoaded && len(cfg.CSSFiles) > 0
	r.mu.Unlock()

	if needLoad {
		if !r.loader.LoadFiles(ctx, name, cfg.CSSFiles) {
			log.Printf("[theme] activate %s: some stylesheets failed to load, continuing degraded", name)
		}
		r.mu.Lock()
		entry.cssLoaded = true
		r.mu.Unlock()
	}

	r.sink.SetGeneratedCSS(GenerateCSS(cfg))
	r.sink.SetThemeClass(name)
	if cfg.Layout != "" {
		r.sink.SetLayoutClass(cfg.Layout)
	}
	if len(cfg.Sections) > 0 {
		r.sink.ShowSections(cfg.Sections, nil)
	} else {
		r.sink.ShowAllSections()
	}

	r.mu.Lock()
	r.current = name
	r.mu.Unlock()

	r.bus.Publish(Event{Kind: EventThemeChanged, ThemeID: name, Config: &cfg})
	return nil
}

// Resolve returns the generated CSS and stylesheet list for name without
// sink mutation or fallback.
func (r *ConfigRegistry) Resolve(name string) (ResolvedCSS, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.themes[name]
	if !ok {
		return ResolvedCSS{}, fmt.Errorf("resolve theme %q: %w", name, ErrThemeNotRegistered)
	}
	return ResolvedCSS{
		ThemeID:  name,
		CSS:      GenerateCSS(entry.cfg),
		CSSFiles: append([]string(nil), entry.cfg.CSSFiles...),
	}, nil
}

// Remove deletes name from the registry. Applied CSS is untouched.
func (r *ConfigRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.themes, name)
}

// Current returns the most recently activated theme name.
func (r *ConfigRegistry) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Names returns all registered theme ids, sorted.
func (r *ConfigRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.themes))
	for n := range r.themes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Config returns the stored (merged) config for name.
func (r *ConfigRegistry) Config(name string) (model.ThemeConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.themes[name]
	if !ok {
		return model.ThemeConfig{}, false
	}
	return entry.cfg, true
}

// GenerateCSS derives the custom-property block for cfg: every colors,
// typography, spacing and variables entry becomes a --theme-* property, and
// custom rule blocks are appended verbatim.
func GenerateCSS(cfg model.ThemeConfig) string {
	var b strings.Builder
	b.WriteString(":root {\n")
	writeProps(&b, "color", cfg.Colors)
	writeProps(&b, "font", cfg.Typography)
	writeProps(&b, "spacing", cfg.Spacing)
	writeProps(&b, "", cfg.Variables)
	b.WriteString("}\n")

	for _, sel := range sortedKeys(cfg.CustomRules) {
		b.WriteString(sel)
		b.WriteString(" {\n")
		props := cfg.CustomRules[sel]
		for _, prop := range sortedKeys(props) {
			fmt.Fprintf(&b, "  %s: %s;\n", prop, props[prop])
		}
		b.WriteString("}\n")
	}

	return b.String()
}

func writeProps(b *strings.Builder, group string, props map[string]string) {
	prefix := "--theme-"
	if group != "" {
		prefix += group + "-"
	}
	for _, k := range sortedKeys(props) {
		fmt.Fprintf(b, "  %s%s: %s;\n", prefix, k, props[k])
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
