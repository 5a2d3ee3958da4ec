package theme

import (
	"strings"
	"sync"
)

// Stylesheet is one attached stylesheet in the sink. Disabled sheets keep
// their fetched content so re-enabling is cheap.
type Stylesheet struct {
	URL      string `json:"url"`
	ThemeID  string `json:"theme_id"`
	Disabled bool   `json:"disabled"`
	Content  string `json:"-"`
}

// RenderHints carries the component-detail decisions of the active theme,
// consumed by whoever assembles the final page.
type RenderHints struct {
	MaxTableRows int  `json:"max_table_rows"` // -1 means unlimited
	ShowCharts   bool `json:"show_charts"`
	ShowDetails  bool `json:"show_details"`
}

// Section is a named report section tracked by the sink. Placeholder
// sections are created by the token strategy when a theme names a section
// that does not exist yet.
type Section struct {
	Name        string `json:"name"`
	Visible     bool   `json:"visible"`
	Placeholder string `json:"-"`
}

// PageSink owns the page-level styling state: the attached stylesheets, the
// single generated-CSS slot, body classes and section visibility.
//
// The generated-CSS slot holds exactly one active theme's CSS at a time;
// every write is a full replace and callers must not assume previously
// applied rules survive another activation. Construct one sink per
// independent page; sharing a sink across previews makes the last activation
// win.
type PageSink struct {
	mu          sync.Mutex
	sheets      []*Stylesheet
	byURL       map[string]*Stylesheet
	generated   string
	themeClass  string
	layoutClass string
	sections    map[string]*Section
	order       []string
	hints       RenderHints
}

// NewPageSink returns an empty sink with unlimited render hints.
func NewPageSink() *PageSink {
	return &PageSink{
		byURL:    make(map[string]*Stylesheet),
		sections: make(map[string]*Section),
		hints:    RenderHints{MaxTableRows: -1, ShowCharts: true, ShowDetails: true},
	}
}

// Attach adds a stylesheet for url tagged with themeID, or re-enables an
// existing one. It reports whether an existing sheet was reused.
func (p *PageSink) Attach(url, themeID, content string) (reused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.byURL[url]; ok {
		s.Disabled = false
		return true
	}
	s := &Stylesheet{URL: url, ThemeID: themeID, Content: content}
	p.byURL[url] = s
	p.sheets = append(p.sheets, s)
	return false
}

// Enable clears the disabled flag on the sheet for url, reporting whether
// such a sheet exists.
func (p *PageSink) Enable(url string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.byURL[url]
	if ok {
		s.Disabled = false
	}
	return ok
}

// DisableTheme disables every stylesheet tagged with themeID. Sheets are
// kept, not removed, so re-activation is cheap.
func (p *PageSink) DisableTheme(themeID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.sheets {
		if s.ThemeID == themeID {
			s.Disabled = true
		}
	}
}

// SheetCount returns the number of attached sheets tagged with themeID,
// enabled or not.
func (p *PageSink) SheetCount(themeID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.sheets {
		if s.ThemeID == themeID {
			n++
		}
	}
	return n
}

// SetGeneratedCSS replaces the generated-CSS slot wholesale.
func (p *PageSink) SetGeneratedCSS(css string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generated = css
}

// SetThemeClass replaces the page's theme-* class.
func (p *PageSink) SetThemeClass(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.themeClass = "theme-" + name
}

// SetLayoutClass replaces the report container's layout-* class.
func (p *PageSink) SetLayoutClass(layout string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.layoutClass = "layout-" + layout
}

// SetHints replaces the render hints.
func (p *PageSink) SetHints(h RenderHints) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hints = h
}

// ShowSections marks exactly the named sections visible, hiding every other
// known section. Unknown names are created as placeholder sections using
// the supplied placeholder lookup (nil means empty placeholders).
func (p *PageSink) ShowSections(names []string, placeholder func(name string) string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	for name, s := range p.sections {
		s.Visible = want[name]
	}
	for _, n := range names {
		if _, ok := p.sections[n]; ok {
			continue
		}
		ph := ""
		if placeholder != nil {
			ph = placeholder(n)
		}
		p.sections[n] = &Section{Name: n, Visible: true, Placeholder: ph}
		p.order = append(p.order, n)
	}
}

// ShowAllSections marks every known section visible. Used by the config
// strategy when a theme declares no section list.
func (p *PageSink) ShowAllSections() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.sections {
		s.Visible = true
	}
}

// RegisterSection declares a section that exists in the rendered page, so
// visibility toggles have something to act on.
func (p *PageSink) RegisterSection(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.sections[name]; ok {
		return
	}
	p.sections[name] = &Section{Name: name, Visible: true}
	p.order = append(p.order, name)
}

// Snapshot is a point-in-time copy of the sink state for the API layer.
type Snapshot struct {
	Stylesheets []Stylesheet `json:"stylesheets"`
	ThemeClass  string       `json:"theme_class"`
	LayoutClass string       `json:"layout_class"`
	Sections    []Section    `json:"sections"`
	Hints       RenderHints  `json:"hints"`
}

// Snapshot returns a copy of the current sink state.
func (p *PageSink) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := Snapshot{
		ThemeClass:  p.themeClass,
		LayoutClass: p.layoutClass,
		Hints:       p.hints,
	}
	for _, s := range p.sheets {
		snap.Stylesheets = append(snap.Stylesheets, *s)
	}
	for _, n := range p.order {
		snap.Sections = append(snap.Sections, *p.sections[n])
	}
	return snap
}

// CSS returns the concatenation of every enabled stylesheet's content
// followed by the generated block. This is what /api/theme.css serves.
func (p *PageSink) CSS() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	for _, s := range p.sheets {
		if s.Disabled || s.Content == "" {
			continue
		}
		b.WriteString("/* ")
		b.WriteString(s.URL)
		b.WriteString(" */\n")
		b.WriteString(s.Content)
		if !strings.HasSuffix(s.Content, "\n") {
			b.WriteString("\n")
		}
	}
	if p.generated != "" {
		b.WriteString("/* generated */\n")
		b.WriteString(p.generated)
	}
	return b.String()
}

// GeneratedCSS returns only the generated block.
func (p *PageSink) GeneratedCSS() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generated
}
