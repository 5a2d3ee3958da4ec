// Package render is the report template registry: it validates and compiles
// page templates with component partials, renders them against report data
// with per-field fallback substitution, and isolates render failures to the
// offending section instead of failing the whole page.
package render

import (
	"fmt"
	"html/template"
	"log"
	"regexp"
	"sort"
	"strings"
	"sync"

	"riskplane/model"
)

// requiredSections are source markers every complete template must carry.
var requiredSections = []string{
	`class="report-header"`,
	`class="report-main"`,
}

// requiredExpressions are output expressions every complete template must
// carry.
var requiredExpressions = []string{
	"{{.ToolName}}",
	"{{.Vendor}}",
}

var (
	sectionRe   = regexp.MustCompile(`(?s)<section\b[^>]*>.*?</section>`)
	classAttrRe = regexp.MustCompile(`class="([^"]+)"`)
	condBlockRe = regexp.MustCompile(`(?s){{\s*(?:if|range|with)[^}]*}}.*?{{\s*end\s*}}`)
	scriptTagRe = regexp.MustCompile(`(?i)<script\b`)
)

var funcMap = template.FuncMap{
	"riskColor": func(level string) string { return model.RiskLevel(level).Color() },
	"riskClass": func(level string) string { return model.RiskLevel(level).Class() },
	"upper":     strings.ToUpper,
	"formatScore": func(v any) (string, error) {
		n, ok := toFloat(v)
		if !ok {
			return "", fmt.Errorf("formatScore: %T is not numeric", v)
		}
		return fmt.Sprintf("%.1f", n), nil
	},
}

type entry struct {
	name       string
	source     string
	components []string
	tmpl       *template.Template
	rules      []FieldRule
	fallback   map[string]any
}

// Registry holds validated, compiled report templates and their component
// partials. Invalid templates are rejected at registration, never at render
// time.
type Registry struct {
	mu         sync.Mutex
	templates  map[string]*entry
	components map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		templates:  make(map[string]*entry),
		components: make(map[string]string),
	}
}

// RegisterComponent stores a component template for use as a partial. The
// source must compile on its own.
func (r *Registry) RegisterComponent(name, source string) error {
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("register component %s: empty source", name)
	}
	if _, err := template.New(name).Funcs(funcMap).Parse(source); err != nil {
		return fmt.Errorf("register component %s: %w", name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[name] = source
	return nil
}

// Register validates and compiles a complete template. componentNames are
// attached as partials; each must already be registered.
func (r *Registry) Register(name, source string, componentNames []string, rules []FieldRule, fallback map[string]any) error {
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("register template %s: empty source", name)
	}
	if hasScriptOutsideBlocks(source) {
		return fmt.Errorf("register template %s: literal <script> tag outside conditional blocks", name)
	}
	for _, marker := range requiredSections {
		if !strings.Contains(source, marker) {
			return fmt.Errorf("register template %s: missing required section marker %s", name, marker)
		}
	}
	for _, expr := range requiredExpressions {
		if !strings.Contains(source, expr) {
			return fmt.Errorf("register template %s: missing required expression %s", name, expr)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tmpl, err := r.compileLocked(name, source, componentNames)
	if err != nil {
		return fmt.Errorf("register template %s: %w", name, err)
	}

	r.templates[name] = &entry{
		name:       name,
		source:     source,
		components: append([]string(nil), componentNames...),
		tmpl:       tmpl,
		rules:      rules,
		fallback:   fallback,
	}
	return nil
}

// compileLocked parses source with its component partials attached.
func (r *Registry) compileLocked(name, source string, componentNames []string) (*template.Template, error) {
	tmpl := template.New(name).Funcs(funcMap).Option("missingkey=error")
	for _, cn := range componentNames {
		src, ok := r.components[cn]
		if !ok {
			return nil, fmt.Errorf("component %q not registered", cn)
		}
		if _, err := tmpl.New(cn).Parse(src); err != nil {
			return nil, fmt.Errorf("parse component %q: %w", cn, err)
		}
	}
	return tmpl.New(name).Parse(source)
}

// hasScriptOutsideBlocks is a heuristic XSS guard, not a sanitizer: it
// rejects literal script tags that sit outside {{if}}/{{range}}/{{with}}
// blocks.
func hasScriptOutsideBlocks(source string) bool {
	stripped := condBlockRe.ReplaceAllString(source, "")
	return scriptTagRe.MatchString(stripped)
}

// Names returns the registered complete template names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.templates))
	for n := range r.templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a complete template is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.templates[name]
	return ok
}

// Render renders the named template against data. It never returns an
// error: an unknown name yields a not-found boundary, invalid data fields
// are substituted with fallbacks, and a render exception degrades to the
// section recovery pass. Only total recovery failure yields the critical
// page-level boundary.
func (r *Registry) Render(name string, data map[string]any) string {
	r.mu.Lock()
	e, ok := r.templates[name]
	r.mu.Unlock()
	if !ok {
		log.Printf("[render] template %q not found", name)
		return notFoundBoundary(name)
	}

	input, substituted := applyFallback(e.name, e.rules, e.fallback, data)

	var buf strings.Builder
	if err := e.tmpl.Execute(&buf, input); err != nil {
		log.Printf("[render] template %s: render failed, recovering per section: %v", name, err)
		return r.renderSections(e, input)
	}

	out := buf.String()
	if substituted > 0 {
		out = injectNotice(out, fallbackNotice(substituted))
	}
	return out
}

// injectNotice splices the notice fragment before the closing body tag so it
// stays inside the document element; fragments without a body get it
// appended.
func injectNotice(page, notice string) string {
	if i := strings.LastIndex(page, "</body>"); i >= 0 {
		return page[:i] + notice + page[i:]
	}
	return page + notice
}

// renderSections is the recovery pass: the raw source is split on section
// boundaries and each segment is compiled and rendered in isolation, so a
// single defective section degrades to a boundary fragment while the rest
// of the page keeps its real content.
func (r *Registry) renderSections(e *entry, input map[string]any) string {
	segments := splitSections(e.source)
	if len(segments) == 0 {
		return criticalBoundary(fmt.Errorf("template %s has no recoverable sections", e.name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var out strings.Builder
	recovered := false
	for i, seg := range segments {
		segName := fmt.Sprintf("%s#%d", e.name, i)
		tmpl, err := r.compileLocked(segName, seg.source, e.components)
		if err != nil {
			if seg.isSection {
				out.WriteString(sectionBoundary(seg.class, err))
				continue
			}
			return criticalBoundary(fmt.Errorf("recompile %s: %w", e.name, err))
		}
		var buf strings.Builder
		if err := tmpl.Execute(&buf, input); err != nil {
			if !seg.isSection {
				return criticalBoundary(fmt.Errorf("render %s: %w", e.name, err))
			}
			log.Printf("[render] template %s: section %q failed: %v", e.name, seg.class, err)
			out.WriteString(sectionBoundary(seg.class, err))
			continue
		}
		out.WriteString(buf.String())
		if seg.isSection {
			recovered = true
		}
	}
	if !recovered {
		return criticalBoundary(fmt.Errorf("template %s: every section failed to render", e.name))
	}
	return out.String()
}

type segment struct {
	source    string
	isSection bool
	class     string
}

// splitSections slices source into alternating interstitial text and
// <section> blocks. Template block tags crossing a section boundary are not
// supported by the recovery pass.
func splitSections(source string) []segment {
	locs := sectionRe.FindAllStringIndex(source, -1)
	if len(locs) == 0 {
		return nil
	}

	var segs []segment
	prev := 0
	for _, loc := range locs {
		if loc[0] > prev {
			if chunk := source[prev:loc[0]]; strings.TrimSpace(chunk) != "" {
				segs = append(segs, segment{source: chunk})
			}
		}
		block := source[loc[0]:loc[1]]
		class := ""
		if m := classAttrRe.FindStringSubmatch(block[:strings.Index(block, ">")+1]); m != nil {
			class = m[1]
		}
		segs = append(segs, segment{source: block, isSection: true, class: class})
		prev = loc[1]
	}
	if prev < len(source) {
		if chunk := source[prev:]; strings.TrimSpace(chunk) != "" {
			segs = append(segs, segment{source: chunk})
		}
	}
	return segs
}
