package theme

import (
	"context"
	"io/fs"
	"log"
	"sort"
	"sync"
)

// Fetcher retrieves the bytes of a stylesheet by path.
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// FSFetcher serves stylesheets from a filesystem (embedded assets in
// production, fstest.MapFS in tests).
type FSFetcher struct {
	FS fs.FS
}

func (f FSFetcher) Fetch(_ context.Context, path string) ([]byte, error) {
	return fs.ReadFile(f.FS, path)
}

// componentStructured lists theme ids whose CSS ships as four per-theme
// files (variables/layout/typography/components) instead of the shared
// base/layout/colors convention plus one main file.
var componentStructured = map[string]bool{
	"theme-corporate": true,
	"theme-executive": true,
}

// Loader performs idempotent, deduplicated stylesheet loading into a
// PageSink. It is the single place guaranteeing at most one in-flight load
// per theme id: concurrent callers for the same id join the first call's
// outcome instead of fetching twice.
type Loader struct {
	fetcher Fetcher
	sink    *PageSink

	mu       sync.Mutex
	loaded   map[string]bool
	inflight map[string]*loadCall
}

type loadCall struct {
	done chan struct{}
	ok   bool
}

// NewLoader returns a loader that fetches through fetcher and attaches into
// sink.
func NewLoader(fetcher Fetcher, sink *PageSink) *Loader {
	return &Loader{
		fetcher:  fetcher,
		sink:     sink,
		loaded:   make(map[string]bool),
		inflight: make(map[string]*loadCall),
	}
}

// ResolveStylesheets maps a theme id and component set to the ordered
// stylesheet paths that theme loads. Component-structured themes always
// resolve to their fixed four-file set.
func ResolveStylesheets(themeID string, components ...Component) []string {
	if componentStructured[themeID] {
		base := "themes/" + themeID + "/"
		return []string{
			base + "variables.css",
			base + "layout.css",
			base + "typography.css",
			base + "components.css",
		}
	}

	if len(components) == 0 {
		components = DefaultComponents
	}
	var paths []string
	for _, c := range components {
		switch c {
		case ComponentBase:
			paths = append(paths, "themes/base.css")
		case ComponentLayout:
			paths = append(paths, "themes/layouts/"+themeID+".css")
		case ComponentColors:
			paths = append(paths, "themes/schemes/"+themeID+".css")
		case ComponentMain:
			paths = append(paths, "themes/"+themeID+".css")
		}
	}
	return paths
}

// LoadTheme loads every constituent stylesheet of themeID into the sink.
// It reports true only if all files loaded (or were re-enabled); a failing
// file is logged and counted as false without aborting the others. Once a
// load fully succeeds the id is remembered and later calls short-circuit.
func (l *Loader) LoadTheme(ctx context.Context, themeID string, components ...Component) bool {
	l.mu.Lock()
	if l.loaded[themeID] {
		l.mu.Unlock()
		return true
	}
	if c, ok := l.inflight[themeID]; ok {
		l.mu.Unlock()
		<-c.done
		return c.ok
	}
	call := &loadCall{done: make(chan struct{})}
	l.inflight[themeID] = call
	l.mu.Unlock()

	ok := l.loadFiles(ctx, themeID, ResolveStylesheets(themeID, components...))

	l.mu.Lock()
	if ok {
		l.loaded[themeID] = true
	}
	delete(l.inflight, themeID)
	call.ok = ok
	close(call.done)
	l.mu.Unlock()

	return ok
}

// LoadFiles loads an explicit stylesheet list under themeID's tag, outside
// the convention-based resolution. Used by the config registry for themes
// carrying their own css_files list.
func (l *Loader) LoadFiles(ctx context.Context, themeID string, paths []string) bool {
	return l.loadFiles(ctx, themeID, paths)
}

func (l *Loader) loadFiles(ctx context.Context, themeID string, paths []string) bool {
	results := make([]bool, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			results[i] = l.loadFile(ctx, themeID, path)
		}(i, path)
	}
	wg.Wait()

	ok := true
	for i, r := range results {
		if !r {
			log.Printf("[theme] load %s: file %s failed", themeID, paths[i])
			ok = false
		}
	}
	return ok
}

// loadFile re-enables an already-attached sheet, or fetches and attaches a
// new one. A fetch error resolves false, it never panics or aborts peers.
func (l *Loader) loadFile(ctx context.Context, themeID, path string) bool {
	if l.sink.Enable(path) {
		return true
	}
	content, err := l.fetcher.Fetch(ctx, path)
	if err != nil {
		return false
	}
	l.sink.Attach(path, themeID, string(content))
	return true
}

// IsThemeLoaded reports whether themeID completed a full load.
func (l *Loader) IsThemeLoaded(themeID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded[themeID]
}

// UnloadTheme disables every sheet tagged with themeID and forgets the id.
// Sheets stay attached so a later LoadTheme re-enables them without a
// fetch.
func (l *Loader) UnloadTheme(themeID string) {
	l.sink.DisableTheme(themeID)
	l.mu.Lock()
	delete(l.loaded, themeID)
	l.mu.Unlock()
}

// LoadedThemes returns the ids with completed loads, sorted.
func (l *Loader) LoadedThemes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.loaded))
	for id := range l.loaded {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
