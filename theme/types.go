package theme

import (
	"context"
	"errors"

	"riskplane/model"
)

// Component identifies one constituent stylesheet of a theme load.
type Component string

const (
	ComponentBase   Component = "base"
	ComponentLayout Component = "layout"
	ComponentColors Component = "colors"
	ComponentMain   Component = "main"
)

// DefaultComponents is the standard component set requested when a caller
// does not ask for anything more specific.
var DefaultComponents = []Component{ComponentBase, ComponentLayout, ComponentColors, ComponentMain}

// ResolvedCSS is the output of resolving a theme name: the generated CSS
// text plus the stylesheet files the theme wants loaded before activation.
type ResolvedCSS struct {
	ThemeID  string
	CSS      string
	CSSFiles []string
}

// Registry is the single abstraction the marketplace and API depend on.
// Two strategies implement it: ConfigRegistry (full configs with parent
// merge) and TokenRegistry (selections into shared token tables). The
// strategy is chosen at construction time, never probed at runtime.
type Registry interface {
	// Register adds a theme. Configuration problems surface here, not at
	// activation time.
	Register(cfg model.ThemeConfig) error

	// Activate resolves the named theme, loads its stylesheets, generates
	// its CSS into the sink and announces the change on the bus.
	Activate(ctx context.Context, name string) error

	// Resolve returns the generated CSS and stylesheet list for a theme
	// without touching the sink.
	Resolve(name string) (ResolvedCSS, error)

	// Remove deletes a registered theme. Removing the active theme does not
	// undo its applied CSS.
	Remove(name string)

	// Current returns the most recently activated theme name, or "".
	Current() string

	// Names returns all registered theme names.
	Names() []string
}

var (
	// ErrThemeNotRegistered is returned when a theme name is unknown and no
	// fallback applies.
	ErrThemeNotRegistered = errors.New("theme not registered")

	// ErrParentNotRegistered is returned when registering a child whose
	// parent has not been registered yet.
	ErrParentNotRegistered = errors.New("parent theme not registered")

	// ErrDanglingToken is returned by the token strategy when a theme
	// references a token key missing from its table. This is a fatal
	// configuration error, never silently defaulted.
	ErrDanglingToken = errors.New("dangling token reference")
)
