package render

import (
	"fmt"
	"html"
)

// BoundaryKind distinguishes the fixed vocabulary of error-boundary
// fragments substituted for content that failed to render.
type BoundaryKind string

const (
	BoundaryNotFound       BoundaryKind = "not-found"
	BoundarySection        BoundaryKind = "section-error"
	BoundaryCritical       BoundaryKind = "critical"
	BoundaryDataValidation BoundaryKind = "data-validation"
	BoundaryFallbackNotice BoundaryKind = "fallback-notice"
)

type boundaryShape struct {
	icon string
	help string
}

var boundaryShapes = map[BoundaryKind]boundaryShape{
	BoundaryNotFound:       {icon: "&#10067;", help: "Check that the template name is registered before rendering."},
	BoundarySection:        {icon: "&#9888;", help: "The rest of the report rendered normally."},
	BoundaryCritical:       {icon: "&#10060;", help: "The report could not be rendered. Try a different template."},
	BoundaryDataValidation: {icon: "&#128269;", help: "Correct the request payload and try again."},
	BoundaryFallbackNotice: {icon: "&#8505;", help: "Default values were substituted for missing or invalid fields."},
}

// Boundary builds the inline fragment for kind. The extra class carries the
// failing section's class name for section errors and is empty otherwise.
func Boundary(kind BoundaryKind, extraClass, message string) string {
	shape := boundaryShapes[kind]
	class := "error-boundary error-boundary-" + string(kind)
	if extraClass != "" {
		class += " " + html.EscapeString(extraClass)
	}
	return fmt.Sprintf(
		`<div class=%q data-boundary=%q><span class="error-boundary-icon">%s</span><p class="error-boundary-message">%s</p><p class="error-boundary-help">%s</p></div>`,
		class, string(kind), shape.icon, html.EscapeString(message), shape.help,
	)
}

func notFoundBoundary(name string) string {
	return Boundary(BoundaryNotFound, "", fmt.Sprintf("Template %q is not registered.", name))
}

func sectionBoundary(sectionClass string, err error) string {
	return Boundary(BoundarySection, sectionClass, fmt.Sprintf("This section failed to render: %v", err))
}

func criticalBoundary(err error) string {
	return Boundary(BoundaryCritical, "", fmt.Sprintf("Report rendering failed: %v", err))
}

func fallbackNotice(count int) string {
	return Boundary(BoundaryFallbackNotice, "", fmt.Sprintf("%d field(s) were missing or invalid and rendered with defaults.", count))
}
