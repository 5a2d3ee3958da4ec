package marketplace

import (
	"fmt"
	"regexp"
	"strings"

	"riskplane/model"
)

// Theme schema validation for synthesized installable configs. Bounds are
// checked per field so failures name exactly what was wrong.

var (
	idRe      = regexp.MustCompile(`^theme-[a-z0-9]+(-[a-z0-9]+)*$`)
	semverRe  = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	imageExts = []string{".png", ".jpg", ".jpeg", ".svg", ".webp"}
)

var allowedLicenses = map[string]bool{
	"MIT":         true,
	"Apache-2.0":  true,
	"proprietary": true,
}

var allowedCategories = map[string]bool{
	"free":     true,
	"business": true,
	"custom":   true,
}

const (
	nameMinLen = 3
	nameMaxLen = 50
	maxTags    = 8
)

// installCandidate pairs a catalog entry with its synthesized theme config
// for validation.
type installCandidate struct {
	Entry  model.CatalogEntry
	Config model.ThemeConfig
}

// validateCandidate enforces the installable theme schema.
func validateCandidate(c installCandidate) error {
	var problems []string

	if !idRe.MatchString(c.Entry.ID) {
		problems = append(problems, fmt.Sprintf("id %q does not match theme-<slug>", c.Entry.ID))
	}
	if n := len(c.Entry.Name); n < nameMinLen || n > nameMaxLen {
		problems = append(problems, fmt.Sprintf("name length %d outside [%d,%d]", n, nameMinLen, nameMaxLen))
	}
	if !semverRe.MatchString(c.Entry.Version) {
		problems = append(problems, fmt.Sprintf("version %q is not semver", c.Entry.Version))
	}
	if !allowedLicenses[c.Entry.License] {
		problems = append(problems, fmt.Sprintf("license %q not allowed", c.Entry.License))
	}
	if !allowedCategories[c.Entry.Category] {
		problems = append(problems, fmt.Sprintf("category %q not allowed", c.Entry.Category))
	}
	if len(c.Entry.Tags) > maxTags {
		problems = append(problems, fmt.Sprintf("%d tags exceeds maximum %d", len(c.Entry.Tags), maxTags))
	}
	if len(c.Config.CSSFiles) == 0 {
		problems = append(problems, "at least one css file is required")
	}
	if img := c.Entry.PreviewImage; img != "" && !hasImageExt(img) {
		problems = append(problems, fmt.Sprintf("preview image %q has an unsupported extension", img))
	}

	if len(problems) > 0 {
		return fmt.Errorf("theme schema: %s", strings.Join(problems, "; "))
	}
	return nil
}

func hasImageExt(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range imageExts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
