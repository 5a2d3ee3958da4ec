package theme

import (
	"fmt"
	"io/fs"
	"log"

	"gopkg.in/yaml.v3"

	"riskplane/model"
)

// Definitions is the parsed form of a theme definition document.
type Definitions struct {
	BaseTheme string              `yaml:"base_theme"`
	Themes    []model.ThemeConfig `yaml:"themes"`
}

// LoadDefinitions parses the theme definition YAML at path inside fsys.
func LoadDefinitions(fsys fs.FS, path string) (Definitions, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return Definitions{}, fmt.Errorf("read theme definitions: %w", err)
	}

	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return Definitions{}, fmt.Errorf("parse theme definitions: %w", err)
	}
	if len(defs.Themes) == 0 {
		return Definitions{}, fmt.Errorf("parse theme definitions: no themes in %s", path)
	}
	return defs, nil
}

// Seed registers every definition into reg. Parents appear before children
// in the document, so a single pass suffices; individual failures are
// logged and skipped rather than aborting the rest.
func Seed(reg Registry, defs Definitions) int {
	n := 0
	for _, cfg := range defs.Themes {
		if err := reg.Register(cfg); err != nil {
			log.Printf("[theme] seed %s: %v", cfg.ID, err)
			continue
		}
		n++
	}
	return n
}
