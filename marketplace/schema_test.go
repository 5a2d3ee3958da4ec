package marketplace

import (
	"strings"
	"testing"

	"riskplane/model"
)

func validCandidate() installCandidate {
	return installCandidate{
		Entry: model.CatalogEntry{
			ID:           "theme-minimalist",
			Name:         "Minimalist",
			Version:      "1.2.0",
			License:      "MIT",
			Category:     "free",
			Tags:         []string{"light"},
			PreviewImage: "previews/minimalist.png",
		},
		Config: model.ThemeConfig{
			ID:       "theme-minimalist",
			CSSFiles: []string{"themes/theme-minimalist.css"},
		},
	}
}

func TestValidateCandidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*installCandidate)
		problem string // empty means the candidate must pass
	}{
		{name: "valid", mutate: func(c *installCandidate) {}},
		{
			name:    "id without prefix",
			mutate:  func(c *installCandidate) { c.Entry.ID = "minimalist" },
			problem: "does not match theme-<slug>",
		},
		{
			name:    "id with uppercase",
			mutate:  func(c *installCandidate) { c.Entry.ID = "theme-Minimalist" },
			problem: "does not match theme-<slug>",
		},
		{
			name:    "name too short",
			mutate:  func(c *installCandidate) { c.Entry.Name = "ab" },
			problem: "name length",
		},
		{
			name:    "name too long",
			mutate:  func(c *installCandidate) { c.Entry.Name = strings.Repeat("x", 51) },
			problem: "name length",
		},
		{
			name:    "version not semver",
			mutate:  func(c *installCandidate) { c.Entry.Version = "1.2" },
			problem: "not semver",
		},
		{
			name:    "unknown license",
			mutate:  func(c *installCandidate) { c.Entry.License = "GPL-3.0" },
			problem: "license",
		},
		{
			name:    "unknown category",
			mutate:  func(c *installCandidate) { c.Entry.Category = "seasonal" },
			problem: "category",
		},
		{
			name: "too many tags",
			mutate: func(c *installCandidate) {
				c.Entry.Tags = []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}
			},
			problem: "tags exceeds maximum",
		},
		{
			name:    "no css files",
			mutate:  func(c *installCandidate) { c.Config.CSSFiles = nil },
			problem: "css file",
		},
		{
			name:    "bad preview extension",
			mutate:  func(c *installCandidate) { c.Entry.PreviewImage = "previews/minimalist.bmp" },
			problem: "unsupported extension",
		},
		{
			name:   "empty preview is allowed",
			mutate: func(c *installCandidate) { c.Entry.PreviewImage = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCandidate()
			tt.mutate(&c)
			err := validateCandidate(c)
			if tt.problem == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.problem) {
				t.Fatalf("err = %v, want mention of %q", err, tt.problem)
			}
		})
	}
}

func TestValidateCandidateJoinsProblems(t *testing.T) {
	c := validCandidate()
	c.Entry.ID = "bad id"
	c.Entry.Version = "latest"
	err := validateCandidate(c)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"does not match", "not semver"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}
