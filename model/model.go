package model

import (
	"strings"
	"time"
)

// ThemeConfig is the canonical unit of styling intent. Depending on the
// registry strategy, the layout/color-scheme/density/components fields are
// either literal values (config strategy) or keys into shared token tables
// (token strategy).
type ThemeConfig struct {
	ID          string                       `json:"id" yaml:"id"`
	Name        string                       `json:"name" yaml:"name"`
	Colors      map[string]string            `json:"colors,omitempty" yaml:"colors,omitempty"`
	Typography  map[string]string            `json:"typography,omitempty" yaml:"typography,omitempty"`
	Spacing     map[string]string            `json:"spacing,omitempty" yaml:"spacing,omitempty"`
	Variables   map[string]string            `json:"variables,omitempty" yaml:"variables,omitempty"`
	Layout      string                       `json:"layout,omitempty" yaml:"layout,omitempty"`
	ColorScheme string                       `json:"color_scheme,omitempty" yaml:"color_scheme,omitempty"`
	Density     string                       `json:"density,omitempty" yaml:"density,omitempty"`
	Components  string                       `json:"components,omitempty" yaml:"components,omitempty"`
	Sections    []string                     `json:"sections,omitempty" yaml:"sections,omitempty"`
	CustomRules map[string]map[string]string `json:"custom_rules,omitempty" yaml:"custom_rules,omitempty"`
	CSSFiles    []string                     `json:"css_files,omitempty" yaml:"css_files,omitempty"`
	Parent      string                       `json:"parent,omitempty" yaml:"parent,omitempty"`
}

// CatalogEntry describes a theme as listed in the marketplace catalog.
// The Installed flag is always derived from the persisted installed set,
// never stored on the entry itself.
type CatalogEntry struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Version      string   `json:"version"`
	Author       string   `json:"author"`
	License      string   `json:"license"`
	Category     string   `json:"category"`
	Tags         []string `json:"tags,omitempty"`
	Premium      bool     `json:"premium"`
	PriceUSD     float64  `json:"price_usd,omitempty"`
	PreviewImage string   `json:"preview_image,omitempty"`
	Installed    bool     `json:"installed"`
}

// InstalledTheme is the durable record persisted for every installed theme.
type InstalledTheme struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Version     string    `json:"version"`
	Author      string    `json:"author,omitempty"`
	CSSFiles    []string  `json:"css_files"`
	InstalledAt time.Time `json:"installed_at"`
}

// RiskLevel classifies an overall assessment score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

var riskColors = map[RiskLevel]string{
	RiskLow:      "#2e7d32",
	RiskMedium:   "#f9a825",
	RiskHigh:     "#e65100",
	RiskCritical: "#b71c1c",
}

// Color returns the display color associated with the level, defaulting to
// the medium color for unknown levels.
func (r RiskLevel) Color() string {
	if c, ok := riskColors[r]; ok {
		return c
	}
	return riskColors[RiskMedium]
}

// Class returns the lowercase CSS class form of the level.
func (r RiskLevel) Class() string {
	return strings.ToLower(string(r))
}

// RiskLevelForScore maps a 0-100 risk score onto a level.
func RiskLevelForScore(score float64) RiskLevel {
	switch {
	case score >= 80:
		return RiskCritical
	case score >= 60:
		return RiskHigh
	case score >= 35:
		return RiskMedium
	default:
		return RiskLow
	}
}

type ScheduleType string

const (
	ScheduleInterval ScheduleType = "interval"
	ScheduleDaily    ScheduleType = "daily"
)

// Schedule configures a recurring marketplace catalog refresh.
type Schedule struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Enabled   bool         `json:"enabled"`
	Type      ScheduleType `json:"type"`
	Every     string       `json:"every,omitempty"`       // Go duration, e.g. "1h"
	TimeOfDay string       `json:"time_of_day,omitempty"` // "HH:MM" local time
}
