package marketplace

import (
	"context"
	"time"

	"riskplane/model"
)

// CatalogSource fetches the theme catalog. Remote sources can take a while;
// implementations must honor ctx cancellation.
type CatalogSource interface {
	Fetch(ctx context.Context) ([]model.CatalogEntry, error)
}

// BuiltinSource serves the fixed built-in catalog with a simulated network
// delay, standing in for a remote marketplace backend.
type BuiltinSource struct {
	Delay time.Duration
}

func (b BuiltinSource) Fetch(ctx context.Context) ([]model.CatalogEntry, error) {
	if b.Delay > 0 {
		select {
		case <-time.After(b.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return builtinCatalog(), nil
}

func builtinCatalog() []model.CatalogEntry {
	return []model.CatalogEntry{
		{
			ID:           "theme-minimalist",
			Name:         "Minimalist",
			Description:  "Clean single-column report with generous whitespace.",
			Version:      "1.2.0",
			Author:       "riskplane",
			License:      "MIT",
			Category:     "free",
			Tags:         []string{"light", "simple"},
			PreviewImage: "previews/minimalist.png",
		},
		{
			ID:           "theme-darkmode",
			Name:         "Dark Mode",
			Description:  "High-contrast dark report for on-screen review.",
			Version:      "1.0.3",
			Author:       "riskplane",
			License:      "MIT",
			Category:     "free",
			Tags:         []string{"dark"},
			PreviewImage: "previews/darkmode.png",
		},
		{
			ID:           "theme-corporate",
			Name:         "Corporate",
			Description:  "Branded two-column layout for stakeholder distribution.",
			Version:      "2.1.0",
			Author:       "riskplane",
			License:      "proprietary",
			Category:     "business",
			Tags:         []string{"branded", "two-column"},
			Premium:      true,
			PriceUSD:     19,
			PreviewImage: "previews/corporate.png",
		},
		{
			ID:           "theme-executive",
			Name:         "Executive",
			Description:  "Condensed summary styling for leadership briefings.",
			Version:      "1.4.1",
			Author:       "riskplane",
			License:      "proprietary",
			Category:     "business",
			Tags:         []string{"summary", "compact"},
			Premium:      true,
			PriceUSD:     29,
			PreviewImage: "previews/executive.png",
		},
	}
}
