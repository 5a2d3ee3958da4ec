package render

// Built-in report templates and component partials, registered at startup.

const riskBadgeComponent = `<span class="risk-badge risk-{{riskClass .RiskLevel}}" style="background: {{riskColor .RiskLevel}}">{{.RiskLevel}}</span>`

const scoreTableComponent = `<table class="score-table">
<thead><tr><th>Category</th><th>Score</th></tr></thead>
<tbody>
{{range .CategoryScores}}<tr><td>{{.Category}}</td><td>{{formatScore .Score}}</td></tr>
{{end}}</tbody>
</table>`

const recommendationListComponent = `<ul class="recommendation-list">
{{range .Recommendations}}<li>{{.}}</li>
{{end}}</ul>`

const standardTemplate = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.ToolName}} — Risk Assessment</title></head>
<body class="report-body">
<div class="report-container">
<section class="report-section report-header">
<h1>{{.ToolName}}</h1>
<p class="report-vendor">{{.Vendor}}</p>
{{template "risk-badge" .}}
</section>
<section class="report-section report-main">
<h2>Overall Score</h2>
<p class="report-score">{{formatScore .TotalScore}} / 100</p>
<p class="report-use-case">{{.UseCase}}</p>
{{template "score-table" .}}
</section>
<section class="report-section report-recommendations">
<h2>Recommendations</h2>
{{template "recommendation-list" .}}
</section>
<section class="report-section report-certifications">
<h2>Certifications</h2>
<ul>{{range .Certifications}}<li>{{.}}</li>{{end}}</ul>
</section>
<section class="report-section report-footer">
<p>Generated by riskplane</p>
</section>
</div>
</body>
</html>`

const executiveTemplate = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.ToolName}} — Executive Summary</title></head>
<body class="report-body report-executive">
<div class="report-container">
<section class="report-section report-header">
<h1>{{.ToolName}}</h1>
<p class="report-vendor">{{.Vendor}}</p>
{{template "risk-badge" .}}
</section>
<section class="report-section report-main">
<p class="report-score">Overall risk score: {{formatScore .TotalScore}}</p>
<p class="report-use-case">{{.UseCase}}</p>
</section>
</div>
</body>
</html>`

// standardRules is the per-template required-field table for the standard
// report.
var standardRules = []FieldRule{
	{Field: "ToolName", Required: true, Kind: "string"},
	{Field: "Vendor", Required: true, Kind: "string"},
	{Field: "RiskLevel", Required: true, Kind: "string", Allowed: []string{"LOW", "MEDIUM", "HIGH", "CRITICAL"}},
	{Field: "TotalScore", Required: true, Kind: "number", Min: 0, Max: 100, HasRange: true},
	{Field: "UseCase", Kind: "string"},
	{Field: "Recommendations", Kind: "list"},
	{Field: "Certifications", Kind: "list"},
	{Field: "CategoryScores", Kind: "list"},
}

// standardFallback supplies a default for every known field so rendering
// never hard-fails on missing report data.
var standardFallback = map[string]any{
	"ToolName":        "Unnamed Tool",
	"Vendor":          "Unknown Vendor",
	"RiskLevel":       "MEDIUM",
	"TotalScore":      float64(50),
	"UseCase":         "General use",
	"Recommendations": []any{},
	"Certifications":  []any{},
	"CategoryScores":  []any{},
}

var executiveRules = []FieldRule{
	{Field: "ToolName", Required: true, Kind: "string"},
	{Field: "Vendor", Required: true, Kind: "string"},
	{Field: "RiskLevel", Required: true, Kind: "string", Allowed: []string{"LOW", "MEDIUM", "HIGH", "CRITICAL"}},
	{Field: "TotalScore", Required: true, Kind: "number", Min: 0, Max: 100, HasRange: true},
	{Field: "UseCase", Kind: "string"},
}

// RegisterBuiltins installs the component partials and the standard and
// executive page templates.
func RegisterBuiltins(r *Registry) error {
	components := map[string]string{
		"risk-badge":          riskBadgeComponent,
		"score-table":         scoreTableComponent,
		"recommendation-list": recommendationListComponent,
	}
	for name, src := range components {
		if err := r.RegisterComponent(name, src); err != nil {
			return err
		}
	}

	if err := r.Register("standard", standardTemplate,
		[]string{"risk-badge", "score-table", "recommendation-list"},
		standardRules, standardFallback); err != nil {
		return err
	}
	return r.Register("executive", executiveTemplate,
		[]string{"risk-badge"},
		executiveRules, standardFallback)
}
