package render

import (
	"log"

	"riskplane/model"
)

// FieldRule validates one report data field. Zero-value constraints are
// skipped.
type FieldRule struct {
	Field    string
	Required bool
	Kind     string // "string", "number", "list"
	Allowed  []string
	Min      float64
	Max      float64
	HasRange bool
}

func (r FieldRule) check(v any, present bool) bool {
	if !present {
		return !r.Required
	}
	switch r.Kind {
	case "string":
		s, ok := v.(string)
		if !ok {
			return false
		}
		if len(r.Allowed) > 0 {
			for _, a := range r.Allowed {
				if s == a {
					return true
				}
			}
			return false
		}
		return s != ""
	case "number":
		n, ok := toFloat(v)
		if !ok {
			return false
		}
		if r.HasRange && (n < r.Min || n > r.Max) {
			return false
		}
		return true
	case "list":
		switch v.(type) {
		case []any, []string, []map[string]any:
			return true
		}
		return false
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// applyFallback validates data field-by-field against the template's rule
// table and returns the render input: the template's fallback values with
// every valid real field layered on top. Every failing field logs a warning
// and keeps its fallback, so rendering never hard-fails on bad report data.
func applyFallback(templateName string, rules []FieldRule, fallback map[string]any, data map[string]any) (map[string]any, int) {
	out := make(map[string]any, len(fallback)+len(data))
	for k, v := range fallback {
		out[k] = v
	}

	ruleFor := make(map[string]FieldRule, len(rules))
	for _, r := range rules {
		ruleFor[r.Field] = r
	}

	substituted := 0
	for _, r := range rules {
		v, present := data[r.Field]
		if r.check(v, present) {
			if present {
				out[r.Field] = v
			} else {
				substituted++
			}
			continue
		}
		substituted++
		log.Printf("[render] template %s: field %q failed validation, using fallback %v", templateName, r.Field, fallback[r.Field])
	}

	// Fields without rules pass through untouched.
	for k, v := range data {
		if _, ruled := ruleFor[k]; !ruled {
			out[k] = v
		}
	}

	deriveFields(out)
	return out, substituted
}

// deriveFields annotates the render input with values templates depend on:
// the lowercase risk class and the risk display color, plus list coercion
// for the known list fields.
func deriveFields(data map[string]any) {
	level := model.RiskMedium
	if s, ok := data["RiskLevel"].(string); ok && s != "" {
		level = model.RiskLevel(s)
	}
	data["RiskLevel"] = string(level)
	data["RiskClass"] = level.Class()
	data["RiskColor"] = level.Color()

	for _, field := range []string{"Recommendations", "Certifications", "CategoryScores"} {
		if _, ok := data[field]; !ok {
			data[field] = []any{}
			continue
		}
		switch data[field].(type) {
		case []any, []string, []map[string]any:
		default:
			data[field] = []any{}
		}
	}
}
