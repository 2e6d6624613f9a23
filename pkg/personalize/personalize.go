// Package personalize renders action parameters against the execution
// context, so step configuration can reference contact attributes, the
// trigger payload, and the outputs of earlier steps.
package personalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/campaignkit/journey/pkg/models"
)

// RenderWithContext evaluates a template string against the execution's
// runtime data. Templates see the contact's attributes under .contact,
// the admitting trigger payload under .trigger, completed step outputs
// under .steps, and the execution identifiers under .execution.
func RenderWithContext(input string, executionCtx *models.ExecutionContext) (any, error) {
	data := map[string]any{
		"contact": executionCtx.Attributes,
		"trigger": executionCtx.TriggerData,
		"steps":   executionCtx.StepResults,
		"execution": map[string]any{
			"id":         executionCtx.ExecutionID,
			"journey_id": executionCtx.JourneyID,
			"contact_id": executionCtx.ContactID,
		},
	}

	return Render(input, data)
}

// RenderParameters renders every string value in an action's parameter map,
// descending into nested maps. Non-template strings and non-string values
// pass through untouched.
func RenderParameters(params map[string]any, executionCtx *models.ExecutionContext) (map[string]any, error) {
	if params == nil {
		return nil, nil
	}

	rendered := make(map[string]any, len(params))

	for key, value := range params {
		switch v := value.(type) {
		case string:
			if !NeedsRendering(v) {
				rendered[key] = v

				continue
			}

			result, err := RenderWithContext(v, executionCtx)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", key, err)
			}

			rendered[key] = result
		case map[string]any:
			nested, err := RenderParameters(v, executionCtx)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", key, err)
			}

			rendered[key] = nested
		default:
			rendered[key] = value
		}
	}

	return rendered, nil
}

// NeedsRendering reports whether a string contains template syntax.
func NeedsRendering(input string) bool {
	return strings.Contains(input, "{{")
}

func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("personalize").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"default": func(fallback, value any) any {
				if value == nil || value == "" {
					return fallback
				}

				return value
			},
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
			"title": func(s string) string {
				if s == "" {
					return s
				}

				return strings.ToUpper(s[:1]) + s[1:]
			},
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	// A rendered value that looks like JSON becomes structured data, so a
	// template can build whole objects for an action parameter.
	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err == nil {
			return jsonResult, nil
		}

		return nil, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}
