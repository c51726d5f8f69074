// Package template renders dispatcher config strings against lead data.
package template

import (
	"strings"
	"text/template"

	"github.com/leadmill/leadmill/pkg/models"
)

// Render expands {{.lead.*}} and {{.trigger.*}} references in input.
// Strings without template markers are returned unchanged.
func Render(input string, lead models.LeadRecord, triggerData map[string]any) (string, error) {
	if !strings.Contains(input, "{{") {
		return input, nil
	}

	tmpl, err := template.New("config").Option("missingkey=zero").Parse(input)
	if err != nil {
		return "", err
	}

	data := map[string]any{
		"lead":    map[string]any(lead),
		"trigger": triggerData,
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", err
	}

	return out.String(), nil
}
