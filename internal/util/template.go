package util

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// RenderTemplate expands {{ }} placeholders in text against state. Text
// without placeholders is returned unchanged.
func RenderTemplate(text string, state map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tmpl, err := template.New("instruction").Funcs(template.FuncMap{
		"default": func(def any, val any) any {
			if val == nil || val == "" {
				return def
			}
			return val
		},
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"join": func(sep string, items []any) string {
			parts := make([]string, len(items))
			for i, item := range items {
				parts[i] = fmt.Sprintf("%v", item)
			}
			return strings.Join(parts, sep)
		},
	}).Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, state); err != nil {
		return "", err
	}
	return buf.String(), nil
}
