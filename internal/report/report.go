// Package report builds issue-ticket text for a request, from a field template.
package report

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/har-viewer/backend/internal/models"
)

// Prefill keys understood by Render.
const (
	PrefillWhat     = "what"
	PrefillOccurred = "occurred"
	PrefillSamples  = "samples"
)

// Field is one labelled line of a ticket.
type Field struct {
	Label   string `yaml:"label" json:"label"`
	Prefill string `yaml:"prefill,omitempty" json:"prefill,omitempty"`
}

// Template is an ordered set of ticket fields.
type Template struct {
	Name   string  `yaml:"name" json:"name"`
	Fields []Field `yaml:"fields" json:"fields"`
}

// Default returns the built-in ticket template.
func Default() *Template {
	return &Template{
		Name: "Jira Ticket Template",
		Fields: []Field{
			{Label: "Where"},
			{Label: "Company Name"},
			{Label: "Company IDs"},
			{Label: "What", Prefill: PrefillWhat},
			{Label: "Steps Taken to Replicate"},
			{Label: "Browser"},
			{Label: "Version"},
			{Label: "Reason for Priority"},
			{Label: "Date and Time Issue Occurred", Prefill: PrefillOccurred},
			{Label: "User Expected Behavior"},
			{Label: "Samples", Prefill: PrefillSamples},
		},
	}
}

// Load reads a YAML template from path. An empty path returns Default.
func Load(path string) (*Template, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML template.
func Parse(data []byte) (*Template, error) {
	var tpl Template
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	if len(tpl.Fields) == 0 {
		return nil, fmt.Errorf("template has no fields")
	}
	for i, f := range tpl.Fields {
		if strings.TrimSpace(f.Label) == "" {
			return nil, fmt.Errorf("template field %d has no label", i)
		}
	}
	return &tpl, nil
}

// Render produces ticket text. With a record, prefilled fields carry its details.
func Render(tpl *Template, rec *models.TransactionRecord) string {
	if tpl == nil {
		tpl = Default()
	}
	lines := make([]string, 0, len(tpl.Fields))
	for _, f := range tpl.Fields {
		value := prefill(f.Prefill, rec)
		if value == "" {
			lines = append(lines, f.Label+":")
			continue
		}
		lines = append(lines, f.Label+": "+value)
	}
	return strings.Join(lines, "\n\n")
}

func prefill(key string, rec *models.TransactionRecord) string {
	if rec == nil {
		return ""
	}
	switch key {
	case PrefillWhat:
		what := strings.TrimSpace(rec.Method + " " + rec.URL)
		if rec.Status != 0 {
			what += " returned " + strconv.Itoa(rec.Status)
			if rec.StatusText != "" {
				what += " " + rec.StatusText
			}
		}
		return what
	case PrefillOccurred:
		return rec.StartedDateTime
	case PrefillSamples:
		var ids []string
		for _, id := range [...]struct{ name, value string }{
			{"x-trace-id", rec.TraceID},
			{"external-trace-id", rec.ExternalTraceID},
			{"caller-id", rec.CallerID},
		} {
			if id.value != "" {
				ids = append(ids, id.name+"="+id.value)
			}
		}
		return strings.Join(ids, ", ")
	}
	return ""
}
