// Package prompts holds the interview template library: per-role focus areas
// and the assessment categories every interview is graded on.
package prompts

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template configures question generation for one role.
type Template struct {
	Role       string   `yaml:"role"`
	Level      string   `yaml:"level"`
	FocusAreas []string `yaml:"focus_areas"`
}

// Library is the loaded template set plus the assessment categories used for
// scoring. Categories are global so feedback stays comparable across roles.
type Library struct {
	Templates  []Template `yaml:"templates"`
	Categories []string   `yaml:"categories"`
}

// DefaultCategories are the assessment axes used when a template file does
// not override them.
var DefaultCategories = []string{
	"Communication Skills",
	"Technical Knowledge",
	"Problem-Solving",
	"Cultural & Role Fit",
	"Confidence & Clarity",
}

// Defaults returns the built-in library used when no template file is
// configured.
func Defaults() *Library {
	return &Library{
		Templates: []Template{
			{Role: "Software Engineer", Level: "mid", FocusAreas: []string{"system design", "debugging", "collaboration"}},
			{Role: "Product Manager", Level: "mid", FocusAreas: []string{"prioritization", "stakeholder management", "metrics"}},
		},
		Categories: append([]string(nil), DefaultCategories...),
	}
}

// Load reads a template library from a YAML file. Missing categories fall
// back to the defaults; an empty template list is an error.
func Load(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prompts: read %s: %w", path, err)
	}
	var lib Library
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("prompts: parse %s: %w", path, err)
	}
	if len(lib.Templates) == 0 {
		return nil, fmt.Errorf("prompts: %s defines no templates", path)
	}
	for i, tpl := range lib.Templates {
		if strings.TrimSpace(tpl.Role) == "" {
			return nil, fmt.Errorf("prompts: template %d has no role", i)
		}
	}
	if len(lib.Categories) == 0 {
		lib.Categories = append([]string(nil), DefaultCategories...)
	}
	return &lib, nil
}

// Find returns the template for a role, matched case-insensitively, or nil.
func (l *Library) Find(role string) *Template {
	for i := range l.Templates {
		if strings.EqualFold(l.Templates[i].Role, role) {
			return &l.Templates[i]
		}
	}
	return nil
}
