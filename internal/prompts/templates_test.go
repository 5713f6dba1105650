package prompts

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "templates.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoad_FullFile(t *testing.T) {
	path := writeTemp(t, `
templates:
  - role: Data Engineer
    level: senior
    focus_areas: [pipelines, sql]
categories:
  - Communication Skills
  - Technical Knowledge
`)
	lib, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(lib.Templates) != 1 || lib.Templates[0].Role != "Data Engineer" {
		t.Fatalf("unexpected templates %+v", lib.Templates)
	}
	if len(lib.Categories) != 2 {
		t.Fatalf("unexpected categories %v", lib.Categories)
	}
}

func TestLoad_MissingCategoriesFallBack(t *testing.T) {
	path := writeTemp(t, `
templates:
  - role: Designer
`)
	lib, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(lib.Categories) != len(DefaultCategories) {
		t.Fatalf("expected default categories, got %v", lib.Categories)
	}
}

func TestLoad_Failures(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := Load(writeTemp(t, "not: [valid")); err == nil {
		t.Fatalf("expected error for bad yaml")
	}
	if _, err := Load(writeTemp(t, "templates: []")); err == nil {
		t.Fatalf("expected error for empty template list")
	}
	if _, err := Load(writeTemp(t, "templates:\n  - level: senior")); err == nil {
		t.Fatalf("expected error for template without role")
	}
}

func TestFind_CaseInsensitive(t *testing.T) {
	lib := Defaults()
	if lib.Find("software engineer") == nil {
		t.Fatalf("expected case-insensitive match")
	}
	if lib.Find("astronaut") != nil {
		t.Fatalf("did not expect a match")
	}
}
