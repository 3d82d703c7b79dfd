package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vinayprograms/skillmatch/errors"
	"github.com/vinayprograms/skillmatch/matcher"
)

const testCatalog = `
competencies:
  - {id: go, name: Go programming, category: skill}
  - {id: rust, name: Rust programming, category: skill}
  - {id: sql, name: SQL databases, category: knowledge}
courses:
  - {id: backend, name: Backend engineering, competencies: [go, sql]}
  - {id: systems, name: Systems programming, competencies: [rust]}
people:
  - {id: ada, name: Ada, competencies: [go, rust, sql]}
`

// run executes the CLI against a fresh config and returns stdout.
func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`
[embedding]
provider = "mock"
model = "mock-bow"
dimension = 64

[storage]
path = %q

[log]
level = "error"
`, filepath.Join(dir, "skillmatch.db"))
	cfgPath := filepath.Join(dir, "skillmatch.toml")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	catPath := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(catPath, []byte(testCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	if out, err := run(t, cfgPath, "import", catPath); err != nil {
		t.Fatalf("import: %v\n%s", err, out)
	}
	return cfgPath
}

func TestCLI_ImportBackfillMatch(t *testing.T) {
	cfgPath := setupCLI(t)

	out, err := run(t, cfgPath, "backfill")
	if err != nil {
		t.Fatalf("backfill: %v\n%s", err, out)
	}
	if !strings.Contains(out, "generated 3 of 3") {
		t.Errorf("unexpected backfill output %q", out)
	}

	out, err = run(t, cfgPath, "--json", "match", "courses", "go", "sql")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	var results []matcher.Result
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(results) != 1 || results[0].ID != "backend" || results[0].MatchPercentage != 100 {
		t.Errorf("unexpected match results %+v", results)
	}

	out, err = run(t, cfgPath, "match", "people", "go", "rust", "sql", "--min", "50")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "ada") || !strings.Contains(out, "100%") {
		t.Errorf("unexpected people output %q", out)
	}
}

func TestCLI_SimilarAndSearch(t *testing.T) {
	cfgPath := setupCLI(t)
	if _, err := run(t, cfgPath, "backfill"); err != nil {
		t.Fatal(err)
	}

	// Shared word "programming" puts the two languages close together.
	out, err := run(t, cfgPath, "similar", "go", "--threshold", "0.6")
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if !strings.Contains(out, "rust") {
		t.Errorf("expected rust to be similar to go, got %q", out)
	}

	out, err = run(t, cfgPath, "search", "--mode", "keyword", "databases")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out, "sql") {
		t.Errorf("expected keyword hit, got %q", out)
	}
}

func TestCLI_MatchEmptySelection(t *testing.T) {
	cfgPath := setupCLI(t)
	_, err := run(t, cfgPath, "match", "courses")
	if !errors.Is(err, errors.ErrCodeEmptySelection) {
		t.Errorf("expected EMPTY_SELECTION, got %v", err)
	}
}

func TestCLI_DryRun(t *testing.T) {
	cfgPath := setupCLI(t)
	out, err := run(t, cfgPath, "backfill", "--dry-run")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "3 pending") {
		t.Errorf("unexpected dry-run output %q", out)
	}
}
