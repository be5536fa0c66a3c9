package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadTargetCatalogValidatesUniqueIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.yaml")
	yamlContent := `
targets:
  - target_id: t1
    source: retailer-a
    kind: json-catalog
    url_template: "https://example.test/api/catalog"
    parser_key: json-catalog
    expected_cadence_seconds: 30
  - target_id: t1
    source: retailer-b
    kind: html-page
    url_template: "https://example.test/page"
    parser_key: html-page
`
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTargetCatalog(path); err == nil {
		t.Fatal("expected duplicate target_id to fail validation")
	}
}

func TestLoadTargetCatalogRequiresParserOrScriptKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.yaml")
	yamlContent := `
targets:
  - target_id: t1
    source: retailer-a
    kind: api-feed
    url_template: "https://example.test/api"
`
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTargetCatalog(path); err == nil {
		t.Fatal("expected missing parser_key/script_key to fail validation")
	}
}

func TestLoadScoringWeightsFallsBackToDefault(t *testing.T) {
	weights, loaded, err := LoadScoringWeights(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded {
		t.Fatal("expected loaded=false for missing file")
	}
	if weights != DefaultScoringWeights() {
		t.Fatal("expected default weights")
	}
}

func TestLoadOrDefaultAppliesEnvOverride(t *testing.T) {
	t.Setenv("SCRAPER_CB_THRESHOLD", "9")
	cfg, _, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ScraperCBThreshold != 9 {
		t.Fatalf("expected env override to apply, got %d", cfg.ScraperCBThreshold)
	}
}
