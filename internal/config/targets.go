// Package config loads the target catalog, scoring model, and channel
// credentials that configure the ingestion and fanout pipeline.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/solewatch/releasecore/internal/schema"
)

// TargetSpec is the YAML shape of one target catalog entry (spec.md §6:
// "each target is described by {target_id, kind, url_template,
// parser_key, expected_cadence_seconds, proxy_pool_id?}").
type TargetSpec struct {
	TargetID               string            `yaml:"target_id"`
	Source                 string            `yaml:"source"`
	Kind                   string            `yaml:"kind"`
	URLTemplate            string            `yaml:"url_template"`
	ParserKey              string            `yaml:"parser_key"`
	ScriptKey              string            `yaml:"script_key"`
	ExpectedCadenceSeconds int               `yaml:"expected_cadence_seconds"`
	ProxyPoolID            string            `yaml:"proxy_pool_id"`
	Headers                map[string]string `yaml:"headers"`
}

// TargetCatalog is the YAML document root for the target catalog file.
type TargetCatalog struct {
	Targets []TargetSpec `yaml:"targets"`
}

// LoadTargetCatalog reads and validates a target catalog from path. An
// empty path falls back to TARGET_CATALOG_PATH, then config/targets.yaml.
func LoadTargetCatalog(path string) ([]schema.Target, error) {
	path = resolvePath(path, "TARGET_CATALOG_PATH", "config/targets.yaml")

	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var catalog TargetCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("unmarshal target catalog: %w", err)
	}

	if err := catalog.validate(); err != nil {
		return nil, err
	}

	targets := make([]schema.Target, 0, len(catalog.Targets))
	for _, spec := range catalog.Targets {
		targets = append(targets, schema.Target{
			TargetID:               spec.TargetID,
			Source:                 spec.Source,
			Kind:                   schema.TargetKind(spec.Kind),
			URLTemplate:            spec.URLTemplate,
			ParserKey:              spec.ParserKey,
			ScriptKey:              spec.ScriptKey,
			ExpectedCadenceSeconds: spec.ExpectedCadenceSeconds,
			ProxyPoolID:            spec.ProxyPoolID,
			Headers:                spec.Headers,
		})
	}
	return targets, nil
}

func (c TargetCatalog) validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("target catalog requires at least one target")
	}
	seen := make(map[string]struct{}, len(c.Targets))
	for i, t := range c.Targets {
		if strings.TrimSpace(t.TargetID) == "" {
			return fmt.Errorf("targets[%d]: target_id required", i)
		}
		if _, dup := seen[t.TargetID]; dup {
			return fmt.Errorf("targets[%d]: duplicate target_id %q", i, t.TargetID)
		}
		seen[t.TargetID] = struct{}{}
		if strings.TrimSpace(t.Source) == "" {
			return fmt.Errorf("targets[%d]: source required", i)
		}
		switch schema.TargetKind(t.Kind) {
		case schema.TargetKindJSONCatalog, schema.TargetKindHTMLPage, schema.TargetKindAPIFeed:
		default:
			return fmt.Errorf("targets[%d]: unknown kind %q", i, t.Kind)
		}
		if strings.TrimSpace(t.URLTemplate) == "" {
			return fmt.Errorf("targets[%d]: url_template required", i)
		}
		if strings.TrimSpace(t.ParserKey) == "" && strings.TrimSpace(t.ScriptKey) == "" {
			return fmt.Errorf("targets[%d]: parser_key or script_key required", i)
		}
	}
	return nil
}

func resolvePath(path, envVar, fallback string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(envVar))
	}
	if path == "" {
		path = fallback
	}
	return path
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
