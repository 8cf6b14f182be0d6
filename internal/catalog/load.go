package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ─── YAML DOCUMENT SHAPE ─────────────────────────────────────────────────────

// document is the on-disk catalog format:
//
//	version: "2025-03"
//	categories:
//	  - key: academic
//	    label: Académico
//	    indicators:
//	      - name: Bajo rendimiento académico
//	        severity: 3
type document struct {
	Version    string        `yaml:"version"`
	Categories []categoryDoc `yaml:"categories"`
}

type categoryDoc struct {
	Key        Category       `yaml:"key"`
	Label      string         `yaml:"label"`
	Indicators []indicatorDoc `yaml:"indicators"`
}

type indicatorDoc struct {
	Name     string `yaml:"name"`
	Severity int    `yaml:"severity"`
}

// ─── LOADING ─────────────────────────────────────────────────────────────────

// LoadFile reads and validates a YAML catalog from path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Load parses a YAML catalog and validates it. Unknown fields are rejected so
// that a typo in a severity key does not silently yield a zero weight.
func Load(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}
	return build(doc)
}

// build validates doc and turns it into a Catalog. Every category must appear
// exactly once; all problems are reported together.
func build(doc document) (*Catalog, error) {
	var errs []error

	c := &Catalog{
		version:    strings.TrimSpace(doc.Version),
		labels:     make(map[Category]string, len(categoryOrder)),
		indicators: make(map[Category][]Indicator, len(categoryOrder)),
	}
	if c.version == "" {
		errs = append(errs, errors.New("catalog: version must not be empty"))
	}

	for _, cd := range doc.Categories {
		if !cd.Key.Valid() {
			errs = append(errs, fmt.Errorf("catalog: unknown category %q", cd.Key))
			continue
		}
		if _, dup := c.indicators[cd.Key]; dup {
			errs = append(errs, fmt.Errorf("catalog: category %q listed twice", cd.Key))
			continue
		}
		if len(cd.Indicators) == 0 {
			errs = append(errs, fmt.Errorf("catalog: category %q has no indicators", cd.Key))
		}

		seen := make(map[string]struct{}, len(cd.Indicators))
		list := make([]Indicator, 0, len(cd.Indicators))
		for i, id := range cd.Indicators {
			name := strings.TrimSpace(id.Name)
			switch {
			case name == "":
				errs = append(errs, fmt.Errorf("catalog: %s[%d]: name must not be empty", cd.Key, i))
				continue
			case id.Severity < MinSeverity || id.Severity > MaxSeverity:
				errs = append(errs, fmt.Errorf("catalog: %s/%s: severity %d out of range [%d,%d]",
					cd.Key, name, id.Severity, MinSeverity, MaxSeverity))
				continue
			}
			if _, dup := seen[name]; dup {
				errs = append(errs, fmt.Errorf("catalog: %s/%s: duplicate indicator name", cd.Key, name))
				continue
			}
			seen[name] = struct{}{}
			list = append(list, Indicator{Category: cd.Key, Name: name, Severity: id.Severity})
		}

		c.labels[cd.Key] = strings.TrimSpace(cd.Label)
		c.indicators[cd.Key] = list
	}

	for _, cat := range categoryOrder {
		if _, ok := c.indicators[cat]; !ok {
			errs = append(errs, fmt.Errorf("catalog: missing category %q", cat))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}
