// Package catalog holds the immutable reference data the risk wizard walks
// through: five indicator categories, each with an ordered list of named,
// pre-weighted risk indicators.
//
// A Catalog is built once (from the built-in defaults or a YAML document) and
// never mutated afterwards, so it is safe to share between goroutines.
package catalog

import (
	"fmt"
	"slices"
)

// Category is one of the fixed indicator groupings. String values match the
// category column stored with every selected indicator.
type Category string

const (
	Academic   Category = "academic"
	Social     Category = "social"
	Emotional  Category = "emotional"
	Behavioral Category = "behavioral"
	Family     Category = "family"
)

// categoryOrder is the order the wizard presents categories in.
var categoryOrder = []Category{Academic, Social, Emotional, Behavioral, Family}

// Categories returns every category in wizard order.
func Categories() []Category {
	return slices.Clone(categoryOrder)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return slices.Contains(categoryOrder, c)
}

// Severity bounds for a single indicator.
const (
	MinSeverity = 1
	MaxSeverity = 5
)

// Indicator is a named risk signal with a fixed severity weight.
type Indicator struct {
	Category Category `json:"category"`
	Name     string   `json:"name"`
	Severity int      `json:"severity"`
}

// Catalog maps every category to its ordered indicators.
type Catalog struct {
	version    string
	labels     map[Category]string
	indicators map[Category][]Indicator
}

// Version identifies the catalog revision. Assessments record it so a later
// catalog change can be traced.
func (c *Catalog) Version() string { return c.version }

// Label returns the display label of a category, falling back to the key.
func (c *Catalog) Label(cat Category) string {
	if l, ok := c.labels[cat]; ok && l != "" {
		return l
	}
	return string(cat)
}

// Indicators returns the ordered indicator list of cat. The returned slice is
// a copy.
//
// Asking for a category that is not part of the catalog is a programming
// error and panics. Input coming from outside the process should go through
// Lookup instead.
func (c *Catalog) Indicators(cat Category) []Indicator {
	list, ok := c.indicators[cat]
	if !ok {
		panic(fmt.Sprintf("catalog: unknown category %q", cat))
	}
	return slices.Clone(list)
}

// Lookup finds a single indicator by category and name.
func (c *Catalog) Lookup(cat Category, name string) (Indicator, bool) {
	for _, ind := range c.indicators[cat] {
		if ind.Name == name {
			return ind, true
		}
	}
	return Indicator{}, false
}

// Len returns the total number of indicators across all categories.
func (c *Catalog) Len() int {
	n := 0
	for _, list := range c.indicators {
		n += len(list)
	}
	return n
}
