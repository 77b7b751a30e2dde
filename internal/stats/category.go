package stats

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category determines how a stat's item modifier is combined with its base value.
type Category int

const (
	// Additive stats combine flat and percentage bonuses: (base+flat)*(1+pct).
	Additive Category = iota
	// Percentage stats are themselves percentages, summed from base and item terms.
	Percentage
	// Derived stats scale their item bonus by another stat's resolved value.
	Derived
)

// String returns the lowercase category name used in YAML catalogs.
func (c Category) String() string {
	switch c {
	case Additive:
		return "additive"
	case Percentage:
		return "percentage"
	case Derived:
		return "derived"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// ParseCategory converts a catalog category name to a Category.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "additive":
		return Additive, nil
	case "percentage", "percent":
		return Percentage, nil
	case "derived", "special":
		return Derived, nil
	default:
		return Additive, fmt.Errorf("unknown stat category %q", s)
	}
}

// UnmarshalYAML lets catalogs spell categories as strings.
func (c *Category) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalYAML writes the category name.
func (c Category) MarshalYAML() (any, error) {
	return c.String(), nil
}
