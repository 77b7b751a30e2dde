package stats

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// DefaultDerivationScale is the source-stat value at which a derived stat's item
// bonus is doubled.
const DefaultDerivationScale = 250

// Derivation declares the stat a derived stat reads its scaling from.
type Derivation struct {
	Source string  `yaml:"source"`
	Scale  float64 `yaml:"scale,omitempty"`
}

// Definition describes one stat in the catalog.
type Definition struct {
	Key        string      `yaml:"key"`
	LabelZH    string      `yaml:"label_zh"`
	LabelEN    string      `yaml:"label_en"`
	Category   Category    `yaml:"category"`
	Derivation *Derivation `yaml:"derived_from,omitempty"`
}

// LegacyName returns the combined "中文 (English)" display string older data files
// use as the stat name.
func (d Definition) LegacyName() string {
	if d.LabelZH == "" {
		return d.LabelEN
	}
	if d.LabelEN == "" {
		return d.LabelZH
	}
	return d.LabelZH + " (" + d.LabelEN + ")"
}

var labelMatcher = language.NewMatcher([]language.Tag{
	language.SimplifiedChinese,
	language.English,
})

// Label returns the display label for the given language, falling back to
// whichever label is set.
func (d Definition) Label(tag language.Tag) string {
	_, idx, _ := labelMatcher.Match(tag)
	if idx == 0 && d.LabelZH != "" {
		return d.LabelZH
	}
	if d.LabelEN != "" {
		return d.LabelEN
	}
	if d.LabelZH != "" {
		return d.LabelZH
	}
	return d.Key
}

// Catalog is an ordered, validated set of stat definitions.
type Catalog struct {
	defs    []Definition
	index   map[string]int
	aliases map[string]string
}

// NewCatalog validates the definitions and builds a catalog.
// Derived stats must name an existing, non-derived source stat.
func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		defs:    make([]Definition, 0, len(defs)),
		index:   make(map[string]int, len(defs)),
		aliases: make(map[string]string, len(defs)*3),
	}

	for _, def := range defs {
		def.Key = strings.TrimSpace(def.Key)
		if def.Key == "" {
			return nil, fmt.Errorf("stat definition with empty key (label %q)", def.LegacyName())
		}
		if _, dup := c.index[def.Key]; dup {
			return nil, fmt.Errorf("duplicate stat key %q", def.Key)
		}
		if def.Derivation != nil {
			d := *def.Derivation
			if d.Scale == 0 {
				d.Scale = DefaultDerivationScale
			}
			def.Derivation = &d
		}
		c.index[def.Key] = len(c.defs)
		c.defs = append(c.defs, def)
	}

	for _, def := range c.defs {
		switch {
		case def.Category == Derived && def.Derivation == nil:
			return nil, fmt.Errorf("derived stat %q has no source stat", def.Key)
		case def.Category != Derived && def.Derivation != nil:
			return nil, fmt.Errorf("stat %q declares a source but is %s", def.Key, def.Category)
		case def.Derivation != nil:
			src, ok := c.Lookup(def.Derivation.Source)
			if !ok {
				return nil, fmt.Errorf("derived stat %q: unknown source stat %q", def.Key, def.Derivation.Source)
			}
			if src.Category == Derived {
				return nil, fmt.Errorf("derived stat %q: source %q is itself derived", def.Key, src.Key)
			}
		}
	}

	for _, def := range c.defs {
		for _, name := range []string{def.LegacyName(), def.LabelZH, def.LabelEN} {
			if name == "" || name == def.Key {
				continue
			}
			if _, taken := c.aliases[name]; !taken {
				c.aliases[name] = def.Key
			}
		}
	}

	return c, nil
}

// Definitions returns the catalog entries in order.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Len returns the number of stats in the catalog.
func (c *Catalog) Len() int {
	return len(c.defs)
}

// Lookup returns the definition for a canonical key.
func (c *Catalog) Lookup(key string) (Definition, bool) {
	i, ok := c.index[key]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

// Classify returns the category for a stat key. Keys not in the catalog are
// treated as Additive.
func (c *Catalog) Classify(key string) Category {
	if def, ok := c.Lookup(key); ok {
		return def.Category
	}
	return Additive
}

// Canonical maps a key, legacy display name, or label to its canonical key.
func (c *Catalog) Canonical(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if _, ok := c.index[name]; ok {
		return name, true
	}
	if key, ok := c.aliases[name]; ok {
		return key, true
	}
	for alias, key := range c.aliases {
		if strings.EqualFold(alias, name) {
			return key, true
		}
	}
	return "", false
}

// Aliases returns every name a stored record may use for the stat, canonical key first.
func (c *Catalog) Aliases(key string) []string {
	def, ok := c.Lookup(key)
	if !ok {
		return []string{key}
	}
	names := []string{def.Key}
	for _, name := range []string{def.LegacyName(), def.LabelZH, def.LabelEN} {
		if name != "" && c.aliases[name] == def.Key {
			names = append(names, name)
		}
	}
	return names
}

// DefaultCatalog returns the built-in stat catalog.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultDefinitions())
	if err != nil {
		panic(fmt.Sprintf("stats: invalid built-in catalog: %v", err))
	}
	return c
}

func defaultDefinitions() []Definition {
	return []Definition{
		{Key: "hp", LabelZH: "生命值", LabelEN: "HP", Category: Additive},
		{Key: "mp", LabelZH: "魔法值", LabelEN: "MP", Category: Additive},
		{Key: "strength", LabelZH: "力量", LabelEN: "Strength", Category: Additive},
		{Key: "intelligence", LabelZH: "智力", LabelEN: "Intelligence", Category: Additive},
		{Key: "physical_strength", LabelZH: "体力", LabelEN: "Physical Strength", Category: Additive},
		{Key: "spirit", LabelZH: "精神", LabelEN: "Spirit", Category: Additive},
		{Key: "physical_attack", LabelZH: "物理攻击力", LabelEN: "Physical Attack Power", Category: Derived,
			Derivation: &Derivation{Source: "strength", Scale: DefaultDerivationScale}},
		{Key: "magical_attack", LabelZH: "魔法攻击力", LabelEN: "Magical Attack Power", Category: Derived,
			Derivation: &Derivation{Source: "intelligence", Scale: DefaultDerivationScale}},
		{Key: "attack_speed", LabelZH: "攻击速度", LabelEN: "Attack Speed", Category: Percentage},
		{Key: "casting_speed", LabelZH: "施法速度", LabelEN: "Casting Speed", Category: Percentage},
		{Key: "movement_speed", LabelZH: "移动速度", LabelEN: "Movement Speed", Category: Percentage},
		{Key: "fire_enhance", LabelZH: "火属性强化", LabelEN: "Fire Enhance", Category: Additive},
		{Key: "ice_enhance", LabelZH: "冰属性强化", LabelEN: "Ice Enhance", Category: Additive},
		{Key: "light_enhance", LabelZH: "光属性强化", LabelEN: "Light Enhance", Category: Additive},
		{Key: "dark_enhance", LabelZH: "暗属性强化", LabelEN: "Dark Enhance", Category: Additive},
		{Key: "fire_resistance", LabelZH: "火属性抗性", LabelEN: "Fire Resistance", Category: Additive},
		{Key: "ice_resistance", LabelZH: "冰属性抗性", LabelEN: "Ice Resistance", Category: Additive},
		{Key: "light_resistance", LabelZH: "光属性抗性", LabelEN: "Light Resistance", Category: Additive},
		{Key: "dark_resistance", LabelZH: "暗属性抗性", LabelEN: "Dark Resistance", Category: Additive},
	}
}
