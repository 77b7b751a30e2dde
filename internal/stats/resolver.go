package stats

import (
	"strings"

	"github.com/lawnchairsociety/statcalc/internal/logger"
)

// Source supplies raw stat values by canonical key. An empty string means the
// source has nothing for that stat.
type Source interface {
	Value(key string) string
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(key string) string

// Value implements Source.
func (f SourceFunc) Value(key string) string {
	return f(key)
}

// MapSource is a Source backed by a map keyed by canonical stat key.
type MapSource map[string]string

// Value implements Source.
func (m MapSource) Value(key string) string {
	return m[key]
}

var emptySource = MapSource(nil)

// Resolver computes displayed stat values from a character (base value) source
// and an item (modifier) source. It holds no state between calls.
type Resolver struct {
	catalog   *Catalog
	base      Source
	modifiers Source
}

// NewResolver creates a resolver. Nil sources are treated as empty.
func NewResolver(catalog *Catalog, base, modifiers Source) *Resolver {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if base == nil {
		base = emptySource
	}
	if modifiers == nil {
		modifiers = emptySource
	}
	return &Resolver{catalog: catalog, base: base, modifiers: modifiers}
}

// Catalog returns the catalog the resolver classifies against.
func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}

// Resolve returns the displayed result for a stat. It never fails: malformed
// modifiers degrade to the base value, or the unavailable sentinel.
func (r *Resolver) Resolve(key string) Result {
	def, known := r.catalog.Lookup(key)
	if !known {
		logger.Warning("Unknown stat key, treating as additive", "stat", key)
		def = Definition{Key: key, Category: Additive}
	}

	base := parseBaseValue(r.base.Value(key))
	modifier := r.modifiers.Value(key)

	if strings.TrimSpace(modifier) == "" {
		return plainResult(def.Category, base)
	}

	switch def.Category {
	case Percentage:
		return r.resolvePercentage(key, base, modifier)
	case Derived:
		return r.resolveDerived(def, base, modifier)
	default:
		return r.resolveAdditive(key, base, modifier)
	}
}

// Resolved pairs a stat key with its result.
type Resolved struct {
	Key    string
	Result Result
}

// ResolveAll resolves each key in order.
func (r *Resolver) ResolveAll(keys []string) []Resolved {
	out := make([]Resolved, 0, len(keys))
	for _, key := range keys {
		out = append(out, Resolved{Key: key, Result: r.Resolve(key)})
	}
	return out
}

func plainResult(category Category, base number) Result {
	if !base.valid {
		return NoResult()
	}
	if category == Percentage {
		return PercentResult(base.value)
	}
	return intFallback(base)
}

func (r *Resolver) resolveAdditive(key string, base number, modifier string) Result {
	m, err := ParseAdditiveModifier(modifier)
	if err != nil {
		logger.Debug("Additive modifier rejected", "stat", key, "error", err)
		return intFallback(base)
	}
	v, ok := m.Apply(base.value)
	if !ok {
		logger.Debug("Additive result out of range", "stat", key, "modifier", modifier)
		return intFallback(base)
	}
	return IntResult(v)
}

func (r *Resolver) resolvePercentage(key string, base number, modifier string) Result {
	terms, err := ParsePercentTerms(modifier)
	if err != nil {
		logger.Debug("Percentage modifier rejected", "stat", key, "error", err)
		if base.valid {
			return PercentResult(base.value)
		}
		return NoResult()
	}
	total := base.value
	for _, t := range terms {
		total += t
	}
	return PercentResult(total)
}

func (r *Resolver) resolveDerived(def Definition, base number, modifier string) Result {
	sum, err := ParseDerivedSum(modifier)
	if err != nil {
		logger.Debug("Derived modifier rejected", "stat", def.Key, "error", err)
		return intFallback(base)
	}

	source := r.Resolve(def.Derivation.Source)
	sourceTotal, ok := source.Float()
	if !ok {
		logger.Debug("Derived stat source unavailable", "stat", def.Key, "source", def.Derivation.Source)
		return intFallback(base)
	}

	v, ok := truncate((sourceTotal/def.Derivation.Scale)*sum + sum)
	if !ok {
		logger.Debug("Derived result out of range", "stat", def.Key, "modifier", modifier)
		return intFallback(base)
	}
	return IntResult(v)
}

// intFallback is the base value as an int, or unavailable when there is no
// base or it does not fit in an int.
func intFallback(base number) Result {
	if !base.valid {
		return NoResult()
	}
	if v, ok := truncate(base.value); ok {
		return IntResult(v)
	}
	return NoResult()
}
