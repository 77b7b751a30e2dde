package store

import (
	"github.com/lawnchairsociety/statcalc/internal/stats"
)

// missingCharacterStat is what a stored character reports for a stat it lacks.
const missingCharacterStat = "0"

// Layer is a stats.Source that prefers values entered for the current
// calculation over the stored record.
type Layer struct {
	overrides map[string]string
	stored    map[string]string
	hasRecord bool
	missing   string
}

// ItemSource layers overrides over a stored item. rec may be nil.
func ItemSource(catalog *stats.Catalog, rec *Record, overrides map[string]string) *Layer {
	return newLayer(catalog, rec, overrides, "")
}

// CharacterSource layers overrides over a stored character. A stored
// character that lacks a stat reports "0"; no character reports nothing.
func CharacterSource(catalog *stats.Catalog, rec *Record, overrides map[string]string) *Layer {
	return newLayer(catalog, rec, overrides, missingCharacterStat)
}

func newLayer(catalog *stats.Catalog, rec *Record, overrides map[string]string, missing string) *Layer {
	if catalog == nil {
		catalog = stats.DefaultCatalog()
	}
	l := &Layer{
		overrides: canonicalMap(catalog, overrides),
		missing:   missing,
	}
	if rec != nil {
		l.stored = rec.Canonical(catalog)
		l.hasRecord = true
	}
	return l
}

// Value implements stats.Source.
func (l *Layer) Value(key string) string {
	if v, ok := l.overrides[key]; ok {
		return v
	}
	if !l.hasRecord {
		return ""
	}
	if v, ok := l.stored[key]; ok {
		return v
	}
	return l.missing
}

// Keys returns every key with an override or a stored value.
func (l *Layer) Keys() []string {
	seen := make(map[string]bool, len(l.overrides)+len(l.stored))
	var keys []string
	for k := range l.overrides {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range l.stored {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

func canonicalMap(catalog *stats.Catalog, values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for name, v := range values {
		key, ok := catalog.Canonical(name)
		if !ok {
			key = name
		}
		out[key] = v
	}
	return out
}

// Entries converts item records into search entries keyed by canonical stat.
func Entries(catalog *stats.Catalog, items []*Record) []stats.Entry {
	if catalog == nil {
		catalog = stats.DefaultCatalog()
	}
	entries := make([]stats.Entry, 0, len(items))
	for _, rec := range items {
		entries = append(entries, stats.Entry{
			ID:    rec.ID,
			Class: rec.ClassOrDefault(),
			Stats: rec.Canonical(catalog),
		})
	}
	return entries
}

// StatKeys returns the canonical keys of every stat in the catalog order,
// followed by unknown keys in the order given.
func StatKeys(catalog *stats.Catalog, keys []string) []string {
	present := make(map[string]bool, len(keys))
	for _, k := range keys {
		present[k] = true
	}
	var out []string
	for _, def := range catalog.Definitions() {
		if present[def.Key] {
			out = append(out, def.Key)
			delete(present, def.Key)
		}
	}
	for _, k := range keys {
		if present[k] {
			out = append(out, k)
			delete(present, k)
		}
	}
	return out
}
