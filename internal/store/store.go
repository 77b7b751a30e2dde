// Package store persists item and character stat records.
package store

import (
	"errors"
	"strconv"
	"strings"

	"github.com/lawnchairsociety/statcalc/internal/stats"
)

// DefaultClass is the class of an item usable by every class.
const DefaultClass = stats.AllClasses

// ErrNotFound is returned when an item or character does not exist.
var ErrNotFound = errors.New("record not found")

// Store is implemented by the JSON file store and the SQL database.
type Store interface {
	Item(id string) (*Record, error)
	Items() ([]*Record, error)
	SaveItem(rec *Record) error
	Character(name string) (*Record, error)
	Characters() ([]*Record, error)
	// MergeCharacter overlays rec's stats onto the stored character and returns the result.
	MergeCharacter(rec *Record) (*Record, error)
	Close() error
}

// Stat is one named value as it was entered or stored.
type Stat struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Record is an item (keyed by index) or a character (keyed by name).
// Stats keep the order they were entered in.
type Record struct {
	ID    string `json:"id"`
	Class string `json:"class,omitempty"`
	Stats []Stat `json:"stats"`
}

// NewRecord builds a record from stats, dropping empty names and values.
func NewRecord(id string, stats []Stat) *Record {
	rec := &Record{ID: id}
	for _, s := range stats {
		if strings.TrimSpace(s.Name) == "" || s.Value == "" {
			continue
		}
		rec.Set(s.Name, s.Value)
	}
	return rec
}

// Get returns the value stored under name.
func (r *Record) Get(name string) (string, bool) {
	for _, s := range r.Stats {
		if s.Name == name {
			return s.Value, true
		}
	}
	return "", false
}

// Set replaces the value stored under name, or appends it.
func (r *Record) Set(name, value string) {
	for i := range r.Stats {
		if r.Stats[i].Name == name {
			r.Stats[i].Value = value
			return
		}
	}
	r.Stats = append(r.Stats, Stat{Name: name, Value: value})
}

// Merge returns a copy of r with other's stats laid over it. Existing stats
// keep their position; new ones are appended.
func (r *Record) Merge(other *Record) *Record {
	out := r.Clone()
	if other == nil {
		return out
	}
	for _, s := range other.Stats {
		out.Set(s.Name, s.Value)
	}
	if other.Class != "" {
		out.Class = other.Class
	}
	return out
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	out := &Record{ID: r.ID, Class: r.Class}
	out.Stats = append([]Stat(nil), r.Stats...)
	return out
}

// ClassOrDefault returns the item's class, or DefaultClass when unset.
func (r *Record) ClassOrDefault() string {
	if r.Class == "" {
		return DefaultClass
	}
	return r.Class
}

// Canonical maps the record's stats to canonical catalog keys. Names the
// catalog does not know are kept as-is. A stat stored under its canonical
// key wins over one stored under an alias.
func (r *Record) Canonical(catalog *stats.Catalog) map[string]string {
	out := make(map[string]string, len(r.Stats))
	exact := make(map[string]bool, len(r.Stats))
	for _, s := range r.Stats {
		key, ok := catalog.Canonical(s.Name)
		if !ok {
			key = s.Name
		}
		isExact := key == s.Name
		if _, seen := out[key]; seen && exact[key] && !isExact {
			continue
		}
		out[key] = s.Value
		exact[key] = exact[key] || isExact
	}
	return out
}

// isDigits reports whether s is a non-empty run of ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// numericLiteral returns the JSON number for a digit-only value.
func numericLiteral(s string) (string, bool) {
	if !isDigits(s) {
		return "", false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatInt(n, 10), true
}
