package store

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	"golang.org/x/crypto/blake2b"

	"github.com/lawnchairsociety/statcalc/internal/logger"
)

const emptyDocument = `{"items":{},"characters":{}}`

var prettyOptions = &pretty.Options{Width: 80, Indent: "    "}

// JSONStore keeps items and characters in one JSON file. Reads come from
// memory; every save rewrites the file.
type JSONStore struct {
	path string

	mu         sync.RWMutex
	items      []*Record
	characters []*Record
	hash       string
}

// OpenJSON loads the store at path. A missing file is an empty store.
func OpenJSON(path string) (*JSONStore, error) {
	s := &JSONStore{path: path}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file.
func (s *JSONStore) Path() string {
	return s.path
}

// Reload re-reads the file. It reports false when the content hash matches
// what was last loaded or written. The lock is held across read and swap so a
// concurrent save is never replaced by older file contents.
func (s *JSONStore) Reload() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		data = []byte(emptyDocument)
	} else if err != nil {
		return false, fmt.Errorf("read store %s: %w", s.path, err)
	}

	sum := contentHash(data)
	if sum == s.hash {
		return false, nil
	}

	items, characters, err := decodeDocument(data)
	if err != nil {
		return false, fmt.Errorf("parse store %s: %w", s.path, err)
	}

	s.items = items
	s.characters = characters
	s.hash = sum

	logger.Debug("Store loaded", "path", s.path, "items", len(items), "characters", len(characters))
	return true, nil
}

// Item implements Store.
func (s *JSONStore) Item(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec := find(s.items, id); rec != nil {
		return rec.Clone(), nil
	}
	return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
}

// Items implements Store.
func (s *JSONStore) Items() ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.items), nil
}

// Character implements Store.
func (s *JSONStore) Character(name string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec := find(s.characters, name); rec != nil {
		return rec.Clone(), nil
	}
	return nil, fmt.Errorf("character %s: %w", name, ErrNotFound)
}

// Characters implements Store.
func (s *JSONStore) Characters() ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.characters), nil
}

// SaveItem replaces the item's stats. An item without a class is usable by all classes.
func (s *JSONStore) SaveItem(rec *Record) error {
	if rec.ID == "" {
		return fmt.Errorf("save item: empty id")
	}
	saved := NewRecord(rec.ID, rec.Stats)
	saved.Class = rec.Class
	if saved.Class == "" {
		saved.Class = DefaultClass
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := replace(s.items, saved)
	if err := s.writeLocked(items, s.characters); err != nil {
		return err
	}
	s.items = items
	logger.Always("Item saved", "id", saved.ID, "stats", len(saved.Stats))
	return nil
}

// MergeCharacter implements Store.
func (s *JSONStore) MergeCharacter(rec *Record) (*Record, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("save character: empty name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := NewRecord(rec.ID, rec.Stats)
	if existing := find(s.characters, rec.ID); existing != nil {
		merged = existing.Merge(merged)
	}
	characters := replace(s.characters, merged)
	if err := s.writeLocked(s.items, characters); err != nil {
		return nil, err
	}
	s.characters = characters
	logger.Always("Character saved", "name", merged.ID, "stats", len(merged.Stats))
	return merged.Clone(), nil
}

// Close implements Store.
func (s *JSONStore) Close() error {
	return nil
}

// writeLocked encodes and atomically replaces the file. Caller holds s.mu.
func (s *JSONStore) writeLocked(items, characters []*Record) error {
	data, err := encodeDocument(items, characters)
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create store directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write store: %w", err)
	}

	s.hash = contentHash(data)
	return nil
}

func contentHash(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// decodeDocument reads both record layouts: {"id": {stat: value}} and
// {"id": {"class": ..., "stats": {stat: value}}}. Key order is kept.
func decodeDocument(data []byte) (items, characters []*Record, err error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, nil, fmt.Errorf("invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, nil, fmt.Errorf("top level must be an object")
	}

	items, err = decodeSection(root.Get("items"))
	if err != nil {
		return nil, nil, fmt.Errorf("items: %w", err)
	}
	characters, err = decodeSection(root.Get("characters"))
	if err != nil {
		return nil, nil, fmt.Errorf("characters: %w", err)
	}
	return items, characters, nil
}

func decodeSection(section gjson.Result) ([]*Record, error) {
	if !section.Exists() || section.Type == gjson.Null {
		return nil, nil
	}
	if !section.IsObject() {
		return nil, fmt.Errorf("must be an object")
	}

	var records []*Record
	var err error
	section.ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() {
			err = fmt.Errorf("entry %q must be an object", key.String())
			return false
		}
		records = append(records, decodeRecord(key.String(), value))
		return true
	})
	return records, err
}

func decodeRecord(id string, value gjson.Result) *Record {
	rec := &Record{ID: id}
	body, flat := value, true
	if stats := value.Get("stats"); stats.IsObject() {
		rec.Class = value.Get("class").String()
		body, flat = stats, false
	}
	body.ForEach(func(name, v gjson.Result) bool {
		if flat && name.String() == "class" {
			rec.Class = v.String()
			return true
		}
		if s, ok := scalarString(v); ok {
			rec.Stats = append(rec.Stats, Stat{Name: name.String(), Value: s})
		}
		return true
	})
	return rec
}

// scalarString returns a stored value as the string the user typed.
func scalarString(v gjson.Result) (string, bool) {
	switch v.Type {
	case gjson.String:
		return v.Str, true
	case gjson.Number:
		return v.Raw, true
	case gjson.True, gjson.False:
		return v.Raw, true
	default:
		return "", false
	}
}

// encodeDocument writes items in the {class, stats} layout and characters as
// flat stat maps, in record order, indented four spaces.
func encodeDocument(items, characters []*Record) ([]byte, error) {
	itemsJSON := "{}"
	for _, rec := range items {
		body := "{}"
		var err error
		if body, err = sjson.SetRaw(body, "class", quote(rec.ClassOrDefault())); err != nil {
			return nil, err
		}
		stats, err := encodeStats(rec.Stats)
		if err != nil {
			return nil, err
		}
		if body, err = sjson.SetRaw(body, "stats", stats); err != nil {
			return nil, err
		}
		if itemsJSON, err = sjson.SetRaw(itemsJSON, gjson.Escape(rec.ID), body); err != nil {
			return nil, err
		}
	}

	charactersJSON := "{}"
	for _, rec := range characters {
		stats, err := encodeStats(rec.Stats)
		if err != nil {
			return nil, err
		}
		if charactersJSON, err = sjson.SetRaw(charactersJSON, gjson.Escape(rec.ID), stats); err != nil {
			return nil, err
		}
	}

	doc := "{}"
	var err error
	if doc, err = sjson.SetRaw(doc, "items", itemsJSON); err != nil {
		return nil, err
	}
	if doc, err = sjson.SetRaw(doc, "characters", charactersJSON); err != nil {
		return nil, err
	}
	return pretty.PrettyOptions([]byte(doc), prettyOptions), nil
}

func encodeStats(stats []Stat) (string, error) {
	out := "{}"
	for _, s := range stats {
		if s.Name == "" {
			continue
		}
		raw, ok := numericLiteral(s.Value)
		if !ok {
			raw = quote(s.Value)
		}
		var err error
		if out, err = sjson.SetRaw(out, gjson.Escape(s.Name), raw); err != nil {
			return "", fmt.Errorf("stat %q: %w", s.Name, err)
		}
	}
	return out, nil
}

// quote encodes s as a JSON string without escaping non-ASCII or HTML characters.
func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

func find(records []*Record, id string) *Record {
	for _, rec := range records {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

// replace returns a copy of records with rec swapped in at its old position, or appended.
func replace(records []*Record, rec *Record) []*Record {
	out := make([]*Record, 0, len(records)+1)
	found := false
	for _, r := range records {
		if r.ID == rec.ID {
			out = append(out, rec)
			found = true
			continue
		}
		out = append(out, r)
	}
	if !found {
		out = append(out, rec)
	}
	return out
}

func cloneAll(records []*Record) []*Record {
	out := make([]*Record, 0, len(records))
	for _, r := range records {
		out = append(out, r.Clone())
	}
	return out
}
