// Package calc ties the stat engine to a record store. The CLI and the
// WebSocket server both go through a Service.
package calc

import (
	"errors"
	"fmt"

	"github.com/lawnchairsociety/statcalc/internal/logger"
	"github.com/lawnchairsociety/statcalc/internal/stats"
	"github.com/lawnchairsociety/statcalc/internal/store"
)

var (
	// ErrUnknownStat is returned in strict mode for names the catalog does not know.
	ErrUnknownStat = errors.New("unknown stat")

	// ErrMissingID is returned when a save has no item index or character name.
	ErrMissingID = errors.New("missing id")

	// ErrItemNotFound and ErrCharacterNotFound also match store.ErrNotFound.
	ErrItemNotFound      = fmt.Errorf("item %w", store.ErrNotFound)
	ErrCharacterNotFound = fmt.Errorf("character %w", store.ErrNotFound)
)

// Service resolves and searches stats against a store.
type Service struct {
	store   store.Store
	catalog *stats.Catalog
	strict  bool
}

// NewService creates a Service. A nil catalog uses the built-in one.
func NewService(s store.Store, catalog *stats.Catalog, strict bool) *Service {
	if catalog == nil {
		catalog = stats.DefaultCatalog()
	}
	return &Service{store: s, catalog: catalog, strict: strict}
}

// Catalog returns the stat catalog.
func (s *Service) Catalog() *stats.Catalog {
	return s.catalog
}

// Store returns the underlying record store.
func (s *Service) Store() store.Store {
	return s.store
}

// ResolveRequest selects the stored records and the values entered for this
// calculation. Empty Item or Character means no stored record.
type ResolveRequest struct {
	Item           string
	Character      string
	ItemStats      map[string]string
	CharacterStats map[string]string

	// Stats to resolve. Empty resolves every stat either side carries.
	Stats []string
}

// Resolve computes the requested stats. A named record that does not exist
// is reported as ErrItemNotFound or ErrCharacterNotFound.
func (s *Service) Resolve(req ResolveRequest) ([]stats.Resolved, error) {
	if err := s.checkNames(keysOf(req.ItemStats)); err != nil {
		return nil, err
	}
	if err := s.checkNames(keysOf(req.CharacterStats)); err != nil {
		return nil, err
	}
	keys, err := s.canonicalKeys(req.Stats)
	if err != nil {
		return nil, err
	}

	var item, character *store.Record
	if req.Item != "" {
		if item, err = s.Item(req.Item); err != nil {
			return nil, err
		}
	}
	if req.Character != "" {
		if character, err = s.Character(req.Character); err != nil {
			return nil, err
		}
	}

	modifiers := store.ItemSource(s.catalog, item, req.ItemStats)
	base := store.CharacterSource(s.catalog, character, req.CharacterStats)

	if len(keys) == 0 {
		keys = store.StatKeys(s.catalog, append(base.Keys(), modifiers.Keys()...))
	}

	logger.Debug("Resolving stats", "item", req.Item, "character", req.Character, "stats", len(keys))
	return stats.NewResolver(s.catalog, base, modifiers).ResolveAll(keys), nil
}

// Search returns the stored items of class that carry every required stat.
func (s *Service) Search(required []string, class string) ([]stats.Entry, error) {
	keys, err := s.canonicalKeys(required)
	if err != nil {
		return nil, err
	}
	items, err := s.store.Items()
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return stats.SearchItems(store.Entries(s.catalog, items), keys, class), nil
}

// Item loads a stored item.
func (s *Service) Item(id string) (*store.Record, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	rec, err := s.store.Item(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return rec, err
}

// Character loads a stored character.
func (s *Service) Character(name string) (*store.Record, error) {
	if name == "" {
		return nil, ErrMissingID
	}
	rec, err := s.store.Character(name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCharacterNotFound, name)
	}
	return rec, err
}

// SaveItem replaces the item's stats. An empty class is saved as "All".
func (s *Service) SaveItem(id, class string, values []store.Stat) (*store.Record, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	if err := s.checkNames(statNames(values)); err != nil {
		return nil, err
	}
	rec := store.NewRecord(id, values)
	rec.Class = class
	if err := s.store.SaveItem(rec); err != nil {
		return nil, err
	}
	rec.Class = rec.ClassOrDefault()
	return rec, nil
}

// SaveCharacter merges values into the stored character and returns the result.
func (s *Service) SaveCharacter(name string, values []store.Stat) (*store.Record, error) {
	if name == "" {
		return nil, ErrMissingID
	}
	if err := s.checkNames(statNames(values)); err != nil {
		return nil, err
	}
	return s.store.MergeCharacter(store.NewRecord(name, values))
}

func (s *Service) canonicalKeys(names []string) ([]string, error) {
	keys := make([]string, 0, len(names))
	for _, name := range names {
		key, ok := s.catalog.Canonical(name)
		if !ok {
			if s.strict {
				return nil, fmt.Errorf("%w: %s", ErrUnknownStat, name)
			}
			key = name
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *Service) checkNames(names []string) error {
	if !s.strict {
		return nil
	}
	_, err := s.canonicalKeys(names)
	return err
}

func keysOf(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func statNames(values []store.Stat) []string {
	names := make([]string, 0, len(values))
	for _, v := range values {
		names = append(names, v.Name)
	}
	return names
}
