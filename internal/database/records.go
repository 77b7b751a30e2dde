package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lawnchairsociety/statcalc/internal/logger"
	"github.com/lawnchairsociety/statcalc/internal/store"
)

var _ store.Store = (*Database)(nil)

// Queries use ? placeholders; QueryBuilder rewrites them per dialect.
const (
	selectItem      = `SELECT id, class FROM items WHERE item_key = ?`
	selectItemStats = `SELECT name, value FROM item_stats WHERE item_id = ? ORDER BY id`
	updateItemClass = `UPDATE items SET class = ? WHERE id = ?`
	deleteItemStats = `DELETE FROM item_stats WHERE item_id = ?`
	insertItemStat  = `INSERT INTO item_stats (item_id, name, value) VALUES (?, ?, ?)`
	selectCharacter = `SELECT id FROM characters WHERE name = ?`
	selectCharStats = `SELECT name, value FROM character_stats WHERE character_id = ? ORDER BY id`
	upsertCharStat  = `INSERT INTO character_stats (character_id, name, value) VALUES (?, ?, ?) ON CONFLICT (character_id, name) DO UPDATE SET value = excluded.value`
	listItems       = `SELECT i.item_key, i.class, s.name, s.value FROM items i LEFT JOIN item_stats s ON s.item_id = i.id ORDER BY i.id, s.id`
	listCharacters  = `SELECT c.name, s.name, s.value FROM characters c LEFT JOIN character_stats s ON s.character_id = c.id ORDER BY c.id, s.id`
)

// keyTable is a table whose rows are identified by a unique text column.
type keyTable struct {
	table  string
	column string
}

var (
	itemKeys      = keyTable{table: "items", column: "item_key"}
	characterKeys = keyTable{table: "characters", column: "name"}
)

func (k keyTable) selectID() string {
	return `SELECT id FROM ` + k.table + ` WHERE ` + k.column + ` = ?`
}

func (k keyTable) insert() string {
	return `INSERT INTO ` + k.table + ` (` + k.column + `) VALUES (?)`
}

// Item loads an item by its index.
func (d *Database) Item(id string) (*store.Record, error) {
	rec := &store.Record{ID: id}
	var rowID int64
	err := d.db.QueryRow(
		d.qb.Build(selectItem), id,
	).Scan(&rowID, &rec.Class)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	rec.Stats, err = d.stats(selectItemStats, rowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get item stats: %w", err)
	}
	return rec, nil
}

// Items lists every item in insertion order.
func (d *Database) Items() ([]*store.Record, error) {
	rows, err := d.db.Query(listItems)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*store.Record
	for rows.Next() {
		var key, class string
		var name, value sql.NullString
		if err := rows.Scan(&key, &class, &name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		if len(items) == 0 || items[len(items)-1].ID != key {
			items = append(items, &store.Record{ID: key, Class: class})
		}
		if name.Valid {
			cur := items[len(items)-1]
			cur.Stats = append(cur.Stats, store.Stat{Name: name.String, Value: value.String})
		}
	}
	return items, rows.Err()
}

// SaveItem replaces the item's class and stats.
func (d *Database) SaveItem(rec *store.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("save item: empty id")
	}
	class := rec.ClassOrDefault()
	stats := store.NewRecord(rec.ID, rec.Stats).Stats

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rowID, err := d.upsertKey(tx, itemKeys, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}
	if _, err := tx.Exec(d.qb.Build(updateItemClass), class, rowID); err != nil {
		return fmt.Errorf("failed to save item class: %w", err)
	}
	if _, err := tx.Exec(d.qb.Build(deleteItemStats), rowID); err != nil {
		return fmt.Errorf("failed to clear item stats: %w", err)
	}
	insert := d.qb.Build(insertItemStat)
	for _, s := range stats {
		if _, err := tx.Exec(insert, rowID, s.Name, s.Value); err != nil {
			return fmt.Errorf("failed to save item stat %q: %w", s.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit item: %w", err)
	}
	logger.Always("Item saved", "id", rec.ID, "stats", len(stats))
	return nil
}

// Character loads a character by name.
func (d *Database) Character(name string) (*store.Record, error) {
	rec := &store.Record{ID: name}
	var rowID int64
	err := d.db.QueryRow(
		d.qb.Build(selectCharacter), name,
	).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("character %s: %w", name, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get character: %w", err)
	}

	rec.Stats, err = d.stats(selectCharStats, rowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get character stats: %w", err)
	}
	return rec, nil
}

// Characters lists every character in insertion order.
func (d *Database) Characters() ([]*store.Record, error) {
	rows, err := d.db.Query(listCharacters)
	if err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	defer rows.Close()

	var characters []*store.Record
	for rows.Next() {
		var charName string
		var name, value sql.NullString
		if err := rows.Scan(&charName, &name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan character: %w", err)
		}
		if len(characters) == 0 || characters[len(characters)-1].ID != charName {
			characters = append(characters, &store.Record{ID: charName})
		}
		if name.Valid {
			cur := characters[len(characters)-1]
			cur.Stats = append(cur.Stats, store.Stat{Name: name.String, Value: value.String})
		}
	}
	return characters, rows.Err()
}

// MergeCharacter upserts each stat, keeping the position of stats that already exist.
func (d *Database) MergeCharacter(rec *store.Record) (*store.Record, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("save character: empty name")
	}

	tx, err := d.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rowID, err := d.upsertKey(tx, characterKeys, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to save character: %w", err)
	}
	upsert := d.qb.Build(upsertCharStat)
	for _, s := range store.NewRecord(rec.ID, rec.Stats).Stats {
		if _, err := tx.Exec(upsert, rowID, s.Name, s.Value); err != nil {
			return nil, fmt.Errorf("failed to save character stat %q: %w", s.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit character: %w", err)
	}

	merged, err := d.Character(rec.ID)
	if err != nil {
		return nil, err
	}
	logger.Always("Character saved", "name", rec.ID, "stats", len(merged.Stats))
	return merged, nil
}

// upsertKey returns the row id for key in t, inserting the row if needed.
func (d *Database) upsertKey(tx *sql.Tx, t keyTable, key string) (int64, error) {
	var id int64
	err := tx.QueryRow(d.qb.Build(t.selectID()), key).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	query := d.qb.BuildWithReturning(t.insert(), "id")
	if d.dialect.SupportsLastInsertID() {
		result, err := tx.Exec(query, key)
		if err != nil {
			return 0, d.duplicateKey(err, t.table, key)
		}
		return result.LastInsertId()
	}
	if err := tx.QueryRow(query, key).Scan(&id); err != nil {
		return 0, d.duplicateKey(err, t.table, key)
	}
	return id, nil
}

func (d *Database) duplicateKey(err error, table, key string) error {
	if d.dialect.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s %q was created concurrently: %w", table, key, err)
	}
	return err
}

func (d *Database) stats(query string, rowID int64) ([]store.Stat, error) {
	rows, err := d.db.Query(d.qb.Build(query), rowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []store.Stat
	for rows.Next() {
		var s store.Stat
		if err := rows.Scan(&s.Name, &s.Value); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
