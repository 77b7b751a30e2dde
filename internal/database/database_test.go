package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/lawnchairsociety/statcalc/internal/store"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// getPostgresTestConfig returns PostgreSQL config when STATCALC_TEST_POSTGRES is set.
func getPostgresTestConfig() *Config {
	if os.Getenv("STATCALC_TEST_POSTGRES") == "" {
		return nil
	}
	cfg := DefaultPostgresConfig()
	cfg.User = "statcalc"
	cfg.Password = "statcalc"
	cfg.Database = "statcalc_test"
	if host := os.Getenv("STATCALC_TEST_POSTGRES_HOST"); host != "" {
		cfg.Host = host
	}
	if port, err := strconv.Atoi(os.Getenv("STATCALC_TEST_POSTGRES_PORT")); err == nil {
		cfg.Port = port
	}
	cfg.ConnMaxLifetime = time.Minute
	return &Config{Driver: "postgres", Postgres: cfg}
}

// getDualTestDatabases returns SQLite, plus PostgreSQL when configured.
func getDualTestDatabases(t *testing.T) map[string]*Database {
	dbs := map[string]*Database{"sqlite": openTestDB(t)}

	if cfg := getPostgresTestConfig(); cfg != nil {
		pg, err := OpenWithConfig(*cfg)
		if err != nil {
			t.Logf("PostgreSQL not available: %v", err)
			return dbs
		}
		wipe := func() {
			for _, table := range []string{"item_stats", "items", "character_stats", "characters"} {
				pg.db.Exec(fmt.Sprintf("DELETE FROM %s", table))
			}
		}
		wipe()
		t.Cleanup(func() {
			wipe()
			pg.Close()
		})
		dbs["postgres"] = pg
	}
	return dbs
}

func TestOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}

	for _, table := range []string{"items", "item_stats", "characters", "character_stats"} {
		var count int
		if err := db.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			t.Errorf("Failed to query %s table: %v", table, err)
		}
	}
}

func TestOpenTwiceKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := db.SaveItem(&store.Record{ID: "1001", Stats: []store.Stat{{Name: "hp", Value: "10"}}}); err != nil {
		t.Fatalf("SaveItem: %v", err)
	}
	db.Close()

	db, err = Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer db.Close()

	if _, err := db.Item("1001"); err != nil {
		t.Errorf("item lost after reopen: %v", err)
	}
}

func TestOpenWithConfig_UnknownDriver(t *testing.T) {
	if _, err := OpenWithConfig(Config{Driver: "mysql"}); err == nil {
		t.Error("expected error for unknown driver")
	}
	if _, err := OpenWithConfig(Config{Driver: "sqlite"}); err == nil {
		t.Error("expected error for empty sqlite path")
	}
}

func TestDual_SaveAndLoadItem(t *testing.T) {
	for name, db := range getDualTestDatabases(t) {
		t.Run(name, func(t *testing.T) {
			err := db.SaveItem(&store.Record{ID: "1001", Class: "Warrior", Stats: []store.Stat{
				{Name: "生命值 (HP)", Value: "100"},
				{Name: "attack_speed", Value: "5%"},
				{Name: "mp", Value: ""},
			}})
			if err != nil {
				t.Fatalf("SaveItem: %v", err)
			}

			item, err := db.Item("1001")
			if err != nil {
				t.Fatalf("Item: %v", err)
			}
			if item.Class != "Warrior" {
				t.Errorf("Class = %q, want Warrior", item.Class)
			}
			want := []store.Stat{{Name: "生命值 (HP)", Value: "100"}, {Name: "attack_speed", Value: "5%"}}
			if fmt.Sprint(item.Stats) != fmt.Sprint(want) {
				t.Errorf("Stats = %v, want %v", item.Stats, want)
			}

			// Saving again replaces the stats and keeps the item's position.
			if err := db.SaveItem(&store.Record{ID: "1002", Stats: []store.Stat{{Name: "hp", Value: "1"}}}); err != nil {
				t.Fatalf("SaveItem: %v", err)
			}
			if err := db.SaveItem(&store.Record{ID: "1001", Stats: []store.Stat{{Name: "mp", Value: "7"}}}); err != nil {
				t.Fatalf("SaveItem: %v", err)
			}

			items, err := db.Items()
			if err != nil {
				t.Fatalf("Items: %v", err)
			}
			if len(items) != 2 || items[0].ID != "1001" || items[1].ID != "1002" {
				t.Fatalf("Items = %v", items)
			}
			if items[0].Class != store.DefaultClass {
				t.Errorf("Class = %q, want %q", items[0].Class, store.DefaultClass)
			}
			if len(items[0].Stats) != 1 || items[0].Stats[0].Name != "mp" {
				t.Errorf("Stats = %v, want only mp", items[0].Stats)
			}
		})
	}
}

func TestDual_ItemNotFound(t *testing.T) {
	for name, db := range getDualTestDatabases(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := db.Item("missing"); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("Item(missing) error = %v, want ErrNotFound", err)
			}
			if _, err := db.Character("missing"); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("Character(missing) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestDual_MergeCharacter(t *testing.T) {
	for name, db := range getDualTestDatabases(t) {
		t.Run(name, func(t *testing.T) {
			_, err := db.MergeCharacter(&store.Record{ID: "Alice", Stats: []store.Stat{
				{Name: "hp", Value: "200"},
				{Name: "strength", Value: "20"},
			}})
			if err != nil {
				t.Fatalf("MergeCharacter: %v", err)
			}

			merged, err := db.MergeCharacter(&store.Record{ID: "Alice", Stats: []store.Stat{
				{Name: "mp", Value: "50"},
				{Name: "hp", Value: "250"},
			}})
			if err != nil {
				t.Fatalf("MergeCharacter: %v", err)
			}

			want := []store.Stat{
				{Name: "hp", Value: "250"},
				{Name: "strength", Value: "20"},
				{Name: "mp", Value: "50"},
			}
			if fmt.Sprint(merged.Stats) != fmt.Sprint(want) {
				t.Errorf("Stats = %v, want %v", merged.Stats, want)
			}

			if _, err := db.MergeCharacter(&store.Record{ID: "Bob"}); err != nil {
				t.Fatalf("MergeCharacter: %v", err)
			}
			characters, err := db.Characters()
			if err != nil {
				t.Fatalf("Characters: %v", err)
			}
			if len(characters) != 2 || characters[0].ID != "Alice" || characters[1].ID != "Bob" {
				t.Fatalf("Characters = %v", characters)
			}
			if len(characters[1].Stats) != 0 {
				t.Errorf("Bob should have no stats, got %v", characters[1].Stats)
			}
		})
	}
}

func TestSaveRejectsEmptyKeys(t *testing.T) {
	db := openTestDB(t)

	if err := db.SaveItem(&store.Record{}); err == nil {
		t.Error("expected error for empty item id")
	}
	if _, err := db.MergeCharacter(&store.Record{}); err == nil {
		t.Error("expected error for empty character name")
	}
}
