package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawnchairsociety/statcalc/internal/database"
	"github.com/lawnchairsociety/statcalc/internal/stats"
	"github.com/lawnchairsociety/statcalc/internal/store"
)

type testEnv struct {
	dir        string
	configPath string
	jsonPath   string
	sqlitePath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "statcalc.yaml"),
		jsonPath:   filepath.Join(dir, "config.json"),
		sqlitePath: filepath.Join(dir, "statcalc.db"),
	}
	cfg := "store:\n" +
		"  driver: json\n" +
		"  json_path: " + env.jsonPath + "\n" +
		"  sqlite_path: " + env.sqlitePath + "\n" +
		"language: en\n" +
		"logging:\n" +
		"  level: ERROR\n"
	require.NoError(t, os.WriteFile(env.configPath, []byte(cfg), 0644))
	return env
}

func (e *testEnv) run(args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(args...)
	require.NoError(t, err, out)
	return out
}

func TestCritAndDiff(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, "Critical damage: 170.00\n", env.mustRun(t, "crit", "100", "20"))
	assert.Equal(t, "Damage difference: 20.00%\n", env.mustRun(t, "diff", "120", "100"))
	assert.Equal(t, "Damage difference: ∞\n", env.mustRun(t, "diff", "50", "0"))

	_, err := env.run("crit", "abc", "20")
	require.Error(t, err)
	assert.Equal(t, "Invalid input", err.Error())

	_, err = env.run("crit", "100")
	assert.Error(t, err)
}

func TestLanguageFlag(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, "暴击伤害: 170.00\n", env.mustRun(t, "--lang", "zh-CN", "crit", "100", "20"))

	_, err := env.run("--lang", "fr", "crit", "100", "20")
	assert.Error(t, err)
}

func TestSaveShowAndResolve(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "item", "save", "1001", "--class", "Warrior",
		"--stat", "hp=50", "--stat", "attack_speed=+5%", "--stat", "physical_attack=100")
	assert.Equal(t, "Item 1001 saved\n", out)

	out = env.mustRun(t, "character", "save", "Alice", "--stat", "strength=250")
	assert.Equal(t, "Character Alice saved\n", out)

	data, err := os.ReadFile(env.jsonPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"hp": 50`)
	assert.Contains(t, string(data), `"attack_speed": "+5%"`)
	assert.Contains(t, string(data), `"class": "Warrior"`)

	out = env.mustRun(t, "item", "show", "1001")
	assert.Regexp(t, `Class\s+Warrior`, out)
	assert.Regexp(t, `HP\s+50`, out)

	out = env.mustRun(t, "resolve", "--item", "1001", "--character", "Alice")
	assert.Regexp(t, `HP\s+50\n`, out)
	assert.Regexp(t, `Strength\s+250\n`, out)
	assert.Regexp(t, `Physical Attack Power\s+200\n`, out)
	assert.Regexp(t, `Attack Speed\s+5%\n`, out)

	out = env.mustRun(t, "resolve", "hp", "mp", "--item", "1001", "--char-stat", "hp=100", "--item-stat", "hp=50+10%")
	assert.Regexp(t, `HP\s+165\n`, out)
	assert.Regexp(t, `MP\s+N/A\n`, out)
}

func TestRecordErrors(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run("resolve", "--item", "404")
	require.Error(t, err)
	assert.Equal(t, "Item 404 not found", err.Error())

	_, err = env.run("character", "show", "Nobody")
	require.Error(t, err)
	assert.Equal(t, "Character Nobody not found", err.Error())

	_, err = env.run("item", "save", "", "--stat", "hp=1")
	require.Error(t, err)
	assert.Equal(t, "Please enter an item index", err.Error())

	_, err = env.run("item", "save", "1001", "--stat", "novalue")
	assert.Error(t, err)
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t)

	env.mustRun(t, "item", "save", "1001", "--class", "Warrior", "--stat", "hp=50")
	env.mustRun(t, "item", "save", "1002", "--stat", "mp=5")

	out := env.mustRun(t, "search", "hp", "--class", "Warrior")
	assert.Regexp(t, `1001\s+Warrior`, out)
	assert.NotContains(t, out, "1002")

	out = env.mustRun(t, "search", "--class", "Mage")
	assert.Regexp(t, `1002\s+All`, out)

	assert.Equal(t, "No matching items\n", env.mustRun(t, "search", "hp", "--class", "Mage"))
}

func TestCatalogCommand(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "catalog")
	assert.Regexp(t, `Physical Attack Power\s+derived \(strength\)\s+physical_attack`, out)
	assert.Regexp(t, `Attack Speed\s+percentage\s+attack_speed`, out)

	out = env.mustRun(t, "catalog", "--yaml")
	catalog, err := stats.ParseCatalogYAML([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, stats.DefaultCatalog().Len(), catalog.Len())
}

func TestCustomCatalog(t *testing.T) {
	env := newTestEnv(t)

	catalogPath := filepath.Join(env.dir, "stats.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(`stats:
  - key: luck
    label_en: Luck
    category: additive
`), 0644))
	cfg, err := os.ReadFile(env.configPath)
	require.NoError(t, err)
	cfg = append(cfg, []byte("catalog:\n  path: "+catalogPath+"\n  strict: true\n")...)
	require.NoError(t, os.WriteFile(env.configPath, cfg, 0644))

	out := env.mustRun(t, "resolve", "luck", "--item-stat", "luck=5", "--char-stat", "luck=10")
	assert.Regexp(t, `Luck\s+15\n`, out)

	_, err = env.run("resolve", "hp")
	require.Error(t, err)
	assert.Equal(t, "Unknown stat hp", err.Error())
}

func TestMigrate(t *testing.T) {
	env := newTestEnv(t)

	env.mustRun(t, "item", "save", "1001", "--class", "Warrior", "--stat", "hp=50")
	env.mustRun(t, "character", "save", "Alice", "--stat", "strength=250")

	out := env.mustRun(t, "migrate", "--driver", "sqlite", "--dry-run")
	assert.Contains(t, out, "Would migrate 1 items and 1 characters")
	_, err := os.Stat(env.sqlitePath)
	assert.True(t, os.IsNotExist(err), "dry run must not create the database")

	out = env.mustRun(t, "migrate", "--driver", "sqlite")
	assert.Contains(t, out, "Migrated 1 items and 1 characters")

	db, err := database.Open(env.sqlitePath)
	require.NoError(t, err)
	defer db.Close()

	item, err := db.Item("1001")
	require.NoError(t, err)
	assert.Equal(t, "Warrior", item.Class)
	assert.Equal(t, []store.Stat{{Name: "hp", Value: "50"}}, item.Stats)

	alice, err := db.Character("Alice")
	require.NoError(t, err)
	assert.Equal(t, []store.Stat{{Name: "strength", Value: "250"}}, alice.Stats)

	_, err = env.run("migrate", "--driver", "mysql")
	assert.Error(t, err)
}

func TestMigrateRecordsCountsOnly(t *testing.T) {
	src, err := store.OpenJSON(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	require.NoError(t, src.SaveItem(&store.Record{ID: "1", Stats: []store.Stat{{Name: "hp", Value: "1"}}}))

	items, characters, err := migrateRecords(src, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, items)
	assert.Equal(t, 0, characters)
}

func TestSQLiteDriver(t *testing.T) {
	env := newTestEnv(t)
	cfg, err := os.ReadFile(env.configPath)
	require.NoError(t, err)
	cfg = bytes.Replace(cfg, []byte("driver: json"), []byte("driver: sqlite"), 1)
	require.NoError(t, os.WriteFile(env.configPath, cfg, 0644))

	env.mustRun(t, "item", "save", "1001", "--stat", "hp=50")
	out := env.mustRun(t, "resolve", "hp", "--item", "1001", "--char-stat", "hp=100")
	assert.Regexp(t, `HP\s+150\n`, out)

	_, err = os.Stat(env.jsonPath)
	assert.True(t, os.IsNotExist(err), "sqlite driver must not write the JSON store")
}

func TestServeStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	a := &app{configPath: env.configPath, out: io.Discard}
	require.NoError(t, a.setup())
	a.cfg.Server.Address = "127.0.0.1:0"
	a.cfg.Watch.Enabled = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
	assert.NoError(t, a.close())
}
