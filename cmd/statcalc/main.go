// Command statcalc resolves game item and character stats, manages the stored
// records, and serves the calculator over WebSocket.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lawnchairsociety/statcalc/internal/calc"
	"github.com/lawnchairsociety/statcalc/internal/config"
	"github.com/lawnchairsociety/statcalc/internal/database"
	"github.com/lawnchairsociety/statcalc/internal/logger"
	"github.com/lawnchairsociety/statcalc/internal/stats"
	"github.com/lawnchairsociety/statcalc/internal/store"
	"github.com/lawnchairsociety/statcalc/internal/text"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds what every subcommand shares, filled in before the command runs.
type app struct {
	configPath string
	lang       string

	cfg     *config.Config
	text    *text.Text
	catalog *stats.Catalog
	store   store.Store
	svc     *calc.Service
	out     io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "statcalc",
		Short: "Game stat calculator",
		Long: `statcalc combines a character's base stats with an item's modifiers.

Additive stats add the item's flat bonus and percentage terms, percentage
stats sum their terms, and attack stats scale with strength or intelligence.
Items and characters are kept in a JSON file or an SQL database.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "statcalc.yaml", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&a.lang, "lang", "", "Display language: zh-CN or en (overrides config)")

	cmd.AddCommand(
		newResolveCmd(a),
		newCritCmd(a),
		newDiffCmd(a),
		newSearchCmd(a),
		newItemCmd(a),
		newCharacterCmd(a),
		newCatalogCmd(a),
		newServeCmd(a),
		newMigrateCmd(a),
	)
	return cmd
}

// setup loads config, logging, text and the catalog. The store is opened on demand.
func (a *app) setup() error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.lang != "" {
		cfg.Language = a.lang
	}
	a.cfg = cfg

	if err := logger.Initialize(cfg.Logging); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	tag, err := text.ParseLanguage(cfg.Language)
	if err != nil {
		return err
	}
	a.text = text.New(tag)

	a.catalog = stats.DefaultCatalog()
	if cfg.Catalog.Path != "" {
		if a.catalog, err = stats.LoadCatalogFromYAML(cfg.Catalog.Path); err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		logger.Debug("Catalog loaded", "path", cfg.Catalog.Path, "stats", a.catalog.Len())
	}
	return nil
}

// service opens the configured store on first use.
func (a *app) service() (*calc.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	s, err := openStore(a.cfg.Store)
	if err != nil {
		return nil, err
	}
	a.store = s
	a.svc = calc.NewService(s, a.catalog, a.cfg.Catalog.Strict)
	return a.svc, nil
}

func (a *app) close() error {
	var err error
	if a.store != nil {
		err = a.store.Close()
		a.store = nil
		a.svc = nil
	}
	if cerr := logger.Close(); err == nil {
		err = cerr
	}
	return err
}

// openStore opens the record store selected by the driver setting.
func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverJSON:
		s, err := store.OpenJSON(cfg.JSONPath)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		return s, nil
	case config.DriverSQLite, config.DriverPostgres:
		db, err := database.OpenWithConfig(cfg.DatabaseConfig())
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
