package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lawnchairsociety/statcalc/internal/calc"
	"github.com/lawnchairsociety/statcalc/internal/stats"
	"github.com/lawnchairsociety/statcalc/internal/store"
	"github.com/lawnchairsociety/statcalc/internal/text"
)

func newResolveCmd(a *app) *cobra.Command {
	var req calc.ResolveRequest

	cmd := &cobra.Command{
		Use:   "resolve [stats...]",
		Short: "Resolve stats from a stored item and character",
		Long: `Resolve the named stats, or every stat the item or character carries.

Values given with --item-stat and --char-stat take precedence over the
stored records. A stored character that lacks a stat counts it as 0.`,
		Example: `  statcalc resolve --item 1001 --character Alice
  statcalc resolve hp attack_speed --item-stat hp=50+10% --char-stat hp=100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			req.Stats = args
			results, err := svc.Resolve(req)
			if err != nil {
				return a.userError(err, req.Item, req.Character)
			}
			return a.printResults(results)
		},
	}

	cmd.Flags().StringVarP(&req.Item, "item", "i", "", "Stored item index")
	cmd.Flags().StringVarP(&req.Character, "character", "n", "", "Stored character name")
	cmd.Flags().StringToStringVar(&req.ItemStats, "item-stat", nil, "Item modifier override, stat=value (repeatable)")
	cmd.Flags().StringToStringVar(&req.CharacterStats, "char-stat", nil, "Character base value override, stat=value (repeatable)")
	return cmd
}

func newCritCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "crit BASE BONUS",
		Short:   "Critical damage: base * (1.5 + bonus/100)",
		Example: "  statcalc crit 100 20",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := stats.CriticalDamage(args[0], args[1])
			if err != nil {
				return a.userError(err, "", "")
			}
			fmt.Fprintf(a.out, "%s: %s\n", a.text.Get(text.CriticalDamage), v)
			return nil
		},
	}
}

func newDiffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "diff DAMAGE1 DAMAGE2",
		Short:   "Percentage by which DAMAGE1 exceeds DAMAGE2",
		Example: "  statcalc diff 120 100",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := stats.DamageDifference(args[0], args[1])
			if err != nil {
				return a.userError(err, "", "")
			}
			fmt.Fprintf(a.out, "%s: %s\n", a.text.Get(text.DamageDifference), v)
			return nil
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	var class string

	cmd := &cobra.Command{
		Use:   "search [stats...]",
		Short: "List stored items usable by a class that carry every named stat",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			found, err := svc.Search(args, class)
			if err != nil {
				return a.userError(err, "", "")
			}
			if len(found) == 0 {
				fmt.Fprintln(a.out, a.text.Get(text.NoResults))
				return nil
			}

			w := newTable(a.out)
			fmt.Fprintf(w, "%s\t%s\n", a.text.Get(text.HeaderItem), a.text.Get(text.HeaderClass))
			for _, e := range found {
				fmt.Fprintf(w, "%s\t%s\n", e.ID, e.Class)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&class, "class", stats.AllClasses, "Class to search for")
	return cmd
}

func (a *app) printResults(results []stats.Resolved) error {
	w := newTable(a.out)
	fmt.Fprintf(w, "%s\t%s\n", a.text.Get(text.HeaderStat), a.text.Get(text.HeaderResult))
	for _, r := range results {
		value := r.Result.String()
		if !r.Result.Available() {
			value = a.text.Get(text.NotAvailable)
		}
		fmt.Fprintf(w, "%s\t%s\n", a.label(r.Key), value)
	}
	return w.Flush()
}

func (a *app) label(key string) string {
	if def, ok := a.catalog.Lookup(key); ok {
		return def.Label(a.text.Language())
	}
	return key
}

// userError replaces known errors with the localized message.
func (a *app) userError(err error, item, character string) error {
	switch {
	case errors.Is(err, stats.ErrInvalidInput):
		return errors.New(a.text.Get(text.InvalidInput))
	case errors.Is(err, calc.ErrItemNotFound):
		return errors.New(a.text.Get(text.ItemNotFound, item))
	case errors.Is(err, calc.ErrCharacterNotFound):
		return errors.New(a.text.Get(text.CharacterNotFound, character))
	case errors.Is(err, calc.ErrUnknownStat):
		_, name, _ := strings.Cut(err.Error(), ": ")
		return errors.New(a.text.Get(text.UnknownStat, name))
	}
	return err
}

// parseStats reads name=value pairs in order.
func parseStats(pairs []string) ([]store.Stat, error) {
	out := make([]store.Stat, 0, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid stat %q, want name=value", p)
		}
		out = append(out, store.Stat{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)})
	}
	return out, nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
