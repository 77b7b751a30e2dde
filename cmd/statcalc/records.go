package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lawnchairsociety/statcalc/internal/calc"
	"github.com/lawnchairsociety/statcalc/internal/stats"
	"github.com/lawnchairsociety/statcalc/internal/store"
	"github.com/lawnchairsociety/statcalc/internal/text"
)

func newItemCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Show or save stored items",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show INDEX",
		Short: "Show a stored item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			rec, err := svc.Item(args[0])
			if err != nil {
				return a.recordError(err, true, args[0])
			}
			return a.printRecord(rec, true)
		},
	})

	var class string
	var values []string
	save := &cobra.Command{
		Use:     "save INDEX",
		Short:   "Replace a stored item's class and stats",
		Example: "  statcalc item save 1001 --class Warrior --stat hp=50 --stat attack_speed=+5%",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			parsed, err := parseStats(values)
			if err != nil {
				return err
			}
			if _, err := svc.SaveItem(args[0], class, parsed); err != nil {
				return a.recordError(err, true, args[0])
			}
			fmt.Fprintln(a.out, a.text.Get(text.ItemSaved, args[0]))
			return nil
		},
	}
	save.Flags().StringVar(&class, "class", stats.AllClasses, "Class that can use the item")
	save.Flags().StringArrayVarP(&values, "stat", "s", nil, "Stat as name=value (repeatable, order kept)")
	cmd.AddCommand(save)

	return cmd
}

func newCharacterCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "character",
		Short: "Show or save stored characters",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show NAME",
		Short: "Show a stored character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			rec, err := svc.Character(args[0])
			if err != nil {
				return a.recordError(err, false, args[0])
			}
			return a.printRecord(rec, false)
		},
	})

	var values []string
	save := &cobra.Command{
		Use:     "save NAME",
		Short:   "Merge stats into a stored character",
		Example: "  statcalc character save Alice --stat strength=250 --stat hp=1200",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			parsed, err := parseStats(values)
			if err != nil {
				return err
			}
			if _, err := svc.SaveCharacter(args[0], parsed); err != nil {
				return a.recordError(err, false, args[0])
			}
			fmt.Fprintln(a.out, a.text.Get(text.CharacterSaved, args[0]))
			return nil
		},
	}
	save.Flags().StringArrayVarP(&values, "stat", "s", nil, "Stat as name=value (repeatable, order kept)")
	cmd.AddCommand(save)

	return cmd
}

func newCatalogCmd(a *app) *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the known stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			if asYAML {
				data, err := stats.MarshalCatalogYAML(a.catalog)
				if err != nil {
					return err
				}
				_, err = a.out.Write(data)
				return err
			}

			tag := a.text.Language()
			w := newTable(a.out)
			fmt.Fprintf(w, "%s\t%s\t%s\n", a.text.Get(text.HeaderStat), a.text.Get(text.HeaderCategory), "key")
			for _, def := range a.catalog.Definitions() {
				category := def.Category.String()
				if def.Derivation != nil {
					category += " (" + def.Derivation.Source + ")"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", def.Label(tag), category, def.Key)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print the catalog as a YAML file usable as catalog.path")
	return cmd
}

func (a *app) printRecord(rec *store.Record, withClass bool) error {
	w := newTable(a.out)
	if withClass {
		fmt.Fprintf(w, "%s\t%s\n", a.text.Get(text.HeaderItem), rec.ID)
		fmt.Fprintf(w, "%s\t%s\n", a.text.Get(text.HeaderClass), rec.ClassOrDefault())
	} else {
		fmt.Fprintf(w, "%s\t%s\n", a.text.Get(text.HeaderCharacter), rec.ID)
	}
	for _, s := range rec.Stats {
		name := s.Name
		if key, ok := a.catalog.Canonical(s.Name); ok {
			name = a.label(key)
		}
		fmt.Fprintf(w, "%s\t%s\n", name, s.Value)
	}
	return w.Flush()
}

func (a *app) recordError(err error, isItem bool, id string) error {
	switch {
	case errors.Is(err, calc.ErrMissingID) && isItem:
		return errors.New(a.text.Get(text.ItemIDRequired))
	case errors.Is(err, calc.ErrMissingID):
		return errors.New(a.text.Get(text.CharacterNameRequired))
	case isItem:
		return a.userError(err, id, "")
	default:
		return a.userError(err, "", id)
	}
}
