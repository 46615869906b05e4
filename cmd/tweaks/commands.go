package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/kalambet/tweaks/internal/config"
	"github.com/kalambet/tweaks/internal/persistence"
	"github.com/kalambet/tweaks/internal/tweak"
)

// Replaced in tests.
var (
	setConfigKey   = config.SetKey
	unsetConfigKey = config.UnsetKey
)

// entry is one persisted value in show and get output.
type entry struct {
	Store      string `json:"store" yaml:"store"`
	Collection string `json:"collection" yaml:"collection"`
	Group      string `json:"group" yaml:"group"`
	Name       string `json:"name" yaml:"name"`
	Kind       string `json:"kind" yaml:"kind"`
	Value      any    `json:"value" yaml:"value"`
}

func newEntry(store string, id tweak.ID, v tweak.Value) entry {
	e := entry{Store: store, Kind: v.Kind().Tag(), Value: v.Interface()}
	if c, g, n, err := tweak.ParseID(string(id)); err == nil {
		e.Collection, e.Group, e.Name = c, g, n
	} else {
		e.Name = string(id)
	}
	return e
}

func sortEntries(entries []entry) {
	slices.SortFunc(entries, func(a, b entry) int {
		return strings.Compare(
			a.Store+"\x00"+a.Collection+"\x00"+a.Group+"\x00"+a.Name,
			b.Store+"\x00"+b.Collection+"\x00"+b.Group+"\x00"+b.Name,
		)
	})
}

func writeEntries(w io.Writer, output string, entries []entry) error {
	switch output {
	case "json":
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		store := ""
		for _, e := range entries {
			if e.Store != store {
				store = e.Store
				fmt.Fprintln(w, colorize(colorBold, "["+store+"]"))
			}
			label := strings.Join([]string{e.Collection, e.Group, e.Name}, " / ")
			fmt.Fprintf(w, "  %s %s = %v\n", label, colorize(colorCyan, "("+e.Kind+")"), formatValue(e.Value))
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", output)
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case map[string]float32:
		return fmt.Sprintf("rgba(%g, %g, %g, %g)", x["r"], x["g"], x["b"], x["a"])
	default:
		return fmt.Sprintf("%v", x)
	}
}

func idFromArgs(args []string) (tweak.ID, error) {
	return tweak.NewID(args[0], args[1], args[2])
}

// --- show ---

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show [store...]",
	Short: "Print persisted tweak values",
	Long: `Print persisted tweak values of one or more stores.

Examples:
  tweaks show
  tweaks show default staging --output yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		stores := args
		if len(stores) == 0 {
			stores = []string{storeID(cfg)}
		}

		var mu sync.Mutex
		entries := []entry{}
		var g errgroup.Group
		g.SetLimit(cfg.CLI.LoadConcurrency)
		for _, id := range stores {
			g.Go(func() error {
				p, err := openStore(cfg, id)
				if err != nil {
					return err
				}
				defer p.Close()

				snapshot := p.Snapshot()
				mu.Lock()
				defer mu.Unlock()
				for tid, v := range snapshot {
					entries = append(entries, newEntry(id, tid, v))
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		sortEntries(entries)
		if len(entries) == 0 && showOutput == "text" {
			printWarning("No persisted tweaks in %s", strings.Join(stores, ", "))
			return nil
		}
		return writeEntries(cmd.OutOrStdout(), showOutput, entries)
	},
}

// --- get ---

var getCmd = &cobra.Command{
	Use:   "get <collection> <group> <name>",
	Short: "Print one persisted value",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		id, err := idFromArgs(args)
		if err != nil {
			return err
		}
		p, err := openStore(cfg, storeID(cfg))
		if err != nil {
			return err
		}
		defer p.Close()

		v, ok := p.Get(id)
		if !ok {
			return fmt.Errorf("no persisted value for %s", id)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", v.Kind().Tag(), formatValue(v.Interface()))
		return nil
	},
}

// --- set ---

var setCmd = &cobra.Command{
	Use:   "set <collection> <group> <name> <kind> <value>",
	Short: "Persist a value",
	Long: `Persist a value for a tweak.

Kinds: boolean, integer, cgfloat, double, uicolor, string.

Examples:
  tweaks set App Layout Padding integer 12
  tweaks set App Colors Tint uicolor "#FF8800"
  tweaks set App Animation Speed double 0.35`,
	Args: cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		id, err := idFromArgs(args)
		if err != nil {
			return err
		}
		kind, ok := tweak.KindFromTag(args[3])
		if !ok {
			return fmt.Errorf("unknown kind %q", args[3])
		}
		v, err := tweak.Parse(kind, args[4])
		if err != nil {
			return err
		}

		p, err := openStore(cfg, storeID(cfg))
		if err != nil {
			return err
		}
		p.Set(id, &v)
		p.Close()
		if err := p.Err(); err != nil {
			return fmt.Errorf("saving %s: %w", p.Path(), err)
		}

		printSuccess("Set %s = %s", id, v)
		return nil
	},
}

// --- reset ---

var resetCmd = &cobra.Command{
	Use:   "reset <collection> <group> <name>",
	Short: "Remove a persisted value so the tweak falls back to its default",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		id, err := idFromArgs(args)
		if err != nil {
			return err
		}
		p, err := openStore(cfg, storeID(cfg))
		if err != nil {
			return err
		}
		p.Set(id, nil)
		p.Close()
		if err := p.Err(); err != nil {
			return fmt.Errorf("saving %s: %w", p.Path(), err)
		}

		printSuccess("Reset %s", id)
		return nil
	},
}

// --- clear ---

var clearConfirm bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every persisted value in the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearConfirm {
			return fmt.Errorf("refusing to clear without --confirm")
		}
		cfg, err := setup()
		if err != nil {
			return err
		}
		p, err := openStore(cfg, storeID(cfg))
		if err != nil {
			return err
		}
		n := len(p.Snapshot())
		p.ClearAll()
		p.Close()
		if err := p.Err(); err != nil {
			return fmt.Errorf("saving %s: %w", p.Path(), err)
		}

		printSuccess("Cleared %d values from %s", n, p.Path())
		return nil
	},
}

// --- convert ---

var convertTo string

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Rewrite the store in another format",
	Long: `Rewrite the store in another format. The source file is left in place.

Examples:
  tweaks convert --to json
  tweaks convert --store staging --format json --to archive`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		to, err := persistence.ParseFormat(convertTo)
		if err != nil {
			return err
		}
		from, err := storeFormat(cfg)
		if err != nil {
			return err
		}
		if from == to {
			return fmt.Errorf("store is already in %s format", to)
		}

		id := storeID(cfg)
		printStep("Converting %s from %s to %s", id, from, to)
		src, err := openStore(cfg, id)
		if err != nil {
			return err
		}
		snapshot := src.Snapshot()
		src.Close()

		dst, err := persistence.NewCodec(cfg.StoreDir(), id, to, nil)
		if err != nil {
			return err
		}
		if err := dst.Save(snapshot); err != nil {
			return fmt.Errorf("writing %s: %w", dst.Path(), err)
		}

		printSuccess("Wrote %d values to %s", len(snapshot), dst.Path())
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := setConfigKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := unsetConfigKey(args[0]); err != nil {
			return err
		}

		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "text", "output format: text, json or yaml")
	clearCmd.Flags().BoolVar(&clearConfirm, "confirm", false, "confirm removal of every value")
	convertCmd.Flags().StringVar(&convertTo, "to", "", "target format: archive or json")
	_ = convertCmd.MarkFlagRequired("to")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}
