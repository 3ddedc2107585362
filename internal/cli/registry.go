package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/hookroute/internal/registry"
)

var (
	registryJSON     bool
	registryDebounce = registry.DefaultDebounce
)

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryListCmd)
	registryCmd.AddCommand(registryBuildCmd)
	registryCmd.AddCommand(registryWatchCmd)
	registryListCmd.Flags().BoolVar(&registryJSON, "json", false, "Output JSON")
	registryWatchCmd.Flags().DurationVar(&registryDebounce, "debounce", registry.DefaultDebounce, "Quiet period before a rebuild")
}

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect and build the handler catalog",
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known handlers",
	Args:  cobra.NoArgs,
	RunE:  runRegistryList,
}

var registryBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Scan handler directories and write the catalog",
	Args:  cobra.NoArgs,
	RunE:  runRegistryBuild,
}

var registryWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild the catalog whenever a handler descriptor changes",
	Args:  cobra.NoArgs,
	RunE:  runRegistryWatch,
}

func runRegistryList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(rootDir)
	if err != nil {
		return err
	}
	reg, err := registry.Load(registryConfig(rootDir, cfg), logger)
	if err != nil {
		return err
	}
	handlers := reg.List()

	if registryJSON {
		out, _ := json.MarshalIndent(handlers, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	if len(handlers) == 0 {
		fmt.Fprintln(os.Stderr, "no handlers found; run 'hookroute init' to scaffold the built-in set")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTIER\tSPAWN\tDESCRIPTION")
	for _, h := range handlers {
		spawn := "-"
		if h.MaySpawn() {
			spawn = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", h.Name, h.Tier, spawn, h.Description)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d handlers (source: %s)\n", len(handlers), reg.Source())
	return nil
}

func runRegistryBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(rootDir)
	if err != nil {
		return err
	}
	rc := registryConfig(rootDir, cfg)
	cat, err := registry.Build(rc, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s: %d handlers, fingerprint %s\n", rc.CatalogPath, len(cat.Handlers), cat.Fingerprint)
	return nil
}

func runRegistryWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(rootDir)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	rc := registryConfig(rootDir, cfg)
	fmt.Fprintf(os.Stderr, "watching %s and %s\n", rc.PrimaryDir, rc.SecondaryDir)
	return registry.Watch(ctx, rc, registryDebounce, logger, func(cat *registry.Catalog, err error) {
		if err != nil {
			logger.Error("catalog rebuild failed", zap.Error(err))
			return
		}
		fmt.Fprintf(os.Stderr, "catalog rebuilt: %d handlers\n", len(cat.Handlers))
	})
}
