package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/hookroute/internal/config"
	"github.com/ppiankov/hookroute/internal/denylist"
	"github.com/ppiankov/hookroute/internal/fsutil"
	"github.com/ppiankov/hookroute/internal/notify"
	"github.com/ppiankov/hookroute/internal/registry"
)

var (
	initForce      bool
	initNoHandlers bool
)

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config files")
	initCmd.Flags().BoolVar(&initNoHandlers, "no-handlers", false, "Do not scaffold the built-in handler descriptors")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap hookroute state in the project root",
	Long: `Creates <root>/.hookroute/ with a default config.yaml and denylist.yaml,
scaffolds one descriptor per built-in handler under handlers/primary and
handlers/secondary, and writes the handler catalog.

Existing files are kept unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	return initRoot(rootDir, os.Stdout)
}

func initRoot(root string, w io.Writer) error {
	stateDir := filepath.Join(root, config.StateDir)
	var created []string

	configFile := filepath.Join(stateDir, config.FileName)
	content, err := config.DefaultYAML()
	if err != nil {
		return err
	}
	if wrote, err := writeIfMissing(configFile, content); err != nil {
		return err
	} else if wrote {
		created = append(created, configFile)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	denylistFile := filepath.Join(stateDir, "denylist.yaml")
	dlContent, err := defaultDenylistYAML()
	if err != nil {
		return fmt.Errorf("generate default denylist: %w", err)
	}
	if wrote, err := writeIfMissing(denylistFile, dlContent); err != nil {
		return err
	} else if wrote {
		created = append(created, denylistFile)
	}

	rc := registryConfig(root, cfg)
	if !initNoHandlers {
		paths, err := registry.Scaffold(rc, registry.Builtin())
		if err != nil {
			return fmt.Errorf("scaffold handlers: %w", err)
		}
		created = append(created, paths...)
	}
	if _, err := registry.Build(rc, logger); err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}

	firstRun, err := fsutil.CreateMarker(config.Resolve(root, cfg.Notify.MarkerPath))
	if err != nil {
		return fmt.Errorf("write first-run marker: %w", err)
	}
	if n := notify.New(cfg.Notify.Webhooks, cfg.Notify.Timeout, logger); n != nil {
		n.Initialized(firstRun, root)
		n.Wait(notifyDrain)
	}

	fmt.Fprintln(w, "hookroute init complete.")
	fmt.Fprintln(w)
	if len(created) > 0 {
		fmt.Fprintf(w, "Created %d files under %s\n", len(created), stateDir)
	} else {
		fmt.Fprintln(w, "All files already exist (use --force to overwrite).")
	}
	fmt.Fprintf(w, "Catalog: %s\n", rc.CatalogPath)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Route a delegation hook through hookroute:")
	fmt.Fprintln(w, "  hookroute hook < event.json")
	fmt.Fprintln(w, "Try it by hand:")
	fmt.Fprintln(w, `  hookroute dispatch --description "fix ci pipeline workflow"`)
	return nil
}

// writeIfMissing writes content to path if it doesn't exist or --force is set.
// Returns true if the file was written.
func writeIfMissing(path string, content []byte) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}
	if err := fsutil.WriteAtomic(path, content, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

// defaultDenylistYAML generates a commented default denylist.yaml.
func defaultDenylistYAML() ([]byte, error) {
	data, err := yaml.Marshal(denylist.DefaultPatterns)
	if err != nil {
		return nil, err
	}
	header := "# hookroute guard denylist: irreversible actions.\n" +
		"# commands: regular expressions (case-insensitive).\n" +
		"# files and urls: globs, ** crosses directories.\n" +
		"# Set extend_defaults: true to add to the built-in patterns instead of\n" +
		"# replacing them.\n"
	return append([]byte(header), data...), nil
}
