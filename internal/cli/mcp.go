package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookroute/internal/config"
	"github.com/ppiankov/hookroute/internal/denylist"
	routemcp "github.com/ppiankov/hookroute/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long:  "Runs hookroute as an MCP (Model Context Protocol) server over stdio.\nExposes tools: hookroute_dispatch, hookroute_classify, hookroute_status, hookroute_guard.",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx, rootDir, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	dl, err := denylist.Load(config.Resolve(rootDir, a.cfg.Guard.DenylistPath))
	if err != nil {
		return fmt.Errorf("failed to load denylist: %w", err)
	}

	srv, err := routemcp.New(routemcp.Config{
		Dispatcher: a.dispatcher,
		Classifier: a.classifier,
		Registry:   a.registry,
		Ledger:     a.ledger,
		Bands:      bandsFrom(a.cfg),
		Ceilings:   ceilingsFrom(a.cfg),
		Denylist:   dl,
		Version:    version,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	fmt.Fprintf(os.Stderr, "hookroute MCP server running on stdio (root %s, %d handlers)\n", rootDir, len(a.registry.List()))
	err = srv.Run(ctx)
	fmt.Fprintln(os.Stderr, "MCP server stopped")
	if ctx.Err() != nil {
		return nil
	}
	return err
}
