package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookroute/internal/config"
	"github.com/ppiankov/hookroute/internal/denylist"
	"github.com/ppiankov/hookroute/internal/hook"
)

var (
	guardDenylist string
	guardTool     string
)

func init() {
	rootCmd.AddCommand(guardCmd)
	guardCmd.Flags().StringVar(&guardDenylist, "denylist", "", "Path to denylist YAML (default: guard.denylist_path from config, else built-in patterns)")
	guardCmd.Flags().StringVar(&guardTool, "tool", "Bash", "Tool name for a resource given as arguments")
}

var guardCmd = &cobra.Command{
	Use:   "guard [resource...]",
	Short: "Check a tool call against the denylist",
	Long: `Without arguments, reads a host hook event on stdin and checks its
command, file path or URL. With arguments, checks them as one resource for
--tool.

Exit 0 when allowed. Exit 2 with the reason on stderr when denied.`,
	RunE: runGuard,
}

func runGuard(cmd *cobra.Command, args []string) error {
	path := guardDenylist
	if path == "" {
		cfg, err := loadConfig(rootDir)
		if err != nil {
			return err
		}
		path = config.Resolve(rootDir, cfg.Guard.DenylistPath)
	}
	dl, err := denylist.Load(path)
	if err != nil {
		return err
	}

	var (
		tool     string
		resource string
	)
	if len(args) > 0 {
		tool, resource = guardTool, strings.Join(args, " ")
	} else {
		ev, err := hook.Parse(os.Stdin)
		if errors.Is(err, hook.ErrEmpty) {
			return nil
		}
		if err != nil {
			return err
		}
		tool, resource = ev.ToolName, ev.Resource()
	}

	return exitWith(guardCheck(dl, tool, resource, os.Stderr))
}

// guardCheck returns the exit code for one tool call and explains denials
// on w.
func guardCheck(dl *denylist.Denylist, tool, resource string, w io.Writer) int {
	m, denied := dl.Check(tool, resource)
	if !denied {
		logger.Debug("guard allowed")
		return exitOK
	}
	out, _ := json.Marshal(m)
	fmt.Fprintf(w, "hookroute guard: denied %s (%s)\n%s\n", m.Category, m.Reason, out)
	return exitHookDeny
}
