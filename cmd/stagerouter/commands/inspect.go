package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/stagerouter/internal/router/discovery"
	"github.com/dshills/stagerouter/internal/router/luaobserver"
)

func newInspectCmd(e *env) *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "inspect <script.lua>",
		Short: "List the handlers an observer script exposes",
		Long: `Load an observer script and print the (event, stage, member) bindings
discovery finds on it, one per line.

Examples:
  stagerouter inspect observers/counter.lua
  stagerouter inspect observers/audit.lua --prefix On_`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if prefix == "" {
				prefix = e.cfg.Router.DefaultPrefix
			}

			state := luaobserver.NewState()
			defer state.Close()

			tbl, err := state.LoadTable(e.fs, args[0])
			if err != nil {
				return err
			}
			obs, err := discovery.Discover(luaobserver.NewObserver(state, tbl, args[0]), discovery.WithPrefix(prefix))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if obs.Len() == 0 {
				_, err := fmt.Fprintf(out, "no handlers found with prefix %q\n", prefix)
				return err
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "EVENT\tSTAGE\tMEMBER\t")
			for _, b := range obs.Bindings {
				fmt.Fprintf(w, "%s\t%s\t%s\t\n", b.EventName, stageColor(b.Stage.String()).Sprint(b.Stage), b.Member)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "Handler name prefix (default from config)")
	return cmd
}

// stageColor returns the colour used for a stage name.
func stageColor(stage string) *color.Color {
	switch stage {
	case "preview":
		return color.New(color.FgCyan)
	case "committed":
		return color.New(color.FgMagenta)
	default:
		return color.New(color.FgGreen)
	}
}
