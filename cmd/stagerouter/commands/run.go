package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/stagerouter/internal/router"
	"github.com/dshills/stagerouter/internal/scenario"
)

func newRunCmd(e *env) *cobra.Command {
	var (
		showMetrics bool
		quiet       bool
	)

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run a scenario and print the handler trace",
		Long: `Run a YAML or TOML scenario: register its Lua models, attach its
observer scripts, execute its steps and print every handler invocation
followed by the final state of each model.

Examples:
  stagerouter run scenarios/counter.yaml
  stagerouter run scenarios/counter.toml --metrics`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := scenario.Options{
				Logger:        e.logger,
				DefaultPrefix: e.cfg.Router.DefaultPrefix,
			}

			var reg *prometheus.Registry
			if showMetrics || e.cfg.Metrics.Enabled {
				reg = prometheus.NewRegistry()
				m := router.NewMetrics(e.cfg.Metrics.Namespace)
				if err := m.Register(reg); err != nil {
					return err
				}
				opts.Metrics = m
			}

			report, err := scenario.Run(cmd.Context(), e.fs, args[0], opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !quiet {
				printTrace(out, report)
			}
			if err := printModels(out, report); err != nil {
				return err
			}
			if showMetrics {
				if err := printMetrics(out, reg); err != nil {
					return err
				}
			}

			if report.Failed() {
				for _, se := range report.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s step %d (%s): %s\n", color.RedString("failed"), se.Step, se.Kind, se.Message)
				}
				return fmt.Errorf("scenario %s: %d step(s) failed", report.Scenario, len(report.Errors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "Print Prometheus metrics after the run")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Omit the invocation trace")
	return cmd
}

func printTrace(w io.Writer, report *scenario.Report) {
	dim := color.New(color.FgHiBlack)
	for _, inv := range report.Invocations {
		line := fmt.Sprintf("%s %-9s %s/%s %s",
			dim.Sprintf("[%02d]", inv.Step),
			stageColor(inv.Stage).Sprint(inv.Stage),
			inv.Model, inv.Event, inv.Member)
		if inv.Error != "" {
			line += " " + color.RedString("error: %s", inv.Error)
		}
		fmt.Fprintln(w, line)
	}
}

func printModels(w io.Writer, report *scenario.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"models": report.Models}); err != nil {
		return err
	}
	return enc.Close()
}

func printMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
