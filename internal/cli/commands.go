package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/danpasecinic/keel"
)

func newGraphCmd(a *app) *cobra.Command {
	var start bool

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the dependency graph",
		Long: `Print the dependency graph of the topology. Without --start only
declared dependencies are shown and every service is still registered.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var c *keel.Container
			var err error
			if start {
				c, err = a.started(ctx)
			} else {
				c, err = a.container()
			}
			if err != nil {
				return err
			}
			defer c.Shutdown(context.WithoutCancel(ctx))

			return writeGraph(cmd.OutOrStdout(), c, a.cfg.Format)
		},
	}
	cmd.Flags().BoolVar(&start, "start", false, "start the container before printing")

	return cmd
}

func newExplainCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "explain SERVICE",
		Short: "Show where one service sits in the graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c, err := a.started(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.WithoutCancel(ctx))

			explanation, err := keel.ExplainNamed[*Node](c, args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if a.cfg.Format == "yaml" {
				return encodeYAML(w, explanation)
			}

			t := newTable(w)
			t.AppendRows([]table.Row{
				{"service", explanation.Key},
				{"state", explanation.State},
				{"constructed", humanize.Time(explanation.ConstructedAt)},
				{"depends on", strings.Join(explanation.Dependencies, "\n")},
				{"needed by", strings.Join(explanation.Dependents, "\n")},
				{"resolution order", strings.Join(explanation.ResolutionOrder, "\n")},
			})
			t.Render()
			return nil
		},
	}
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that every declared dependency has a provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.container()
			if err != nil {
				return err
			}
			if err := c.Validate(); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d services, no problems found\n", a.cfg.File, c.Size())
			return nil
		},
	}
}

type healthRow struct {
	Service string `yaml:"service"`
	Status  string `yaml:"status"`
	Latency string `yaml:"latency"`
	Error   string `yaml:"error,omitempty"`
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Start the topology and run every health probe once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c, err := a.started(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.WithoutCancel(ctx))

			reports := c.Health(ctx)
			if err := writeHealth(cmd.OutOrStdout(), reports, a.cfg.Format); err != nil {
				return err
			}

			for _, r := range reports {
				if r.Failed() {
					a.logger.Warn("service unhealthy", zap.String("service", r.Name), zap.Error(r.Error))
					return &keel.Error{
						Code:    keel.ErrCodeHealthCheckFailed,
						Message: "health check failed",
						Service: r.Name,
						Cause:   r.Error,
					}
				}
			}
			return nil
		},
	}
}

func writeHealth(w io.Writer, reports []keel.HealthReport, format string) error {
	if format != "yaml" {
		keel.FprintHealthTable(w, reports)
		return nil
	}

	rows := make([]healthRow, 0, len(reports))
	for _, r := range reports {
		row := healthRow{Service: r.Name, Status: string(r.Status), Latency: r.Latency.String()}
		if r.Error != nil {
			row.Error = r.Error.Error()
		}
		rows = append(rows, row)
	}
	return encodeYAML(w, rows)
}

type shutdownRow struct {
	Service string `yaml:"service"`
	Error   string `yaml:"error,omitempty"`
}

func newShutdownCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "Start the topology, then shut it down and report every step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c, err := a.started(ctx)
			if err != nil {
				return err
			}

			report := c.Shutdown(ctx)
			if err := writeShutdown(cmd.OutOrStdout(), report, a.cfg.Format); err != nil {
				return err
			}
			return shutdownError(c, report)
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the topology and hold it until SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c, err := a.started(ctx)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			start := time.Now()
			_, _ = fmt.Fprintf(w, "%s started with %d services, waiting for a signal\n", c.Name(), c.Size())

			sig, report := c.ShutdownOnSignals(ctx)
			if sig != nil {
				a.logger.Info("signal received", zap.Stringer("signal", sig))
			}
			_, _ = fmt.Fprintf(w, "stopping after %s\n", humanize.RelTime(start, time.Now(), "", ""))

			if err := writeShutdown(w, report, a.cfg.Format); err != nil {
				return err
			}
			return shutdownError(c, report)
		},
	}
}

func writeShutdown(w io.Writer, report *keel.ShutdownReport, format string) error {
	if format != "yaml" {
		report.Fprint(w)
		return nil
	}

	rows := make([]shutdownRow, 0, len(report.Order))
	for _, key := range report.Order {
		row := shutdownRow{Service: key}
		if err := report.Errors[key]; err != nil {
			row.Error = err.Error()
		}
		rows = append(rows, row)
	}
	return encodeYAML(w, rows)
}

func shutdownError(c *keel.Container, report *keel.ShutdownReport) error {
	err := report.Err()
	if err == nil {
		return nil
	}
	return &keel.Error{
		Code:    keel.ErrCodeShutdownFailed,
		Message: "failed to stop " + c.Name(),
		Cause:   err,
	}
}

func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}
