// Package cli implements the keel command: it loads a service topology,
// builds a container from it and reports on the graph, health and shutdown.
package cli

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danpasecinic/keel"
)

// Exit codes returned by Execute's caller.
const (
	ExitCodeSuccess        = 0
	ExitCodeError          = 1
	ExitCodeUnhealthy      = 2
	ExitCodeShutdownFailed = 3
)

type app struct {
	cfg    Config
	logger *zap.Logger
	// set by WithLogger; never replaced by the configured one
	injected bool
}

type Option func(*app)

// WithLogger replaces the logger built from --log-level.
func WithLogger(logger *zap.Logger) Option {
	return func(a *app) {
		a.logger = logger
		a.injected = true
	}
}

func NewRootCommand(version string, opts ...Option) *cobra.Command {
	a := &app{}
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:   "keel",
		Short: "Inspect and rehearse a service dependency graph",
		Long: `keel loads a topology of services and their dependencies, builds a
container from it and reports what would happen at runtime: the resolved
graph, the start order, health probe results and the shutdown sequence.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(`{{printf "keel version %s\n" .Version}}`)
	registerFlags(root.PersistentFlags())

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		v, err := newViper(cmd.Flags())
		if err != nil {
			return err
		}
		if a.cfg, err = loadConfig(v); err != nil {
			return err
		}
		if !a.injected {
			if a.logger, err = newLogger(a.cfg.LogLevel); err != nil {
				return err
			}
		}
		return nil
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if a.logger != nil {
			_ = a.logger.Sync()
		}
	}

	root.AddCommand(
		newGraphCmd(a),
		newExplainCmd(a),
		newValidateCmd(a),
		newHealthCmd(a),
		newShutdownCmd(a),
		newRunCmd(a),
	)

	return root
}

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	var e *keel.Error
	switch {
	case err == nil:
		return ExitCodeSuccess
	case errors.As(err, &e) && e.Code == keel.ErrCodeHealthCheckFailed:
		return ExitCodeUnhealthy
	case keel.IsShutdownFailed(err):
		return ExitCodeShutdownFailed
	default:
		return ExitCodeError
	}
}

// container loads the topology and builds it.
func (a *app) container() (*keel.Container, error) {
	t, err := LoadTopology(a.cfg.File)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("topology loaded", zap.String("file", a.cfg.File), zap.Int("services", len(t.Services)))
	return t.Build(a.cfg.containerOptions(a.logger)...)
}

// started builds the topology and starts it. The caller owns shutdown.
func (a *app) started(ctx context.Context) (*keel.Container, error) {
	c, err := a.container()
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		report := c.Shutdown(context.WithoutCancel(ctx))
		a.logger.Warn("rolled back partial start", zap.Strings("stopped", report.Order))
		return nil, err
	}
	return c, nil
}

func writeGraph(w io.Writer, c *keel.Container, format string) error {
	switch format {
	case "tree":
		c.FprintGraph(w)
	case "dot":
		c.FprintGraphDOT(w)
	case "yaml":
		return c.Describe().WriteYAML(w)
	default:
		c.FprintGraphTable(w)
	}
	return nil
}
