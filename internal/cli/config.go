package cli

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/danpasecinic/keel"
)

const EnvPrefix = "KEEL"

var formats = []string{"table", "tree", "dot", "yaml"}

// Config is resolved from flags, KEEL_* environment variables and their
// defaults, in that order of precedence.
type Config struct {
	File             string        `mapstructure:"file"`
	Format           string        `mapstructure:"format"`
	LogLevel         string        `mapstructure:"log-level"`
	HealthTimeout    time.Duration `mapstructure:"health-timeout"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown-timeout"`
	ParallelShutdown bool          `mapstructure:"parallel-shutdown"`
}

func registerFlags(flags *pflag.FlagSet) {
	flags.StringP("file", "f", "keel.yaml", "topology file")
	flags.StringP("format", "o", "table", "output format (table, tree, dot, yaml)")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.Duration("health-timeout", keel.DefaultHealthCheckTimeout, "per-probe health check timeout")
	flags.Duration("shutdown-timeout", 30*time.Second, "bound on the whole shutdown sequence")
	flags.Bool("parallel-shutdown", false, "stop services of the same dependency level concurrently")
}

func newViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return nil, err
	}
	return v, nil
}

func loadConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	if !slices.Contains(formats, cfg.Format) {
		return cfg, fmt.Errorf("unknown format %q, want one of %s", cfg.Format, strings.Join(formats, ", "))
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (cfg Config) containerOptions(logger *zap.Logger) []keel.Option {
	opts := []keel.Option{
		keel.WithZapLogger(logger),
		keel.WithHealthCheckTimeout(cfg.HealthTimeout),
		keel.WithShutdownTimeout(cfg.ShutdownTimeout),
	}
	if cfg.ParallelShutdown {
		opts = append(opts, keel.WithParallelShutdown())
	}
	return opts
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.DisableStacktrace = true
	return zc.Build()
}
