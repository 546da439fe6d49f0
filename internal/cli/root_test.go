package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/yaml.v3"

	"github.com/danpasecinic/keel"
)

type result struct {
	out  string
	err  error
	logs *observer.ObservedLogs
}

func execute(t *testing.T, ctx context.Context, args ...string) result {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	root := NewRootCommand("test", WithLogger(zap.New(core)))

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	return result{out: out.String(), err: err, logs: logs}
}

func run(t *testing.T, args ...string) result {
	t.Helper()
	return execute(t, context.Background(), args...)
}

func TestRootCommand(t *testing.T) {
	t.Parallel()

	root := NewRootCommand("1.2.3")
	assert.Equal(t, "keel", root.Use)
	assert.True(t, root.SilenceUsage)

	names := make(map[string]bool)
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"graph", "explain", "validate", "health", "shutdown", "run"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestVersion(t *testing.T) {
	t.Parallel()

	res := run(t, "--version")
	require.NoError(t, res.err)
	assert.Equal(t, "keel version test\n", res.out)
}

func TestGraphCommand(t *testing.T) {
	t.Parallel()

	path := writeTopology(t, shopTopology)

	res := run(t, "graph", "-f", path, "-o", "tree")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "○ "+NodeKey("api"))
	assert.NotContains(t, res.out, "●")

	res = run(t, "graph", "-f", path, "-o", "tree", "--start")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "● "+NodeKey("api"))

	res = run(t, "graph", "-f", path, "-o", "dot")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "digraph dependencies")
	assert.Contains(t, res.out, `"`+NodeKey("cache")+`" -> "`+NodeKey("db")+`"`)

	res = run(t, "graph", "-f", path)
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "SERVICE")
}

func TestGraphYAML(t *testing.T) {
	t.Parallel()

	res := run(t, "graph", "-f", writeTopology(t, shopTopology), "-o", "yaml", "--start")
	require.NoError(t, res.err)

	var snapshot keel.GraphSnapshot
	require.NoError(t, yaml.Unmarshal([]byte(res.out), &snapshot))
	assert.Equal(t, "shop", snapshot.Container)
	assert.Len(t, snapshot.Services, 3)
	assert.Len(t, snapshot.Edges, 3)
	for _, svc := range snapshot.Services {
		assert.Equal(t, "ready", svc.State)
	}
}

func TestExplainCommand(t *testing.T) {
	t.Parallel()

	path := writeTopology(t, shopTopology)

	res := run(t, "explain", "db", "-f", path)
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "needed by")
	assert.Contains(t, res.out, NodeKey("api"))

	res = run(t, "explain", "api", "-f", path, "-o", "yaml")
	require.NoError(t, res.err)

	var explanation keel.Explanation
	require.NoError(t, yaml.Unmarshal([]byte(res.out), &explanation))
	assert.Equal(t, []string{NodeKey("db"), NodeKey("cache"), NodeKey("api")}, explanation.ResolutionOrder)

	res = run(t, "explain", "nope", "-f", path)
	assert.True(t, keel.IsNotFound(res.err), "expected not found, got %v", res.err)
}

func TestValidateCommand(t *testing.T) {
	t.Parallel()

	res := run(t, "validate", "-f", writeTopology(t, shopTopology))
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "3 services, no problems found")

	broken := writeTopology(t, "services:\n  - name: api\n    depends_on: [db]\n")
	res = run(t, "validate", "-f", broken)
	require.Error(t, res.err)

	var e *keel.Error
	require.True(t, errors.As(res.err, &e))
	assert.Equal(t, keel.ErrCodeValidationFailed, e.Code)
	assert.Equal(t, ExitCodeError, ExitCode(res.err))
}

func TestHealthCommand(t *testing.T) {
	t.Parallel()

	res := run(t, "health", "-f", writeTopology(t, shopTopology))
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "healthy")
	assert.Equal(t, ExitCodeSuccess, ExitCode(res.err))

	sick := writeTopology(t, `
services:
  - name: db
    health: unhealthy
  - name: api
    depends_on: [db]
    health: healthy
`)
	res = run(t, "health", "-f", sick, "-o", "yaml")
	require.Error(t, res.err)
	assert.Equal(t, ExitCodeUnhealthy, ExitCode(res.err))
	assert.Contains(t, res.out, "db reports unhealthy")
	assert.Equal(t, 1, res.logs.FilterMessage("service unhealthy").Len())
}

func TestHealthTimeout(t *testing.T) {
	t.Parallel()

	stuck := writeTopology(t, "services:\n  - name: db\n    health: hang\n")

	start := time.Now()
	res := run(t, "health", "-f", stuck, "--health-timeout", "20ms", "-o", "yaml")
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Error(t, res.err)
	assert.Contains(t, res.out, "timed_out")
	assert.True(t, keel.IsTimeout(res.err), "expected timeout in chain, got %v", res.err)
}

func TestShutdownCommand(t *testing.T) {
	t.Parallel()

	res := run(t, "shutdown", "-f", writeTopology(t, shopTopology), "-o", "yaml")
	require.NoError(t, res.err)

	var rows []shutdownRow
	require.NoError(t, yaml.Unmarshal([]byte(res.out), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, NodeKey("api"), rows[0].Service)
	assert.Equal(t, NodeKey("db"), rows[2].Service)

	failing := writeTopology(t, `
services:
  - name: db
    stop_error: connection pool leaked
  - name: api
    depends_on: [db]
`)
	res = run(t, "shutdown", "-f", failing, "--parallel-shutdown")
	require.Error(t, res.err)
	assert.Equal(t, ExitCodeShutdownFailed, ExitCode(res.err))
	assert.Contains(t, res.out, "connection pool leaked")
	assert.True(t, keel.IsHookFailed(res.err))
}

func TestStartFailureRollsBack(t *testing.T) {
	t.Parallel()

	path := writeTopology(t, `
services:
  - name: db
  - name: api
    depends_on: [db]
    start_error: port in use
`)

	res := run(t, "shutdown", "-f", path)
	require.Error(t, res.err)
	assert.True(t, keel.IsStartupFailed(res.err))
	assert.Contains(t, res.err.Error(), "port in use")

	rollback := res.logs.FilterMessage("rolled back partial start").All()
	require.Len(t, rollback, 1)
	assert.Equal(t, []any{NodeKey("api"), NodeKey("db")}, rollback[0].ContextMap()["stopped"])
}

func TestRunCommandStopsWhenContextEnds(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res := execute(t, ctx, "run", "-f", writeTopology(t, shopTopology))
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "shop started with 3 services")
	assert.Contains(t, res.out, NodeKey("db"))
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("KEEL_FORMAT", "yaml")
	t.Setenv("KEEL_FILE", writeTopology(t, shopTopology))

	res := run(t, "validate")
	require.NoError(t, res.err)

	res = run(t, "shutdown")
	require.NoError(t, res.err)

	var rows []shutdownRow
	require.NoError(t, yaml.Unmarshal([]byte(res.out), &rows))
	assert.Len(t, rows, 3)
}

func TestInvalidConfig(t *testing.T) {
	t.Parallel()

	res := run(t, "graph", "-o", "svg")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "unknown format")

	res = run(t, "graph", "--log-level", "chatty")
	require.Error(t, res.err)
}
