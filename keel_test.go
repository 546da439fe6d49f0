package keel_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danpasecinic/keel"
)

type Config struct {
	Port int
	Host string
}

type Database struct {
	Config *Config
	Name   string
}

type Cache struct {
	DB *Database
}

type Server struct {
	DB     *Database
	Config *Config
}

func TestNew(t *testing.T) {
	t.Parallel()

	c := keel.New()
	if c == nil {
		t.Fatal("New() returned nil")
	}
	if c.ID() == "" {
		t.Error("expected a container ID")
	}
	if c.Name() != c.ID() {
		t.Errorf("unnamed container should use its ID, got %q", c.Name())
	}
}

func TestNewWithOptions(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	c := keel.New(keel.WithLogger(logger), keel.WithContainerName("api"))
	if c.Name() != "api" {
		t.Errorf("expected name api, got %q", c.Name())
	}

	other := keel.New()
	if c.ID() == other.ID() {
		t.Error("containers should have distinct IDs")
	}
}

func TestProvideAndInvoke(t *testing.T) {
	t.Parallel()

	c := keel.New()

	err := keel.Provide(
		c, func(ctx context.Context, r keel.Resolver) (*Config, error) {
			return &Config{Port: 8080, Host: "localhost"}, nil
		},
	)
	if err != nil {
		t.Fatalf("Provide failed: %v", err)
	}

	cfg, err := keel.Invoke[*Config](c)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.Host != "localhost" {
		t.Errorf("expected host localhost, got %s", cfg.Host)
	}

	again := keel.MustInvoke[*Config](c)
	if again != cfg {
		t.Error("expected the same instance on every Invoke")
	}
}

func TestProvideValue(t *testing.T) {
	t.Parallel()

	c := keel.New()

	config := &Config{Port: 3000, Host: "0.0.0.0"}
	if err := keel.ProvideValue(c, config); err != nil {
		t.Fatalf("ProvideValue failed: %v", err)
	}

	cfg, err := keel.Invoke[*Config](c)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if cfg != config {
		t.Error("expected same instance")
	}
}

func TestDuplicateProvide(t *testing.T) {
	t.Parallel()

	c := keel.New()
	_ = keel.ProvideValue(c, &Config{})

	err := keel.ProvideValue(c, &Config{})
	if !errors.Is(err, keel.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if !keel.IsDuplicateService(err) {
		t.Error("IsDuplicateService should match")
	}
}

func TestDependencyChain(t *testing.T) {
	t.Parallel()

	c := keel.New()

	_ = keel.ProvideValue(c, &Config{Port: 5432, Host: "db.local"})
	_ = keel.Provide(
		c, func(ctx context.Context, r keel.Resolver) (*Database, error) {
			cfg, err := keel.InvokeCtx[*Config](ctx, r)
			if err != nil {
				return nil, err
			}
			return &Database{Config: cfg, Name: "testdb"}, nil
		},
	)
	_ = keel.Provide(
		c, func(ctx context.Context, r keel.Resolver) (*Server, error) {
			db := keel.MustInvokeCtx[*Database](ctx, r)
			cfg := keel.MustInvokeCtx[*Config](ctx, r)
			return &Server{DB: db, Config: cfg}, nil
		},
	)

	server, err := keel.Invoke[*Server](c)
	if err != nil {
		t.Fatalf("Invoke for Server failed: %v", err)
	}

	if server.DB == nil || server.Config == nil {
		t.Fatal("server dependencies should be set")
	}
	if server.DB.Config != server.Config {
		t.Error("Database and Server should share the same Config")
	}

	explanation, err := keel.Explain[*Server](c)
	if err != nil {
		t.Fatalf("Explain failed: %v", err)
	}
	want := []string{keel.Key[*Database](), keel.Key[*Config]()}
	if !slices.Equal(explanation.Dependencies, want) {
		t.Errorf("expected recorded dependencies %v, got %v", want, explanation.Dependencies)
	}
}

func TestNamedServices(t *testing.T) {
	t.Parallel()

	c := keel.New()

	_ = keel.ProvideNamed(
		c, "primary", func(ctx context.Context, r keel.Resolver) (*Database, error) {
			return &Database{Name: "primary"}, nil
		},
	)
	_ = keel.ProvideNamedValue(c, "replica", &Database{Name: "replica"})

	primary, err := keel.InvokeNamed[*Database](c, "primary")
	if err != nil {
		t.Fatalf("InvokeNamed for primary failed: %v", err)
	}
	replica := keel.MustInvokeNamed[*Database](c, "replica")

	if primary.Name != "primary" {
		t.Errorf("expected 'primary', got %s", primary.Name)
	}
	if replica.Name != "replica" {
		t.Errorf("expected 'replica', got %s", replica.Name)
	}

	if keel.Has[*Database](c) {
		t.Error("unnamed *Database should not be registered")
	}
	if !keel.HasNamed[*Database](c, "primary") {
		t.Error("expected named *Database")
	}
}

func TestMustInvokePanics(t *testing.T) {
	t.Parallel()

	c := keel.New()

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected MustInvoke to panic")
		}
	}()

	keel.MustInvoke[*Config](c)
}

func TestTryInvoke(t *testing.T) {
	t.Parallel()

	c := keel.New()

	if _, ok := keel.TryInvoke[*Config](c); ok {
		t.Error("expected TryInvoke to fail")
	}

	_ = keel.ProvideValue(c, &Config{Port: 1})
	cfg, ok := keel.TryInvoke[*Config](c)
	if !ok || cfg.Port != 1 {
		t.Errorf("expected config, got %v %v", cfg, ok)
	}
}

func TestInvokeNotFound(t *testing.T) {
	t.Parallel()

	c := keel.New()

	_, err := keel.Invoke[*Config](c)
	if !errors.Is(err, keel.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	var e *keel.Error
	if !errors.As(err, &e) {
		t.Fatal("expected *keel.Error")
	}
	if e.Service != keel.Key[*Config]() {
		t.Errorf("expected service %s, got %s", keel.Key[*Config](), e.Service)
	}
}

func TestProviderError(t *testing.T) {
	t.Parallel()

	c := keel.New()
	cause := errors.New("connection refused")
	var calls atomic.Int32

	_ = keel.Provide(
		c, func(ctx context.Context, r keel.Resolver) (*Database, error) {
			if calls.Add(1) == 1 {
				return nil, cause
			}
			return &Database{Name: "db"}, nil
		},
	)

	_, err := keel.Invoke[*Database](c)
	if !errors.Is(err, keel.ErrProviderFailed) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("provider error should wrap its cause")
	}

	db, err := keel.Invoke[*Database](c)
	if err != nil {
		t.Fatalf("a failed construction should be retried: %v", err)
	}
	if db.Name != "db" {
		t.Errorf("expected db, got %s", db.Name)
	}
}

type nodeA struct{}
type nodeB struct{}
type nodeC struct{}

func TestCircularDependency(t *testing.T) {
	t.Parallel()

	c := keel.New()

	_ = keel.Provide(c, func(ctx context.Context, r keel.Resolver) (*nodeA, error) {
		_, err := keel.InvokeCtx[*nodeB](ctx, r)
		return &nodeA{}, err
	})
	_ = keel.Provide(c, func(ctx context.Context, r keel.Resolver) (*nodeB, error) {
		_, err := keel.InvokeCtx[*nodeC](ctx, r)
		return &nodeB{}, err
	})
	_ = keel.Provide(c, func(ctx context.Context, r keel.Resolver) (*nodeC, error) {
		_, err := keel.InvokeCtx[*nodeA](ctx, r)
		return &nodeC{}, err
	})

	_, err := keel.Invoke[*nodeA](c)
	if !errors.Is(err, keel.ErrCycle) {
		t.Fatalf("expected cycle error, got %v", err)
	}

	var e *keel.Error
	if !errors.As(err, &e) {
		t.Fatal("expected *keel.Error")
	}
	want := []string{keel.Key[*nodeA](), keel.Key[*nodeB](), keel.Key[*nodeC](), keel.Key[*nodeA]()}
	if !slices.Equal(e.Stack, want) {
		t.Errorf("expected cycle %v, got %v", want, e.Stack)
	}

	snapshot := c.Describe()
	for _, edge := range snapshot.Edges {
		if edge.From == keel.Key[*nodeC]() && edge.To == keel.Key[*nodeA]() {
			t.Error("the closing edge must not be recorded")
		}
	}
}

func TestDeclaredCycleRejected(t *testing.T) {
	t.Parallel()

	c := keel.New()

	err := keel.Provide(c, func(ctx context.Context, r keel.Resolver) (*nodeA, error) {
		return &nodeA{}, nil
	}, keel.WithDependencies(keel.Key[*nodeB]()))
	if err != nil {
		t.Fatalf("Provide failed: %v", err)
	}

	err = keel.Provide(c, func(ctx context.Context, r keel.Resolver) (*nodeB, error) {
		return &nodeB{}, nil
	}, keel.WithDependencies(keel.Key[*nodeA]()))
	if !keel.IsCircularDependency(err) {
		t.Errorf("expected cycle error, got %v", err)
	}
}

func TestConcurrentInvokeBuildsOnce(t *testing.T) {
	t.Parallel()

	c := keel.New()
	var calls atomic.Int32

	_ = keel.Provide(c, func(ctx context.Context, r keel.Resolver) (*Database, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return &Database{Name: "db"}, nil
	})

	const n = 50
	instances := make([]*Database, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			instances[i] = keel.MustInvoke[*Database](c)
		}()
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("expected one construction, got %d", calls.Load())
	}
	for _, db := range instances {
		if db != instances[0] {
			t.Fatal("all callers should share one instance")
		}
	}
}

func TestContainerValidate(t *testing.T) {
	t.Parallel()

	c := keel.New()

	_ = keel.Provide(
		c, func(ctx context.Context, r keel.Resolver) (*Server, error) {
			return &Server{}, nil
		},
		keel.WithDependencies(keel.Key[*Database]()),
	)

	err := c.Validate()
	if err == nil {
		t.Fatal("expected validation error for missing dependency")
	}
	var e *keel.Error
	if !errors.As(err, &e) || e.Code != keel.ErrCodeValidationFailed {
		t.Errorf("expected validation failure, got %v", err)
	}

	_ = keel.ProvideValue(c, &Database{})
	if err := c.Validate(); err != nil {
		t.Errorf("expected a valid container, got %v", err)
	}
}

func TestContainerSizeAndKeys(t *testing.T) {
	t.Parallel()

	c := keel.New()

	if c.Size() != 0 {
		t.Errorf("expected size 0, got %d", c.Size())
	}

	_ = keel.ProvideValue(c, &Config{})
	_ = keel.ProvideValue(c, &Database{})

	if c.Size() != 2 {
		t.Errorf("expected size 2, got %d", c.Size())
	}

	want := []string{keel.Key[*Config](), keel.Key[*Database]()}
	if !slices.Equal(c.Keys(), want) {
		t.Errorf("expected keys in registration order %v, got %v", want, c.Keys())
	}
}

func TestResolveByKey(t *testing.T) {
	t.Parallel()

	c := keel.New()
	_ = keel.ProvideValue(c, &Config{})

	_, err := keel.Invoke[*Database](c)
	if !keel.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}

	instance, err := c.Resolve(context.Background(), keel.Key[*Config]())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, ok := instance.(*Config); !ok {
		t.Errorf("expected *Config, got %T", instance)
	}
}

func TestOptionalPresent(t *testing.T) {
	t.Parallel()

	c := keel.New()
	_ = keel.ProvideValue(c, &Config{Port: 8080})

	opt := keel.InvokeOptional[*Config](c)
	if !opt.Present() {
		t.Fatal("expected value to be present")
	}
	if opt.Value().Port != 8080 {
		t.Errorf("expected port 8080, got %d", opt.Value().Port)
	}

	v, ok := opt.Get()
	if !ok || v.Port != 8080 {
		t.Error("Get should return the value")
	}
}

func TestOptionalNotPresent(t *testing.T) {
	t.Parallel()

	c := keel.New()

	opt := keel.InvokeOptional[*Config](c)
	if opt.Present() {
		t.Error("expected value to be absent")
	}

	fallback := &Config{Port: 9090}
	if opt.OrElse(fallback) != fallback {
		t.Error("OrElse should return the default")
	}
	if opt.OrElseFunc(func() *Config { return fallback }) != fallback {
		t.Error("OrElseFunc should return the default")
	}
}

func TestOptionalNamed(t *testing.T) {
	t.Parallel()

	c := keel.New()
	_ = keel.ProvideNamedValue(c, "main", &Config{Port: 1})

	if !keel.InvokeOptionalNamed[*Config](c, "main").Present() {
		t.Error("expected named value")
	}
	if keel.InvokeOptionalNamed[*Config](c, "other").Present() {
		t.Error("unexpected value for unknown name")
	}
}

func TestOptionalInProvider(t *testing.T) {
	t.Parallel()

	c := keel.New()

	_ = keel.Provide(
		c, func(ctx context.Context, r keel.Resolver) (*Server, error) {
			cfg := keel.InvokeOptionalCtx[*Config](ctx, r).OrElse(&Config{Port: 80})
			return &Server{Config: cfg}, nil
		},
	)

	server := keel.MustInvoke[*Server](c)
	if server.Config.Port != 80 {
		t.Errorf("expected default port 80, got %d", server.Config.Port)
	}
}

func TestSomeNone(t *testing.T) {
	t.Parallel()

	if !keel.Some(1).Present() {
		t.Error("Some should be present")
	}
	if keel.None[int]().Present() {
		t.Error("None should be absent")
	}
}
