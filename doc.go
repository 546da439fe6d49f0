// Package keel provides a type-safe dependency injection container with
// ordered lifecycle management for Go 1.25+.
//
// Services are built lazily, once, the first time they are resolved. While a
// provider runs, every service it resolves is recorded as a dependency edge,
// so the container learns the graph as the application uses it. Edges that
// would close a cycle are rejected, and shutdown tears services down in
// reverse dependency order.
//
// # Quick Start
//
//	c := keel.New()
//
//	keel.Provide(c, func(ctx context.Context, r keel.Resolver) (*Config, error) {
//	    return &Config{Port: 8080}, nil
//	})
//
//	keel.Provide(c, func(ctx context.Context, r keel.Resolver) (*Server, error) {
//	    cfg, err := keel.InvokeCtx[*Config](ctx, r)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return &Server{config: cfg}, nil
//	})
//
//	c.Run(ctx)
//
// # Providers
//
// Providers receive a context and a Resolver. Resolve dependencies through
// that Resolver, or through the container with the context the provider was
// given: both carry the resolution path. A call with an unrelated context,
// such as context.Background(), made on the provider's own goroutine is still
// placed on the path. The same call made from another goroutine hides the edge
// from the container and a cycle through it blocks forever.
//
//	keel.Provide[T](c, provider)           // Register a provider
//	keel.ProvideValue[T](c, value)         // Register an existing value
//	keel.ProvideNamed[T](c, "name", prov)  // Register a named provider
//
// Dependencies may also be declared up front with WithDependencies. Declared
// edges are checked for cycles at registration and by Validate.
//
// # Resolution
//
//	svc, err := keel.Invoke[*Service](c)   // Returns value and error
//	svc := keel.MustInvoke[*Service](c)    // Panics on error
//	opt := keel.InvokeOptional[*Cache](c)  // Empty when missing
//
// Concurrent resolutions of the same service share one construction. A
// failed construction is not cached: the next Invoke calls the provider
// again.
//
// # Lifecycle
//
//	keel.Provide(c, NewServer,
//	    keel.WithOnStart(func(ctx context.Context) error {
//	        return server.Listen()
//	    }),
//	    keel.WithOnStop(func(ctx context.Context) error {
//	        return server.Shutdown(ctx)
//	    }),
//	)
//
//	c.Start(ctx)             // Builds every service, runs OnStart hooks
//	report := c.Shutdown(ctx) // Tears down built services, dependents first
//	c.Stop(ctx)              // Shutdown folded into a single error
//	c.Run(ctx)               // Start + wait for signal + Stop
//
// Instances without WithOnStop hooks are torn down through their Shutdown
// method when they have one. Shutdown is best-effort: a failing service is
// recorded in the ShutdownReport and the rest are still stopped. Once
// shutdown begins, new resolutions fail with ErrShuttingDown while
// resolutions already in flight are allowed to finish.
//
// # Health Checks
//
//	reports := c.CheckAll(ctx)   // Every built service, by name
//	err := c.Live(ctx)           // First failing probe
//
// Probes come from WithHealthCheck or a HealthChecker implementation. Each
// one runs with its own timeout (WithHealthCheckTimeout, five seconds by
// default); a probe that ignores its context is reported as timed out and
// abandoned.
//
// # Modules
//
//	var ConfigModule = keel.NewModule("config")
//	keel.ModuleProvideValue(ConfigModule, &Config{Port: 8080})
//
//	var AppModule = keel.NewModule("app").Include(ConfigModule)
//
//	c.Apply(AppModule)
//
// # Interface Binding and Decorators
//
//	keel.Bind[UserRepository, *PostgresUserRepo](c)
//	keel.Decorate(c, func(ctx context.Context, r keel.Resolver, log *Logger) (*Logger, error) {
//	    return log.Named("app"), nil
//	})
//
// # Introspection
//
//	snapshot := c.Describe()          // States, timestamps, edges
//	c.PrintGraph()                    // ASCII to stdout
//	c.FprintGraphDOT(w)               // Graphviz DOT
//	c.FprintGraphTable(w)             // Table
//	snapshot.WriteYAML(w)             // YAML
//	explanation, err := keel.Explain[*Server](c)
//
// # Metrics Observers
//
//	c := keel.New(
//	    keel.WithResolveObserver(func(key string, d time.Duration, err error) {
//	        metrics.RecordResolve(key, d, err)
//	    }),
//	    keel.WithStopObserver(func(key string, d time.Duration, err error) {
//	        metrics.RecordStop(key, d, err)
//	    }),
//	)
//
// Package keelotel provides observers that record OpenTelemetry metrics.
package keel
