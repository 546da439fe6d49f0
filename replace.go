package keel

// Replace swaps the provider of a registered service. Only services that
// were never handed out can be replaced; use it to install test doubles
// before the first Invoke.
func Replace[T any](c *Container, provider Provider[T], opts ...ProviderOption) error {
	cfg := newProviderConfig(opts)
	desc := cfg.descriptor(keyFor[T](cfg.name), wrapProvider(provider))
	return translate(c.internal.Replace(desc, nil, false))
}

func ReplaceValue[T any](c *Container, value T, opts ...ProviderOption) error {
	cfg := newProviderConfig(opts)
	desc := cfg.descriptor(keyFor[T](cfg.name), nil)
	return translate(c.internal.Replace(desc, value, true))
}

func ReplaceNamed[T any](c *Container, name string, provider Provider[T], opts ...ProviderOption) error {
	opts = append(opts, WithName(name))
	return Replace(c, provider, opts...)
}

func ReplaceNamedValue[T any](c *Container, name string, value T, opts ...ProviderOption) error {
	opts = append(opts, WithName(name))
	return ReplaceValue(c, value, opts...)
}

func MustReplace[T any](c *Container, provider Provider[T], opts ...ProviderOption) {
	if err := Replace(c, provider, opts...); err != nil {
		panic(err)
	}
}

func MustReplaceValue[T any](c *Container, value T, opts ...ProviderOption) {
	if err := ReplaceValue(c, value, opts...); err != nil {
		panic(err)
	}
}
