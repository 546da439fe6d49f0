package keel

import (
	"time"
)

type ResolveHook func(key string, duration time.Duration, err error)

type ProvideHook func(key string)

type StartHook func(key string, duration time.Duration, err error)

type StopHook func(key string, duration time.Duration, err error)

// ProbeHook observes a single health probe. err is nil for a healthy result.
// Services without a probe are not observed.
type ProbeHook func(key string, duration time.Duration, err error)
