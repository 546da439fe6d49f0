package container

import (
	"context"
	"sync"
	"time"

	"github.com/danpasecinic/keel/internal/state"
)

type ProviderFunc func(ctx context.Context, r Resolver) (any, error)

type Hook func(ctx context.Context) error

type Resolver interface {
	Resolve(ctx context.Context, key string) (any, error)
	Has(key string) bool
}

// Descriptor describes how to build one identity. It is not modified after
// registration. An alias shares its instance with another identity, so the
// instance's own Shutdown and HealthCheck methods are left to that identity.
type Descriptor struct {
	Key          string
	Provider     ProviderFunc
	Dependencies []string
	OnStart      []Hook
	OnStop       []Hook
	HealthCheck  Hook
	Alias        bool
}

type slot struct {
	mu            sync.Mutex
	state         state.State
	instance      any
	constructedAt time.Time
	served        bool
	started       bool
	// decorated is false for a stored value until its decorators ran.
	decorated bool
}

func (s *slot) ready() (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != state.Ready || !s.decorated {
		return nil, false
	}
	s.served = true
	return s.instance, true
}

// transition moves the slot to next when the state machine allows it. The
// caller holds s.mu.
func (s *slot) transition(next state.State) bool {
	if !s.state.CanTransition(next) {
		return false
	}
	s.state = next
	return true
}

func (s *slot) snapshot() (state.State, any, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.instance, s.constructedAt
}

type entry struct {
	desc  *Descriptor
	slot  *slot
	value bool
}

type Registry struct {
	mu       sync.RWMutex
	services map[string]*entry
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{
		services: make(map[string]*entry),
	}
}

func (r *Registry) Register(desc *Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.services[desc.Key]; exists {
		return newServiceError(ErrDuplicate, desc.Key, nil)
	}

	r.services[desc.Key] = &entry{desc: desc, slot: &slot{}}
	r.order = append(r.order, desc.Key)
	return nil
}

// RegisterValue stores an already built instance; it starts out Ready.
func (r *Registry) RegisterValue(desc *Descriptor, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.services[desc.Key]; exists {
		return newServiceError(ErrDuplicate, desc.Key, nil)
	}

	r.services[desc.Key] = &entry{desc: desc, slot: readySlot(value), value: true}
	r.order = append(r.order, desc.Key)
	return nil
}

func readySlot(value any) *slot {
	return &slot{
		state:         state.Ready,
		instance:      value,
		constructedAt: time.Now(),
	}
}

// Replace swaps the descriptor of an identity that has never been handed out.
// relink runs once the identity is known to be replaceable; when it fails the
// old descriptor stays.
func (r *Registry) Replace(desc *Descriptor, value any, isValue bool, relink func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, exists := r.services[desc.Key]
	if !exists {
		return newServiceError(ErrNotFound, desc.Key, nil)
	}

	old.slot.mu.Lock()
	inUse := old.slot.served || old.slot.state == state.Constructing || old.slot.started
	old.slot.mu.Unlock()
	if inUse {
		return newServiceError(ErrAlreadyResolved, desc.Key, nil)
	}

	if relink != nil {
		if err := relink(); err != nil {
			return err
		}
	}

	e := &entry{desc: desc, slot: &slot{}, value: isValue}
	if isValue {
		e.slot = readySlot(value)
	}
	r.services[desc.Key] = e
	return nil
}

func (r *Registry) Lookup(key string) (*Descriptor, error) {
	e, ok := r.get(key)
	if !ok {
		return nil, newServiceError(ErrNotFound, key, nil)
	}
	return e.desc, nil
}

func (r *Registry) get(key string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.services[key]
	return e, exists
}

func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.services[key]
	return exists
}

// Keys returns identities in registration order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, len(r.order))
	copy(keys, r.order)
	return keys
}

func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.services)
}
