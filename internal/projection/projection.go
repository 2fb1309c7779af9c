// Package projection keeps a client-side copy of a server collection and
// brings it up to date when the realtime channel says something changed.
package projection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/medhya/medhya/internal/platform/realtime"
)

// Loader fetches the full collection from the server.
type Loader[T any] func(ctx context.Context) ([]T, error)

// Policy decides how a realtime event is applied.
type Policy int

const (
	// RefreshPolicy reloads the whole collection on every event.
	RefreshPolicy Policy = iota
	// MergePolicy upserts the event payload by key and reloads only when the
	// payload cannot be used.
	MergePolicy
)

// Validator rejects a merge of next over prev, forcing a reload instead.
// prev is nil when the item is new.
type Validator[T any] func(prev *T, next T) error

// ErrUnusablePayload is reported through OnFallback when a merge fell back
// to a reload.
var ErrUnusablePayload = errors.New("event payload unusable for merge")

// Projection holds the last successfully loaded list of T. Loads run one at
// a time; readers always get a copy.
type Projection[T any] struct {
	name     string
	load     Loader[T]
	key      func(T) string
	policy   Policy
	validate Validator[T]
	logger   zerolog.Logger
	onChange func([]T)

	loadMu sync.Mutex

	mu       sync.RWMutex
	items    []T
	err      error
	loaded   bool
	loadedAt time.Time
}

type Option[T any] func(*Projection[T])

func WithPolicy[T any](p Policy) Option[T] {
	return func(pr *Projection[T]) { pr.policy = p }
}

func WithValidator[T any](v Validator[T]) Option[T] {
	return func(pr *Projection[T]) { pr.validate = v }
}

func WithLogger[T any](l zerolog.Logger) Option[T] {
	return func(pr *Projection[T]) { pr.logger = l }
}

// WithOnChange registers a callback invoked with a copy of the items after
// every successful load or merge.
func WithOnChange[T any](fn func([]T)) Option[T] {
	return func(pr *Projection[T]) { pr.onChange = fn }
}

// New creates an empty projection named name (used in logs).
func New[T any](name string, load Loader[T], key func(T) string, opts ...Option[T]) *Projection[T] {
	p := &Projection[T]{
		name:   name,
		load:   load,
		key:    key,
		policy: RefreshPolicy,
		logger: zerolog.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// LoadInitial replaces the held list with a fresh fetch. On failure the
// previous list is kept and Err reports the failure until the next success.
func (p *Projection[T]) LoadInitial(ctx context.Context) error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	items, err := p.load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled by the owner; nothing to report.
			return ctx.Err()
		}
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		p.logger.Warn().Err(err).Str("projection", p.name).Msg("load failed, keeping last known list")
		return fmt.Errorf("load %s: %w", p.name, err)
	}

	p.mu.Lock()
	p.items = append([]T(nil), items...)
	p.err = nil
	p.loaded = true
	p.loadedAt = time.Now()
	snapshot := append([]T(nil), p.items...)
	p.mu.Unlock()

	p.logger.Debug().Str("projection", p.name).Int("items", len(items)).Msg("loaded")
	p.notify(snapshot)
	return nil
}

// ApplyRealtimeEvent brings the projection up to date after ev. Applying
// the same event twice leaves the same state.
func (p *Projection[T]) ApplyRealtimeEvent(ctx context.Context, ev realtime.Event) error {
	if p.policy == MergePolicy {
		err := p.merge(ev)
		if err == nil {
			return nil
		}
		p.logger.Debug().Err(err).Str("projection", p.name).Str("event", ev.Name).Msg("merge not possible, refreshing")
	}
	return p.LoadInitial(ctx)
}

func (p *Projection[T]) merge(ev realtime.Event) error {
	var next T
	ok, err := ev.Decode(&next)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnusablePayload, err)
	}
	if !ok {
		return ErrUnusablePayload
	}
	k := p.key(next)
	if k == "" {
		return fmt.Errorf("%w: payload has no key", ErrUnusablePayload)
	}

	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	p.mu.Lock()
	if !p.loaded {
		p.mu.Unlock()
		return fmt.Errorf("%w: nothing loaded yet", ErrUnusablePayload)
	}
	idx := -1
	for i := range p.items {
		if p.key(p.items[i]) == k {
			idx = i
			break
		}
	}
	if p.validate != nil {
		var prev *T
		if idx >= 0 {
			cur := p.items[idx]
			prev = &cur
		}
		if err := p.validate(prev, next); err != nil {
			p.mu.Unlock()
			return err
		}
	}
	if idx >= 0 {
		p.items[idx] = next
	} else {
		p.items = append([]T{next}, p.items...)
	}
	snapshot := append([]T(nil), p.items...)
	p.mu.Unlock()

	p.notify(snapshot)
	return nil
}

// Upsert applies local changes, such as a message just sent or marked
// read, without waiting for the server. Items are matched by key; unknown
// ones are prepended.
func (p *Projection[T]) Upsert(items ...T) {
	if len(items) == 0 {
		return
	}
	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	p.mu.Lock()
	for _, it := range items {
		k := p.key(it)
		replaced := false
		for i := range p.items {
			if p.key(p.items[i]) == k {
				p.items[i] = it
				replaced = true
				break
			}
		}
		if !replaced {
			p.items = append([]T{it}, p.items...)
		}
	}
	snapshot := append([]T(nil), p.items...)
	p.mu.Unlock()

	p.notify(snapshot)
}

func (p *Projection[T]) notify(items []T) {
	if p.onChange != nil {
		p.onChange(items)
	}
}

// Items returns a copy of the held list.
func (p *Projection[T]) Items() []T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]T(nil), p.items...)
}

// Filter returns the held items matching pred. The held list is unchanged.
func (p *Projection[T]) Filter(pred func(T) bool) []T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]T, 0, len(p.items))
	for _, it := range p.items {
		if pred(it) {
			out = append(out, it)
		}
	}
	return out
}

// Err returns the error of the most recent failed load, or nil after a
// successful one.
func (p *Projection[T]) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

// Loaded reports whether at least one load succeeded.
func (p *Projection[T]) Loaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loaded
}

// LoadedAt is the time of the last successful load.
func (p *Projection[T]) LoadedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loadedAt
}

// Handler adapts the projection to a realtime.Handler. Errors are logged;
// the projection already keeps its last good state.
func (p *Projection[T]) Handler(ctx context.Context) realtime.Handler {
	return func(ev realtime.Event) {
		if err := p.ApplyRealtimeEvent(ctx, ev); err != nil && ctx.Err() == nil {
			p.logger.Warn().Err(err).Str("projection", p.name).Str("event", ev.Name).Msg("realtime update failed")
		}
	}
}
