package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every member of a [Group] failed or had its
// breaker open.
var ErrAllFailed = errors.New("resilience: all backends failed")

type member[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Group holds a primary backend and its fallbacks, tried in order.
type Group[T any] struct {
	members []member[T]
	cfg     BreakerConfig
}

// NewGroup returns a [Group] with primary as its first member. cfg is used
// for every member's breaker; its Name is replaced by the member name.
func NewGroup[T any](name string, primary T, cfg BreakerConfig) *Group[T] {
	g := &Group[T]{cfg: cfg}
	g.Add(name, primary)
	return g
}

// Add appends a fallback. Add must not be called concurrently with [Do].
// A name already in use gets a "#n" suffix.
func (g *Group[T]) Add(name string, fallback T) {
	for _, m := range g.members {
		if m.name == name {
			name = fmt.Sprintf("%s#%d", name, len(g.members)+1)
			break
		}
	}
	cfg := g.cfg
	cfg.Name = name
	g.members = append(g.members, member[T]{name: name, value: fallback, breaker: NewBreaker(cfg)})
}

// Len returns the number of members.
func (g *Group[T]) Len() int { return len(g.members) }

// Primary returns the first member.
func (g *Group[T]) Primary() T { return g.members[0].value }

// Each calls fn for every member in order.
func (g *Group[T]) Each(fn func(name string, v T, state State)) {
	for _, m := range g.members {
		fn(m.name, m.value, m.breaker.State())
	}
}

// Do runs fn against each member until one succeeds and returns its result.
// Members with an open breaker are skipped. A cancelled ctx stops the chain.
func Do[T, R any](ctx context.Context, g *Group[T], fn func(context.Context, T) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error
	)
	for _, m := range g.members {
		var res R
		err := m.breaker.Do(ctx, func(ctx context.Context) error {
			var err error
			res, err = fn(ctx, m.value)
			return err
		})
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return zero, err
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping backend with open circuit", "backend", m.name)
			continue
		}
		slog.Warn("backend failed, trying next", "backend", m.name, "err", err)
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
