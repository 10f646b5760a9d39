// Package singleflight coalesces concurrent calls that share a key into one
// execution whose result every caller receives.
package singleflight

import (
	"context"
	"sync"
)

// Group manages in-flight calls keyed by string. The zero value is not
// usable; construct one with New.
type Group[T any] struct {
	mu sync.Mutex
	m  map[string]*call[T]
}

type call[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// New creates an empty Group.
func New[T any]() *Group[T] {
	return &Group[T]{m: make(map[string]*call[T])}
}

// Do runs fn once per key at a time. The first caller starts fn; callers that
// arrive while it runs wait for the same result and get shared=true.
//
// fn runs detached from the starting caller's cancellation so that one
// caller giving up does not fail the others. Each caller stops waiting when
// its own ctx is done and receives ctx.Err(). The key is forgotten as soon as
// fn returns, so the next call after completion starts a fresh execution.
func (g *Group[T]) Do(ctx context.Context, key string, fn func(context.Context) (T, error)) (v T, err error, shared bool) {
	g.mu.Lock()
	c, ok := g.m[key]
	if !ok {
		c = &call[T]{done: make(chan struct{})}
		g.m[key] = c
		go g.run(context.WithoutCancel(ctx), key, c, fn)
	}
	g.mu.Unlock()

	select {
	case <-c.done:
		return c.val, c.err, ok
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err(), ok
	}
}

func (g *Group[T]) run(ctx context.Context, key string, c *call[T], fn func(context.Context) (T, error)) {
	defer func() {
		if r := recover(); r != nil {
			c.err = &panicError{value: r}
		}
		g.mu.Lock()
		if g.m[key] == c {
			delete(g.m, key)
		}
		g.mu.Unlock()
		close(c.done)
	}()

	c.val, c.err = fn(ctx)
}

// InFlight reports whether a call for key is currently running.
func (g *Group[T]) InFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.m[key]
	return ok
}
