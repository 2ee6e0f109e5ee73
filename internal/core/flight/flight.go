// Package flight collapses concurrent invocations of the same operation into
// one underlying execution whose result every caller shares.
//
// A Group moves through three states. Idle: no call outstanding, the next Do
// starts one. InProgress: a call is running and every Do attaches to it.
// Settled: the call finished and its result is recorded, but some attached
// callers have not collected it yet; a Do arriving now receives that result.
// The group returns to Idle once the last attached caller has been released.
package flight

import (
	"context"
	"fmt"
	"sync"
)

// State of a Group
type State int

const (
	Idle State = iota
	InProgress
	Settled
)

// String returns the string representation
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InProgress:
		return "in_progress"
	case Settled:
		return "settled"
	}
	return "unknown"
}

type call[T any] struct {
	done    chan struct{}
	state   State
	waiters int
	val     T
	err     error
}

// Group runs at most one call at a time. The zero value is ready to use.
type Group[T any] struct {
	mu      sync.Mutex
	current *call[T]
	started uint64
}

// Do runs fn unless a call is already outstanding, in which case it waits for
// that call instead. fn runs on its own goroutine and is never cancelled by a
// caller: ctx only bounds how long this caller waits. shared reports whether
// the result came from a call started by another caller.
func (g *Group[T]) Do(ctx context.Context, fn func() (T, error)) (val T, shared bool, err error) {
	g.mu.Lock()
	c := g.current
	if c != nil {
		shared = true
	} else {
		c = &call[T]{done: make(chan struct{}), state: InProgress}
		g.current = c
		g.started++
		go g.run(c, fn)
	}
	c.waiters++
	g.mu.Unlock()

	select {
	case <-c.done:
		g.leave(c)
		return c.val, shared, c.err
	case <-ctx.Done():
		g.leave(c)
		var zero T
		return zero, shared, ctx.Err()
	}
}

// leave detaches one caller from c; the last caller out of a settled call
// returns the group to Idle
func (g *Group[T]) leave(c *call[T]) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c.waiters--
	if c.state == Settled && c.waiters == 0 && g.current == c {
		g.current = nil
	}
}

func (g *Group[T]) run(c *call[T], fn func() (T, error)) {
	var (
		val T
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("flight: call panicked: %v", r)
			}
		}()
		val, err = fn()
	}()

	g.mu.Lock()
	c.val, c.err = val, err
	c.state = Settled
	close(c.done)
	if c.waiters == 0 {
		g.current = nil
	}
	g.mu.Unlock()
}

// State returns the state of the outstanding call, or Idle
func (g *Group[T]) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current != nil {
		return g.current.state
	}
	return Idle
}

// Waiters returns how many callers are attached to the outstanding call
func (g *Group[T]) Waiters() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil {
		return 0
	}
	return g.current.waiters
}

// Started returns how many calls have been started since the group was created
func (g *Group[T]) Started() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.started
}
