// Package gate bounds the number of conversions running at once.
//
// Admission never waits: a request arriving while the gate is full is
// rejected immediately.
package gate

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrTooManyConversions indicates the gate is at capacity.
var ErrTooManyConversions = errors.New("too many concurrent conversions")

// Gate is a non-blocking admission counter.
type Gate struct {
	sem    *semaphore.Weighted
	max    int64
	active atomic.Int64
}

// New creates a Gate admitting at most capacity concurrent holders. A
// capacity below 1 is treated as 1.
func New(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{sem: semaphore.NewWeighted(int64(capacity)), max: int64(capacity)}
}

// Ticket is held by one admitted conversion.
type Ticket struct {
	g    *Gate
	once sync.Once
}

// Admit takes a slot or fails with ErrTooManyConversions.
func (g *Gate) Admit() (*Ticket, error) {
	if !g.sem.TryAcquire(1) {
		return nil, fmt.Errorf("%w (max %d)", ErrTooManyConversions, g.max)
	}
	g.active.Add(1)
	return &Ticket{g: g}, nil
}

// Release returns the slot. Only the first call has an effect.
func (t *Ticket) Release() {
	t.once.Do(func() {
		t.g.active.Add(-1)
		t.g.sem.Release(1)
	})
}

// Active returns the number of admitted, unreleased tickets.
func (g *Gate) Active() int {
	return int(g.active.Load())
}

// Max returns the gate capacity.
func (g *Gate) Max() int {
	return int(g.max)
}
