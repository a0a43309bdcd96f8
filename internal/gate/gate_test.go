package gate

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_AdmitsUpToCapacity(t *testing.T) {
	g := New(3)

	var tickets []*Ticket
	rejected := 0
	for i := 0; i < 4; i++ {
		tk, err := g.Admit()
		if err != nil {
			require.ErrorIs(t, err, ErrTooManyConversions)
			rejected++
			continue
		}
		tickets = append(tickets, tk)
	}

	assert.Len(t, tickets, 3)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 3, g.Active())

	tickets[0].Release()
	assert.Equal(t, 2, g.Active())

	again, err := g.Admit()
	require.NoError(t, err)
	_, err = g.Admit()
	assert.ErrorIs(t, err, ErrTooManyConversions)

	again.Release()
	for _, tk := range tickets[1:] {
		tk.Release()
	}
	assert.Zero(t, g.Active())
}

func TestTicket_DoubleRelease(t *testing.T) {
	g := New(1)
	tk, err := g.Admit()
	require.NoError(t, err)

	tk.Release()
	tk.Release()
	assert.Zero(t, g.Active())

	// A second release must not have freed an extra slot.
	a, err := g.Admit()
	require.NoError(t, err)
	_, err = g.Admit()
	assert.ErrorIs(t, err, ErrTooManyConversions)
	a.Release()
}

func TestGate_Concurrent(t *testing.T) {
	const capacity, callers = 4, 64
	g := New(capacity)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted []*Ticket
		rejected int
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			tk, err := g.Admit()
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, ErrTooManyConversions) {
				rejected++
				return
			}
			admitted = append(admitted, tk)
		}()
	}
	close(start)
	wg.Wait()

	assert.Len(t, admitted, capacity)
	assert.Equal(t, callers-capacity, rejected)
	for _, tk := range admitted {
		tk.Release()
	}
	assert.Zero(t, g.Active())
}

func TestNew_MinimumCapacity(t *testing.T) {
	g := New(0)
	assert.Equal(t, 1, g.Max())
}
