package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSend = errors.New("send failed")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(settings Settings) (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	b := New("test", settings)
	b.now = clock.Now
	return b, clock
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		outcomes      []bool // true = success, false = failure
		expectedState State
	}{
		{"stays closed on successes", []bool{true, true, true}, StateClosed},
		{"opens after consecutive failures", []bool{false, false, false}, StateOpen},
		{"success resets the failure streak", []bool{false, false, true, false, false}, StateClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newTestBreaker(Settings{MaxFailures: 3, OpenTimeout: time.Minute})
			for _, ok := range tt.outcomes {
				_ = b.Do(func() error {
					if ok {
						return nil
					}
					return errSend
				})
			}
			assert.Equal(t, tt.expectedState, b.State())
		})
	}
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	b, _ := newTestBreaker(Settings{MaxFailures: 1, OpenTimeout: time.Minute})
	require.ErrorIs(t, b.Do(func() error { return errSend }), errSend)

	called := false
	err := b.Do(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerProbe(t *testing.T) {
	var transitions []string
	b, clock := newTestBreaker(Settings{
		MaxFailures: 1,
		OpenTimeout: time.Second,
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = b.Do(func() error { return errSend })
	clock.Advance(2 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	// Failed probe re-opens.
	_ = b.Do(func() error { return errSend })
	assert.Equal(t, StateOpen, b.State())

	clock.Advance(2 * time.Second)
	require.NoError(t, b.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{"closed->open", "half-open->open", "half-open->closed"}, transitions)
}

func TestBreakerSingleProbe(t *testing.T) {
	b, clock := newTestBreaker(Settings{MaxFailures: 1, OpenTimeout: time.Second})
	_ = b.Do(func() error { return errSend })
	clock.Advance(2 * time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- b.Do(func() error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	assert.ErrorIs(t, b.Do(func() error { return nil }), ErrProbeActive)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, b.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
