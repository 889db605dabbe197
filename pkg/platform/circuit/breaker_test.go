package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// step is one recorded outcome and the breaker position expected after it.
type step struct {
	fail     bool
	wantOpen bool
}

func TestBreakerSequences(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		steps []step
	}{
		{
			name:  "opens on the threshold failure",
			opts:  []Option{WithFailureThreshold(3)},
			steps: []step{{true, false}, {true, false}, {true, true}},
		},
		{
			name: "success while closed clears the failure streak",
			opts: []Option{WithFailureThreshold(3)},
			steps: []step{
				{true, false}, {true, false}, {false, false},
				{true, false}, {true, false}, {true, true},
			},
		},
		{
			name:  "closes after consecutive successful probes",
			opts:  []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{{true, true}, {false, true}, {false, false}},
		},
		{
			name: "failure while open restarts the probe count",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(3)},
			steps: []step{
				{true, true}, {false, true}, {false, true},
				{true, true}, {false, true}, {false, true}, {false, false},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("rate_index_cache", tt.opts...)
			for i, s := range tt.steps {
				if s.fail {
					b.RecordFailure()
				} else {
					b.RecordSuccess()
				}
				assert.Equal(t, s.wantOpen, b.IsOpen(), "after step %d", i)
			}
		})
	}
}

func TestBreakerReportsTransitions(t *testing.T) {
	b := New("kafka_relay", WithFailureThreshold(1), WithSuccessThreshold(1))
	assert.Equal(t, "kafka_relay", b.Name())
	assert.Equal(t, StateClosed, b.State())

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.False(t, change.Opened, "already open")

	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerResetCloses(t *testing.T) {
	b := New("rate_index_cache", WithFailureThreshold(1))
	b.RecordFailure()
	b.Reset()
	assert.False(t, b.IsOpen())
}

func TestBreakerAllowWaitsForCooldown(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := New("kafka_relay", WithFailureThreshold(1), WithCooldown(time.Minute), withClock(func() time.Time { return now }))

	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.False(t, b.Allow())

	now = now.Add(30 * time.Second)
	b.RecordFailure()
	now = now.Add(45 * time.Second)
	assert.False(t, b.Allow(), "a failed probe restarts the cooldown")

	now = now.Add(15 * time.Second)
	assert.True(t, b.Allow())
}
