package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "twubi/pkg/platform/audit"
	"twubi/pkg/platform/audit/store/memory"
	"twubi/pkg/platform/circuit"
)

type recordingSink struct {
	batches [][]audit.Event
	fail    error
}

func (s *recordingSink) Publish(_ context.Context, events []audit.Event) error {
	if s.fail != nil {
		return s.fail
	}
	s.batches = append(s.batches, append([]audit.Event{}, events...))
	return nil
}

func seed(t *testing.T, store *memory.InMemoryStore, n int) {
	t.Helper()
	for range n {
		require.NoError(t, store.Append(context.Background(), audit.Event{Type: audit.EventUBIClaimed, Subject: "w"}))
	}
}

func TestRelayOnce_ForwardsInOrderAndAdvancesCursor(t *testing.T) {
	ctx := context.Background()
	store := memory.NewInMemoryStore()
	seed(t, store, 5)
	sink := &recordingSink{}
	w := NewWorker("kafka", store, store, sink, WithBatchSize(3))

	n, err := w.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = w.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = w.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.Len(t, sink.batches, 2)
	assert.Equal(t, int64(1), sink.batches[0][0].ID)
	assert.Equal(t, int64(5), sink.batches[1][1].ID)

	cursor, err := store.LoadCursor(ctx, "kafka")
	require.NoError(t, err)
	assert.Equal(t, int64(5), cursor)
}

func TestRelayOnce_FailureKeepsCursorAndOpensBreaker(t *testing.T) {
	ctx := context.Background()
	store := memory.NewInMemoryStore()
	seed(t, store, 2)
	sink := &recordingSink{fail: errors.New("broker down")}
	breaker := circuit.New("kafka", circuit.WithFailureThreshold(1))
	w := NewWorker("kafka", store, store, sink, WithBreaker(breaker))

	_, err := w.RelayOnce(ctx)
	require.Error(t, err)
	assert.True(t, breaker.IsOpen())

	cursor, err := store.LoadCursor(ctx, "kafka")
	require.NoError(t, err)
	assert.Equal(t, int64(0), cursor)

	n, err := w.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "open breaker skips the attempt")
}
