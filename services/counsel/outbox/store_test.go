// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PraetorAI/PraetorLocal/pkg/logging"
	"github.com/PraetorAI/PraetorLocal/services/counsel/datatypes"
	"github.com/PraetorAI/PraetorLocal/services/counsel/events"
	"github.com/PraetorAI/PraetorLocal/services/counsel/storage"
)

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Level: logging.LevelError, Quiet: true})
}

func newTestStore(t *testing.T) (*Store, *events.Bus) {
	t.Helper()

	db, err := storage.Open(storage.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := events.NewBus()
	store, err := New(db, bus, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, bus
}

func testRequest(question string) *datatypes.ResearchRequest {
	return &datatypes.ResearchRequest{
		Question:  question,
		AgentCode: "irac",
	}
}

func okSender() Sender {
	return SenderFunc(func(ctx context.Context, req *datatypes.ResearchRequest) error {
		return nil
	})
}

func TestEnqueueAssignsIDAndTimestamp(t *testing.T) {
	store, bus := newTestStore(t)
	ctx := context.Background()

	req := testRequest("Quelle est la durée de prescription ?")
	require.NoError(t, store.Enqueue(ctx, req))

	assert.NotEmpty(t, req.ID)
	assert.False(t, req.EnqueuedAt.IsZero())

	published := bus.RecentByType(events.TypeOutboxEnqueued)
	require.Len(t, published, 1)
	data, ok := published[0].Data.(events.OutboxData)
	require.True(t, ok)
	assert.Equal(t, req.ID, data.RequestID)
	assert.Equal(t, 1, data.Pending)
}

func TestItemsPreserveInsertionOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	questions := []string{"question A", "question B", "question C"}
	for _, q := range questions {
		require.NoError(t, store.Enqueue(ctx, testRequest(q)))
	}

	items, err := store.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for i, q := range questions {
		assert.Equal(t, q, items[i].Question)
	}
}

func TestFlushContinuesPastFailure(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	reqA := testRequest("question A")
	reqB := testRequest("question B")
	reqC := testRequest("question C")
	for _, r := range []*datatypes.ResearchRequest{reqA, reqB, reqC} {
		require.NoError(t, store.Enqueue(ctx, r))
	}

	sender := SenderFunc(func(ctx context.Context, req *datatypes.ResearchRequest) error {
		if req.ID == reqB.ID {
			return errors.New("agent unreachable")
		}
		return nil
	})

	result, err := store.Flush(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 2, result.Delivered)
	assert.Equal(t, 1, result.Failed)

	items, err := store.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, reqB.ID, items[0].ID)
}

func TestFlushReportsInAggregate(t *testing.T) {
	store, bus := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Enqueue(ctx, testRequest("question A")))
	require.NoError(t, store.Enqueue(ctx, testRequest("question B")))

	sender := SenderFunc(func(ctx context.Context, req *datatypes.ResearchRequest) error {
		return nil
	})
	result, err := store.Flush(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Delivered)

	// Deliveries surface as a single flushed event with counts; the
	// removed event is reserved for explicit removal.
	flushed := bus.RecentByType(events.TypeOutboxFlushed)
	require.Len(t, flushed, 1)
	assert.Empty(t, bus.RecentByType(events.TypeOutboxRemoved))
}

func TestFlushSkipsConfidential(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	public := testRequest("question publique")
	private := testRequest("question confidentielle")
	private.ConfidentialMode = true
	require.NoError(t, store.Enqueue(ctx, public))
	require.NoError(t, store.Enqueue(ctx, private))

	var sent []string
	sender := SenderFunc(func(ctx context.Context, req *datatypes.ResearchRequest) error {
		sent = append(sent, req.ID)
		return nil
	})

	result, err := store.Flush(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Delivered)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, []string{public.ID}, sent)

	// The confidential entry stays queued, untouched.
	items, err := store.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, private.ID, items[0].ID)

	// The manual variant delivers it.
	result, err = store.FlushAll(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Delivered)
	assert.Equal(t, 0, result.Skipped)
}

func TestRetryOne(t *testing.T) {
	t.Run("delivers a confidential entry", func(t *testing.T) {
		store, _ := newTestStore(t)
		ctx := context.Background()

		req := testRequest("question confidentielle")
		req.ConfidentialMode = true
		require.NoError(t, store.Enqueue(ctx, req))

		require.NoError(t, store.RetryOne(ctx, req.ID, okSender()))

		n, err := store.Len(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("unknown id", func(t *testing.T) {
		store, _ := newTestStore(t)
		err := store.RetryOne(context.Background(), "missing", okSender())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delivery failure keeps the entry", func(t *testing.T) {
		store, _ := newTestStore(t)
		ctx := context.Background()

		req := testRequest("question")
		require.NoError(t, store.Enqueue(ctx, req))

		failing := SenderFunc(func(ctx context.Context, req *datatypes.ResearchRequest) error {
			return errors.New("agent unreachable")
		})
		err := store.RetryOne(ctx, req.ID, failing)
		require.Error(t, err)

		n, err := store.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestRemoveIsIdempotent(t *testing.T) {
	store, bus := newTestStore(t)
	ctx := context.Background()

	req := testRequest("question")
	require.NoError(t, store.Enqueue(ctx, req))

	require.NoError(t, store.Remove(ctx, req.ID))
	require.NoError(t, store.Remove(ctx, req.ID))
	require.NoError(t, store.Remove(ctx, "never-existed"))

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Only the actual removal published an event.
	assert.Len(t, bus.RecentByType(events.TypeOutboxRemoved), 1)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := storage.Config{Path: dir}
	db, err := storage.Open(cfg)
	require.NoError(t, err)

	store, err := New(db, nil, quietLogger())
	require.NoError(t, err)

	first := testRequest("première question")
	second := testRequest("seconde question")
	require.NoError(t, store.Enqueue(ctx, first))
	require.NoError(t, store.Enqueue(ctx, second))

	require.NoError(t, store.Close())
	require.NoError(t, db.Close())

	db, err = storage.Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	store, err = New(db, nil, quietLogger())
	require.NoError(t, err)
	defer store.Close()

	items, err := store.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, first.ID, items[0].ID)
	assert.Equal(t, second.ID, items[1].ID)
}

func TestFlushIsSingleFlight(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Enqueue(ctx, testRequest("question")))

	started := make(chan struct{})
	release := make(chan struct{})
	blocking := SenderFunc(func(ctx context.Context, req *datatypes.ResearchRequest) error {
		close(started)
		<-release
		return nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := store.Flush(ctx, blocking)
		done <- err
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first flush never started")
	}

	_, err := store.Flush(ctx, okSender())
	assert.ErrorIs(t, err, ErrFlushBusy)

	close(release)
	require.NoError(t, <-done)

	// With the first flush finished, flushing works again.
	_, err = store.Flush(ctx, okSender())
	require.NoError(t, err)
}

func TestCorruptedEntriesAreDropped(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	valid := testRequest("question valide")
	require.NoError(t, store.Enqueue(ctx, valid))

	corruptKey := []byte("outbox/00000000000000009999/corrupt")
	err := store.db.Update(ctx, func(txn *badger.Txn) error {
		return txn.Set(corruptKey, []byte("{not json"))
	})
	require.NoError(t, err)

	items, err := store.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, valid.ID, items[0].ID)

	// The corrupted entry was purged, not just skipped.
	err = store.db.View(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(corruptKey)
		return err
	})
	assert.ErrorIs(t, err, badger.ErrKeyNotFound)
}

func TestOperationsAfterClose(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Close())

	ctx := context.Background()
	assert.ErrorIs(t, store.Enqueue(ctx, testRequest("q")), ErrClosed)
	_, err := store.Items(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = store.Flush(ctx, okSender())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, store.RetryOne(ctx, "id", okSender()), ErrClosed)
}
