// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package outbox persists research requests that could not be
// delivered to the agent service, preserving submission order across
// restarts.
//
// The store is backed by BadgerDB. Each entry lives under
// outbox/<seq>/<id> where seq is a zero-padded monotonic sequence, so
// a prefix iteration yields entries in insertion order. Flush walks
// the entries in order and hands each to a Sender; a failed item stays
// in place and does not block the items behind it.
//
// Thread Safety: all methods are safe for concurrent use. Flush is
// single-flight: while one flush is in progress, concurrent Flush
// calls return ErrFlushBusy without touching the store.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/PraetorAI/PraetorLocal/pkg/logging"
	"github.com/PraetorAI/PraetorLocal/services/counsel/datatypes"
	"github.com/PraetorAI/PraetorLocal/services/counsel/events"
	"github.com/PraetorAI/PraetorLocal/services/counsel/storage"
)

const (
	keyPrefix   = "outbox/"
	seqKey      = "outbox_seq"
	seqLeaseLen = 64
)

var (
	// ErrClosed is returned by all operations after Close.
	ErrClosed = errors.New("outbox: store is closed")

	// ErrFlushBusy is returned when a flush is already in progress.
	// Callers treat it as "already being handled", not a failure.
	ErrFlushBusy = errors.New("outbox: flush already in progress")

	// ErrNotFound is returned by RetryOne for an unknown request ID.
	ErrNotFound = errors.New("outbox: request not found")
)

// Sender delivers one queued request to the agent service.
type Sender interface {
	Send(ctx context.Context, req *datatypes.ResearchRequest) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, req *datatypes.ResearchRequest) error

func (f SenderFunc) Send(ctx context.Context, req *datatypes.ResearchRequest) error {
	return f(ctx, req)
}

// FlushResult summarizes one flush pass.
type FlushResult struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`

	// Skipped counts confidential entries left untouched. Those are
	// only delivered through an explicit RetryOne.
	Skipped int `json:"skipped"`
}

// Store is the durable research outbox.
type Store struct {
	db       *storage.DB
	bus      *events.Bus
	log      *logging.Logger
	seq      *badger.Sequence
	flushing atomic.Bool
	closed   atomic.Bool
}

// New creates a Store over an open database. The bus receives
// enqueued/removed/flushed events; it may be nil in tests that do not
// observe events.
func New(db *storage.DB, bus *events.Bus, log *logging.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("outbox: db must not be nil")
	}
	if log == nil {
		log = logging.Default()
	}

	seq, err := db.GetSequence([]byte(seqKey), seqLeaseLen)
	if err != nil {
		return nil, fmt.Errorf("outbox: open sequence: %w", err)
	}

	return &Store{db: db, bus: bus, log: log, seq: seq}, nil
}

// Close releases the sequence lease. The underlying database is owned
// by the caller and stays open.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.seq.Release()
}

// Enqueue appends a request to the outbox. A missing request ID is
// assigned; EnqueuedAt is stamped if zero.
func (s *Store) Enqueue(ctx context.Context, req *datatypes.ResearchRequest) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if req == nil {
		return errors.New("outbox: request must not be nil")
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.EnqueuedAt.IsZero() {
		req.EnqueuedAt = time.Now().UTC()
	}

	value, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("outbox: encode request %s: %w", req.ID, err)
	}

	n, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("outbox: next sequence: %w", err)
	}

	err = s.db.Update(ctx, func(txn *badger.Txn) error {
		return txn.Set(entryKey(n, req.ID), value)
	})
	if err != nil {
		return fmt.Errorf("outbox: persist request %s: %w", req.ID, err)
	}

	s.log.Debug("outbox request enqueued", "request_id", req.ID, "confidential", req.ConfidentialMode)
	s.publish(ctx, events.TypeOutboxEnqueued, req.ID, 0, 0)
	return nil
}

// Items returns a snapshot of queued requests in insertion order.
// Corrupted entries are dropped from the store with a warning.
func (s *Store) Items(ctx context.Context) ([]*datatypes.ResearchRequest, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]*datatypes.ResearchRequest, 0, len(entries))
	for _, e := range entries {
		items = append(items, e.req)
	}
	return items, nil
}

// Len returns the number of queued requests.
func (s *Store) Len(ctx context.Context) (int, error) {
	items, err := s.Items(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Remove deletes a queued request by ID. Removing an absent ID is a
// no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	entries, err := s.load(ctx)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.req.ID != id {
			continue
		}
		err := s.db.Update(ctx, func(txn *badger.Txn) error {
			return txn.Delete(e.key)
		})
		if err != nil {
			return fmt.Errorf("outbox: remove request %s: %w", id, err)
		}
		s.log.Debug("outbox request removed", "request_id", id)
		s.publish(ctx, events.TypeOutboxRemoved, id, 0, 0)
		return nil
	}
	return nil
}

// Flush delivers queued requests in insertion order through sender.
// Confidential entries are skipped; use RetryOne to deliver those
// explicitly. A failed item stays queued and the pass continues with
// the next item. Only one flush runs at a time; concurrent calls get
// ErrFlushBusy.
func (s *Store) Flush(ctx context.Context, sender Sender) (FlushResult, error) {
	return s.flush(ctx, sender, true)
}

// FlushAll is the manual variant of Flush: it delivers confidential
// entries too.
func (s *Store) FlushAll(ctx context.Context, sender Sender) (FlushResult, error) {
	return s.flush(ctx, sender, false)
}

func (s *Store) flush(ctx context.Context, sender Sender, skipConfidential bool) (FlushResult, error) {
	if s.closed.Load() {
		return FlushResult{}, ErrClosed
	}
	if sender == nil {
		return FlushResult{}, errors.New("outbox: sender must not be nil")
	}
	if !s.flushing.CompareAndSwap(false, true) {
		return FlushResult{}, ErrFlushBusy
	}
	defer s.flushing.Store(false)

	entries, err := s.load(ctx)
	if err != nil {
		return FlushResult{}, err
	}

	var result FlushResult
	if len(entries) == 0 {
		return result, nil
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("outbox: flush interrupted: %w", err)
		}
		if skipConfidential && e.req.ConfidentialMode {
			result.Skipped++
			continue
		}

		result.Attempted++
		if err := sender.Send(ctx, e.req); err != nil {
			result.Failed++
			s.log.Warn("outbox delivery failed, request stays queued",
				"request_id", e.req.ID, "error", err.Error())
			continue
		}

		err := s.db.Update(ctx, func(txn *badger.Txn) error {
			return txn.Delete(e.key)
		})
		if err != nil {
			// Delivered but not dequeued; the next flush will resend.
			result.Failed++
			s.log.Error("outbox dequeue failed after delivery",
				"request_id", e.req.ID, "error", err.Error())
			continue
		}
		result.Delivered++
	}

	if result.Attempted > 0 {
		s.log.Info("outbox flush complete",
			"delivered", result.Delivered, "failed", result.Failed, "skipped", result.Skipped)
	}
	s.publish(ctx, events.TypeOutboxFlushed, "", result.Delivered, result.Failed)
	return result, nil
}

// RetryOne delivers a single queued request by ID, regardless of its
// confidential flag. On success the entry is removed; on failure it
// stays queued and the delivery error is returned.
func (s *Store) RetryOne(ctx context.Context, id string, sender Sender) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if sender == nil {
		return errors.New("outbox: sender must not be nil")
	}

	entries, err := s.load(ctx)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.req.ID != id {
			continue
		}
		if err := sender.Send(ctx, e.req); err != nil {
			return fmt.Errorf("outbox: deliver request %s: %w", id, err)
		}
		err := s.db.Update(ctx, func(txn *badger.Txn) error {
			return txn.Delete(e.key)
		})
		if err != nil {
			return fmt.Errorf("outbox: dequeue request %s: %w", id, err)
		}
		s.log.Info("outbox request delivered on retry", "request_id", id)
		s.publish(ctx, events.TypeOutboxFlushed, id, 1, 0)
		return nil
	}
	return ErrNotFound
}

type entry struct {
	key []byte
	req *datatypes.ResearchRequest
}

// load reads all entries in key order, dropping corrupted values from
// the store.
func (s *Store) load(ctx context.Context) ([]entry, error) {
	var entries []entry
	var corrupt [][]byte

	err := s.db.View(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			err := item.Value(func(val []byte) error {
				var req datatypes.ResearchRequest
				if err := json.Unmarshal(val, &req); err != nil || req.ID == "" {
					s.log.Warn("dropping corrupted outbox entry", "key", string(key))
					corrupt = append(corrupt, key)
					return nil
				}
				entries = append(entries, entry{key: key, req: &req})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("outbox: read entries: %w", err)
	}

	if len(corrupt) > 0 {
		err := s.db.Update(ctx, func(txn *badger.Txn) error {
			for _, key := range corrupt {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			s.log.Warn("failed to purge corrupted outbox entries", "error", err.Error())
		}
	}
	return entries, nil
}

func (s *Store) publish(ctx context.Context, eventType events.Type, requestID string, delivered, failed int) {
	if s.bus == nil {
		return
	}
	pending, err := s.pendingCount(ctx)
	if err != nil {
		pending = -1
	}
	s.bus.Publish(eventType, events.OutboxData{
		RequestID: requestID,
		Pending:   pending,
		Delivered: delivered,
		Failed:    failed,
	})
}

func (s *Store) pendingCount(ctx context.Context) (int, error) {
	count := 0
	err := s.db.View(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// entryKey builds outbox/<seq>/<id>. The sequence is zero-padded so
// lexicographic key order matches insertion order.
func entryKey(seq uint64, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", keyPrefix, seq, id))
}
