// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package storage wraps BadgerDB for the counsel service's embedded
// persistence (the research outbox). Local, low-latency, survives
// restarts.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config holds BadgerDB settings for one database instance.
type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	// InMemory disables disk persistence. Testing only.
	InMemory bool

	// SyncWrites forces fsync on every write. Default on in production;
	// off in tests.
	SyncWrites bool

	// Logger receives BadgerDB's internal log output. Nil disables it.
	Logger *slog.Logger

	// GCInterval is how often value log garbage collection runs.
	// Zero disables GC.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum discardable fraction before a GC
	// pass rewrites a value log file.
	GCDiscardRatio float64
}

// DefaultConfig returns production settings: durable writes, GC every
// five minutes at a 0.5 discard ratio.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns settings for tests: no disk, no sync, no GC.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// DB is a managed BadgerDB instance. Safe for concurrent use; call
// Close to stop garbage collection and release the database.
type DB struct {
	*badger.DB
	gcStop chan struct{}
	gcDone chan struct{}
}

// Open opens a BadgerDB instance with the given configuration,
// creating the database directory if needed.
func Open(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	db := &DB{DB: bdb}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		db.gcStop = make(chan struct{})
		db.gcDone = make(chan struct{})
		go db.runGC(cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
	}
	return db, nil
}

func (d *DB) runGC(interval time.Duration, ratio float64, logger *slog.Logger) {
	defer close(d.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.gcStop:
			return
		case <-ticker.C:
			err := d.DB.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && logger != nil {
				logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

// Close stops garbage collection and closes the database. Safe to call
// once.
func (d *DB) Close() error {
	if d.gcStop != nil {
		close(d.gcStop)
		<-d.gcDone
	}
	return d.DB.Close()
}

// Update executes fn in a read-write transaction, committing on nil
// return. The context is checked before the transaction starts.
func (d *DB) Update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	return d.DB.Update(fn)
}

// View executes fn in a read-only transaction.
func (d *DB) View(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	return d.DB.View(fn)
}
