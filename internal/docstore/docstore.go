// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package docstore persists a single JSON document per file. Every write is a
// read-modify-write transaction held under an exclusive advisory lock on a
// sidecar "<file>.lock", and lands on disk through a temp file and rename, so
// readers never observe a partially written document.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultLockTimeout = 5 * time.Second
	DefaultRetryDelay  = 10 * time.Millisecond
)

// ErrLockTimeout is returned when the file lock cannot be acquired in time.
var ErrLockTimeout = errors.New("docstore: timed out waiting for file lock")

// Options configures a File.
type Options struct {
	// LockTimeout bounds how long Update waits for the file lock.
	LockTimeout time.Duration
	// RetryDelay is the polling interval while the lock is held elsewhere.
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// File is a JSON document of type T stored at a fixed path.
// A missing, empty or corrupt file reads as the zero value of T.
type File[T any] struct {
	path        string
	lock        *flock.Flock
	mu          sync.Mutex // serializes writers within this process
	lockTimeout time.Duration
	retryDelay  time.Duration
	logger      *slog.Logger
}

// Open returns a File for path. Nothing is read or created until first use.
func Open[T any](path string, opts Options) *File[T] {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &File[T]{
		path:        path,
		lock:        flock.New(path + ".lock"),
		lockTimeout: opts.LockTimeout,
		retryDelay:  opts.RetryDelay,
		logger:      opts.Logger,
	}
}

// Path returns the document's file path.
func (f *File[T]) Path() string {
	return f.path
}

// Exists reports whether the document file is present on disk.
func (f *File[T]) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// Read returns the current document without taking the lock.
func (f *File[T]) Read(_ context.Context) (T, error) {
	var doc T
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("reading %s: %w", f.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		f.logger.Warn("corrupt document treated as empty", "path", f.path, "error", err)
		var empty T
		return empty, nil
	}
	return doc, nil
}

// Update runs fn against the current document and writes the result back.
// The file lock is held from the read until the rename completes. If fn
// returns an error nothing is written and the error is returned unchanged.
func (f *File[T]) Update(ctx context.Context, fn func(doc *T) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", f.path, err)
	}

	if err := f.acquire(ctx); err != nil {
		return err
	}
	defer func() {
		if err := f.lock.Unlock(); err != nil {
			f.logger.Error("releasing file lock", "path", f.path, "error", err)
		}
	}()

	doc, err := f.Read(ctx)
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}
	return f.write(doc)
}

func (f *File[T]) acquire(ctx context.Context) error {
	lockCtx, cancel := context.WithTimeout(ctx, f.lockTimeout)
	defer cancel()

	ok, err := f.lock.TryLockContext(lockCtx, f.retryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("locking %s: %w", f.path, ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrLockTimeout, f.path)
		}
		return fmt.Errorf("locking %s: %w", f.path, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLockTimeout, f.path)
	}
	return nil
}

// write encodes doc with four-space indentation and without HTML escaping.
func (f *File[T]) write(doc T) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding %s: %w", f.path, err)
	}

	dir, base := filepath.Split(f.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", f.path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("writing %s: %w", f.path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("syncing %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing %s: %w", f.path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", f.path, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		cleanup()
		return fmt.Errorf("replacing %s: %w", f.path, err)
	}
	return nil
}
