// Package ttstore provides an optional persistent cache of transposition
// table entries, so analysis accumulated across multiple "go" commands in
// the same ucinewgame session survives an engine restart. It is off by
// default and only activated by the UCI "AnalysisLog" option.
package ttstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/chessplay/internal/engine"
)

// keyNamespace prefixes every on-disk key so the store's xxhash-derived
// keyspace never collides with the in-memory Zobrist hashing used by the
// search (the two serve different purposes: one is a stable disk key, the
// other a collision-tolerant search-time fingerprint).
const keyNamespace = "ttstore/v1/"

// Store wraps a BadgerDB instance holding transposition-table snapshots.
type Store struct {
	db   *badger.DB
	path string

	flushGroup  *errgroup.Group
	flushCancel context.CancelFunc
}

// Open opens (creating if necessary) a persistent analysis cache at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("ttstore: open %s: %w", path, err)
	}

	return &Store{db: db, path: path}, nil
}

// Close stops any background flush loop and closes the underlying database.
func (s *Store) Close() error {
	s.StopBackgroundFlush()
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// StartBackgroundFlush periodically snapshots tt under sessionTag every
// interval until StopBackgroundFlush or Close is called. A second call
// replaces the previous loop. Errors from individual flushes are swallowed
// (analysis persistence is best-effort); the background goroutine itself
// never returns an error the caller needs to observe synchronously.
func (s *Store) StartBackgroundFlush(tt *engine.TranspositionTable, sessionTag string, interval time.Duration) {
	s.StopBackgroundFlush()

	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				_ = s.Save(sessionTag, tt.Snapshot())
			}
		}
	})

	s.flushGroup = group
	s.flushCancel = cancel
}

// StopBackgroundFlush cancels any running flush loop and waits for it to
// exit. Safe to call when no loop is running.
func (s *Store) StopBackgroundFlush() {
	if s.flushCancel != nil {
		s.flushCancel()
		_ = s.flushGroup.Wait()
		s.flushCancel = nil
		s.flushGroup = nil
	}
}

// diskKey derives the on-disk key for a snapshot taken under the given
// session tag (e.g. the root FEN or a session counter), hashed with xxhash
// rather than reused as a raw Zobrist key.
func diskKey(sessionTag string) []byte {
	h := xxhash.Sum64String(keyNamespace + sessionTag)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, h)
	return buf
}

// Save persists a snapshot of tt under sessionTag, overwriting any prior
// snapshot for the same tag.
func (s *Store) Save(sessionTag string, snap []engine.SnapshotEntry) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("ttstore: encode snapshot: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(diskKey(sessionTag), buf.Bytes())
	})
}

// Load retrieves a previously saved snapshot for sessionTag. Returns
// ok=false if no snapshot exists for that tag (a cache miss, not an error).
func (s *Store) Load(sessionTag string) (snap []engine.SnapshotEntry, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(diskKey(sessionTag))
		if getErr == badger.ErrKeyNotFound {
			return nil
		}
		if getErr != nil {
			return getErr
		}

		ok = true
		return item.Value(func(val []byte) error {
			return gob.NewDecoder(bytes.NewReader(val)).Decode(&snap)
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("ttstore: load: %w", err)
	}
	return snap, ok, nil
}
