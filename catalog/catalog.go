// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package catalog provides the transactional relation store that holds
// append-only table metadata and block directory rows.
//
// The catalog is a thin relational layer over a Pebble key-value store. It
// models what the block directory needs from a database catalog: heap
// relations addressed by RowID, a single ordered index per heap keyed on
// (segno, columngroupno, firstrownum), relation-level locks owned by a
// transaction, and read snapshots.
package catalog

import (
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/blockdir/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

var (
	// ErrRelationNotFound is returned when opening a relation that does not
	// exist or is of the wrong kind.
	ErrRelationNotFound = errors.New("catalog: relation not found")
	// ErrRowNotFound is returned when a RowID does not name a stored row.
	ErrRowNotFound = errors.New("catalog: row not found")
	// ErrTxnDone is returned when using a committed transaction.
	ErrTxnDone = errors.New("catalog: transaction already committed")
	// ErrClosed is returned when using a closed relation, index, or scan.
	ErrClosed = errors.New("catalog: closed")
)

// Options configures a catalog.
type Options struct {
	// FS is the filesystem holding the catalog. Defaults to vfs.Default.
	FS vfs.FS
	// Logger receives informational messages. Defaults to base.DefaultLogger.
	Logger base.Logger
	// ReadOnly opens an existing catalog without permitting writes.
	ReadOnly bool
}

// EnsureDefaults fills in default values for unset fields.
func (o *Options) EnsureDefaults() *Options {
	if o == nil {
		o = &Options{}
	}
	if o.FS == nil {
		o.FS = vfs.Default
	}
	if o.Logger == nil {
		o.Logger = base.DefaultLogger
	}
	return o
}

// reader is implemented by *pebble.DB and *pebble.Snapshot.
type reader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

// DB is an open catalog.
type DB struct {
	pdb    *pebble.DB
	opts   *Options
	locks  lockManager
	nextTx atomic.Uint64

	// mu serializes writers and guards the id counters.
	mu struct {
		sync.Mutex
		nextRelID RelID
		nextRowID RowID
	}
}

// Open opens the catalog stored in dirname, creating it if it does not
// exist.
func Open(dirname string, opts *Options) (*DB, error) {
	opts = opts.EnsureDefaults()
	pdb, err := pebble.Open(dirname, &pebble.Options{
		FS:       opts.FS,
		ReadOnly: opts.ReadOnly,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "opening catalog %q", dirname)
	}
	d := &DB{pdb: pdb, opts: opts}
	d.locks.init()
	relID, err := d.loadCounter(metaNextRelID)
	if err != nil {
		_ = pdb.Close()
		return nil, err
	}
	rowID, err := d.loadCounter(metaNextRowID)
	if err != nil {
		_ = pdb.Close()
		return nil, err
	}
	d.mu.nextRelID = max(RelID(relID), 1)
	d.mu.nextRowID = max(RowID(rowID), 1)
	return d, nil
}

func (d *DB) loadCounter(key []byte) (uint64, error) {
	v, closer, err := d.pdb.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	defer closer.Close()
	if len(v) != 8 {
		return 0, base.CorruptionErrorf("catalog: counter %q has %d bytes", errors.Safe(key[1:]), errors.Safe(len(v)))
	}
	return binary.LittleEndian.Uint64(v), nil
}

func encodeCounter(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}

// Close closes the catalog. Outstanding snapshots must be closed first.
func (d *DB) Close() error {
	return d.pdb.Close()
}

// Logger returns the catalog's logger.
func (d *DB) Logger() base.Logger { return d.opts.Logger }

func (d *DB) reader(snap *Snapshot) reader {
	if snap == nil {
		return d.pdb
	}
	return snap.snap
}

// get returns a copy of the value stored at key, or nil and false.
func get(r reader, key []byte) ([]byte, bool, error) {
	v, closer, err := r.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), true, nil
}

// Snapshot is a consistent read view of the catalog.
type Snapshot struct {
	snap *pebble.Snapshot
}

// NewSnapshot returns a snapshot of the catalog's current state. The caller
// must Close it.
func (d *DB) NewSnapshot() *Snapshot {
	return &Snapshot{snap: d.pdb.NewSnapshot()}
}

// Close releases the snapshot.
func (s *Snapshot) Close() error {
	return s.snap.Close()
}

// Txn owns relation locks. Locks acquired through a Txn's relations are
// released when the relation is closed with the lock mode, or at Commit.
type Txn struct {
	db   *DB
	id   uint64
	done atomic.Bool
}

// Begin starts a transaction.
func (d *DB) Begin() *Txn {
	return &Txn{db: d, id: d.nextTx.Add(1)}
}

// ID returns the transaction's identifier.
func (t *Txn) ID() uint64 { return t.id }

// Commit ends the transaction, releasing every lock it still holds.
func (t *Txn) Commit() error {
	if t.done.Swap(true) {
		return ErrTxnDone
	}
	t.db.locks.releaseAll(t)
	return nil
}

// HeldLocks returns the number of times t holds mode on rel.
func (t *Txn) HeldLocks(rel RelID, mode LockMode) int {
	return t.db.locks.held(t, rel, mode)
}

func (t *Txn) canWrite(rel RelID) bool {
	return t.db.locks.held(t, rel, RowExclusiveLock) > 0 ||
		t.db.locks.held(t, rel, AccessExclusiveLock) > 0
}

func (t *Txn) openMeta(id RelID, kind RelKind, mode LockMode) (relationMeta, error) {
	if t.done.Load() {
		return relationMeta{}, ErrTxnDone
	}
	v, ok, err := get(t.db.pdb, relationKey(id))
	if err != nil {
		return relationMeta{}, err
	}
	if !ok {
		return relationMeta{}, errors.Wrapf(ErrRelationNotFound, "relation %d", id)
	}
	m, err := decodeRelationMeta(v)
	if err != nil {
		return relationMeta{}, err
	}
	if m.Kind != kind {
		return relationMeta{}, errors.Wrapf(ErrRelationNotFound, "relation %d is a %s, not a %s",
			id, m.Kind, kind)
	}
	t.db.locks.acquire(t, id, mode)
	return m, nil
}

// OpenRelation opens heap relation id, acquiring mode on it.
func (t *Txn) OpenRelation(id RelID, mode LockMode) (Relation, error) {
	m, err := t.openMeta(id, RelKindHeap, mode)
	if err != nil {
		return nil, err
	}
	return &heapRelation{db: t.db, txn: t, meta: m}, nil
}

// OpenIndex opens index id, acquiring mode on it.
func (t *Txn) OpenIndex(id RelID, mode LockMode) (Index, error) {
	m, err := t.openMeta(id, RelKindIndex, mode)
	if err != nil {
		return nil, err
	}
	return &btreeIndex{db: t.db, txn: t, meta: m}, nil
}

// NewSnapshot is part of the Access interface.
func (t *Txn) NewSnapshot() *Snapshot {
	return t.db.NewSnapshot()
}

var _ Access = (*Txn)(nil)
