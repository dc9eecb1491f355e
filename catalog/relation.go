// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package catalog

import (
	"github.com/cockroachdb/blockdir/internal/invariants"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// Access opens relations and indexes on behalf of a transaction.
type Access interface {
	OpenRelation(id RelID, mode LockMode) (Relation, error)
	OpenIndex(id RelID, mode LockMode) (Index, error)
	// NewSnapshot returns a read view of the catalog's current state. The
	// caller must Close it.
	NewSnapshot() *Snapshot
}

// Relation is an open heap relation.
type Relation interface {
	ID() RelID
	// Insert stores row and returns its new RowID. The relation's index, if
	// any, is maintained.
	Insert(row *Row) (RowID, error)
	// Update replaces the row stored at id.
	Update(id RowID, row *Row) error
	// Delete removes the row stored at id.
	Delete(id RowID) error
	// Fetch returns the row stored at id as of snap.
	Fetch(snap *Snapshot, id RowID) (Row, error)
	// BeginScan returns a scan over every row in RowID order.
	BeginScan(snap *Snapshot) (HeapScan, error)
	// Close closes the relation and releases one acquisition of mode. With
	// NoLock the lock acquired at open is retained until the transaction
	// commits.
	Close(mode LockMode) error
}

// HeapScan iterates over the rows of a relation.
type HeapScan interface {
	// Next returns the next row; ok is false once the scan is exhausted.
	Next() (t Tuple, ok bool, err error)
	End() error
}

type heapRelation struct {
	db     *DB
	txn    *Txn
	meta   relationMeta
	closed bool
	check  invariants.CloseChecker
}

var _ Relation = (*heapRelation)(nil)

func (r *heapRelation) ID() RelID { return r.meta.ID }

func (r *heapRelation) checkWritable() error {
	if r.closed {
		return ErrClosed
	}
	if r.txn.done.Load() {
		return ErrTxnDone
	}
	if !r.txn.canWrite(r.meta.ID) {
		return errors.AssertionFailedf("relation %d is not locked for writing", r.meta.ID)
	}
	return nil
}

// fetchLatestLocked reads the current version of a row. r.db.mu must be
// held.
func (r *heapRelation) fetchLatestLocked(id RowID) (Row, error) {
	v, ok, err := get(r.db.pdb, heapKey(r.meta.ID, id))
	if err != nil {
		return Row{}, err
	}
	if !ok {
		return Row{}, errors.Wrapf(ErrRowNotFound, "relation %d row %d", r.meta.ID, id)
	}
	return decodeRow(v)
}

func (r *heapRelation) Insert(row *Row) (RowID, error) {
	if err := r.checkWritable(); err != nil {
		return InvalidRowID, err
	}
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.mu.nextRowID
	d.mu.nextRowID++

	b := d.pdb.NewBatch()
	defer b.Close()
	if err := b.Set(metaNextRowID, encodeCounter(uint64(d.mu.nextRowID)), nil); err != nil {
		return InvalidRowID, err
	}
	if err := b.Set(heapKey(r.meta.ID, id), encodeRow(row), nil); err != nil {
		return InvalidRowID, err
	}
	if r.meta.Related.IsValid() {
		if err := b.Set(indexKey(r.meta.Related, row, id), nil, nil); err != nil {
			return InvalidRowID, err
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return InvalidRowID, err
	}
	return id, nil
}

func (r *heapRelation) Update(id RowID, row *Row) error {
	if err := r.checkWritable(); err != nil {
		return err
	}
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	old, err := r.fetchLatestLocked(id)
	if err != nil {
		return err
	}
	b := d.pdb.NewBatch()
	defer b.Close()
	if r.meta.Related.IsValid() {
		if err := b.Delete(indexKey(r.meta.Related, &old, id), nil); err != nil {
			return err
		}
		if err := b.Set(indexKey(r.meta.Related, row, id), nil, nil); err != nil {
			return err
		}
	}
	if err := b.Set(heapKey(r.meta.ID, id), encodeRow(row), nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

func (r *heapRelation) Delete(id RowID) error {
	if err := r.checkWritable(); err != nil {
		return err
	}
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	old, err := r.fetchLatestLocked(id)
	if err != nil {
		return err
	}
	b := d.pdb.NewBatch()
	defer b.Close()
	if r.meta.Related.IsValid() {
		if err := b.Delete(indexKey(r.meta.Related, &old, id), nil); err != nil {
			return err
		}
	}
	if err := b.Delete(heapKey(r.meta.ID, id), nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

func (r *heapRelation) Fetch(snap *Snapshot, id RowID) (Row, error) {
	if r.closed {
		return Row{}, ErrClosed
	}
	return fetchRow(r.db.reader(snap), r.meta.ID, id)
}

func fetchRow(rd reader, rel RelID, id RowID) (Row, error) {
	v, ok, err := get(rd, heapKey(rel, id))
	if err != nil {
		return Row{}, err
	}
	if !ok {
		return Row{}, errors.Wrapf(ErrRowNotFound, "relation %d row %d", rel, id)
	}
	return decodeRow(v)
}

func (r *heapRelation) BeginScan(snap *Snapshot) (HeapScan, error) {
	if r.closed {
		return nil, ErrClosed
	}
	prefix := heapPrefix(r.meta.ID)
	iter, err := r.db.reader(snap).NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixSuccessor(prefix),
	})
	if err != nil {
		return nil, err
	}
	s := &heapScan{iter: iter}
	invariants.SetFinalizer(s, checkHeapScanClosed)
	return s, nil
}

func checkHeapScanClosed(s *heapScan) {
	if !s.closed {
		panic("catalog: heap scan was not ended")
	}
}

func (r *heapRelation) Close(mode LockMode) error {
	r.check.Close()
	if r.closed {
		return ErrClosed
	}
	r.closed = true
	return r.db.locks.release(r.txn, r.meta.ID, mode)
}

type heapScan struct {
	iter    *pebble.Iterator
	started bool
	closed  bool
}

func (s *heapScan) Next() (Tuple, bool, error) {
	if s.closed {
		return Tuple{}, false, ErrClosed
	}
	var valid bool
	if !s.started {
		s.started = true
		valid = s.iter.First()
	} else {
		valid = s.iter.Next()
	}
	if !valid {
		return Tuple{}, false, s.iter.Error()
	}
	id, err := decodeHeapKey(s.iter.Key())
	if err != nil {
		return Tuple{}, false, err
	}
	row, err := decodeRow(s.iter.Value())
	if err != nil {
		return Tuple{}, false, err
	}
	return Tuple{ID: id, Row: row}, true, nil
}

func (s *heapScan) End() error {
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	return s.iter.Close()
}
