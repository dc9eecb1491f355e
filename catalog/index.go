// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package catalog

import (
	"math"

	"github.com/cockroachdb/blockdir/internal/base"
	"github.com/cockroachdb/blockdir/internal/invariants"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// Index attribute numbers of the block directory index.
const (
	AttrSegno         = 1
	AttrColumnGroupNo = 2
	AttrFirstRowNum   = 3
)

// StrategyNumber is the comparison a ScanKey applies.
type StrategyNumber uint8

// Strategies, numbered as the btree operator class numbers them.
const (
	StrategyLess StrategyNumber = iota + 1
	StrategyLessEqual
	StrategyEqual
	StrategyGreaterEqual
	StrategyGreater
)

func (s StrategyNumber) String() string {
	switch s {
	case StrategyLess:
		return "<"
	case StrategyLessEqual:
		return "<="
	case StrategyEqual:
		return "="
	case StrategyGreaterEqual:
		return ">="
	case StrategyGreater:
		return ">"
	default:
		return "?"
	}
}

// ScanKey restricts an index scan: index attribute AttrNo must compare to
// Argument according to Strategy.
type ScanKey struct {
	AttrNo   int
	Strategy StrategyNumber
	Argument int64
}

// ScanDirection is the direction an index scan moves in.
type ScanDirection int8

const (
	// Backward returns matching entries in descending key order.
	Backward ScanDirection = -1
	// Forward returns matching entries in ascending key order.
	Forward ScanDirection = 1
)

// Index is an open index over a heap relation.
type Index interface {
	ID() RelID
	// BeginScan starts a scan returning the rows of rel whose index keys
	// satisfy keys. Keys must name a prefix of the index attributes in order;
	// every key but the last must use StrategyEqual.
	BeginScan(rel Relation, snap *Snapshot, keys []ScanKey) (IndexScan, error)
	Close(mode LockMode) error
}

// IndexScan returns matching rows in index order.
type IndexScan interface {
	// Next returns the next row in direction dir; ok is false once the scan
	// is exhausted in that direction.
	Next(dir ScanDirection) (t Tuple, ok bool, err error)
	End() error
}

type btreeIndex struct {
	db     *DB
	txn    *Txn
	meta   relationMeta
	closed bool
	check  invariants.CloseChecker
}

var _ Index = (*btreeIndex)(nil)

func (x *btreeIndex) ID() RelID { return x.meta.ID }

func appendAttr(b []byte, attr int, v int64) ([]byte, error) {
	switch attr {
	case AttrSegno, AttrColumnGroupNo:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return nil, errors.Newf("catalog: scan argument %d out of range for index attribute %d", v, attr)
		}
		return appendInt32(b, int32(v)), nil
	case AttrFirstRowNum:
		return appendInt64(b, v), nil
	default:
		return nil, errors.Newf("catalog: unknown index attribute %d", attr)
	}
}

// scanBounds converts keys into iterator bounds over index id.
func scanBounds(id RelID, keys []ScanKey) (lower, upper []byte, _ error) {
	prefix := indexPrefix(id)
	for i, k := range keys {
		if k.AttrNo != i+1 {
			return nil, nil, errors.Newf("catalog: scan key %d names attribute %d, want %d", i, k.AttrNo, i+1)
		}
		withArg, err := appendAttr(append([]byte(nil), prefix...), k.AttrNo, k.Argument)
		if err != nil {
			return nil, nil, err
		}
		if k.Strategy == StrategyEqual {
			prefix = withArg
			continue
		}
		if i != len(keys)-1 {
			return nil, nil, errors.Newf("catalog: inequality scan key %d must be last", i)
		}
		switch k.Strategy {
		case StrategyLess:
			return prefix, withArg, nil
		case StrategyLessEqual:
			return prefix, prefixSuccessor(withArg), nil
		case StrategyGreaterEqual:
			return withArg, prefixSuccessor(prefix), nil
		case StrategyGreater:
			return prefixSuccessor(withArg), prefixSuccessor(prefix), nil
		default:
			return nil, nil, errors.Newf("catalog: unknown strategy %d", k.Strategy)
		}
	}
	return prefix, prefixSuccessor(prefix), nil
}

func (x *btreeIndex) BeginScan(rel Relation, snap *Snapshot, keys []ScanKey) (IndexScan, error) {
	if x.closed {
		return nil, ErrClosed
	}
	if rel.ID() != x.meta.Related {
		return nil, errors.AssertionFailedf("index %d is not on relation %d", x.meta.ID, rel.ID())
	}
	lower, upper, err := scanBounds(x.meta.ID, keys)
	if err != nil {
		return nil, err
	}
	s := &indexScan{heap: rel.ID()}
	if snap == nil {
		// The heap fetches must see the same state as the index iterator.
		s.owned = x.db.pdb.NewSnapshot()
		s.rd = s.owned
	} else {
		s.rd = snap.snap
	}
	if s.iter, err = s.rd.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper}); err != nil {
		if s.owned != nil {
			err = errors.CombineErrors(err, s.owned.Close())
		}
		return nil, err
	}
	invariants.SetFinalizer(s, checkIndexScanClosed)
	return s, nil
}

func checkIndexScanClosed(s *indexScan) {
	if !s.closed {
		panic("catalog: index scan was not ended")
	}
}

func (x *btreeIndex) Close(mode LockMode) error {
	x.check.Close()
	if x.closed {
		return ErrClosed
	}
	x.closed = true
	return x.db.locks.release(x.txn, x.meta.ID, mode)
}

type indexScan struct {
	rd      reader
	owned   *pebble.Snapshot
	heap    RelID
	iter    *pebble.Iterator
	started bool
	closed  bool
}

func (s *indexScan) Next(dir ScanDirection) (Tuple, bool, error) {
	if s.closed {
		return Tuple{}, false, ErrClosed
	}
	var valid bool
	switch {
	case !s.started && dir == Forward:
		valid = s.iter.First()
	case !s.started:
		valid = s.iter.Last()
	case dir == Forward:
		valid = s.iter.Next()
	default:
		valid = s.iter.Prev()
	}
	s.started = true
	if !valid {
		return Tuple{}, false, s.iter.Error()
	}
	id, err := decodeIndexKey(s.iter.Key())
	if err != nil {
		return Tuple{}, false, err
	}
	row, err := fetchRow(s.rd, s.heap, id)
	if errors.Is(err, ErrRowNotFound) {
		// The index entry and heap row are written in one batch.
		return Tuple{}, false, base.MarkCorruptionError(errors.Wrap(err, "dangling index entry"))
	} else if err != nil {
		return Tuple{}, false, err
	}
	return Tuple{ID: id, Row: row}, true, nil
}

func (s *indexScan) End() error {
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	err := s.iter.Close()
	if s.owned != nil {
		err = errors.CombineErrors(err, s.owned.Close())
	}
	return err
}
