// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type key struct {
	segno, cg int32
	first     int64
}

func collect(t *testing.T, s IndexScan, dir ScanDirection) []key {
	t.Helper()
	var keys []key
	for {
		tup, ok, err := s.Next(dir)
		require.NoError(t, err)
		if !ok {
			break
		}
		keys = append(keys, key{tup.Segno, tup.ColumnGroupNo, tup.FirstRowNum})
	}
	require.NoError(t, s.End())
	return keys
}

func TestIndexScan(t *testing.T) {
	d := openTestDB(t)
	e := newTable(t, d, 2, true)

	txn := d.Begin()
	defer txn.Commit()
	rel, err := txn.OpenRelation(e.BlkdirRelID, RowExclusiveLock)
	require.NoError(t, err)
	defer rel.Close(RowExclusiveLock)
	idx, err := txn.OpenIndex(e.BlkdirIdxID, AccessShareLock)
	require.NoError(t, err)
	defer idx.Close(AccessShareLock)

	for _, k := range []key{
		{1, 0, 1}, {1, 0, 200}, {1, 0, 400}, {1, 1, 1}, {1, 1, 300}, {2, 0, 1}, {0, 0, 50},
	} {
		_, err := rel.Insert(testRow(k.segno, k.cg, k.first, nil))
		require.NoError(t, err)
	}

	scan := func(dir ScanDirection, keys ...ScanKey) []key {
		s, err := idx.BeginScan(rel, nil, keys)
		require.NoError(t, err)
		return collect(t, s, dir)
	}

	require.Equal(t, []key{{0, 0, 50}, {1, 0, 1}, {1, 0, 200}, {1, 0, 400}, {1, 1, 1}, {1, 1, 300}, {2, 0, 1}},
		scan(Forward))
	require.Equal(t, []key{{1, 0, 1}, {1, 0, 200}, {1, 0, 400}, {1, 1, 1}, {1, 1, 300}},
		scan(Forward, ScanKey{AttrSegno, StrategyEqual, 1}))

	eq := func(attr int, v int64) ScanKey { return ScanKey{attr, StrategyEqual, v} }
	segCG := []ScanKey{eq(AttrSegno, 1), eq(AttrColumnGroupNo, 0)}
	le := func(v int64) []ScanKey {
		return append(segCG[:2:2], ScanKey{AttrFirstRowNum, StrategyLessEqual, v})
	}

	// The backward <= scan yields the closest preceding row first.
	require.Equal(t, []key{{1, 0, 200}, {1, 0, 1}}, scan(Backward, le(399)...))
	require.Equal(t, []key{{1, 0, 400}, {1, 0, 200}, {1, 0, 1}}, scan(Backward, le(400)...))
	require.Empty(t, scan(Backward, le(0)...))

	require.Equal(t, []key{{1, 0, 1}},
		scan(Forward, append(segCG[:2:2], ScanKey{AttrFirstRowNum, StrategyLess, 200})...))
	require.Equal(t, []key{{1, 0, 400}},
		scan(Forward, append(segCG[:2:2], ScanKey{AttrFirstRowNum, StrategyGreater, 200})...))
	require.Equal(t, []key{{1, 0, 200}, {1, 0, 400}},
		scan(Forward, append(segCG[:2:2], ScanKey{AttrFirstRowNum, StrategyGreaterEqual, 200})...))

	// Changing direction mid-scan.
	s, err := idx.BeginScan(rel, nil, segCG)
	require.NoError(t, err)
	tup, ok, err := s.Next(Forward)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), tup.FirstRowNum)
	tup, _, _ = s.Next(Forward)
	require.Equal(t, int64(200), tup.FirstRowNum)
	tup, _, _ = s.Next(Backward)
	require.Equal(t, int64(1), tup.FirstRowNum)
	require.NoError(t, s.End())

	// Keys must name an attribute prefix and only the last may be an
	// inequality.
	_, err = idx.BeginScan(rel, nil, []ScanKey{eq(AttrColumnGroupNo, 0)})
	require.Error(t, err)
	_, err = idx.BeginScan(rel, nil, []ScanKey{{AttrSegno, StrategyLess, 3}, eq(AttrColumnGroupNo, 0)})
	require.Error(t, err)
	_, err = idx.BeginScan(rel, nil, []ScanKey{eq(AttrSegno, 1<<40)})
	require.Error(t, err)
}

func TestIndexMaintainedOnUpdate(t *testing.T) {
	d := openTestDB(t)
	e := newTable(t, d, 1, false)
	txn := d.Begin()
	defer txn.Commit()
	rel, err := txn.OpenRelation(e.BlkdirRelID, RowExclusiveLock)
	require.NoError(t, err)
	defer rel.Close(RowExclusiveLock)
	idx, err := txn.OpenIndex(e.BlkdirIdxID, AccessShareLock)
	require.NoError(t, err)
	defer idx.Close(AccessShareLock)

	id, err := rel.Insert(testRow(1, 0, 1, nil))
	require.NoError(t, err)
	require.NoError(t, rel.Update(id, testRow(1, 0, 5, []byte("x"))))

	s, err := idx.BeginScan(rel, nil, nil)
	require.NoError(t, err)
	require.Equal(t, []key{{1, 0, 5}}, collect(t, s, Forward))

	require.NoError(t, rel.Delete(id))
	s, err = idx.BeginScan(rel, nil, nil)
	require.NoError(t, err)
	require.Empty(t, collect(t, s, Forward))
}
