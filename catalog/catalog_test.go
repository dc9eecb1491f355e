// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package catalog

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/blockdir/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open("", &Options{FS: vfs.NewMem(), Logger: &base.InMemLogger{}})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, d.Close()) })
	return d
}

func newTable(t *testing.T, d *DB, numAttrs int, columnar bool) AppendOnlyEntry {
	t.Helper()
	id, err := d.CreateAppendOnlyTable("t", numAttrs, columnar)
	require.NoError(t, err)
	e, err := d.CreateBlockDirectory(id)
	require.NoError(t, err)
	return e
}

func TestAppendOnlyTable(t *testing.T) {
	d := openTestDB(t)
	id, err := d.CreateAppendOnlyTable("t", 3, true)
	require.NoError(t, err)

	e, err := d.AppendOnlyEntry(nil, id)
	require.NoError(t, err)
	require.False(t, e.HasBlockDirectory())
	require.Equal(t, 3, e.NumAttrs)

	e, err = d.CreateBlockDirectory(id)
	require.NoError(t, err)
	require.True(t, e.HasBlockDirectory())
	require.NotEqual(t, e.BlkdirRelID, e.BlkdirIdxID)
	_, err = d.CreateBlockDirectory(id)
	require.Error(t, err)

	name, err := d.RelationName(nil, e.BlkdirRelID)
	require.NoError(t, err)
	require.Equal(t, "t_blkdir", name)

	got, err := d.LookupAppendOnlyTable(nil, "t")
	require.NoError(t, err)
	require.Equal(t, e, got)
	_, err = d.LookupAppendOnlyTable(nil, "missing")
	require.True(t, errors.Is(err, ErrRelationNotFound))

	// Column-oriented segment files carry one EOF per column.
	require.Error(t, d.SetSegFile(id, SegFile{Segno: 1, EOF: []int64{100}}))
	require.NoError(t, d.SetSegFile(id, SegFile{Segno: 1, RowCount: 10, EOF: []int64{100, 200, 300}}))
	require.NoError(t, d.SetSegFile(id, SegFile{Segno: 0, RowCount: 5, EOF: []int64{1, 2, 3}}))

	e, err = d.AddColumns(id, 2)
	require.NoError(t, err)
	require.Equal(t, 5, e.NumAttrs)
	segs, err := d.SegFiles(nil, id)
	require.NoError(t, err)
	require.Equal(t, []SegFile{
		{Segno: 0, RowCount: 5, EOF: []int64{1, 2, 3, 0, 0}},
		{Segno: 1, RowCount: 10, EOF: []int64{100, 200, 300, 0, 0}},
	}, segs)

	require.NoError(t, d.DeleteSegFile(id, 0))
	_, ok, err := d.SegFile(nil, id, 0)
	require.NoError(t, err)
	require.False(t, ok)

	tables, err := d.AppendOnlyTables(nil)
	require.NoError(t, err)
	require.Len(t, tables, 1)
}

func TestReopen(t *testing.T) {
	fs := vfs.NewMem()
	d, err := Open("cat", &Options{FS: fs, Logger: &base.InMemLogger{}})
	require.NoError(t, err)
	id, err := d.CreateAppendOnlyTable("t", 1, false)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	d, err = Open("cat", &Options{FS: fs, Logger: &base.InMemLogger{}})
	require.NoError(t, err)
	defer d.Close()
	id2, err := d.CreateAppendOnlyTable("u", 1, false)
	require.NoError(t, err)
	require.Greater(t, uint32(id2), uint32(id))
}

func testRow(segno, cg int32, first int64, payload []byte) *Row {
	return &Row{Segno: segno, ColumnGroupNo: cg, FirstRowNum: first, Minipage: payload}
}

func TestRelationWrites(t *testing.T) {
	d := openTestDB(t)
	e := newTable(t, d, 1, false)

	txn := d.Begin()
	rel, err := txn.OpenRelation(e.BlkdirRelID, RowExclusiveLock)
	require.NoError(t, err)

	id1, err := rel.Insert(testRow(1, 0, 1, []byte("a")))
	require.NoError(t, err)
	id2, err := rel.Insert(testRow(1, 0, 101, []byte("b")))
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	require.NoError(t, rel.Update(id1, testRow(1, 0, 1, []byte("a2"))))
	row, err := rel.Fetch(nil, id1)
	require.NoError(t, err)
	require.Equal(t, []byte("a2"), row.Minipage)

	require.NoError(t, rel.Delete(id2))
	_, err = rel.Fetch(nil, id2)
	require.True(t, errors.Is(err, ErrRowNotFound))
	require.True(t, errors.Is(rel.Update(id2, testRow(1, 0, 101, nil)), ErrRowNotFound))

	scan, err := rel.BeginScan(nil)
	require.NoError(t, err)
	tup, ok, err := scan.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, id1, tup.ID)
	_, ok, err = scan.Next()
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, scan.End())

	require.NoError(t, rel.Close(RowExclusiveLock))
	require.NoError(t, txn.Commit())
	require.ErrorIs(t, txn.Commit(), ErrTxnDone)
}

func TestRelationReadOnlyLock(t *testing.T) {
	d := openTestDB(t)
	e := newTable(t, d, 1, false)
	txn := d.Begin()
	defer txn.Commit()
	rel, err := txn.OpenRelation(e.BlkdirRelID, AccessShareLock)
	require.NoError(t, err)
	_, err = rel.Insert(testRow(1, 0, 1, nil))
	require.True(t, errors.IsAssertionFailure(err))
	require.NoError(t, rel.Close(AccessShareLock))

	// Opening the index as a relation fails.
	_, err = txn.OpenRelation(e.BlkdirIdxID, AccessShareLock)
	require.True(t, errors.Is(err, ErrRelationNotFound))
}

func TestSnapshotIsolation(t *testing.T) {
	d := openTestDB(t)
	e := newTable(t, d, 1, false)
	txn := d.Begin()
	defer txn.Commit()
	rel, err := txn.OpenRelation(e.BlkdirRelID, RowExclusiveLock)
	require.NoError(t, err)
	defer rel.Close(RowExclusiveLock)

	id, err := rel.Insert(testRow(1, 0, 1, []byte("old")))
	require.NoError(t, err)
	snap := d.NewSnapshot()
	defer snap.Close()
	require.NoError(t, rel.Update(id, testRow(1, 0, 1, []byte("new"))))

	row, err := rel.Fetch(snap, id)
	require.NoError(t, err)
	require.Equal(t, []byte("old"), row.Minipage)
	row, err = rel.Fetch(nil, id)
	require.NoError(t, err)
	require.Equal(t, []byte("new"), row.Minipage)
}

func TestRowCodec(t *testing.T) {
	small := testRow(-1, 7, 1<<40, []byte("minipage"))
	r, err := decodeRow(encodeRow(small))
	require.NoError(t, err)
	require.Equal(t, *small, r)

	// Large, compressible minipages are stored compressed.
	big := testRow(2, 0, 1, bytes.Repeat([]byte{0, 1, 2, 3}, 1024))
	enc := encodeRow(big)
	require.Less(t, len(enc), len(big.Minipage))
	r, err = decodeRow(enc)
	require.NoError(t, err)
	require.Equal(t, *big, r)

	enc[rowHeaderLen] ^= 0xff
	_, err = decodeRow(enc)
	require.True(t, base.IsCorruptionError(err))
	_, err = decodeRow(enc[:4])
	require.True(t, base.IsCorruptionError(err))
}

func TestKeyOrder(t *testing.T) {
	rows := []*Row{
		testRow(-5, 0, 1, nil),
		testRow(0, 0, 1, nil),
		testRow(0, 0, 1000, nil),
		testRow(0, 1, -3, nil),
		testRow(0, 1, 1, nil),
		testRow(7, 0, 1, nil),
	}
	for i := 1; i < len(rows); i++ {
		require.Negative(t, bytes.Compare(indexKey(9, rows[i-1], 1), indexKey(9, rows[i], 1)), "%d", i)
	}
	require.Equal(t, []byte{0x06, 0, 0, 0, 0x0a}, prefixSuccessor(indexPrefix(9)))
	require.Equal(t, []byte{0x02}, prefixSuccessor([]byte{0x01, 0xff, 0xff}))
	require.Nil(t, prefixSuccessor([]byte{0xff}))
}
