// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blockdir

import (
	"github.com/cockroachdb/blockdir/catalog"
	"github.com/cockroachdb/blockdir/internal/minipage"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// DumpRecord is one minipage entry of a stored block directory row.
type DumpRecord struct {
	RowID         catalog.RowID
	Segno         int32
	ColumnGroupNo int32
	// EntryNo is the entry's position in its minipage.
	EntryNo     int
	FirstRowNum int64
	FileOffset  int64
	RowCount    int64
}

// String implements fmt.Stringer.
func (r DumpRecord) String() string {
	return redact.StringWithoutMarkers(r)
}

// SafeFormat implements redact.SafeFormatter.
func (r DumpRecord) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("row %d seg %d cg %d #%d: first=%d off=%d cnt=%d",
		r.RowID, r.Segno, r.ColumnGroupNo, r.EntryNo, r.FirstRowNum, r.FileOffset, r.RowCount)
}

// Dump calls fn for every entry of every minipage stored in the block
// directory of aoEntry, in row id order. Entries are reported as stored,
// including entries past a segment's end of file.
func Dump(
	access catalog.Access,
	aoEntry catalog.AppendOnlyEntry,
	snap *catalog.Snapshot,
	fn func(DumpRecord) error,
) error {
	if !aoEntry.HasBlockDirectory() {
		return errors.Newf("blockdir: relation %d has no block directory", aoEntry.RelID)
	}
	rel, err := access.OpenRelation(aoEntry.BlkdirRelID, catalog.AccessShareLock)
	if err != nil {
		return err
	}
	err = dumpRelation(rel, snap, fn)
	return errors.CombineErrors(err, rel.Close(catalog.AccessShareLock))
}

func dumpRelation(rel catalog.Relation, snap *catalog.Snapshot, fn func(DumpRecord) error) error {
	scan, err := rel.BeginScan(snap)
	if err != nil {
		return err
	}
	mp := minipage.New(minipage.DefaultCapacity)
	for {
		t, ok, err := scan.Next()
		if err != nil || !ok {
			return errors.CombineErrors(err, scan.End())
		}
		if err := mp.Decode(t.Minipage); err != nil {
			return errors.CombineErrors(errors.Wrapf(err, "row %d", t.ID), scan.End())
		}
		for i, e := range mp.Entries() {
			if err := fn(DumpRecord{
				RowID:         t.ID,
				Segno:         t.Segno,
				ColumnGroupNo: t.ColumnGroupNo,
				EntryNo:       i,
				FirstRowNum:   e.FirstRowNum,
				FileOffset:    e.FileOffset,
				RowCount:      e.RowCount,
			}); err != nil {
				return errors.CombineErrors(err, scan.End())
			}
		}
	}
}
