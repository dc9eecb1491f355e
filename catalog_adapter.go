// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blockdir

import (
	"github.com/cockroachdb/blockdir/catalog"
	"github.com/cockroachdb/blockdir/internal/minipage"
	"github.com/cockroachdb/errors"
)

// catalogAdapter wraps the open block directory relation and its index. It
// owns the scan keys used to find the minipage covering a row and the buffer
// a minipage is serialized into before it is written.
type catalogAdapter struct {
	rel  catalog.Relation
	idx  catalog.Index
	snap *catalog.Snapshot
	// keys is segno =, columngroupno =, firstrownum <=.
	keys [3]catalog.ScanKey
	buf  []byte
}

func openCatalogAdapter(
	access catalog.Access, e catalog.AppendOnlyEntry, snap *catalog.Snapshot, mode catalog.LockMode,
) (*catalogAdapter, error) {
	rel, err := access.OpenRelation(e.BlkdirRelID, mode)
	if err != nil {
		return nil, err
	}
	idx, err := access.OpenIndex(e.BlkdirIdxID, mode)
	if err != nil {
		return nil, errors.CombineErrors(err, rel.Close(mode))
	}
	a := &catalogAdapter{rel: rel, idx: idx, snap: snap}
	a.keys = [3]catalog.ScanKey{
		{AttrNo: catalog.AttrSegno, Strategy: catalog.StrategyEqual},
		{AttrNo: catalog.AttrColumnGroupNo, Strategy: catalog.StrategyEqual},
		{AttrNo: catalog.AttrFirstRowNum, Strategy: catalog.StrategyLessEqual},
	}
	return a, nil
}

// lookupAtOrBefore returns the stored minipage row of (segno, columnGroup)
// with the largest FirstRowNum not exceeding rowNum.
func (a *catalogAdapter) lookupAtOrBefore(
	segno int32, columnGroup int, rowNum int64,
) (catalog.Tuple, bool, error) {
	a.keys[0].Argument = int64(segno)
	a.keys[1].Argument = int64(columnGroup)
	a.keys[2].Argument = rowNum
	scan, err := a.idx.BeginScan(a.rel, a.snap, a.keys[:])
	if err != nil {
		return catalog.Tuple{}, false, err
	}
	t, ok, err := scan.Next(catalog.Backward)
	if err := errors.CombineErrors(err, scan.End()); err != nil {
		return catalog.Tuple{}, false, err
	}
	return t, ok, nil
}

// lookupLastRow finds the row holding the tail minipage of (segno,
// columnGroup) for an insert session that will continue after lastSequence.
func (a *catalogAdapter) lookupLastRow(
	segno int32, columnGroup int, lastSequence int64,
) (catalog.Tuple, bool, error) {
	// Row numbers start at 1; an empty segment still finds a row for row 1.
	if lastSequence == 0 {
		lastSequence = 1
	}
	return a.lookupAtOrBefore(segno, columnGroup, lastSequence)
}

// writeRow stores mp as the row of (segno, columnGroup). The row at rowID is
// replaced if rowID is valid, otherwise a new row is inserted. It returns the
// row's id.
func (a *catalogAdapter) writeRow(
	segno int32, columnGroup int, mp *minipage.Minipage, rowID catalog.RowID,
) (catalog.RowID, error) {
	if mp.Len() == 0 {
		return catalog.InvalidRowID, errors.AssertionFailedf("writing an empty minipage")
	}
	a.buf = mp.Encode(a.buf[:0])
	row := &catalog.Row{
		Segno:         segno,
		ColumnGroupNo: int32(columnGroup),
		FirstRowNum:   mp.At(0).FirstRowNum,
		Minipage:      a.buf,
	}
	if rowID.IsValid() {
		return rowID, a.rel.Update(rowID, row)
	}
	return a.rel.Insert(row)
}

// deleteRowsForSegment deletes every row of segno and returns the number
// deleted.
func (a *catalogAdapter) deleteRowsForSegment(segno int32) (int, error) {
	return a.deleteRows(a.snap, []catalog.ScanKey{
		{AttrNo: catalog.AttrSegno, Strategy: catalog.StrategyEqual, Argument: int64(segno)},
	})
}

// deleteRowsAfter deletes the rows of (segno, columnGroup) whose minipage
// starts after lastSequence and returns the number deleted. Such rows were
// written by a session that never committed its rows to the segment file.
// They are found in the latest state, even if the session reads from an
// older snapshot.
func (a *catalogAdapter) deleteRowsAfter(segno int32, columnGroup int, lastSequence int64) (int, error) {
	return a.deleteRows(nil, []catalog.ScanKey{
		{AttrNo: catalog.AttrSegno, Strategy: catalog.StrategyEqual, Argument: int64(segno)},
		{AttrNo: catalog.AttrColumnGroupNo, Strategy: catalog.StrategyEqual, Argument: int64(columnGroup)},
		{AttrNo: catalog.AttrFirstRowNum, Strategy: catalog.StrategyGreater, Argument: lastSequence},
	})
}

func (a *catalogAdapter) deleteRows(snap *catalog.Snapshot, keys []catalog.ScanKey) (int, error) {
	scan, err := a.idx.BeginScan(a.rel, snap, keys)
	if err != nil {
		return 0, err
	}
	n := 0
	for {
		t, ok, err := scan.Next(catalog.Forward)
		if err != nil || !ok {
			return n, errors.CombineErrors(err, scan.End())
		}
		if err := a.rel.Delete(t.ID); err != nil {
			return n, errors.CombineErrors(err, scan.End())
		}
		n++
	}
}

func (a *catalogAdapter) close(mode catalog.LockMode) error {
	return errors.CombineErrors(a.idx.Close(mode), a.rel.Close(mode))
}
