// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blockdir

import (
	"github.com/cockroachdb/blockdir/catalog"
	"github.com/cockroachdb/blockdir/internal/invariants"
	"github.com/cockroachdb/blockdir/internal/minipage"
	"github.com/cockroachdb/errors"
)

// InsertEntry records that rows [firstRowNum, firstRowNum+rowCount) of the
// session's segment file start at fileOffset in the given column group.
// Entries of a column group must arrive in increasing row and offset order.
//
// InsertEntry returns false if nothing was recorded: rowCount is zero or the
// table has no block directory.
func (d *Directory) InsertEntry(columnGroup int, firstRowNum, fileOffset, rowCount int64) (bool, error) {
	d.checkActive(modeInsert)
	if rowCount == 0 || d.absent {
		return false, nil
	}
	invariants.CheckBounds(columnGroup, len(d.groups))
	return d.insertEntry(&d.groups[columnGroup], columnGroup, firstRowNum, fileOffset, rowCount)
}

// AddColumnInsertEntry is InsertEntry for an add-column session.
// columnGroupNo is the absolute column group of one of the new columns.
func (d *Directory) AddColumnInsertEntry(
	columnGroupNo ColumnGroupIndex, firstRowNum, fileOffset, rowCount int64,
) (bool, error) {
	d.checkActive(modeAddColumn)
	if rowCount == 0 || d.absent {
		return false, nil
	}
	i := columnGroupNo.ToRelative(d.numPreexisting)
	invariants.CheckBounds(i, len(d.groups))
	return d.insertEntry(&d.groups[i], int(columnGroupNo), firstRowNum, fileOffset, rowCount)
}

func (d *Directory) insertEntry(
	g *columnGroup, columnGroup int, firstRowNum, fileOffset, rowCount int64,
) (bool, error) {
	if last := g.mp.Last(); last != nil {
		if last.FirstRowNum >= firstRowNum || last.FileOffset >= fileOffset {
			panic(errors.AssertionFailedf("blockdir: entry (row=%d,off=%d) does not follow %s in column group %d",
				errors.Safe(firstRowNum), errors.Safe(fileOffset), *last, errors.Safe(columnGroup)))
		}
		if d.opts.MinEntryRangeBytes > 0 && fileOffset-last.FileOffset < d.opts.MinEntryRangeBytes {
			// Too close to the previous entry to be worth its own. Extend the
			// previous entry over the new rows.
			last.RowCount = firstRowNum + rowCount - last.FirstRowNum
			d.metrics.Entries.Coalesced++
			d.logf("blockdir: coalesce entry: (column group, row, offset, count) = (%d, %d, %d, %d) into %s",
				columnGroup, firstRowNum, fileOffset, rowCount, *last)
			return true, nil
		}
		if last.RowCount > firstRowNum-last.FirstRowNum {
			panic(errors.AssertionFailedf("blockdir: entry (row=%d) overlaps %s in column group %d",
				errors.Safe(firstRowNum), *last, errors.Safe(columnGroup)))
		}
		// The previous entry extends up to the new one, covering rows that
		// were written without being logged.
		last.RowCount = firstRowNum - last.FirstRowNum
	}

	if g.mp.Full() {
		if err := d.flush(g, columnGroup); err != nil {
			return false, err
		}
		// The next minipage goes into a new row.
		g.rowID = catalog.InvalidRowID
		g.mp.Reset()
	}

	e := minipage.Entry{FirstRowNum: firstRowNum, FileOffset: fileOffset, RowCount: rowCount}
	g.mp.Append(e)
	d.metrics.Entries.Inserted++
	d.logf("blockdir: insert entry: (column group, entry) = (%d, %s) at index %d",
		columnGroup, e, g.mp.Len()-1)
	return true, nil
}
