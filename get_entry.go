// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blockdir

import (
	"math"

	"github.com/cockroachdb/blockdir/catalog"
	"github.com/cockroachdb/blockdir/internal/dircache"
	"github.com/cockroachdb/blockdir/internal/invariants"
	"github.com/cockroachdb/blockdir/internal/minipage"
	"github.com/cockroachdb/errors"
)

// GetEntry finds the directory entry covering row rowNum of segment file
// segno in the given column group. It returns false if the directory has no
// durable entry for the row.
//
// When rowNum falls between the entries of a minipage, which happens for
// rows written after the last logged block, the minipage's last entry is
// returned.
func (d *Directory) GetEntry(segno int32, rowNum int64, columnGroup int) (Entry, bool, error) {
	d.checkActive(modeSearch)
	if d.absent {
		return Entry{}, false, errors.AssertionFailedf(
			"blockdir: block directory for append-only relation %d does not exist", d.aoEntry.RelID)
	}
	invariants.CheckBounds(columnGroup, len(d.groups))
	d.logf("blockdir: get entry: (column group, segno, row) = (%d, %d, %d)", columnGroup, segno, rowNum)

	g := &d.groups[columnGroup]
	if segno != d.curSegno {
		seg, ok := d.segments.Get(segno)
		if !ok {
			return Entry{}, false, errors.AssertionFailedf(
				"blockdir: segment file %d of relation %d is unknown", errors.Safe(segno), d.aoEntry.RelID)
		}
		// Row numbers restart in every segment file.
		g.mp.Reset()
		g.rowID = catalog.InvalidRowID
		g.cache.Clear()
		d.curSegno, d.curSegment = segno, seg
	}
	eof := d.curSegment.EndOfFile(columnGroup)

	ce := g.cache.Search(segno, rowNum)
	if ce != nil {
		d.metrics.Cache.Hits++
	} else {
		d.metrics.Cache.Misses++
		var found bool
		var err error
		if ce, found, err = d.loadMinipage(g, segno, rowNum, columnGroup, eof); err != nil || !found {
			if err == nil {
				d.metrics.Lookup.NotFound++
			}
			return Entry{}, false, err
		}
	}

	i := ce.Minipage.Find(rowNum)
	if i < 0 {
		if ce.Minipage.Len() == 0 {
			d.metrics.Lookup.NotFound++
			return Entry{}, false, nil
		}
		// The blocks at the end of a minipage may not be logged.
		i = ce.Minipage.Len() - 1
	}
	e, ok := d.entryRange(ce.Minipage, i, eof)
	if !ok {
		d.metrics.Lookup.NotFound++
		return Entry{}, false, nil
	}
	d.metrics.Lookup.Found++
	d.logf("blockdir: found entry: (column group, entry) = (%d, %s)", columnGroup, e)
	return e, true, nil
}

// loadMinipage reads the catalog row whose minipage may cover rowNum into
// g, discards its entries past eof and caches the result.
func (d *Directory) loadMinipage(
	g *columnGroup, segno int32, rowNum int64, columnGroup int, eof int64,
) (*dircache.Entry, bool, error) {
	d.metrics.Lookup.IndexScans++
	t, ok, err := d.cat.lookupAtOrBefore(segno, columnGroup, rowNum)
	if err != nil || !ok {
		return nil, false, err
	}
	if err := g.mp.Decode(t.Minipage); err != nil {
		d.opts.Logger.Errorf("blockdir: row %d of (segno, column group) = (%d, %d): %v",
			t.ID, segno, columnGroup, err)
		return nil, false, err
	}
	g.rowID = t.ID
	// Entries at or past the end of file were logged by a writer that
	// crashed or was cancelled.
	d.metrics.Lookup.Trimmed += int64(g.mp.TruncateToEOF(eof))
	if invariants.Enabled {
		if err := g.mp.CheckOrdered(); err != nil {
			return nil, false, err
		}
	}
	last := g.mp.Last()
	if last == nil || rowNum >= last.EndRowNum() {
		return nil, false, nil
	}
	ce := dircache.NewEntry(segno, g.mp.Clone())
	g.cache.Insert(ce)
	return ce, true, nil
}

// entryRange computes the lookup result for entry i of mp. It returns false
// if the entry starts past eof.
func (d *Directory) entryRange(mp *minipage.Minipage, i int, eof int64) (Entry, bool) {
	invariants.CheckBounds(i, mp.Len())
	me := mp.At(i)
	e := Entry{
		FileOffset:  me.FileOffset,
		FirstRowNum: me.FirstRowNum,
		LastRowNum:  me.FirstRowNum + me.RowCount - 1,
	}
	hasNext := i < mp.Len()-1
	if hasNext {
		e.AfterFileOffset = mp.At(i + 1).FileOffset
	} else {
		e.AfterFileOffset = eof
		if d.opts.MinEntryRangeBytes != 0 {
			e.LastRowNum = math.MaxInt64
		}
	}
	if e.FileOffset > eof {
		return Entry{}, false
	}
	e.AfterFileOffset = min(e.AfterFileOffset, eof)
	return e, true
}
