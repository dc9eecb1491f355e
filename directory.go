// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blockdir

import (
	"context"

	"github.com/cockroachdb/blockdir/catalog"
	"github.com/cockroachdb/blockdir/internal/dircache"
	"github.com/cockroachdb/blockdir/internal/minipage"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/swiss"
)

type sessionMode uint8

const (
	modeUninitialized sessionMode = iota
	modeSearch
	modeInsert
	modeAddColumn
)

func (m sessionMode) String() string {
	switch m {
	case modeSearch:
		return "search"
	case modeInsert:
		return "insert"
	case modeAddColumn:
		return "add-column"
	default:
		return "uninitialized"
	}
}

// SafeFormat implements redact.SafeFormatter.
func (m sessionMode) SafeFormat(w redact.SafePrinter, _ rune) {
	w.SafeString(redact.SafeString(m.String()))
}

// columnGroup is the per column group state of a session.
type columnGroup struct {
	// mp is the minipage being written, or the one most recently read.
	mp *minipage.Minipage
	// rowID is the catalog row mp was loaded from or last written to. A
	// valid rowID makes the next flush an update.
	rowID catalog.RowID
	// cache is only used by search sessions.
	cache *dircache.Cache
}

// Directory is a block directory session. A Directory is initialized once,
// for search, insert, or add-column, and is ended with the matching End
// method. It is not safe for concurrent use.
type Directory struct {
	opts    *Options
	mode    sessionMode
	ended   bool
	absent  bool
	aoEntry catalog.AppendOnlyEntry
	cat     *catalogAdapter
	groups  []columnGroup

	// ownedSnap is the read view of a search session started without a
	// snapshot. Every lookup of the session must see the same rows.
	ownedSnap *catalog.Snapshot

	// segments holds the segment files a search session may look up.
	segments   swiss.Map[int32, SegmentInfo]
	curSegno   int32
	curSegment SegmentInfo

	// numPreexisting is the number of columns that precede the ones an
	// add-column session writes.
	numPreexisting int

	metrics Metrics
}

// New returns an uninitialized Directory configured by opts.
func New(opts *Options) (*Directory, error) {
	opts = opts.Clone().EnsureDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Directory{opts: opts, curSegno: -1}, nil
}

func (d *Directory) beginInit(m sessionMode) {
	if d.mode != modeUninitialized {
		panic(errors.AssertionFailedf("blockdir: initializing %s session that is already a %s session", m, d.mode))
	}
	d.mode = m
}

func (d *Directory) checkActive(m sessionMode) {
	if d.mode != m {
		panic(errors.AssertionFailedf("blockdir: %s operation on a %s session", m, d.mode))
	}
	if d.ended {
		panic(errors.AssertionFailedf("blockdir: %s operation after the session ended", m))
	}
}

func (d *Directory) newGroups(n int, withCache bool) {
	d.groups = make([]columnGroup, n)
	for i := range d.groups {
		d.groups[i].mp = minipage.New(d.opts.MinipageCapacity)
		if withCache {
			d.groups[i].cache = dircache.New()
		}
	}
}

// open opens the catalog adapter. A failure ends the session.
func (d *Directory) open(access catalog.Access, snap *catalog.Snapshot, mode catalog.LockMode) error {
	cat, err := openCatalogAdapter(access, d.aoEntry, snap, mode)
	if err != nil {
		d.ended = true
		return err
	}
	d.cat = cat
	return nil
}

func (d *Directory) logf(format string, args ...interface{}) {
	if d.opts.Verbose {
		d.opts.Logger.Infof(format, args...)
	}
}

// Absent returns true if the table has no block directory. Searches of an
// absent directory fail and inserts are ignored.
func (d *Directory) Absent() bool { return d.absent }

// Metrics returns the session's counters.
func (d *Directory) Metrics() Metrics { return d.metrics }

// InitForSearch prepares the directory for GetEntry lookups against the given
// segment files. numColumnGroups is 1 for a row-oriented table and the number
// of columns for a column-oriented one. Lookups read the catalog as of snap;
// with a nil snap the session takes its own snapshot, released by
// EndForSearch.
func (d *Directory) InitForSearch(
	access catalog.Access,
	aoEntry catalog.AppendOnlyEntry,
	snap *catalog.Snapshot,
	segments []SegmentInfo,
	numColumnGroups int,
) error {
	d.beginInit(modeSearch)
	d.aoEntry = aoEntry
	if !aoEntry.HasBlockDirectory() {
		d.absent = true
		return nil
	}
	d.segments.Init(len(segments))
	for _, s := range segments {
		d.segments.Put(s.Segno(), s)
	}
	if snap == nil {
		d.ownedSnap = access.NewSnapshot()
		snap = d.ownedSnap
	}
	if err := d.open(access, snap, catalog.AccessShareLock); err != nil {
		return errors.CombineErrors(err, d.closeSnapshot())
	}
	d.newGroups(numColumnGroups, true /* withCache */)
	d.logf("blockdir: init for search: (segments, column groups) = (%d, %d)",
		len(segments), numColumnGroups)
	return nil
}

// InitForInsert prepares the directory for InsertEntry calls on one segment
// file. The tail minipage of every column group is reloaded so that entries
// continue where a previous session, possibly one that crashed, left off.
// lastSequence is the last row number committed to the segment; rows logged
// past it by a crashed session are deleted.
func (d *Directory) InitForInsert(
	ctx context.Context,
	access catalog.Access,
	aoEntry catalog.AppendOnlyEntry,
	snap *catalog.Snapshot,
	segment SegmentInfo,
	lastSequence int64,
	numColumnGroups int,
) error {
	d.beginInit(modeInsert)
	d.aoEntry = aoEntry
	if !aoEntry.HasBlockDirectory() {
		d.absent = true
		return nil
	}
	d.curSegno, d.curSegment = segment.Segno(), segment
	if err := d.open(access, snap, catalog.RowExclusiveLock); err != nil {
		return err
	}
	d.newGroups(numColumnGroups, false /* withCache */)
	d.logf("blockdir: init for insert: (segno, column groups, last sequence) = (%d, %d, %d)",
		d.curSegno, numColumnGroups, lastSequence)

	for i := range d.groups {
		if err := ctx.Err(); err != nil {
			return d.abort(err, catalog.RowExclusiveLock)
		}
		if err := d.discardUncommitted(i, lastSequence); err != nil {
			return d.abort(err, catalog.RowExclusiveLock)
		}
		if err := d.loadLastMinipage(i, lastSequence); err != nil {
			return d.abort(err, catalog.RowExclusiveLock)
		}
	}
	return nil
}

// discardUncommitted deletes the rows of columnGroup that start past
// lastSequence. A session that crashed after filling a minipage leaves such
// rows behind, and once the segment grows past their offsets the end of file
// no longer hides them from lookups.
func (d *Directory) discardUncommitted(columnGroup int, lastSequence int64) error {
	n, err := d.cat.deleteRowsAfter(d.curSegno, columnGroup, lastSequence)
	d.metrics.Minipages.Deleted += int64(n)
	if err != nil {
		return err
	}
	if n > 0 {
		d.logf("blockdir: discard minipages: (column group, last sequence, rows) = (%d, %d, %d)",
			columnGroup, lastSequence, n)
	}
	return nil
}

// abort ends a session whose initialization failed.
func (d *Directory) abort(err error, mode catalog.LockMode) error {
	d.ended = true
	return errors.CombineErrors(err, d.cat.close(mode))
}

func (d *Directory) loadLastMinipage(columnGroup int, lastSequence int64) error {
	g := &d.groups[columnGroup]
	d.metrics.Lookup.IndexScans++
	t, ok, err := d.cat.lookupLastRow(d.curSegno, columnGroup, lastSequence)
	if err != nil || !ok {
		return err
	}
	if err := g.mp.Decode(t.Minipage); err != nil {
		d.opts.Logger.Errorf("blockdir: row %d of (segno, column group) = (%d, %d): %v",
			t.ID, d.curSegno, columnGroup, err)
		return err
	}
	g.rowID = t.ID
	d.metrics.Lookup.Trimmed += int64(g.mp.TruncateToEOF(d.curSegment.EndOfFile(columnGroup)))
	d.logf("blockdir: load last minipage: (column group, last sequence, entries) = (%d, %d, %d)",
		columnGroup, lastSequence, g.mp.Len())
	return nil
}

// InitForAddColumn prepares the directory for AddColumnInsertEntry calls on
// one segment file while numNewColumnGroups columns are added after the
// numPreexisting existing ones. No tail minipages are loaded: the new
// columns have no entries yet.
func (d *Directory) InitForAddColumn(
	access catalog.Access,
	aoEntry catalog.AppendOnlyEntry,
	snap *catalog.Snapshot,
	segment SegmentInfo,
	numNewColumnGroups int,
	numPreexisting int,
) error {
	d.beginInit(modeAddColumn)
	d.aoEntry = aoEntry
	if !aoEntry.HasBlockDirectory() {
		d.absent = true
		return nil
	}
	if numPreexisting+numNewColumnGroups != aoEntry.NumAttrs {
		d.ended = true
		return errors.AssertionFailedf("blockdir: %d existing and %d new columns do not add up to the %d columns of relation %d",
			errors.Safe(numPreexisting), errors.Safe(numNewColumnGroups), errors.Safe(aoEntry.NumAttrs), aoEntry.RelID)
	}
	d.curSegno, d.curSegment = segment.Segno(), segment
	d.numPreexisting = numPreexisting
	if err := d.open(access, snap, catalog.RowExclusiveLock); err != nil {
		return err
	}
	d.newGroups(numNewColumnGroups, false /* withCache */)
	d.logf("blockdir: init for add column: (segno, new column groups, preexisting) = (%d, %d, %d)",
		d.curSegno, numNewColumnGroups, numPreexisting)
	return nil
}

// EndForSearch ends a search session. Ending a session twice, or ending a
// session whose table has no block directory, does nothing.
func (d *Directory) EndForSearch() error {
	if d.mode != modeSearch {
		panic(errors.AssertionFailedf("blockdir: ending a %s session for search", d.mode))
	}
	if d.ended {
		return nil
	}
	d.ended = true
	if d.absent {
		return nil
	}
	for i := range d.groups {
		d.groups[i].cache.Clear()
	}
	d.groups = nil
	d.logf("blockdir: end for search: (segments) = (%d)", d.segments.Len())
	d.publishMetrics()
	return errors.CombineErrors(d.cat.close(catalog.AccessShareLock), d.closeSnapshot())
}

func (d *Directory) closeSnapshot() error {
	if d.ownedSnap == nil {
		return nil
	}
	err := d.ownedSnap.Close()
	d.ownedSnap = nil
	return err
}

// EndForInsert writes every non-empty pending minipage and ends an insert
// session. Ending a session twice, or ending a session whose table has no
// block directory, does nothing.
func (d *Directory) EndForInsert(ctx context.Context) error {
	if d.mode != modeInsert {
		panic(errors.AssertionFailedf("blockdir: ending a %s session for insert", d.mode))
	}
	if d.ended || d.absent {
		d.ended = true
		return nil
	}
	d.ended = true
	err := d.flushAll(ctx, 0)
	d.logf("blockdir: end for insert: (segno, column groups) = (%d, %d)", d.curSegno, len(d.groups))
	d.publishMetrics()
	return errors.CombineErrors(err, d.cat.close(catalog.RowExclusiveLock))
}

// EndForAddColumn writes every non-empty pending minipage and ends an
// add-column session. The block directory locks are not released: they are
// held until the enclosing transaction commits.
func (d *Directory) EndForAddColumn(ctx context.Context) error {
	if d.mode != modeAddColumn {
		panic(errors.AssertionFailedf("blockdir: ending a %s session for add column", d.mode))
	}
	if d.ended || d.absent {
		d.ended = true
		return nil
	}
	d.ended = true
	err := d.flushAll(ctx, d.numPreexisting)
	d.logf("blockdir: end for add column: (segno, column groups) = (%d, %d)", d.curSegno, len(d.groups))
	d.publishMetrics()
	return errors.CombineErrors(err, d.cat.close(catalog.NoLock))
}

// flushAll writes the pending minipage of every column group. Column group i
// is stored as column group i+offset.
func (d *Directory) flushAll(ctx context.Context, offset int) error {
	for i := range d.groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		g := &d.groups[i]
		if g.mp.Len() == 0 {
			continue
		}
		if err := d.flush(g, i+offset); err != nil {
			return err
		}
	}
	d.groups = nil
	return nil
}

// flush writes g's minipage as the catalog row of columnGroup.
func (d *Directory) flush(g *columnGroup, columnGroup int) error {
	update := g.rowID.IsValid()
	id, err := d.cat.writeRow(d.curSegno, columnGroup, g.mp, g.rowID)
	if err != nil {
		return err
	}
	if update {
		d.metrics.Minipages.Updated++
		d.logf("blockdir: update minipage: (segno, column group, entries, first row) = (%d, %d, %d, %d)",
			d.curSegno, columnGroup, g.mp.Len(), g.mp.At(0).FirstRowNum)
	} else {
		d.metrics.Minipages.Inserted++
		d.logf("blockdir: insert minipage: (segno, column group, entries, first row) = (%d, %d, %d, %d)",
			d.curSegno, columnGroup, g.mp.Len(), g.mp.At(0).FirstRowNum)
	}
	g.rowID = id
	return nil
}

func (d *Directory) publishMetrics() {
	if d.opts.Metrics != nil {
		d.opts.Metrics.add(&d.metrics)
	}
}
