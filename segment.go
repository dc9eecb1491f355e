// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blockdir

import (
	"github.com/cockroachdb/blockdir/catalog"
	"github.com/cockroachdb/blockdir/internal/invariants"
	"github.com/cockroachdb/errors"
)

// SegmentInfo reports the durable end of file of one segment file of an
// append-only table.
type SegmentInfo interface {
	Segno() int32
	// EndOfFile returns the end of file for the given column group.
	EndOfFile(columnGroup int) int64
}

// RowSegment is a segment of a row-oriented table: every column group
// shares the segment's single file.
type RowSegment struct {
	Num int32
	EOF int64
}

var _ SegmentInfo = RowSegment{}

// Segno implements SegmentInfo.
func (s RowSegment) Segno() int32 { return s.Num }

// EndOfFile implements SegmentInfo.
func (s RowSegment) EndOfFile(int) int64 { return s.EOF }

// ColumnSegment is a segment of a column-oriented table, which keeps one
// file per column group.
type ColumnSegment struct {
	Num int32
	EOF []int64
}

var _ SegmentInfo = ColumnSegment{}

// Segno implements SegmentInfo.
func (s ColumnSegment) Segno() int32 { return s.Num }

// EndOfFile implements SegmentInfo.
func (s ColumnSegment) EndOfFile(columnGroup int) int64 {
	invariants.CheckBounds(columnGroup, len(s.EOF))
	return s.EOF[columnGroup]
}

// SegmentFromCatalog returns the SegmentInfo of a catalog segment file
// record.
func SegmentFromCatalog(e catalog.AppendOnlyEntry, sf catalog.SegFile) SegmentInfo {
	if e.Columnar {
		return ColumnSegment{Num: sf.Segno, EOF: sf.EOF}
	}
	var eof int64
	if len(sf.EOF) > 0 {
		eof = sf.EOF[0]
	}
	return RowSegment{Num: sf.Segno, EOF: eof}
}

// SegmentsFromCatalog converts every segment file record of a table.
func SegmentsFromCatalog(e catalog.AppendOnlyEntry, sfs []catalog.SegFile) []SegmentInfo {
	segs := make([]SegmentInfo, len(sfs))
	for i := range sfs {
		segs[i] = SegmentFromCatalog(e, sfs[i])
	}
	return segs
}

// ColumnGroupIndex is the absolute column group number of a column, as
// stored in the block directory.
type ColumnGroupIndex int

// ToRelative returns the position of the column group among the columns
// added after the first numPreexisting.
func (c ColumnGroupIndex) ToRelative(numPreexisting int) int {
	if numPreexisting < 0 || int(c) < numPreexisting {
		panic(errors.AssertionFailedf("column group %d is not among the columns added after %d",
			errors.Safe(int(c)), errors.Safe(numPreexisting)))
	}
	return int(c) - numPreexisting
}
