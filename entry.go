// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blockdir

import "github.com/cockroachdb/redact"

// Entry is the result of a directory lookup. The rows [FirstRowNum,
// LastRowNum] are stored in the segment file in the byte range [FileOffset,
// AfterFileOffset).
type Entry struct {
	FileOffset      int64
	FirstRowNum     int64
	AfterFileOffset int64
	// LastRowNum is inclusive. It is math.MaxInt64 when the range is open
	// ended.
	LastRowNum int64
}

// GetBeginRange returns the first row and file offset of the range.
func (e *Entry) GetBeginRange() (fileOffset, firstRowNum int64) {
	return e.FileOffset, e.FirstRowNum
}

// GetEndRange returns the end of the byte range and the last row of the
// range.
func (e *Entry) GetEndRange() (afterFileOffset, lastRowNum int64) {
	return e.AfterFileOffset, e.LastRowNum
}

// RangeHasRow returns true if rowNum falls inside the entry's rows.
func (e *Entry) RangeHasRow(rowNum int64) bool {
	return e.FirstRowNum <= rowNum && rowNum <= e.LastRowNum
}

// String implements fmt.Stringer.
func (e Entry) String() string {
	return redact.StringWithoutMarkers(e)
}

// SafeFormat implements redact.SafeFormatter.
func (e Entry) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("rows [%d,%d] at [%d,%d)", e.FirstRowNum, e.LastRowNum, e.FileOffset, e.AfterFileOffset)
}
