// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package minipage implements the write-combining array of block directory
// entries that is stored as a single catalog row.
//
// A minipage holds entries in ascending FirstRowNum (and FileOffset) order.
// The order is established by construction: entries are only ever appended,
// and the caller guarantees that rows and file offsets grow monotonically
// within a segment file.
package minipage

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/blockdir/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// DefaultCapacity is the default number of entries in a minipage. A full
// minipage serializes to a little under 4KB.
const DefaultCapacity = 161

const (
	// headerSize is the size of the serialized header: the total encoded size
	// followed by the number of entries, both uint32.
	headerSize = 8
	// EntrySize is the serialized size of a single Entry.
	EntrySize = 24
)

// Entry describes a run of rows stored contiguously in an append-only
// segment file: rows [FirstRowNum, FirstRowNum+RowCount) live in the file
// starting at byte FileOffset.
type Entry struct {
	FirstRowNum int64
	FileOffset  int64
	RowCount    int64
}

// EndRowNum returns the first row number past the entry.
func (e Entry) EndRowNum() int64 {
	return e.FirstRowNum + e.RowCount
}

// Covers returns true if rowNum falls inside the entry.
func (e Entry) Covers(rowNum int64) bool {
	return e.FirstRowNum <= rowNum && rowNum < e.EndRowNum()
}

// String implements fmt.Stringer.
func (e Entry) String() string {
	return redact.StringWithoutMarkers(e)
}

// SafeFormat implements redact.SafeFormatter.
func (e Entry) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("(row=%d,off=%d,cnt=%d)", e.FirstRowNum, e.FileOffset, e.RowCount)
}

// Minipage is an ordered, bounded array of entries.
type Minipage struct {
	entries  []Entry
	capacity int
}

// New returns an empty minipage that accepts up to capacity entries.
func New(capacity int) *Minipage {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Minipage{
		entries:  make([]Entry, 0, capacity),
		capacity: capacity,
	}
}

// Len returns the number of live entries.
func (m *Minipage) Len() int { return len(m.entries) }

// Cap returns the number of entries the minipage accepts before Append
// reports that it is full.
func (m *Minipage) Cap() int { return m.capacity }

// Full returns true if no more entries can be appended.
func (m *Minipage) Full() bool { return len(m.entries) >= m.capacity }

// At returns the i'th entry.
func (m *Minipage) At(i int) Entry { return m.entries[i] }

// Entries returns the live entries. The returned slice aliases the minipage.
func (m *Minipage) Entries() []Entry { return m.entries }

// Last returns a pointer to the last entry so that its row count can be
// adjusted in place, or nil if the minipage is empty.
func (m *Minipage) Last() *Entry {
	if len(m.entries) == 0 {
		return nil
	}
	return &m.entries[len(m.entries)-1]
}

// Append adds e to the end of the minipage. It returns false, leaving the
// minipage untouched, if the minipage is full; the caller must flush first.
func (m *Minipage) Append(e Entry) bool {
	if m.Full() {
		return false
	}
	m.entries = append(m.entries, e)
	return true
}

// Reset removes all entries, retaining the allocated storage.
func (m *Minipage) Reset() {
	clear(m.entries)
	m.entries = m.entries[:0]
}

// Clone returns a detached copy of the live entries. The copy's capacity is
// its length: clones are read-only snapshots.
func (m *Minipage) Clone() *Minipage {
	c := &Minipage{
		entries:  make([]Entry, len(m.entries)),
		capacity: len(m.entries),
	}
	copy(c.entries, m.entries)
	return c
}

// Find returns the index of the entry covering rowNum, or -1 if no entry
// covers it.
func (m *Minipage) Find(rowNum int64) int {
	// Index of the first entry that starts past rowNum. The covering entry, if
	// any, is the one before it.
	i := sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].FirstRowNum > rowNum
	})
	if i > 0 && m.entries[i-1].Covers(rowNum) {
		return i - 1
	}
	return -1
}

// TruncateToEOF discards the entries whose FileOffset is at or past eof and
// returns the number of entries removed. Such entries were logged by a writer
// that crashed or was cancelled before the data they describe became
// durable.
func (m *Minipage) TruncateToEOF(eof int64) int {
	n := sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].FileOffset >= eof
	})
	removed := len(m.entries) - n
	clear(m.entries[n:])
	m.entries = m.entries[:n]
	return removed
}

// CheckOrdered returns an error if the entries are not strictly ascending in
// both FirstRowNum and FileOffset, or if any entry is empty.
func (m *Minipage) CheckOrdered() error {
	for i, e := range m.entries {
		if e.FirstRowNum <= 0 || e.RowCount <= 0 {
			return errors.AssertionFailedf("minipage entry %d is invalid: %s", errors.Safe(i), e)
		}
		if i == 0 {
			continue
		}
		prev := m.entries[i-1]
		if prev.FirstRowNum >= e.FirstRowNum || prev.FileOffset >= e.FileOffset {
			return errors.AssertionFailedf("minipage entries %d and %d out of order: %s %s",
				errors.Safe(i-1), errors.Safe(i), prev, e)
		}
		if prev.EndRowNum() > e.FirstRowNum {
			return errors.AssertionFailedf("minipage entries %d and %d overlap: %s %s",
				errors.Safe(i-1), errors.Safe(i), prev, e)
		}
	}
	return nil
}

// SerializedSize returns the encoded size of a minipage holding n entries.
func SerializedSize(n int) int {
	return headerSize + n*EntrySize
}

// Encode appends the serialized form of the live entries to buf. Only the
// live entries are written, never the unused capacity.
func (m *Minipage) Encode(buf []byte) []byte {
	size := SerializedSize(len(m.entries))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(size))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.entries)))
	for _, e := range m.entries {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(e.FirstRowNum))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(e.FileOffset))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(e.RowCount))
	}
	return buf
}

// Decode replaces the contents of m with the minipage serialized in b. A
// stored minipage may hold more entries than m's capacity if it was written
// by a session configured with a larger capacity; m grows to hold it and
// reports itself full until it is reset.
func (m *Minipage) Decode(b []byte) error {
	if len(b) < headerSize {
		return base.CorruptionErrorf("minipage: %d bytes is shorter than the header", errors.Safe(len(b)))
	}
	size := binary.LittleEndian.Uint32(b[0:4])
	n := binary.LittleEndian.Uint32(b[4:8])
	if int(size) != len(b) || SerializedSize(int(n)) != len(b) {
		return base.CorruptionErrorf("minipage: size %d with %d entries does not match %d bytes",
			errors.Safe(size), errors.Safe(n), errors.Safe(len(b)))
	}
	m.Reset()
	if cap(m.entries) < int(n) {
		m.entries = make([]Entry, 0, n)
	}
	for p := b[headerSize:]; len(p) > 0; p = p[EntrySize:] {
		m.entries = append(m.entries, Entry{
			FirstRowNum: int64(binary.LittleEndian.Uint64(p[0:8])),
			FileOffset:  int64(binary.LittleEndian.Uint64(p[8:16])),
			RowCount:    int64(binary.LittleEndian.Uint64(p[16:24])),
		})
	}
	return nil
}

// String returns the entries formatted one per line.
func (m *Minipage) String() string {
	var b strings.Builder
	for i, e := range m.entries {
		fmt.Fprintf(&b, "%d: %s\n", i, e)
	}
	return b.String()
}
