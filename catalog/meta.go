// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package catalog

import (
	"encoding/binary"

	"github.com/cockroachdb/blockdir/internal/base"
	"github.com/cockroachdb/errors"
)

// RelKind is the kind of a catalog relation.
type RelKind uint8

const (
	// RelKindHeap is an ordinary row store, such as a block directory
	// relation.
	RelKindHeap RelKind = iota + 1
	// RelKindIndex is an ordered index over a heap relation.
	RelKindIndex
	// RelKindAppendOnly is an append-only table whose segment files the
	// block directory describes.
	RelKindAppendOnly
)

func (k RelKind) String() string {
	switch k {
	case RelKindHeap:
		return "heap"
	case RelKindIndex:
		return "index"
	case RelKindAppendOnly:
		return "append-only"
	default:
		return "unknown"
	}
}

// relationMeta is the stored description of a relation. For a heap, Related
// is its index (if any); for an index, Related is its heap.
type relationMeta struct {
	ID      RelID
	Kind    RelKind
	Related RelID
	Name    string
}

func (m *relationMeta) encode() []byte {
	b := make([]byte, 0, 9+len(m.Name))
	b = binary.LittleEndian.AppendUint32(b, uint32(m.ID))
	b = append(b, byte(m.Kind))
	b = binary.LittleEndian.AppendUint32(b, uint32(m.Related))
	return append(b, m.Name...)
}

func decodeRelationMeta(b []byte) (relationMeta, error) {
	if len(b) < 9 {
		return relationMeta{}, base.CorruptionErrorf("catalog: relation record of %d bytes is truncated", errors.Safe(len(b)))
	}
	return relationMeta{
		ID:      RelID(binary.LittleEndian.Uint32(b[0:4])),
		Kind:    RelKind(b[4]),
		Related: RelID(binary.LittleEndian.Uint32(b[5:9])),
		Name:    string(b[9:]),
	}, nil
}

// AppendOnlyEntry is the catalog record of an append-only table.
type AppendOnlyEntry struct {
	RelID RelID
	// Columnar is true for column-oriented tables, which keep one file per
	// column group in each segment.
	Columnar bool
	// NumAttrs is the table's current number of columns.
	NumAttrs int
	// BlkdirRelID and BlkdirIdxID are InvalidRelID until a block directory is
	// created.
	BlkdirRelID RelID
	BlkdirIdxID RelID
}

// HasBlockDirectory returns true if the table has a block directory.
func (e *AppendOnlyEntry) HasBlockDirectory() bool {
	return e.BlkdirRelID.IsValid()
}

// NumColumnGroups returns the number of column groups of the table's block
// directory: one per column for a column-oriented table, otherwise one.
func (e *AppendOnlyEntry) NumColumnGroups() int {
	if e.Columnar {
		return e.NumAttrs
	}
	return 1
}

func (e *AppendOnlyEntry) encode() []byte {
	b := make([]byte, 0, 17)
	b = binary.LittleEndian.AppendUint32(b, uint32(e.RelID))
	var columnar byte
	if e.Columnar {
		columnar = 1
	}
	b = append(b, columnar)
	b = binary.LittleEndian.AppendUint32(b, uint32(e.NumAttrs))
	b = binary.LittleEndian.AppendUint32(b, uint32(e.BlkdirRelID))
	return binary.LittleEndian.AppendUint32(b, uint32(e.BlkdirIdxID))
}

func decodeAppendOnlyEntry(b []byte) (AppendOnlyEntry, error) {
	if len(b) != 17 {
		return AppendOnlyEntry{}, base.CorruptionErrorf("catalog: append-only record of %d bytes", errors.Safe(len(b)))
	}
	return AppendOnlyEntry{
		RelID:       RelID(binary.LittleEndian.Uint32(b[0:4])),
		Columnar:    b[4] != 0,
		NumAttrs:    int(binary.LittleEndian.Uint32(b[5:9])),
		BlkdirRelID: RelID(binary.LittleEndian.Uint32(b[9:13])),
		BlkdirIdxID: RelID(binary.LittleEndian.Uint32(b[13:17])),
	}, nil
}

// SegFile is the catalog record of one segment file of an append-only table.
// EOF holds the logical end of file: a single value for a row-oriented
// table, one value per column group for a column-oriented table. Only bytes
// below EOF are durable; anything past it was written by an aborted writer.
type SegFile struct {
	Segno int32
	// RowCount is the number of rows ever assigned in the segment, which is
	// the last row number handed out.
	RowCount int64
	EOF      []int64
}

func (s *SegFile) encode() []byte {
	b := make([]byte, 0, 16+8*len(s.EOF))
	b = binary.LittleEndian.AppendUint32(b, uint32(s.Segno))
	b = binary.LittleEndian.AppendUint64(b, uint64(s.RowCount))
	b = binary.LittleEndian.AppendUint32(b, uint32(len(s.EOF)))
	for _, eof := range s.EOF {
		b = binary.LittleEndian.AppendUint64(b, uint64(eof))
	}
	return b
}

func decodeSegFile(b []byte) (SegFile, error) {
	if len(b) < 16 {
		return SegFile{}, base.CorruptionErrorf("catalog: segfile record of %d bytes is truncated", errors.Safe(len(b)))
	}
	s := SegFile{
		Segno:    int32(binary.LittleEndian.Uint32(b[0:4])),
		RowCount: int64(binary.LittleEndian.Uint64(b[4:12])),
	}
	n := int(binary.LittleEndian.Uint32(b[12:16]))
	if len(b) != 16+8*n {
		return SegFile{}, base.CorruptionErrorf("catalog: segfile record with %d EOFs has %d bytes",
			errors.Safe(n), errors.Safe(len(b)))
	}
	s.EOF = make([]int64, n)
	for i := range s.EOF {
		s.EOF[i] = int64(binary.LittleEndian.Uint64(b[16+8*i:]))
	}
	return s, nil
}
