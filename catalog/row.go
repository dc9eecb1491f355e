// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package catalog

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/blockdir/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/golang/snappy"
)

// RelID identifies a relation in the catalog.
type RelID uint32

// InvalidRelID is the zero RelID. An append-only table without a block
// directory records InvalidRelID as its directory relation.
const InvalidRelID RelID = 0

// IsValid returns true if id names a relation.
func (id RelID) IsValid() bool { return id != InvalidRelID }

// SafeFormat implements redact.SafeFormatter.
func (id RelID) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%d", uint32(id))
}

// RowID is the physical identity of a stored row. It is allocated on insert
// and stays stable across updates.
type RowID uint64

// InvalidRowID is the zero RowID.
const InvalidRowID RowID = 0

// IsValid returns true if id names a row.
func (id RowID) IsValid() bool { return id != InvalidRowID }

// SafeFormat implements redact.SafeFormatter.
func (id RowID) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%d", uint64(id))
}

// Row is a block directory catalog row. Minipage holds the serialized
// minipage and is owned by the Row.
type Row struct {
	Segno         int32
	ColumnGroupNo int32
	FirstRowNum   int64
	Minipage      []byte
}

// Tuple is a Row together with its RowID.
type Tuple struct {
	ID RowID
	Row
}

// ToastThreshold is the encoded minipage size above which a stored row's
// minipage is compressed.
const ToastThreshold = 2032

const (
	rowHeaderLen   = 4 + 4 + 8 + 1 + 4
	rowChecksumLen = 8

	rowFlagCompressed byte = 1 << 0
)

// encodeRow serializes r:
//
//	segno(4) columngroupno(4) firstrownum(8) flags(1) len(4) minipage checksum(8)
//
// The checksum is the xxhash64 of everything preceding it.
func encodeRow(r *Row) []byte {
	mp := r.Minipage
	var flags byte
	if len(mp) > ToastThreshold {
		if c := snappy.Encode(nil, mp); len(c) < len(mp) {
			mp = c
			flags |= rowFlagCompressed
		}
	}
	b := make([]byte, 0, rowHeaderLen+len(mp)+rowChecksumLen)
	b = binary.LittleEndian.AppendUint32(b, uint32(r.Segno))
	b = binary.LittleEndian.AppendUint32(b, uint32(r.ColumnGroupNo))
	b = binary.LittleEndian.AppendUint64(b, uint64(r.FirstRowNum))
	b = append(b, flags)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(mp)))
	b = append(b, mp...)
	return binary.LittleEndian.AppendUint64(b, xxhash.Sum64(b))
}

// decodeRow parses a row produced by encodeRow. The returned Row does not
// alias b.
func decodeRow(b []byte) (Row, error) {
	if len(b) < rowHeaderLen+rowChecksumLen {
		return Row{}, base.CorruptionErrorf("catalog: row of %d bytes is truncated", errors.Safe(len(b)))
	}
	body, sum := b[:len(b)-rowChecksumLen], binary.LittleEndian.Uint64(b[len(b)-rowChecksumLen:])
	if got := xxhash.Sum64(body); got != sum {
		return Row{}, base.CorruptionErrorf("catalog: row checksum mismatch: %016x != %016x",
			errors.Safe(got), errors.Safe(sum))
	}
	r := Row{
		Segno:         int32(binary.LittleEndian.Uint32(body[0:4])),
		ColumnGroupNo: int32(binary.LittleEndian.Uint32(body[4:8])),
		FirstRowNum:   int64(binary.LittleEndian.Uint64(body[8:16])),
	}
	flags := body[16]
	n := binary.LittleEndian.Uint32(body[17:21])
	mp := body[rowHeaderLen:]
	if int(n) != len(mp) {
		return Row{}, base.CorruptionErrorf("catalog: row minipage length %d does not match %d bytes",
			errors.Safe(n), errors.Safe(len(mp)))
	}
	if flags&rowFlagCompressed != 0 {
		d, err := snappy.Decode(nil, mp)
		if err != nil {
			return Row{}, base.MarkCorruptionError(errors.Wrap(err, "catalog: decompressing minipage"))
		}
		r.Minipage = d
	} else {
		r.Minipage = append([]byte(nil), mp...)
	}
	return r, nil
}
