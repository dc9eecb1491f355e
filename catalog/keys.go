// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package catalog

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// Key layout. Every key starts with a one byte tag. Integers are encoded
// big-endian with the sign bit flipped so that byte order matches numeric
// order.
//
//	meta:     tagMeta     name
//	relation: tagRelation relid
//	aoentry:  tagAOEntry  relid
//	segfile:  tagSegFile  relid segno
//	heap:     tagHeap     relid rowid
//	index:    tagIndex    idxid segno columngroupno firstrownum rowid
const (
	tagMeta     byte = 0x01
	tagRelation byte = 0x02
	tagAOEntry  byte = 0x03
	tagSegFile  byte = 0x04
	tagHeap     byte = 0x05
	tagIndex    byte = 0x06
)

var (
	metaNextRelID = metaKey("next-relid")
	metaNextRowID = metaKey("next-rowid")
)

func metaKey(name string) []byte {
	return append([]byte{tagMeta}, name...)
}

func appendUint32(b []byte, v uint32) []byte { return binary.BigEndian.AppendUint32(b, v) }
func appendUint64(b []byte, v uint64) []byte { return binary.BigEndian.AppendUint64(b, v) }

func appendInt32(b []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(b, uint32(v)^(1<<31))
}

func appendInt64(b []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(b, uint64(v)^(1<<63))
}

func decodeInt32(b []byte) int32 { return int32(binary.BigEndian.Uint32(b) ^ (1 << 31)) }
func decodeInt64(b []byte) int64 { return int64(binary.BigEndian.Uint64(b) ^ (1 << 63)) }

func relationKey(id RelID) []byte {
	return appendUint32([]byte{tagRelation}, uint32(id))
}

func aoEntryKey(id RelID) []byte {
	return appendUint32([]byte{tagAOEntry}, uint32(id))
}

func segFilePrefix(id RelID) []byte {
	return appendUint32([]byte{tagSegFile}, uint32(id))
}

func segFileKey(id RelID, segno int32) []byte {
	return appendInt32(segFilePrefix(id), segno)
}

func heapPrefix(id RelID) []byte {
	return appendUint32([]byte{tagHeap}, uint32(id))
}

func heapKey(id RelID, row RowID) []byte {
	return appendUint64(heapPrefix(id), uint64(row))
}

func decodeHeapKey(k []byte) (RowID, error) {
	if len(k) != 1+4+8 || k[0] != tagHeap {
		return 0, errors.AssertionFailedf("malformed heap key %x", k)
	}
	return RowID(binary.BigEndian.Uint64(k[5:])), nil
}

func indexPrefix(id RelID) []byte {
	return appendUint32([]byte{tagIndex}, uint32(id))
}

// indexKey returns the index key for a block directory row. The row id
// suffix keeps keys unique if the same key columns are ever stored twice.
func indexKey(id RelID, r *Row, row RowID) []byte {
	k := indexPrefix(id)
	k = appendInt32(k, r.Segno)
	k = appendInt32(k, r.ColumnGroupNo)
	k = appendInt64(k, r.FirstRowNum)
	return appendUint64(k, uint64(row))
}

const indexKeyLen = 1 + 4 + 4 + 4 + 8 + 8

func decodeIndexKey(k []byte) (RowID, error) {
	if len(k) != indexKeyLen || k[0] != tagIndex {
		return 0, errors.AssertionFailedf("malformed index key %x", k)
	}
	return RowID(binary.BigEndian.Uint64(k[indexKeyLen-8:])), nil
}

// prefixSuccessor returns the smallest key greater than every key with the
// given prefix, or nil if there is none.
func prefixSuccessor(prefix []byte) []byte {
	s := append([]byte(nil), prefix...)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] != 0xff {
			s[i]++
			return s[:i+1]
		}
	}
	return nil
}
