// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package dircache implements the per-column-group cache of minipages that a
// search session has already fetched from the catalog.
package dircache

import (
	"fmt"
	"math"
	"strings"

	"github.com/cockroachdb/blockdir/internal/minipage"
	"github.com/cockroachdb/errors"
	"github.com/google/btree"
)

const degree = 16

// Entry is a cached minipage covering rows [FirstRowNum, LastRowNum) of
// segment file Segno. The range is derived from the minipage's own entries,
// so a lookup that hits the cache finds its covering entry in Minipage.
type Entry struct {
	Segno       int32
	FirstRowNum int64
	LastRowNum  int64
	Minipage    *minipage.Minipage
}

// NewEntry returns a cache entry spanning the rows described by mp. It
// returns nil if mp is empty.
func NewEntry(segno int32, mp *minipage.Minipage) *Entry {
	if mp.Len() == 0 {
		return nil
	}
	return &Entry{
		Segno:       segno,
		FirstRowNum: mp.At(0).FirstRowNum,
		LastRowNum:  mp.At(mp.Len() - 1).EndRowNum(),
		Minipage:    mp,
	}
}

func (e *Entry) String() string {
	return fmt.Sprintf("seg %d [%d,%d) %d entries", e.Segno, e.FirstRowNum, e.LastRowNum, e.Minipage.Len())
}

// less orders by descending segno, then by row range. Two entries whose row
// ranges overlap compare equal, which is how a single-row probe finds its
// covering entry and how overlapping inserts are detected.
func less(a, b *Entry) bool {
	if a.Segno != b.Segno {
		return a.Segno > b.Segno
	}
	return a.LastRowNum <= b.FirstRowNum
}

// Cache is an ordered set of non-overlapping minipage ranges. It is not safe
// for concurrent use.
type Cache struct {
	tree *btree.BTreeG[*Entry]
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{tree: btree.NewG[*Entry](degree, less)}
}

// Len returns the number of cached minipages.
func (c *Cache) Len() int { return c.tree.Len() }

// Search returns the cached entry of segno whose range contains rowNum, or
// nil.
func (c *Cache) Search(segno int32, rowNum int64) *Entry {
	probe := Entry{Segno: segno, FirstRowNum: rowNum, LastRowNum: rowNum + 1}
	if rowNum == math.MaxInt64 {
		probe.LastRowNum = rowNum
	}
	e, ok := c.tree.Get(&probe)
	if !ok {
		return nil
	}
	return e
}

// Insert adds e to the cache. Inserting a range that overlaps a cached range
// of the same segment is a programming error.
func (c *Cache) Insert(e *Entry) {
	if e.FirstRowNum >= e.LastRowNum {
		panic(errors.AssertionFailedf("dircache: empty range %s", e))
	}
	if old, ok := c.tree.Get(e); ok {
		panic(errors.AssertionFailedf("dircache: %s overlaps cached %s", e, old))
	}
	c.tree.ReplaceOrInsert(e)
}

// Clear drops every cached entry.
func (c *Cache) Clear() {
	c.tree.Clear(false)
}

// String returns the cached ranges in cache order, one per line.
func (c *Cache) String() string {
	var b strings.Builder
	c.tree.Ascend(func(e *Entry) bool {
		b.WriteString(e.String())
		b.WriteByte('\n')
		return true
	})
	return b.String()
}
