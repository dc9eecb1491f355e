// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package catalog

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// allocRelIDLocked returns the next relation id and records the new counter
// in b. d.mu must be held.
func (d *DB) allocRelIDLocked(b *pebble.Batch) (RelID, error) {
	id := d.mu.nextRelID
	d.mu.nextRelID++
	if err := b.Set(metaNextRelID, encodeCounter(uint64(d.mu.nextRelID)), nil); err != nil {
		return InvalidRelID, err
	}
	return id, nil
}

func setRelation(b *pebble.Batch, m *relationMeta) error {
	return b.Set(relationKey(m.ID), m.encode(), nil)
}

// CreateAppendOnlyTable registers a new append-only table with numAttrs
// columns. The table has no block directory until CreateBlockDirectory is
// called.
func (d *DB) CreateAppendOnlyTable(name string, numAttrs int, columnar bool) (RelID, error) {
	if numAttrs <= 0 {
		return InvalidRelID, errors.Newf("catalog: table %q needs at least one column", name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	b := d.pdb.NewBatch()
	defer b.Close()
	id, err := d.allocRelIDLocked(b)
	if err != nil {
		return InvalidRelID, err
	}
	if err := setRelation(b, &relationMeta{ID: id, Kind: RelKindAppendOnly, Name: name}); err != nil {
		return InvalidRelID, err
	}
	e := AppendOnlyEntry{RelID: id, Columnar: columnar, NumAttrs: numAttrs}
	if err := b.Set(aoEntryKey(id), e.encode(), nil); err != nil {
		return InvalidRelID, err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return InvalidRelID, err
	}
	d.opts.Logger.Infof("catalog: created %s table %q as relation %d", tableKind(columnar), name, id)
	return id, nil
}

func tableKind(columnar bool) string {
	if columnar {
		return "column-oriented"
	}
	return "row-oriented"
}

// exclusive runs fn while holding AccessExclusiveLock on rel in a private
// transaction.
func (d *DB) exclusive(rel RelID, fn func() error) error {
	t := d.Begin()
	d.locks.acquire(t, rel, AccessExclusiveLock)
	defer func() { _ = t.Commit() }()
	return fn()
}

// CreateBlockDirectory creates the block directory relation and its index
// for append-only table aoRel.
func (d *DB) CreateBlockDirectory(aoRel RelID) (AppendOnlyEntry, error) {
	var e AppendOnlyEntry
	err := d.exclusive(aoRel, func() error {
		d.mu.Lock()
		defer d.mu.Unlock()
		var err error
		if e, err = d.AppendOnlyEntry(nil, aoRel); err != nil {
			return err
		}
		if e.HasBlockDirectory() {
			return errors.Newf("catalog: relation %d already has a block directory", aoRel)
		}
		name, err := d.RelationName(nil, aoRel)
		if err != nil {
			return err
		}
		b := d.pdb.NewBatch()
		defer b.Close()
		if e.BlkdirRelID, err = d.allocRelIDLocked(b); err != nil {
			return err
		}
		if e.BlkdirIdxID, err = d.allocRelIDLocked(b); err != nil {
			return err
		}
		if err := setRelation(b, &relationMeta{
			ID: e.BlkdirRelID, Kind: RelKindHeap, Related: e.BlkdirIdxID, Name: name + "_blkdir",
		}); err != nil {
			return err
		}
		if err := setRelation(b, &relationMeta{
			ID: e.BlkdirIdxID, Kind: RelKindIndex, Related: e.BlkdirRelID, Name: name + "_blkdir_idx",
		}); err != nil {
			return err
		}
		if err := b.Set(aoEntryKey(aoRel), e.encode(), nil); err != nil {
			return err
		}
		return b.Commit(pebble.Sync)
	})
	if err != nil {
		return AppendOnlyEntry{}, err
	}
	d.opts.Logger.Infof("catalog: created block directory %d (index %d) for relation %d",
		e.BlkdirRelID, e.BlkdirIdxID, aoRel)
	return e, nil
}

// AddColumns appends n columns to table aoRel. For a column-oriented table
// every segment file gains n empty column files.
func (d *DB) AddColumns(aoRel RelID, n int) (AppendOnlyEntry, error) {
	if n <= 0 {
		return AppendOnlyEntry{}, errors.Newf("catalog: cannot add %d columns", n)
	}
	var e AppendOnlyEntry
	err := d.exclusive(aoRel, func() error {
		d.mu.Lock()
		defer d.mu.Unlock()
		var err error
		if e, err = d.AppendOnlyEntry(nil, aoRel); err != nil {
			return err
		}
		segs, err := d.SegFiles(nil, aoRel)
		if err != nil {
			return err
		}
		e.NumAttrs += n
		b := d.pdb.NewBatch()
		defer b.Close()
		if err := b.Set(aoEntryKey(aoRel), e.encode(), nil); err != nil {
			return err
		}
		if e.Columnar {
			for i := range segs {
				segs[i].EOF = append(segs[i].EOF, make([]int64, n)...)
				if err := b.Set(segFileKey(aoRel, segs[i].Segno), segs[i].encode(), nil); err != nil {
					return err
				}
			}
		}
		return b.Commit(pebble.Sync)
	})
	if err != nil {
		return AppendOnlyEntry{}, err
	}
	return e, nil
}

// AppendOnlyEntry returns the catalog record of append-only table aoRel as
// of snap. A nil snap reads the latest state.
func (d *DB) AppendOnlyEntry(snap *Snapshot, aoRel RelID) (AppendOnlyEntry, error) {
	v, ok, err := get(d.reader(snap), aoEntryKey(aoRel))
	if err != nil {
		return AppendOnlyEntry{}, err
	}
	if !ok {
		return AppendOnlyEntry{}, errors.Wrapf(ErrRelationNotFound, "append-only relation %d", aoRel)
	}
	return decodeAppendOnlyEntry(v)
}

// AppendOnlyTables returns every append-only table in relation id order.
func (d *DB) AppendOnlyTables(snap *Snapshot) ([]AppendOnlyEntry, error) {
	prefix := []byte{tagAOEntry}
	iter, err := d.reader(snap).NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixSuccessor(prefix),
	})
	if err != nil {
		return nil, err
	}
	var entries []AppendOnlyEntry
	for valid := iter.First(); valid; valid = iter.Next() {
		e, err := decodeAppendOnlyEntry(iter.Value())
		if err != nil {
			return nil, errors.CombineErrors(err, iter.Close())
		}
		entries = append(entries, e)
	}
	return entries, errors.CombineErrors(iter.Error(), iter.Close())
}

// RelationName returns the name of relation id.
func (d *DB) RelationName(snap *Snapshot, id RelID) (string, error) {
	v, ok, err := get(d.reader(snap), relationKey(id))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.Wrapf(ErrRelationNotFound, "relation %d", id)
	}
	m, err := decodeRelationMeta(v)
	if err != nil {
		return "", err
	}
	return m.Name, nil
}

// LookupAppendOnlyTable returns the append-only table named name.
func (d *DB) LookupAppendOnlyTable(snap *Snapshot, name string) (AppendOnlyEntry, error) {
	entries, err := d.AppendOnlyTables(snap)
	if err != nil {
		return AppendOnlyEntry{}, err
	}
	for _, e := range entries {
		n, err := d.RelationName(snap, e.RelID)
		if err != nil {
			return AppendOnlyEntry{}, err
		}
		if n == name {
			return e, nil
		}
	}
	return AppendOnlyEntry{}, errors.Wrapf(ErrRelationNotFound, "append-only table %q", name)
}

// SetSegFile records the state of one segment file of aoRel. The number of
// EOF values must match the table's orientation.
func (d *DB) SetSegFile(aoRel RelID, sf SegFile) error {
	e, err := d.AppendOnlyEntry(nil, aoRel)
	if err != nil {
		return err
	}
	want := 1
	if e.Columnar {
		want = e.NumAttrs
	}
	if len(sf.EOF) != want {
		return errors.Newf("catalog: segment file %d of relation %d needs %d EOF values, got %d",
			sf.Segno, aoRel, want, len(sf.EOF))
	}
	return d.pdb.Set(segFileKey(aoRel, sf.Segno), sf.encode(), pebble.Sync)
}

// SegFile returns the record of segment file segno of aoRel.
func (d *DB) SegFile(snap *Snapshot, aoRel RelID, segno int32) (SegFile, bool, error) {
	v, ok, err := get(d.reader(snap), segFileKey(aoRel, segno))
	if err != nil || !ok {
		return SegFile{}, false, err
	}
	sf, err := decodeSegFile(v)
	return sf, err == nil, err
}

// SegFiles returns the segment files of aoRel in segno order.
func (d *DB) SegFiles(snap *Snapshot, aoRel RelID) ([]SegFile, error) {
	prefix := segFilePrefix(aoRel)
	iter, err := d.reader(snap).NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixSuccessor(prefix),
	})
	if err != nil {
		return nil, err
	}
	var segs []SegFile
	for valid := iter.First(); valid; valid = iter.Next() {
		sf, err := decodeSegFile(iter.Value())
		if err != nil {
			return nil, errors.CombineErrors(err, iter.Close())
		}
		segs = append(segs, sf)
	}
	return segs, errors.CombineErrors(iter.Error(), iter.Close())
}

// DeleteSegFile removes the record of segment file segno of aoRel.
func (d *DB) DeleteSegFile(aoRel RelID, segno int32) error {
	return d.pdb.Delete(segFileKey(aoRel, segno), pebble.Sync)
}
