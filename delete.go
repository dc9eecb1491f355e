// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blockdir

import (
	"github.com/cockroachdb/blockdir/catalog"
	"github.com/cockroachdb/errors"
)

// DeleteSegmentFile deletes every block directory row of segment file segno,
// in every column group. It is used when a segment file is dropped or
// recycled. It returns the number of rows deleted.
func DeleteSegmentFile(
	access catalog.Access,
	aoEntry catalog.AppendOnlyEntry,
	snap *catalog.Snapshot,
	segno int32,
	opts *Options,
) (int, error) {
	opts = opts.EnsureDefaults()
	if !aoEntry.HasBlockDirectory() {
		return 0, errors.AssertionFailedf(
			"blockdir: block directory for append-only relation %d does not exist", aoEntry.RelID)
	}
	cat, err := openCatalogAdapter(access, aoEntry, snap, catalog.RowExclusiveLock)
	if err != nil {
		return 0, err
	}
	n, err := cat.deleteRowsForSegment(segno)
	err = errors.CombineErrors(err, cat.close(catalog.RowExclusiveLock))
	if opts.Verbose {
		opts.Logger.Infof("blockdir: delete segment file: (relation, segno, rows) = (%d, %d, %d)",
			aoEntry.RelID, segno, n)
	}
	if opts.Metrics != nil {
		var m Metrics
		m.Minipages.Deleted = int64(n)
		opts.Metrics.add(&m)
	}
	return n, err
}
