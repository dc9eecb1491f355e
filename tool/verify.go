// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/cockroachdb/blockdir"
	"github.com/cockroachdb/blockdir/catalog"
	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// verifyReport summarizes the lookups of one column group of one segment
// file.
type verifyReport struct {
	segno       int32
	columnGroup int
	rows        int64
	found       int64
	missing     int64
	// outside counts rows whose entry does not contain them, which happens
	// for rows between the logged blocks of a minipage.
	outside int64
}

func (b *blkdirT) runVerify(cmd *cobra.Command, args []string) {
	db, e, err := b.t.openCatalog(args[0], args[1])
	if err != nil {
		fail(err)
		return
	}
	defer db.Close()

	sfs, err := db.SegFiles(nil, e.RelID)
	if err != nil {
		fail(err)
		return
	}
	start := crtime.NowMono()
	reports := make([][]verifyReport, len(sfs))
	var g errgroup.Group
	g.SetLimit(max(b.concurrency, 1))
	for i := range sfs {
		g.Go(func() error {
			var err error
			reports[i], err = b.verifySegment(db, e, sfs[i])
			return errors.Wrapf(err, "segment %d", errors.Safe(sfs[i].Segno))
		})
	}
	if err := g.Wait(); err != nil {
		fail(err)
		return
	}
	b.t.opts.Logger.Infof("verified %d segment files in %s", len(sfs), start.Elapsed())

	var bad int64
	tw := newTableWriter(stdout, "segno", "cg", "rows", "found", "missing", "outside")
	for _, rs := range reports {
		for _, r := range rs {
			bad += r.missing
			tw.Append([]string{
				strconv.Itoa(int(r.segno)),
				strconv.Itoa(r.columnGroup),
				strconv.FormatInt(r.rows, 10),
				strconv.FormatInt(r.found, 10),
				strconv.FormatInt(r.missing, 10),
				strconv.FormatInt(r.outside, 10),
			})
		}
	}
	tw.Render()
	if bad > 0 {
		fail(errors.Newf("%d rows cannot be found", bad))
	}
}

// verifySegment looks up every row of sf in its own search session.
func (b *blkdirT) verifySegment(
	db *catalog.DB, e catalog.AppendOnlyEntry, sf catalog.SegFile,
) (_ []verifyReport, err error) {
	txn := db.Begin()
	defer func() { err = errors.CombineErrors(err, txn.Commit()) }()
	d, err := blockdir.New(&b.t.opts)
	if err != nil {
		return nil, err
	}
	seg := blockdir.SegmentFromCatalog(e, sf)
	if err := d.InitForSearch(txn, e, nil, []blockdir.SegmentInfo{seg}, e.NumColumnGroups()); err != nil {
		return nil, err
	}
	defer func() { err = errors.CombineErrors(err, d.EndForSearch()) }()

	reports := make([]verifyReport, e.NumColumnGroups())
	for cg := range reports {
		r := &reports[cg]
		*r = verifyReport{segno: sf.Segno, columnGroup: cg, rows: sf.RowCount}
		for row := int64(1); row <= sf.RowCount; row++ {
			entry, ok, err := d.GetEntry(sf.Segno, row, cg)
			switch {
			case err != nil:
				return nil, err
			case !ok:
				r.missing++
			case !entry.RangeHasRow(row):
				r.found++
				r.outside++
			default:
				r.found++
			}
		}
	}
	return reports, nil
}

// Lookup latencies are recorded between 100ns and 1s.
const (
	minLookupLatency = 100 * time.Nanosecond
	maxLookupLatency = time.Second
)

func (b *blkdirT) runBench(cmd *cobra.Command, args []string) {
	db, e, err := b.t.openCatalog(args[0], args[1])
	if err != nil {
		fail(err)
		return
	}
	defer db.Close()

	sfs, err := db.SegFiles(nil, e.RelID)
	if err != nil {
		fail(err)
		return
	}
	var nonEmpty []catalog.SegFile
	for _, sf := range sfs {
		if sf.RowCount > 0 {
			nonEmpty = append(nonEmpty, sf)
		}
	}
	if len(nonEmpty) == 0 {
		fail(errors.Newf("%s has no rows", args[1]))
		return
	}

	txn := db.Begin()
	defer commit(txn)
	d, err := blockdir.New(&b.t.opts)
	if err != nil {
		fail(err)
		return
	}
	if err := d.InitForSearch(txn, e, nil, blockdir.SegmentsFromCatalog(e, sfs), e.NumColumnGroups()); err != nil {
		fail(err)
		return
	}

	rng := rand.New(rand.NewPCG(b.seed, b.seed))
	hist := hdrhistogram.New(minLookupLatency.Nanoseconds(), maxLookupLatency.Nanoseconds(), 1)
	start := crtime.NowMono()
	for i := 0; i < b.lookups; i++ {
		sf := nonEmpty[rng.IntN(len(nonEmpty))]
		row := 1 + rng.Int64N(sf.RowCount)
		cg := rng.IntN(e.NumColumnGroups())
		begin := crtime.NowMono()
		if _, _, err := d.GetEntry(sf.Segno, row, cg); err != nil {
			fail(errors.CombineErrors(err, d.EndForSearch()))
			return
		}
		lat := begin.Elapsed().Nanoseconds()
		_ = hist.RecordValue(min(max(lat, hist.LowestTrackableValue()), hist.HighestTrackableValue()))
	}
	elapsed := start.Elapsed()
	if err := d.EndForSearch(); err != nil {
		fail(err)
		return
	}

	m := d.Metrics()
	ms := func(v int64) string {
		return strconv.FormatFloat(time.Duration(v).Seconds()*1000, 'f', 4, 64)
	}
	tw := newTableWriter(stdout, "lookups", "ops/sec", "hit%", "scans", "p50(ms)", "p95(ms)", "p99(ms)", "pMax(ms)")
	hitRate := 100 * float64(m.Cache.Hits) / math.Max(float64(m.Cache.Hits+m.Cache.Misses), 1)
	tw.Append([]string{
		strconv.Itoa(b.lookups),
		strconv.FormatFloat(float64(b.lookups)/elapsed.Seconds(), 'f', 1, 64),
		strconv.FormatFloat(hitRate, 'f', 1, 64),
		strconv.FormatInt(m.Lookup.IndexScans, 10),
		ms(hist.ValueAtQuantile(50)),
		ms(hist.ValueAtQuantile(95)),
		ms(hist.ValueAtQuantile(99)),
		ms(hist.Max()),
	})
	tw.Render()
}
