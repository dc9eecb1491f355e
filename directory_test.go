// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blockdir

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/blockdir/catalog"
	"github.com/cockroachdb/blockdir/internal/base"
	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"
)

// testTable is an append-only table in a fresh in-memory catalog.
type testTable struct {
	db *catalog.DB
	ao catalog.AppendOnlyEntry
}

func newTestTable(t *testing.T, numAttrs int, columnar, blkdir bool) *testTable {
	t.Helper()
	db, err := catalog.Open("", &catalog.Options{FS: vfs.NewMem(), Logger: &base.InMemLogger{}})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	id, err := db.CreateAppendOnlyTable("t", numAttrs, columnar)
	require.NoError(t, err)
	tt := &testTable{db: db}
	if blkdir {
		tt.ao, err = db.CreateBlockDirectory(id)
	} else {
		tt.ao, err = db.AppendOnlyEntry(nil, id)
	}
	require.NoError(t, err)
	return tt
}

func (tt *testTable) numColumnGroups() int {
	return tt.ao.NumColumnGroups()
}

func (tt *testTable) segment(t *testing.T, segno int32) SegmentInfo {
	t.Helper()
	sf, ok, err := tt.db.SegFile(nil, tt.ao.RelID, segno)
	require.NoError(t, err)
	require.True(t, ok, "segment file %d not found", segno)
	return SegmentFromCatalog(tt.ao, sf)
}

func (tt *testTable) segments(t *testing.T) []SegmentInfo {
	t.Helper()
	sfs, err := tt.db.SegFiles(nil, tt.ao.RelID)
	require.NoError(t, err)
	return SegmentsFromCatalog(tt.ao, sfs)
}

func (tt *testTable) setSegFile(t *testing.T, segno int32, rows int64, eof ...int64) {
	t.Helper()
	require.NoError(t, tt.db.SetSegFile(tt.ao.RelID, catalog.SegFile{Segno: segno, RowCount: rows, EOF: eof}))
}

// insert runs a complete insert session.
func (tt *testTable) insert(t *testing.T, opts *Options, segno int32, lastSequence int64, entries ...[4]int64) *Directory {
	t.Helper()
	txn := tt.db.Begin()
	defer func() { require.NoError(t, txn.Commit()) }()
	d, err := New(opts)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, d.InitForInsert(ctx, txn, tt.ao, nil, tt.segment(t, segno), lastSequence, tt.numColumnGroups()))
	for _, e := range entries {
		_, err := d.InsertEntry(int(e[0]), e[1], e[2], e[3])
		require.NoError(t, err)
	}
	require.NoError(t, d.EndForInsert(ctx))
	return d
}

func testOptions(t *testing.T, td *datadriven.TestData) *Options {
	opts := &Options{Logger: &base.InMemLogger{}}
	td.MaybeScanArgs(t, "cap", &opts.MinipageCapacity)
	td.MaybeScanArgs(t, "min-range", &opts.MinEntryRangeBytes)
	return opts
}

func parseInts(t *testing.T, line string) []int64 {
	t.Helper()
	var vals []int64
	for _, f := range strings.Fields(line) {
		v, err := strconv.ParseInt(f, 10, 64)
		require.NoError(t, err, "parsing %q", line)
		vals = append(vals, v)
	}
	return vals
}

func lines(input string) []string {
	var out []string
	for _, l := range strings.Split(input, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// try runs fn, reporting a panic or an error on out.
func try(out *strings.Builder, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(out, "panic: %v\n", r)
		}
	}()
	if err := fn(); err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
	}
}

func writeSummary(out *strings.Builder, m Metrics) {
	fmt.Fprintf(out, "minipages: inserted=%d updated=%d\n", m.Minipages.Inserted, m.Minipages.Updated)
	fmt.Fprintf(out, "entries: inserted=%d coalesced=%d\n", m.Entries.Inserted, m.Entries.Coalesced)
}

func TestDirectory(t *testing.T) {
	datadriven.Walk(t, "testdata/directory", func(t *testing.T, path string) {
		var tt *testTable
		datadriven.RunTest(t, path, func(t *testing.T, td *datadriven.TestData) string {
			switch td.Cmd {
			case "new-table":
				cols := 1
				td.MaybeScanArgs(t, "cols", &cols)
				tt = newTestTable(t, cols, td.HasArg("columnar"), !td.HasArg("no-blkdir"))
				return ""

			case "set-segfile":
				var segno int
				var rows int64
				td.ScanArgs(t, "segno", &segno)
				td.ScanArgs(t, "rows", &rows)
				var eof []int64
				for _, arg := range td.CmdArgs {
					if arg.Key != "eof" {
						continue
					}
					for _, v := range arg.Vals {
						n, err := strconv.ParseInt(v, 10, 64)
						require.NoError(t, err)
						eof = append(eof, n)
					}
				}
				if err := tt.db.SetSegFile(tt.ao.RelID, catalog.SegFile{
					Segno: int32(segno), RowCount: rows, EOF: eof,
				}); err != nil {
					return err.Error()
				}
				return ""

			case "insert":
				var segno int
				var lastSeq int64
				td.ScanArgs(t, "segno", &segno)
				td.MaybeScanArgs(t, "last-seq", &lastSeq)
				d, err := New(testOptions(t, td))
				require.NoError(t, err)
				txn := tt.db.Begin()
				defer func() { require.NoError(t, txn.Commit()) }()
				ctx := context.Background()
				require.NoError(t, d.InitForInsert(ctx, txn, tt.ao, nil, tt.segment(t, int32(segno)), lastSeq, tt.numColumnGroups()))
				var out strings.Builder
				for _, line := range lines(td.Input) {
					v := parseInts(t, line)
					try(&out, func() error {
						ok, err := d.InsertEntry(int(v[0]), v[1], v[2], v[3])
						if err == nil && !ok {
							fmt.Fprintf(&out, "false: %s\n", line)
						}
						return err
					})
				}
				try(&out, func() error { return d.EndForInsert(ctx) })
				writeSummary(&out, d.Metrics())
				return out.String()

			case "add-column":
				var segno, n int
				td.ScanArgs(t, "segno", &segno)
				td.ScanArgs(t, "new", &n)
				var err error
				tt.ao, err = tt.db.AddColumns(tt.ao.RelID, n)
				require.NoError(t, err)
				d, err := New(testOptions(t, td))
				require.NoError(t, err)
				txn := tt.db.Begin()
				require.NoError(t, d.InitForAddColumn(txn, tt.ao, nil, tt.segment(t, int32(segno)), n, tt.ao.NumAttrs-n))
				var out strings.Builder
				for _, line := range lines(td.Input) {
					v := parseInts(t, line)
					try(&out, func() error {
						ok, err := d.AddColumnInsertEntry(ColumnGroupIndex(v[0]), v[1], v[2], v[3])
						if err == nil && !ok {
							fmt.Fprintf(&out, "false: %s\n", line)
						}
						return err
					})
				}
				ctx := context.Background()
				try(&out, func() error { return d.EndForAddColumn(ctx) })
				writeSummary(&out, d.Metrics())
				if tt.ao.HasBlockDirectory() {
					fmt.Fprintf(&out, "locks held until commit: %d\n",
						txn.HeldLocks(tt.ao.BlkdirRelID, catalog.RowExclusiveLock))
				}
				require.NoError(t, txn.Commit())
				return out.String()

			case "get":
				d, err := New(testOptions(t, td))
				require.NoError(t, err)
				txn := tt.db.Begin()
				defer func() { require.NoError(t, txn.Commit()) }()
				require.NoError(t, d.InitForSearch(txn, tt.ao, nil, tt.segments(t), tt.numColumnGroups()))
				var out strings.Builder
				for _, line := range lines(td.Input) {
					v := parseInts(t, line)
					var cg int64
					if len(v) > 2 {
						cg = v[2]
					}
					try(&out, func() error {
						e, ok, err := d.GetEntry(int32(v[0]), v[1], int(cg))
						switch {
						case err != nil:
							return err
						case !ok:
							fmt.Fprintf(&out, "%d/%d/%d: not found\n", v[0], v[1], cg)
						default:
							fmt.Fprintf(&out, "%d/%d/%d: %s\n", v[0], v[1], cg, e)
						}
						return nil
					})
				}
				require.NoError(t, d.EndForSearch())
				m := d.Metrics()
				fmt.Fprintf(&out, "scans=%d hits=%d trimmed=%d\n",
					m.Lookup.IndexScans, m.Cache.Hits, m.Lookup.Trimmed)
				return out.String()

			case "delete-segment":
				var segno int
				td.ScanArgs(t, "segno", &segno)
				txn := tt.db.Begin()
				defer func() { require.NoError(t, txn.Commit()) }()
				n, err := DeleteSegmentFile(txn, tt.ao, nil, int32(segno), nil)
				if err != nil {
					return fmt.Sprintf("error: %v", err)
				}
				return fmt.Sprintf("deleted %d", n)

			case "dump":
				txn := tt.db.Begin()
				defer func() { require.NoError(t, txn.Commit()) }()
				var out strings.Builder
				if err := Dump(txn, tt.ao, nil, func(r DumpRecord) error {
					fmt.Fprintf(&out, "%s\n", r)
					return nil
				}); err != nil {
					return fmt.Sprintf("error: %v", err)
				}
				return out.String()

			default:
				return fmt.Sprintf("unknown command: %s", td.Cmd)
			}
		})
	})
}
