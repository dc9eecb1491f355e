// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cockroachdb/blockdir"
	"github.com/cockroachdb/blockdir/catalog"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// blkdirT implements block directory tools, including both configuration
// state and the commands themselves.
type blkdirT struct {
	Root          *cobra.Command
	Create        *cobra.Command
	Append        *cobra.Command
	AddColumn     *cobra.Command
	Dump          *cobra.Command
	Lookup        *cobra.Command
	Verify        *cobra.Command
	Bench         *cobra.Command
	DeleteSegment *cobra.Command

	t *T

	// Flags.
	segno        int32
	blocks       int
	rowsPerBlock int64
	blockSize    string
	crash        bool
	columnGroup  int
	concurrency  int
	lookups      int
	seed         uint64
}

func newBlkdir(t *T) *blkdirT {
	b := &blkdirT{t: t}

	b.Root = &cobra.Command{
		Use:   "blkdir",
		Short: "block directory tools",
	}
	b.Create = &cobra.Command{
		Use:   "create <dir> <table>",
		Short: "create the block directory of a table",
		Args:  cobra.ExactArgs(2),
		Run:   b.runCreate,
	}
	b.Append = &cobra.Command{
		Use:   "append <dir> <table>",
		Short: "append blocks to a segment file",
		Long: `
Simulate an insert into one segment file: --blocks blocks of --rows-per-block
rows and --block-size bytes each are appended to every column group, logged
in the block directory, and the segment file's row count and end of file are
advanced.

With --crash the block directory is written but the segment file is left
unchanged, as if the writer had crashed before committing.
`,
		Args: cobra.ExactArgs(2),
		Run:  b.runAppend,
	}
	b.AddColumn = &cobra.Command{
		Use:   "add-column <dir> <table> <n>",
		Short: "add columns to a column-oriented table",
		Long: `
Add <n> columns to a column-oriented table and write the new column files of
every segment file, logging them in the block directory. The new columns are
written in blocks of --rows-per-block rows and --block-size bytes.
`,
		Args: cobra.ExactArgs(3),
		Run:  b.runAddColumn,
	}
	b.Dump = &cobra.Command{
		Use:   "dump <dir> <table>",
		Short: "print the block directory entries of a table",
		Args:  cobra.ExactArgs(2),
		Run:   b.runDump,
	}
	b.Lookup = &cobra.Command{
		Use:   "lookup <dir> <table> <segno> <row>...",
		Short: "find the blocks holding rows",
		Args:  cobra.MinimumNArgs(4),
		Run:   b.runLookup,
	}
	b.Verify = &cobra.Command{
		Use:   "verify <dir> <table>",
		Short: "check that every row of every segment file can be found",
		Long: `
Look up every row of every segment file in every column group and report the
rows the block directory cannot place. Segment files are checked in parallel.
`,
		Args: cobra.ExactArgs(2),
		Run:  b.runVerify,
	}
	b.Bench = &cobra.Command{
		Use:   "bench <dir> <table>",
		Short: "measure random lookup latency",
		Args:  cobra.ExactArgs(2),
		Run:   b.runBench,
	}
	b.DeleteSegment = &cobra.Command{
		Use:   "delete-segment <dir> <table> <segno>",
		Short: "drop a segment file and its block directory entries",
		Args:  cobra.ExactArgs(3),
		Run:   b.runDeleteSegment,
	}

	b.Root.AddCommand(b.Create, b.Append, b.AddColumn, b.Dump, b.Lookup, b.Verify, b.Bench, b.DeleteSegment)

	b.Append.Flags().Int32Var(&b.segno, "segno", 0, "segment file to append to")
	b.Append.Flags().IntVar(&b.blocks, "blocks", 10, "number of blocks to append")
	b.Append.Flags().BoolVar(&b.crash, "crash", false, "do not advance the segment file")
	for _, cmd := range []*cobra.Command{b.Append, b.AddColumn} {
		cmd.Flags().Int64Var(&b.rowsPerBlock, "rows-per-block", 100, "rows per block")
		cmd.Flags().StringVar(&b.blockSize, "block-size", "32KiB", "block size")
	}
	b.Lookup.Flags().IntVar(&b.columnGroup, "column-group", 0, "column group to look up")
	b.Verify.Flags().IntVarP(&b.concurrency, "concurrency", "c", 4, "segment files checked in parallel")
	b.Bench.Flags().IntVar(&b.lookups, "lookups", 10000, "number of lookups")
	b.Bench.Flags().Uint64Var(&b.seed, "seed", 1, "random seed")
	return b
}

func (b *blkdirT) runCreate(cmd *cobra.Command, args []string) {
	db, e, err := b.t.openCatalog(args[0], args[1])
	if err != nil {
		fail(err)
		return
	}
	defer db.Close()

	if e, err = db.CreateBlockDirectory(e.RelID); err != nil {
		fail(err)
		return
	}
	fmt.Fprintf(stdout, "created block directory %d (index %d) for %s\n", e.BlkdirRelID, e.BlkdirIdxID, args[1])
}

func (b *blkdirT) parseBlockSize() (int64, error) {
	n, err := humanize.ParseBytes(b.blockSize)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid block size %q", b.blockSize)
	}
	if n == 0 || b.rowsPerBlock <= 0 {
		return 0, errors.Newf("blocks must hold at least one byte and one row")
	}
	return int64(n), nil
}

func (b *blkdirT) runAppend(cmd *cobra.Command, args []string) {
	blockSize, err := b.parseBlockSize()
	if err != nil {
		fail(err)
		return
	}
	db, e, err := b.t.openCatalog(args[0], args[1])
	if err != nil {
		fail(err)
		return
	}
	defer db.Close()

	sf, ok, err := db.SegFile(nil, e.RelID, b.segno)
	if err != nil {
		fail(err)
		return
	}
	if !ok {
		sf = catalog.SegFile{Segno: b.segno, EOF: make([]int64, e.NumColumnGroups())}
	}

	logged, err := b.appendBlocks(db, e, &sf, blockSize)
	if err != nil {
		fail(err)
		return
	}
	if !logged {
		fmt.Fprintf(stdout, "%s has no block directory: blocks were not logged\n", args[1])
	}
	rows := int64(b.blocks) * b.rowsPerBlock
	if b.crash {
		fmt.Fprintf(stdout, "logged %d rows in %d blocks of segment %d without advancing it\n",
			rows, b.blocks, b.segno)
		return
	}
	if err := db.SetSegFile(e.RelID, sf); err != nil {
		fail(err)
		return
	}
	fmt.Fprintf(stdout, "appended %d rows in %d blocks to segment %d (%s per column group)\n",
		rows, b.blocks, b.segno, humanize.IBytes(uint64(int64(b.blocks)*blockSize)))
}

// appendBlocks runs an insert session logging b.blocks new blocks in every
// column group of sf, and advances sf past them. It returns false if the
// table has no block directory to log them in.
func (b *blkdirT) appendBlocks(
	db *catalog.DB, e catalog.AppendOnlyEntry, sf *catalog.SegFile, blockSize int64,
) (logged bool, err error) {
	d, err := blockdir.New(&b.t.opts)
	if err != nil {
		return false, err
	}
	ctx := context.Background()
	txn := db.Begin()
	defer func() { err = errors.CombineErrors(err, txn.Commit()) }()
	seg := blockdir.SegmentFromCatalog(e, *sf)
	if err := d.InitForInsert(ctx, txn, e, nil, seg, sf.RowCount, e.NumColumnGroups()); err != nil {
		return false, err
	}
	for i := 0; i < b.blocks; i++ {
		first := sf.RowCount + 1 + int64(i)*b.rowsPerBlock
		for cg := range sf.EOF {
			if _, err := d.InsertEntry(cg, first, sf.EOF[cg]+int64(i)*blockSize, b.rowsPerBlock); err != nil {
				return false, err
			}
		}
	}
	if err := d.EndForInsert(ctx); err != nil {
		return false, err
	}
	sf.RowCount += int64(b.blocks) * b.rowsPerBlock
	for cg := range sf.EOF {
		sf.EOF[cg] += int64(b.blocks) * blockSize
	}
	return !d.Absent(), nil
}

func (b *blkdirT) runAddColumn(cmd *cobra.Command, args []string) {
	blockSize, err := b.parseBlockSize()
	if err != nil {
		fail(err)
		return
	}
	n, err := strconv.Atoi(args[2])
	if err != nil {
		fail(errors.Wrapf(err, "invalid column count %q", args[2]))
		return
	}
	db, e, err := b.t.openCatalog(args[0], args[1])
	if err != nil {
		fail(err)
		return
	}
	defer db.Close()
	if !e.Columnar {
		fail(errors.Newf("%s is not column-oriented", args[1]))
		return
	}
	numPreexisting := e.NumAttrs
	if e, err = db.AddColumns(e.RelID, n); err != nil {
		fail(err)
		return
	}
	sfs, err := db.SegFiles(nil, e.RelID)
	if err != nil {
		fail(err)
		return
	}

	// All segment files are rewritten under one transaction, which keeps
	// the block directory locked until every one is done.
	txn := db.Begin()
	defer func() {
		if err := txn.Commit(); err != nil {
			fail(err)
		}
	}()
	var entries int64
	for i := range sfs {
		sf := &sfs[i]
		d, err := blockdir.New(&b.t.opts)
		if err != nil {
			fail(err)
			return
		}
		if err := d.InitForAddColumn(txn, e, nil, blockdir.SegmentFromCatalog(e, *sf), n, numPreexisting); err != nil {
			fail(err)
			return
		}
		for first := int64(1); first <= sf.RowCount; first += b.rowsPerBlock {
			off := (first - 1) / b.rowsPerBlock * blockSize
			cnt := min(b.rowsPerBlock, sf.RowCount-first+1)
			for c := numPreexisting; c < e.NumAttrs; c++ {
				if _, err := d.AddColumnInsertEntry(blockdir.ColumnGroupIndex(c), first, off, cnt); err != nil {
					fail(err)
					return
				}
				sf.EOF[c] = off + blockSize
			}
		}
		if err := d.EndForAddColumn(context.Background()); err != nil {
			fail(err)
			return
		}
		m := d.Metrics()
		entries += m.Entries.Inserted
		if err := db.SetSegFile(e.RelID, *sf); err != nil {
			fail(err)
			return
		}
	}
	fmt.Fprintf(stdout, "added %d columns to %s: %d entries in %d segment files\n",
		n, args[1], entries, len(sfs))
}

func (b *blkdirT) runDump(cmd *cobra.Command, args []string) {
	db, e, err := b.t.openCatalog(args[0], args[1])
	if err != nil {
		fail(err)
		return
	}
	defer db.Close()

	txn := db.Begin()
	tw := newTableWriter(stdout, "rowid", "segno", "cg", "#", "first", "offset", "count")
	err = blockdir.Dump(txn, e, nil, func(r blockdir.DumpRecord) error {
		tw.Append([]string{
			strconv.FormatUint(uint64(r.RowID), 10),
			strconv.Itoa(int(r.Segno)),
			strconv.Itoa(int(r.ColumnGroupNo)),
			strconv.Itoa(r.EntryNo),
			strconv.FormatInt(r.FirstRowNum, 10),
			strconv.FormatInt(r.FileOffset, 10),
			strconv.FormatInt(r.RowCount, 10),
		})
		return nil
	})
	if err = errors.CombineErrors(err, txn.Commit()); err != nil {
		fail(err)
		return
	}
	tw.Render()
}

func (b *blkdirT) runLookup(cmd *cobra.Command, args []string) {
	segno, err := parseInt32(args[2], "segment number")
	if err != nil {
		fail(err)
		return
	}
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
	defer func() {
		if err := d.EndForSearch(); err != nil {
			fail(err)
		}
	}()
	for _, arg := range args[3:] {
		row, err := parseInt64(arg, "row number")
		if err != nil {
			fail(err)
			return
		}
		entry, ok, err := d.GetEntry(segno, row, b.columnGroup)
		if err != nil {
			fail(err)
			return
		}
		if !ok {
			fmt.Fprintf(stdout, "%d: not found\n", row)
			continue
		}
		fmt.Fprintf(stdout, "%d: %s\n", row, entry)
	}
}

func (b *blkdirT) runDeleteSegment(cmd *cobra.Command, args []string) {
	segno, err := parseInt32(args[2], "segment number")
	if err != nil {
		fail(err)
		return
	}
	db, e, err := b.t.openCatalog(args[0], args[1])
	if err != nil {
		fail(err)
		return
	}
	defer db.Close()

	txn := db.Begin()
	n, err := blockdir.DeleteSegmentFile(txn, e, nil, segno, &b.t.opts)
	if err = errors.CombineErrors(err, txn.Commit()); err != nil {
		fail(err)
		return
	}
	if err := db.DeleteSegFile(e.RelID, segno); err != nil {
		fail(err)
		return
	}
	fmt.Fprintf(stdout, "deleted segment %d: %d block directory rows\n", segno, n)
}
