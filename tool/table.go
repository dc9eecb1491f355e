// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/blockdir/catalog"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// tableT implements append-only table tools, including both configuration
// state and the commands themselves.
type tableT struct {
	Root       *cobra.Command
	Create     *cobra.Command
	List       *cobra.Command
	AddColumns *cobra.Command
	Segments   *cobra.Command

	t *T

	// Flags.
	columns  int
	columnar bool
	noBlkdir bool
}

func newTable(t *T) *tableT {
	tt := &tableT{t: t}

	tt.Root = &cobra.Command{
		Use:   "table",
		Short: "append-only table tools",
	}
	tt.Create = &cobra.Command{
		Use:   "create <dir> <name>",
		Short: "create an append-only table",
		Long: `
Create an append-only table in the catalog stored in <dir>, creating the
catalog if needed. The table gets a block directory unless --no-blkdir is
given.
`,
		Args: cobra.ExactArgs(2),
		Run:  tt.runCreate,
	}
	tt.List = &cobra.Command{
		Use:   "list <dir>",
		Short: "list append-only tables",
		Args:  cobra.ExactArgs(1),
		Run:   tt.runList,
	}
	tt.AddColumns = &cobra.Command{
		Use:   "add-columns <dir> <table> <n>",
		Short: "add columns to an append-only table",
		Long: `
Add <n> columns to the table. The columns get no block directory entries
until "blkdir add-column" writes them.
`,
		Args: cobra.ExactArgs(3),
		Run:  tt.runAddColumns,
	}
	tt.Segments = &cobra.Command{
		Use:   "segments <dir> <table>",
		Short: "print the segment files of a table",
		Args:  cobra.ExactArgs(2),
		Run:   tt.runSegments,
	}

	tt.Root.AddCommand(tt.Create, tt.List, tt.AddColumns, tt.Segments)

	tt.Create.Flags().IntVar(&tt.columns, "columns", 1, "number of columns")
	tt.Create.Flags().BoolVar(&tt.columnar, "columnar", false, "create a column-oriented table")
	tt.Create.Flags().BoolVar(&tt.noBlkdir, "no-blkdir", false, "do not create a block directory")
	return tt
}

func (tt *tableT) runCreate(cmd *cobra.Command, args []string) {
	db, err := catalog.Open(args[0], &tt.t.catOpts)
	if err != nil {
		fail(err)
		return
	}
	defer db.Close()

	id, err := db.CreateAppendOnlyTable(args[1], tt.columns, tt.columnar)
	if err != nil {
		fail(err)
		return
	}
	if tt.noBlkdir {
		fmt.Fprintf(stdout, "created table %s (%d)\n", args[1], id)
		return
	}
	e, err := db.CreateBlockDirectory(id)
	if err != nil {
		fail(err)
		return
	}
	fmt.Fprintf(stdout, "created table %s (%d) with block directory %d (index %d)\n",
		args[1], id, e.BlkdirRelID, e.BlkdirIdxID)
}

func orientation(e catalog.AppendOnlyEntry) string {
	if e.Columnar {
		return "column"
	}
	return "row"
}

func (tt *tableT) runList(cmd *cobra.Command, args []string) {
	db, err := catalog.Open(args[0], &tt.t.catOpts)
	if err != nil {
		fail(err)
		return
	}
	defer db.Close()

	entries, err := db.AppendOnlyTables(nil)
	if err != nil {
		fail(err)
		return
	}
	tw := newTableWriter(stdout, "relid", "name", "orientation", "columns", "blkdir", "index")
	for _, e := range entries {
		name, err := db.RelationName(nil, e.RelID)
		if err != nil {
			fail(err)
			return
		}
		blkdir, idx := "-", "-"
		if e.HasBlockDirectory() {
			blkdir, idx = strconv.Itoa(int(e.BlkdirRelID)), strconv.Itoa(int(e.BlkdirIdxID))
		}
		tw.Append([]string{
			strconv.Itoa(int(e.RelID)), name, orientation(e), strconv.Itoa(e.NumAttrs), blkdir, idx,
		})
	}
	tw.Render()
}

func (tt *tableT) runAddColumns(cmd *cobra.Command, args []string) {
	n, err := strconv.Atoi(args[2])
	if err != nil {
		fail(errors.Wrapf(err, "invalid column count %q", args[2]))
		return
	}
	db, e, err := tt.t.openCatalog(args[0], args[1])
	if err != nil {
		fail(err)
		return
	}
	defer db.Close()

	if e, err = db.AddColumns(e.RelID, n); err != nil {
		fail(err)
		return
	}
	fmt.Fprintf(stdout, "%s now has %d columns\n", args[1], e.NumAttrs)
}

func (tt *tableT) runSegments(cmd *cobra.Command, args []string) {
	db, e, err := tt.t.openCatalog(args[0], args[1])
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
	tw := newTableWriter(stdout, "segno", "rows", "eof")
	for _, sf := range sfs {
		eofs := make([]string, len(sf.EOF))
		for i, eof := range sf.EOF {
			eofs[i] = humanize.IBytes(uint64(eof))
		}
		tw.Append([]string{
			strconv.Itoa(int(sf.Segno)), strconv.FormatInt(sf.RowCount, 10), strings.Join(eofs, " "),
		})
	}
	tw.Render()
}
