// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"strings"
	"testing"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, fs vfs.FS, cmdline string) string {
	t.Helper()
	out := runTool(fs, strings.Fields(cmdline))
	t.Logf("%s\n%s", cmdline, out)
	return out
}

func TestTableCommands(t *testing.T) {
	fs := vfs.NewMem()
	run(t, fs, "table create db rows --columns=3")
	run(t, fs, "table create db cols --columns=2 --columnar")
	run(t, fs, "blkdir append db cols --segno=2 --blocks=4 --rows-per-block=8 --block-size=2KiB")

	out := run(t, fs, "table list db")
	for _, s := range []string{"relid", "orientation", "rows", "cols", "row", "column"} {
		require.Contains(t, out, s)
	}

	out = run(t, fs, "table segments db cols")
	require.Contains(t, out, "segno")
	require.Contains(t, out, "32")
	require.Contains(t, out, "8.0 KiB 8.0 KiB")

	out = run(t, fs, "table add-columns db cols 2")
	require.Equal(t, "cols now has 4 columns\n", out)
	out = run(t, fs, "table segments db cols")
	require.Contains(t, out, "8.0 KiB 8.0 KiB 0 B 0 B")
}

func TestDumpAndVerify(t *testing.T) {
	fs := vfs.NewMem()
	run(t, fs, "table create db t")
	run(t, fs, "blkdir append db t --segno=0 --blocks=5 --rows-per-block=10 --block-size=100")
	run(t, fs, "blkdir append db t --segno=1 --blocks=3 --rows-per-block=7 --block-size=100")

	out := run(t, fs, "blkdir dump db t")
	require.Contains(t, out, "offset")
	// One line per entry plus the header and its separator.
	require.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2+5+3)

	out = run(t, fs, "blkdir verify db t --concurrency=2")
	require.NotContains(t, out, "cannot be found")
	require.Contains(t, out, "missing")

	run(t, fs, "blkdir delete-segment db t 1")
	out = run(t, fs, "table segments db t")
	require.NotContains(t, out, " 21 ")

	out = run(t, fs, "blkdir bench db t --lookups=200")
	require.Contains(t, out, "p99(ms)")
	require.Contains(t, out, "200")
}

func TestVerifyMissingRows(t *testing.T) {
	fs := vfs.NewMem()
	run(t, fs, "table create db t --no-blkdir")
	run(t, fs, "blkdir append db t --blocks=2 --rows-per-block=10")
	run(t, fs, "blkdir create db t")
	// The blocks of the first append were never logged.
	run(t, fs, "blkdir append db t --blocks=1 --rows-per-block=10")

	out := run(t, fs, "blkdir verify db t")
	require.Contains(t, out, "20 rows cannot be found")
}

func TestMetricsAndOptionsFlags(t *testing.T) {
	fs := vfs.NewMem()
	f, err := fs.Create("blkdir.options")
	require.NoError(t, err)
	_, err = f.Write([]byte("[Options]\n  minipage_capacity=2\n"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	run(t, fs, "table create db t")
	out := run(t, fs, "blkdir append db t --blocks=5 --rows-per-block=10 --block-size=100 --options=blkdir.options --metrics")
	require.Contains(t, out, "minipage_writes_total")
	require.Contains(t, out, "op=insert")
	require.Contains(t, out, "entries_total")

	out = run(t, fs, "blkdir dump db t")
	// Five entries in minipages of two.
	for _, rowID := range []string{" 1 ", " 2 ", " 3 "} {
		require.Contains(t, out, rowID)
	}

	out = run(t, fs, "blkdir lookup db t 0 5 --options=missing.options")
	require.Contains(t, out, "missing.options")

	out = run(t, fs, "blkdir lookup db t 0 45 --verbose")
	require.Contains(t, out, "45: rows [41,50] at [400,500)")
	require.Contains(t, out, "blockdir: get entry")
}

func TestDumpWithoutBlockDirectory(t *testing.T) {
	fs := vfs.NewMem()
	run(t, fs, "table create db t --no-blkdir")
	out := run(t, fs, "blkdir dump db t")
	require.Equal(t, "blockdir: relation 1 has no block directory\n", out)

	run(t, fs, "blkdir create db t")
	run(t, fs, "blkdir append db t --blocks=1 --rows-per-block=10 --block-size=100")
	out = run(t, fs, "blkdir dump db t")
	require.Contains(t, out, "rowid")
	require.NotContains(t, out, "catalog:")
}
