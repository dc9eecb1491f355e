// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package blockdir implements the block directory of append-only tables.
//
// Rows of an append-only table are stored in segment files as a sequence of
// variable sized blocks. The block directory maps row numbers to the file
// offset of the block holding them, so that a single row can be fetched
// without scanning the segment file. It is stored in a catalog relation with
// one row per minipage: a sorted run of entries, each recording the first
// row, the file offset and the row count of a block.
//
// A Directory is a session over the directory of one table, opened in one of
// three modes:
//
//   - InitForInsert, then InsertEntry for every block written to a segment
//     file and EndForInsert to write the pending minipages.
//   - InitForAddColumn, then AddColumnInsertEntry for the blocks of columns
//     added to a column-oriented table and EndForAddColumn.
//   - InitForSearch, then GetEntry to find the block holding a row, and
//     EndForSearch.
//
// Entries describing data past a segment file's end of file were written by
// a writer that did not commit. They are discarded whenever a minipage is
// read, both by lookups and by a writer continuing the segment file.
package blockdir
