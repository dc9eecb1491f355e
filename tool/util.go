// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/blockdir/catalog"
	"github.com/cockroachdb/errors"
	"github.com/olekukonko/tablewriter"
	dto "github.com/prometheus/client_model/go"
)

var stdout = io.Writer(os.Stdout)
var stderr = io.Writer(os.Stderr)
var osExit = os.Exit

func newTableWriter(w io.Writer, header ...string) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(header)
	tw.SetAutoFormatHeaders(false)
	tw.SetAlignment(tablewriter.ALIGN_RIGHT)
	tw.SetBorder(false)
	return tw
}

func parseInt32(s, what string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s %q", errors.Safe(what), s)
	}
	return int32(v), nil
}

func parseInt64(s, what string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s %q", errors.Safe(what), s)
	}
	return v, nil
}

func fail(err error) {
	fmt.Fprintf(stderr, "%s\n", err)
	osExit(1)
}

// commit commits txn, failing the command if it cannot.
func commit(txn *catalog.Txn) {
	if err := txn.Commit(); err != nil {
		fail(err)
	}
}

// printMetrics prints every non-zero block directory counter gathered from
// the command's registry.
func (t *T) printMetrics() {
	if t.registry == nil {
		return
	}
	mfs, err := t.registry.Gather()
	if err != nil {
		fail(err)
		return
	}
	tw := newTableWriter(stdout, "metric", "label", "value")
	for _, mf := range mfs {
		rows := counterRows(mf)
		sort.Slice(rows, func(i, j int) bool { return rows[i][1] < rows[j][1] })
		for _, r := range rows {
			tw.Append(r)
		}
	}
	tw.Render()
}

func counterRows(mf *dto.MetricFamily) [][]string {
	var rows [][]string
	for _, m := range mf.GetMetric() {
		v := m.GetCounter().GetValue()
		if v == 0 {
			continue
		}
		var labels []string
		for _, l := range m.GetLabel() {
			labels = append(labels, l.GetName()+"="+l.GetValue())
		}
		rows = append(rows, []string{
			strings.TrimPrefix(mf.GetName(), "blockdir_"),
			strings.Join(labels, ","),
			strconv.FormatFloat(v, 'f', -1, 64),
		})
	}
	return rows
}
