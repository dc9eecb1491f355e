// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package tool implements the blkdir introspection and workload commands.
package tool

import (
	"io"

	"github.com/cockroachdb/blockdir"
	"github.com/cockroachdb/blockdir/catalog"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// T is the container for all of the introspection tools.
type T struct {
	Commands []*cobra.Command
	table    *tableT
	blkdir   *blkdirT

	opts    blockdir.Options
	catOpts catalog.Options

	// Flags shared by every command.
	optionsFile string
	verbose     bool
	metrics     bool
	registry    *prometheus.Registry
}

// Option is a functional option for configuring the tool.
type Option func(*T)

// FS sets the filesystem implementation used to open catalogs and options
// files.
func FS(fs vfs.FS) Option {
	return func(t *T) {
		t.catOpts.FS = fs
	}
}

// New creates a new introspection tool.
func New(opts ...Option) *T {
	t := &T{}
	for _, opt := range opts {
		opt(t)
	}
	t.catOpts.EnsureDefaults()

	t.table = newTable(t)
	t.blkdir = newBlkdir(t)
	t.Commands = []*cobra.Command{
		t.table.Root,
		t.blkdir.Root,
	}
	for _, cmd := range t.Commands {
		cmd.PersistentFlags().StringVar(
			&t.optionsFile, "options", "", "block directory options file")
		cmd.PersistentFlags().BoolVarP(
			&t.verbose, "verbose", "v", false, "log block directory and catalog operations")
		cmd.PersistentFlags().BoolVar(
			&t.metrics, "metrics", false, "print the block directory metrics when done")
		cmd.PersistentPreRunE = func(*cobra.Command, []string) error { return t.setup() }
		cmd.PersistentPostRun = func(*cobra.Command, []string) { t.printMetrics() }
	}
	return t
}

// setup applies the shared flags before a command runs.
func (t *T) setup() error {
	logger := logrus.New()
	logger.SetOutput(stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)
	if t.verbose {
		logger.SetLevel(logrus.InfoLevel)
	}

	t.opts = blockdir.Options{}
	if t.optionsFile != "" {
		data, err := readFile(t.catOpts.FS, t.optionsFile)
		if err != nil {
			return err
		}
		if err := t.opts.Parse(string(data), nil); err != nil {
			return errors.Wrapf(err, "%s", t.optionsFile)
		}
	}
	t.opts.Logger = logger
	t.opts.Verbose = t.opts.Verbose || t.verbose
	t.catOpts.Logger = logger

	t.registry = nil
	if t.metrics {
		t.registry = prometheus.NewRegistry()
		m, err := blockdir.NewPrometheusMetrics(t.registry)
		if err != nil {
			return err
		}
		t.opts.Metrics = m
	}
	t.opts.EnsureDefaults()
	return t.opts.Validate()
}

func readFile(fs vfs.FS, path string) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// openCatalog opens the catalog in dir and looks up the append-only table
// named table.
func (t *T) openCatalog(dir, table string) (*catalog.DB, catalog.AppendOnlyEntry, error) {
	db, err := catalog.Open(dir, &t.catOpts)
	if err != nil {
		return nil, catalog.AppendOnlyEntry{}, err
	}
	e, err := db.LookupAppendOnlyTable(nil, table)
	if err != nil {
		return nil, catalog.AppendOnlyEntry{}, errors.CombineErrors(err, db.Close())
	}
	return db, e, nil
}
