// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blockdir

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/blockdir/internal/base"
	"github.com/cockroachdb/blockdir/internal/minipage"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
)

// Logger defines an interface for writing log messages.
type Logger = base.Logger

// DefaultLogger logs to the Go stdlib logs.
var DefaultLogger = base.DefaultLogger

// DefaultMinipageCapacity is the default number of entries per minipage.
const DefaultMinipageCapacity = minipage.DefaultCapacity

// maxMinipageCapacity bounds a minipage to what fits in a catalog row
// without being split.
const maxMinipageCapacity = 1 << 16

// Options holds the optional parameters for a block directory session.
type Options struct {
	// MinipageCapacity is the number of entries accumulated in memory before
	// a minipage is written to the catalog as a new row.
	//
	// The default value is 161.
	MinipageCapacity int

	// MinEntryRangeBytes, if positive, coalesces an inserted entry into its
	// predecessor when the two start less than MinEntryRangeBytes apart in
	// the segment file. This keeps the directory small for tables written in
	// many tiny blocks at the cost of coarser lookups. The last entry of a
	// minipage then reports an unbounded LastRowNum because rows coalesced
	// into it are not individually recorded.
	//
	// The default value is 0, which disables coalescing.
	MinEntryRangeBytes int64

	// Logger used to write log messages.
	//
	// The default logger uses the Go standard library log package.
	Logger Logger

	// Verbose logs every entry insert, minipage flush and lookup through
	// Logger.
	Verbose bool

	// Metrics, if set, receives the counters of every session when it ends.
	Metrics *PrometheusMetrics
}

// EnsureDefaults ensures that the default values for all options are set if a
// valid value was not already specified. Returns the new options.
func (o *Options) EnsureDefaults() *Options {
	if o == nil {
		o = &Options{}
	}
	if o.MinipageCapacity <= 0 {
		o.MinipageCapacity = DefaultMinipageCapacity
	}
	if o.Logger == nil {
		o.Logger = DefaultLogger
	}
	return o
}

// Clone creates a shallow-copy of the supplied options.
func (o *Options) Clone() *Options {
	if o == nil {
		return &Options{}
	}
	n := *o
	return &n
}

// Validate verifies that the options are mutually consistent.
func (o *Options) Validate() error {
	// Note that we can presume Options.EnsureDefaults has been called, so there
	// is no need to check for zero values.

	var buf strings.Builder
	if o.MinipageCapacity > maxMinipageCapacity {
		fmt.Fprintf(&buf, "MinipageCapacity (%d) must be <= %d\n",
			o.MinipageCapacity, maxMinipageCapacity)
	}
	if o.MinEntryRangeBytes < 0 {
		fmt.Fprintf(&buf, "MinEntryRangeBytes (%d) must be >= 0\n", o.MinEntryRangeBytes)
	}
	if buf.Len() == 0 {
		return nil
	}
	return errors.New(buf.String())
}

func (o *Options) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[Version]\n")
	fmt.Fprintf(&buf, "  blockdir_version=0.1\n")
	fmt.Fprintf(&buf, "\n")
	fmt.Fprintf(&buf, "[Options]\n")
	fmt.Fprintf(&buf, "  min_entry_range_bytes=%d\n", o.MinEntryRangeBytes)
	fmt.Fprintf(&buf, "  minipage_capacity=%d\n", o.MinipageCapacity)
	fmt.Fprintf(&buf, "  verbose=%t\n", o.Verbose)
	return buf.String()
}

// ParseHooks contains callbacks used while parsing options.
type ParseHooks struct {
	SkipUnknown func(name, value string) bool
}

// Parse parses the options from the specified string, in the format produced
// by String. Sizes may be written with a unit suffix ("4KB").
func (o *Options) Parse(s string, hooks *ParseHooks) error {
	return parseOptions(s, func(section, key, value string) error {
		var err error
		switch {
		case section == "Version" && key == "blockdir_version":
		case section == "Options" && key == "min_entry_range_bytes":
			var n uint64
			n, err = humanize.ParseBytes(value)
			o.MinEntryRangeBytes = int64(n)
		case section == "Options" && key == "minipage_capacity":
			o.MinipageCapacity, err = strconv.Atoi(value)
		case section == "Options" && key == "verbose":
			o.Verbose, err = strconv.ParseBool(value)
		default:
			if hooks != nil && hooks.SkipUnknown != nil && hooks.SkipUnknown(section+"."+key, value) {
				return nil
			}
			return errors.Errorf("blockdir: unknown option: %s.%s",
				errors.Safe(section), errors.Safe(key))
		}
		if err != nil {
			return errors.Wrapf(err, "blockdir: parsing %s.%s", errors.Safe(section), errors.Safe(key))
		}
		return nil
	})
}

// parseOptions walks an INI-style options string, calling visit for every
// key=value pair with the section it appears in.
func parseOptions(s string, visit func(section, key, value string) error) error {
	var section string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if len(line) == 0 || line[0] == ';' || line[0] == '#' {
			// Skip blank lines and comments.
			continue
		}
		n := len(line)
		if line[0] == '[' && line[n-1] == ']' {
			section = line[1 : n-1]
			continue
		}

		pos := strings.Index(line, "=")
		if pos < 0 {
			const maxLen = 50
			if len(line) > maxLen {
				line = line[:maxLen-3] + "..."
			}
			return base.CorruptionErrorf("invalid key=value syntax: %q", errors.Safe(line))
		}
		key := strings.TrimSpace(line[:pos])
		value := strings.TrimSpace(line[pos+1:])
		if err := visit(section, key, value); err != nil {
			return err
		}
	}
	return nil
}
