// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blockdir

import (
	"strings"
	"testing"

	"github.com/cockroachdb/blockdir/internal/base"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptionsString(t *testing.T) {
	const expected = `[Version]
  blockdir_version=0.1

[Options]
  min_entry_range_bytes=0
  minipage_capacity=161
  verbose=false
`

	opts := (*Options)(nil).EnsureDefaults()
	require.Equal(t, expected, opts.String())
}

func TestOptionsCheck(t *testing.T) {
	opts := (&Options{MinipageCapacity: 7, MinEntryRangeBytes: 4096, Verbose: true}).EnsureDefaults()
	s := opts.String()

	var parsed Options
	require.NoError(t, parsed.Parse(s, nil))
	parsed.EnsureDefaults()
	require.Equal(t, s, parsed.String())
	require.Equal(t, 7, parsed.MinipageCapacity)
	require.Equal(t, int64(4096), parsed.MinEntryRangeBytes)
	require.True(t, parsed.Verbose)
}

func TestOptionsParse(t *testing.T) {
	testCases := []struct {
		in      string
		want    int64
		wantErr string
	}{
		{in: "[Options]\n  min_entry_range_bytes=4KB\n", want: 4000},
		{in: "[Options]\n  min_entry_range_bytes=4KiB\n", want: 4096},
		{in: "; comment\n[Options]\n\n  min_entry_range_bytes = 512\n", want: 512},
		{in: "[Options]\n  min_entry_range_bytes=lots\n", wantErr: "parsing Options.min_entry_range_bytes"},
		{in: "[Options]\n  minipage_capacity=x\n", wantErr: "parsing Options.minipage_capacity"},
		{in: "[Options]\n  bogus=1\n", wantErr: "unknown option: Options.bogus"},
		{in: "[Options]\n  no equals sign\n", wantErr: "invalid key=value syntax"},
	}
	for _, tc := range testCases {
		t.Run("", func(t *testing.T) {
			var opts Options
			err := opts.Parse(tc.in, nil)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, opts.MinEntryRangeBytes)
		})
	}
}

func TestOptionsParseSkipUnknown(t *testing.T) {
	var skipped []string
	hooks := &ParseHooks{
		SkipUnknown: func(name, value string) bool {
			skipped = append(skipped, name+"="+value)
			return strings.HasPrefix(name, "Future.")
		},
	}
	var opts Options
	require.NoError(t, opts.Parse("[Future]\n  knob=3\n[Options]\n  verbose=true\n", hooks))
	require.True(t, opts.Verbose)
	require.Equal(t, []string{"Future.knob=3"}, skipped)

	err := opts.Parse("[Options]\n  knob=3\n", hooks)
	require.Error(t, err)
}

func TestOptionsValidate(t *testing.T) {
	opts := (&Options{
		MinipageCapacity:   maxMinipageCapacity + 1,
		MinEntryRangeBytes: -5,
	}).EnsureDefaults()
	err := opts.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "MinipageCapacity (65537) must be <= 65536")
	require.Contains(t, err.Error(), "MinEntryRangeBytes (-5) must be >= 0")

	opts = (&Options{Logger: &base.InMemLogger{}}).EnsureDefaults()
	require.NoError(t, opts.Validate())
	require.Equal(t, DefaultMinipageCapacity, opts.MinipageCapacity)
}

func TestOptionsClone(t *testing.T) {
	var nilOpts *Options
	require.NotNil(t, nilOpts.Clone())

	a := &Options{MinipageCapacity: 3}
	b := a.Clone()
	b.MinipageCapacity = 9
	require.Equal(t, 3, a.MinipageCapacity)
}
