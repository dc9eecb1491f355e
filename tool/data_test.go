// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/spf13/cobra"
)

// runTool runs one command line against fs and returns everything written to
// stdout and stderr.
func runTool(fs vfs.FS, args []string) string {
	var buf bytes.Buffer
	stdout = &buf
	stderr = &buf
	osExit = func(int) {}

	defer func() {
		stdout = os.Stdout
		stderr = os.Stderr
		osExit = os.Exit
	}()

	c := &cobra.Command{}
	c.AddCommand(New(FS(fs)).Commands...)
	c.SetArgs(args)
	c.SetOutput(&buf)
	if err := c.Execute(); err != nil {
		return err.Error()
	}
	return buf.String()
}

func runTests(t *testing.T, path string) {
	datadriven.Walk(t, path, func(t *testing.T, path string) {
		fs := vfs.NewMem()
		datadriven.RunTest(t, path, func(t *testing.T, d *datadriven.TestData) string {
			args := []string{d.Cmd}
			for _, arg := range d.CmdArgs {
				args = append(args, arg.String())
			}
			args = append(args, strings.Fields(d.Input)...)
			return runTool(fs, args)
		})
	})
}

func TestTool(t *testing.T) {
	runTests(t, "testdata")
}
