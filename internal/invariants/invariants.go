// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package invariants holds assertions that are only evaluated in builds with
// the "invariants" or "race" build tags.
package invariants

import (
	"runtime"

	"github.com/cockroachdb/errors"
)

// UseFinalizers is true if we want to use finalizers for assertions around
// object lifetime and cleanup.
const UseFinalizers = Enabled

// SetFinalizer is a wrapper around runtime.SetFinalizer that is a no-op
// unless the invariants build tag is set.
func SetFinalizer(obj, finalizer interface{}) {
	if UseFinalizers {
		runtime.SetFinalizer(obj, finalizer)
	}
}

// CheckBounds panics if the index is not in the range [0, n). Unlike the
// other helpers in this package the check is always performed: an
// out-of-range column group is a caller bug that must not silently index a
// neighbouring minipage.
func CheckBounds[T Integer](i T, n T) {
	if i < 0 || i >= n {
		panic(errors.AssertionFailedf("index %d out of bounds [0, %d)", errors.Safe(i), errors.Safe(n)))
	}
}

// Integer is a constraint that permits any integer type.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}
