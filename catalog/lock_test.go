// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLockConflicts(t *testing.T) {
	for _, tc := range []struct {
		a, b     LockMode
		conflict bool
	}{
		{AccessShareLock, AccessShareLock, false},
		{AccessShareLock, RowExclusiveLock, false},
		{AccessShareLock, ShareLock, false},
		{AccessShareLock, AccessExclusiveLock, true},
		{RowExclusiveLock, RowExclusiveLock, false},
		{RowExclusiveLock, ShareLock, true},
		{RowExclusiveLock, AccessExclusiveLock, true},
		{ShareLock, ShareLock, false},
		{ShareLock, AccessExclusiveLock, true},
		{AccessExclusiveLock, AccessExclusiveLock, true},
	} {
		require.Equal(t, tc.conflict, tc.a.Conflicts(tc.b), "%s/%s", tc.a, tc.b)
		require.Equal(t, tc.conflict, tc.b.Conflicts(tc.a), "%s/%s", tc.b, tc.a)
	}
}

func TestLockCloseNoLockDefersRelease(t *testing.T) {
	d := openTestDB(t)
	e := newTable(t, d, 1, false)

	txn := d.Begin()
	rel, err := txn.OpenRelation(e.BlkdirRelID, RowExclusiveLock)
	require.NoError(t, err)
	require.NoError(t, rel.Close(NoLock))
	require.Equal(t, 1, txn.HeldLocks(e.BlkdirRelID, RowExclusiveLock))
	require.NoError(t, txn.Commit())
	require.Equal(t, 0, txn.HeldLocks(e.BlkdirRelID, RowExclusiveLock))
}

func TestLockReleaseNotHeld(t *testing.T) {
	d := openTestDB(t)
	e := newTable(t, d, 1, false)
	txn := d.Begin()
	defer txn.Commit()
	rel, err := txn.OpenRelation(e.BlkdirRelID, AccessShareLock)
	require.NoError(t, err)
	require.Error(t, rel.Close(RowExclusiveLock))
}

func TestLockBlocksConflictingMode(t *testing.T) {
	d := openTestDB(t)
	e := newTable(t, d, 1, false)

	writer := d.Begin()
	rel, err := writer.OpenRelation(e.BlkdirRelID, RowExclusiveLock)
	require.NoError(t, err)

	// A reader is admitted alongside the writer.
	reader := d.Begin()
	r, err := reader.OpenRelation(e.BlkdirRelID, AccessShareLock)
	require.NoError(t, err)
	require.NoError(t, r.Close(AccessShareLock))
	require.NoError(t, reader.Commit())

	// A share locker waits for the writer.
	acquired := make(chan struct{})
	go func() {
		txn := d.Begin()
		defer txn.Commit()
		rel, err := txn.OpenRelation(e.BlkdirRelID, ShareLock)
		if err == nil {
			_ = rel.Close(ShareLock)
		}
		close(acquired)
	}()
	select {
	case <-acquired:
		t.Fatal("share lock granted while a row exclusive lock is held")
	case <-time.After(50 * time.Millisecond):
	}
	require.NoError(t, rel.Close(NoLock))
	require.NoError(t, writer.Commit())
	<-acquired
}
