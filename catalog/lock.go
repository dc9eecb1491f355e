// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package catalog

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// LockMode is a relation-level lock mode. The modes and their conflicts are a
// subset of PostgreSQL's table-level locks.
type LockMode uint8

const (
	// NoLock acquires or releases nothing. Closing a relation with NoLock
	// leaves the lock held until the owning transaction ends.
	NoLock LockMode = iota
	// AccessShareLock is taken by readers.
	AccessShareLock
	// RowExclusiveLock is taken by writers.
	RowExclusiveLock
	// ShareLock blocks writers but admits readers and other share lockers.
	ShareLock
	// AccessExclusiveLock conflicts with every mode, including itself.
	AccessExclusiveLock

	numLockModes
)

var lockModeNames = [numLockModes]string{
	NoLock:              "NoLock",
	AccessShareLock:     "AccessShareLock",
	RowExclusiveLock:    "RowExclusiveLock",
	ShareLock:           "ShareLock",
	AccessExclusiveLock: "AccessExclusiveLock",
}

func (m LockMode) String() string {
	if m >= numLockModes {
		return "LockMode(?)"
	}
	return lockModeNames[m]
}

// SafeFormat implements redact.SafeFormatter.
func (m LockMode) SafeFormat(w redact.SafePrinter, _ rune) {
	w.SafeString(redact.SafeString(m.String()))
}

func bit(m LockMode) uint8 { return 1 << m }

// lockConflicts[m] is the set of modes that m cannot be granted alongside
// when held by another transaction.
var lockConflicts = [numLockModes]uint8{
	AccessShareLock:     bit(AccessExclusiveLock),
	RowExclusiveLock:    bit(ShareLock) | bit(AccessExclusiveLock),
	ShareLock:           bit(RowExclusiveLock) | bit(AccessExclusiveLock),
	AccessExclusiveLock: bit(AccessShareLock) | bit(RowExclusiveLock) | bit(ShareLock) | bit(AccessExclusiveLock),
}

// Conflicts returns true if m and o cannot be held by two transactions at
// once.
func (m LockMode) Conflicts(o LockMode) bool {
	return lockConflicts[m]&bit(o) != 0
}

// holds counts the acquisitions of each mode by one transaction.
type holds [numLockModes]int

type lockState struct {
	holders map[*Txn]*holds
}

// lockManager grants relation locks. A request blocks until no other
// transaction holds a conflicting mode. Requests are granted in no
// particular order.
type lockManager struct {
	mu    sync.Mutex
	cond  sync.Cond
	locks map[RelID]*lockState
}

func (lm *lockManager) init() {
	lm.cond.L = &lm.mu
	lm.locks = make(map[RelID]*lockState)
}

func (lm *lockManager) grantableLocked(t *Txn, rel RelID, mode LockMode) bool {
	ls := lm.locks[rel]
	if ls == nil {
		return true
	}
	for holder, h := range ls.holders {
		if holder == t {
			continue
		}
		for held := AccessShareLock; held < numLockModes; held++ {
			if h[held] > 0 && mode.Conflicts(held) {
				return false
			}
		}
	}
	return true
}

func (lm *lockManager) acquire(t *Txn, rel RelID, mode LockMode) {
	if mode == NoLock {
		return
	}
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for !lm.grantableLocked(t, rel, mode) {
		lm.cond.Wait()
	}
	ls := lm.locks[rel]
	if ls == nil {
		ls = &lockState{holders: make(map[*Txn]*holds)}
		lm.locks[rel] = ls
	}
	h := ls.holders[t]
	if h == nil {
		h = new(holds)
		ls.holders[t] = h
	}
	h[mode]++
}

func (lm *lockManager) release(t *Txn, rel RelID, mode LockMode) error {
	if mode == NoLock {
		return nil
	}
	lm.mu.Lock()
	defer lm.mu.Unlock()
	ls := lm.locks[rel]
	var h *holds
	if ls != nil {
		h = ls.holders[t]
	}
	if h == nil || h[mode] == 0 {
		return errors.AssertionFailedf("releasing %s on relation %s that is not held", mode, rel)
	}
	h[mode]--
	if *h == (holds{}) {
		delete(ls.holders, t)
		if len(ls.holders) == 0 {
			delete(lm.locks, rel)
		}
	}
	lm.cond.Broadcast()
	return nil
}

func (lm *lockManager) releaseAll(t *Txn) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for rel, ls := range lm.locks {
		delete(ls.holders, t)
		if len(ls.holders) == 0 {
			delete(lm.locks, rel)
		}
	}
	lm.cond.Broadcast()
}

// held returns the number of acquisitions of mode on rel by t.
func (lm *lockManager) held(t *Txn, rel RelID, mode LockMode) int {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if ls := lm.locks[rel]; ls != nil {
		if h := ls.holders[t]; h != nil {
			return h[mode]
		}
	}
	return 0
}
