// Package locker is the page-granularity lock table behind strict two-phase
// locking. Every mutating call is one critical section; the wait/retry loop
// and its deadlock timeout live with the caller.
package locker

import (
	"sync"

	"shale/transaction"
	"shale/tuple"
)

type LockMode int

const (
	SharedLock LockMode = iota
	ExclusiveLock
)

func (m LockMode) String() string {
	if m == ExclusiveLock {
		return "exclusive"
	}
	return "shared"
}

type lockEntry struct {
	tid  transaction.TxnID
	mode LockMode
}

// LockManager maps each page to the ordered set of holders. Invariant: an
// exclusive holder is always the sole entry; otherwise every entry is
// shared.
type LockManager struct {
	mu    sync.Mutex
	locks map[tuple.PageID][]lockEntry
}

func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[tuple.PageID][]lockEntry)}
}

// TryAcquire grants or denies without waiting. Grant cases: free page,
// reentrant request, shared-under-exclusive, the in-place upgrade of a sole
// shared holder, and a new shared holder joining other shared holders.
// Everything else is denied and the caller retries.
func (lm *LockManager) TryAcquire(pid tuple.PageID, tid transaction.TxnID, mode LockMode) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	entries, ok := lm.locks[pid]
	if !ok || len(entries) == 0 {
		lm.locks[pid] = []lockEntry{{tid: tid, mode: mode}}
		return true
	}

	for i, e := range entries {
		if e.tid != tid {
			continue
		}
		if e.mode == mode {
			return true
		}
		if e.mode == ExclusiveLock {
			// an exclusive holder covers a later shared request
			return true
		}
		if len(entries) == 1 {
			// sole shared holder asking for exclusive: upgrade in place
			entries[i].mode = ExclusiveLock
			return true
		}
		return false
	}

	if entries[0].mode == ExclusiveLock {
		return false
	}
	if mode == SharedLock {
		lm.locks[pid] = append(entries, lockEntry{tid: tid, mode: SharedLock})
		return true
	}
	return false
}

// Release drops tid's entry on pid; the page key goes away with its last
// holder. Releasing a lock that is not held is a programmer error.
func (lm *LockManager) Release(pid tuple.PageID, tid transaction.TxnID) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.release(pid, tid)
}

func (lm *LockManager) release(pid tuple.PageID, tid transaction.TxnID) {
	entries := lm.locks[pid]
	for i, e := range entries {
		if e.tid != tid {
			continue
		}
		entries = append(entries[:i], entries[i+1:]...)
		if len(entries) == 0 {
			delete(lm.locks, pid)
		} else {
			lm.locks[pid] = entries
		}
		return
	}
	panic("released a lock that is not held")
}

// ReleaseAll releases every lock tid holds. Called only at transaction
// completion; that is what makes the protocol strict.
func (lm *LockManager) ReleaseAll(tid transaction.TxnID) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	for pid, entries := range lm.locks {
		for _, e := range entries {
			if e.tid == tid {
				lm.release(pid, tid)
				break
			}
		}
	}
}

func (lm *LockManager) HoldsLock(pid tuple.PageID, tid transaction.TxnID) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	for _, e := range lm.locks[pid] {
		if e.tid == tid {
			return true
		}
	}
	return false
}

// HeldBy lists the pages tid currently holds any lock on.
func (lm *LockManager) HeldBy(tid transaction.TxnID) []tuple.PageID {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var pids []tuple.PageID
	for pid, entries := range lm.locks {
		for _, e := range entries {
			if e.tid == tid {
				pids = append(pids, pid)
				break
			}
		}
	}
	return pids
}
