// Package buffer is the page cache and the single gateway to pages: every
// access is mediated by the lock table, dirty pages are tracked per
// transaction, and eviction never steals a dirty page, which is what lets
// abort work by discarding cache entries.
package buffer

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"shale/locker"
	"shale/storage"
	"shale/transaction"
	"shale/tuple"
	"shale/wal"
)

var ErrBufferPoolFull = errors.New("buffer pool exhausted: every page is dirty")

// DefaultPages is the pool capacity used when callers do not configure one.
const DefaultPages = 50

// DefaultLockTimeout bounds the wall-clock wait of a single GetPage call.
// Expiry is treated as a deadlock and aborts the transaction.
const DefaultLockTimeout = 100 * time.Millisecond

type BufferPool struct {
	capacity int
	resolver storage.FileResolver
	logM     wal.LogManager
	locks    *locker.LockManager
	timeout  time.Duration

	mu    sync.Mutex
	pages map[tuple.PageID]storage.Page
}

var _ storage.PageSource = (*BufferPool)(nil)

func New(capacity int, resolver storage.FileResolver, logM wal.LogManager, timeout time.Duration) *BufferPool {
	if capacity <= 0 {
		capacity = DefaultPages
	}
	if logM == nil {
		logM = wal.NoopLM
	}
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &BufferPool{
		capacity: capacity,
		resolver: resolver,
		logM:     logM,
		locks:    locker.NewLockManager(),
		timeout:  timeout,
		pages:    make(map[tuple.PageID]storage.Page),
	}
}

func (b *BufferPool) Capacity() int { return b.capacity }

// Size reports the number of cached pages; never above Capacity.
func (b *BufferPool) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pages)
}

// GetPage acquires the lock implied by perm, then returns the cached page or
// loads it, evicting to make room. It is the sole blocking call of the core:
// a denied lock is retried until granted or until the deadlock timeout
// expires, at which point the transaction aborts.
func (b *BufferPool) GetPage(tid transaction.TxnID, pid tuple.PageID, perm storage.Permissions) (storage.Page, error) {
	mode := locker.SharedLock
	if perm == storage.ReadWrite {
		mode = locker.ExclusiveLock
	}

	start := time.Now()
	for !b.locks.TryAcquire(pid, tid, mode) {
		if time.Since(start) > b.timeout {
			return nil, fmt.Errorf("%v lock on page %v timed out: %w", mode, pid, transaction.ErrTransactionAborted)
		}
		time.Sleep(time.Millisecond)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if p, ok := b.pages[pid]; ok {
		return p, nil
	}

	f, err := b.resolver.File(pid.TableID)
	if err != nil {
		return nil, err
	}
	for len(b.pages) >= b.capacity {
		if err := b.evictPage(); err != nil {
			return nil, err
		}
	}

	p, err := f.ReadPage(pid)
	if err != nil {
		return nil, err
	}
	b.pages[pid] = p
	return p, nil
}

// ReleasePage drops one (tid, pid) lock outside transaction completion.
// Unsafe to call arbitrarily; it exists for recovery-style callers that know
// the page cannot have been modified.
func (b *BufferPool) ReleasePage(tid transaction.TxnID, pid tuple.PageID) {
	b.locks.Release(pid, tid)
}

func (b *BufferPool) HoldsLock(tid transaction.TxnID, pid tuple.PageID) bool {
	return b.locks.HoldsLock(pid, tid)
}

// InsertTuple routes t into the table's file and takes ownership of the
// pages the file dirtied: they are marked with tid and cached.
func (b *BufferPool) InsertTuple(tid transaction.TxnID, tableID int, t *tuple.Tuple) error {
	f, err := b.resolver.File(tableID)
	if err != nil {
		return err
	}
	dirtied, err := f.InsertTuple(tid, t)
	if err != nil {
		return err
	}
	return b.adoptDirty(tid, dirtied)
}

// DeleteTuple resolves the tuple's page through its RecordID and routes the
// delete to the owning file.
func (b *BufferPool) DeleteTuple(tid transaction.TxnID, t *tuple.Tuple) error {
	rid := t.RecordID()
	if rid == nil {
		return fmt.Errorf("delete: tuple has no record id")
	}
	f, err := b.resolver.File(rid.PID.TableID)
	if err != nil {
		return err
	}
	dirtied, err := f.DeleteTuple(tid, t)
	if err != nil {
		return err
	}
	return b.adoptDirty(tid, dirtied)
}

func (b *BufferPool) adoptDirty(tid transaction.TxnID, dirtied []storage.Page) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range dirtied {
		p.MarkDirty(true, tid)
		if _, cached := b.pages[p.ID()]; !cached {
			for len(b.pages) >= b.capacity {
				if err := b.evictPage(); err != nil {
					return err
				}
			}
		}
		b.pages[p.ID()] = p
	}
	return nil
}

// TransactionComplete ends tid. Commit flushes every page tid dirtied and
// refreshes its before image so the next abort rolls back to the state just
// committed; abort discards tid's dirty pages so the next reader reloads the
// committed copy. Either way every lock of tid is released.
func (b *BufferPool) TransactionComplete(tid transaction.TxnID, commit bool) error {
	var err error
	if commit {
		if err = b.FlushPages(tid); err == nil {
			if _, lerr := b.logM.LogCommit(tid); lerr != nil {
				log.WithError(lerr).WithField("txn", tid).Warn("commit record append failed")
			}
			err = b.logM.Force()
		}
	} else {
		b.discardPagesOf(tid)
		if _, lerr := b.logM.LogAbort(tid); lerr != nil {
			log.WithError(lerr).WithField("txn", tid).Warn("abort record append failed")
		}
	}

	b.locks.ReleaseAll(tid)
	return err
}

func (b *BufferPool) discardPagesOf(tid transaction.TxnID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for pid, p := range b.pages {
		if dirtier, dirty := p.Dirtier(); dirty && dirtier == tid {
			delete(b.pages, pid)
		}
	}
}

// FlushPages writes every page dirtied by tid and resets their before
// images. Used by commit.
func (b *BufferPool) FlushPages(tid transaction.TxnID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for pid, p := range b.pages {
		dirtier, dirty := p.Dirtier()
		if !dirty || dirtier != tid {
			continue
		}
		if err := b.flushPage(pid); err != nil {
			return err
		}
		if err := p.SetBeforeImage(); err != nil {
			return err
		}
	}
	return nil
}

// FlushAllPages writes every dirty page. Testing hook; flushing dirty data
// mid-transaction breaks the no-steal contract for real workloads.
func (b *BufferPool) FlushAllPages() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for pid := range b.pages {
		if err := b.flushPage(pid); err != nil {
			return err
		}
	}
	return nil
}

// DiscardPage drops pid from the cache without flushing.
func (b *BufferPool) DiscardPage(pid tuple.PageID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pages, pid)
}

// flushPage writes one page under the write-ahead rule: the update record
// with before and after images is appended and forced before the page bytes
// reach the heap file. Clean pages are left alone. Caller holds b.mu.
func (b *BufferPool) flushPage(pid tuple.PageID) error {
	p, ok := b.pages[pid]
	if !ok {
		return nil
	}
	dirtier, dirty := p.Dirtier()
	if !dirty {
		return nil
	}

	after, err := p.PageData()
	if err != nil {
		return err
	}
	if _, err := b.logM.LogWrite(dirtier, pid, p.BeforeImage(), after); err != nil {
		return fmt.Errorf("log write for page %v: %w", pid, err)
	}
	if err := b.logM.Force(); err != nil {
		return fmt.Errorf("log force for page %v: %w", pid, err)
	}

	f, err := b.resolver.File(pid.TableID)
	if err != nil {
		return err
	}
	if err := f.WritePage(p); err != nil {
		return err
	}
	p.MarkDirty(false, transaction.InvalidTxnID)

	log.WithField("page", pid).Debug("page flushed")
	return nil
}

// evictPage picks a random victim, retrying while it keeps sampling dirty
// pages. Dirty pages are never evicted; once the sampled dirty set outgrows
// the capacity the pool is declared exhausted. Caller holds b.mu.
func (b *BufferPool) evictPage() error {
	keys := make([]tuple.PageID, 0, len(b.pages))
	for pid := range b.pages {
		keys = append(keys, pid)
	}
	if len(keys) == 0 {
		return nil
	}

	dirtySeen := make(map[tuple.PageID]struct{})
	for {
		pid := keys[rand.Intn(len(keys))]
		if _, dirty := b.pages[pid].Dirtier(); dirty {
			dirtySeen[pid] = struct{}{}
			if len(dirtySeen) > b.capacity || len(dirtySeen) == len(b.pages) {
				return ErrBufferPoolFull
			}
			continue
		}

		// The victim is clean; the flush is a no-op kept for safety should
		// the dirty check above ever disagree with flushPage's own.
		if err := b.flushPage(pid); err != nil {
			log.WithError(err).WithField("page", pid).Warn("flush during eviction failed")
		}
		delete(b.pages, pid)
		log.WithField("page", pid).Debug("page evicted")
		return nil
	}
}
