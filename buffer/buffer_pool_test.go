package buffer

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shale/config"
	"shale/heap"
	"shale/storage"
	"shale/transaction"
	"shale/tuple"
	"shale/types"
	"shale/wal"
)

type tableResolver struct {
	files map[int]storage.DbFile
}

func (r *tableResolver) File(tableID int) (storage.DbFile, error) {
	f, ok := r.files[tableID]
	if !ok {
		return nil, fmt.Errorf("no table with id %d", tableID)
	}
	return f, nil
}

func oneIntDesc() *tuple.TupleDesc {
	return tuple.MustNewTupleDesc([]types.Type{types.IntType}, []string{"v"})
}

func intTuple(desc *tuple.TupleDesc, v int32) *tuple.Tuple {
	t := tuple.NewTuple(desc)
	if err := t.SetField(0, types.NewIntField(v)); err != nil {
		panic(err)
	}
	return t
}

// newPoolWithTable builds a pool of the given capacity over one table with
// numPages preallocated empty pages.
func newPoolWithTable(t *testing.T, capacity, numPages int, timeout time.Duration) (*BufferPool, *heap.HeapFile) {
	t.Helper()

	res := &tableResolver{files: map[int]storage.DbFile{}}
	pool := New(capacity, res, wal.NoopLM, timeout)

	path := filepath.Join(t.TempDir(), uuid.NewString()+".dat")
	hf, err := heap.NewHeapFile(path, oneIntDesc(), pool)
	require.NoError(t, err)
	t.Cleanup(func() { hf.Close() })
	res.files[hf.ID()] = hf

	for i := 0; i < numPages; i++ {
		hp, err := heap.NewHeapPage(tuple.PageID{TableID: hf.ID(), PageNo: i}, heap.EmptyPageData(), oneIntDesc())
		require.NoError(t, err)
		require.NoError(t, hf.WritePage(hp))
	}
	return pool, hf
}

func TestBufferPool_Size_Never_Exceeds_Capacity(t *testing.T) {
	config.SetPageSize(64)
	defer config.ResetPageSize()

	pool, hf := newPoolWithTable(t, 2, 5, 0)

	tid := transaction.NewTxnID()
	for i := 0; i < 5; i++ {
		_, err := pool.GetPage(tid, tuple.PageID{TableID: hf.ID(), PageNo: i}, storage.ReadOnly)
		require.NoError(t, err)
		assert.LessOrEqual(t, pool.Size(), 2)
	}
	require.NoError(t, pool.TransactionComplete(tid, true))
}

func TestBufferPool_Caches_Pages(t *testing.T) {
	config.SetPageSize(64)
	defer config.ResetPageSize()

	pool, hf := newPoolWithTable(t, 4, 1, 0)
	pid := tuple.PageID{TableID: hf.ID(), PageNo: 0}

	tid := transaction.NewTxnID()
	p1, err := pool.GetPage(tid, pid, storage.ReadOnly)
	require.NoError(t, err)
	p2, err := pool.GetPage(tid, pid, storage.ReadOnly)
	require.NoError(t, err)
	assert.Same(t, p1, p2, "second get hits the cache")
	require.NoError(t, pool.TransactionComplete(tid, true))
}

func TestBufferPool_Dirty_Pages_Are_Never_Evicted(t *testing.T) {
	config.SetPageSize(64)
	defer config.ResetPageSize()

	pool, hf := newPoolWithTable(t, 2, 4, 0)
	desc := oneIntDesc()

	tid := transaction.NewTxnID()
	// dirty both frames
	require.NoError(t, pool.InsertTuple(tid, hf.ID(), intTuple(desc, 1)))
	_, err := pool.GetPage(tid, tuple.PageID{TableID: hf.ID(), PageNo: 1}, storage.ReadWrite)
	require.NoError(t, err)

	p1, _ := pool.GetPage(tid, tuple.PageID{TableID: hf.ID(), PageNo: 1}, storage.ReadWrite)
	p1.MarkDirty(true, tid)

	// a third page now needs a frame and every candidate is dirty
	_, err = pool.GetPage(tid, tuple.PageID{TableID: hf.ID(), PageNo: 2}, storage.ReadOnly)
	assert.ErrorIs(t, err, ErrBufferPoolFull)

	require.NoError(t, pool.TransactionComplete(tid, true))
}

func TestBufferPool_Shared_Then_Upgrade_Times_Out(t *testing.T) {
	config.SetPageSize(64)
	defer config.ResetPageSize()

	pool, hf := newPoolWithTable(t, 2, 2, 50*time.Millisecond)
	pid := tuple.PageID{TableID: hf.ID(), PageNo: 0}

	t1, t2 := transaction.NewTxnID(), transaction.NewTxnID()

	_, err := pool.GetPage(t1, pid, storage.ReadOnly)
	require.NoError(t, err)
	_, err = pool.GetPage(t2, pid, storage.ReadOnly)
	require.NoError(t, err)

	// two shared holders: the upgrade can never be granted
	start := time.Now()
	_, err = pool.GetPage(t1, pid, storage.ReadWrite)
	assert.ErrorIs(t, err, transaction.ErrTransactionAborted)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	require.NoError(t, pool.TransactionComplete(t1, false))
	require.NoError(t, pool.TransactionComplete(t2, true))
}

func TestBufferPool_Sole_Holder_Upgrade_Blocks_Others(t *testing.T) {
	config.SetPageSize(64)
	defer config.ResetPageSize()

	pool, hf := newPoolWithTable(t, 2, 1, 30*time.Millisecond)
	pid := tuple.PageID{TableID: hf.ID(), PageNo: 0}

	t1, t2 := transaction.NewTxnID(), transaction.NewTxnID()

	_, err := pool.GetPage(t1, pid, storage.ReadOnly)
	require.NoError(t, err)
	_, err = pool.GetPage(t1, pid, storage.ReadWrite)
	require.NoError(t, err, "sole shared holder upgrades")

	_, err = pool.GetPage(t2, pid, storage.ReadOnly)
	assert.ErrorIs(t, err, transaction.ErrTransactionAborted)

	require.NoError(t, pool.TransactionComplete(t1, true))

	_, err = pool.GetPage(t2, pid, storage.ReadOnly)
	assert.NoError(t, err, "commit released the exclusive lock")
	require.NoError(t, pool.TransactionComplete(t2, true))
}

func TestBufferPool_HoldsLock_Mirrors_Lock_Table(t *testing.T) {
	config.SetPageSize(64)
	defer config.ResetPageSize()

	pool, hf := newPoolWithTable(t, 2, 1, 0)
	pid := tuple.PageID{TableID: hf.ID(), PageNo: 0}

	tid := transaction.NewTxnID()
	assert.False(t, pool.HoldsLock(tid, pid))

	_, err := pool.GetPage(tid, pid, storage.ReadOnly)
	require.NoError(t, err)
	assert.True(t, pool.HoldsLock(tid, pid))

	pool.ReleasePage(tid, pid)
	assert.False(t, pool.HoldsLock(tid, pid))
}

func TestBufferPool_Commit_Flushes_And_Releases(t *testing.T) {
	config.SetPageSize(64)
	defer config.ResetPageSize()

	pool, hf := newPoolWithTable(t, 4, 1, 0)
	desc := oneIntDesc()

	tid := transaction.NewTxnID()
	require.NoError(t, pool.InsertTuple(tid, hf.ID(), intTuple(desc, 42)))
	require.NoError(t, pool.TransactionComplete(tid, true))

	pid := tuple.PageID{TableID: hf.ID(), PageNo: 0}
	assert.False(t, pool.HoldsLock(tid, pid))

	// cached page is clean after commit
	tid2 := transaction.NewTxnID()
	p, err := pool.GetPage(tid2, pid, storage.ReadOnly)
	require.NoError(t, err)
	_, dirty := p.Dirtier()
	assert.False(t, dirty)

	// and the on-disk copy carries the committed tuple
	disk, err := hf.ReadPage(pid)
	require.NoError(t, err)
	tuples := disk.(*heap.HeapPage).Tuples()
	require.Len(t, tuples, 1)
	f, _ := tuples[0].FieldAt(0)
	assert.Equal(t, types.NewIntField(42), f)

	require.NoError(t, pool.TransactionComplete(tid2, true))
}

func TestBufferPool_Abort_Discards_Dirty_Pages(t *testing.T) {
	config.SetPageSize(512)
	defer config.ResetPageSize()

	pool, hf := newPoolWithTable(t, 10, 0, 0)
	desc := oneIntDesc()

	tid := transaction.NewTxnID()
	for i := 0; i < 100; i++ {
		require.NoError(t, pool.InsertTuple(tid, hf.ID(), intTuple(desc, int32(i))))
	}
	require.NoError(t, pool.TransactionComplete(tid, false))

	assert.Equal(t, 0, pool.Size(), "no page dirtied by the aborted txn survives in cache")

	// a fresh transaction sees an empty table
	tid2 := transaction.NewTxnID()
	it := hf.Iterator(tid2)
	require.NoError(t, it.Open())
	has, err := it.HasNext()
	require.NoError(t, err)
	assert.False(t, has, "aborted inserts are invisible")
	it.Close()
	require.NoError(t, pool.TransactionComplete(tid2, true))
}

func TestBufferPool_FlushAll_Cleans_Everything(t *testing.T) {
	config.SetPageSize(64)
	defer config.ResetPageSize()

	pool, hf := newPoolWithTable(t, 4, 0, 0)
	desc := oneIntDesc()

	tid := transaction.NewTxnID()
	require.NoError(t, pool.InsertTuple(tid, hf.ID(), intTuple(desc, 9)))
	require.NoError(t, pool.FlushAllPages())

	pid := tuple.PageID{TableID: hf.ID(), PageNo: 0}
	p, err := pool.GetPage(tid, pid, storage.ReadOnly)
	require.NoError(t, err)
	_, dirty := p.Dirtier()
	assert.False(t, dirty)
	require.NoError(t, pool.TransactionComplete(tid, true))
}

func TestBufferPool_DiscardPage_Drops_Without_Flush(t *testing.T) {
	config.SetPageSize(64)
	defer config.ResetPageSize()

	pool, hf := newPoolWithTable(t, 4, 0, 0)
	desc := oneIntDesc()

	tid := transaction.NewTxnID()
	require.NoError(t, pool.InsertTuple(tid, hf.ID(), intTuple(desc, 5)))
	pid := tuple.PageID{TableID: hf.ID(), PageNo: 0}

	pool.DiscardPage(pid)
	assert.Equal(t, 0, pool.Size())

	// nothing was flushed, so the disk copy still has the empty slot state
	disk, err := hf.ReadPage(pid)
	require.NoError(t, err)
	assert.Empty(t, disk.(*heap.HeapPage).Tuples())

	require.NoError(t, pool.TransactionComplete(tid, false))
}
