package execution

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"shale/buffer"
	"shale/heap"
	"shale/storage"
	"shale/transaction"
	"shale/tuple"
	"shale/types"
	"shale/wal"
)

func newTestTxn() transaction.TxnID { return transaction.NewTxnID() }

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

type testEnv struct {
	ctx *Context
	res *tableResolver
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	res := &tableResolver{files: map[int]storage.DbFile{}}
	pool := buffer.New(50, res, wal.NoopLM, 0)
	return &testEnv{ctx: &Context{Pool: pool, Files: res}, res: res}
}

// addTable creates a heap file holding the given rows and returns its id.
// Rows are int columns only; width is taken from the first row.
func (e *testEnv) addTable(t *testing.T, rows [][]int32) (int, *tuple.TupleDesc) {
	t.Helper()
	require.NotEmpty(t, rows)

	width := len(rows[0])
	ts := make([]types.Type, width)
	ns := make([]string, width)
	for i := range ts {
		ts[i] = types.IntType
		ns[i] = fmt.Sprintf("c%d", i)
	}
	desc := tuple.MustNewTupleDesc(ts, ns)

	path := filepath.Join(t.TempDir(), uuid.NewString()+".dat")
	hf, err := heap.NewHeapFile(path, desc, e.ctx.Pool)
	require.NoError(t, err)
	t.Cleanup(func() { hf.Close() })
	e.res.files[hf.ID()] = hf

	tx := newTestTxn()
	for _, row := range rows {
		tup := tuple.NewTuple(desc)
		for i, v := range row {
			require.NoError(t, tup.SetField(i, types.NewIntField(v)))
		}
		require.NoError(t, e.ctx.Pool.InsertTuple(tx, hf.ID(), tup))
	}
	require.NoError(t, e.ctx.Pool.TransactionComplete(tx, true))

	return hf.ID(), desc
}

// drain pulls an opened iterator dry.
func drain(t *testing.T, it OpIterator) []*tuple.Tuple {
	t.Helper()
	var out []*tuple.Tuple
	for {
		has, err := it.HasNext()
		require.NoError(t, err)
		if !has {
			return out
		}
		tup, err := it.Next()
		require.NoError(t, err)
		out = append(out, tup)
	}
}

func intAt(t *testing.T, tup *tuple.Tuple, i int) int32 {
	t.Helper()
	f, err := tup.FieldAt(i)
	require.NoError(t, err)
	return f.(types.IntField).V
}
