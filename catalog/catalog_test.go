package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shale/buffer"
	"shale/heap"
	"shale/transaction"
	"shale/tuple"
	"shale/types"
	"shale/wal"
)

func newHeapFile(t *testing.T, pool *buffer.BufferPool, cols ...types.Type) *heap.HeapFile {
	t.Helper()

	names := make([]string, len(cols))
	for i := range names {
		names[i] = "c" + string(rune('0'+i))
	}
	desc := tuple.MustNewTupleDesc(cols, names)

	path := filepath.Join(t.TempDir(), uuid.NewString()+".dat")
	hf, err := heap.NewHeapFile(path, desc, pool)
	require.NoError(t, err)
	t.Cleanup(func() { hf.Close() })
	return hf
}

func TestCatalog_Add_And_Lookup(t *testing.T) {
	cat := New()
	pool := buffer.New(10, cat, wal.NoopLM, 0)

	hf := newHeapFile(t, pool, types.IntType, types.StringType)
	cat.AddTable(hf, "users", "c0")

	id, err := cat.TableID("users")
	require.NoError(t, err)
	assert.Equal(t, hf.ID(), id)

	f, err := cat.File(id)
	require.NoError(t, err)
	assert.Same(t, hf, f.(*heap.HeapFile))

	name, err := cat.TableName(id)
	require.NoError(t, err)
	assert.Equal(t, "users", name)

	pk, err := cat.PrimaryKey(id)
	require.NoError(t, err)
	assert.Equal(t, "c0", pk)

	desc, err := cat.TupleDesc(id)
	require.NoError(t, err)
	assert.True(t, desc.Equals(hf.TupleDesc()))

	_, err = cat.TableID("ghosts")
	assert.Error(t, err)
	_, err = cat.File(123456)
	assert.Error(t, err)
}

func TestCatalog_Readd_Replaces_Both_Mappings(t *testing.T) {
	cat := New()
	pool := buffer.New(10, cat, wal.NoopLM, 0)

	first := newHeapFile(t, pool, types.IntType)
	second := newHeapFile(t, pool, types.IntType)

	cat.AddTable(first, "t", "")
	cat.AddTable(second, "t", "")

	id, err := cat.TableID("t")
	require.NoError(t, err)
	assert.Equal(t, second.ID(), id)

	_, err = cat.File(first.ID())
	assert.Error(t, err, "stale inverse mapping is dropped")
	assert.Len(t, cat.TableIDs(), 1)
}

func TestLoadSchema_Parses_And_Registers(t *testing.T) {
	cat := New()
	pool := buffer.New(10, cat, wal.NoopLM, 0)

	dir := t.TempDir()
	schema := filepath.Join(dir, "schema.txt")
	content := "# comment\n" +
		"users (id int pk, name string)\n" +
		"\n" +
		"orders (id int pk, user_id int, total int)\n"
	require.NoError(t, os.WriteFile(schema, []byte(content), 0o644))

	loaded, err := cat.LoadSchema(schema, filepath.Join(dir, "data"), pool)
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "orders"}, loaded)

	id, err := cat.TableID("orders")
	require.NoError(t, err)

	desc, err := cat.TupleDesc(id)
	require.NoError(t, err)
	assert.Equal(t, 3, desc.NumFields())

	pk, err := cat.PrimaryKey(id)
	require.NoError(t, err)
	assert.Equal(t, "id", pk)

	// a registered table accepts inserts straight away
	tid := transaction.NewTxnID()
	row := tuple.NewTuple(desc)
	require.NoError(t, row.SetField(0, types.NewIntField(1)))
	require.NoError(t, row.SetField(1, types.NewIntField(2)))
	require.NoError(t, row.SetField(2, types.NewIntField(3)))
	require.NoError(t, pool.InsertTuple(tid, id, row))
	require.NoError(t, pool.TransactionComplete(tid, true))
}

func TestLoadSchema_Rejects_Garbage(t *testing.T) {
	cat := New()
	pool := buffer.New(10, cat, wal.NoopLM, 0)
	dir := t.TempDir()

	for _, bad := range []string{
		"users id int",
		"users (id float)",
		"users (id int pk extra)",
		"(id int)",
	} {
		schema := filepath.Join(dir, uuid.NewString()+".txt")
		require.NoError(t, os.WriteFile(schema, []byte(bad+"\n"), 0o644))
		_, err := cat.LoadSchema(schema, filepath.Join(dir, "data"), pool)
		assert.Error(t, err, "line %q must be rejected", bad)
	}
}
