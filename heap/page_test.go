package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shale/config"
	"shale/transaction"
	"shale/tuple"
	"shale/types"
)

func intDesc(n int) *tuple.TupleDesc {
	ts := make([]types.Type, n)
	ns := make([]string, n)
	for i := range ts {
		ts[i] = types.IntType
		ns[i] = "f" + string(rune('0'+i))
	}
	return tuple.MustNewTupleDesc(ts, ns)
}

func intTuple(desc *tuple.TupleDesc, vals ...int32) *tuple.Tuple {
	t := tuple.NewTuple(desc)
	for i, v := range vals {
		if err := t.SetField(i, types.NewIntField(v)); err != nil {
			panic(err)
		}
	}
	return t
}

func TestHeapPage_Slot_Count_Follows_Page_Size(t *testing.T) {
	config.SetPageSize(64)
	defer config.ResetPageSize()

	desc := intDesc(1)
	// floor(64*8 / (4*8+1))
	assert.Equal(t, 15, SlotCount(desc))

	config.SetPageSize(config.DefaultPageSize)
	assert.Equal(t, (config.DefaultPageSize*8)/33, SlotCount(desc))
}

func TestHeapPage_Insert_Assigns_RecordIDs(t *testing.T) {
	config.SetPageSize(64)
	defer config.ResetPageSize()

	desc := intDesc(1)
	pid := tuple.PageID{TableID: 7, PageNo: 3}
	hp, err := NewHeapPage(pid, EmptyPageData(), desc)
	require.NoError(t, err)

	require.Equal(t, hp.NumSlots(), hp.EmptySlots())

	t0 := intTuple(desc, 42)
	require.NoError(t, hp.InsertTuple(t0))
	require.NotNil(t, t0.RecordID())
	assert.Equal(t, pid, t0.RecordID().PID)
	assert.Equal(t, 0, t0.RecordID().SlotNo)
	assert.Equal(t, hp.NumSlots()-1, hp.EmptySlots())

	t1 := intTuple(desc, 43)
	require.NoError(t, hp.InsertTuple(t1))
	assert.Equal(t, 1, t1.RecordID().SlotNo)
}

func TestHeapPage_Fills_Up_Then_Rejects(t *testing.T) {
	config.SetPageSize(64)
	defer config.ResetPageSize()

	desc := intDesc(1)
	hp, err := NewHeapPage(tuple.PageID{TableID: 1}, EmptyPageData(), desc)
	require.NoError(t, err)

	for i := 0; i < hp.NumSlots(); i++ {
		require.NoError(t, hp.InsertTuple(intTuple(desc, int32(i))))
	}
	assert.Equal(t, 0, hp.EmptySlots())

	err = hp.InsertTuple(intTuple(desc, 99))
	assert.ErrorIs(t, err, ErrPageFull)
}

func TestHeapPage_Delete_Clears_Slot(t *testing.T) {
	config.SetPageSize(64)
	defer config.ResetPageSize()

	desc := intDesc(1)
	hp, err := NewHeapPage(tuple.PageID{TableID: 1}, EmptyPageData(), desc)
	require.NoError(t, err)

	t0 := intTuple(desc, 1)
	require.NoError(t, hp.InsertTuple(t0))
	require.NoError(t, hp.DeleteTuple(t0))

	assert.Nil(t, t0.RecordID())
	assert.Equal(t, hp.NumSlots(), hp.EmptySlots())
	assert.Empty(t, hp.Tuples())

	err = hp.DeleteTuple(t0)
	assert.Error(t, err, "tuple without a record id cannot be deleted twice")
}

func TestHeapPage_Serialize_Round_Trip(t *testing.T) {
	config.SetPageSize(64)
	defer config.ResetPageSize()

	desc := intDesc(1)
	pid := tuple.PageID{TableID: 5, PageNo: 0}
	hp, err := NewHeapPage(pid, EmptyPageData(), desc)
	require.NoError(t, err)

	for _, v := range []int32{10, 20, 30} {
		require.NoError(t, hp.InsertTuple(intTuple(desc, v)))
	}

	data, err := hp.PageData()
	require.NoError(t, err)
	require.Len(t, data, config.PageSize())

	hp2, err := NewHeapPage(pid, data, desc)
	require.NoError(t, err)

	got := hp2.Tuples()
	require.Len(t, got, 3)
	for i, want := range []int32{10, 20, 30} {
		f, err := got[i].FieldAt(0)
		require.NoError(t, err)
		assert.Equal(t, types.NewIntField(want), f)
		assert.Equal(t, tuple.RecordID{PID: pid, SlotNo: i}, *got[i].RecordID())
	}

	data2, err := hp2.PageData()
	require.NoError(t, err)
	assert.Equal(t, data, data2)
}

func TestHeapPage_Dirty_And_Before_Image(t *testing.T) {
	config.SetPageSize(64)
	defer config.ResetPageSize()

	desc := intDesc(1)
	hp, err := NewHeapPage(tuple.PageID{TableID: 1}, EmptyPageData(), desc)
	require.NoError(t, err)

	_, dirty := hp.Dirtier()
	assert.False(t, dirty)

	tid := transaction.NewTxnID()
	hp.MarkDirty(true, tid)
	dirtier, dirty := hp.Dirtier()
	assert.True(t, dirty)
	assert.Equal(t, tid, dirtier)

	hp.MarkDirty(false, tid)
	_, dirty = hp.Dirtier()
	assert.False(t, dirty)

	// the before image stays at the load-time snapshot until refreshed
	require.NoError(t, hp.InsertTuple(intTuple(desc, 7)))
	assert.Equal(t, EmptyPageData(), hp.BeforeImage())

	require.NoError(t, hp.SetBeforeImage())
	cur, err := hp.PageData()
	require.NoError(t, err)
	assert.Equal(t, cur, hp.BeforeImage())
}
