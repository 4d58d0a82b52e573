package tuple

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shale/types"
)

func twoColDesc() *TupleDesc {
	return MustNewTupleDesc(
		[]types.Type{types.IntType, types.StringType},
		[]string{"id", "name"},
	)
}

func TestTupleDesc_Size_Is_Sum_Of_Widths(t *testing.T) {
	td := twoColDesc()
	assert.Equal(t, types.IntType.Length()+types.StringType.Length(), td.Size())
	assert.Equal(t, 2, td.NumFields())
}

func TestTupleDesc_Lookups(t *testing.T) {
	td := twoColDesc()

	i, err := td.IndexOf("name")
	require.NoError(t, err)
	assert.Equal(t, 1, i)

	_, err = td.IndexOf("missing")
	assert.Error(t, err)

	typ, err := td.TypeAt(0)
	require.NoError(t, err)
	assert.Equal(t, types.IntType, typ)

	_, err = td.TypeAt(5)
	assert.Error(t, err)
}

func TestTupleDesc_Bare_Lookup_Matches_Qualified_Name(t *testing.T) {
	td := twoColDesc().Rename(func(n string) string { return "t." + n })

	i, err := td.IndexOf("t.id")
	require.NoError(t, err)
	assert.Equal(t, 0, i)

	i, err = td.IndexOf("id")
	require.NoError(t, err)
	assert.Equal(t, 0, i)
}

func TestTupleDesc_Equality_Forms(t *testing.T) {
	a := twoColDesc()
	b := twoColDesc()
	assert.True(t, a.Equals(b))
	assert.True(t, a.TypesMatch(b))

	renamed := b.Rename(func(n string) string { return n + "_x" })
	assert.False(t, a.Equals(renamed), "strict equality sees names")
	assert.True(t, a.TypesMatch(renamed), "loose equality ignores them")

	other := MustNewTupleDesc([]types.Type{types.IntType}, []string{"id"})
	assert.False(t, a.Equals(other))
	assert.False(t, a.TypesMatch(other))
}

func TestTupleDesc_Combine(t *testing.T) {
	a := twoColDesc()
	b := MustNewTupleDesc([]types.Type{types.IntType}, []string{"age"})

	c := Combine(a, b)
	assert.Equal(t, 3, c.NumFields())
	assert.Equal(t, a.Size()+b.Size(), c.Size())

	n, err := c.NameAt(2)
	require.NoError(t, err)
	assert.Equal(t, "age", n)
}

func TestNewTupleDesc_Validation(t *testing.T) {
	_, err := NewTupleDesc(nil, nil)
	assert.Error(t, err, "empty schemas are rejected")

	_, err = NewTupleDesc([]types.Type{types.IntType}, []string{"a", "b"})
	assert.Error(t, err, "name count must match type count")
}

func TestTuple_SetField_Type_Checks(t *testing.T) {
	tup := NewTuple(twoColDesc())

	require.NoError(t, tup.SetField(0, types.NewIntField(1)))
	assert.Error(t, tup.SetField(0, types.NewStringField("x")))
	assert.Error(t, tup.SetField(9, types.NewIntField(1)))
}

func TestTuple_Serialize_Parse_Round_Trip(t *testing.T) {
	td := twoColDesc()
	tup := NewTuple(td)
	require.NoError(t, tup.SetField(0, types.NewIntField(77)))
	require.NoError(t, tup.SetField(1, types.NewStringField("walrus")))

	var buf bytes.Buffer
	require.NoError(t, tup.Serialize(&buf))
	assert.Equal(t, td.Size(), buf.Len())

	got, err := ParseTuple(td, &buf)
	require.NoError(t, err)

	f0, _ := got.FieldAt(0)
	f1, _ := got.FieldAt(1)
	assert.Equal(t, types.NewIntField(77), f0)
	assert.Equal(t, types.NewStringField("walrus"), f1)
}

func TestTuple_Serialize_Rejects_Unset_Fields(t *testing.T) {
	tup := NewTuple(twoColDesc())
	require.NoError(t, tup.SetField(0, types.NewIntField(1)))

	var buf bytes.Buffer
	assert.Error(t, tup.Serialize(&buf))
}

func TestMerge_Concatenates(t *testing.T) {
	a := NewTuple(MustNewTupleDesc([]types.Type{types.IntType}, []string{"a"}))
	require.NoError(t, a.SetField(0, types.NewIntField(1)))
	b := NewTuple(MustNewTupleDesc([]types.Type{types.IntType}, []string{"b"}))
	require.NoError(t, b.SetField(0, types.NewIntField(2)))

	m := Merge(a, b)
	assert.Equal(t, 2, m.Desc().NumFields())
	f1, _ := m.FieldAt(1)
	assert.Equal(t, types.NewIntField(2), f1)
}
