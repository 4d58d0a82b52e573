package tuple

import (
	"fmt"
	"strings"

	"shale/common"
	"shale/types"
)

// TupleDesc is the schema of a tuple: an ordered list of types with optional
// column names. Descs are immutable once built; Combine returns a new one.
type TupleDesc struct {
	fieldTypes []types.Type
	fieldNames []string
}

func NewTupleDesc(fieldTypes []types.Type, fieldNames []string) (*TupleDesc, error) {
	if len(fieldTypes) == 0 {
		return nil, fmt.Errorf("tuple desc needs at least one field")
	}
	if fieldNames != nil && len(fieldNames) != len(fieldTypes) {
		return nil, fmt.Errorf("tuple desc has %d types but %d names", len(fieldTypes), len(fieldNames))
	}
	if fieldNames == nil {
		fieldNames = make([]string, len(fieldTypes))
	}

	td := &TupleDesc{
		fieldTypes: append([]types.Type(nil), fieldTypes...),
		fieldNames: append([]string(nil), fieldNames...),
	}
	return td, nil
}

// MustNewTupleDesc is NewTupleDesc for statically known schemas.
func MustNewTupleDesc(fieldTypes []types.Type, fieldNames []string) *TupleDesc {
	td, err := NewTupleDesc(fieldTypes, fieldNames)
	common.PanicIfErr(err)
	return td
}

func (td *TupleDesc) NumFields() int { return len(td.fieldTypes) }

func (td *TupleDesc) TypeAt(i int) (types.Type, error) {
	if i < 0 || i >= len(td.fieldTypes) {
		return 0, fmt.Errorf("no field at index %d", i)
	}
	return td.fieldTypes[i], nil
}

func (td *TupleDesc) NameAt(i int) (string, error) {
	if i < 0 || i >= len(td.fieldNames) {
		return "", fmt.Errorf("no field at index %d", i)
	}
	return td.fieldNames[i], nil
}

// IndexOf finds a column by name. A column with a qualified name
// ("alias.col") is also found by its bare name ("col").
func (td *TupleDesc) IndexOf(name string) (int, error) {
	for i, n := range td.fieldNames {
		if n == name {
			return i, nil
		}
		if dot := strings.LastIndex(n, "."); dot >= 0 && n[dot+1:] == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no field named %q", name)
}

// Size is the number of bytes a tuple of this schema occupies on disk.
func (td *TupleDesc) Size() int {
	size := 0
	for _, t := range td.fieldTypes {
		size += t.Length()
	}
	return size
}

// Equals is the strict form: identical types and names at every index.
func (td *TupleDesc) Equals(other *TupleDesc) bool {
	if other == nil || len(td.fieldTypes) != len(other.fieldTypes) {
		return false
	}
	for i := range td.fieldTypes {
		if td.fieldTypes[i] != other.fieldTypes[i] || td.fieldNames[i] != other.fieldNames[i] {
			return false
		}
	}
	return true
}

// TypesMatch ignores names; it is the compatibility check used when routing
// tuples into a table.
func (td *TupleDesc) TypesMatch(other *TupleDesc) bool {
	if other == nil || len(td.fieldTypes) != len(other.fieldTypes) {
		return false
	}
	for i := range td.fieldTypes {
		if td.fieldTypes[i] != other.fieldTypes[i] {
			return false
		}
	}
	return true
}

// Combine concatenates two schemas, left fields first.
func Combine(a, b *TupleDesc) *TupleDesc {
	ts := make([]types.Type, 0, len(a.fieldTypes)+len(b.fieldTypes))
	ns := make([]string, 0, len(a.fieldNames)+len(b.fieldNames))
	ts = append(append(ts, a.fieldTypes...), b.fieldTypes...)
	ns = append(append(ns, a.fieldNames...), b.fieldNames...)
	return &TupleDesc{fieldTypes: ts, fieldNames: ns}
}

// Rename returns a copy of td with every column name mapped through f. Used
// by scans to prefix columns with the table alias.
func (td *TupleDesc) Rename(f func(string) string) *TupleDesc {
	names := make([]string, len(td.fieldNames))
	for i, n := range td.fieldNames {
		names[i] = f(n)
	}
	return &TupleDesc{
		fieldTypes: append([]types.Type(nil), td.fieldTypes...),
		fieldNames: names,
	}
}

func (td *TupleDesc) String() string {
	parts := make([]string, len(td.fieldTypes))
	for i := range td.fieldTypes {
		parts[i] = fmt.Sprintf("%s(%s)", td.fieldNames[i], td.fieldTypes[i])
	}
	return strings.Join(parts, ", ")
}
