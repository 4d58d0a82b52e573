package tuple

import (
	"fmt"
	"io"
	"strings"

	"shale/types"
)

// Tuple is a fixed-arity vector of fields matching a TupleDesc, plus the
// RecordID of its storage slot once it lives on a page. Tuples are value
// objects owned by whoever reads them.
type Tuple struct {
	desc   *TupleDesc
	fields []types.Field
	rid    *RecordID
}

func NewTuple(desc *TupleDesc) *Tuple {
	return &Tuple{
		desc:   desc,
		fields: make([]types.Field, desc.NumFields()),
	}
}

func (t *Tuple) Desc() *TupleDesc { return t.desc }

func (t *Tuple) FieldAt(i int) (types.Field, error) {
	if i < 0 || i >= len(t.fields) {
		return nil, fmt.Errorf("no field at index %d", i)
	}
	return t.fields[i], nil
}

func (t *Tuple) SetField(i int, f types.Field) error {
	if i < 0 || i >= len(t.fields) {
		return fmt.Errorf("no field at index %d", i)
	}
	want, _ := t.desc.TypeAt(i)
	if f.Type() != want {
		return fmt.Errorf("field %d is %v, got %v", i, want, f.Type())
	}
	t.fields[i] = f
	return nil
}

func (t *Tuple) RecordID() *RecordID { return t.rid }

func (t *Tuple) SetRecordID(rid *RecordID) { t.rid = rid }

// Serialize writes the tuple body: field bytes back to back, no header.
func (t *Tuple) Serialize(w io.Writer) error {
	for i, f := range t.fields {
		if f == nil {
			return fmt.Errorf("field %d is unset", i)
		}
		if err := f.Serialize(w); err != nil {
			return fmt.Errorf("serialize field %d: %w", i, err)
		}
	}
	return nil
}

// ParseTuple reads one tuple body of the given schema from r.
func ParseTuple(desc *TupleDesc, r io.Reader) (*Tuple, error) {
	t := NewTuple(desc)
	for i := 0; i < desc.NumFields(); i++ {
		ft, _ := desc.TypeAt(i)
		f, err := types.ParseField(ft, r)
		if err != nil {
			return nil, fmt.Errorf("parse field %d: %w", i, err)
		}
		t.fields[i] = f
	}
	return t, nil
}

// Merge concatenates two tuples into one over the combined schema.
func Merge(a, b *Tuple) *Tuple {
	merged := NewTuple(Combine(a.desc, b.desc))
	copy(merged.fields, a.fields)
	copy(merged.fields[len(a.fields):], b.fields)
	return merged
}

func (t *Tuple) String() string {
	parts := make([]string, len(t.fields))
	for i, f := range t.fields {
		if f == nil {
			parts[i] = "?"
		} else {
			parts[i] = f.String()
		}
	}
	return strings.Join(parts, "\t")
}
