package types

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cespare/xxhash/v2"
)

var ErrTypeMismatch = errors.New("cannot compare fields of different types")

// Field is a single typed value inside a tuple. Implementations are small
// value structs so fields can key maps directly.
type Field interface {
	Type() Type
	Serialize(w io.Writer) error
	Compare(op Op, other Field) (bool, error)
	Hash() uint64
	String() string
}

// Ungrouped is the sentinel group key used by aggregators when no grouping
// is requested; it lets one code path serve grouped and ungrouped queries.
var Ungrouped Field = ungroupedField{}

type ungroupedField struct{}

func (ungroupedField) Type() Type { return IntType }

func (ungroupedField) Serialize(io.Writer) error {
	return errors.New("ungrouped sentinel cannot be serialized")
}

func (ungroupedField) Compare(Op, Field) (bool, error) {
	return false, errors.New("ungrouped sentinel cannot be compared")
}

func (ungroupedField) Hash() uint64 { return 0 }

func (ungroupedField) String() string { return "*" }

type IntField struct {
	V int32
}

func NewIntField(v int32) IntField { return IntField{V: v} }

func (f IntField) Type() Type { return IntType }

func (f IntField) Serialize(w io.Writer) error {
	return binary.Write(w, binary.BigEndian, f.V)
}

func (f IntField) Compare(op Op, other Field) (bool, error) {
	o, ok := other.(IntField)
	if !ok {
		return false, ErrTypeMismatch
	}

	switch op {
	case Equals, Like:
		return f.V == o.V, nil
	case NotEquals:
		return f.V != o.V, nil
	case GreaterThan:
		return f.V > o.V, nil
	case GreaterThanOrEq:
		return f.V >= o.V, nil
	case LessThan:
		return f.V < o.V, nil
	case LessThanOrEq:
		return f.V <= o.V, nil
	default:
		return false, fmt.Errorf("unsupported operator: %v", op)
	}
}

func (f IntField) Hash() uint64 { return uint64(uint32(f.V)) }

func (f IntField) String() string { return fmt.Sprintf("%d", f.V) }

type StringField struct {
	V string
}

func NewStringField(v string) StringField {
	if len(v) > StringMaxSize {
		v = v[:StringMaxSize]
	}
	return StringField{V: v}
}

func (f StringField) Type() Type { return StringType }

func (f StringField) Serialize(w io.Writer) error {
	s := f.V
	if len(s) > StringMaxSize {
		s = s[:StringMaxSize]
	}
	if err := binary.Write(w, binary.BigEndian, int32(len(s))); err != nil {
		return err
	}
	padded := make([]byte, StringMaxSize)
	copy(padded, s)
	_, err := w.Write(padded)
	return err
}

func (f StringField) Compare(op Op, other Field) (bool, error) {
	o, ok := other.(StringField)
	if !ok {
		return false, ErrTypeMismatch
	}

	cmp := strings.Compare(f.V, o.V)
	switch op {
	case Equals:
		return cmp == 0, nil
	case NotEquals:
		return cmp != 0, nil
	case GreaterThan:
		return cmp > 0, nil
	case GreaterThanOrEq:
		return cmp >= 0, nil
	case LessThan:
		return cmp < 0, nil
	case LessThanOrEq:
		return cmp <= 0, nil
	case Like:
		return strings.Contains(f.V, o.V), nil
	default:
		return false, fmt.Errorf("unsupported operator: %v", op)
	}
}

func (f StringField) Hash() uint64 { return xxhash.Sum64String(f.V) }

func (f StringField) String() string { return f.V }

// ParseField reads one field of the given type from r, the inverse of
// Serialize.
func ParseField(t Type, r io.Reader) (Field, error) {
	switch t {
	case IntType:
		var v int32
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return nil, err
		}
		return NewIntField(v), nil
	case StringType:
		var n int32
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		if n < 0 || n > StringMaxSize {
			return nil, fmt.Errorf("corrupt string field: length %d", n)
		}
		buf := make([]byte, StringMaxSize)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		return StringField{V: string(buf[:n])}, nil
	default:
		return nil, fmt.Errorf("unknown type: %d", int(t))
	}
}
