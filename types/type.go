package types

import "fmt"

// Type enumerates the field types a schema may declare.
type Type int

const (
	IntType Type = iota
	StringType
)

// StringMaxSize is the fixed capacity of a string field on disk. Strings
// longer than this are truncated at serialization time.
const StringMaxSize = 128

// Length returns the number of bytes a field of this type occupies on disk.
func (t Type) Length() int {
	switch t {
	case IntType:
		return 4
	case StringType:
		// 4 byte length prefix followed by the padded payload
		return 4 + StringMaxSize
	default:
		panic(fmt.Sprintf("unknown type: %d", int(t)))
	}
}

func (t Type) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// ParseType maps the catalog file's type names onto Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "int":
		return IntType, nil
	case "string":
		return StringType, nil
	default:
		return 0, fmt.Errorf("unknown type name: %q", s)
	}
}

// Op is a comparison operator between a field and a constant, or between two
// fields of a join pair.
type Op int

const (
	Equals Op = iota
	GreaterThan
	LessThan
	LessThanOrEq
	GreaterThanOrEq
	Like
	NotEquals
)

func (op Op) String() string {
	switch op {
	case Equals:
		return "="
	case GreaterThan:
		return ">"
	case LessThan:
		return "<"
	case LessThanOrEq:
		return "<="
	case GreaterThanOrEq:
		return ">="
	case Like:
		return "like"
	case NotEquals:
		return "<>"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}
