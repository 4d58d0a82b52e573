package execution

import (
	"fmt"

	"shale/tuple"
	"shale/types"
)

// Predicate compares one field of a tuple against a constant.
type Predicate struct {
	field   int
	op      types.Op
	operand types.Field
}

func NewPredicate(field int, op types.Op, operand types.Field) *Predicate {
	return &Predicate{field: field, op: op, operand: operand}
}

func (p *Predicate) Field() int           { return p.field }
func (p *Predicate) Op() types.Op         { return p.op }
func (p *Predicate) Operand() types.Field { return p.operand }

func (p *Predicate) Filter(t *tuple.Tuple) (bool, error) {
	f, err := t.FieldAt(p.field)
	if err != nil {
		return false, err
	}
	return f.Compare(p.op, p.operand)
}

func (p *Predicate) String() string {
	return fmt.Sprintf("f%d %v %v", p.field, p.op, p.operand)
}

// JoinPredicate compares a field of a left tuple against a field of a right
// tuple.
type JoinPredicate struct {
	field1 int
	field2 int
	op     types.Op
}

func NewJoinPredicate(field1 int, op types.Op, field2 int) *JoinPredicate {
	return &JoinPredicate{field1: field1, field2: field2, op: op}
}

func (p *JoinPredicate) Filter(left, right *tuple.Tuple) (bool, error) {
	f1, err := left.FieldAt(p.field1)
	if err != nil {
		return false, err
	}
	f2, err := right.FieldAt(p.field2)
	if err != nil {
		return false, err
	}
	return f1.Compare(p.op, f2)
}
