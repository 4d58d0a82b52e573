package execution

import (
	"fmt"

	"shale/tuple"
	"shale/types"
)

// Aggregate computes one aggregate over a single column, optionally grouped
// by a single column. Open drains the child into the aggregator; afterwards
// the operator yields one tuple per group.
type Aggregate struct {
	opBase
	child  OpIterator
	aField int
	gField int
	op     AggOp

	results OpIterator
}

var _ Operator = (*Aggregate)(nil)

func NewAggregate(child OpIterator, aField, gField int, op AggOp) (*Aggregate, error) {
	if _, err := child.TupleDesc().TypeAt(aField); err != nil {
		return nil, err
	}
	if gField != NoGrouping {
		if _, err := child.TupleDesc().TypeAt(gField); err != nil {
			return nil, err
		}
	}

	a := &Aggregate{child: child, aField: aField, gField: gField, op: op}
	a.fetch = a.fetchNext
	return a, nil
}

func (a *Aggregate) AggregateField() int { return a.aField }
func (a *Aggregate) GroupField() int     { return a.gField }
func (a *Aggregate) Op() AggOp           { return a.op }

func (a *Aggregate) newAggregator() (Aggregator, error) {
	childDesc := a.child.TupleDesc()

	var gbType types.Type
	if a.gField != NoGrouping {
		gbType, _ = childDesc.TypeAt(a.gField)
	}

	aType, _ := childDesc.TypeAt(a.aField)
	switch aType {
	case types.IntType:
		return NewIntAggregator(a.gField, gbType, a.aField, a.op), nil
	case types.StringType:
		return NewStringAggregator(a.gField, gbType, a.aField, a.op)
	default:
		return nil, fmt.Errorf("no aggregator for type %v", aType)
	}
}

func (a *Aggregate) Open() error {
	agg, err := a.newAggregator()
	if err != nil {
		return err
	}

	if err := a.child.Open(); err != nil {
		return err
	}
	for {
		has, err := a.child.HasNext()
		if err != nil {
			return err
		}
		if !has {
			break
		}
		t, err := a.child.Next()
		if err != nil {
			return err
		}
		if err := agg.Merge(t); err != nil {
			return err
		}
	}

	a.results = agg.Iterator()
	if err := a.results.Open(); err != nil {
		return err
	}
	a.markOpen()
	return nil
}

func (a *Aggregate) fetchNext() (*tuple.Tuple, error) {
	has, err := a.results.HasNext()
	if err != nil || !has {
		return nil, err
	}
	return a.results.Next()
}

func (a *Aggregate) Rewind() error {
	if !a.opened {
		return ErrClosed
	}
	a.next = nil
	return a.results.Rewind()
}

func (a *Aggregate) Close() error {
	a.markClosed()
	if a.results != nil {
		_ = a.results.Close()
		a.results = nil
	}
	return a.child.Close()
}

// TupleDesc is (groupVal, aggregateVal) when grouped, (aggregateVal) alone
// otherwise.
func (a *Aggregate) TupleDesc() *tuple.TupleDesc {
	var gbType types.Type
	if a.gField != NoGrouping {
		gbType, _ = a.child.TupleDesc().TypeAt(a.gField)
	}
	return resultDesc(a.gField, gbType)
}

func (a *Aggregate) Children() []OpIterator { return []OpIterator{a.child} }

func (a *Aggregate) SetChildren(children []OpIterator) { a.child = children[0] }
