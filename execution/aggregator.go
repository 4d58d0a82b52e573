package execution

import (
	"fmt"

	"shale/tuple"
	"shale/types"
)

// NoGrouping marks an aggregate without a group-by column.
const NoGrouping = -1

type AggOp int

const (
	AggMin AggOp = iota
	AggMax
	AggSum
	AggAvg
	AggCount
)

func (op AggOp) String() string {
	switch op {
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	case AggSum:
		return "sum"
	case AggAvg:
		return "avg"
	case AggCount:
		return "count"
	default:
		return fmt.Sprintf("agg(%d)", int(op))
	}
}

// Aggregator folds a stream of tuples into one value per group and replays
// the groups as tuples.
type Aggregator interface {
	Merge(t *tuple.Tuple) error
	Iterator() OpIterator
}

// groupKey resolves the grouping field, with the ungrouped sentinel standing
// in when no grouping was requested, so one code path serves both shapes.
func groupKey(t *tuple.Tuple, gbField int, gbType types.Type) (types.Field, error) {
	if gbField == NoGrouping {
		return types.Ungrouped, nil
	}
	f, err := t.FieldAt(gbField)
	if err != nil {
		return nil, err
	}
	if f.Type() != gbType {
		return nil, fmt.Errorf("group field is %v, expected %v", f.Type(), gbType)
	}
	return f, nil
}

// resultDesc is the aggregate output schema: (groupVal, aggregateVal) when
// grouped, (aggregateVal) otherwise.
func resultDesc(gbField int, gbType types.Type) *tuple.TupleDesc {
	if gbField == NoGrouping {
		return tuple.MustNewTupleDesc([]types.Type{types.IntType}, []string{"aggregateVal"})
	}
	return tuple.MustNewTupleDesc([]types.Type{gbType, types.IntType}, []string{"groupVal", "aggregateVal"})
}

func resultTuples(gbField int, gbType types.Type, order []types.Field, value func(types.Field) int32) (*tuple.TupleDesc, []*tuple.Tuple) {
	desc := resultDesc(gbField, gbType)
	tuples := make([]*tuple.Tuple, 0, len(order))
	for _, key := range order {
		t := tuple.NewTuple(desc)
		if gbField == NoGrouping {
			_ = t.SetField(0, types.NewIntField(value(key)))
		} else {
			_ = t.SetField(0, key)
			_ = t.SetField(1, types.NewIntField(value(key)))
		}
		tuples = append(tuples, t)
	}
	return desc, tuples
}

// IntAggregator computes MIN, MAX, SUM, AVG or COUNT over an integer column.
// One handler state per group, discriminated by the operator tag; AVG keeps
// a running sum and count and reports the truncated quotient.
type IntAggregator struct {
	gbField int
	gbType  types.Type
	aField  int
	op      AggOp

	order  []types.Field
	values map[types.Field]int32
	sums   map[types.Field]int32
	counts map[types.Field]int32
}

var _ Aggregator = (*IntAggregator)(nil)

func NewIntAggregator(gbField int, gbType types.Type, aField int, op AggOp) *IntAggregator {
	return &IntAggregator{
		gbField: gbField,
		gbType:  gbType,
		aField:  aField,
		op:      op,
		values:  make(map[types.Field]int32),
		sums:    make(map[types.Field]int32),
		counts:  make(map[types.Field]int32),
	}
}

func (a *IntAggregator) Merge(t *tuple.Tuple) error {
	key, err := groupKey(t, a.gbField, a.gbType)
	if err != nil {
		return err
	}

	af, err := t.FieldAt(a.aField)
	if err != nil {
		return err
	}
	intF, ok := af.(types.IntField)
	if !ok {
		return fmt.Errorf("integer aggregator fed a %v field", af.Type())
	}
	v := intF.V

	if _, seen := a.counts[key]; !seen {
		a.order = append(a.order, key)
	}
	a.sums[key] += v
	a.counts[key]++

	switch a.op {
	case AggMin:
		if cur, seen := a.values[key]; !seen || v < cur {
			a.values[key] = v
		}
	case AggMax:
		if cur, seen := a.values[key]; !seen || v > cur {
			a.values[key] = v
		}
	case AggSum:
		a.values[key] = a.sums[key]
	case AggCount:
		a.values[key] = a.counts[key]
	case AggAvg:
		a.values[key] = a.sums[key] / a.counts[key]
	default:
		return fmt.Errorf("unsupported integer aggregate: %v", a.op)
	}
	return nil
}

func (a *IntAggregator) Iterator() OpIterator {
	desc, tuples := resultTuples(a.gbField, a.gbType, a.order, func(k types.Field) int32 { return a.values[k] })
	return NewTupleIterator(desc, tuples)
}

// StringAggregator supports COUNT only; any other operator over a string
// column is rejected at construction.
type StringAggregator struct {
	gbField int
	gbType  types.Type
	aField  int

	order  []types.Field
	counts map[types.Field]int32
}

var _ Aggregator = (*StringAggregator)(nil)

func NewStringAggregator(gbField int, gbType types.Type, aField int, op AggOp) (*StringAggregator, error) {
	if op != AggCount {
		return nil, fmt.Errorf("string columns support count only, got %v", op)
	}
	return &StringAggregator{
		gbField: gbField,
		gbType:  gbType,
		aField:  aField,
		counts:  make(map[types.Field]int32),
	}, nil
}

func (a *StringAggregator) Merge(t *tuple.Tuple) error {
	key, err := groupKey(t, a.gbField, a.gbType)
	if err != nil {
		return err
	}

	af, err := t.FieldAt(a.aField)
	if err != nil {
		return err
	}
	if _, ok := af.(types.StringField); !ok {
		return fmt.Errorf("string aggregator fed a %v field", af.Type())
	}

	if _, seen := a.counts[key]; !seen {
		a.order = append(a.order, key)
	}
	a.counts[key]++
	return nil
}

func (a *StringAggregator) Iterator() OpIterator {
	desc, tuples := resultTuples(a.gbField, a.gbType, a.order, func(k types.Field) int32 { return a.counts[k] })
	return NewTupleIterator(desc, tuples)
}
