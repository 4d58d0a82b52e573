package execution

import "shale/tuple"

// TupleIterator replays a materialized list of tuples. Aggregators hand
// their results out through one.
type TupleIterator struct {
	desc   *tuple.TupleDesc
	tuples []*tuple.Tuple
	idx    int
	opened bool
}

var _ OpIterator = (*TupleIterator)(nil)

func NewTupleIterator(desc *tuple.TupleDesc, tuples []*tuple.Tuple) *TupleIterator {
	return &TupleIterator{desc: desc, tuples: tuples}
}

func (it *TupleIterator) Open() error {
	it.opened = true
	it.idx = 0
	return nil
}

func (it *TupleIterator) HasNext() (bool, error) {
	if !it.opened {
		return false, ErrClosed
	}
	return it.idx < len(it.tuples), nil
}

func (it *TupleIterator) Next() (*tuple.Tuple, error) {
	has, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, ErrNoTuple
	}
	t := it.tuples[it.idx]
	it.idx++
	return t, nil
}

func (it *TupleIterator) Rewind() error {
	if !it.opened {
		return ErrClosed
	}
	it.idx = 0
	return nil
}

func (it *TupleIterator) Close() error {
	it.opened = false
	return nil
}

func (it *TupleIterator) TupleDesc() *tuple.TupleDesc { return it.desc }
