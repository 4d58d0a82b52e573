package execution

import "shale/tuple"

// Filter passes through the child's tuples that satisfy its predicate.
type Filter struct {
	opBase
	pred  *Predicate
	child OpIterator
}

var _ Operator = (*Filter)(nil)

func NewFilter(pred *Predicate, child OpIterator) *Filter {
	f := &Filter{pred: pred, child: child}
	f.fetch = f.fetchNext
	return f
}

func (f *Filter) Predicate() *Predicate { return f.pred }

func (f *Filter) Open() error {
	if err := f.child.Open(); err != nil {
		return err
	}
	f.markOpen()
	return nil
}

func (f *Filter) fetchNext() (*tuple.Tuple, error) {
	for {
		has, err := f.child.HasNext()
		if err != nil || !has {
			return nil, err
		}
		t, err := f.child.Next()
		if err != nil {
			return nil, err
		}
		ok, err := f.pred.Filter(t)
		if err != nil {
			return nil, err
		}
		if ok {
			return t, nil
		}
	}
}

func (f *Filter) Rewind() error {
	if !f.opened {
		return ErrClosed
	}
	f.next = nil
	return f.child.Rewind()
}

func (f *Filter) Close() error {
	f.markClosed()
	return f.child.Close()
}

func (f *Filter) TupleDesc() *tuple.TupleDesc { return f.child.TupleDesc() }

func (f *Filter) Children() []OpIterator { return []OpIterator{f.child} }

func (f *Filter) SetChildren(children []OpIterator) { f.child = children[0] }
