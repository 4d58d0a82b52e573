package execution

import (
	"shale/tuple"
	"shale/types"
)

// Project narrows the child's tuples down to the named field indexes, in the
// given order.
type Project struct {
	opBase
	fields []int
	child  OpIterator
	desc   *tuple.TupleDesc
}

var _ Operator = (*Project)(nil)

func NewProject(fields []int, child OpIterator) (*Project, error) {
	p := &Project{fields: fields, child: child}
	if err := p.buildDesc(); err != nil {
		return nil, err
	}
	p.fetch = p.fetchNext
	return p, nil
}

func (p *Project) buildDesc() error {
	childDesc := p.child.TupleDesc()
	ts := make([]types.Type, len(p.fields))
	ns := make([]string, len(p.fields))
	for i, idx := range p.fields {
		t, err := childDesc.TypeAt(idx)
		if err != nil {
			return err
		}
		n, err := childDesc.NameAt(idx)
		if err != nil {
			return err
		}
		ts[i], ns[i] = t, n
	}
	desc, err := tuple.NewTupleDesc(ts, ns)
	if err != nil {
		return err
	}
	p.desc = desc
	return nil
}

func (p *Project) Open() error {
	if err := p.child.Open(); err != nil {
		return err
	}
	p.markOpen()
	return nil
}

func (p *Project) fetchNext() (*tuple.Tuple, error) {
	has, err := p.child.HasNext()
	if err != nil || !has {
		return nil, err
	}
	t, err := p.child.Next()
	if err != nil {
		return nil, err
	}

	out := tuple.NewTuple(p.desc)
	for i, idx := range p.fields {
		f, err := t.FieldAt(idx)
		if err != nil {
			return nil, err
		}
		if err := out.SetField(i, f); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *Project) Rewind() error {
	if !p.opened {
		return ErrClosed
	}
	p.next = nil
	return p.child.Rewind()
}

func (p *Project) Close() error {
	p.markClosed()
	return p.child.Close()
}

func (p *Project) TupleDesc() *tuple.TupleDesc { return p.desc }

func (p *Project) Children() []OpIterator { return []OpIterator{p.child} }

func (p *Project) SetChildren(children []OpIterator) {
	p.child = children[0]
	// field indexes refer to the new child's schema; rebuild the output desc
	_ = p.buildDesc()
}
