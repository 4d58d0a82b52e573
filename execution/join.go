package execution

import "shale/tuple"

// Join is the nested-loops join: the left child is the outer loop, the right
// child is rewound once per outer tuple, and matches are concatenated left
// fields first.
type Join struct {
	opBase
	pred    *JoinPredicate
	left    OpIterator
	right   OpIterator
	curLeft *tuple.Tuple
	desc    *tuple.TupleDesc
}

var _ Operator = (*Join)(nil)

func NewJoin(pred *JoinPredicate, left, right OpIterator) *Join {
	j := &Join{
		pred:  pred,
		left:  left,
		right: right,
		desc:  tuple.Combine(left.TupleDesc(), right.TupleDesc()),
	}
	j.fetch = j.fetchNext
	return j
}

func (j *Join) Open() error {
	if err := j.left.Open(); err != nil {
		return err
	}
	if err := j.right.Open(); err != nil {
		return err
	}
	j.curLeft = nil
	j.markOpen()
	return nil
}

func (j *Join) fetchNext() (*tuple.Tuple, error) {
	for {
		if j.curLeft == nil {
			has, err := j.left.HasNext()
			if err != nil || !has {
				return nil, err
			}
			lt, err := j.left.Next()
			if err != nil {
				return nil, err
			}
			j.curLeft = lt
		}

		for {
			has, err := j.right.HasNext()
			if err != nil {
				return nil, err
			}
			if !has {
				break
			}
			rt, err := j.right.Next()
			if err != nil {
				return nil, err
			}
			match, err := j.pred.Filter(j.curLeft, rt)
			if err != nil {
				return nil, err
			}
			if match {
				return tuple.Merge(j.curLeft, rt), nil
			}
		}

		j.curLeft = nil
		if err := j.right.Rewind(); err != nil {
			return nil, err
		}
	}
}

func (j *Join) Rewind() error {
	if !j.opened {
		return ErrClosed
	}
	j.next = nil
	j.curLeft = nil
	if err := j.left.Rewind(); err != nil {
		return err
	}
	return j.right.Rewind()
}

func (j *Join) Close() error {
	j.markClosed()
	j.curLeft = nil
	if err := j.left.Close(); err != nil {
		return err
	}
	return j.right.Close()
}

func (j *Join) TupleDesc() *tuple.TupleDesc { return j.desc }

func (j *Join) Children() []OpIterator { return []OpIterator{j.left, j.right} }

func (j *Join) SetChildren(children []OpIterator) {
	j.left = children[0]
	j.right = children[1]
	j.desc = tuple.Combine(j.left.TupleDesc(), j.right.TupleDesc())
}
