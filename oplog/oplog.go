package oplog

import "sort"

func sortLV(lvs []LV) []LV {
	sort.Slice(lvs, func(i, j int) bool { return lvs[i] < lvs[j] })
	return lvs
}

// advanceFrontier implements the frontier advance rule: given the current
// frontier, a newly pushed LV v, and v's parents, produce
// sort((frontier \ parents) ∪ {v}).
func advanceFrontier(frontier []LV, v LV, parents []LV) []LV {
	inParents := make(map[LV]bool, len(parents))
	for _, p := range parents {
		inParents[p] = true
	}

	next := make([]LV, 0, len(frontier)+1)
	for _, lv := range frontier {
		if !inParents[lv] {
			next = append(next, lv)
		}
	}
	next = append(next, v)
	return sortLV(next)
}

// idToLV translates an Id to its LV in this oplog by linear scan. Acceptable
// because it only runs during merge, not on the hot local-edit path.
func (l *OpLog[T]) idToLV(id Id) (LV, error) {
	for i, op := range l.Ops {
		if idEq(op.ID, id) {
			return LV(i), nil
		}
	}
	return LV(-1), ErrIdUnknown
}

// AppendLocal assigns the next seq for agent, records the op with
// parents = current frontier, pushes it, and sets the frontier to the
// single new LV. Returns the new LV.
func (l *OpLog[T]) AppendLocal(agent string, kind Kind, pos int, content T) LV {
	seq := 0
	if v, ok := l.Version[agent]; ok {
		seq = v + 1
	}

	lv := LV(len(l.Ops))
	parents := append([]LV{}, l.Frontier...)

	l.Ops = append(l.Ops, Op[T]{
		InnerOp: InnerOp[T]{Kind: kind, Pos: pos, Content: content},
		ID:      Id{Agent: agent, Seq: seq},
		Parents: parents,
	})

	l.Frontier = []LV{lv}
	l.Version[agent] = seq
	return lv
}

// AppendRemote translates parentIDs to LVs, validates the op against this
// oplog's invariants, and pushes it. appended is false (with a nil error)
// when the op is a duplicate already present in this oplog: duplicates are
// absorbed silently, not treated as an error. No partial state is left
// behind on error: validation completes before the push.
func (l *OpLog[T]) AppendRemote(op Op[T], parentIDs []Id) (lv LV, appended bool, err error) {
	agent, seq := op.ID.Unpack()

	lastKnown := -1
	if v, ok := l.Version[agent]; ok {
		lastKnown = v
	}

	if lastKnown >= seq {
		return LV(-1), false, nil
	}

	parents := make([]LV, 0, len(parentIDs))
	for _, pid := range parentIDs {
		plv, perr := l.idToLV(pid)
		if perr != nil {
			return LV(-1), false, ErrIdUnknown
		}
		parents = append(parents, plv)
	}
	sortLV(parents)

	if lastKnown+1 != seq {
		return LV(-1), false, ErrSeqGap
	}

	newLV := LV(len(l.Ops))
	l.Ops = append(l.Ops, Op[T]{InnerOp: op.InnerOp, ID: op.ID, Parents: parents})
	l.Frontier = advanceFrontier(l.Frontier, newLV, parents)
	l.Version[agent] = seq

	return newLV, true, nil
}

// MergeFrom absorbs every op in other that this oplog doesn't already have.
// Iterating other.Ops in order guarantees causal readiness: an op's parents
// always precede it in its owning log.
func (l *OpLog[T]) MergeFrom(other *OpLog[T]) error {
	for _, op := range other.Ops {
		parentIDs := make([]Id, len(op.Parents))
		for i, p := range op.Parents {
			parentIDs[i] = other.Ops[p].ID
		}
		if _, _, err := l.AppendRemote(op, parentIDs); err != nil {
			return err
		}
	}
	return nil
}
