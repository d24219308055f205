package replay

import (
	"errors"
	"sort"

	"github.com/loomtext/egwalker/internal/util"
	"github.com/loomtext/egwalker/oplog"
	"github.com/loomtext/egwalker/version"
)

// target resolves which item an op's retreat/advance acts on: itself for
// an INSERT, whatever DelTarget recorded for a DELETE.
func (d *Doc[T]) target(log *oplog.OpLog[T], opLV oplog.LV) (*Item, error) {
	lv := util.Choose(log.Ops[opLV].Kind == oplog.Insert, opLV, d.DelTarget[opLV])
	item, ok := d.ItemByLV[lv]
	if !ok {
		return nil, ErrItemNotFound
	}
	return item, nil
}

// retreat moves op_lv's target item backward one step: INS -> NYI, or
// D-n -> D-(n-1) -> ... -> INS. Precondition: state > NotYetInserted.
func (d *Doc[T]) retreat(log *oplog.OpLog[T], opLV oplog.LV) error {
	item, err := d.target(log, opLV)
	if err != nil {
		return err
	}
	if item.State <= NotYetInserted {
		return ErrStateUnderflow
	}
	item.State--
	return nil
}

// advance moves op_lv's target item forward one step, the inverse of
// retreat.
func (d *Doc[T]) advance(log *oplog.OpLog[T], opLV oplog.LV) error {
	item, err := d.target(log, opLV)
	if err != nil {
		return err
	}
	item.State++
	return nil
}

// currentPositionWalk scans items left to right, counting curPos (items
// with State == Inserted) and endPos (items that are not Deleted,
// independent of State) until curPos reaches targetPos. Returns the index
// of the first not-yet-counted item and the endPos at that point.
func currentPositionWalk(items []*Item, targetPos int) (idx, endPos int, err error) {
	curPos := 0
	i := 0
	for i < len(items) {
		if curPos == targetPos {
			return i, endPos, nil
		}
		it := items[i]
		if it.State == Inserted {
			curPos++
		}
		if !it.Deleted {
			endPos++
		}
		i++
	}
	if curPos == targetPos {
		return i, endPos, nil
	}
	return 0, 0, ErrWalkedPastEnd
}

// indexOfLV finds the index of the item with the given LV, or len(items)
// if lv is Sentinel (meaning "end of document"), or -1 if lv is Sentinel
// used as a left marker. Callers pass the appropriate "not found" default
// via notFound since Sentinel means something different on each side.
func indexOfLV(items []*Item, lv oplog.LV, notFound int) int {
	if lv == Sentinel {
		return notFound
	}
	for i, it := range items {
		if it.LV == lv {
			return i
		}
	}
	return notFound
}

// integrate implements the Yjs-style concurrent-insert ordering rule:
// starting from the preferred position (idx, endPos), scan forward
// among not-yet-inserted items to decide whether a concurrent item
// belongs strictly to newItem's left, committing the final
// (idx, endPos) once the ambiguity resolves.
func (d *Doc[T]) integrate(log *oplog.OpLog[T], newItem *Item, newAgent string, idx, endPos int) (int, int) {
	right := indexOfLV(d.Items, newItem.OriginRight, len(d.Items))
	left := idx - 1

	scanIdx := idx
	scanEndPos := endPos
	scanning := false

	for scanIdx < right {
		other := d.Items[scanIdx]
		if other.State != NotYetInserted {
			break
		}

		oleft := indexOfLV(d.Items, other.OriginLeft, -1)
		oright := indexOfLV(d.Items, other.OriginRight, len(d.Items))

		stop := false
		switch {
		case oleft < left:
			// New item goes strictly before other.
			stop = true
		case oleft == left && oright == right && newAgent < log.Ops[other.LV].ID.Agent:
			// Lexicographic agent tie-break at identical origins.
			stop = true
		case oleft == left:
			scanning = oright < right
		default:
			// oleft > left: keep whatever scanning state we're in.
		}
		if stop {
			break
		}

		if !other.Deleted {
			scanEndPos++
		}
		scanIdx++

		if !scanning {
			idx = scanIdx
			endPos = scanEndPos
		}
	}

	return idx, endPos
}

// applyInsert performs the first execution of an INSERT op: locate the
// current-position index for op.Pos, derive originLeft/originRight, build
// the item, integrate it into the total order, and splice op.Content into
// the snapshot at its surfaced position.
func (d *Doc[T]) applyInsert(log *oplog.OpLog[T], opLV oplog.LV) error {
	op := log.Ops[opLV]

	idx, endPos, err := currentPositionWalk(d.Items, op.Pos)
	if err != nil {
		return err
	}

	originLeft := Sentinel
	if idx > 0 {
		left := d.Items[idx-1]
		if left.State != Inserted {
			return ErrLeftNotInserted
		}
		originLeft = left.LV
	}

	originRight := Sentinel
	for i := idx; i < len(d.Items); i++ {
		if d.Items[i].State != NotYetInserted {
			originRight = d.Items[i].LV
			break
		}
	}

	newItem := &Item{
		LV:          opLV,
		OriginLeft:  originLeft,
		OriginRight: originRight,
		Deleted:     false,
		State:       Inserted,
	}

	finalIdx, finalEndPos := d.integrate(log, newItem, op.ID.Agent, idx, endPos)

	d.Items = append(d.Items, nil)
	copy(d.Items[finalIdx+1:], d.Items[finalIdx:])
	d.Items[finalIdx] = newItem
	d.ItemByLV[opLV] = newItem

	d.Snapshot = append(d.Snapshot, op.Content)
	copy(d.Snapshot[finalEndPos+1:], d.Snapshot[finalEndPos:])
	d.Snapshot[finalEndPos] = op.Content

	return nil
}

// applyDelete performs the first execution of a DELETE op: walk to op.Pos,
// skip forward past any items not currently Inserted (concurrent inserts
// retreat/advance has rewound), and target the first Inserted item found.
func (d *Doc[T]) applyDelete(log *oplog.OpLog[T], opLV oplog.LV) error {
	op := log.Ops[opLV]

	idx, endPos, err := currentPositionWalk(d.Items, op.Pos)
	if err != nil {
		return err
	}

	for idx < len(d.Items) && d.Items[idx].State != Inserted {
		if !d.Items[idx].Deleted {
			endPos++
		}
		idx++
	}
	if idx >= len(d.Items) {
		return ErrWalkedPastEnd
	}

	target := d.Items[idx]
	d.DelTarget[opLV] = target.LV

	if !target.Deleted {
		target.Deleted = true
		d.Snapshot = append(d.Snapshot[:endPos], d.Snapshot[endPos+1:]...)
	}
	target.State = 1

	return nil
}

// apply dispatches an op to applyInsert or applyDelete.
func (d *Doc[T]) apply(log *oplog.OpLog[T], opLV oplog.LV) error {
	switch log.Ops[opLV].Kind {
	case oplog.Insert:
		return d.applyInsert(log, opLV)
	case oplog.Delete:
		return d.applyDelete(log, opLV)
	default:
		return errors.New("replay: unknown op kind")
	}
}

// Checkout materialises the document described by log from scratch: for
// each op in LV order, it diffs the replay's current version against the
// op's parents, retreats everything only the replay has seen (descending
// LV), advances everything only the op's parents have seen (ascending LV),
// applies the op, and sets the current version to that op alone.
//
// Different oplogs that share the same DAG, replayed in any order
// consistent with causality, produce identical output.
func Checkout[T any](log *oplog.OpLog[T]) (*Doc[T], error) {
	d := NewDoc[T]()

	for lv := 0; lv < len(log.Ops); lv++ {
		opLV := oplog.LV(lv)

		aOnly, bOnly := version.Diff(log, d.CurrentVersion, log.Ops[opLV].Parents)

		sort.Slice(aOnly, func(i, j int) bool { return aOnly[i] > aOnly[j] })
		for _, l := range aOnly {
			if err := d.retreat(log, l); err != nil {
				return nil, errors.Join(ErrReplayInvariant, err)
			}
		}

		sort.Slice(bOnly, func(i, j int) bool { return bOnly[i] < bOnly[j] })
		for _, l := range bOnly {
			if err := d.advance(log, l); err != nil {
				return nil, errors.Join(ErrReplayInvariant, err)
			}
		}

		if err := d.apply(log, opLV); err != nil {
			return nil, errors.Join(ErrReplayInvariant, err)
		}

		d.CurrentVersion = []oplog.LV{opLV}
	}

	return d, nil
}

// Text is a convenience for the common case where T is rune: it
// concatenates the snapshot into a string.
func Text(snapshot []rune) string {
	return string(snapshot)
}
