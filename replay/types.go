// Package replay is the CRDT core: it walks an oplog's DAG and maintains a
// per-item state machine (retreat/advance) while integrating concurrent
// inserts into a single total order, Yjs-style, via originLeft/originRight.
package replay

import "github.com/loomtext/egwalker/oplog"

// Sentinel marks "no item": SENTINEL_LEFT for an insert at document start,
// SENTINEL_RIGHT for an insert at document end. Distinct in concept from
// NotYetInserted even though both happen to be -1.
const Sentinel oplog.LV = -1

// State is the small per-item state variable retreat/advance/apply mutate.
type State int

const (
	// NotYetInserted: relative to the replay's current frontier, the
	// originating INSERT has not happened yet.
	NotYetInserted State = -1
	// Inserted: the insert has happened; the item is present.
	Inserted State = 0
	// State >= 1: inserted and deleted State times. Deletes stack so a DAG
	// path that re-applies a delete doesn't underflow on retreat; the
	// snapshot is only touched on the 0->1 transition.
)

// Item is the unit the replay engine sorts into the document's total
// order. LV is the LV of the originating INSERT in the oplog being
// replayed; an item never stores its own agent or content — those are
// looked up in the oplog by LV (arena-plus-index: no cross-item refs).
type Item struct {
	LV          oplog.LV
	OriginLeft  oplog.LV
	OriginRight oplog.LV
	// Deleted is true once any DELETE has targeted this item. Monotonic:
	// never reset by retreat/advance. It tracks whether the item's content
	// has physically left the snapshot buffer, which only ever happens
	// once, regardless of which causal view State is currently reflecting.
	Deleted bool
	State   State
}

// Doc is the replay engine's working state for a single materialisation
// pass. It is always built from scratch (NewDoc) and driven to a target
// version by Checkout; it is never retained across independent replays.
type Doc[T any] struct {
	// Items is the total order, including tombstones, in document order.
	Items []*Item
	// ItemByLV maps an INSERT op's LV to the item it created.
	ItemByLV map[oplog.LV]*Item
	// DelTarget maps a DELETE op's LV to the LV of the item it targets,
	// computed the first time that op is applied.
	DelTarget map[oplog.LV]oplog.LV
	// CurrentVersion is the frontier the replay is currently positioned at.
	CurrentVersion []oplog.LV
	// Snapshot is the materialised content: one entry per non-tombstoned
	// item, in document order.
	Snapshot []T
}

// NewDoc returns an empty replay state, positioned at the empty version.
func NewDoc[T any]() *Doc[T] {
	return &Doc[T]{
		Items:          []*Item{},
		ItemByLV:       make(map[oplog.LV]*Item),
		DelTarget:      make(map[oplog.LV]oplog.LV),
		CurrentVersion: []oplog.LV{},
		Snapshot:       []T{},
	}
}
