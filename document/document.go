// Package document provides the thin façade a host actually programs
// against: an oplog, an agent id, and a cached snapshot that local edits
// mutate directly without going through the replay engine. Merges from a
// peer trigger a full replay and replace the cached snapshot with its
// result.
package document

import (
	"errors"

	"github.com/loomtext/egwalker/oplog"
	"github.com/loomtext/egwalker/replay"
)

// ErrOutOfSync is returned by Check when the cached snapshot has diverged
// from a full replay of the document's own oplog. This indicates a bug in
// the local fast-path mutator (Insert/Delete), not in the replay engine:
// the fast path is only safe while local edits truly append to the
// frontier.
var ErrOutOfSync = errors.New("document: snapshot out of sync with oplog")

// Doc is a single collaboratively-edited document bound to one agent.
// Content units are runes (Unicode code points), fixed end to end since
// Pos is unit-denominated.
type Doc struct {
	Agent string
	Log   *oplog.OpLog[rune]

	snapshot []rune
}

// New returns an empty document authored by agent.
func New(agent string) *Doc {
	return &Doc{
		Agent:    agent,
		Log:      oplog.New[rune](),
		snapshot: []rune{},
	}
}

// FromLog returns a document authored by agent whose oplog is history,
// with the cached snapshot seeded by a full replay. Used to bootstrap
// a document from persisted history instead of starting empty.
func FromLog(agent string, history *oplog.OpLog[rune]) (*Doc, error) {
	replayed, err := replay.Checkout(history)
	if err != nil {
		return nil, err
	}
	return &Doc{Agent: agent, Log: history, snapshot: replayed.Snapshot}, nil
}

// Insert appends local INSERT ops for each rune of text, one per
// character at increasing positions, and splices them into the cached
// snapshot directly — no replay needed, since the author sees the effect
// of their own ops immediately.
func (d *Doc) Insert(pos int, text string) {
	for _, r := range text {
		d.Log.AppendLocal(d.Agent, oplog.Insert, pos, r)

		d.snapshot = append(d.snapshot, 0)
		copy(d.snapshot[pos+1:], d.snapshot[pos:])
		d.snapshot[pos] = r
		pos++
	}
}

// Delete appends n local DELETE ops at pos and splices n runes out of the
// cached snapshot. pos doesn't advance between ops: each delete removes
// the character that slides into pos after the previous one is gone.
func (d *Doc) Delete(pos, n int) {
	for i := 0; i < n; i++ {
		d.Log.AppendLocal(d.Agent, oplog.Delete, pos, 0)
	}
	d.snapshot = append(d.snapshot[:pos], d.snapshot[pos+n:]...)
}

// Text returns the cached snapshot as a string.
func (d *Doc) Text() string {
	return string(d.snapshot)
}

// MergeFrom absorbs other's oplog, then replays the merged history from
// scratch and replaces the cached snapshot with the result.
func (d *Doc) MergeFrom(other *Doc) error {
	if err := d.Log.MergeFrom(other.Log); err != nil {
		return err
	}

	replayed, err := replay.Checkout(d.Log)
	if err != nil {
		return err
	}
	d.snapshot = replayed.Snapshot
	return nil
}

// MergeOp absorbs a single remotely observed op (e.g. one decoded off a
// transport envelope) directly, without needing a full peer Doc to merge
// from. appended is false when the op was already known and therefore
// dropped as a duplicate, matching oplog.OpLog.AppendRemote's contract.
func (d *Doc) MergeOp(op oplog.Op[rune], parentIDs []oplog.Id) (appended bool, err error) {
	_, appended, err = d.Log.AppendRemote(op, parentIDs)
	if err != nil || !appended {
		return appended, err
	}

	replayed, err := replay.Checkout(d.Log)
	if err != nil {
		return true, err
	}
	d.snapshot = replayed.Snapshot
	return true, nil
}

// Check performs a full replay of this document's own oplog and compares
// it against the cached snapshot. A mismatch means the local fast-path
// mutator has desynced from the replay engine's semantics — a precondition
// violation the host must avoid (e.g. by never calling Insert/Delete
// against a frontier it hasn't merged the latest remote ops into).
func (d *Doc) Check() error {
	replayed, err := replay.Checkout(d.Log)
	if err != nil {
		return err
	}
	if string(replayed.Snapshot) != string(d.snapshot) {
		return ErrOutOfSync
	}
	return nil
}
