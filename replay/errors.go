package replay

import "errors"

// ErrReplayInvariant is the sentinel every concrete replay failure wraps,
// so callers can errors.Is against it regardless of which specific
// invariant tripped. All of these indicate a corrupt oplog or a bug in the
// replay engine itself; there is no recovery.
var ErrReplayInvariant = errors.New("replay: invariant violation")

var (
	// ErrItemNotFound: an LV expected to name an item (via ItemByLV or
	// DelTarget) didn't.
	ErrItemNotFound = errors.New("replay: item not found")
	// ErrWalkedPastEnd: the current-position walk ran off the end of
	// Items before reaching the target position.
	ErrWalkedPastEnd = errors.New("replay: walked past end of item list")
	// ErrLeftNotInserted: the item immediately left of an INSERT's target
	// position is not in the Inserted state, which means op.Pos was
	// malformed relative to the view it was authored against.
	ErrLeftNotInserted = errors.New("replay: left neighbor not inserted")
	// ErrStateUnderflow: retreat was called on an item already at
	// NotYetInserted.
	ErrStateUnderflow = errors.New("replay: state underflow on retreat")
)
