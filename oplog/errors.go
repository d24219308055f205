package oplog

import "errors"

// ErrIdUnknown is returned by AppendRemote when a parent Id isn't present
// in the oplog yet. The caller must send causally: an op's parents' ops
// must already have been delivered.
var ErrIdUnknown = errors.New("oplog: parent id unknown")

// ErrSeqGap is returned by AppendRemote when an incoming op's seq skips
// ahead of version[agent]+1. The caller is expected to reorder transport
// and retry once the missing op arrives.
var ErrSeqGap = errors.New("oplog: seq gap")
