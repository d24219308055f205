// Package version holds the pure frontier algebra the replay engine uses to
// figure out, at each op, which previously-applied ops need to be retreated
// and which need to be advanced before that op can be applied.
package version

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/loomtext/egwalker/oplog"
)

// Expand computes the reflexive-transitive closure of frontier over each
// op's Parents: every LV reachable by walking parent edges, plus the
// frontier itself. Terminates because LVs strictly decrease along parent
// edges (DAG acyclicity).
func Expand[T any](log *oplog.OpLog[T], frontier []oplog.LV) mapset.Set[oplog.LV] {
	seen := mapset.NewSet[oplog.LV]()
	stack := append([]oplog.LV{}, frontier...)

	for len(stack) > 0 {
		lv := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen.Contains(lv) {
			continue
		}
		seen.Add(lv)
		stack = append(stack, log.Ops[lv].Parents...)
	}

	return seen
}

// Diff returns the LVs reachable from a but not b, and from b but not a.
// The reference implementation here is O((|a|+|b|)·N); an accelerated
// frontier-pair traversal is a permitted optimisation as long as it
// produces the identical sets.
func Diff[T any](log *oplog.OpLog[T], a, b []oplog.LV) (aOnly, bOnly []oplog.LV) {
	aSet := Expand(log, a)
	bSet := Expand(log, b)

	return aSet.Difference(bSet).ToSlice(), bSet.Difference(aSet).ToSlice()
}
