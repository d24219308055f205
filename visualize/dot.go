// Package visualize renders an oplog's DAG as Graphviz DOT source, purely
// for debugging. It is not part of the replay engine and never runs during
// normal apply/merge paths.
package visualize

import (
	"fmt"
	"strings"

	"github.com/loomtext/egwalker/oplog"
)

// DOT renders log as a Graphviz digraph: each op is a node labelled
// "lv (INS '<c>' at pos)" or "lv (DEL pos)", edges point from child to
// parent (rankdir=BT so time flows upward), ops with more than one parent
// route through a synthetic blue merge node, and a red ROOT node anchors
// ops with no parents.
func DOT[T any](log *oplog.OpLog[T]) string {
	var b strings.Builder

	b.WriteString("digraph oplog {\n")
	b.WriteString("  rankdir=BT;\n")
	b.WriteString("  ROOT [color=red];\n")

	for lv, op := range log.Ops {
		b.WriteString(fmt.Sprintf("  n%d [label=%q];\n", lv, nodeLabel(lv, op)))
	}

	for lv, op := range log.Ops {
		switch len(op.Parents) {
		case 0:
			b.WriteString(fmt.Sprintf("  n%d -> ROOT;\n", lv))
		case 1:
			b.WriteString(fmt.Sprintf("  n%d -> n%d;\n", lv, op.Parents[0]))
		default:
			merge := fmt.Sprintf("merge%d", lv)
			b.WriteString(fmt.Sprintf("  %s [shape=point, color=blue];\n", merge))
			b.WriteString(fmt.Sprintf("  n%d -> %s;\n", lv, merge))
			for _, p := range op.Parents {
				b.WriteString(fmt.Sprintf("  %s -> n%d;\n", merge, p))
			}
		}
	}

	b.WriteString("}\n")
	return b.String()
}

func nodeLabel[T any](lv int, op oplog.Op[T]) string {
	if op.Kind == oplog.Insert {
		c := fmt.Sprint(op.Content)
		if r, ok := any(op.Content).(rune); ok {
			c = string(r)
		}
		return fmt.Sprintf("%d (INS '%s' at %d)", lv, c, op.Pos)
	}
	return fmt.Sprintf("%d (DEL %d)", lv, op.Pos)
}
