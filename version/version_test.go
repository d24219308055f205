package version

import (
	"testing"

	"github.com/loomtext/egwalker/oplog"
)

func TestExpandIsReflexiveTransitiveClosure(t *testing.T) {
	log := oplog.New[rune]()
	log.AppendLocal("a", oplog.Insert, 0, 'a') // lv0
	log.AppendLocal("a", oplog.Insert, 1, 'b') // lv1, parent [0]
	log.AppendLocal("a", oplog.Insert, 2, 'c') // lv2, parent [1]

	got := Expand(log, []oplog.LV{2})
	for _, lv := range []oplog.LV{0, 1, 2} {
		if !got.Contains(lv) {
			t.Fatalf("expand([2]) missing ancestor %d: %v", lv, got.ToSlice())
		}
	}
	if got.Cardinality() != 3 {
		t.Fatalf("want exactly 3 elements, got %v", got.ToSlice())
	}
}

func TestDiffIsSymmetricDifferenceOfClosures(t *testing.T) {
	log := oplog.New[rune]()
	log.AppendLocal("a", oplog.Insert, 0, 'a') // lv0, common ancestor

	branchA := oplog.New[rune]()
	branchA.MergeFrom(log)
	branchA.AppendLocal("a", oplog.Insert, 1, 'x') // lv1

	branchB := oplog.New[rune]()
	branchB.MergeFrom(log)
	branchB.AppendLocal("b", oplog.Insert, 1, 'y') // lv1, different owning log

	// Simulate both branches living in one oplog, as Checkout would see it:
	// lv0 (a), lv1 (a's x, parent [0]), lv2 (b's y, parent [0]).
	merged := oplog.New[rune]()
	merged.MergeFrom(log)
	merged.AppendLocal("a", oplog.Insert, 1, 'x')
	// Rewind frontier manually to simulate concurrency with lv0 as parent.
	merged.Frontier = []oplog.LV{0}
	merged.AppendLocal("b", oplog.Insert, 1, 'y')

	aOnly, bOnly := Diff(merged, []oplog.LV{1}, []oplog.LV{2})
	if len(aOnly) != 1 || aOnly[0] != 1 {
		t.Fatalf("want aOnly=[1] got %v", aOnly)
	}
	if len(bOnly) != 1 || bOnly[0] != 2 {
		t.Fatalf("want bOnly=[2] got %v", bOnly)
	}
}
