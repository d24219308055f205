package replay

import (
	"testing"

	"github.com/loomtext/egwalker/oplog"
)

func checkoutText(t *testing.T, log *oplog.OpLog[rune]) string {
	t.Helper()
	d, err := Checkout(log)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	return string(d.Snapshot)
}

func TestSoloAuthorInsert(t *testing.T) {
	log := oplog.New[rune]()
	for i, r := range []rune("hi") {
		log.AppendLocal("s", oplog.Insert, i, r)
	}
	log.AppendLocal("s", oplog.Insert, 2, '!')

	if got := checkoutText(t, log); got != "hi!" {
		t.Fatalf("want %q got %q", "hi!", got)
	}
}

func TestSoloAuthorInsertThenDelete(t *testing.T) {
	log := oplog.New[rune]()
	for i, r := range []rune("hello") {
		log.AppendLocal("s", oplog.Insert, i, r)
	}
	log.AppendLocal("s", oplog.Delete, 1, 0)
	log.AppendLocal("s", oplog.Delete, 1, 0)

	if got := checkoutText(t, log); got != "hlo" {
		t.Fatalf("want %q got %q", "hlo", got)
	}
}

func TestConcurrentPrependTieBreaksOnAgent(t *testing.T) {
	a := oplog.New[rune]()
	for i, r := range []rune("hi") {
		a.AppendLocal("a", oplog.Insert, i, r)
	}

	b := oplog.New[rune]()
	for i, r := range []rune("yo") {
		b.AppendLocal("b", oplog.Insert, i, r)
	}

	a.MergeFrom(b)
	b.MergeFrom(a)

	gotA := checkoutText(t, a)
	gotB := checkoutText(t, b)
	if gotA != gotB {
		t.Fatalf("replicas diverged: a=%q b=%q", gotA, gotB)
	}
	if gotA != "hiyo" {
		t.Fatalf("want %q got %q", "hiyo", gotA)
	}
}

func TestOrderIndependenceAcrossLinearisations(t *testing.T) {
	// Build one DAG (two concurrent single-char inserts at the document
	// start from two agents) and feed its two topological linearisations
	// into two fresh oplogs; both must replay to the same text.
	a := oplog.New[rune]()
	a.AppendLocal("a", oplog.Insert, 0, 'A')

	b := oplog.New[rune]()
	b.AppendLocal("b", oplog.Insert, 0, 'B')

	logAB := oplog.New[rune]()
	logAB.MergeFrom(a)
	logAB.MergeFrom(b)

	logBA := oplog.New[rune]()
	logBA.MergeFrom(b)
	logBA.MergeFrom(a)

	gotAB := checkoutText(t, logAB)
	gotBA := checkoutText(t, logBA)
	if gotAB != gotBA {
		t.Fatalf("linearisation-dependent output: %q vs %q", gotAB, gotBA)
	}
}

func TestDeleteWithConcurrentInsertInTheHole(t *testing.T) {
	a := oplog.New[rune]()
	for i, r := range []rune("abc") {
		a.AppendLocal("a", oplog.Insert, i, r)
	}

	b := oplog.New[rune]()
	b.MergeFrom(a)

	a.AppendLocal("a", oplog.Delete, 1, 0) // delete 'b'
	b.AppendLocal("b", oplog.Insert, 2, 'X')

	a.MergeFrom(b)
	b.MergeFrom(a)

	gotA := checkoutText(t, a)
	gotB := checkoutText(t, b)
	if gotA != gotB {
		t.Fatalf("replicas diverged: a=%q b=%q", gotA, gotB)
	}
	if gotA != "aXc" {
		t.Fatalf("want %q got %q", "aXc", gotA)
	}
}

func TestMonotoneGrowthDeletedNeverResets(t *testing.T) {
	log := oplog.New[rune]()
	log.AppendLocal("a", oplog.Insert, 0, 'x')
	log.AppendLocal("a", oplog.Delete, 0, 0)

	d, err := Checkout(log)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if len(d.Items) != 1 {
		t.Fatalf("want 1 item (tombstone retained) got %d", len(d.Items))
	}
	if !d.Items[0].Deleted {
		t.Fatalf("want tombstone marked deleted")
	}
}
