package oplog

import "testing"

func TestAppendLocalAssignsIncreasingSeq(t *testing.T) {
	log := New[rune]()

	lv0 := log.AppendLocal("a", Insert, 0, 'h')
	lv1 := log.AppendLocal("a", Insert, 1, 'i')

	if lv0 != 0 || lv1 != 1 {
		t.Fatalf("want LVs 0,1 got %d,%d", lv0, lv1)
	}
	if log.Ops[1].ID.Seq != 1 {
		t.Fatalf("want seq 1 got %d", log.Ops[1].ID.Seq)
	}
	if len(log.Ops[1].Parents) != 1 || log.Ops[1].Parents[0] != 0 {
		t.Fatalf("want parents [0] got %v", log.Ops[1].Parents)
	}
	if len(log.Frontier) != 1 || log.Frontier[0] != 1 {
		t.Fatalf("want frontier [1] got %v", log.Frontier)
	}
}

func TestAppendRemoteRejectsUnknownParent(t *testing.T) {
	log := New[rune]()
	op := Op[rune]{InnerOp: InnerOp[rune]{Kind: Insert, Pos: 0, Content: 'x'}, ID: Id{"b", 0}}

	_, appended, err := log.AppendRemote(op, []Id{{"a", 0}})
	if appended {
		t.Fatalf("want not appended")
	}
	if err != ErrIdUnknown {
		t.Fatalf("want ErrIdUnknown got %v", err)
	}
	if len(log.Ops) != 0 {
		t.Fatalf("want oplog unchanged on error, got %d ops", len(log.Ops))
	}
}

func TestAppendRemoteRejectsSeqGap(t *testing.T) {
	log := New[rune]()
	op := Op[rune]{InnerOp: InnerOp[rune]{Kind: Insert, Pos: 0, Content: 'x'}, ID: Id{"a", 3}}

	_, appended, err := log.AppendRemote(op, nil)
	if appended {
		t.Fatalf("want not appended")
	}
	if err != ErrSeqGap {
		t.Fatalf("want ErrSeqGap got %v", err)
	}
}

func TestAppendRemoteDropsDuplicate(t *testing.T) {
	log := New[rune]()
	op := Op[rune]{InnerOp: InnerOp[rune]{Kind: Insert, Pos: 0, Content: 'x'}, ID: Id{"a", 0}}

	lv, appended, err := log.AppendRemote(op, nil)
	if err != nil || !appended || lv != 0 {
		t.Fatalf("first append: lv=%d appended=%v err=%v", lv, appended, err)
	}

	lv2, appended2, err2 := log.AppendRemote(op, nil)
	if err2 != nil {
		t.Fatalf("duplicate must not error, got %v", err2)
	}
	if appended2 {
		t.Fatalf("duplicate must not be appended")
	}
	_ = lv2
	if len(log.Ops) != 1 {
		t.Fatalf("want still 1 op, got %d", len(log.Ops))
	}
}

func TestMergeFromIsCausallySound(t *testing.T) {
	src := New[rune]()
	src.AppendLocal("a", Insert, 0, 'h')
	src.AppendLocal("a", Insert, 1, 'i')

	dst := New[rune]()
	if err := dst.MergeFrom(src); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if len(dst.Ops) != 2 {
		t.Fatalf("want 2 ops got %d", len(dst.Ops))
	}
	if dst.Ops[1].Parents[0] != 0 {
		t.Fatalf("want translated parent [0] got %v", dst.Ops[1].Parents)
	}
}

func TestMergeFromIsIdempotent(t *testing.T) {
	src := New[rune]()
	src.AppendLocal("a", Insert, 0, 'h')

	dst := New[rune]()
	dst.MergeFrom(src)
	dst.MergeFrom(src)

	if len(dst.Ops) != 1 {
		t.Fatalf("want 1 op after duplicate merge got %d", len(dst.Ops))
	}
}

func TestFrontierAdvanceRule(t *testing.T) {
	log := New[rune]()
	log.AppendLocal("a", Insert, 0, 'a')
	log.AppendLocal("b", Insert, 0, 'b')
	// Both ops above share the same frontier lineage via sequential
	// AppendLocal, so simulate a real fork by hand via AppendRemote to
	// exercise a multi-parent frontier merge.
	other := New[rune]()
	other.AppendLocal("c", Insert, 0, 'c')
	log.MergeFrom(other)

	if len(log.Frontier) != 2 {
		t.Fatalf("want 2-way frontier after concurrent append, got %v", log.Frontier)
	}
}
