package document

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSoloAuthor(t *testing.T) {
	d := New("s")
	d.Insert(0, "hi")
	d.Insert(2, "!")

	require.Equal(t, "hi!", d.Text())
	require.NoError(t, d.Check())
}

func TestConcurrentPrependNoTombstones(t *testing.T) {
	a := New("a")
	b := New("b")

	a.Insert(0, "hi")
	b.Insert(0, "yo")

	require.NoError(t, a.MergeFrom(b))
	require.NoError(t, b.MergeFrom(a))

	require.Equal(t, "hiyo", a.Text())
	require.Equal(t, a.Text(), b.Text())
}

func TestConcurrentInsertAfterMerge(t *testing.T) {
	a := New("a")
	b := New("b")

	a.Insert(0, "hi")
	b.Insert(0, "yo")
	require.NoError(t, a.MergeFrom(b))
	require.NoError(t, b.MergeFrom(a))

	b.Insert(4, "x")
	require.Equal(t, "hiyox", b.Text())

	require.NoError(t, a.MergeFrom(b))
	require.NoError(t, b.MergeFrom(a))

	require.Equal(t, "hiyox", a.Text())
	require.Equal(t, "hiyox", b.Text())
}

func TestDeleteWithConcurrentInsertInTheHole(t *testing.T) {
	a := New("a")
	a.Insert(0, "abc")

	b := New("b")
	require.NoError(t, b.MergeFrom(a))

	a.Delete(1, 1)
	b.Insert(2, "X")

	require.NoError(t, a.MergeFrom(b))
	require.NoError(t, b.MergeFrom(a))

	require.Equal(t, "aXc", a.Text())
	require.Equal(t, a.Text(), b.Text())
}

func TestInterleavedAuthorsAtIdenticalOrigin(t *testing.T) {
	a := New("a")
	b := New("b")

	a.Insert(0, "A")
	b.Insert(0, "B")

	require.NoError(t, a.MergeFrom(b))
	require.NoError(t, b.MergeFrom(a))

	require.Equal(t, "AB", a.Text())
	require.Equal(t, "AB", b.Text())
}

func TestIdempotentMerge(t *testing.T) {
	a := New("a")
	a.Insert(0, "abc")

	b := New("b")
	require.NoError(t, b.MergeFrom(a))

	a.Delete(1, 1)
	b.Insert(2, "X")

	require.NoError(t, a.MergeFrom(b))
	require.NoError(t, b.MergeFrom(a))

	before := a.Text()
	require.NoError(t, a.MergeFrom(b))
	require.Equal(t, before, a.Text())
}

func TestLocalFastPathConsistency(t *testing.T) {
	d := New("s")
	d.Insert(0, "hello world")
	d.Delete(5, 6)
	d.Insert(5, " there")

	require.NoError(t, d.Check())
}

func TestCheckDetectsOutOfSyncSnapshot(t *testing.T) {
	d := New("s")
	d.Insert(0, "hello")

	// Directly corrupt the cached snapshot without touching the oplog, to
	// simulate the precondition violation Check exists to catch.
	d.snapshot[0] = 'H'

	require.ErrorIs(t, d.Check(), ErrOutOfSync)
}
