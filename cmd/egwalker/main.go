// Command egwalker runs two merge scenarios (concurrent prepend and
// delete with a concurrent insert in the hole), prints both replicas'
// text for each, and dumps the oplog after the first, the way the
// original prototype's root main.go smoke-tested a single merge by hand.
package main

import (
	"fmt"

	"github.com/sanity-io/litter"

	"github.com/loomtext/egwalker/document"
)

func main() {
	litter.Config.HidePrivateFields = false

	concurrentPrepend()
	deleteInTheHole()
}

func concurrentPrepend() {
	a := document.New("a")
	b := document.New("b")

	a.Insert(0, "hi")
	b.Insert(0, "yo")

	if err := a.MergeFrom(b); err != nil {
		fmt.Printf("merge a<-b failed: %v\n", err)
		return
	}
	if err := b.MergeFrom(a); err != nil {
		fmt.Printf("merge b<-a failed: %v\n", err)
		return
	}

	fmt.Printf("concurrent prepend: a=%q b=%q\n", a.Text(), b.Text())
	litter.Dump(a.Log)
}

func deleteInTheHole() {
	a := document.New("a")
	a.Insert(0, "abc")

	b := document.New("b")
	if err := b.MergeFrom(a); err != nil {
		fmt.Printf("bootstrap merge failed: %v\n", err)
		return
	}

	a.Delete(1, 1)
	b.Insert(2, "X")

	if err := a.MergeFrom(b); err != nil {
		fmt.Printf("merge a<-b failed: %v\n", err)
		return
	}
	if err := b.MergeFrom(a); err != nil {
		fmt.Printf("merge b<-a failed: %v\n", err)
		return
	}

	fmt.Printf("delete in the hole: a=%q b=%q\n", a.Text(), b.Text())
}
