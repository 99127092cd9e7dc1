package graph

import (
	"testing"

	"github.com/google/uuid"

	"github.com/koopa0/briefing/internal/chain"
)

func TestChunkSends(t *testing.T) {
	t.Parallel()

	docA0 := chunk("a.pdf", 0, 1, "")
	docA1 := chunk("a.pdf", 1, 1, "")
	docB0 := chunk("b.pdf", 0, 1, "")

	ds := chain.GroupByFile([]*chain.Document{docA0, docA1, docB0})
	ds[chain.GroupID("a.pdf")][uuid.New()] = nil // tombstone, must be skipped

	s := &chain.State{Documents: ds}
	sends := ChunkSends("map")(s)

	if len(sends) != 3 {
		t.Fatalf("sends = %d, want one per live document", len(sends))
	}
	for _, send := range sends {
		if send.Node != "map" {
			t.Fatalf("node = %q", send.Node)
		}
		if got := len(send.State.Documents.Flatten()); got != 1 {
			t.Fatalf("child carries %d documents, want 1", got)
		}
	}
}

func TestGroupSends(t *testing.T) {
	t.Parallel()

	docA0 := chunk("a.pdf", 0, 1, "")
	docA1 := chunk("a.pdf", 1, 1, "")
	docB0 := chunk("b.pdf", 0, 1, "")

	s := &chain.State{
		Documents: chain.GroupByFile([]*chain.Document{docA0, docA1, docB0}),
	}
	sends := GroupSends("merge")(s)

	// Only a.pdf still has two documents; b.pdf is a singleton.
	if len(sends) != 1 {
		t.Fatalf("sends = %d, want 1", len(sends))
	}
	docs := sends[0].State.Documents.Flatten()
	if len(docs) != 2 || docs[0].Metadata.FileName != "a.pdf" {
		t.Fatalf("child documents = %v", docs)
	}
}

func TestGroupSendsIgnoresTombstonedMajorities(t *testing.T) {
	t.Parallel()

	docA0 := chunk("a.pdf", 0, 1, "")
	ds := chain.GroupByFile([]*chain.Document{docA0})
	ds[chain.GroupID("a.pdf")][uuid.New()] = nil
	ds[chain.GroupID("a.pdf")][uuid.New()] = nil

	s := &chain.State{Documents: ds}
	if sends := GroupSends("merge")(s); len(sends) != 0 {
		t.Fatalf("sends = %d, want 0 (only one live document)", len(sends))
	}
}
