package chain

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
)

func testDoc(fileName string, index, tokens int) *Document {
	return &Document{
		ID:      uuid.New(),
		Content: fileName,
		Metadata: DocumentMetadata{
			FileName:   fileName,
			TokenCount: tokens,
			Index:      index,
		},
	}
}

func TestGroupIDStable(t *testing.T) {
	t.Parallel()

	if GroupID("report.pdf") != GroupID("report.pdf") {
		t.Fatal("same file name must produce the same group ID")
	}
	if GroupID("report.pdf") == GroupID("other.pdf") {
		t.Fatal("different file names must produce different group IDs")
	}
}

func TestReduceDocumentsInsertAndOverwrite(t *testing.T) {
	t.Parallel()

	doc := testDoc("a.pdf", 0, 10)
	groupID := GroupID("a.pdf")

	base := DocumentState{}
	merged := ReduceDocuments(base, DocumentState{
		groupID: DocumentGroup{doc.ID: doc},
	})

	if got := merged[groupID][doc.ID]; got != doc {
		t.Fatalf("expected inserted document, got %v", got)
	}
	if len(base) != 0 {
		t.Fatal("base state must not be modified")
	}

	replacement := testDoc("a.pdf", 0, 99)
	replacement.ID = doc.ID
	merged = ReduceDocuments(merged, DocumentState{
		groupID: DocumentGroup{doc.ID: replacement},
	})
	if got := merged[groupID][doc.ID].Metadata.TokenCount; got != 99 {
		t.Fatalf("expected overwrite to win, token count = %d", got)
	}
}

func TestReduceDocumentsTombstones(t *testing.T) {
	t.Parallel()

	docA := testDoc("a.pdf", 0, 10)
	docB := testDoc("a.pdf", 1, 10)
	groupID := GroupID("a.pdf")

	base := DocumentState{
		groupID: DocumentGroup{docA.ID: docA, docB.ID: docB},
	}

	// Tombstoning one document keeps the group.
	merged := ReduceDocuments(base, DocumentState{
		groupID: DocumentGroup{docA.ID: nil},
	})
	if _, ok := merged[groupID][docA.ID]; ok {
		t.Fatal("tombstoned document must be removed")
	}
	if _, ok := merged[groupID][docB.ID]; !ok {
		t.Fatal("untouched document must be preserved")
	}

	// Deleting the last document removes the group.
	merged = ReduceDocuments(merged, DocumentState{
		groupID: DocumentGroup{docB.ID: nil},
	})
	if _, ok := merged[groupID]; ok {
		t.Fatal("group emptied by tombstones must be removed")
	}

	// A nil group deletes the whole group at once.
	merged = ReduceDocuments(base, DocumentState{groupID: nil})
	if _, ok := merged[groupID]; ok {
		t.Fatal("nil group tombstone must remove the group")
	}
}

func TestReduceDocumentsCommutative(t *testing.T) {
	t.Parallel()

	docA := testDoc("a.pdf", 0, 10)
	docB := testDoc("b.pdf", 0, 20)
	docC := testDoc("a.pdf", 1, 30)

	base := DocumentState{
		GroupID("a.pdf"): DocumentGroup{docA.ID: docA},
	}
	u1 := DocumentState{GroupID("b.pdf"): DocumentGroup{docB.ID: docB}}
	u2 := DocumentState{GroupID("a.pdf"): DocumentGroup{docC.ID: docC}}

	left := ReduceDocuments(ReduceDocuments(base, u1), u2)
	right := ReduceDocuments(ReduceDocuments(base, u2), u1)

	if !reflect.DeepEqual(left, right) {
		t.Fatalf("reduction must be commutative for disjoint updates:\nleft  %v\nright %v", left, right)
	}
}

func TestFlattenDeterministicOrder(t *testing.T) {
	t.Parallel()

	b1 := testDoc("b.pdf", 1, 1)
	b0 := testDoc("b.pdf", 0, 1)
	a0 := testDoc("a.pdf", 0, 1)

	ds := GroupByFile([]*Document{b1, a0, b0})

	got := ds.Flatten()
	want := []*Document{a0, b0, b1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected file-then-index order, got %v", got)
	}
}

func TestTotalTokensSkipsTombstones(t *testing.T) {
	t.Parallel()

	docA := testDoc("a.pdf", 0, 10)
	ds := DocumentState{
		GroupID("a.pdf"): DocumentGroup{
			docA.ID:    docA,
			uuid.New(): nil,
		},
	}
	if got := ds.TotalTokens(); got != 10 {
		t.Fatalf("TotalTokens = %d, want 10", got)
	}
}

func TestMultipleDocsInAnyGroup(t *testing.T) {
	t.Parallel()

	docA := testDoc("a.pdf", 0, 1)
	docB := testDoc("a.pdf", 1, 1)
	single := DocumentState{
		GroupID("a.pdf"): DocumentGroup{docA.ID: docA},
	}
	if single.MultipleDocsInAnyGroup() {
		t.Fatal("singleton group must not need another pass")
	}

	multi := DocumentState{
		GroupID("a.pdf"): DocumentGroup{docA.ID: docA, docB.ID: docB},
	}
	if !multi.MultipleDocsInAnyGroup() {
		t.Fatal("two live documents in a group must need another pass")
	}

	// Tombstones do not count as live documents.
	tombstoned := DocumentState{
		GroupID("a.pdf"): DocumentGroup{docA.ID: docA, docB.ID: nil},
	}
	if tombstoned.MultipleDocsInAnyGroup() {
		t.Fatal("tombstoned documents must not count")
	}
}

func TestCombineDocuments(t *testing.T) {
	t.Parallel()

	a := testDoc("a.pdf", 2, 10)
	a.Content = "first "
	a.Metadata.PageNumbers = []int{2, 1}
	b := testDoc("a.pdf", 3, 15)
	b.Content = "second"
	b.Metadata.PageNumbers = []int{3, 2}

	combined := CombineDocuments(a, b)

	if combined.ID != a.ID {
		t.Fatal("identity must come from the first document")
	}
	if combined.Content != "first second" {
		t.Fatalf("content = %q", combined.Content)
	}
	if combined.Metadata.TokenCount != 25 {
		t.Fatalf("token count = %d, want 25", combined.Metadata.TokenCount)
	}
	if want := []int{1, 2, 3}; !reflect.DeepEqual(combined.Metadata.PageNumbers, want) {
		t.Fatalf("page numbers = %v, want %v", combined.Metadata.PageNumbers, want)
	}
	if combined.Metadata.Index != 2 {
		t.Fatalf("index = %d, want 2", combined.Metadata.Index)
	}
}
