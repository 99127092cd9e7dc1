package chain

import (
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// groupNamespace is the UUIDv5 namespace for deriving group IDs from file
// names. Fixed so that group IDs are stable across processes.
var groupNamespace = uuid.MustParse("1ddb54f2-3c33-4e29-a8b1-7f828cc0a1d4")

// GroupID derives the stable group identifier for a source file.
// All chunks of one file share a group.
func GroupID(fileName string) uuid.UUID {
	return uuid.NewSHA1(groupNamespace, []byte(fileName))
}

// DocumentMetadata carries the per-chunk attributes the graph needs.
// TokenCount is computed once at retrieval time and never recomputed
// downstream; merge nodes set it freshly on the documents they create.
type DocumentMetadata struct {
	FileName    string
	TokenCount  int
	PageNumbers []int
	Score       float64
	Index       int // chunk order within the source file
}

// Document is one retrieved chunk or one merged summary.
type Document struct {
	ID       uuid.UUID
	Content  string
	Metadata DocumentMetadata
}

// DocumentGroup maps document ID to document. A nil document value is a
// tombstone: in an update it deletes that document from the group.
type DocumentGroup map[uuid.UUID]*Document

// DocumentState maps group ID to group. A nil group value is a tombstone:
// in an update it deletes the whole group.
type DocumentState map[uuid.UUID]DocumentGroup

// ReduceDocuments merges an update into a base document state and returns a
// new state; neither argument is modified. Merging is group-by-group then
// document-by-document:
//
//   - nil group in the update deletes the group
//   - nil document in the update deletes the document
//   - non-nil values insert or overwrite
//   - untouched groups and documents are preserved
//   - a group left empty after the merge is removed
//
// The result is commutative across updates that touch disjoint keys, which
// is what makes it safe as the fan-out join primitive.
func ReduceDocuments(current, update DocumentState) DocumentState {
	if update == nil {
		return cloneDocumentState(current)
	}

	reduced := cloneDocumentState(current)
	if reduced == nil {
		reduced = DocumentState{}
	}

	for groupID, group := range update {
		if group == nil {
			delete(reduced, groupID)
			continue
		}

		merged, ok := reduced[groupID]
		if !ok {
			merged = DocumentGroup{}
			reduced[groupID] = merged
		}

		for docID, doc := range group {
			if doc == nil {
				delete(merged, docID)
			} else {
				merged[docID] = doc
			}
		}

		if len(merged) == 0 {
			delete(reduced, groupID)
		}
	}

	return reduced
}

func cloneDocumentState(ds DocumentState) DocumentState {
	if ds == nil {
		return nil
	}
	cloned := make(DocumentState, len(ds))
	for groupID, group := range ds {
		cloned[groupID] = maps.Clone(group)
	}
	return cloned
}

// GroupByFile structures a flat document list into a DocumentState, grouping
// chunks by their source file.
func GroupByFile(docs []*Document) DocumentState {
	ds := DocumentState{}
	for _, doc := range docs {
		groupID := GroupID(doc.Metadata.FileName)
		if ds[groupID] == nil {
			ds[groupID] = DocumentGroup{}
		}
		ds[groupID][doc.ID] = doc
	}
	return ds
}

// Flatten returns every live document in the state in a deterministic order:
// by file name, then chunk index, then ID. Map iteration order must never
// leak into prompts.
func (ds DocumentState) Flatten() []*Document {
	var docs []*Document
	for _, group := range ds {
		for _, doc := range group {
			if doc != nil {
				docs = append(docs, doc)
			}
		}
	}
	slices.SortFunc(docs, func(a, b *Document) int {
		if c := strings.Compare(a.Metadata.FileName, b.Metadata.FileName); c != 0 {
			return c
		}
		if c := a.Metadata.Index - b.Metadata.Index; c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return docs
}

// TotalTokens sums the token counts of every live document in the state.
func (ds DocumentState) TotalTokens() int {
	total := 0
	for _, doc := range ds.Flatten() {
		total += doc.Metadata.TokenCount
	}
	return total
}

// MultipleDocsInAnyGroup reports whether some group still holds more than one
// live document. Used as the map-reduce termination condition.
func (ds DocumentState) MultipleDocsInAnyGroup() bool {
	for _, group := range ds {
		live := 0
		for _, doc := range group {
			if doc != nil {
				live++
			}
		}
		if live > 1 {
			return true
		}
	}
	return false
}

// CombineDocuments concatenates two chunks of the same file into one.
// Content is appended in argument order, token counts are summed, and page
// numbers are unioned. Identity (ID, file name) comes from the first
// argument.
func CombineDocuments(a, b *Document) *Document {
	pages := slices.Clone(a.Metadata.PageNumbers)
	for _, p := range b.Metadata.PageNumbers {
		if !slices.Contains(pages, p) {
			pages = append(pages, p)
		}
	}
	slices.Sort(pages)

	return &Document{
		ID:      a.ID,
		Content: a.Content + b.Content,
		Metadata: DocumentMetadata{
			FileName:    a.Metadata.FileName,
			TokenCount:  a.Metadata.TokenCount + b.Metadata.TokenCount,
			PageNumbers: pages,
			Index:       min(a.Metadata.Index, b.Metadata.Index),
		},
	}
}
