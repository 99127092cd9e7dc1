package chain

import "slices"

// SourceDocument is the citation shape handed to callers: which file an
// answer drew on, where in it, and the matched snippet. Used for UI
// rendering only.
type SourceDocument struct {
	FileName    string
	PageNumbers []int
	Snippet     string
}

// SourceFromDocument maps a retrieved document to its citation.
func SourceFromDocument(d *Document) SourceDocument {
	return SourceDocument{
		FileName:    d.Metadata.FileName,
		PageNumbers: slices.Clone(d.Metadata.PageNumbers),
		Snippet:     d.Content,
	}
}

// SourcesFromDocuments maps a document list to citations, preserving order.
func SourcesFromDocuments(docs []*Document) []SourceDocument {
	sources := make([]SourceDocument, 0, len(docs))
	for _, d := range docs {
		sources = append(sources, SourceFromDocument(d))
	}
	return sources
}
