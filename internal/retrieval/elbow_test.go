package retrieval

import (
	"testing"

	"github.com/google/uuid"

	"github.com/koopa0/briefing/internal/chain"
)

func scoredDocs(scores ...float64) []*chain.Document {
	docs := make([]*chain.Document, len(scores))
	for i, s := range scores {
		docs[i] = &chain.Document{
			ID:       uuid.New(),
			Metadata: chain.DocumentMetadata{Score: s},
		}
	}
	return docs
}

func TestFilterByElbow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		scores  []float64
		enabled bool
		want    int
	}{
		{
			name: "clear knee keeps the head",
			// Three strong hits followed by noise: the knee sits after
			// the third document.
			scores:  []float64{2.2, 2.0, 1.8, 0.2, 0.2, 0.2},
			enabled: true,
			want:    3,
		},
		{
			name:    "flat scores have no knee",
			scores:  []float64{1.0, 1.0, 1.0, 1.0, 1.0, 1.0},
			enabled: true,
			want:    6,
		},
		{
			name:    "too few points",
			scores:  []float64{2.0, 1.0},
			enabled: true,
			want:    2,
		},
		{
			name:    "empty input",
			scores:  nil,
			enabled: true,
			want:    0,
		},
		{
			name:    "disabled passes through",
			scores:  []float64{2.2, 2.0, 1.8, 0.2, 0.2, 0.2},
			enabled: false,
			want:    6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			docs := scoredDocs(tt.scores...)
			got := FilterByElbow(docs, tt.enabled, 1.0, 100.0)
			if len(got) != tt.want {
				t.Fatalf("kept %d documents, want %d", len(got), tt.want)
			}
			// The filter only ever trims the tail.
			for i, d := range got {
				if d != docs[i] {
					t.Fatalf("document %d reordered", i)
				}
			}
		})
	}
}

func TestKneeIndexDescendingStaircase(t *testing.T) {
	t.Parallel()

	// A strictly linear decay has no knee anywhere.
	knee, ok := kneeIndex([]float64{5, 4, 3, 2, 1}, 1.0)
	if ok {
		t.Fatalf("linear curve must have no knee, got %d", knee)
	}
}
