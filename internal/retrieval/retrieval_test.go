package retrieval

import (
	"reflect"
	"testing"

	"github.com/koopa0/briefing/internal/log"
)

func TestEffectiveKeys(t *testing.T) {
	t.Parallel()

	logger := log.NewNop()

	tests := []struct {
		name      string
		selected  []string
		permitted []string
		want      []string
	}{
		{
			name:      "empty selection means everything permitted",
			selected:  nil,
			permitted: []string{"a.pdf", "b.pdf"},
			want:      []string{"a.pdf", "b.pdf"},
		},
		{
			name:      "selection intersected with permissions",
			selected:  []string{"a.pdf", "c.pdf"},
			permitted: []string{"a.pdf", "b.pdf"},
			want:      []string{"a.pdf"},
		},
		{
			name:      "fully unauthorized selection yields nothing",
			selected:  []string{"x.pdf"},
			permitted: []string{"a.pdf"},
			want:      []string{},
		},
		{
			name:      "no permissions at all",
			selected:  nil,
			permitted: nil,
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := EffectiveKeys(tt.selected, tt.permitted, logger)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			if len(got) > 0 && !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEffectiveKeysReturnsCopy(t *testing.T) {
	t.Parallel()

	permitted := []string{"a.pdf", "b.pdf"}
	got := EffectiveKeys(nil, permitted, log.NewNop())

	got[0] = "mutated"
	if permitted[0] != "a.pdf" {
		t.Fatal("result must not alias the permitted slice")
	}
}
