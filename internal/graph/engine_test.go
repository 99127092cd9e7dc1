package graph

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/goleak"

	"github.com/koopa0/briefing/internal/chain"
	"github.com/koopa0/briefing/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func appendTextNode(text string) NodeFunc {
	return func(_ context.Context, s *chain.State, _ *Sink) (*chain.Update, error) {
		return chain.SetText(s.Text + text), nil
	}
}

func TestRunStaticWalk(t *testing.T) {
	t.Parallel()

	g := New(log.NewNop())
	g.AddNode("a", appendTextNode("a"))
	g.AddNode("b", appendTextNode("b"))
	g.SetEntry("a")
	g.AddEdge("a", "b")
	g.AddEdge("b", End)

	state, err := g.Run(context.Background(), chain.Query{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Text != "ab" {
		t.Fatalf("text = %q, want ab", state.Text)
	}
}

func TestRunConditionalEdge(t *testing.T) {
	t.Parallel()

	g := New(log.NewNop())
	g.AddJunction("fork")
	g.AddNode("left", appendTextNode("left"))
	g.AddNode("right", appendTextNode("right"))
	g.SetEntry("fork")
	g.AddConditionalEdge("fork", func(s *chain.State) string {
		if strings.Contains(s.Request.Question, "left") {
			return "left"
		}
		return "right"
	})
	g.AddEdge("left", End)
	g.AddEdge("right", End)

	state, err := g.Run(context.Background(), chain.Query{Question: "go left"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Text != "left" {
		t.Fatalf("text = %q, want left", state.Text)
	}

	state, err = g.Run(context.Background(), chain.Query{Question: "anything else"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Text != "right" {
		t.Fatalf("text = %q, want right", state.Text)
	}
}

func TestRunValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		build func() *Graph
	}{
		{
			name:  "no entry",
			build: func() *Graph { return New(log.NewNop()) },
		},
		{
			name: "entry not registered",
			build: func() *Graph {
				g := New(log.NewNop())
				g.SetEntry("missing")
				return g
			},
		},
		{
			name: "edge to unregistered node",
			build: func() *Graph {
				g := New(log.NewNop())
				g.AddNode("a", appendTextNode("a"))
				g.SetEntry("a")
				g.AddEdge("a", "missing")
				return g
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := tt.build().Run(context.Background(), chain.Query{}); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestRunStepLimitBreaksCycles(t *testing.T) {
	t.Parallel()

	g := New(log.NewNop())
	g.AddNode("a", appendTextNode(""))
	g.SetEntry("a")
	g.AddEdge("a", "a")

	_, err := g.Run(context.Background(), chain.Query{})
	if err == nil || !strings.Contains(err.Error(), "exceeded") {
		t.Fatalf("cycle must hit the step limit, got %v", err)
	}
}

func TestRunContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	g := New(log.NewNop())
	g.AddNode("a", func(context.Context, *chain.State, *Sink) (*chain.Update, error) {
		cancel()
		return nil, nil
	})
	g.AddNode("b", appendTextNode("b"))
	g.SetEntry("a")
	g.AddEdge("a", "b")
	g.AddEdge("b", End)

	state, err := g.Run(ctx, chain.Query{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if state.Text != "" {
		t.Fatal("node after cancellation must not run")
	}
}

// fanOutGraph wires entry -> fan-out over "work" -> join -> End, where the
// expand function sends one child per selected key.
func fanOutGraph(work NodeFunc) *Graph {
	g := New(log.NewNop())
	g.AddJunction("fan")
	g.AddNode("work", work)
	g.AddNode("join", appendTextNode("joined"))
	g.SetEntry("fan")
	g.AddFanOutEdge("fan", func(s *chain.State) []Send {
		sends := make([]Send, 0, len(s.Request.SelectedKeys))
		for _, key := range s.Request.SelectedKeys {
			child := *s
			child.Request.Question = key
			sends = append(sends, Send{Node: "work", State: child})
		}
		return sends
	}, "join")
	g.AddEdge("join", End)
	return g
}

func TestRunFanOutJoinsAllBranches(t *testing.T) {
	t.Parallel()

	var ran atomic.Int32
	g := fanOutGraph(func(_ context.Context, s *chain.State, _ *Sink) (*chain.Update, error) {
		ran.Add(1)
		doc := &chain.Document{
			ID:       chain.GroupID(s.Request.Question),
			Metadata: chain.DocumentMetadata{FileName: s.Request.Question, TokenCount: 1},
		}
		return &chain.Update{Documents: chain.GroupByFile([]*chain.Document{doc})}, nil
	})

	q := chain.Query{
		SelectedKeys: []string{"a.pdf", "b.pdf", "c.pdf"},
		Settings:     chain.Settings{MapMaxConcurrency: 2},
	}
	state, err := g.Run(context.Background(), q)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if ran.Load() != 3 {
		t.Fatalf("ran %d branches, want 3", ran.Load())
	}
	if len(state.Documents) != 3 {
		t.Fatalf("joined %d groups, want 3", len(state.Documents))
	}
	// The join runs only after every branch has completed.
	if state.Text != "joined" {
		t.Fatalf("text = %q, want joined", state.Text)
	}
}

func TestRunFanOutAbortsOnBranchFailure(t *testing.T) {
	t.Parallel()

	branchErr := errors.New("branch failed")
	g := fanOutGraph(func(_ context.Context, s *chain.State, _ *Sink) (*chain.Update, error) {
		if s.Request.Question == "bad.pdf" {
			return nil, branchErr
		}
		return nil, nil
	})

	q := chain.Query{
		SelectedKeys: []string{"a.pdf", "bad.pdf"},
		Settings:     chain.Settings{MapMaxConcurrency: 2},
	}
	state, err := g.Run(context.Background(), q)
	if !errors.Is(err, branchErr) {
		t.Fatalf("err = %v, want wrapped branch error", err)
	}
	if state.Text == "joined" {
		t.Fatal("join must not run after an aborted fan-out")
	}
}

func TestRunFanOutBestEffortSkipsFailures(t *testing.T) {
	t.Parallel()

	g := fanOutGraph(func(_ context.Context, s *chain.State, _ *Sink) (*chain.Update, error) {
		if s.Request.Question == "bad.pdf" {
			return nil, errors.New("branch failed")
		}
		doc := &chain.Document{
			ID:       chain.GroupID(s.Request.Question),
			Metadata: chain.DocumentMetadata{FileName: s.Request.Question, TokenCount: 1},
		}
		return &chain.Update{Documents: chain.GroupByFile([]*chain.Document{doc})}, nil
	})

	q := chain.Query{
		SelectedKeys: []string{"a.pdf", "bad.pdf", "c.pdf"},
		Settings:     chain.Settings{MapMaxConcurrency: 2, BestEffortFanOut: true},
	}
	state, err := g.Run(context.Background(), q)
	if err != nil {
		t.Fatalf("best-effort run must succeed: %v", err)
	}
	if len(state.Documents) != 2 {
		t.Fatalf("joined %d groups, want 2 surviving branches", len(state.Documents))
	}
	if state.Text != "joined" {
		t.Fatal("join must still run")
	}
}

func TestRunFanOutAllBranchesFailed(t *testing.T) {
	t.Parallel()

	g := fanOutGraph(func(context.Context, *chain.State, *Sink) (*chain.Update, error) {
		return nil, errors.New("branch failed")
	})

	q := chain.Query{
		SelectedKeys: []string{"a.pdf", "b.pdf"},
		Settings:     chain.Settings{MapMaxConcurrency: 2, BestEffortFanOut: true},
	}
	_, err := g.Run(context.Background(), q)
	if err == nil || !strings.Contains(err.Error(), "every fan-out branch failed") {
		t.Fatalf("err = %v, want every-branch failure", err)
	}
}

func TestRunFanOutNoSends(t *testing.T) {
	t.Parallel()

	g := New(log.NewNop())
	g.AddJunction("fan")
	g.AddNode("join", appendTextNode("joined"))
	g.SetEntry("fan")
	g.AddFanOutEdge("fan", func(*chain.State) []Send { return nil }, "join")
	g.AddEdge("join", End)

	state, err := g.Run(context.Background(), chain.Query{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Text != "joined" {
		t.Fatal("empty fan-out must fall through to the join")
	}
}
