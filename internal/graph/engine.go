// Package graph runs one chat request through a directed graph of nodes:
// LLM calls, retrieval calls, and pure transforms. Edges are static,
// conditional on state, or fan-out points that expand the state into child
// states, run them in parallel, and join the results through the document
// reducer.
package graph

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/koopa0/briefing/internal/chain"
	"github.com/koopa0/briefing/internal/log"
)

// End is the terminal pseudo-node. An edge pointing at End finishes the run.
const End = "end"

// maxSteps bounds the node walk so a mis-wired conditional loop cannot spin
// forever. The map-reduce loop converges in a handful of passes; anything
// near this limit is a bug.
const maxSteps = 256

// NodeFunc is the body of one node. It reads the state, may call out
// through the sink, and describes its changes as a partial update. It must
// not mutate the state it is given.
type NodeFunc func(ctx context.Context, s *chain.State, sink *Sink) (*chain.Update, error)

// DecideFunc picks the next node from the current state. Pure, no side
// effects.
type DecideFunc func(s *chain.State) string

// Send dispatches one child state to a node during fan-out.
type Send struct {
	Node  string
	State chain.State
}

// ExpandFunc expands a state into the child states of one fan-out.
type ExpandFunc func(s *chain.State) []Send

type edge struct {
	to     string
	decide DecideFunc
	expand ExpandFunc
	join   string
}

// Graph is a fixed node/edge topology, built once and run per request.
// Safe for concurrent Run calls.
type Graph struct {
	entry  string
	nodes  map[string]NodeFunc
	edges  map[string]edge
	logger log.Logger
}

// New creates an empty graph.
func New(logger log.Logger) *Graph {
	return &Graph{
		nodes:  map[string]NodeFunc{},
		edges:  map[string]edge{},
		logger: logger,
	}
}

// AddNode registers a node body under a name.
func (g *Graph) AddNode(name string, fn NodeFunc) {
	g.nodes[name] = fn
}

// AddJunction registers a node with no body, useful as an anchor for a
// conditional or fan-out edge.
func (g *Graph) AddJunction(name string) {
	g.nodes[name] = nil
}

// SetEntry sets the node a run starts at.
func (g *Graph) SetEntry(name string) {
	g.entry = name
}

// AddEdge wires a static edge.
func (g *Graph) AddEdge(from, to string) {
	g.edges[from] = edge{to: to}
}

// AddConditionalEdge wires an edge whose target is decided from the state
// at runtime.
func (g *Graph) AddConditionalEdge(from string, decide DecideFunc) {
	g.edges[from] = edge{decide: decide}
}

// AddFanOutEdge wires a fan-out point: expand produces the child sends, and
// once every child has completed and been joined, execution continues at
// join.
func (g *Graph) AddFanOutEdge(from string, expand ExpandFunc, join string) {
	g.edges[from] = edge{expand: expand, join: join}
}

func (g *Graph) validate() error {
	if g.entry == "" {
		return errors.New("graph has no entry node")
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return fmt.Errorf("entry node %q not registered", g.entry)
	}
	for from, e := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return fmt.Errorf("edge from unregistered node %q", from)
		}
		if e.to != "" && e.to != End {
			if _, ok := g.nodes[e.to]; !ok {
				return fmt.Errorf("edge %q -> unregistered node %q", from, e.to)
			}
		}
		if e.expand != nil && e.join != End {
			if _, ok := g.nodes[e.join]; !ok {
				return fmt.Errorf("fan-out %q joins at unregistered node %q", from, e.join)
			}
		}
	}
	return nil
}

// Run executes the graph for one request and returns the final state. Nodes
// run sequentially along the decided route; fan-out children run in
// parallel up to the request's concurrency limit. Cancellation of ctx stops
// the walk between nodes and aborts in-flight calls.
func (g *Graph) Run(ctx context.Context, q chain.Query, opts ...RunOption) (chain.State, error) {
	if err := g.validate(); err != nil {
		return chain.State{}, err
	}

	sink := &Sink{}
	for _, opt := range opts {
		opt(sink)
	}

	state := chain.State{Request: q}
	current := g.entry

	for steps := 0; current != End; steps++ {
		if steps >= maxSteps {
			return state, fmt.Errorf("run exceeded %d steps at node %q", maxSteps, current)
		}
		if err := ctx.Err(); err != nil {
			return state, err
		}

		fn, ok := g.nodes[current]
		if !ok {
			return state, fmt.Errorf("walked into unregistered node %q", current)
		}
		if fn != nil {
			update, err := fn(ctx, &state, sink)
			if err != nil {
				return state, fmt.Errorf("node %q: %w", current, err)
			}
			state = state.Apply(update)
		}

		e, ok := g.edges[current]
		if !ok {
			return state, fmt.Errorf("node %q has no outgoing edge", current)
		}
		switch {
		case e.expand != nil:
			joined, err := g.runFanOut(ctx, &state, e.expand, sink)
			if err != nil {
				return state, err
			}
			state = joined
			current = e.join
		case e.decide != nil:
			current = e.decide(&state)
		default:
			current = e.to
		}
	}

	return state, nil
}

// runFanOut dispatches every send in parallel, waits for all of them, and
// folds each child's update into the parent state. The join is a hard
// barrier. On the first child failure the remaining children are cancelled
// and the whole fan-out fails, unless the request opted into best-effort
// joins, in which case failed branches are logged and skipped; a fan-out
// where every branch failed still fails.
func (g *Graph) runFanOut(ctx context.Context, state *chain.State, expand ExpandFunc, sink *Sink) (chain.State, error) {
	sends := expand(state)
	if len(sends) == 0 {
		return *state, nil
	}

	limit := state.Request.Settings.MapMaxConcurrency
	if limit <= 0 {
		limit = 1
	}
	bestEffort := state.Request.Settings.BestEffortFanOut

	results := make(chan *chain.Update, len(sends))
	failures := make(chan error, len(sends))

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(limit)
	for _, send := range sends {
		grp.Go(func() error {
			fn, ok := g.nodes[send.Node]
			if !ok || fn == nil {
				return fmt.Errorf("fan-out targets unregistered node %q", send.Node)
			}
			child := send.State
			update, err := fn(grpCtx, &child, sink)
			if err != nil {
				err = fmt.Errorf("fan-out branch %q: %w", send.Node, err)
				if bestEffort {
					g.logger.Warn("fan-out branch failed, continuing", "node", send.Node, "error", err)
					failures <- err
					return nil
				}
				return err
			}
			results <- update
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return *state, err
	}
	close(results)
	close(failures)

	if len(results) == 0 {
		var errs []error
		for err := range failures {
			errs = append(errs, err)
		}
		return *state, fmt.Errorf("every fan-out branch failed: %w", errors.Join(errs...))
	}

	joined := *state
	for update := range results {
		joined = joined.Apply(update)
	}
	return joined, nil
}
