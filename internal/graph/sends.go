package graph

import "github.com/koopa0/briefing/internal/chain"

// ChunkSends expands a state into one child per (group, document) pair.
// Each child carries a single live document; dispatch order is not
// significant because the join reducer is commutative.
func ChunkSends(target string) ExpandFunc {
	return func(s *chain.State) []Send {
		var sends []Send
		for groupID, group := range s.Documents {
			for docID, doc := range group {
				if doc == nil {
					continue
				}
				child := *s
				child.Documents = chain.DocumentState{
					groupID: chain.DocumentGroup{docID: doc},
				}
				sends = append(sends, Send{Node: target, State: child})
			}
		}
		return sends
	}
}

// GroupSends expands a state into one child per group that still holds more
// than one live document. Already-singleton groups have nothing to merge
// and are left alone.
func GroupSends(target string) ExpandFunc {
	return func(s *chain.State) []Send {
		var sends []Send
		for groupID, group := range s.Documents {
			live := chain.DocumentGroup{}
			for docID, doc := range group {
				if doc != nil {
					live[docID] = doc
				}
			}
			if len(live) < 2 {
				continue
			}
			child := *s
			child.Documents = chain.DocumentState{groupID: live}
			sends = append(sends, Send{Node: target, State: child})
		}
		return sends
	}
}
