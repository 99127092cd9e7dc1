// Package chain defines the conversation state that flows through the
// orchestration graph, together with the reducers that merge partial state
// updates coming back from concurrent branches.
//
// The central type is State: one value per request, owned exclusively by the
// node currently executing. Nodes never mutate a State in place; they return
// an Update which the engine folds in via State.Apply. Fan-out branches each
// receive their own copy and their results are joined through the same
// reducers, so merge order between sibling branches must not matter.
//
// Reducer semantics follow tombstone rules: a nil document deletes that
// document from its group, a nil group deletes the whole group, and a group
// that becomes empty is removed. Token-usage metadata only ever grows.
package chain
