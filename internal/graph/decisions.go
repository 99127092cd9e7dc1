package graph

import (
	"regexp"
	"strings"

	"github.com/koopa0/briefing/internal/chain"
	"github.com/koopa0/briefing/internal/prompt"
	"github.com/koopa0/briefing/internal/retrieval"
)

// Decision is the label a route decision resolves to. Decisions are pure
// functions of state; the graph wiring maps each label to a next node
// explicitly and exhaustively.
type Decision string

const (
	// Keyword decision
	DecisionSearch  Decision = "search"
	DecisionDefault Decision = "default"

	// Document-count decision
	DecisionChat      Decision = "chat"
	DecisionDocuments Decision = "documents"

	// Token-budget decision
	DecisionTooLarge  Decision = "too_large"
	DecisionMapReduce Decision = "map_reduce"
	DecisionStuff     Decision = "stuff"

	// Group-resolution decision
	DecisionMorePasses Decision = "more_passes"
	DecisionDone       Decision = "done"
)

var keywordPattern = regexp.MustCompile(`@(\w+)`)

// routableKeywords maps a question's @keyword to its decision. Unknown
// keywords are not an error; they fall through to default routing.
var routableKeywords = map[string]Decision{
	"search": DecisionSearch,
}

// KeywordDecision scans the question for an @keyword and returns the
// decision it routes to, or DecisionDefault when there is none or it is
// unknown.
func KeywordDecision(question string) Decision {
	m := keywordPattern.FindStringSubmatch(question)
	if m == nil {
		return DecisionDefault
	}
	if d, ok := routableKeywords[strings.ToLower(m[1])]; ok {
		return d
	}
	return DecisionDefault
}

// DocumentCountDecision routes on how many files the request effectively
// selected: none means plain chat, otherwise the documents path.
func DocumentCountDecision(q chain.Query) Decision {
	if len(retrieval.EffectiveKeys(q.SelectedKeys, q.PermittedKeys, nil)) == 0 {
		return DecisionChat
	}
	return DecisionDocuments
}

// TokenBudgetDecision routes on the size of the retrieved documents. The
// hard ceiling check takes priority: documents over it resolve to the
// too-large terminal route no matter what. Below the ceiling, documents
// that do not fit the remaining context budget (window minus reserved
// output minus system and task prompts) go to map-reduce; anything smaller
// is stuffed directly.
func TokenBudgetDecision(s *chain.State, tok prompt.Tokeniser) Decision {
	settings := s.Request.Settings
	total := s.Documents.TotalTokens()

	if total > settings.MaxDocumentTokens {
		return DecisionTooLarge
	}

	system, question := settings.PromptsFor(chain.PromptSetChatWithDocs)
	task := strings.ReplaceAll(question, "{question}", s.Request.Question)
	task = strings.ReplaceAll(task, "{formatted_documents}", "")

	budget := settings.ContextWindowSize - settings.LLMMaxTokens -
		tok.Encode(system) - tok.Encode(task)
	if total > budget {
		return DecisionMapReduce
	}
	return DecisionStuff
}

// GroupResolutionDecision reports whether another map pass is needed: some
// group still holds more than one live document.
func GroupResolutionDecision(ds chain.DocumentState) Decision {
	if ds.MultipleDocsInAnyGroup() {
		return DecisionMorePasses
	}
	return DecisionDone
}
