package chain

// Backend names the chat model and provider to use for a request.
type Backend struct {
	Name     string
	Provider string
}

// Prompts holds the system and question prompt text for each route. Question
// prompts may reference {question} and {formatted_documents}; the prompt
// builder substitutes both.
type Prompts struct {
	ChatSystem   string
	ChatQuestion string

	ChatWithDocsSystem   string
	ChatWithDocsQuestion string

	ChatMapSystem   string
	ChatMapQuestion string

	SearchSystem   string
	SearchQuestion string
}

// Settings carries every numeric knob and prompt a request needs. A Settings
// value is constructed once per request and never mutated afterwards; nodes
// read it through State.Request.
type Settings struct {
	// Token limits
	MaxDocumentTokens int // hard ceiling on total selected-document tokens
	ContextWindowSize int
	LLMMaxTokens      int // reserved for model output

	// Retrieval
	RetrievalK          int
	NumCandidates       int
	MatchBoost          float64
	KNNBoost            float64
	SimilarityThreshold float64

	// Elbow filter
	ElbowFilterEnabled bool
	ElbowSensitivity   float64
	ScoreScalingFactor float64

	// Fan-out
	MapMaxConcurrency int
	// BestEffortFanOut lets a join proceed with the branches that succeeded
	// instead of failing the whole run on the first branch error.
	BestEffortFanOut bool

	ChatBackend Backend

	Prompts Prompts
}

// DefaultSettings returns the settings used when a request does not override
// them. Token limits follow common 128k-context chat models.
func DefaultSettings() Settings {
	return Settings{
		MaxDocumentTokens: 256_000,
		ContextWindowSize: 128_000,
		LLMMaxTokens:      1024,

		RetrievalK:          30,
		NumCandidates:       10,
		MatchBoost:          1,
		KNNBoost:            1,
		SimilarityThreshold: 0,

		ElbowFilterEnabled: false,
		ElbowSensitivity:   1,
		ScoreScalingFactor: 100,

		MapMaxConcurrency: 128,

		ChatBackend: Backend{Name: "gemini-2.5-flash", Provider: "googleai"},

		Prompts: DefaultPrompts(),
	}
}

// PromptSet selects which system/question prompt pair a node uses.
type PromptSet int

const (
	PromptSetChat PromptSet = iota
	PromptSetChatWithDocs
	PromptSetChatMapReduce
	PromptSetSearch
)

// PromptsFor returns the system and question prompt for the given set.
func (s Settings) PromptsFor(set PromptSet) (system, question string) {
	switch set {
	case PromptSetChatWithDocs:
		return s.Prompts.ChatWithDocsSystem, s.Prompts.ChatWithDocsQuestion
	case PromptSetChatMapReduce:
		return s.Prompts.ChatMapSystem, s.Prompts.ChatMapQuestion
	case PromptSetSearch:
		return s.Prompts.SearchSystem, s.Prompts.SearchQuestion
	default:
		return s.Prompts.ChatSystem, s.Prompts.ChatQuestion
	}
}

// DefaultPrompts returns the built-in prompt texts.
func DefaultPrompts() Prompts {
	return Prompts{
		ChatSystem: "You are a helpful assistant for government workers. " +
			"Answer in clear, plain language.",
		ChatQuestion: "{question}",

		ChatWithDocsSystem: "You are a helpful assistant answering questions " +
			"using the user's selected documents. Only use information from " +
			"the documents provided.",
		ChatWithDocsQuestion: "Question: {question}\n\nDocuments:\n\n{formatted_documents}",

		ChatMapSystem: "You summarise documents. Produce a faithful, " +
			"self-contained summary of the document you are given, keeping " +
			"every detail relevant to the user's question.",
		ChatMapQuestion: "Question: {question}\n\nDocument:\n\n{formatted_documents}",

		SearchSystem: "You answer questions using retrieved document " +
			"extracts. Cite only what the extracts support; say so when they " +
			"do not contain the answer.",
		SearchQuestion: "Question: {question}\n\nExtracts:\n\n{formatted_documents}",
	}
}
