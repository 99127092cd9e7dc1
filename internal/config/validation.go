package config

import (
	"fmt"
	"slices"
)

var validSSLModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// Validate checks the configuration for consistency. It fails fast with a
// sentinel error wrapped in context so callers can classify failures with
// errors.Is.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGoogleAI, ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: %q (expected googleai, ollama, or openai)", ErrInvalidProvider, c.Provider)
	}
	if c.ModelName == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}

	if c.ContextWindowSize <= 0 {
		return fmt.Errorf("%w: context window must be positive, got %d", ErrInvalidTokenLimits, c.ContextWindowSize)
	}
	if c.LLMMaxTokens <= 0 || c.LLMMaxTokens >= c.ContextWindowSize {
		return fmt.Errorf("%w: llm_max_tokens %d must be positive and below the context window %d",
			ErrInvalidTokenLimits, c.LLMMaxTokens, c.ContextWindowSize)
	}
	if c.MaxDocumentTokens <= 0 {
		return fmt.Errorf("%w: max_document_tokens must be positive, got %d", ErrInvalidTokenLimits, c.MaxDocumentTokens)
	}

	if c.RetrievalK <= 0 {
		return fmt.Errorf("%w: retrieval_k must be positive, got %d", ErrInvalidRetrieval, c.RetrievalK)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity_threshold must be in [0,1], got %g", ErrInvalidRetrieval, c.SimilarityThreshold)
	}
	if c.ElbowSensitivity <= 0 {
		return fmt.Errorf("%w: elbow_sensitivity must be positive, got %g", ErrInvalidRetrieval, c.ElbowSensitivity)
	}
	if c.ScoreScalingFactor <= 0 {
		return fmt.Errorf("%w: score_scaling_factor must be positive, got %g", ErrInvalidRetrieval, c.ScoreScalingFactor)
	}
	if c.MapMaxConcurrency <= 0 {
		return fmt.Errorf("%w: map_max_concurrency must be positive, got %d", ErrInvalidRetrieval, c.MapMaxConcurrency)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name is empty", ErrInvalidPostgresDBName)
	}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidServerPort, c.ServerPort)
	}
	return nil
}
