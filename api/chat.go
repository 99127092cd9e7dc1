package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/koopa0/briefing/internal/chain"
	"github.com/koopa0/briefing/internal/graph"
	"github.com/koopa0/briefing/internal/log"
	"github.com/koopa0/briefing/internal/prompt"
)

// maxRequestBytes bounds the chat request body.
const maxRequestBytes = 1024 * 1024

// SSE event types for chat streaming.
const (
	EventToken    = "token"    // Partial answer text
	EventMetadata = "metadata" // Route, citations, token usage
	EventDone     = "done"     // Stream completed successfully
	EventError    = "error"    // Error occurred during streaming
)

type chatHandler struct {
	runner   Runner
	settings chain.Settings
	logger   log.Logger
}

// ChatRequest is the JSON body of both chat endpoints.
type ChatRequest struct {
	Question       string           `json:"question"`
	SelectedFiles  []string         `json:"selectedFiles"`
	PermittedFiles []string         `json:"permittedFiles"`
	UserID         string           `json:"userId"`
	History        []HistoryMessage `json:"history"`
}

// HistoryMessage is one prior conversation turn, oldest first.
type HistoryMessage struct {
	Role string `json:"role"` // "user" or "ai"
	Text string `json:"text"`
}

// ChatResponse is the final result of a run.
type ChatResponse struct {
	Text      string         `json:"text"`
	Route     string         `json:"route"`
	Citations []Citation     `json:"citations,omitempty"`
	Usage     map[string]int `json:"outputTokensByModel,omitempty"`
}

// Citation is one source document the answer drew on.
type Citation struct {
	FileName    string `json:"fileName"`
	PageNumbers []int  `json:"pageNumbers,omitempty"`
	Snippet     string `json:"snippet"`
}

// TokenPayload is the SSE data payload for streamed answer text.
type TokenPayload struct {
	Text string `json:"text"`
}

// MetadataPayload is the SSE data payload for metadata deltas.
type MetadataPayload struct {
	Route     string     `json:"route,omitempty"`
	Citations []Citation `json:"citations,omitempty"`
}

// ErrorPayload is the SSE data payload when an error occurs.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *chatHandler) parseRequest(w http.ResponseWriter, r *http.Request) (chain.Query, bool) {
	var req ChatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return chain.Query{}, false
	}
	if req.Question == "" {
		return chain.Query{}, false
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		userID = uuid.Nil
	}

	history := make([]chain.ChatMessage, 0, len(req.History))
	for _, m := range req.History {
		role := chain.RoleUser
		if m.Role == "ai" {
			role = chain.RoleAI
		}
		history = append(history, chain.ChatMessage{Role: role, Text: m.Text})
	}

	return chain.Query{
		Question:      req.Question,
		SelectedKeys:  req.SelectedFiles,
		PermittedKeys: req.PermittedFiles,
		UserID:        userID,
		History:       history,
		Settings:      h.settings,
	}, true
}

func toResponse(s chain.State) ChatResponse {
	resp := ChatResponse{
		Text:      s.Text,
		Route:     string(s.Route),
		Citations: toCitations(s.Citations),
	}
	if s.Metadata != nil {
		resp.Usage = s.Metadata.OutputTokensByModel()
	}
	return resp
}

func toCitations(sources []chain.SourceDocument) []Citation {
	citations := make([]Citation, 0, len(sources))
	for _, src := range sources {
		citations = append(citations, Citation{
			FileName:    src.FileName,
			PageNumbers: src.PageNumbers,
			Snippet:     src.Snippet,
		})
	}
	return citations
}

// send handles the synchronous chat endpoint.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseRequest(w, r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "question is required", h.logger)
		return
	}

	state, err := h.runner.Run(r.Context(), q)
	if err != nil {
		h.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(state))
}

func (h *chatHandler) writeRunError(w http.ResponseWriter, err error) {
	if errors.Is(err, prompt.ErrQuestionTooLong) {
		writeError(w, http.StatusUnprocessableEntity, "question_too_long",
			"The question is too long for the model's context window.", h.logger)
		return
	}
	h.logger.Error("chat run failed", "error", err)
	writeError(w, http.StatusInternalServerError, "run_failed", "chat request failed", h.logger)
}

// stream handles the SSE streaming chat endpoint. Answer text is forwarded
// as token events while the final node generates it; route and citations
// arrive as metadata events; a done event carries the complete response.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	q, ok := h.parseRequest(w, r)
	if !ok {
		_ = writeEvent(w, flusher, EventError, ErrorPayload{
			Code:    "invalid_request",
			Message: "question is required",
		})
		return
	}

	ctx := r.Context()
	state, err := h.runner.Run(ctx, q,
		graph.WithTokenCallback(func(ctx context.Context, delta string) error {
			return writeEvent(w, flusher, EventToken, TokenPayload{Text: delta})
		}),
		graph.WithMetadataCallback(func(ctx context.Context, ev graph.MetadataEvent) error {
			return writeEvent(w, flusher, EventMetadata, MetadataPayload{
				Route:     string(ev.Route),
				Citations: toCitations(ev.Citations),
			})
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			h.logger.Info("client disconnected mid-stream")
			return
		}
		h.streamError(w, flusher, err)
		return
	}

	_ = writeEvent(w, flusher, EventDone, toResponse(state))
}

func (h *chatHandler) streamError(w io.Writer, f http.Flusher, err error) {
	code := "run_failed"
	if errors.Is(err, prompt.ErrQuestionTooLong) {
		code = "question_too_long"
	} else {
		h.logger.Error("chat stream failed", "error", err)
	}
	_ = writeEvent(w, f, EventError, ErrorPayload{Code: code, Message: err.Error()})
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	flusher.Flush()
	return nil
}
