package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/koopa0/briefing/internal/chain"
	"github.com/koopa0/briefing/internal/graph"
	"github.com/koopa0/briefing/internal/log"
)

// stubRunner plays back a fixed run: streamed tokens, one metadata event,
// then the final state.
type stubRunner struct {
	tokens []string
	event  *graph.MetadataEvent
	state  chain.State
	err    error

	// got records the query of the last Run call.
	got chain.Query
}

func (r *stubRunner) Run(ctx context.Context, q chain.Query, opts ...graph.RunOption) (chain.State, error) {
	r.got = q
	if r.err != nil {
		return chain.State{}, r.err
	}

	sink := &graph.Sink{}
	for _, opt := range opts {
		opt(sink)
	}
	for _, tok := range r.tokens {
		if err := sink.Token(ctx, tok); err != nil {
			return chain.State{}, err
		}
	}
	if r.event != nil {
		if err := sink.Metadata(ctx, *r.event); err != nil {
			return chain.State{}, err
		}
	}
	return r.state, nil
}

func newTestServer(t *testing.T, runner Runner) *Server {
	t.Helper()

	srv, err := NewServer(ServerConfig{
		Logger:   log.NewNop(),
		Runner:   runner,
		Settings: chain.DefaultSettings(),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func TestChatSend(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{
		state: chain.State{
			Text:  "Testing Response 1",
			Route: chain.RouteChatWithDocs,
			Citations: []chain.SourceDocument{
				{FileName: "a.pdf", Snippet: "extract"},
			},
			Metadata: &chain.RequestMetadata{
				LLMCalls: []chain.LLMCall{chain.NewLLMCall("test-model", 10, 5)},
			},
		},
	}
	srv := newTestServer(t, runner)

	body := `{
		"question": "What is AI?",
		"selectedFiles": ["a.pdf"],
		"permittedFiles": ["a.pdf", "b.pdf"],
		"history": [{"role": "user", "text": "hi"}, {"role": "ai", "text": "hello"}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Text != "Testing Response 1" || resp.Route != "chat_with_docs" {
		t.Fatalf("response = %+v", resp)
	}
	if len(resp.Citations) != 1 || resp.Citations[0].FileName != "a.pdf" {
		t.Fatalf("citations = %v", resp.Citations)
	}
	if resp.Usage["test-model"] != 5 {
		t.Fatalf("usage = %v", resp.Usage)
	}

	// The parsed query must carry the request's selection and history.
	if len(runner.got.SelectedKeys) != 1 || len(runner.got.PermittedKeys) != 2 {
		t.Fatalf("query keys = %+v", runner.got)
	}
	if len(runner.got.History) != 2 || runner.got.History[1].Role != chain.RoleAI {
		t.Fatalf("query history = %+v", runner.got.History)
	}
	if runner.got.Settings.ContextWindowSize == 0 {
		t.Fatal("server settings must be stamped onto the query")
	}
}

func TestChatSendInvalidBody(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubRunner{})

	tests := []struct {
		name string
		body string
	}{
		{"not json", "not json"},
		{"empty question", `{"question": ""}`},
		{"empty body", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

// parseSSE splits a response body into (event, data) pairs.
func parseSSE(t *testing.T, body string) [][2]string {
	t.Helper()

	var events [][2]string
	var event string
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			events = append(events, [2]string{event, strings.TrimPrefix(line, "data: ")})
		}
	}
	return events
}

func TestChatStream(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{
		tokens: []string{"Testing ", "Response ", "1"},
		event: &graph.MetadataEvent{
			Route:     chain.RouteChat,
			Citations: nil,
		},
		state: chain.State{Text: "Testing Response 1", Route: chain.RouteChat},
	}
	srv := newTestServer(t, runner)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream",
		strings.NewReader(`{"question": "What is AI?"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	events := parseSSE(t, rec.Body.String())
	if len(events) != 5 {
		t.Fatalf("events = %d, want 3 tokens + metadata + done:\n%s", len(events), rec.Body.String())
	}

	var streamed strings.Builder
	for _, ev := range events[:3] {
		if ev[0] != EventToken {
			t.Fatalf("event = %q, want token", ev[0])
		}
		var p TokenPayload
		if err := json.Unmarshal([]byte(ev[1]), &p); err != nil {
			t.Fatalf("decode token payload: %v", err)
		}
		streamed.WriteString(p.Text)
	}
	if streamed.String() != "Testing Response 1" {
		t.Fatalf("streamed = %q", streamed.String())
	}

	if events[3][0] != EventMetadata {
		t.Fatalf("event = %q, want metadata", events[3][0])
	}
	var meta MetadataPayload
	if err := json.Unmarshal([]byte(events[3][1]), &meta); err != nil {
		t.Fatalf("decode metadata payload: %v", err)
	}
	if meta.Route != "chat" {
		t.Fatalf("route = %q", meta.Route)
	}

	if events[4][0] != EventDone {
		t.Fatalf("event = %q, want done", events[4][0])
	}
	var done ChatResponse
	if err := json.Unmarshal([]byte(events[4][1]), &done); err != nil {
		t.Fatalf("decode done payload: %v", err)
	}
	if done.Text != "Testing Response 1" {
		t.Fatalf("done text = %q", done.Text)
	}
}

func TestChatStreamRunError(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{err: context.DeadlineExceeded}
	srv := newTestServer(t, runner)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream",
		strings.NewReader(`{"question": "What is AI?"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	events := parseSSE(t, rec.Body.String())
	if len(events) != 1 || events[0][0] != EventError {
		t.Fatalf("events = %v, want single error event", events)
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubRunner{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("/health status = %d", rec.Code)
	}

	// With no pool configured, readiness degrades to a plain liveness check.
	req = httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("/ready status = %d", rec.Code)
	}
}

func TestNewServerRequiresRunner(t *testing.T) {
	t.Parallel()

	if _, err := NewServer(ServerConfig{Logger: log.NewNop()}); err == nil {
		t.Fatal("expected error for missing runner")
	}
}
