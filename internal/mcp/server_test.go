package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/furon-kuina/semleaf/domain/phrase"
	"github.com/furon-kuina/semleaf/domain/search"
	"github.com/furon-kuina/semleaf/infrastructure/api/v1/dto"
)

// fakeSearcher records its arguments and returns canned phrases.
type fakeSearcher struct {
	phrases []phrase.Phrase
	err     error
	query   string
	limit   int
}

func (f *fakeSearcher) Semantic(_ context.Context, query string, limit int) ([]phrase.Phrase, error) {
	f.query, f.limit = query, limit
	return f.phrases, f.err
}

func (f *fakeSearcher) Text(_ context.Context, pattern string, limit int) ([]phrase.Phrase, error) {
	f.query, f.limit = pattern, limit
	return f.phrases, f.err
}

// fakeLookup serves phrases from a map.
type fakeLookup struct {
	phrases map[string]phrase.Phrase
}

func (f *fakeLookup) Get(_ context.Context, id string) (phrase.Phrase, error) {
	p, ok := f.phrases[id]
	if !ok {
		return phrase.Phrase{}, fmt.Errorf("%w: %s", phrase.ErrNotFound, id)
	}
	return p, nil
}

// sendMessage marshals a JSON-RPC request, sends it through HandleMessage,
// and returns the JSONRPCResponse.
func sendMessage(t *testing.T, srv *Server, method string, id int, params map[string]any) mcp.JSONRPCResponse {
	t.Helper()

	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		msg["params"] = params
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	result := srv.MCPServer().HandleMessage(context.Background(), raw)

	resp, ok := result.(mcp.JSONRPCResponse)
	if !ok {
		t.Fatalf("expected JSONRPCResponse, got %T: %+v", result, result)
	}
	return resp
}

// resultJSON re-marshals the Result field through JSON into dst.
func resultJSON(t *testing.T, resp mcp.JSONRPCResponse, dst any) {
	t.Helper()
	b, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		t.Fatalf("unmarshal result into %T: %v", dst, err)
	}
}

func textFromContent(t *testing.T, result mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	b, err := json.Marshal(result.Content[0])
	if err != nil {
		t.Fatalf("marshal content: %v", err)
	}
	var tc struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(b, &tc); err != nil {
		t.Fatalf("unmarshal text content: %v", err)
	}
	return tc.Text
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) mcp.CallToolResult {
	t.Helper()
	sendMessage(t, srv, "initialize", 1, initializeParams())
	resp := sendMessage(t, srv, "tools/call", 2, map[string]any{
		"name":      name,
		"arguments": args,
	})
	var result mcp.CallToolResult
	resultJSON(t, resp, &result)
	return result
}

func testPhrase() phrase.Phrase {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	id := "0b8a3c52-1111-4000-8000-000000000042"
	return phrase.Reconstruct(
		id,
		"break the ice",
		"",
		[]string{"idiom"},
		"",
		[]phrase.Meaning{
			phrase.ReconstructMeaning("m1", id, "start a conversation", []float64{1, 0}, 0, at),
			phrase.ReconstructMeaning("m2", id, "ease tension", []float64{0, 1}, 1, at),
		},
		1, at, at,
	)
}

func testServer(searcher *fakeSearcher) *Server {
	p := testPhrase()
	return NewServer(searcher, &fakeLookup{phrases: map[string]phrase.Phrase{p.ID(): p}}, "0.1.0-test", nil)
}

func initializeParams() map[string]any {
	return map[string]any{
		"protocolVersion": "2025-06-18",
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "test-client",
			"version": "0.0.1",
		},
	}
}

func TestServer_Initialize(t *testing.T) {
	srv := testServer(&fakeSearcher{})
	resp := sendMessage(t, srv, "initialize", 1, initializeParams())

	var result mcp.InitializeResult
	resultJSON(t, resp, &result)

	if result.ServerInfo.Name != "semleaf" {
		t.Errorf("expected server name semleaf, got %s", result.ServerInfo.Name)
	}
	if result.ServerInfo.Version != "0.1.0-test" {
		t.Errorf("expected version 0.1.0-test, got %s", result.ServerInfo.Version)
	}
	if result.Capabilities.Tools == nil {
		t.Error("expected tools capability to be present")
	}
}

func TestServer_ListTools(t *testing.T) {
	srv := testServer(&fakeSearcher{})
	sendMessage(t, srv, "initialize", 1, initializeParams())

	resp := sendMessage(t, srv, "tools/list", 2, nil)

	var result mcp.ListToolsResult
	resultJSON(t, resp, &result)

	required := map[string]string{
		"search_phrases": "query",
		"find_phrases":   "pattern",
		"get_phrase":     "id",
	}
	if len(result.Tools) != len(required) {
		t.Fatalf("expected %d tools, got %d", len(required), len(result.Tools))
	}
	for _, tool := range result.Tools {
		param, ok := required[tool.Name]
		if !ok {
			t.Errorf("unexpected tool: %s", tool.Name)
			continue
		}
		found := false
		for _, r := range tool.InputSchema.Required {
			if r == param {
				found = true
			}
		}
		if !found {
			t.Errorf("%s should require %s", tool.Name, param)
		}
	}
}

func TestServer_SearchPhrases(t *testing.T) {
	searcher := &fakeSearcher{phrases: []phrase.Phrase{testPhrase()}}
	srv := testServer(searcher)

	result := callTool(t, srv, "search_phrases", map[string]any{"query": "make people comfortable", "limit": 5})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", textFromContent(t, result))
	}
	if searcher.query != "make people comfortable" || searcher.limit != 5 {
		t.Errorf("searcher got (%q, %d)", searcher.query, searcher.limit)
	}

	var items []dto.Phrase
	if err := json.Unmarshal([]byte(textFromContent(t, result)), &items); err != nil {
		t.Fatalf("unmarshal results: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 result, got %d", len(items))
	}
	if items[0].Phrase != "break the ice" {
		t.Errorf("expected break the ice, got %s", items[0].Phrase)
	}
	if strings.Join(items[0].Meanings, "|") != "start a conversation|ease tension" {
		t.Errorf("unexpected meanings %v", items[0].Meanings)
	}
	if strings.Contains(textFromContent(t, result), "embedding") {
		t.Error("embeddings must not be exposed")
	}
}

func TestServer_FindPhrasesDefaultsLimit(t *testing.T) {
	searcher := &fakeSearcher{}
	srv := testServer(searcher)

	result := callTool(t, srv, "find_phrases", map[string]any{"pattern": "ICE"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", textFromContent(t, result))
	}
	if searcher.query != "ICE" || searcher.limit != 0 {
		t.Errorf("searcher got (%q, %d)", searcher.query, searcher.limit)
	}
	if got := textFromContent(t, result); got != "[]" {
		t.Errorf("expected empty array, got %s", got)
	}
}

func TestServer_MissingArguments(t *testing.T) {
	srv := testServer(&fakeSearcher{})

	for tool, msg := range map[string]string{
		"search_phrases": "query is required",
		"find_phrases":   "pattern is required",
		"get_phrase":     "id is required",
	} {
		result := callTool(t, srv, tool, map[string]any{})
		if !result.IsError {
			t.Errorf("%s: expected error response", tool)
			continue
		}
		if got := textFromContent(t, result); got != msg {
			t.Errorf("%s: expected %q, got %q", tool, msg, got)
		}
	}
}

func TestServer_GetPhrase(t *testing.T) {
	srv := testServer(&fakeSearcher{})

	result := callTool(t, srv, "get_phrase", map[string]any{"id": testPhrase().ID()})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", textFromContent(t, result))
	}
	var item dto.Phrase
	if err := json.Unmarshal([]byte(textFromContent(t, result)), &item); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if item.ID != testPhrase().ID() {
		t.Errorf("expected id %s, got %s", testPhrase().ID(), item.ID)
	}
	text := textFromContent(t, result)
	if !strings.Contains(text, `"source":null`) || !strings.Contains(text, `"memo":null`) {
		t.Errorf("absent source and memo should be null, got %s", text)
	}

	result = callTool(t, srv, "get_phrase", map[string]any{"id": "missing"})
	if !result.IsError || textFromContent(t, result) != "phrase not found" {
		t.Errorf("expected not found error, got %+v", result)
	}
}

func TestServer_HidesInternalErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", fmt.Errorf("%w: query is blank", phrase.ErrValidation), "validation failed: query is blank"},
		{"embedding", fmt.Errorf("%w: status 500 from provider", search.ErrEmbedding), "embedding service error"},
		{"storage", fmt.Errorf("%w: select: connection refused", phrase.ErrStorage), "internal error"},
		{"other", errors.New("boom"), "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(&fakeSearcher{err: tt.err})
			result := callTool(t, srv, "search_phrases", map[string]any{"query": "anything"})
			if !result.IsError {
				t.Fatal("expected error response")
			}
			if got := textFromContent(t, result); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// Ensure fakes satisfy interfaces at compile time.
var (
	_ Searcher     = (*fakeSearcher)(nil)
	_ PhraseLookup = (*fakeLookup)(nil)
)
