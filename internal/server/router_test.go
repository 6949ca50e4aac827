package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/amiaygpt/chat-platform/internal/config"
	"github.com/amiaygpt/chat-platform/internal/llm"
	"github.com/amiaygpt/chat-platform/internal/server"
	"github.com/amiaygpt/chat-platform/internal/store"
	"github.com/amiaygpt/chat-platform/pkg/logger"
)

type mockLLM struct {
	mu  sync.Mutex
	err error
}

func (m *mockLLM) Complete(_ context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	last := req.Messages[len(req.Messages)-1].Content
	return &llm.CompletionResponse{Content: "echo: " + last, Model: req.Model, TokensIn: 10, TokensOut: 4}, nil
}

func (m *mockLLM) Name() string { return "mock" }

func (m *mockLLM) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

type testServer struct {
	http.Handler
	store *store.Store
	llm   *mockLLM
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	st, err := store.Open(context.Background(), store.Config{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{
		Env:                   "test",
		CORSAllowedOrigins:    []string{"http://localhost:3000"},
		JWTSecret:             "test-secret",
		JWTExpiration:         time.Hour,
		BcryptCost:            4,
		DefaultModel:          "gpt-3.5-turbo",
		CompletionMaxTokens:   1000,
		CompletionTemperature: 0.7,
		CompletionTimeout:     5 * time.Second,
		RateLimitRequests:     10000,
		RateLimitWindow:       time.Minute,
		AuthRateLimitRequests: 10000,
	}

	mock := &mockLLM{}
	h := server.NewRouter(server.Options{
		Config: cfg,
		Logger: logger.NewNop(),
		Store:  st,
		LLM:    mock,
	})
	return &testServer{Handler: h, store: st, llm: mock}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func (s *testServer) register(t *testing.T, username string) (token string, userID uint64) {
	t.Helper()

	w := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "Secret123",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d, body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID uint64 `json:"id"`
		} `json:"user"`
	}
	decode(t, w, &resp)
	return resp.Token, resp.User.ID
}

func (s *testServer) createConversation(t *testing.T, token string) string {
	t.Helper()

	w := s.do(t, http.MethodPost, "/api/conversations", token, map[string]string{})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d, body=%s", w.Code, w.Body.String())
	}
	var conv struct {
		ID string `json:"id"`
	}
	decode(t, w, &conv)
	return conv.ID
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()

	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode %q: %v", w.Body.String(), err)
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var resp struct {
		Code string `json:"code"`
	}
	decode(t, w, &resp)
	return resp.Code
}

type conversationBody struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	IsArchived bool   `json:"is_archived"`
	Messages   []struct {
		Role       string `json:"role"`
		Content    string `json:"content"`
		TokensUsed *int   `json:"tokens_used"`
	} `json:"messages"`
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/health", "/api/health", "/ready"} {
		if w := srv.do(t, http.MethodGet, path, "", nil); w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
	}
}

func TestSecurityAndCORSHeaders(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/health", "", nil)
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q", got)
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/conversations", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/conversations", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected Access-Control-Allow-Origin %q", got)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/nope", "", nil)
	if w.Code != http.StatusNotFound || errorCode(t, w) != "ROUTE_NOT_FOUND" {
		t.Fatalf("expected ROUTE_NOT_FOUND, got %d %s", w.Code, w.Body.String())
	}
}

func TestConversationRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/conversations", "", nil)
	if w.Code != http.StatusUnauthorized || errorCode(t, w) != "TOKEN_MISSING" {
		t.Fatalf("expected TOKEN_MISSING, got %d %s", w.Code, w.Body.String())
	}

	w = srv.do(t, http.MethodGet, "/api/conversations", "garbage", nil)
	if w.Code != http.StatusForbidden || errorCode(t, w) != "TOKEN_INVALID" {
		t.Fatalf("expected TOKEN_INVALID, got %d %s", w.Code, w.Body.String())
	}
}

func TestRegisterNeverReturnsPasswordHash(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "Secret123",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d, body=%s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Fatalf("response leaks password data: %s", w.Body.String())
	}

	w = srv.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice",
		"email":    "other@example.com",
		"password": "Secret123",
	})
	if w.Code != http.StatusConflict || errorCode(t, w) != "USER_EXISTS" {
		t.Fatalf("expected USER_EXISTS, got %d %s", w.Code, w.Body.String())
	}

	w = srv.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "b",
		"email":    "bad",
		"password": "weak",
	})
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "VALIDATION_FAILED" {
		t.Fatalf("expected VALIDATION_FAILED, got %d %s", w.Code, w.Body.String())
	}

	token, _ := srv.register(t, "carol")
	w = srv.do(t, http.MethodGet, "/api/auth/profile", token, nil)
	if w.Code != http.StatusOK || strings.Contains(w.Body.String(), "password") {
		t.Fatalf("unexpected profile response %d %s", w.Code, w.Body.String())
	}
}

func TestLoginInactiveAccountIsDisabled(t *testing.T) {
	srv := newTestServer(t)
	token, userID := srv.register(t, "alice")

	if err := srv.store.SetUserActive(context.Background(), userID, false); err != nil {
		t.Fatalf("SetUserActive failed: %v", err)
	}

	w := srv.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "Secret123",
	})
	if w.Code != http.StatusUnauthorized || errorCode(t, w) != "ACCOUNT_DISABLED" {
		t.Fatalf("expected ACCOUNT_DISABLED, got %d %s", w.Code, w.Body.String())
	}

	// Existing tokens stop working too.
	w = srv.do(t, http.MethodGet, "/api/conversations", token, nil)
	if w.Code != http.StatusUnauthorized || errorCode(t, w) != "USER_INVALID" {
		t.Fatalf("expected USER_INVALID, got %d %s", w.Code, w.Body.String())
	}
}

func TestForeignConversationLooksMissing(t *testing.T) {
	srv := newTestServer(t)
	alice, _ := srv.register(t, "alice")
	bob, _ := srv.register(t, "bob")
	convID := srv.createConversation(t, alice)

	foreign := srv.do(t, http.MethodGet, "/api/conversations/"+convID, bob, nil)
	missing := srv.do(t, http.MethodGet, "/api/conversations/"+uuid.NewString(), bob, nil)

	if foreign.Code != http.StatusNotFound || missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404s, got %d and %d", foreign.Code, missing.Code)
	}
	if foreign.Body.String() != missing.Body.String() {
		t.Fatalf("bodies differ: %s vs %s", foreign.Body.String(), missing.Body.String())
	}
	if errorCode(t, foreign) != "CONVERSATION_NOT_FOUND" {
		t.Fatalf("unexpected body %s", foreign.Body.String())
	}
}

func TestFirstMessageSetsTitle(t *testing.T) {
	srv := newTestServer(t)
	token, _ := srv.register(t, "alice")
	convID := srv.createConversation(t, token)

	text := "Explain how a bicycle stays upright while moving forward at speed"
	w := srv.do(t, http.MethodPost, "/api/conversations/"+convID+"/messages", token, map[string]string{"message": text})
	if w.Code != http.StatusOK {
		t.Fatalf("send: expected 200, got %d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Conversation conversationBody `json:"conversation"`
		NewMessage   struct {
			Role       string `json:"role"`
			Content    string `json:"content"`
			TokensUsed int    `json:"tokens_used"`
		} `json:"newMessage"`
	}
	decode(t, w, &resp)

	if want := text[:50] + "..."; resp.Conversation.Title != want {
		t.Fatalf("title = %q, want %q", resp.Conversation.Title, want)
	}
	if resp.NewMessage.Role != "assistant" || resp.NewMessage.Content != "echo: "+text || resp.NewMessage.TokensUsed != 14 {
		t.Fatalf("unexpected new message %+v", resp.NewMessage)
	}
	if len(resp.Conversation.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(resp.Conversation.Messages))
	}

	w = srv.do(t, http.MethodGet, "/api/usage?days=1", token, nil)
	var usage struct {
		TotalMessagesSent int64 `json:"total_messages_sent"`
		TotalTokensUsed   int64 `json:"total_tokens_used"`
	}
	decode(t, w, &usage)
	if usage.TotalMessagesSent != 1 || usage.TotalTokensUsed != 14 {
		t.Fatalf("unexpected usage %+v", usage)
	}
}

func TestBlankMessageRejected(t *testing.T) {
	srv := newTestServer(t)
	token, _ := srv.register(t, "alice")
	convID := srv.createConversation(t, token)

	w := srv.do(t, http.MethodPost, "/api/conversations/"+convID+"/messages", token, map[string]string{"message": "   "})
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "MESSAGE_REQUIRED" {
		t.Fatalf("expected MESSAGE_REQUIRED, got %d %s", w.Code, w.Body.String())
	}
}

func TestFailedCompletionKeepsUserMessage(t *testing.T) {
	srv := newTestServer(t)
	token, _ := srv.register(t, "alice")
	convID := srv.createConversation(t, token)

	srv.llm.fail(errors.New("openai: upstream unavailable (status 503)"))

	w := srv.do(t, http.MethodPost, "/api/conversations/"+convID+"/messages", token, map[string]string{"message": "hello?"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d, body=%s", w.Code, w.Body.String())
	}
	var errBody struct {
		Code    string `json:"code"`
		Details string `json:"details"`
	}
	decode(t, w, &errBody)
	if errBody.Code != "OPENAI_ERROR" || errBody.Details != "openai: upstream unavailable (status 503)" {
		t.Fatalf("unexpected error body %+v", errBody)
	}

	w = srv.do(t, http.MethodGet, "/api/conversations/"+convID, token, nil)
	var conv conversationBody
	decode(t, w, &conv)
	if len(conv.Messages) != 1 || conv.Messages[0].Role != "user" || conv.Messages[0].Content != "hello?" {
		t.Fatalf("expected the user message to survive, got %+v", conv.Messages)
	}

	srv.llm.fail(fmt.Errorf("%w: insufficient_quota", llm.ErrQuotaExceeded))
	w = srv.do(t, http.MethodPost, "/api/conversations/"+convID+"/messages", token, map[string]string{"message": "again"})
	if w.Code != http.StatusTooManyRequests || errorCode(t, w) != "OPENAI_QUOTA_EXCEEDED" {
		t.Fatalf("expected OPENAI_QUOTA_EXCEEDED, got %d %s", w.Code, w.Body.String())
	}
}

func TestPagination(t *testing.T) {
	srv := newTestServer(t)
	token, _ := srv.register(t, "alice")
	for i := 0; i < 12; i++ {
		srv.createConversation(t, token)
	}

	w := srv.do(t, http.MethodGet, "/api/conversations?page=2&limit=5", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Conversations []struct {
			ID           string `json:"id"`
			MessageCount int64  `json:"message_count"`
			TotalTokens  int64  `json:"total_tokens"`
		} `json:"conversations"`
		Pagination struct {
			Page       int   `json:"page"`
			Limit      int   `json:"limit"`
			Total      int64 `json:"total"`
			TotalPages int   `json:"totalPages"`
		} `json:"pagination"`
	}
	decode(t, w, &resp)

	if len(resp.Conversations) != 5 {
		t.Fatalf("expected 5 conversations, got %d", len(resp.Conversations))
	}
	if resp.Pagination.Page != 2 || resp.Pagination.Limit != 5 || resp.Pagination.Total != 12 || resp.Pagination.TotalPages != 3 {
		t.Fatalf("unexpected pagination %+v", resp.Pagination)
	}
}

func TestArchiveFiltersList(t *testing.T) {
	srv := newTestServer(t)
	token, _ := srv.register(t, "alice")
	convID := srv.createConversation(t, token)

	w := srv.do(t, http.MethodPut, "/api/conversations/"+convID+"/archive", token, map[string]bool{"archived": true})
	if w.Code != http.StatusOK {
		t.Fatalf("archive: expected 200, got %d, body=%s", w.Code, w.Body.String())
	}

	listIDs := func(archived string) []string {
		w := srv.do(t, http.MethodGet, "/api/conversations?archived="+archived, token, nil)
		var resp struct {
			Conversations []struct {
				ID string `json:"id"`
			} `json:"conversations"`
		}
		decode(t, w, &resp)
		ids := make([]string, 0, len(resp.Conversations))
		for _, c := range resp.Conversations {
			ids = append(ids, c.ID)
		}
		return ids
	}

	if ids := listIDs("true"); len(ids) != 1 || ids[0] != convID {
		t.Fatalf("archived list = %v, want [%s]", ids, convID)
	}
	if ids := listIDs("false"); len(ids) != 0 {
		t.Fatalf("active list should be empty, got %v", ids)
	}

	w = srv.do(t, http.MethodPut, "/api/conversations/"+convID+"/archive", token, map[string]bool{"archived": false})
	if w.Code != http.StatusOK {
		t.Fatalf("unarchive: expected 200, got %d", w.Code)
	}
	if ids := listIDs("false"); len(ids) != 1 {
		t.Fatalf("expected the conversation back in the active list, got %v", ids)
	}
}

func TestRenameConversation(t *testing.T) {
	srv := newTestServer(t)
	token, _ := srv.register(t, "alice")
	convID := srv.createConversation(t, token)

	w := srv.do(t, http.MethodPut, "/api/conversations/"+convID+"/title", token, map[string]string{"title": "  "})
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "TITLE_REQUIRED" {
		t.Fatalf("expected TITLE_REQUIRED, got %d %s", w.Code, w.Body.String())
	}

	w = srv.do(t, http.MethodPut, "/api/conversations/"+convID+"/title", token, map[string]string{"title": "Groceries"})
	if w.Code != http.StatusOK {
		t.Fatalf("rename: expected 200, got %d", w.Code)
	}

	w = srv.do(t, http.MethodGet, "/api/conversations/"+convID, token, nil)
	var conv conversationBody
	decode(t, w, &conv)
	if conv.Title != "Groceries" || conv.Messages == nil {
		t.Fatalf("unexpected conversation %+v", conv)
	}
}

func TestDeleteRemovesConversationAndMessages(t *testing.T) {
	srv := newTestServer(t)
	token, _ := srv.register(t, "alice")
	convID := srv.createConversation(t, token)

	w := srv.do(t, http.MethodPost, "/api/conversations/"+convID+"/messages", token, map[string]string{"message": "hi"})
	if w.Code != http.StatusOK {
		t.Fatalf("send: expected 200, got %d", w.Code)
	}

	w = srv.do(t, http.MethodDelete, "/api/conversations/"+convID, token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", w.Code)
	}

	w = srv.do(t, http.MethodGet, "/api/conversations/"+convID, token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}

	msgs, err := srv.store.ListMessages(context.Background(), convID)
	if err != nil || len(msgs) != 0 {
		t.Fatalf("expected messages to be gone, got %d (%v)", len(msgs), err)
	}

	w = srv.do(t, http.MethodDelete, "/api/conversations/"+convID, token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", w.Code)
	}
}
