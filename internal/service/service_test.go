package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/amiaygpt/chat-platform/internal/apperr"
	"github.com/amiaygpt/chat-platform/internal/auth"
	"github.com/amiaygpt/chat-platform/internal/llm"
	"github.com/amiaygpt/chat-platform/internal/model"
	"github.com/amiaygpt/chat-platform/internal/store"
	"github.com/amiaygpt/chat-platform/pkg/logger"
)

type stubLLM struct {
	mu       sync.Mutex
	reply    string
	tokensIn int
	err      error
	requests []*llm.CompletionRequest
}

func (s *stubLLM) Complete(_ context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{
		Content:   s.reply,
		Model:     req.Model,
		TokensIn:  s.tokensIn,
		TokensOut: 5,
	}, nil
}

func (s *stubLLM) Name() string { return "stub" }

func (s *stubLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*model.ConversationEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e *model.ConversationEvent) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return uint64(len(p.events)), nil
}

func (p *recordingPublisher) types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store    *store.Store
	llm      *stubLLM
	events   *recordingPublisher
	convs    *ConversationService
	messages *MessageService
	users    *UserService
	usage    *UsageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	st, err := store.Open(context.Background(), store.Config{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	log := logger.NewNop()
	stub := &stubLLM{reply: "Hello there", tokensIn: 7}
	events := &recordingPublisher{}

	return &fixture{
		store:  st,
		llm:    stub,
		events: events,
		convs:  NewConversationService(st, events, "gpt-3.5-turbo", log),
		messages: NewMessageService(st, stub, CompletionSettings{
			DefaultModel: "gpt-3.5-turbo",
			MaxTokens:    1000,
			Temperature:  0.7,
			Timeout:      5 * time.Second,
		}, events, log),
		users: NewUserService(st, auth.NewTokenIssuer("test-secret", time.Hour), 4, log),
		usage: NewUsageService(st),
	}
}

func (f *fixture) register(t *testing.T, username string) *model.User {
	t.Helper()

	resp, err := f.users.Register(context.Background(), &model.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "Secret123",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return resp.User
}

func requireCode(t *testing.T, err error, kind apperr.Kind, code string) *apperr.Error {
	t.Helper()

	e, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected *apperr.Error %s, got %v", code, err)
	}
	if e.Kind != kind || e.Code != code {
		t.Fatalf("expected kind %d code %s, got kind %d code %s", kind, code, e.Kind, e.Code)
	}
	return e
}
