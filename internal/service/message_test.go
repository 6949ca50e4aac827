package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/amiaygpt/chat-platform/internal/apperr"
	"github.com/amiaygpt/chat-platform/internal/llm"
	"github.com/amiaygpt/chat-platform/internal/model"
)

func TestSendStoresReplyAndUsage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.register(t, "alice")

	conv, err := f.convs.Create(ctx, user.ID, &model.CreateConversationRequest{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	text := strings.Repeat("é", 60)
	resp, err := f.messages.Send(ctx, user.ID, conv.ID, "  "+text+"  ")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if resp.NewMessage.Role != model.RoleAssistant || resp.NewMessage.Content != "Hello there" {
		t.Fatalf("unexpected new message %+v", resp.NewMessage)
	}
	if resp.NewMessage.TokensUsed == nil || *resp.NewMessage.TokensUsed != 12 {
		t.Fatalf("expected 12 tokens on the reply, got %v", resp.NewMessage.TokensUsed)
	}

	got := resp.Conversation
	if want := strings.Repeat("é", 50) + "..."; got.Title != want {
		t.Fatalf("title = %q, want %q", got.Title, want)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != model.RoleUser || got.Messages[1].Role != model.RoleAssistant {
		t.Fatalf("unexpected history %+v", got.Messages)
	}
	if got.Messages[0].Content != text || got.Messages[0].TokensUsed != nil {
		t.Fatalf("user message should be trimmed and carry no tokens: %+v", got.Messages[0])
	}

	req := f.llm.requests[0]
	if req.Model != "gpt-3.5-turbo" || req.MaxTokens != 1000 || req.Temperature != 0.7 {
		t.Fatalf("unexpected completion request %+v", req)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content != text {
		t.Fatalf("unexpected completion history %+v", req.Messages)
	}

	usage, err := f.usage.Summary(ctx, user.ID, 1)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if usage.TotalMessagesSent != 1 || usage.TotalTokensUsed != 12 {
		t.Fatalf("unexpected usage %+v", usage)
	}

	types := f.events.types()
	if len(types) != 2 || types[0] != model.EventTypeConversationCreated || types[1] != model.EventTypeMessageCompleted {
		t.Fatalf("unexpected events %v", types)
	}
}

func TestSendUsesConversationModelAndFullHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.register(t, "alice")

	conv, _ := f.convs.Create(ctx, user.ID, &model.CreateConversationRequest{Title: "Mine", Model: "gpt-4"})
	if _, err := f.messages.Send(ctx, user.ID, conv.ID, "first"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	resp, err := f.messages.Send(ctx, user.ID, conv.ID, "second")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	req := f.llm.requests[1]
	if req.Model != "gpt-4" {
		t.Fatalf("expected conversation model, got %q", req.Model)
	}
	var roles []string
	for _, m := range req.Messages {
		roles = append(roles, m.Role+":"+m.Content)
	}
	if strings.Join(roles, ",") != "user:first,assistant:Hello there,user:second" {
		t.Fatalf("unexpected history %v", roles)
	}
	// The first user message names the conversation even when a title was given.
	if resp.Conversation.Title != "first" {
		t.Fatalf("unexpected title %q", resp.Conversation.Title)
	}
}

func TestSendCompletionFailureKeepsUserMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.register(t, "alice")
	conv, _ := f.convs.Create(ctx, user.ID, &model.CreateConversationRequest{})

	f.llm.err = errors.New("openai: server overloaded (status 503)")

	_, err := f.messages.Send(ctx, user.ID, conv.ID, "are you there?")
	e := requireCode(t, err, apperr.KindUpstream, apperr.CodeCompletionFailed)
	if e.Status() != 500 || e.Details != "openai: server overloaded (status 503)" {
		t.Fatalf("unexpected error %+v", e)
	}

	got, err := f.convs.Get(ctx, user.ID, conv.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "are you there?" {
		t.Fatalf("expected the user message to persist, got %+v", got.Messages)
	}

	usage, _ := f.usage.Summary(ctx, user.ID, 1)
	if usage.TotalMessagesSent != 0 {
		t.Fatalf("failed completions must not count as usage: %+v", usage)
	}

	types := f.events.types()
	if types[len(types)-1] != model.EventTypeCompletionFailed {
		t.Fatalf("expected completion.failed event, got %v", types)
	}
}

func TestSendQuotaExceeded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.register(t, "alice")
	conv, _ := f.convs.Create(ctx, user.ID, &model.CreateConversationRequest{})

	f.llm.err = fmt.Errorf("%w: You exceeded your current quota", llm.ErrQuotaExceeded)

	_, err := f.messages.Send(ctx, user.ID, conv.ID, "hi")
	e := requireCode(t, err, apperr.KindQuotaExceeded, apperr.CodeQuotaExceeded)
	if e.Status() != 429 {
		t.Fatalf("expected 429, got %d", e.Status())
	}
}

func TestSendRejectsBlankMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.register(t, "alice")
	conv, _ := f.convs.Create(ctx, user.ID, &model.CreateConversationRequest{})

	_, err := f.messages.Send(ctx, user.ID, conv.ID, " \n\t ")
	requireCode(t, err, apperr.KindValidation, apperr.CodeMessageRequired)

	if f.llm.calls() != 0 {
		t.Fatalf("completion provider must not be called")
	}
}

func TestSendToForeignConversation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	conv, _ := f.convs.Create(ctx, alice.ID, &model.CreateConversationRequest{})

	_, err := f.messages.Send(ctx, bob.ID, conv.ID, "hello")
	requireCode(t, err, apperr.KindNotFound, apperr.CodeConversationNotFound)

	got, _ := f.convs.Get(ctx, alice.ID, conv.ID)
	if len(got.Messages) != 0 {
		t.Fatalf("no message should be stored, got %d", len(got.Messages))
	}
}

func TestConcurrentSendsAreSerialized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.register(t, "alice")
	conv, _ := f.convs.Create(ctx, user.ID, &model.CreateConversationRequest{})

	const sends = 5
	var wg sync.WaitGroup
	errs := make(chan error, sends)
	for i := 0; i < sends; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := f.messages.Send(ctx, user.ID, conv.ID, fmt.Sprintf("message %d", i)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Send failed: %v", err)
	}

	got, _ := f.convs.Get(ctx, user.ID, conv.ID)
	if len(got.Messages) != 2*sends {
		t.Fatalf("expected %d messages, got %d", 2*sends, len(got.Messages))
	}
	for i, m := range got.Messages {
		want := model.RoleUser
		if i%2 == 1 {
			want = model.RoleAssistant
		}
		if m.Role != want {
			t.Fatalf("message %d has role %s, want %s", i, m.Role, want)
		}
	}

	usage, _ := f.usage.Summary(ctx, user.ID, 1)
	if usage.TotalMessagesSent != sends {
		t.Fatalf("expected %d sends counted, got %d", sends, usage.TotalMessagesSent)
	}
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	unlockA()
	unlockB()

	if len(k.locks) != 0 {
		t.Fatalf("expected no retained locks, got %d", len(k.locks))
	}
}
