package sessions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/haasonsaas/researchagent/internal/config"
	"github.com/haasonsaas/researchagent/internal/events"
	"github.com/haasonsaas/researchagent/internal/providers"
	"github.com/haasonsaas/researchagent/pkg/models"
)

func TestSessionLockerSerializesSameSession(t *testing.T) {
	locker := NewSessionLocker()
	ctx := context.Background()

	if err := locker.Lock(ctx, "s1"); err != nil {
		t.Fatal(err)
	}

	acquired := make(chan struct{})
	go func() {
		locker.Lock(ctx, "s1")
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first held")
	case <-time.After(50 * time.Millisecond):
	}

	locker.Unlock("s1")
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired after unlock")
	}
	locker.Unlock("s1")
}

func TestSessionLockerIndependentSessions(t *testing.T) {
	locker := NewSessionLocker()
	ctx := context.Background()
	if err := locker.Lock(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	defer locker.Unlock("a")

	done := make(chan struct{})
	go func() {
		locker.Lock(ctx, "b")
		locker.Unlock("b")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different session blocked by unrelated lock")
	}
}

func TestSessionLockerContextCancel(t *testing.T) {
	locker := NewSessionLocker()
	if err := locker.Lock(context.Background(), "s"); err != nil {
		t.Fatal(err)
	}
	defer locker.Unlock("s")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := locker.Lock(ctx, "s"); err == nil {
		t.Fatal("expected context error")
	}
}

func TestFileHistoryStoreAppendAndScan(t *testing.T) {
	store := NewFileHistoryStore(t.TempDir())

	resp := models.ChatResponse{
		ResponseID:       "resp_1",
		SessionID:        "sess_a",
		UserMessage:      "hello there, this is the first message of the session",
		AssistantMessage: "hi",
		Mode:             models.ModeChat,
	}
	if err := store.Append("sess_a", resp); err != nil {
		t.Fatal(err)
	}
	if err := store.Append("sess_a", models.ChatResponse{ResponseID: "resp_2"}); err != nil {
		t.Fatal(err)
	}

	h, err := store.Load("sess_a")
	if err != nil {
		t.Fatal(err)
	}
	if len(h.Responses) != 2 || h.Responses[0].ResponseID != "resp_1" {
		t.Fatalf("history = %+v", h.Responses)
	}

	summaries, err := store.Scan()
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 || summaries[0].SessionID != "sess_a" || summaries[0].ResponseCount != 2 {
		t.Fatalf("summaries = %+v", summaries)
	}
	if summaries[0].FirstMessage == "" {
		t.Errorf("first message not recovered")
	}
}

func TestFileHistoryStoreLoadMissing(t *testing.T) {
	store := NewFileHistoryStore(t.TempDir())
	h, err := store.Load("nope")
	if err != nil {
		t.Fatal(err)
	}
	if len(h.Responses) != 0 {
		t.Errorf("missing history should be empty")
	}
}

// titleProvider scripts the display-name synthesis call.
type titleProvider struct {
	mu    sync.Mutex
	title string
	fail  bool
	// answer is returned for every non-title call, so the provider can
	// double as a trivial chat backend in registry tests.
	answer string
}

func (p *titleProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return nil, fmt.Errorf("vendor down")
	}
	if len(req.Messages) == 1 && strings.Contains(req.Messages[0].Content, "Generate a concise, clear title") {
		return &providers.ChatResponse{Content: p.title}, nil
	}
	return &providers.ChatResponse{Content: p.answer, PromptTokens: 10}, nil
}

func (p *titleProvider) ChatStream(ctx context.Context, req providers.ChatRequest, sink func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	return p.Chat(ctx, req)
}

func (p *titleProvider) Name() string { return "title" }

func TestSynthesizeTitleFallback(t *testing.T) {
	long := strings.Repeat("x", 120)
	got := SynthesizeTitle(context.Background(), &titleProvider{fail: true}, long, "")
	if got != long[:80]+"..." {
		t.Errorf("fallback = %q", got)
	}

	got = SynthesizeTitle(context.Background(), &titleProvider{title: "Postgres Release Questions And Answers"}, "q", "a")
	if got != "Postgres Release Questions And Answers" {
		t.Errorf("title = %q", got)
	}
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.DataBaseDir = t.TempDir()
	return cfg
}

func TestRegistrySubmitCreatesSession(t *testing.T) {
	provider := &titleProvider{title: "A Fine Session Title", answer: "hello back"}
	registry, err := NewRegistry(testConfig(t), Deps{Provider: provider})
	if err != nil {
		t.Fatal(err)
	}
	defer registry.Close()

	collector := events.NewCollector()
	sessionID, err := registry.Submit(context.Background(), SubmitRequest{
		Message: "hello", Mode: models.ModeChat,
	}, collector)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sessionID == "" || !strings.HasPrefix(sessionID, "chat_") {
		t.Errorf("session id = %q", sessionID)
	}

	evs := collector.Events()
	if evs[0].Type != models.EventSessionCreated {
		t.Fatalf("first event = %s, want session_created", evs[0].Type)
	}
	term, ok := collector.Terminal()
	if !ok || term.Type != models.EventComplete {
		t.Fatalf("terminal = %+v", term)
	}

	summaries := registry.List(0)
	if len(summaries) != 1 {
		t.Fatalf("summaries = %+v", summaries)
	}
	if summaries[0].DisplayName != "A Fine Session Title" {
		t.Errorf("display name = %q", summaries[0].DisplayName)
	}
	if summaries[0].ResponseCount != 1 {
		t.Errorf("response count = %d", summaries[0].ResponseCount)
	}

	// The persisted history is fully rehydratable for replay.
	h, err := registry.Get(sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if len(h.Responses) != 1 || h.Responses[0].AssistantMessage != "hello back" {
		t.Fatalf("history = %+v", h.Responses)
	}
}

func TestRegistryCancelUnknownSession(t *testing.T) {
	registry, err := NewRegistry(testConfig(t), Deps{Provider: &titleProvider{answer: "x"}})
	if err != nil {
		t.Fatal(err)
	}
	defer registry.Close()
	if registry.Cancel("ghost") {
		t.Errorf("cancel of unknown session should report false")
	}
}

func TestRegistryDeleteRetainsTranscripts(t *testing.T) {
	provider := &titleProvider{title: "T", answer: "a"}
	cfg := testConfig(t)
	registry, err := NewRegistry(cfg, Deps{Provider: provider})
	if err != nil {
		t.Fatal(err)
	}
	defer registry.Close()

	collector := events.NewCollector()
	sessionID, err := registry.Submit(context.Background(), SubmitRequest{Message: "hi"}, collector)
	if err != nil {
		t.Fatal(err)
	}

	if err := registry.Delete(sessionID, false); err != nil {
		t.Fatal(err)
	}
	// Record gone from the registry, transcripts still on disk.
	if registry.Cancel(sessionID) {
		t.Errorf("deleted session still has a live cancel flag")
	}
	h, err := NewFileHistoryStore(cfg.DataBaseDir).Load(sessionID)
	if err != nil || len(h.Responses) != 1 {
		t.Errorf("transcripts should be retained after delete: %v %+v", err, h)
	}
}
