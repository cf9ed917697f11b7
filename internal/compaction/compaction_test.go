package compaction

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/haasonsaas/researchagent/internal/messagelog"
	"github.com/haasonsaas/researchagent/internal/providers"
	"github.com/haasonsaas/researchagent/pkg/models"
)

func msgsWithUsers(n int) []models.Message {
	msgs := []models.Message{{Role: models.RoleSystem, Content: "sys"}}
	for i := 0; i < n; i++ {
		msgs = append(msgs,
			models.Message{Role: models.RoleUser, Content: fmt.Sprintf("question %d", i)},
			models.Message{Role: models.RoleAssistant, Content: fmt.Sprintf("answer %d", i)},
		)
	}
	return msgs
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name       string
		users      int
		keepRecent int
		wantOK     bool
		wantOldLen int
	}{
		{"fewer users than keep", 5, 10, false, 0},
		{"exactly keep", 10, 10, true, 0},
		{"more than keep", 12, 10, true, 4},
		{"keep one", 3, 1, true, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := msgsWithUsers(tt.users)
			systemEnd, splitIdx, ok := Split(msgs, tt.keepRecent)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if systemEnd != 1 {
				t.Errorf("systemEnd = %d", systemEnd)
			}
			if got := splitIdx - systemEnd; got != tt.wantOldLen {
				t.Errorf("old length = %d, want %d", got, tt.wantOldLen)
			}
			if msgs[splitIdx].Role != models.RoleUser {
				t.Errorf("split must land on a user message")
			}
		})
	}
}

// stubProvider answers the digest call then the confirmation call.
type stubProvider struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (p *stubProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.fail {
		return nil, fmt.Errorf("model unavailable")
	}
	if p.calls == 1 {
		return &providers.ChatResponse{Content: "<overall_goal>g</overall_goal>\n<file_system_state>s</file_system_state>\n<key_knowledge>k</key_knowledge>\n<recent_actions>r</recent_actions>\n<current_plan>p</current_plan>"}, nil
	}
	return &providers.ChatResponse{Content: "Understood, continuing."}, nil
}

func (p *stubProvider) ChatStream(ctx context.Context, req providers.ChatRequest, sink func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	return p.Chat(ctx, req)
}

func (p *stubProvider) Name() string { return "stub" }

func TestCompactRoundTrip(t *testing.T) {
	log := messagelog.New()
	if err := log.Replace(msgsWithUsers(12)); err != nil {
		t.Fatal(err)
	}
	before := log.List()
	_, splitIdx, _ := Split(before, 10)
	wantTail := before[splitIdx:]

	c := NewCompactor(&stubProvider{}, "", nil, nil)
	result, err := c.Compact(context.Background(), log, nil, 10)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if !result.Compacted {
		t.Fatalf("expected compaction, got %+v", result)
	}

	after := log.List()
	if len(after) >= len(before) {
		t.Errorf("log did not shrink: %d -> %d", len(before), len(after))
	}
	if after[0].Role != models.RoleSystem {
		t.Fatalf("system message lost")
	}
	if after[1].Role != models.RoleUser || !strings.HasPrefix(after[1].Content, "Context Summary:") {
		t.Fatalf("head missing digest user message: %+v", after[1])
	}
	if after[2].Role != models.RoleAssistant {
		t.Fatalf("head missing confirmation assistant message: %+v", after[2])
	}

	// The tail must equal the original RECENT suffix, then the footer.
	tail := after[3 : len(after)-1]
	if len(tail) != len(wantTail) {
		t.Fatalf("tail length = %d, want %d", len(tail), len(wantTail))
	}
	for i := range tail {
		if tail[i].Content != wantTail[i].Content || tail[i].Role != wantTail[i].Role {
			t.Errorf("tail[%d] = %+v, want %+v", i, tail[i], wantTail[i])
		}
	}
	if last := after[len(after)-1]; last.Role != models.RoleUser || last.Content != "Please continue your work." {
		t.Errorf("footer = %+v", last)
	}
}

func TestCompactNoOpWhenFewUsers(t *testing.T) {
	log := messagelog.New()
	if err := log.Replace(msgsWithUsers(3)); err != nil {
		t.Fatal(err)
	}
	before := len(log.List())

	c := NewCompactor(&stubProvider{}, "", nil, nil)
	result, err := c.Compact(context.Background(), log, nil, 10)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if result.Compacted {
		t.Errorf("expected no-op")
	}
	if len(log.List()) != before {
		t.Errorf("no-op mutated the log")
	}
}

func TestCompactFailureLeavesLogIntact(t *testing.T) {
	log := messagelog.New()
	if err := log.Replace(msgsWithUsers(12)); err != nil {
		t.Fatal(err)
	}
	before := log.List()

	c := NewCompactor(&stubProvider{fail: true}, "", nil, nil)
	if _, err := c.Compact(context.Background(), log, nil, 10); err == nil {
		t.Fatal("expected error from failing provider")
	}
	after := log.List()
	if len(after) != len(before) {
		t.Errorf("failed compaction mutated the log: %d -> %d", len(before), len(after))
	}
}
