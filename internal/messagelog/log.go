// Package messagelog implements the append-only conversation history (C1):
// a sequence of models.Message records, flushed to a single messages.json
// file under the session directory after every mutation.
package messagelog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/haasonsaas/researchagent/pkg/models"
)

// Log is the append-only Message Log for one session. It is owned
// exclusively by the session's engine; callers outside the engine may only
// read persisted snapshots (spec §5 "Shared-resource policy").
type Log struct {
	mu       sync.Mutex
	messages []models.Message
	path     string // empty when the log is not persisted
}

// New constructs an empty, unpersisted log.
func New() *Log {
	return &Log{}
}

// Load reads messages.json under dir, if present. A missing file yields an
// empty, persisted log rather than an error.
func Load(dir string) (*Log, error) {
	l := &Log{path: filepath.Join(dir, "messages.json")}
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("messagelog: read %s: %w", l.path, err)
	}
	if len(data) == 0 {
		return l, nil
	}
	var msgs []models.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("messagelog: decode %s: %w", l.path, err)
	}
	l.messages = msgs
	return l, nil
}

// SetPersistDir attaches a backing file to a previously in-memory log and
// flushes the current contents to it.
func (l *Log) SetPersistDir(dir string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.path = filepath.Join(dir, "messages.json")
	return l.flushLocked()
}

// AppendSystem adds the system message. Callers normally do this only once,
// at position 0; subsequent mode switches use ReplaceSystemPrompt instead.
func (l *Log) AppendSystem(text string) error {
	return l.append(models.Message{Role: models.RoleSystem, Content: text})
}

// AppendUser appends a user message.
func (l *Log) AppendUser(text string) error {
	return l.append(models.Message{Role: models.RoleUser, Content: text})
}

// AppendAssistant appends an assistant message. At least one of text or
// proposals must be non-empty; each proposal must carry an id, the
// "function" type tag, a name, and arguments.
func (l *Log) AppendAssistant(text string, proposals []models.ToolCallProposal) error {
	if text == "" && len(proposals) == 0 {
		return fmt.Errorf("messagelog: assistant message needs content or tool_calls")
	}
	for i, p := range proposals {
		if p.ID == "" || p.Type != "function" || p.Name == "" || len(p.Arguments) == 0 {
			return fmt.Errorf("messagelog: invalid tool-call proposal at index %d", i)
		}
	}
	return l.append(models.Message{Role: models.RoleAssistant, Content: text, ToolCalls: proposals})
}

// AppendToolResult appends a tool-role message answering the proposal
// identified by id.
func (l *Log) AppendToolResult(id, text string) error {
	if id == "" {
		return fmt.Errorf("messagelog: tool result needs a tool_call_id")
	}
	return l.append(models.Message{Role: models.RoleTool, ToolCallID: id, Content: text})
}

func (l *Log) append(m models.Message) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("messagelog: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, m)
	return l.flushLocked()
}

// ReplaceSystemPrompt rewrites the system message at position 0 in place. It
// is the sole permitted in-place mutation of the log (spec §4.1, §9). If the
// log is empty or position 0 is not a system message, a new system message
// is inserted at position 0 instead.
func (l *Log) ReplaceSystemPrompt(text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.messages) == 0 || l.messages[0].Role != models.RoleSystem {
		l.messages = append([]models.Message{{Role: models.RoleSystem, Content: text}}, l.messages...)
		return l.flushLocked()
	}
	l.messages[0].Content = text
	return l.flushLocked()
}

// List returns a copy of the current message slice.
func (l *Log) List() []models.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Last returns the most recent message, if any.
func (l *Log) Last() (models.Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.messages) == 0 {
		return models.Message{}, false
	}
	return l.messages[len(l.messages)-1], true
}

// Length returns the message count, optionally excluding the system message
// at position 0.
func (l *Log) Length(excludingSystem bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.messages)
	if excludingSystem && n > 0 && l.messages[0].Role == models.RoleSystem {
		return n - 1
	}
	return n
}

// Clear wipes the log. If keepSystem is true and a system message exists at
// position 0, it survives the clear.
func (l *Log) Clear(keepSystem bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if keepSystem && len(l.messages) > 0 && l.messages[0].Role == models.RoleSystem {
		l.messages = l.messages[:1]
	} else {
		l.messages = nil
	}
	return l.flushLocked()
}

// Replace swaps the entire message slice, used by compaction (C6) to install
// the rewritten log atomically.
func (l *Log) Replace(msgs []models.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append([]models.Message(nil), msgs...)
	return l.flushLocked()
}

func (l *Log) flushLocked() error {
	if l.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(l.messages, "", "  ")
	if err != nil {
		return fmt.Errorf("messagelog: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("messagelog: mkdir: %w", err)
	}
	tmp := l.path + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("messagelog: write temp: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("messagelog: rename: %w", err)
	}
	return nil
}
