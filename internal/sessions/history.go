package sessions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/haasonsaas/researchagent/pkg/models"
)

// FileHistoryStore persists each session's chat_history.json under
// <data_dir>/chats/<session_id>/. Appends reload the file first so a mode
// switch (which swaps engines in the original design) never loses
// responses written since the last read.
type FileHistoryStore struct {
	baseDir string
	mu      sync.Mutex
}

// NewFileHistoryStore roots the store at baseDir (the configured data
// directory).
func NewFileHistoryStore(baseDir string) *FileHistoryStore {
	return &FileHistoryStore{baseDir: baseDir}
}

// SessionDir returns the session's directory path.
func (s *FileHistoryStore) SessionDir(sessionID string) string {
	return filepath.Join(s.baseDir, "chats", sessionID)
}

func (s *FileHistoryStore) historyPath(sessionID string) string {
	return filepath.Join(s.SessionDir(sessionID), "chat_history.json")
}

// Load reads the session's history; a missing file yields an empty
// history rather than an error.
func (s *FileHistoryStore) Load(sessionID string) (*models.ChatHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(sessionID)
}

func (s *FileHistoryStore) loadLocked(sessionID string) (*models.ChatHistory, error) {
	data, err := os.ReadFile(s.historyPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			now := time.Now().UTC()
			return &models.ChatHistory{SessionID: sessionID, CreatedAt: now, UpdatedAt: now}, nil
		}
		return nil, fmt.Errorf("sessions: read history for %s: %w", sessionID, err)
	}
	var h models.ChatHistory
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("sessions: decode history for %s: %w", sessionID, err)
	}
	if h.SessionID == "" {
		h.SessionID = sessionID
	}
	return &h, nil
}

// Append implements engine.HistoryStore: reload, append, flush.
func (s *FileHistoryStore) Append(sessionID string, resp models.ChatResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.loadLocked(sessionID)
	if err != nil {
		return err
	}
	h.Responses = append(h.Responses, resp)
	h.UpdatedAt = time.Now().UTC()

	if err := os.MkdirAll(s.SessionDir(sessionID), 0o755); err != nil {
		return fmt.Errorf("sessions: mkdir for %s: %w", sessionID, err)
	}
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("sessions: encode history for %s: %w", sessionID, err)
	}
	if err := os.WriteFile(s.historyPath(sessionID), data, 0o644); err != nil {
		return fmt.Errorf("sessions: write history for %s: %w", sessionID, err)
	}
	return nil
}

// Remove deletes the session directory with its transcripts. Only the
// explicit purge path calls this; plain session delete retains files
// (spec §4.9).
func (s *FileHistoryStore) Remove(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.RemoveAll(s.SessionDir(sessionID))
}

// Scan recovers lightweight summaries of every persisted session without
// instantiating engines (spec §4.9 "Persisted-session rehydration").
func (s *FileHistoryStore) Scan() ([]models.SessionSummary, error) {
	chatsDir := filepath.Join(s.baseDir, "chats")
	entries, err := os.ReadDir(chatsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("sessions: scan %s: %w", chatsDir, err)
	}

	var out []models.SessionSummary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		h, err := s.Load(entry.Name())
		if err != nil || len(h.Responses) == 0 {
			continue
		}
		first := h.Responses[0]
		firstMsg := first.UserMessage
		if len(firstMsg) > 100 {
			firstMsg = firstMsg[:100]
		}
		out = append(out, models.SessionSummary{
			SessionID:     entry.Name(),
			FirstMessage:  firstMsg,
			ResponseCount: len(h.Responses),
			CreatedAt:     h.CreatedAt,
			UpdatedAt:     h.UpdatedAt,
		})
	}
	return out, nil
}
