package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/haasonsaas/researchagent/internal/config"
	"github.com/haasonsaas/researchagent/internal/engine"
	"github.com/haasonsaas/researchagent/internal/events"
	"github.com/haasonsaas/researchagent/internal/mcp"
	"github.com/haasonsaas/researchagent/internal/observability"
	"github.com/haasonsaas/researchagent/internal/providers"
	"github.com/haasonsaas/researchagent/internal/tools/sandbox"
	"github.com/haasonsaas/researchagent/internal/tools/websearch"
	"github.com/haasonsaas/researchagent/pkg/models"
)

// Deps are the process-wide collaborators shared across all sessions.
type Deps struct {
	Provider       providers.LLMProvider
	SearchVendor   websearch.Vendor
	SandboxFactory sandbox.RunnerFactory
	Bridge         *mcp.Bridge
	Logger         *observability.Logger
	Metrics        *observability.Metrics
	Tracer         *observability.Tracer
	// Summaries is the optional durable summary store (SQLite/Postgres);
	// nil keeps summaries file-derived only.
	Summaries SummaryStore
}

// record tracks one session's in-memory state alongside its summary.
type record struct {
	engine     *engine.Engine
	cancel     *CancelFlag
	summary    models.SessionSummary
	lastActive time.Time
}

// Registry is the process-wide map from session identifier to per-session
// engine (spec §4.9). Engines are created lazily on a session's first
// turn; persisted sessions are rehydrated as summaries only.
type Registry struct {
	cfg     *config.Config
	deps    Deps
	history *FileHistoryStore
	locker  *SessionLocker

	mu      sync.Mutex
	records map[string]*record
}

// NewRegistry builds the registry and rehydrates persisted session
// summaries from the data directory.
func NewRegistry(cfg *config.Config, deps Deps) (*Registry, error) {
	if deps.Logger == nil {
		deps.Logger = observability.NewLogger(observability.LogConfig{Level: cfg.LogLevel})
	}
	r := &Registry{
		cfg:     cfg,
		deps:    deps,
		history: NewFileHistoryStore(cfg.DataBaseDir),
		locker:  NewSessionLocker(),
		records: make(map[string]*record),
	}

	summaries, err := r.history.Scan()
	if err != nil {
		return nil, err
	}
	for _, s := range summaries {
		r.records[s.SessionID] = &record{summary: s, lastActive: s.UpdatedAt}
	}
	if deps.Summaries != nil {
		stored, err := deps.Summaries.List(context.Background())
		if err != nil {
			deps.Logger.Warn(context.Background(), "summary store list failed", "error", err)
		}
		for _, s := range stored {
			if rec, ok := r.records[s.SessionID]; ok {
				rec.summary.DisplayName = s.DisplayName
			}
		}
	}
	deps.Logger.Info(context.Background(), "rehydrated persisted sessions", "count", len(summaries))
	return r, nil
}

// History exposes the file-backed response store for replay endpoints.
func (r *Registry) History() *FileHistoryStore { return r.history }

// SubmitRequest is one turn submission (spec §6 "Turn submission").
type SubmitRequest struct {
	Message       string
	SessionID     string // empty means create-new
	UserID        string
	Mode          models.Mode
	Temperature   *float64
	MaxIterations int
	Stream        bool
}

// Submit runs one turn against the session's engine, creating the session
// if no identifier was supplied (first emitted event is then
// session_created). Turns on the same session serialize; the call blocks
// until the turn's terminal event has been emitted.
func (r *Registry) Submit(ctx context.Context, req SubmitRequest, sink events.Sink) (string, error) {
	if req.Message == "" {
		return "", fmt.Errorf("sessions: message is required")
	}
	if req.Mode == "" {
		req.Mode = models.ModeChat
	}
	if req.UserID == "" {
		req.UserID = "anonymous"
	}

	created := false
	if req.SessionID == "" {
		req.SessionID = newSessionID()
		created = true
		if err := sink.Emit(models.Event{
			Type:           models.EventSessionCreated,
			SessionCreated: &models.SessionCreatedPayload{SessionID: req.SessionID},
		}); err != nil {
			return req.SessionID, err
		}
	}

	if err := r.locker.Lock(ctx, req.SessionID); err != nil {
		return req.SessionID, err
	}
	defer r.locker.Unlock(req.SessionID)

	rec, err := r.getOrCreate(req.SessionID)
	if err != nil {
		sink.Emit(models.Event{Type: models.EventError, Error: &models.ErrorPayload{Message: err.Error()}})
		return req.SessionID, err
	}

	// Tee the stream so the registry sees the terminal envelope for
	// summary bookkeeping without a second read of the history file.
	var completed *models.ChatResponse
	tee := events.SinkFunc(func(e models.Event) error {
		if e.Type == models.EventComplete {
			completed = e.Complete
		}
		return sink.Emit(e)
	})

	runErr := rec.engine.RunTurn(ctx, engine.TurnRequest{
		Message:       req.Message,
		UserID:        req.UserID,
		Mode:          req.Mode,
		Temperature:   req.Temperature,
		MaxIterations: req.MaxIterations,
		Stream:        req.Stream,
	}, tee)

	if completed != nil {
		r.afterTurn(ctx, req, rec, created || rec.summary.ResponseCount == 0, completed)
	}
	return req.SessionID, runErr
}

// afterTurn updates the session summary, synthesizing the display name on
// the first completed turn.
func (r *Registry) afterTurn(ctx context.Context, req SubmitRequest, rec *record, firstTurn bool, resp *models.ChatResponse) {
	r.mu.Lock()
	rec.summary.ResponseCount++
	rec.summary.UpdatedAt = time.Now().UTC()
	rec.lastActive = rec.summary.UpdatedAt
	if rec.summary.FirstMessage == "" {
		first := req.Message
		if len(first) > 100 {
			first = first[:100]
		}
		rec.summary.FirstMessage = first
	}
	r.mu.Unlock()

	if firstTurn && rec.summary.DisplayName == "" {
		title := SynthesizeTitle(ctx, r.deps.Provider, req.Message, resp.AssistantMessage)
		r.mu.Lock()
		rec.summary.DisplayName = title
		r.mu.Unlock()
	}

	if r.deps.Summaries != nil {
		r.mu.Lock()
		summary := rec.summary
		r.mu.Unlock()
		if err := r.deps.Summaries.Upsert(ctx, summary); err != nil {
			r.deps.Logger.Warn(ctx, "summary store upsert failed", "error", err)
		}
	}
}

// getOrCreate lazily constructs the session's engine, loading its Message
// Log from disk if present.
func (r *Registry) getOrCreate(sessionID string) (*record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[sessionID]
	if !ok {
		now := time.Now().UTC()
		rec = &record{
			summary:    models.SessionSummary{SessionID: sessionID, CreatedAt: now, UpdatedAt: now},
			lastActive: now,
		}
		r.records[sessionID] = rec
	}
	if rec.engine == nil {
		rec.cancel = &CancelFlag{}
		eng, err := engine.New(engine.Config{
			SessionID:              sessionID,
			SessionDir:             r.history.SessionDir(sessionID),
			Model:                  r.cfg.LLM.DefaultModel,
			Temperature:            0.7,
			MaxIterations:          r.cfg.Session.MaxIterations,
			AutoCompactThreshold:   r.cfg.LLM.AutoCompactThresholdTokens,
			KeepRecentUserMessages: r.cfg.Session.KeepRecentUserMessages,
			SandboxTimeout:         r.cfg.Tools.Sandbox.Timeout,
		}, engine.Deps{
			Provider:       r.deps.Provider,
			SearchVendor:   r.deps.SearchVendor,
			SandboxFactory: r.deps.SandboxFactory,
			Bridge:         r.deps.Bridge,
			History:        r.history,
			Cancel:         rec.cancel,
			Logger:         r.deps.Logger,
			Metrics:        r.deps.Metrics,
			Tracer:         r.deps.Tracer,
		})
		if err != nil {
			return nil, err
		}
		rec.engine = eng
		if r.deps.Metrics != nil {
			r.deps.Metrics.SessionStarted()
		}
	}
	rec.lastActive = time.Now().UTC()
	return rec, nil
}

// Cancel sets the session's cancel flag; a no-op for unknown or idle
// sessions. Safe from any goroutine.
func (r *Registry) Cancel(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[sessionID]
	if !ok || rec.cancel == nil {
		return false
	}
	rec.cancel.Set()
	return true
}

// Delete tears the session's engine down and drops the record. Persisted
// transcripts are retained unless purge is set (spec §4.9).
func (r *Registry) Delete(sessionID string, purge bool) error {
	r.mu.Lock()
	rec, ok := r.records[sessionID]
	if ok {
		delete(r.records, sessionID)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("sessions: session %s not found", sessionID)
	}
	if rec.engine != nil {
		rec.engine.Close()
		if r.deps.Metrics != nil {
			r.deps.Metrics.SessionEnded()
		}
	}
	if r.deps.Summaries != nil {
		if err := r.deps.Summaries.Delete(context.Background(), sessionID); err != nil {
			r.deps.Logger.Warn(context.Background(), "summary store delete failed", "error", err)
		}
	}
	if purge {
		return r.history.Remove(sessionID)
	}
	return nil
}

// Clear erases the session's Message Log but retains the session record
// with its system prompt (spec §6 "clear-session").
func (r *Registry) Clear(sessionID string) error {
	r.mu.Lock()
	rec, ok := r.records[sessionID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("sessions: session %s not found", sessionID)
	}
	if rec.engine == nil {
		var err error
		rec, err = r.getOrCreate(sessionID)
		if err != nil {
			return err
		}
	}
	if err := rec.engine.Log().Clear(true); err != nil {
		return err
	}
	r.mu.Lock()
	rec.summary.ResponseCount = 0
	rec.summary.UpdatedAt = time.Now().UTC()
	r.mu.Unlock()
	return nil
}

// List returns lightweight session summaries, most recently updated first.
func (r *Registry) List(limit int) []models.SessionSummary {
	r.mu.Lock()
	out := make([]models.SessionSummary, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.summary)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Get returns the fully rehydrated response list for replay (spec §6
// "get-session").
func (r *Registry) Get(sessionID string) (*models.ChatHistory, error) {
	h, err := r.history.Load(sessionID)
	if err != nil {
		return nil, err
	}
	if len(h.Responses) == 0 {
		r.mu.Lock()
		_, known := r.records[sessionID]
		r.mu.Unlock()
		if !known {
			return nil, fmt.Errorf("sessions: session %s not found", sessionID)
		}
	}
	return h, nil
}

// EvictIdle drops engines (not records or transcripts) for sessions idle
// longer than maxIdle, returning how many were evicted.
func (r *Registry) EvictIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for _, rec := range r.records {
		if rec.engine == nil || rec.lastActive.After(cutoff) {
			continue
		}
		rec.engine.Close()
		rec.engine = nil
		rec.cancel = nil
		evicted++
		if r.deps.Metrics != nil {
			r.deps.Metrics.SessionEnded()
		}
	}
	return evicted
}

// Close tears down every live engine.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.engine != nil {
			rec.engine.Close()
			rec.engine = nil
		}
	}
}

// newSessionID mints chat_<YYYYMMDD_HHMMSS>_<8-hex>.
func newSessionID() string {
	var b [4]byte
	rand.Read(b[:])
	return fmt.Sprintf("chat_%s_%s", time.Now().UTC().Format("20060102_150405"), hex.EncodeToString(b[:]))
}
