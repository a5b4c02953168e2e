package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/hmi-forge/backend/internal/models"
	"github.com/hmi-forge/backend/internal/pipeline"
	"github.com/hmi-forge/backend/internal/storage"
)

// MaxSessions limits concurrent sessions to bound memory and disk use.
const MaxSessions = 10

// SessionKeepAliveWindow is how long a recently accessed session is
// protected from cleanup.
const SessionKeepAliveWindow = 5 * time.Minute

var (
	ErrNotFound        = errors.New("session not found")
	ErrNotReady        = errors.New("session has not completed")
	ErrTooManySessions = errors.New("too many active sessions")
)

// Runner executes the generation pipeline for one document.
type Runner interface {
	Run(ctx context.Context, docPath string, sink pipeline.ProgressSink) (*pipeline.Result, error)
}

// Options configure a Manager.
type Options struct {
	OutputDir   string
	TempDir     string
	MaxSessions int
	Ledger      storage.LedgerOptions
	// OnFinish is called once per session after it reaches a terminal
	// status, outside the manager lock.
	OnFinish func(models.GenerationSession)
}

// Manager runs and tracks generation sessions.
type Manager struct {
	sessions map[string]*State
	mu       sync.RWMutex
	runner   Runner
	opts     Options
	logger   *slog.Logger
	cron     *cron.Cron
}

// State holds one session, its results and its screen ledger.
type State struct {
	Session      *models.GenerationSession
	Result       *pipeline.Result
	Ledger       *storage.ScreenStore
	OutputDir    string
	CreatedAt    time.Time
	LastAccessed time.Time
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewManager creates a session manager.
func NewManager(runner Runner, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = MaxSessions
	}
	if opts.OutputDir == "" {
		opts.OutputDir = filepath.Join("data", "output")
	}
	if opts.TempDir == "" {
		opts.TempDir = filepath.Join("data", "temp")
	}
	return &Manager{
		sessions: make(map[string]*State),
		runner:   runner,
		opts:     opts,
		logger:   logger,
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// StartSession begins generating screens for the document at filePath.
func (m *Manager) StartSession(fileID, filePath string) (*models.GenerationSession, error) {
	m.cleanupOldSessionsIfNeeded()

	sessionID := uuid.New().String()
	session := models.NewGenerationSession(sessionID, fileID)
	session.Status = models.SessionStatusGenerating

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	state := &State{
		Session:      session,
		OutputDir:    filepath.Join(m.opts.OutputDir, sessionID),
		CreatedAt:    now,
		LastAccessed: now,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	m.mu.Lock()
	if len(m.sessions) >= m.opts.MaxSessions {
		m.mu.Unlock()
		cancel()
		return nil, ErrTooManySessions
	}
	m.sessions[sessionID] = state
	snapshot := *session
	m.mu.Unlock()

	go m.runGeneration(ctx, state, filePath)

	return &snapshot, nil
}

func (m *Manager) runGeneration(ctx context.Context, state *State, filePath string) {
	id := state.Session.ID
	log := m.logger.With("session", shortID(id))
	defer close(state.done)
	defer func() {
		if r := recover(); r != nil {
			log.Error("generation panicked", "panic", r)
			m.updateSessionError(id, "pipeline", fmt.Sprintf("generation panicked: %v", r))
		}
		m.finish(id)
	}()

	log.Info("starting generation", "file", filePath)
	res, err := m.runner.Run(ctx, filePath, &progressSink{m: m, id: id})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("generation cancelled")
			os.RemoveAll(state.OutputDir)
			m.setStatus(id, models.SessionStatusCancelled, "Cancelled")
			return
		}
		log.Error("generation failed", "error", err)
		m.updateSessionError(id, "pipeline", err.Error())
		return
	}

	ledger, err := m.persist(ctx, state, res)
	if err != nil {
		if ledger != nil {
			ledger.Close()
		}
		os.RemoveAll(state.OutputDir)
		if ctx.Err() != nil {
			m.setStatus(id, models.SessionStatusCancelled, "Cancelled")
			return
		}
		log.Error("storing results failed", "error", err)
		m.updateSessionError(id, "output", err.Error())
		return
	}

	summary, err := ledger.Summary(ctx)
	if err != nil {
		log.Warn("ledger summary failed, using in-memory counts", "error", err)
		summary = res.Summary
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		// Deleted while persisting.
		ledger.Close()
		os.RemoveAll(state.OutputDir)
		return
	}
	state.Result = res
	state.Ledger = ledger
	s := state.Session
	s.Status = models.SessionStatusComplete
	s.Progress = 100
	s.Step = string(pipeline.StepComplete)
	s.SystemType = res.Document.Profile.SystemType
	s.ScreenCount = len(res.Results)
	s.Summary = &summary
	s.Degraded = res.Degraded
	s.ProcessingTimeMs = res.Duration.Milliseconds()
	s.LLMCalls = res.Usage.Calls
	s.TokensUsed = res.Usage.TotalTokens()
	log.Info("generation complete",
		"screens", s.ScreenCount,
		"failed", summary.FailedScreens,
		"degraded", len(s.Degraded),
		"duration_ms", s.ProcessingTimeMs)
}

// persist writes images to the session output directory and records
// every screen in a fresh ledger.
func (m *Manager) persist(ctx context.Context, state *State, res *pipeline.Result) (*storage.ScreenStore, error) {
	if err := os.MkdirAll(state.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	records := make([]storage.ScreenRecord, 0, len(res.Results))
	for _, sr := range res.Results {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := storage.ScreenRecord{
			Index:        sr.Index,
			Name:         sr.Screen.ScreenName,
			Type:         sr.Screen.ScreenType,
			Status:       storage.ScreenRendered,
			Source:       sr.Spec.Source,
			ElementCount: len(sr.Spec.Elements),
			RenderMs:     sr.RenderMs,
		}
		if spec, err := json.Marshal(sr.Spec); err == nil {
			rec.SpecJSON = string(spec)
		}
		if sr.Failed() {
			rec.Status = storage.ScreenFailed
			if sr.Err != nil {
				rec.Error = sr.Err.Error()
			}
		} else {
			rec.ImagePath = filepath.Join(state.OutputDir, fmt.Sprintf("screen_%d.png", sr.Index+1))
			if err := os.WriteFile(rec.ImagePath, sr.PNG, 0644); err != nil {
				return nil, fmt.Errorf("writing screen image: %w", err)
			}
		}
		records = append(records, rec)
	}

	if res.Combined != nil {
		if err := os.WriteFile(filepath.Join(state.OutputDir, "combined.png"), res.Combined, 0644); err != nil {
			return nil, fmt.Errorf("writing combined image: %w", err)
		}
	}

	ledger, err := storage.NewScreenStore(m.opts.TempDir, state.Session.ID, m.opts.Ledger, m.logger)
	if err != nil {
		return nil, err
	}
	if err := ledger.PutAll(ctx, records); err != nil {
		return ledger, err
	}
	return ledger, nil
}

func (m *Manager) finish(id string) {
	m.mu.RLock()
	state, ok := m.sessions[id]
	var snapshot models.GenerationSession
	if ok {
		snapshot = copySession(state.Session)
	}
	m.mu.RUnlock()

	if ok && m.opts.OnFinish != nil {
		m.opts.OnFinish(snapshot)
	}
}

func (m *Manager) setProgress(id string, progress float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.sessions[id]; ok && progress > state.Session.Progress {
		state.Session.Progress = min(progress, 99.9)
	}
}

func (m *Manager) setStep(id, step, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.sessions[id]; ok {
		state.Session.Step = step
		state.Session.Message = message
	}
}

func (m *Manager) setStatus(id string, status models.SessionStatus, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.sessions[id]; ok {
		state.Session.Status = status
		state.Session.Message = message
	}
}

func (m *Manager) updateSessionError(id, stage, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return
	}
	state.Session.Status = models.SessionStatusError
	state.Session.Errors = append(state.Session.Errors, models.SessionError{Stage: stage, Reason: reason})
}

// progressSink forwards pipeline events into the session record.
type progressSink struct {
	m  *Manager
	id string
}

func (p *progressSink) Notify(step pipeline.Step, message string) {
	p.m.setStep(p.id, string(step), message)
}

func (p *progressSink) Percent(v float64) {
	p.m.setProgress(p.id, v)
}

// cleanupOldSessionsIfNeeded removes the oldest finished sessions when
// the manager is at capacity.
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()
	if len(m.sessions) < m.opts.MaxSessions {
		m.mu.Unlock()
		return
	}

	var finished []*State
	for _, state := range m.sessions {
		if state.Session.Done() {
			finished = append(finished, state)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].LastAccessed.Before(finished[j].LastAccessed)
	})

	toFree := len(m.sessions) - m.opts.MaxSessions + 1
	var removed []*State
	for _, state := range finished {
		if len(removed) >= toFree {
			break
		}
		delete(m.sessions, state.Session.ID)
		removed = append(removed, state)
	}
	m.mu.Unlock()

	for _, state := range removed {
		m.release(state)
		m.logger.Info("cleaned up old session to free capacity", "session", shortID(state.Session.ID))
	}
}

// CleanupOldSessions removes finished sessions not accessed within
// maxAge, sparing any touched within SessionKeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	now := time.Now()
	cutoff := now.Add(-maxAge)
	keepAliveCutoff := now.Add(-SessionKeepAliveWindow)

	m.mu.Lock()
	var removed []*State
	for id, state := range m.sessions {
		if !state.Session.Done() {
			continue
		}
		if state.LastAccessed.After(keepAliveCutoff) || state.LastAccessed.After(cutoff) {
			continue
		}
		delete(m.sessions, id)
		removed = append(removed, state)
	}
	m.mu.Unlock()

	for _, state := range removed {
		m.release(state)
		m.logger.Info("cleaned up aged session",
			"session", shortID(state.Session.ID),
			"idle", time.Since(state.LastAccessed).Round(time.Second))
	}
	return len(removed)
}

// StartCleanup schedules CleanupOldSessions every interval.
func (m *Manager) StartCleanup(interval, maxAge time.Duration) error {
	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if n := m.CleanupOldSessions(maxAge); n > 0 {
			m.logger.Debug("session cleanup ran", "removed", n)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling session cleanup: %w", err)
	}
	m.mu.Lock()
	if m.cron != nil {
		m.cron.Stop()
	}
	m.cron = c
	m.mu.Unlock()
	c.Start()
	return nil
}

// release frees the resources of a session already removed from the map.
func (m *Manager) release(state *State) {
	state.cancel()
	<-state.done
	if state.Ledger != nil {
		state.Ledger.Close()
	}
	os.RemoveAll(state.OutputDir)
}

// GetSession returns a snapshot of a session.
func (m *Manager) GetSession(id string) (*models.GenerationSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	s := copySession(state.Session)
	return &s, true
}

// ListSessions returns snapshots of every session, newest first.
func (m *Manager) ListSessions() []models.GenerationSession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make([]*State, 0, len(m.sessions))
	for _, s := range m.sessions {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].CreatedAt.After(states[j].CreatedAt) })

	out := make([]models.GenerationSession, len(states))
	for i, s := range states {
		out[i] = copySession(s.Session)
	}
	return out
}

// TouchSession updates the LastAccessed timestamp so an actively viewed
// session is not cleaned up.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// GetResult returns the pipeline result of a completed session.
func (m *Manager) GetResult(id string) (*pipeline.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if state.Session.Status != models.SessionStatusComplete || state.Result == nil {
		return nil, ErrNotReady
	}
	return state.Result, nil
}

func (m *Manager) ledger(id string) (*storage.ScreenStore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if state.Ledger == nil {
		return nil, ErrNotReady
	}
	return state.Ledger, nil
}

// Screens lists the ledger rows of a completed session.
func (m *Manager) Screens(ctx context.Context, id string) ([]storage.ScreenRecord, error) {
	ledger, err := m.ledger(id)
	if err != nil {
		return nil, err
	}
	recs, err := ledger.List(ctx)
	return recs, ledgerError(err)
}

// Screen returns the ledger row of screen index i.
func (m *Manager) Screen(ctx context.Context, id string, i int) (storage.ScreenRecord, error) {
	ledger, err := m.ledger(id)
	if err != nil {
		return storage.ScreenRecord{}, err
	}
	rec, err := ledger.Get(ctx, i)
	return rec, ledgerError(err)
}

// ledgerError reports a ledger closed under a reader as a session that
// no longer exists.
func ledgerError(err error) error {
	if errors.Is(err, storage.ErrClosed) {
		return ErrNotFound
	}
	return err
}

// CombinedImagePath returns the combined layout file of a session.
func (m *Manager) CombinedImagePath(id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return "", ErrNotFound
	}
	if state.Result == nil || state.Result.Combined == nil {
		return "", ErrNotReady
	}
	return filepath.Join(state.OutputDir, "combined.png"), nil
}

// CancelSession stops a running session. It reports false for unknown
// or already finished sessions.
func (m *Manager) CancelSession(id string) bool {
	m.mu.RLock()
	state, ok := m.sessions[id]
	running := ok && !state.Session.Done()
	m.mu.RUnlock()

	if !running {
		return false
	}
	state.cancel()
	return true
}

// DeleteSession cancels a session if it is running and removes all of
// its outputs.
func (m *Manager) DeleteSession(id string) error {
	m.mu.Lock()
	state, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	m.release(state)
	return nil
}

// Close stops scheduled cleanup and releases every session.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.cron != nil {
		m.cron.Stop()
		m.cron = nil
	}
	states := make([]*State, 0, len(m.sessions))
	for id, s := range m.sessions {
		states = append(states, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range states {
		m.release(s)
	}
}

func copySession(s *models.GenerationSession) models.GenerationSession {
	c := *s
	c.Errors = append(make([]models.SessionError, 0, len(s.Errors)), s.Errors...)
	c.Degraded = append([]string(nil), s.Degraded...)
	if s.Summary != nil {
		summary := *s.Summary
		summary.Failed = append([]string(nil), s.Summary.Failed...)
		c.Summary = &summary
	}
	return c
}
