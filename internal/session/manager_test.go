package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmi-forge/backend/internal/models"
	"github.com/hmi-forge/backend/internal/pipeline"
	"github.com/hmi-forge/backend/internal/render"
	"github.com/hmi-forge/backend/internal/storage"
	"github.com/hmi-forge/backend/internal/testutil"
)

type runnerFunc func(ctx context.Context, path string, sink pipeline.ProgressSink) (*pipeline.Result, error)

func (f runnerFunc) Run(ctx context.Context, path string, sink pipeline.ProgressSink) (*pipeline.Result, error) {
	return f(ctx, path, sink)
}

var blockingRunner = runnerFunc(func(ctx context.Context, _ string, sink pipeline.ProgressSink) (*pipeline.Result, error) {
	sink.Notify(pipeline.StepDocumentRead, "reading")
	<-ctx.Done()
	return nil, ctx.Err()
})

func newTestManager(t *testing.T, runner Runner, opts Options) *Manager {
	t.Helper()
	dir := t.TempDir()
	opts.OutputDir = filepath.Join(dir, "output")
	opts.TempDir = filepath.Join(dir, "temp")
	m := NewManager(runner, opts, nil)
	t.Cleanup(m.Close)
	return m
}

func waitForDone(t *testing.T, m *Manager, id string) *models.GenerationSession {
	t.Helper()
	var s *models.GenerationSession
	require.Eventually(t, func() bool {
		var ok bool
		s, ok = m.GetSession(id)
		return ok && s.Done()
	}, 30*time.Second, 20*time.Millisecond)
	return s
}

func TestManager_CompletesSession(t *testing.T) {
	path := testutil.WriteFile(t, "pump.txt", testutil.PumpFDS)
	runner := pipeline.New(nil, nil, pipeline.Options{Workers: 2, Values: render.FixedValues{}}, nil)

	var (
		mu       sync.Mutex
		finished []models.GenerationSession
	)
	m := newTestManager(t, runner, Options{OnFinish: func(s models.GenerationSession) {
		mu.Lock()
		defer mu.Unlock()
		finished = append(finished, s)
	}})

	sess, err := m.StartSession("file-1", path)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusGenerating, sess.Status)

	s := waitForDone(t, m, sess.ID)
	require.Equal(t, models.SessionStatusComplete, s.Status, "errors: %v", s.Errors)
	assert.Equal(t, 100.0, s.Progress)
	assert.Equal(t, "pump_system", s.SystemType)
	assert.Equal(t, 4, s.ScreenCount)
	require.NotNil(t, s.Summary)
	assert.Equal(t, 4, s.Summary.SuccessfulScreens)
	assert.Zero(t, s.Summary.FailedScreens)

	records, err := m.Screens(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "Main Overview Screen", records[0].Name)
	assert.FileExists(t, records[0].ImagePath)
	assert.Equal(t, filepath.Join(m.opts.OutputDir, sess.ID, "screen_1.png"), records[0].ImagePath)

	rec, err := m.Screen(context.Background(), sess.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "Alarm Summary Display", rec.Name)
	assert.Contains(t, rec.SpecJSON, `"screenTitle"`)

	combined, err := m.CombinedImagePath(sess.ID)
	require.NoError(t, err)
	assert.FileExists(t, combined)

	res, err := m.GetResult(sess.ID)
	require.NoError(t, err)
	assert.Len(t, res.Results, 4)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(finished) == 1
	}, 5*time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, models.SessionStatusComplete, finished[0].Status)
	mu.Unlock()
}

func TestManager_CancelSession(t *testing.T) {
	m := newTestManager(t, blockingRunner, Options{})

	sess, err := m.StartSession("file-1", "ignored")
	require.NoError(t, err)

	_, err = m.GetResult(sess.ID)
	assert.ErrorIs(t, err, ErrNotReady)

	require.True(t, m.CancelSession(sess.ID))
	s := waitForDone(t, m, sess.ID)
	assert.Equal(t, models.SessionStatusCancelled, s.Status)
	assert.NoDirExists(t, filepath.Join(m.opts.OutputDir, sess.ID))

	assert.False(t, m.CancelSession(sess.ID), "finished sessions cannot be cancelled")
	assert.False(t, m.CancelSession("missing"))
}

func TestManager_Failures(t *testing.T) {
	tests := []struct {
		name   string
		runner Runner
		reason string
	}{
		{
			name: "runner error",
			runner: runnerFunc(func(context.Context, string, pipeline.ProgressSink) (*pipeline.Result, error) {
				return nil, errors.New("encoding combined layout: disk full")
			}),
			reason: "disk full",
		},
		{
			name: "runner panic",
			runner: runnerFunc(func(context.Context, string, pipeline.ProgressSink) (*pipeline.Result, error) {
				panic("unexpected nil spec")
			}),
			reason: "generation panicked: unexpected nil spec",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t, tt.runner, Options{})
			sess, err := m.StartSession("file-1", "ignored")
			require.NoError(t, err)

			s := waitForDone(t, m, sess.ID)
			assert.Equal(t, models.SessionStatusError, s.Status)
			require.Len(t, s.Errors, 1)
			assert.Equal(t, "pipeline", s.Errors[0].Stage)
			assert.Contains(t, s.Errors[0].Reason, tt.reason)
		})
	}
}

func TestManager_DeleteSession(t *testing.T) {
	path := testutil.WriteFile(t, "pump.txt", testutil.PumpFDS)
	runner := pipeline.New(nil, nil, pipeline.Options{Values: render.FixedValues{}}, nil)
	m := newTestManager(t, runner, Options{})

	sess, err := m.StartSession("file-1", path)
	require.NoError(t, err)
	waitForDone(t, m, sess.ID)

	ledger, err := m.ledger(sess.ID)
	require.NoError(t, err)
	ledgerPath := ledger.Path()
	outDir := filepath.Join(m.opts.OutputDir, sess.ID)
	require.DirExists(t, outDir)

	require.NoError(t, m.DeleteSession(sess.ID))
	_, ok := m.GetSession(sess.ID)
	assert.False(t, ok)
	assert.NoDirExists(t, outDir)
	_, err = os.Stat(ledgerPath)
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, m.DeleteSession(sess.ID), ErrNotFound)

	// a reader that fetched the ledger before the delete sees a missing session
	_, err = ledger.List(context.Background())
	assert.ErrorIs(t, err, storage.ErrClosed)
	assert.ErrorIs(t, ledgerError(err), ErrNotFound)
}

func TestManager_DeleteRunningSession(t *testing.T) {
	m := newTestManager(t, blockingRunner, Options{})
	sess, err := m.StartSession("file-1", "ignored")
	require.NoError(t, err)

	require.NoError(t, m.DeleteSession(sess.ID))
	_, ok := m.GetSession(sess.ID)
	assert.False(t, ok)
}

func TestManager_MaxSessions(t *testing.T) {
	m := newTestManager(t, blockingRunner, Options{MaxSessions: 2})

	_, err := m.StartSession("a", "ignored")
	require.NoError(t, err)
	_, err = m.StartSession("b", "ignored")
	require.NoError(t, err)

	_, err = m.StartSession("c", "ignored")
	assert.ErrorIs(t, err, ErrTooManySessions)
	assert.Len(t, m.ListSessions(), 2)
}

func TestManager_CapacityEvictsFinishedSessions(t *testing.T) {
	failing := runnerFunc(func(context.Context, string, pipeline.ProgressSink) (*pipeline.Result, error) {
		return nil, errors.New("boom")
	})
	m := newTestManager(t, failing, Options{MaxSessions: 1})

	first, err := m.StartSession("a", "ignored")
	require.NoError(t, err)
	waitForDone(t, m, first.ID)

	second, err := m.StartSession("b", "ignored")
	require.NoError(t, err)
	_, ok := m.GetSession(first.ID)
	assert.False(t, ok, "finished session should be evicted at capacity")
	_, ok = m.GetSession(second.ID)
	assert.True(t, ok)
}

func TestManager_CleanupOldSessions(t *testing.T) {
	failing := runnerFunc(func(context.Context, string, pipeline.ProgressSink) (*pipeline.Result, error) {
		return nil, errors.New("boom")
	})
	m := newTestManager(t, failing, Options{})

	stale, _ := m.StartSession("a", "ignored")
	fresh, _ := m.StartSession("b", "ignored")
	waitForDone(t, m, stale.ID)
	waitForDone(t, m, fresh.ID)

	m.mu.Lock()
	m.sessions[stale.ID].LastAccessed = time.Now().Add(-2 * time.Hour)
	m.sessions[fresh.ID].LastAccessed = time.Now().Add(-2 * time.Hour)
	m.mu.Unlock()
	require.True(t, m.TouchSession(fresh.ID))

	assert.Equal(t, 1, m.CleanupOldSessions(time.Hour))
	_, ok := m.GetSession(stale.ID)
	assert.False(t, ok)
	_, ok = m.GetSession(fresh.ID)
	assert.True(t, ok)
	assert.False(t, m.TouchSession(stale.ID))
}

func TestManager_StartCleanup(t *testing.T) {
	m := newTestManager(t, blockingRunner, Options{})
	require.NoError(t, m.StartCleanup(time.Hour, time.Hour))
	require.NoError(t, m.StartCleanup(30*time.Minute, time.Hour))
}

func TestManager_ProgressSnapshot(t *testing.T) {
	m := newTestManager(t, blockingRunner, Options{})
	sess, err := m.StartSession("file-1", "ignored")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s, _ := m.GetSession(sess.ID)
		return s.Step == string(pipeline.StepDocumentRead)
	}, 5*time.Second, 10*time.Millisecond)

	sink := &progressSink{m: m, id: sess.ID}
	sink.Percent(40)
	sink.Percent(20)
	s, _ := m.GetSession(sess.ID)
	assert.Equal(t, 40.0, s.Progress, "progress never moves backwards")

	s.Errors = append(s.Errors, models.SessionError{Reason: "mutated copy"})
	again, _ := m.GetSession(sess.ID)
	assert.Empty(t, again.Errors)
}
