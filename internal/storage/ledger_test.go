package storage

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *ScreenStore {
	t.Helper()
	store, err := NewScreenStore(t.TempDir(), "test-session", LedgerOptions{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestScreenStore_PutAndQuery(t *testing.T) {
	ctx := context.Background()
	store := newTestLedger(t)

	require.NoError(t, store.Put(ctx, ScreenRecord{Index: 1, Name: "Alarms", Type: "alarm", Status: ScreenFailed, Source: "fallback", Error: "render panic"}))
	require.NoError(t, store.Put(ctx, ScreenRecord{Index: 0, Name: "Overview", Type: "home", Status: ScreenRendered, Source: "model", ElementCount: 9, SpecJSON: `{"screenTitle":"Overview"}`, ImagePath: "/out/screen_1.png", RenderMs: 12}))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Overview", list[0].Name)
	assert.Equal(t, 9, list[0].ElementCount)
	assert.Equal(t, `{"screenTitle":"Overview"}`, list[0].SpecJSON)
	assert.Equal(t, "render panic", list[1].Error)

	rec, err := store.Get(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "/out/screen_1.png", rec.ImagePath)
	assert.EqualValues(t, 12, rec.RenderMs)

	_, err = store.Get(ctx, 5)
	assert.True(t, errors.Is(err, ErrNotFound))

	summary, err := store.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SuccessfulScreens)
	assert.Equal(t, 1, summary.FailedScreens)
	assert.Equal(t, []string{"Alarms"}, summary.Failed)

	sources, err := store.SourceCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"model": 1, "fallback": 1}, sources)
}

func TestScreenStore_PutReplaces(t *testing.T) {
	ctx := context.Background()
	store := newTestLedger(t)

	require.NoError(t, store.Put(ctx, ScreenRecord{Index: 0, Name: "Overview", Status: ScreenFailed}))
	require.NoError(t, store.Put(ctx, ScreenRecord{Index: 0, Name: "Overview", Status: ScreenRendered}))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ScreenRendered, list[0].Status)
}

func TestScreenStore_PutAll(t *testing.T) {
	ctx := context.Background()
	store := newTestLedger(t)

	recs := []ScreenRecord{
		{Index: 0, Name: "Overview", Status: ScreenRendered},
		{Index: 1, Name: "Control", Status: ScreenRendered},
		{Index: 2, Name: "Trends", Status: ScreenFailed, Error: "boom"},
	}
	require.NoError(t, store.PutAll(ctx, recs))

	summary, err := store.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.SuccessfulScreens)
	assert.Equal(t, []string{"Trends"}, summary.Failed)
}

func TestScreenStore_CloseRemovesFile(t *testing.T) {
	store, err := NewScreenStore(t.TempDir(), "closing", LedgerOptions{Threads: 1, MemoryLimit: "64MB"}, nil)
	require.NoError(t, err)

	path := store.Path()
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, store.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestScreenStore_UseAfterClose(t *testing.T) {
	ctx := context.Background()
	store, err := NewScreenStore(t.TempDir(), "closed", LedgerOptions{}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, ScreenRecord{Index: 0, Name: "Overview", Status: ScreenRendered}))
	require.NoError(t, store.Close())

	_, err = store.List(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = store.Get(ctx, 0)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = store.Summary(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = store.SourceCounts(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, store.Put(ctx, ScreenRecord{Index: 1}), ErrClosed)
	assert.ErrorIs(t, store.PutAll(ctx, []ScreenRecord{{Index: 1}}), ErrClosed)
	assert.NoError(t, store.Close())
}

func TestScreenStore_CloseDuringReads(t *testing.T) {
	ctx := context.Background()
	store, err := NewScreenStore(t.TempDir(), "racing", LedgerOptions{}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, ScreenRecord{Index: 0, Name: "Overview", Status: ScreenRendered}))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				if _, err := store.List(ctx); err != nil && !errors.Is(err, ErrClosed) {
					t.Errorf("unexpected error: %v", err)
					return
				}
			}
		}()
	}
	require.NoError(t, store.Close())
	wg.Wait()
}
