package task

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatcher_ReloadsOnChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.yaml")
	require.NoError(t, WriteFile(path, DefaultRegistry()))

	reloaded := make(chan *Registry, 4)
	w, err := NewWatcher(path, func(r *Registry) { reloaded <- r })
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte(sampleTasks), 0644))

	select {
	case r := <-reloaded:
		c, ok := r.Get(KindContractCreation)
		require.True(t, ok)
		assert.Equal(t, []string{"ACCOUNT_NUMBER", "CONTRACT_NAME"}, c.RequiredKeys())
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}
}

func TestWatcher_KeepsPreviousOnBadFile(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.yaml")
	require.NoError(t, WriteFile(path, DefaultRegistry()))

	reloaded := make(chan *Registry, 4)
	w, err := NewWatcher(path, func(r *Registry) { reloaded <- r })
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(path, []byte("tasks: ["), 0644))

	require.Eventually(t, func() bool { return w.Stats().Errors > 0 }, 5*time.Second, 20*time.Millisecond)
	w.Stop()

	assert.Empty(t, reloaded)
	assert.Zero(t, w.Stats().Reloads)
	assert.Contains(t, w.Stats().LastError, "failed to parse task file")
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.yaml")
	require.NoError(t, WriteFile(path, DefaultRegistry()))

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0644))
	time.Sleep(100 * time.Millisecond)

	cancel()
	w.Stop()
	assert.Zero(t, w.Stats().Events)
}

func TestWatcher_RunStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, WriteFile(path, DefaultRegistry()))

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}
