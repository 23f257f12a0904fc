package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"foresight/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type actionRecorder struct {
	mu      sync.Mutex
	actions []types.Action
}

func (r *actionRecorder) record(a types.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, a)
}

func (r *actionRecorder) snapshot() []types.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Action, len(r.actions))
	copy(out, r.actions)
	return out
}

func writeGitHead(t *testing.T, root, ref string) {
	t.Helper()
	gitDir := filepath.Join(root, ".git")
	require.NoError(t, os.MkdirAll(gitDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte(ref+"\n"), 0644))
}

func startWatcher(t *testing.T, root string, rec *actionRecorder) *Watcher {
	t.Helper()
	w, err := New(root, 20*time.Millisecond, []string{"node_modules"}, rec.record)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w
}

func TestWatcherTurnsWritesIntoFileActions(t *testing.T) {
	root := t.TempDir()
	writeGitHead(t, root, "ref: refs/heads/feature/login")
	rec := &actionRecorder{}
	startWatcher(t, root, rec)

	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0644))

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) >= 1
	}, 3*time.Second, 20*time.Millisecond, "expected a file action")

	actions := rec.snapshot()
	a := actions[0]
	assert.Equal(t, types.ActionFile, a.Type)
	assert.Equal(t, "main.go", a.Value)
	assert.Equal(t, "feature/login", a.Context["branch"])
	_, hasPrevious := a.Context["previousFile"]
	assert.False(t, hasPrevious, "first file has no predecessor")
}

func TestWatcherChainsPreviousFile(t *testing.T) {
	root := t.TempDir()
	rec := &actionRecorder{}
	startWatcher(t, root, rec)

	require.NoError(t, os.WriteFile(filepath.Join(root, "first.go"), []byte("a"), 0644))
	require.Eventually(t, func() bool {
		return len(rec.snapshot()) >= 1
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "second.go"), []byte("b"), 0644))
	require.Eventually(t, func() bool {
		return len(rec.snapshot()) >= 2
	}, 3*time.Second, 20*time.Millisecond)

	actions := rec.snapshot()
	assert.Equal(t, "second.go", actions[1].Value)
	assert.Equal(t, "first.go", actions[1].Context["previousFile"])
}

func TestWatcherPublishesContextSnapshots(t *testing.T) {
	root := t.TempDir()
	writeGitHead(t, root, "ref: refs/heads/main")
	rec := &actionRecorder{}
	w := startWatcher(t, root, rec)

	require.NoError(t, os.WriteFile(filepath.Join(root, "app.go"), []byte("x"), 0644))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case ctx := <-w.Updates():
			if ctx.CurrentFile != "app.go" {
				continue
			}
			assert.Equal(t, "main", ctx.Branch)
			assert.Contains(t, ctx.RecentFiles, "app.go")
			return
		case <-deadline:
			t.Fatal("no context snapshot arrived")
		}
	}
}

func TestWatcherIgnoresConfiguredDirs(t *testing.T) {
	root := t.TempDir()
	ignored := filepath.Join(root, "node_modules", "pkg")
	require.NoError(t, os.MkdirAll(ignored, 0755))
	rec := &actionRecorder{}
	startWatcher(t, root, rec)

	require.NoError(t, os.WriteFile(filepath.Join(ignored, "index.js"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "kept.go"), []byte("x"), 0644))

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) >= 1
	}, 3*time.Second, 20*time.Millisecond)

	for _, a := range rec.snapshot() {
		assert.NotContains(t, a.Value, "node_modules")
	}
}

func TestPrependUnique(t *testing.T) {
	got := prependUnique([]string{"b", "a", "c"}, "a", 3)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	got = prependUnique([]string{"a", "b", "c"}, "d", 3)
	assert.Equal(t, []string{"d", "a", "b"}, got)

	assert.Equal(t, []string{"x"}, prependUnique(nil, "x", 3))
}
