package registry

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"toolgate/internal/domain"
)

type reloadRecorder struct {
	mu       sync.Mutex
	settings []domain.Settings
}

func (r *reloadRecorder) record(_ context.Context, settings domain.Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = append(r.settings, settings)
}

func (r *reloadRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.settings)
}

func (r *reloadRecorder) last() domain.Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings[len(r.settings)-1]
}

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func startWatcher(t *testing.T, path string, recorder *reloadRecorder) context.CancelFunc {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	watcher := NewWatcher(WatcherOptions{
		Path:     path,
		Debounce: 20 * time.Millisecond,
		OnReload: recorder.record,
		Logger:   zap.NewNop(),
	})

	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("watcher did not stop")
		}
	})
	return cancel
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "toolgate.yaml")
	writeConfigFile(t, path, "backends: []\n")

	recorder := &reloadRecorder{}
	startWatcher(t, path, recorder)

	writeConfigFile(t, path, `
backends:
  - name: files
    command: npx
`)
	require.Eventually(t, func() bool {
		return recorder.count() >= 1
	}, 3*time.Second, 10*time.Millisecond)
	require.Len(t, recorder.last().Backends, 1)
	require.Equal(t, "files", recorder.last().Backends[0].Name)

	writeConfigFile(t, path, `
backends:
  - name: files
    command: npx
  - name: web
    command: uvx
`)
	require.Eventually(t, func() bool {
		return recorder.count() >= 2 && len(recorder.last().Backends) == 2
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWatcherKeepsSettingsOnParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "toolgate.yaml")
	writeConfigFile(t, path, "backends: []\n")

	recorder := &reloadRecorder{}
	startWatcher(t, path, recorder)

	writeConfigFile(t, path, "backends: [broken\n")
	time.Sleep(250 * time.Millisecond)
	require.Zero(t, recorder.count())

	writeConfigFile(t, path, `
backends:
  - name: recovered
    command: npx
`)
	require.Eventually(t, func() bool {
		return recorder.count() >= 1
	}, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, "recovered", recorder.last().Backends[0].Name)
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "toolgate.yaml")
	writeConfigFile(t, path, "backends: []\n")

	recorder := &reloadRecorder{}
	startWatcher(t, path, recorder)

	writeConfigFile(t, filepath.Join(dir, "other.yaml"), "unrelated: true\n")
	time.Sleep(250 * time.Millisecond)
	require.Zero(t, recorder.count())
}

func TestWatcherStopsOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "toolgate.yaml")
	writeConfigFile(t, path, "backends: []\n")

	recorder := &reloadRecorder{}
	cancel := startWatcher(t, path, recorder)
	cancel()
}

func TestWatcherMatchesConfig(t *testing.T) {
	w := NewWatcher(WatcherOptions{Path: "/etc/toolgate/toolgate.yaml"})

	require.True(t, w.matchesConfig("/etc/toolgate/toolgate.yaml"))
	require.True(t, w.matchesConfig("/etc/toolgate/../toolgate/toolgate.yaml"))
	require.False(t, w.matchesConfig("/etc/toolgate/other.yaml"))
	require.False(t, w.matchesConfig(""))
}
