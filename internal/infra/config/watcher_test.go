package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mgmtd/internal/domain"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeTempConfig(t, `
logging:
  level: info
`)
	w := NewWatcher(NewLoader(nil), path, nil)
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan domain.Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(cfg domain.Config, err error) {
			if err != nil {
				return
			}
			select {
			case changes <- cfg:
			default:
			}
		})
	}()

	// Give the watcher time to register before writing.
	require.Eventually(t, func() bool {
		if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600); err != nil {
			return false
		}
		select {
		case cfg := <-changes:
			return cfg.Logging.Level == "debug"
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestShouldReloadForEvent(t *testing.T) {
	path := "/etc/mgmtd/config.yaml"
	assert.True(t, shouldReloadForEvent(fsnotify.Event{Name: path, Op: fsnotify.Write}, path))
	assert.True(t, shouldReloadForEvent(fsnotify.Event{Name: "/etc/mgmtd/./config.yaml", Op: fsnotify.Create}, path))
	assert.False(t, shouldReloadForEvent(fsnotify.Event{Name: path, Op: fsnotify.Chmod}, path))
	assert.False(t, shouldReloadForEvent(fsnotify.Event{Name: "/etc/mgmtd/other.yaml", Op: fsnotify.Write}, path))
	assert.False(t, shouldReloadForEvent(fsnotify.Event{Name: path, Op: fsnotify.Write}, ""))
}
