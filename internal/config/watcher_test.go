package config_test

import (
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/reelwright/internal/config"
)

const watchBase = `
server:
  log_level: info
providers:
  llm:
    name: openai
  stt:
    name: http
    base_url: "http://stt.local/transcribe"
content:
  language: uz
`

// changes collects watcher callbacks.
type changes struct {
	mu    sync.Mutex
	diffs []config.ConfigDiff
	cfgs  []*config.Config
}

func (c *changes) record(cfg *config.Config, d config.ConfigDiff) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfgs = append(c.cfgs, cfg)
	c.diffs = append(c.diffs, d)
}

func (c *changes) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.diffs)
}

func (c *changes) last() (*config.Config, config.ConfigDiff) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfgs[len(c.cfgs)-1], c.diffs[len(c.diffs)-1]
}

// rewrite replaces the file and moves its mtime forward so the poller sees a
// new stamp even on filesystems with coarse timestamps.
func rewrite(t *testing.T, path, content string, bump time.Duration) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	when := time.Now().Add(bump)
	if err := os.Chtimes(path, when, when); err != nil {
		t.Fatal(err)
	}
}

func startWatcher(t *testing.T, content string) (*config.Watcher, *changes, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	rewrite(t, path, content, 0)
	c := &changes{}
	w, err := config.NewWatcher(path, c.record, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return w, c, path
}

func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestWatcher_InitialConfig(t *testing.T) {
	t.Parallel()
	w, _, _ := startWatcher(t, watchBase)
	cfg := w.Current()
	if cfg.Content.Language != "uz" || cfg.Media.ChunkSeconds != config.DefaultChunkSeconds {
		t.Errorf("initial config not defaulted: %+v", cfg.Content)
	}
}

func TestWatcher_LogLevelAndRestartSections(t *testing.T) {
	t.Parallel()
	w, c, path := startWatcher(t, watchBase)

	updated := `
server:
  log_level: debug
providers:
  llm:
    name: openai
  stt:
    name: http
    base_url: "http://stt.local/transcribe"
content:
  language: en
`
	rewrite(t, path, updated, time.Second)
	if !waitFor(t, func() bool { return c.count() == 1 }) {
		t.Fatal("no change reported")
	}
	cfg, d := c.last()
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("diff = %+v, want log level debug", d)
	}
	if !slices.Equal(d.RestartRequired, []string{"content"}) {
		t.Errorf("RestartRequired = %v, want [content]", d.RestartRequired)
	}
	if cfg.Content.Language != "en" || w.Current() != cfg {
		t.Error("Current() does not return the reloaded config")
	}
}

func TestWatcher_InvalidReloadIgnored(t *testing.T) {
	t.Parallel()
	w, c, path := startWatcher(t, watchBase)
	before := w.Current()

	rewrite(t, path, "server:\n  log_level: loud\n", time.Second)
	time.Sleep(100 * time.Millisecond)
	if c.count() != 0 {
		t.Errorf("invalid file produced %d callbacks", c.count())
	}
	if w.Current() != before {
		t.Error("invalid file replaced the current config")
	}

	// A later valid edit is still picked up.
	rewrite(t, path, watchBase+"sessions:\n  ttl: 1h\n", 2*time.Second)
	if !waitFor(t, func() bool { return c.count() == 1 }) {
		t.Fatal("valid edit after invalid one was not applied")
	}
	if _, d := c.last(); !slices.Equal(d.RestartRequired, []string{"sessions"}) {
		t.Errorf("RestartRequired = %v, want [sessions]", d.RestartRequired)
	}
}

func TestWatcher_NoEffectiveChange(t *testing.T) {
	t.Parallel()
	w, c, path := startWatcher(t, watchBase)
	before := w.Current()

	tests := []struct {
		name    string
		content string
	}{
		{"touch", watchBase},
		{"comment", "# edited\n" + watchBase},
		{"explicit default", watchBase + "media:\n  chunk_seconds: 48\n"},
	}
	for i, tt := range tests {
		rewrite(t, path, tt.content, time.Duration(i+1)*time.Second)
		time.Sleep(60 * time.Millisecond)
		if c.count() != 0 {
			t.Fatalf("%s: got %d callbacks, want none", tt.name, c.count())
		}
	}
	if w.Current() != before {
		t.Error("Current() changed without an effective edit")
	}
}

func TestWatcher_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Fatal("want error for missing file")
	}
}

func TestWatcher_StopTwice(t *testing.T) {
	t.Parallel()
	w, _, _ := startWatcher(t, watchBase)
	w.Stop()
	w.Stop()
}
