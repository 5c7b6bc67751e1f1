package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dokzlo13/chromad/internal/config"
	"github.com/dokzlo13/chromad/internal/eventbus"
	"github.com/dokzlo13/chromad/internal/kv"
	"github.com/dokzlo13/chromad/internal/ledger"
)

func writeMode(t *testing.T, dir, name, doc string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".json"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestModeState(t *testing.T) {
	bucket := kv.NewMemoryBucket(controllerBucket)
	state := NewModeState(bucket)

	if got := state.Initial("main", true); got != "main" {
		t.Errorf("nothing stored: %q", got)
	}

	bus := eventbus.New()
	state.Track(bus)
	bus.Publish(eventbus.Event{Type: eventbus.EventTypeMode, Data: map[string]any{"from": "main", "to": "select"}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	bus.Close(ctx)

	if got := state.Initial("main", true); got != "select" {
		t.Errorf("resume = %q, want select", got)
	}
	if got := state.Initial("main", false); got != "main" {
		t.Errorf("no resume = %q, want main", got)
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	writeMode(t, dir, "main", `{"actions": {"red": {"type": "open_url", "url": "https://example.com"}}}`)
	writeMode(t, dir, "select", `{"actions": {"red": {"type": "teleport"}}}`)
	writeMode(t, dir, "scripted", `{"sequences": [{"pattern": ["red"], "action": {"type": "script", "source": "if then"}}]}`)

	cfg := config.Default()
	cfg.Paths.ModesDir = dir

	bad, err := Check(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if bad != 2 {
		t.Errorf("invalid modes = %d, want 2", bad)
	}
}

func TestServices_SimulationRunsUntilQuit(t *testing.T) {
	dir := t.TempDir()
	writeMode(t, dir, "main", `{"actions": {"red": {"type": "switch_mode", "mode": "select"}}}`)

	cfg := config.Default()
	cfg.Database.Path = ":memory:"
	cfg.Paths.ModesDir = dir
	cfg.Paths.ColorsDir = filepath.Join(dir, "colors")
	cfg.Paths.Watchlist = filepath.Join(dir, "watchlist.json")
	cfg.Controller.FPS = 200
	cfg.Dispatch.DryRun = true

	s, err := NewServices(cfg, Options{Simulate: true, Stdin: strings.NewReader("quit\n")})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exited := make(chan error, 1)
	if err := s.Start(ctx, func(err error) { exited <- err }); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-exited:
		if err != nil {
			t.Errorf("exit error = %v, want clean stop", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("controller did not stop after quit")
	}

	if s.Controller.Mode().Name != "main" {
		t.Errorf("mode = %q, want main", s.Controller.Mode().Name)
	}
	entries, err := s.Ledger.GetByType(ledger.EventModeSwitched, 10)
	if err != nil || len(entries) != 1 {
		t.Errorf("mode_switched entries = %d, err = %v", len(entries), err)
	}

	cancel()
	if err := s.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
