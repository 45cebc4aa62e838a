package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// renderWithin runs Render and fails the test if it has not returned after d.
func renderWithin(t *testing.T, r Renderer, d time.Duration) error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		_, err := r.Render(context.Background(), "https://example.com", RenderOptions{Screenshot: true})
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(d):
		t.Fatalf("Render still running after %s", d)
		return nil
	}
}

func TestRodRenderer_LaunchFailure(t *testing.T) {
	r := NewRodRenderer(RodConfig{
		BrowserBin: filepath.Join(t.TempDir(), "no-such-chromium"),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err := renderWithin(t, r, 10*time.Second); err == nil {
		t.Fatal("expected launch error for a missing browser binary")
	}
}

func TestRodRenderer_RemoteUnreachable(t *testing.T) {
	r := NewRodRenderer(RodConfig{
		RemoteURL: "ws://127.0.0.1:1",
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err := renderWithin(t, r, 10*time.Second); err == nil {
		t.Fatal("expected connect error for an unreachable browser")
	}
}

func TestCapture_BrowserUnavailable(t *testing.T) {
	for name, cfg := range map[string]RodConfig{
		"launch": {BrowserBin: filepath.Join(t.TempDir(), "no-such-chromium")},
		"remote": {RemoteURL: "ws://127.0.0.1:1"},
	} {
		t.Run(name, func(t *testing.T) {
			cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
			c, dir := newCapturer(t, NewRodRenderer(cfg), time.Now)

			done := make(chan error, 1)
			go func() {
				_, err := c.Capture(context.Background(), "https://example.com", Options{})
				done <- err
			}()
			var err error
			select {
			case err = <-done:
			case <-time.After(10 * time.Second):
				t.Fatal("Capture still running after 10s")
			}
			if !errors.Is(err, ErrCaptureFailed) {
				t.Fatalf("err = %v, want ErrCaptureFailed", err)
			}
			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 {
				t.Fatalf("screenshot dir not empty: %v", entries)
			}
		})
	}
}
