package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/sitelens/horosafe"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake")

type fakeRenderer struct {
	png   []byte
	html  string
	err   error
	calls int
	last  RenderOptions
}

func (f *fakeRenderer) Render(ctx context.Context, url string, opts RenderOptions) (*Rendered, error) {
	f.calls++
	f.last = opts
	if f.err != nil {
		return nil, f.err
	}
	out := &Rendered{HTML: f.html}
	if opts.Screenshot {
		out.PNG = f.png
	}
	return out, nil
}

func newCapturer(t *testing.T, r Renderer, now func() time.Time) (*Capturer, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "shots")
	return New(Config{
		Dir:      dir,
		Renderer: r,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:      now,
	}), dir
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestFileName(t *testing.T) {
	ts := time.Date(2024, 3, 9, 7, 5, 2, 999, time.Local)
	if got := FileName(ts); got != "screenshot_20240309_070502.png" {
		t.Fatalf("FileName = %q", got)
	}
	if !regexp.MustCompile(`^screenshot_\d{8}_\d{6}\.png$`).MatchString(FileName(time.Now())) {
		t.Fatal("FileName does not match the artifact pattern")
	}
}

func TestCapture_WritesFile(t *testing.T) {
	r := &fakeRenderer{png: pngBytes}
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)
	c, dir := newCapturer(t, r, fixedClock(ts))

	res, err := c.Capture(context.Background(), "https://example.com", Options{})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if res.Filename != "screenshot_20240102_030405.png" {
		t.Fatalf("Filename = %q", res.Filename)
	}
	if res.Path != filepath.Join(dir, res.Filename) {
		t.Fatalf("Path = %q", res.Path)
	}
	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, pngBytes) {
		t.Fatal("stored bytes differ from rendered bytes")
	}
	if res.Bytes != int64(len(pngBytes)) {
		t.Fatalf("Bytes = %d", res.Bytes)
	}
	if r.last.HTML {
		t.Fatal("HTML requested without WithHTML")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("dir has %d entries, want 1 (no temp files left)", len(entries))
	}
}

func TestCapture_SameSecondOverwrites(t *testing.T) {
	r := &fakeRenderer{png: []byte("first")}
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)
	c, dir := newCapturer(t, r, fixedClock(ts))

	a, err := c.Capture(context.Background(), "https://a.example", Options{})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	r.png = []byte("second")
	b, err := c.Capture(context.Background(), "https://b.example", Options{})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if a.Filename != b.Filename {
		t.Fatalf("filenames differ: %s vs %s", a.Filename, b.Filename)
	}
	data, _ := os.ReadFile(filepath.Join(dir, b.Filename))
	if string(data) != "second" {
		t.Fatalf("content = %q, want last writer", data)
	}
}

func TestCapture_FailureLeavesNoFile(t *testing.T) {
	r := &fakeRenderer{err: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	c, dir := newCapturer(t, r, time.Now)

	_, err := c.Capture(context.Background(), "https://nowhere.invalid", Options{})
	if !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("err = %v, want ErrCaptureFailed", err)
	}
	if !strings.HasPrefix(err.Error(), "Screenshot failed: ") || !strings.Contains(err.Error(), "ERR_NAME_NOT_RESOLVED") {
		t.Fatalf("message = %q", err.Error())
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("dir has %d entries after failure", len(entries))
	}
}

func TestCapture_EmptyImage(t *testing.T) {
	c, _ := newCapturer(t, &fakeRenderer{}, time.Now)
	if _, err := c.Capture(context.Background(), "https://example.com", Options{}); !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("err = %v", err)
	}
}

func TestCapture_RejectsUnsafeTarget(t *testing.T) {
	r := &fakeRenderer{png: pngBytes}
	c, _ := newCapturer(t, r, time.Now)

	_, err := c.Capture(context.Background(), "file:///etc/passwd", Options{})
	if !errors.Is(err, horosafe.ErrUnsafeScheme) {
		t.Fatalf("err = %v, want ErrUnsafeScheme", err)
	}
	if errors.Is(err, ErrCaptureFailed) {
		t.Fatal("validation error should not be a capture failure")
	}
	if r.calls != 0 {
		t.Fatalf("renderer called %d times", r.calls)
	}
}

func TestCapture_WithHTML(t *testing.T) {
	r := &fakeRenderer{png: pngBytes, html: "<html><title>x</title></html>"}
	c, _ := newCapturer(t, r, time.Now)

	res, err := c.Capture(context.Background(), "https://example.com", Options{WithHTML: true})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if !r.last.HTML || res.HTML != r.html {
		t.Fatalf("HTML = %q (requested %v)", res.HTML, r.last.HTML)
	}
}

func TestPageHTML(t *testing.T) {
	r := &fakeRenderer{html: "<p>hi</p>"}
	c, dir := newCapturer(t, r, time.Now)

	got, err := c.PageHTML(context.Background(), "https://example.com")
	if err != nil || got != "<p>hi</p>" {
		t.Fatalf("PageHTML = %q, %v", got, err)
	}
	if r.last.Screenshot {
		t.Fatal("PageHTML should not request a screenshot")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("PageHTML should not create the screenshot dir")
	}
}

func TestNewRodRendererDefaults(t *testing.T) {
	r := NewRodRenderer(RodConfig{})
	if r.cfg.Width != 1280 || r.cfg.Height != 720 || r.cfg.NavTimeout != 15*time.Second {
		t.Fatalf("defaults = %+v", r.cfg)
	}
}
