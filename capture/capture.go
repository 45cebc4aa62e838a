// Package capture takes full-page PNG screenshots of web pages and stores
// them under a timestamp-derived file name.
//
// Every capture launches (or connects to) its own browser and tears it down
// before returning. There is no coordination between concurrent captures:
// two captures within the same wall-clock second write the same file and the
// last writer wins.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/sitelens/horosafe"
)

// ErrCaptureFailed prefixes every browser or write failure.
var ErrCaptureFailed = errors.New("Screenshot failed")

// FileName returns the artifact name for a capture taken at t.
func FileName(t time.Time) string {
	return "screenshot_" + t.Format("20060102_150405") + ".png"
}

// RenderOptions selects what Render returns.
type RenderOptions struct {
	Screenshot bool
	HTML       bool
}

// Rendered is the output of one page render.
type Rendered struct {
	PNG  []byte
	HTML string
}

// Renderer loads a URL in a browser. Implementations must release every
// browser resource before returning, on success and on failure.
type Renderer interface {
	Render(ctx context.Context, url string, opts RenderOptions) (*Rendered, error)
}

// Config configures a Capturer.
type Config struct {
	Dir      string
	Renderer Renderer

	// BlockPrivate rejects targets resolving to loopback or private ranges.
	BlockPrivate bool

	Logger *slog.Logger
	Now    func() time.Time
}

// Capturer writes screenshots into Dir.
type Capturer struct {
	dir          string
	renderer     Renderer
	blockPrivate bool
	logger       *slog.Logger
	now          func() time.Time
}

// New builds a Capturer.
func New(cfg Config) *Capturer {
	if cfg.Dir == "" {
		cfg.Dir = "screenshots"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Capturer{
		dir:          cfg.Dir,
		renderer:     cfg.Renderer,
		blockPrivate: cfg.BlockPrivate,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}
}

// Dir returns the screenshot directory.
func (c *Capturer) Dir() string { return c.dir }

// Options tunes a single capture.
type Options struct {
	// WithHTML also returns the rendered document.
	WithHTML bool
}

// Result describes a stored screenshot.
type Result struct {
	Filename string
	Path     string
	Bytes    int64
	HTML     string
	Duration time.Duration
}

// Capture renders url and stores a full-page PNG. Target validation errors
// are returned as is (they wrap horosafe sentinels); any later failure
// wraps ErrCaptureFailed and leaves no file behind.
func (c *Capturer) Capture(ctx context.Context, url string, opts Options) (*Result, error) {
	if err := horosafe.ValidateTarget(url, c.blockPrivate); err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	start := time.Now()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	name := FileName(c.now())
	path := filepath.Join(c.dir, name)

	out, err := c.renderer.Render(ctx, url, RenderOptions{Screenshot: true, HTML: opts.WithHTML})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	if len(out.PNG) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrCaptureFailed)
	}

	if err := writeAtomic(c.dir, path, out.PNG); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}

	res := &Result{
		Filename: name,
		Path:     path,
		Bytes:    int64(len(out.PNG)),
		HTML:     out.HTML,
		Duration: time.Since(start),
	}
	c.logger.Info("capture: stored", "url", url, "file", name, "bytes", res.Bytes, "duration_ms", res.Duration.Milliseconds())
	return res, nil
}

// PageHTML renders url and returns its document without taking a screenshot.
func (c *Capturer) PageHTML(ctx context.Context, url string) (string, error) {
	if err := horosafe.ValidateTarget(url, c.blockPrivate); err != nil {
		return "", fmt.Errorf("capture: %w", err)
	}
	out, err := c.renderer.Render(ctx, url, RenderOptions{HTML: true})
	if err != nil {
		return "", fmt.Errorf("capture: render %s: %w", url, err)
	}
	return out.HTML, nil
}

func writeAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".capture-*.png")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
