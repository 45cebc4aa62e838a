package capture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// RodConfig configures RodRenderer.
type RodConfig struct {
	// RemoteURL is the DevTools WebSocket URL of an external browser. Each
	// render then runs in its own incognito context. Empty launches a local
	// headless browser per render.
	RemoteURL string

	// BrowserBin overrides the browser executable. Empty lets the launcher
	// find or download one.
	BrowserBin string

	Stealth bool

	Width  int
	Height int

	// NavTimeout bounds navigation plus the load event. Default 15s.
	NavTimeout time.Duration

	Logger *slog.Logger
}

// RodRenderer renders pages with go-rod.
type RodRenderer struct {
	cfg RodConfig
}

// NewRodRenderer builds a RodRenderer.
func NewRodRenderer(cfg RodConfig) *RodRenderer {
	if cfg.Width <= 0 {
		cfg.Width = 1280
	}
	if cfg.Height <= 0 {
		cfg.Height = 720
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RodRenderer{cfg: cfg}
}

// Render implements Renderer.
func (r *RodRenderer) Render(ctx context.Context, url string, opts RenderOptions) (*Rendered, error) {
	b, release, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var page *rod.Page
	if r.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}
	defer page.Close()

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             r.cfg.Width,
		Height:            r.cfg.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("browser: viewport: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, r.cfg.NavTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(url); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		return nil, fmt.Errorf("browser: wait load %s: %w", url, err)
	}

	out := &Rendered{}
	if opts.Screenshot {
		out.PNG, err = page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatPng,
		})
		if err != nil {
			return nil, fmt.Errorf("browser: screenshot: %w", err)
		}
	}
	if opts.HTML {
		out.HTML, err = page.Context(ctx).HTML()
		if err != nil {
			return nil, fmt.Errorf("browser: html: %w", err)
		}
	}
	return out, nil
}

// open returns a browser handle and the function that releases it. For a
// local launch the release kills the process and removes its profile
// directory.
func (r *RodRenderer) open(ctx context.Context) (*rod.Browser, func(), error) {
	log := r.cfg.Logger

	if r.cfg.RemoteURL != "" {
		connCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		b := rod.New().ControlURL(r.cfg.RemoteURL).Context(connCtx)
		if err := b.Connect(); err != nil {
			cancel()
			return nil, nil, fmt.Errorf("browser: connect %s: %w", r.cfg.RemoteURL, err)
		}
		inc, err := b.Incognito()
		if err != nil {
			cancel()
			return nil, nil, fmt.Errorf("browser: incognito: %w", err)
		}
		return inc, func() {
			if err := inc.Close(); err != nil {
				log.Debug("browser: close incognito", "error", err)
			}
			cancel()
		}, nil
	}

	l := launcher.New().Context(ctx).Headless(true).
		Set("disable-blink-features", "AutomationControlled")
	if r.cfg.BrowserBin != "" {
		l = l.Bin(r.cfg.BrowserBin)
	}
	u, err := l.Launch()
	if err != nil {
		// Cleanup waits for a process that never started; remove the
		// profile directory directly.
		if dir := l.Get(flags.UserDataDir); dir != "" {
			_ = os.RemoveAll(dir)
		}
		return nil, nil, fmt.Errorf("browser: launch: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, nil, fmt.Errorf("browser: connect: %w", err)
	}
	return b, func() {
		if err := b.Close(); err != nil {
			log.Debug("browser: close", "error", err)
		}
		l.Kill()
		l.Cleanup()
	}, nil
}
