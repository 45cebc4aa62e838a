package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/sitelens/api"
	"github.com/hazyhaar/sitelens/artifact"
	"github.com/hazyhaar/sitelens/capture"
	"github.com/hazyhaar/sitelens/config"
	"github.com/hazyhaar/sitelens/genai"
	"github.com/hazyhaar/sitelens/ledger"
	"github.com/hazyhaar/sitelens/metrics"
)

// app is the wired service graph of the serve command.
type app struct {
	svc    *api.Service
	store  *artifact.Store
	ledger *ledger.Ledger
}

func newAIClient(cfg *config.Config) *genai.Client {
	return genai.NewClient(genai.ClientConfig{
		APIKey:  cfg.AI.APIKey,
		BaseURL: cfg.AI.BaseURL,
	})
}

func newRenderer(cfg *config.Config, logger *slog.Logger) *capture.RodRenderer {
	return capture.NewRodRenderer(capture.RodConfig{
		RemoteURL:  cfg.Capture.RemoteURL,
		BrowserBin: cfg.Capture.BrowserBin,
		Stealth:    cfg.Capture.Stealth,
		Width:      cfg.Capture.ViewportWidth,
		Height:     cfg.Capture.ViewportHeight,
		NavTimeout: cfg.Capture.NavTimeout,
		Logger:     logger,
	})
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	metrics.Register()

	client := newAIClient(cfg)
	var gen api.Generator
	model, err := genai.Bind(ctx, client, genai.BindOptions{
		Primary:  cfg.AI.Model,
		Fallback: cfg.AI.FallbackModel,
		Sampling: genai.Sampling{
			Temperature:     cfg.AI.Temperature,
			TopP:            cfg.AI.TopP,
			TopK:            cfg.AI.TopK,
			MaxOutputTokens: cfg.AI.MaxOutputTokens,
		},
		Probe:  cfg.AI.ProbeModels,
		Logger: logger,
	})
	if err != nil {
		logger.Error("AI adapter unavailable, generation endpoints will answer 503", "error", err)
	} else {
		gen = model
	}

	var storeOpts []artifact.Option
	storeOpts = append(storeOpts, artifact.WithLogger(logger))
	if cfg.S3.Enabled() {
		mirror, err := artifact.NewS3Mirror(ctx, artifact.S3Config{
			Endpoint:      cfg.S3.Endpoint,
			Bucket:        cfg.S3.Bucket,
			AccessKey:     cfg.S3.AccessKey,
			SecretKey:     cfg.S3.SecretKey,
			Region:        cfg.S3.Region,
			Prefix:        cfg.S3.Prefix,
			VirtualHosted: cfg.S3.VirtualHosted,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 mirror: %w", err)
		}
		storeOpts = append(storeOpts, artifact.WithMirror(mirror))
		logger.Info("s3 mirror enabled", "bucket", cfg.S3.Bucket, "prefix", cfg.S3.Prefix)
	}
	store := artifact.NewStore(cfg.Capture.Dir, storeOpts...)

	var led *ledger.Ledger
	if cfg.LedgerDB != "" {
		led, err = ledger.Open(cfg.LedgerDB)
		if err != nil {
			return nil, err
		}
	}

	capturer := capture.New(capture.Config{
		Dir:          cfg.Capture.Dir,
		Renderer:     newRenderer(cfg, logger),
		BlockPrivate: cfg.Capture.BlockPrivateTargets,
		Logger:       logger,
	})

	svc := api.NewService(api.Deps{
		Capturer:  capturer,
		Generator: gen,
		Models:    client,
		Store:     store,
		Ledger:    led,
		Logger:    logger,
	})
	return &app{svc: svc, store: store, ledger: led}, nil
}

// Close releases the ledger database.
func (a *app) Close() error {
	return a.ledger.Close()
}
