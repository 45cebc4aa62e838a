// Command sitelens serves the screenshot and AI design-critique API and
// exposes its operations on the command line.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/sitelens/api"
	"github.com/hazyhaar/sitelens/capture"
	"github.com/hazyhaar/sitelens/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	envFile    string
}

func newRootCommand() *cobra.Command {
	var g globalFlags
	cmd := &cobra.Command{
		Use:           "sitelens",
		Short:         "Website screenshots and AI design critique",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&g.configPath, "config", os.Getenv("SITELENS_CONFIG"), "Optional YAML config file")
	cmd.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	cmd.AddCommand(newServeCommand(&g))
	cmd.AddCommand(newCaptureCommand(&g))
	cmd.AddCommand(newModelsCommand(&g))
	cmd.AddCommand(newHashTokenCommand())
	return cmd
}

// load reads configuration and installs the default logger.
func (g *globalFlags) load(ctx context.Context) (*config.Config, *slog.Logger, error) {
	if err := config.LoadDotEnv(g.envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(ctx, g.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newServeCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := g.load(ctx)
			if err != nil {
				return err
			}
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Capture.Retention > 0 {
		go a.store.RunSweeper(ctx, sweepInterval(cfg.Capture.Retention), cfg.Capture.Retention)
	}

	handler := api.NewRouter(api.RouterOptions{
		Service:            a.svc,
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AdminTokenHash:     cfg.AdminTokenHash,
		Retention:          cfg.Capture.Retention,
		MCP:                !cfg.DisableMCP,
		Version:            version,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Generation calls have no deadline of their own.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"addr", cfg.Addr,
			"version", version,
			"ai_available", a.svc.Available(),
			"model", a.svc.ModelName(),
			"screenshot_dir", cfg.Capture.Dir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("server stopped")
	return nil
}

// sweepInterval runs sweeps often enough to honor retention within a few
// percent, between once a minute and once an hour.
func sweepInterval(retention time.Duration) time.Duration {
	d := retention / 24
	if d < time.Minute {
		d = time.Minute
	}
	if d > time.Hour {
		d = time.Hour
	}
	return d
}

func newCaptureCommand(g *globalFlags) *cobra.Command {
	var withText bool
	cmd := &cobra.Command{
		Use:   "capture <url>",
		Short: "Take one screenshot and print where it was stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := g.load(ctx)
			if err != nil {
				return err
			}
			c := capture.New(capture.Config{
				Dir:          cfg.Capture.Dir,
				Renderer:     newRenderer(cfg, logger),
				BlockPrivate: cfg.Capture.BlockPrivateTargets,
				Logger:       logger,
			})
			res, err := c.Capture(ctx, args[0], capture.Options{WithHTML: withText})
			if err != nil {
				return err
			}
			out := map[string]any{
				"filename": res.Filename,
				"path":     res.Path,
				"bytes":    res.Bytes,
			}
			if withText {
				out["html_bytes"] = len(res.HTML)
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().BoolVar(&withText, "html", false, "Also render the page HTML and report its size")
	return cmd
}

func newModelsCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the AI models visible to GEMINI_API_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, _, err := g.load(ctx)
			if err != nil {
				return err
			}
			names, err := newAIClient(cfg).ListModels(ctx)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func newHashTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token [token]",
		Short: "Print the bcrypt hash of an admin token for ADMIN_TOKEN_HASH",
		Long:  "Print the bcrypt hash of an admin token. Without an argument the token is read from the first line of stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token: %w", err)
				}
				token = strings.TrimSpace(line)
			}
			if token == "" {
				return errors.New("token must not be empty")
			}
			hash, err := api.HashToken(token)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
