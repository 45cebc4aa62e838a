package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrUnavailable means no model could be bound at startup. Endpoints that
// need generation answer 503 with this message instead of calling out.
var ErrUnavailable = errors.New("AI model not available")

// Model is a bound model handle. It is immutable after Bind and shared by
// every request.
type Model struct {
	client   *Client
	name     string
	sampling Sampling
}

// Name returns the bound model identifier.
func (m *Model) Name() string { return m.name }

// Sampling returns the generation configuration used by Generate.
func (m *Model) Sampling() Sampling { return m.sampling }

// Generate returns one completion for p. Provider errors are returned as
// is; there is no retry.
func (m *Model) Generate(ctx context.Context, p Prompt) (string, error) {
	return m.client.GenerateContent(ctx, m.name, p, m.sampling)
}

// BindOptions selects the model and how binding is verified.
type BindOptions struct {
	Primary  string
	Fallback string
	Sampling Sampling

	// Probe fetches the model metadata from the provider during binding.
	// Without it only the identifier syntax is checked and a bad credential
	// or unknown model surfaces on first use.
	Probe bool

	Logger *slog.Logger
}

// Bind binds the primary model, or the fallback if the primary fails.
// When both fail the returned error wraps ErrUnavailable.
func Bind(ctx context.Context, c *Client, opts BindOptions) (*Model, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	var errs []error
	for _, name := range []string{opts.Primary, opts.Fallback} {
		if name == "" {
			continue
		}
		if err := bindOne(ctx, c, name, opts.Probe); err != nil {
			log.Warn("genai: model bind failed", "model", name, "error", err)
			errs = append(errs, err)
			continue
		}
		log.Info("genai: using model", "model", NormalizeModel(name), "probed", opts.Probe)
		return &Model{client: c, name: NormalizeModel(name), sampling: opts.Sampling}, nil
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("no model configured"))
	}
	return nil, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
}

func bindOne(ctx context.Context, c *Client, name string, probe bool) error {
	if err := validateModelName(name); err != nil {
		return err
	}
	if !probe {
		return nil
	}
	_, err := c.GetModel(ctx, name)
	return err
}

func validateModelName(name string) error {
	n := NormalizeModel(name)
	if n == "" {
		return errors.New("empty model name")
	}
	for _, r := range n {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '-' || r == '.' || r == '_'
		if !ok {
			return fmt.Errorf("invalid model name %q", name)
		}
	}
	return nil
}
