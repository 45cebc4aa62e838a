// Package api is the sitelens request layer: the Service that performs each
// operation, and its HTTP and MCP surfaces.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/sitelens/artifact"
	"github.com/hazyhaar/sitelens/capture"
	"github.com/hazyhaar/sitelens/genai"
	"github.com/hazyhaar/sitelens/ledger"
	"github.com/hazyhaar/sitelens/metrics"
	"github.com/hazyhaar/sitelens/pagetext"
	"github.com/hazyhaar/sitelens/prompt"
	"github.com/hazyhaar/sitelens/shield"
)

// Capturer stores screenshots and renders page HTML.
type Capturer interface {
	Capture(ctx context.Context, url string, opts capture.Options) (*capture.Result, error)
	PageHTML(ctx context.Context, url string) (string, error)
}

// Generator produces one completion for a prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, p genai.Prompt) (string, error)
}

// ModelLister lists provider model names.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Deps are the collaborators of a Service. Generator may be nil: every
// generation operation then fails with 503 without calling out.
type Deps struct {
	Capturer  Capturer
	Generator Generator
	Models    ModelLister
	Store     *artifact.Store
	Ledger    *ledger.Ledger
	Extractor *pagetext.Extractor

	// ExcerptChars bounds page text added to prompts.
	ExcerptChars int

	Logger *slog.Logger
}

// Service implements every sitelens operation. It is immutable after
// NewService and shared by all requests.
type Service struct {
	capturer     Capturer
	generator    Generator
	models       ModelLister
	store        *artifact.Store
	ledger       *ledger.Ledger
	extractor    *pagetext.Extractor
	excerptChars int
	logger       *slog.Logger
}

// NewService builds a Service.
func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Extractor == nil {
		d.Extractor = pagetext.New()
	}
	if d.ExcerptChars <= 0 {
		d.ExcerptChars = pagetext.DefaultMaxChars
	}
	return &Service{
		capturer:     d.Capturer,
		generator:    d.Generator,
		models:       d.Models,
		store:        d.Store,
		ledger:       d.Ledger,
		extractor:    d.Extractor,
		excerptChars: d.ExcerptChars,
		logger:       d.Logger,
	}
}

// Available reports whether a model is bound.
func (s *Service) Available() bool { return s.generator != nil }

// ModelName returns the bound model, or "".
func (s *Service) ModelName() string {
	if s.generator == nil {
		return ""
	}
	return s.generator.Name()
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(shield.LoggerKey).(*slog.Logger); ok {
		return l
	}
	return s.logger
}

// --- Process ---

// ProcessRequest asks for a screenshot of URL.
type ProcessRequest struct {
	URL string `json:"url"`
}

// ProcessResponse points at the stored screenshot.
type ProcessResponse struct {
	Success       bool   `json:"success"`
	ScreenshotURL string `json:"screenshot_url"`
	Filename      string `json:"filename"`
}

// Process captures a screenshot of req.URL.
func (s *Service) Process(ctx context.Context, req *ProcessRequest) (*ProcessResponse, error) {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return nil, errURLRequired
	}

	res, err := s.capture(ctx, url, capture.Options{})
	if err != nil {
		return nil, err
	}
	return &ProcessResponse{
		Success:       true,
		ScreenshotURL: artifact.DownloadPath(res.Filename),
		Filename:      res.Filename,
	}, nil
}

func (s *Service) capture(ctx context.Context, url string, opts capture.Options) (*capture.Result, error) {
	start := time.Now()
	res, err := s.capturer.Capture(ctx, url, opts)
	entry := &ledger.Capture{URL: url, DurationMs: time.Since(start).Milliseconds()}

	switch {
	case err != nil && classify(err) == KindValidation:
		metrics.CapturesTotal.WithLabelValues("rejected").Inc()
		return nil, err
	case err != nil:
		metrics.CapturesTotal.WithLabelValues("error").Inc()
		entry.Status, entry.Error = ledger.StatusError, err.Error()
		s.record(ctx, entry)
		s.log(ctx).Warn("capture failed", "url", url, "error", err)
		return nil, err
	}

	metrics.CapturesTotal.WithLabelValues("ok").Inc()
	metrics.CaptureDurationSeconds.Observe(time.Since(start).Seconds())
	metrics.CaptureBytes.Observe(float64(res.Bytes))
	entry.Status, entry.Filename, entry.Bytes = ledger.StatusOK, res.Filename, res.Bytes
	s.record(ctx, entry)

	if s.store != nil {
		if err := s.store.Publish(ctx, res.Filename); err != nil {
			metrics.MirrorErrorsTotal.Inc()
			s.log(ctx).Warn("mirror upload failed", "file", res.Filename, "error", err)
		}
	}
	return res, nil
}

func (s *Service) record(ctx context.Context, c *ledger.Capture) {
	if err := s.ledger.RecordCapture(context.WithoutCancel(ctx), c); err != nil {
		s.log(ctx).Warn("ledger write failed", "error", err)
	}
}

// --- Analyze ---

// AnalyzeRequest asks for a design critique of URL. Filename attaches a
// stored screenshot; IncludeContent renders the page and adds its text.
type AnalyzeRequest struct {
	URL            string `json:"url"`
	Filename       string `json:"filename,omitempty"`
	IncludeContent bool   `json:"includeContent,omitempty"`
}

// AnalyzeResponse carries the critique text.
type AnalyzeResponse struct {
	Success  bool   `json:"success"`
	Analysis string `json:"analysis"`
}

// Analyze runs the design critique prompt.
func (s *Service) Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error) {
	if s.generator == nil {
		return nil, errUnavailable
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return nil, errURLRequired
	}

	var p genai.Prompt
	var page prompt.PageContext
	if req.Filename != "" {
		if s.store == nil {
			return nil, &Error{Kind: KindNotFound, Err: artifact.ErrNotFound}
		}
		png, err := s.store.ReadPNG(req.Filename)
		if err != nil {
			return nil, err
		}
		p.Images = append(p.Images, genai.Blob{MimeType: "image/png", Data: png})
		page.HasScreenshot = true
	}
	if req.IncludeContent {
		s.addPageText(ctx, url, &page)
	}
	p.Text = prompt.Analysis(url, page)

	out, err := s.generate(ctx, ledger.KindAnalysis, url, p)
	if err != nil {
		return nil, err
	}
	return &AnalyzeResponse{Success: true, Analysis: out}, nil
}

// --- Generate code ---

// GenerateCodeRequest asks for code reproducing URL in TechStack.
type GenerateCodeRequest struct {
	URL            string `json:"url"`
	TechStack      string `json:"techStack,omitempty"`
	CustomPrompt   string `json:"customPrompt,omitempty"`
	IncludeContent bool   `json:"includeContent,omitempty"`
}

// GenerateCodeResponse carries the generated code as returned by the model.
type GenerateCodeResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
}

// GenerateCode runs the code generation prompt.
func (s *Service) GenerateCode(ctx context.Context, req *GenerateCodeRequest) (*GenerateCodeResponse, error) {
	if s.generator == nil {
		return nil, errUnavailable
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return nil, errURLRequired
	}

	var page prompt.PageContext
	if req.IncludeContent {
		s.addPageText(ctx, url, &page)
	}
	text := prompt.CodeGen(prompt.CodeRequest{
		URL:       url,
		TechStack: req.TechStack,
		Custom:    req.CustomPrompt,
		Page:      page,
	})

	out, err := s.generate(ctx, ledger.KindCode, url, genai.Prompt{Text: text})
	if err != nil {
		return nil, err
	}
	return &GenerateCodeResponse{Success: true, Code: out}, nil
}

// addPageText renders url and fills page with its title and text. Failures
// are logged and the prompt goes out without page text.
func (s *Service) addPageText(ctx context.Context, url string, page *prompt.PageContext) {
	html, err := s.capturer.PageHTML(ctx, url)
	if err != nil {
		s.log(ctx).Warn("page content unavailable", "url", url, "error", err)
		return
	}
	ex, err := s.extractor.Extract(html, url, s.excerptChars)
	if err != nil {
		s.log(ctx).Warn("page text extraction failed", "url", url, "error", err)
		return
	}
	page.Title, page.Excerpt = ex.Title, ex.Markdown
}

func (s *Service) generate(ctx context.Context, kind, url string, p genai.Prompt) (string, error) {
	start := time.Now()
	out, err := s.generator.Generate(ctx, p)
	elapsed := time.Since(start)
	metrics.GenerationDurationSeconds.WithLabelValues(kind).Observe(elapsed.Seconds())

	entry := &ledger.Generation{
		Kind:        kind,
		URL:         url,
		Model:       s.generator.Name(),
		PromptChars: len(p.Text),
		OutputChars: len(out),
		DurationMs:  elapsed.Milliseconds(),
		Status:      ledger.StatusOK,
	}
	if err != nil {
		entry.Status, entry.Error = ledger.StatusError, err.Error()
		metrics.GenerationsTotal.WithLabelValues(kind, "error").Inc()
		s.log(ctx).Warn("generation failed", "kind", kind, "url", url, "error", err)
	} else {
		metrics.GenerationsTotal.WithLabelValues(kind, "ok").Inc()
	}
	if lerr := s.ledger.RecordGeneration(context.WithoutCancel(ctx), entry); lerr != nil {
		s.log(ctx).Warn("ledger write failed", "error", lerr)
	}
	return out, err
}

// --- Models ---

// ModelsResponse lists provider models.
type ModelsResponse struct {
	Models []string `json:"models"`
}

// Models lists the models visible to the configured credential.
func (s *Service) Models(ctx context.Context) (*ModelsResponse, error) {
	if s.models == nil {
		return nil, errors.New("model listing is not configured")
	}
	names, err := s.models.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return &ModelsResponse{Models: names}, nil
}

// --- Artifacts and history ---

// ScreenshotsResponse lists stored screenshots.
type ScreenshotsResponse struct {
	Screenshots []artifact.Info `json:"screenshots"`
}

// Screenshots lists stored screenshots, newest first.
func (s *Service) Screenshots(ctx context.Context) (*ScreenshotsResponse, error) {
	list, err := s.store.List()
	if err != nil {
		return nil, err
	}
	return &ScreenshotsResponse{Screenshots: list}, nil
}

// RemoveScreenshot deletes one stored screenshot.
func (s *Service) RemoveScreenshot(ctx context.Context, name string) error {
	if err := s.store.Remove(ctx, name); err != nil {
		return err
	}
	s.log(ctx).Info("screenshot removed", "file", name)
	return nil
}

// SweepResponse reports a retention sweep.
type SweepResponse struct {
	Removed   int    `json:"removed"`
	OlderThan string `json:"older_than"`
}

// Sweep removes screenshots older than olderThan.
func (s *Service) Sweep(ctx context.Context, olderThan time.Duration) (*SweepResponse, error) {
	if olderThan <= 0 {
		return nil, validationError("older_than must be a positive duration")
	}
	n, err := s.store.Sweep(ctx, olderThan, time.Now())
	if err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}
	return &SweepResponse{Removed: n, OlderThan: olderThan.String()}, nil
}

// HistoryRequest selects ledger rows. Kind is "captures", "analysis" or
// "code"; empty means captures.
type HistoryRequest struct {
	Kind  string `json:"kind,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// HistoryResponse holds either captures or generations.
type HistoryResponse struct {
	Kind        string              `json:"kind"`
	Captures    []ledger.Capture    `json:"captures,omitempty"`
	Generations []ledger.Generation `json:"generations,omitempty"`
}

// History returns recent ledger rows.
func (s *Service) History(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error) {
	if s.ledger == nil {
		return nil, &Error{Kind: KindUnavailable, Err: errors.New("history is disabled")}
	}
	switch req.Kind {
	case "", "captures":
		rows, err := s.ledger.Captures(ctx, req.Limit)
		if err != nil {
			return nil, err
		}
		return &HistoryResponse{Kind: "captures", Captures: rows}, nil
	case "generations", ledger.KindAnalysis, ledger.KindCode:
		kind := req.Kind
		if kind == "generations" {
			kind = ""
		}
		rows, err := s.ledger.Generations(ctx, req.Limit, kind)
		if err != nil {
			return nil, err
		}
		return &HistoryResponse{Kind: req.Kind, Generations: rows}, nil
	}
	return nil, validationError("kind must be captures, generations, analysis or code")
}
