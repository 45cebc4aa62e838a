// Package genai is the sitelens adapter to the Gemini generative-language
// REST API: list models, bind a model with one fallback, and generate a
// single completion under a fixed sampling configuration.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultBaseURL is the Google AI Studio endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// ErrNoAPIKey is returned on first use when no credential was configured.
var ErrNoAPIKey = errors.New("gemini: GEMINI_API_KEY is not set")

// ClientConfig configures a Client.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	// HTTPClient defaults to a client without timeout: AI calls are bounded
	// only by the caller's context.
	HTTPClient *http.Client
}

// Client calls the Gemini REST API. It is safe for concurrent use.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient builds a Client. The API key is not checked here.
func NewClient(cfg ClientConfig) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: base,
		http:    hc,
	}
}

// Blob is inline binary content sent alongside the prompt text.
type Blob struct {
	MimeType string
	Data     []byte
}

// Prompt is the text of a request plus optional inline images.
type Prompt struct {
	Text   string
	Images []Blob
}

// Sampling is the generation configuration sent with every request.
type Sampling struct {
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

// DefaultSampling matches what the critique and code prompts were tuned for.
func DefaultSampling() Sampling {
	return Sampling{Temperature: 0.7, TopP: 1, TopK: 32, MaxOutputTokens: 4096}
}

// ModelInfo is the subset of model metadata sitelens uses.
type ModelInfo struct {
	Name                       string   `json:"name"`
	DisplayName                string   `json:"displayName"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
}

// ListModels returns the names of every model visible to the credential,
// following pagination.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	var names []string
	pageToken := ""
	for {
		q := url.Values{"pageSize": {"100"}}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		var resp listModelsResponse
		if err := c.do(ctx, http.MethodGet, c.baseURL+"/models?"+q.Encode(), nil, &resp); err != nil {
			return nil, err
		}
		for _, m := range resp.Models {
			names = append(names, m.Name)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// GetModel fetches metadata for one model.
func (c *Client) GetModel(ctx context.Context, model string) (*ModelInfo, error) {
	var info ModelInfo
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/models/"+url.PathEscape(NormalizeModel(model)), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GenerateContent returns the completion text for p on model.
func (c *Client) GenerateContent(ctx context.Context, model string, p Prompt, s Sampling) (string, error) {
	if strings.TrimSpace(p.Text) == "" && len(p.Images) == 0 {
		return "", errors.New("gemini: empty prompt")
	}

	parts := []part{{Text: p.Text}}
	for _, img := range p.Images {
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: img.MimeType,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}
	req := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: &generationConfig{
			Temperature:     s.Temperature,
			TopP:            s.TopP,
			TopK:            s.TopK,
			MaxOutputTokens: s.MaxOutputTokens,
		},
	}

	var resp generateResponse
	endpoint := c.baseURL + "/models/" + url.PathEscape(NormalizeModel(model)) + ":generateContent"
	if err := c.do(ctx, http.MethodPost, endpoint, req, &resp); err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("gemini: prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", errors.New("gemini: empty response")
	}
	var sb strings.Builder
	for _, pt := range resp.Candidates[0].Content.Parts {
		sb.WriteString(pt.Text)
	}
	if sb.Len() == 0 {
		if reason := resp.Candidates[0].FinishReason; reason != "" && reason != "STOP" {
			return "", fmt.Errorf("gemini: no text returned (finish reason %s)", reason)
		}
		return "", errors.New("gemini: empty response")
	}
	return sb.String(), nil
}

// NormalizeModel strips the "models/" resource prefix.
func NormalizeModel(model string) string {
	return strings.TrimPrefix(strings.TrimSpace(model), "models/")
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload, out any) error {
	if c.apiKey == "" {
		return ErrNoAPIKey
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("gemini: marshal: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("gemini: request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&errResp)
		if errResp.Error.Message != "" {
			return &APIError{Status: resp.StatusCode, Message: errResp.Error.Message}
		}
		return &APIError{Status: resp.StatusCode, Message: resp.Status}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gemini: decode response: %w", err)
	}
	return nil
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return "gemini api error: " + e.Message
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type listModelsResponse struct {
	Models        []ModelInfo `json:"models"`
	NextPageToken string      `json:"nextPageToken"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
