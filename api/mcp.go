package api

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/sitelens/idgen"
	"github.com/hazyhaar/sitelens/kit"
)

// RegisterMCP exposes the capture and generation operations as MCP tools.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerCapture(srv)
	s.registerAnalyze(srv)
	s.registerGenerateCode(srv)
	s.registerModels(srv)
}

var newToolTraceID = idgen.Short(12)

func (s *Service) endpoint(name string, e kit.Endpoint) kit.Endpoint {
	return kit.Chain(
		kit.Tracing(newToolTraceID),
		kit.Logging(s.logger, name),
	)(e)
}

func (s *Service) registerCapture(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "sitelens_capture",
		Description: "Take a full-page PNG screenshot of a web page and store it. Returns the file name and its download path.",
		InputSchema: kit.InputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "http or https URL to capture"},
		}, []string{"url"}),
	}
	kit.RegisterMCPTool(srv, tool, s.endpoint("capture", func(ctx context.Context, r any) (any, error) {
		return s.Process(ctx, r.(*ProcessRequest))
	}), kit.DecodeJSON[ProcessRequest]())
}

func (s *Service) registerAnalyze(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "sitelens_analyze",
		Description: "Ask the AI model for a design critique of a web page: visual improvements, a score out of 10, technical recommendations, color palette and typography.",
		InputSchema: kit.InputSchema(map[string]any{
			"url":            map[string]any{"type": "string", "description": "URL of the site to critique"},
			"filename":       map[string]any{"type": "string", "description": "Stored screenshot to attach (from sitelens_capture)"},
			"includeContent": map[string]any{"type": "boolean", "description": "Render the page and include its text"},
		}, []string{"url"}),
	}
	kit.RegisterMCPTool(srv, tool, s.endpoint("analyze", func(ctx context.Context, r any) (any, error) {
		return s.Analyze(ctx, r.(*AnalyzeRequest))
	}), kit.DecodeJSON[AnalyzeRequest]())
}

func (s *Service) registerGenerateCode(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "sitelens_generate_code",
		Description: "Generate front-end code for a site similar to the given URL.",
		InputSchema: kit.InputSchema(map[string]any{
			"url":            map[string]any{"type": "string", "description": "URL of the site to imitate"},
			"techStack":      map[string]any{"type": "string", "description": "Framework, default React"},
			"customPrompt":   map[string]any{"type": "string", "description": "Extra instructions appended to the prompt"},
			"includeContent": map[string]any{"type": "boolean", "description": "Render the page and include its text"},
		}, []string{"url"}),
	}
	kit.RegisterMCPTool(srv, tool, s.endpoint("generate_code", func(ctx context.Context, r any) (any, error) {
		return s.GenerateCode(ctx, r.(*GenerateCodeRequest))
	}), kit.DecodeJSON[GenerateCodeRequest]())
}

func (s *Service) registerModels(srv *mcp.Server) {
	type req struct{}
	tool := &mcp.Tool{
		Name:        "sitelens_models",
		Description: "List the AI models available to the configured credential.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}
	kit.RegisterMCPTool(srv, tool, s.endpoint("models", func(ctx context.Context, _ any) (any, error) {
		return s.Models(ctx)
	}), kit.DecodeJSON[req]())
}
