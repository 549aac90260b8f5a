// CLAUDE:SUMMARY MCP tool registration: run, preview, lookup, profiles, and run-history tools.
package pipeline

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/okpyeon/kit"
	"github.com/hazyhaar/okpyeon/observability"
)

// RegisterMCP registers all okpyeon tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerRun(srv)
	s.registerProfiles(srv)
	s.registerPreview(srv)
	s.registerLookup(srv)
	s.registerRuns(srv)
	s.registerRunEvents(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}

// wrap applies the standard endpoint middleware stack.
func (s *Service) wrap(name string, e kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.Recover(), kit.Logging(s.log, name))(e)
}

func mcpCtx(ctx context.Context) context.Context {
	return kit.WithTransport(ctx, "mcp")
}

func (s *Service) registerRun(srv *mcp.Server) {
	type req struct {
		Profile        string `json:"profile"`
		IncludeRecords bool   `json:"include_records"`
	}

	tool := &mcp.Tool{
		Name:        "okpyeon_run",
		Description: "Run a wordbook pipeline profile: load, extract, enrich, merge, modify, export",
		InputSchema: inputSchema(map[string]any{
			"profile":         map[string]any{"type": "string", "description": "Profile name (file under the profiles dir)"},
			"include_records": map[string]any{"type": "boolean", "description": "Return the full record streams, not just counts"},
		}, []string{"profile"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		res, err := s.Run(ctx, p.Profile)
		if err != nil {
			return nil, err
		}
		if !p.IncludeRecords {
			trimmed := *res
			trimmed.Entries = nil
			trimmed.Usages = nil
			return &trimmed, nil
		}
		return res, nil
	}

	kit.RegisterMCPTool[req](srv, tool, s.wrap(tool.Name, endpoint), mcpCtx)
}

func (s *Service) registerProfiles(srv *mcp.Server) {
	type req struct{}

	tool := &mcp.Tool{
		Name:        "okpyeon_profiles",
		Description: "List the pipeline profiles available on this server",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		names, err := s.ListProfiles()
		if err != nil {
			return nil, err
		}
		return map[string]any{"profiles": names}, nil
	}

	kit.RegisterMCPTool[req](srv, tool, s.wrap(tool.Name, endpoint), mcpCtx)
}

func (s *Service) registerPreview(srv *mcp.Server) {
	type req struct {
		Profile string `json:"profile"`
		Text    string `json:"text"`
	}

	tool := &mcp.Tool{
		Name:        "okpyeon_preview",
		Description: "Extract records from pasted text with a profile's patterns, without enrichment or export",
		InputSchema: inputSchema(map[string]any{
			"profile": map[string]any{"type": "string", "description": "Profile name"},
			"text":    map[string]any{"type": "string", "description": "Wordbook text to extract from"},
		}, []string{"profile", "text"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		recs, err := s.Preview(ctx, p.Profile, p.Text)
		if err != nil {
			return nil, err
		}
		return map[string]any{"count": len(recs), "entries": recs}, nil
	}

	kit.RegisterMCPTool[req](srv, tool, s.wrap(tool.Name, endpoint), mcpCtx)
}

func (s *Service) registerLookup(srv *mcp.Server) {
	type req struct {
		Hanja []string `json:"hanja"`
	}

	tool := &mcp.Tool{
		Name:        "okpyeon_lookup",
		Description: "Look up hanja letters on the dictionary collaborator and return their records",
		InputSchema: inputSchema(map[string]any{
			"hanja": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Hanja letters to look up",
			},
		}, []string{"hanja"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return s.Lookup(ctx, p.Hanja)
	}

	kit.RegisterMCPTool[req](srv, tool, s.wrap(tool.Name, endpoint), mcpCtx)
}

func (s *Service) registerRuns(srv *mcp.Server) {
	type req struct {
		Limit   int    `json:"limit"`
		Status  string `json:"status"`
		Profile string `json:"profile"`
	}

	tool := &mcp.Tool{
		Name:        "okpyeon_runs",
		Description: "List past pipeline runs, newest first",
		InputSchema: inputSchema(map[string]any{
			"limit":   map[string]any{"type": "integer", "description": "Max results"},
			"status":  map[string]any{"type": "string", "description": "Filter: running, completed, failed"},
			"profile": map[string]any{"type": "string", "description": "Filter by profile name"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		f := &observability.RunFilter{Limit: p.Limit}
		if p.Status != "" {
			f.Status = &p.Status
		}
		if p.Profile != "" {
			f.Profile = &p.Profile
		}
		return s.Runs(ctx, f)
	}

	kit.RegisterMCPTool[req](srv, tool, s.wrap(tool.Name, endpoint), mcpCtx)
}

func (s *Service) registerRunEvents(srv *mcp.Server) {
	type req struct {
		RunID string `json:"run_id"`
	}

	tool := &mcp.Tool{
		Name:        "okpyeon_run_events",
		Description: "Get the stage events and warnings journaled under one run",
		InputSchema: inputSchema(map[string]any{
			"run_id": map[string]any{"type": "string", "description": "Run ID"},
		}, []string{"run_id"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return s.RunEvents(ctx, p.RunID)
	}

	kit.RegisterMCPTool[req](srv, tool, s.wrap(tool.Name, endpoint), mcpCtx)
}
