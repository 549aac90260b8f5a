package kit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCPTool registers an Endpoint as an MCP tool on the given
// server. Arguments are decoded from req.Params.Arguments into a fresh
// Req value, so the endpoint receives a *Req. Tools without arguments
// use an empty struct. Decode and endpoint failures are reported as
// tool errors, never as protocol errors, so a bad call does not tear
// down the session.
func RegisterMCPTool[Req any](srv *mcp.Server, tool *mcp.Tool, endpoint Endpoint, enrich func(context.Context) context.Context) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		r := new(Req)
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, r); err != nil {
				return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
			}
		}
		if enrich != nil {
			ctx = enrich(ctx)
		}

		resp, err := endpoint(ctx, r)
		if err != nil {
			return toolError(err), nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			return toolError(fmt.Errorf("marshal: %w", err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}
