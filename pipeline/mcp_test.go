package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/okpyeon/observability"
)

var testMCPImpl = &mcp.Implementation{Name: "okpyeon-test", Version: "0.1.0"}

func mcpSession(t *testing.T) (*mcp.ClientSession, *stubClient) {
	t.Helper()
	svc, stub := setupService(t)
	srv := mcp.NewServer(testMCPImpl, nil)
	svc.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session, stub
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text
}

func TestMCP_Profiles(t *testing.T) {
	session, _ := mcpSession(t)

	text := mcpCallTool(t, session, "okpyeon_profiles", map[string]any{})
	var resp struct {
		Profiles []string `json:"profiles"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Profiles) != 1 || resp.Profiles[0] != "elem" {
		t.Fatalf("profiles: got %v, want [elem]", resp.Profiles)
	}
}

func TestMCP_RunAndHistory(t *testing.T) {
	session, _ := mcpSession(t)

	text := mcpCallTool(t, session, "okpyeon_run", map[string]any{"profile": "elem"})
	var res Result
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.EntryCount != 2 || res.UsageCount != 2 {
		t.Fatalf("counts: got %d/%d, want 2/2", res.EntryCount, res.UsageCount)
	}
	if len(res.Entries) != 0 {
		t.Fatal("records must be trimmed unless include_records is set")
	}

	// The run shows up in the history tools.
	text = mcpCallTool(t, session, "okpyeon_runs", map[string]any{"limit": 10})
	var runs []*observability.Run
	if err := json.Unmarshal([]byte(text), &runs); err != nil {
		t.Fatalf("unmarshal runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != res.RunID {
		t.Fatalf("runs: got %+v", runs)
	}
	if runs[0].Status != observability.StatusCompleted {
		t.Fatalf("status: got %q", runs[0].Status)
	}
}

func TestMCP_Run_IncludeRecords(t *testing.T) {
	session, _ := mcpSession(t)

	text := mcpCallTool(t, session, "okpyeon_run",
		map[string]any{"profile": "elem", "include_records": true})
	var res Result
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("entries: got %d, want 2", len(res.Entries))
	}
	if got := res.Entries[0].Get("hanja").Text(); got != "木" {
		t.Fatalf("first entry hanja: got %q", got)
	}
}

func TestMCP_Run_UnknownProfile(t *testing.T) {
	session, _ := mcpSession(t)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "okpyeon_run",
		Arguments: map[string]any{"profile": "missing"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected a tool error for an unknown profile")
	}
}

func TestMCP_Preview(t *testing.T) {
	session, _ := mcpSession(t)

	text := mcpCallTool(t, session, "okpyeon_preview",
		map[string]any{"profile": "elem", "text": "火 불 화\n용례: 火山, 火災"})
	var resp struct {
		Count   int               `json:"count"`
		Entries []json.RawMessage `json:"entries"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 1 || len(resp.Entries) != 1 {
		t.Fatalf("preview: got count %d, %d entries", resp.Count, len(resp.Entries))
	}
}

func TestMCP_Lookup(t *testing.T) {
	session, _ := mcpSession(t)

	text := mcpCallTool(t, session, "okpyeon_lookup", map[string]any{"hanja": []string{"木", "水"}})
	var recs []map[string]any
	if err := json.Unmarshal([]byte(text), &recs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("lookup: got %d records, want 2", len(recs))
	}
	if recs[0]["hanja"] != "木" {
		t.Fatalf("first record: got %v", recs[0])
	}
}

func TestMCP_RunEvents(t *testing.T) {
	session, _ := mcpSession(t)

	text := mcpCallTool(t, session, "okpyeon_run", map[string]any{"profile": "elem"})
	var res Result
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	text = mcpCallTool(t, session, "okpyeon_run_events", map[string]any{"run_id": res.RunID})
	var events []*observability.Event
	if err := json.Unmarshal([]byte(text), &events); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	// Events flush asynchronously; the run row itself is synchronous, so
	// at minimum the query must succeed and return only this run's events.
	for _, e := range events {
		if e.RunID != res.RunID {
			t.Fatalf("foreign event in result: %+v", e)
		}
	}
}
