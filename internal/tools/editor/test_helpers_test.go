package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/sketchstore/internal/app"
	"github.com/jaakkos/sketchstore/internal/repository/memory"
)

type mockPolicy struct {
	enabled []string
}

func (p *mockPolicy) SignalFilePath() string { return "" }

func (p *mockPolicy) IsToolEnabled(name string) bool {
	if p.enabled == nil {
		return true
	}
	for _, t := range p.enabled {
		if t == name {
			return true
		}
	}
	return false
}

func newTestService(enabled ...string) *app.EditorService {
	return app.NewEditorService(memory.New(), &mockPolicy{enabled: enabled}, nil)
}

// testServer creates a MCPServer with the store tools registered.
func testServer(svc *app.EditorService) *server.MCPServer {
	s := server.NewMCPServer("test", "1.0.0", server.WithResourceCapabilities(false, false))
	Register(s, svc, log.New(io.Discard, "", 0))
	return s
}

// rpc sends one JSON-RPC request through HandleMessage and returns the raw result.
func rpc(t *testing.T, s *server.MCPServer, method string, params map[string]any) (json.RawMessage, error) {
	t.Helper()

	reqJSON, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	respBytes, err := json.Marshal(s.HandleMessage(context.Background(), reqJSON))
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("RPC error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}

// callTool calls a registered tool and returns the parsed CallToolResult.
func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) (*mcp.CallToolResult, error) {
	t.Helper()
	raw, err := rpc(t, s, "tools/call", map[string]any{"name": name, "arguments": args})
	if err != nil {
		return nil, err
	}
	var result mcp.CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	return &result, nil
}

// resultText extracts the first text content from a CallToolResult.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("result is nil")
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content in result")
	return ""
}
