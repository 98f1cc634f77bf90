package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/sketchstore/internal/app"
)

func registerGetStoreData(s *server.MCPServer, svc *app.EditorService, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool(ToolGetStoreData,
			mcp.WithDescription("Return the saved tldraw store snapshot as JSON. The data field is null when nothing has been saved."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			out, err := svc.GetStoreData()
			if err != nil {
				return nil, err
			}
			return jsonResult(out)
		},
	)
}

func registerSaveStoreData(s *server.MCPServer, svc *app.EditorService, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool(ToolSaveStoreData,
			mcp.WithDescription("Replace the saved tldraw store snapshot. The previous snapshot is discarded."),
			mcp.WithString("data_json", mcp.Required(), mcp.Description(`The snapshot as a JSON document, e.g. '{"store":{},"schema":{}}'. Any JSON value is accepted, including null.`)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			data, err := requireJSON(req.GetArguments(), "data_json")
			if err != nil {
				return nil, err
			}
			out, err := svc.SaveStoreData(data)
			if err != nil {
				return nil, err
			}
			logger.Printf("save_store_data: stored %d bytes", len(out.Data))
			return jsonResult(out)
		},
	)
}

func registerClearStoreData(s *server.MCPServer, svc *app.EditorService, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool(ToolClearStoreData,
			mcp.WithDescription("Discard the saved tldraw store snapshot. Subsequent reads return null."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			out, err := svc.ClearStoreData()
			if err != nil {
				return nil, err
			}
			logger.Println("clear_store_data: store cleared")
			return jsonResult(out)
		},
	)
}

// registerStoreResource exposes the snapshot and its bookkeeping as a readable resource.
func registerStoreResource(s *server.MCPServer, svc *app.EditorService, logger *log.Logger) {
	s.AddResource(
		mcp.NewResource(
			StoreResourceURI,
			"Editor store snapshot",
			mcp.WithResourceDescription("The current tldraw snapshot with its revision, version id and update time."),
			mcp.WithMIMEType("application/json"),
		),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			logger.Println("Resource read: store")
			snap, err := svc.Snapshot()
			if err != nil {
				return nil, err
			}
			b, err := json.Marshal(snap)
			if err != nil {
				return nil, fmt.Errorf("encode snapshot: %w", err)
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      req.Params.URI,
					MIMEType: "application/json",
					Text:     string(b),
				},
			}, nil
		},
	)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
