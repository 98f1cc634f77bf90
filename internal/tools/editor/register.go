// Package editor exposes the editor store as MCP tools and a resource.
package editor

import (
	"log"

	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/sketchstore/internal/app"
)

// Tool names.
const (
	ToolGetStoreData   = "get_store_data"
	ToolSaveStoreData  = "save_store_data"
	ToolClearStoreData = "clear_store_data"
)

// StoreResourceURI is the resource holding the current snapshot.
const StoreResourceURI = "sketchstore://store"

// RegisterOption configures optional registration behaviour.
type RegisterOption func(*registerOpts)

type registerOpts struct {
	withoutResource bool
}

// WithoutResource skips registering the sketchstore://store resource.
func WithoutResource() RegisterOption {
	return func(o *registerOpts) { o.withoutResource = true }
}

// Register adds the store tools enabled by the service policy, plus the
// store resource, to the mcp-go server.
func Register(s *server.MCPServer, svc *app.EditorService, logger *log.Logger, opts ...RegisterOption) {
	var o registerOpts
	for _, opt := range opts {
		opt(&o)
	}

	pol := svc.Policy()
	if pol.IsToolEnabled(ToolGetStoreData) {
		registerGetStoreData(s, svc, logger)
	}
	if pol.IsToolEnabled(ToolSaveStoreData) {
		registerSaveStoreData(s, svc, logger)
	}
	if pol.IsToolEnabled(ToolClearStoreData) {
		registerClearStoreData(s, svc, logger)
	}

	if !o.withoutResource {
		registerStoreResource(s, svc, logger)
	}
}
