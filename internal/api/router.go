// Package api exposes the editor store procedures over a tRPC-compatible
// HTTP transport and an in-process Caller.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jaakkos/sketchstore/internal/app"
	"github.com/jaakkos/sketchstore/internal/domain"
)

// Procedure paths served by AppRouter.
const (
	PathGetStoreData   = "editor.getStoreData"
	PathSaveStoreData  = "editor.saveStoreData"
	PathClearStoreData = "editor.clearStoreData"
)

// ProcedureType distinguishes reads (GET) from writes (POST).
type ProcedureType int

const (
	Query ProcedureType = iota
	Mutation
)

func (t ProcedureType) String() string {
	if t == Mutation {
		return "mutation"
	}
	return "query"
}

// HandlerFunc runs a procedure. input is the raw JSON input, nil if absent.
type HandlerFunc func(ctx context.Context, input json.RawMessage) (any, error)

// Procedure is a registered handler.
type Procedure struct {
	Type    ProcedureType
	Handler HandlerFunc
}

// Router maps dotted paths to procedures.
type Router struct {
	procs map[string]Procedure
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{procs: make(map[string]Procedure)}
}

// Query registers a read procedure.
func (r *Router) Query(name string, h HandlerFunc) *Router {
	r.procs[name] = Procedure{Type: Query, Handler: h}
	return r
}

// Mutation registers a write procedure.
func (r *Router) Mutation(name string, h HandlerFunc) *Router {
	r.procs[name] = Procedure{Type: Mutation, Handler: h}
	return r
}

// Merge mounts sub's procedures under prefix ("editor" -> "editor.x").
func (r *Router) Merge(prefix string, sub *Router) *Router {
	for name, p := range sub.procs {
		r.procs[prefix+"."+name] = p
	}
	return r
}

// Lookup returns the procedure at path.
func (r *Router) Lookup(path string) (Procedure, bool) {
	p, ok := r.procs[path]
	return p, ok
}

// Paths lists registered paths in sorted order.
func (r *Router) Paths() []string {
	paths := make([]string, 0, len(r.procs))
	for p := range r.procs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// EditorRouter returns the editor procedures backed by svc.
func EditorRouter(svc *app.EditorService) *Router {
	return NewRouter().
		Query("getStoreData", func(ctx context.Context, _ json.RawMessage) (any, error) {
			out, err := svc.GetStoreData()
			if err != nil {
				return nil, NewError(CodeInternal, "failed to read store data", err)
			}
			return out, nil
		}).
		Mutation("saveStoreData", func(ctx context.Context, input json.RawMessage) (any, error) {
			in, err := domain.DecodeSaveInput(input)
			if err != nil {
				return nil, NewError(CodeBadRequest, err.Error(), err)
			}
			out, err := svc.SaveStoreData(in.Data)
			if err != nil {
				return nil, NewError(CodeInternal, "failed to save store data", err)
			}
			return out, nil
		}).
		Mutation("clearStoreData", func(ctx context.Context, _ json.RawMessage) (any, error) {
			out, err := svc.ClearStoreData()
			if err != nil {
				return nil, NewError(CodeInternal, "failed to clear store data", err)
			}
			return out, nil
		})
}

// AppRouter returns the root router with the editor router mounted.
func AppRouter(svc *app.EditorService) *Router {
	return NewRouter().Merge("editor", EditorRouter(svc))
}

// Call runs the procedure at path with input, bypassing HTTP method checks.
func (r *Router) Call(ctx context.Context, path string, input json.RawMessage) (any, error) {
	p, ok := r.Lookup(path)
	if !ok {
		return nil, NewError(CodeNotFound, fmt.Sprintf("no procedure on path %q", path), ErrUnknownProcedure)
	}
	if err := ctx.Err(); err != nil {
		return nil, NewError(CodeInternal, "request cancelled", err)
	}
	return p.Handler(ctx, input)
}

// Caller invokes editor procedures in-process with typed inputs and outputs.
type Caller struct {
	router *Router
}

// NewCaller returns a Caller for router.
func NewCaller(router *Router) *Caller {
	return &Caller{router: router}
}

// GetStoreData calls editor.getStoreData.
func (c *Caller) GetStoreData(ctx context.Context) (domain.StoreData, error) {
	var out domain.StoreData
	err := c.call(ctx, PathGetStoreData, nil, &out)
	return out, err
}

// SaveStoreData calls editor.saveStoreData with data (any JSON value).
func (c *Caller) SaveStoreData(ctx context.Context, data json.RawMessage) (domain.SaveResult, error) {
	var out domain.SaveResult
	input, err := json.Marshal(domain.SaveInput{Data: data})
	if err != nil {
		return out, NewError(CodeParseError, "encode input", err)
	}
	err = c.call(ctx, PathSaveStoreData, input, &out)
	return out, err
}

// ClearStoreData calls editor.clearStoreData.
func (c *Caller) ClearStoreData(ctx context.Context) (domain.ClearResult, error) {
	var out domain.ClearResult
	err := c.call(ctx, PathClearStoreData, nil, &out)
	return out, err
}

// call round-trips the result through JSON so callers see exactly what
// an HTTP client would.
func (c *Caller) call(ctx context.Context, path string, input json.RawMessage, out any) error {
	res, err := c.router.Call(ctx, path, input)
	if err != nil {
		return err
	}
	b, err := json.Marshal(res)
	if err != nil {
		return NewError(CodeInternal, "encode output", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return NewError(CodeInternal, "decode output", err)
	}
	return nil
}
