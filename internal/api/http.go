package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
)

// DefaultPrefix is where the tRPC endpoint is mounted.
const DefaultPrefix = "/api/trpc/"

// ResultEnvelope is a successful procedure response.
type ResultEnvelope struct {
	Result ResultData `json:"result"`
}

// ResultData wraps the procedure output.
type ResultData struct {
	Data json.RawMessage `json:"data"`
}

// ErrorEnvelope is a failed procedure response.
type ErrorEnvelope struct {
	Error ErrorShape `json:"error"`
}

// ErrorShape is the tRPC error body.
type ErrorShape struct {
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Data    ErrorData `json:"data"`
}

// ErrorData carries the symbolic code, HTTP status and path.
type ErrorData struct {
	Code       ErrorCode `json:"code"`
	HTTPStatus int       `json:"httpStatus"`
	Path       string    `json:"path,omitempty"`
}

// Handler serves a Router over HTTP.
type Handler struct {
	router     *Router
	logger     *log.Logger
	prefix     string
	maxBody    int64
	corsOrigin string
}

// HandlerOption configures optional Handler settings.
type HandlerOption func(*Handler)

// WithMaxBodyBytes limits request bodies; larger bodies get PAYLOAD_TOO_LARGE.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handler) { h.maxBody = n }
}

// WithCORSOrigin sets Access-Control-Allow-Origin; empty omits CORS headers.
func WithCORSOrigin(origin string) HandlerOption {
	return func(h *Handler) { h.corsOrigin = origin }
}

// WithPrefix mounts the endpoint somewhere other than /api/trpc/.
func WithPrefix(prefix string) HandlerOption {
	return func(h *Handler) {
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		h.prefix = prefix
	}
}

// NewHandler creates a handler for router. A nil logger discards output.
func NewHandler(router *Router, logger *log.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	h := &Handler{router: router, logger: logger, prefix: DefaultPrefix, maxBody: 64 << 20}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes adds the endpoint to mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle(h.prefix, h)
}

type call struct {
	path  string
	input json.RawMessage
}

type outcome struct {
	status int
	body   any
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.corsOrigin != "" {
		w.Header().Set("Access-Control-Allow-Origin", h.corsOrigin)
	}
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	pathPart := strings.TrimPrefix(r.URL.Path, h.prefix)
	batch := r.URL.Query().Get("batch") == "1"

	calls, err := h.parseCalls(r, pathPart, batch)
	if err != nil {
		e := AsError(err)
		h.logger.Printf("api: %s %s: %v", r.Method, r.URL.Path, e)
		h.writeJSON(w, e.Code.HTTPStatus(), errorEnvelope(e, pathPart))
		return
	}

	outcomes := make([]outcome, len(calls))
	for i, c := range calls {
		outcomes[i] = h.run(r, c)
	}

	if !batch {
		h.writeJSON(w, outcomes[0].status, outcomes[0].body)
		return
	}
	status := http.StatusOK
	bodies := make([]any, len(outcomes))
	for i, o := range outcomes {
		bodies[i] = o.body
		if o.status != http.StatusOK {
			status = http.StatusMultiStatus
		}
	}
	h.writeJSON(w, status, bodies)
}

// parseCalls splits the request into procedure calls with their inputs.
func (h *Handler) parseCalls(r *http.Request, pathPart string, batch bool) ([]call, error) {
	if pathPart == "" {
		return nil, NewError(CodeNotFound, "no procedure path", ErrUnknownProcedure)
	}
	paths := strings.Split(pathPart, ",")
	if !batch && len(paths) > 1 {
		return nil, NewError(CodeBadRequest, "multiple paths require batch=1", nil)
	}

	raw, err := h.readInput(r)
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 && !json.Valid(raw) {
		return nil, NewError(CodeParseError, "input is not valid JSON", nil)
	}

	calls := make([]call, len(paths))
	if !batch {
		calls[0] = call{path: paths[0], input: raw}
		return calls, nil
	}
	var inputs map[string]json.RawMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &inputs); err != nil {
			return nil, NewError(CodeBadRequest, "batch input must be an object keyed by index", err)
		}
	}
	for i, p := range paths {
		calls[i] = call{path: p, input: inputs[strconv.Itoa(i)]}
	}
	return calls, nil
}

// readInput returns the request input: the "input" query parameter for GET,
// the body otherwise.
func (h *Handler) readInput(r *http.Request) (json.RawMessage, error) {
	if r.Method == http.MethodGet {
		if v := r.URL.Query().Get("input"); v != "" {
			return json.RawMessage(v), nil
		}
		return nil, nil
	}
	body := r.Body
	if h.maxBody > 0 {
		body = http.MaxBytesReader(nil, r.Body, h.maxBody)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, NewError(CodePayloadTooLarge, fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit), err)
		}
		return nil, NewError(CodeBadRequest, "read body", err)
	}
	return json.RawMessage(bytes.TrimSpace(data)), nil
}

func (h *Handler) run(r *http.Request, c call) outcome {
	p, ok := h.router.Lookup(c.path)
	if !ok {
		e := NewError(CodeNotFound, fmt.Sprintf("no procedure on path %q", c.path), ErrUnknownProcedure)
		return outcome{status: e.Code.HTTPStatus(), body: errorEnvelope(e, c.path)}
	}
	want := http.MethodGet
	if p.Type == Mutation {
		want = http.MethodPost
	}
	if r.Method != want {
		e := NewError(CodeMethodNotSupported, fmt.Sprintf("%s %s requires %s", p.Type, c.path, want), nil)
		return outcome{status: e.Code.HTTPStatus(), body: errorEnvelope(e, c.path)}
	}

	res, err := p.Handler(r.Context(), c.input)
	if err != nil {
		e := AsError(err)
		h.logger.Printf("api: %s failed: %v", c.path, e)
		return outcome{status: e.Code.HTTPStatus(), body: errorEnvelope(e, c.path)}
	}
	data, err := json.Marshal(res)
	if err != nil {
		e := NewError(CodeInternal, "encode output", err)
		h.logger.Printf("api: %s failed: %v", c.path, e)
		return outcome{status: e.Code.HTTPStatus(), body: errorEnvelope(e, c.path)}
	}
	return outcome{status: http.StatusOK, body: ResultEnvelope{Result: ResultData{Data: data}}}
}

func errorEnvelope(e *Error, path string) ErrorEnvelope {
	return ErrorEnvelope{Error: ErrorShape{
		Message: e.Message,
		Code:    e.Code.JSONRPCCode(),
		Data: ErrorData{
			Code:       e.Code,
			HTTPStatus: e.Code.HTTPStatus(),
			Path:       path,
		},
	}}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if err := enc.Encode(v); err != nil {
		h.logger.Printf("api: write response: %v", err)
	}
}
