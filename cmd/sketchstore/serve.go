package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jaakkos/sketchstore/internal/api"
	"github.com/jaakkos/sketchstore/internal/app"
	"github.com/jaakkos/sketchstore/internal/policy"
	"github.com/jaakkos/sketchstore/internal/repository"
	"github.com/jaakkos/sketchstore/internal/tools/editor"
	"github.com/jaakkos/sketchstore/internal/web"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var stdio bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the server",
		Long: `Run the HTTP server: the editor page at /, the tRPC endpoint at
/api/trpc/, MCP at /mcp and /health. With --stdio, MCP is also served on
stdin/stdout and the server exits when stdin closes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, stdio)
		},
	}
	cmd.Flags().BoolVar(&stdio, "stdio", false, "also serve MCP over stdin/stdout")
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions, stdio bool) error {
	tmpLogger := log.New(os.Stderr, logPrefix, log.LstdFlags|log.Lshortfile)
	cfg, err := loadConfig(opts.configPath, tmpLogger)
	if err != nil {
		return err
	}
	pol := policy.New(cfg)

	logger := setupLogger(pol.LogFile())
	logger.Println("Starting sketchstore server...")
	logger.Printf("Log file: %s", pol.LogFile())
	logger.Printf("Store: %s %s", pol.Store().Driver, pol.Store().Path)

	repo, err := repository.NewSnapshotRepository(pol.Store())
	if err != nil {
		return fmt.Errorf("snapshot repository: %w", err)
	}
	defer func() {
		if c, ok := repo.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				logger.Printf("Warning: close snapshot repository: %v", err)
			}
		}
	}()
	svc := app.NewEditorService(repo, pol, logger)

	sessions := newSessionStore()
	mcpServer := newMCPServer(svc, sessions, logger)

	notifier := app.NewNotifier(pol.SignalFilePath(), repo, sessions.push(logger), logger)
	svc.SetNotifier(notifier)

	mux, err := newMux(svc, pol, mcpServer, logger)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", pol.HTTPPort()))
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	baseURL := fmt.Sprintf("http://localhost:%d", ln.Addr().(*net.TCPAddr).Port)
	logger.Printf("HTTP server on %s", ln.Addr())
	logger.Printf("  Editor:      %s/", baseURL)
	logger.Printf("  tRPC:        %s%s", baseURL, api.DefaultPrefix)
	logger.Printf("  MCP:         %s/mcp", baseURL)

	httpServer := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		notifier.Start(gctx)
		return nil
	})
	g.Go(func() error {
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown error: %v", err)
		}
		return nil
	})
	if stdio {
		g.Go(func() error {
			// Client disconnected; shut everything down.
			defer cancel()
			logger.Println("Stdio ready")
			if err := server.NewStdioServer(mcpServer).Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				logger.Printf("Stdio server stopped: %v", err)
			}
			return nil
		})
	}

	err = g.Wait()
	logger.Println("Server stopped")
	return err
}

// newMCPServer builds the MCP server with the store tools and session hooks
// that feed sessions for push notifications.
func newMCPServer(svc *app.EditorService, sessions *sessionStore, logger *log.Logger) *server.MCPServer {
	hooks := &server.Hooks{}
	hooks.AddAfterCallTool(func(ctx context.Context, id any, message *mcp.CallToolRequest, result *mcp.CallToolResult) {
		if message != nil {
			logger.Printf("Calling tool: %s", message.Params.Name)
		}
	})
	hooks.AddBeforeInitialize(func(ctx context.Context, id any, message *mcp.InitializeRequest) {
		if session := server.ClientSessionFromContext(ctx); session != nil {
			sessions.set(session.SessionID(), session)
			logger.Printf("Client session registered: %s", session.SessionID())
		}
		if message != nil {
			ci := message.Params.ClientInfo
			logger.Printf("Client: %s %s, Protocol: %s", ci.Name, ci.Version, message.Params.ProtocolVersion)
		}
	})
	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		sessions.remove(session.SessionID())
		logger.Printf("Client session unregistered: %s", session.SessionID())
	})

	s := server.NewMCPServer(
		"sketchstore",
		Version,
		server.WithInstructions("Reads and writes the single tldraw snapshot behind the editor. "+
			"Subscribe to notifications/store_updated to learn about saves from the browser."),
		server.WithHooks(hooks),
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, true), // subscribe=false, listChanged=true
	)
	editor.Register(s, svc, logger)
	return s
}

// newMux wires the HTTP routes.
func newMux(svc *app.EditorService, pol *policy.Policy, mcpServer *server.MCPServer, logger *log.Logger) (*http.ServeMux, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	mux := http.NewServeMux()

	api.NewHandler(api.AppRouter(svc), logger,
		api.WithMaxBodyBytes(pol.MaxBodyBytes()),
		api.WithCORSOrigin(pol.CORSOrigin()),
	).RegisterRoutes(mux)

	page, err := web.NewHandler(svc, web.PageConfig{
		PersistenceKey: pol.PersistenceKey(),
		SaveDebounce:   pol.SaveDebounce(),
	}, web.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("editor page: %w", err)
	}
	page.RegisterRoutes(mux)

	mux.Handle("/mcp", server.NewStreamableHTTPServer(mcpServer))
	return mux, nil
}
