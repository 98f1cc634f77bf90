// Sketchstore server and client.
// HTTP serves the editor page, the tRPC endpoint and MCP; stdio serves MCP
// for a local agent.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jaakkos/sketchstore/internal/policy"
)

// Version is set by -ldflags at build time.
var Version = "dev"

const logPrefix = "[sketchstore] "

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	url        string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "sketchstore",
		Short: "Persistence server for a tldraw canvas",
		Long: `sketchstore keeps one tldraw snapshot and serves it to the browser
editor over a tRPC-compatible endpoint and to agents over MCP.

Client commands (get, save, clear, watch) talk to a running server.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $SKETCHSTORE_CONFIG)")
	root.PersistentFlags().StringVar(&opts.url, "url", "http://localhost:3000", "server URL for client commands")

	root.AddCommand(
		newServeCmd(opts),
		newGetCmd(opts),
		newSaveCmd(opts),
		newClearCmd(opts),
		newWatchCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "sketchstore "+Version)
		},
	}
}

// setupLogger creates a logger that writes to a log file and optionally stderr.
// When stderr is a terminal, logs go to both; when it is redirected, only
// to the file so daemonized runs don't duplicate lines.
func setupLogger(logFilePath string) *log.Logger {
	var writers []io.Writer

	stderrIsTerminal := false
	if info, err := os.Stderr.Stat(); err == nil {
		stderrIsTerminal = (info.Mode() & os.ModeCharDevice) != 0
	}

	hasLogFile := false
	lower := strings.ToLower(logFilePath)
	if lower != "none" && lower != "off" && logFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0o755); err == nil {
			f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				writers = append(writers, f)
				hasLogFile = true
			} else {
				fmt.Fprintf(os.Stderr, logPrefix+"Warning: cannot open log file %s: %v\n", logFilePath, err)
			}
		} else {
			fmt.Fprintf(os.Stderr, logPrefix+"Warning: cannot create log dir %s: %v\n", filepath.Dir(logFilePath), err)
		}
	}

	// Always keep at least one output.
	if stderrIsTerminal || !hasLogFile {
		writers = append(writers, os.Stderr)
	}

	return log.New(io.MultiWriter(writers...), logPrefix, log.LstdFlags|log.Lshortfile)
}

// loadConfig loads configuration from path (or $SKETCHSTORE_CONFIG), then
// applies SKETCHSTORE_* overrides. An unreadable file falls back to defaults.
func loadConfig(path string, logger *log.Logger) (*policy.Config, error) {
	if path == "" {
		path = os.Getenv(policy.EnvPrefix + "CONFIG")
	}
	cfg := policy.DefaultConfig()
	if path != "" {
		var err error
		cfg, err = policy.LoadConfig(path)
		if err != nil {
			logger.Printf("Warning: failed to load config %s: %v, using defaults", path, err)
			cfg = policy.DefaultConfig()
		}
	}
	if err := policy.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
