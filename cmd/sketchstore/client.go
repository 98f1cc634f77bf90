package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jaakkos/sketchstore/internal/client"
)

const requestTimeout = 30 * time.Second

func newGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the stored snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			out, err := client.NewClient(opts.url).GetStoreData(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out.Data))
			return nil
		},
	}
}

func newSaveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "save <file|->",
		Short: "Store a JSON document as the snapshot",
		Long:  `Store a JSON document as the snapshot. Use - to read from stdin.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			if !json.Valid(data) {
				return fmt.Errorf("%s: not valid JSON", args[0])
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			res, err := client.NewClient(opts.url).SaveStoreData(ctx, data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %d bytes\n", len(res.Data))
			return nil
		},
	}
}

func newClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the stored snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			if _, err := client.NewClient(opts.url).ClearStoreData(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cleared")
			return nil
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		pull    bool
		delay   time.Duration
		maxWait time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Save a local snapshot file whenever it changes",
		Long: `Watch a snapshot file and save every change to the server, debounced.
With --pull, a missing or empty file is first filled with the server copy.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.New(cmd.ErrOrStderr(), logPrefix, log.LstdFlags)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			bridge := client.NewBridge(client.NewClient(opts.url), logger,
				client.WithDelay(delay),
				client.WithMaxWait(maxWait),
			)
			fs := client.NewFileSync(args[0], bridge, logger, client.WithPull(pull))
			logger.Printf("Watching %s (delay %s)", args[0], delay)
			runErr := fs.Run(ctx)

			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := bridge.Close(closeCtx); err != nil {
				logger.Printf("Warning: final save: %v", err)
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&pull, "pull", false, "fill a missing or empty file with the server copy first")
	cmd.Flags().DurationVar(&delay, "delay", 500*time.Millisecond, "quiet period before a save")
	cmd.Flags().DurationVar(&maxWait, "max-wait", 0, "longest a burst of changes can postpone a save (0 = unbounded)")
	return cmd
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}
