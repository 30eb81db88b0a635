package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/praetorian-inc/sift/pkg/serve"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as an NDJSON server over stdin and stdout",
	Long: `Run sift as a long-lived server that accepts requests on stdin and
writes responses to stdout, one JSON document per line.

The catalog loads once at startup. Compiled matchers registered with
"compile" stay available until released. The server exits when stdin
closes, a "close" request arrives, or SIGTERM is received.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			logger.Info().Msg("signal received, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Debug().Str("version", serve.Version).Msg("serving")
	srv := serve.NewServer(e, cmd.InOrStdin(), cmd.OutOrStdout())
	return srv.Run(ctx)
}
