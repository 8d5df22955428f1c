package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sipeed/picocast/cmd/picocast/internal"
	"github.com/sipeed/picocast/pkg/logger"
	"github.com/sipeed/picocast/pkg/server"
)

const shutdownTimeout = 5 * time.Second

func NewServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Short:   "Start the HTTP API",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serveCmd(cmd, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides PICOCAST_SERVER_ADDR)")

	return cmd
}

func serveCmd(cmd *cobra.Command, addr string) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	p, err := internal.NewPipeline(cfg)
	if err != nil {
		return err
	}

	srv := server.NewServer(cfg, p)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s picocast %s listening on %s\n", internal.Logo, internal.FormatVersion(), cfg.Server.Addr)
	if cfg.Server.APIKey == "" {
		fmt.Fprintln(out, "  warning: PICOCAST_SERVER_API_KEY is empty, the API is unauthenticated")
	}
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	fmt.Fprintln(out, "\nShutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.WarnCF("serve", "Shutdown did not complete", map[string]any{"error": err.Error()})
		return err
	}
	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}
