package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/aqueduct/internal/presentation/tui"
	httpAdapter "github.com/aretw0/aqueduct/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Serves the workspace over HTTP: POST /api/ai for stateless proposals, the
/api/graph REST surface for editing, SSE updates on /api/graph/events and
Prometheus metrics on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			a.cfg.Server.Addr = addr
		}

		ws, err := a.openWorkspace(cmd)
		if err != nil {
			return err
		}
		defer ws.Close()

		handler := httpAdapter.NewHandler(ws,
			httpAdapter.WithLogger(a.logger),
			httpAdapter.WithCORSOrigins(a.cfg.Server.CORSOrigins...),
			httpAdapter.WithMetrics(a.registry),
		)
		defer handler.Close()

		srv := &http.Server{
			Addr:              a.cfg.Server.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			if tui.IsTerminal(os.Stderr) {
				tui.PrintBanner(os.Stderr)
			}
			a.logger.Info("Starting Aqueduct Server",
				"addr", srv.Addr,
				"workspace", ws.ID(),
				"storage", a.cfg.Storage.Driver,
				"default_model", a.cfg.Backend.DefaultModel,
			)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			a.logger.Info("Start shutdown", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				a.logger.Error("Graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			a.logger.Info("Aqueduct Server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (overrides config)")
}
