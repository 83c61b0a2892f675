package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/formworks-hq/formworks/internal/web"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the form engine HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			server := web.NewServer(a.cfg.Server.Addr(), a.pipeline, a.lister,
				a.orch, a.store, a.logger)

			errCh := make(chan error, 1)
			go func() {
				if err := server.Start(); !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			color.Green("Formworks listening on http://%s", a.cfg.Server.Addr())

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case <-sig:
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("shutdown failed", zap.Error(err))
				return err
			}
			return nil
		},
	}
}
