package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/enori/stock-skills/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the risk API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if port > 0 {
				a.Config.Server.Port = port
			}

			srv := server.NewServer(a)
			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			a.Logger.Info().Str("addr", srv.Addr()).Msg("Server ready")

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}

			a.Logger.Info().Msg("Shutdown signal received")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				a.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
			}
			a.Logger.Info().Msg("Server stopped")
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	return cmd
}
