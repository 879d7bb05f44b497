package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/carprice-api/internal/config"
	"github.com/Brownie44l1/carprice-api/internal/handlers"
	"github.com/Brownie44l1/carprice-api/internal/metrics"
)

func newServeCmd(cfg **config.Config) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the estimate HTTP API",
		Example: `  # Start on the port from $PORT (default 8080)
  carprice serve

  # Upload test
  curl -F year=2020 -F mileage=15000 -F model_id=5 -F image=@car.jpg http://localhost:8080/api/estimate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			if port != "" {
				c.Port = port
			}

			rec := metrics.New()
			a, err := loadApp(cmd.Context(), c, rec)
			if err != nil {
				return err
			}
			defer a.Close()

			handler := handlers.NewHandler(a.service, a.catalog, c.MaxUploadBytes)

			addr := ":" + c.Port
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Routes(rec),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Server starting", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "error", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides $PORT)")

	return cmd
}
