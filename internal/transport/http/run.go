package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"yakunote/internal/bootstrap"
)

const shutdownTimeout = 5 * time.Second

// Run serves the router until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, app *bootstrap.App) error {
	router, err := NewRouter(app)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              app.Config.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("server starting", "addr", server.Addr, "public_url", app.Config.PublicBaseURL())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	app.Logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
