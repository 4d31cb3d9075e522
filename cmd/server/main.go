package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"yakunote/internal/bootstrap"
	httptransport "yakunote/internal/transport/http"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}

	runErr := httptransport.Run(ctx, app)
	if err := app.Close(); err != nil {
		app.Logger.Error("close resources failed", "error", err)
	}
	if runErr != nil {
		app.Logger.Error("server stopped", "error", runErr)
		os.Exit(1)
	}
}
