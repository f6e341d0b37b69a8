package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/qprlabs/kpi-engine/internal/adapters/mcp"
	"github.com/qprlabs/kpi-engine/internal/bootstrap"
	"github.com/qprlabs/kpi-engine/internal/config"
	"github.com/qprlabs/kpi-engine/internal/observability/logging"
)

// The MCP server speaks stdio, so logs go to stderr to keep stdout clean
// for the transport.
func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	s := mcpadapter.New(app.RollupUC)
	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
