package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/prasanna00019/MCP-ToolHub/internal/config"
	"github.com/prasanna00019/MCP-ToolHub/internal/crud"
	"github.com/prasanna00019/MCP-ToolHub/internal/database"
	"github.com/prasanna00019/MCP-ToolHub/internal/diagram"
	"github.com/prasanna00019/MCP-ToolHub/internal/llm"
	"github.com/prasanna00019/MCP-ToolHub/internal/logging"
)

const (
	serverName    = "schemaintel-server"
	serverVersion = "v1.0.0"
)

// server holds everything the tool handlers need.
type server struct {
	pool     *pgxpool.Pool
	schema   string
	analyzer *llm.Analyzer
	renderer *diagram.Renderer
	crud     *crud.Manager
	logger   *slog.Logger
}

func newServer(pool *pgxpool.Pool, cfg *config.Config, logger *slog.Logger) *server {
	return &server{
		pool:     pool,
		schema:   cfg.Database.Schema,
		analyzer: llm.NewAnalyzer(llm.NewClient(cfg.Ollama, logger)),
		renderer: diagram.NewRenderer(cfg.Diagrams, logger),
		crud:     crud.NewManager(pool, logger),
		logger:   logger,
	}
}

// mcpServer builds the protocol server with every tool registered.
func (s *server) mcpServer() *mcp.Server {
	m := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)

	s.registerAnalysisTools(m)
	s.registerIntrospectionTools(m)
	s.registerCRUDTools(m)
	return m
}

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	httpAddr := flag.String("http", "", "Serve streamable HTTP on this address instead of stdio")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// stdout carries the protocol on stdio, so logs only go to stderr
	logger, _, err := logging.New(logging.Options{Level: cfg.Logging.Level, Console: true})
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *httpAddr, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, httpAddr string, logger *slog.Logger) error {
	pool, err := database.Open(ctx, cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer pool.Close()

	m := newServer(pool, cfg, logger).mcpServer()

	if httpAddr == "" {
		logger.Info("serving over stdio", "schema", cfg.Database.Schema)
		if err := m.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return m }, nil)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown failed", "error", err)
		}
	}()

	logger.Info("serving streamable http", "addr", httpAddr, "schema", cfg.Database.Schema)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
