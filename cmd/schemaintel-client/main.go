// Command schemaintel-client is an interactive chat client that lets an
// Ollama model answer questions about a database through the tool server.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prasanna00019/MCP-ToolHub/internal/agent"
	"github.com/prasanna00019/MCP-ToolHub/internal/config"
	"github.com/prasanna00019/MCP-ToolHub/internal/llm"
	"github.com/prasanna00019/MCP-ToolHub/internal/logging"
	"github.com/prasanna00019/MCP-ToolHub/internal/toolhost"
)

const banner = `MCP Client Started!
Type your queries or 'quit' to exit.`

type querier interface {
	Process(ctx context.Context, query string) (*agent.Answer, error)
}

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	noTools := flag.Bool("no-tools", false, "Send queries straight to the model without tool access")
	serverTarget := flag.String("server", "", "Tool server command line or http(s) endpoint (overrides agent.server_command)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *noTools {
		cfg.Agent.UseTools = false
	}
	if *serverTarget != "" {
		cfg.Agent.ServerCommand = *serverTarget
	}

	logger, closeLog, err := logging.New(logging.Options{
		Level:    cfg.Logging.Level,
		File:     cfg.Logging.File,
		Truncate: true,
		Console:  cfg.Logging.Debug,
	})
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		closeLog()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	client := llm.NewClient(cfg.Ollama, logger)
	model, err := client.SelectModel(ctx)
	if err != nil {
		return err
	}
	logger.Info("using model", "model", model, "base_url", client.BaseURL())

	var host agent.ToolHost
	if cfg.Agent.UseTools {
		session, err := toolhost.Dial(ctx, cfg.Agent.ServerCommand, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to tool server: %w", err)
		}
		defer session.Close()
		host = session
	}

	a := agent.New(llm.NewChatModel(client), host, agent.OptionsFromConfig(cfg.Agent), logger)
	return chatLoop(ctx, os.Stdin, os.Stdout, a)
}

// chatLoop reads one query per line until quit, EOF or ctx is done. Query
// failures are printed and the loop continues.
func chatLoop(ctx context.Context, in io.Reader, out io.Writer, q querier) error {
	fmt.Fprintln(out, banner)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "\nQuery: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		query := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(query, "quit") {
			return nil
		}
		if query == "" {
			continue
		}

		answer, err := q.Process(ctx, query)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintf(out, "\nError: %v\n", err)
			continue
		}

		fmt.Fprintf(out, "\n%s\n", answer.Text)
		if answer.StopReason == agent.StopMaxIterations {
			fmt.Fprintf(out, "(stopped after %d iterations)\n", answer.Iterations)
		}
	}
}
