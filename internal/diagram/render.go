package diagram

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prasanna00019/MCP-ToolHub/internal/config"
	"github.com/prasanna00019/MCP-ToolHub/internal/schema"
)

const (
	probeTimeout = 5 * time.Second
	mmdcTimeout  = 30 * time.Second
	npxTimeout   = 60 * time.Second
	apiTimeout   = 30 * time.Second

	// DefaultAPIBase is the public mermaid.ink endpoint.
	DefaultAPIBase = "https://mermaid.ink"
)

// Formats lists the supported output formats.
var Formats = []string{"svg", "png", "pdf"}

// ValidFormat reports whether format can be rendered.
func ValidFormat(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

// Renderer writes Mermaid diagrams to files, preferring a local mermaid-cli
// and falling back to the mermaid.ink HTTP API.
type Renderer struct {
	outputDir  string
	apiBase    string
	disableCLI bool
	client     *http.Client
	logger     *slog.Logger

	probeOnce sync.Once
	cli       bool
}

// NewRenderer returns a renderer for cfg. The CLI is probed lazily on the
// first render.
func NewRenderer(cfg config.DiagramConfig, logger *slog.Logger) *Renderer {
	apiBase := strings.TrimRight(cfg.APIBase, "/")
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = "diagrams"
	}
	return &Renderer{
		outputDir:  outputDir,
		apiBase:    apiBase,
		disableCLI: cfg.DisableCLI,
		client:     &http.Client{Timeout: apiTimeout},
		logger:     logger,
	}
}

// OutputDir returns the directory diagrams are written to.
func (r *Renderer) OutputDir() string {
	return r.outputDir
}

func (r *Renderer) cliAvailable(ctx context.Context) bool {
	r.probeOnce.Do(func() {
		if r.disableCLI {
			return
		}
		if runWithTimeout(ctx, probeTimeout, "mmdc", "--version") == nil {
			r.cli = true
			return
		}
		r.cli = runWithTimeout(ctx, probeTimeout, "npx", "@mermaid-js/mermaid-cli", "--version") == nil
	})
	return r.cli
}

func runWithTimeout(ctx context.Context, timeout time.Duration, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if len(out) > 0 {
			return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Render writes syntax to <outputDir>/<name>.<format>. It returns the file
// path and false when no renderer succeeded.
func (r *Renderer) Render(ctx context.Context, syntax, name, format string) (string, bool) {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		r.logger.Error("failed to create diagram directory", "dir", r.outputDir, "error", err)
		return "", false
	}
	output := filepath.Join(r.outputDir, name+"."+format)

	if r.cliAvailable(ctx) {
		err := r.renderCLI(ctx, syntax, name, output)
		if err == nil {
			return output, true
		}
		r.logger.Warn("cli rendering failed, trying api", "diagram", name, "error", err)
	}

	if err := r.renderAPI(ctx, syntax, format, output); err != nil {
		r.logger.Warn("api rendering failed", "diagram", name, "error", err)
		return "", false
	}
	return output, true
}

func (r *Renderer) renderCLI(ctx context.Context, syntax, name, output string) error {
	input := filepath.Join(r.outputDir, name+".mmd")
	if err := os.WriteFile(input, []byte(syntax), 0o644); err != nil {
		return fmt.Errorf("failed to write diagram source: %w", err)
	}

	err := runWithTimeout(ctx, mmdcTimeout, "mmdc", "-i", input, "-o", output, "-t", "default")
	if err != nil {
		err = runWithTimeout(ctx, npxTimeout, "npx", "@mermaid-js/mermaid-cli", "-i", input, "-o", output)
	}
	if err != nil {
		return err
	}
	if _, err := os.Stat(output); err != nil {
		return fmt.Errorf("renderer produced no output: %w", err)
	}

	os.Remove(input)
	return nil
}

func (r *Renderer) renderAPI(ctx context.Context, syntax, format, output string) error {
	encoded := base64.RawURLEncoding.EncodeToString([]byte(syntax))
	url := fmt.Sprintf("%s/%s/%s", r.apiBase, format, encoded)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mermaid api returned status %d", resp.StatusCode)
	}

	if err := os.WriteFile(output, body, 0o644); err != nil {
		return fmt.Errorf("failed to write diagram: %w", err)
	}
	return nil
}

// RenderAll renders the ERD and the flowchart of s in each format. The result
// maps erd_<format> and flowchart_<format> to file paths; diagrams that could
// not be rendered are absent.
func (r *Renderer) RenderAll(ctx context.Context, s *schema.Schema, formats []string) map[string]string {
	erd := MermaidERD(s)
	flowchart := MermaidFlowchart(s)

	results := map[string]string{}
	for _, format := range formats {
		for _, d := range []struct{ kind, syntax string }{{"erd", erd}, {"flowchart", flowchart}} {
			name := d.kind + "_" + format
			if path, ok := r.Render(ctx, d.syntax, name, format); ok {
				results[name] = path
			}
		}
	}
	return results
}
