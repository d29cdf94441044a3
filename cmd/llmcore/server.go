package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/llmcore/internal/api"
	"github.com/kalambet/llmcore/internal/config"
	"github.com/kalambet/llmcore/internal/ollama"
	"github.com/kalambet/llmcore/internal/usage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the llmcore HTTP and MCP server (foreground)",
	RunE:  runServer,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running llmcore server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show llmcore status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().String("mcp", "http", "MCP transport: http, stdio or off")
	serveCmd.Flags().String("image-model", "", "image model enabling the generate_image tool")
	serveCmd.Flags().Bool("pull", false, "pull missing Ollama models from the registry before serving")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "llmcore.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func healthy(ctx context.Context, port int) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://127.0.0.1:%d/health", port), nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func runServer(cmd *cobra.Command, args []string) error {
	mcpMode, _ := cmd.Flags().GetString("mcp")
	switch mcpMode {
	case "http", "stdio", "off":
	default:
		return fmt.Errorf("invalid --mcp %q: want http, stdio or off", mcpMode)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	slog.Info("starting llmcore", "version", version, "models", len(a.registry.Models()))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pidPath := pidFilePath(a.cfg.Storage.DataDir)
	if healthy(ctx, a.cfg.Server.Port) {
		if pid, err := readPIDFile(pidPath); err == nil {
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on port %d", a.cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	if pull, _ := cmd.Flags().GetBool("pull"); pull {
		tags := ollamaTags(a.registry)
		if err := ollama.EnsureModels(ctx, ollama.New(a.cfg.Ollama.BaseURL), tags, os.Stderr); err != nil {
			return err
		}
	}

	imageModel, _ := cmd.Flags().GetString("image-model")
	lib, err := a.tools([]string{"all"}, imageModel)
	if err != nil {
		return err
	}

	if a.cfg.Server.APIToken == "" {
		printWarning("no API token configured, the REST API is unauthenticated")
	}
	deps := api.Deps{
		Models:       a.registry,
		NewEngine:    a.engine,
		Store:        a.store,
		Tools:        lib,
		Recorder:     a.recorder(),
		Usage:        usage.NewStoreRecorder(a.store),
		DefaultModel: a.cfg.Engine.DefaultModel,
		SwarmSize:    a.cfg.Engine.SwarmSize,
		Token:        a.cfg.Server.APIToken,
	}

	addr := fmt.Sprintf("127.0.0.1:%d", a.cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		slog.Info("llmcore listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	mcpSrv := api.NewMCPServer(deps)
	var streamSrv *server.StreamableHTTPServer
	switch mcpMode {
	case "http":
		mcpAddr := fmt.Sprintf("127.0.0.1:%d", a.cfg.Server.MCPPort)
		streamSrv = server.NewStreamableHTTPServer(mcpSrv)
		go func() {
			slog.Info("MCP server listening (streamable HTTP)", "addr", mcpAddr)
			if err := streamSrv.Start(mcpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("MCP server: %w", err)
			}
		}()
	case "stdio":
		stdio := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if streamSrv != nil {
		if err := streamSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("MCP server shutdown", "error", err)
		}
	}
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		return fmt.Errorf("llmcore is not running (no PID file): %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("could not find process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		removePIDFile(pidPath)
		return fmt.Errorf("could not stop llmcore (PID %d): %w", pid, err)
	}

	printSuccess("Sent stop signal to llmcore (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	running := healthy(ctx, cfg.Server.Port)
	if running {
		printStatus("Server", "running on port %d (MCP %d)", cfg.Server.Port, cfg.Server.MCPPort)
	} else {
		printStatus("Server", "stopped")
	}

	if ollama.New(cfg.Ollama.BaseURL).IsRunning(ctx) {
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	} else {
		printStatus("Ollama", "not running")
	}

	printStatus("Default model", "%s", cfg.Engine.DefaultModel)
	if registry, err := config.LoadRegistry(cfg.Models.Registry); err == nil {
		printStatus("Registry", "%d models, %d embedders", len(registry.Models()), len(registry.Embedders()))
	} else {
		printStatus("Registry", "error: %v", err)
	}

	if running {
		client := &apiClient{
			baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
			token:      cfg.Server.APIToken,
			httpClient: &http.Client{Timeout: 5 * time.Second},
		}
		if n, err := countConversations(ctx, client, 100); err == nil {
			printStatus("Conversations", "%s", countLabel(n, 100))
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countConversations(ctx context.Context, c *apiClient, limit int) (int, error) {
	resp, err := c.get(ctx, fmt.Sprintf("/v1/conversations?limit=%d", limit))
	if err != nil {
		return 0, err
	}
	var convs []conversationSummary
	if err := decodeJSON(resp, &convs); err != nil {
		return 0, err
	}
	return len(convs), nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return strconv.Itoa(count)
}
