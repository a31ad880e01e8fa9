package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"

	"github.com/kalambet/docmind/internal/ai"
	"github.com/kalambet/docmind/internal/api"
	"github.com/kalambet/docmind/internal/auth"
	"github.com/kalambet/docmind/internal/broadcast"
	"github.com/kalambet/docmind/internal/config"
	"github.com/kalambet/docmind/internal/document"
	"github.com/kalambet/docmind/internal/engine"
	"github.com/kalambet/docmind/internal/retrieval"
	"github.com/kalambet/docmind/internal/storage"
	"github.com/kalambet/docmind/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the docmind server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve read-only document tools over MCP (stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show docmind system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

// services is the object graph shared by serve and mcp.
type services struct {
	store  *storage.Store
	hub    *broadcast.Hub
	docs   *document.Manager
	worker *worker.Worker
	search *retrieval.Searcher
	qa     *retrieval.QA
	tokens *auth.Tokens
	users  *auth.UserCache
}

func aiModels(cfg config.Config) (chat, embed string) {
	if cfg.AI.Provider == "openai" {
		return cfg.OpenAI.ChatModel, cfg.OpenAI.EmbedModel
	}
	return cfg.Ollama.ChatModel, cfg.Ollama.EmbedModel
}

func detectEngine(cfg config.Config) (engine.Engine, error) {
	return engine.Detect(engine.DetectConfig{
		Provider:      cfg.AI.Provider,
		OllamaBaseURL: cfg.Ollama.BaseURL,
		OpenAIBaseURL: cfg.OpenAI.BaseURL,
		OpenAIAPIKey:  cfg.OpenAI.APIKey,
	})
}

func buildServices(cfg config.Config, store *storage.Store, eng ai.Backend) *services {
	chatModel, embedModel := aiModels(cfg)
	adapter := ai.New(eng, ai.Options{
		ChatModel:         chatModel,
		EmbedModel:        embedModel,
		Timeout:           cfg.AI.TimeoutDuration(),
		RequestsPerSecond: cfg.AI.RequestsPerSecond,
		Burst:             cfg.AI.Burst,
	})

	hub := broadcast.NewHub()
	w := worker.New(store, worker.Options{
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.Poll(),
	})
	docs := document.NewManager(store, adapter, hub, w)
	w.Handle(document.JobType, docs.HandleJob)

	search := retrieval.NewSearcher(store, adapter)
	return &services{
		store:  store,
		hub:    hub,
		docs:   docs,
		worker: w,
		search: search,
		qa:     retrieval.NewQA(search, adapter, cfg.Search.QATopK),
		tokens: auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TTL()),
		users:  auth.NewUserCache(store),
	}
}

func setupLogging(cfg config.Config, w io.Writer) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "docmind version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg, os.Stderr)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)); err == nil {
		resp.Body.Close()
		printWarning("docmind is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := detectEngine(cfg)
	if err != nil {
		return fmt.Errorf("detecting inference engine: %w", err)
	}
	chatModel, embedModel := aiModels(cfg)
	if err := engine.EnsureReady(ctx, eng, chatModel, embedModel, os.Stderr); err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	svc := buildServices(cfg, store, eng)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		svc.worker.Run(ctx)
	}()

	handler := api.NewHandler(api.Deps{
		Documents:      svc.docs,
		Search:         svc.search,
		QA:             svc.qa,
		Users:          store,
		Tokens:         svc.tokens,
		Resolver:       svc.users,
		Hub:            svc.hub,
		AllowedOrigins: cfg.Realtime.Origins(),
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	ln = netutil.LimitListener(ln, cfg.Server.MaxConnections)

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("docmind listening", "addr", ln.Addr().String(), "provider", cfg.AI.Provider, "max_connections", cfg.Server.MaxConnections)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	stop()
	<-workerDone
	return err
}

// runMCP serves the MCP tools on stdin/stdout. Logs go to stderr so they do
// not corrupt the protocol stream.
func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := detectEngine(cfg)
	if err != nil {
		return fmt.Errorf("detecting inference engine: %w", err)
	}
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	svc := buildServices(cfg, store, eng)
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Documents: svc.docs,
		Search:    svc.search,
		QA:        svc.qa,
	})

	slog.Info("MCP server started (stdio transport)")
	stdio := server.NewStdioServer(mcpSrv)
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("AI provider", "%s", cfg.AI.Provider)
	if eng, err := detectEngine(cfg); err != nil {
		printStatus("Inference", "unavailable (%v)", err)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if eng.IsRunning(ctx) {
			printStatus("Inference", "reachable")
		} else {
			printStatus("Inference", "not reachable")
		}
		cancel()
	}
	chatModel, embedModel := aiModels(cfg)
	printStatus("Chat model", "%s", chatModel)
	printStatus("Embed model", "%s", embedModel)

	if store, err := storage.Open(cfg.Storage.DataDir); err == nil {
		for _, s := range []string{storage.JobStatusPending, storage.JobStatusRunning, storage.JobStatusFailed} {
			if n, err := store.CountJobs(s); err == nil {
				printStatus("Jobs "+s, "%d", n)
			}
		}
		store.Close()
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
