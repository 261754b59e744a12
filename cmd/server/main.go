// Retail Assist - question answering service for a retail operation
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"retail-assist/internal/analytics"
	"retail-assist/internal/api"
	"retail-assist/internal/config"
	"retail-assist/internal/conversation"
	"retail-assist/internal/llm"
	"retail-assist/internal/orchestrator"
	"retail-assist/internal/rag"
	"retail-assist/internal/scheduler"
	"retail-assist/internal/sqlagent"
	"retail-assist/internal/storage"
	"retail-assist/internal/telegram"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "provider", cfg.LLMProvider)

	factory := llm.NewFactory(cfg)
	generator, err := factory.CreateClient(string(cfg.LLMProvider), cfg.OpenAIModel)
	if err != nil {
		slog.Error("Failed to create llm client", "error", err)
		os.Exit(1)
	}

	dataBackend, err := sqlagent.New(generator, cfg.SchemaPromptPath)
	if err != nil {
		slog.Error("Failed to init data-query backend", "error", err)
		os.Exit(1)
	}

	retriever := rag.NewChromaClient(cfg.ChromaURL, cfg.ChromaCollection)
	store := conversation.NewStore(cfg.ConversationWindow)

	var recorder storage.Recorder
	if cfg.LogFilePath != "" {
		fr, err := storage.NewFileRecorder(cfg.LogFilePath)
		if err != nil {
			slog.Error("Failed to init file recorder", "error", err)
		} else {
			recorder = fr
		}
	}

	orch := orchestrator.New(dataBackend, retriever, generator, store, recorder, logger, orchestrator.Options{
		ContextTurns: cfg.ContextTurns,
		DefaultTopK:  cfg.DefaultTopK,
		Timeout:      cfg.RequestTimeout,
		SystemPrompt: readSystemPrompt(cfg.SystemPromptPath),
	})

	handler := api.NewHandler(orch, store, retriever, generator, dataBackend.SchemaPreamble())

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	handler.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Daily usage digest from the interaction log.
	if recorder != nil {
		sched := scheduler.New(logger)
		sched.SetReportFunction(func(ctx context.Context) error {
			events, err := recorder.LoadInteractions()
			if err != nil {
				return fmt.Errorf("load interactions: %w", err)
			}
			stats := analytics.AnalyzeDailyLogs(events, time.Now().UTC())
			slog.Info("daily usage digest", "summary", stats.Summary())
			return nil
		})
		if err := sched.Start(); err != nil {
			slog.Error("Failed to start scheduler", "error", err)
		} else {
			defer sched.Stop()
		}
	}

	// Optional Telegram channel.
	if cfg.TelegramBotToken != "" {
		bot, err := telegram.New(cfg.TelegramBotToken, orch, logger)
		if err != nil {
			slog.Error("Failed to init telegram channel", "error", err)
		} else {
			go bot.Start(ctx)
		}
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func readSystemPrompt(path string) string {
	if path == "" {
		return defaultSystemPrompt
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("system prompt file not readable, using default", "path", path, "error", err)
		return defaultSystemPrompt
	}
	return strings.TrimSpace(string(data))
}

const defaultSystemPrompt = `You are an assistant for a retail system. Answer clearly and briefly
based on the provided context and conversation history. If the information is
not in the context, say you are not sure and suggest a next step.`
