package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmforge-dev/dmforge/internal/dm"
	"github.com/dmforge-dev/dmforge/internal/observability"
	"github.com/dmforge-dev/dmforge/internal/server"
	"github.com/dmforge-dev/dmforge/internal/tools"
	"github.com/dmforge-dev/dmforge/pkg/config"
	"github.com/dmforge-dev/dmforge/pkg/dice"
	"github.com/dmforge-dev/dmforge/pkg/game"
	metrics "github.com/dmforge-dev/dmforge/pkg/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the game session HTTP server",
	Long:  `Starts the HTTP API for creating games, submitting player actions and managing characters, plus a separate metrics and health endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		return runServe(configPath)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Printf("Starting dmforge v%s", Version)

	metrics.InitMetrics()
	if err := observability.InitFromEnv(); err != nil {
		return fmt.Errorf("tracing init: %w", err)
	}

	backend, err := newBackend(cfg)
	if err != nil {
		return fmt.Errorf("storage init: %w", err)
	}

	healthChecker := metrics.InitHealthChecker()
	if redisBackend, ok := backend.(*game.RedisBackend); ok {
		healthChecker.RegisterCheck(metrics.StorageCheck(redisBackend.Ping))
	}

	clientCfg := openai.DefaultConfig(cfg.OpenAIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}
	client := openai.NewClientWithConfig(clientCfg)
	healthChecker.RegisterCheck(metrics.NarratorCheck(func(ctx context.Context) error {
		_, err := client.ListModels(ctx)
		return err
	}))
	narrator := dm.NewAgent(
		client,
		cfg.Model,
		tools.NewRegistry(dice.NewRoller()),
		dm.WithRateLimit(cfg.Narrator.RequestsPerSecond, cfg.Narrator.Burst),
		dm.WithTimeout(cfg.Narrator.Timeout.Duration),
		dm.WithTemperature(cfg.Temperature),
	)

	manager := game.NewManager(backend, narrator)
	defer manager.Close()

	if cfg.Janitor.Schedule != "" {
		if err := manager.StartJanitor(cfg.Janitor.Schedule, cfg.Janitor.MaxIdle.Duration); err != nil {
			return fmt.Errorf("janitor init: %w", err)
		}
	}

	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewHandler(manager),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	obsServer := metrics.NewServer(cfg.Server.ObservabilityPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Game API listening on :%d", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Printf("Metrics and health listening on :%d", cfg.Server.ObservabilityPort)
		if err := obsServer.Start(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("observability server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("API server shutdown error: %v", err)
		}
		if err := obsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Observability server shutdown error: %v", err)
		}
		if err := observability.Shutdown(shutdownCtx); err != nil {
			log.Printf("Tracing shutdown error: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Println("dmforge stopped")
	return nil
}

func newBackend(cfg *config.Config) (game.StorageBackend, error) {
	switch cfg.Storage.Backend {
	case "redis":
		return game.NewRedisBackend(game.RedisConfig{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		})
	case "file":
		return game.NewFileBackend(cfg.Storage.FileDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
