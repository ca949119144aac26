package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/config"
	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/infra/memory"
	pgloader "trivia-room-service/internal/infra/postgres"
	redisinfra "trivia-room-service/internal/infra/redis"
	transport "trivia-room-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia room server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.SetLoader = memory.NewStaticSetLoader(builtinSets())
	if pool != nil {
		loader = pgloader.NewSetLoader(pool)
	}

	setTTL := config.TTLDuration(cfg.Sets.TTL, 10*time.Minute)
	var sets app.QuestionSource
	if redisClient != nil {
		sets = redisinfra.NewSetRepository(redisClient, loader, setTTL)
	} else {
		sets = memory.NewSetRepository(loader, setTTL)
	}

	var presence app.Presence
	if redisClient != nil {
		presenceTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
		presence = redisinfra.NewRoomPresence(redisClient, presenceTTL)
	}

	timing := app.Timing{
		QuestionDuration: config.Seconds(cfg.Game.QuestionSeconds, 15*time.Second),
		RevealDelay:      config.Seconds(cfg.Game.RevealSeconds, 5*time.Second),
	}

	defaultSet := cfg.Game.DefaultSet
	if defaultSet == "" {
		defaultSet = "general-knowledge"
	}

	hub := transport.NewHub()
	registry := app.NewRegistry(hub, timing, presence)
	service := app.NewGameService(registry, sets, defaultSet)
	wsHandler := transport.NewWSHandler(service, hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	sweepDone := make(chan struct{})
	go func() {
		roomTTL := config.TTLDuration(cfg.Game.RoomTTL, 30*time.Minute)
		interval := config.TTLDuration(cfg.Game.SweepInterval, 5*time.Minute)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := registry.Sweep(roomTTL); n > 0 {
					log.Printf("swept %d finished/idle rooms", n)
				}
			case <-sweepDone:
				return
			}
		}
	}()

	go func() {
		log.Printf("starting trivia room service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}
	close(sweepDone)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// builtinSets ships the demo question bank used when Postgres is not
// configured.
func builtinSets() map[string]domain.QuestionSet {
	return map[string]domain.QuestionSet{
		"general-knowledge": {
			ID:     "general-knowledge",
			Title:  "General Knowledge",
			Author: "builtin",
			Questions: []domain.Question{
				{Prompt: "What is the capital of France?", Correct: "Paris", Distractors: []string{"London", "Berlin", "Madrid"}},
				{Prompt: "Which planet is known as the Red Planet?", Correct: "Mars", Distractors: []string{"Venus", "Jupiter", "Saturn"}},
				{Prompt: "What is 2 + 2?", Correct: "4", Distractors: []string{"3", "5", "22"}},
				{Prompt: "Which color mixes with blue to make green?", Correct: "Yellow", Distractors: []string{"Red", "Black", "White"}},
				{Prompt: "What is the largest ocean on Earth?", Correct: "Pacific Ocean", Distractors: []string{"Atlantic Ocean", "Indian Ocean", "Arctic Ocean"}},
				{Prompt: "Who wrote 'Romeo and Juliet'?", Correct: "William Shakespeare", Distractors: []string{"Charles Dickens", "Jane Austen", "Mark Twain"}},
				{Prompt: "What is the chemical symbol for water?", Correct: "H2O", Distractors: []string{"O2", "CO2", "NaCl"}},
			},
		},
	}
}
