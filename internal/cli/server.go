package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiz-attempt-engine/internal/app"
	"quiz-attempt-engine/internal/config"
	"quiz-attempt-engine/internal/domain"
	"quiz-attempt-engine/internal/infra/memory"
	"quiz-attempt-engine/internal/infra/postgres"
	infraredis "quiz-attempt-engine/internal/infra/redis"
	transport "quiz-attempt-engine/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz attempt server",
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

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	lockTTL := config.TTLDuration(cfg.Quiz.LockTTL, 5*time.Second)

	var (
		questions app.QuestionStore
		topics    app.TopicDirectory
		attempts  app.AttemptStore
	)
	if cfg.Postgres.URL != "" {
		db := openDB(cfg.Postgres.URL)
		defer db.Close()
		if err := migrateDB(ctx, db); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		store := postgres.NewQuestionStore(pool)
		questions, topics = store, store
		attempts = postgres.NewAttemptStore(db)
	} else {
		log.Printf("postgres not configured, using in-memory sample questions")
		memAttempts := memory.NewAttemptStore()
		store := memory.NewQuestionStore(sampleTopics(), sampleQuestions())
		store.UseHistory(memAttempts)
		questions, topics, attempts = store, store, memAttempts
	}

	opts := []app.Option{app.WithMaxQuestions(cfg.Quiz.MaxQuestions)}
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		redisTTL := config.TTLDuration(cfg.Redis.TTL, quizTTL)
		questions = infraredis.NewQuestionCache(redisClient, questions, redisTTL)
		opts = append(opts, app.WithLocker(infraredis.NewAttemptLocker(redisClient, lockTTL)))
	} else {
		questions = memory.NewQuestionCache(questions, quizTTL)
	}

	service := app.NewQuizService(attempts, questions, topics, opts...)
	wsHandler := transport.NewWSHandler(service)

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

	go func() {
		log.Printf("starting quiz attempt engine on :%s", finalPort)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

const sampleOwner int64 = 1

func sampleTopics() map[int64]string {
	return map[int64]string{1: "Arithmetic", 2: "Geography"}
}

// sampleQuestions seeds the in-memory pool for user 1 when no database is configured.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID: 1, OwnerID: sampleOwner, TopicID: 1, Type: domain.MultipleChoice, Difficulty: domain.Easy, Active: true,
			Statement: "What is 2 + 2?",
			Options: []domain.Option{
				{ID: 1, Text: "3", OrderIndex: 0},
				{ID: 2, Text: "4", Correct: true, OrderIndex: 1},
				{ID: 3, Text: "5", OrderIndex: 2},
			},
		},
		{
			ID: 2, OwnerID: sampleOwner, TopicID: 1, Type: domain.TrueFalse, Difficulty: domain.Easy, Active: true,
			Statement: "7 is a prime number.",
			Options: []domain.Option{
				{ID: 4, Text: "True", Correct: true, OrderIndex: 0},
				{ID: 5, Text: "False", OrderIndex: 1},
			},
		},
		{
			ID: 3, OwnerID: sampleOwner, TopicID: 2, Type: domain.MultipleChoice, Difficulty: domain.Medium, Active: true,
			Statement: "Which is the largest ocean?",
			Options: []domain.Option{
				{ID: 6, Text: "Atlantic", OrderIndex: 0},
				{ID: 7, Text: "Pacific", Correct: true, OrderIndex: 1, Explanation: "It covers about a third of the surface."},
				{ID: 8, Text: "Indian", OrderIndex: 2},
			},
		},
		{
			ID: 4, OwnerID: sampleOwner, TopicID: 2, Type: domain.Flashcard, Difficulty: domain.Medium, Active: true,
			Statement: "Name the capital of Australia.",
			Explanation: "Canberra",
		},
	}
}
