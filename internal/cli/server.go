package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"simulado-service/internal/app"
	"simulado-service/internal/config"
	"simulado-service/internal/domain"
	"simulado-service/internal/infra/memory"
	"simulado-service/internal/infra/postgres"
	redisinfra "simulado-service/internal/infra/redis"
	"simulado-service/internal/logging"
	"simulado-service/internal/tracing"
	transport "simulado-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// examBackend is both the write side and the cache loader for exam definitions.
type examBackend interface {
	app.ExamStore
	memory.ExamLoader
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Tracing.Enabled && cfg.Tracing.CollectorEndpoint != "" {
		shutdown, err := tracing.Init("simulado-service", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	pgURL := cfg.PostgresURL()
	if pgURL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "3000"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var (
		exams       examBackend
		submissions app.SubmissionStore
		questions   app.QuestionStore
	)
	if pgURL != "" {
		pool, err := pgxpool.Connect(ctx, pgURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		exams = postgres.NewExamStore(pool)
		submissions = postgres.NewSubmissionStore(pool)
		questions = postgres.NewQuestionStore(pool)
		log.Info("using postgres store")
	} else {
		exams = memory.NewExamStore()
		submissions = memory.NewSubmissionStore()
		questions = memory.NewQuestionStore(sampleQuestions()...)
		log.Warn("postgres not configured, using in-memory store")
	}

	examTTL := config.TTLDuration(cfg.Cache.ExamTTL, 10*time.Minute)
	examCapacity := cfg.Cache.ExamCapacity
	if examCapacity == 0 {
		examCapacity = 1024
	}
	boardTTL := config.TTLDuration(cfg.Cache.LeaderboardTTL, 30*time.Second)
	var (
		examRepo app.ExamRepository
		boards   app.LeaderboardCache
	)
	if redisClient != nil {
		examRepo = redisinfra.NewExamRepository(redisClient, exams, config.TTLDuration(cfg.Redis.TTL, examTTL), log)
		boards = redisinfra.NewLeaderboardCache(redisClient, boardTTL, log)
	} else {
		examRepo = memory.NewExamRepository(exams, examCapacity)
		boards = memory.NewLeaderboardCache(boardTTL)
	}

	service := app.NewExamService(exams, examRepo, submissions, questions,
		app.WithLeaderboardCache(boards),
		app.WithLogger(log))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(service, reg, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting simulado service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions seeds the in-memory question bank for local runs without Postgres.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:            1,
			Board:         "CESPE",
			Institution:   "TRF",
			Exam:          "Analista Judiciário",
			Level:         "Superior",
			Subject:       "Matemática",
			Topic:         "Aritmética",
			Prompt:        "Quanto é 2 + 2?",
			Alternatives:  []string{"3", "4", "5"},
			CorrectAnswer: "B",
		},
		{
			ID:            2,
			Board:         "FGV",
			Institution:   "TJ",
			Exam:          "Técnico Judiciário",
			Level:         "Médio",
			Subject:       "Português",
			Topic:         "Crase",
			Prompt:        "Assinale a frase com uso correto da crase.",
			Alternatives:  []string{"Vou à escola.", "Vou à pé.", "Refiro-me à você."},
			CorrectAnswer: "A",
			Explanation:   "Crase antes de substantivo feminino regido pela preposição a.",
		},
	}
}
