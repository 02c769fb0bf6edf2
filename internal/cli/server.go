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

	"quiz-scoring-service/internal/app"
	"quiz-scoring-service/internal/config"
	"quiz-scoring-service/internal/domain"
	"quiz-scoring-service/internal/infra/memory"
	pgstore "quiz-scoring-service/internal/infra/postgres"
	redisinfra "quiz-scoring-service/internal/infra/redis"
	"quiz-scoring-service/internal/scheduler"
	"quiz-scoring-service/internal/scoring"
	transport "quiz-scoring-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the scoring server",
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
		defer pool.Close()
	}

	// Stores: postgres in production, the in-memory twin with sample data
	// when no database is configured.
	var (
		submissionStore app.SubmissionStore
		awardStore      app.AwardStore
		rankingStore    app.RankingStore
		lbStore         app.LeaderboardStore
		loader          memory.QuizLoader
	)
	if pool != nil {
		db := openBunDB(cfg.Postgres.URL)
		defer db.Close()
		store := pgstore.NewStore(db)
		submissionStore, awardStore, rankingStore, lbStore = store, store, store, store
		loader = pgstore.NewQuizLoader(pool)
	} else {
		store := memory.NewStore()
		seedSampleData(store)
		submissionStore, awardStore, rankingStore, lbStore = store, store, store, store
		loader = memory.NewStaticQuizLoader(sampleQuizzes())
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizCache(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	calc := scoring.NewCalculator()
	calc.BasePoints = config.IntOr(cfg.Scoring.BasePoints, calc.BasePoints)
	calc.MaxSpeedBonus = config.IntOr(cfg.Scoring.MaxSpeedBonus, calc.MaxSpeedBonus)
	calc.SpeedThresholdPercent = config.IntOr(cfg.Scoring.SpeedThresholdPercent, calc.SpeedThresholdPercent)
	if cfg.Scoring.TimeBonus != nil {
		calc.TimeBonusEnabled = *cfg.Scoring.TimeBonus
	}

	rankings := app.NewRankingService(rankingStore)
	if redisClient != nil {
		leaseTTL := config.TTLDuration(cfg.Ranking.LeaseTTL, 5*time.Minute)
		rankings = rankings.WithLease(redisinfra.NewRecomputeLease(redisClient, leaseTTL))
	}

	leaderboard := app.NewLeaderboardService(lbStore)
	hub := transport.NewHub(leaderboard, 10)

	limitMax := config.IntOr(cfg.RateLimit.MaxSubmissions, 10)
	limitWindow := config.TTLDuration(cfg.RateLimit.Window, time.Hour)
	var limiter app.RateLimiter
	if redisClient != nil {
		limiter = redisinfra.NewRateLimiter(redisClient, limitMax, limitWindow)
	} else {
		limiter = memory.NewRateLimiter(limitMax, limitWindow)
	}

	submissions := app.NewSubmissionService(quizRepo, submissionStore, awardStore, calc).
		WithRateLimiter(limiter).
		WithRankings(rankings).
		WithNotifier(hub)

	handler := transport.NewHandler(submissions, leaderboard, rankings)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)
	mux.HandleFunc("/ws/leaderboard", hub.ServeWS)

	hubCtx, cancelHub := context.WithCancel(ctx)
	defer cancelHub()
	go hub.Run(hubCtx)

	recomputeEvery := config.TTLDuration(cfg.Ranking.RecomputeInterval, 15*time.Minute)
	sched, err := scheduler.New(rankings, recomputeEvery)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting scoring service on :%s", finalPort)
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

func seedSampleData(store *memory.Store) {
	store.AddUser(domain.User{ID: 1, Username: "alice", OrganizationID: 1})
	store.AddUser(domain.User{ID: 2, Username: "bob", OrganizationID: 1})
	store.AddQuizCategory(1, 1)
}

// sampleQuizzes provides minimal quiz data for running without postgres.
func sampleQuizzes() map[int64]domain.Quiz {
	return map[int64]domain.Quiz{
		1: {
			ID:              1,
			Title:           "Arithmetic basics",
			LevelID:         1,
			CategoryID:      1,
			DurationMinutes: 10,
			Questions: []domain.Question{
				{
					ID: 1, QuizID: 1, Type: domain.QuestionSingleChoice,
					Body: "What is 2 + 2?",
					Answers: []domain.Answer{
						{ID: 1, QuestionID: 1, Content: "3"},
						{ID: 2, QuestionID: 1, Content: "4", Correct: true},
						{ID: 3, QuestionID: 1, Content: "5"},
					},
				},
				{
					ID: 2, QuizID: 1, Type: domain.QuestionFreeText,
					Body: "Spell the number 4.",
					Answers: []domain.Answer{
						{ID: 4, QuestionID: 2, Content: "four", Correct: true},
					},
				},
			},
		},
	}
}
