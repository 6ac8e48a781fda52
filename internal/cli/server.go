package cli

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quizly-service/internal/app"
	"quizly-service/internal/config"
	"quizly-service/internal/infra/memory"
	infraopenai "quizly-service/internal/infra/openai"
	infrapg "quizly-service/internal/infra/postgres"
	infraredis "quizly-service/internal/infra/redis"
	"quizly-service/internal/infra/whisper"
	"quizly-service/internal/infra/ytdlp"
	"quizly-service/internal/logging"
	transport "quizly-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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

	logger, err := logging.New(cfg.Env)
	if err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Sugar()

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

	var redisClient *goredis.Client
	if cfg.Redis.Addr != "" {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	questionTTL := config.TTLDuration(cfg.Cache.QuestionTTL, 10*time.Minute)
	transcriptTTL := config.TTLDuration(cfg.Cache.TranscriptTTL, 24*time.Hour)

	var store app.Store
	var content app.QuizContentProvider
	if cfg.Postgres.URL != "" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		bunDB := bun.NewDB(sqldb, pgdialect.New())
		defer bunDB.Close()
		store = infrapg.NewStore(bunDB)

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader := infrapg.NewQuestionLoader(pool)

		if redisClient != nil {
			content = infraredis.NewQuestionCache(redisClient, loader, questionTTL)
		} else {
			content = memory.NewQuizCache(loader, questionTTL)
		}
	} else {
		memStore := memory.NewStore()
		store = memStore
		content = memStore
	}

	var transcripts app.TranscriptCache
	if redisClient != nil {
		transcripts = infraredis.NewTranscriptCache(redisClient, transcriptTTL)
	} else {
		transcripts = memory.NewTranscriptCache(transcriptTTL)
	}

	downloader := ytdlp.NewDownloader(cfg.Media.YtdlpBinary, cfg.Media.WorkDir, log)
	transcriber := whisper.NewTranscriber(cfg.Media.WhisperBinary, cfg.Media.FfprobeBinary, cfg.Media.ModelDir, log)
	model := infraopenai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, log)
	generator := app.NewGenerator(model, log)

	creation := app.NewCreationService(store, downloader, transcriber, generator, transcripts, cfg.Media.ModelSize, log)
	quizzes := app.NewQuizService(store, log)
	attempts := app.NewAttemptService(store, content, log)

	handler := transport.NewHandler(creation, quizzes, attempts, log)
	wsHandler := transport.NewWSHandler(creation, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)
	mux.HandleFunc("/ws/create", wsHandler.ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// Creation requests download and transcribe media inline, so the
		// write timeout is generous.
		WriteTimeout: 10 * time.Minute,
	}

	go func() {
		log.Infow("starting quizly service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("server stopped", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Infow("shutting down server")
	case <-ctx.Done():
		log.Infow("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
