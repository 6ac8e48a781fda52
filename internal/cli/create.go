package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quizly-service/internal/app"
	"quizly-service/internal/config"
	"quizly-service/internal/infra/memory"
	infraopenai "quizly-service/internal/infra/openai"
	infrapg "quizly-service/internal/infra/postgres"
	"quizly-service/internal/infra/whisper"
	"quizly-service/internal/infra/ytdlp"
	"quizly-service/internal/logging"
)

// NewCreateCmd runs the creation pipeline once from the command line,
// useful for smoke-testing the media toolchain without a running server.
func NewCreateCmd(configPath *string) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "create <video-url>",
		Short: "Generate a quiz from a video and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd.Context(), *configPath, userID, args[0])
		},
	}
	cmd.Flags().StringVar(&userID, "user", "cli", "owner id for the created quiz")
	return cmd
}

func runCreate(ctx context.Context, configPath, userID, rawURL string) error {
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

	var store app.Store
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		bunDB := bun.NewDB(sqldb, pgdialect.New())
		defer bunDB.Close()
		store = infrapg.NewStore(bunDB)
	} else {
		store = memory.NewStore()
	}

	downloader := ytdlp.NewDownloader(cfg.Media.YtdlpBinary, cfg.Media.WorkDir, log)
	transcriber := whisper.NewTranscriber(cfg.Media.WhisperBinary, cfg.Media.FfprobeBinary, cfg.Media.ModelDir, log)
	model := infraopenai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, log)
	generator := app.NewGenerator(model, log)
	creation := app.NewCreationService(store, downloader, transcriber, generator, nil, cfg.Media.ModelSize, log)

	quiz, err := creation.CreateQuiz(ctx, userID, rawURL, func(stage string) {
		log.Infow("pipeline stage", "stage", stage)
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(quiz)
}
