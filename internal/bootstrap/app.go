// Package bootstrap assembles the API's dependencies from configuration.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"coverletter-backend/internal/compiler"
	"coverletter-backend/internal/derivation"
	"coverletter-backend/internal/letters"
	"coverletter-backend/internal/llm"
	"coverletter-backend/internal/llm/gemini"
	"coverletter-backend/internal/llm/openai"
	"coverletter-backend/internal/renders"
	"coverletter-backend/internal/shared/auth"
	"coverletter-backend/internal/shared/config"
	"coverletter-backend/internal/shared/server"
	"coverletter-backend/internal/shared/storage/db"
	"coverletter-backend/internal/shared/storage/object"
	localstore "coverletter-backend/internal/shared/storage/object/local"
	s3store "coverletter-backend/internal/shared/storage/object/s3"
	"coverletter-backend/internal/shared/telemetry"
)

// App holds shared dependencies and the wired router.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Store    object.ObjectStore
	LLM      llm.Client
	Compiler compiler.Compiler
	Verifier *auth.Verifier

	LettersRepo    letters.Repo
	LettersService *letters.Service
	Orchestrator   *derivation.Orchestrator

	LettersHandler    *letters.Handler
	DerivationHandler *derivation.Handler
	RendersHandler    *renders.Handler
}

// Build prepares every dependency and wires routes.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	llmClient, err := buildLLM(cfg)
	if err != nil {
		return nil, err
	}

	compilerClient, err := compiler.NewClient(cfg.CompilerURL, cfg.CompilerTimeout)
	if err != nil {
		return nil, fmt.Errorf("compiler client: %w", err)
	}

	verifier, err := auth.VerifierFromEnv()
	if err != nil {
		if !cfg.IsDevLike() {
			return nil, err
		}
		telemetry.Warn("bootstrap.jwt_disabled", map[string]any{"err": err})
		verifier = nil
	}

	app := &App{
		Config:   cfg,
		DB:       sqlDB,
		Store:    store,
		LLM:      llmClient,
		Compiler: compilerClient,
		Verifier: verifier,
	}
	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:   app.Config,
		Verifier: app.Verifier,
		Handlers: []server.RouteRegistrar{
			app.LettersHandler,
			app.DerivationHandler,
			app.RendersHandler,
		},
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Info("bootstrap.memory_repo", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, errors.New("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err == nil {
		if err = db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			sqlDB = nil
		}
	}
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repo", map[string]any{"reason": "database unavailable", "err": err})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, errors.New("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildLLM(cfg config.Config) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" && cfg.IsDevLike() {
			telemetry.Warn("bootstrap.llm_placeholder", map[string]any{"provider": "openai", "reason": "OPENAI_API_KEY empty"})
			return llm.PlaceholderClient{}, nil
		}
		return openai.NewClient(openai.Options{
			APIKey:        cfg.OpenAIAPIKey,
			Model:         cfg.LLMModel,
			MetadataModel: cfg.LLMMetadataModel,
			BaseURL:       cfg.OpenAIBaseURL,
			Timeout:       cfg.LLMTimeout,
		})
	case "gemini":
		if cfg.GeminiAPIKey == "" && cfg.IsDevLike() {
			telemetry.Warn("bootstrap.llm_placeholder", map[string]any{"provider": "gemini", "reason": "GEMINI_API_KEY empty"})
			return llm.PlaceholderClient{}, nil
		}
		return gemini.NewClient(gemini.Options{
			APIKey:        cfg.GeminiAPIKey,
			Model:         cfg.LLMModel,
			MetadataModel: cfg.LLMMetadataModel,
			BaseURL:       cfg.GeminiBaseURL,
			Timeout:       cfg.LLMTimeout,
		})
	default:
		return llm.PlaceholderClient{}, nil
	}
}

func buildServices(app *App) error {
	var repo letters.Repo
	if app.DB != nil {
		repo = &letters.PGRepo{DB: app.DB}
	} else {
		repo = letters.NewMemoryRepo()
	}

	svc := &letters.Service{Repo: repo, Store: app.Store}
	orch := &derivation.Orchestrator{Store: repo, LLM: app.LLM}

	app.LettersRepo = repo
	app.LettersService = svc
	app.Orchestrator = orch
	app.LettersHandler = letters.NewHandler(svc)
	app.DerivationHandler = derivation.NewHandler(orch)
	app.RendersHandler = renders.NewHandler(svc, app.Compiler)

	if app.LettersHandler == nil || app.DerivationHandler == nil || app.RendersHandler == nil {
		return errors.New("failed to initialize handlers")
	}
	return nil
}
