package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"yakunote/internal/ai"
	appsvc "yakunote/internal/app"
	"yakunote/internal/cache"
	"yakunote/internal/config"
	"yakunote/internal/extract"
	"yakunote/internal/pkg/logger"
	mysqlClient "yakunote/internal/platform/mysql"
	postgresClient "yakunote/internal/platform/postgres"
	rabbitmqClient "yakunote/internal/platform/rabbitmq"
	redisClient "yakunote/internal/platform/redis"
	"yakunote/internal/platform/supabase"
	"yakunote/internal/repository"
	"yakunote/internal/worker"
)

// App holds every long-lived client, built once at startup and handed to the router.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	DB     *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	Store     repository.SummaryStore
	Extractor *extract.Extractor
	Summaries *appsvc.SummaryService
	Library   *appsvc.LibraryService
	Auth      *appsvc.AuthService

	EnglishWorker *worker.EnglishSummaryWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	log := logger.Init(cfg.Log.Level, "app", cfg.App.Name, "env", cfg.App.Env)
	return NewWithConfig(ctx, cfg, log)
}

func NewWithConfig(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Logger: log, StartedAt: time.Now()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Store, err = a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.Redis.Enabled {
		a.Redis, err = redisClient.New(ctx, redisClient.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
	}

	if cfg.RabbitMQ.Enabled {
		a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			return nil, err
		}
	}

	a.Extractor = NewExtractor(cfg)
	a.Summaries = NewSummaryService(cfg, log)

	var libraryOpts []appsvc.LibraryOption
	if a.Redis != nil {
		ttl := time.Duration(cfg.Redis.SummaryTTLSeconds) * time.Second
		libraryOpts = append(libraryOpts, appsvc.WithEnglishCache(cache.NewSummaryCache(a.Redis, ttl)))
	}
	if a.MQConn != nil {
		publisher := rabbitmqClient.NewSummaryPublisher(a.MQConn, cfg.RabbitMQ.SummarySavedQueue)
		libraryOpts = append(libraryOpts, appsvc.WithEventPublisher(publisher))
	}
	a.Library = appsvc.NewLibraryService(a.Store, a.Summaries, log.With("component", "library"), libraryOpts...)

	var principals appsvc.PrincipalCache
	if a.Redis != nil {
		principals = cache.NewPrincipalCache(a.Redis, time.Duration(cfg.Redis.SessionTTLSeconds)*time.Second)
	}
	authClient := supabase.NewAuthClient(supabase.Config{
		URL:    cfg.Supabase.URL,
		APIKey: cfg.Supabase.AnonKey,
	})
	a.Auth = appsvc.NewAuthService(authClient, principals, appsvc.AuthConfig{
		JWTSecret: cfg.Supabase.JWTSecret,
		PublicURL: cfg.PublicBaseURL(),
	}, log.With("component", "auth"))

	// Prefetching needs the cache to land in; without redis it would only burn tokens.
	if a.MQConn != nil && a.Redis != nil {
		a.EnglishWorker = worker.NewEnglishSummaryWorker(a.MQConn, a.Library, cfg.RabbitMQ.SummarySavedQueue, log)
		if err = a.EnglishWorker.Start(ctx); err != nil {
			return nil, fmt.Errorf("start english summary worker failed: %w", err)
		}
	}

	log.Info("application ready",
		"storage", cfg.Storage.Driver,
		"redis", a.Redis != nil,
		"rabbitmq", a.MQConn != nil,
		"llm_configured", cfg.LLM.APIKey != "",
		"llm_key", logger.MaskSecret(cfg.LLM.APIKey),
		"llm_key_source", cfg.LLM.APIKeySource,
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context) (repository.SummaryStore, error) {
	cfg := a.Config
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgREST:
		client := supabase.NewRestClient(supabase.Config{
			URL:    cfg.Supabase.URL,
			APIKey: firstNonEmpty(cfg.Supabase.ServiceRoleKey, cfg.Supabase.AnonKey),
		})
		if !client.Configured() {
			a.Logger.Warn("supabase is not configured; storage requests will fail")
		}
		return repository.NewPostgRESTSummaryRepository(client, cfg.Storage.Table), nil
	case config.StorageDriverPostgres, config.StorageDriverMySQL:
		var err error
		if cfg.Storage.Driver == config.StorageDriverPostgres {
			a.DB, err = postgresClient.New(ctx, cfg.Storage.DatabaseURL, a.Logger)
		} else {
			a.DB, err = mysqlClient.New(ctx, cfg.MySQLDSN(), a.Logger)
		}
		if err != nil {
			return nil, err
		}
		repo := repository.NewSummaryRepository(a.DB)
		if err := repo.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("auto migrate tables failed: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// NewExtractor builds the page extractor from configuration; the CLI uses it without the rest of App.
func NewExtractor(cfg *config.Config) *extract.Extractor {
	return extract.NewExtractor(
		time.Duration(cfg.Extract.TimeoutSeconds)*time.Second,
		extract.WithMinContentChars(cfg.Extract.MinContentChars),
	)
}

func NewSummaryService(cfg *config.Config, log *slog.Logger) *appsvc.SummaryService {
	llm := ai.NewOpenAICompatibleClient(ai.Config{
		BaseURL:    cfg.LLM.BaseURL,
		APIKey:     cfg.LLM.APIKey,
		Timeout:    time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.LLM.MaxRetries,
	})
	return appsvc.NewSummaryService(llm, appsvc.SummaryConfig{
		PrimaryModel:          cfg.LLM.PrimaryModel,
		FallbackModel:         cfg.LLM.FallbackModel,
		SummaryMaxChars:       cfg.LLM.SummaryMaxChars,
		StoredSummaryMaxChars: cfg.LLM.StoredSummaryMaxChars,
	}, log.With("component", "summary"))
}

func (a *App) Close() error {
	var errs []error
	if a.EnglishWorker != nil {
		a.EnglishWorker.Close()
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close rabbitmq failed: %w", err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis failed: %w", err))
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close database failed: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
