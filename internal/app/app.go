// Package app wires configuration, storage, repositories and services into the
// object graph shared by the HTTP server and the command line tool.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/yourorg/course-template-service/internal/backup"
	"github.com/yourorg/course-template-service/internal/config"
	"github.com/yourorg/course-template-service/internal/events"
	"github.com/yourorg/course-template-service/internal/repository"
	"github.com/yourorg/course-template-service/internal/service"
	"github.com/yourorg/course-template-service/internal/storage"
	"github.com/yourorg/course-template-service/internal/validator"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// App holds the services of one process
type App struct {
	Config *config.Config
	DB     *sqlx.DB
	Logger *zap.Logger

	Templates *repository.TemplateRepository
	Tags      *repository.TagRepository
	Courses   *repository.CourseRepository

	TemplateService *service.TemplateService
	ArchiveService  *service.ArchiveService
	CourseService   *service.CourseService

	closers []func() error
}

// Options override infrastructure picked from the configuration
type Options struct {
	Files     storage.Storage
	Publisher events.Publisher
}

// New builds the service graph on an open database
func New(cfg *config.Config, db *sqlx.DB, logger *zap.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, DB: db, Logger: logger}

	files := opts.Files
	if files == nil {
		var err error
		if files, err = a.newStorage(); err != nil {
			return nil, err
		}
	}

	publisher := opts.Publisher
	if publisher == nil {
		publisher = a.newPublisher()
	}

	a.Templates = repository.NewTemplateRepository(db, logger)
	a.Tags = repository.NewTagRepository(db, logger)
	a.Courses = repository.NewCourseRepository(db, logger)

	engine := backup.NewLocalEngine(a.Courses, cfg.Backup.Destination, logger)
	v := validator.New()

	a.ArchiveService = service.NewArchiveService(a.Templates, engine, files, publisher, cfg.Backup, logger)
	materializer := service.NewMaterializer(files, engine, a.Courses, cfg.Backup.TempDir, cfg.Backup.ContextID, logger)
	finisher := service.NewFinisher(a.Courses, cfg.Features, logger)
	a.TemplateService = service.NewTemplateService(a.Templates, a.Tags, a.Courses, files, v, publisher, cfg.Backup.ContextID, logger)
	a.CourseService = service.NewCourseService(a.Templates, a.Courses, a.ArchiveService, materializer, finisher, v, publisher, logger)

	return a, nil
}

// OnClose registers fn to run when the app is closed
func (a *App) OnClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases the clients opened by New and anything registered with OnClose,
// in reverse order
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// newStorage opens the configured file store and, when enabled, caches its
// metadata lookups in redis
func (a *App) newStorage() (storage.Storage, error) {
	files, err := storage.NewStorage(a.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	rc := a.Config.Redis
	if !rc.Enabled {
		return files, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		a.Logger.Warn("Redis unavailable, file metadata will not be cached", zap.Error(err))
		client.Close()
		return files, nil
	}

	a.closers = append(a.closers, client.Close)
	return storage.NewCachedStorage(files, client, rc.TTL, a.Logger), nil
}

func (a *App) newPublisher() events.Publisher {
	kc := a.Config.Kafka
	if !kc.Enabled {
		return events.NopPublisher{}
	}

	producer := events.NewProducer(kc.BrokerList(), kc.ClientID, a.Logger)
	a.closers = append(a.closers, producer.Close)
	return events.NewKafkaPublisher(producer, kc.Topic, a.Logger)
}

// ConnectDB opens the postgres database, retrying with exponential backoff until
// the connect timeout elapses
func ConnectDB(dbConfig config.DatabaseConfig, logger *zap.Logger) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.DBName,
		dbConfig.SSLMode,
	)

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = dbConfig.ConnectTimeout

	var db *sqlx.DB
	err := backoff.RetryNotify(func() error {
		var err error
		db, err = sqlx.Connect("pgx", dsn)
		return err
	}, policy, func(err error, wait time.Duration) {
		logger.Warn("Database not ready, retrying", zap.Error(err), zap.Duration("wait", wait))
	})
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(dbConfig.MaxOpenConns)
	db.SetMaxIdleConns(dbConfig.MaxIdleConns)
	db.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	return db, nil
}

// NewLogger builds the process logger from the logging configuration
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	encoding := cfg.Format
	if encoding != "console" {
		encoding = "json"
	}

	zc := zap.Config{
		Level:            level,
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zc.Build()
}
