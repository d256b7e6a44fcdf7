package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/expatdesk/docvault/internal/config"
	"github.com/expatdesk/docvault/internal/core/ports"
	"github.com/expatdesk/docvault/internal/core/usecase"
	"github.com/expatdesk/docvault/internal/infrastructure/extractor/docscan"
	"github.com/expatdesk/docvault/internal/infrastructure/notify/smtp"
	"github.com/expatdesk/docvault/internal/infrastructure/queue/nats"
	"github.com/expatdesk/docvault/internal/infrastructure/reminder"
	"github.com/expatdesk/docvault/internal/infrastructure/repository/postgres"
	"github.com/expatdesk/docvault/internal/infrastructure/resilience"
	"github.com/expatdesk/docvault/internal/infrastructure/storage/localfs"
	"github.com/expatdesk/docvault/internal/infrastructure/storage/miniostore"
	"github.com/expatdesk/docvault/internal/infrastructure/thumbnail"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue     ports.MessageQueue
	Repo      ports.DocumentRepository
	IngestUC  ports.DocumentIngestor
	ProcessUC *usecase.ProcessUseCase
	QueryUC   ports.DocumentQueryService

	ReminderDispatcher *reminder.Dispatcher

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	versionRepo := postgres.NewVersionRepository(db)
	reminderRepo := postgres.NewReminderRepository(db)

	storage, err := newObjectStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	docscanClient := docscan.NewClient(cfg.DocscanURL, time.Duration(cfg.DocscanTimeoutSeconds)*time.Second, executor)
	extractor := docscan.NewExtractor(storage, docscanClient, logger)
	thumbnailer := thumbnail.NewGenerator(storage, logger)
	deriver := reminder.NewDeriver(reminderRepo, cfg.ReminderLeadDays, logger)
	notifier := smtp.NewSender(smtp.Config{
		Host:            cfg.SMTPHost,
		Port:            cfg.SMTPPort,
		Username:        cfg.SMTPUsername,
		Password:        cfg.SMTPPassword,
		From:            cfg.SMTPFrom,
		RecipientDomain: cfg.SMTPOwnerDomain,
	})
	dispatcher := reminder.NewDispatcher(reminderRepo, notifier, logger)

	dups := usecase.NewDuplicateDetector(repo)
	chain := usecase.NewVersionChainManager(versionRepo)

	ingestUC := usecase.NewUploadUseCase(repo, storage, queue, dups, chain, int64(cfg.MaxUploadMB)<<20, logger)
	processUC := usecase.NewProcessUseCase(repo, extractor, thumbnailer, chain, dups, deriver, cfg.SimilarityThreshold, logger)
	queryUC := usecase.NewQueryUseCase(repo, versionRepo, storage, dups, logger)

	return &App{
		Config: cfg,
		Logger: logger,
		Queue:  queue,
		Repo:   repo,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		QueryUC:   queryUC,

		ReminderDispatcher: dispatcher,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func newObjectStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case "minio":
		store, err := miniostore.New(miniostore.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			URLExpiry: time.Duration(cfg.MinioURLExpiryH) * time.Hour,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "localfs", "":
		store, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
