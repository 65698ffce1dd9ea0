package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/DRSN-tech/search-backend/internal/cfg"
	v1Http "github.com/DRSN-tech/search-backend/internal/delivery/v1/http"
	"github.com/DRSN-tech/search-backend/internal/infrastructure/encoder"
	"github.com/DRSN-tech/search-backend/internal/infrastructure/kafka"
	minioInfra "github.com/DRSN-tech/search-backend/internal/infrastructure/minio"
	"github.com/DRSN-tech/search-backend/internal/repository/flatindex"
	s3Repo "github.com/DRSN-tech/search-backend/internal/repository/minio"
	"github.com/DRSN-tech/search-backend/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/search-backend/internal/repository/pgdb/converter"
	qdrantRepo "github.com/DRSN-tech/search-backend/internal/repository/qdrant"
	"github.com/DRSN-tech/search-backend/internal/repository/redis"
	redisConv "github.com/DRSN-tech/search-backend/internal/repository/redis/converter"
	"github.com/DRSN-tech/search-backend/internal/usecase"
	"github.com/DRSN-tech/search-backend/pkg/clients"
	"github.com/DRSN-tech/search-backend/pkg/closer"
	"github.com/DRSN-tech/search-backend/pkg/e"
	"github.com/DRSN-tech/search-backend/pkg/logger"
	"github.com/DRSN-tech/search-backend/pkg/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
)

func Run() {
	logger := logger.NewSlogLogger()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Errorf(err, "failed to load config")
		os.Exit(1)
	}

	// Ресурсы регистрируются в closer по мере создания и закрываются
	// в обратном порядке
	c := closer.NewCloser(0)

	db, err := initPGDB(logger, cfg)
	if err != nil {
		logger.Errorf(err, "failed to initialize database")
		os.Exit(1)
	}
	c.Add(func(ctx context.Context) error {
		db.Close()
		return nil
	})

	catConv := pgdbConv.NewCategoryConverterImpl()
	prConv := pgdbConv.NewProductConverterImpl()
	infoConv := redisConv.NewProductInfoConverterImpl()
	embVersionConv := pgdbConv.NewProductEmbeddingVersionConverterImpl()
	outboxConv := pgdbConv.NewOutboxEventConverterImpl()

	productRepo := pgdb.NewProductRepo(db.Pool, prConv)
	categoryRepo := pgdb.NewCategoryRepo(db.Pool, catConv)
	prEmbeddingVersionRepo := pgdb.NewProductEmbeddingVersionRepo(db.Pool, embVersionConv)
	outboxRepo := pgdb.NewOutboxEventRepo(db.Pool, outboxConv)

	minioClient, err := clients.NewMinIOClient(cfg)
	if err != nil {
		logger.Errorf(err, "failed to initialize minio client")
		os.Exit(1)
	}

	minioCtx, minioCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := clients.EnsureBucket(minioCtx, minioClient, cfg.Minio.BucketName); err != nil {
		minioCancel()
		logger.Errorf(err, "failed to initialize MinIO bucket")
		os.Exit(1)
	}
	minioCancel()

	imageRepo := s3Repo.NewImageRepo(minioClient, cfg.Minio)

	// Бэкенд векторного индекса: Qdrant в проде, in-memory для локальной
	// разработки и тестов
	var embRepo usecase.VectorIndexRepository
	if cfg.Index.Backend == "memory" {
		memIndex := flatindex.NewEmbeddingRepo()
		if err := memIndex.LoadSnapshot(cfg.Index.SnapshotPath); err != nil {
			logger.Warnf("Failed to load index snapshot: %v", err)
		}
		c.Add(func(ctx context.Context) error {
			return memIndex.SaveSnapshot(cfg.Index.SnapshotPath)
		})
		embRepo = memIndex
	} else {
		qdrantClient, err := clients.NewQdrantClient(cfg.Qdrant)
		if err != nil {
			logger.Errorf(err, "failed to initialize qdrant")
			os.Exit(1)
		}
		c.Add(func(ctx context.Context) error {
			return qdrantClient.Client.Close()
		})
		embRepo = qdrantRepo.NewEmbeddingRepo(qdrantClient.Client, cfg.Qdrant)
	}

	redisClient := clients.NewRedisClient(cfg.Redis)
	redisCtx, redisCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(redisCtx); err != nil {
		redisCancel()
		logger.Errorf(err, "failed to connect to redis")
		os.Exit(1)
	}
	redisCancel()
	c.Add(func(ctx context.Context) error {
		return redisClient.Client.Close()
	})
	cacheRepo := redis.NewCacheRepo(redisClient, infoConv, cfg.Redis, logger)

	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	encoderSvc := encoder.NewEncoderService(cfg.Encoder, logger)
	state := usecase.NewIndexState()

	// Сервис стартует и без энкодера: поиск отвечает 503, пока модель не
	// поднимется. Готовность проверяется в фоне до первого успеха.
	go watchEncoderReadiness(appCtx, encoderSvc, state, logger)

	fusion := usecase.NewFusionEngine()

	imagesInfra := minioInfra.NewMinioInfrastructure(imageRepo, cfg.Minio, logger, appCtx)
	c.Add(imagesInfra.WaitForCleanup)

	indexUC := usecase.NewIndexUC(
		productRepo,
		imageRepo,
		encoderSvc,
		fusion,
		embRepo,
		state,
		cacheRepo,
		cfg.Search,
		cfg.Index,
		cfg.Qdrant,
		logger,
	)

	restoreCtx, restoreCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := indexUC.RestoreActiveCollection(restoreCtx); err != nil {
		logger.Warnf("No active index collection restored: %v", err)
	}
	restoreCancel()

	producer, err := kafka.NewProducer(logger, cfg.Kafka)
	if err != nil {
		logger.Errorf(err, "failed to initialize kafka producer")
		os.Exit(1)
	}
	if err := producer.EnsureTopic(10 * time.Second); err != nil {
		logger.Warnf("Failed to ensure kafka topic: %v", err)
	}
	c.Add(func(ctx context.Context) error {
		return producer.Close()
	})

	outboxWorker := kafka.NewOutboxWorker(outboxRepo, logger, producer, db.Dsn)
	outboxWorker.Start(appCtx)
	c.Add(func(ctx context.Context) error {
		outboxWorker.Stop()
		return nil
	})

	productUC := usecase.NewProductUC(
		productRepo,
		categoryRepo,
		prEmbeddingVersionRepo,
		outboxRepo,
		db.Pool,
		encoderSvc,
		imagesInfra,
		embRepo,
		fusion,
		state,
		cacheRepo,
		cfg.Search,
		logger,
	)
	searchUC := usecase.NewSearchUC(encoderSvc, embRepo, fusion, state, cacheRepo, cfg.Search, logger)
	cacheUC := usecase.NewCacheUC(cacheRepo, logger)

	r := chi.NewRouter()
	router := v1Http.NewRouter(r, logger)
	router.Init(searchUC, productUC, indexUC, cacheUC)

	httpSrv := v1Http.NewServer(r, cfg.Http)
	c.Add(httpSrv.Stop)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP server started on port %s", cfg.Http.Port)
		if err := httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf(err, "HTTP server failed: %v", err)
			errCh <- err
		}
	}()

	// === Ожидание сигнала или ошибки ===
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var appErr error
	select {
	case appErr = <-errCh:
		logger.Errorf(appErr, "HTTP server fatal error")
	case <-shutdown:
		logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	// === Graceful shutdown ===
	appCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := c.Close(shutdownCtx); err != nil {
		logger.Warnf("Shutdown finished with errors: %v", err)
	}

	logger.Infof("Application shutdown complete")
	if appErr != nil {
		os.Exit(1)
	}
}

// watchEncoderReadiness опрашивает health-эндпоинт энкодера до первого успеха.
func watchEncoderReadiness(ctx context.Context, svc *encoder.EncoderService, state *usecase.IndexState, logger logger.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := svc.Health(checkCtx)
		cancel()

		if err == nil {
			state.SetEncoderReady(true)
			logger.Infof("Encoder is ready")
			return
		}
		logger.Warnf("Encoder not ready yet: %v", err)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func initPGDB(logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(cfg.Db)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(logger); err != nil {
		logger.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.Ping(); err != nil {
		logger.Errorf(err, "failed to ping database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}
