package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/DRSN-tech/search-backend/internal/cfg"
	"github.com/DRSN-tech/search-backend/internal/infrastructure/encoder"
	"github.com/DRSN-tech/search-backend/internal/repository/flatindex"
	s3Repo "github.com/DRSN-tech/search-backend/internal/repository/minio"
	"github.com/DRSN-tech/search-backend/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/search-backend/internal/repository/pgdb/converter"
	qdrantRepo "github.com/DRSN-tech/search-backend/internal/repository/qdrant"
	"github.com/DRSN-tech/search-backend/internal/repository/redis"
	redisConv "github.com/DRSN-tech/search-backend/internal/repository/redis/converter"
	"github.com/DRSN-tech/search-backend/internal/usecase"
	"github.com/DRSN-tech/search-backend/pkg/clients"
	"github.com/DRSN-tech/search-backend/pkg/logger"
	"github.com/DRSN-tech/search-backend/pkg/postgres"
	"github.com/joho/godotenv"
)

// Ожидание готовности энкодера перед построением.
const (
	encoderWaitTimeout  = 2 * time.Minute
	encoderPollInterval = 2 * time.Second
)

// Офлайн-построение поискового индекса. Читает каталог из Postgres,
// векторизует товары через энкодер и пишет новое поколение коллекции.
// Работающий сервис поиска при этом не останавливается.
func main() {
	_ = godotenv.Load()

	log := logger.NewSlogLogger()

	cfg, err := config.Load(log)
	if err != nil {
		log.Errorf(err, "failed to load config")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := postgres.Connect(cfg.Db)
	if err != nil {
		log.Errorf(err, "failed to connect to database")
		os.Exit(1)
	}
	defer db.Close()

	productRepo := pgdb.NewProductRepo(db.Pool, pgdbConv.NewProductConverterImpl())

	minioClient, err := clients.NewMinIOClient(cfg)
	if err != nil {
		log.Errorf(err, "failed to initialize minio client")
		os.Exit(1)
	}
	imageRepo := s3Repo.NewImageRepo(minioClient, cfg.Minio)

	var (
		embRepo      usecase.VectorIndexRepository
		memIndex     *flatindex.EmbeddingRepo
		qdrantClient *clients.QdrantClient
	)
	if cfg.Index.Backend == "memory" {
		memIndex = flatindex.NewEmbeddingRepo()
		if err := memIndex.LoadSnapshot(cfg.Index.SnapshotPath); err != nil {
			log.Warnf("Failed to load index snapshot: %v", err)
		}
		embRepo = memIndex
	} else {
		qdrantClient, err = clients.NewQdrantClient(cfg.Qdrant)
		if err != nil {
			log.Errorf(err, "failed to initialize qdrant")
			os.Exit(1)
		}
		defer qdrantClient.Client.Close()
		embRepo = qdrantRepo.NewEmbeddingRepo(qdrantClient.Client, cfg.Qdrant)
	}

	redisClient := clients.NewRedisClient(cfg.Redis)
	cacheRepo := redis.NewCacheRepo(redisClient, redisConv.NewProductInfoConverterImpl(), cfg.Redis, log)

	encoderSvc := encoder.NewEncoderService(cfg.Encoder, log)
	if err := waitForEncoder(ctx, encoderSvc, log); err != nil {
		log.Errorf(err, "encoder did not become ready")
		os.Exit(1)
	}

	state := usecase.NewIndexState()
	state.SetEncoderReady(true)

	indexUC := usecase.NewIndexUC(
		productRepo,
		imageRepo,
		encoderSvc,
		usecase.NewFusionEngine(),
		embRepo,
		state,
		cacheRepo,
		cfg.Search,
		cfg.Index,
		cfg.Qdrant,
		log,
	)

	res, err := indexUC.Rebuild(ctx)
	if err != nil {
		log.Errorf(err, "index rebuild failed")
		os.Exit(1)
	}

	if memIndex != nil {
		if err := memIndex.SaveSnapshot(cfg.Index.SnapshotPath); err != nil {
			log.Errorf(err, "failed to save index snapshot")
			os.Exit(1)
		}
	}

	log.Infof("Index built: collection %s, %d points in %dms", res.Collection, res.Points, res.TookMs)
}

// waitForEncoder блокируется, пока энкодер не ответит на health-проверку.
func waitForEncoder(ctx context.Context, svc *encoder.EncoderService, log logger.Logger) error {
	deadline := time.Now().Add(encoderWaitTimeout)

	for {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := svc.Health(checkCtx)
		cancel()

		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return err
		}
		log.Warnf("Encoder not ready yet: %v", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(encoderPollInterval):
		}
	}
}
