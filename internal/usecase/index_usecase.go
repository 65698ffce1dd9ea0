package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/search-backend/internal/cfg"
	"github.com/DRSN-tech/search-backend/internal/domain"
	"github.com/DRSN-tech/search-backend/pkg/e"
	"github.com/DRSN-tech/search-backend/pkg/logger"
)

// rebuildBatchSize — сколько строк каталога обрабатывается за одну итерацию построения.
const rebuildBatchSize = 64

// IndexUseCase управляет жизненным циклом векторного индекса: офлайн
// построение в новую коллекцию, атомарное переключение, статистика и готовность.
type IndexUseCase struct {
	productRepo ProductRepository
	imageRepo   ImageRepository
	encoder     EncoderInfra
	fusion      *FusionEngine
	index       VectorIndexRepository
	state       *IndexState
	cacheRepo   CacheRepository
	searchCfg   *cfg.SearchCfg
	indexCfg    *cfg.IndexCfg
	qdrantCfg   *cfg.QdrantCfg
	logger      logger.Logger
}

func NewIndexUC(
	productRepo ProductRepository,
	imageRepo ImageRepository,
	encoder EncoderInfra,
	fusion *FusionEngine,
	index VectorIndexRepository,
	state *IndexState,
	cacheRepo CacheRepository,
	searchCfg *cfg.SearchCfg,
	indexCfg *cfg.IndexCfg,
	qdrantCfg *cfg.QdrantCfg,
	logger logger.Logger,
) *IndexUseCase {
	return &IndexUseCase{
		productRepo: productRepo,
		imageRepo:   imageRepo,
		encoder:     encoder,
		fusion:      fusion,
		index:       index,
		state:       state,
		cacheRepo:   cacheRepo,
		searchCfg:   searchCfg,
		indexCfg:    indexCfg,
		qdrantCfg:   qdrantCfg,
		logger:      logger,
	}
}

// Rebuild перестраивает индекс с нуля: каталог читается батчами, тексты и
// изображения векторизуются заново, слитые векторы пишутся в новую коллекцию.
// Активная коллекция переключается только после полного построения, поэтому
// поиск во время перестроения продолжает работать по старой.
func (u *IndexUseCase) Rebuild(ctx context.Context) (*RebuildRes, error) {
	const op = "IndexUseCase.Rebuild"

	if !u.state.EncoderReady() {
		return nil, e.Wrap(op, e.ErrEncoderNotReady)
	}

	started := time.Now()

	base := u.qdrantCfg.QdrantCollectionName
	collection := fmt.Sprintf("%s_v%d", base, started.Unix())

	var err error
	if err = u.index.EnsureCollection(ctx, collection); err != nil {
		return nil, e.Wrap(op, err)
	}
	// Недостроенная коллекция не должна переживать неудачное построение
	defer func() {
		if err != nil {
			if dropErr := u.index.DropCollection(context.Background(), collection); dropErr != nil {
				u.logger.Warnf("Failed to drop incomplete collection %s: %v", collection, dropErr)
			}
		}
	}()

	var (
		afterID int64
		total   int
	)
	for {
		var batch []CatalogProduct
		batch, err = u.productRepo.ListCatalog(ctx, afterID, rebuildBatchSize)
		if err != nil {
			return nil, e.Wrap(op, err)
		}
		if len(batch) == 0 {
			break
		}

		var embeddings []domain.Embedding
		embeddings, err = u.encodeBatch(ctx, batch)
		if err != nil {
			return nil, e.Wrap(op, err)
		}

		if err = u.index.Upsert(ctx, collection, embeddings); err != nil {
			return nil, e.Wrap(op, err)
		}

		total += len(embeddings)
		afterID = batch[len(batch)-1].ID
		u.logger.Infof("Indexed %d products into %s", total, collection)
	}

	var count uint64
	count, err = u.index.Count(ctx, collection)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Атомарное переключение: новые запросы читают новую коллекцию,
	// запросы в полете дочитывают старую
	u.state.Activate(collection, count)
	u.dropStale(ctx, collection)

	if _, invErr := u.cacheRepo.InvalidatePrefix(ctx, CachePrefixSearch); invErr != nil {
		u.logger.Warnf("Failed to invalidate search cache: %v", e.Wrap(op, invErr))
	}

	u.logger.Infof("Rebuild finished: collection %s, %d points, took %s", collection, count, time.Since(started))

	return &RebuildRes{
		Collection: collection,
		Points:     count,
		TookMs:     time.Since(started).Milliseconds(),
	}, nil
}

// RestoreActiveCollection находит самое свежее поколение коллекции после
// рестарта сервиса. Отсутствие коллекции не ошибка: индекс еще не построен.
func (u *IndexUseCase) RestoreActiveCollection(ctx context.Context) error {
	const op = "IndexUseCase.RestoreActiveCollection"

	names, err := u.index.ListCollections(ctx)
	if err != nil {
		return e.Wrap(op, err)
	}

	base := u.qdrantCfg.QdrantCollectionName
	best := ""
	bestVersion := int64(-1)
	for _, name := range names {
		version, ok := collectionVersion(base, name)
		if !ok {
			continue
		}
		if version > bestVersion {
			bestVersion = version
			best = name
		}
	}

	if best == "" {
		u.logger.Infof("No search collection found, search is unavailable until first rebuild")
		return nil
	}

	count, err := u.index.Count(ctx, best)
	if err != nil {
		return e.Wrap(op, err)
	}

	u.state.Activate(best, count)
	u.logger.Infof("Restored active collection %s with %d points", best, count)

	return nil
}

// Stats возвращает состояние индекса и энкодера.
func (u *IndexUseCase) Stats(ctx context.Context) (*IndexStatsRes, error) {
	const op = "IndexUseCase.Stats"

	res := &IndexStatsRes{
		Backend:      u.indexCfg.Backend,
		VectorSize:   u.qdrantCfg.VectorSize,
		EncoderReady: u.state.EncoderReady(),
		BuiltAt:      u.state.BuiltAt(),
	}

	collection, ok := u.state.ActiveCollection()
	if !ok {
		return res, nil
	}
	res.IndexReady = true
	res.Collection = collection

	count, err := u.index.Count(ctx, collection)
	if err != nil {
		u.logger.Warnf("Failed to count points, using cached value: %v", e.Wrap(op, err))
		res.Points = u.state.Points()
		return res, nil
	}
	res.Points = count

	return res, nil
}

// Ready сообщает, готов ли сервис обслуживать поисковые запросы.
func (u *IndexUseCase) Ready(ctx context.Context) error {
	if !u.state.EncoderReady() {
		return e.ErrEncoderNotReady
	}
	if _, ok := u.state.ActiveCollection(); !ok {
		return e.ErrIndexNotReady
	}

	return nil
}

// encodeBatch векторизует батч каталога и собирает точки индекса.
func (u *IndexUseCase) encodeBatch(ctx context.Context, batch []CatalogProduct) ([]domain.Embedding, error) {
	texts := make([]string, len(batch))
	for i, product := range batch {
		texts[i] = product.SearchText()
	}

	textRes, err := u.encoder.EncodeTexts(ctx, NewEncodeTextsReq(texts))
	if err != nil {
		return nil, err
	}
	if len(textRes) != len(batch) {
		return nil, e.ErrVectorCountMismatch
	}

	// Байты изображений читаются из MinIO; товар с недоступным изображением
	// индексируется только по тексту
	images := make([]ProductImage, 0, len(batch))
	imageIdx := make([]int, 0, len(batch))
	for i, product := range batch {
		if product.ImageKey == "" {
			continue
		}

		data, getErr := u.imageRepo.Get(ctx, product.ImageKey)
		if getErr != nil {
			u.logger.Warnf("Failed to fetch image %s for product %d: %v", product.ImageKey, product.ID, getErr)
			continue
		}

		images = append(images, *NewProductImage(data, "", int64(len(data)), product.ImageKey))
		imageIdx = append(imageIdx, i)
	}

	imageVecs := make([][]float32, len(batch))
	if len(images) > 0 {
		imageRes, encErr := u.encoder.EncodeImages(ctx, NewEncodeImagesReq(images))
		if encErr != nil {
			return nil, encErr
		}
		if len(imageRes) != len(images) {
			return nil, e.ErrVectorCountMismatch
		}
		for j, res := range imageRes {
			imageVecs[imageIdx[j]] = res.Vector
		}
	}

	embeddings := make([]domain.Embedding, 0, len(batch))
	for i, product := range batch {
		fused, fuseErr := u.fusion.Fuse(textRes[i].Vector, imageVecs[i], u.searchCfg.BuildWeight, domain.FusionWeightedAvg)
		if fuseErr != nil {
			return nil, fuseErr
		}

		payload := domain.NewPayload(&domain.Product{
			ID:       product.ID,
			Title:    product.Title,
			Price:    product.Price,
			Brand:    product.Brand,
			Rating:   product.Rating,
			ImageURL: product.ImageKey,
		}, product.Category, textRes[i].Vector, imageVecs[i], textRes[i].ModelVersion, product.EmbeddingVersion)

		embeddings = append(embeddings, *domain.NewEmbedding(PointID(product.ID), fused.Vector, payload))
	}

	return embeddings, nil
}

// dropStale удаляет предыдущие поколения коллекций после переключения.
func (u *IndexUseCase) dropStale(ctx context.Context, active string) {
	names, err := u.index.ListCollections(ctx)
	if err != nil {
		u.logger.Warnf("Failed to list collections: %v", err)
		return
	}

	base := u.qdrantCfg.QdrantCollectionName
	for _, name := range names {
		if name == active {
			continue
		}
		if _, ok := collectionVersion(base, name); !ok {
			continue
		}
		if err := u.index.DropCollection(ctx, name); err != nil {
			u.logger.Warnf("Failed to drop stale collection %s: %v", name, err)
		}
	}
}

// collectionVersion выделяет поколение коллекции: базовое имя — поколение 0,
// имена вида base_v<unix> — значение суффикса.
func collectionVersion(base, name string) (int64, bool) {
	if name == base {
		return 0, true
	}

	prefix := base + "_v"
	if !strings.HasPrefix(name, prefix) {
		return 0, false
	}

	version, err := strconv.ParseInt(strings.TrimPrefix(name, prefix), 10, 64)
	if err != nil {
		return 0, false
	}

	return version, true
}
