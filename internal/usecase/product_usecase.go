package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/DRSN-tech/search-backend/internal/cfg"
	"github.com/DRSN-tech/search-backend/internal/domain"
	"github.com/DRSN-tech/search-backend/pkg/e"
	"github.com/DRSN-tech/search-backend/pkg/logger"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProductUseCase реализует бизнес-логику каталога: регистрацию товара с
// изображениями, живое обновление векторного индекса и публикацию
// outbox-события об изменении.
type ProductUseCase struct {
	productRepo  ProductRepository
	categoryRepo CategoryRepository
	versionRepo  EmbeddingVersionRepository
	outboxRepo   OutboxRepository
	dbPool       transaction.Transactional
	encoder      EncoderInfra
	imagesInfra  ImagesInfra
	index        VectorIndexRepository
	fusion       *FusionEngine
	state        *IndexState
	cacheRepo    CacheRepository
	cfg          *cfg.SearchCfg
	logger       logger.Logger
}

func NewProductUC(
	productRepo ProductRepository,
	categoryRepo CategoryRepository,
	versionRepo EmbeddingVersionRepository,
	outboxRepo OutboxRepository,
	dbPool transaction.Transactional,
	encoder EncoderInfra,
	imagesInfra ImagesInfra,
	index VectorIndexRepository,
	fusion *FusionEngine,
	state *IndexState,
	cacheRepo CacheRepository,
	cfg *cfg.SearchCfg,
	logger logger.Logger,
) *ProductUseCase {
	return &ProductUseCase{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		versionRepo:  versionRepo,
		outboxRepo:   outboxRepo,
		dbPool:       dbPool,
		encoder:      encoder,
		imagesInfra:  imagesInfra,
		index:        index,
		fusion:       fusion,
		state:        state,
		cacheRepo:    cacheRepo,
		cfg:          cfg,
		logger:       logger,
	}
}

// RegisterNewProduct обрабатывает добавление нового продукта: категория и
// строка каталога пишутся в одной транзакции с outbox-событием, изображения
// уходят в MinIO, слитый вектор — в активную коллекцию индекса.
func (p *ProductUseCase) RegisterNewProduct(ctx context.Context, req *AddNewProductReq) (*OutboxEvent, error) {
	const op = "ProductUseCase.RegisterNewProduct"

	// Валидация данных
	var err error
	err = p.validateProduct(req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var (
		imagesRes *UploadImagesRes
		uploaded  bool
	)

	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, p.dbPool)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	// Если произошла ошибка, происходит Rollback транзакции и очистка загруженных изображений
	defer func() {
		if err != nil {
			if tx.IsActive() {
				tx.Rollback(ctx)
			}

			if uploaded && imagesRes != nil {
				p.logger.Warnf(
					"Cleaning up orphaned images after transaction failure. product_title: %s, error: %v",
					req.Title,
					e.Wrap(op, err),
				)

				p.imagesInfra.CleanupImages(imagesRes.ImagesKeys)
			}
		}
	}()
	ctx = context.WithValue(ctx, "tx", tx.Transaction())

	// идемпотентное создание категории
	category, err := p.createCategory(ctx, req.CategoryName)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// идемпотентное создание продукта
	upsertRes, err := p.upsertProduct(ctx, req, category.ID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	product := upsertRes.Product
	if upsertRes.NoChanges {
		p.logger.Debugf("Product %d already up to date, refreshing vectors anyway", product.ID)
	}

	// Версия эмбеддинга растет при каждой регистрации товара
	version, err := p.versionRepo.BumpVersion(ctx, product.ID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Векторизация текста и изображений через энкодер
	textVec, imageVec, modelVersion, err := p.encodeProduct(ctx, product, req.Images)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Сохранение изображений в MinIO
	imagesRes, err = p.uploadImages(ctx, req.Title, req.Images)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	uploaded = true

	product.ImageURL = imagesRes.ImagesKeys[0]
	err = p.productRepo.SetImageURL(ctx, product.ID, product.ImageURL)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Слитый вектор товара уходит в активную коллекцию индекса
	err = p.upsertEmbedding(ctx, product, category.Name, textVec, imageVec, modelVersion, version.EmbeddingVersion)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Outbox-событие пишется в той же транзакции, что и товар
	event, err := p.createOutboxEvent(ctx, product.ID, version.EmbeddingVersion, modelVersion)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Коммит изменений в бд
	err = tx.Commit(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Удаление из кэша устаревших данных товара и выдачи
	if err := p.cacheRepo.DeleteProducts(ctx, []int64{product.ID}); err != nil {
		p.logger.Warnf("Failed to delete products from cache: %v", e.Wrap(op, err))
	}
	if _, err := p.cacheRepo.InvalidatePrefix(ctx, CachePrefixSearch); err != nil {
		p.logger.Warnf("Failed to invalidate search cache: %v", e.Wrap(op, err))
	}

	return event, nil
}

// GetProductsInfo возвращает информацию о продуктах по их идентификаторам.
func (p *ProductUseCase) GetProductsInfo(ctx context.Context, req *GetProductsReq) (*GetProductsRes, error) {
	const op = "ProductUseCase.GetProductsInfo"

	// Валидация
	if len(req.IDs) == 0 {
		return nil, e.Wrap(op, e.ErrNoProducts)
	}

	// Поиск продуктов в хэше
	cacheProductsMap, err := p.cacheRepo.GetProducts(ctx, req.IDs)
	var (
		nonCacheable []int64
		cacheable    []ProductInfo
	)
	if err != nil {
		for _, productId := range req.IDs {
			nonCacheable = append(nonCacheable, productId)
		}
	} else {
		for _, productId := range req.IDs {
			if product, ok := cacheProductsMap[productId]; ok {
				cacheable = append(cacheable, product)
			} else {
				nonCacheable = append(nonCacheable, productId)
			}
		}
	}

	// Получение продуктов из БД
	var productsInfoFromDB []ProductInfo
	if len(nonCacheable) > 0 {
		productsInfoFromDB, err = p.getProductsInfo(ctx, nonCacheable)
		if err != nil {
			return nil, e.Wrap(op, err)
		}

		// Фоновое добавление продуктов в хэш
		go func() {
			bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()

			if err := p.cacheRepo.SetProducts(bgCtx, productsInfoFromDB); err != nil {
				p.logger.Warnf("Failed to cache products in background: %v", e.Wrap(op, err))
			}
		}()
	}

	dbProductsMap := make(map[int64]ProductInfo, len(productsInfoFromDB))
	for _, productInfo := range productsInfoFromDB {
		dbProductsMap[productInfo.ID] = productInfo
	}

	// Формирование результата
	result := make([]ProductInfo, 0, len(req.IDs))
	notFoundProducts := make([]int64, 0)
	for _, id := range req.IDs {
		if pr, ok := cacheProductsMap[id]; ok {
			result = append(result, pr)
		} else if pr, ok := dbProductsMap[id]; ok {
			result = append(result, pr)
		} else {
			notFoundProducts = append(notFoundProducts, id)
		}
	}

	return NewGetProductsRes(result, notFoundProducts), nil
}

// getProductsInfo делегирует запрос репозиторию продуктов.
func (p *ProductUseCase) getProductsInfo(ctx context.Context, ids []int64) ([]ProductInfo, error) {
	return p.productRepo.GetProductsInfo(ctx, ids)
}

// encodeProduct векторизует текст карточки и изображения товара.
// Векторы нескольких изображений усредняются в один.
func (p *ProductUseCase) encodeProduct(ctx context.Context, product *domain.Product, images []ProductImage) ([]float32, []float32, string, error) {
	textRes, err := p.encoder.EncodeTexts(ctx, NewEncodeTextsReq([]string{product.SearchText()}))
	if err != nil {
		return nil, nil, "", err
	}
	if len(textRes) == 0 || len(textRes[0].Vector) == 0 {
		return nil, nil, "", e.ErrVectorEmbeddingEmpty
	}

	imageRes, err := p.encoder.EncodeImages(ctx, NewEncodeImagesReq(images))
	if err != nil {
		return nil, nil, "", err
	}
	if len(imageRes) != len(images) {
		return nil, nil, "", e.ErrVectorCountMismatch
	}

	imageVectors := make([][]float32, 0, len(imageRes))
	for _, res := range imageRes {
		if len(res.Vector) == 0 {
			return nil, nil, "", e.ErrVectorEmbeddingEmpty
		}
		imageVectors = append(imageVectors, res.Vector)
	}

	imageVec, err := p.fusion.MeanPool(imageVectors)
	if err != nil {
		return nil, nil, "", err
	}

	return textRes[0].Vector, imageVec, textRes[0].ModelVersion, nil
}

// upsertEmbedding сливает векторы модальностей с весом построения и пишет
// точку в активную коллекцию. Пока индекс не построен, товар живет только в
// каталоге и попадет в индекс при ближайшем перестроении.
func (p *ProductUseCase) upsertEmbedding(ctx context.Context, product *domain.Product, category string, textVec, imageVec []float32, modelVersion string, embeddingVersion int32) error {
	collection, ok := p.state.ActiveCollection()
	if !ok {
		p.logger.Infof("Index not built yet, skipping live upsert for product %d", product.ID)
		return nil
	}

	fused, err := p.fusion.Fuse(textVec, imageVec, p.cfg.BuildWeight, domain.FusionWeightedAvg)
	if err != nil {
		return err
	}

	payload := domain.NewPayload(product, category, textVec, imageVec, modelVersion, embeddingVersion)
	embedding := domain.NewEmbedding(PointID(product.ID), fused.Vector, payload)

	return p.index.Upsert(ctx, collection, []domain.Embedding{*embedding})
}

// createOutboxEvent кладет событие об изменении товара в outbox той же транзакцией.
func (p *ProductUseCase) createOutboxEvent(ctx context.Context, productID int64, embeddingVersion int32, modelVersion string) (*OutboxEvent, error) {
	eventID := uuid.NewString()

	payload, err := json.Marshal(ProductChangeEvent{
		EventID:          eventID,
		EventType:        string(ProductUpserted),
		ProductID:        productID,
		EmbeddingVersion: embeddingVersion,
		ModelVersion:     modelVersion,
		OccurredAt:       time.Now().UTC().UnixNano(),
	})
	if err != nil {
		return nil, err
	}

	return p.outboxRepo.Create(ctx, NewOutboxEvent(eventID, ProductUpserted, productID, payload))
}

// upsertProduct идемпотентно создаёт или обновляет продукт.
func (p *ProductUseCase) upsertProduct(ctx context.Context, req *AddNewProductReq, categoryID int64) (*UpsertProductRes, error) {
	product := domain.NewProduct(req.Title, req.Description, req.Price, categoryID, req.Brand, req.Rating)
	return p.productRepo.Upsert(ctx, product)
}

// createCategory идемпотентно создаёт категорию.
func (p *ProductUseCase) createCategory(ctx context.Context, categoryName string) (*domain.Category, error) {
	return p.categoryRepo.Create(ctx, domain.NewCategory(categoryName))
}

// uploadImages сохраняет изображения продукта в MinIO.
func (p *ProductUseCase) uploadImages(ctx context.Context, name string, images []ProductImage) (*UploadImagesRes, error) {
	res, err := p.imagesInfra.UploadImages(ctx, NewUploadImagesReq(name, images))
	if err != nil {
		return nil, err
	}
	if len(res.ImagesKeys) == 0 {
		return nil, e.ErrNoImages
	}

	return res, nil
}

// validateProduct проверяет корректность входных данных запроса на добавление продукта.
func (p *ProductUseCase) validateProduct(req *AddNewProductReq) error {
	if strings.TrimSpace(req.Title) == "" {
		return e.ErrProductTitleRequired
	}

	if strings.TrimSpace(req.CategoryName) == "" {
		return e.ErrCategoryRequired
	}

	if req.Price <= 0 {
		return e.ErrPriceMustBePositive
	}

	if req.Rating < 0 || req.Rating > 5 {
		return e.ErrInvalidRating
	}

	if len(req.Images) == 0 {
		return e.ErrNoImages
	}

	return nil
}

// PointID детерминированно выводит идентификатор точки индекса из
// идентификатора товара. Повторная индексация того же каталога дает те же
// самые точки, что делает построение идемпотентным.
func PointID(productID int64) string {
	return uuid.NewMD5(uuid.NameSpaceOID, []byte(fmt.Sprintf("product:%d", productID))).String()
}
