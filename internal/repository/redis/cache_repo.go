package redis

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/DRSN-tech/search-backend/internal/cfg"
	"github.com/DRSN-tech/search-backend/internal/domain"
	"github.com/DRSN-tech/search-backend/internal/repository/redis/converter"
	"github.com/DRSN-tech/search-backend/internal/usecase"
	"github.com/DRSN-tech/search-backend/pkg/clients"
	"github.com/DRSN-tech/search-backend/pkg/e"
	"github.com/DRSN-tech/search-backend/pkg/logger"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

// Все ключи кэша живут в одном пространстве имен cmrs
// (cross-modal retrieval system): cmrs:{prefix}:{md5(identifier)}.
// Это позволяет инвалидировать кэш по префиксу, не трогая чужие ключи.
const (
	keyNamespace  = "cmrs"
	scanBatchSize = 100
)

type CacheRepo struct {
	client *clients.RedisClient
	conv   converter.ProductInfoConverter
	cfg    *cfg.RedisCfg
	logger logger.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

func NewCacheRepo(client *clients.RedisClient, conv converter.ProductInfoConverter,
	cfg *cfg.RedisCfg, logger logger.Logger) *CacheRepo {
	return &CacheRepo{
		client: client,
		conv:   conv,
		cfg:    cfg,
		logger: logger,
	}
}

// GetProducts возвращает закэшированные продукты по ID, игнорируя промахи и логируя их
func (c *CacheRepo) GetProducts(ctx context.Context, ids []int64) (map[int64]usecase.ProductInfo, error) {
	keys := c.buildProductCacheKeys(ids)

	values, err := c.client.Client.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warnf("Redis MGET failed: %v", e.Wrap(whereami.WhereAmI(), err))
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	result := make(map[int64]usecase.ProductInfo, len(values))
	for i, val := range values {
		data, err := redisValueToBytes(val, keys[i])
		if err != nil {
			c.logger.Warnf("%v", e.Wrap(whereami.WhereAmI(), err))
		}

		if data == nil {
			c.misses.Add(1)
			continue // cache miss
		}

		model, err := c.unmarshalProductFromCache(data)
		if err != nil {
			c.logger.Warnf("Redis unmarshal failed: %v", e.Wrap(whereami.WhereAmI(), err))
			c.misses.Add(1)
			continue
		}

		if model.ID != ids[i] {
			c.logger.Warnf("Cache ID mismatch: key_id: %d, model_id: %d", ids[i], model.ID)
			if err := c.client.Client.Del(context.Background(), keys[i]).Err(); err != nil {
				c.logger.Warnf("Redis del failed: %v", e.Wrap(whereami.WhereAmI(), err))
			}
			c.misses.Add(1)
			continue // cache miss
		}

		c.hits.Add(1)
		result[ids[i]] = *c.conv.ToUseCase(model)
	}

	return result, nil
}

// SetProducts атомарно кэширует несколько продуктов с заданным TTL.
// Игнорирует ошибки сериализации/записи, логируя их.
func (c *CacheRepo) SetProducts(ctx context.Context, products []usecase.ProductInfo) error {
	models := c.conv.ToArrRedisModel(products)

	pipeline := c.client.Client.Pipeline()
	for _, model := range models {
		data, err := json.Marshal(model)
		if err != nil {
			c.logger.Warnf("Failed to marshal product for caching (Product ID: %d): %v", model.ID, e.Wrap(whereami.WhereAmI(), err))
			continue
		}

		key := c.productKey(model.ID)
		pipeline.Set(ctx, key, data, c.cfg.ProductTTL)
	}

	if _, err := pipeline.Exec(ctx); err != nil {
		c.logger.Warnf("Cache pipeline failed: %v", e.Wrap(whereami.WhereAmI(), err))
	}

	return nil
}

// DeleteProducts удаляет продукты из кэша по ID
func (c *CacheRepo) DeleteProducts(ctx context.Context, ids []int64) error {
	keys := c.buildProductCacheKeys(ids)

	if err := c.client.Client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warnf("Redis DEL failed: %v", e.Wrap(whereami.WhereAmI(), err))
	}

	return nil
}

// GetEmbedding возвращает закэшированный вектор модальности.
// Промах кэша не является ошибкой и возвращается как (nil, nil).
func (c *CacheRepo) GetEmbedding(ctx context.Context, modality, identifier string) ([]float32, error) {
	key := cacheKey("embedding:"+modality, identifier)

	data, err := c.client.Client.Get(ctx, key).Bytes()
	if errors.Is(err, r.Nil) {
		c.misses.Add(1)
		return nil, nil
	}
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var vector []float32
	if err := json.Unmarshal(data, &vector); err != nil {
		c.misses.Add(1)
		c.logger.Warnf("Corrupted embedding cache entry %s: %v", key, err)
		if err := c.client.Client.Del(context.Background(), key).Err(); err != nil {
			c.logger.Warnf("Redis del failed: %v", e.Wrap(whereami.WhereAmI(), err))
		}
		return nil, nil
	}

	c.hits.Add(1)
	return vector, nil
}

// SetEmbedding кэширует вектор модальности на EmbeddingTTL. Векторы одного
// и того же текста или изображения детерминированы, поэтому TTL длинный.
func (c *CacheRepo) SetEmbedding(ctx context.Context, modality, identifier string, vector []float32) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	key := cacheKey("embedding:"+modality, identifier)
	if err := c.client.Client.Set(ctx, key, data, c.cfg.EmbeddingTTL).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// GetSearchResults возвращает закэшированную выдачу по каноническому ключу
// запроса. Промах кэша возвращается как (nil, nil).
func (c *CacheRepo) GetSearchResults(ctx context.Context, key string) ([]domain.SearchResult, error) {
	data, err := c.client.Client.Get(ctx, cacheKey("search", key)).Bytes()
	if errors.Is(err, r.Nil) {
		c.misses.Add(1)
		return nil, nil
	}
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var results []domain.SearchResult
	if err := json.Unmarshal(data, &results); err != nil {
		c.misses.Add(1)
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	c.hits.Add(1)
	return results, nil
}

// SetSearchResults кэширует выдачу на SearchTTL
func (c *CacheRepo) SetSearchResults(ctx context.Context, key string, results []domain.SearchResult) error {
	data, err := json.Marshal(results)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := c.client.Client.Set(ctx, cacheKey("search", key), data, c.cfg.SearchTTL).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// InvalidatePrefix удаляет все ключи данного префикса и возвращает число
// удаленных. Обход через SCAN, чтобы не блокировать Redis на больших базах.
func (c *CacheRepo) InvalidatePrefix(ctx context.Context, prefix string) (int64, error) {
	pattern := fmt.Sprintf("%s:%s*", keyNamespace, prefix)

	var deleted int64
	keys := make([]string, 0, scanBatchSize)

	iter := c.client.Client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) < scanBatchSize {
			continue
		}

		n, err := c.client.Client.Del(ctx, keys...).Result()
		if err != nil {
			return deleted, e.Wrap(whereami.WhereAmI(), err)
		}
		deleted += n
		keys = keys[:0]
	}
	if err := iter.Err(); err != nil {
		return deleted, e.Wrap(whereami.WhereAmI(), err)
	}

	if len(keys) > 0 {
		n, err := c.client.Client.Del(ctx, keys...).Result()
		if err != nil {
			return deleted, e.Wrap(whereami.WhereAmI(), err)
		}
		deleted += n
	}

	return deleted, nil
}

// Stats собирает счетчики попаданий процесса и число ключей в Redis.
// Недоступный Redis не считается ошибкой: вернется Connected=false.
func (c *CacheRepo) Stats(ctx context.Context) (*usecase.CacheStatsRes, error) {
	res := &usecase.CacheStatsRes{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
	if total := res.Hits + res.Misses; total > 0 {
		res.HitRate = float64(res.Hits) / float64(total)
	}

	if err := c.client.Ping(ctx); err != nil {
		c.logger.Warnf("Redis ping failed: %v", err)
		return res, nil
	}
	res.Connected = true

	pattern := keyNamespace + ":*"
	iter := c.client.Client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()
	for iter.Next(ctx) {
		res.TotalKeys++
	}
	if err := iter.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return res, nil
}

// unmarshalProductFromCache десериализует JSON из кэша в модель продукта
func (c *CacheRepo) unmarshalProductFromCache(data []byte) (*converter.ProductInfoRedisModel, error) {
	var model converter.ProductInfoRedisModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, err
	}

	return &model, nil
}

// buildProductCacheKeys формирует Redis-ключи из ID продуктов
func (c *CacheRepo) buildProductCacheKeys(ids []int64) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.productKey(id)
	}

	return keys
}

// productKey возвращает Redis-ключ для одного продукта
func (c *CacheRepo) productKey(id int64) string {
	return cacheKey("product", strconv.FormatInt(id, 10))
}

// cacheKey строит ключ вида cmrs:{prefix}:{md5(identifier)}. Хэширование
// держит длину ключа постоянной при произвольно длинных идентификаторах.
func cacheKey(prefix, identifier string) string {
	return fmt.Sprintf("%s:%s:%x", keyNamespace, prefix, md5.Sum([]byte(identifier)))
}

// redisValueToBytes конвертирует значение из Redis в []byte.
// Поддерживает string и []byte, возвращает ошибку для неизвестных типов.
func redisValueToBytes(val interface{}, key string) ([]byte, error) {
	switch v := val.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case nil:
		return nil, nil // cache miss
	default:
		return nil, fmt.Errorf("unexpected Redis value type for key %s: %T", key, val)
	}
}
