package encoder

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/DRSN-tech/search-backend/internal/cfg"
	"github.com/DRSN-tech/search-backend/internal/usecase"
	"github.com/DRSN-tech/search-backend/pkg/e"
	"github.com/DRSN-tech/search-backend/pkg/jitter"
	"github.com/DRSN-tech/search-backend/pkg/logger"
)

// EncoderService клиент мультимодального энкодера. Сервис держит
// предобученную vision-language модель и отдает векторы одного
// пространства для текстов и изображений.
type EncoderService struct {
	client *http.Client
	cfg    *cfg.EncoderCfg
	logger logger.Logger
}

func NewEncoderService(cfg *cfg.EncoderCfg, logger logger.Logger) *EncoderService {
	return &EncoderService{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger,
	}
}

type encodeTextsRequest struct {
	Texts []string `json:"texts"`
}

type encodeImagesRequest struct {
	Images []string `json:"images"` // base64
}

type encodeResponse struct {
	Vectors      [][]float32 `json:"vectors"`
	ModelVersion string      `json:"model_version"`
}

// EncodeTexts векторизует батч текстов. Порядок векторов в ответе
// совпадает с порядком текстов в запросе.
func (s *EncoderService) EncodeTexts(ctx context.Context, req *usecase.EncodeTextsReq) ([]usecase.EncodeRes, error) {
	const op = "EncoderService.EncodeTexts"

	if len(req.Texts) == 0 {
		return nil, nil
	}

	results, err := s.encodeBatches(ctx, "/encode/text", len(req.Texts), func(from, to int) any {
		return encodeTextsRequest{Texts: req.Texts[from:to]}
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return results, nil
}

// EncodeImages векторизует батч изображений. Байты кодируются в base64,
// порядок векторов в ответе совпадает с порядком изображений.
func (s *EncoderService) EncodeImages(ctx context.Context, req *usecase.EncodeImagesReq) ([]usecase.EncodeRes, error) {
	const op = "EncoderService.EncodeImages"

	if len(req.Images) == 0 {
		return nil, nil
	}

	encoded := make([]string, len(req.Images))
	for i, image := range req.Images {
		encoded[i] = base64.StdEncoding.EncodeToString(image.Data)
	}

	results, err := s.encodeBatches(ctx, "/encode/image", len(req.Images), func(from, to int) any {
		return encodeImagesRequest{Images: encoded[from:to]}
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return results, nil
}

// Health проверяет доступность модели энкодера
func (s *EncoderService) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.Addr+"/health", nil)
	if err != nil {
		return e.Wrap("EncoderService.Health", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return e.Wrap("EncoderService.Health", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return e.Wrap("EncoderService.Health", fmt.Errorf("encoder returned %d - %s", resp.StatusCode, resp.Status))
	}

	return nil
}

// encodeBatches разбивает вход на батчи и выполняет их параллельно
// с ограничением конкурентности. Результаты собираются по индексам,
// поэтому порядок входа сохраняется.
func (s *EncoderService) encodeBatches(ctx context.Context, path string, total int, batchBody func(from, to int) any) ([]usecase.EncodeRes, error) {
	batches := splitBatches(total, s.cfg.BatchSize)
	results := make([]usecase.EncodeRes, total)

	sem := make(chan struct{}, s.cfg.MaxConcurrent)
	errCh := make(chan error, len(batches))

	var wg sync.WaitGroup
	for _, batch := range batches {
		wg.Add(1)
		go func(from, to int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := s.encode(ctx, path, batchBody(from, to))
			if err != nil {
				errCh <- err
				return
			}
			if len(res.Vectors) != to-from {
				errCh <- e.ErrVectorCountMismatch
				return
			}

			for i, vector := range res.Vectors {
				results[from+i] = *usecase.NewEncodeRes(vector, res.ModelVersion)
			}
		}(batch.from, batch.to)
	}

	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		return nil, err
	}

	return results, nil
}

// encode выполняет один запрос к энкодеру с retry-логикой и экспоненциальной задержкой
func (s *EncoderService) encode(ctx context.Context, path string, body any) (*encodeResponse, error) {
	const (
		op         = "EncoderService.encode"
		baseJitter = 1 * time.Second
		maxJitter  = 30 * time.Second
	)

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		res, err := s.post(ctx, path, jsonBody)
		if err == nil {
			return res, nil
		}

		if attempt == s.cfg.MaxRetries-1 {
			return nil, e.Wrap(op, fmt.Errorf("all %d attempts failed: %w", s.cfg.MaxRetries, err))
		}

		sleepTime := jitter.ExponentialBackoff(
			baseJitter,
			maxJitter,
			attempt,
			jitter.DefaultJitter,
		)

		s.logger.Warnf("encoder request %s failed, retrying in %v (attempt %d)", path, sleepTime, attempt+1)
		select {
		case <-time.After(sleepTime):
		case <-ctx.Done():
			return nil, e.Wrap(op, ctx.Err())
		}
	}

	return nil, e.Wrap(op, fmt.Errorf("unreachable"))
}

func (s *EncoderService) post(ctx context.Context, path string, jsonBody []byte) (*encodeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Addr+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("encoder returned %d - %s", resp.StatusCode, resp.Status)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var res encodeResponse
	if err := json.Unmarshal(bodyBytes, &res); err != nil {
		return nil, err
	}

	return &res, nil
}

type span struct {
	from, to int
}

func splitBatches(total, size int) []span {
	if size <= 0 {
		return []span{{from: 0, to: total}}
	}

	batches := make([]span, 0, (total+size-1)/size)
	for from := 0; from < total; from += size {
		to := from + size
		if to > total {
			to = total
		}
		batches = append(batches, span{from: from, to: to})
	}

	return batches
}
