package e

import "fmt"

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Внутренние ошибки с векторами
	ErrEmptyVectors         = fmt.Errorf("empty vectors")
	ErrVectorEmbeddingEmpty = fmt.Errorf("vector embedding is empty")
	ErrVectorSizeMismatch   = fmt.Errorf("vector size mismatch")
	ErrVectorCountMismatch  = fmt.Errorf("vector count does not match input count")
	ErrDegenerateFusion     = fmt.Errorf("fused vector has near-zero magnitude")

	// 400 Bad Request
	ErrMalformedRequest     = fmt.Errorf("malformed request body")
	ErrNoQueryModalities    = fmt.Errorf("either text or image must be provided")
	ErrWeightOutOfRange     = fmt.Errorf("fusion weight must be in [0,1]")
	ErrInvalidTopK          = fmt.Errorf("top_k must be positive")
	ErrUnknownFusionMethod  = fmt.Errorf("unknown fusion method")
	ErrInvalidPriceRange    = fmt.Errorf("price_min must not exceed price_max")
	ErrProductTitleRequired = fmt.Errorf("product title is required")
	ErrCategoryRequired     = fmt.Errorf("product category is required")
	ErrPriceMustBePositive  = fmt.Errorf("price must be positive")
	ErrInvalidPrice         = fmt.Errorf("invalid price format")
	ErrPricePrecision       = fmt.Errorf("price has more than two decimal places")
	ErrNoImages             = fmt.Errorf("no images provided")
	ErrTooManyImages        = fmt.Errorf("too many images")
	ErrFileTooLarge         = fmt.Errorf("file too large")
	ErrUnsupportedMediaType = fmt.Errorf("unsupported media type")
	ErrInvalidImagePayload  = fmt.Errorf("invalid image payload")
	ErrExpectedMultipart    = fmt.Errorf("expected multipart form data")
	ErrInvalidRating        = fmt.Errorf("rating must be between 0 and 5")
	ErrNoProducts           = fmt.Errorf("product ids are required")
	ErrInvalidCachePrefix   = fmt.Errorf("unknown cache prefix")

	// 404 Not Found
	ErrProductNotFound = fmt.Errorf("product not found")

	// 503 Service Unavailable
	ErrEncoderNotReady = fmt.Errorf("encoder model not yet loaded")
	ErrIndexNotReady   = fmt.Errorf("similarity index not yet loaded")

	// 500 Internal Server Error
	ErrInternalServerError = fmt.Errorf("internal server error")

	// Конфигурация
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect env variable")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
