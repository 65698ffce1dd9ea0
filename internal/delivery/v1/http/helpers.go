package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/DRSN-tech/search-backend/internal/usecase"
	"github.com/DRSN-tech/search-backend/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

// ToHTTPResponse переводит ошибку слоя usecase в HTTP-статус и сообщение.
// Неизвестные ошибки уходят наружу как 500 без деталей, детали остаются в логах.
func ToHTTPResponse(err error) (int, string) {
	switch {
	case errors.Is(err, e.ErrMalformedRequest),
		errors.Is(err, e.ErrNoQueryModalities),
		errors.Is(err, e.ErrWeightOutOfRange),
		errors.Is(err, e.ErrInvalidTopK),
		errors.Is(err, e.ErrUnknownFusionMethod),
		errors.Is(err, e.ErrInvalidPriceRange),
		errors.Is(err, e.ErrDegenerateFusion),
		errors.Is(err, e.ErrProductTitleRequired),
		errors.Is(err, e.ErrCategoryRequired),
		errors.Is(err, e.ErrPriceMustBePositive),
		errors.Is(err, e.ErrInvalidPrice),
		errors.Is(err, e.ErrPricePrecision),
		errors.Is(err, e.ErrInvalidRating),
		errors.Is(err, e.ErrNoImages),
		errors.Is(err, e.ErrTooManyImages),
		errors.Is(err, e.ErrFileTooLarge),
		errors.Is(err, e.ErrUnsupportedMediaType),
		errors.Is(err, e.ErrInvalidImagePayload),
		errors.Is(err, e.ErrExpectedMultipart),
		errors.Is(err, e.ErrNoProducts),
		errors.Is(err, e.ErrInvalidCachePrefix):
		return http.StatusBadRequest, unwrapSentinel(err)

	case errors.Is(err, e.ErrProductNotFound):
		return http.StatusNotFound, e.ErrProductNotFound.Error()

	case errors.Is(err, e.ErrEncoderNotReady):
		return http.StatusServiceUnavailable, e.ErrEncoderNotReady.Error()
	case errors.Is(err, e.ErrIndexNotReady):
		return http.StatusServiceUnavailable, e.ErrIndexNotReady.Error()

	default:
		return http.StatusInternalServerError, e.ErrInternalServerError.Error()
	}
}

// unwrapSentinel достает из цепочки последнюю ошибку. Для ошибок валидации
// наружу уходит именно текст сентинела, без внутренних префиксов Wrap.
func unwrapSentinel(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(NewErrorResponse(code, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// parsePriceToCents converts a string like "599.99" or "600" to int64 cents.
// Returns error if:
// - invalid format
// - more than 2 decimal places
// - negative value
// - exceeds reasonable limit (e.g. 10^9 rubles)
func parsePriceToCents(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, e.ErrInvalidPrice
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, e.ErrInvalidPrice
	}

	// Reject negative
	if d.LessThan(decimal.Zero) {
		return 0, e.ErrInvalidPrice
	}

	// Enforce max value (e.g. 1 billion rubles = 100_000_000_000 cents)
	maxPrice := decimal.NewFromInt(1_000_000_000).Mul(decimal.NewFromInt(100)) // 1B rub in cents
	if d.GreaterThan(maxPrice) {
		return 0, e.ErrInvalidPrice
	}

	// Check decimal places
	if d.Exponent() < -2 {
		return 0, e.ErrPricePrecision // "price must have at most 2 decimal places"
	}

	// Convert to cents: multiply by 100 and round
	cents := d.Mul(decimal.NewFromInt(100)).Round(0)

	// Safely convert to int64
	centsInt := cents.IntPart()
	if centsInt < 0 || centsInt > 9223372036854775807 { // int64 max, but we have maxPrice
		return 0, e.ErrInvalidPrice
	}

	return centsInt, nil
}

func ensureMultipartForm(r *http.Request, maxMemory int64) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return e.Wrap(whereami.WhereAmI(), e.ErrExpectedMultipart)
	}
	return r.ParseMultipartForm(maxMemory)
}

type ProductForm struct {
	Title        string
	Description  string
	CategoryName string
	Brand        string
	Rating       float64
	Price        int64
}

// parseProductForm разбирает поля формы товара. Здесь проверяется только
// формат значений, обязательность полей контролирует слой usecase.
func parseProductForm(r *http.Request) (*ProductForm, error) {
	priceCents, err := parsePriceToCents(r.FormValue("price"))
	if err != nil {
		return nil, err
	}

	var rating float64
	if raw := r.FormValue("rating"); raw != "" {
		rating, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, e.ErrInvalidRating
		}
	}

	return &ProductForm{
		Title:        strings.TrimSpace(r.FormValue("title")),
		Description:  strings.TrimSpace(r.FormValue("description")),
		CategoryName: strings.TrimSpace(r.FormValue("category")),
		Brand:        strings.TrimSpace(r.FormValue("brand")),
		Rating:       rating,
		Price:        priceCents,
	}, nil
}

func parseImages(files []*multipart.FileHeader) ([]usecase.ProductImage, error) {
	const (
		maxImageCount = 10
		maxFileSize   = 15 << 20
	)

	if len(files) == 0 {
		return nil, e.ErrNoImages
	}
	if len(files) > maxImageCount {
		return nil, e.ErrTooManyImages
	}

	images := make([]usecase.ProductImage, 0, len(files))
	for _, fh := range files {
		data, mimeType, err := readFile(fh, maxFileSize)
		if err != nil {
			return nil, err
		}
		images = append(images, *usecase.NewProductImage(data, mimeType, int64(len(data)), fh.Filename))
	}
	return images, nil
}

func readFile(fh *multipart.FileHeader, maxSize int64) ([]byte, string, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, "", e.ErrInternalServerError
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, "", e.ErrInternalServerError
	}
	if int64(len(data)) > maxSize {
		return nil, "", e.Wrap(fh.Filename, e.ErrFileTooLarge)
	}

	mimeType := http.DetectContentType(data[:min(len(data), 512)])
	return data, mimeType, nil
}

// pathID извлекает числовой ID из строкового параметра пути.
// Нечисловой ID не адресует ни один товар и отдается как 404.
func pathID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, e.ErrProductNotFound
	}
	return id, nil
}

func parseOptionalFloat(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseOptionalInt(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
