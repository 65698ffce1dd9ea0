package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/DRSN-tech/search-backend/internal/usecase"
	"github.com/DRSN-tech/search-backend/pkg/e"
	"github.com/DRSN-tech/search-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type ProductHandler struct {
	productUsecase usecase.ProductUC
	logger         logger.Logger
}

func NewProductHandler(productUsecase usecase.ProductUC, logger logger.Logger) *ProductHandler {
	return &ProductHandler{productUsecase: productUsecase, logger: logger}
}

type productResponse struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	Category string  `json:"category"`
	Price    int64   `json:"price"`
	Brand    string  `json:"brand"`
	Rating   float64 `json:"rating"`
	ImageURL string  `json:"image_url"`
}

func newProductResponse(info usecase.ProductInfo) productResponse {
	return productResponse{
		ID:       info.ID,
		Title:    info.Title,
		Category: info.CategoryName,
		Price:    info.Price,
		Brand:    info.Brand,
		Rating:   info.Rating,
		ImageURL: info.ImageURL,
	}
}

type productsResponse struct {
	Products []productResponse `json:"products"`
	NotFound []int64           `json:"not_found,omitempty"`
}

func newProductsResponse(res *usecase.GetProductsRes) *productsResponse {
	products := make([]productResponse, 0, len(res.Products))
	for _, info := range res.Products {
		products = append(products, newProductResponse(info))
	}
	return &productsResponse{Products: products, NotFound: res.NotFoundProducts}
}

// registerNewProduct
//
//	@Summary		Регистрация нового товара
//	@Description	Создает новый товар в каталоге с изображениями и сразу индексирует его
//	@Tags			products
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			title			formData	string					true	"Название товара"
//	@Param			description		formData	string					false	"Описание товара"
//	@Param			category		formData	string					true	"Категория"
//	@Param			brand			formData	string					false	"Бренд"
//	@Param			rating			formData	number					false	"Рейтинг от 0 до 5"
//	@Param			price			formData	number					true	"Цена"
//	@Param			images			formData	file					true	"Изображения товара"
//	@Success		201				{object}	map[string]interface{}	"Успешное создание"
//	@Failure		400				{object}	ErrorResponse			"Ошибка валидации"
//	@Router			/products [post]
func (p *ProductHandler) registerNewProduct(w http.ResponseWriter, r *http.Request) {
	const (
		maxTotalRequestSize = 150 << 20
		maxMemory           = 32 << 20
	)

	r.Body = http.MaxBytesReader(w, r.Body, maxTotalRequestSize)

	if err := ensureMultipartForm(r, maxMemory); err != nil {
		p.logger.Warnf("%d product request rejected: %s", http.StatusBadRequest, r.Header.Get("Content-Type"))
		WriteError(w, err)
		return
	}

	form, err := parseProductForm(r)
	if err != nil {
		p.logger.Warnf("%d product form rejected: %s", http.StatusBadRequest, err.Error())
		WriteError(w, err)
		return
	}

	images, err := parseImages(r.MultipartForm.File["images"])
	if err != nil && !errors.Is(err, e.ErrNoImages) {
		p.logger.Warnf("%d product images rejected: %s", http.StatusBadRequest, err.Error())
		WriteError(w, err)
		return
	}

	event, err := p.productUsecase.RegisterNewProduct(r.Context(), usecase.NewAddNewProductReq(
		form.Title,
		form.Description,
		form.CategoryName,
		form.Brand,
		form.Rating,
		form.Price,
		images,
	))
	if err != nil {
		p.logger.Warnf("product registration failed: %s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusCreated, map[string]interface{}{
		"event_id":   event.EventID,
		"product_id": event.ProductID,
	})
}

// getProduct
//
//	@Summary		Карточка товара
//	@Description	Возвращает данные одного товара по идентификатору
//	@Tags			products
//	@Produce		json
//	@Param			id	path		int				true	"ID товара"
//	@Success		200	{object}	productResponse	"Данные товара"
//	@Failure		404	{object}	ErrorResponse	"Товар не найден"
//	@Router			/products/{id} [get]
func (p *ProductHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}

	res, err := p.productUsecase.GetProductsInfo(r.Context(), usecase.NewGetProductsReq([]int64{id}))
	if err != nil {
		p.logger.Warnf("product lookup failed: %s", err.Error())
		WriteError(w, err)
		return
	}
	if len(res.Products) == 0 {
		WriteError(w, e.ErrProductNotFound)
		return
	}

	WriteSuccess(w, http.StatusOK, newProductResponse(res.Products[0]))
}

// getProducts
//
//	@Summary		Данные нескольких товаров
//	@Description	Возвращает данные товаров по списку идентификаторов
//	@Tags			products
//	@Produce		json
//	@Param			ids	query		string				true	"ID товаров через запятую"
//	@Success		200	{object}	productsResponse	"Данные товаров"
//	@Failure		400	{object}	ErrorResponse		"Ошибка валидации"
//	@Router			/products [get]
func (p *ProductHandler) getProducts(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDList(r.URL.Query().Get("ids"))
	if err != nil {
		WriteError(w, err)
		return
	}

	res, err := p.productUsecase.GetProductsInfo(r.Context(), usecase.NewGetProductsReq(ids))
	if err != nil {
		p.logger.Warnf("products lookup failed: %s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, newProductsResponse(res))
}

func parseIDList(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, e.ErrNoProducts
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id <= 0 {
			return nil, e.ErrNoProducts
		}
		ids = append(ids, id)
	}

	return ids, nil
}
