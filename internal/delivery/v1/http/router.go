package http

import (
	_ "github.com/DRSN-tech/search-backend/docs" // Импорт сгенерированных файлов
	"github.com/DRSN-tech/search-backend/internal/usecase"
	"github.com/DRSN-tech/search-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

func (r *Router) Init(searchUC usecase.SearchUC, prUC usecase.ProductUC, indexUC usecase.IndexUC, cacheUC usecase.CacheUC) {
	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"), // ссылка на JSON
	))

	systemHandler := NewSystemHandler(indexUC, cacheUC, r.logger)
	r.router.Get("/health", systemHandler.health)

	r.router.Route("/api/v1", func(v1 chi.Router) {
		searchHandler := NewSearchHandler(searchUC, r.logger)
		prHandler := NewProductHandler(prUC, r.logger)
		indexHandler := NewIndexHandler(indexUC, r.logger)

		registerSearchRoutes(v1, searchHandler)
		registerProductRoutes(v1, prHandler, searchHandler)
		registerIndexRoutes(v1, indexHandler)
		registerCacheRoutes(v1, systemHandler)
	})
}

func registerSearchRoutes(router chi.Router, searchHandler *SearchHandler) {
	router.Post("/search", searchHandler.search)
}

func registerProductRoutes(router chi.Router, prHandler *ProductHandler, searchHandler *SearchHandler) {
	router.Route("/products", func(pr chi.Router) {
		pr.Post("/", prHandler.registerNewProduct)
		pr.Get("/", prHandler.getProducts)
		pr.Get("/{id}", prHandler.getProduct)
		pr.Get("/{id}/similar", searchHandler.findSimilar)
	})
}

func registerIndexRoutes(router chi.Router, indexHandler *IndexHandler) {
	router.Route("/index", func(ix chi.Router) {
		ix.Post("/rebuild", indexHandler.rebuild)
		ix.Get("/stats", indexHandler.stats)
	})
}

func registerCacheRoutes(router chi.Router, systemHandler *SystemHandler) {
	router.Route("/cache", func(c chi.Router) {
		c.Get("/stats", systemHandler.cacheStats)
		c.Post("/invalidate", systemHandler.invalidateCache)
	})
}
