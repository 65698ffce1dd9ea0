package pgdb

import (
	"context"

	"github.com/DRSN-tech/search-backend/internal/domain"
	"github.com/DRSN-tech/search-backend/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/search-backend/internal/usecase"
	"github.com/DRSN-tech/search-backend/pkg/e"
	"github.com/DRSN-tech/search-backend/pkg/tr"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// ProductRepo реализует репозиторий продуктов поверх PostgreSQL.
type ProductRepo struct {
	pool *pgxpool.Pool
	conv converter.ProductConverter
}

func NewProductRepo(pool *pgxpool.Pool, conv converter.ProductConverter) *ProductRepo {
	return &ProductRepo{
		pool: pool,
		conv: conv,
	}
}

// Upsert идемпотентно создаёт или обновляет продукт по уникальному названию.
// Запись обновляется только при фактическом изменении полей карточки.
func (p *ProductRepo) Upsert(ctx context.Context, product *domain.Product) (*usecase.UpsertProductRes, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	// VALUES ($1..$6) title, description, price, category_id, brand, rating
	query := `
		WITH upsert AS (
		INSERT INTO products (title, description, price, category_id, brand, rating)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (title)
		DO UPDATE SET
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			category_id = EXCLUDED.category_id,
			brand = EXCLUDED.brand,
			rating = EXCLUDED.rating,
			updated_at = NOW()
		WHERE
			products.description IS DISTINCT FROM EXCLUDED.description OR
			products.price IS DISTINCT FROM EXCLUDED.price OR
			products.category_id IS DISTINCT FROM EXCLUDED.category_id OR
			products.brand IS DISTINCT FROM EXCLUDED.brand OR
			products.rating IS DISTINCT FROM EXCLUDED.rating
		RETURNING
			id, title, description, price, category_id, brand, rating, image_url,
			created_at, updated_at, is_archived
		)
		SELECT
			id, title, description, price, category_id, brand, rating, image_url,
			created_at, updated_at, is_archived,
			false AS no_changes
		FROM upsert

		UNION ALL

		SELECT
			id, title, description, price, category_id, brand, rating, image_url,
			created_at, updated_at, is_archived,
			true AS no_changes
		FROM products
		WHERE title = $1
		  AND NOT EXISTS (SELECT 1 FROM upsert);
	`

	var model converter.ProductModel
	var noChanges bool
	err = tx.QueryRow(ctx, query,
		product.Title, product.Description, product.Price,
		product.CategoryID, product.Brand, product.Rating,
	).Scan(
		&model.ID, &model.Title, &model.Description, &model.Price, &model.CategoryID,
		&model.Brand, &model.Rating, &model.ImageURL,
		&model.CreatedAt, &model.UpdatedAt, &model.IsArchived, &noChanges,
	)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return usecase.NewUpsertProductRes(p.conv.ToEntity(&model), noChanges), nil
}

// SetImageURL сохраняет ключ главного изображения товара.
func (p *ProductRepo) SetImageURL(ctx context.Context, productID int64, imageURL string) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		UPDATE products
		SET image_url = $2, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := tx.Exec(ctx, query, productID, imageURL); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// GetProductsInfo возвращает информацию о продуктах по их идентификаторам, включая название категории.
func (p *ProductRepo) GetProductsInfo(ctx context.Context, ids []int64) ([]usecase.ProductInfo, error) {
	query := `
		SELECT pr.id, pr.title, cat.name, pr.price, pr.brand, pr.rating, pr.image_url
		FROM products pr
		JOIN categories cat ON pr.category_id = cat.id
		WHERE pr.id = ANY($1)
	`

	rows, err := p.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]usecase.ProductInfo, 0)
	for rows.Next() {
		var product usecase.ProductInfo
		if err := rows.Scan(
			&product.ID, &product.Title, &product.CategoryName,
			&product.Price, &product.Brand, &product.Rating, &product.ImageURL,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		result = append(result, product)
	}

	return result, nil
}

// ListCatalog постранично отдает живые строки каталога для построения индекса.
// Курсор — идентификатор последнего товара предыдущей страницы.
func (p *ProductRepo) ListCatalog(ctx context.Context, afterID int64, limit int) ([]usecase.CatalogProduct, error) {
	query := `
		SELECT
			pr.id, pr.title, pr.description, pr.price, cat.name,
			pr.brand, pr.rating, pr.image_url,
			COALESCE(pev.embedding_version, 1)
		FROM products pr
		JOIN categories cat ON pr.category_id = cat.id
		LEFT JOIN product_embedding_version pev ON pev.product_id = pr.id
		WHERE pr.id > $1 AND NOT pr.is_archived
		ORDER BY pr.id
		LIMIT $2
	`

	rows, err := p.pool.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]usecase.CatalogProduct, 0, limit)
	for rows.Next() {
		var product usecase.CatalogProduct
		if err := rows.Scan(
			&product.ID, &product.Title, &product.Description, &product.Price, &product.Category,
			&product.Brand, &product.Rating, &product.ImageKey, &product.EmbeddingVersion,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		result = append(result, product)
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}
