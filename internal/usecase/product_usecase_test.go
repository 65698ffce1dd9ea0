package usecase

import (
	"context"
	"testing"

	"github.com/DRSN-tech/search-backend/pkg/e"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProductReq() *AddNewProductReq {
	return &AddNewProductReq{
		Title:        "Trail running shoes",
		Description:  "Lightweight shoes with aggressive grip",
		CategoryName: "shoes",
		Brand:        "Acme",
		Rating:       4.5,
		Price:        7990,
		Images:       []ProductImage{{Data: []byte{0xFF, 0xD8}, MimeType: "image/jpeg", Size: 2, Name: "shot.jpg"}},
	}
}

// Validation fires before the transaction is opened, so the use case built
// from nil collaborators must fail on the request alone.
func TestRegisterNewProductValidation(t *testing.T) {
	uc := NewProductUC(nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nopLogger{})

	cases := []struct {
		name   string
		mutate func(*AddNewProductReq)
		want   error
	}{
		{"empty title", func(r *AddNewProductReq) { r.Title = "" }, e.ErrProductTitleRequired},
		{"whitespace title", func(r *AddNewProductReq) { r.Title = "   " }, e.ErrProductTitleRequired},
		{"missing category", func(r *AddNewProductReq) { r.CategoryName = " " }, e.ErrCategoryRequired},
		{"zero price", func(r *AddNewProductReq) { r.Price = 0 }, e.ErrPriceMustBePositive},
		{"negative price", func(r *AddNewProductReq) { r.Price = -100 }, e.ErrPriceMustBePositive},
		{"rating below range", func(r *AddNewProductReq) { r.Rating = -0.1 }, e.ErrInvalidRating},
		{"rating above range", func(r *AddNewProductReq) { r.Rating = 5.5 }, e.ErrInvalidRating},
		{"no images", func(r *AddNewProductReq) { r.Images = nil }, e.ErrNoImages},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validProductReq()
			tc.mutate(req)

			_, err := uc.RegisterNewProduct(context.Background(), req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestGetProductsInfoRequiresIDs(t *testing.T) {
	uc := NewProductUC(nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nopLogger{})

	_, err := uc.GetProductsInfo(context.Background(), &GetProductsReq{})
	assert.ErrorIs(t, err, e.ErrNoProducts)
}

func TestGetProductsInfoMergesCacheAndDatabase(t *testing.T) {
	catalog := &stubCatalog{infos: []ProductInfo{{ID: 2, Title: "Leather boots", CategoryName: "shoes"}}}
	cache := &stubCache{products: map[int64]ProductInfo{1: {ID: 1, Title: "Running sneakers", CategoryName: "shoes"}}}
	uc := NewProductUC(catalog, nil, nil, nil, nil, nil, nil, nil, nil, nil, cache, nil, nopLogger{})

	res, err := uc.GetProductsInfo(context.Background(), NewGetProductsReq([]int64{1, 2, 3}))

	require.NoError(t, err)
	require.Len(t, res.Products, 2)
	assert.Equal(t, int64(1), res.Products[0].ID)
	assert.Equal(t, "Running sneakers", res.Products[0].Title)
	assert.Equal(t, int64(2), res.Products[1].ID)
	assert.Equal(t, "Leather boots", res.Products[1].Title)
	assert.Equal(t, []int64{3}, res.NotFoundProducts)

	// Only the cache misses reach the database
	assert.Equal(t, []int64{2, 3}, catalog.infoIDs)
}

func TestGetProductsInfoServedFromCache(t *testing.T) {
	catalog := &stubCatalog{}
	cache := &stubCache{products: map[int64]ProductInfo{
		1: {ID: 1, Title: "Running sneakers"},
		2: {ID: 2, Title: "Leather boots"},
	}}
	uc := NewProductUC(catalog, nil, nil, nil, nil, nil, nil, nil, nil, nil, cache, nil, nopLogger{})

	res, err := uc.GetProductsInfo(context.Background(), NewGetProductsReq([]int64{2, 1}))

	require.NoError(t, err)
	require.Len(t, res.Products, 2)
	assert.Equal(t, int64(2), res.Products[0].ID)
	assert.Equal(t, int64(1), res.Products[1].ID)
	assert.Empty(t, res.NotFoundProducts)
	assert.Empty(t, catalog.infoIDs)
}

func TestPointIDDeterministic(t *testing.T) {
	assert.Equal(t, PointID(42), PointID(42))
	assert.NotEqual(t, PointID(42), PointID(43))

	id, err := uuid.Parse(PointID(42))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(3), id.Version())
}
