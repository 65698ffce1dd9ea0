package converter

import "github.com/DRSN-tech/search-backend/internal/usecase"

type ProductInfoConverterImpl struct{}

func NewProductInfoConverterImpl() *ProductInfoConverterImpl {
	return &ProductInfoConverterImpl{}
}

func (c *ProductInfoConverterImpl) ToRedisModel(source *usecase.ProductInfo) *ProductInfoRedisModel {
	var pConverterProductInfoRedisModel *ProductInfoRedisModel
	if source != nil {
		var converterProductInfoRedisModel ProductInfoRedisModel
		converterProductInfoRedisModel.ID = source.ID
		converterProductInfoRedisModel.Title = source.Title
		converterProductInfoRedisModel.CategoryName = source.CategoryName
		converterProductInfoRedisModel.Price = source.Price
		converterProductInfoRedisModel.Brand = source.Brand
		converterProductInfoRedisModel.Rating = source.Rating
		converterProductInfoRedisModel.ImageURL = source.ImageURL
		pConverterProductInfoRedisModel = &converterProductInfoRedisModel
	}
	return pConverterProductInfoRedisModel
}

func (c *ProductInfoConverterImpl) ToUseCase(source *ProductInfoRedisModel) *usecase.ProductInfo {
	var pUsecaseProductInfo *usecase.ProductInfo
	if source != nil {
		var usecaseProductInfo usecase.ProductInfo
		usecaseProductInfo.ID = source.ID
		usecaseProductInfo.Title = source.Title
		usecaseProductInfo.CategoryName = source.CategoryName
		usecaseProductInfo.Price = source.Price
		usecaseProductInfo.Brand = source.Brand
		usecaseProductInfo.Rating = source.Rating
		usecaseProductInfo.ImageURL = source.ImageURL
		pUsecaseProductInfo = &usecaseProductInfo
	}
	return pUsecaseProductInfo
}

func (c *ProductInfoConverterImpl) ToArrRedisModel(source []usecase.ProductInfo) []ProductInfoRedisModel {
	var converterProductInfoRedisModelList []ProductInfoRedisModel
	if source != nil {
		converterProductInfoRedisModelList = make([]ProductInfoRedisModel, len(source))
		for i := 0; i < len(source); i++ {
			converterProductInfoRedisModelList[i] = *c.ToRedisModel(&source[i])
		}
	}
	return converterProductInfoRedisModelList
}

func (c *ProductInfoConverterImpl) ToArrUseCase(source []ProductInfoRedisModel) []usecase.ProductInfo {
	var usecaseProductInfoList []usecase.ProductInfo
	if source != nil {
		usecaseProductInfoList = make([]usecase.ProductInfo, len(source))
		for i := 0; i < len(source); i++ {
			usecaseProductInfoList[i] = *c.ToUseCase(&source[i])
		}
	}
	return usecaseProductInfoList
}
