package usecase

import "context"

// EncoderInfra — клиент мультимодального энкодера. Обе модальности
// проецируются в одно векторное пространство единичной нормы.
type EncoderInfra interface {
	EncodeTexts(ctx context.Context, req *EncodeTextsReq) ([]EncodeRes, error)
	EncodeImages(ctx context.Context, req *EncodeImagesReq) ([]EncodeRes, error)
	Health(ctx context.Context) error
}

type ImagesInfra interface {
	UploadImages(ctx context.Context, req *UploadImagesReq) (*UploadImagesRes, error)
	CleanupImages(keys []string)
}

type MessageProducer interface {
	WriteRawMessage(ctx context.Context, req *WriteRawMessageReq) error
}
