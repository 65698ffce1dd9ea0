// Package docs публикует swagger-описание HTTP API сервиса поиска.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/search": {
            "post": {
                "consumes": ["application/json", "multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["search"],
                "summary": "Кросс-модальный поиск товаров",
                "description": "Ищет товары по тексту, изображению или обеим модальностям сразу. JSON-тело несет изображение в image_base64, multipart-форма в файле image.",
                "responses": {
                    "200": {"description": "Результаты поиска"},
                    "400": {"description": "Ошибка валидации"},
                    "503": {"description": "Модель или индекс не готовы"}
                }
            }
        },
        "/products": {
            "get": {
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Данные нескольких товаров",
                "parameters": [
                    {"type": "string", "name": "ids", "in": "query", "required": true, "description": "ID товаров через запятую"}
                ],
                "responses": {
                    "200": {"description": "Данные товаров"},
                    "400": {"description": "Ошибка валидации"}
                }
            },
            "post": {
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Регистрация нового товара",
                "parameters": [
                    {"type": "string", "name": "title", "in": "formData", "required": true},
                    {"type": "string", "name": "description", "in": "formData"},
                    {"type": "string", "name": "category", "in": "formData", "required": true},
                    {"type": "string", "name": "brand", "in": "formData"},
                    {"type": "number", "name": "rating", "in": "formData"},
                    {"type": "number", "name": "price", "in": "formData", "required": true},
                    {"type": "file", "name": "images", "in": "formData", "required": true}
                ],
                "responses": {
                    "201": {"description": "Успешное создание"},
                    "400": {"description": "Ошибка валидации"}
                }
            }
        },
        "/products/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Карточка товара",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Данные товара"},
                    "404": {"description": "Товар не найден"}
                }
            }
        },
        "/products/{id}/similar": {
            "get": {
                "produces": ["application/json"],
                "tags": ["search"],
                "summary": "Похожие товары",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "name": "top_k", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Похожие товары"},
                    "404": {"description": "Товар не найден"}
                }
            }
        },
        "/index/rebuild": {
            "post": {
                "produces": ["application/json"],
                "tags": ["index"],
                "summary": "Перестроение поискового индекса",
                "responses": {
                    "200": {"description": "Итоги перестроения"},
                    "503": {"description": "Модель не готова"}
                }
            }
        },
        "/index/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["index"],
                "summary": "Состояние индекса",
                "responses": {
                    "200": {"description": "Состояние индекса"}
                }
            }
        },
        "/cache/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Статистика кэша",
                "responses": {
                    "200": {"description": "Статистика кэша"}
                }
            }
        },
        "/cache/invalidate": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Инвалидация кэша",
                "responses": {
                    "200": {"description": "Сколько ключей удалено"},
                    "400": {"description": "Ошибка валидации"}
                }
            }
        }
    }
}`

// SwaggerInfo описывает API для swagger UI.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Cross-Modal Product Search API",
	Description:      "Поиск товаров по тексту и изображению поверх векторного индекса.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
