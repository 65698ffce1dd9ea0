package main

import (
	"github.com/DRSN-tech/search-backend/internal/app"
	"github.com/joho/godotenv"
)

func main() {
	// Переменные окружения из .env, если файл лежит рядом с бинарем
	_ = godotenv.Load()

	app.Run()
}
