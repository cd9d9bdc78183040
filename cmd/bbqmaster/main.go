package main

import (
	"errors"
	"io/fs"
	"log"

	"bbqmaster/cmd/internal/app"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
