package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"canvas-backend/internal/database"
	"canvas-backend/internal/model"
	"canvas-backend/internal/store"
)

func main() {
	// Load .env file (optional)
	if err := godotenv.Load(); err != nil {
		log.Println("ℹ️ .env not found, using environment variables")
	}

	cfg := database.LoadConfig()
	db, err := database.ConnectDB(cfg, zap.NewNop())
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer database.Close()

	fmt.Printf("✅ Connected to database (%s)\n", cfg.Driver)
	fmt.Println()

	// 테이블 존재 여부
	for _, table := range []string{model.Document{}.TableName(), model.Page{}.TableName()} {
		fmt.Printf("📊 Table %-18s exists: %v\n", table, db.Migrator().HasTable(table))
	}
	fmt.Println()

	documents, pages, err := store.NewDocumentStore(db).Stats(context.Background())
	if err != nil {
		log.Fatal("Failed to count rows:", err)
	}

	fmt.Println("📋 Row counts:")
	fmt.Printf("  - Documents: %d\n", documents)
	fmt.Printf("  - Pages:     %d\n", pages)
}
