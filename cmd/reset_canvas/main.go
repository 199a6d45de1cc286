package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"canvas-backend/internal/database"
	"canvas-backend/internal/session"
	"canvas-backend/internal/store"
)

func main() {
	yes := flag.Bool("yes", false, "confirm deleting every canvas document and page")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file, using environment variables")
	}

	if !*yes {
		log.Fatal("Refusing to wipe canvas data without -yes")
	}

	// Connect to database
	db, err := database.ConnectDB(database.LoadConfig(), zap.NewNop())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	st := store.NewDocumentStore(db)
	documents, pages, err := st.Stats(context.Background())
	if err != nil {
		log.Fatalf("Failed to count rows: %v", err)
	}

	log.Printf("Database connected. Deleting %d documents and %d pages...", documents, pages)

	if err := session.New(st, nil).ClearAllData(context.Background()); err != nil {
		log.Fatalf("Failed to clear canvas data: %v", err)
	}

	log.Println("Canvas data successfully reset.")
}
