package main

import (
	"flag"
	"fmt"
	"log"

	"canvas-backend/internal/auth"
	"canvas-backend/internal/config"
)

func main() {
	userID := flag.Int64("user", 0, "user id placed in the token")
	name := flag.String("name", "", "display name placed in the token")
	flag.Parse()

	if *userID <= 0 {
		log.Fatal("-user is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}
	if !cfg.Auth.Enabled() {
		log.Fatal("JWT_SECRET is not set; the server accepts requests without a token")
	}

	token, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry).GenerateAccessToken(*userID, *name)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	log.Printf("Token for user %d expires in %s", *userID, cfg.Auth.AccessTokenExpiry)
	fmt.Println(token)
}
