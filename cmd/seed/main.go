// seed inserts development sample accounts for local testing.
// Idempotent: skips inserts if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"account-service/internal/config"
	"account-service/internal/db"
	"account-service/internal/security"
	"account-service/internal/user/domain"
	userrepo "account-service/internal/user/repository"
)

const (
	devEmail       = "dev@example.com"
	twoFactorEmail = "twofactor@example.com"
	devPassword    = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	users := userrepo.NewPostgresRepository(conn)
	ctx := context.Background()

	existing, err := users.GetByEmail(ctx, devEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev@example.com exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()

	if err := users.Create(ctx, &domain.User{
		ID:           uuid.NewString(),
		Email:        devEmail,
		PasswordHash: passwordHash,
		FirstName:    "Dev",
		LastName:     "User",
		IsActive:     true,
		IsSuperuser:  true,
		DateJoined:   now,
	}); err != nil {
		log.Fatalf("create dev user: %v", err)
	}

	if err := users.Create(ctx, &domain.User{
		ID:               uuid.NewString(),
		Email:            twoFactorEmail,
		PasswordHash:     passwordHash,
		FirstName:        "Twofactor",
		LastName:         "User",
		IsActive:         true,
		TwoFactorEnabled: true,
		DateJoined:       now,
	}); err != nil {
		log.Fatalf("create two-factor user: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Dev login: %s / %s\n", devEmail, devPassword)
	fmt.Printf("Two-factor login: %s / %s\n", twoFactorEmail, devPassword)
}
