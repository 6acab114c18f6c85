package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/examgate/examgate-backend/internal/config"
	"github.com/examgate/examgate-backend/internal/database"
	"github.com/examgate/examgate-backend/internal/logger"
	"github.com/examgate/examgate-backend/internal/model"
	"github.com/examgate/examgate-backend/internal/repository"
)

// Seeds a batch of student accounts for load testing and local
// development. Every account gets the same password.
func main() {
	var count int
	var password string
	flag.IntVar(&count, "count", 50, "Number of students to create")
	flag.StringVar(&password, "password", "student123", "Password for every seeded account")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)

	// One hash shared across the batch; hashing 50 times with the same
	// input buys nothing and bcrypt is slow on purpose.
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	fmt.Printf("=== Seeding %d Students ===\n", count)

	created := 0
	for i := 1; i <= count; i++ {
		student := &model.User{
			FullName:     fmt.Sprintf("Student %03d", i),
			Email:        fmt.Sprintf("student%03d@examgate.local", i),
			PasswordHash: string(hash),
			Role:         model.RoleStudent,
			Active:       true,
		}
		if err := userRepo.Create(ctx, student); err != nil {
			log.Warn().Err(err).Str("email", student.Email).Msg("Skipping student")
			continue
		}
		created++
	}

	fmt.Printf("Done. Created %d of %d students.\n", created, count)
}
