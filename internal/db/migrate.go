package db

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"versioned-notes/internal/domain"
	"versioned-notes/internal/note"
	"versioned-notes/internal/user"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, log *zap.Logger) error {
	if err := user.AutoMigrate(db); err != nil {
		return err
	}
	if err := note.AutoMigrate(db); err != nil {
		return err
	}

	log.Info("Database schema migrated successfully")
	return nil
}

// SeedData creates a development admin account if it doesn't exist yet
func SeedData(ctx context.Context, db *gorm.DB, log *zap.Logger) error {
	userRepo := user.NewRepository(db)

	admin := &domain.User{
		Name:    "Admin",
		Email:   "admin@example.com",
		IsAdmin: true,
	}

	// Check if user exists
	_, err := userRepo.FindByEmail(ctx, admin.Email)
	if err == nil {
		log.Info("Seed admin already exists", zap.String("email", admin.Email))
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin.PasswordHash = string(hash)

	if err := userRepo.Create(ctx, admin); err != nil {
		return err
	}
	log.Info("Created seed admin", zap.String("email", admin.Email))
	return nil
}
