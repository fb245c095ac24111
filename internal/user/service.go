package user

import (
	"context"
	defError "errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"versioned-notes/internal/domain"
	"versioned-notes/internal/errors"
	"versioned-notes/internal/logger"
)

// NoteRetirer deletes every live note of an owner
type NoteRetirer interface {
	RetireOwnerNotes(ctx context.Context, ownerID uint64) (int64, error)
}

// Service defines the interface for user business logic
type Service interface {
	Register(ctx context.Context, user *domain.User) error
	Login(ctx context.Context, email, password string) (*domain.User, error)
	GetUserByID(ctx context.Context, id uint64) (*domain.User, error)
	IncreaseTokenVersion(ctx context.Context, id uint64) error
	BanUser(ctx context.Context, adminID, targetID uint64) (int64, error)
	ListUsers(ctx context.Context) ([]domain.SafeUser, error)
}

// DefaultService implements Service
type DefaultService struct {
	repository UserRepository
	notes      NoteRetirer
	log        *zap.Logger
}

// NewService creates a new user service
func NewService(repository UserRepository, notes NoteRetirer, log *zap.Logger) Service {
	return &DefaultService{repository: repository, notes: notes, log: log}
}

// Register registers a new user
func (s *DefaultService) Register(ctx context.Context, user *domain.User) error {
	// Check if user with email already exists
	_, err := s.repository.FindByEmail(ctx, user.Email)
	if err != nil && !defError.Is(err, gorm.ErrRecordNotFound) {
		return errors.Internal(err)
	}
	if err == nil {
		return errors.UnprocessableEntity("User already registered", nil)
	}

	// Hash the password before saving
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return errors.UnprocessableEntity("Password can't be used", err)
	}
	user.PasswordHash = string(hashedPassword)
	user.Password = ""

	if err := s.repository.Create(ctx, user); err != nil {
		if defError.Is(err, gorm.ErrDuplicatedKey) {
			return errors.UnprocessableEntity("User already registered", err)
		}
		return errors.Internal(err)
	}
	return nil
}

// Login authenticates a user
func (s *DefaultService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	// Find user by email
	user, err := s.repository.FindByEmail(ctx, email)
	if err != nil {
		return nil, errors.Unauthorized("Invalid email or password", err)
	}

	// Check password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errors.Unauthorized("Invalid email or password", err)
	}

	if user.IsBanned {
		return nil, errors.Forbidden("User is banned", nil)
	}

	return user, nil
}

// GetUserByID gets a user by ID
func (s *DefaultService) GetUserByID(ctx context.Context, id uint64) (*domain.User, error) {
	user, err := s.repository.FindByID(ctx, id)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("User not found", err)
		}
		return nil, errors.Internal(err)
	}
	return user, nil
}

func (s *DefaultService) IncreaseTokenVersion(ctx context.Context, id uint64) error {
	if err := s.repository.IncrementTokenVersion(ctx, id); err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("User not found", err)
		}
		return errors.Internal(err)
	}
	return nil
}

// BanUser bans the target, revokes their tokens and retires their notes.
// Banning is idempotent; a second call just finds nothing left to retire.
func (s *DefaultService) BanUser(ctx context.Context, adminID, targetID uint64) (int64, error) {
	if adminID == targetID {
		return 0, errors.UnprocessableEntity("Can't ban yourself!", nil)
	}

	if err := s.repository.Ban(ctx, targetID); err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return 0, errors.NotFound("User not found", err)
		}
		return 0, errors.Internal(err)
	}

	retired, err := s.notes.RetireOwnerNotes(ctx, targetID)
	if err != nil {
		return 0, err
	}

	s.log.Info("user banned",
		zap.Uint64(logger.FieldUID, targetID),
		zap.Uint64("admin", adminID),
		zap.Int64("retired_notes", retired))
	return retired, nil
}

// ListUsers lists the users an admin can still act on
func (s *DefaultService) ListUsers(ctx context.Context) ([]domain.SafeUser, error) {
	users, err := s.repository.ListActive(ctx)
	if err != nil {
		return nil, errors.Internal(err)
	}

	result := make([]domain.SafeUser, 0, len(users))
	for i := range users {
		result = append(result, users[i].ToSafeUser())
	}
	return result, nil
}
