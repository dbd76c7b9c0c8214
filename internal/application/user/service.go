package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thrifthaven-api/internal/domain"
	"github.com/thrifthaven-api/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

// User attribute names used in partial update maps.
const (
	fieldUsername      = "username"
	fieldPhone         = "phone"
	fieldLocation      = "location"
	fieldPictureFileID = "picture_file_id"
	fieldRole          = "role"
)

type Service interface {
	Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, req domain.UpdateProfileRequest, isAdmin bool) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Delete(ctx context.Context, userID string) error
}

type userStore interface {
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	SoftDelete(ctx context.Context, userID string) error
	ScanEnabled(ctx context.Context) ([]domain.User, error)
}

type sessionStore interface {
	SoftDeleteByUser(ctx context.Context, userID string) error
}

type service struct {
	repo     userStore
	sessions sessionStore
}

func NewService(repo userStore, sessions sessionStore) Service {
	return &service{repo: repo, sessions: sessions}
}

// Register creates an account from the signup request. The email doubles as
// the initial username.
func (s *service) Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Username:     req.Email,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		Enable:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Put(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}

func (s *service) Update(ctx context.Context, userID string, req domain.UpdateProfileRequest, isAdmin bool) (*domain.User, error) {
	updates := map[string]interface{}{}
	if req.Username != nil {
		existing, err := s.repo.GetByUsername(ctx, *req.Username)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if existing != nil && existing.UserID != userID {
			return nil, fmt.Errorf("username already taken: %w", domain.ErrConflict)
		}
		updates[fieldUsername] = *req.Username
	}
	if req.Phone != nil {
		updates[fieldPhone] = *req.Phone
	}
	if req.Location != nil {
		updates[fieldLocation] = *req.Location
	}
	if req.PictureFileID != nil {
		updates[fieldPictureFileID] = *req.PictureFileID
	}
	if req.Role != nil {
		if !isAdmin {
			return nil, fmt.Errorf("only admins can change roles: %w", domain.ErrForbidden)
		}
		if *req.Role != domain.RoleAdmin && *req.Role != domain.RoleUser {
			return nil, fmt.Errorf("unknown role %q: %w", *req.Role, domain.ErrBadRequest)
		}
		updates[fieldRole] = *req.Role
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, userID)
	}
	if err := s.repo.Update(ctx, userID, updates); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID)
}

func (s *service) List(ctx context.Context) ([]domain.User, error) {
	return s.repo.ScanEnabled(ctx)
}

// Delete disables the account and every session it owns, so outstanding
// refresh tokens stop working immediately.
func (s *service) Delete(ctx context.Context, userID string) error {
	if _, err := s.repo.Get(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, userID); err != nil {
		return err
	}
	return s.sessions.SoftDeleteByUser(ctx, userID)
}
