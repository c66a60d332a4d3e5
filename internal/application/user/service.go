package user

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/altrivo/auth-service/internal/domain"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldName      = "name"
	fieldEmail     = "email"
	fieldPhone     = "phone"
	fieldRole      = "role"
	fieldAvatarKey = "avatar_key"
)

const avatarURLTTL = 15 * time.Minute

type Service interface {
	List(ctx context.Context, limit int, cursor string) ([]domain.User, string, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error)
	Delete(ctx context.Context, userID string) error
	UploadAvatar(ctx context.Context, userID, filename string, r io.Reader) (string, error)
	AvatarURL(ctx context.Context, userID string) (string, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	SoftDelete(ctx context.Context, userID string) error
	ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error)
}

type sessionStore interface {
	SoftDeleteByUser(ctx context.Context, userID string) error
}

type objectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type contentTyper func(filename string) string

type service struct {
	repo        userStore
	sessionRepo sessionStore
	avatars     objectStore
	contentType contentTyper
}

func NewService(repo userStore, sessionRepo sessionStore, avatars objectStore, contentType contentTyper) Service {
	return &service{
		repo:        repo,
		sessionRepo: sessionRepo,
		avatars:     avatars,
		contentType: contentType,
	}
}

func (s *service) List(ctx context.Context, limit int, cursor string) ([]domain.User, string, error) {
	if limit < 1 {
		limit = 50
	}
	return s.repo.ScanPage(ctx, int32(limit), cursor)
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}

func (s *service) Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error) {
	updates := map[string]interface{}{}
	if req.Name != nil {
		updates[fieldName] = *req.Name
	}
	if req.Email != nil {
		updates[fieldEmail] = *req.Email
	}
	if req.Phone != nil {
		updates[fieldPhone] = *req.Phone
	}
	if req.Role != nil {
		switch *req.Role {
		case domain.RoleAdmin, domain.RoleUser:
			updates[fieldRole] = *req.Role
		default:
			return nil, fmt.Errorf("invalid role: %w", domain.ErrBadRequest)
		}
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, userID)
	}
	if err := s.repo.Update(ctx, userID, updates); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID)
}

func (s *service) Delete(ctx context.Context, userID string) error {
	if err := s.repo.SoftDelete(ctx, userID); err != nil {
		return err
	}
	return s.sessionRepo.SoftDeleteByUser(ctx, userID)
}

func (s *service) UploadAvatar(ctx context.Context, userID, filename string, r io.Reader) (string, error) {
	if _, err := s.repo.Get(ctx, userID); err != nil {
		return "", err
	}
	key := fmt.Sprintf("avatars/%s/%s", userID, filename)
	if _, err := s.avatars.Upload(ctx, key, r, s.contentType(filename)); err != nil {
		return "", err
	}
	if err := s.repo.Update(ctx, userID, map[string]interface{}{fieldAvatarKey: key}); err != nil {
		return "", err
	}
	return key, nil
}

func (s *service) AvatarURL(ctx context.Context, userID string) (string, error) {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.AvatarKey == "" {
		return "", fmt.Errorf("no avatar set: %w", domain.ErrNotFound)
	}
	return s.avatars.PresignedURL(ctx, u.AvatarKey, avatarURLTTL)
}
