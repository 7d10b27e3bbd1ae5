package user

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-pregnancy-family/internal/domain"
	"github.com/go-pregnancy-family/internal/pkg/id"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldNickname  = "nickname"
	fieldGender    = "gender"
	fieldAvatarURL = "avatar_url"
)

// avatarTypes maps accepted avatar content types to file extensions.
var avatarTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

type Service interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	FindByPhone(ctx context.Context, phone string) (*domain.User, error)
	Create(ctx context.Context, in domain.CreateUserInput) (*domain.User, error)
	Disable(ctx context.Context, userID string) (*domain.User, error)
	Enable(ctx context.Context, userID string) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error)
	UploadAvatar(ctx context.Context, userID string, r io.Reader, size int64, contentType string) (*domain.User, error)
}

type userStore interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) (*domain.User, error)
	SetStatus(ctx context.Context, userID string, status domain.UserStatus) (*domain.User, error)
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
}

type sessionStore interface {
	DisableByUser(ctx context.Context, userID string) error
}

type avatarStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

type service struct {
	repo           userStore
	sessionRepo    sessionStore
	avatars        avatarStore
	avatarMaxBytes int64
	now            func() time.Time
	newID          id.Generator
}

type ServiceDeps struct {
	UserRepo       userStore
	SessionRepo    sessionStore
	Avatars        avatarStore
	AvatarMaxBytes int64
	Now            func() time.Time
	NewID          id.Generator
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:           deps.UserRepo,
		sessionRepo:    deps.SessionRepo,
		avatars:        deps.Avatars,
		avatarMaxBytes: deps.AvatarMaxBytes,
		now:            deps.Now,
		newID:          deps.NewID,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = id.New
	}
	return s
}

// notFound translates a repository miss into ErrUserNotFound.
func notFound(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrUserNotFound
	}
	return domain.StoreFailure(err)
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (s *service) FindByPhone(ctx context.Context, phone string) (*domain.User, error) {
	u, err := s.repo.GetByPhone(ctx, phone)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (s *service) Create(ctx context.Context, in domain.CreateUserInput) (*domain.User, error) {
	if _, ok := domain.ParseRoleType(string(in.RoleType)); !ok {
		return nil, domain.ErrParam.WithMessage("角色类型不正确")
	}
	now := s.now().UTC()
	u := &domain.User{
		UserID:    s.newID(),
		Phone:     in.Phone,
		Nickname:  in.Nickname,
		Gender:    in.Gender,
		RoleType:  in.RoleType,
		Status:    domain.StatusEnabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.ErrPhoneAlreadyExists.Wrap(err)
		}
		return nil, domain.StoreFailure(err)
	}
	return u, nil
}

// Disable blocks authentication and revokes every session the user holds.
func (s *service) Disable(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.repo.SetStatus(ctx, userID, domain.StatusDisabled)
	if err != nil {
		return nil, notFound(err)
	}
	if err := s.sessionRepo.DisableByUser(ctx, userID); err != nil {
		return nil, domain.StoreFailure(err)
	}
	return u, nil
}

func (s *service) Enable(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.repo.SetStatus(ctx, userID, domain.StatusEnabled)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (s *service) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	if err := s.repo.TouchLastLogin(ctx, userID, at); err != nil {
		return notFound(err)
	}
	return nil
}

func (s *service) UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error) {
	updates := map[string]interface{}{}
	if req.Nickname != nil {
		updates[fieldNickname] = *req.Nickname
	}
	if req.Gender != nil {
		updates[fieldGender] = domain.Gender(*req.Gender)
	}
	if len(updates) == 0 {
		return s.Get(ctx, userID)
	}
	u, err := s.repo.Update(ctx, userID, updates)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (s *service) UploadAvatar(ctx context.Context, userID string, r io.Reader, size int64, contentType string) (*domain.User, error) {
	ext, ok := avatarTypes[contentType]
	if !ok {
		return nil, domain.ErrFileTypeNotSupported
	}
	if size <= 0 || size > s.avatarMaxBytes {
		return nil, domain.ErrFileSizeExceeded
	}
	key := fmt.Sprintf("avatars/%s/%s.%s", userID, s.newID(), ext)
	url, err := s.avatars.Upload(ctx, key, r, size, contentType)
	if err != nil {
		return nil, domain.ErrFileUploadFailed.Wrap(err)
	}
	u, err := s.repo.Update(ctx, userID, map[string]interface{}{fieldAvatarURL: url})
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}
