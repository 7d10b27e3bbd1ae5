package handler

import (
	"context"
	"io"
	"time"

	"github.com/go-pregnancy-family/internal/domain"
	"github.com/stretchr/testify/mock"
)

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) SendCode(ctx context.Context, phone, purpose string) error {
	return m.Called(ctx, phone, purpose).Error(0)
}
func (m *mockAuthSvc) Register(ctx context.Context, req domain.RegisterRequest) (*domain.LoginResponse, error) {
	return loginResult(m.Called(ctx, req))
}
func (m *mockAuthSvc) Login(ctx context.Context, phone, code string) (*domain.LoginResponse, error) {
	return loginResult(m.Called(ctx, phone, code))
}
func (m *mockAuthSvc) Logout(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}
func (m *mockAuthSvc) RefreshToken(ctx context.Context, p *domain.Principal) (*domain.LoginResponse, error) {
	return loginResult(m.Called(ctx, p))
}
func (m *mockAuthSvc) GetUserInfo(ctx context.Context, userID string) (*domain.LoginResponse, error) {
	return loginResult(m.Called(ctx, userID))
}

func loginResult(args mock.Arguments) (*domain.LoginResponse, error) {
	if r, _ := args.Get(0).(*domain.LoginResponse); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockUserSvc struct{ mock.Mock }

func (m *mockUserSvc) Get(ctx context.Context, userID string) (*domain.User, error) {
	return userResult(m.Called(ctx, userID))
}
func (m *mockUserSvc) FindByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return userResult(m.Called(ctx, phone))
}
func (m *mockUserSvc) Create(ctx context.Context, in domain.CreateUserInput) (*domain.User, error) {
	return userResult(m.Called(ctx, in))
}
func (m *mockUserSvc) Disable(ctx context.Context, userID string) (*domain.User, error) {
	return userResult(m.Called(ctx, userID))
}
func (m *mockUserSvc) Enable(ctx context.Context, userID string) (*domain.User, error) {
	return userResult(m.Called(ctx, userID))
}
func (m *mockUserSvc) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	return m.Called(ctx, userID, at).Error(0)
}
func (m *mockUserSvc) UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error) {
	return userResult(m.Called(ctx, userID, req))
}
func (m *mockUserSvc) UploadAvatar(ctx context.Context, userID string, r io.Reader, size int64, contentType string) (*domain.User, error) {
	body, _ := io.ReadAll(r)
	return userResult(m.Called(ctx, userID, string(body), size, contentType))
}

func userResult(args mock.Arguments) (*domain.User, error) {
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockFamilySvc struct{ mock.Mock }

func (m *mockFamilySvc) CreateFamily(ctx context.Context, ownerID, name string) (*domain.FamilyView, error) {
	return viewResult(m.Called(ctx, ownerID, name))
}
func (m *mockFamilySvc) CheckInviteCode(ctx context.Context, code string) (*domain.Family, error) {
	return familyResult(m.Called(ctx, code))
}
func (m *mockFamilySvc) JoinByInviteCode(ctx context.Context, userID, code string) (*domain.FamilyView, error) {
	return viewResult(m.Called(ctx, userID, code))
}
func (m *mockFamilySvc) Leave(ctx context.Context, userID, familyID string) error {
	return m.Called(ctx, userID, familyID).Error(0)
}
func (m *mockFamilySvc) GetForUser(ctx context.Context, userID string) (*domain.FamilyView, error) {
	return viewResult(m.Called(ctx, userID))
}
func (m *mockFamilySvc) Members(ctx context.Context, userID, familyID string) ([]domain.FamilyMembership, error) {
	args := m.Called(ctx, userID, familyID)
	list, _ := args.Get(0).([]domain.FamilyMembership)
	return list, args.Error(1)
}
func (m *mockFamilySvc) RegenerateInviteCode(ctx context.Context, userID, familyID string) (*domain.Family, error) {
	return familyResult(m.Called(ctx, userID, familyID))
}
func (m *mockFamilySvc) UpdatePregnancy(ctx context.Context, userID, familyID string, req domain.UpdatePregnancyRequest) (*domain.Family, error) {
	return familyResult(m.Called(ctx, userID, familyID, req))
}

func viewResult(args mock.Arguments) (*domain.FamilyView, error) {
	if v, _ := args.Get(0).(*domain.FamilyView); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func familyResult(args mock.Arguments) (*domain.Family, error) {
	if f, _ := args.Get(0).(*domain.Family); f != nil {
		return f, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockNotificationSvc struct{ mock.Mock }

func (m *mockNotificationSvc) ListUnread(ctx context.Context, userID string) ([]domain.Notification, error) {
	args := m.Called(ctx, userID)
	list, _ := args.Get(0).([]domain.Notification)
	return list, args.Error(1)
}
func (m *mockNotificationSvc) MarkRead(ctx context.Context, userID, notificationID string) (*domain.Notification, error) {
	args := m.Called(ctx, userID, notificationID)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockNotificationSvc) Broadcast(ctx context.Context, familyID string, recipients []string, kind domain.NotificationKind, message string) error {
	return m.Called(ctx, familyID, recipients, kind, message).Error(0)
}
