package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-pregnancy-family/internal/config"
	"github.com/go-pregnancy-family/internal/domain"
	"github.com/go-pregnancy-family/internal/pkg/validate"
)

// Service drives a phone through code issue, verification and session issue.
type Service interface {
	SendCode(ctx context.Context, phone, purpose string) error
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.LoginResponse, error)
	Login(ctx context.Context, phone, code string) (*domain.LoginResponse, error)
	Logout(ctx context.Context, userID string) error
	RefreshToken(ctx context.Context, p *domain.Principal) (*domain.LoginResponse, error)
	GetUserInfo(ctx context.Context, userID string) (*domain.LoginResponse, error)
}

type codeIssuer interface {
	Issue(ctx context.Context, phone string, purpose domain.CodePurpose) (string, error)
	Verify(ctx context.Context, phone string, purpose domain.CodePurpose, code string) error
}

type sessionIssuer interface {
	Issue(ctx context.Context, userID string) (*domain.Token, error)
	RevokeAll(ctx context.Context, userID string) error
	Refresh(ctx context.Context, p *domain.Principal) (*domain.Token, error)
}

type userDirectory interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	FindByPhone(ctx context.Context, phone string) (*domain.User, error)
	Create(ctx context.Context, in domain.CreateUserInput) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

type familyRegistry interface {
	CreateFamily(ctx context.Context, ownerID, name string) (*domain.FamilyView, error)
	CheckInviteCode(ctx context.Context, code string) (*domain.Family, error)
	JoinByInviteCode(ctx context.Context, userID, code string) (*domain.FamilyView, error)
	GetForUser(ctx context.Context, userID string) (*domain.FamilyView, error)
}

type service struct {
	codes            codeIssuer
	sessions         sessionIssuer
	users            userDirectory
	families         familyRegistry
	invitePolicy     string
	autoCreateFamily bool
	now              func() time.Time
}

type ServiceDeps struct {
	Codes    codeIssuer
	Sessions sessionIssuer
	Users    userDirectory
	Families familyRegistry
	// InvitePolicy is config.InvitePolicyWarn or config.InvitePolicyReject.
	InvitePolicy     string
	AutoCreateFamily bool
	Now              func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		codes:            deps.Codes,
		sessions:         deps.Sessions,
		users:            deps.Users,
		families:         deps.Families,
		invitePolicy:     deps.InvitePolicy,
		autoCreateFamily: deps.AutoCreateFamily,
		now:              deps.Now,
	}
	if s.invitePolicy == "" {
		s.invitePolicy = config.InvitePolicyWarn
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SendCode issues a code for purpose. Register codes are refused for taken phones and
// login codes for unknown ones, so no SMS is spent on a flow that cannot succeed.
func (s *service) SendCode(ctx context.Context, phone, purpose string) error {
	p, ok := domain.ParsePurpose(purpose)
	if !ok {
		return domain.ErrParam.WithMessage("验证码类型不正确")
	}
	if !validate.Phone(phone) {
		return domain.CodeInvalidPhone.Err()
	}
	_, err := s.users.FindByPhone(ctx, phone)
	switch {
	case err == nil && p == domain.PurposeRegister:
		return domain.ErrPhoneAlreadyExists
	case errors.Is(err, domain.ErrUserNotFound) && p != domain.PurposeRegister:
		return domain.ErrUserNotFound
	case err != nil && !errors.Is(err, domain.ErrUserNotFound):
		return err
	}
	_, err = s.codes.Issue(ctx, phone, p)
	return err
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.LoginResponse, error) {
	role, ok := domain.ParseRoleType(req.RoleType)
	if !ok {
		return nil, domain.ErrParam.WithMessage("角色类型不正确")
	}
	if req.InviteCode != "" && s.invitePolicy == config.InvitePolicyReject {
		if _, err := s.families.CheckInviteCode(ctx, req.InviteCode); err != nil {
			return nil, err
		}
	}
	if err := s.codes.Verify(ctx, req.Phone, domain.PurposeRegister, req.VerifyCode); err != nil {
		return nil, err
	}

	in := domain.CreateUserInput{Phone: req.Phone, Nickname: req.Nickname, RoleType: role}
	if req.Gender != nil {
		in.Gender = domain.Gender(*req.Gender)
	}
	u, err := s.users.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	var joinErr *domain.FamilyJoinErr
	switch {
	case req.InviteCode != "":
		if _, err := s.families.JoinByInviteCode(ctx, u.UserID, req.InviteCode); err != nil {
			if s.invitePolicy == config.InvitePolicyReject {
				return nil, err
			}
			slog.Warn("invite code not redeemed at registration", "user_id", u.UserID, "error", err)
			joinErr = familyJoinErr(err)
		}
	case role == domain.RolePregnant && s.autoCreateFamily:
		if _, err := s.families.CreateFamily(ctx, u.UserID, u.Nickname+"的家庭"); err != nil {
			slog.Warn("auto create family failed", "user_id", u.UserID, "error", err)
		}
	}

	tok, err := s.sessions.Issue(ctx, u.UserID)
	if err != nil {
		return nil, err
	}
	resp, err := s.response(ctx, u, tok)
	if err != nil {
		return nil, err
	}
	resp.FamilyJoinError = joinErr
	return resp, nil
}

func (s *service) Login(ctx context.Context, phone, code string) (*domain.LoginResponse, error) {
	u, err := s.users.FindByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if !u.Enabled() {
		return nil, domain.ErrUserDisabled
	}
	if err := s.codes.Verify(ctx, phone, domain.PurposeLogin, code); err != nil {
		return nil, err
	}
	at := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, u.UserID, at); err != nil {
		slog.Warn("update last login", "user_id", u.UserID, "error", err)
	} else {
		u.LastLoginAt = &at
	}
	tok, err := s.sessions.Issue(ctx, u.UserID)
	if err != nil {
		return nil, err
	}
	return s.response(ctx, u, tok)
}

func (s *service) Logout(ctx context.Context, userID string) error {
	if err := s.sessions.RevokeAll(ctx, userID); err != nil {
		return domain.CodeLogoutFailed.Err().Wrap(err)
	}
	return nil
}

func (s *service) RefreshToken(ctx context.Context, p *domain.Principal) (*domain.LoginResponse, error) {
	u, err := s.users.Get(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if !u.Enabled() {
		return nil, domain.ErrUserDisabled
	}
	tok, err := s.sessions.Refresh(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.response(ctx, u, tok)
}

func (s *service) GetUserInfo(ctx context.Context, userID string) (*domain.LoginResponse, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.response(ctx, u, nil)
}

// response assembles the session payload. tok is nil for plain info reads.
func (s *service) response(ctx context.Context, u *domain.User, tok *domain.Token) (*domain.LoginResponse, error) {
	resp := &domain.LoginResponse{
		UserID:       u.UserID,
		Phone:        u.Phone,
		Nickname:     u.Nickname,
		AvatarURL:    u.AvatarURL,
		Gender:       u.Gender,
		GenderName:   domain.GenderName(u.Gender),
		RoleType:     u.RoleType,
		RoleTypeName: domain.RoleTypeName(u.RoleType),
	}
	if tok != nil {
		exp := tok.ExpiresAt
		resp.AccessToken, resp.TokenType, resp.ExpiresAt = tok.AccessToken, tok.TokenType, &exp
	}

	view, err := s.families.GetForUser(ctx, u.UserID)
	if err != nil && !errors.Is(err, domain.ErrFamilyMemberNotFound) {
		return nil, err
	}
	if view == nil {
		resp.Permissions = domain.Permissions(nil)
		return resp, nil
	}
	resp.FamilyInfo = &domain.FamilyInfo{
		FamilyID:    view.Family.FamilyID,
		FamilyName:  view.Family.Name,
		FamilyRole:  view.Membership.FamilyRole,
		InviteCode:  view.Family.InviteCode,
		MemberCount: view.Family.MemberCount,
		JoinedAt:    view.Membership.JoinedAt,
	}
	resp.PregnancyInfo = domain.FamilyPregnancy(view.Family, s.now())
	resp.Permissions = domain.Permissions(view.Membership)
	return resp, nil
}

func familyJoinErr(err error) *domain.FamilyJoinErr {
	var de *domain.Error
	if errors.As(err, &de) {
		return &domain.FamilyJoinErr{Code: de.Code.Value, Message: de.Message()}
	}
	return &domain.FamilyJoinErr{Code: domain.CodeSystemError.Value, Message: domain.CodeSystemError.Message}
}
