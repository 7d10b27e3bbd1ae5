package session

import (
	"context"
	"errors"
	"time"

	"github.com/go-pregnancy-family/internal/domain"
	jwtinfra "github.com/go-pregnancy-family/internal/infrastructure/jwt"
	"github.com/go-pregnancy-family/internal/pkg/id"
)

// TokenType is reported to clients alongside the access token.
const TokenType = "Bearer"

// Service issues and checks access tokens. Each token is backed by a session record,
// so it can be revoked before it expires.
type Service interface {
	Issue(ctx context.Context, userID string) (*domain.Token, error)
	Validate(ctx context.Context, token string) (*domain.Principal, error)
	Revoke(ctx context.Context, sessionID string) error
	RevokeAll(ctx context.Context, userID string) error
	// Refresh replaces the principal's session with a new one. The old token stops working.
	Refresh(ctx context.Context, p *domain.Principal) (*domain.Token, error)
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Disable(ctx context.Context, sessionID string) error
	Rotate(ctx context.Context, prevID string, next *domain.Session) error
	DisableByUser(ctx context.Context, userID string) error
}

type jwtSigner interface {
	Sign(userID, sessionID string, expiresAt time.Time) (string, error)
	Verify(token string) (*jwtinfra.Claims, error)
}

type service struct {
	repo   sessionStore
	signer jwtSigner
	expiry time.Duration
	now    func() time.Time
	newID  id.Generator
}

type ServiceDeps struct {
	SessionRepo sessionStore
	JWTProvider jwtSigner
	TokenExpiry time.Duration
	Now         func() time.Time
	NewID       id.Generator
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:   deps.SessionRepo,
		signer: deps.JWTProvider,
		expiry: deps.TokenExpiry,
		now:    deps.Now,
		newID:  deps.NewID,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = id.New
	}
	return s
}

func (s *service) newSession(userID string) *domain.Session {
	now := s.now().UTC()
	exp := now.Add(s.expiry)
	return &domain.Session{
		SessionID: s.newID(),
		UserID:    userID,
		Enable:    true,
		IssuedAt:  now,
		ExpiresAt: exp,
		PurgeAt:   exp.Add(24 * time.Hour).Unix(),
		UpdatedAt: now,
	}
}

func (s *service) token(sess *domain.Session) (*domain.Token, error) {
	signed, err := s.signer.Sign(sess.UserID, sess.SessionID, sess.ExpiresAt)
	if err != nil {
		return nil, domain.ErrSystem.Wrap(err)
	}
	return &domain.Token{
		AccessToken: signed,
		TokenType:   TokenType,
		SessionID:   sess.SessionID,
		ExpiresAt:   sess.ExpiresAt,
	}, nil
}

func (s *service) Issue(ctx context.Context, userID string) (*domain.Token, error) {
	sess := s.newSession(userID)
	if err := s.repo.Put(ctx, sess); err != nil {
		return nil, domain.StoreFailure(err)
	}
	return s.token(sess)
}

func (s *service) Validate(ctx context.Context, token string) (*domain.Principal, error) {
	claims, err := s.signer.Verify(token)
	if errors.Is(err, domain.ErrExpired) {
		return nil, domain.ErrLoginExpired
	}
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}
	sess, err := s.repo.Get(ctx, claims.SessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrTokenInvalid
	}
	if err != nil {
		return nil, domain.StoreFailure(err)
	}
	if sess.UserID != claims.UserID || !sess.Enable {
		return nil, domain.ErrTokenInvalid
	}
	if !s.now().Before(sess.ExpiresAt) {
		return nil, domain.ErrLoginExpired
	}
	return &domain.Principal{UserID: sess.UserID, SessionID: sess.SessionID, ExpiresAt: sess.ExpiresAt}, nil
}

func (s *service) Revoke(ctx context.Context, sessionID string) error {
	return domain.StoreFailure(s.repo.Disable(ctx, sessionID))
}

func (s *service) RevokeAll(ctx context.Context, userID string) error {
	return domain.StoreFailure(s.repo.DisableByUser(ctx, userID))
}

func (s *service) Refresh(ctx context.Context, p *domain.Principal) (*domain.Token, error) {
	next := s.newSession(p.UserID)
	err := s.repo.Rotate(ctx, p.SessionID, next)
	if errors.Is(err, domain.ErrCondition) {
		return nil, domain.ErrTokenInvalid
	}
	if err != nil {
		return nil, domain.StoreFailure(err)
	}
	return s.token(next)
}
