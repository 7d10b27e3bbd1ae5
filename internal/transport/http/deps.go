package http

import (
	"context"
	"time"

	"github.com/go-pregnancy-family/internal/application/auth"
	"github.com/go-pregnancy-family/internal/application/family"
	"github.com/go-pregnancy-family/internal/application/notification"
	"github.com/go-pregnancy-family/internal/application/session"
	"github.com/go-pregnancy-family/internal/application/user"
	"github.com/go-pregnancy-family/internal/application/verification"
	"github.com/go-pregnancy-family/internal/config"
	"github.com/go-pregnancy-family/internal/domain"
	"github.com/go-pregnancy-family/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-pregnancy-family/internal/infrastructure/jwt"
	s3infra "github.com/go-pregnancy-family/internal/infrastructure/s3"
	"github.com/go-pregnancy-family/internal/infrastructure/sns"
)

// CodeStore is satisfied by both dynamo.VerificationRepo and redis.CodeStore.
type CodeStore interface {
	Save(ctx context.Context, v *domain.VerificationCode, cooldown time.Duration) error
	Get(ctx context.Context, phone string, purpose domain.CodePurpose) (*domain.VerificationCode, error)
	MarkDelivered(ctx context.Context, phone string, purpose domain.CodePurpose, issuedAt int64) error
	Discard(ctx context.Context, phone string, purpose domain.CodePurpose, issuedAt int64) error
	Consume(ctx context.Context, phone string, purpose domain.CodePurpose, codeHash string, now time.Time, maxAttempts int) error
	RecordFailure(ctx context.Context, phone string, purpose domain.CodePurpose, issuedAt int64) error
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo         *dynamo.UserRepo
	SessionRepo      *dynamo.SessionRepo
	FamilyRepo       *dynamo.FamilyRepo
	NotificationRepo *dynamo.NotificationRepo
	CodeStore        CodeStore
	SMSSender        sns.SMSSender
	Avatars          *s3infra.Store
	JWTProvider      *jwtinfra.Provider
}

// Services is the application layer the handlers call into.
type Services struct {
	Auth          auth.Service
	Sessions      session.Service
	Users         user.Service
	Families      family.Service
	Notifications notification.Service
}

// NewServices wires the application services over deps.
func NewServices(cfg *config.Config, deps *Deps) *Services {
	sessions := session.NewService(session.ServiceDeps{
		SessionRepo: deps.SessionRepo,
		JWTProvider: deps.JWTProvider,
		TokenExpiry: cfg.TokenExpiry(),
	})
	codes := verification.NewService(verification.ServiceDeps{
		Store:       deps.CodeStore,
		Sender:      deps.SMSSender,
		TTL:         cfg.VerifyCodeTTL,
		Cooldown:    cfg.VerifyCodeCooldown,
		MaxAttempts: cfg.VerifyMaxAttempts,
		Pepper:      cfg.VerifyCodePepper,
	})
	users := user.NewService(user.ServiceDeps{
		UserRepo:       deps.UserRepo,
		SessionRepo:    deps.SessionRepo,
		Avatars:        deps.Avatars,
		AvatarMaxBytes: cfg.AvatarMaxBytes,
	})
	notifications := notification.NewService(notification.ServiceDeps{Repo: deps.NotificationRepo})
	families := family.NewService(family.ServiceDeps{
		FamilyRepo:  deps.FamilyRepo,
		Users:       users,
		Notifier:    notifications,
		InviteTTL:   cfg.InviteCodeTTL,
		MemberLimit: cfg.FamilyMemberLimit,
	})
	return &Services{
		Auth: auth.NewService(auth.ServiceDeps{
			Codes:            codes,
			Sessions:         sessions,
			Users:            users,
			Families:         families,
			InvitePolicy:     cfg.InviteFailurePolicy,
			AutoCreateFamily: cfg.AutoCreateFamily,
		}),
		Sessions:      sessions,
		Users:         users,
		Families:      families,
		Notifications: notifications,
	}
}
