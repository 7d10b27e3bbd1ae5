package verification

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-pregnancy-family/internal/domain"
	pkgtoken "github.com/go-pregnancy-family/internal/pkg/token"
)

// CodeLength is the number of digits in a verification code.
const CodeLength = 6

// purgeGrace keeps an expired record around long enough to report it as expired.
const purgeGrace = time.Hour

const messageTemplate = "【孕育家】您的验证码是%s，%d分钟内有效，请勿泄露给他人。"

type Service interface {
	// Issue generates, stores and sends a code for (phone, purpose), replacing any earlier one.
	Issue(ctx context.Context, phone string, purpose domain.CodePurpose) (string, error)
	// Verify consumes the code. It succeeds at most once per issued code.
	Verify(ctx context.Context, phone string, purpose domain.CodePurpose, code string) error
}

type codeStore interface {
	Save(ctx context.Context, v *domain.VerificationCode, cooldown time.Duration) error
	Get(ctx context.Context, phone string, purpose domain.CodePurpose) (*domain.VerificationCode, error)
	MarkDelivered(ctx context.Context, phone string, purpose domain.CodePurpose, issuedAt int64) error
	Discard(ctx context.Context, phone string, purpose domain.CodePurpose, issuedAt int64) error
	Consume(ctx context.Context, phone string, purpose domain.CodePurpose, codeHash string, now time.Time, maxAttempts int) error
	RecordFailure(ctx context.Context, phone string, purpose domain.CodePurpose, issuedAt int64) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type service struct {
	store       codeStore
	sender      smsSender
	ttl         time.Duration
	cooldown    time.Duration
	maxAttempts int
	pepper      []byte
	now         func() time.Time
	generate    func() (string, error)
}

type ServiceDeps struct {
	Store       codeStore
	Sender      smsSender
	TTL         time.Duration
	Cooldown    time.Duration
	MaxAttempts int
	Pepper      string
	// Now and Generate default to time.Now and a random numeric code.
	Now      func() time.Time
	Generate func() (string, error)
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		store:       deps.Store,
		sender:      deps.Sender,
		ttl:         deps.TTL,
		cooldown:    deps.Cooldown,
		maxAttempts: deps.MaxAttempts,
		pepper:      []byte(deps.Pepper),
		now:         deps.Now,
		generate:    deps.Generate,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.generate == nil {
		s.generate = func() (string, error) { return pkgtoken.NewNumericCode(CodeLength) }
	}
	return s
}

func (s *service) digest(phone string, purpose domain.CodePurpose, code string) (string, error) {
	return pkgtoken.Digest(s.pepper, phone, string(purpose), code)
}

func (s *service) Issue(ctx context.Context, phone string, purpose domain.CodePurpose) (string, error) {
	code, err := s.generate()
	if err != nil {
		return "", domain.ErrSystem.Wrap(err)
	}
	hash, err := s.digest(phone, purpose, code)
	if err != nil {
		return "", domain.ErrSystem.Wrap(err)
	}
	now := s.now()
	v := &domain.VerificationCode{
		Phone:     phone,
		Purpose:   purpose,
		CodeHash:  hash,
		IssuedAt:  now.UnixMilli(),
		ExpiresAt: now.Add(s.ttl).UnixMilli(),
		PurgeAt:   now.Add(s.ttl + purgeGrace).Unix(),
	}
	if err := s.store.Save(ctx, v, s.cooldown); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return "", domain.ErrTooManyRequests.WithMessage("验证码发送过于频繁，请稍后再试").Wrap(err)
		}
		return "", domain.StoreFailure(err)
	}

	msg := fmt.Sprintf(messageTemplate, code, int(s.ttl.Minutes()))
	if err := s.sender.SendSMS(ctx, phone, msg); err != nil {
		if dErr := s.store.Discard(context.WithoutCancel(ctx), phone, purpose, v.IssuedAt); dErr != nil {
			slog.Warn("failed to discard undelivered code", "purpose", purpose, "err", dErr)
		}
		return "", domain.ErrDeliveryFailed.Wrap(err)
	}
	if err := s.store.MarkDelivered(ctx, phone, purpose, v.IssuedAt); err != nil {
		return "", domain.StoreFailure(err)
	}
	return code, nil
}

func (s *service) Verify(ctx context.Context, phone string, purpose domain.CodePurpose, code string) error {
	v, err := s.store.Get(ctx, phone, purpose)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrCodeInvalid
	}
	if err != nil {
		return domain.StoreFailure(err)
	}
	now := s.now()
	if !v.Delivered || v.Consumed {
		return domain.ErrCodeInvalid
	}
	if v.Expired(now) {
		return domain.ErrCodeExpired
	}
	if v.Attempts >= s.maxAttempts {
		return domain.ErrCodeInvalid
	}

	hash, err := s.digest(phone, purpose, code)
	if err != nil {
		return domain.ErrSystem.Wrap(err)
	}
	if subtle.ConstantTimeCompare([]byte(hash), []byte(v.CodeHash)) != 1 {
		if err := s.store.RecordFailure(ctx, phone, purpose, v.IssuedAt); err != nil {
			slog.Warn("failed to record verification attempt", "purpose", purpose, "err", err)
		}
		return domain.ErrCodeInvalid
	}
	if err := s.store.Consume(ctx, phone, purpose, hash, now, s.maxAttempts); err != nil {
		if errors.Is(err, domain.ErrCondition) {
			return domain.ErrCodeInvalid
		}
		return domain.StoreFailure(err)
	}
	return nil
}
