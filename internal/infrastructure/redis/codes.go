package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-pregnancy-family/internal/config"
	"github.com/go-pregnancy-family/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient creates a Redis client whose socket timeouts follow the store timeout.
func NewClient(cfg *config.Config) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  cfg.StoreTimeout,
		ReadTimeout:  cfg.StoreTimeout,
		WriteTimeout: cfg.StoreTimeout,
	})
}

// markDelivered sets delivered=1 if the stored code is still the one issued at ARGV[1].
var markDelivered = goredis.NewScript(`
if redis.call('HGET', KEYS[1], 'issued_at') ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'delivered', '1')
return 1
`)

// discard removes the code and its cooldown if the stored code is still the one issued at ARGV[1].
var discard = goredis.NewScript(`
if redis.call('HGET', KEYS[1], 'issued_at') ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[1], KEYS[2])
return 1
`)

// consume is the atomic check-and-consume: ARGV = hash, now (ms), max attempts.
var consume = goredis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'code_hash', 'expires_at', 'consumed', 'delivered', 'attempts')
if not v[1] then
  return 0
end
if v[1] ~= ARGV[1] or v[3] ~= '0' or v[4] ~= '1' then
  return 0
end
if tonumber(v[2]) <= tonumber(ARGV[2]) or tonumber(v[5]) >= tonumber(ARGV[3]) then
  return 0
end
redis.call('HSET', KEYS[1], 'consumed', '1')
return 1
`)

var recordFailure = goredis.NewScript(`
if redis.call('HGET', KEYS[1], 'issued_at') ~= ARGV[1] then
  return 0
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

// CodeStore keeps verification codes in Redis hashes. The hash lives until the record's
// purge time; a separate SET NX key enforces the resend cooldown.
type CodeStore struct {
	client goredis.UniversalClient
}

func NewCodeStore(client goredis.UniversalClient) *CodeStore {
	return &CodeStore{client: client}
}

func codeKey(phone string, purpose domain.CodePurpose) string {
	return "vcode:" + phone + ":" + string(purpose)
}

func cooldownKey(phone string, purpose domain.CodePurpose) string {
	return "vcode:cd:" + phone + ":" + string(purpose)
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Save overwrites the code for v's phone and purpose. A positive cooldown is held in its own
// expiring key; with a zero cooldown no key is written, since SETNX without a TTL never expires.
func (s *CodeStore) Save(ctx context.Context, v *domain.VerificationCode, cooldown time.Duration) error {
	if cooldown > 0 {
		ok, err := s.client.SetNX(ctx, cooldownKey(v.Phone, v.Purpose), v.IssuedAt, cooldown).Result()
		if err != nil {
			return fmt.Errorf("set cooldown: %w", err)
		}
		if !ok {
			return fmt.Errorf("code for %s resent too soon: %w", v.Phone, domain.ErrConflict)
		}
	}
	key := codeKey(v.Phone, v.Purpose)
	_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key,
			"code_hash", v.CodeHash,
			"issued_at", strconv.FormatInt(v.IssuedAt, 10),
			"expires_at", strconv.FormatInt(v.ExpiresAt, 10),
			"consumed", flag(v.Consumed),
			"delivered", flag(v.Delivered),
			"attempts", strconv.Itoa(v.Attempts),
		)
		p.ExpireAt(ctx, key, time.Unix(v.PurgeAt, 0))
		return nil
	})
	if err != nil {
		return fmt.Errorf("save code: %w", err)
	}
	return nil
}

func (s *CodeStore) Get(ctx context.Context, phone string, purpose domain.CodePurpose) (*domain.VerificationCode, error) {
	m, err := s.client.HGetAll(ctx, codeKey(phone, purpose)).Result()
	if err != nil {
		return nil, fmt.Errorf("get code: %w", err)
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	v := &domain.VerificationCode{
		Phone:     phone,
		Purpose:   purpose,
		CodeHash:  m["code_hash"],
		Consumed:  m["consumed"] == "1",
		Delivered: m["delivered"] == "1",
	}
	if v.IssuedAt, err = strconv.ParseInt(m["issued_at"], 10, 64); err != nil {
		return nil, fmt.Errorf("parse issued_at: %w", err)
	}
	if v.ExpiresAt, err = strconv.ParseInt(m["expires_at"], 10, 64); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	if v.Attempts, err = strconv.Atoi(m["attempts"]); err != nil {
		return nil, fmt.Errorf("parse attempts: %w", err)
	}
	return v, nil
}

func (s *CodeStore) MarkDelivered(ctx context.Context, phone string, purpose domain.CodePurpose, issuedAt int64) error {
	n, err := markDelivered.Run(ctx, s.client, []string{codeKey(phone, purpose)}, strconv.FormatInt(issuedAt, 10)).Int()
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("verification superseded: %w", domain.ErrCondition)
	}
	return nil
}

func (s *CodeStore) Discard(ctx context.Context, phone string, purpose domain.CodePurpose, issuedAt int64) error {
	keys := []string{codeKey(phone, purpose), cooldownKey(phone, purpose)}
	if err := discard.Run(ctx, s.client, keys, strconv.FormatInt(issuedAt, 10)).Err(); err != nil {
		return fmt.Errorf("discard code: %w", err)
	}
	return nil
}

func (s *CodeStore) Consume(ctx context.Context, phone string, purpose domain.CodePurpose, codeHash string, now time.Time, maxAttempts int) error {
	n, err := consume.Run(ctx, s.client, []string{codeKey(phone, purpose)},
		codeHash, strconv.FormatInt(now.UnixMilli(), 10), strconv.Itoa(maxAttempts)).Int()
	if err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("verification not consumable: %w", domain.ErrCondition)
	}
	return nil
}

func (s *CodeStore) RecordFailure(ctx context.Context, phone string, purpose domain.CodePurpose, issuedAt int64) error {
	err := recordFailure.Run(ctx, s.client, []string{codeKey(phone, purpose)}, strconv.FormatInt(issuedAt, 10)).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}
