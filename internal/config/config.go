package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	SNSRegion      string
	AvatarBucket   string
	AvatarMaxBytes int64

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	TokenExpiryDays   int

	CodeStore          string // "dynamo" | "redis"
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	VerifyCodeTTL      time.Duration
	VerifyCodeCooldown time.Duration
	VerifyMaxAttempts  int
	VerifyCodePepper   string
	SMSDryRun          bool // log codes instead of sending them

	InviteCodeTTL       time.Duration
	FamilyMemberLimit   int
	AutoCreateFamily    bool
	InviteFailurePolicy string // "warn" | "reject"

	StoreTimeout   time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	TrustProxy     bool     // honor X-Forwarded-For and X-Real-IP from a fronting proxy
	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users             string
	UserPhones        string
	Sessions          string
	VerificationCodes string
	Families          string
	InviteCodes       string
	FamilyMembers     string
	Notifications     string
}

const (
	CodeStoreDynamo = "dynamo"
	CodeStoreRedis  = "redis"

	InvitePolicyWarn   = "warn"
	InvitePolicyReject = "reject"
)

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:             getEnv("DYNAMO_TABLE_USERS", "users"),
			UserPhones:        getEnv("DYNAMO_TABLE_USER_PHONES", "user_phones"),
			Sessions:          getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			VerificationCodes: getEnv("DYNAMO_TABLE_VERIFICATION_CODES", "verification_codes"),
			Families:          getEnv("DYNAMO_TABLE_FAMILIES", "families"),
			InviteCodes:       getEnv("DYNAMO_TABLE_INVITE_CODES", "invite_codes"),
			FamilyMembers:     getEnv("DYNAMO_TABLE_FAMILY_MEMBERS", "family_members"),
			Notifications:     getEnv("DYNAMO_TABLE_NOTIFICATIONS", "notifications"),
		},
		SNSRegion:      getEnv("SNS_REGION", "us-east-1"),
		AvatarBucket:   getEnv("AVATAR_BUCKET", "pregnancy-family-avatars"),
		AvatarMaxBytes: int64(getEnvInt("AVATAR_MAX_BYTES", 5<<20)),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		TokenExpiryDays:   getEnvInt("TOKEN_EXPIRY_DAYS", 7),

		CodeStore:          getEnv("CODE_STORE", CodeStoreDynamo),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		VerifyCodeTTL:      getEnvDuration("VERIFY_CODE_TTL", 5*time.Minute),
		VerifyCodeCooldown: getEnvDuration("VERIFY_CODE_COOLDOWN", time.Minute),
		VerifyMaxAttempts:  getEnvInt("VERIFY_CODE_MAX_ATTEMPTS", 5),
		VerifyCodePepper:   getEnv("VERIFY_CODE_PEPPER", "dev-pepper-change-me"),
		SMSDryRun:          getEnvBool("SMS_DRY_RUN", false),

		InviteCodeTTL:       getEnvDuration("INVITE_CODE_TTL", 7*24*time.Hour),
		FamilyMemberLimit:   getEnvInt("FAMILY_MEMBER_LIMIT", 10),
		AutoCreateFamily:    getEnvBool("AUTO_CREATE_FAMILY", true),
		InviteFailurePolicy: getEnv("INVITE_FAILURE_POLICY", InvitePolicyWarn),

		StoreTimeout:   getEnvDuration("STORE_TIMEOUT", 3*time.Second),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),
		TrustProxy:     getEnvBool("TRUST_PROXY", false),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

// TokenExpiry is the access token lifetime.
func (c *Config) TokenExpiry() time.Duration {
	return time.Duration(c.TokenExpiryDays) * 24 * time.Hour
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration syntax ("90s", "168h").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
