package domain

import "time"

// Session is the server-side record behind an access token. PK: session_id.
// PurgeAt is the DynamoDB TTL (Unix seconds).
type Session struct {
	SessionID string    `json:"id" dynamodbav:"session_id"`
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	Enable    bool      `json:"enable" dynamodbav:"enable"`
	IssuedAt  time.Time `json:"issued_at" dynamodbav:"issued_at"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"expires_at"`
	PurgeAt   int64     `json:"-" dynamodbav:"purge_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}

// Token is what the client receives after login, register or refresh.
type Token struct {
	AccessToken string
	TokenType   string
	SessionID   string
	ExpiresAt   time.Time
}

// Principal is the identity resolved from a validated token.
type Principal struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}
