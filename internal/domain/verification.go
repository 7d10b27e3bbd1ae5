package domain

import "time"

// CodePurpose scopes a verification code to one flow.
type CodePurpose string

const (
	PurposeRegister CodePurpose = "register"
	PurposeLogin    CodePurpose = "login"
	PurposeReset    CodePurpose = "reset"
)

func ParsePurpose(s string) (CodePurpose, bool) {
	switch CodePurpose(s) {
	case PurposeRegister, PurposeLogin, PurposeReset:
		return CodePurpose(s), true
	}
	return "", false
}

// VerificationCode is the stored state of one issued code.
// PK: phone, SK: purpose. Only a keyed digest of the code is kept.
// ExpiresAt is Unix milliseconds; PurgeAt is the DynamoDB TTL (Unix seconds) and lags ExpiresAt
// so an expired code is still readable and reported as expired.
type VerificationCode struct {
	Phone     string      `json:"phone" dynamodbav:"phone"`
	Purpose   CodePurpose `json:"purpose" dynamodbav:"purpose"`
	CodeHash  string      `json:"-" dynamodbav:"code_hash"`
	IssuedAt  int64       `json:"issued_at" dynamodbav:"issued_at"`
	ExpiresAt int64       `json:"expires_at" dynamodbav:"expires_at"`
	PurgeAt   int64       `json:"-" dynamodbav:"purge_at"`
	Consumed  bool        `json:"consumed" dynamodbav:"consumed"`
	Delivered bool        `json:"delivered" dynamodbav:"delivered"`
	Attempts  int         `json:"attempts" dynamodbav:"attempts"`
}

// Expired reports whether the code is past its validity window at now.
func (v *VerificationCode) Expired(now time.Time) bool {
	return now.UnixMilli() >= v.ExpiresAt
}
