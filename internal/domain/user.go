package domain

import "time"

// RoleType is the user's relationship to the pregnancy.
type RoleType string

const (
	RolePregnant    RoleType = "pregnant"
	RolePartner     RoleType = "partner"
	RoleGrandparent RoleType = "grandparent"
	RoleFamily      RoleType = "family"
)

// RoleTypes lists every valid role type.
var RoleTypes = []RoleType{RolePregnant, RolePartner, RoleGrandparent, RoleFamily}

// ParseRoleType returns the role type for code, or false when unknown.
func ParseRoleType(code string) (RoleType, bool) {
	for _, r := range RoleTypes {
		if string(r) == code {
			return r, true
		}
	}
	return "", false
}

// RoleTypeName returns the display name of r, or "" when r is unknown.
func RoleTypeName(r RoleType) string {
	switch r {
	case RolePregnant:
		return "孕妇"
	case RolePartner:
		return "伴侣"
	case RoleGrandparent:
		return "祖父母"
	case RoleFamily:
		return "其他家庭成员"
	}
	return ""
}

// Gender is stored as its numeric wire code. Zero means not provided.
type Gender int

const (
	GenderUnset  Gender = 0
	GenderMale   Gender = 1
	GenderFemale Gender = 2
)

func GenderName(g Gender) string {
	switch g {
	case GenderMale:
		return "男"
	case GenderFemale:
		return "女"
	}
	return ""
}

// UserStatus is stored as its numeric wire code.
type UserStatus int

const (
	StatusDisabled UserStatus = 0
	StatusEnabled  UserStatus = 1
)

func StatusName(s UserStatus) string {
	switch s {
	case StatusDisabled:
		return "禁用"
	case StatusEnabled:
		return "正常"
	}
	return ""
}

type User struct {
	UserID      string     `json:"userId" dynamodbav:"user_id"`
	Phone       string     `json:"phone" dynamodbav:"phone"`
	Nickname    string     `json:"nickname" dynamodbav:"nickname"`
	AvatarURL   string     `json:"avatarUrl,omitempty" dynamodbav:"avatar_url"`
	Gender      Gender     `json:"gender" dynamodbav:"gender"`
	RoleType    RoleType   `json:"roleType" dynamodbav:"role_type"`
	Status      UserStatus `json:"status" dynamodbav:"status"`
	LastLoginAt *time.Time `json:"lastLoginTime,omitempty" dynamodbav:"last_login_at"`
	CreatedAt   time.Time  `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" dynamodbav:"updated_at"`
}

// Enabled reports whether the user may authenticate.
func (u *User) Enabled() bool { return u.Status == StatusEnabled }

type CreateUserInput struct {
	Phone    string
	Nickname string
	RoleType RoleType
	Gender   Gender
}

type UpdateProfileRequest struct {
	Nickname *string `json:"nickname" validate:"omitempty,min=1,max=32"`
	Gender   *int    `json:"gender" validate:"omitempty,oneof=1 2"`
}
