package domain

import "time"

type SendCodeRequest struct {
	Phone string `json:"phone" validate:"required,cnphone"`
	Type  string `json:"type" validate:"required,oneof=register login reset"`
}

type RegisterRequest struct {
	Phone      string `json:"phone" validate:"required,cnphone"`
	VerifyCode string `json:"verifyCode" validate:"required,vcode"`
	Nickname   string `json:"nickname" validate:"required,max=32"`
	RoleType   string `json:"roleType" validate:"required,oneof=pregnant partner grandparent family"`
	Gender     *int   `json:"gender" validate:"omitempty,oneof=1 2"`
	InviteCode string `json:"inviteCode" validate:"omitempty,len=8"`
}

type LoginRequest struct {
	Phone      string `json:"phone" validate:"required,cnphone"`
	VerifyCode string `json:"verifyCode" validate:"required,vcode"`
	Type       string `json:"type" validate:"omitempty,oneof=login"`
}

// FamilyInfo is the family summary embedded in LoginResponse.
type FamilyInfo struct {
	FamilyID    string     `json:"familyId"`
	FamilyName  string     `json:"familyName"`
	FamilyRole  FamilyRole `json:"familyRole"`
	InviteCode  string     `json:"inviteCode"`
	MemberCount int        `json:"memberCount"`
	JoinedAt    time.Time  `json:"joinedAt"`
}

// LoginResponse is the session payload returned by register, login, refresh and info.
type LoginResponse struct {
	UserID          string         `json:"userId"`
	Phone           string         `json:"phone"`
	Nickname        string         `json:"nickname"`
	AvatarURL       string         `json:"avatarUrl,omitempty"`
	Gender          Gender         `json:"gender,omitempty"`
	GenderName      string         `json:"genderName,omitempty"`
	RoleType        RoleType       `json:"roleType"`
	RoleTypeName    string         `json:"roleTypeName"`
	AccessToken     string         `json:"accessToken,omitempty"`
	TokenType       string         `json:"tokenType,omitempty"`
	ExpiresAt       *time.Time     `json:"expiresAt,omitempty"`
	FamilyInfo      *FamilyInfo    `json:"familyInfo"`
	PregnancyInfo   *PregnancyInfo `json:"pregnancyInfo"`
	Permissions     []string       `json:"permissions"`
	FamilyJoinError *FamilyJoinErr `json:"familyJoinError,omitempty"`
}

// FamilyJoinErr reports an invite code that could not be redeemed during registration.
type FamilyJoinErr struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Permission names granted in LoginResponse.
const (
	PermProfileEdit    = "profile:edit"
	PermFamilyCreate   = "family:create"
	PermFamilyView     = "family:view"
	PermFamilyInvite   = "family:invite"
	PermPregnancyEdit  = "pregnancy:edit"
	PermPregnancyView  = "pregnancy:view"
	PermNotificationRW = "notification:read"
)

// Permissions derives the capability list from a user's membership, nil when they have no family.
func Permissions(m *FamilyMembership) []string {
	perms := []string{PermProfileEdit, PermNotificationRW}
	if m == nil {
		return append(perms, PermFamilyCreate)
	}
	perms = append(perms, PermFamilyView, PermPregnancyView, PermPregnancyEdit)
	if m.FamilyRole == FamilyOwner {
		perms = append(perms, PermFamilyInvite)
	}
	return perms
}
