package domain

import "time"

// FamilyRole is a member's position inside one family.
type FamilyRole string

const (
	FamilyOwner  FamilyRole = "owner"
	FamilyMember FamilyRole = "member"
)

type Family struct {
	FamilyID        string    `json:"familyId" dynamodbav:"family_id"`
	Name            string    `json:"familyName" dynamodbav:"name"`
	OwnerID         string    `json:"ownerId" dynamodbav:"owner_id"`
	InviteCode      string    `json:"inviteCode" dynamodbav:"invite_code"`
	InviteExpiresAt time.Time `json:"inviteExpiresAt" dynamodbav:"invite_expires_at"`
	MemberCount     int       `json:"memberCount" dynamodbav:"member_count"`
	Active          bool      `json:"active" dynamodbav:"active"`
	DueDate         string    `json:"dueDate,omitempty" dynamodbav:"due_date"` // YYYY-MM-DD
	BabyName        string    `json:"babyName,omitempty" dynamodbav:"baby_name"`
	BabyGender      Gender    `json:"babyGender,omitempty" dynamodbav:"baby_gender"`
	CreatedAt       time.Time `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" dynamodbav:"updated_at"`
}

// InviteExpired reports whether the family's invite code is past its window at now.
func (f *Family) InviteExpired(now time.Time) bool {
	return !now.Before(f.InviteExpiresAt)
}

// FamilyMembership links a user to their single family. PK: user_id.
type FamilyMembership struct {
	UserID     string     `json:"userId" dynamodbav:"user_id"`
	FamilyID   string     `json:"familyId" dynamodbav:"family_id"`
	FamilyRole FamilyRole `json:"familyRole" dynamodbav:"family_role"`
	RoleType   RoleType   `json:"roleType" dynamodbav:"role_type"`
	Nickname   string     `json:"nickname" dynamodbav:"nickname"`
	JoinedAt   time.Time  `json:"joinedAt" dynamodbav:"joined_at"`
}

// InviteCode reserves a code for one family. PK: code.
type InviteCode struct {
	Code     string `dynamodbav:"code"`
	FamilyID string `dynamodbav:"family_id"`
}

// FamilyView is a family as seen by one of its members.
type FamilyView struct {
	Family     *Family            `json:"family"`
	Membership *FamilyMembership  `json:"membership"`
	Members    []FamilyMembership `json:"members,omitempty"`
}

type UpdatePregnancyRequest struct {
	DueDate    string  `json:"dueDate" validate:"required,datetime=2006-01-02"`
	BabyName   *string `json:"babyName" validate:"omitempty,max=32"`
	BabyGender *int    `json:"babyGender" validate:"omitempty,oneof=0 1 2"`
}
