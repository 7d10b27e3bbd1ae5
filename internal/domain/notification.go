package domain

import "time"

type NotificationKind string

const (
	NotifyMemberJoined NotificationKind = "member_joined"
	NotifyMemberLeft   NotificationKind = "member_left"
)

type Notification struct {
	NotificationID string           `json:"id" dynamodbav:"notification_id"`
	UserID         string           `json:"userId" dynamodbav:"user_id"`
	FamilyID       string           `json:"familyId" dynamodbav:"family_id"`
	Kind           NotificationKind `json:"kind" dynamodbav:"kind"`
	Message        string           `json:"message" dynamodbav:"message"`
	Read           bool             `json:"read" dynamodbav:"read"`
	CreatedAt      time.Time        `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt      time.Time        `json:"updatedAt" dynamodbav:"updated_at"`
}
