package dynamo

// DynamoDB attribute names used in update and condition expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldEnable      = "enable"
	fieldStatus      = "status"
	fieldUpdatedAt   = "updated_at"
	fieldLastLoginAt = "last_login_at"
	fieldRead        = "read"
	fieldDelivered   = "delivered"
	fieldConsumed    = "consumed"
	fieldAttempts    = "attempts"
	fieldMemberCount = "member_count"
	fieldActive      = "active"
	fieldInviteCode  = "invite_code"
	fieldInviteExp   = "invite_expires_at"
	fieldOwnerID     = "owner_id"
)
