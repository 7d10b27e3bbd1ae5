package domain

import "errors"

// Sentinel errors for storage-level error discrimination.
// Repositories wrap these so services can translate them into coded errors without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrExpired      = errors.New("expired")
	// ErrCondition reports a failed conditional write (lost race or violated guard).
	ErrCondition = errors.New("condition failed")
	// ErrInviteCodeTaken reports an invite code already reserved by another family.
	ErrInviteCodeTaken = errors.New("invite code taken")
	// ErrAlreadyMember reports a user that already holds a family membership.
	ErrAlreadyMember = errors.New("already a family member")
)
