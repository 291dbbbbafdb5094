package models

import "time"

// Plan types.
const (
	PlanTypeSolo      = "SOLO"
	PlanTypeCommunity = "COMMUNITY"
)

// Plan visibility.
const (
	VisibilityPrivate   = "PRIVATE"
	VisibilityFollowers = "FOLLOWERS"
	VisibilityPublic    = "PUBLIC"
)

// Plan statuses.
const (
	PlanStatusOpen      = "OPEN"
	PlanStatusFull      = "FULL"
	PlanStatusCompleted = "COMPLETED"
	PlanStatusCancelled = "CANCELLED"
)

// Member statuses. Verification does not change status; it sets IsVerified
// on an ACCEPTED member.
const (
	MemberStatusPending  = "PENDING"
	MemberStatusInvited  = "INVITED"
	MemberStatusAccepted = "ACCEPTED"
	MemberStatusRejected = "REJECTED"
)

// Plan is the event/meetup entity.
type Plan struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Type        string    `db:"type" json:"type"`
	Visibility  string    `db:"visibility" json:"visibility"`
	Location    string    `db:"location" json:"location"`
	Latitude    *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude   *float64  `db:"longitude" json:"longitude,omitempty"`
	Date        time.Time `db:"date" json:"date"`
	MaxSize     int       `db:"max_size" json:"max_size"`
	Status      string    `db:"status" json:"status"`
	CreatorID   string    `db:"creator_id" json:"creator_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// PlanMember is the membership row for a plan. At most one row exists per
// (plan, user) pair. The verification code is issued on the ACCEPTED
// transition and stays redeemable as a ticket after verification.
type PlanMember struct {
	ID               string    `db:"id" json:"id"`
	PlanID           string    `db:"plan_id" json:"plan_id"`
	UserID           string    `db:"user_id" json:"user_id"`
	Status           string    `db:"status" json:"status"`
	VerificationCode *string   `db:"verification_code" json:"verification_code,omitempty"`
	IsVerified       bool      `db:"is_verified" json:"is_verified"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
