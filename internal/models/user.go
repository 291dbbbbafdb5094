package models

import "time"

// User is the local application-user row an authenticated session resolves to.
type User struct {
	ID        string     `db:"id" json:"id"`
	Username  string     `db:"username" json:"username"`
	AvatarURL string     `db:"avatar_url" json:"avatar_url"`
	LastSeen  *time.Time `db:"last_seen" json:"last_seen,omitempty"`
}
