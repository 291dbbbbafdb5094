package models

import "time"

// Conversation represents a private conversation between exactly two users.
// Participants are stored sorted so the unordered pair is unique.
type Conversation struct {
	ID            string     `db:"id" json:"id"`
	ParticipantA  string     `db:"participant_a" json:"participant_a"`
	ParticipantB  string     `db:"participant_b" json:"participant_b"`
	LastMessage   string     `db:"last_message" json:"last_message"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// ConversationSummary is the API-friendly view of a conversation for one
// user, with the counterpart profile joined in.
type ConversationSummary struct {
	ConversationID string     `json:"conversation_id"`
	CounterpartID  string     `json:"counterpart_id"`
	Username       string     `json:"username"`
	AvatarURL      string     `json:"avatar_url"`
	LastSeen       *time.Time `json:"last_seen,omitempty"`
	Online         bool       `json:"online"`
	LastMessage    string     `json:"last_message"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
	Unread         int        `json:"unread"`
}
