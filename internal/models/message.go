package models

import "time"

// MessageType enumerates message payload kinds.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeVideo = "video"
	MessageTypeAudio = "audio"
)

// Message represents a chat message. The id is client-generated at send
// time so the optimistic entry, the broadcast payload and the durable row
// all carry the same idempotency key.
type Message struct {
	ID             string     `db:"id" json:"id"`
	ConversationID string     `db:"conversation_id" json:"conversation_id"`
	SenderID       string     `db:"sender_id" json:"sender_id"`
	Content        string     `db:"content" json:"content"`
	Type           string     `db:"type" json:"type"`
	MediaURL       *string    `db:"media_url" json:"media_url,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	ReadAt         *time.Time `db:"read_at" json:"read_at,omitempty"`

	// Failed marks an optimistic entry whose durable write did not land.
	// Never persisted.
	Failed bool `db:"-" json:"failed,omitempty"`
}

// Event kinds delivered over the broadcast channel and the change feed.
const (
	EventMessage = "message"
	EventRead    = "read"
)

// ChatEvent is the envelope carried by both delivery channels.
type ChatEvent struct {
	Type           string     `json:"type"`
	ConversationID string     `json:"conversation_id"`
	Message        *Message   `json:"message,omitempty"`
	MessageIDs     []string   `json:"message_ids,omitempty"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}
