package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"hopin-service/internal/models"
)

var (
	ErrMessageNotFound  = errors.New("message not found")
	ErrDuplicateMessage = errors.New("message id already exists")
)

// MessageRepository defines interactions for conversation messages.
type MessageRepository interface {
	InsertMessage(ctx context.Context, msg models.Message) (models.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, readerID string, at time.Time) ([]string, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// InsertMessage stores a message honoring the client-supplied id. A second
// insert with the same id fails with ErrDuplicateMessage; the id is the
// idempotency key shared by every delivery path.
func (r *MessageRepo) InsertMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	if msg.Type == "" {
		msg.Type = models.MessageTypeText
	}
	var stored models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (id, conversation_id, sender_id, content, type, media_url, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
        RETURNING id, conversation_id, sender_id, content, type, media_url, created_at, read_at`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.Type, msg.MediaURL, nullableTime(msg.CreatedAt)).
		StructScan(&stored)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return models.Message{}, ErrDuplicateMessage
		}
		return models.Message{}, err
	}
	return stored, nil
}

// ListMessages returns conversation messages ordered by creation time.
func (r *MessageRepo) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, conversation_id, sender_id, content, type, media_url, created_at, read_at
        FROM messages WHERE conversation_id=$1 ORDER BY created_at ASC`, conversationID)
	return msgs, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT id, conversation_id, sender_id, content, type, media_url, created_at, read_at
        FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkConversationRead sets read_at on every unread message from the
// counterpart and returns the ids it touched. Calling it again with no new
// messages matches zero rows.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationID, readerID string, at time.Time) ([]string, error) {
	rows, err := r.db.QueryxContext(ctx, `UPDATE messages SET read_at=$3
        WHERE conversation_id=$1 AND sender_id<>$2 AND read_at IS NULL
        RETURNING id`, conversationID, readerID, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
