package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"hopin-service/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	CreateOrGetConversation(ctx context.Context, userID, counterpartID string) (models.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error)
	TouchLastMessage(ctx context.Context, conversationID, content string, at time.Time) error
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// CreateOrGetConversation creates a conversation between two users if none
// exists for the unordered pair.
func (r *ConversationRepo) CreateOrGetConversation(ctx context.Context, userID, counterpartID string) (models.Conversation, error) {
	if userID == counterpartID {
		return models.Conversation{}, errors.New("cannot start conversation with self")
	}
	participants := []string{userID, counterpartID}
	sort.Strings(participants)
	a, b := participants[0], participants[1]

	var conv models.Conversation
	query := `SELECT id, participant_a, participant_b, last_message, last_message_at, created_at
        FROM conversations WHERE participant_a=$1 AND participant_b=$2`
	err := r.db.GetContext(ctx, &conv, query, a, b)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, err
	}

	err = r.db.QueryRowxContext(ctx, `INSERT INTO conversations (id, participant_a, participant_b)
        VALUES ($1, $2, $3)
        ON CONFLICT (participant_a, participant_b) DO UPDATE SET participant_a = EXCLUDED.participant_a
        RETURNING id, participant_a, participant_b, last_message, last_message_at, created_at`,
		uuid.NewString(), a, b).StructScan(&conv)
	return conv, err
}

// GetConversation fetches a conversation by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT id, participant_a, participant_b, last_message, last_message_at, created_at
        FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// IsParticipant checks whether a user belongs to the conversation.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM conversations WHERE id=$1 AND (participant_a=$2 OR participant_b=$2))`, conversationID, userID)
	return exists, err
}

// ListConversations returns conversations for the user with counterpart
// profile and unread count joined in, most recent activity first.
func (r *ConversationRepo) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	query := `SELECT c.id, c.participant_a, c.participant_b, c.last_message, c.last_message_at,
            u.username, u.avatar_url, u.last_seen,
            (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id AND m.sender_id <> $1 AND m.read_at IS NULL) AS unread
        FROM conversations c
        JOIN users u ON u.id = CASE WHEN c.participant_a = $1 THEN c.participant_b ELSE c.participant_a END
        WHERE c.participant_a = $1 OR c.participant_b = $1
        ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC`
	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.ConversationSummary
	for rows.Next() {
		var row struct {
			models.Conversation
			Username  string     `db:"username"`
			AvatarURL string     `db:"avatar_url"`
			LastSeen  *time.Time `db:"last_seen"`
			Unread    int        `db:"unread"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		counterpart := row.ParticipantA
		if counterpart == userID {
			counterpart = row.ParticipantB
		}
		result = append(result, models.ConversationSummary{
			ConversationID: row.ID,
			CounterpartID:  counterpart,
			Username:       row.Username,
			AvatarURL:      row.AvatarURL,
			LastSeen:       row.LastSeen,
			LastMessage:    row.LastMessage,
			LastMessageAt:  row.LastMessageAt,
			Unread:         row.Unread,
		})
	}
	return result, rows.Err()
}

// TouchLastMessage updates the denormalized last-message columns.
func (r *ConversationRepo) TouchLastMessage(ctx context.Context, conversationID, content string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET last_message=$2, last_message_at=$3 WHERE id=$1`, conversationID, content, at)
	return err
}
