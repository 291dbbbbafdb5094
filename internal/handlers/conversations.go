package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"hopin-service/internal/feed"
	"hopin-service/internal/models"
	"hopin-service/internal/observability"
	"hopin-service/internal/repositories"
	"hopin-service/internal/stream"
	"hopin-service/internal/ws"
)

// ConversationHandler manages conversation and message endpoints.
type ConversationHandler struct {
	conversationRepo repositories.ConversationRepository
	messageRepo      repositories.MessageRepository
	userRepo         repositories.UserRepository
	hub              *ws.Hub
	feed             feed.Publisher
	onlineWindow     time.Duration
}

// NewConversationHandler builds a ConversationHandler. onlineWindow bounds
// how stale a counterpart's last_seen may be while still showing as online.
func NewConversationHandler(conversationRepo repositories.ConversationRepository, messageRepo repositories.MessageRepository, userRepo repositories.UserRepository, hub *ws.Hub, feedPub feed.Publisher, onlineWindow time.Duration) *ConversationHandler {
	return &ConversationHandler{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		userRepo:         userRepo,
		hub:              hub,
		feed:             feedPub,
		onlineWindow:     onlineWindow,
	}
}

// ListConversations returns the caller's conversations with counterpart
// profiles joined, most recent activity first. Failures degrade to an empty
// list rather than an error page.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID := c.GetString("userID")

	summaries, err := h.conversationRepo.ListConversations(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}
	if summaries == nil {
		summaries = []models.ConversationSummary{}
	}
	now := time.Now()
	for i := range summaries {
		summaries[i].Online = stream.Online(summaries[i].LastSeen, now, h.onlineWindow)
	}

	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// StartConversation creates or returns the conversation for the unordered
// pair (caller, counterpart).
func (h *ConversationHandler) StartConversation(c *gin.Context) {
	var req struct {
		CounterpartID string `json:"counterpart_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	if userID == req.CounterpartID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot chat with yourself"})
		return
	}

	if _, err := h.userRepo.GetUser(c.Request.Context(), req.CounterpartID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "counterpart not found"})
		return
	}

	conv, err := h.conversationRepo.CreateOrGetConversation(c.Request.Context(), userID, req.CounterpartID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation_id": conv.ID})
}

// GetMessages returns the conversation history ordered by creation time.
func (h *ConversationHandler) GetMessages(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	userID := c.GetString("userID")

	member, err := h.conversationRepo.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return
	}

	msgs, err := h.messageRepo.ListMessages(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage performs the durable insert of a message, honoring the
// client-generated id so the broadcast, the change feed and the optimistic
// entry all collapse into one, then updates the conversation's denormalized
// last message and fans the event out on both channels.
func (h *ConversationHandler) PostMessage(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	userID := c.GetString("userID")

	conv, err := h.conversationRepo.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrConversationNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "conversation not found"})
		return
	}
	if !isParticipant(conv, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return
	}

	var req struct {
		ID       string  `json:"id"`
		Content  string  `json:"content" binding:"required"`
		Type     string  `json:"type"`
		MediaURL *string `json:"media_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	msg, err := h.messageRepo.InsertMessage(c.Request.Context(), models.Message{
		ID:             req.ID,
		ConversationID: conversationID,
		SenderID:       userID,
		Content:        req.Content,
		Type:           req.Type,
		MediaURL:       req.MediaURL,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateMessage) {
			c.JSON(http.StatusConflict, gin.H{"error": "message id already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	if err := h.conversationRepo.TouchLastMessage(c.Request.Context(), conversationID, msg.Content, msg.CreatedAt); err != nil {
		// The message landed; the denormalized preview catching up later is
		// acceptable.
		_ = err
	}

	h.hub.BroadcastMessage(conversationID, msg)
	observability.IncMessagePublished("broadcast", models.EventMessage)
	if err := h.feed.PublishInsert(c.Request.Context(), msg); err != nil {
		_ = err
	}

	c.JSON(http.StatusCreated, msg)
}

// MarkRead sets read_at on every unread counterpart message. Repeating the
// call with no new messages matches zero rows and publishes nothing.
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	userID := c.GetString("userID")

	member, err := h.conversationRepo.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return
	}

	readAt := time.Now()
	ids, err := h.messageRepo.MarkConversationRead(c.Request.Context(), conversationID, userID, readAt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark read"})
		return
	}

	if len(ids) > 0 {
		h.hub.BroadcastRead(conversationID, ids, readAt)
		observability.IncMessagePublished("broadcast", models.EventRead)
		if err := h.feed.PublishRead(c.Request.Context(), conversationID, ids, readAt); err != nil {
			_ = err
		}
	}

	c.JSON(http.StatusOK, gin.H{"marked": len(ids)})
}

// Heartbeat refreshes the caller's last-seen timestamp.
func (h *ConversationHandler) Heartbeat(c *gin.Context) {
	userID := c.GetString("userID")
	if err := h.userRepo.TouchLastSeen(c.Request.Context(), userID, time.Now()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update presence"})
		return
	}
	c.Status(http.StatusNoContent)
}

func isParticipant(conv models.Conversation, userID string) bool {
	return conv.ParticipantA == userID || conv.ParticipantB == userID
}
