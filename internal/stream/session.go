// Package stream implements the per-conversation live session: ordered
// history, two parallel delivery channels merged by message id, optimistic
// sends and read receipts.
package stream

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"hopin-service/internal/models"
)

var ErrSessionClosed = errors.New("session is closed")

// State of a session. A session is Closed until opened, Loading while
// history is fetched, then Live until closed again.
type State int

const (
	StateClosed State = iota
	StateLoading
	StateLive
)

// Source identifies which delivery channel produced an event.
type Source int

const (
	// SourceBroadcast is the low-latency ephemeral channel. It carries
	// sender echoes, so self-authored events from it are dropped.
	SourceBroadcast Source = iota
	// SourceFeed is the durable change feed, the guaranteed-delivery
	// fallback for clients that missed the broadcast.
	SourceFeed
)

// Store is the durable side of a session: history, inserts and read
// receipts.
type Store interface {
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	InsertMessage(ctx context.Context, msg models.Message) (models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, readerID string, at time.Time) ([]string, error)
}

// Broadcaster publishes to the ephemeral channel. Failures are not fatal;
// the durable insert is the delivery guarantee.
type Broadcaster interface {
	Publish(ctx context.Context, ev models.ChatEvent) error
}

// Presence refreshes the local user's last-seen timestamp.
type Presence interface {
	TouchLastSeen(ctx context.Context, userID string, at time.Time) error
}

// Options tune session heuristics.
type Options struct {
	HeartbeatInterval time.Duration
	OnlineWindow      time.Duration
	GhostedAfter      time.Duration
	Clock             func() time.Time
}

func (o Options) withDefaults() Options {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 2 * time.Minute
	}
	if o.OnlineWindow <= 0 {
		o.OnlineWindow = 5 * time.Minute
	}
	if o.GhostedAfter <= 0 {
		o.GhostedAfter = 5 * time.Hour
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Session holds the in-memory mirror of one open conversation. All three
// delivery paths for a message (optimistic entry, broadcast, change feed)
// carry the same client-generated id, and the merge rule collapses them:
// first seen wins, id equality only.
type Session struct {
	selfID         string
	conversationID string

	store       Store
	broadcaster Broadcaster
	presence    Presence
	opts        Options

	mu    sync.Mutex
	state State
	byID  map[string]*models.Message
	order []*models.Message

	wg            sync.WaitGroup
	heartbeatStop chan struct{}
}

// NewSession constructs a closed session for one conversation.
func NewSession(selfID, conversationID string, store Store, broadcaster Broadcaster, presence Presence, opts Options) *Session {
	return &Session{
		selfID:         selfID,
		conversationID: conversationID,
		store:          store,
		broadcaster:    broadcaster,
		presence:       presence,
		opts:           opts.withDefaults(),
		byID:           map[string]*models.Message{},
	}
}

// Open loads history and takes the session live. The bulk read receipt is
// fired alongside the history fetch rather than after it, and the presence
// heartbeat starts ticking.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateLoading
	s.mu.Unlock()

	s.markReadAsync(ctx)

	history, err := s.store.ListMessages(ctx, s.conversationID)
	if err != nil {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	for i := range history {
		msg := history[i]
		if _, ok := s.byID[msg.ID]; ok {
			continue
		}
		s.byID[msg.ID] = &msg
		s.order = append(s.order, &msg)
	}
	s.state = StateLive
	s.heartbeatStop = make(chan struct{})
	s.mu.Unlock()

	s.startHeartbeat(ctx)
	return nil
}

// Ingest merges one event from either channel into local state. Events
// arriving after Close are dropped.
func (s *Session) Ingest(ctx context.Context, source Source, ev models.ChatEvent) {
	s.mu.Lock()
	if s.state != StateLive || ev.ConversationID != s.conversationID {
		s.mu.Unlock()
		return
	}

	switch ev.Type {
	case models.EventMessage:
		if ev.Message == nil {
			s.mu.Unlock()
			return
		}
		msg := *ev.Message
		if source == SourceBroadcast && msg.SenderID == s.selfID {
			// The optimistic entry is authoritative; never append the
			// sender's own echo.
			s.mu.Unlock()
			return
		}
		if _, ok := s.byID[msg.ID]; ok {
			s.mu.Unlock()
			return
		}
		s.byID[msg.ID] = &msg
		s.order = append(s.order, &msg)
		fromCounterpart := msg.SenderID != s.selfID
		s.mu.Unlock()

		if fromCounterpart {
			// Received while the conversation is open: mark it read.
			s.markReadAsync(ctx)
		}
		return

	case models.EventRead:
		for _, id := range ev.MessageIDs {
			if msg, ok := s.byID[id]; ok {
				msg.ReadAt = ev.ReadAt
			}
		}
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
}

// Send appends the message locally before any network work, publishes the
// broadcast payload fire-and-forget, then performs the durable insert. On
// durable failure the entry stays visible flagged Failed and the error is
// returned.
func (s *Session) Send(ctx context.Context, content, msgType string, mediaURL *string) (models.Message, error) {
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	msg := models.Message{
		ID:             ulid.Make().String(),
		ConversationID: s.conversationID,
		SenderID:       s.selfID,
		Content:        content,
		Type:           msgType,
		MediaURL:       mediaURL,
		CreatedAt:      s.opts.Clock(),
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return models.Message{}, ErrSessionClosed
	}
	entry := msg
	s.byID[entry.ID] = &entry
	s.order = append(s.order, &entry)
	s.mu.Unlock()

	if s.broadcaster != nil {
		if err := s.broadcaster.Publish(ctx, models.ChatEvent{
			Type:           models.EventMessage,
			ConversationID: s.conversationID,
			Message:        &msg,
		}); err != nil {
			log.Printf("broadcast publish failed: %v", err)
		}
	}

	if _, err := s.store.InsertMessage(ctx, msg); err != nil {
		s.mu.Lock()
		entry.Failed = true
		s.mu.Unlock()
		return entry, err
	}
	return entry, nil
}

// MarkRead issues the bulk read receipt for the conversation.
func (s *Session) MarkRead(ctx context.Context) ([]string, error) {
	return s.store.MarkConversationRead(ctx, s.conversationID, s.selfID, s.opts.Clock())
}

// Messages returns a snapshot of the merged list in arrival order.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, 0, len(s.order))
	for _, msg := range s.order {
		out = append(out, *msg)
	}
	return out
}

// State reports the session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ghosted reports the display heuristic: the newest message is the local
// user's, unread, and older than the configured window.
func (s *Session) Ghosted(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return false
	}
	last := s.order[len(s.order)-1]
	return last.SenderID == s.selfID && last.ReadAt == nil && now.Sub(last.CreatedAt) > s.opts.GhostedAfter
}

// Close tears the session down. Further events are dropped and the
// heartbeat stops; in-flight read receipts are allowed to finish.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	stop := s.heartbeatStop
	s.heartbeatStop = nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	s.wg.Wait()
}

func (s *Session) markReadAsync(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.MarkRead(ctx); err != nil {
			log.Printf("mark read failed: %v", err)
		}
	}()
}

func (s *Session) startHeartbeat(ctx context.Context) {
	if s.presence == nil {
		return
	}
	s.mu.Lock()
	stop := s.heartbeatStop
	s.mu.Unlock()
	if stop == nil {
		return
	}

	if err := s.presence.TouchLastSeen(ctx, s.selfID, s.opts.Clock()); err != nil {
		log.Printf("presence touch failed: %v", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.opts.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.presence.TouchLastSeen(ctx, s.selfID, s.opts.Clock()); err != nil {
					log.Printf("presence touch failed: %v", err)
				}
			}
		}
	}()
}

// Online reports whether a last-seen timestamp falls inside the window.
func Online(lastSeen *time.Time, now time.Time, window time.Duration) bool {
	if lastSeen == nil {
		return false
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return now.Sub(*lastSeen) <= window
}
