package stream

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gorilla/websocket"

	"hopin-service/internal/feed"
	"hopin-service/internal/models"
)

// AttachFeed subscribes the session to the durable change feed. Events
// missed while the client was offline are redelivered from the
// per-client queue and merged by id like any other arrival.
func AttachFeed(ctx context.Context, consumer *feed.Consumer, clientID string, s *Session) error {
	return consumer.Subscribe(ctx, clientID, s.conversationID, func(ev models.ChatEvent) {
		s.Ingest(ctx, SourceFeed, ev)
	})
}

// AttachSocket pumps broadcast events from an open websocket into the
// session until the connection drops or the context is cancelled. The
// returned channel closes when the pump stops.
func AttachSocket(ctx context.Context, conn *websocket.Conn, s *Session) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if ctx.Err() != nil {
				return
			}
			_, payload, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("broadcast socket closed: %v", err)
				}
				return
			}
			var ev models.ChatEvent
			if err := json.Unmarshal(payload, &ev); err != nil {
				log.Printf("broadcast decode failed: %v", err)
				continue
			}
			s.Ingest(ctx, SourceBroadcast, ev)
		}
	}()
	return done
}
