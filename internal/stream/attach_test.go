package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"hopin-service/internal/models"
)

func TestAttachSocketMergesBroadcastEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	serverConns := make(chan *websocket.Conn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConns <- conn
	}))
	defer server.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()
	serverSide := <-serverConns
	defer serverSide.Close()

	session, _ := openSession(t, &fakeStore{})
	done := AttachSocket(context.Background(), client, session)

	payload, err := json.Marshal(models.ChatEvent{
		Type:           models.EventMessage,
		ConversationID: "conv-1",
		Message: &models.Message{
			ID: "m-broadcast", ConversationID: "conv-1", SenderID: "them", Content: "hi",
		},
	})
	require.NoError(t, err)
	require.NoError(t, serverSide.WriteMessage(websocket.TextMessage, payload))

	require.Eventually(t, func() bool {
		for _, msg := range session.Messages() {
			if msg.ID == "m-broadcast" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	serverSide.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("socket pump did not stop after the connection dropped")
	}
}
