package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ehealthwave-server/internal/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticRooms map[string][]string

func (s staticRooms) IsParticipant(_ context.Context, roomID, userID string) (bool, error) {
	for _, id := range s[roomID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func dial(t *testing.T, h *Handler, user Participant) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.Serve(w, r, user)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func waitForTopic(t *testing.T, hub *Hub, topic string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.TopicCount(topic) == n }, 2*time.Second, 10*time.Millisecond)
}

func TestJoinAnnouncesAndLeaveUnsubscribes(t *testing.T) {
	hub := NewHub(logger.Discard())
	h := NewHandler(hub, hub, staticRooms{"r1": {"u1", "u2"}}, "*", logger.Discard())

	doctor := dial(t, h, Participant{UserID: "u1", Username: "dr_a"})
	require.NoError(t, doctor.WriteJSON(ClientMessage{Event: "join", RoomID: "r1"}))

	ev := readEvent(t, doctor)
	assert.Equal(t, EventStatus, ev.Event)
	assert.Equal(t, "r1", ev.RoomID)
	assert.Equal(t, "dr_a has entered the room.", ev.Message)

	patient := dial(t, h, Participant{UserID: "u2", Username: "pat_b"})
	require.NoError(t, patient.WriteJSON(ClientMessage{Event: "join", RoomID: "r1"}))
	assert.Equal(t, "pat_b has entered the room.", readEvent(t, patient).Message)
	assert.Equal(t, "pat_b has entered the room.", readEvent(t, doctor).Message)

	require.NoError(t, patient.WriteJSON(ClientMessage{Event: "leave", RoomID: "r1"}))
	assert.Equal(t, "pat_b has left the room.", readEvent(t, doctor).Message)
	waitForTopic(t, hub, RoomTopic("r1"), 1)
}

func TestJoinRefusedForOutsiders(t *testing.T) {
	hub := NewHub(logger.Discard())
	h := NewHandler(hub, hub, staticRooms{"r1": {"u1"}}, "*", logger.Discard())

	conn := dial(t, h, Participant{UserID: "intruder", Username: "eve"})
	require.NoError(t, conn.WriteJSON(ClientMessage{Event: "join", RoomID: "r1"}))
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, hub.TopicCount(RoomTopic("r1")))
}

func TestDisconnectUnregisters(t *testing.T) {
	hub := NewHub(logger.Discard())
	h := NewHandler(hub, hub, staticRooms{}, "*", logger.Discard())

	conn := dial(t, h, Participant{UserID: "u1", Username: "dr_a"})
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
