package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	url   string
	hub   *orch.Orchestrator
	store *testutil.MockStore
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := testutil.NewMockStore("m1")
	hub := orch.New(orch.Deps{Meetings: store, Transcripts: store, Personas: store}, orch.Options{})
	ctrl := NewSignalWSController(hub, opts)

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c, domain.UserID(c.Query("user")))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testServer{url: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", hub: hub, store: store}
}

func (s *testServer) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	u := s.url
	if query != "" {
		u += "?" + query
	}
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, eventType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(core.Envelope{Type: eventType, Payload: raw}))
}

// next reads until a frame of eventType arrives.
func next(t *testing.T, ws *websocket.Conn, eventType string) core.Envelope {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var env core.Envelope
		require.NoError(t, ws.ReadJSON(&env), "waiting for %s", eventType)
		if env.Type == eventType {
			return env
		}
	}
}

func decodePayload[T any](t *testing.T, env core.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Payload, &v))
	return v
}

func TestMeetingOverWebsocket(t *testing.T) {
	s := newTestServer(t, Options{})
	alice := s.dial(t, "")
	bob := s.dial(t, "")

	send(t, alice, "join_meeting", map[string]string{"meetingId": "m1", "name": "Alice", "role": "host"})
	info := decodePayload[core.RoomInfo](t, next(t, alice, core.EvRoomInfo))
	assert.Empty(t, info.Users)
	self := decodePayload[core.UserJoined](t, next(t, alice, core.EvUserJoined))
	assert.Equal(t, domain.RoleHost, self.Role)

	send(t, bob, "join_meeting", map[string]string{"meetingId": "m1", "name": "Bob"})
	info = decodePayload[core.RoomInfo](t, next(t, bob, core.EvRoomInfo))
	require.Len(t, info.Users, 1)
	assert.Equal(t, "Alice", info.Users[0].Name)
	bobJoined := decodePayload[core.UserJoined](t, next(t, alice, core.EvUserJoined))
	assert.Equal(t, "Bob", bobJoined.Name)

	send(t, bob, "send_chat", map[string]string{"meetingId": "m1", "message": "hi all"})
	msg := decodePayload[core.ChatMessage](t, next(t, alice, core.EvChatMessage))
	assert.Equal(t, "Bob", msg.From)
	assert.Equal(t, "hi all", msg.Message)
	assert.Equal(t, bobJoined.ConnectionID, msg.ConnectionID)

	// Signals route by connection id.
	send(t, alice, "signal", map[string]any{"to": bobJoined.ConnectionID, "type": "candidate", "data": map[string]string{"candidate": "x"}})
	sig := decodePayload[core.Signal](t, next(t, bob, core.EvSignal))
	assert.Equal(t, self.ConnectionID, sig.From)

	require.NoError(t, bob.Close())
	left := decodePayload[core.UserLeft](t, next(t, alice, core.EvUserLeft))
	assert.Equal(t, bobJoined.ConnectionID, left.ConnectionID)
	assert.Equal(t, domain.MeetingID("m1"), left.MeetingID)
}

func TestCallOverWebsocket(t *testing.T) {
	s := newTestServer(t, Options{})
	bob := s.dial(t, "user=bob")
	alice := s.dial(t, "")
	send(t, alice, "register_session", map[string]string{"userId": "alice"})

	// Session registration happens on connect for bob; wait until presence is visible.
	require.Eventually(t, func() bool {
		_, ok := s.hub.Registry.Resolve("bob")
		_, ok2 := s.hub.Registry.Resolve("alice")
		return ok && ok2
	}, 2*time.Second, 10*time.Millisecond)

	send(t, alice, "initiate_call", map[string]string{"targetUserId": "bob", "callerName": "Alice", "meetingId": "m1"})
	ring := decodePayload[core.ReceivingCall](t, next(t, bob, core.EvReceivingCall))
	assert.Equal(t, domain.UserID("alice"), ring.CallerUserID)

	send(t, bob, "accept_call", map[string]string{"callerConnectionId": string(ring.CallerConnectionID), "meetingId": "m1"})
	acc := decodePayload[core.CallAccepted](t, next(t, alice, core.EvCallAccepted))
	assert.Equal(t, domain.MeetingID("m1"), acc.MeetingID)

	send(t, alice, "initiate_call", map[string]string{"targetUserId": "carol"})
	failed := decodePayload[core.CallFailed](t, next(t, alice, core.EvCallFailed))
	assert.Equal(t, "offline", failed.Reason)
}

func TestProtocolErrors(t *testing.T) {
	s := newTestServer(t, Options{RateEvents: 2, RateWindow: time.Minute, ValidateSDP: true})
	ws := s.dial(t, "")

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	e := decodePayload[core.ErrorMessage](t, next(t, ws, core.EvError))
	assert.Equal(t, errBadPayload, e.Message)

	send(t, ws, "join_meeting", map[string]string{"meetingId": "zzz", "name": "Alice"})
	e = decodePayload[core.ErrorMessage](t, next(t, ws, core.EvError))
	assert.Equal(t, orch.ErrInvalidMeeting.Error(), e.Message)

	send(t, ws, "join_meeting", map[string]string{"meetingId": "m1"})
	e = decodePayload[core.ErrorMessage](t, next(t, ws, core.EvError))
	assert.Contains(t, e.Message, "invalid_payload")

	send(t, ws, "signal", map[string]any{"to": "x", "type": "offer", "data": map[string]string{"type": "offer", "sdp": "garbage"}})
	e = decodePayload[core.ErrorMessage](t, next(t, ws, core.EvError))
	assert.Contains(t, e.Message, "malformed session description")

	send(t, ws, "enable_ai_delegate", map[string]string{"meetingId": "m1", "name": "Bot"})
	e = decodePayload[core.ErrorMessage](t, next(t, ws, core.EvError))
	assert.Equal(t, orch.ErrNoRoom.Error(), e.Message)

	send(t, ws, "ping", nil)
	next(t, ws, core.EvPong)

	for range 2 {
		send(t, ws, "reaction", map[string]string{"emoji": "👍"})
	}
	send(t, ws, "reaction", map[string]string{"emoji": "👍"})
	e = decodePayload[core.ErrorMessage](t, next(t, ws, core.EvError))
	assert.Equal(t, errRateLimited, e.Message)
}

func TestTranscriptsAndLeave(t *testing.T) {
	s := newTestServer(t, Options{})
	ws := s.dial(t, "")

	send(t, ws, "join_meeting", map[string]string{"meetingId": "m1", "name": "Alice"})
	next(t, ws, core.EvUserJoined)

	send(t, ws, "caption_broadcast", map[string]string{"text": "hello there"})
	require.Eventually(t, func() bool { return len(s.lines()) == 1 }, 2*time.Second, 10*time.Millisecond)

	send(t, ws, "request_transcripts", map[string]string{"meetingId": "m1"})
	th := decodePayload[core.TranscriptHistory](t, next(t, ws, core.EvTranscriptHistory))
	require.Len(t, th.History, 1)
	assert.Equal(t, "Alice", th.History[0].Speaker)

	send(t, ws, "leave_meeting", map[string]string{"meetingId": "m1"})
	next(t, ws, core.EvLeft)
	require.Eventually(t, func() bool { return s.store.EmptiedCount("m1") == 1 }, 2*time.Second, 10*time.Millisecond)
}

func (s *testServer) lines() []domain.TranscriptLine {
	h, _ := s.store.TranscriptHistory(context.Background(), "m1")
	return h
}
