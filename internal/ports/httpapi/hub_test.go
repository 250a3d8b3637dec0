package httpapi

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeduel/internal/app"
	"codeduel/internal/domain"
)

type wireFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func startWS(t *testing.T, store *fakeStore) (*Server, string) {
	t.Helper()
	s := newTestServer(store)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, in app.Intent) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(in))
}

// readUntil skips frames until one of type want arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) wireFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f wireFrame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %q", want)
		if f.Type == want {
			return f
		}
	}
}

func decode[T any](t *testing.T, f wireFrame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Payload, &v))
	return v
}

func TestWebsocketQuickMatchPairs(t *testing.T) {
	_, url := startWS(t, nil)

	a := dial(t, url)
	send(t, a, app.Intent{Type: app.IntentQuickMatch, PlayerName: "Ada"})
	sa := decode[app.SessionPayload](t, readUntil(t, a, app.FrameSession))
	assert.True(t, sa.Created)
	assert.NotEmpty(t, sa.Token)

	b := dial(t, url)
	send(t, b, app.Intent{Type: app.IntentQuickMatch, PlayerName: "Bob", UID: "bob"})
	sb := decode[app.SessionPayload](t, readUntil(t, b, app.FrameSession))
	assert.False(t, sb.Created)
	assert.Equal(t, sa.Room, sb.Room)
	assert.Equal(t, "bob", sb.UserID)

	readUntil(t, a, string(app.EventGameStarted))
	snap := decode[app.Snapshot](t, readUntil(t, a, app.FrameState))
	assert.Equal(t, domain.PhaseInProgress, snap.Status)
	assert.Len(t, snap.Players, 2)
	assert.Len(t, snap.Hand, domain.DefaultRules().StartingHandSize)

	// The player not on turn is rejected.
	other := a
	if snap.TurnOwner == sa.UserID {
		other = b
	}
	send(t, other, app.Intent{Type: app.IntentPassTurn})
	errFrame := decode[app.ErrorPayload](t, readUntil(t, other, app.FrameError))
	assert.Equal(t, "not_your_turn", errFrame.Code)
}

func TestWebsocketIntentOutsideRoom(t *testing.T) {
	_, url := startWS(t, nil)
	conn := dial(t, url)

	rooms := readUntil(t, conn, app.FrameRooms)
	assert.JSONEq(t, `[]`, string(rooms.Payload))

	send(t, conn, app.Intent{Type: app.IntentPlayCard, Card: "x"})
	assert.Equal(t, "room_not_found", decode[app.ErrorPayload](t, readUntil(t, conn, app.FrameError)).Code)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, "invalid_move", decode[app.ErrorPayload](t, readUntil(t, conn, app.FrameError)).Code)

	send(t, conn, app.Intent{Type: app.IntentJoinRoom})
	assert.Equal(t, "invalid_room_code", decode[app.ErrorPayload](t, readUntil(t, conn, app.FrameError)).Code)
}

func TestWebsocketSecondJoinRejected(t *testing.T) {
	_, url := startWS(t, nil)
	conn := dial(t, url)

	send(t, conn, app.Intent{Type: app.IntentJoinRoom, Room: "ROOM1"})
	readUntil(t, conn, app.FrameSession)
	send(t, conn, app.Intent{Type: app.IntentQuickMatch})
	assert.Equal(t, "already_seated", decode[app.ErrorPayload](t, readUntil(t, conn, app.FrameError)).Code)
}

func TestWebsocketAIGame(t *testing.T) {
	store := &fakeStore{}
	_, url := startWS(t, store)
	conn := dial(t, url)

	send(t, conn, app.Intent{Type: app.IntentStartAIGame, PlayerName: "Ada", Difficulty: "hard"})
	session := decode[app.SessionPayload](t, readUntil(t, conn, app.FrameSession))
	assert.True(t, session.Created)

	snap := decode[app.Snapshot](t, readUntil(t, conn, app.FrameState))
	require.Len(t, snap.Players, 2)
	var ai *app.PlayerSnapshot
	for i := range snap.Players {
		if snap.Players[i].IsAI {
			ai = &snap.Players[i]
		}
	}
	require.NotNil(t, ai)
	assert.Equal(t, domain.DifficultyHard, ai.Difficulty)

	send(t, conn, app.Intent{Type: app.IntentLeaveRoom})
	ended := decode[app.GameEndedPayload](t, readUntil(t, conn, string(app.EventGameEnded)))
	assert.Equal(t, []string{ai.UserID}, ended.Winners)
	readUntil(t, conn, app.FrameRooms)
}

func TestWebsocketResumeWithToken(t *testing.T) {
	_, url := startWS(t, nil)

	a := dial(t, url)
	send(t, a, app.Intent{Type: app.IntentJoinRoom, Room: "DUEL", PlayerName: "Ada"})
	sa := decode[app.SessionPayload](t, readUntil(t, a, app.FrameSession))

	b := dial(t, url)
	send(t, b, app.Intent{Type: app.IntentJoinRoom, Room: "DUEL", PlayerName: "Bob"})
	readUntil(t, b, app.FrameSession)
	readUntil(t, b, string(app.EventGameStarted))

	require.NoError(t, a.Close())
	left := decode[app.PlayerLeftPayload](t, readUntil(t, b, string(app.EventPlayerLeft)))
	assert.Equal(t, sa.UserID, left.UserID)
	assert.True(t, left.Temporary)

	again := dial(t, url+"?token="+sa.Token)
	resumed := decode[app.SessionPayload](t, readUntil(t, again, app.FrameSession))
	assert.True(t, resumed.Rejoined)
	assert.Equal(t, "DUEL", resumed.Room)
	assert.Equal(t, sa.UserID, resumed.UserID)

	snap := decode[app.Snapshot](t, readUntil(t, again, app.FrameState))
	assert.Len(t, snap.Hand, domain.DefaultRules().StartingHandSize)
}

func TestWebsocketBadTokenOnConnect(t *testing.T) {
	_, url := startWS(t, nil)
	conn := dial(t, url+"?token=garbage")
	assert.Equal(t, "invalid_token", decode[app.ErrorPayload](t, readUntil(t, conn, app.FrameError)).Code)
}
