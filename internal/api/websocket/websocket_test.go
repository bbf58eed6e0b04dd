package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KevinKickass/FleetView/internal/auth"
	"github.com/KevinKickass/FleetView/internal/config"
	"github.com/KevinKickass/FleetView/internal/session"
	"github.com/KevinKickass/FleetView/internal/types"
	"github.com/KevinKickass/FleetView/internal/ui"
	"github.com/KevinKickass/FleetView/internal/vehicle"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProfiles struct {
	err error
}

func (s stubProfiles) Load(context.Context, *session.Session) (*auth.ProfileResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &auth.ProfileResult{Profile: &types.Profile{UserName: "ana", Email: "ana@example.com"}}, nil
}

type received struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

func startServer(t *testing.T, profiles ui.ProfileLoader) (*Hub, string) {
	t.Helper()

	hub := NewHub(zap.NewNop())
	go hub.Run()
	t.Cleanup(hub.Stop)

	store := session.NewMemoryStore(0)
	keys := config.StorageKeys{AuthToken: "authToken", Username: "username", UserData: "user_data", SidebarState: "sidebarState"}
	builder := vehicle.NewService(vehicle.NewGenerator(nil, nil), vehicle.NewLayouts(nil, nil), nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("session")
		sess := session.New(id, store, keys)
		d := ui.NewDispatcher(sess, profiles, builder, vehicle.NewTimeSeededRand(), "https://report", zap.NewNop())
		ServeWs(hub, w, r, id, d)
	}))
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessages reads until n messages arrived; frames may carry several
// newline-separated messages.
func readMessages(t *testing.T, conn *websocket.Conn, n int) []received {
	t.Helper()
	var out []received
	for len(out) < n {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		for _, line := range strings.Split(string(data), "\n") {
			var msg received
			require.NoError(t, json.Unmarshal([]byte(line), &msg))
			out = append(out, msg)
		}
	}
	return out
}

func TestClient_InitialStateAndEvents(t *testing.T) {
	_, url := startServer(t, stubProfiles{})
	conn := dial(t, url+"?session=s1")

	msgs := readMessages(t, conn, 3)
	assert.Equal(t, MessageTypeNav, msgs[0].Type)
	assert.Equal(t, MessageTypeShell, msgs[1].Type)
	assert.Equal(t, MessageTypeViz, msgs[2].Type)

	var shell ui.ShellState
	require.NoError(t, json.Unmarshal(msgs[1].Data, &shell))
	assert.Equal(t, ui.PhaseContent, shell.Phase)
	assert.Equal(t, "ana", shell.Profile.UserName)

	require.NoError(t, conn.WriteJSON(ui.Event{Type: "zoom_in"}))
	msgs = readMessages(t, conn, 1)
	require.Equal(t, MessageTypeViz, msgs[0].Type)
	var viz ui.VizView
	require.NoError(t, json.Unmarshal(msgs[0].Data, &viz))
	assert.Contains(t, viz.Transform, "scale(1.1)")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":`)))
	msgs = readMessages(t, conn, 1)
	assert.Equal(t, MessageTypeError, msgs[0].Type)

	require.NoError(t, conn.WriteJSON(ui.Event{Type: "navigate", Section: "fleet"}))
	msgs = readMessages(t, conn, 1)
	var nav ui.NavView
	require.NoError(t, json.Unmarshal(msgs[0].Data, &nav))
	assert.Equal(t, ui.SectionFleet, nav.Active)
	assert.Equal(t, "https://report", nav.ReportURL)
}

func TestHub_EndSession(t *testing.T) {
	hub, url := startServer(t, stubProfiles{})

	a := dial(t, url+"?session=s1")
	b := dial(t, url+"?session=s1")
	other := dial(t, url+"?session=s2")
	readMessages(t, a, 3)
	readMessages(t, b, 3)
	readMessages(t, other, 3)

	assert.Equal(t, 2, hub.SessionClientCount("s1"))
	assert.Equal(t, 3, hub.GetClientCount())

	assert.Equal(t, 2, hub.EndSession("s1", "logout", LoginRedirect))

	for _, conn := range []*websocket.Conn{a, b} {
		msgs := readMessages(t, conn, 1)
		require.Equal(t, MessageTypeSessionEnded, msgs[0].Type)
		var data SessionEndedData
		require.NoError(t, json.Unmarshal(msgs[0].Data, &data))
		assert.Equal(t, "/login", data.Redirect)
	}

	assert.Equal(t, 0, hub.EndSession("nobody", "logout", LoginRedirect))
}

func TestClient_ExpiredSession(t *testing.T) {
	_, url := startServer(t, stubProfiles{err: &types.Error{Kind: types.KindAuthExpired, Op: "test", Status: 401}})
	conn := dial(t, url+"?session=s1")

	msgs := readMessages(t, conn, 1)
	assert.Equal(t, MessageTypeSessionEnded, msgs[0].Type)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "server closes the connection after session_ended")
}
