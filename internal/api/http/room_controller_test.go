package http

import (
	"encoding/json"
	"io"
	"log/slog"
	netHTTP "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/medimeet/rtc-backend/internal/domain"
	"github.com/medimeet/rtc-backend/internal/repository"
	"github.com/medimeet/rtc-backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *service.RoomService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repository.NewInMemoryRoomRepository()
	repo.Add(&domain.RoomRecord{JoinCode: 234567, RoomName: "consultation", Password: "pw"})

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	rooms := service.NewRoomService(repo, log, service.Options{
		IdleThreshold: time.Hour,
		SweepInterval: time.Hour,
	})
	t.Cleanup(rooms.Shutdown)

	srv := httptest.NewServer(SetupRouter(NewRoomController(rooms, log, time.Minute)))
	t.Cleanup(srv.Close)
	return srv, rooms
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event map[string]any
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

func TestSessionHandshake(t *testing.T) {
	srv, _ := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/234567/pw"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"user_id": "u1", "username": "dr-jane"}))

	config := readEvent(t, conn)
	assert.Equal(t, domain.TypeWebRTCConfig, config["type"])

	roster := readEvent(t, conn)
	assert.Equal(t, domain.TypeParticipantsList, roster["type"])
	assert.Len(t, roster["participants"], 1)
}

func TestSessionPeerJoinNotification(t *testing.T) {
	srv, _ := newTestServer(t)

	first, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/234567/pw"), nil)
	require.NoError(t, err)
	defer first.Close()
	require.NoError(t, first.WriteJSON(map[string]string{"user_id": "u1", "username": "dr-jane"}))
	readEvent(t, first) // webrtc_config
	readEvent(t, first) // participants_list

	second, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/234567/pw"), nil)
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.WriteJSON(map[string]string{"user_id": "u2", "username": "patient"}))

	joined := readEvent(t, first)
	assert.Equal(t, domain.TypeUserJoined, joined["type"])
	assert.Equal(t, "patient", joined["username"])
}

func TestRejectsWrongPassword(t *testing.T) {
	srv, _ := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/234567/nope"), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, netHTTP.StatusForbidden, resp.StatusCode)
}

func TestRejectsBadJoinCodeBeforeLookup(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/ws/12345/pw", "/ws/abcdef/pw", "/ws/1234567/pw"} {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, path), nil)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		assert.Equal(t, netHTTP.StatusBadRequest, resp.StatusCode)
	}
}

func TestClosesOnMissingIdentification(t *testing.T) {
	srv, _ := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/234567/pw"), nil)
	require.NoError(t, err)
	defer conn.Close()

	// Send garbage instead of the identification message.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"hello":"world"}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseUnsupportedData, closeErr.Code)
}

func TestRoomCloseSendsNormalClosure(t *testing.T) {
	srv, rooms := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/234567/pw"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(map[string]string{"user_id": "u1", "username": "dr-jane"}))
	readEvent(t, conn) // webrtc_config
	readEvent(t, conn) // participants_list

	// Server-side reclaim must end with a clean close frame, not a dropped
	// connection.
	rooms.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
	assert.Equal(t, "room closed", closeErr.Text)
}

func getStatus(t *testing.T, srv *httptest.Server) map[string]any {
	t.Helper()

	resp, err := netHTTP.Get(srv.URL + "/api/rooms/234567/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestRoomStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	body := getStatus(t, srv)
	assert.Equal(t, "not_found", body["status"])

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/234567/pw"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(map[string]string{"user_id": "u1", "username": "dr-jane"}))
	readEvent(t, conn) // webrtc_config confirms registration happened

	body = getStatus(t, srv)
	assert.Equal(t, "active", body["status"])
	assert.Equal(t, float64(1), body["participants"])
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := netHTTP.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, netHTTP.StatusOK, resp.StatusCode)
}
