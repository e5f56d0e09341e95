package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/medimeet/rtc-backend/internal/domain"
	"github.com/medimeet/rtc-backend/internal/repository"
	"github.com/medimeet/rtc-backend/internal/service"
	"github.com/medimeet/rtc-backend/lib/logger/sl"
)

const (
	joinCodeMin = 100000
	joinCodeMax = 999999

	// identifyTimeout bounds how long a freshly accepted connection may take
	// to send its identification message.
	identifyTimeout = 30 * time.Second
)

type RoomController struct {
	rooms     service.RoomCoordinator
	log       *slog.Logger
	heartbeat time.Duration
	upgrader  websocket.Upgrader
}

func NewRoomController(rooms service.RoomCoordinator, log *slog.Logger, heartbeat time.Duration) *RoomController {
	if log == nil {
		log = slog.Default()
	}
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &RoomController{
		rooms:     rooms,
		log:       log,
		heartbeat: heartbeat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// ServeWS handles GET /ws/:joinCode/:password. Join code format and password
// presence are checked before any store lookup; verification failure refuses
// the handshake so no partial state is ever created.
func (c *RoomController) ServeWS(ctx *gin.Context) {
	const op = "http.room.ws"
	log := c.log.With(slog.String("op", op))

	joinCode, err := strconv.Atoi(ctx.Param("joinCode"))
	if err != nil || joinCode < joinCodeMin || joinCode > joinCodeMax {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "join code must be a 6-digit integer"})
		return
	}

	password := ctx.Param("password")
	if strings.TrimSpace(password) == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}

	log = log.With(slog.Int("join_code", joinCode))

	if err := c.rooms.Verify(ctx.Request.Context(), joinCode, password); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			ctx.JSON(http.StatusForbidden, gin.H{"error": "invalid room or password"})
			return
		}
		log.Error("room verification failed", sl.Err(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify room"})
		return
	}

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Error("failed to upgrade connection", sl.Err(err))
		return
	}

	// First message after the upgrade must identify the user.
	_ = conn.SetReadDeadline(time.Now().Add(identifyTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Warn("no identification message received", sl.Err(err))
		closeWith(conn, websocket.CloseUnsupportedData, "identification required")
		return
	}

	ident, err := domain.DecodeIdentification(data)
	if err != nil {
		log.Warn("malformed identification message", sl.Err(err))
		closeWith(conn, websocket.CloseUnsupportedData, "identification required")
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	client := domain.NewClient(ident.UserID, ident.Username, conn)

	room, err := c.rooms.Register(ctx.Request.Context(), joinCode, client)
	if err != nil {
		log.Warn("failed to register client", sl.Err(err))
		closeWith(conn, websocket.CloseTryAgainLater, "registration failed")
		return
	}

	sess := &session{
		conn:      conn,
		client:    client,
		room:      room,
		rooms:     c.rooms,
		log:       log.With(slog.String("client_id", client.ID)),
		heartbeat: c.heartbeat,
	}
	sess.run()
}

// RoomStatus handles GET /api/rooms/:joinCode/status.
func (c *RoomController) RoomStatus(ctx *gin.Context) {
	joinCode, err := strconv.Atoi(ctx.Param("joinCode"))
	if err != nil || joinCode < joinCodeMin || joinCode > joinCodeMax {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "join code must be a 6-digit integer"})
		return
	}

	status, ok := c.rooms.Status(joinCode)
	if !ok {
		ctx.JSON(http.StatusOK, gin.H{"status": "not_found", "participants": 0})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":        "active",
		"participants":  status.Participants,
		"created_at":    status.CreatedAt,
		"last_activity": status.LastActivity,
	})
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(5 * time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
}
