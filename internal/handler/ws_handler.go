package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/examgate/examgate-backend/internal/middleware"
	"github.com/examgate/examgate-backend/internal/service"
	ws "github.com/examgate/examgate-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams live session monitoring to an assigned proctor.
type WSHandler struct {
	proctorService *service.ProctorService
	monitorService *service.MonitorService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

func NewWSHandler(proctorService *service.ProctorService, monitorService *service.MonitorService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		proctorService: proctorService,
		monitorService: monitorService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// MonitorStream godoc
// WS /ws/v1/proctoring/sessions/:sessionId/monitor
// Upgrades to WebSocket and pushes a snapshot followed by live events.
func (h *WSHandler) MonitorStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	// Assignment check happens before the upgrade so an unassigned
	// proctor gets a plain HTTP error instead of a dead socket.
	snapshot, err := h.proctorService.Monitor(c.Request.Context(), claims.UserID, sessionID)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "not assigned to this session"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("proctor_id", claims.UserID).
		Str("session_id", sessionID.String()).
		Logger()
	wsLog.Info().Msg("Proctor connected")

	pubsub := h.monitorService.Subscribe(c.Request.Context(), sessionID)
	defer pubsub.Close()

	if err := ws.WriteSnapshot(conn, snapshot); err != nil {
		wsLog.Warn().Err(err).Msg("Initial snapshot write failed")
		return
	}

	// The gorilla connection allows one writer at a time. The read loop
	// runs in its own goroutine and funnels actions here so all writes
	// stay on this goroutine.
	actions := make(chan ws.Action)
	readDone := make(chan struct{})
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		defer close(readDone)
		for {
			env, err := ws.ReadEnvelope(conn)
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				} else {
					wsLog.Debug().Msg("Connection closed")
				}
				return
			}
			select {
			case actions <- env.Action:
			case <-quit:
				return
			}
		}
	}()

	events := pubsub.Channel()
	for {
		select {
		case msg, ok := <-events:
			if !ok {
				return
			}
			if err := ws.WriteMonitor(conn, json.RawMessage(msg.Payload)); err != nil {
				wsLog.Warn().Err(err).Msg("Event write failed")
				return
			}
		case action, ok := <-actions:
			if !ok {
				return
			}
			switch action {
			case ws.ActionPing:
				if err := ws.WritePong(conn); err != nil {
					return
				}
			case ws.ActionRefresh:
				snapshot, err := h.proctorService.Monitor(c.Request.Context(), claims.UserID, sessionID)
				if err != nil {
					ws.WriteError(conn, "snapshot failed")
					continue
				}
				if err := ws.WriteSnapshot(conn, snapshot); err != nil {
					return
				}
			default:
				wsLog.Warn().Str("action", string(action)).Msg("Unknown action")
				ws.WriteError(conn, "unknown action: "+string(action))
			}
		case <-readDone:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
