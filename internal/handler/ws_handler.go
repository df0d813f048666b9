package handler

import (
	"net/http"
	"strings"

	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/middleware"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/model"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/session"
	ws "github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
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

// WSHandler bridges a candidate's browser to their live session
// machine: inbound messages become machine/monitor events, machine
// emissions flow back through the attached Remote.
type WSHandler struct {
	registry *session.Registry
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(registry *session.Registry, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		registry: registry,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/exams/:exam_id/session
// Upgrades to WebSocket and streams the live session both ways.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam ID"})
		return
	}

	entry := h.registry.Get(examID, claims.UserID)
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no live session, join the exam first"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("user_id", claims.UserID).
		Str("exam_id", examID.String()).
		Logger()

	safe := ws.NewSafeConn(conn)
	entry.Remote.Attach(safe)
	defer entry.Remote.Detach(safe)

	wsLog.Info().Msg("Candidate connected")

	// Push the current view so a reconnecting client resyncs without a
	// second round trip. The blocklist rides along so the client can
	// re-install its input interceptors.
	_ = safe.Send(gin.H{
		"event":          "sync",
		"session":        entry.Machine.SnapshotView(),
		"blocked_inputs": session.Blocklist(),
	})

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		h.dispatch(entry, safe, wsLog, &msg)
	}
}

func (h *WSHandler) dispatch(entry *session.Entry, safe *ws.SafeConn, wsLog zerolog.Logger, msg *ws.RequestPayload) {
	machine := entry.Machine

	switch msg.Action {
	case ws.ActionAnswer:
		h.handleAnswer(machine, safe, msg)

	case ws.ActionToggle:
		if msg.QID == "" {
			_ = safe.SendError("q_id is required")
			return
		}
		machine.ToggleMulti(msg.QID, msg.Option, msg.Selected)

	case ws.ActionNavigate:
		switch msg.Op {
		case ws.NavGoTo:
			machine.GoTo(msg.Index)
		case ws.NavNext:
			machine.Next()
		case ws.NavPrevious:
			machine.Previous()
		default:
			_ = safe.SendError("unknown navigate op: " + msg.Op)
		}

	case ws.ActionFlag:
		if msg.QID == "" {
			_ = safe.SendError("q_id is required")
			return
		}
		machine.ToggleFlag(msg.QID)

	case ws.ActionLockdown:
		h.handleLockdown(machine, safe, msg)

	case ws.ActionBlockedInput:
		machine.Monitor().InputBlocked(msg.Signature)

	case ws.ActionSubmit:
		machine.Submit()

	case ws.ActionRetry:
		machine.Retry()

	case ws.ActionPing:
		_ = safe.Send(ws.PongResponse{Event: ws.EventPong})

	default:
		wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		_ = safe.SendError("unknown action: " + string(msg.Action))
	}
}

// handleAnswer routes a value edit to the right buffer operation based
// on the question's kind.
func (h *WSHandler) handleAnswer(machine *session.Machine, safe *ws.SafeConn, msg *ws.RequestPayload) {
	if msg.QID == "" {
		_ = safe.SendError("q_id is required")
		return
	}

	var question *model.Question
	for i := range machine.Definition().Questions {
		if machine.Definition().Questions[i].ID.String() == msg.QID {
			question = &machine.Definition().Questions[i]
			break
		}
	}
	if question == nil {
		_ = safe.SendError("unknown q_id")
		return
	}

	switch question.Kind {
	case model.KindSingleSelect:
		machine.SetSingle(msg.QID, msg.Value)
	case model.KindMultiSelect:
		_ = safe.SendError("multi-select answers use the toggle action")
	default:
		machine.SetText(msg.QID, msg.Value)
	}
}

// handleLockdown feeds a reported browser event into the monitor. The
// monitor classifies it; the machine decides whether it blocks.
func (h *WSHandler) handleLockdown(machine *session.Machine, safe *ws.SafeConn, msg *ws.RequestPayload) {
	monitor := machine.Monitor()

	switch msg.Event {
	case ws.LockdownFullscreen:
		monitor.FullscreenChanged(msg.Active)
	case ws.LockdownVisibility:
		monitor.VisibilityChanged(msg.Active)
	case ws.LockdownFocus:
		monitor.FocusChanged(msg.Active)
	default:
		_ = safe.SendError("unknown lockdown event: " + msg.Event)
	}
}
