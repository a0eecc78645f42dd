// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/viewguard/viewguard/internal/auth"
	"github.com/viewguard/viewguard/internal/authz"
	"github.com/viewguard/viewguard/internal/course"
	"github.com/viewguard/viewguard/internal/logging"
	"github.com/viewguard/viewguard/internal/metrics"
	"github.com/viewguard/viewguard/internal/playback"
	"github.com/viewguard/viewguard/internal/session"
)

const (
	wsReadLimit  = 4096
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second

	// Inbound message rate cap. Native timeupdate plus embedded samples
	// arrive at a few Hz; anything past this is a misbehaving client.
	wsMessageRate  = 20
	wsMessageBurst = 40
)

// Inbound message types.
const (
	msgActivate    = "activate"
	msgNative      = "native"
	msgEmbedded    = "embedded"
	msgInteraction = "interaction"
	msgQuiz        = "quiz"
	msgTeardown    = "teardown"
)

// Player kinds accepted by activate.
const (
	playerNative   = "native"
	playerEmbedded = "embedded"
)

// inboundMessage is the union of all client-to-server messages; Type
// selects which fields are meaningful.
type inboundMessage struct {
	Type string `json:"type"`

	// activate
	CourseID  string `json:"courseId"`
	UnitIndex int    `json:"unitIndex"`
	Player    string `json:"player"`
	PageURL   string `json:"pageUrl"`

	// native player relay
	Event string `json:"event"`

	// embedded player relay
	State string `json:"state"`

	// shared playback sample fields
	CurrentTime  float64 `json:"currentTime"`
	Duration     float64 `json:"duration"`
	PlaybackRate float64 `json:"playbackRate"`

	// interaction
	Action     string `json:"action"`
	TargetID   string `json:"targetId"`
	TargetType string `json:"targetType"`

	// quiz
	Code string `json:"code"`
}

type outboundMessage struct {
	Type      string  `json:"type"`
	SessionID string  `json:"sessionId,omitempty"`
	VideoID   string  `json:"videoId,omitempty"`
	Action    string  `json:"action,omitempty"`
	Position  float64 `json:"position,omitempty"`
	Passed    *bool   `json:"passed,omitempty"`
	Message   string  `json:"message,omitempty"`
}

// WSHandler owns the playback ingest socket. One connection drives one
// unit session.
type WSHandler struct {
	manager  *session.Manager
	catalog  *course.Catalog
	enforcer *authz.Enforcer
	upgrader websocket.Upgrader
}

// NewWSHandler creates the WebSocket handler. Origins are already
// enforced by the CORS layer; the upgrader accepts what reaches it.
func NewWSHandler(manager *session.Manager, catalog *course.Catalog, enforcer *authz.Enforcer) *WSHandler {
	return &WSHandler{
		manager:  manager,
		catalog:  catalog,
		enforcer: enforcer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// wsConn is the per-connection state.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	limiter *rate.Limiter

	claims *auth.Claims

	ctrl    *session.Controller
	native  *playback.NativeMediaAdapter
	embed   *playback.EmbeddedPlayerAdapter
}

// Serve upgrades the request and runs the connection until the client
// disconnects. Must sit behind the authentication middleware.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		WriteError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	metrics.WebSocketConnections.Inc()
	defer metrics.WebSocketConnections.Dec()

	c := &wsConn{
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(wsMessageRate), wsMessageBurst),
		claims:  claims,
	}
	h.run(c, r)
}

func (h *WSHandler) run(c *wsConn, r *http.Request) {
	defer func() {
		if c.ctrl != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := h.manager.Teardown(ctx, c.ctrl.SessionID()); err != nil {
				logging.Warn().Err(err).Msg("session teardown on disconnect failed")
			}
			cancel()
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(wsReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go c.pingLoop(stopPing)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug().Err(err).Msg("websocket closed unexpectedly")
			}
			return
		}
		metrics.WebSocketMessages.WithLabelValues("inbound").Inc()

		if !c.limiter.Allow() {
			metrics.EventsDropped.WithLabelValues("rate_limit").Inc()
			continue
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError("malformed message")
			continue
		}
		if done := h.dispatch(c, r, &msg); done {
			return
		}
	}
}

// dispatch handles one inbound message. Returns true when the
// connection should close.
func (h *WSHandler) dispatch(c *wsConn, r *http.Request, msg *inboundMessage) bool {
	switch msg.Type {
	case msgActivate:
		h.activate(c, r, msg)
	case msgNative:
		if c.ctrl == nil || c.native == nil {
			c.sendError("no active native session")
			return false
		}
		if msg.Event == playback.NativeSeeking {
			c.ctrl.NoteSeeking()
		}
		c.native.HandleMessage(playback.NativeMessage{
			Event:        msg.Event,
			CurrentTime:  msg.CurrentTime,
			Duration:     msg.Duration,
			PlaybackRate: msg.PlaybackRate,
		})
	case msgEmbedded:
		if c.ctrl == nil || c.embed == nil {
			c.sendError("no active embedded session")
			return false
		}
		c.embed.HandleMessage(playback.EmbeddedMessage{
			State:        msg.State,
			CurrentTime:  msg.CurrentTime,
			Duration:     msg.Duration,
			PlaybackRate: msg.PlaybackRate,
		})
	case msgInteraction:
		if c.ctrl == nil {
			c.sendError("no active session")
			return false
		}
		if err := c.ctrl.TrackInteraction(msg.Action, msg.TargetID, msg.TargetType); err != nil {
			c.sendError("interaction not recorded")
		}
	case msgQuiz:
		if c.ctrl == nil {
			c.sendError("no active session")
			return false
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		passed, err := c.ctrl.VerifyQuiz(ctx, msg.Code)
		cancel()
		if err != nil {
			c.sendError("quiz verification failed")
			return false
		}
		c.send(outboundMessage{Type: "quiz_result", Passed: &passed})
	case msgTeardown:
		return true
	default:
		c.sendError("unknown message type")
	}
	return false
}

func (h *WSHandler) activate(c *wsConn, r *http.Request, msg *inboundMessage) {
	if c.ctrl != nil {
		c.sendError("session already active on this connection")
		return
	}

	crs := h.catalog.Get(msg.CourseID)
	if crs == nil {
		c.sendError("unknown course")
		return
	}
	isAdmin := c.claims.Role == authz.RoleAdmin
	if !crs.ViewableBy(c.claims.EmployeeID, isAdmin, time.Now()) {
		c.sendError("course not available")
		return
	}

	sender := playback.CommandSender(func(cmd playback.Command) error {
		return c.send(outboundMessage{Type: "command", Action: cmd.Action, Position: cmd.Position})
	})

	// When the client does not name a player, infer it from the unit
	// URL: direct media files get the native adapter, everything else
	// the embedded one.
	player := msg.Player
	if player == "" && msg.UnitIndex >= 0 && msg.UnitIndex < len(crs.Units) {
		if playback.IsDirectMediaURL(crs.Units[msg.UnitIndex].URL) {
			player = playerNative
		} else {
			player = playerEmbedded
		}
	}

	var source playback.Source
	switch player {
	case playerNative:
		c.native = playback.NewNativeMediaAdapter(sender)
		source = c.native
	case playerEmbedded:
		c.embed = playback.NewEmbeddedPlayerAdapter(sender)
		source = c.embed
	default:
		c.sendError("player must be native or embedded")
		return
	}

	bypass := h.enforcer.CanBypassGuard(c.claims.EmployeeID, rolesOf(c.claims))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ctrl, err := h.manager.Activate(ctx, session.ActivateRequest{
		UserID:      c.claims.EmployeeID,
		Course:      crs,
		UnitIndex:   msg.UnitIndex,
		Source:      source,
		PageURL:     msg.PageURL,
		UserAgent:   r.UserAgent(),
		GuardBypass: bypass,
	})
	if err != nil {
		source.Close()
		c.native, c.embed = nil, nil
		logging.Warn().Err(err).Str("course_id", msg.CourseID).Int("unit_index", msg.UnitIndex).Msg("session activation failed")
		c.sendError("session activation failed")
		return
	}

	c.ctrl = ctrl
	ack := outboundMessage{Type: "activated", SessionID: ctrl.SessionID()}
	if c.embed != nil && msg.UnitIndex >= 0 && msg.UnitIndex < len(crs.Units) {
		// The embedded player boots from the resolved video ID, not
		// the raw unit URL.
		if id, ok := playback.EmbedVideoID(crs.Units[msg.UnitIndex].URL); ok {
			ack.VideoID = id
		}
	}
	c.send(ack)
}

func (c *wsConn) send(msg outboundMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		return err
	}
	metrics.WebSocketMessages.WithLabelValues("outbound").Inc()
	return nil
}

func (c *wsConn) sendError(message string) {
	_ = c.send(outboundMessage{Type: "error", Message: message})
}

func (c *wsConn) pingLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
