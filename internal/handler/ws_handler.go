package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prepdeck/mockexam-backend/internal/middleware"
	"github.com/prepdeck/mockexam-backend/internal/model"
	"github.com/prepdeck/mockexam-backend/internal/response"
	"github.com/prepdeck/mockexam-backend/internal/service"
	"github.com/prepdeck/mockexam-backend/internal/session"
	ws "github.com/prepdeck/mockexam-backend/internal/websocket"
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

// WSHandler streams exam-taking actions over a WebSocket: answer, flag,
// strikethrough and navigation events go up, countdown ticks and the
// submitted announcement come down.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/session/stream?token=...
// Upgrades to WebSocket for the duration of an exam session.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := claims.SessionUUID()
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return
	}

	sess, err := h.sessionService.Resolve(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
			return
		}
		h.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Resolve failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	sc := ws.NewSafeConn(conn)
	defer sc.Close()

	wsLog := h.log.With().Str("session_id", sessionID.String()).Logger()
	wsLog.Info().Msg("Session stream connected")

	// clientSubmitted distinguishes a manual finish (announced inline by the
	// action loop) from the timer hitting zero (announced by the pusher).
	var clientSubmitted atomic.Bool
	done := make(chan struct{})
	defer close(done)

	go h.pushTicks(sc, sess, &clientSubmitted, done)

	for {
		var msg ws.RequestPayload
		if err := sc.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionAnswer:
			h.handleAnswer(sc, sess, &msg)
		case ws.ActionFlag:
			h.handleFlag(sc, sess, &msg)
		case ws.ActionStrike:
			h.handleStrike(sc, sess, &msg)
		case ws.ActionNavigate:
			sess.Navigate(context.Background(), msg.Index)
			sc.WriteTyped(ws.AckResponse{Event: ws.EventSuccess, Action: ws.ActionNavigate})
		case ws.ActionSubmit:
			h.handleSubmit(sc, wsLog, sessionID, &clientSubmitted)
		case ws.ActionPing:
			sc.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			sc.WriteError("unknown action: " + string(msg.Action))
		}
	}
}

// pushTicks streams the countdown once per second and announces termination
// when the runner auto-submits.
func (h *WSHandler) pushTicks(sc *ws.SafeConn, sess *session.Session, clientSubmitted *atomic.Bool, done <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			switch sess.Phase() {
			case session.PhaseActive:
				if err := sc.WriteTyped(ws.TickResponse{
					Event:           ws.EventTick,
					TimeLeftSeconds: sess.TimeLeft(),
				}); err != nil {
					return
				}
			case session.PhaseTerminated:
				if clientSubmitted.Load() {
					return
				}
				if attemptID, ok := sess.Result(); ok {
					sc.WriteTyped(ws.SubmittedResponse{
						Event:     ws.EventSubmitted,
						AttemptID: attemptID.String(),
						Auto:      true,
					})
				}
				return
			}
		}
	}
}

// handleAnswer validates the payload at the boundary and records the answer.
// The session itself accepts any option label; only the transport checks it.
func (h *WSHandler) handleAnswer(sc *ws.SafeConn, sess *session.Session, msg *ws.RequestPayload) {
	if _, err := uuid.Parse(msg.QuestionID); err != nil {
		sc.WriteError("invalid question_id format")
		return
	}
	opt := model.Option(msg.Option)
	if !opt.Valid() {
		sc.WriteError("option must be one of A, B, C")
		return
	}

	sess.SetAnswer(context.Background(), msg.QuestionID, opt)
	sc.WriteTyped(ws.AckResponse{Event: ws.EventSuccess, Action: ws.ActionAnswer})
}

func (h *WSHandler) handleFlag(sc *ws.SafeConn, sess *session.Session, msg *ws.RequestPayload) {
	if _, err := uuid.Parse(msg.QuestionID); err != nil {
		sc.WriteError("invalid question_id format")
		return
	}

	sess.ToggleFlag(context.Background(), msg.QuestionID)
	sc.WriteTyped(ws.AckResponse{Event: ws.EventSuccess, Action: ws.ActionFlag})
}

func (h *WSHandler) handleStrike(sc *ws.SafeConn, sess *session.Session, msg *ws.RequestPayload) {
	if _, err := uuid.Parse(msg.QuestionID); err != nil {
		sc.WriteError("invalid question_id format")
		return
	}
	opt := model.Option(msg.Option)
	if !opt.Valid() {
		sc.WriteError("option must be one of A, B, C")
		return
	}

	sess.ToggleStrikethrough(context.Background(), msg.QuestionID, opt)
	sc.WriteTyped(ws.AckResponse{Event: ws.EventSuccess, Action: ws.ActionStrike})
}

func (h *WSHandler) handleSubmit(sc *ws.SafeConn, wsLog zerolog.Logger, sessionID uuid.UUID, clientSubmitted *atomic.Bool) {
	attemptID, err := h.sessionService.Submit(context.Background(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSubmitInFlight):
			sc.WriteError("submission already in progress")
		case errors.Is(err, session.ErrNotActive), errors.Is(err, session.ErrSessionNotFound):
			sc.WriteError("session is no longer active")
		default:
			wsLog.Error().Err(err).Msg("Submit failed")
			sc.WriteError("submit failed, please retry")
		}
		return
	}

	clientSubmitted.Store(true)
	sc.WriteTyped(ws.SubmittedResponse{
		Event:     ws.EventSubmitted,
		AttemptID: attemptID.String(),
		Auto:      false,
	})
}
