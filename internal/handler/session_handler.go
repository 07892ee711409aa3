package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prepdeck/mockexam-backend/internal/middleware"
	"github.com/prepdeck/mockexam-backend/internal/response"
	"github.com/prepdeck/mockexam-backend/internal/service"
	"github.com/prepdeck/mockexam-backend/internal/session"
	"github.com/rs/zerolog"
)

// SessionHandler serves the exam session lifecycle over HTTP: start, resume,
// submit, reset. The per-second action stream lives on the WebSocket handler.
type SessionHandler struct {
	sessionService *service.SessionService
	tokenService   *service.TokenService
	log            zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService, tokenService *service.TokenService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		tokenService:   tokenService,
		log:            log.With().Str("component", "session_handler").Logger(),
	}
}

// StartSession godoc
// POST /api/v1/exams/:exam_id/sessions
// Starts a fresh session for an exam and returns the session token the tab
// uses for every subsequent call.
func (h *SessionHandler) StartSession(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess, payload, err := h.sessionService.Start(c.Request.Context(), examID)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
		case errors.Is(err, service.ErrNoQuestions):
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestions)
		default:
			h.log.Error().Err(err).Str("exam_id", examID.String()).Msg("Start session failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	token, err := h.tokenService.GenerateSessionToken(sess.ID())
	if err != nil {
		h.log.Error().Err(err).Msg("Token generation failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, service.StartResult{
		SessionID:       sess.ID(),
		Token:           token,
		TimeLeftSeconds: sess.TimeLeft(),
		Exam:            payload,
	})
}

// GetState godoc
// GET /api/v1/session/state
// Returns the resume view of the caller's session. Used after a tab reload.
func (h *SessionHandler) GetState(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	state, err := h.sessionService.State(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
			return
		}
		h.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Get state failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// Submit godoc
// POST /api/v1/session/submit
// Runs the submission pipeline for the Finish Test button.
func (h *SessionHandler) Submit(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	attemptID, err := h.sessionService.Submit(c.Request.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		case errors.Is(err, session.ErrSubmitInFlight):
			response.Fail(c, http.StatusConflict, response.ErrSubmitInFlight)
		case errors.Is(err, session.ErrNotActive):
			response.Fail(c, http.StatusConflict, response.ErrSessionNotActive)
		case errors.Is(err, session.ErrInvalidExamID):
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrInvalidID)
		default:
			h.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Submit failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrSubmitFailed)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt_id": attemptID})
}

// Reset godoc
// POST /api/v1/session/reset
// Discards the caller's session and its snapshot.
func (h *SessionHandler) Reset(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	if err := h.sessionService.Reset(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
			return
		}
		h.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Reset failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "reset"})
}

// sessionID pulls the session reference out of the validated token claims.
func (h *SessionHandler) sessionID(c *gin.Context) (uuid.UUID, bool) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return uuid.Nil, false
	}

	sessionID, err := claims.SessionUUID()
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return uuid.Nil, false
	}
	return sessionID, true
}
