package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prepdeck/mockexam-backend/internal/response"
	"github.com/prepdeck/mockexam-backend/internal/service"
	"github.com/prepdeck/mockexam-backend/internal/validator"
	"github.com/rs/zerolog"
)

// AttemptHandler serves the read-only history and review surfaces.
type AttemptHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "attempt_handler").Logger(),
	}
}

// GetReview godoc
// GET /api/v1/attempts/:attempt_id/review
// Returns an attempt next to its exam's full questions, correct options and
// explanations included, for the color-coded comparison view.
func (h *AttemptHandler) GetReview(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	review, err := h.attemptService.GetReview(c.Request.Context(), attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Str("attempt_id", attemptID.String()).Msg("Get review failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, review)
}

// listAttemptsQuery validates the history filters.
type listAttemptsQuery struct {
	ExamID  string `form:"exam_id" binding:"omitempty,uuid"`
	Page    int    `form:"page" binding:"omitempty,min=1"`
	PerPage int    `form:"per_page" binding:"omitempty,min=1,max=100"`
}

// ListAttempts godoc
// GET /api/v1/attempts?exam_id=&page=&per_page=
// Lists completed attempts, newest first, optionally filtered by exam.
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	var query listAttemptsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, validator.TranslateErrors(err))
		return
	}

	var examID *uuid.UUID
	if query.ExamID != "" {
		id, err := uuid.Parse(query.ExamID)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		examID = &id
	}

	attempts, pagination, err := h.attemptService.History(c.Request.Context(), examID, query.Page, query.PerPage)
	if err != nil {
		h.log.Error().Err(err).Msg("List attempts failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, attempts, pagination)
}
