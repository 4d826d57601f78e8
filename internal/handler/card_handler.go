package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/classcard/internal/response"
	"github.com/stemsi/classcard/internal/service"
	"github.com/stemsi/classcard/internal/validator"
	"github.com/stemsi/classcard/internal/view"
)

// CardHandler serves class summary cards as HTML and their data as JSON.
type CardHandler struct {
	classService *service.ClassService
	log          zerolog.Logger
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(classService *service.ClassService, log zerolog.Logger) *CardHandler {
	return &CardHandler{
		classService: classService,
		log:          log.With().Str("component", "card_handler").Logger(),
	}
}

// CardsPage godoc
// GET /classes/cards
// Renders a full page with one card per class.
func (h *CardHandler) CardsPage(c *gin.Context) {
	summaries, err := h.classService.Summaries(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load class summaries")
		response.HTML(c, http.StatusInternalServerError, view.Page("Classes", view.Notice("Classes are unavailable right now.")))
		return
	}

	response.HTML(c, http.StatusOK, view.Page("Classes", view.SummaryGrid(view.FromSummaries(summaries))))
}

// Card godoc
// GET /classes/:id/card
// Renders the summary card fragment of a single class.
func (h *CardHandler) Card(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.HTML(c, http.StatusBadRequest, view.Notice("Invalid class ID."))
		return
	}

	summary, err := h.classService.Summary(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrClassNotFound) {
			response.HTML(c, http.StatusNotFound, view.Notice("Class not found."))
			return
		}
		h.log.Error().Err(err).Int("class_id", id).Msg("Failed to load class summary")
		response.HTML(c, http.StatusInternalServerError, view.Notice("Class is unavailable right now."))
		return
	}

	response.HTML(c, http.StatusOK, view.SummaryView(view.FromSummary(*summary)))
}

// Preview godoc
// POST /api/v1/cards/preview
// Renders a card from a caller-supplied record. The record is rendered as
// given; only the JSON itself must decode.
func (h *CardHandler) Preview(c *gin.Context) {
	var rec view.ClassRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidPayload, validator.TranslateErrors(err))
		return
	}

	response.HTML(c, http.StatusOK, view.SummaryView(rec))
}

// ListSummaries godoc
// GET /api/v1/classes/summaries
// Lists every class with its student count.
func (h *CardHandler) ListSummaries(c *gin.Context) {
	summaries, err := h.classService.Summaries(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load class summaries")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"summaries": summaries})
}

// GetSummary godoc
// GET /api/v1/classes/:id/summary
// Returns one class with its student count and display label.
func (h *CardHandler) GetSummary(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	summary, err := h.classService.Summary(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrClassNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Int("class_id", id).Msg("Failed to load class summary")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"summary": summary,
		"label":   view.StudentCountLabel(summary.StudentCount),
	})
}
