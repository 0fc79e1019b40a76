package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "wav/internal/errors"
	"wav/internal/services"
)

// StatsHandler handles daily stat history and the scheduler's recording run.
type StatsHandler struct {
	dailyStatService services.DailyStatServicer
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(dailyStatService services.DailyStatServicer) *StatsHandler {
	return &StatsHandler{dailyStatService: dailyStatService}
}

// RecordDailyStatsRequest optionally pins the recording instant.
type RecordDailyStatsRequest struct {
	RecordedAt *time.Time `json:"recorded_at"`
}

// RecordDailyStats records today's stats for every player.
// @Summary     Record daily stats
// @Description Recompute and store the day's stats for all users (pipeline endpoint)
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Param       X-API-Key header   string                  true  "Pipeline API key"
// @Param       request   body     RecordDailyStatsRequest false "Recording instant"
// @Success     200       {object} map[string]int          "Users recorded"
// @Failure     401       {object} ErrorResponse           "Invalid API key"
// @Failure     503       {object} ErrorResponse           "Pipeline not configured"
// @Router      /pipeline/daily-stats [post]
func (h *StatsHandler) RecordDailyStats(c *gin.Context) {
	var req RecordDailyStatsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}
	recordedAt := time.Now()
	if req.RecordedAt != nil {
		recordedAt = *req.RecordedAt
	}

	count, err := h.dailyStatService.RecordDailyStats(recordedAt)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users_recorded": count})
}

// GetHistory returns the caller's stats per day.
// @Summary     Stat history
// @Tags        stats
// @Produce     json
// @Security    BearerAuth
// @Param       from_date query string true "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       to_date   query string true "End date (RFC3339 or YYYY-MM-DD)"
// @Success     200 {array}  services.HistoryPoint "One point per day"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /stats/history [get]
func (h *StatsHandler) GetHistory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	fromStr := c.Query("from_date")
	if fromStr == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "from_date is required"))
		return
	}
	from, err := parseFlexibleTime(fromStr)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	toStr := c.Query("to_date")
	if toStr == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "to_date is required"))
		return
	}
	to, err := parseFlexibleTime(toStr)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	points, err := h.dailyStatService.GetHistory(userID, from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": points})
}
