package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "wav/internal/errors"
	"wav/internal/services"
)

// LeaderboardHandler serves the energy leaderboard.
type LeaderboardHandler struct {
	leaderboardService services.LeaderboardServicer
}

// NewLeaderboardHandler creates a new LeaderboardHandler.
func NewLeaderboardHandler(leaderboardService services.LeaderboardServicer) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboardService: leaderboardService}
}

// LeaderboardQuery holds the leaderboard size.
type LeaderboardQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// GetLeaderboard returns the top players by live energy.
// @Summary     Energy leaderboard
// @Tags        leaderboard
// @Produce     json
// @Security    BearerAuth
// @Param       limit query int false "Number of entries (default 10, max 100)"
// @Success     200 {array} services.LeaderboardEntry "Ranked players"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /leaderboard [get]
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	var query LeaderboardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	entries, err := h.leaderboardService.TopByEnergy(c.Request.Context(), query.Limit)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
