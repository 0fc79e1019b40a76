package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "wav/internal/errors"
	"wav/internal/services"
)

// GameHandler settles blackjack rounds played with cards as stakes.
type GameHandler struct {
	gameService  services.GameServicer
	auditService services.AuditServicer
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(gameService services.GameServicer, auditService services.AuditServicer) *GameHandler {
	return &GameHandler{gameService: gameService, auditService: auditService}
}

// SettleOutcome is the path parameter naming a round's result.
type SettleOutcome struct {
	Outcome string `uri:"outcome" binding:"required,game_outcome"`
}

// SettleRequest carries what a round's result needs: the won tracks or the
// staked card that was lost.
type SettleRequest struct {
	TrackIDs     []string `json:"track_ids" binding:"max=100,dive,required,max=64"`
	StakedCardID string   `json:"staked_card_id" binding:"omitempty,uuid"`
}

// Stake picks a random card from the caller's collection to play for.
// @Summary     Stake a card
// @Tags        games
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.OwnedCard "Staked card"
// @Failure     404 {object} ErrorResponse "No cards to stake"
// @Router      /games/stake [post]
func (h *GameHandler) Stake(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	staked, err := h.gameService.Stake(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"staked": staked})
}

// Settle applies a round's result: win claims the given tracks, loss gives up
// the staked card and push changes nothing.
// @Summary     Settle a round
// @Tags        games
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       outcome path string        true "win, loss or push"
// @Param       request body SettleRequest false "Won tracks or lost card"
// @Success     200 {object} map[string]interface{} "Settlement"
// @Failure     400 {object} ErrorResponse "Invalid input or card not owned"
// @Failure     502 {object} ErrorResponse "Catalog unavailable"
// @Router      /games/{outcome} [post]
func (h *GameHandler) Settle(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var outcome SettleOutcome
	if err := c.ShouldBindUri(&outcome); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "outcome must be win, loss or push"))
		return
	}

	var req SettleRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}

	switch outcome.Outcome {
	case "win":
		if len(req.TrackIDs) == 0 {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "track_ids is required for a win"))
			return
		}
		result, err := h.gameService.OnWin(c.Request.Context(), userID, req.TrackIDs)
		if err != nil {
			respondWithError(c, err)
			return
		}
		h.auditService.Log(userID, services.AuditActionGameWin, "user", userID, c.ClientIP(),
			map[string]interface{}{"added": len(result.AddedCardIDs), "skipped": result.Skipped})
		c.JSON(http.StatusOK, gin.H{"outcome": outcome.Outcome, "claim": result})

	case "loss":
		if req.StakedCardID == "" {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "staked_card_id is required for a loss"))
			return
		}
		user, err := h.gameService.OnLoss(userID, req.StakedCardID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		h.auditService.Log(userID, services.AuditActionGameLoss, "card", req.StakedCardID, c.ClientIP(), nil)
		c.JSON(http.StatusOK, gin.H{"outcome": outcome.Outcome, "user": user})

	default:
		h.gameService.OnPush(userID)
		c.JSON(http.StatusOK, gin.H{"outcome": outcome.Outcome})
	}
}
