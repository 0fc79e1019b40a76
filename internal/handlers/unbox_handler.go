package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "wav/internal/errors"
	"wav/internal/services"
)

// UnboxHandler handles card unboxing.
type UnboxHandler struct {
	acquisitionService services.AcquisitionServicer
	auditService       services.AuditServicer
}

// NewUnboxHandler creates a new UnboxHandler.
func NewUnboxHandler(acquisitionService services.AcquisitionServicer, auditService services.AuditServicer) *UnboxHandler {
	return &UnboxHandler{acquisitionService: acquisitionService, auditService: auditService}
}

// UnboxRequest optionally names a catalog track. An empty body unboxes a random track.
type UnboxRequest struct {
	TrackID string `json:"track_id" binding:"max=64"`
}

// Unbox adds one card to the caller's collection.
// @Summary     Unbox a card
// @Description Draw a card for a catalog track, at most once every 30 seconds
// @Tags        cards
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body UnboxRequest false "Optional track"
// @Success     201 {object} services.UnboxResult "Card unboxed"
// @Failure     400 {object} ErrorResponse "Invalid input or collection full"
// @Failure     409 {object} ErrorResponse "Card already owned"
// @Failure     429 {object} ErrorResponse "Cooldown active"
// @Failure     502 {object} ErrorResponse "Catalog unavailable"
// @Router      /unbox [post]
func (h *UnboxHandler) Unbox(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UnboxRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}

	result, err := h.acquisitionService.Unbox(c.Request.Context(), userID, services.UnboxSelection{TrackID: req.TrackID})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditActionUnbox, "card", result.Card.ID, c.ClientIP(),
		map[string]interface{}{"track_id": result.Card.SourceTrackID, "is_new": result.IsNew})

	c.JSON(http.StatusCreated, result)
}
