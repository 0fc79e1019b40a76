package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "wav/internal/errors"
	"wav/internal/models"
	"wav/internal/pagination"
	"wav/internal/services"
)

// TradeHandler handles trade offers between players.
type TradeHandler struct {
	tradeService   services.TradeServicer
	profileService services.ProfileServicer
	auditService   services.AuditServicer
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(tradeService services.TradeServicer, profileService services.ProfileServicer, auditService services.AuditServicer) *TradeHandler {
	return &TradeHandler{tradeService: tradeService, profileService: profileService, auditService: auditService}
}

// CreateTradeRequest represents a trade offer. The receiver is named by username.
type CreateTradeRequest struct {
	ReceiverUsername string   `json:"receiver_username" binding:"required,username"`
	SenderCardIDs    []string `json:"sender_card_ids" binding:"required,min=1,max=100,dive,uuid"`
	ReceiverCardIDs  []string `json:"receiver_card_ids" binding:"required,min=1,max=100,dive,uuid"`
}

// ListTradesQuery holds the list filter and pagination parameters.
type ListTradesQuery struct {
	pagination.PageRequest
	Direction string `form:"direction" binding:"omitempty,trade_direction"`
}

// CreateTrade offers a card swap to another player.
// @Summary     Create a trade
// @Tags        trades
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateTradeRequest true "Trade offer"
// @Success     201 {object} models.Trade "Trade created"
// @Failure     400 {object} ErrorResponse "Invalid offer"
// @Failure     403 {object} ErrorResponse "Receiver does not accept trades"
// @Failure     404 {object} ErrorResponse "Receiver not found"
// @Router      /trades [post]
func (h *TradeHandler) CreateTrade(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	receiver, err := h.profileService.GetByUsername(req.ReceiverUsername)
	if err != nil {
		respondWithError(c, err)
		return
	}

	trade, err := h.tradeService.CreateTrade(userID, receiver.ID, req.SenderCardIDs, req.ReceiverCardIDs)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditActionTradeCreate, "trade", trade.ID, c.ClientIP(),
		map[string]interface{}{
			"receiver_id":       receiver.ID,
			"sender_card_ids":   req.SenderCardIDs,
			"receiver_card_ids": req.ReceiverCardIDs,
		})

	c.JSON(http.StatusCreated, gin.H{"trade": trade})
}

// ListTrades lists the caller's trades, newest first.
// @Summary     List trades
// @Tags        trades
// @Produce     json
// @Security    BearerAuth
// @Param       direction query string false "incoming, outgoing or all"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Trade] "Paginated trades"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /trades [get]
func (h *TradeHandler) ListTrades(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var query ListTradesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	direction := services.TradeDirectionAll
	if query.Direction != "" {
		direction = services.TradeDirection(query.Direction)
	}

	result, err := h.tradeService.ListTrades(userID, direction, query.PageRequest)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetTrade returns one trade with its current status.
// @Summary     Get a trade
// @Tags        trades
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Trade ID"
// @Success     200 {object} models.Trade "Trade"
// @Failure     403 {object} ErrorResponse "Not a party to the trade"
// @Failure     404 {object} ErrorResponse "Trade not found"
// @Router      /trades/{id} [get]
func (h *TradeHandler) GetTrade(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	tradeID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	trade, err := h.tradeService.GetTrade(tradeID, userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"trade": trade})
}

// AcceptTrade settles a pending trade. Only the receiver may accept.
// @Summary     Accept a trade
// @Tags        trades
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Trade ID"
// @Success     200 {object} models.Trade "Accepted trade"
// @Failure     400 {object} ErrorResponse "Not pending, ownership changed or collection full"
// @Failure     403 {object} ErrorResponse "Only the receiver may accept"
// @Failure     404 {object} ErrorResponse "Trade not found"
// @Router      /trades/{id}/accept [post]
func (h *TradeHandler) AcceptTrade(c *gin.Context) {
	h.transition(c, h.tradeService.AcceptTrade, services.AuditActionTradeAccept)
}

// DeclineTrade rejects a pending trade. Only the receiver may decline.
// @Summary     Decline a trade
// @Tags        trades
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Trade ID"
// @Success     200 {object} models.Trade "Declined trade"
// @Failure     400 {object} ErrorResponse "Not pending"
// @Failure     403 {object} ErrorResponse "Only the receiver may decline"
// @Router      /trades/{id}/decline [post]
func (h *TradeHandler) DeclineTrade(c *gin.Context) {
	h.transition(c, h.tradeService.DeclineTrade, services.AuditActionTradeDecline)
}

// CancelTrade withdraws a pending trade. Only the sender may cancel.
// @Summary     Cancel a trade
// @Tags        trades
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Trade ID"
// @Success     200 {object} models.Trade "Cancelled trade"
// @Failure     400 {object} ErrorResponse "Not pending"
// @Failure     403 {object} ErrorResponse "Only the sender may cancel"
// @Router      /trades/{id}/cancel [post]
func (h *TradeHandler) CancelTrade(c *gin.Context) {
	h.transition(c, h.tradeService.CancelTrade, services.AuditActionTradeCancel)
}

func (h *TradeHandler) transition(c *gin.Context, apply func(tradeID, actorID string) (*models.Trade, error), action string) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	tradeID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	trade, err := apply(tradeID, userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, action, "trade", trade.ID, c.ClientIP(),
		map[string]interface{}{"status": trade.Status})

	c.JSON(http.StatusOK, gin.H{"trade": trade})
}
