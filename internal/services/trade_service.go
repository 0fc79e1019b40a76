package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "wav/internal/errors"
	"wav/internal/logger"
	"wav/internal/models"
	"wav/internal/pagination"
)

// tradeService runs the trade offer state machine. Status is derived lazily
// on every read; nothing sweeps expired trades in the background.
type tradeService struct {
	db     *gorm.DB
	ledger LedgerServicer
	now    func() time.Time
}

// NewTradeService creates a new TradeServicer.
func NewTradeService(db *gorm.DB, ledger LedgerServicer) TradeServicer {
	return &tradeService{db: db, ledger: ledger, now: time.Now}
}

// CreateTrade validates and persists a pending trade with its card rows.
func (s *tradeService) CreateTrade(senderID, receiverID string, senderCardIDs, receiverCardIDs []string) (*models.Trade, error) {
	if senderID == receiverID {
		return nil, apperrors.ErrInvalidParties
	}
	if len(senderCardIDs) == 0 || len(receiverCardIDs) == 0 {
		return nil, apperrors.ErrEmptyOffer
	}
	if hasDuplicates(senderCardIDs, receiverCardIDs) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "a card may appear only once in a trade")
	}

	if _, err := findUser(s.db, senderID); err != nil {
		return nil, err
	}
	receiver, err := findUser(s.db, receiverID)
	if err != nil {
		return nil, err
	}
	if receiver.TradePrivacy == models.PrivacyPrivate {
		return nil, apperrors.WithMessage(apperrors.ErrForbidden, "This user is not accepting trades")
	}

	if err := requireHeld(s.db, senderID, senderCardIDs, apperrors.ErrNotOwned); err != nil {
		return nil, err
	}
	if err := requireHeld(s.db, receiverID, receiverCardIDs, apperrors.ErrNotOwned); err != nil {
		return nil, err
	}
	if err := rejectAlreadyHeld(s.db, receiverID, senderCardIDs); err != nil {
		return nil, err
	}
	if err := rejectAlreadyHeld(s.db, senderID, receiverCardIDs); err != nil {
		return nil, err
	}

	now := s.now()
	trade := &models.Trade{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     models.TradeStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Cards").Create(trade).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		cards := make([]models.TradeCard, 0, len(senderCardIDs)+len(receiverCardIDs))
		for _, id := range senderCardIDs {
			cards = append(cards, models.TradeCard{TradeID: trade.ID, CardID: id, OwnerType: models.TradeSideSender})
		}
		for _, id := range receiverCardIDs {
			cards = append(cards, models.TradeCard{TradeID: trade.ID, CardID: id, OwnerType: models.TradeSideReceiver})
		}
		if err := tx.Create(&cards).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		trade.Cards = cards
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trade, nil
}

// EvaluateStatus derives the effective status of a trade at now. A pending
// trade reads as expired once its window has passed, once it was invalidated,
// or once any offered card has left the side that offered it. Storage is
// never modified.
func (s *tradeService) EvaluateStatus(trade *models.Trade, now time.Time) (models.TradeStatus, error) {
	if status := statusByTime(trade, now); status != models.TradeStatusPending {
		return status, nil
	}
	held, err := cardsStillHeld(s.db, trade)
	if err != nil {
		return "", err
	}
	if !held {
		return models.TradeStatusExpired, nil
	}
	return models.TradeStatusPending, nil
}

func statusByTime(trade *models.Trade, now time.Time) models.TradeStatus {
	if trade.Status != models.TradeStatusPending {
		return trade.Status
	}
	if trade.InvalidatedAt != nil || !now.Before(trade.ExpiresAt()) {
		return models.TradeStatusExpired
	}
	return models.TradeStatusPending
}

// currentStatus evaluates the trade and, when it has drifted, records the
// drift so the trade cannot read as pending again if the cards come back.
func (s *tradeService) currentStatus(trade *models.Trade, now time.Time) (models.TradeStatus, error) {
	status, err := s.EvaluateStatus(trade, now)
	if err != nil {
		return "", err
	}
	if status == models.TradeStatusExpired && statusByTime(trade, now) == models.TradeStatusPending {
		if err := s.recordDrift(trade, now); err != nil {
			return "", err
		}
	}
	return status, nil
}

func (s *tradeService) recordDrift(trade *models.Trade, now time.Time) error {
	if trade.Status != models.TradeStatusPending || trade.InvalidatedAt != nil {
		return nil
	}
	if err := s.db.Model(&models.Trade{}).
		Where("id = ? AND status = ? AND invalidated_at IS NULL", trade.ID, models.TradeStatusPending).
		Update("invalidated_at", now).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	trade.InvalidatedAt = &now
	return nil
}

// AcceptTrade settles a pending trade. Every check runs before any write, and
// all writes share one DB transaction guarded by compare-and-swap updates on
// the trade status and on each ownership row.
func (s *tradeService) AcceptTrade(tradeID, actorID string) (*models.Trade, error) {
	trade, err := s.loadTrade(s.db, tradeID)
	if err != nil {
		return nil, err
	}
	if trade.ReceiverID != actorID {
		return nil, apperrors.WithMessage(apperrors.ErrForbidden, "Only the receiver can accept this trade")
	}

	now := s.now()
	if trade.Status == models.TradeStatusPending && trade.InvalidatedAt != nil && now.Before(trade.ExpiresAt()) {
		return nil, apperrors.ErrOwnershipMismatch
	}
	if status := statusByTime(trade, now); status != models.TradeStatusPending {
		return nil, invalidTransition(status)
	}

	senderCards := trade.CardIDs(models.TradeSideSender)
	receiverCards := trade.CardIDs(models.TradeSideReceiver)
	if err := requireHeld(s.db, trade.SenderID, senderCards, apperrors.ErrOwnershipMismatch); err != nil {
		return nil, s.driftError(trade, now, err)
	}
	if err := requireHeld(s.db, trade.ReceiverID, receiverCards, apperrors.ErrOwnershipMismatch); err != nil {
		return nil, s.driftError(trade, now, err)
	}
	if err := rejectAlreadyHeld(s.db, trade.ReceiverID, senderCards); err != nil {
		return nil, err
	}
	if err := rejectAlreadyHeld(s.db, trade.SenderID, receiverCards); err != nil {
		return nil, err
	}

	senderMomentum, err := sumMomentum(s.db, senderCards)
	if err != nil {
		return nil, err
	}
	receiverMomentum, err := sumMomentum(s.db, receiverCards)
	if err != nil {
		return nil, err
	}

	countDelta := len(senderCards) - len(receiverCards)
	if err := s.requireRoom(trade.ReceiverID, countDelta); err != nil {
		return nil, err
	}
	if err := s.requireRoom(trade.SenderID, -countDelta); err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Trade{}).
			Where("id = ? AND status = ? AND invalidated_at IS NULL", trade.ID, models.TradeStatusPending).
			Updates(map[string]interface{}{
				"status":      models.TradeStatusAccepted,
				"resolved_at": now,
				"updated_at":  now,
			})
		if result.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.WithMessage(apperrors.ErrInvalidTransition, "Trade was resolved concurrently")
		}

		for _, cardID := range senderCards {
			if err := s.ledger.TransferOwnership(tx, cardID, trade.SenderID, trade.ReceiverID); err != nil {
				return err
			}
		}
		for _, cardID := range receiverCards {
			if err := s.ledger.TransferOwnership(tx, cardID, trade.ReceiverID, trade.SenderID); err != nil {
				return err
			}
		}

		if err := s.applySettlementDelta(tx, trade.SenderID, receiverMomentum-senderMomentum, -countDelta); err != nil {
			return err
		}
		if err := s.applySettlementDelta(tx, trade.ReceiverID, senderMomentum-receiverMomentum, countDelta); err != nil {
			return err
		}

		if err := tx.Model(&models.User{}).
			Where("id IN ?", []string{trade.SenderID, trade.ReceiverID}).
			Update("trades_completed", gorm.Expr("trades_completed + 1")).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, userID := range []string{trade.SenderID, trade.ReceiverID} {
		if _, err := s.ledger.RecomputeAggregates(userID); err != nil {
			logger.Named("trades").Errorw("aggregate recompute failed after trade",
				"error", err,
				"trade_id", trade.ID,
				"user_id", userID,
				"reconcile", true,
			)
		}
	}

	trade.Status = models.TradeStatusAccepted
	trade.ResolvedAt = &now
	trade.UpdatedAt = now
	return trade, nil
}

// DeclineTrade lets the receiver refuse a pending trade.
func (s *tradeService) DeclineTrade(tradeID, actorID string) (*models.Trade, error) {
	return s.resolve(tradeID, actorID, models.TradeSideReceiver)
}

// CancelTrade lets the sender withdraw a pending trade. It ends as declined.
func (s *tradeService) CancelTrade(tradeID, actorID string) (*models.Trade, error) {
	return s.resolve(tradeID, actorID, models.TradeSideSender)
}

func (s *tradeService) resolve(tradeID, actorID string, side models.TradeSide) (*models.Trade, error) {
	trade, err := s.loadTrade(s.db, tradeID)
	if err != nil {
		return nil, err
	}

	allowed := trade.ReceiverID
	if side == models.TradeSideSender {
		allowed = trade.SenderID
	}
	if actorID != allowed {
		return nil, apperrors.WithMessage(apperrors.ErrForbidden, fmt.Sprintf("Only the %s can do this", side))
	}

	now := s.now()
	status, err := s.currentStatus(trade, now)
	if err != nil {
		return nil, err
	}
	if status != models.TradeStatusPending {
		return nil, invalidTransition(status)
	}

	result := s.db.Model(&models.Trade{}).
		Where("id = ? AND status = ? AND invalidated_at IS NULL", trade.ID, models.TradeStatusPending).
		Updates(map[string]interface{}{
			"status":      models.TradeStatusDeclined,
			"resolved_at": now,
			"updated_at":  now,
		})
	if result.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidTransition, "Trade was resolved concurrently")
	}

	trade.Status = models.TradeStatusDeclined
	trade.ResolvedAt = &now
	trade.UpdatedAt = now
	return trade, nil
}

// GetTrade returns a trade visible to one of its parties, with its
// evaluated status.
func (s *tradeService) GetTrade(tradeID, actorID string) (*models.Trade, error) {
	trade, err := s.loadTrade(s.db, tradeID)
	if err != nil {
		return nil, err
	}
	if trade.SenderID != actorID && trade.ReceiverID != actorID {
		return nil, apperrors.ErrForbidden
	}

	status, err := s.currentStatus(trade, s.now())
	if err != nil {
		return nil, err
	}
	trade.Status = status
	return trade, nil
}

// ListTrades returns a page of the user's trades, newest first, each with
// its evaluated status.
func (s *tradeService) ListTrades(userID string, direction TradeDirection, page pagination.PageRequest) (*pagination.PageResponse[models.Trade], error) {
	page.Defaults()

	base := s.db.Model(&models.Trade{})
	switch direction {
	case TradeDirectionIncoming:
		base = base.Where("receiver_id = ?", userID)
	case TradeDirectionOutgoing:
		base = base.Where("sender_id = ?", userID)
	default:
		base = base.Where("sender_id = ? OR receiver_id = ?", userID, userID)
	}
	base = base.Session(&gorm.Session{})

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var trades []models.Trade
	if err := base.Preload("Cards").
		Order("created_at DESC").
		Scopes(pagination.Paginate(page)).
		Find(&trades).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	now := s.now()
	for i := range trades {
		status, err := s.currentStatus(&trades[i], now)
		if err != nil {
			return nil, err
		}
		trades[i].Status = status
	}

	result := pagination.NewPageResponse(trades, page, totalItems)
	return &result, nil
}

func (s *tradeService) loadTrade(db *gorm.DB, tradeID string) (*models.Trade, error) {
	var trade models.Trade
	if err := db.Preload("Cards").First(&trade, "id = ?", tradeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTradeNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &trade, nil
}

// requireRoom fails with CollectionFull if adding countDelta cards would put
// the user over the ceiling.
func (s *tradeService) requireRoom(userID string, countDelta int) error {
	if countDelta <= 0 {
		return nil
	}
	user, err := findUser(s.db, userID)
	if err != nil {
		return err
	}
	if user.CardsCollected+countDelta > CollectionCeiling {
		return apperrors.WithMessage(apperrors.ErrCollectionFull,
			fmt.Sprintf("%s would exceed the %d card limit", user.Username, CollectionCeiling))
	}
	return nil
}

// driftError records that a trade's cards left their sides before returning
// the ownership error that exposed it.
func (s *tradeService) driftError(trade *models.Trade, now time.Time, err error) error {
	if recErr := s.recordDrift(trade, now); recErr != nil {
		logger.Named("trades").Errorw("failed to record trade drift", "error", recErr, "trade_id", trade.ID)
	}
	return err
}

// applySettlementDelta moves the cached aggregates of one trade party. The
// party whose collection grows is held to the ceiling inside the settlement
// transaction, so a concurrent acquisition cannot push it past the limit.
func (s *tradeService) applySettlementDelta(tx *gorm.DB, userID string, momentumDelta int64, countDelta int) error {
	if countDelta <= 0 {
		return s.ledger.ApplyDelta(tx, userID, momentumDelta, countDelta)
	}
	ok, err := applyDeltaWithinCeiling(tx, userID, momentumDelta, countDelta)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.WithMessage(apperrors.ErrCollectionFull,
			fmt.Sprintf("Trade would exceed the %d card limit", CollectionCeiling))
	}
	return nil
}

func invalidTransition(status models.TradeStatus) error {
	return apperrors.WithDetails(
		apperrors.WithMessage(apperrors.ErrInvalidTransition, fmt.Sprintf("Trade is %s", status)),
		map[string]any{"status": status},
	)
}

// cardsStillHeld reports whether every card of the trade is still owned by
// the side that offered it.
func cardsStillHeld(db *gorm.DB, trade *models.Trade) (bool, error) {
	for _, side := range []models.TradeSide{models.TradeSideSender, models.TradeSideReceiver} {
		owner := trade.SenderID
		if side == models.TradeSideReceiver {
			owner = trade.ReceiverID
		}
		ids := trade.CardIDs(side)
		held, err := countHeld(db, owner, ids)
		if err != nil {
			return false, err
		}
		if held != int64(len(ids)) {
			return false, nil
		}
	}
	return true, nil
}

// requireHeld fails with notHeld unless userID owns every card in cardIDs.
func requireHeld(db *gorm.DB, userID string, cardIDs []string, notHeld *apperrors.AppError) error {
	held, err := countHeld(db, userID, cardIDs)
	if err != nil {
		return err
	}
	if held != int64(len(cardIDs)) {
		return notHeld
	}
	return nil
}

// rejectAlreadyHeld fails with AlreadyOwned if userID already owns any of cardIDs.
func rejectAlreadyHeld(db *gorm.DB, userID string, cardIDs []string) error {
	held, err := countHeld(db, userID, cardIDs)
	if err != nil {
		return err
	}
	if held > 0 {
		return apperrors.WithMessage(apperrors.ErrAlreadyOwned, "The other party already owns one of these cards")
	}
	return nil
}

func countHeld(db *gorm.DB, userID string, cardIDs []string) (int64, error) {
	if len(cardIDs) == 0 {
		return 0, nil
	}
	var count int64
	if err := db.Model(&models.UserCard{}).
		Where("user_id = ? AND card_id IN ?", userID, cardIDs).
		Count(&count).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return count, nil
}

func sumMomentum(db *gorm.DB, cardIDs []string) (int64, error) {
	if len(cardIDs) == 0 {
		return 0, nil
	}
	var total int64
	if err := db.Model(&models.Card{}).
		Where("id IN ?", cardIDs).
		Select("COALESCE(SUM(momentum), 0)").
		Scan(&total).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return total, nil
}

func hasDuplicates(lists ...[]string) bool {
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				return true
			}
			seen[id] = struct{}{}
		}
	}
	return false
}
