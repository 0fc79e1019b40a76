package services

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "wav/internal/errors"
	"wav/internal/models"
	"wav/internal/statclock"
)

// ledgerService owns ownership rows and the cached per-user aggregates.
type ledgerService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewLedgerService creates a new LedgerServicer.
func NewLedgerService(db *gorm.DB) LedgerServicer {
	return &ledgerService{db: db, now: time.Now}
}

// OwnedCards returns the user's current cards. It is re-queried on every call.
func (s *ledgerService) OwnedCards(userID string) ([]OwnedCard, error) {
	return ownedCards(s.db, userID)
}

func ownedCards(db *gorm.DB, userID string) ([]OwnedCard, error) {
	var rows []models.UserCard
	if err := db.Where("user_id = ?", userID).Order("acquired_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(rows) == 0 {
		return []OwnedCard{}, nil
	}

	cardIDs := make([]string, 0, len(rows))
	for i := range rows {
		cardIDs = append(cardIDs, rows[i].CardID)
	}

	var cards []models.Card
	if err := db.Where("id IN ?", cardIDs).Find(&cards).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	byID := make(map[string]models.Card, len(cards))
	for i := range cards {
		byID[cards[i].ID] = cards[i]
	}

	owned := make([]OwnedCard, 0, len(rows))
	for i := range rows {
		card, ok := byID[rows[i].CardID]
		if !ok {
			continue
		}
		owned = append(owned, OwnedCard{Card: card, Ownership: rows[i]})
	}
	return owned, nil
}

// RecomputeAggregates rebuilds the user's cached totals from owned cards.
// Calling it twice with no mutation in between yields the same totals.
func (s *ledgerService) RecomputeAggregates(userID string) (*models.User, error) {
	return recomputeAggregates(s.db, userID, s.now())
}

func recomputeAggregates(db *gorm.DB, userID string, now time.Time) (*models.User, error) {
	user, err := findUser(db, userID)
	if err != nil {
		return nil, err
	}

	owned, err := ownedCards(db, userID)
	if err != nil {
		return nil, err
	}

	var momentum int64
	accruals := make([]statclock.Accrual, 0, len(owned))
	for i := range owned {
		momentum += int64(owned[i].Card.Momentum)
		accruals = append(accruals, statclock.Accrual{
			Momentum:  owned[i].Card.Momentum,
			CreatedAt: owned[i].Card.CreatedAt,
		})
	}
	energy := statclock.TotalEnergy(accruals, now)

	if err := db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"total_energy":    energy,
		"total_momentum":  momentum,
		"cards_collected": len(owned),
	}).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	user.TotalEnergy = energy
	user.TotalMomentum = momentum
	user.CardsCollected = len(owned)
	return user, nil
}

// CanAcquire reports whether the user is below the collection ceiling.
func (s *ledgerService) CanAcquire(userID string) (bool, error) {
	user, err := findUser(s.db, userID)
	if err != nil {
		return false, err
	}
	return user.CardsCollected < CollectionCeiling, nil
}

// TransferOwnership moves one ownership row from one user to another. The
// update only matches while fromUserID still holds the card, so a concurrent
// transfer of the same card affects zero rows and fails with OwnershipMismatch.
func (s *ledgerService) TransferOwnership(tx *gorm.DB, cardID, fromUserID, toUserID string) error {
	return transferOwnership(tx, cardID, fromUserID, toUserID, s.now())
}

func transferOwnership(tx *gorm.DB, cardID, fromUserID, toUserID string, now time.Time) error {
	result := tx.Model(&models.UserCard{}).
		Where("user_id = ? AND card_id = ?", fromUserID, cardID).
		Updates(map[string]interface{}{
			"user_id":      toUserID,
			"acquired_via": models.AcquiredViaTrade,
			"acquired_at":  now,
		})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected != 1 {
		return apperrors.ErrOwnershipMismatch
	}
	return invalidateOffers(tx, cardID, fromUserID, now)
}

// invalidateOffers marks every pending trade in which userID offers cardID.
// Those trades stay expired even if the card later comes back.
func invalidateOffers(tx *gorm.DB, cardID, userID string, now time.Time) error {
	offering := tx.Table("trade_cards").
		Select("trade_cards.trade_id").
		Joins("JOIN trades ON trades.id = trade_cards.trade_id").
		Where("trade_cards.card_id = ?", cardID).
		Where("(trade_cards.owner_type = ? AND trades.sender_id = ?) OR (trade_cards.owner_type = ? AND trades.receiver_id = ?)",
			models.TradeSideSender, userID, models.TradeSideReceiver, userID)

	if err := tx.Model(&models.Trade{}).
		Where("status = ? AND invalidated_at IS NULL AND id IN (?)", models.TradeStatusPending, offering).
		Update("invalidated_at", now).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// RemoveOwnership deletes the user's ownership of a card and lowers the
// cached aggregates, clamping each at zero.
func (s *ledgerService) RemoveOwnership(userID, cardID string) (*models.User, error) {
	now := s.now()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var card models.Card
		if err := tx.First(&card, "id = ?", cardID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotOwned
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		result := tx.Where("user_id = ? AND card_id = ?", userID, cardID).Delete(&models.UserCard{})
		if result.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrNotOwned
		}
		if err := invalidateOffers(tx, cardID, userID, now); err != nil {
			return err
		}

		energy := statclock.Energy(card.Momentum, card.CreatedAt, now)
		return applyDelta(tx, userID, -int64(card.Momentum), -1, -energy)
	})
	if err != nil {
		return nil, err
	}
	return findUser(s.db, userID)
}

// ApplyDelta adjusts the cached momentum and card count, clamping at zero.
func (s *ledgerService) ApplyDelta(tx *gorm.DB, userID string, momentumDelta int64, countDelta int) error {
	return applyDelta(tx, userID, momentumDelta, countDelta, 0)
}

func applyDelta(tx *gorm.DB, userID string, momentumDelta int64, countDelta int, energyDelta int64) error {
	updates := map[string]interface{}{
		"total_momentum":  clampedAdd("total_momentum", momentumDelta),
		"cards_collected": clampedAdd("cards_collected", int64(countDelta)),
	}
	if energyDelta != 0 {
		updates["total_energy"] = clampedAdd("total_energy", energyDelta)
	}

	result := tx.Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// applyDeltaWithinCeiling adds momentum and cards only if the user stays at or
// below the collection ceiling. It reports false when the ceiling would be
// exceeded.
func applyDeltaWithinCeiling(tx *gorm.DB, userID string, momentumDelta int64, countDelta int) (bool, error) {
	result := tx.Model(&models.User{}).
		Where("id = ? AND cards_collected + ? <= ?", userID, countDelta, CollectionCeiling).
		Updates(map[string]interface{}{
			"total_momentum":  clampedAdd("total_momentum", momentumDelta),
			"cards_collected": gorm.Expr("cards_collected + ?", countDelta),
		})
	if result.Error != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func clampedAdd(column string, delta int64) clause.Expr {
	return gorm.Expr("CASE WHEN "+column+" + ? < 0 THEN 0 ELSE "+column+" + ? END", delta, delta)
}

func findUser(db *gorm.DB, userID string) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}
