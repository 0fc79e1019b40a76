package services

import (
	"context"
	"errors"
	"math/rand/v2"

	"wav/internal/catalog"
	apperrors "wav/internal/errors"
	"wav/internal/logger"
	"wav/internal/models"
)

// gameService applies the economic outcome of a mini-game round. Game rules
// themselves live in the client.
type gameService struct {
	ledger      LedgerServicer
	acquisition AcquisitionServicer
	catalog     catalog.Provider
	intn        func(n int) int
}

// NewGameService creates a new GameServicer.
func NewGameService(ledger LedgerServicer, acquisition AcquisitionServicer, provider catalog.Provider) GameServicer {
	return &gameService{
		ledger:      ledger,
		acquisition: acquisition,
		catalog:     provider,
		intn:        rand.IntN,
	}
}

// Stake picks one of the user's cards at random to put at risk. Nothing is
// persisted; the card stays in the collection until a loss is reported.
func (s *gameService) Stake(userID string) (*OwnedCard, error) {
	owned, err := s.ledger.OwnedCards(userID)
	if err != nil {
		return nil, err
	}
	if len(owned) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrNotFound, "No cards to stake")
	}
	return &owned[s.intn(len(owned))], nil
}

// OnWin grants the won tracks as freshly minted cards. Tracks the catalog
// does not know are counted as skipped.
func (s *gameService) OnWin(ctx context.Context, userID string, trackIDs []string) (*ClaimResult, error) {
	if len(trackIDs) == 0 {
		return &ClaimResult{AddedCardIDs: []string{}}, nil
	}

	tracks, lookupErrs := s.catalog.LookupTracks(ctx, trackIDs)
	if len(tracks) == 0 {
		for i := range lookupErrs {
			if !errors.Is(&lookupErrs[i], catalog.ErrTrackNotFound) {
				logger.Get().Errorw("catalog lookup failed for game win", "error", lookupErrs[i].Err, "user_id", userID)
				return nil, apperrors.Wrap(apperrors.ErrProviderUnavailable, &lookupErrs[i])
			}
		}
	}

	result, err := s.acquisition.ClaimBatch(ctx, userID, tracks)
	if err != nil {
		return nil, err
	}
	result.Skipped += len(trackIDs) - len(tracks)
	return result, nil
}

// OnLoss forfeits the staked card.
func (s *gameService) OnLoss(userID, stakedCardID string) (*models.User, error) {
	return s.ledger.RemoveOwnership(userID, stakedCardID)
}

// OnPush is a tie: the staked card was never removed, so nothing changes.
func (s *gameService) OnPush(userID string) {
	logger.Get().Debugw("game push", "user_id", userID)
}
