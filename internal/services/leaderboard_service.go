package services

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	apperrors "wav/internal/errors"
	"wav/internal/models"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// leaderboardService ranks users by live energy.
type leaderboardService struct {
	db          *gorm.DB
	ledger      LedgerServicer
	concurrency int
}

// NewLeaderboardService creates a new LeaderboardServicer. concurrency bounds
// how many users are recomputed at once.
func NewLeaderboardService(db *gorm.DB, ledger LedgerServicer, concurrency int) LeaderboardServicer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &leaderboardService{db: db, ledger: ledger, concurrency: concurrency}
}

// TopByEnergy recomputes every user's aggregates and returns the top limit
// users by total energy. Ties break on momentum, then username.
func (s *leaderboardService) TopByEnergy(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	limit = min(limit, MaxLeaderboardLimit)

	var userIDs []string
	if err := s.db.WithContext(ctx).Model(&models.User{}).Pluck("id", &userIDs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	users := make([]*models.User, len(userIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range userIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			user, err := s.ledger.RecomputeAggregates(id)
			if err != nil {
				return err
			}
			users[i] = user
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	sort.Slice(users, func(i, j int) bool {
		a, b := users[i], users[j]
		if a.TotalEnergy != b.TotalEnergy {
			return a.TotalEnergy > b.TotalEnergy
		}
		if a.TotalMomentum != b.TotalMomentum {
			return a.TotalMomentum > b.TotalMomentum
		}
		return a.Username < b.Username
	})

	top := users[:min(limit, len(users))]
	entries := make([]LeaderboardEntry, 0, len(top))
	for i, u := range top {
		entries = append(entries, LeaderboardEntry{
			Rank:           i + 1,
			UserID:         u.ID,
			Username:       u.Username,
			DisplayName:    u.DisplayName,
			TotalEnergy:    u.TotalEnergy,
			TotalMomentum:  u.TotalMomentum,
			CardsCollected: u.CardsCollected,
		})
	}
	return entries, nil
}
