package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wav/internal/catalog"
	apperrors "wav/internal/errors"
	"wav/internal/logger"
	"wav/internal/models"
)

// UnboxCooldown is the minimum time between two unboxes by the same user.
const UnboxCooldown = 30 * time.Second

// claimAttempts bounds retries when a concurrent acquisition moves the
// ceiling between reading the count and writing the batch.
const claimAttempts = 3

var errCeilingMoved = errors.New("collection count changed during claim")

// acquisitionService adds cards to collections by unboxing or game claims.
type acquisitionService struct {
	db      *gorm.DB
	catalog catalog.Provider
	now     func() time.Time
}

// NewAcquisitionService creates a new AcquisitionServicer.
func NewAcquisitionService(db *gorm.DB, provider catalog.Provider) AcquisitionServicer {
	return &acquisitionService{db: db, catalog: provider, now: time.Now}
}

// Unbox grants the user one catalog track, reusing the existing card for that
// track when there is one.
func (s *acquisitionService) Unbox(ctx context.Context, userID string, selection UnboxSelection) (*UnboxResult, error) {
	db := s.db.WithContext(ctx)

	user, err := findUser(db, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := checkCooldown(user, now); err != nil {
		return nil, err
	}
	if user.CardsCollected >= CollectionCeiling {
		return nil, apperrors.ErrCollectionFull
	}

	track, err := s.fetchTrack(ctx, user, selection)
	if err != nil {
		return nil, err
	}

	var card *models.Card
	var isNew bool
	err = db.Transaction(func(tx *gorm.DB) error {
		// Claims this cooldown window. A concurrent unbox that read the same
		// sequence number updates zero rows here.
		result := tx.Model(&models.User{}).
			Where("id = ? AND unbox_seq = ?", userID, user.UnboxSeq).
			Updates(map[string]interface{}{
				"last_unbox_time": now,
				"unbox_seq":       gorm.Expr("unbox_seq + 1"),
			})
		if result.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
		}
		if result.RowsAffected == 0 {
			return cooldownError(now, now)
		}

		var err error
		card, isNew, err = resolveCard(tx, *track, PolicyDedup, now)
		if err != nil {
			return err
		}

		var owned int64
		if err := tx.Model(&models.UserCard{}).
			Where("user_id = ? AND card_id = ?", userID, card.ID).
			Count(&owned).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if owned > 0 {
			return apperrors.ErrAlreadyOwned
		}

		ok, err := applyDeltaWithinCeiling(tx, userID, int64(card.Momentum), 1)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.ErrCollectionFull
		}

		ownership := &models.UserCard{
			UserID:      userID,
			CardID:      card.ID,
			AcquiredVia: models.AcquiredViaUnbox,
			AcquiredAt:  now,
		}
		if err := tx.Create(ownership).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &UnboxResult{Card: card, IsNew: isNew, NextEligibleAt: now.Add(UnboxCooldown)}, nil
}

// checkCooldown fails with CooldownActive while the user's last unbox is
// less than UnboxCooldown ago.
func checkCooldown(user *models.User, now time.Time) error {
	if user.LastUnboxTime == nil {
		return nil
	}
	if now.Sub(*user.LastUnboxTime) >= UnboxCooldown {
		return nil
	}
	return cooldownError(*user.LastUnboxTime, now)
}

func cooldownError(lastUnbox, now time.Time) error {
	next := lastUnbox.Add(UnboxCooldown)
	remaining := min(next.Sub(now), UnboxCooldown)
	return apperrors.WithDetails(
		apperrors.WithMessage(apperrors.ErrCooldownActive,
			fmt.Sprintf("Unbox is cooling down; try again in %ds", int(math.Ceil(remaining.Seconds())))),
		map[string]any{
			"remaining_ms":     remaining.Milliseconds(),
			"remaining_s":      int(math.Ceil(remaining.Seconds())),
			"next_eligible_at": next.UTC().Format(time.RFC3339Nano),
		},
	)
}

func (s *acquisitionService) fetchTrack(ctx context.Context, user *models.User, selection UnboxSelection) (*catalog.Track, error) {
	if selection.TrackID == "" {
		track, err := s.catalog.RandomTrack(ctx, user.TopGenres)
		if err != nil {
			logger.Get().Errorw("catalog random track failed", "error", err, "user_id", user.ID)
			return nil, apperrors.Wrap(apperrors.ErrProviderUnavailable, err)
		}
		return track, nil
	}

	tracks, lookupErrs := s.catalog.LookupTracks(ctx, []string{selection.TrackID})
	if len(tracks) > 0 {
		return &tracks[0], nil
	}
	if len(lookupErrs) > 0 && !errors.Is(&lookupErrs[0], catalog.ErrTrackNotFound) {
		logger.Get().Errorw("catalog lookup failed", "error", lookupErrs[0].Err, "track_id", selection.TrackID)
		return nil, apperrors.Wrap(apperrors.ErrProviderUnavailable, &lookupErrs[0])
	}
	return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown track id")
}

// ClaimBatch mints a fresh card per track and gives them to the user, up to
// the free slots left below the ceiling. Tracks past the ceiling are skipped,
// which is not an error.
func (s *acquisitionService) ClaimBatch(ctx context.Context, userID string, tracks []catalog.Track) (*ClaimResult, error) {
	db := s.db.WithContext(ctx)

	for attempt := 0; attempt < claimAttempts; attempt++ {
		user, err := findUser(db, userID)
		if err != nil {
			return nil, err
		}

		take := min(len(tracks), max(CollectionCeiling-user.CardsCollected, 0))
		result := &ClaimResult{AddedCardIDs: []string{}, Skipped: len(tracks) - take}
		if take == 0 {
			return result, nil
		}

		now := s.now()
		err = db.Transaction(func(tx *gorm.DB) error {
			var momentum int64
			for i := range tracks[:take] {
				card, _, err := resolveCard(tx, tracks[i], PolicyMintFresh, now)
				if err != nil {
					return err
				}
				ownership := &models.UserCard{
					UserID:      userID,
					CardID:      card.ID,
					AcquiredVia: models.AcquiredViaBlackjack,
					AcquiredAt:  now,
				}
				if err := tx.Create(ownership).Error; err != nil {
					return apperrors.Wrap(apperrors.ErrInternalServer, err)
				}
				momentum += int64(card.Momentum)
				result.AddedCardIDs = append(result.AddedCardIDs, card.ID)
			}

			ok, err := applyDeltaWithinCeiling(tx, userID, momentum, len(result.AddedCardIDs))
			if err != nil {
				return err
			}
			if !ok {
				return errCeilingMoved
			}
			return nil
		})
		if errors.Is(err, errCeilingMoved) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	return &ClaimResult{AddedCardIDs: []string{}, Skipped: len(tracks)}, nil
}

// resolveCard returns the card for a catalog track. Under PolicyDedup an
// existing card for the same track is reused and isNew is false; under
// PolicyMintFresh a new card is always created with its own energy clock.
func resolveCard(tx *gorm.DB, track catalog.Track, policy ResolvePolicy, now time.Time) (*models.Card, bool, error) {
	if policy == PolicyDedup {
		existing, err := findCardByTrack(tx, track.ID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	stats := catalog.DeriveStats(track)
	name := track.Name
	if name == "" {
		name = "Unknown Track"
	}
	card := &models.Card{
		SourceTrackID: track.ID,
		SongName:      name,
		ArtistName:    track.PrimaryArtist(),
		AlbumName:     track.AlbumName,
		AlbumArtURL:   track.AlbumArtURL,
		Momentum:      stats.Momentum,
		BPM:           stats.BPM,
		Genre:         track.Genre,
		Popularity:    track.Popularity,
		CreatedAt:     now,
	}

	if policy == PolicyMintFresh {
		if err := tx.Create(card).Error; err != nil {
			return nil, false, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return card, true, nil
	}

	trackID := track.ID
	card.ExternalTrackID = &trackID
	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_track_id"}},
		DoNothing: true,
	}).Create(card)
	if result.Error != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		// Lost an insert race for the same track.
		existing, err := findCardByTrack(tx, track.ID)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, apperrors.ErrInternalServer
		}
		return existing, false, nil
	}
	return card, true, nil
}

func findCardByTrack(db *gorm.DB, trackID string) (*models.Card, error) {
	var card models.Card
	err := db.Where("external_track_id = ?", trackID).First(&card).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &card, nil
}
