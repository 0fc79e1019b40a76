package services

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "wav/internal/errors"
	"wav/internal/models"
	"wav/internal/statclock"
)

// MaxHistoryDays bounds a single history query.
const MaxHistoryDays = 366

// dailyStatService records and serves per-day stat snapshots.
type dailyStatService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDailyStatService creates a new DailyStatServicer.
func NewDailyStatService(db *gorm.DB) DailyStatServicer {
	return &dailyStatService{db: db, now: time.Now}
}

// RecordDailyStats recomputes every user at now and upserts their stats for
// the UTC calendar date of now. Running it twice on the same day overwrites
// that day's row.
func (s *dailyStatService) RecordDailyStats(now time.Time) (int, error) {
	var userIDs []string
	if err := s.db.Model(&models.User{}).Pluck("id", &userIDs).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	statDate := now.UTC().Format(models.DailyStatDateLayout)
	count := 0
	for _, userID := range userIDs {
		user, err := recomputeAggregates(s.db, userID, now)
		if err != nil {
			return count, err
		}

		stat := &models.DailyStat{
			UserID:         userID,
			StatDate:       statDate,
			TotalEnergy:    user.TotalEnergy,
			TotalMomentum:  user.TotalMomentum,
			CardsCollected: user.CardsCollected,
			RecordedAt:     now,
		}
		if err := s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "stat_date"}},
			DoUpdates: clause.AssignmentColumns([]string{"total_energy", "total_momentum", "cards_collected", "recorded_at"}),
		}).Create(stat).Error; err != nil {
			return count, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		count++
	}

	return count, nil
}

// GetHistory returns one point per UTC day in [from, to], up to today.
// Recorded days come from storage; missing days are reconstructed from the
// user's current cards as of the end of that day.
func (s *dailyStatService) GetHistory(userID string, from, to time.Time) ([]HistoryPoint, error) {
	now := s.now()
	start := startOfDay(from)
	end := startOfDay(to)
	if today := startOfDay(now); end.After(today) {
		end = today
	}
	if end.Before(start) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "from must not be after to")
	}
	if end.Sub(start) > MaxHistoryDays*24*time.Hour {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "history range is limited to one year")
	}

	if _, err := findUser(s.db, userID); err != nil {
		return nil, err
	}

	var stored []models.DailyStat
	if err := s.db.Where("user_id = ? AND stat_date >= ? AND stat_date <= ?",
		userID, start.Format(models.DailyStatDateLayout), end.Format(models.DailyStatDateLayout)).
		Find(&stored).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	byDate := make(map[string]models.DailyStat, len(stored))
	for i := range stored {
		byDate[stored[i].StatDate] = stored[i]
	}

	owned, err := ownedCards(s.db, userID)
	if err != nil {
		return nil, err
	}

	var points []HistoryPoint
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		date := day.Format(models.DailyStatDateLayout)
		if stat, ok := byDate[date]; ok {
			points = append(points, HistoryPoint{
				Date:           date,
				TotalEnergy:    stat.TotalEnergy,
				TotalMomentum:  stat.TotalMomentum,
				CardsCollected: stat.CardsCollected,
			})
			continue
		}
		points = append(points, reconstructDay(owned, date, day.AddDate(0, 0, 1), now))
	}
	return points, nil
}

// reconstructDay estimates a day's stats from the cards owned today,
// counting only cards that already existed at the end of that day.
func reconstructDay(owned []OwnedCard, date string, endOfDay, now time.Time) HistoryPoint {
	at := endOfDay
	if now.Before(at) {
		at = now
	}

	point := HistoryPoint{Date: date, Reconstructed: true}
	for i := range owned {
		card := owned[i].Card
		if card.CreatedAt.After(at) {
			continue
		}
		point.TotalMomentum += int64(card.Momentum)
		point.CardsCollected++
		point.TotalEnergy += statclock.EnergyAtTime(card.Momentum, card.CreatedAt, at)
	}
	return point
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
