package models

import (
	"time"

	"wav/internal/uuid"

	"gorm.io/gorm"
)

// DailyStatDateLayout is the layout of DailyStat.StatDate.
const DailyStatDateLayout = "2006-01-02"

// DailyStat is a per-user, per-calendar-day snapshot of collection stats.
// This is immutable time-series data: no Base embed, no soft deletes.
type DailyStat struct {
	ID             string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         string    `gorm:"type:uuid;not null;uniqueIndex:idx_daily_stats_user_date" json:"user_id"`
	StatDate       string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_daily_stats_user_date" json:"stat_date"`
	TotalEnergy    int64     `gorm:"not null" json:"total_energy"`
	TotalMomentum  int64     `gorm:"not null" json:"total_momentum"`
	CardsCollected int       `gorm:"not null" json:"cards_collected"`
	RecordedAt     time.Time `gorm:"not null" json:"recorded_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (d *DailyStat) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New()
	}
	return nil
}
