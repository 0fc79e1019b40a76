package models

import (
	"time"

	"gorm.io/datatypes"
)

// Privacy controls who may see a user's deck or send them trades.
type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyPrivate Privacy = "private"
)

// User is a player profile. The stat columns are a cache over the owned
// cards and are reconciled by the ledger's recompute.
type User struct {
	Base
	AuthSubject     string     `gorm:"uniqueIndex;not null" json:"-"`
	Username        string     `gorm:"uniqueIndex;not null" json:"username"`
	Email           string     `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName     string     `json:"display_name"`
	TotalEnergy     int64      `gorm:"not null;default:0" json:"total_energy"`
	TotalMomentum   int64      `gorm:"not null;default:0" json:"total_momentum"`
	CardsCollected  int        `gorm:"not null;default:0" json:"cards_collected"`
	TradesCompleted int        `gorm:"not null;default:0" json:"trades_completed"`
	DeckPrivacy     Privacy    `gorm:"not null;default:'public'" json:"deck_privacy"`
	TradePrivacy    Privacy    `gorm:"not null;default:'public'" json:"trade_privacy"`
	LastUnboxTime   *time.Time `json:"last_unbox_time,omitempty"`
	UnboxSeq        int64      `gorm:"not null;default:0" json:"-"`

	// Catalog hints only.
	TopGenres  datatypes.JSONSlice[string] `json:"top_genres"`
	TopArtists datatypes.JSONSlice[string] `json:"top_artists"`
}
