package models

import (
	"time"

	"wav/internal/uuid"

	"gorm.io/gorm"
)

// AcquisitionSource records how an ownership row came to be.
type AcquisitionSource string

const (
	AcquiredViaUnbox     AcquisitionSource = "unbox"
	AcquiredViaTrade     AcquisitionSource = "trade"
	AcquiredViaBlackjack AcquisitionSource = "blackjack"
)

// Card is an immutable, catalog-backed song card. CreatedAt anchors its
// energy clock.
//
// Unboxed cards are shared templates keyed by ExternalTrackID. Game-won
// cards are minted fresh per win, so they leave ExternalTrackID NULL and
// keep the catalog id in SourceTrackID only.
type Card struct {
	ID              string    `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalTrackID *string   `gorm:"uniqueIndex" json:"external_track_id,omitempty"`
	SourceTrackID   string    `gorm:"index;not null" json:"source_track_id"`
	SongName        string    `gorm:"not null" json:"song_name"`
	ArtistName      string    `gorm:"not null" json:"artist_name"`
	AlbumName       string    `json:"album_name"`
	AlbumArtURL     string    `json:"album_art_url"`
	Momentum        int       `gorm:"not null" json:"momentum"`
	BPM             int       `json:"bpm"`
	Genre           string    `json:"genre"`
	Popularity      int       `json:"popularity"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (c *Card) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New()
	}
	return nil
}

// UserCard is the ownership join between a user and a card. Energy is never
// stored here; it is derived from the card's creation time.
type UserCard struct {
	ID          string            `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      string            `gorm:"type:uuid;not null;uniqueIndex:idx_user_cards_user_card" json:"user_id"`
	CardID      string            `gorm:"type:uuid;not null;uniqueIndex:idx_user_cards_user_card;index" json:"card_id"`
	AcquiredVia AcquisitionSource `gorm:"not null" json:"acquired_via"`
	AcquiredAt  time.Time         `gorm:"not null" json:"acquired_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (uc *UserCard) BeforeCreate(tx *gorm.DB) error {
	if uc.ID == "" {
		uc.ID = uuid.New()
	}
	return nil
}
