package models

import (
	"time"

	"wav/internal/uuid"

	"gorm.io/gorm"
)

// TradeExpiry is how long a pending trade stays actionable.
const TradeExpiry = 24 * time.Hour

// TradeStatus is the state of a trade offer. Every status other than
// pending is terminal.
type TradeStatus string

const (
	TradeStatusPending  TradeStatus = "pending"
	TradeStatusAccepted TradeStatus = "accepted"
	TradeStatusDeclined TradeStatus = "declined"
	TradeStatusExpired  TradeStatus = "expired"
)

// IsTerminal reports whether no further transition is allowed.
func (s TradeStatus) IsTerminal() bool {
	return s != TradeStatusPending
}

// TradeSide tags which party a card in the offer belongs to.
type TradeSide string

const (
	TradeSideSender   TradeSide = "sender"
	TradeSideReceiver TradeSide = "receiver"
)

// Trade is a bilateral card swap offer from sender to receiver.
type Trade struct {
	ID         string      `gorm:"type:uuid;primaryKey" json:"id"`
	SenderID   string      `gorm:"type:uuid;not null;index" json:"sender_id"`
	ReceiverID string      `gorm:"type:uuid;not null;index" json:"receiver_id"`
	Status     TradeStatus `gorm:"not null;default:'pending';index" json:"status"`
	CreatedAt  time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	ResolvedAt *time.Time  `json:"resolved_at,omitempty"`

	// InvalidatedAt is set once an offered card leaves the side that offered
	// it. A pending trade carrying it reads as expired for good.
	InvalidatedAt *time.Time `json:"invalidated_at,omitempty"`

	Cards []TradeCard `gorm:"foreignKey:TradeID" json:"cards,omitempty"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (t *Trade) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New()
	}
	return nil
}

// ExpiresAt is the end of the trade's pending window.
func (t *Trade) ExpiresAt() time.Time {
	return t.CreatedAt.Add(TradeExpiry)
}

// CardIDs returns the ids of the cards offered by the given side.
func (t *Trade) CardIDs(side TradeSide) []string {
	ids := make([]string, 0, len(t.Cards))
	for i := range t.Cards {
		if t.Cards[i].OwnerType == side {
			ids = append(ids, t.Cards[i].CardID)
		}
	}
	return ids
}

// TradeCard tags one card of a trade with the side that offers it.
type TradeCard struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	TradeID   string    `gorm:"type:uuid;not null;index" json:"trade_id"`
	CardID    string    `gorm:"type:uuid;not null" json:"card_id"`
	OwnerType TradeSide `gorm:"not null" json:"owner_type"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (tc *TradeCard) BeforeCreate(tx *gorm.DB) error {
	if tc.ID == "" {
		tc.ID = uuid.New()
	}
	return nil
}
