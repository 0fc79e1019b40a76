package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"wav/internal/models"

	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a public profile with a unique username, email and auth subject.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithUsername(t, db, fmt.Sprintf("player%d", nextID()))
}

// CreateTestUserWithUsername creates a public profile with the given username.
func CreateTestUserWithUsername(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	n := nextID()
	user := &models.User{
		AuthSubject:  fmt.Sprintf("auth|%d", n),
		Username:     username,
		Email:        fmt.Sprintf("%s.%d@test.com", username, n),
		DisplayName:  username,
		DeckPrivacy:  models.PrivacyPublic,
		TradePrivacy: models.PrivacyPublic,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestCard creates a catalog-backed card template with the given
// momentum whose energy clock starts at createdAt.
func CreateTestCard(t *testing.T, db *gorm.DB, momentum int, createdAt time.Time) *models.Card {
	t.Helper()

	n := nextID()
	trackID := fmt.Sprintf("track%d", n)
	card := &models.Card{
		ExternalTrackID: &trackID,
		SourceTrackID:   trackID,
		SongName:        fmt.Sprintf("Test Song %d", n),
		ArtistName:      "Test Artist",
		AlbumName:       "Test Album",
		Momentum:        momentum,
		BPM:             120,
		Genre:           "pop",
		Popularity:      momentum,
		CreatedAt:       createdAt,
	}
	if err := db.Create(card).Error; err != nil {
		t.Fatalf("failed to create test card: %v", err)
	}
	return card
}

// GiveCard creates an ownership row without touching the user's cached aggregates.
func GiveCard(t *testing.T, db *gorm.DB, userID, cardID string, via models.AcquisitionSource) *models.UserCard {
	t.Helper()

	uc := &models.UserCard{
		UserID:      userID,
		CardID:      cardID,
		AcquiredVia: via,
		AcquiredAt:  time.Now(),
	}
	if err := db.Create(uc).Error; err != nil {
		t.Fatalf("failed to create test ownership: %v", err)
	}
	return uc
}

// CreateOwnedCard creates a card owned by userID and bumps the user's cached
// momentum and card count the way an acquisition would.
func CreateOwnedCard(t *testing.T, db *gorm.DB, userID string, momentum int, createdAt time.Time) *models.Card {
	t.Helper()

	card := CreateTestCard(t, db, momentum, createdAt)
	GiveCard(t, db, userID, card.ID, models.AcquiredViaUnbox)

	err := db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"total_momentum":  gorm.Expr("total_momentum + ?", momentum),
		"cards_collected": gorm.Expr("cards_collected + 1"),
	}).Error
	if err != nil {
		t.Fatalf("failed to update test user aggregates: %v", err)
	}
	return card
}

// SetCardsCollected overwrites the cached card count, e.g. to reach the ceiling.
func SetCardsCollected(t *testing.T, db *gorm.DB, userID string, count int) {
	t.Helper()

	if err := db.Model(&models.User{}).Where("id = ?", userID).Update("cards_collected", count).Error; err != nil {
		t.Fatalf("failed to set cards_collected: %v", err)
	}
}

// CreateTestTrade creates a pending trade created at createdAt.
func CreateTestTrade(t *testing.T, db *gorm.DB, senderID, receiverID string, senderCardIDs, receiverCardIDs []string, createdAt time.Time) *models.Trade {
	t.Helper()

	trade := &models.Trade{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     models.TradeStatusPending,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
	if err := db.Omit("Cards").Create(trade).Error; err != nil {
		t.Fatalf("failed to create test trade: %v", err)
	}

	for _, id := range senderCardIDs {
		trade.Cards = append(trade.Cards, models.TradeCard{TradeID: trade.ID, CardID: id, OwnerType: models.TradeSideSender})
	}
	for _, id := range receiverCardIDs {
		trade.Cards = append(trade.Cards, models.TradeCard{TradeID: trade.ID, CardID: id, OwnerType: models.TradeSideReceiver})
	}
	if len(trade.Cards) > 0 {
		if err := db.Create(&trade.Cards).Error; err != nil {
			t.Fatalf("failed to create test trade cards: %v", err)
		}
	}
	return trade
}

// Reload re-reads a user so tests can assert on persisted aggregates.
func Reload(t *testing.T, db *gorm.DB, userID string) *models.User {
	t.Helper()

	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		t.Fatalf("failed to reload user %s: %v", userID, err)
	}
	return &user
}
