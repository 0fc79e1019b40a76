package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"wav/internal/catalog"
	"wav/internal/models"
	"wav/internal/pagination"
)

// CollectionCeiling is the most cards a single user may hold.
const CollectionCeiling = 100

// OwnedCard pairs a card with the ownership row that puts it in a collection.
type OwnedCard struct {
	Card      models.Card     `json:"card"`
	Ownership models.UserCard `json:"ownership"`
}

// ProfileServicer defines the contract for player profiles.
type ProfileServicer interface {
	Register(subject, username, email, displayName string) (*models.User, error)
	GetByID(userID string) (*models.User, error)
	GetBySubject(subject string) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	UpdatePrivacy(userID string, deckPrivacy, tradePrivacy *models.Privacy) (*models.User, error)
	UpdatePreferences(userID string, topGenres, topArtists []string) (*models.User, error)
	GetDeck(viewerID, username string) (*Deck, error)
}

// DeckEntry is one card in a deck view with its live energy.
type DeckEntry struct {
	Card        models.Card              `json:"card"`
	AcquiredVia models.AcquisitionSource `json:"acquired_via"`
	AcquiredAt  time.Time                `json:"acquired_at"`
	Energy      int64                    `json:"energy"`
}

// Deck is a user's collection as shown to a viewer.
type Deck struct {
	User  *models.User `json:"user"`
	Cards []DeckEntry  `json:"cards"`
}

// LedgerServicer defines the contract for collection bookkeeping. It is the
// only writer of ownership rows and cached aggregates.
type LedgerServicer interface {
	OwnedCards(userID string) ([]OwnedCard, error)
	RecomputeAggregates(userID string) (*models.User, error)
	CanAcquire(userID string) (bool, error)
	TransferOwnership(tx *gorm.DB, cardID, fromUserID, toUserID string) error
	RemoveOwnership(userID, cardID string) (*models.User, error)
	ApplyDelta(tx *gorm.DB, userID string, momentumDelta int64, countDelta int) error
}

// ResolvePolicy decides whether acquiring a track reuses an existing card.
type ResolvePolicy int

const (
	// PolicyDedup reuses the card already minted for the same catalog track.
	PolicyDedup ResolvePolicy = iota
	// PolicyMintFresh always creates a new card.
	PolicyMintFresh
)

// UnboxSelection names the track to unbox. An empty TrackID asks the catalog
// for a random track.
type UnboxSelection struct {
	TrackID string
}

// UnboxResult is the outcome of a successful unbox.
type UnboxResult struct {
	Card           *models.Card `json:"card"`
	IsNew          bool         `json:"is_new"`
	NextEligibleAt time.Time    `json:"next_eligible_at"`
}

// ClaimResult reports a batch claim. Skipped counts tracks dropped at the ceiling.
type ClaimResult struct {
	AddedCardIDs []string `json:"added_card_ids"`
	Skipped      int      `json:"skipped"`
}

// AcquisitionServicer defines the contract for adding cards to collections.
type AcquisitionServicer interface {
	Unbox(ctx context.Context, userID string, selection UnboxSelection) (*UnboxResult, error)
	ClaimBatch(ctx context.Context, userID string, tracks []catalog.Track) (*ClaimResult, error)
}

// TradeDirection filters a user's trades.
type TradeDirection string

const (
	TradeDirectionIncoming TradeDirection = "incoming"
	TradeDirectionOutgoing TradeDirection = "outgoing"
	TradeDirectionAll      TradeDirection = "all"
)

// TradeServicer defines the contract for the trade state machine.
type TradeServicer interface {
	CreateTrade(senderID, receiverID string, senderCardIDs, receiverCardIDs []string) (*models.Trade, error)
	EvaluateStatus(trade *models.Trade, now time.Time) (models.TradeStatus, error)
	AcceptTrade(tradeID, actorID string) (*models.Trade, error)
	DeclineTrade(tradeID, actorID string) (*models.Trade, error)
	CancelTrade(tradeID, actorID string) (*models.Trade, error)
	GetTrade(tradeID, actorID string) (*models.Trade, error)
	ListTrades(userID string, direction TradeDirection, page pagination.PageRequest) (*pagination.PageResponse[models.Trade], error)
}

// LeaderboardEntry is one ranked row of the energy leaderboard.
type LeaderboardEntry struct {
	Rank           int    `json:"rank"`
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	DisplayName    string `json:"display_name"`
	TotalEnergy    int64  `json:"total_energy"`
	TotalMomentum  int64  `json:"total_momentum"`
	CardsCollected int    `json:"cards_collected"`
}

// LeaderboardServicer defines the contract for the energy leaderboard.
type LeaderboardServicer interface {
	TopByEnergy(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

// GameServicer defines the contract for settling blackjack rounds.
type GameServicer interface {
	Stake(userID string) (*OwnedCard, error)
	OnWin(ctx context.Context, userID string, trackIDs []string) (*ClaimResult, error)
	OnLoss(userID, stakedCardID string) (*models.User, error)
	OnPush(userID string)
}

// HistoryPoint is one day of a user's stat history.
type HistoryPoint struct {
	Date           string `json:"date"`
	TotalEnergy    int64  `json:"total_energy"`
	TotalMomentum  int64  `json:"total_momentum"`
	CardsCollected int    `json:"cards_collected"`
	Reconstructed  bool   `json:"reconstructed"`
}

// DailyStatServicer defines the contract for daily stat snapshots.
type DailyStatServicer interface {
	RecordDailyStats(now time.Time) (int, error)
	GetHistory(userID string, from, to time.Time) ([]HistoryPoint, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
