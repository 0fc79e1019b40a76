package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"wav/internal/catalog"
	"wav/internal/middleware"
	"wav/internal/models"
	"wav/internal/pagination"
	"wav/internal/services"
	"wav/internal/validator"
)

// --- mock services ---

type mockProfileService struct {
	registerFn          func(subject, username, email, displayName string) (*models.User, error)
	getByIDFn           func(userID string) (*models.User, error)
	getByUsernameFn     func(username string) (*models.User, error)
	updatePrivacyFn     func(userID string, deck, trade *models.Privacy) (*models.User, error)
	updatePreferencesFn func(userID string, genres, artists []string) (*models.User, error)
	getDeckFn           func(viewerID, username string) (*services.Deck, error)
}

func (m *mockProfileService) Register(subject, username, email, displayName string) (*models.User, error) {
	if m.registerFn != nil {
		return m.registerFn(subject, username, email, displayName)
	}
	return &models.User{}, nil
}

func (m *mockProfileService) GetByID(userID string) (*models.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(userID)
	}
	return &models.User{Base: models.Base{ID: userID}}, nil
}

func (m *mockProfileService) GetBySubject(subject string) (*models.User, error) {
	return &models.User{AuthSubject: subject}, nil
}

func (m *mockProfileService) GetByUsername(username string) (*models.User, error) {
	if m.getByUsernameFn != nil {
		return m.getByUsernameFn(username)
	}
	return &models.User{Username: username}, nil
}

func (m *mockProfileService) UpdatePrivacy(userID string, deck, trade *models.Privacy) (*models.User, error) {
	if m.updatePrivacyFn != nil {
		return m.updatePrivacyFn(userID, deck, trade)
	}
	return &models.User{}, nil
}

func (m *mockProfileService) UpdatePreferences(userID string, genres, artists []string) (*models.User, error) {
	if m.updatePreferencesFn != nil {
		return m.updatePreferencesFn(userID, genres, artists)
	}
	return &models.User{}, nil
}

func (m *mockProfileService) GetDeck(viewerID, username string) (*services.Deck, error) {
	if m.getDeckFn != nil {
		return m.getDeckFn(viewerID, username)
	}
	return &services.Deck{}, nil
}

type mockLedgerService struct {
	recomputeFn func(userID string) (*models.User, error)
}

func (m *mockLedgerService) OwnedCards(string) ([]services.OwnedCard, error) { return nil, nil }

func (m *mockLedgerService) RecomputeAggregates(userID string) (*models.User, error) {
	if m.recomputeFn != nil {
		return m.recomputeFn(userID)
	}
	return &models.User{Base: models.Base{ID: userID}}, nil
}

func (m *mockLedgerService) CanAcquire(string) (bool, error) { return true, nil }

func (m *mockLedgerService) TransferOwnership(*gorm.DB, string, string, string) error { return nil }

func (m *mockLedgerService) RemoveOwnership(string, string) (*models.User, error) {
	return &models.User{}, nil
}

func (m *mockLedgerService) ApplyDelta(*gorm.DB, string, int64, int) error { return nil }

type mockAcquisitionService struct {
	unboxFn func(ctx context.Context, userID string, sel services.UnboxSelection) (*services.UnboxResult, error)
}

func (m *mockAcquisitionService) Unbox(ctx context.Context, userID string, sel services.UnboxSelection) (*services.UnboxResult, error) {
	if m.unboxFn != nil {
		return m.unboxFn(ctx, userID, sel)
	}
	return &services.UnboxResult{Card: &models.Card{}}, nil
}

func (m *mockAcquisitionService) ClaimBatch(context.Context, string, []catalog.Track) (*services.ClaimResult, error) {
	return &services.ClaimResult{}, nil
}

type mockTradeService struct {
	createTradeFn func(senderID, receiverID string, senderCardIDs, receiverCardIDs []string) (*models.Trade, error)
	acceptFn      func(tradeID, actorID string) (*models.Trade, error)
	declineFn     func(tradeID, actorID string) (*models.Trade, error)
	cancelFn      func(tradeID, actorID string) (*models.Trade, error)
	getTradeFn    func(tradeID, actorID string) (*models.Trade, error)
	listTradesFn  func(userID string, direction services.TradeDirection, page pagination.PageRequest) (*pagination.PageResponse[models.Trade], error)
}

func (m *mockTradeService) CreateTrade(senderID, receiverID string, senderCardIDs, receiverCardIDs []string) (*models.Trade, error) {
	if m.createTradeFn != nil {
		return m.createTradeFn(senderID, receiverID, senderCardIDs, receiverCardIDs)
	}
	return &models.Trade{}, nil
}

func (m *mockTradeService) EvaluateStatus(trade *models.Trade, _ time.Time) (models.TradeStatus, error) {
	return trade.Status, nil
}

func (m *mockTradeService) AcceptTrade(tradeID, actorID string) (*models.Trade, error) {
	if m.acceptFn != nil {
		return m.acceptFn(tradeID, actorID)
	}
	return &models.Trade{ID: tradeID, Status: models.TradeStatusAccepted}, nil
}

func (m *mockTradeService) DeclineTrade(tradeID, actorID string) (*models.Trade, error) {
	if m.declineFn != nil {
		return m.declineFn(tradeID, actorID)
	}
	return &models.Trade{ID: tradeID, Status: models.TradeStatusDeclined}, nil
}

func (m *mockTradeService) CancelTrade(tradeID, actorID string) (*models.Trade, error) {
	if m.cancelFn != nil {
		return m.cancelFn(tradeID, actorID)
	}
	return &models.Trade{ID: tradeID, Status: models.TradeStatusDeclined}, nil
}

func (m *mockTradeService) GetTrade(tradeID, actorID string) (*models.Trade, error) {
	if m.getTradeFn != nil {
		return m.getTradeFn(tradeID, actorID)
	}
	return &models.Trade{ID: tradeID}, nil
}

func (m *mockTradeService) ListTrades(userID string, direction services.TradeDirection, page pagination.PageRequest) (*pagination.PageResponse[models.Trade], error) {
	if m.listTradesFn != nil {
		return m.listTradesFn(userID, direction, page)
	}
	resp := pagination.NewPageResponse([]models.Trade{}, pagination.PageRequest{Page: 1, PageSize: 20}, 0)
	return &resp, nil
}

type mockLeaderboardService struct {
	topFn func(ctx context.Context, limit int) ([]services.LeaderboardEntry, error)
}

func (m *mockLeaderboardService) TopByEnergy(ctx context.Context, limit int) ([]services.LeaderboardEntry, error) {
	if m.topFn != nil {
		return m.topFn(ctx, limit)
	}
	return []services.LeaderboardEntry{}, nil
}

type mockGameService struct {
	stakeFn  func(userID string) (*services.OwnedCard, error)
	onWinFn  func(ctx context.Context, userID string, trackIDs []string) (*services.ClaimResult, error)
	onLossFn func(userID, cardID string) (*models.User, error)
	pushes   int
}

func (m *mockGameService) Stake(userID string) (*services.OwnedCard, error) {
	if m.stakeFn != nil {
		return m.stakeFn(userID)
	}
	return &services.OwnedCard{}, nil
}

func (m *mockGameService) OnWin(ctx context.Context, userID string, trackIDs []string) (*services.ClaimResult, error) {
	if m.onWinFn != nil {
		return m.onWinFn(ctx, userID, trackIDs)
	}
	return &services.ClaimResult{}, nil
}

func (m *mockGameService) OnLoss(userID, cardID string) (*models.User, error) {
	if m.onLossFn != nil {
		return m.onLossFn(userID, cardID)
	}
	return &models.User{}, nil
}

func (m *mockGameService) OnPush(string) { m.pushes++ }

type mockDailyStatService struct {
	recordFn  func(now time.Time) (int, error)
	historyFn func(userID string, from, to time.Time) ([]services.HistoryPoint, error)
}

func (m *mockDailyStatService) RecordDailyStats(now time.Time) (int, error) {
	if m.recordFn != nil {
		return m.recordFn(now)
	}
	return 0, nil
}

func (m *mockDailyStatService) GetHistory(userID string, from, to time.Time) ([]services.HistoryPoint, error) {
	if m.historyFn != nil {
		return m.historyFn(userID, from, to)
	}
	return []services.HistoryPoint{}, nil
}

type auditEntry struct {
	userID, action, resourceType, resourceID string
}

type mockAuditService struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (m *mockAuditService) Log(userID, action, resourceType, resourceID, _ string, _ map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, auditEntry{userID, action, resourceType, resourceID})
}

// verify interface compliance
var (
	_ services.ProfileServicer     = (*mockProfileService)(nil)
	_ services.LedgerServicer      = (*mockLedgerService)(nil)
	_ services.AcquisitionServicer = (*mockAcquisitionService)(nil)
	_ services.TradeServicer       = (*mockTradeService)(nil)
	_ services.LeaderboardServicer = (*mockLeaderboardService)(nil)
	_ services.GameServicer        = (*mockGameService)(nil)
	_ services.DailyStatServicer   = (*mockDailyStatService)(nil)
	_ services.AuditServicer       = (*mockAuditService)(nil)
)

// --- test helpers ---

const testUserID = "0190a5a2-0000-7000-8000-000000000001"

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, uid)
		c.Next()
	}
}

func injectSubject(subject, email string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.AuthSubjectKey, subject)
		c.Set(middleware.AuthEmailKey, email)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}
