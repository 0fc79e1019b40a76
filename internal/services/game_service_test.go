package services

import (
	"context"
	"testing"
	"time"

	"wav/internal/models"
	"wav/internal/testutil"
)

func TestStake(t *testing.T) {
	t.Run("picks_an_owned_card", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		svc := &gameService{ledger: ledger, intn: func(n int) int { return n - 1 }}

		user := testutil.CreateTestUser(t, db)
		testutil.CreateOwnedCard(t, db, user.ID, 10, time.Now())
		testutil.CreateOwnedCard(t, db, user.ID, 20, time.Now())

		staked, err := svc.Stake(user.ID)
		testutil.AssertNoError(t, err)
		if staked.Ownership.UserID != user.ID {
			t.Errorf("expected a card owned by the user, got owner %s", staked.Ownership.UserID)
		}

		got := testutil.Reload(t, db, user.ID)
		if got.CardsCollected != 2 {
			t.Errorf("expected staking not to remove anything, got %d cards", got.CardsCollected)
		}
	})

	t.Run("empty_collection", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		svc := NewGameService(ledger, NewAcquisitionService(db, newFakeCatalog()), newFakeCatalog())

		user := testutil.CreateTestUser(t, db)
		_, err := svc.Stake(user.ID)
		testutil.AssertAppError(t, err, "NOT_FOUND")
	})
}

func TestOnWin(t *testing.T) {
	t.Run("claims_known_tracks", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		fake := newFakeCatalog(testTrack("t1", 10), testTrack("t2", 20))
		svc := NewGameService(NewLedgerService(db), NewAcquisitionService(db, fake), fake)

		user := testutil.CreateTestUser(t, db)
		staked := testutil.CreateOwnedCard(t, db, user.ID, 40, time.Now())

		result, err := svc.OnWin(context.Background(), user.ID, []string{"t1", "t2", "unknown"})
		testutil.AssertNoError(t, err)

		if len(result.AddedCardIDs) != 2 || result.Skipped != 1 {
			t.Errorf("expected 2 added / 1 skipped, got %d / %d", len(result.AddedCardIDs), result.Skipped)
		}

		got := testutil.Reload(t, db, user.ID)
		if got.CardsCollected != 3 || got.TotalMomentum != 70 {
			t.Errorf("expected 3 cards / 70 momentum, got %d / %d", got.CardsCollected, got.TotalMomentum)
		}

		var count int64
		db.Model(&models.UserCard{}).Where("user_id = ? AND card_id = ?", user.ID, staked.ID).Count(&count)
		if count != 1 {
			t.Error("expected the winner to keep the staked card")
		}
	})

	t.Run("catalog_down", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		fake := newFakeCatalog()
		fake.err = errUpstream
		svc := NewGameService(NewLedgerService(db), NewAcquisitionService(db, fake), fake)

		user := testutil.CreateTestUser(t, db)
		_, err := svc.OnWin(context.Background(), user.ID, []string{"t1"})
		testutil.AssertAppError(t, err, "PROVIDER_UNAVAILABLE")
	})

	t.Run("nothing_won", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		fake := newFakeCatalog()
		svc := NewGameService(NewLedgerService(db), NewAcquisitionService(db, fake), fake)

		user := testutil.CreateTestUser(t, db)
		result, err := svc.OnWin(context.Background(), user.ID, nil)
		testutil.AssertNoError(t, err)
		if len(result.AddedCardIDs) != 0 || result.Skipped != 0 {
			t.Errorf("expected empty result, got %+v", result)
		}
	})
}

func TestOnLoss(t *testing.T) {
	t.Run("forfeits_staked_card_with_clamp", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		fake := newFakeCatalog()
		svc := NewGameService(NewLedgerService(db), NewAcquisitionService(db, fake), fake)

		user := testutil.CreateTestUser(t, db)
		card := testutil.CreateTestCard(t, db, 40, time.Now())
		testutil.GiveCard(t, db, user.ID, card.ID, models.AcquiredViaUnbox)
		db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
			"total_momentum":  30,
			"cards_collected": 1,
		})

		got, err := svc.OnLoss(user.ID, card.ID)
		testutil.AssertNoError(t, err)

		if got.TotalMomentum != 0 {
			t.Errorf("expected momentum to clamp at 0, got %d", got.TotalMomentum)
		}
		if got.CardsCollected != 0 {
			t.Errorf("expected 0 cards, got %d", got.CardsCollected)
		}

		var count int64
		db.Model(&models.UserCard{}).Where("user_id = ?", user.ID).Count(&count)
		if count != 0 {
			t.Errorf("expected the staked card to be gone, got %d rows", count)
		}
	})

	t.Run("card_not_owned", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		fake := newFakeCatalog()
		svc := NewGameService(NewLedgerService(db), NewAcquisitionService(db, fake), fake)

		user := testutil.CreateTestUser(t, db)
		_, err := svc.OnLoss(user.ID, "missing")
		testutil.AssertAppError(t, err, "NOT_OWNED")
	})
}

func TestOnPush(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	fake := newFakeCatalog()
	svc := NewGameService(NewLedgerService(db), NewAcquisitionService(db, fake), fake)

	user := testutil.CreateTestUser(t, db)
	testutil.CreateOwnedCard(t, db, user.ID, 10, time.Now())

	svc.OnPush(user.ID)

	got := testutil.Reload(t, db, user.ID)
	if got.CardsCollected != 1 || got.TotalMomentum != 10 {
		t.Errorf("expected push to change nothing, got %d / %d", got.CardsCollected, got.TotalMomentum)
	}
}
