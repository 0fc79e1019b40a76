package services

import (
	"testing"
	"time"

	"wav/internal/models"
	"wav/internal/testutil"
)

func TestRecordDailyStats(t *testing.T) {
	t.Run("records_every_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewDailyStatService(db)

		alice := testutil.CreateTestUser(t, db)
		testutil.CreateTestUser(t, db)
		testutil.CreateOwnedCard(t, db, alice.ID, 10, fixedNow.Add(-3*time.Hour))

		count, err := svc.RecordDailyStats(fixedNow)
		testutil.AssertNoError(t, err)
		if count != 2 {
			t.Errorf("expected 2 stats, got %d", count)
		}

		var stat models.DailyStat
		db.Where("user_id = ?", alice.ID).First(&stat)
		if stat.StatDate != "2024-03-10" {
			t.Errorf("expected stat date 2024-03-10, got %s", stat.StatDate)
		}
		if stat.TotalEnergy != 30 || stat.TotalMomentum != 10 || stat.CardsCollected != 1 {
			t.Errorf("expected 30/10/1, got %d/%d/%d", stat.TotalEnergy, stat.TotalMomentum, stat.CardsCollected)
		}
	})

	t.Run("same_day_overwrites", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewDailyStatService(db)

		alice := testutil.CreateTestUser(t, db)
		testutil.CreateOwnedCard(t, db, alice.ID, 10, fixedNow.Add(-3*time.Hour))

		_, err := svc.RecordDailyStats(fixedNow)
		testutil.AssertNoError(t, err)
		_, err = svc.RecordDailyStats(fixedNow.Add(2 * time.Hour))
		testutil.AssertNoError(t, err)

		var stats []models.DailyStat
		db.Where("user_id = ?", alice.ID).Find(&stats)
		if len(stats) != 1 {
			t.Fatalf("expected one stat per day, got %d", len(stats))
		}
		if stats[0].TotalEnergy != 50 {
			t.Errorf("expected the later run to win with energy 50, got %d", stats[0].TotalEnergy)
		}
	})
}

func TestGetHistory(t *testing.T) {
	t.Run("stored_and_reconstructed_days", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := &dailyStatService{db: db, now: clockAt(fixedNow)}

		user := testutil.CreateTestUser(t, db)
		testutil.CreateOwnedCard(t, db, user.ID, 10, time.Date(2024, 3, 8, 6, 0, 0, 0, time.UTC))
		db.Create(&models.DailyStat{
			UserID:         user.ID,
			StatDate:       "2024-03-09",
			TotalEnergy:    999,
			TotalMomentum:  10,
			CardsCollected: 1,
			RecordedAt:     time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC),
		})

		points, err := svc.GetHistory(user.ID,
			time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC))
		testutil.AssertNoError(t, err)

		want := []HistoryPoint{
			{Date: "2024-03-07", Reconstructed: true},
			{Date: "2024-03-08", TotalEnergy: 180, TotalMomentum: 10, CardsCollected: 1, Reconstructed: true},
			{Date: "2024-03-09", TotalEnergy: 999, TotalMomentum: 10, CardsCollected: 1},
			{Date: "2024-03-10", TotalEnergy: 540, TotalMomentum: 10, CardsCollected: 1, Reconstructed: true},
		}
		if len(points) != len(want) {
			t.Fatalf("expected %d points (capped at today), got %d", len(want), len(points))
		}
		for i := range want {
			if points[i] != want[i] {
				t.Errorf("point %d: expected %+v, got %+v", i, want[i], points[i])
			}
		}
	})

	t.Run("inverted_range", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := &dailyStatService{db: db, now: clockAt(fixedNow)}

		user := testutil.CreateTestUser(t, db)
		_, err := svc.GetHistory(user.ID, fixedNow, fixedNow.Add(-72*time.Hour))
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("range_too_long", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := &dailyStatService{db: db, now: clockAt(fixedNow)}

		user := testutil.CreateTestUser(t, db)
		_, err := svc.GetHistory(user.ID, fixedNow.AddDate(-2, 0, 0), fixedNow)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("user_not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := &dailyStatService{db: db, now: clockAt(fixedNow)}

		_, err := svc.GetHistory("missing", fixedNow.Add(-24*time.Hour), fixedNow)
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})
}
