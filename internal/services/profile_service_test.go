package services

import (
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"wav/internal/models"
	"wav/internal/testutil"
)

func TestRegister(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewProfileService(db, NewLedgerService(db))

		user, err := svc.Register("auth|1", "  DJ_Wav ", "DJ@Example.com", "")
		testutil.AssertNoError(t, err)

		if user.ID == "" {
			t.Fatal("expected a user ID")
		}
		if user.Username != "dj_wav" {
			t.Errorf("expected case-folded username, got %s", user.Username)
		}
		if user.Email != "dj@example.com" {
			t.Errorf("expected case-folded email, got %s", user.Email)
		}
		if user.DisplayName != "dj_wav" {
			t.Errorf("expected display name to default to username, got %s", user.DisplayName)
		}
		if user.DeckPrivacy != models.PrivacyPublic || user.TradePrivacy != models.PrivacyPublic {
			t.Error("expected public defaults")
		}
	})

	t.Run("duplicate_username_ignores_case", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewProfileService(db, NewLedgerService(db))

		_, err := svc.Register("auth|1", "wav", "a@example.com", "")
		testutil.AssertNoError(t, err)

		_, err = svc.Register("auth|2", "WAV", "b@example.com", "")
		testutil.AssertAppError(t, err, "DUPLICATE_USERNAME")
	})

	t.Run("duplicate_email", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewProfileService(db, NewLedgerService(db))

		_, err := svc.Register("auth|1", "one", "same@example.com", "")
		testutil.AssertNoError(t, err)

		_, err = svc.Register("auth|2", "two", "SAME@example.com", "")
		testutil.AssertAppError(t, err, "DUPLICATE_EMAIL")
	})

	t.Run("already_registered", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewProfileService(db, NewLedgerService(db))

		_, err := svc.Register("auth|1", "one", "one@example.com", "")
		testutil.AssertNoError(t, err)

		_, err = svc.Register("auth|1", "two", "two@example.com", "")
		testutil.AssertAppError(t, err, "ALREADY_REGISTERED")
	})

	t.Run("lost_race_on_username", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewProfileService(db, NewLedgerService(db))

		// Another registration claims the username after the availability
		// checks but before this insert.
		raced := false
		err := db.Callback().Create().Before("gorm:create").Register("test:concurrent_register", func(tx *gorm.DB) {
			if raced || tx.Statement.Table != "users" {
				return
			}
			raced = true
			now := time.Now()
			tx.Session(&gorm.Session{NewDB: true}).Exec(
				"INSERT INTO users (id, created_at, updated_at, auth_subject, username, email) VALUES (?, ?, ?, ?, ?, ?)",
				"00000000-0000-7000-8000-000000000001", now, now, "auth|other", "wav", "other@example.com",
			)
		})
		testutil.AssertNoError(t, err)

		_, err = svc.Register("auth|1", "wav", "a@example.com", "")
		testutil.AssertAppError(t, err, "DUPLICATE_USERNAME")
	})

	t.Run("lookup_failure", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewProfileService(db, NewLedgerService(db))

		sqlDB, err := db.DB()
		testutil.AssertNoError(t, err)
		sqlDB.Close()

		_, err = svc.Register("auth|1", "wav", "a@example.com", "")
		testutil.AssertAppError(t, err, "INTERNAL_ERROR")
	})

	t.Run("missing_fields", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewProfileService(db, NewLedgerService(db))

		_, err := svc.Register("auth|1", "", "x@example.com", "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestConflictFromViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"postgres_username", errors.New(`ERROR: duplicate key value violates unique constraint "idx_users_username" (SQLSTATE 23505)`), "DUPLICATE_USERNAME"},
		{"postgres_email", errors.New(`ERROR: duplicate key value violates unique constraint "idx_users_email" (SQLSTATE 23505)`), "DUPLICATE_EMAIL"},
		{"sqlite_subject", errors.New("UNIQUE constraint failed: users.auth_subject"), "ALREADY_REGISTERED"},
		{"unnamed", gorm.ErrDuplicatedKey, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !isUniqueViolation(tt.err) {
				t.Fatalf("expected %v to be a unique violation", tt.err)
			}
			got := conflictFromViolation(tt.err)
			if tt.want == "" {
				if got != nil {
					t.Errorf("expected no conflict, got %s", got.Code)
				}
				return
			}
			if got == nil || got.Code != tt.want {
				t.Errorf("expected %s, got %v", tt.want, got)
			}
		})
	}

	if isUniqueViolation(errors.New("connection refused")) {
		t.Error("expected a connection error not to be a unique violation")
	}
}

func TestProfileLookups(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewProfileService(db, NewLedgerService(db))

	user := testutil.CreateTestUserWithUsername(t, db, "lookup")

	got, err := svc.GetBySubject(user.AuthSubject)
	testutil.AssertNoError(t, err)
	if got.ID != user.ID {
		t.Errorf("expected %s, got %s", user.ID, got.ID)
	}

	_, err = svc.GetBySubject("auth|nobody")
	testutil.AssertAppError(t, err, "PROFILE_NOT_REGISTERED")

	got, err = svc.GetByUsername("LOOKUP")
	testutil.AssertNoError(t, err)
	if got.ID != user.ID {
		t.Errorf("expected case-insensitive lookup to find %s", user.ID)
	}

	_, err = svc.GetByUsername("nobody")
	testutil.AssertAppError(t, err, "USER_NOT_FOUND")

	_, err = svc.GetByID("missing")
	testutil.AssertAppError(t, err, "USER_NOT_FOUND")
}

func TestUpdatePrivacy(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewProfileService(db, NewLedgerService(db))

	user := testutil.CreateTestUser(t, db)
	private := models.PrivacyPrivate

	got, err := svc.UpdatePrivacy(user.ID, &private, nil)
	testutil.AssertNoError(t, err)
	if got.DeckPrivacy != models.PrivacyPrivate {
		t.Errorf("expected private deck, got %s", got.DeckPrivacy)
	}
	if got.TradePrivacy != models.PrivacyPublic {
		t.Errorf("expected trade privacy untouched, got %s", got.TradePrivacy)
	}

	bogus := models.Privacy("friends")
	_, err = svc.UpdatePrivacy(user.ID, nil, &bogus)
	testutil.AssertAppError(t, err, "INVALID_INPUT")

	_, err = svc.UpdatePrivacy(user.ID, nil, nil)
	testutil.AssertAppError(t, err, "INVALID_INPUT")

	_, err = svc.UpdatePrivacy("missing", &private, nil)
	testutil.AssertAppError(t, err, "USER_NOT_FOUND")
}

func TestUpdatePreferences(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewProfileService(db, NewLedgerService(db))

	user := testutil.CreateTestUser(t, db)

	got, err := svc.UpdatePreferences(user.ID, []string{" Jazz ", "jazz", "", "Soul"}, []string{"Nina Simone", "nina simone"})
	testutil.AssertNoError(t, err)

	if len(got.TopGenres) != 2 || got.TopGenres[0] != "jazz" || got.TopGenres[1] != "soul" {
		t.Errorf("expected [jazz soul], got %v", got.TopGenres)
	}
	if len(got.TopArtists) != 1 || got.TopArtists[0] != "Nina Simone" {
		t.Errorf("expected [Nina Simone], got %v", got.TopArtists)
	}
}

func TestGetDeck(t *testing.T) {
	t.Run("public_deck_with_live_energy", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := &ledgerService{db: db, now: clockAt(fixedNow)}
		svc := &profileService{db: db, ledger: ledger, now: clockAt(fixedNow)}

		owner := testutil.CreateTestUserWithUsername(t, db, "owner")
		viewer := testutil.CreateTestUser(t, db)
		testutil.CreateOwnedCard(t, db, owner.ID, 10, fixedNow.Add(-1*time.Hour))
		testutil.CreateOwnedCard(t, db, owner.ID, 5, fixedNow.Add(-10*time.Hour))

		deck, err := svc.GetDeck(viewer.ID, "owner")
		testutil.AssertNoError(t, err)

		if len(deck.Cards) != 2 {
			t.Fatalf("expected 2 cards, got %d", len(deck.Cards))
		}
		if deck.Cards[0].Energy != 50 || deck.Cards[1].Energy != 10 {
			t.Errorf("expected energies [50 10], got [%d %d]", deck.Cards[0].Energy, deck.Cards[1].Energy)
		}
		if deck.User.TotalEnergy != 60 {
			t.Errorf("expected recomputed total energy 60, got %d", deck.User.TotalEnergy)
		}
	})

	t.Run("private_deck", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewProfileService(db, NewLedgerService(db))

		owner := testutil.CreateTestUserWithUsername(t, db, "hidden")
		viewer := testutil.CreateTestUser(t, db)
		db.Model(&models.User{}).Where("id = ?", owner.ID).Update("deck_privacy", models.PrivacyPrivate)

		_, err := svc.GetDeck(viewer.ID, "hidden")
		testutil.AssertAppError(t, err, "FORBIDDEN")

		_, err = svc.GetDeck(owner.ID, "hidden")
		testutil.AssertNoError(t, err)
	})
}
