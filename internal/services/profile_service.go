package services

import (
	"errors"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	apperrors "wav/internal/errors"
	"wav/internal/logger"
	"wav/internal/models"
	"wav/internal/statclock"
)

// maxPreferences caps each preference list.
const maxPreferences = 10

// profileService handles player profiles.
type profileService struct {
	db     *gorm.DB
	ledger LedgerServicer
	now    func() time.Time
}

// NewProfileService creates a new ProfileServicer.
func NewProfileService(db *gorm.DB, ledger LedgerServicer) ProfileServicer {
	return &profileService{db: db, ledger: ledger, now: time.Now}
}

// Register creates the profile for an authenticated subject. Username and
// email are stored case-folded.
func (s *profileService) Register(subject, username, email, displayName string) (*models.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))
	if subject == "" || username == "" || email == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "username and email are required")
	}

	if err := s.checkAvailable(subject, username, email); err != nil {
		return nil, err
	}

	if displayName = strings.TrimSpace(displayName); displayName == "" {
		displayName = username
	}

	user := &models.User{
		AuthSubject:  subject,
		Username:     username,
		Email:        email,
		DisplayName:  displayName,
		DeckPrivacy:  models.PrivacyPublic,
		TradePrivacy: models.PrivacyPublic,
		TopGenres:    datatypes.JSONSlice[string]{},
		TopArtists:   datatypes.JSONSlice[string]{},
	}
	if err := s.db.Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			if conflict := conflictFromViolation(err); conflict != nil {
				return nil, conflict
			}
			if err := s.checkAvailable(subject, username, email); err != nil {
				return nil, err
			}
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return user, nil
}

// checkAvailable fails with the matching conflict if the subject, username or
// email is already taken.
func (s *profileService) checkAvailable(subject, username, email string) error {
	checks := []struct {
		column   string
		value    string
		conflict *apperrors.AppError
	}{
		{"auth_subject", subject, apperrors.ErrAlreadyRegistered},
		{"username", username, apperrors.ErrDuplicateUsername},
		{"email", email, apperrors.ErrDuplicateEmail},
	}
	for _, c := range checks {
		var count int64
		if err := s.db.Model(&models.User{}).Where(c.column+" = ?", c.value).Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count > 0 {
			return c.conflict
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// conflictFromViolation names the taken field from the violated index, so a
// registration that lost a race still gets a specific conflict error.
func conflictFromViolation(err error) *apperrors.AppError {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "auth_subject"):
		return apperrors.ErrAlreadyRegistered
	case strings.Contains(msg, "username"):
		return apperrors.ErrDuplicateUsername
	case strings.Contains(msg, "email"):
		return apperrors.ErrDuplicateEmail
	}
	return nil
}
