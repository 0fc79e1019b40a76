package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "wav/internal/errors"
	"wav/internal/middleware"
	"wav/internal/models"
	"wav/internal/services"
)

// ProfileHandler handles player profile requests.
type ProfileHandler struct {
	profileService services.ProfileServicer
	ledgerService  services.LedgerServicer
	auditService   services.AuditServicer
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profileService services.ProfileServicer, ledgerService services.LedgerServicer, auditService services.AuditServicer) *ProfileHandler {
	return &ProfileHandler{profileService: profileService, ledgerService: ledgerService, auditService: auditService}
}

// RegisterProfileRequest represents the payload for creating a profile.
type RegisterProfileRequest struct {
	Username    string `json:"username" binding:"required,username"`
	Email       string `json:"email" binding:"omitempty,email,max=255"`
	DisplayName string `json:"display_name" binding:"max=100"`
}

// UpdatePrivacyRequest represents the payload for changing privacy settings.
type UpdatePrivacyRequest struct {
	DeckPrivacy  *models.Privacy `json:"deck_privacy" binding:"omitempty,privacy"`
	TradePrivacy *models.Privacy `json:"trade_privacy" binding:"omitempty,privacy"`
}

// UpdatePreferencesRequest represents the payload for catalog hints.
type UpdatePreferencesRequest struct {
	TopGenres  []string `json:"top_genres" binding:"max=10,dive,max=50"`
	TopArtists []string `json:"top_artists" binding:"max=10,dive,max=100"`
}

// Register creates the caller's game profile.
// @Summary     Create a profile
// @Description Create the game profile for the authenticated account. The email defaults to the token's email claim.
// @Tags        profile
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body RegisterProfileRequest true "Profile details"
// @Success     201 {object} models.User "Profile created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Already registered or duplicate"
// @Router      /profile [post]
func (h *ProfileHandler) Register(c *gin.Context) {
	subject, err := getAuthSubject(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RegisterProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	if req.Email == "" {
		req.Email = c.GetString(middleware.AuthEmailKey)
	}

	user, err := h.profileService.Register(subject, req.Username, req.Email, req.DisplayName)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(user.ID, services.AuditActionProfile, "user", user.ID, c.ClientIP(),
		map[string]interface{}{"registered": true, "username": user.Username})

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// GetProfile returns the caller's profile.
// @Summary     Get profile
// @Tags        profile
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} models.User "Profile"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Profile not registered"
// @Router      /profile [get]
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.profileService.GetByID(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdatePrivacy changes deck and trade privacy.
// @Summary     Update privacy
// @Tags        profile
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body UpdatePrivacyRequest true "Privacy settings"
// @Success     200 {object} models.User "Updated profile"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /profile/privacy [put]
func (h *ProfileHandler) UpdatePrivacy(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdatePrivacyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.profileService.UpdatePrivacy(userID, req.DeckPrivacy, req.TradePrivacy)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditActionProfile, "user", userID, c.ClientIP(),
		map[string]interface{}{"deck_privacy": user.DeckPrivacy, "trade_privacy": user.TradePrivacy})

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdatePreferences replaces the caller's favourite genres and artists.
// @Summary     Update preferences
// @Tags        profile
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body UpdatePreferencesRequest true "Genres and artists"
// @Success     200 {object} models.User "Updated profile"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /profile/preferences [put]
func (h *ProfileHandler) UpdatePreferences(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.profileService.UpdatePreferences(userID, req.TopGenres, req.TopArtists)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Recompute rebuilds the caller's cached totals from their cards.
// @Summary     Recompute stats
// @Tags        profile
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} models.User "Reconciled profile"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /profile/recompute [post]
func (h *ProfileHandler) Recompute(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.ledgerService.RecomputeAggregates(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// GetDeck returns another player's deck, subject to their privacy setting.
// @Summary     View a deck
// @Tags        profile
// @Produce     json
// @Security    BearerAuth
// @Param       username path string true "Username"
// @Success     200 {object} services.Deck "Deck"
// @Failure     403 {object} ErrorResponse "Private deck"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /users/{username}/deck [get]
func (h *ProfileHandler) GetDeck(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	deck, err := h.profileService.GetDeck(userID, c.Param("username"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, deck)
}
