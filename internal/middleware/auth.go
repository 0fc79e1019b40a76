package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "wav/internal/errors"
	"wav/internal/models"
)

// Context keys set by the auth middlewares.
const (
	AuthSubjectKey = "authSubject"
	AuthEmailKey   = "authEmail"
	UserIDKey      = "userID"
)

// ProviderClaims are the claims read from the identity provider's access token.
type ProviderClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// ProfileResolver maps an authenticated subject to its game profile.
type ProfileResolver interface {
	GetBySubject(subject string) (*models.User, error)
}

// AuthMiddleware verifies the identity provider's HS256 bearer token and sets
// the subject and email in the context. Tokens are never issued here.
func AuthMiddleware(secret, issuer string) gin.HandlerFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Authorization header is required"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid authorization header format"))
			return
		}

		claims := &ProviderClaims{}
		token, err := parser.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			abortWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid or expired token"))
			return
		}

		c.Set(AuthSubjectKey, claims.Subject)
		c.Set(AuthEmailKey, claims.Email)
		c.Next()
	}
}

// RequireProfile resolves the authenticated subject to a registered profile
// and sets its ID under UserIDKey. Must run after AuthMiddleware.
func RequireProfile(profiles ProfileResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.GetString(AuthSubjectKey)
		if subject == "" {
			abortWithError(c, apperrors.ErrUnauthorized)
			return
		}

		user, err := profiles.GetBySubject(subject)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(UserIDKey, user.ID)
		c.Next()
	}
}

func abortWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	c.AbortWithStatusJSON(appErr.StatusCode, errorBody(appErr))
}
