package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/basegigs-golang/internal/auth"
	"github.com/01moynul/basegigs-golang/internal/models"
	"github.com/01moynul/basegigs-golang/internal/store"
)

// Context keys set by AuthMiddleware.
const (
	UserIDKey = "userID"
	UserKey   = "user"
)

// AuthMiddleware creates a gin.HandlerFunc that acts as our "security guard".
// It validates the Bearer token and loads the caller's profile, so role checks
// further down always see the stored role and admin flag.
func AuthMiddleware(tokens *auth.Tokens, users store.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. --- Get Authorization Header ---
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "unauthenticated", "Authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abort(c, http.StatusUnauthorized, "unauthenticated", "Invalid token format (must be Bearer)")
			return
		}

		// 2. --- Validate Token ---
		userID, err := tokens.ValidateToken(parts[1])
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthenticated", "Invalid or expired token")
			return
		}

		// 3. --- Load the user ---
		user, err := users.GetUser(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				abort(c, http.StatusUnauthorized, "unauthenticated", "Account no longer exists")
				return
			}
			abort(c, http.StatusInternalServerError, "storage", "Failed to load your account")
			return
		}

		// 4. --- Success ---
		c.Set(UserIDKey, userID)
		c.Set(UserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user AuthMiddleware loaded.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}
