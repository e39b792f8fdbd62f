package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/basegigs-golang/internal/models"
)

//
// --- Role-Based Middleware ---
//
// These run after AuthMiddleware and only read the user it loaded.
//

func requireUser(allowed func(*models.User) bool, denied string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthenticated", "User not found in context (AuthMiddleware must run first)")
			return
		}
		if !allowed(user) {
			abort(c, http.StatusForbidden, "unauthorized", denied)
			return
		}
		c.Next()
	}
}

// ClientMiddleware admits users registered as client or both.
func ClientMiddleware() gin.HandlerFunc {
	return requireUser((*models.User).CanPost, "Access denied: client account required")
}

// SeekerMiddleware admits users registered as seeker or both.
func SeekerMiddleware() gin.HandlerFunc {
	return requireUser((*models.User).CanApply, "Access denied: gig seeker account required")
}

// AdminMiddleware admits users whose stored admin flag is set.
func AdminMiddleware() gin.HandlerFunc {
	return requireUser(func(u *models.User) bool { return u.IsAdmin }, "Access denied: administrator only")
}
