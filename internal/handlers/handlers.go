package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/basegigs-golang/internal/apperr"
	"github.com/01moynul/basegigs-golang/internal/auth"
	"github.com/01moynul/basegigs-golang/internal/billing"
	"github.com/01moynul/basegigs-golang/internal/contract"
	"github.com/01moynul/basegigs-golang/internal/marketplace"
	"github.com/01moynul/basegigs-golang/internal/messaging"
	"github.com/01moynul/basegigs-golang/internal/middleware"
	"github.com/01moynul/basegigs-golang/internal/models"
	"github.com/01moynul/basegigs-golang/internal/notify"
	"github.com/01moynul/basegigs-golang/internal/quota"
	"github.com/01moynul/basegigs-golang/internal/storage"
	"github.com/01moynul/basegigs-golang/internal/store"
)

// Subscriber streams a user's live notifications.
type Subscriber interface {
	Subscribe(ctx context.Context, userID int64) (<-chan *models.Notification, error)
}

// Assistant answers free-form questions about the gig board.
type Assistant interface {
	Ask(ctx context.Context, question, role string) (string, int, error)
}

// Handlers struct holds all dependencies for our handlers.
// Stream, Billing and Assistant are optional and may be nil.
type Handlers struct {
	Store       store.Store
	Tokens      *auth.Tokens
	Quota       *quota.Manager
	Contracts   *contract.Engine
	Marketplace *marketplace.Service
	Messaging   *messaging.Service
	Notify      *notify.Service
	Blobs       storage.Blob
	Stream      Subscriber
	Billing     *billing.Service
	Assistant   Assistant
	Logger      *slog.Logger
}

// statusFor maps a failure kind onto its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindBlocked, apperr.KindAlreadySigned:
		return http.StatusConflict
	case apperr.KindQuotaExceeded:
		return http.StatusPaymentRequired
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": ..., "code": ...}. Server-side
// failures are logged with their cause and shown to the caller generically.
func (h *Handlers) respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		h.logger().Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": apperr.Message(err), "code": kind.String()})
}

func (h *Handlers) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// bindJSON binds the request body into dst and answers 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": apperr.KindValidation.String()})
		return false
	}
	return true
}

// paramID reads a positive integer path parameter and answers 400 otherwise.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name, "code": apperr.KindValidation.String()})
		return 0, false
	}
	return id, true
}

// currentUser is set by AuthMiddleware on every authenticated route.
func currentUser(c *gin.Context) *models.User {
	user, _ := middleware.CurrentUser(c)
	return user
}
