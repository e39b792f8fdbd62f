package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/basegigs-golang/internal/handlers"
	"github.com/01moynul/basegigs-golang/internal/middleware"
)

// CORSMiddleware tells the browser that it is safe for the configured
// frontend origin to call us.
func CORSMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Strictly allow ONLY the configured frontend
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)

		// 2. Allow standard security credentials
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")

		// 3. Allow the headers we actually use (specifically "Authorization" for JWT tokens)
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")

		// 4. Allow the HTTP methods we use in our API
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		// 5. Answer the preflight OPTIONS request with "204 No Content"
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Options configures the router.
type Options struct {
	CORSOrigin string
	// UploadDir is served at /uploads when set (local storage driver).
	UploadDir string
}

func SetupRouter(h *handlers.Handlers, opts Options) *gin.Engine {
	router := gin.Default()

	// --- APPLY THE CORS GUARD ---
	// This must be the very first thing the router uses
	router.Use(CORSMiddleware(opts.CORSOrigin))

	if opts.UploadDir != "" {
		router.Static("/uploads", opts.UploadDir)
	}

	v1 := router.Group("/v1")
	{
		// --- Ping Route (Public) ---
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong!"})
		})

		// --- Auth Routes (Public) ---
		v1.POST("/register", h.Register)
		v1.POST("/login", h.Login)

		// --- Public Board ---
		v1.GET("/plans", h.GetSubscriptionPlans)
		v1.GET("/gigs", h.ListGigs)
		v1.GET("/gigs/:id", h.GetGig)

		// --- Payment provider callback (signed, not authenticated) ---
		v1.POST("/webhooks/stripe", h.StripeWebhook)

		// --- Protected Routes (Login Required) ---
		authed := v1.Group("/")
		authed.Use(middleware.AuthMiddleware(h.Tokens, h.Store))
		{
			// Profile
			authed.GET("/profile/me", h.GetMyProfile)
			authed.PUT("/profile/me", h.UpdateMyProfile)
			authed.POST("/profile/me/photo", h.UploadProfilePhoto)

			// Notifications
			authed.GET("/notifications", h.GetMyNotifications)
			authed.GET("/notifications/stream", h.StreamNotifications)
			authed.PATCH("/notifications/:id/read", h.MarkNotificationAsRead)

			// Contracts (either party)
			authed.GET("/contracts", h.GetMyContracts)
			authed.GET("/contracts/:id", h.GetContract)
			authed.POST("/contracts/:id/sign", h.SignContract)
			authed.POST("/contracts/:id/changes", h.RequestContractChange)
			authed.POST("/contracts/:id/changes/approve", h.ApproveContractChange)
			authed.POST("/contracts/:id/changes/reject", h.RejectContractChange)

			// Application thread (either party)
			authed.GET("/applications/:id/contract", h.GetApplicationContract)
			authed.GET("/applications/:id/messages", h.GetMessages)
			authed.POST("/applications/:id/messages", h.SendMessage)

			// Assistant
			authed.POST("/assistant/ask", h.AskAssistant)

			// --- Client Routes ---
			client := authed.Group("/client")
			client.Use(middleware.ClientMiddleware())
			{
				client.GET("/dashboard-stats", h.GetClientStats)
				client.GET("/subscription", h.GetMySubscription)
				client.POST("/subscription/checkout", h.CreateCheckout)

				client.POST("/gigs", h.PostGig)
				client.GET("/gigs", h.GetMyGigs)
				client.PATCH("/gigs/:id/close", h.CloseGig)
				client.DELETE("/gigs/:id", h.DeleteGig)
				client.GET("/gigs/:id/applications", h.GetGigApplications)

				client.PATCH("/applications/:id/accept", h.AcceptApplication)
				client.PATCH("/applications/:id/decline", h.DeclineApplication)
			}

			// --- Seeker Routes ---
			seeker := authed.Group("/seeker")
			seeker.Use(middleware.SeekerMiddleware())
			{
				seeker.GET("/dashboard-stats", h.GetSeekerStats)
				seeker.POST("/gigs/:id/apply", h.ApplyToGig)
				seeker.GET("/applications", h.GetMyApplications)
			}

			// --- Admin Routes ---
			admin := authed.Group("/admin")
			admin.Use(middleware.AdminMiddleware())
			{
				admin.PUT("/clients/:id/subscription", h.AssignSubscription)
				admin.DELETE("/clients/:id/subscription", h.ClearSubscription)
			}
		}
	}

	return router
}
