package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/basegigs-golang/internal/contract"
	"github.com/01moynul/basegigs-golang/internal/models"
	"github.com/01moynul/basegigs-golang/internal/quota"
)

//
// --- Client Dashboard Stats ---
//

type ClientStats struct {
	OpenGigs            int  `json:"openGigs"`
	FullGigs            int  `json:"fullGigs"`
	PendingApplications int  `json:"pendingApplications"`
	AwaitingMySignature int  `json:"awaitingMySignature"`
	ChangesPending      int  `json:"changesPending"`
	CanPost             bool `json:"canPost"`
	GigPostsLeft        *int `json:"gigPostsLeft"` // nil when unlimited or no plan
}

// GetClientStats returns KPI data for the client dashboard
// GET /v1/client/dashboard-stats
func (h *Handlers) GetClientStats(c *gin.Context) {
	ctx := c.Request.Context()
	user := currentUser(c)
	stats := ClientStats{}

	// 1. Gigs by status, and the applications still waiting on a decision
	gigs, err := h.Marketplace.ListClientGigs(ctx, user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	for _, gig := range gigs {
		switch gig.Status {
		case models.GigOpen:
			stats.OpenGigs++
		case models.GigFull:
			stats.FullGigs++
		default:
			continue
		}
		apps, err := h.Marketplace.ListApplicationsForGig(ctx, user.ID, gig.ID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		for _, app := range apps {
			if app.Status == models.ApplicationPending {
				stats.PendingApplications++
			}
		}
	}

	// 2. Contracts that need this user
	if !h.countContracts(c, user.ID, &stats.AwaitingMySignature, &stats.ChangesPending) {
		return
	}

	// 3. Posting allowance
	sub, err := h.Quota.Current(ctx, user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	stats.CanPost = quota.CheckCanPost(sub, time.Now())
	if sub != nil && !sub.Unlimited {
		left := sub.GigPostsLeft
		stats.GigPostsLeft = &left
	}

	c.JSON(http.StatusOK, stats)
}

//
// --- Seeker Dashboard Stats ---
//

type SeekerStats struct {
	PendingApplications  int `json:"pendingApplications"`
	AcceptedApplications int `json:"acceptedApplications"`
	AwaitingMySignature  int `json:"awaitingMySignature"`
	ChangesPending       int `json:"changesPending"`
	UnreadNotifications  int `json:"unreadNotifications"`
}

// GetSeekerStats returns KPI data for the seeker dashboard
// GET /v1/seeker/dashboard-stats
func (h *Handlers) GetSeekerStats(c *gin.Context) {
	ctx := c.Request.Context()
	user := currentUser(c)
	stats := SeekerStats{}

	// 1. Applications by status
	apps, err := h.Marketplace.ListMyApplications(ctx, user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	for _, app := range apps {
		switch app.Status {
		case models.ApplicationPending:
			stats.PendingApplications++
		case models.ApplicationAccepted:
			stats.AcceptedApplications++
		}
	}

	// 2. Contracts that need this user
	if !h.countContracts(c, user.ID, &stats.AwaitingMySignature, &stats.ChangesPending) {
		return
	}

	// 3. Unread notifications (from the recent feed)
	notifications, err := h.Notify.List(ctx, user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	for _, n := range notifications {
		if !n.IsRead {
			stats.UnreadNotifications++
		}
	}

	c.JSON(http.StatusOK, stats)
}

// countContracts counts the user's contracts they still have to sign and
// those held by a change request.
func (h *Handlers) countContracts(c *gin.Context, userID int64, awaiting, pending *int) bool {
	contracts, err := h.Contracts.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return false
	}
	for _, ctr := range contracts {
		switch contract.StateOf(ctr) {
		case contract.StateChangePending:
			*pending++
		case contract.StateDraft, contract.StatePartiallySigned:
			role, ok := contract.PartyRole(ctr, userID)
			if !ok {
				continue
			}
			if (role == contract.RoleClient && ctr.ClientSignedAt == nil) || (role == contract.RoleSeeker && ctr.SeekerSignedAt == nil) {
				*awaiting++
			}
		}
	}
	return true
}
