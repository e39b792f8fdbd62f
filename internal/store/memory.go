package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/01moynul/basegigs-golang/internal/models"
)

// Memory is an in-process Store used by tests and by STORE_DRIVER=memory.
// Records are copied on the way in and out so callers never share state.
type Memory struct {
	mu sync.Mutex

	nextID int64

	users         map[int64]*models.User
	subscriptions map[int64]*models.Subscription // by client id
	gigs          map[int64]*models.Gig
	applications  map[int64]*models.Application
	contracts     map[int64]*models.Contract
	notifications map[int64]*models.Notification
	messages      map[int64]*models.Message
	events        map[string]time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:         make(map[int64]*models.User),
		subscriptions: make(map[int64]*models.Subscription),
		gigs:          make(map[int64]*models.Gig),
		applications:  make(map[int64]*models.Application),
		contracts:     make(map[int64]*models.Contract),
		notifications: make(map[int64]*models.Notification),
		messages:      make(map[int64]*models.Message),
		events:        make(map[string]time.Time),
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

//
// --- Users ---
//

func (m *Memory) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicate
		}
	}
	u.ID = m.id()
	m.users[u.ID] = copyUser(u)
	return nil
}

func (m *Memory) GetUser(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpdateProfile(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	updated := copyUser(existing)
	updated.FullName = u.FullName
	updated.Headline = u.Headline
	updated.Bio = u.Bio
	updated.Location = u.Location
	updated.PhotoURL = u.PhotoURL
	updated.Skills = append([]string(nil), u.Skills...)
	updated.UpdatedAt = u.UpdatedAt
	m.users[u.ID] = updated
	return nil
}

func (m *Memory) SetAdmin(_ context.Context, id int64, admin bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsAdmin = admin
	return nil
}

//
// --- Subscriptions ---
//

func (m *Memory) GetSubscription(_ context.Context, clientID int64) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subscriptions[clientID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (m *Memory) UpsertSubscription(_ context.Context, sub *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.subscriptions[sub.ClientID]; ok {
		sub.ID = existing.ID
	} else {
		sub.ID = m.id()
	}
	cp := *sub
	m.subscriptions[sub.ClientID] = &cp
	return nil
}

func (m *Memory) DeleteSubscription(_ context.Context, clientID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subscriptions[clientID]; !ok {
		return ErrNotFound
	}
	delete(m.subscriptions, clientID)
	return nil
}

func (m *Memory) DeleteStripeSubscription(_ context.Context, clientID int64, stripeSubscriptionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subscriptions[clientID]
	if !ok || sub.StripeSubscriptionID == nil || *sub.StripeSubscriptionID != stripeSubscriptionID {
		return ErrNotFound
	}
	delete(m.subscriptions, clientID)
	return nil
}

func (m *Memory) DecrementGigPosts(_ context.Context, clientID int64, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subscriptions[clientID]
	if !ok || sub.Unlimited || sub.GigPostsLeft <= 0 {
		return false, nil
	}
	sub.GigPostsLeft--
	sub.UpdatedAt = now
	return true, nil
}

//
// --- Gigs ---
//

func (m *Memory) CreateGig(_ context.Context, g *models.Gig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g.ID = m.id()
	m.gigs[g.ID] = copyGig(g)
	return nil
}

func (m *Memory) GetGig(_ context.Context, id int64) (*models.Gig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.gigs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyGig(g), nil
}

func (m *Memory) ListGigs(_ context.Context, f models.GigFilter, now time.Time) ([]*models.Gig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := strings.ToLower(f.Query)
	var out []*models.Gig
	for _, g := range m.gigs {
		if g.Status != models.GigOpen && g.Status != models.GigFull {
			continue
		}
		if g.DeletedAt != nil || g.ExpiresAt.Before(now) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(g.Title), q) && !strings.Contains(strings.ToLower(g.Description), q) {
			continue
		}
		if f.Category != "" && g.Category != f.Category {
			continue
		}
		if f.Location != "" && !strings.EqualFold(g.Location, f.Location) {
			continue
		}
		if f.PaymentType != "" && g.PaymentType != f.PaymentType {
			continue
		}
		if f.ClientID != 0 && g.ClientID != f.ClientID {
			continue
		}
		out = append(out, copyGig(g))
	}
	sortGigsNewestFirst(out)
	return paginate(out, f.Offset, f.Limit), nil
}

func (m *Memory) ListClientGigs(_ context.Context, clientID int64) ([]*models.Gig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Gig
	for _, g := range m.gigs {
		if g.ClientID == clientID && g.DeletedAt == nil {
			out = append(out, copyGig(g))
		}
	}
	sortGigsNewestFirst(out)
	return out, nil
}

func (m *Memory) CloseGig(_ context.Context, id, clientID int64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.gigs[id]
	if !ok || g.ClientID != clientID || (g.Status != models.GigOpen && g.Status != models.GigFull) {
		return ErrNotFound
	}
	g.Status = models.GigClosed
	g.UpdatedAt = now
	return nil
}

func (m *Memory) SoftDeleteGig(_ context.Context, id, clientID int64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.gigs[id]
	if !ok || g.ClientID != clientID || g.DeletedAt != nil {
		return ErrNotFound
	}
	deletedAt := now
	g.Status = models.GigDeleted
	g.DeletedAt = &deletedAt
	g.UpdatedAt = now
	return nil
}

func (m *Memory) CloseExpiredGigs(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, g := range m.gigs {
		if (g.Status == models.GigOpen || g.Status == models.GigFull) && g.DeletedAt == nil && g.ExpiresAt.Before(now) {
			g.Status = models.GigClosed
			g.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

//
// --- Applications ---
//

func (m *Memory) CreateApplication(_ context.Context, app *models.Application, capacity int, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.gigs[app.GigID]
	if !ok {
		return ErrNotFound
	}
	for _, existing := range m.applications {
		if existing.GigID == app.GigID && existing.ApplicantID == app.ApplicantID {
			return ErrDuplicate
		}
	}
	if g.Status != models.GigOpen || g.DeletedAt != nil {
		return ErrConflict
	}

	g.ApplicantCount++
	if g.ApplicantCount >= capacity {
		g.Status = models.GigFull
	}
	g.UpdatedAt = now

	app.ID = m.id()
	cp := *app
	m.applications[app.ID] = &cp
	return nil
}

func (m *Memory) GetApplication(_ context.Context, id int64) (*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	app, ok := m.applications[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.withGigTitle(app), nil
}

func (m *Memory) ListApplicationsForGig(_ context.Context, gigID int64) ([]*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Application
	for _, app := range m.applications {
		if app.GigID == gigID {
			out = append(out, m.withGigTitle(app))
		}
	}
	sortApplications(out)
	return out, nil
}

func (m *Memory) ListApplicationsByApplicant(_ context.Context, applicantID int64) ([]*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Application
	for _, app := range m.applications {
		if app.ApplicantID == applicantID {
			out = append(out, m.withGigTitle(app))
		}
	}
	sortApplications(out)
	return out, nil
}

func (m *Memory) UpdateApplicationStatus(_ context.Context, id int64, status models.ApplicationStatus, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	app, ok := m.applications[id]
	if !ok {
		return ErrNotFound
	}
	if app.Status != models.ApplicationPending {
		return ErrConflict
	}
	app.Status = status
	app.UpdatedAt = now
	return nil
}

func (m *Memory) withGigTitle(app *models.Application) *models.Application {
	cp := *app
	if g, ok := m.gigs[app.GigID]; ok {
		cp.GigTitle = g.Title
	}
	return &cp
}

//
// --- Contracts ---
//

func (m *Memory) CreateContract(_ context.Context, c *models.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.contracts {
		if existing.ApplicationID == c.ApplicationID {
			return ErrDuplicate
		}
	}
	c.ID = m.id()
	c.Revision = 1
	m.contracts[c.ID] = copyContract(c)
	return nil
}

func (m *Memory) GetContract(_ context.Context, id int64) (*models.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contracts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyContract(c), nil
}

func (m *Memory) GetContractByApplication(_ context.Context, applicationID int64) (*models.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.contracts {
		if c.ApplicationID == applicationID {
			return copyContract(c), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpdateContract(_ context.Context, c *models.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.contracts[c.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Revision != c.Revision {
		return ErrConflict
	}
	c.Revision++
	m.contracts[c.ID] = copyContract(c)
	return nil
}

func (m *Memory) ListContractsForUser(_ context.Context, userID int64) ([]*models.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Contract
	for _, c := range m.contracts {
		if c.ClientID == userID || c.SeekerID == userID {
			out = append(out, copyContract(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

//
// --- Notifications ---
//

func (m *Memory) CreateNotification(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n.ID = m.id()
	cp := *n
	m.notifications[n.ID] = &cp
	return nil
}

func (m *Memory) ListNotifications(_ context.Context, userID int64, limit int) ([]*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			cp := *n
			out = append(out, &cp)
		}
	}
	// Unread first, newest first.
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsRead != out[j].IsRead {
			return !out[i].IsRead
		}
		return out[i].ID > out[j].ID
	})
	return paginate(out, 0, limit), nil
}

func (m *Memory) MarkNotificationRead(_ context.Context, id, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notifications[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	n.IsRead = true
	return nil
}

//
// --- Messages ---
//

func (m *Memory) CreateMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg.ID = m.id()
	cp := *msg
	m.messages[msg.ID] = &cp
	return nil
}

func (m *Memory) ListMessages(_ context.Context, applicationID int64) ([]*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Message
	for _, msg := range m.messages {
		if msg.ApplicationID == applicationID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

//
// --- copy helpers ---
//

func copyUser(u *models.User) *models.User {
	cp := *u
	cp.Skills = append([]string(nil), u.Skills...)
	return &cp
}

func copyGig(g *models.Gig) *models.Gig {
	cp := *g
	cp.Skills = append([]string(nil), g.Skills...)
	return &cp
}

func copyContract(c *models.Contract) *models.Contract {
	cp := *c
	cp.ChangeHistory = append([]models.ContractChange(nil), c.ChangeHistory...)
	return &cp
}

func sortGigsNewestFirst(gigs []*models.Gig) {
	sort.Slice(gigs, func(i, j int) bool { return gigs[i].ID > gigs[j].ID })
}

func sortApplications(apps []*models.Application) {
	sort.Slice(apps, func(i, j int) bool { return apps[i].ID < apps[j].ID })
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

//
// --- Webhook Events ---
//

func (m *Memory) RecordWebhookEvent(_ context.Context, eventID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[eventID]; ok {
		return ErrDuplicate
	}
	m.events[eventID] = now
	return nil
}

func (m *Memory) ForgetWebhookEvent(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.events, eventID)
	return nil
}
