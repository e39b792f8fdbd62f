package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/01moynul/basegigs-golang/internal/models"
)

func newMockStore(t *testing.T) (*MySQL, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewMySQL(db), mock
}

// sqlText matches a statement by its literal text; sqlmock collapses whitespace
// on both sides before comparing.
func sqlText(query string) string {
	return "^" + regexp.QuoteMeta(query) + "$"
}

var duplicateEntry = &mysql.MySQLError{Number: mysqlDuplicateEntry, Message: "Duplicate entry"}

const decrementQuery = "UPDATE subscriptions SET gig_posts_left = gig_posts_left - 1, updated_at = ? " +
	"WHERE client_id = ? AND unlimited = 0 AND gig_posts_left > 0"

func TestDecrementGigPosts(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "allowance left", affected: 1, want: true},
		{name: "drained or unlimited", affected: 0, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			mock.ExpectExec(sqlText(decrementQuery)).
				WithArgs(now, int64(42)).
				WillReturnResult(sqlmock.NewResult(0, tc.affected))

			ok, err := s.DecrementGigPosts(context.Background(), 42, now)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestDecrementGigPostsError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(sqlText(decrementQuery)).WillReturnError(errors.New("connection reset"))

	_, err := s.DecrementGigPosts(context.Background(), 42, time.Now())
	assert.ErrorContains(t, err, "decrement gig posts")
}

func TestDeleteStripeSubscription(t *testing.T) {
	query := "DELETE FROM subscriptions WHERE client_id = ? AND stripe_subscription_id = ?"

	s, mock := newMockStore(t)
	mock.ExpectExec(sqlText(query)).WithArgs(int64(42), "sub_pro").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlText(query)).WithArgs(int64(42), "sub_old").WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	assert.NoError(t, s.DeleteStripeSubscription(ctx, 42, "sub_pro"))
	assert.ErrorIs(t, s.DeleteStripeSubscription(ctx, 42, "sub_old"), ErrNotFound)
}

func TestUpsertSubscriptionWritesStripeReference(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	stripeID := "sub_pro"

	mock.ExpectExec(`^\s*INSERT INTO subscriptions .* ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID\(id\),`).
		WithArgs(int64(42), "pro", false, 20, "sub_pro", now, now.AddDate(0, 0, 30), now).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec(`^\s*INSERT INTO subscriptions`).
		WithArgs(int64(43), "basic", false, 1, nil, now, now.AddDate(0, 0, 30), now).
		WillReturnResult(sqlmock.NewResult(8, 1))

	ctx := context.Background()
	sub := &models.Subscription{
		ClientID: 42, PlanKey: "pro", GigPostsLeft: 20, StripeSubscriptionID: &stripeID,
		ActivatedAt: now, ExpiresAt: now.AddDate(0, 0, 30), UpdatedAt: now,
	}
	require.NoError(t, s.UpsertSubscription(ctx, sub))
	assert.Equal(t, int64(7), sub.ID)

	admin := &models.Subscription{
		ClientID: 43, PlanKey: "basic", GigPostsLeft: 1,
		ActivatedAt: now, ExpiresAt: now.AddDate(0, 0, 30), UpdatedAt: now,
	}
	require.NoError(t, s.UpsertSubscription(ctx, admin))
}

func TestGetSubscriptionNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`FROM subscriptions WHERE client_id = \?`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetSubscription(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordWebhookEvent(t *testing.T) {
	query := "INSERT INTO webhook_events (event_id, processed_at) VALUES (?, ?)"
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	s, mock := newMockStore(t)
	mock.ExpectExec(sqlText(query)).WithArgs("evt_1", now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlText(query)).WithArgs("evt_1", now).WillReturnError(duplicateEntry)

	ctx := context.Background()
	require.NoError(t, s.RecordWebhookEvent(ctx, "evt_1", now))
	assert.ErrorIs(t, s.RecordWebhookEvent(ctx, "evt_1", now), ErrDuplicate)
}

const (
	insertApplicationQuery = "INSERT INTO applications " +
		"(gig_id, applicant_id, client_id, status, cover_note, applied_at, updated_at) " +
		"VALUES (?, ?, ?, ?, ?, ?, ?)"
	applicantCounterQuery = "UPDATE gigs " +
		"SET status = IF(applicant_count + 1 >= ?, ?, status), " +
		"applicant_count = applicant_count + 1, " +
		"updated_at = ? " +
		"WHERE id = ? AND status = ? AND deleted_at IS NULL"
)

func newApplication(now time.Time) *models.Application {
	return &models.Application{
		GigID: 5, ApplicantID: 9, ClientID: 2, Status: models.ApplicationPending,
		CoverNote: "Free on weekends", AppliedAt: now, UpdatedAt: now,
	}
}

func TestCreateApplication(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(sqlText(insertApplicationQuery)).
		WithArgs(int64(5), int64(9), int64(2), models.ApplicationPending, "Free on weekends", now, now).
		WillReturnResult(sqlmock.NewResult(31, 1))
	mock.ExpectExec(sqlText(applicantCounterQuery)).
		WithArgs(models.GigApplicantCap, models.GigFull, now, int64(5), models.GigOpen).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	app := newApplication(now)
	require.NoError(t, s.CreateApplication(context.Background(), app, models.GigApplicantCap, now))
	assert.Equal(t, int64(31), app.ID)
}

func TestCreateApplicationGigNoLongerOpen(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(sqlText(insertApplicationQuery)).WillReturnResult(sqlmock.NewResult(31, 1))
	mock.ExpectExec(sqlText(applicantCounterQuery)).
		WithArgs(models.GigApplicantCap, models.GigFull, now, int64(5), models.GigOpen).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.CreateApplication(context.Background(), newApplication(now), models.GigApplicantCap, now)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateApplicationDuplicate(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(sqlText(insertApplicationQuery)).WillReturnError(duplicateEntry)
	mock.ExpectRollback()

	err := s.CreateApplication(context.Background(), newApplication(now), models.GigApplicantCap, now)
	assert.ErrorIs(t, err, ErrDuplicate)
}

const updateContractQuery = "UPDATE contracts " +
	"SET client_signed_at = ?, seeker_signed_at = ?, fully_executed_at = ?, version = ?, " +
	"pending_changes = ?, pending_changes_by = ?, pending_changes_at = ?, " +
	"change_history = ?, revision = revision + 1, updated_at = ? " +
	"WHERE id = ? AND revision = ?"

func TestUpdateContractRevisionGuard(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	testCases := []struct {
		name         string
		affected     int64
		wantErr      error
		wantRevision int64
	}{
		{name: "current revision", affected: 1, wantRevision: 4},
		{name: "stale revision", affected: 0, wantErr: ErrConflict, wantRevision: 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			mock.ExpectExec(sqlText(updateContractQuery)).
				WithArgs(now, nil, nil, 2, nil, nil, nil, sqlmock.AnyArg(), now, int64(11), int64(3)).
				WillReturnResult(sqlmock.NewResult(0, tc.affected))

			c := &models.Contract{ID: 11, ClientSignedAt: &now, Version: 2, Revision: 3, UpdatedAt: now}
			err := s.UpdateContract(context.Background(), c)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.wantRevision, c.Revision)
		})
	}
}
