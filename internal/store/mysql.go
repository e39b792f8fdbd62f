package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"github.com/01moynul/basegigs-golang/internal/models"
)

const mysqlDuplicateEntry = 1062

// MySQL implements Store on a database/sql pool opened with the MySQL driver.
type MySQL struct {
	db *sql.DB
}

func NewMySQL(db *sql.DB) *MySQL {
	return &MySQL{db: db}
}

func (s *MySQL) Close() error { return s.db.Close() }

// DB exposes the pool for callers that need raw access (migrations, workers).
func (s *MySQL) DB() *sql.DB { return s.db }

func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

// expectOne turns a zero-row result into miss.
func expectOne(result sql.Result, miss error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return miss
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time
	return &v
}

func nullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func marshalJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal json column")
	}
	return b, nil
}

func unmarshalJSON(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(raw, v), "unmarshal json column")
}

//
// --- Users ---
//

const userColumns = `id, role, is_admin, email, password_hash, full_name,
	headline, bio, location, photo_url, skills, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u                                 models.User
		headline, bio, location, photoURL sql.NullString
		skills                            []byte
	)
	if err := row.Scan(
		&u.ID, &u.Role, &u.IsAdmin, &u.Email, &u.PasswordHash, &u.FullName,
		&headline, &bio, &location, &photoURL, &skills, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.Headline = stringPtr(headline)
	u.Bio = stringPtr(bio)
	u.Location = stringPtr(location)
	u.PhotoURL = stringPtr(photoURL)
	if err := unmarshalJSON(skills, &u.Skills); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *MySQL) CreateUser(ctx context.Context, u *models.User) error {
	skills, err := marshalJSON(u.Skills)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO users
		(role, is_admin, email, password_hash, full_name, headline, bio, location, photo_url, skills, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := s.db.ExecContext(ctx, query,
		u.Role, u.IsAdmin, u.Email, u.PasswordHash, u.FullName,
		nullString(u.Headline), nullString(u.Bio), nullString(u.Location), nullString(u.PhotoURL),
		skills, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return errors.Wrap(err, "insert user")
	}
	u.ID, err = result.LastInsertId()
	return errors.Wrap(err, "user id")
}

func (s *MySQL) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where, arg)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "select user")
	}
	return u, nil
}

func (s *MySQL) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

func (s *MySQL) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email = ?", email)
}

func (s *MySQL) UpdateProfile(ctx context.Context, u *models.User) error {
	skills, err := marshalJSON(u.Skills)
	if err != nil {
		return err
	}
	query := `
		UPDATE users
		SET full_name = ?, headline = ?, bio = ?, location = ?, photo_url = ?, skills = ?, updated_at = ?
		WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query,
		u.FullName, nullString(u.Headline), nullString(u.Bio), nullString(u.Location),
		nullString(u.PhotoURL), skills, u.UpdatedAt, u.ID,
	)
	if err != nil {
		return errors.Wrap(err, "update profile")
	}
	return expectOne(result, ErrNotFound)
}

func (s *MySQL) SetAdmin(ctx context.Context, id int64, admin bool) error {
	// Touch updated_at so RowsAffected is non-zero even when the flag is unchanged.
	result, err := s.db.ExecContext(ctx, "UPDATE users SET is_admin = ?, updated_at = ? WHERE id = ?", admin, time.Now(), id)
	if err != nil {
		return errors.Wrap(err, "set admin")
	}
	return expectOne(result, ErrNotFound)
}

//
// --- Subscriptions ---
//

func (s *MySQL) GetSubscription(ctx context.Context, clientID int64) (*models.Subscription, error) {
	query := `
		SELECT id, client_id, plan_key, unlimited, gig_posts_left, stripe_subscription_id,
		activated_at, expires_at, updated_at
		FROM subscriptions
		WHERE client_id = ?`
	var sub models.Subscription
	var stripeID sql.NullString
	err := s.db.QueryRowContext(ctx, query, clientID).Scan(
		&sub.ID, &sub.ClientID, &sub.PlanKey, &sub.Unlimited, &sub.GigPostsLeft, &stripeID,
		&sub.ActivatedAt, &sub.ExpiresAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "select subscription")
	}
	sub.StripeSubscriptionID = stringPtr(stripeID)
	return &sub, nil
}

func (s *MySQL) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	// client_id is a unique key: a plan change replaces the row wholesale.
	query := `
		INSERT INTO subscriptions
		(client_id, plan_key, unlimited, gig_posts_left, stripe_subscription_id, activated_at, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		id = LAST_INSERT_ID(id),
		plan_key = VALUES(plan_key),
		unlimited = VALUES(unlimited),
		gig_posts_left = VALUES(gig_posts_left),
		stripe_subscription_id = VALUES(stripe_subscription_id),
		activated_at = VALUES(activated_at),
		expires_at = VALUES(expires_at),
		updated_at = VALUES(updated_at)`
	result, err := s.db.ExecContext(ctx, query,
		sub.ClientID, sub.PlanKey, sub.Unlimited, sub.GigPostsLeft, nullString(sub.StripeSubscriptionID),
		sub.ActivatedAt, sub.ExpiresAt, sub.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "upsert subscription")
	}
	sub.ID, err = result.LastInsertId()
	return errors.Wrap(err, "subscription id")
}

func (s *MySQL) DeleteSubscription(ctx context.Context, clientID int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM subscriptions WHERE client_id = ?", clientID)
	if err != nil {
		return errors.Wrap(err, "delete subscription")
	}
	return expectOne(result, ErrNotFound)
}

func (s *MySQL) DeleteStripeSubscription(ctx context.Context, clientID int64, stripeSubscriptionID string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM subscriptions WHERE client_id = ? AND stripe_subscription_id = ?",
		clientID, stripeSubscriptionID)
	if err != nil {
		return errors.Wrap(err, "delete stripe subscription")
	}
	return expectOne(result, ErrNotFound)
}

func (s *MySQL) DecrementGigPosts(ctx context.Context, clientID int64, now time.Time) (bool, error) {
	query := `
		UPDATE subscriptions
		SET gig_posts_left = gig_posts_left - 1, updated_at = ?
		WHERE client_id = ? AND unlimited = 0 AND gig_posts_left > 0`
	result, err := s.db.ExecContext(ctx, query, now, clientID)
	if err != nil {
		return false, errors.Wrap(err, "decrement gig posts")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n == 1, nil
}

//
// --- Webhook Events ---
//

func (s *MySQL) RecordWebhookEvent(ctx context.Context, eventID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO webhook_events (event_id, processed_at) VALUES (?, ?)", eventID, now)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return errors.Wrap(err, "insert webhook event")
	}
	return nil
}

func (s *MySQL) ForgetWebhookEvent(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM webhook_events WHERE event_id = ?", eventID)
	return errors.Wrap(err, "delete webhook event")
}
