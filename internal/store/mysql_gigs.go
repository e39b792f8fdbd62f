package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/01moynul/basegigs-golang/internal/models"
)

const gigColumns = `id, client_id, title, slug, category, location, description, requirements,
	payment_amount, payment_type, skills, deadline, expires_at, status, applicant_count,
	deleted_at, created_at, updated_at`

func scanGig(row rowScanner) (*models.Gig, error) {
	var (
		g                   models.Gig
		skills              []byte
		deadline, deletedAt sql.NullTime
	)
	if err := row.Scan(
		&g.ID, &g.ClientID, &g.Title, &g.Slug, &g.Category, &g.Location, &g.Description, &g.Requirements,
		&g.PaymentAmount, &g.PaymentType, &skills, &deadline, &g.ExpiresAt, &g.Status, &g.ApplicantCount,
		&deletedAt, &g.CreatedAt, &g.UpdatedAt,
	); err != nil {
		return nil, err
	}
	g.Deadline = timePtr(deadline)
	g.DeletedAt = timePtr(deletedAt)
	if err := unmarshalJSON(skills, &g.Skills); err != nil {
		return nil, err
	}
	return &g, nil
}

func scanGigs(rows *sql.Rows) ([]*models.Gig, error) {
	defer rows.Close()

	var gigs []*models.Gig
	for rows.Next() {
		g, err := scanGig(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan gig")
		}
		gigs = append(gigs, g)
	}
	return gigs, errors.Wrap(rows.Err(), "iterate gigs")
}

func (s *MySQL) CreateGig(ctx context.Context, g *models.Gig) error {
	skills, err := marshalJSON(g.Skills)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO gigs
		(client_id, title, slug, category, location, description, requirements, payment_amount,
		 payment_type, skills, deadline, expires_at, status, applicant_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := s.db.ExecContext(ctx, query,
		g.ClientID, g.Title, g.Slug, g.Category, g.Location, g.Description, g.Requirements, g.PaymentAmount,
		g.PaymentType, skills, nullTime(g.Deadline), g.ExpiresAt, g.Status, g.ApplicantCount, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "insert gig")
	}
	g.ID, err = result.LastInsertId()
	return errors.Wrap(err, "gig id")
}

func (s *MySQL) GetGig(ctx context.Context, id int64) (*models.Gig, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+gigColumns+" FROM gigs WHERE id = ?", id)
	g, err := scanGig(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "select gig")
	}
	return g, nil
}

func (s *MySQL) ListGigs(ctx context.Context, f models.GigFilter, now time.Time) ([]*models.Gig, error) {
	var queryBuilder strings.Builder
	var args []interface{}

	queryBuilder.WriteString("SELECT " + gigColumns + " FROM gigs")
	queryBuilder.WriteString(" WHERE status IN (?, ?) AND deleted_at IS NULL AND expires_at >= ?")
	args = append(args, models.GigOpen, models.GigFull, now)

	if f.Query != "" {
		queryBuilder.WriteString(" AND (title LIKE ? OR description LIKE ?)")
		like := "%" + f.Query + "%"
		args = append(args, like, like)
	}
	if f.Category != "" {
		queryBuilder.WriteString(" AND category = ?")
		args = append(args, f.Category)
	}
	if f.Location != "" {
		queryBuilder.WriteString(" AND location = ?")
		args = append(args, f.Location)
	}
	if f.PaymentType != "" {
		queryBuilder.WriteString(" AND payment_type = ?")
		args = append(args, f.PaymentType)
	}
	if f.ClientID != 0 {
		queryBuilder.WriteString(" AND client_id = ?")
		args = append(args, f.ClientID)
	}

	queryBuilder.WriteString(" ORDER BY created_at DESC, id DESC")
	if f.Limit > 0 {
		queryBuilder.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "list gigs")
	}
	return scanGigs(rows)
}

func (s *MySQL) ListClientGigs(ctx context.Context, clientID int64) ([]*models.Gig, error) {
	query := "SELECT " + gigColumns + " FROM gigs WHERE client_id = ? AND deleted_at IS NULL ORDER BY created_at DESC, id DESC"
	rows, err := s.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, errors.Wrap(err, "list client gigs")
	}
	return scanGigs(rows)
}

func (s *MySQL) CloseGig(ctx context.Context, id, clientID int64, now time.Time) error {
	query := `
		UPDATE gigs
		SET status = ?, updated_at = ?
		WHERE id = ? AND client_id = ? AND status IN (?, ?)`
	result, err := s.db.ExecContext(ctx, query, models.GigClosed, now, id, clientID, models.GigOpen, models.GigFull)
	if err != nil {
		return errors.Wrap(err, "close gig")
	}
	return expectOne(result, ErrNotFound)
}

func (s *MySQL) SoftDeleteGig(ctx context.Context, id, clientID int64, now time.Time) error {
	query := `
		UPDATE gigs
		SET status = ?, deleted_at = ?, updated_at = ?
		WHERE id = ? AND client_id = ? AND deleted_at IS NULL`
	result, err := s.db.ExecContext(ctx, query, models.GigDeleted, now, now, id, clientID)
	if err != nil {
		return errors.Wrap(err, "soft delete gig")
	}
	return expectOne(result, ErrNotFound)
}

func (s *MySQL) CloseExpiredGigs(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE gigs
		SET status = ?, updated_at = ?
		WHERE status IN (?, ?) AND deleted_at IS NULL AND expires_at < ?`
	result, err := s.db.ExecContext(ctx, query, models.GigClosed, now, models.GigOpen, models.GigFull, now)
	if err != nil {
		return 0, errors.Wrap(err, "close expired gigs")
	}
	n, err := result.RowsAffected()
	return n, errors.Wrap(err, "rows affected")
}

//
// --- Applications ---
//

const applicationColumns = `a.id, a.gig_id, a.applicant_id, a.client_id, a.status, a.cover_note,
	a.applied_at, a.updated_at, g.title`

func scanApplications(rows *sql.Rows) ([]*models.Application, error) {
	defer rows.Close()

	var apps []*models.Application
	for rows.Next() {
		var app models.Application
		if err := rows.Scan(
			&app.ID, &app.GigID, &app.ApplicantID, &app.ClientID, &app.Status, &app.CoverNote,
			&app.AppliedAt, &app.UpdatedAt, &app.GigTitle,
		); err != nil {
			return nil, errors.Wrap(err, "scan application")
		}
		apps = append(apps, &app)
	}
	return apps, errors.Wrap(rows.Err(), "iterate applications")
}

func (s *MySQL) CreateApplication(ctx context.Context, app *models.Application, capacity int, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	// 1. --- Insert first: the unique key rejects a second application ---
	query := `
		INSERT INTO applications
		(gig_id, applicant_id, client_id, status, cover_note, applied_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, query,
		app.GigID, app.ApplicantID, app.ClientID, app.Status, app.CoverNote, app.AppliedAt, app.UpdatedAt,
	)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return errors.Wrap(err, "insert application")
	}
	app.ID, err = result.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "application id")
	}

	// 2. --- Increment in place, guarded on the gig still being open ---
	// status is assigned before applicant_count because MySQL evaluates
	// single-table SET clauses left to right against updated values.
	counterQuery := `
		UPDATE gigs
		SET status = IF(applicant_count + 1 >= ?, ?, status),
		    applicant_count = applicant_count + 1,
		    updated_at = ?
		WHERE id = ? AND status = ? AND deleted_at IS NULL`
	result, err = tx.ExecContext(ctx, counterQuery, capacity, models.GigFull, now, app.GigID, models.GigOpen)
	if err != nil {
		return errors.Wrap(err, "increment applicant count")
	}
	if err := expectOne(result, ErrConflict); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "commit application")
}

func (s *MySQL) GetApplication(ctx context.Context, id int64) (*models.Application, error) {
	query := "SELECT " + applicationColumns + " FROM applications a JOIN gigs g ON a.gig_id = g.id WHERE a.id = ?"
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, errors.Wrap(err, "select application")
	}
	apps, err := scanApplications(rows)
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return nil, ErrNotFound
	}
	return apps[0], nil
}

func (s *MySQL) ListApplicationsForGig(ctx context.Context, gigID int64) ([]*models.Application, error) {
	query := "SELECT " + applicationColumns + " FROM applications a JOIN gigs g ON a.gig_id = g.id WHERE a.gig_id = ? ORDER BY a.applied_at ASC, a.id ASC"
	rows, err := s.db.QueryContext(ctx, query, gigID)
	if err != nil {
		return nil, errors.Wrap(err, "list gig applications")
	}
	return scanApplications(rows)
}

func (s *MySQL) ListApplicationsByApplicant(ctx context.Context, applicantID int64) ([]*models.Application, error) {
	query := "SELECT " + applicationColumns + " FROM applications a JOIN gigs g ON a.gig_id = g.id WHERE a.applicant_id = ? ORDER BY a.applied_at ASC, a.id ASC"
	rows, err := s.db.QueryContext(ctx, query, applicantID)
	if err != nil {
		return nil, errors.Wrap(err, "list my applications")
	}
	return scanApplications(rows)
}

func (s *MySQL) UpdateApplicationStatus(ctx context.Context, id int64, status models.ApplicationStatus, now time.Time) error {
	query := `
		UPDATE applications
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`
	result, err := s.db.ExecContext(ctx, query, status, now, id, models.ApplicationPending)
	if err != nil {
		return errors.Wrap(err, "update application status")
	}
	return expectOne(result, ErrConflict)
}
