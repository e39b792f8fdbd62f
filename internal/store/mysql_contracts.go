package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/01moynul/basegigs-golang/internal/models"
)

//
// --- Contracts ---
//

const contractColumns = `id, application_id, client_id, seeker_id, client_signed_at, seeker_signed_at,
	fully_executed_at, version, pending_changes, pending_changes_by, pending_changes_at,
	change_history, revision, created_at, updated_at`

func scanContract(row rowScanner) (*models.Contract, error) {
	var (
		c                                  models.Contract
		clientSigned, seekerSigned, execAt sql.NullTime
		pending                            sql.NullString
		pendingBy                          sql.NullInt64
		pendingAt                          sql.NullTime
		history                            []byte
	)
	if err := row.Scan(
		&c.ID, &c.ApplicationID, &c.ClientID, &c.SeekerID, &clientSigned, &seekerSigned,
		&execAt, &c.Version, &pending, &pendingBy, &pendingAt,
		&history, &c.Revision, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.ClientSignedAt = timePtr(clientSigned)
	c.SeekerSignedAt = timePtr(seekerSigned)
	c.FullyExecutedAt = timePtr(execAt)
	c.PendingChanges = stringPtr(pending)
	c.PendingChangesBy = int64Ptr(pendingBy)
	c.PendingChangesAt = timePtr(pendingAt)
	if err := unmarshalJSON(history, &c.ChangeHistory); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *MySQL) CreateContract(ctx context.Context, c *models.Contract) error {
	history, err := marshalJSON(c.ChangeHistory)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO contracts
		(application_id, client_id, seeker_id, version, change_history, revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)`
	result, err := s.db.ExecContext(ctx, query,
		c.ApplicationID, c.ClientID, c.SeekerID, c.Version, history, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return errors.Wrap(err, "insert contract")
	}
	c.ID, err = result.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "contract id")
	}
	c.Revision = 1
	return nil
}

func (s *MySQL) getContract(ctx context.Context, where string, arg any) (*models.Contract, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+contractColumns+" FROM contracts WHERE "+where, arg)
	c, err := scanContract(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "select contract")
	}
	return c, nil
}

func (s *MySQL) GetContract(ctx context.Context, id int64) (*models.Contract, error) {
	return s.getContract(ctx, "id = ?", id)
}

func (s *MySQL) GetContractByApplication(ctx context.Context, applicationID int64) (*models.Contract, error) {
	return s.getContract(ctx, "application_id = ?", applicationID)
}

func (s *MySQL) UpdateContract(ctx context.Context, c *models.Contract) error {
	history, err := marshalJSON(c.ChangeHistory)
	if err != nil {
		return err
	}
	query := `
		UPDATE contracts
		SET client_signed_at = ?, seeker_signed_at = ?, fully_executed_at = ?, version = ?,
		    pending_changes = ?, pending_changes_by = ?, pending_changes_at = ?,
		    change_history = ?, revision = revision + 1, updated_at = ?
		WHERE id = ? AND revision = ?`
	result, err := s.db.ExecContext(ctx, query,
		nullTime(c.ClientSignedAt), nullTime(c.SeekerSignedAt), nullTime(c.FullyExecutedAt), c.Version,
		nullString(c.PendingChanges), nullInt64(c.PendingChangesBy), nullTime(c.PendingChangesAt),
		history, c.UpdatedAt, c.ID, c.Revision,
	)
	if err != nil {
		return errors.Wrap(err, "update contract")
	}
	if err := expectOne(result, ErrConflict); err != nil {
		return err
	}
	c.Revision++
	return nil
}

func (s *MySQL) ListContractsForUser(ctx context.Context, userID int64) ([]*models.Contract, error) {
	query := "SELECT " + contractColumns + " FROM contracts WHERE client_id = ? OR seeker_id = ? ORDER BY id DESC"
	rows, err := s.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list contracts")
	}
	defer rows.Close()

	var contracts []*models.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan contract")
		}
		contracts = append(contracts, c)
	}
	return contracts, errors.Wrap(rows.Err(), "iterate contracts")
}

//
// --- Notifications ---
//

func (s *MySQL) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications
		(user_id, message, link, is_read, created_at)
		VALUES (?, ?, ?, 0, ?)`
	result, err := s.db.ExecContext(ctx, query, n.UserID, n.Message, nullString(n.Link), n.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "insert notification")
	}
	n.ID, err = result.LastInsertId()
	return errors.Wrap(err, "notification id")
}

func (s *MySQL) ListNotifications(ctx context.Context, userID int64, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, user_id, message, link, is_read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY is_read ASC, created_at DESC, id DESC
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list notifications")
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		var (
			n    models.Notification
			link sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &link, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan notification")
		}
		n.Link = stringPtr(link)
		notifications = append(notifications, &n)
	}
	return notifications, errors.Wrap(rows.Err(), "iterate notifications")
}

func (s *MySQL) MarkNotificationRead(ctx context.Context, id, userID int64) error {
	// Matching user_id keeps one user from touching another's feed.
	result, err := s.db.ExecContext(ctx, "UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return errors.Wrap(err, "mark notification read")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		// Already-read rows report zero affected; tell them apart from missing ones.
		var exists bool
		err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM notifications WHERE id = ? AND user_id = ?)", id, userID).Scan(&exists)
		if err != nil {
			return errors.Wrap(err, "check notification")
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

//
// --- Messages ---
//

func (s *MySQL) CreateMessage(ctx context.Context, m *models.Message) error {
	query := "INSERT INTO messages (application_id, sender_id, body, created_at) VALUES (?, ?, ?, ?)"
	result, err := s.db.ExecContext(ctx, query, m.ApplicationID, m.SenderID, m.Body, m.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "insert message")
	}
	m.ID, err = result.LastInsertId()
	return errors.Wrap(err, "message id")
}

func (s *MySQL) ListMessages(ctx context.Context, applicationID int64) ([]*models.Message, error) {
	query := `
		SELECT id, application_id, sender_id, body, created_at
		FROM messages
		WHERE application_id = ?
		ORDER BY created_at ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, query, applicationID)
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ApplicationID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan message")
		}
		messages = append(messages, &m)
	}
	return messages, errors.Wrap(rows.Err(), "iterate messages")
}
