package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"vectorquant/internal/domain"
	"vectorquant/internal/storage"
)

// AlertStore implements storage.AlertStore using PostgreSQL.
type AlertStore struct {
	pool *Pool
}

// NewAlertStore creates a new AlertStore.
func NewAlertStore(pool *Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlertStore = (*AlertStore)(nil)

const insertAlertSQL = `
	INSERT INTO alerts (
		alert_id, alert_type, message, severity, timestamp, resolved
	) VALUES ($1, $2, $3, $4, $5, $6)
`

const selectAlertSQL = `
	SELECT alert_id::text, alert_type, message, severity, timestamp, resolved
	FROM alerts
`

// Insert adds an alert. Returns ErrDuplicateKey if alert_id exists.
func (s *AlertStore) Insert(ctx context.Context, a *domain.AlertRecord) (err error) {
	defer track("insert_alert")(&err)

	id, err := prepareAlert(a)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, insertAlertSQL,
		id,
		a.AlertType,
		a.Message,
		a.Severity,
		timestampOrNow(a.Timestamp),
		a.Resolved,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// InsertBulk adds multiple alerts in one transaction. Fails entire batch on any duplicate.
func (s *AlertStore) InsertBulk(ctx context.Context, alerts []*domain.AlertRecord) (err error) {
	if len(alerts) == 0 {
		return nil
	}
	defer track("insert_alerts")(&err)

	ids := make([]uuid.UUID, len(alerts))
	for i, a := range alerts {
		if ids[i], err = prepareAlert(a); err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for i, a := range alerts {
		batch.Queue(insertAlertSQL,
			ids[i], a.AlertType, a.Message, a.Severity, timestampOrNow(a.Timestamp), a.Resolved,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range alerts {
		if _, err = br.Exec(); err != nil {
			br.Close()
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert alert batch: %w", err)
		}
	}
	if err = br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByID retrieves an alert by its ID. Returns ErrNotFound if not exists.
func (s *AlertStore) GetByID(ctx context.Context, alertID string) (a *domain.AlertRecord, err error) {
	defer track("get_alert")(&err)

	id, parseErr := uuid.Parse(alertID)
	if parseErr != nil {
		return nil, storage.ErrNotFound
	}

	a, err = scanAlert(s.pool.QueryRow(ctx, selectAlertSQL+` WHERE alert_id = $1`, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get alert by id: %w", err)
	}
	return a, nil
}

// GetRecent retrieves at most limit alerts, newest first.
func (s *AlertStore) GetRecent(ctx context.Context, limit int) (out []*domain.AlertRecord, err error) {
	defer track("recent_alerts")(&err)

	rows, err := s.pool.Query(ctx, selectAlertSQL+` ORDER BY timestamp DESC LIMIT $1`,
		storage.ClampLimit(limit, storage.MaxRows))
	if err != nil {
		return nil, fmt.Errorf("query recent alerts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan alert row: %w", scanErr)
		}
		out = append(out, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rows: %w", err)
	}
	return out, nil
}

// Resolve marks an alert as resolved. Returns ErrNotFound if not exists.
func (s *AlertStore) Resolve(ctx context.Context, alertID string) (err error) {
	defer track("resolve_alert")(&err)

	id, parseErr := uuid.Parse(alertID)
	if parseErr != nil {
		return storage.ErrNotFound
	}

	tag, err := s.pool.Exec(ctx, `UPDATE alerts SET resolved = TRUE WHERE alert_id = $1`, id)
	if err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// prepareAlert validates a, assigns a missing ID and returns it parsed.
func prepareAlert(a *domain.AlertRecord) (uuid.UUID, error) {
	if a == nil || a.AlertType == "" {
		return uuid.Nil, storage.ErrInvalidInput
	}
	storage.AssignAlertID(a)

	id, err := uuid.Parse(a.AlertID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: alert_id %q is not a uuid", storage.ErrInvalidInput, a.AlertID)
	}
	return id, nil
}

// scanAlert scans a single alert row.
func scanAlert(row pgx.Row) (*domain.AlertRecord, error) {
	var a domain.AlertRecord
	err := row.Scan(
		&a.AlertID,
		&a.AlertType,
		&a.Message,
		&a.Severity,
		&a.Timestamp,
		&a.Resolved,
	)
	if err != nil {
		return nil, err
	}
	a.Timestamp = a.Timestamp.UTC()
	return &a, nil
}

func timestampOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
