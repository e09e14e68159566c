package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/delvicier/fixagent/internal/store"
	"github.com/delvicier/fixagent/pkg/models"
	"github.com/google/uuid"
)

// ScanRepository records discovery sessions.
type ScanRepository interface {
	// Get returns a single scan session by ID.
	Get(ctx context.Context, id string) (*models.ScanSession, error)

	// List returns a paginated list of sessions ordered by start time.
	List(ctx context.Context, opts ListOptions) (*ListResult[models.ScanSession], error)

	// Create inserts a new session. If scan.ID is empty, a UUID is generated.
	Create(ctx context.Context, scan *models.ScanSession) error

	// Finish stores the terminal state of a session.
	Finish(ctx context.Context, scan *models.ScanSession) error
}

// Compile-time interface guard.
var _ ScanRepository = (*SQLiteScanRepository)(nil)

// SQLiteScanRepository implements ScanRepository on the recon_scans table.
type SQLiteScanRepository struct {
	db *sql.DB
}

// NewSQLiteScanRepository creates a ScanRepository and runs the
// recon_scans migrations.
func NewSQLiteScanRepository(ctx context.Context, m store.Migrator) (*SQLiteScanRepository, error) {
	if err := m.Migrate(ctx, "recon", scanMigrations); err != nil {
		return nil, fmt.Errorf("recon scan migrations: %w", err)
	}
	return &SQLiteScanRepository{db: m.DB()}, nil
}

const scanColumns = `id, mode, status, found_url, total, probed, started_at, ended_at, error_msg`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.ScanSession, error) {
	var s models.ScanSession
	var endedAt sql.NullString
	err := row.Scan(&s.ID, &s.Mode, &s.Status, &s.FoundURL, &s.Total, &s.Probed,
		&s.StartedAt, &endedAt, &s.Error)
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		s.EndedAt = endedAt.String
	}
	return &s, nil
}

func (r *SQLiteScanRepository) Get(ctx context.Context, id string) (*models.ScanSession, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+scanColumns+` FROM recon_scans WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get scan %q: %w", id, err)
	}
	return s, nil
}

func (r *SQLiteScanRepository) List(ctx context.Context, opts ListOptions) (*ListResult[models.ScanSession], error) {
	opts = normalizeListOptions(opts)

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recon_scans`,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("count scans: %w", err)
	}

	orderDir := "DESC"
	if opts.SortOrder == "asc" {
		orderDir = "ASC"
	}

	//nolint:gosec // orderDir is validated above
	query := fmt.Sprintf(
		`SELECT %s FROM recon_scans ORDER BY started_at %s, rowid %s LIMIT ? OFFSET ?`,
		scanColumns, orderDir, orderDir)

	rows, err := r.db.QueryContext(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	scans := []models.ScanSession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		scans = append(scans, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}

	return &ListResult[models.ScanSession]{Items: scans, Total: total}, nil
}

func (r *SQLiteScanRepository) Create(ctx context.Context, scan *models.ScanSession) error {
	if scan.ID == "" {
		scan.ID = uuid.New().String()
	}
	if scan.StartedAt == "" {
		scan.StartedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if scan.Status == "" {
		scan.Status = "running"
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recon_scans (id, mode, status, found_url, total, probed, started_at, error_msg)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		scan.ID, scan.Mode, scan.Status, scan.FoundURL, scan.Total, scan.Probed,
		scan.StartedAt, scan.Error,
	)
	if err != nil {
		return fmt.Errorf("create scan: %w", err)
	}
	return nil
}

func (r *SQLiteScanRepository) Finish(ctx context.Context, scan *models.ScanSession) error {
	if scan.EndedAt == "" {
		scan.EndedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE recon_scans
		SET status = ?, found_url = ?, probed = ?, ended_at = ?, error_msg = ?
		WHERE id = ?`,
		scan.Status, scan.FoundURL, scan.Probed, scan.EndedAt, scan.Error, scan.ID,
	)
	if err != nil {
		return fmt.Errorf("finish scan %q: %w", scan.ID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var scanMigrations = []store.Migration{
	{
		Version:     1,
		Description: "create recon_scans table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE recon_scans (
					id         TEXT PRIMARY KEY,
					mode       TEXT NOT NULL,
					status     TEXT NOT NULL,
					found_url  TEXT NOT NULL DEFAULT '',
					total      INTEGER NOT NULL DEFAULT 0,
					probed     INTEGER NOT NULL DEFAULT 0,
					started_at TEXT NOT NULL,
					ended_at   TEXT,
					error_msg  TEXT NOT NULL DEFAULT ''
				)`)
			return err
		},
	},
}
