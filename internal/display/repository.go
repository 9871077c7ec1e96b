package display

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ledfx/ledfx-core/internal/infrastructure/config"
)

// Repository persists displays.
type Repository interface {
	List(ctx context.Context) ([]config.DisplayEntry, error)

	// GetByID returns ErrDisplayNotFound for an unknown id.
	GetByID(ctx context.Context, id string) (*config.DisplayEntry, error)

	// Create returns ErrDisplayExists on an id clash.
	Create(ctx context.Context, entry config.DisplayEntry) error

	// Update and Delete return ErrDisplayNotFound for an unknown id.
	Update(ctx context.Context, entry config.DisplayEntry) error
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository on the displays table.
// Configuration and segments are stored as JSON; the applied effect is
// not persisted.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a display by id.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*config.DisplayEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, config, segments, is_device FROM displays WHERE id = ?`, id)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisplayNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying display by id: %w", err)
	}
	return e, nil
}

// List retrieves all stored displays ordered by id.
func (r *SQLiteRepository) List(ctx context.Context) ([]config.DisplayEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, config, segments, is_device FROM displays ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying displays: %w", err)
	}
	defer rows.Close()

	var entries []config.DisplayEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning display: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating displays: %w", err)
	}
	return entries, nil
}

// Create inserts a new display.
func (r *SQLiteRepository) Create(ctx context.Context, entry config.DisplayEntry) error {
	cfgJSON, segsJSON, err := marshalEntry(entry)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO displays (id, config, segments, is_device) VALUES (?, ?, ?, ?)`,
		entry.ID, cfgJSON, segsJSON, entry.IsDevice)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDisplayExists
		}
		return fmt.Errorf("inserting display: %w", err)
	}
	return nil
}

// Update replaces a display's configuration and segments.
func (r *SQLiteRepository) Update(ctx context.Context, entry config.DisplayEntry) error {
	cfgJSON, segsJSON, err := marshalEntry(entry)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE displays
		SET config = ?, segments = ?, is_device = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`,
		cfgJSON, segsJSON, entry.IsDevice, entry.ID)
	if err != nil {
		return fmt.Errorf("updating display: %w", err)
	}
	return requireOneRow(res)
}

// Delete removes a display by id.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM displays WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting display: %w", err)
	}
	return requireOneRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*config.DisplayEntry, error) {
	var (
		e                 config.DisplayEntry
		cfgJSON, segsJSON string
	)
	if err := row.Scan(&e.ID, &cfgJSON, &segsJSON, &e.IsDevice); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cfgJSON), &e.Config); err != nil {
		return nil, fmt.Errorf("unmarshalling config for %s: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(segsJSON), &e.Segments); err != nil {
		return nil, fmt.Errorf("unmarshalling segments for %s: %w", e.ID, err)
	}
	return &e, nil
}

func marshalEntry(entry config.DisplayEntry) (cfgJSON, segsJSON string, err error) {
	c, err := json.Marshal(entry.Config)
	if err != nil {
		return "", "", fmt.Errorf("marshalling config: %w", err)
	}
	segs := entry.Segments
	if segs == nil {
		segs = []config.SegmentEntry{}
	}
	s, err := json.Marshal(segs)
	if err != nil {
		return "", "", fmt.Errorf("marshalling segments: %w", err)
	}
	return string(c), string(s), nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDisplayNotFound
	}
	return nil
}
