package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ledfx/ledfx-core/internal/infrastructure/config"
)

// Repository persists devices added at runtime.
type Repository interface {
	// GetByID returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*config.DeviceEntry, error)

	// List returns every stored device ordered by id.
	List(ctx context.Context) ([]config.DeviceEntry, error)

	// Create returns ErrDeviceExists on an id clash.
	Create(ctx context.Context, entry config.DeviceEntry) error

	// Update returns ErrDeviceNotFound if the device does not exist.
	Update(ctx context.Context, entry config.DeviceEntry) error

	// Delete returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository on the devices table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a device by id.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*config.DeviceEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, type, config FROM devices WHERE id = ?`, id)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return entry, nil
}

// List retrieves all stored devices.
func (r *SQLiteRepository) List(ctx context.Context) ([]config.DeviceEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, type, config FROM devices ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var entries []config.DeviceEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return entries, nil
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, entry config.DeviceEntry) error {
	cfgJSON, err := json.Marshal(entry.Config)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO devices (id, type, config) VALUES (?, ?, ?)`,
		entry.ID, entry.Type, string(cfgJSON))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Update replaces a device's type and configuration.
func (r *SQLiteRepository) Update(ctx context.Context, entry config.DeviceEntry) error {
	cfgJSON, err := json.Marshal(entry.Config)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE devices
		SET type = ?, config = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`,
		entry.Type, string(cfgJSON), entry.ID)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	return requireOneRow(res)
}

// Delete removes a device by id.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return requireOneRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*config.DeviceEntry, error) {
	var (
		entry   config.DeviceEntry
		cfgJSON string
	)
	if err := row.Scan(&entry.ID, &entry.Type, &cfgJSON); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cfgJSON), &entry.Config); err != nil {
		return nil, fmt.Errorf("unmarshalling config for %s: %w", entry.ID, err)
	}
	return &entry, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}
