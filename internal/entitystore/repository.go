package entitystore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/nerrad567/gray-logic-entities/internal/entitystore/schema"
)

// Repository defines the interface for entity store persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Get retrieves an entry by unique ID.
	// Returns ErrEntityNotFound if the entry does not exist.
	Get(ctx context.Context, uniqueID string) (*Entry, error)

	// List retrieves all entries ordered by unique ID.
	List(ctx context.Context) ([]Entry, error)

	// ListByPlatform retrieves all entries of one platform.
	ListByPlatform(ctx context.Context, platform schema.Platform) ([]Entry, error)

	// Create inserts a new entry.
	// Returns ErrEntityExists if the unique ID is taken.
	Create(ctx context.Context, entry *Entry) error

	// Update replaces the data of an existing entry.
	// Returns ErrEntityNotFound if the entry does not exist.
	Update(ctx context.Context, entry *Entry) error

	// Delete removes an entry.
	// Returns ErrEntityNotFound if the entry does not exist.
	Delete(ctx context.Context, uniqueID string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open, migrated SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectEntries = `
	SELECT unique_id, platform, data, created_at, updated_at
	FROM entity_store`

// Get retrieves an entry by unique ID.
func (r *SQLiteRepository) Get(ctx context.Context, uniqueID string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, selectEntries+` WHERE unique_id = ?`, uniqueID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntityNotFound
		}
		return nil, fmt.Errorf("querying entity by unique_id: %w", err)
	}
	return entry, nil
}

// List retrieves all entries.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	return r.queryEntries(ctx, selectEntries+` ORDER BY unique_id`)
}

// ListByPlatform retrieves all entries of one platform.
func (r *SQLiteRepository) ListByPlatform(ctx context.Context, platform schema.Platform) ([]Entry, error) {
	return r.queryEntries(ctx, selectEntries+` WHERE platform = ? ORDER BY unique_id`, string(platform))
}

// Create inserts a new entry.
func (r *SQLiteRepository) Create(ctx context.Context, entry *Entry) error {
	dataJSON, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("marshalling data: %w", err)
	}

	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO entity_store (unique_id, platform, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		entry.UniqueID,
		string(entry.Platform),
		string(dataJSON),
		entry.CreatedAt.Format(time.RFC3339Nano),
		entry.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrEntityExists
		}
		return fmt.Errorf("inserting entity: %w", err)
	}
	return nil
}

// Update replaces the data of an existing entry.
func (r *SQLiteRepository) Update(ctx context.Context, entry *Entry) error {
	dataJSON, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("marshalling data: %w", err)
	}

	entry.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE entity_store SET platform = ?, data = ?, updated_at = ?
		WHERE unique_id = ?`,
		string(entry.Platform),
		string(dataJSON),
		entry.UpdatedAt.Format(time.RFC3339Nano),
		entry.UniqueID,
	)
	if err != nil {
		return fmt.Errorf("updating entity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrEntityNotFound
	}
	return nil
}

// Delete removes an entry.
func (r *SQLiteRepository) Delete(ctx context.Context, uniqueID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM entity_store WHERE unique_id = ?", uniqueID)
	if err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrEntityNotFound
	}
	return nil
}

func (r *SQLiteRepository) queryEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return entries, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(scanner rowScanner) (*Entry, error) {
	var e Entry
	var platform, dataJSON, createdAt, updatedAt string

	if err := scanner.Scan(&e.UniqueID, &platform, &dataJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.Platform = schema.Platform(platform)

	if err := json.Unmarshal([]byte(dataJSON), &e.Data); err != nil {
		return nil, fmt.Errorf("%w: %s: unmarshalling data: %w", ErrCorruptEntry, e.UniqueID, err)
	}

	var err error
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &e, nil
}

// isUniqueConstraintError checks whether err is a SQLite unique or primary
// key violation.
func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
