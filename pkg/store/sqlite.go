package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rmax-ai/restock/pkg/engine"
	"github.com/rmax-ai/restock/pkg/engine/forecast"
)

// Store manages the SQLite connection and schema. It implements
// engine.ItemStore.
type Store struct {
	db *sql.DB
}

var _ engine.ItemStore = (*Store)(nil)

// NewStore initializes the SQLite database connection.
// It enables WAL mode for concurrency and durability, and opens write
// transactions with BEGIN IMMEDIATE so read-modify-write updates serialize.
func NewStore(dbPath string) (*Store, error) {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	dsn := dbPath + sep + "_busy_timeout=5000&_txlock=immediate"

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the necessary tables if they don't exist.
func (s *Store) migrate() error {
	// The quantity history stays an opaque JSON blob on the item row.
	query := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		unit TEXT NOT NULL DEFAULT 'un',
		notes TEXT NOT NULL DEFAULT '',
		barcode TEXT NOT NULL DEFAULT '',
		current_quantity REAL NOT NULL DEFAULT 0,
		minimum_quantity REAL NOT NULL DEFAULT 1,
		acquisition_difficulty INTEGER NOT NULL DEFAULT 0,
		usage_rate REAL,
		usage_period TEXT NOT NULL DEFAULT 'daily',
		quantity_history TEXT NOT NULL DEFAULT '',
		notification_enabled INTEGER NOT NULL DEFAULT 0,
		phone_number TEXT NOT NULL DEFAULT '',
		last_alert_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_created_at ON items(created_at, id);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create items table: %w", err)
	}

	return nil
}

const itemColumns = `id, name, category, unit, notes, barcode, current_quantity, minimum_quantity,
	acquisition_difficulty, usage_rate, usage_period, quantity_history, notification_enabled,
	phone_number, last_alert_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (engine.Item, error) {
	var (
		item        engine.Item
		difficulty  int
		period      string
		usageRate   sql.NullFloat64
		notify      int
		lastAlertAt sql.NullString
		createdAt   string
		updatedAt   string
	)
	err := row.Scan(
		&item.ID, &item.Name, &item.Category, &item.Unit, &item.Notes, &item.Barcode,
		&item.CurrentQuantity, &item.MinimumQuantity, &difficulty, &usageRate, &period,
		&item.QuantityHistory, &notify, &item.PhoneNumber, &lastAlertAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return engine.Item{}, err
	}

	item.AcquisitionDifficulty = forecast.Difficulty(difficulty)
	item.UsagePeriod = forecast.Period(period)
	item.NotificationEnabled = notify != 0
	if usageRate.Valid {
		rate := usageRate.Float64
		item.UsageRate = &rate
	}
	if lastAlertAt.Valid {
		at, err := parseTime(lastAlertAt.String)
		if err != nil {
			return engine.Item{}, err
		}
		item.LastAlertAt = &at
	}
	if item.CreatedAt, err = parseTime(createdAt); err != nil {
		return engine.Item{}, err
	}
	if item.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return engine.Item{}, err
	}
	return item, nil
}

func itemArgs(item engine.Item) []any {
	var usageRate, lastAlertAt any
	if item.UsageRate != nil {
		usageRate = *item.UsageRate
	}
	if item.LastAlertAt != nil {
		lastAlertAt = formatTime(*item.LastAlertAt)
	}
	notify := 0
	if item.NotificationEnabled {
		notify = 1
	}
	return []any{
		item.ID, item.Name, item.Category, item.Unit, item.Notes, item.Barcode,
		item.CurrentQuantity, item.MinimumQuantity, int(item.AcquisitionDifficulty), usageRate,
		string(item.UsagePeriod), item.QuantityHistory, notify, item.PhoneNumber, lastAlertAt,
		formatTime(item.CreatedAt), formatTime(item.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// Get retrieves an item by ID.
func (s *Store) Get(ctx context.Context, id string) (engine.Item, error) {
	return getItem(ctx, s.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getItem(ctx context.Context, q queryer, id string) (engine.Item, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Item{}, engine.ErrItemNotFound
	}
	if err != nil {
		return engine.Item{}, fmt.Errorf("failed to read item: %w", err)
	}
	return item, nil
}

// List retrieves all items ordered by creation time.
func (s *Store) List(ctx context.Context) ([]engine.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items`)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := make([]engine.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	engine.SortItems(items)
	return items, nil
}

// Create inserts a new item.
func (s *Store) Create(ctx context.Context, item engine.Item) error {
	query := `INSERT INTO items (` + itemColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, query+` ON CONFLICT(id) DO NOTHING`, itemArgs(item)...)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check insert: %w", err)
	}
	if n == 0 {
		return engine.ErrItemExists
	}
	return nil
}

// Update applies fn to the stored item inside a write transaction.
func (s *Store) Update(ctx context.Context, id string, fn func(*engine.Item) error) (engine.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return engine.Item{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := getItem(ctx, tx, id)
	if err != nil {
		return engine.Item{}, err
	}

	if err := fn(&item); err != nil {
		return engine.Item{}, err
	}
	item.ID = id

	query := `
	UPDATE items SET
		name = ?, category = ?, unit = ?, notes = ?, barcode = ?,
		current_quantity = ?, minimum_quantity = ?, acquisition_difficulty = ?,
		usage_rate = ?, usage_period = ?, quantity_history = ?, notification_enabled = ?,
		phone_number = ?, last_alert_at = ?, created_at = ?, updated_at = ?
	WHERE id = ?`
	args := itemArgs(item)
	if _, err := tx.ExecContext(ctx, query, append(args[1:], id)...); err != nil {
		return engine.Item{}, fmt.Errorf("failed to update item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return engine.Item{}, fmt.Errorf("failed to commit update: %w", err)
	}
	return item, nil
}

// Delete removes an item.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete: %w", err)
	}
	if n == 0 {
		return engine.ErrItemNotFound
	}
	return nil
}
