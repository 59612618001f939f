package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-marshall/pkg/marshall"
)

// Schema creates the item table.
const Schema = `
CREATE TABLE IF NOT EXISTS item (
	id         UUID PRIMARY KEY,
	type_name  VARCHAR(255) NOT NULL,
	document   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	deleted_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS item_type_name_idx ON item (type_name) WHERE deleted_at IS NULL;`

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements marshall.Repository using PostgreSQL. Items are
// stored as their XML document.
type Repository struct {
	db    DBTX
	codec marshall.Codec
}

// New creates a new PostgreSQL repository
func New(db DBTX, codec marshall.Codec) marshall.Repository {
	return &Repository{db: db, codec: codec}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool, codec marshall.Codec) marshall.Repository {
	return &Repository{db: pool, codec: codec}
}

// Migrate creates the item table if it does not exist.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create item table: %w", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "item") {
				return fmt.Errorf("item already exists")
			}
			return fmt.Errorf("duplicate entry")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return marshall.ErrItemNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (r *Repository) CreateItem(ctx context.Context, item *marshall.Item) error {
	document, err := r.codec.EncodeItem(item)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO item (id, type_name, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = r.db.Exec(ctx, query,
		item.ID, item.TypeName, string(document), item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create item", err)
	}
	return nil
}

func (r *Repository) GetItem(ctx context.Context, id uuid.UUID) (*marshall.Item, error) {
	query := `
		SELECT id, type_name, document, created_at, updated_at
		FROM item WHERE id = $1 AND deleted_at IS NULL`

	item, err := r.scanItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("get item", err)
	}
	return item, nil
}

func (r *Repository) UpdateItem(ctx context.Context, item *marshall.Item) error {
	document, err := r.codec.EncodeItem(item)
	if err != nil {
		return err
	}

	query := `
		UPDATE item SET document = $2, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.db.Exec(ctx, query, item.ID, string(document), item.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update item", err)
	}
	if tag.RowsAffected() == 0 {
		return marshall.ErrItemNotFound
	}
	return nil
}

func (r *Repository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	// Soft delete
	query := `UPDATE item SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.db.Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return r.handlePostgresError("delete item", err)
	}
	if tag.RowsAffected() == 0 {
		return marshall.ErrItemNotFound
	}
	return nil
}

func (r *Repository) ListItems(ctx context.Context, typeName string) ([]*marshall.Item, error) {
	query := `
		SELECT id, type_name, document, created_at, updated_at
		FROM item WHERE deleted_at IS NULL AND ($1 = '' OR type_name = $1)
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, typeName)
	if err != nil {
		return nil, r.handlePostgresError("list items", err)
	}
	defer rows.Close()

	var items []*marshall.Item
	for rows.Next() {
		item, err := r.scanItem(rows)
		if err != nil {
			return nil, r.handlePostgresError("list items", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list items", err)
	}
	return items, nil
}

func (r *Repository) scanItem(row pgx.Row) (*marshall.Item, error) {
	var (
		id                   uuid.UUID
		typeName, document   string
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&id, &typeName, &document, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	item, err := r.codec.DecodeItem(typeName, []byte(document))
	if err != nil {
		return nil, &marshall.ItemError{ItemID: id, Op: "decode", Err: err}
	}
	item.ID = id
	item.CreatedAt = createdAt.UTC()
	item.UpdatedAt = updatedAt.UTC()
	return item, nil
}
