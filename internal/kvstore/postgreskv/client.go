// Package postgreskv implements kvstore.Store on a single postgres table
// with (hkey, key) as the primary key. The schema is applied on startup
// from the embedded migrations.
package postgreskv

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"imgshare-backend/internal/kvstore"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Client struct {
	db *sqlx.DB
}

var _ kvstore.Store = (*Client)(nil)

// New opens a connection to databaseURL and runs pending migrations.
func New(databaseURL string) (*Client, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate kv schema: %w", err)
	}

	return &Client{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (c *Client) Get(ctx context.Context, hkey, key string) (string, error) {
	var value string
	err := c.db.GetContext(ctx, &value,
		"SELECT value FROM kv WHERE hkey = $1 AND key = $2", hkey, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", kvstore.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kv select %s/%s: %w", hkey, key, err)
	}
	return value, nil
}

func (c *Client) Set(ctx context.Context, hkey, key, value string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO kv (hkey, key, value) VALUES ($1, $2, $3)
		ON CONFLICT (hkey, key) DO UPDATE SET value = EXCLUDED.value`,
		hkey, key, value)
	if err != nil {
		return fmt.Errorf("kv upsert %s/%s: %w", hkey, key, err)
	}
	return nil
}

func (c *Client) GetAll(ctx context.Context, hkey string) (map[string]string, error) {
	rows, err := c.db.QueryxContext(ctx,
		"SELECT key, value FROM kv WHERE hkey = $1", hkey)
	if err != nil {
		return nil, fmt.Errorf("kv select all %s: %w", hkey, err)
	}
	defer rows.Close()

	all := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("kv scan %s: %w", hkey, err)
		}
		all[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("kv iterate %s: %w", hkey, err)
	}
	return all, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}
