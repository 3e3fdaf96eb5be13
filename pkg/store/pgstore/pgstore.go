// Copyright 2025 Certen Protocol
//
// Package pgstore is the Postgres-backed store.EscrowStore: connection
// pooling, health checks, and embedded-migration support, in the same shape
// as the rest of the stack's database client.
package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/escrow-core/pkg/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Client is a Postgres-backed store.EscrowStore.
type Client struct {
	db     *sql.DB
	logger *log.Logger

	maxOpenConns int
	maxIdleConns int
	connMaxIdle  time.Duration
	connMaxLife  time.Duration
}

// ClientOption is a functional option for configuring the client.
type ClientOption func(*Client)

// WithLogger sets a custom logger for the client.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithPool overrides the connection pool sizing.
func WithPool(maxOpen, maxIdle int, maxIdleTime, maxLifetime time.Duration) ClientOption {
	return func(c *Client) {
		c.maxOpenConns = maxOpen
		c.maxIdleConns = maxIdle
		c.connMaxIdle = maxIdleTime
		c.connMaxLife = maxLifetime
	}
}

// NewClient opens a pooled connection to databaseURL and verifies it with a
// ping. Callers should follow up with MigrateUp before first use.
func NewClient(databaseURL string, opts ...ClientOption) (*Client, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("pgstore: database URL cannot be empty")
	}

	c := &Client{
		logger:       log.New(log.Writer(), "[PGStore] ", log.LstdFlags),
		maxOpenConns: 25,
		maxIdleConns: 5,
		connMaxIdle:  5 * time.Minute,
		connMaxLife:  time.Hour,
	}
	for _, opt := range opts {
		opt(c)
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgstore: open: %w", err)
	}
	db.SetMaxOpenConns(c.maxOpenConns)
	db.SetMaxIdleConns(c.maxIdleConns)
	db.SetConnMaxIdleTime(c.connMaxIdle)
	db.SetConnMaxLifetime(c.connMaxLife)
	c.db = db

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}

	c.logger.Printf("connected to database (max_conns=%d, max_idle=%d)", c.maxOpenConns, c.maxIdleConns)
	return c, nil
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// Ping verifies the database connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

var _ store.EscrowStore = (*Client)(nil)

func (c *Client) SaveEscrow(ctx context.Context, rec store.EscrowRecord) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO escrows (address, immutables_hash, status, locked_tokens, safety_deposit_balance, deployed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (address) DO UPDATE SET
			immutables_hash = EXCLUDED.immutables_hash,
			status = EXCLUDED.status,
			locked_tokens = EXCLUDED.locked_tokens,
			safety_deposit_balance = EXCLUDED.safety_deposit_balance,
			updated_at = now()`,
		rec.Address.Bytes(), rec.ImmutablesHash.Bytes(), rec.Status, rec.LockedTokens, rec.SafetyDepositBalance, rec.DeployedAt)
	if err != nil {
		return fmt.Errorf("pgstore: save escrow: %w", err)
	}
	return nil
}

func (c *Client) GetEscrow(ctx context.Context, address common.Address) (store.EscrowRecord, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT address, immutables_hash, status, locked_tokens, safety_deposit_balance, deployed_at, updated_at
		FROM escrows WHERE address = $1`, address.Bytes())

	var rec store.EscrowRecord
	var addrBytes, hashBytes []byte
	if err := row.Scan(&addrBytes, &hashBytes, &rec.Status, &rec.LockedTokens, &rec.SafetyDepositBalance, &rec.DeployedAt, &rec.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return store.EscrowRecord{}, store.ErrNotFound
		}
		return store.EscrowRecord{}, fmt.Errorf("pgstore: get escrow: %w", err)
	}
	rec.Address = common.BytesToAddress(addrBytes)
	rec.ImmutablesHash = common.BytesToHash(hashBytes)
	return rec, nil
}

func (c *Client) SaveFill(ctx context.Context, rec store.FillRecord) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO fills (order_hash, merkle_root, parts_count, validated_index, remaining_amount, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (order_hash) DO UPDATE SET
			merkle_root = EXCLUDED.merkle_root,
			validated_index = EXCLUDED.validated_index,
			remaining_amount = EXCLUDED.remaining_amount,
			updated_at = now()`,
		rec.OrderHash.Bytes(), rec.MerkleRoot.Bytes(), rec.PartsCount, rec.ValidatedIndex, rec.RemainingAmount)
	if err != nil {
		return fmt.Errorf("pgstore: save fill: %w", err)
	}
	return nil
}

func (c *Client) GetFill(ctx context.Context, orderHash common.Hash) (store.FillRecord, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT order_hash, merkle_root, parts_count, validated_index, remaining_amount, updated_at
		FROM fills WHERE order_hash = $1`, orderHash.Bytes())

	var rec store.FillRecord
	var orderBytes, rootBytes []byte
	if err := row.Scan(&orderBytes, &rootBytes, &rec.PartsCount, &rec.ValidatedIndex, &rec.RemainingAmount, &rec.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return store.FillRecord{}, store.ErrNotFound
		}
		return store.FillRecord{}, fmt.Errorf("pgstore: get fill: %w", err)
	}
	rec.OrderHash = common.BytesToHash(orderBytes)
	rec.MerkleRoot = common.BytesToHash(rootBytes)
	return rec, nil
}

// Migration is one embedded schema migration.
type Migration struct {
	Version string
	SQL     string
}

// MigrateUp applies all pending embedded migrations, tracked in
// schema_migrations.
func (c *Client) MigrateUp(ctx context.Context) error {
	migrations, err := c.readMigrations()
	if err != nil {
		return fmt.Errorf("pgstore: read migrations: %w", err)
	}

	applied, err := c.appliedMigrations(ctx)
	if err != nil {
		if !strings.Contains(err.Error(), "does not exist") {
			return fmt.Errorf("pgstore: applied migrations: %w", err)
		}
		applied = make(map[string]bool)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		c.logger.Printf("applying migration %s", m.Version)
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("pgstore: begin migration tx: %w", err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("pgstore: apply migration %s: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("pgstore: commit migration %s: %w", m.Version, err)
		}
	}
	return nil
}

func (c *Client) readMigrations() ([]Migration, error) {
	var migrations []Migration
	err := fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}
		content, err := migrationsFS.ReadFile(path)
		if err != nil {
			return err
		}
		migrations = append(migrations, Migration{
			Version: strings.TrimSuffix(d.Name(), ".sql"),
			SQL:     string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

func (c *Client) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
