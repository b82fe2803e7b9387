package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-fulfillment/pkg/config"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Client owns the pooled GORM handle shared by every repository.
type Client struct {
	conn *gorm.DB
}

// Pinger is the health check surface handlers depend on.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New opens the configured database, applies pool limits and routes slow
// statements to logg. A nil logger keeps GORM silent.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}

	conn, err := gorm.Open(open(cfg), &gorm.Config{
		Logger:                 newQueryLogger(logg, cfg.SlowQuery),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	pool, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("sql handle: %w", err)
	}
	if n := cfg.MaxOpenConns; n > 0 {
		pool.SetMaxOpenConns(n)
	}
	if n := cfg.MaxIdleConns; n > 0 {
		pool.SetMaxIdleConns(n)
	}
	if d := cfg.ConnMaxLifetime; d > 0 {
		pool.SetConnMaxLifetime(d)
	}
	if d := cfg.ConnMaxIdleTime; d > 0 {
		pool.SetConnMaxIdleTime(d)
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"driver":         conn.Dialector.Name(),
			"max_open_conns": cfg.MaxOpenConns,
		}), "database ready")
	}
	return &Client{conn: conn}, nil
}

func open(cfg config.DBConfig) gorm.Dialector {
	if cfg.IsSQLite() {
		return sqlite.Open(cfg.DSN)
	}
	// Simple protocol keeps pgbouncer in transaction mode happy.
	return postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true})
}

// NewFromConn adopts a handle opened elsewhere, e.g. by dbtest.
func NewFromConn(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

func (c *Client) Ping(ctx context.Context) error {
	pool, err := c.conn.DB()
	if err != nil {
		return err
	}
	return pool.PingContext(ctx)
}

func (c *Client) Close() error {
	pool, err := c.conn.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}

// WithTx runs fn in a transaction. Returned errors and panics roll back; a
// panic is re-raised after the rollback.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	tx := c.conn.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		tx.Rollback()
		if r := recover(); r != nil {
			panic(r)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit().Error; err != nil {
		return err
	}
	committed = true
	return nil
}
