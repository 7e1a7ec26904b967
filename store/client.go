package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gigapi/gigapi-zoomview/core"
	_ "github.com/marcboeker/go-duckdb/v2"
)

// Client owns the DuckDB pool. Every logical operation checks out its own connection.
type Client struct {
	Path     string
	MaxConns int
	DB       *sql.DB
}

// NewClient creates a new Client. An empty path opens an in-memory database.
func NewClient(path string, maxConns int) *Client {
	if maxConns <= 0 {
		maxConns = 4
	}
	return &Client{
		Path:     path,
		MaxConns: maxConns,
	}
}

// Initialize opens the database and creates the schema if it is missing
func (c *Client) Initialize(ctx context.Context) error {
	db, err := sql.Open("duckdb", c.Path)
	if err != nil {
		return core.ErrStoreUnavailable.Wrap(err, fmt.Sprintf("failed to initialize DuckDB at %q", c.Path))
	}
	db.SetMaxOpenConns(c.MaxConns)
	db.SetMaxIdleConns(c.MaxConns)
	c.DB = db

	conn, err := c.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	for _, stmt := range schema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return core.ErrStoreUnavailable.Wrap(err, "create schema")
		}
	}
	core.Debugf(ctx, "DuckDB initialized at %q with %d connections", c.Path, c.MaxConns)
	return nil
}

// conn checks out one pooled connection; callers release it with defer conn.Close()
func (c *Client) conn(ctx context.Context) (*sql.Conn, error) {
	if c.DB == nil {
		return nil, core.ErrStoreUnavailable.New("client is not initialized")
	}
	conn, err := c.DB.Conn(ctx)
	if err != nil {
		return nil, core.ErrStoreUnavailable.Wrap(err, "acquire connection")
	}
	return conn, nil
}

// Ping checks that a connection can be acquired and used
func (c *Client) Ping(ctx context.Context) error {
	conn, err := c.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := conn.PingContext(ctx); err != nil {
		return core.ErrStoreUnavailable.Wrap(err, "ping")
	}
	return nil
}

// Metadata returns the series metadata view of the store
func (c *Client) Metadata() *Metadata {
	return &Metadata{c: c}
}

// Observations returns the raw observation view of the store
func (c *Client) Observations() *Observations {
	return &Observations{c: c}
}

// Catalog returns the materialized table registry
func (c *Client) Catalog() *Catalog {
	return &Catalog{c: c}
}

func (c *Client) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
