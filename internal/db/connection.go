// Package db provides warehouse connectivity checks for dbt targets that speak
// the PostgreSQL wire protocol. It builds connection strings from profile
// targets, pings the server and inspects the target schema.
package db

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riyasyash/dbt_rocket/internal/profiles"
)

var defaultPorts = map[string]int{
	"postgres": 5432,
	"redshift": 5439,
}

// Supported reports whether a target adapter type can be checked.
func Supported(adapter string) bool {
	_, ok := defaultPorts[adapter]
	return ok
}

// Connection wraps a pgx connection pool for a single target.
type Connection struct {
	Pool *pgxpool.Pool
}

// TargetURL builds a postgres:// URL for the target. The schema is applied
// as search_path so unqualified lookups resolve the way dbt's session does.
func TargetURL(t profiles.Target) (*url.URL, error) {
	port, ok := defaultPorts[t.Type]
	if !ok {
		return nil, fmt.Errorf("target %s: adapter %q is not supported for connection checks", t.Name, t.Type)
	}
	if t.Port != 0 {
		port = t.Port
	}
	host := t.Host
	if host == "" {
		host = "localhost"
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + t.DBName,
	}
	if t.User != "" {
		if t.Password != "" {
			u.User = url.UserPassword(t.User, t.Password)
		} else {
			u.User = url.User(t.User)
		}
	}

	q := url.Values{}
	if t.SSLMode != "" {
		q.Set("sslmode", t.SSLMode)
	}
	if t.Schema != "" {
		q.Set("search_path", t.Schema)
	}
	q.Set("application_name", "dbt_rocket")
	u.RawQuery = q.Encode()

	return u, nil
}

// MaskedDSN returns the target URL with the password redacted, for display.
func MaskedDSN(t profiles.Target) string {
	u, err := TargetURL(t)
	if err != nil {
		return fmt.Sprintf("%s://%s", t.Type, t.Host)
	}
	return u.Redacted()
}

// NewConnection opens a small pool against the target and pings it.
func NewConnection(ctx context.Context, t profiles.Target) (*Connection, error) {
	u, err := TargetURL(t)
	if err != nil {
		return nil, err
	}

	config, err := pgxpool.ParseConfig(u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	config.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", u.Redacted(), err)
	}

	return &Connection{Pool: pool}, nil
}

// Close gracefully closes the database connection pool.
func (c *Connection) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}
