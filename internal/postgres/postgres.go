package postgres

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
)

// DefaultPingTimeout bounds connect + query when the caller sets none.
const DefaultPingTimeout = 10 * time.Second

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ServerInfo is what a successful ping learns about the server.
type ServerInfo struct {
	Version  string
	Database string
}

// Probe runs the trivial probe query on an open connection.
func Probe(ctx context.Context, q queryer) (ServerInfo, error) {
	var info ServerInfo
	if err := q.QueryRow(ctx, `SELECT current_setting('server_version'), current_database()`).Scan(&info.Version, &info.Database); err != nil {
		return ServerInfo{}, fmt.Errorf("probe query: %w", err)
	}
	return info, nil
}

// Ping opens a single connection to dsn, runs Probe and closes it.
func Ping(ctx context.Context, dsn string, timeout time.Duration) (ServerInfo, error) {
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return ServerInfo{}, fmt.Errorf("parse connection string: %w", err)
	}
	cfg.ConnectTimeout = timeout

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return ServerInfo{}, fmt.Errorf("connect %s: %w", Describe(dsn), err)
	}
	defer func() { _ = conn.Close(context.Background()) }()
	return Probe(ctx, conn)
}

// Describe renders dsn as user@host:port/db without the password.
// Unparseable strings are reported as such rather than echoed.
func Describe(dsn string) string {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return "(invalid connection string)"
	}
	return fmt.Sprintf("%s@%s/%s", cfg.User, net.JoinHostPort(cfg.Host, strconv.Itoa(int(cfg.Port))), cfg.Database)
}
