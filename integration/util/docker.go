//go:build integration
// +build integration

package util

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Postgres is a throwaway PostgreSQL container.
type Postgres struct {
	Name string
	Addr string // host:port published on the loopback interface
}

// StartPostgres runs image detached with its port published on a random
// loopback port and returns a teardown func.
func StartPostgres(ctx context.Context, name, image string) (*Postgres, func() error, error) {
	run := exec.CommandContext(ctx, "docker", "run", "-d", "--rm", "--name", name,
		"-e", "POSTGRES_PASSWORD=postgres", "-p", "127.0.0.1::5432", image)
	if out, err := run.CombinedOutput(); err != nil {
		return nil, nil, fmt.Errorf("docker run: %w\n%s", err, string(out))
	}
	teardown := func() error {
		rmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return exec.CommandContext(rmCtx, "docker", "rm", "-f", name).Run()
	}

	out, err := exec.CommandContext(ctx, "docker", "port", name, "5432/tcp").Output()
	if err != nil {
		_ = teardown()
		return nil, nil, fmt.Errorf("docker port: %w", err)
	}
	addr := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	return &Postgres{Name: name, Addr: addr}, teardown, nil
}

// DSN returns a connection string for the default database.
func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://postgres:postgres@%s/postgres?sslmode=disable", p.Addr)
}

// WaitReady polls pg_isready inside the container until it returns 0.
func (p *Postgres) WaitReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ready := exec.CommandContext(ctx, "docker", "exec", p.Name, "pg_isready", "-U", "postgres", "-h", "127.0.0.1")
		if err := ready.Run(); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s did not become ready", p.Name)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

// Build compiles the schemaclone binary into dir and returns its path.
func Build(ctx context.Context, dir string) (string, error) {
	bin := dir + "/schemaclone"
	cmd := exec.CommandContext(ctx, "go", "build", "-o", bin, "../cmd/schemaclone")
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("go build: %w\n%s", err, string(out))
	}
	return bin, nil
}
