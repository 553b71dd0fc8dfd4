// Package probe checks connectivity of a backend over three independent
// channels: the public key, the privileged key and the direct database link.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vbp1/schemaclone/internal/config"
	"github.com/vbp1/schemaclone/internal/postgres"
	"github.com/vbp1/schemaclone/internal/remote"
)

// Options tunes which backend objects the checks touch.
type Options struct {
	ReferenceTable string // table read by the existence query
	SQLFunction    string // RPC executing one SQL statement
	ProbeFunction  string // remote function testing a direct link
	LocalDirect    bool   // dial the direct link from this process instead of the remote function
	PingTimeout    time.Duration
}

// DefaultOptions returns the stock probe targets.
func DefaultOptions() Options {
	return Options{
		ReferenceTable: "profiles",
		SQLFunction:    "exec_sql",
		ProbeFunction:  "test-db-connection",
		PingTimeout:    postgres.DefaultPingTimeout,
	}
}

// Probe holds the six channel statuses and runs the checks.
// Checks are independent; calling one while it is already testing starts a
// new attempt and only the latest attempt's result is kept.
type Probe struct {
	client *remote.Client
	opts   Options
	ping   func(ctx context.Context, dsn string, timeout time.Duration) (postgres.ServerInfo, error)

	mu     sync.Mutex
	status map[key]ChannelStatus
	gen    map[key]uint64
}

// New creates a Probe with every channel idle.
func New(client *remote.Client, opts Options) *Probe {
	def := DefaultOptions()
	if opts.ReferenceTable == "" {
		opts.ReferenceTable = def.ReferenceTable
	}
	if opts.SQLFunction == "" {
		opts.SQLFunction = def.SQLFunction
	}
	if opts.ProbeFunction == "" {
		opts.ProbeFunction = def.ProbeFunction
	}
	p := &Probe{client: client, opts: opts, ping: postgres.Ping}
	p.Reset()
	return p
}

// Reset puts every channel of both sides back to idle.
func (p *Probe) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = map[key]ChannelStatus{}
	if p.gen == nil {
		p.gen = map[key]uint64{}
	}
	for _, side := range []config.Side{config.Source, config.Destination} {
		for _, ch := range Channels {
			p.status[key{side, ch}] = ChannelStatus{State: Idle}
			p.gen[key{side, ch}]++
		}
	}
}

// Status returns the current status of one channel.
func (p *Probe) Status(side config.Side, ch Channel) ChannelStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status[key{side, ch}]
}

func (p *Probe) begin(k key) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, _ := p.status[k].transition(Testing, "")
	p.status[k] = st
	p.gen[k]++
	return p.gen[k]
}

func (p *Probe) finish(k key, gen uint64, err error) ChannelStatus {
	to, msg := Connected, ""
	if err != nil {
		to, msg = Failed, err.Error()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen[k] != gen {
		slog.Debug("probe: dropping superseded result", "side", k.side, "channel", k.channel)
		return ChannelStatus{State: to, Error: msg}
	}
	st, terr := p.status[k].transition(to, msg)
	if terr != nil {
		slog.Warn("probe: status transition rejected", "side", k.side, "channel", k.channel, "err", terr)
		return p.status[k]
	}
	p.status[k] = st
	slog.Info("probe finished", "side", k.side, "channel", k.channel, "state", st.State, "err", st.Error)
	return st
}

// Check dispatches to the check for ch.
func (p *Probe) Check(ctx context.Context, side config.Side, ch Channel, cfg config.ConnectionConfig) ChannelStatus {
	switch ch {
	case Public:
		return p.CheckPublic(ctx, side, cfg)
	case Privileged:
		return p.CheckPrivileged(ctx, side, cfg)
	default:
		return p.CheckDirect(ctx, side, cfg)
	}
}

// CheckPublic runs a zero-row existence query with the public key.
func (p *Probe) CheckPublic(ctx context.Context, side config.Side, cfg config.ConnectionConfig) ChannelStatus {
	k := key{side, Public}
	gen := p.begin(k)
	if strings.TrimSpace(cfg.BaseURL) == "" || strings.TrimSpace(cfg.PublicKey) == "" {
		return p.finish(k, gen, errors.New("base URL and public key are required"))
	}
	return p.finish(k, gen, p.tableRead(ctx, cfg.BaseURL, cfg.PublicKey))
}

// CheckPrivileged runs one SQL statement through the RPC endpoint, falling
// back to the table read when the backend does not expose that RPC.
func (p *Probe) CheckPrivileged(ctx context.Context, side config.Side, cfg config.ConnectionConfig) ChannelStatus {
	k := key{side, Privileged}
	gen := p.begin(k)
	if strings.TrimSpace(cfg.BaseURL) == "" || strings.TrimSpace(cfg.PrivilegedKey) == "" {
		return p.finish(k, gen, errors.New("base URL and privileged key are required"))
	}
	rpcErr := p.execSQL(ctx, cfg.BaseURL, cfg.PrivilegedKey)
	if rpcErr == nil {
		return p.finish(k, gen, nil)
	}
	slog.Info("probe: sql rpc unavailable, trying table read", "side", side, "err", rpcErr)
	readErr := p.tableRead(ctx, cfg.BaseURL, cfg.PrivilegedKey)
	if readErr == nil {
		return p.finish(k, gen, nil)
	}
	return p.finish(k, gen, fmt.Errorf("sql rpc: %v; table read: %v", rpcErr, readErr))
}

type probeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// CheckDirect verifies the direct link. By default the remote probe
// function dials it on our behalf; with Options.LocalDirect this process
// dials it over pgx.
func (p *Probe) CheckDirect(ctx context.Context, side config.Side, cfg config.ConnectionConfig) ChannelStatus {
	k := key{side, Direct}
	gen := p.begin(k)
	link := strings.TrimSpace(cfg.DirectLink)
	if link == "" {
		return p.finish(k, gen, errors.New("direct link is required"))
	}
	if p.opts.LocalDirect {
		info, err := p.ping(ctx, link, p.opts.PingTimeout)
		if err == nil {
			slog.Info("probe: direct link reachable", "side", side, "target", postgres.Describe(link), "server_version", info.Version)
		}
		return p.finish(k, gen, err)
	}
	if !cfg.HasAPIAccess() {
		return p.finish(k, gen, errors.New("base URL and privileged key are required to reach the probe service"))
	}

	target := strings.TrimRight(cfg.BaseURL, "/") + "/functions/v1/" + p.opts.ProbeFunction
	resp, err := p.client.Invoke(ctx, []string{target}, remote.KeyAuth(cfg.PrivilegedKey), map[string]string{"directLink": link})
	if err != nil {
		return p.finish(k, gen, err)
	}
	var out probeResponse
	if err := resp.Decode(&out); err != nil {
		return p.finish(k, gen, fmt.Errorf("decode probe response: %w", err))
	}
	if !out.Success {
		if out.Error == "" {
			out.Error = "direct connection test failed"
		}
		return p.finish(k, gen, errors.New(out.Error))
	}
	return p.finish(k, gen, nil)
}

func (p *Probe) tableRead(ctx context.Context, baseURL, apiKey string) error {
	u := fmt.Sprintf("%s/rest/v1/%s?select=*&limit=0", strings.TrimRight(baseURL, "/"), url.PathEscape(p.opts.ReferenceTable))
	a := p.client.Do(ctx, http.MethodGet, u, remote.KeyAuth(apiKey), nil)
	if !a.OK() {
		return errors.New(a.Failure())
	}
	return nil
}

func (p *Probe) execSQL(ctx context.Context, baseURL, apiKey string) error {
	u := fmt.Sprintf("%s/rest/v1/rpc/%s", strings.TrimRight(baseURL, "/"), url.PathEscape(p.opts.SQLFunction))
	a := p.client.Do(ctx, http.MethodPost, u, remote.KeyAuth(apiKey), map[string]string{"query": "SELECT 1"})
	if !a.OK() {
		return errors.New(a.Failure())
	}
	return nil
}
