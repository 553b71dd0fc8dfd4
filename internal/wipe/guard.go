// Package wipe gates the irreversible destination wipe behind three
// independent confirmations.
package wipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vbp1/schemaclone/internal/config"
	"github.com/vbp1/schemaclone/internal/endpoint"
	"github.com/vbp1/schemaclone/internal/remote"
	"github.com/vbp1/schemaclone/internal/runlog"
)

// Token must be typed exactly (case-sensitive) to unlock the wipe.
const Token = "ESVAZIAR"

// DefaultFunctionName is the remote destructive-wipe function.
const DefaultFunctionName = "wipe-database"

var (
	ErrNotConfirmed        = errors.New("wipe not confirmed: both acknowledgements and the exact token are required")
	ErrSourceNotReady      = errors.New("source requires a base URL and a privileged key to execute the wipe")
	ErrDestinationNotReady = errors.New("destination requires a base URL and a privileged key to be wiped")
)

// Invoker posts a payload to candidate endpoints; *remote.Client implements it.
type Invoker interface {
	Invoke(ctx context.Context, candidates []string, auth remote.Auth, payload any) (*remote.Response, error)
}

// Target identifies the backend to wipe.
type Target struct {
	BaseURL       string `json:"baseUrl"`
	PrivilegedKey string `json:"privilegedKey"`
}

// Request is the JSON body of the remote wipe call.
type Request struct {
	Destination Target `json:"destination"`
}

// Response is the JSON body returned by the remote wipe call.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Guard holds the confirmation state and performs the wipe.
type Guard struct {
	inv          Invoker
	log          *runlog.Log
	notify       runlog.Notifier
	functionName string

	mu               sync.Mutex
	open             bool
	ackDataLoss      bool
	ackCorrectTarget bool
	typedToken       string
}

// New creates a closed Guard. log and notify may be nil.
func New(inv Invoker, log *runlog.Log, notify runlog.Notifier) *Guard {
	if log == nil {
		log = runlog.New()
	}
	if notify == nil {
		notify = runlog.Discard
	}
	return &Guard{inv: inv, log: log, notify: notify, functionName: DefaultFunctionName}
}

// Open shows the confirmation surface with every confirmation cleared.
func (g *Guard) Open() { g.reset(true) }

// Close hides the confirmation surface and clears every confirmation.
func (g *Guard) Close() { g.reset(false) }

func (g *Guard) reset(open bool) {
	g.mu.Lock()
	g.open = open
	g.ackDataLoss = false
	g.ackCorrectTarget = false
	g.typedToken = ""
	g.mu.Unlock()
}

// IsOpen reports whether the confirmation surface is shown.
func (g *Guard) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

func (g *Guard) SetAckDataLoss(v bool) {
	g.mu.Lock()
	g.ackDataLoss = v
	g.mu.Unlock()
}

func (g *Guard) SetAckCorrectTarget(v bool) {
	g.mu.Lock()
	g.ackCorrectTarget = v
	g.mu.Unlock()
}

// SetTypedToken stores the text typed by the user verbatim.
func (g *Guard) SetTypedToken(s string) {
	g.mu.Lock()
	g.typedToken = s
	g.mu.Unlock()
}

// CanProceed is true only when both boxes are ticked and the token matches exactly.
func (g *Guard) CanProceed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ackDataLoss && g.ackCorrectTarget && g.typedToken == Token
}

// Execute wipes dst using src as the trusted executor. The call is resolved
// from the source base URL and authorized with the source privileged key;
// the destination credentials travel in the payload. After the remote call,
// whatever its outcome, the confirmations are cleared and the surface closed.
func (g *Guard) Execute(ctx context.Context, src, dst config.ConnectionConfig) error {
	if !dst.HasAPIAccess() {
		return g.refuse(ErrDestinationNotReady)
	}
	if !src.HasAPIAccess() {
		return g.refuse(ErrSourceNotReady)
	}
	if !g.CanProceed() {
		return g.refuse(ErrNotConfirmed)
	}
	defer g.Close()

	candidates := endpoint.Resolve(src.BaseURL, g.functionName, src.ProjectID)
	req := Request{Destination: Target{BaseURL: dst.BaseURL, PrivilegedKey: dst.PrivilegedKey}}
	slog.Warn("wiping destination", "destination", dst.BaseURL, "candidates", len(candidates))

	err := g.call(ctx, candidates, remote.KeyAuth(src.PrivilegedKey), req)
	if err != nil {
		msg := fmt.Sprintf("Destination wipe failed: %v", err)
		g.log.Error(msg)
		g.notify.Notify(runlog.Error, msg)
		return err
	}
	msg := fmt.Sprintf("Destination %s wiped", dst.BaseURL)
	g.log.Success(msg)
	g.notify.Notify(runlog.Success, msg)
	return nil
}

func (g *Guard) call(ctx context.Context, candidates []string, auth remote.Auth, req Request) error {
	raw, err := g.inv.Invoke(ctx, candidates, auth, req)
	if err != nil {
		return err
	}
	var resp Response
	if err := raw.Decode(&resp); err != nil {
		return fmt.Errorf("decode wipe response: %w", err)
	}
	if !resp.Success {
		if resp.Error == "" {
			return errors.New("remote wipe reported failure")
		}
		return errors.New(resp.Error)
	}
	return nil
}

func (g *Guard) refuse(err error) error {
	g.notify.Notify(runlog.Error, err.Error())
	return err
}
