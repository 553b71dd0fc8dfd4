package wipe

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbp1/schemaclone/internal/config"
	"github.com/vbp1/schemaclone/internal/remote"
	"github.com/vbp1/schemaclone/internal/runlog"
)

type fakeInvoker struct {
	calls      int
	candidates []string
	auth       remote.Auth
	payload    any
	body       string
	err        error
}

func (f *fakeInvoker) Invoke(_ context.Context, candidates []string, auth remote.Auth, payload any) (*remote.Response, error) {
	f.calls++
	f.candidates, f.auth, f.payload = candidates, auth, payload
	if f.err != nil {
		return nil, f.err
	}
	return &remote.Response{Endpoint: candidates[0], Status: 200, Body: json.RawMessage(f.body)}, nil
}

var (
	src = config.ConnectionConfig{ProjectID: "abc", BaseURL: "https://abc.example.co", PrivilegedKey: "src-key"}
	dst = config.ConnectionConfig{BaseURL: "https://dest.example.co", PrivilegedKey: "dest-key"}
)

func confirm(g *Guard) {
	g.SetAckDataLoss(true)
	g.SetAckCorrectTarget(true)
	g.SetTypedToken(Token)
}

func TestCanProceedTruthTable(t *testing.T) {
	g := New(nil, nil, nil)
	for mask := 0; mask < 8; mask++ {
		g.SetAckDataLoss(mask&1 != 0)
		g.SetAckCorrectTarget(mask&2 != 0)
		tok := "wrong"
		if mask&4 != 0 {
			tok = Token
		}
		g.SetTypedToken(tok)
		assert.Equal(t, mask == 7, g.CanProceed(), "mask=%03b", mask)
	}

	g.SetAckDataLoss(true)
	g.SetAckCorrectTarget(true)
	for _, tok := range []string{"esvaziar", "ESVAZIAR ", " ESVAZIAR", "Esvaziar", ""} {
		g.SetTypedToken(tok)
		assert.False(t, g.CanProceed(), "token %q", tok)
	}
}

func TestOpenCloseReset(t *testing.T) {
	g := New(nil, nil, nil)
	confirm(g)
	g.Open()
	assert.True(t, g.IsOpen())
	assert.False(t, g.CanProceed())
	confirm(g)
	g.Close()
	assert.False(t, g.IsOpen())
	assert.False(t, g.CanProceed())
}

func TestExecuteSuccess(t *testing.T) {
	inv := &fakeInvoker{body: `{"success":true}`}
	log := runlog.New()
	var notes []runlog.Level
	g := New(inv, log, runlog.NotifierFunc(func(l runlog.Level, _ string) { notes = append(notes, l) }))
	g.Open()
	confirm(g)

	require.NoError(t, g.Execute(context.Background(), src, dst))
	assert.Equal(t, 1, inv.calls)
	assert.Equal(t, []string{
		"https://abc.example.co/functions/v1/wipe-database",
		"https://abc.functions.example.co/wipe-database",
	}, inv.candidates)
	assert.Equal(t, remote.KeyAuth("src-key"), inv.auth)
	assert.Equal(t, Request{Destination: Target{BaseURL: "https://dest.example.co", PrivilegedKey: "dest-key"}}, inv.payload)

	entries := log.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, runlog.Success, entries[0].Level)
	assert.Equal(t, []runlog.Level{runlog.Success}, notes)
	assert.False(t, g.IsOpen())
	assert.False(t, g.CanProceed())
}

func TestExecuteFailureStillResets(t *testing.T) {
	for _, inv := range []*fakeInvoker{
		{body: `{"success":false,"error":"permission denied"}`},
		{err: errors.New("all endpoints failed")},
	} {
		log := runlog.New()
		g := New(inv, log, nil)
		g.Open()
		confirm(g)
		err := g.Execute(context.Background(), src, dst)
		require.Error(t, err)
		entries := log.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, runlog.Error, entries[0].Level)
		assert.False(t, g.IsOpen())
		assert.False(t, g.CanProceed())
	}
}

func TestExecuteRefusesWithoutGate(t *testing.T) {
	inv := &fakeInvoker{body: `{"success":true}`}
	g := New(inv, nil, nil)
	g.Open()

	assert.ErrorIs(t, g.Execute(context.Background(), src, dst), ErrNotConfirmed)

	confirm(g)
	linkOnly := config.ConnectionConfig{DirectLink: "postgres://u:p@db/app"}
	assert.ErrorIs(t, g.Execute(context.Background(), src, linkOnly), ErrDestinationNotReady)
	assert.ErrorIs(t, g.Execute(context.Background(), config.ConnectionConfig{}, dst), ErrSourceNotReady)

	assert.Equal(t, 0, inv.calls)
	assert.True(t, g.CanProceed(), "refusals keep the confirmations")
}
