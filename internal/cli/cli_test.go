package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbp1/schemaclone/internal/clone"
	"github.com/vbp1/schemaclone/internal/config"
	"github.com/vbp1/schemaclone/internal/runlog"
	"github.com/vbp1/schemaclone/internal/wipe"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

type result struct {
	out, errOut string
	err         error
}

// run executes one CLI invocation against storePath.
func run(t *testing.T, storePath, stdin string, args ...string) result {
	t.Helper()
	root, a := newRootCmd()
	defer func() { _ = a.close() }()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--store", storePath, "--timeout", "5s", "--probe-timeout", "5s"}, args...))
	err := root.Execute()
	return result{out: out.String(), errOut: errOut.String(), err: err}
}

func newStorePath(t *testing.T) string {
	t.Helper()
	for _, k := range []string{config.EnvDestProjectID, config.EnvDestBaseURL, config.EnvDestPublicKey, config.EnvDestPrivilegedKey, config.EnvDestDirectLink} {
		t.Setenv(k, "")
	}
	return filepath.Join(t.TempDir(), "store.db")
}

// fakeBackend serves the REST and function endpoints used by the CLI.
type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int
	keys  map[string]string
	seq   []string
	wipe  string
	clone string
}

func (b *fakeBackend) server(t *testing.T) *httptest.Server {
	t.Helper()
	b.calls = make(map[string]int)
	b.keys = make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[r.URL.Path]++
		b.keys[r.URL.Path] = r.Header.Get("apikey")
		b.seq = append(b.seq, r.Header.Get("apikey")+" "+r.URL.Path)
		b.mu.Unlock()
		switch r.URL.Path {
		case "/rest/v1/profiles":
			_, _ = w.Write([]byte(`[]`))
		case "/rest/v1/rpc/exec_sql":
			_, _ = w.Write([]byte(`[{"?column?":1}]`))
		case "/functions/v1/clone-database":
			_, _ = w.Write([]byte(b.clone))
		case "/functions/v1/wipe-database":
			_, _ = w.Write([]byte(b.wipe))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (b *fakeBackend) key(path string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.keys[path]
}

func (b *fakeBackend) requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.seq...)
}

func (b *fakeBackend) count(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

func configure(t *testing.T, storePath, srcURL, dstURL string) {
	t.Helper()
	r := run(t, storePath, "", "config", "set", "source", "--base-url", srcURL, "--public-key", "src-pub", "--privileged-key", "src-priv")
	require.NoError(t, r.err, r.errOut)
	r = run(t, storePath, "", "config", "set", "destination", "--base-url", dstURL, "--public-key", "dst-pub", "--privileged-key", "dst-priv")
	require.NoError(t, r.err, r.errOut)
}

func TestConfigSetAndShow(t *testing.T) {
	path := newStorePath(t)

	r := run(t, path, "", "config", "set", "destination", "--base-url", " https://dest.example.co/ ", "--privileged-key", "secret-abcd")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "Saved destination configuration")

	r = run(t, path, "", "config", "show", "destination")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "https://dest.example.co\n")
	assert.Contains(t, r.out, "****abcd")
	assert.NotContains(t, r.out, "secret-abcd")
	assert.Contains(t, r.out, "direct link:    (none)")

	// unset flags keep the stored value
	r = run(t, path, "", "config", "set", "destination", "--direct-link", "postgres://u:pw@db:5432/app")
	require.NoError(t, r.err)
	r = run(t, path, "", "config", "show", "destination")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "https://dest.example.co\n")
	assert.Contains(t, r.out, "u@db:5432/app")
	assert.NotContains(t, r.out, "pw@")

	r = run(t, path, "", "config", "show", "sideways")
	assert.Error(t, r.err)
}

func TestConfigShowSourceDefaults(t *testing.T) {
	r := run(t, newStorePath(t), "", "config", "show", "source")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, config.DefaultSource().BaseURL)
}

func TestConfigApplyShownOnce(t *testing.T) {
	path := newStorePath(t)
	r := run(t, path, "", "config", "set", "source", "--project-id", "p1", "--apply")
	require.NoError(t, r.err)

	r = run(t, path, "", "config", "show", "source")
	require.NoError(t, r.err)
	assert.True(t, strings.HasPrefix(r.out, "Configuration applied:"), r.out)

	r = run(t, path, "", "config", "show", "source")
	require.NoError(t, r.err)
	assert.False(t, strings.HasPrefix(r.out, "Configuration applied:"))
}

func TestConfigImport(t *testing.T) {
	path := newStorePath(t)
	file := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(file, []byte("destination:\n  base_url: https://d.example.co/\n  privileged_key: dk12345\n"), 0o600))

	r := run(t, path, "", "config", "import", file)
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "Imported destination configuration")
	assert.NotContains(t, r.out, "Imported source")

	r = run(t, path, "", "config", "show", "destination")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "https://d.example.co\n")
}

func TestProbeCommand(t *testing.T) {
	path := newStorePath(t)
	b := &fakeBackend{}
	srv := b.server(t)
	configure(t, path, srv.URL, srv.URL)

	r := run(t, path, "", "probe", "all", "--channel", "public")
	require.NoError(t, r.err, r.out)
	assert.Equal(t, 2, strings.Count(r.out, "connected"))
	assert.Equal(t, 2, b.count("/rest/v1/profiles"))

	r = run(t, path, "", "probe", "source", "--channel", "privileged")
	require.NoError(t, r.err, r.out)
	assert.Equal(t, 1, b.count("/rest/v1/rpc/exec_sql"))

	// no direct link configured
	r = run(t, path, "", "probe", "destination", "--channel", "direct")
	require.Error(t, r.err)
	assert.Contains(t, r.out, "direct link is required")
	assert.Contains(t, r.err.Error(), "1 of 1")

	r = run(t, path, "", "probe", "source", "--channel", "carrier-pigeon")
	assert.Error(t, r.err)
}

func TestProbeRunsChecksInOrder(t *testing.T) {
	path := newStorePath(t)
	b := &fakeBackend{}
	srv := b.server(t)
	configure(t, path, srv.URL, srv.URL)

	r := run(t, path, "", "probe", "all", "--channel", "all")
	require.Error(t, r.err) // no direct links configured
	assert.Equal(t, []string{
		"src-pub /rest/v1/profiles",
		"src-priv /rest/v1/rpc/exec_sql",
		"dst-pub /rest/v1/profiles",
		"dst-priv /rest/v1/rpc/exec_sql",
	}, b.requests())
	assert.Contains(t, r.err.Error(), "2 of 6")
	assert.Error(t, r.err)
}

func TestCloneCommand(t *testing.T) {
	path := newStorePath(t)
	b := &fakeBackend{clone: `{"success":true,"statements":{"successful":3,"total":3},"logs":[{"message":"created 3 tables","level":"info"}]}`}
	srv := b.server(t)
	configure(t, path, srv.URL, srv.URL)

	r := run(t, path, "", "clone", "--progress", "plain")
	require.NoError(t, r.err, r.errOut)
	assert.Equal(t, 1, b.count("/functions/v1/clone-database"))
	assert.Equal(t, "src-priv", b.key("/functions/v1/clone-database"))
	assert.Contains(t, r.out, "Clone finished: 3/3 statements executed successfully")
	assert.Contains(t, r.out, "created 3 tables")
	assert.Contains(t, r.errOut, "Finalize")
	assert.Contains(t, r.errOut, "Schema clone completed successfully")
}

func TestCloneRefusesUnconfiguredDestination(t *testing.T) {
	path := newStorePath(t)
	b := &fakeBackend{}
	srv := b.server(t)
	r := run(t, path, "", "config", "set", "source", "--base-url", srv.URL, "--privileged-key", "k")
	require.NoError(t, r.err)

	r = run(t, path, "", "clone", "--progress", "none")
	require.ErrorIs(t, r.err, clone.ErrDestinationNotReady)
	assert.Zero(t, b.count("/functions/v1/clone-database"))

	r = run(t, path, "", "clone", "--progress", "sparkles")
	assert.Error(t, r.err)
}

func TestWipeInteractive(t *testing.T) {
	path := newStorePath(t)
	b := &fakeBackend{wipe: `{"success":true}`}
	srv := b.server(t)
	configure(t, path, srv.URL, srv.URL)

	r := run(t, path, "yes\nyes\n"+wipe.Token+"\n", "wipe")
	require.NoError(t, r.err, r.errOut)
	assert.Equal(t, 1, b.count("/functions/v1/wipe-database"))
	assert.Equal(t, "src-priv", b.key("/functions/v1/wipe-database"))
	assert.Contains(t, r.out, "WARNING")
	assert.Contains(t, r.out, "wiped")
}

func TestWipeWrongTokenMakesNoCall(t *testing.T) {
	path := newStorePath(t)
	b := &fakeBackend{wipe: `{"success":true}`}
	srv := b.server(t)
	configure(t, path, srv.URL, srv.URL)

	for _, stdin := range []string{
		"yes\nyes\n" + strings.ToLower(wipe.Token) + "\n",
		"yes\nyes\n" + wipe.Token + " \n",
		"yes\nno\n" + wipe.Token + "\n",
		"",
	} {
		r := run(t, path, stdin, "wipe")
		require.ErrorIs(t, r.err, wipe.ErrNotConfirmed, "stdin %q", stdin)
	}
	assert.Zero(t, b.count("/functions/v1/wipe-database"))
}

func TestWipeWithFlags(t *testing.T) {
	path := newStorePath(t)
	b := &fakeBackend{wipe: `{"success":false,"error":"permission denied"}`}
	srv := b.server(t)
	configure(t, path, srv.URL, srv.URL)

	r := run(t, path, "", "wipe", "--ack-data-loss", "--ack-target", "--confirm", wipe.Token)
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "permission denied")
	assert.Equal(t, 1, b.count("/functions/v1/wipe-database"))
	assert.Contains(t, r.out, "Destination wipe failed")
}

func TestPrompterKeepsInnerWhitespace(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader(" ESVAZIAR\r\nY\nlast"), &out)

	s, err := p.Ask("token: ")
	require.NoError(t, err)
	assert.Equal(t, " ESVAZIAR", s)

	ok, err := p.Confirm("sure?")
	require.NoError(t, err)
	assert.True(t, ok)

	s, err = p.Ask("again: ")
	require.NoError(t, err)
	assert.Equal(t, "last", s)

	_, err = p.Ask("eof: ")
	assert.Error(t, err)
	assert.Contains(t, out.String(), "sure? (yes/no): ")
}

func TestPrintLogDetails(t *testing.T) {
	l := runlog.New()
	l.Add(runlog.Info, "remote step", map[string]int{"n": 1})
	l.Success("done")

	var out bytes.Buffer
	printLog(&out, l.Entries())
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `remote step {"n":1}`)
	assert.Contains(t, lines[1], "success")
	assert.Contains(t, lines[1], "done")
}
