package cli

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/vbp1/schemaclone/internal/config"
	applog "github.com/vbp1/schemaclone/internal/log"
	"github.com/vbp1/schemaclone/internal/remote"
	"github.com/vbp1/schemaclone/internal/store"
)

// Flags holds values of the persistent CLI flags.
type Flags struct {
	StorePath    string
	Debug        bool
	Verbose      bool
	LogFormat    string
	Timeout      time.Duration
	ProbeTimeout time.Duration
}

// app carries per-invocation state shared by subcommands.
type app struct {
	flags Flags

	kv          *store.SQLite
	store       *config.Store
	client      *remote.Client
	probeClient *remote.Client
}

// Execute builds the command tree and runs it.
func Execute() error {
	root, a := newRootCmd()
	defer func() { _ = a.close() }()
	return root.Execute()
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:          "schemaclone",
		Short:        "Verify backend connectivity, clone a schema between backends, wipe a destination",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.ErrOrStderr(), cmd.OutOrStdout())
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.flags.StorePath, "store", "", "Configuration store path (default ~/.schemaclone/store.db)")
	f.BoolVar(&a.flags.Debug, "debug", false, "Enable debug trace output")
	f.BoolVar(&a.flags.Verbose, "verbose", false, "Verbose output")
	f.StringVar(&a.flags.LogFormat, "log-format", "text", "Log format: text|json")
	f.DurationVar(&a.flags.Timeout, "timeout", remote.DefaultAttemptTimeout, "Timeout per remote endpoint attempt for clone and wipe")
	f.DurationVar(&a.flags.ProbeTimeout, "probe-timeout", 15*time.Second, "Timeout per connectivity check request")

	root.AddCommand(
		newConfigCmd(a),
		newProbeCmd(a),
		newCloneCmd(a),
		newWipeCmd(a),
	)
	return root, a
}

func (a *app) open(logOut, out io.Writer) error {
	if _, err := applog.Setup(applog.Options{
		Debug:   a.flags.Debug,
		Verbose: a.flags.Verbose,
		Format:  a.flags.LogFormat,
		Out:     logOut,
	}); err != nil {
		return err
	}

	path := a.flags.StorePath
	if path == "" {
		p, err := store.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	kv, err := store.OpenSQLite(path)
	if err != nil {
		return err
	}
	a.kv = kv
	a.store = config.NewStore(kv)
	a.client = remote.NewClient(a.flags.Timeout)
	a.probeClient = remote.NewClient(a.flags.ProbeTimeout)
	slog.Debug("store opened", "path", path)

	if a.store.ConsumeReopen() {
		fmt.Fprintln(out, "Configuration applied:")
		printConfig(out, config.Source, a.store.Load(config.Source))
		printConfig(out, config.Destination, a.store.Load(config.Destination))
		fmt.Fprintln(out)
	}
	return nil
}

func (a *app) close() error {
	if a.kv == nil {
		return nil
	}
	err := a.kv.Close()
	a.kv = nil
	return err
}
