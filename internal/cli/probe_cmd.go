package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vbp1/schemaclone/internal/probe"
	"github.com/vbp1/schemaclone/internal/util/signalctx"
)

func newProbeCmd(a *app) *cobra.Command {
	var (
		channel string
		local   bool
	)
	cmd := &cobra.Command{
		Use:       "probe [source|destination|all]",
		Short:     "Check connectivity over the public, privileged and direct channels",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"source", "destination", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			sides, err := sidesArg(args)
			if err != nil {
				return err
			}
			channels := probe.Channels
			if channel != "" && channel != "all" {
				ch, err := probe.ParseChannel(channel)
				if err != nil {
					return err
				}
				channels = []probe.Channel{ch}
			}

			opts := probe.DefaultOptions()
			opts.LocalDirect = local
			p := probe.New(a.probeClient, opts)

			ctx, stop := signalctx.WithInterrupt(cmd.Context())
			defer stop()

			// one check at a time, in display order
			for _, s := range sides {
				cfg := a.store.Load(s)
				for _, ch := range channels {
					if ctx.Err() != nil {
						break
					}
					p.Check(ctx, s, ch, cfg)
				}
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, s := range sides {
				for _, ch := range channels {
					st := p.Status(s, ch)
					printStatus(out, s, ch, st)
					if st.State != probe.Connected {
						failed++
					}
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d connectivity checks failed", failed, len(sides)*len(channels))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "all", "Channel to check: public|privileged|direct|all")
	cmd.Flags().BoolVar(&local, "local", false, "Dial the direct link from this machine instead of the remote probe function")
	return cmd
}
