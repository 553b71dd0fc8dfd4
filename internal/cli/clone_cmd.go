package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vbp1/schemaclone/internal/clone"
	"github.com/vbp1/schemaclone/internal/config"
	"github.com/vbp1/schemaclone/internal/lock"
	"github.com/vbp1/schemaclone/internal/util/signalctx"
)

// destinationIdentity is the string used to key the per-destination lock.
func destinationIdentity(dst config.ConnectionConfig) string {
	if dst.BaseURL != "" {
		return dst.BaseURL
	}
	return dst.DirectLink
}

func newCloneCmd(a *app) *cobra.Command {
	var (
		progressMode string
		showLog      bool
	)
	cmd := &cobra.Command{
		Use:   "clone",
		Short: "Clone the source schema into the destination",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src := a.store.Load(config.Source)
			dst := a.store.Load(config.Destination)
			errOut := cmd.ErrOrStderr()

			r, err := newRenderer(progressMode, errOut)
			if err != nil {
				return err
			}

			o := clone.New(a.client, clone.DefaultOptions(), notifier(errOut))
			// Guards run inside Run; take the lock only once they can pass.
			if clone.SourceReady(src) && clone.DestinationReady(dst) {
				l := lock.ForTarget(destinationIdentity(dst))
				if err := l.Acquire(); err != nil {
					return err
				}
				defer func() {
					if err := l.Unlock(); err != nil {
						slog.Warn("failed to release lock", "path", l.Path(), "err", err)
					}
				}()
			}

			ctx, stop := signalctx.WithInterrupt(cmd.Context())
			defer stop()

			o.OnChange = r.Update
			runErr := o.Run(ctx, src, dst)
			r.Done()

			if showLog {
				printLog(cmd.OutOrStdout(), o.Log().Entries())
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&progressMode, "progress", "auto", "Progress display: auto|bar|plain|none")
	cmd.Flags().BoolVar(&showLog, "show-log", true, "Print the operation log when the clone finishes")
	return cmd
}
