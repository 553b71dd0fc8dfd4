package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vbp1/schemaclone/internal/config"
	"github.com/vbp1/schemaclone/internal/lock"
	"github.com/vbp1/schemaclone/internal/runlog"
	"github.com/vbp1/schemaclone/internal/util/signalctx"
	"github.com/vbp1/schemaclone/internal/wipe"
)

// prompter asks questions on the command's input and output streams.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// Ask returns the answer without its line terminator. Other whitespace is
// kept so that a typed token is compared verbatim. A final line without
// newline is accepted.
func (p *prompter) Ask(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	text, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && text != "") {
		return "", err
	}
	return strings.TrimRight(text, "\r\n"), nil
}

func (p *prompter) Confirm(prompt string) (bool, error) {
	ans, err := p.Ask(fmt.Sprintf("%s (yes/no): ", prompt))
	if err != nil {
		return false, err
	}
	ans = strings.ToLower(strings.TrimSpace(ans))
	return ans == "y" || ans == "yes", nil
}

func newWipeCmd(a *app) *cobra.Command {
	var (
		ackDataLoss bool
		ackTarget   bool
		token       string
	)
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Irreversibly delete all data and schema objects in the destination",
		Long: "Wipe the destination through the source's remote executor.\n" +
			"Requires acknowledging data loss, acknowledging the target and typing " + wipe.Token + ".\n" +
			"Confirmations not given as flags are asked interactively.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src := a.store.Load(config.Source)
			dst := a.store.Load(config.Destination)
			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()

			log := runlog.New()
			g := wipe.New(a.client, log, notifier(errOut))
			g.Open()

			errColor.Fprintln(out, "WARNING: this permanently deletes every table, view, function and row in the destination.")
			fmt.Fprintf(out, "Destination: %s\n", dst.BaseURL)
			fmt.Fprintf(out, "Executor:    %s\n", src.BaseURL)

			// Ask only when the configuration guards can pass; Execute
			// reports missing configuration otherwise. Closed input leaves
			// the remaining confirmations unset.
			if src.HasAPIAccess() && dst.HasAPIAccess() {
				p := newPrompter(cmd.InOrStdin(), out)
				err := confirmations(p, &ackDataLoss, &ackTarget, &token, dst.BaseURL)
				if err != nil && !errors.Is(err, io.EOF) {
					g.Close()
					return err
				}
			}
			g.SetAckDataLoss(ackDataLoss)
			g.SetAckCorrectTarget(ackTarget)
			g.SetTypedToken(token)

			if g.CanProceed() && dst.HasAPIAccess() {
				l := lock.ForTarget(destinationIdentity(dst))
				if err := l.Acquire(); err != nil {
					g.Close()
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

			err := g.Execute(ctx, src, dst)
			printLog(out, log.Entries())
			return err
		},
	}
	f := cmd.Flags()
	f.BoolVar(&ackDataLoss, "ack-data-loss", false, "Acknowledge that all destination data will be lost")
	f.BoolVar(&ackTarget, "ack-target", false, "Acknowledge that the destination shown is the intended target")
	f.StringVar(&token, "confirm", "", "Confirmation token, must be exactly "+wipe.Token)
	return cmd
}

// confirmations asks for every confirmation not already given.
func confirmations(p *prompter, ackDataLoss, ackTarget *bool, token *string, target string) error {
	var err error
	if !*ackDataLoss {
		if *ackDataLoss, err = p.Confirm("I understand all destination data will be lost"); err != nil {
			return err
		}
	}
	if !*ackTarget {
		if *ackTarget, err = p.Confirm(fmt.Sprintf("%s is the correct destination", target)); err != nil {
			return err
		}
	}
	if *token == "" {
		if *token, err = p.Ask(fmt.Sprintf("Type %s to confirm: ", wipe.Token)); err != nil {
			return err
		}
	}
	return nil
}
