package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/vbp1/schemaclone/internal/config"
	"github.com/vbp1/schemaclone/internal/postgres"
	"github.com/vbp1/schemaclone/internal/probe"
	"github.com/vbp1/schemaclone/internal/runlog"
)

var (
	okColor   = color.New(color.FgGreen)
	errColor  = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
	dimColor  = color.New(color.FgHiBlack)
	headColor = color.New(color.FgCyan, color.Bold)
)

func levelColor(l runlog.Level) *color.Color {
	switch l {
	case runlog.Success:
		return okColor
	case runlog.Warn:
		return warnColor
	case runlog.Error:
		return errColor
	}
	return color.New(color.Reset)
}

func printConfig(w io.Writer, side config.Side, c config.ConnectionConfig) {
	headColor.Fprintf(w, "[%s]\n", side)
	fmt.Fprintf(w, "  project id:     %s\n", c.ProjectID)
	fmt.Fprintf(w, "  base url:       %s\n", c.BaseURL)
	fmt.Fprintf(w, "  public key:     %s\n", config.Mask(c.PublicKey))
	fmt.Fprintf(w, "  privileged key: %s\n", config.Mask(c.PrivilegedKey))
	link := "(none)"
	if c.HasDirectLink() {
		link = postgres.Describe(c.DirectLink)
	}
	fmt.Fprintf(w, "  direct link:    %s\n", link)
}

func printLog(w io.Writer, entries []runlog.Entry) {
	for _, e := range entries {
		dimColor.Fprintf(w, "%s ", e.Timestamp)
		levelColor(e.Level).Fprintf(w, "%-7s ", e.Level)
		fmt.Fprint(w, e.Message)
		if e.Details != nil {
			if b, err := json.Marshal(e.Details); err == nil {
				dimColor.Fprintf(w, " %s", b)
			}
		}
		fmt.Fprintln(w)
	}
}

func printStatus(w io.Writer, side config.Side, ch probe.Channel, st probe.ChannelStatus) {
	fmt.Fprintf(w, "%-12s %-11s ", side, ch)
	switch st.State {
	case probe.Connected:
		okColor.Fprintln(w, "connected")
	case probe.Failed:
		errColor.Fprint(w, "error")
		fmt.Fprintf(w, ": %s\n", st.Error)
	default:
		dimColor.Fprintln(w, st.State)
	}
}

// notifier prints one-line notifications for terminal workflow states.
func notifier(w io.Writer) runlog.Notifier {
	return runlog.NotifierFunc(func(l runlog.Level, msg string) {
		mark := "•"
		switch l {
		case runlog.Success:
			mark = "✔"
		case runlog.Error:
			mark = "✖"
		case runlog.Warn:
			mark = "!"
		}
		levelColor(l).Fprintf(w, "%s %s\n", mark, msg)
	})
}
