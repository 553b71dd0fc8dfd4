package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/vbp1/schemaclone/internal/clone"
	"github.com/vbp1/schemaclone/internal/util/term"
)

// renderer displays clone progress from orchestrator snapshots.
type renderer interface {
	Update(s clone.Snapshot)
	Done()
}

func newRenderer(mode string, w io.Writer) (renderer, error) {
	switch mode {
	case "auto":
		if f, ok := w.(*os.File); ok && term.IsTerminal(f) {
			return newBarRenderer(w), nil
		}
		return newPlainRenderer(w), nil
	case "bar":
		return newBarRenderer(w), nil
	case "plain":
		return newPlainRenderer(w), nil
	case "none":
		return nopRenderer{}, nil
	}
	return nil, fmt.Errorf("unknown progress mode %q (want auto|bar|plain|none)", mode)
}

type nopRenderer struct{}

func (nopRenderer) Update(clone.Snapshot) {}
func (nopRenderer) Done()                 {}

// plainRenderer prints one line per step status change.
type plainRenderer struct {
	w    io.Writer
	mu   sync.Mutex
	seen map[string]clone.StepStatus
}

func newPlainRenderer(w io.Writer) *plainRenderer {
	return &plainRenderer{w: w, seen: make(map[string]clone.StepStatus)}
}

func (r *plainRenderer) Update(s clone.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range s.Steps {
		prev, ok := r.seen[st.ID]
		if ok && prev == st.Status {
			continue
		}
		r.seen[st.ID] = st.Status
		if st.Status == clone.Pending {
			continue
		}
		line := fmt.Sprintf("[%3d%%] %-28s %s", s.Progress, st.Name, st.Status)
		if st.Progress != nil && st.Status == clone.Running {
			line += fmt.Sprintf(" (%d%%)", *st.Progress)
		}
		fmt.Fprintln(r.w, line)
	}
}

func (r *plainRenderer) Done() {}

// barRenderer draws a single overall bar with the running step name.
type barRenderer struct {
	p   *mpb.Progress
	bar *mpb.Bar

	mu     sync.Mutex
	status string
	last   int
}

func newBarRenderer(w io.Writer) *barRenderer {
	r := &barRenderer{}
	r.p = mpb.New(mpb.WithOutput(w), mpb.WithWidth(40), mpb.WithRefreshRate(100*time.Millisecond))
	name := "clone "
	r.bar = r.p.New(100, mpb.BarStyle().Rbound("|").Lbound("|"),
		mpb.PrependDecorators(decor.Name(name, decor.WC{W: len(name), C: decor.DSyncWidth}), decor.Percentage()),
		mpb.AppendDecorators(decor.Any(func(decor.Statistics) string {
			r.mu.Lock()
			defer r.mu.Unlock()
			return r.status
		})))
	return r
}

func (r *barRenderer) Update(s clone.Snapshot) {
	r.mu.Lock()
	r.status = s.Status
	r.last = s.Progress
	r.mu.Unlock()
	r.bar.SetCurrent(int64(s.Progress))
}

func (r *barRenderer) Done() {
	r.mu.Lock()
	last := r.last
	r.mu.Unlock()
	if last < 100 {
		r.bar.Abort(false)
	}
	r.p.Wait()
}
