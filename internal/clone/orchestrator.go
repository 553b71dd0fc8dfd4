package clone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vbp1/schemaclone/internal/config"
	"github.com/vbp1/schemaclone/internal/endpoint"
	"github.com/vbp1/schemaclone/internal/remote"
	"github.com/vbp1/schemaclone/internal/runlog"
)

// Configuration guard errors. They are raised before any network call.
var (
	ErrSourceNotReady      = errors.New("source requires a base URL and a privileged key")
	ErrDestinationNotReady = errors.New("destination requires a direct link, or a base URL and a privileged key")
)

const (
	msgStarting  = "Starting schema clone"
	msgFailed    = "Schema clone failed"
	msgCompleted = "Schema clone completed successfully"
)

// Invoker posts a payload to candidate endpoints; *remote.Client implements it.
type Invoker interface {
	Invoke(ctx context.Context, candidates []string, auth remote.Auth, payload any) (*remote.Response, error)
}

// RemoteFailure is an application-level failure reported in a 2xx body.
type RemoteFailure struct {
	Message  string
	Response *Response
}

func (e *RemoteFailure) Error() string { return e.Message }

// Snapshot is a consistent copy of the orchestrator state.
type Snapshot struct {
	Steps      []Step
	Progress   int
	Status     string
	InProgress bool
	Log        []runlog.Entry
}

// Orchestrator sequences a schema clone and tracks steps, progress and log.
//
// Only validate and export reflect real work. The remote function applies
// the whole schema in one request, so the later steps are walked after it
// returns as a visual approximation, and the remote success flag is checked
// only once they all show completed. A failure therefore follows a fully
// completed step list.
//
// Run does not reject concurrent calls; callers gate on InProgress.
type Orchestrator struct {
	inv    Invoker
	opts   Options
	log    *runlog.Log
	notify runlog.Notifier

	// OnChange, when set, receives a snapshot after every state change.
	OnChange func(Snapshot)

	sleep func(ctx context.Context, d time.Duration) error

	mu         sync.Mutex
	steps      []Step
	progress   int
	status     string
	inProgress bool
}

// New creates an Orchestrator. A nil notifier discards notifications.
func New(inv Invoker, opts Options, notify runlog.Notifier) *Orchestrator {
	def := DefaultOptions()
	if opts.FunctionName == "" {
		opts.FunctionName = def.FunctionName
	}
	if opts.ExportProgress <= 0 || opts.ExportProgress >= 100 {
		opts.ExportProgress = def.ExportProgress
	}
	if notify == nil {
		notify = runlog.Discard
	}
	return &Orchestrator{
		inv:    inv,
		opts:   opts,
		log:    runlog.New(),
		notify: notify,
		sleep:  sleepCtx,
		steps:  NewSteps(),
	}
}

// Log returns the pipeline log.
func (o *Orchestrator) Log() *runlog.Log { return o.log }

// InProgress reports whether a run is active.
func (o *Orchestrator) InProgress() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inProgress
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	steps := make([]Step, len(o.steps))
	copy(steps, o.steps)
	s := Snapshot{Steps: steps, Progress: o.progress, Status: o.status, InProgress: o.inProgress}
	o.mu.Unlock()
	s.Log = o.log.Entries()
	return s
}

func (o *Orchestrator) changed() {
	if o.OnChange != nil {
		o.OnChange(o.Snapshot())
	}
}

// Run clones the schema of src into dst. Configuration problems are
// returned before any network call. Any later failure marks the running
// step as error, is recorded in the log and status, and is returned.
func (o *Orchestrator) Run(ctx context.Context, src, dst config.ConnectionConfig) error {
	if !SourceReady(src) {
		return o.reject(ErrSourceNotReady)
	}
	if !DestinationReady(dst) {
		return o.reject(ErrDestinationNotReady)
	}

	o.mu.Lock()
	o.steps = NewSteps()
	o.progress = 0
	o.status = msgStarting
	o.inProgress = true
	o.log.Clear()
	o.mu.Unlock()
	o.changed()

	defer func() {
		o.mu.Lock()
		o.inProgress = false
		o.mu.Unlock()
		o.changed()
	}()

	if err := o.pipeline(ctx, src, dst); err != nil {
		o.fail(err)
		return err
	}
	return nil
}

func (o *Orchestrator) reject(err error) error {
	o.mu.Lock()
	o.status = err.Error()
	o.mu.Unlock()
	o.notify.Notify(runlog.Error, err.Error())
	o.changed()
	return err
}

func (o *Orchestrator) pipeline(ctx context.Context, src, dst config.ConnectionConfig) error {
	// validate
	if err := o.startStep(0); err != nil {
		return err
	}
	if err := o.sleep(ctx, o.opts.ValidateDelay); err != nil {
		return err
	}
	if err := o.completeStep(0); err != nil {
		return err
	}
	o.log.Success("Configuration validated")

	// export: the only remote call
	if err := o.startStep(1); err != nil {
		return err
	}
	o.setProgress(o.opts.ExportProgress, "Cloning schema on the remote executor")
	req := NewRequest(src, dst)
	candidates := endpoint.Resolve(src.BaseURL, o.opts.FunctionName, src.ProjectID)
	o.log.Add(runlog.Info, "Invoking remote clone", map[string]any{
		"candidates":            len(candidates),
		"preferDirectExecution": req.PreferDirectExecution,
	})
	raw, err := o.inv.Invoke(ctx, candidates, remote.KeyAuth(src.PrivilegedKey), req)
	if err != nil {
		return err
	}
	var resp Response
	if err := raw.Decode(&resp); err != nil {
		return fmt.Errorf("decode clone response from %s: %w", raw.Endpoint, err)
	}
	if err := o.completeStep(1); err != nil {
		return err
	}
	slog.Info("remote clone returned", "endpoint", raw.Endpoint, "success", resp.Success)

	// synthetic progression, see Orchestrator doc
	rest := len(stepDefs) - 2
	span := 95 - o.opts.ExportProgress
	for i := 0; i < rest; i++ {
		idx := i + 2
		if err := o.startStep(idx); err != nil {
			return err
		}
		if err := o.sleep(ctx, o.opts.StepDelay); err != nil {
			return err
		}
		if err := o.completeStep(idx); err != nil {
			return err
		}
		o.setProgress(o.opts.ExportProgress+(i+1)*span/rest, stepDefs[idx].name)
	}

	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = msgFailed
		}
		return &RemoteFailure{Message: msg, Response: &resp}
	}

	o.mergeRemoteLogs(resp.Logs)

	var ok, total int
	if resp.Statements != nil {
		ok, total = resp.Statements.Successful, resp.Statements.Total
	}
	o.setProgress(100, msgCompleted)
	o.log.Success(fmt.Sprintf("Clone finished: %d/%d statements executed successfully", ok, total))
	o.notify.Notify(runlog.Success, msgCompleted)
	return nil
}

// fail flips the running step to error and records err.
func (o *Orchestrator) fail(err error) {
	o.mu.Lock()
	for i := range o.steps {
		if o.steps[i].Status == Running {
			_ = o.steps[i].Transition(Errored)
		}
	}
	msg := err.Error()
	if msg == "" {
		msg = msgFailed
	}
	o.status = msg
	o.mu.Unlock()

	o.log.Error(msg)
	o.mergeRemoteLogs(attachedLogs(err))
	o.notify.Notify(runlog.Error, msg)
	o.changed()
}

// attachedLogs extracts remote log lines carried by err, if any.
func attachedLogs(err error) []RemoteLog {
	var rf *RemoteFailure
	if errors.As(err, &rf) && rf.Response != nil {
		return rf.Response.Logs
	}
	var ie *remote.InvokeError
	if errors.As(err, &ie) {
		var resp Response
		if ie.DecodeLast(&resp) {
			return resp.Logs
		}
	}
	return nil
}

func (o *Orchestrator) mergeRemoteLogs(logs []RemoteLog) {
	for _, l := range logs {
		o.log.Add(runlog.ParseLevel(l.Level), l.Message, l.Details)
	}
	if len(logs) > 0 {
		o.changed()
	}
}

func (o *Orchestrator) startStep(i int) error {
	o.mu.Lock()
	err := o.steps[i].Transition(Running)
	o.mu.Unlock()
	if err == nil {
		slog.Debug("clone step running", "step", stepDefs[i].id)
		o.changed()
	}
	return err
}

func (o *Orchestrator) completeStep(i int) error {
	o.mu.Lock()
	err := o.steps[i].Transition(Completed)
	o.mu.Unlock()
	if err == nil {
		slog.Debug("clone step completed", "step", stepDefs[i].id)
		o.changed()
	}
	return err
}

func (o *Orchestrator) setProgress(p int, status string) {
	o.mu.Lock()
	o.progress = p
	o.status = status
	o.mu.Unlock()
	o.changed()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
