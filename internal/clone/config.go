package clone

import (
	"time"

	"github.com/vbp1/schemaclone/internal/config"
)

// Options tunes the clone pipeline.
type Options struct {
	FunctionName   string        // remote clone-execution function
	ValidateDelay  time.Duration // pause while the validate step is shown running
	StepDelay      time.Duration // pause per synthetic step
	ExportProgress int           // progress shown while the remote call is in flight
}

// DefaultOptions returns the production timings.
func DefaultOptions() Options {
	return Options{
		FunctionName:   "clone-database",
		ValidateDelay:  500 * time.Millisecond,
		StepDelay:      300 * time.Millisecond,
		ExportProgress: 10,
	}
}

// Request is the JSON body sent to the remote clone-execution function.
// Only schema-only clones are supported: IncludeData and ResetDestination
// are always false.
type Request struct {
	Source                config.ConnectionConfig `json:"source"`
	Destination           config.ConnectionConfig `json:"destination"`
	IncludeData           bool                    `json:"includeData"`
	ResetDestination      bool                    `json:"resetDestination"`
	PreferDirectExecution bool                    `json:"preferDirectExecution"`
}

// Statements counts DDL statements applied by the remote side.
type Statements struct {
	Successful int `json:"successful"`
	Total      int `json:"total"`
}

// RemoteLog is one log line reported by the remote side.
type RemoteLog struct {
	Message string `json:"message"`
	Level   string `json:"level"`
	Details any    `json:"details,omitempty"`
}

// Response is the JSON body returned by the remote clone-execution function.
type Response struct {
	Success    bool        `json:"success"`
	Error      string      `json:"error,omitempty"`
	Statements *Statements `json:"statements,omitempty"`
	Logs       []RemoteLog `json:"logs,omitempty"`
}

// SourceReady reports whether the source can drive a clone.
func SourceReady(c config.ConnectionConfig) bool { return c.HasAPIAccess() }

// DestinationReady reports whether the destination can receive a clone:
// a direct link alone suffices, otherwise base URL plus privileged key.
func DestinationReady(c config.ConnectionConfig) bool {
	return c.HasDirectLink() || c.HasAPIAccess()
}

// NewRequest builds the clone payload for src and dst.
func NewRequest(src, dst config.ConnectionConfig) Request {
	return Request{
		Source:                src,
		Destination:           dst,
		IncludeData:           false,
		ResetDestination:      false,
		PreferDirectExecution: dst.HasDirectLink(),
	}
}
