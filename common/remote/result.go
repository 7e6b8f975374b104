package remote

import (
	"context"
	"fmt"
	"time"
)

// Reserved return codes, remote commands only ever produce 0..255.
const (
	// RcUsageError is returned by adapters that reject an option combination
	// before dispatching anything.
	RcUsageError = -1
	// RcTransportFailure means the command outcome is unknown: the host could
	// not be reached, authentication failed, the session broke or the
	// context was cancelled.
	RcTransportFailure = -2
)

// Result of one command on one host.
type Result struct {
	Host   string
	Cmd    string
	Rc     int
	Stdout string
	Stderr string
	// Err carries the cause of a transport failure, nil otherwise.
	Err error
}

func (r Result) Ok() bool {
	return r.Rc == 0
}

func (r Result) TransportFailed() bool {
	return r.Rc == RcTransportFailure
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("host=%s cmd=%q rc=%d err=%v", r.Host, r.Cmd, r.Rc, r.Err)
	}
	return fmt.Sprintf("host=%s cmd=%q rc=%d stderr=%q", r.Host, r.Cmd, r.Rc, r.Stderr)
}

// UsageError is the result of a command that was never dispatched because
// its options were invalid.
func UsageError(host, cmd string) Result {
	return Result{Host: host, Cmd: cmd, Rc: RcUsageError}
}

func transportFailure(host, cmd string, err error) Result {
	return Result{Host: host, Cmd: cmd, Rc: RcTransportFailure, Err: err}
}

// AsyncProc is a handle on a command started with RunAsync.
type AsyncProc interface {
	Host() string
	Cmd() string
	// Wait blocks until the command completes and returns its result.
	Wait() Result
	// Done is closed when the command has completed.
	Done() <-chan struct{}
	// Terminate sends SIGTERM to the remote process group, escalates to
	// SIGKILL after grace, and returns the final result.
	Terminate(grace time.Duration) Result
}

// Runner is the remote execution substrate used by every layer above it.
// Implementations never retry, never parse output and never fail on a
// non-zero exit status.
type Runner interface {
	Run(host, cmd string) Result
	RunAs(host, user, cmd string) Result
	RunAsync(host, cmd string) AsyncProc
	RunParallel(hosts []string, cmd string) map[string]Result
	RunLocal(cmd string) Result
	Upload(host, localPath, remotePath string) error
	Context() context.Context
}
