package remote

import (
	"context"
	"time"

	"gluster-e2e/common"

	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// HostInfo is the per host login information the executor needs.
type HostInfo struct {
	User     string
	Platform common.Platform
}

// Options for NewExecutor
type Options struct {
	// DefaultUser is used for hosts without an explicit user.
	DefaultUser string
	Hosts       map[string]HostInfo
	// CommandTimeout bounds every synchronous command, 0 means unbounded.
	CommandTimeout time.Duration
	// Parallelism bounds the fan-out of RunParallel.
	Parallelism int
}

// Executor runs commands through a Transport. It is safe for concurrent use.
type Executor struct {
	ctx       context.Context
	transport Transport
	local     Transport
	opts      Options
	metrics   *Metrics
}

var _ Runner = &Executor{}

func NewExecutor(ctx context.Context, transport Transport, opts Options) *Executor {
	if opts.DefaultUser == "" {
		opts.DefaultUser = common.DefaultSuperUser
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 16
	}
	return &Executor{
		ctx:       ctx,
		transport: transport,
		local:     NewLocalTransport(),
		opts:      opts,
		metrics:   NewMetrics(),
	}
}

// WithContext returns an executor sharing the transport and connection
// cache whose commands are bound to ctx.
func (e *Executor) WithContext(ctx context.Context) *Executor {
	c := *e
	c.ctx = ctx
	return &c
}

func (e *Executor) Context() context.Context {
	return e.ctx
}

func (e *Executor) Metrics() *Metrics {
	return e.metrics
}

func (e *Executor) Close() error {
	return e.transport.Close()
}

func (e *Executor) userFor(host string) string {
	if hi, ok := e.opts.Hosts[host]; ok && hi.User != "" {
		return hi.User
	}
	return e.opts.DefaultUser
}

func (e *Executor) platformFor(host string) common.Platform {
	if hi, ok := e.opts.Hosts[host]; ok && hi.Platform != "" {
		return hi.Platform
	}
	return common.PlatformLinux
}

func (e *Executor) Run(host, cmd string) Result {
	return e.RunAs(host, e.userFor(host), cmd)
}

func (e *Executor) RunAs(host, user, cmd string) Result {
	return e.runWith(e.transport, host, user, cmd)
}

// RunLocal runs cmd on the control host.
func (e *Executor) RunLocal(cmd string) Result {
	return e.runWith(e.local, "localhost", "", cmd)
}

func (e *Executor) runWith(t Transport, host, user, cmd string) Result {
	ctx := e.ctx
	if e.opts.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.CommandTimeout)
		defer cancel()
	}
	start := time.Now()
	logf.Log.V(1).Info("Executing", "host", host, "user", user, "cmd", cmd)
	res := execute(ctx, t, host, user, cmd)
	e.metrics.observe(host, res, time.Since(start))
	switch {
	case res.TransportFailed():
		logf.Log.Info("Transport failure", "host", host, "cmd", cmd, "error", res.Err)
	case !res.Ok():
		logf.Log.V(1).Info("Command exited non-zero", "host", host, "cmd", cmd, "rc", res.Rc, "stderr", res.Stderr)
	}
	return res
}

// execute starts cmd and waits for it, abandoning the session when ctx is
// done first.
func execute(ctx context.Context, t Transport, host, user, cmd string) Result {
	sess, err := t.Start(ctx, host, user, cmd)
	if err != nil {
		return transportFailure(host, cmd, err)
	}
	return waitSession(ctx, sess, host, cmd)
}

func waitSession(ctx context.Context, sess Session, host, cmd string) Result {
	res := Result{Host: host, Cmd: cmd}
	done := make(chan struct{})
	go func() {
		res.Rc, res.Stdout, res.Stderr, res.Err = sess.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		_ = sess.Close()
		<-done
		res.Rc = RcTransportFailure
		res.Err = ctx.Err()
	}
	if res.Err != nil {
		res.Rc = RcTransportFailure
	}
	return res
}

func (e *Executor) Upload(host, localPath, remotePath string) error {
	logf.Log.Info("Uploading", "host", host, "from", localPath, "to", remotePath)
	return e.transport.Upload(e.ctx, host, e.userFor(host), localPath, remotePath)
}
