package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gluster-e2e/common"
	"gluster-e2e/common/cmdline"

	"github.com/google/uuid"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

type asyncProc struct {
	e       *Executor
	host    string
	user    string
	cmd     string
	pidFile string
	sess    Session

	done   chan struct{}
	once   sync.Once
	result Result
}

// RunAsync starts cmd without waiting for it. On POSIX hosts the command is
// wrapped so that its process group id is recorded in a pid file, which lets
// Terminate reach every process the command spawned.
func (e *Executor) RunAsync(host, cmd string) AsyncProc {
	return e.RunAsyncAs(host, e.userFor(host), cmd)
}

func (e *Executor) RunAsyncAs(host, user, cmd string) AsyncProc {
	p := &asyncProc{
		e:    e,
		host: host,
		user: user,
		cmd:  cmd,
		done: make(chan struct{}),
	}
	wrapped := cmd
	if e.platformFor(host) != common.PlatformWindows {
		p.pidFile = fmt.Sprintf("/tmp/gluster-e2e-%s.pid", uuid.New().String())
		wrapped = wrapWithPidFile(cmd, p.pidFile)
	}
	logf.Log.Info("Starting async", "host", host, "cmd", cmd)
	sess, err := e.transport.Start(e.ctx, host, user, wrapped)
	if err != nil {
		p.finish(transportFailure(host, cmd, err))
		return p
	}
	p.sess = sess
	go func() {
		res := waitSession(e.ctx, sess, host, cmd)
		p.removePidFile()
		p.finish(res)
	}()
	return p
}

func wrapWithPidFile(cmd, pidFile string) string {
	inner := "echo $$ > " + pidFile + "; exec " + cmdline.ShellWrap(cmd)
	return cmdline.ShellWrap(inner)
}

func (p *asyncProc) finish(res Result) {
	p.once.Do(func() {
		p.result = res
		close(p.done)
	})
}

func (p *asyncProc) Host() string { return p.host }

func (p *asyncProc) Cmd() string { return p.cmd }

func (p *asyncProc) Done() <-chan struct{} { return p.done }

func (p *asyncProc) Wait() Result {
	<-p.done
	return p.result
}

func (p *asyncProc) Terminate(grace time.Duration) Result {
	select {
	case <-p.done:
		return p.result
	default:
	}
	logf.Log.Info("Terminating async", "host", p.host, "cmd", p.cmd)
	p.signal(SigTerm)
	select {
	case <-p.done:
		return p.result
	case <-time.After(grace):
	}
	logf.Log.Info("Async command ignored SIGTERM, killing", "host", p.host, "cmd", p.cmd)
	p.signal(SigKill)
	select {
	case <-p.done:
	case <-time.After(grace):
		if p.sess != nil {
			_ = p.sess.Close()
		}
		<-p.done
	}
	return p.result
}

func (p *asyncProc) signal(sig Signal) {
	if p.pidFile == "" {
		if p.sess != nil {
			_ = p.sess.Signal(sig)
		}
		return
	}
	kill := fmt.Sprintf("pid=$(cat %[1]s 2>/dev/null) && { kill -%[2]s -- -$pid 2>/dev/null || { pkill -%[2]s -P $pid; kill -%[2]s $pid; }; }",
		p.pidFile, sig)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res := execute(ctx, p.e.transport, p.host, p.user, kill)
	if !res.Ok() {
		logf.Log.Info("Signalling async command failed", "host", p.host, "signal", sig, "rc", res.Rc, "stderr", res.Stderr, "error", res.Err)
	}
}

func (p *asyncProc) removePidFile() {
	if p.pidFile == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = execute(ctx, p.e.transport, p.host, p.user, "rm -f "+p.pidFile)
}
