// Package fakeremote provides a scripted remote.Runner for unit tests of the
// layers above the executor.
package fakeremote

import (
	"context"
	"regexp"
	"sync"
	"time"

	"gluster-e2e/common/remote"
)

type Call struct {
	Host  string
	User  string
	Cmd   string
	Async bool
}

type Upload struct {
	Host   string
	Local  string
	Remote string
}

type rule struct {
	host    string
	pattern *regexp.Regexp
	results []remote.Result
	next    int
}

// Runner answers commands from rules registered with On. Rules registered
// later take precedence. A rule with several results returns them in order
// and then keeps returning the last one.
type Runner struct {
	mu      sync.Mutex
	rules   []*rule
	calls   []Call
	uploads []Upload
	// Strict makes unmatched commands fail with rc 127, otherwise they
	// succeed with empty output.
	Strict bool
	// UploadErr is returned by every Upload when set.
	UploadErr error
}

var _ remote.Runner = &Runner{}

func New() *Runner {
	return &Runner{}
}

func OK(stdout string) remote.Result {
	return remote.Result{Rc: 0, Stdout: stdout}
}

func Fail(rc int, stderr string) remote.Result {
	return remote.Result{Rc: rc, Stderr: stderr}
}

func Unreachable() remote.Result {
	return remote.Result{Rc: remote.RcTransportFailure, Err: context.DeadlineExceeded}
}

// On registers results for commands on host matching pattern, an empty host
// matches every host.
func (f *Runner) On(host, pattern string, results ...remote.Result) *Runner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, &rule{host: host, pattern: regexp.MustCompile(pattern), results: results})
	return f
}

func (f *Runner) answer(host, user, cmd string, async bool) remote.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Host: host, User: user, Cmd: cmd, Async: async})
	for i := len(f.rules) - 1; i >= 0; i-- {
		r := f.rules[i]
		if (r.host != "" && r.host != host) || !r.pattern.MatchString(cmd) {
			continue
		}
		if len(r.results) == 0 {
			return remote.Result{Host: host, Cmd: cmd}
		}
		res := r.results[r.next]
		if r.next < len(r.results)-1 {
			r.next++
		}
		res.Host = host
		res.Cmd = cmd
		return res
	}
	if f.Strict {
		return remote.Result{Host: host, Cmd: cmd, Rc: 127, Stderr: "command not found"}
	}
	return remote.Result{Host: host, Cmd: cmd}
}

func (f *Runner) Run(host, cmd string) remote.Result {
	return f.answer(host, "", cmd, false)
}

func (f *Runner) RunAs(host, user, cmd string) remote.Result {
	return f.answer(host, user, cmd, false)
}

func (f *Runner) RunAsync(host, cmd string) remote.AsyncProc {
	p := &proc{host: host, cmd: cmd, done: make(chan struct{})}
	p.result = f.answer(host, "", cmd, true)
	close(p.done)
	return p
}

func (f *Runner) RunParallel(hosts []string, cmd string) map[string]remote.Result {
	results := make(map[string]remote.Result, len(hosts))
	for _, h := range hosts {
		results[h] = f.Run(h, cmd)
	}
	return results
}

func (f *Runner) RunLocal(cmd string) remote.Result {
	return f.answer("localhost", "", cmd, false)
}

func (f *Runner) Upload(host, localPath, remotePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, Upload{Host: host, Local: localPath, Remote: remotePath})
	return f.UploadErr
}

func (f *Runner) Context() context.Context {
	return context.Background()
}

func (f *Runner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsMatching returns the recorded calls whose command matches pattern.
func (f *Runner) CallsMatching(pattern string) []Call {
	re := regexp.MustCompile(pattern)
	var out []Call
	for _, c := range f.Calls() {
		if re.MatchString(c.Cmd) {
			out = append(out, c)
		}
	}
	return out
}

func (f *Runner) Uploads() []Upload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Upload(nil), f.uploads...)
}

func (f *Runner) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
	f.uploads = nil
}

type proc struct {
	host   string
	cmd    string
	result remote.Result
	done   chan struct{}
}

func (p *proc) Host() string { return p.host }
func (p *proc) Cmd() string { return p.cmd }
func (p *proc) Wait() remote.Result { return p.result }
func (p *proc) Done() <-chan struct{} { return p.done }
func (p *proc) Terminate(time.Duration) remote.Result { return p.result }
