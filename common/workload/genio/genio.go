// Package genio runs a set of IO workloads against a directory until the
// file system reaches a fill percentage or a timeout elapses.
package genio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	shlex "github.com/flynn-archive/go-shlex"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// StopReason tells why a run ended.
type StopReason string

const (
	ReasonPercent   StopReason = "percent"
	ReasonTimeout   StopReason = "timeout"
	ReasonDone      StopReason = "workloads done"
	ReasonCancelled StopReason = "cancelled"
)

// Workload is one command run in its own directory under the target path.
// {dir} in Cmd is replaced with that directory.
type Workload struct {
	Name string `yaml:"name"`
	Cmd  string `yaml:"cmd"`
	// Loop restarts the command each time it exits zero.
	Loop bool `yaml:"loop"`
}

type Config struct {
	Path         string        `yaml:"path"`
	Percent      float64       `yaml:"percent"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Workloads    []Workload    `yaml:"workloads"`
}

func (c *Config) Validate() error {
	if c.Path == "" {
		return errors.New("no target path")
	}
	if c.Percent <= 0 || c.Percent > 100 {
		return errors.Errorf("fill percent %v out of range", c.Percent)
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if len(c.Workloads) == 0 {
		return errors.New("no workloads")
	}
	seen := map[string]bool{}
	for _, w := range c.Workloads {
		if w.Name == "" || strings.ContainsRune(w.Name, '/') {
			return errors.Errorf("bad workload name %q", w.Name)
		}
		if seen[w.Name] {
			return errors.Errorf("duplicate workload %q", w.Name)
		}
		seen[w.Name] = true
		if _, err := shlex.Split(w.Cmd); err != nil {
			return errors.Wrapf(err, "workload %s", w.Name)
		}
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	return nil
}

// UsageFunc returns the used percentage of the file system holding a path.
type UsageFunc func(path string) (float64, error)

// DiskUsagePercent computes usage the way df does, counting blocks reserved
// for root as unavailable.
func DiskUsagePercent(path string) (float64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, errors.Wrapf(err, "statfs %s", path)
	}
	used := st.Blocks - st.Bfree
	total := used + st.Bavail
	if total == 0 {
		return 0, nil
	}
	logf.Log.V(1).Info("Usage", "path", path, "used", humanize.IBytes(used*uint64(st.Bsize)),
		"avail", humanize.IBytes(st.Bavail*uint64(st.Bsize)))
	return float64(used) * 100 / float64(total), nil
}

// CheckPercentOrTimeout polls usage until it reaches percent or timeout
// elapses. It returns false only when ctx ends first.
func CheckPercentOrTimeout(ctx context.Context, path string, percent float64, timeout, interval time.Duration, usage UsageFunc) (bool, StopReason) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		p, err := usage(path)
		if err != nil {
			logf.Log.Info("Usage check failed", "path", path, "error", err)
		} else if p >= percent {
			logf.Log.Info("Fill percent reached", "path", path, "percent", fmt.Sprintf("%.1f", p))
			return true, ReasonPercent
		}
		select {
		case <-ctx.Done():
			return false, ReasonCancelled
		case <-deadline.C:
			logf.Log.Info("Timeout reached", "path", path, "timeout", timeout)
			return true, ReasonTimeout
		case <-ticker.C:
		}
	}
}

// Result of Run
type Result struct {
	Reason StopReason
	// Runs counts completed command runs per workload.
	Runs map[string]int
}

// Runner starts and stops workload commands.
type Runner struct {
	cfg   Config
	usage UsageFunc

	mu   sync.Mutex
	runs map[string]int
}

func NewRunner(cfg Config, usage UsageFunc) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if usage == nil {
		usage = DiskUsagePercent
	}
	return &Runner{cfg: cfg, usage: usage, runs: map[string]int{}}, nil
}

func (r *Runner) command(ctx context.Context, w Workload, dir string) (*exec.Cmd, error) {
	args, err := shlex.Split(strings.ReplaceAll(w.Cmd, "{dir}", dir))
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, errors.Errorf("workload %s: empty command", w.Name)
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// the whole process group, workloads fork helpers
		return unix.Kill(-cmd.Process.Pid, unix.SIGTERM)
	}
	cmd.WaitDelay = 10 * time.Second
	return cmd, nil
}

func (r *Runner) work(ctx context.Context, w Workload) error {
	dir := filepath.Join(r.cfg.Path, w.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "workload %s", w.Name)
	}
	for {
		cmd, err := r.command(ctx, w, dir)
		if err != nil {
			return err
		}
		logf.Log.Info("Starting workload", "name", w.Name, "cmd", cmd.String())
		err = cmd.Run()
		if ctx.Err() != nil {
			// stopped by the watchdog, not a workload failure
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "workload %s", w.Name)
		}
		r.mu.Lock()
		r.runs[w.Name]++
		r.mu.Unlock()
		if !w.Loop {
			return nil
		}
	}
}

// Run starts every workload and stops them all when the watchdog fires.
// Workloads killed by the stop are not failures; a workload exiting
// non-zero on its own is.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	stopCtx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(stopCtx)
	for _, w := range r.cfg.Workloads {
		w := w
		g.Go(func() error { return r.work(gctx, w) })
	}

	workersDone := make(chan error, 1)
	go func() { workersDone <- g.Wait() }()

	watchCtx, stopWatch := context.WithCancel(stopCtx)
	defer stopWatch()
	fired := make(chan StopReason, 1)
	go func() {
		if ok, reason := CheckPercentOrTimeout(watchCtx, r.cfg.Path, r.cfg.Percent, r.cfg.Timeout, r.cfg.PollInterval, r.usage); ok {
			fired <- reason
		}
	}()

	var reason StopReason
	var err error
	select {
	case reason = <-fired:
		stop()
		err = <-workersDone
	case err = <-workersDone:
		stopWatch()
		reason = ReasonDone
		if ctx.Err() != nil {
			reason = ReasonCancelled
		}
	}
	r.mu.Lock()
	runs := make(map[string]int, len(r.runs))
	for k, v := range r.runs {
		runs[k] = v
	}
	r.mu.Unlock()
	return Result{Reason: reason, Runs: runs}, err
}
