// Package workload starts IO on client mounts, validates how it ended and
// computes arequal checksums of mounts and bricks.
package workload

import (
	"fmt"
	"strings"
	"time"

	"gluster-e2e/common"
	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/mount"
	"gluster-e2e/common/remote"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// IOProc is IO running in the background on the client of Mount.
type IOProc struct {
	Mount *mount.GlusterMount
	Proc  remote.AsyncProc
}

// StartIO runs cmd in the background on the client of m.
func StartIO(r remote.Runner, m *mount.GlusterMount, cmd string) *IOProc {
	logf.Log.Info("Starting IO", "mount", m.String(), "cmd", cmd)
	return &IOProc{Mount: m, Proc: r.RunAsync(m.Client, cmd)}
}

func sizeBytes(size string) (uint64, error) {
	n, err := humanize.ParseBytes(size)
	if err != nil {
		return 0, errors.Wrapf(err, "size %q", size)
	}
	return n, nil
}

// CreateFilesCmd writes count files named <prefix><N> of size random bytes
// under dir, replacing existing files of the same name.
func CreateFilesCmd(dir, prefix string, count int, size string) (string, error) {
	n, err := sizeBytes(size)
	if err != nil {
		return "", err
	}
	loop := fmt.Sprintf("for i in $(seq 0 %d); do dd if=/dev/urandom of=%s/%s$i bs=%d count=1 status=none || exit 1; done",
		count-1, cmdline.Quote(dir), cmdline.Quote(prefix), n)
	return cmdline.New("mkdir", "-p", dir).Raw("&&").Raw(loop).String(), nil
}

// AppendFilesCmd appends size random bytes to every regular file directly
// under dir.
func AppendFilesCmd(dir, size string) (string, error) {
	n, err := sizeBytes(size)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("for f in %s/*; do [ -f \"$f\" ] || continue; dd if=/dev/urandom bs=%d count=1 status=none >> \"$f\" || exit 1; done",
		cmdline.Quote(dir), n), nil
}

// WriteFileCmd writes one file of size bytes with 1MiB blocks, the last
// block holding the remainder.
func WriteFileCmd(fqpath, size string) (string, error) {
	n, err := sizeBytes(size)
	if err != nil {
		return "", err
	}
	const block = 1 << 20
	if n%block == 0 {
		return cmdline.New("dd", "if=/dev/urandom", "of="+fqpath, "bs=1M", fmt.Sprintf("count=%d", n/block), "status=none").String(), nil
	}
	return cmdline.New("head", "-c", fmt.Sprint(n), "/dev/urandom").Raw(">").Arg(fqpath).String(), nil
}

// CreateFiles starts CreateFilesCmd on the client of m.
func CreateFiles(r remote.Runner, m *mount.GlusterMount, dir, prefix string, count int, size string) (*IOProc, error) {
	cmd, err := CreateFilesCmd(dir, prefix, count, size)
	if err != nil {
		return nil, err
	}
	return StartIO(r, m, cmd), nil
}

// ValidateIOProcs waits for every proc and reports whether all exited zero.
func ValidateIOProcs(procs []*IOProc) bool {
	ok := true
	for _, p := range procs {
		res := p.Proc.Wait()
		if !res.Ok() {
			logf.Log.Info("IO failed", "mount", p.Mount.String(), "rc", res.Rc, "stderr", res.Stderr, "error", res.Err)
			ok = false
		}
	}
	return ok
}

// IsIOProcsFailWithError reports whether every proc failed with msg in its
// stderr.
func IsIOProcsFailWithError(procs []*IOProc, msg string) bool {
	ok := true
	for _, p := range procs {
		res := p.Proc.Wait()
		if res.Ok() {
			logf.Log.Info("IO succeeded, expected failure", "mount", p.Mount.String(), "expected", msg)
			ok = false
			continue
		}
		if !strings.Contains(res.Stderr, msg) {
			logf.Log.Info("IO failed differently", "mount", p.Mount.String(), "expected", msg, "stderr", res.Stderr)
			ok = false
		}
	}
	return ok
}

// IsIOProcsFailWithTransportError expects a disconnected transport.
func IsIOProcsFailWithTransportError(procs []*IOProc) bool {
	return IsIOProcsFailWithError(procs, common.ErrTransportNotConnected)
}

// IsIOProcsFailWithROFS expects a read-only file system.
func IsIOProcsFailWithROFS(procs []*IOProc) bool {
	return IsIOProcsFailWithError(procs, common.ErrReadOnlyFs)
}

// WaitForIOToComplete joins every proc without judging the outcome. Procs
// still running after timeout are terminated.
func WaitForIOToComplete(procs []*IOProc, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	complete := true
	for _, p := range procs {
		select {
		case <-p.Proc.Done():
		case <-deadline.C:
			logf.Log.Info("IO still running, terminating", "mount", p.Mount.String(), "cmd", p.Proc.Cmd())
			p.Proc.Terminate(5 * time.Second)
			complete = false
		}
	}
	if !complete {
		for _, p := range procs {
			select {
			case <-p.Proc.Done():
			default:
				p.Proc.Terminate(5 * time.Second)
			}
		}
	}
	return complete
}
