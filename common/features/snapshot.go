package features

import (
	"context"
	"path"
	"strings"
	"time"

	"gluster-e2e/common/cluster"
	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/gluster"
	"gluster-e2e/common/mount"
	"gluster-e2e/common/remote"
	"gluster-e2e/common/waiter"

	"github.com/pkg/errors"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// RestoreStep names the step of a snapshot restore that failed.
type RestoreStep string

const (
	StepStop    RestoreStep = "stop volume"
	StepRestore RestoreStep = "restore snapshot"
	StepStart   RestoreStep = "start volume"
	StepOnline  RestoreStep = "wait for volume processes"
	StepRemount RestoreStep = "remount"
)

// RestoreError reports the failed step of RestoreSnapshot.
type RestoreError struct {
	Step RestoreStep
	Err  error
}

func (e *RestoreError) Error() string {
	return "snapshot restore: " + string(e.Step) + ": " + e.Err.Error()
}

func (e *RestoreError) Unwrap() error { return e.Err }

// RestoreOptions of RestoreSnapshot
type RestoreOptions struct {
	// GraphLoadWait is slept after the volume is online so that clients
	// pick up the restored graph.
	GraphLoadWait time.Duration
	OnlineTimeout time.Duration
	Mounts        []*mount.GlusterMount
}

// RestoreSnapshot stops volname, restores snapname onto it, starts it again
// and remounts any mount that did not survive.
func RestoreSnapshot(ctx context.Context, r remote.Runner, mnode, volname, snapname string, opts RestoreOptions) error {
	if res := gluster.VolumeStop(r, mnode, volname, false); !res.Ok() {
		return &RestoreError{StepStop, gluster.CommandFailed(res, "volume stop")}
	}
	if res := gluster.SnapRestore(r, mnode, snapname); !res.Ok() {
		return &RestoreError{StepRestore, gluster.CommandFailed(res, "snapshot restore")}
	}
	if res := gluster.VolumeStart(r, mnode, volname, false); !res.Ok() {
		return &RestoreError{StepStart, gluster.CommandFailed(res, "volume start")}
	}
	if !cluster.WaitForVolumeProcessToBeOnline(ctx, r, mnode, volname, opts.OnlineTimeout) {
		return &RestoreError{StepOnline, errors.Errorf("processes of %s not online after %v", volname, opts.OnlineTimeout)}
	}
	if opts.GraphLoadWait > 0 {
		t := time.NewTimer(opts.GraphLoadWait)
		select {
		case <-ctx.Done():
			t.Stop()
			return &RestoreError{StepRemount, ctx.Err()}
		case <-t.C:
		}
	}
	for _, m := range opts.Mounts {
		if m.IsMounted(r) {
			continue
		}
		logf.Log.Info("Remounting after restore", "mount", m.String())
		if res := m.Mount(r); !res.Ok() {
			return &RestoreError{StepRemount, gluster.CommandFailed(res, "mount "+m.String())}
		}
	}
	return nil
}

// ListSnapsDir lists the user serviceable snapshots visible in dir of a mount.
func ListSnapsDir(r remote.Runner, m *mount.GlusterMount, dir string) ([]string, error) {
	res := r.Run(m.Client, cmdline.New("ls", "-1", path.Join(m.MountPoint, dir, ".snaps")).String())
	if !res.Ok() {
		return nil, gluster.CommandFailed(res, "list .snaps")
	}
	var snaps []string
	for _, l := range strings.Split(res.Stdout, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			snaps = append(snaps, l)
		}
	}
	return snaps, nil
}

// IsSnapdOnline reports whether a snapshot daemon runs for volname on every
// node that serves bricks.
func IsSnapdOnline(r remote.Runner, mnode, volname string) (bool, error) {
	st, err := gluster.GetVolStatus(r, mnode, volname)
	if err != nil {
		return false, err
	}
	daemons := st.Daemons(gluster.SnapshotDaemon)
	if len(daemons) == 0 {
		return false, nil
	}
	for _, d := range daemons {
		if !d.Online() {
			logf.Log.Info("snapd offline", "volume", volname, "node", d.Path)
			return false, nil
		}
	}
	return true, nil
}

func WaitForSnapdToBeOnline(ctx context.Context, r remote.Runner, mnode, volname string, timeout time.Duration) bool {
	return waiter.For(ctx, "snapd of "+volname+" online", timeout, 5*time.Second, func() (bool, error) {
		return IsSnapdOnline(r, mnode, volname)
	})
}

// EnableUssAndWait turns on USS and waits for snapd.
func EnableUssAndWait(ctx context.Context, r remote.Runner, mnode, volname string, timeout time.Duration) error {
	if err := gluster.EnableUss(r, mnode, volname); err != nil {
		return err
	}
	if !WaitForSnapdToBeOnline(ctx, r, mnode, volname, timeout) {
		return errors.Errorf("snapd of %s not online after %v", volname, timeout)
	}
	return nil
}
