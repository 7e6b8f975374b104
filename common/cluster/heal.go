package cluster

import (
	"context"
	"strconv"
	"strings"
	"time"

	"gluster-e2e/common"
	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/gluster"
	"gluster-e2e/common/remote"
	"gluster-e2e/common/waiter"

	"github.com/pkg/errors"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// IsHealComplete reports whether heal info lists no pending entry on any
// brick. A brick that reports no count is not complete.
func IsHealComplete(r remote.Runner, mnode, volname string) (bool, error) {
	bricks, err := gluster.GetHealInfo(r, mnode, volname)
	if err != nil {
		return false, err
	}
	for _, b := range bricks {
		if b.Entries() != 0 {
			logf.Log.Info("Heal pending", "volume", volname, "brick", b.Name, "entries", b.NumberOfEntries, "status", b.Status)
			return false, nil
		}
	}
	return true, nil
}

// IsVolumeInSplitBrain reports whether any brick lists split-brain entries.
func IsVolumeInSplitBrain(r remote.Runner, mnode, volname string) (bool, error) {
	bricks, err := gluster.GetHealInfoSplitBrain(r, mnode, volname)
	if err != nil {
		return false, err
	}
	for _, b := range bricks {
		if b.Entries() > 0 {
			logf.Log.Info("Split-brain entries", "volume", volname, "brick", b.Name, "entries", b.NumberOfEntries)
			return true, nil
		}
	}
	return false, nil
}

// pendingIndexEntries counts the entries of a brick's xattrop index, ignoring
// the xattrop-<gfid> base entry.
func pendingIndexEntries(r remote.Runner, brick string) (int, error) {
	host, path := gluster.SplitBrick(brick)
	dir := path + "/" + common.XattropDir + "/"
	cmd := cmdline.New("ls", "-1", dir).
		Pipe(cmdline.New("grep", "-ve", "xattrop-")).
		Pipe(cmdline.New("wc", "-l")).String()
	res := r.Run(host, cmd)
	if res.TransportFailed() {
		return 0, gluster.CommandFailed(res, "xattrop count")
	}
	n, err := strconv.Atoi(strings.TrimSpace(res.Stdout))
	if err != nil {
		return 0, gluster.ParseFailed(res, "xattrop count", err)
	}
	return n, nil
}

// MonitorHealCompletion waits until the xattrop index of every brick is
// empty. Pure distribute volumes have nothing to heal.
func MonitorHealCompletion(ctx context.Context, r remote.Runner, mnode, volname string, timeout, interval time.Duration) bool {
	if dist, err := IsDistributeVolume(r, mnode, volname); err == nil && dist {
		logf.Log.Info("Distribute volume, nothing to heal", "volume", volname)
		return true
	}
	bricks, err := GetAllBricks(r, mnode, volname)
	if err != nil {
		return false
	}
	return waiter.For(ctx, "heal of "+volname+" complete", timeout, interval, func() (bool, error) {
		pending := 0
		for _, b := range bricks {
			n, err := pendingIndexEntries(r, b)
			if err != nil {
				return false, err
			}
			if n > 0 {
				logf.Log.Info("Heal entries pending", "brick", b, "entries", n)
			}
			pending += n
		}
		return pending == 0, nil
	})
}

// GetSelfHealDaemonPid returns the glustershd pid of each node. It fails
// unless every node runs exactly one.
func GetSelfHealDaemonPid(r remote.Runner, nodes []string) (map[string]int, error) {
	pids := map[string]int{}
	var failed []string
	for host, res := range r.RunParallel(nodes, "pgrep -f glustershd") {
		fields := strings.Fields(res.Stdout)
		if !res.Ok() || len(fields) != 1 {
			logf.Log.Info("Expected exactly one self-heal daemon", "host", host, "pids", fields, "rc", res.Rc)
			failed = append(failed, host)
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			failed = append(failed, host)
			continue
		}
		pids[host] = pid
	}
	if len(failed) != 0 {
		return pids, errors.Errorf("self-heal daemon pid not unique on %v", failed)
	}
	return pids, nil
}

// IsShdDaemonized waits until every node runs exactly one self-heal daemon.
func IsShdDaemonized(ctx context.Context, r remote.Runner, nodes []string, timeout time.Duration) bool {
	return waiter.For(ctx, "self-heal daemon daemonized", timeout, time.Second, func() (bool, error) {
		_, err := GetSelfHealDaemonPid(r, nodes)
		return err == nil, nil
	})
}

// AreAllSelfHealDaemonsOnline reports whether a self-heal daemon is online on
// every node hosting a brick of volname.
func AreAllSelfHealDaemonsOnline(r remote.Runner, mnode, volname string) (bool, error) {
	v, err := gluster.GetVolume(r, mnode, volname)
	if err != nil {
		return false, err
	}
	if VolumeTypeOf(v) == common.VolDistributed {
		return true, nil
	}
	st, err := gluster.GetVolStatus(r, mnode, volname)
	if err != nil {
		return false, err
	}
	online := 0
	for _, d := range st.Daemons(gluster.SelfHealDaemon) {
		if d.Online() {
			online++
		}
	}
	want := len(brickHosts(v.BrickNames()))
	if online != want {
		logf.Log.Info("Self-heal daemons not all online", "volume", volname, "online", online, "expected", want)
		return false, nil
	}
	return true, nil
}

func WaitForSelfHealDaemonsToBeOnline(ctx context.Context, r remote.Runner, mnode, volname string, timeout time.Duration) bool {
	return waiter.For(ctx, "self-heal daemons of "+volname+" online", timeout, 10*time.Second, func() (bool, error) {
		return AreAllSelfHealDaemonsOnline(r, mnode, volname)
	})
}
