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

	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// VerifyAllProcessOfVolumeAreOnline checks that the volume is started, every
// brick is online and, for types with redundancy, every self-heal daemon is
// online.
func VerifyAllProcessOfVolumeAreOnline(r remote.Runner, mnode, volname string) (bool, error) {
	v, err := gluster.GetVolume(r, mnode, volname)
	if err != nil {
		return false, err
	}
	if !v.IsStarted() {
		logf.Log.Info("Volume is not started", "volume", volname, "status", v.StatusStr)
		return false, nil
	}
	if ok, err := AreBricksOnline(r, mnode, volname, v.BrickNames()); err != nil || !ok {
		return false, err
	}
	t := VolumeTypeOf(v)
	if t.IsReplicated() || t.IsDispersed() {
		return AreAllSelfHealDaemonsOnline(r, mnode, volname)
	}
	return true, nil
}

func WaitForVolumeProcessToBeOnline(ctx context.Context, r remote.Runner, mnode, volname string, timeout time.Duration) bool {
	return waiter.For(ctx, "processes of "+volname+" online", timeout, 10*time.Second, func() (bool, error) {
		return VerifyAllProcessOfVolumeAreOnline(r, mnode, volname)
	})
}

// DaemonRecord holds the daemon pids of one server, 0 when not running.
type DaemonRecord struct {
	Host  string
	Shd   int
	Bitd  int
	Scrub int
	Snapd int
}

func pidFromFile(r remote.Runner, host, pidFile string) int {
	cmd := cmdline.New("cat", pidFile).String()
	res := r.Run(host, cmd)
	if !res.Ok() {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(res.Stdout))
	if err != nil {
		return 0
	}
	if !r.Run(host, "kill -0 "+strconv.Itoa(pid)).Ok() {
		return 0
	}
	return pid
}

// SnapdPidFile is the pid file of the snapshot daemon of volname.
func SnapdPidFile(volname string) string {
	return common.GlusterdWorkDir + "/vols/" + volname + "/run/" + volname + "-snapd.pid"
}

// GetDaemonRecords reads the daemon pids of every server.
func GetDaemonRecords(r remote.Runner, servers []string, volname string) map[string]DaemonRecord {
	shd := map[string]int{}
	for host, res := range r.RunParallel(servers, "pgrep -f glustershd") {
		if f := strings.Fields(res.Stdout); res.Ok() && len(f) > 0 {
			shd[host], _ = strconv.Atoi(f[0])
		}
	}
	records := map[string]DaemonRecord{}
	for _, host := range servers {
		records[host] = DaemonRecord{
			Host:  host,
			Shd:   shd[host],
			Bitd:  pidFromFile(r, host, common.BitdPidFile),
			Scrub: pidFromFile(r, host, common.ScrubPidFile),
			Snapd: pidFromFile(r, host, SnapdPidFile(volname)),
		}
	}
	return records
}
