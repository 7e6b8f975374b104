package cluster

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"gluster-e2e/common"
	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/gluster"
	"gluster-e2e/common/remote"
	"gluster-e2e/common/waiter"

	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// AreBricksOnline reports whether every brick is listed online in volume
// status. A brick missing from the status is offline.
func AreBricksOnline(r remote.Runner, mnode, volname string, bricks []string) (bool, error) {
	st, err := gluster.GetVolStatus(r, mnode, volname)
	if err != nil {
		return false, err
	}
	online := true
	for _, b := range bricks {
		if n := st.Brick(b); n == nil || !n.Online() {
			logf.Log.Info("Brick is not online", "volume", volname, "brick", b)
			online = false
		}
	}
	return online, nil
}

// AreBricksOffline reports whether every brick is listed offline or absent.
func AreBricksOffline(r remote.Runner, mnode, volname string, bricks []string) (bool, error) {
	st, err := gluster.GetVolStatus(r, mnode, volname)
	if err != nil {
		return false, err
	}
	offline := true
	for _, b := range bricks {
		if n := st.Brick(b); n != nil && n.Online() {
			logf.Log.Info("Brick is still online", "volume", volname, "brick", b)
			offline = false
		}
	}
	return offline, nil
}

func splitByState(r remote.Runner, mnode, volname string) ([]string, []string, error) {
	all, err := GetAllBricks(r, mnode, volname)
	if err != nil {
		return nil, nil, err
	}
	st, err := gluster.GetVolStatus(r, mnode, volname)
	if err != nil {
		return nil, nil, err
	}
	var online, offline []string
	for _, b := range all {
		if n := st.Brick(b); n != nil && n.Online() {
			online = append(online, b)
		} else {
			offline = append(offline, b)
		}
	}
	return online, offline, nil
}

func GetOnlineBricksList(r remote.Runner, mnode, volname string) ([]string, error) {
	online, _, err := splitByState(r, mnode, volname)
	return online, err
}

func GetOfflineBricksList(r remote.Runner, mnode, volname string) ([]string, error) {
	_, offline, err := splitByState(r, mnode, volname)
	return offline, err
}

// OfflineMethod is a way of killing a brick process
type OfflineMethod string

const (
	// OfflineServiceKill finds the brick process by its pid file argument
	// and sends SIGTERM, falling back to SIGKILL.
	OfflineServiceKill OfflineMethod = "service_kill"
	// OfflinePidFileKill kills the pid recorded in the brick pid file.
	OfflinePidFileKill OfflineMethod = "pid_file_kill"
)

var AllOfflineMethods = []OfflineMethod{OfflineServiceKill, OfflinePidFileKill}

// OnlineMethod is a way of restarting brick processes
type OnlineMethod string

const (
	OnlineGlusterdRestart  OnlineMethod = "glusterd_restart"
	OnlineVolumeStartForce OnlineMethod = "volume_start_force"
)

var AllOnlineMethods = []OnlineMethod{OnlineGlusterdRestart, OnlineVolumeStartForce}

// BrickPidFile is where glusterd records the pid of a brick process.
func BrickPidFile(volname, brick string) string {
	host, path := gluster.SplitBrick(brick)
	return common.GlusterdWorkDir + "/vols/" + volname + "/run/" + host + strings.ReplaceAll(path, "/", "-") + ".pid"
}

func offlineCommand(volname, brick string, method OfflineMethod) string {
	host, path := gluster.SplitBrick(brick)
	switch method {
	case OfflinePidFileKill:
		return "kill -9 $(cat " + cmdline.Quote(BrickPidFile(volname, brick)) + ")"
	default:
		pattern := cmdline.Quote(host + strings.ReplaceAll(path, "/", "-") + ".pid")
		return "pid=$(ps -ef | grep -ve grep | grep -e " + pattern + " | awk '{print $2}') && kill -15 $pid || kill -9 $pid"
	}
}

// pick chooses one of n methods, the first one without a random source.
func pick(rng *rand.Rand, n int) int {
	if rng == nil || n <= 1 {
		return 0
	}
	return rng.Intn(n)
}

// BringBricksOffline kills the brick processes, choosing the method for each
// brick at random from methods. Pass a seeded rng for reproducible runs.
func BringBricksOffline(r remote.Runner, volname string, bricks []string, methods []OfflineMethod, rng *rand.Rand) bool {
	if len(methods) == 0 {
		methods = AllOfflineMethods
	}
	ok := true
	for _, b := range bricks {
		method := methods[pick(rng, len(methods))]
		host, _ := gluster.SplitBrick(b)
		logf.Log.Info("Bringing brick offline", "volume", volname, "brick", b, "method", method)
		if res := r.Run(host, offlineCommand(volname, b, method)); !res.Ok() {
			logf.Log.Info("Unable to kill brick", "brick", b, "method", method, "rc", res.Rc, "stderr", res.Stderr, "error", res.Err)
			ok = false
		}
	}
	return ok
}

// BringBricksOnline restarts brick processes. A volume start force restarts
// every brick, so the remaining bricks are skipped once it is chosen.
func BringBricksOnline(r remote.Runner, mnode, volname string, bricks []string, methods []OnlineMethod, rng *rand.Rand) bool {
	if len(methods) == 0 {
		methods = AllOnlineMethods
	}
	for _, b := range bricks {
		method := methods[pick(rng, len(methods))]
		logf.Log.Info("Bringing brick online", "volume", volname, "brick", b, "method", method)
		if method == OnlineVolumeStartForce {
			if res := gluster.VolumeStart(r, mnode, volname, true); !res.Ok() {
				logf.Log.Info("volume start force failed", "volume", volname, "rc", res.Rc, "stderr", res.Stderr)
				return false
			}
			return true
		}
		host, _ := gluster.SplitBrick(b)
		if !gluster.RestartGlusterd(r, []string{host}) {
			return false
		}
		if !WaitForGlusterdToStart(r.Context(), r, []string{host}, common.DefaultGlusterdStartTimeoutSecs*time.Second) {
			return false
		}
	}
	return true
}

// WaitForBricksToBeOnline waits until every brick of volname is online.
func WaitForBricksToBeOnline(ctx context.Context, r remote.Runner, mnode, volname string, timeout time.Duration) bool {
	bricks, err := GetAllBricks(r, mnode, volname)
	if err != nil {
		return false
	}
	return waiter.For(ctx, "bricks of "+volname+" online", timeout, 10*time.Second, func() (bool, error) {
		return AreBricksOnline(r, mnode, volname, bricks)
	})
}
