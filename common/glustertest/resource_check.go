package glustertest

import (
	"errors"
	"fmt"

	"gluster-e2e/common"
	"gluster-e2e/common/cluster"
	"gluster-e2e/common/e2e_config"
	"gluster-e2e/common/gluster"
	"gluster-e2e/common/remote"

	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// ResourceCheck  Fit for purpose checks
// - glusterd runs on every server
// - every server is a connected peer
// - no volumes
// - no gluster mounts on linux clients
func ResourceCheck(r remote.Runner, cfg e2e_config.E2EConfig) error {
	var errorMsg = ""

	running, err := gluster.IsGlusterdRunning(r, cfg.Servers)
	if err != nil {
		errorMsg += fmt.Sprintf(" %v", err)
	} else if !running {
		errorMsg += " glusterd is not running on every server"
	}

	connected, err := cluster.IsPeerConnected(r, cfg.Mnode, cfg.Servers)
	if err != nil {
		errorMsg += fmt.Sprintf(" %v", err)
	} else if !connected {
		errorMsg += " not every server is a connected peer"
	}

	vols, err := gluster.GetVolumeList(r, cfg.Mnode)
	if err != nil {
		errorMsg += fmt.Sprintf(" %v", err)
	} else if len(vols) != 0 {
		errorMsg += fmt.Sprintf(" found volumes %v", vols)
	}

	for _, c := range cfg.Clients {
		if common.Platform(cfg.ClientsInfo[c].Platform) == common.PlatformWindows {
			continue
		}
		res := r.Run(c, "mount -t fuse.glusterfs,nfs")
		if !res.Ok() {
			errorMsg += fmt.Sprintf(" %s: %s", c, res.String())
		} else if res.Stdout != "" {
			errorMsg += " found gluster mounts on " + c
		}
	}

	if len(errorMsg) != 0 {
		return errors.New(errorMsg)
	}
	return nil
}

// BeforeEachCheck asserts that the cluster is fit for the test to run
func BeforeEachCheck() error {
	logf.Log.Info("BeforeEachCheck")
	err := ResourceCheck(gTestEnv.Runner, gTestEnv.Cfg)
	if err != nil {
		logf.Log.Info("BeforeEachCheck failed", "error", err)
		err = fmt.Errorf("not running test case, cluster is not \"clean\"!!!\n%v", err)
	}
	return err
}

// AfterEachCheck asserts that the test released everything it set up. A
// failed test retaining its resources is not checked.
func AfterEachCheck(failed bool) error {
	logf.Log.Info("AfterEachCheck")
	if failed && gTestEnv.Cfg.RetainOnFailure {
		logf.Log.Info("AfterEachCheck skipped, resources retained")
		return nil
	}
	err := ResourceCheck(gTestEnv.Runner, gTestEnv.Cfg)
	if err != nil {
		logf.Log.Info("AfterEachCheck failed", "error", err)
	}
	return err
}
