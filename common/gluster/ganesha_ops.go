package gluster

import (
	"regexp"

	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/remote"

	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// EnableSharedStorage creates the gluster_shared_storage volume used by
// nfs-ganesha, snapshot scheduling and geo-rep.
func EnableSharedStorage(r remote.Runner, mnode string) remote.Result {
	return r.Run(mnode, "gluster volume set all cluster.enable-shared-storage enable --mode=script")
}

func DisableSharedStorage(r remote.Runner, mnode string) remote.Result {
	return r.Run(mnode, "gluster volume set all cluster.enable-shared-storage disable --mode=script")
}

func NfsGaneshaEnable(r remote.Runner, mnode string) remote.Result {
	return r.Run(mnode, "gluster nfs-ganesha enable --mode=script")
}

func NfsGaneshaDisable(r remote.Runner, mnode string) remote.Result {
	return r.Run(mnode, "gluster nfs-ganesha disable --mode=script")
}

func NfsGaneshaExportVolume(r remote.Runner, mnode, volname string) remote.Result {
	return r.Run(mnode, cmdline.New("gluster", "volume", "set", volname, "ganesha.enable", "on", "--mode=script").String())
}

func NfsGaneshaUnexportVolume(r remote.Runner, mnode, volname string) remote.Result {
	return r.Run(mnode, cmdline.New("gluster", "volume", "set", volname, "ganesha.enable", "off", "--mode=script").String())
}

// IsNfsGaneshaClusterHealthy checks pcs status on mnode for a running
// cluster with no failed resource.
func IsNfsGaneshaClusterHealthy(r remote.Runner, mnode string) bool {
	res := r.Run(mnode, "/usr/libexec/ganesha/ganesha-ha.sh --status /run/gluster/shared_storage/nfs-ganesha | grep -q ' Cluster HA Status: HEALTHY'")
	return res.Ok()
}

func ctdbCtl(r remote.Runner, servers []string, action string) bool {
	ok := true
	for host, res := range r.RunParallel(servers, "systemctl "+action+" ctdb") {
		if !res.Ok() {
			logf.Log.Info("ctdb "+action+" failed", "host", host, "rc", res.Rc, "stderr", res.Stderr)
			ok = false
		}
	}
	return ok
}

func StartCtdb(r remote.Runner, servers []string) bool {
	return ctdbCtl(r, servers, "start")
}

func StopCtdb(r remote.Runner, servers []string) bool {
	return ctdbCtl(r, servers, "stop")
}

var ctdbNodeRE = regexp.MustCompile(`(?m)^pnn:(\d+)\s+(\S+)\s+(\S+)`)

// CtdbNode is one line of ctdb status
type CtdbNode struct {
	Pnn     string
	Address string
	State   string
}

// ParseCtdbStatus parses the node lines of ctdb status.
func ParseCtdbStatus(out string) []CtdbNode {
	var nodes []CtdbNode
	for _, m := range ctdbNodeRE.FindAllStringSubmatch(out, -1) {
		nodes = append(nodes, CtdbNode{Pnn: m[1], Address: m[2], State: m[3]})
	}
	return nodes
}

// IsCtdbHealthy reports whether every ctdb node is OK as seen from mnode.
func IsCtdbHealthy(r remote.Runner, mnode string) (bool, error) {
	res := r.Run(mnode, "ctdb status")
	if !res.Ok() {
		return false, commandFailed(res, "ctdb status")
	}
	nodes := ParseCtdbStatus(res.Stdout)
	if len(nodes) == 0 {
		return false, parseFailed(res, "ctdb status", errNoCtdbNodes)
	}
	for _, n := range nodes {
		if n.State != "OK" {
			logf.Log.Info("ctdb node not healthy", "pnn", n.Pnn, "address", n.Address, "state", n.State)
			return false, nil
		}
	}
	return true, nil
}
