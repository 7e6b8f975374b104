package cluster

import (
	"context"
	"time"

	"gluster-e2e/common/gluster"
	"gluster-e2e/common/remote"
	"gluster-e2e/common/waiter"

	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// IsPeerConnected reports whether every server other than mnode is in the
// pool and connected.
func IsPeerConnected(r remote.Runner, mnode string, servers []string) (bool, error) {
	peers, err := gluster.GetPoolList(r, mnode)
	if err != nil {
		return false, err
	}
	byName := map[string]gluster.Peer{}
	for _, p := range peers {
		byName[p.Hostname] = p
	}
	for _, s := range servers {
		if s == mnode {
			continue
		}
		p, ok := byName[s]
		if !ok || !p.IsConnected() {
			logf.Log.Info("Peer is not connected", "mnode", mnode, "peer", s, "state", p.StateStr)
			return false, nil
		}
	}
	return true, nil
}

func WaitForPeersToConnect(ctx context.Context, r remote.Runner, mnode string, servers []string, timeout time.Duration) bool {
	return waiter.For(ctx, "peers connected", timeout, 2*time.Second, func() (bool, error) {
		return IsPeerConnected(r, mnode, servers)
	})
}

// WaitForGlusterdToStart waits until glusterd is active on every server.
func WaitForGlusterdToStart(ctx context.Context, r remote.Runner, servers []string, timeout time.Duration) bool {
	return waiter.For(ctx, "glusterd running", timeout, time.Second, func() (bool, error) {
		return gluster.IsGlusterdRunning(r, servers)
	})
}

// PeerAttachServers adds every server not yet in the pool from mnode and
// waits for them to connect.
func PeerAttachServers(ctx context.Context, r remote.Runner, mnode string, servers []string, timeout time.Duration) bool {
	if ok, err := IsPeerConnected(r, mnode, servers); err == nil && ok {
		return true
	}
	for _, s := range servers {
		if s == mnode {
			continue
		}
		if res := gluster.PeerAttach(r, mnode, s); !res.Ok() {
			logf.Log.Info("peer attach failed", "mnode", mnode, "peer", s, "rc", res.Rc, "stderr", res.Stderr)
			return false
		}
	}
	return WaitForPeersToConnect(ctx, r, mnode, servers, timeout)
}
