package features

import (
	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/gluster"
	"gluster-e2e/common/remote"

	"github.com/pkg/errors"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

const (
	mountbrokerRoot  = "/var/mountbroker-root"
	mountbrokerGroup = "geogroup"
	setPemKeysScript = "/usr/libexec/glusterfs/set_geo_rep_pem_keys.sh"
)

// GeorepSession describes a master volume replicating to slave.
type GeorepSession struct {
	Mnode     string
	MasterVol string
	Slave     gluster.GeorepSlave
	// SlaveNodes receive the mountbroker setup of a non-root session.
	SlaveNodes []string
	SSHPort    int
}

func (s GeorepSession) nonRoot() bool {
	return s.Slave.User != "" && s.Slave.User != "root"
}

// SetupGeorepSession prepares keys, creates the session with push-pem and
// starts it. Non-root sessions also get a mountbroker on every slave node
// and the pem keys installed for the user.
func SetupGeorepSession(r remote.Runner, s GeorepSession) error {
	if s.nonRoot() {
		for _, node := range s.SlaveNodes {
			if res := gluster.MountbrokerSetup(r, node, mountbrokerRoot, mountbrokerGroup); !res.Ok() {
				return gluster.CommandFailed(res, "mountbroker setup")
			}
			if res := gluster.MountbrokerAdd(r, node, s.Slave.Volume, s.Slave.User); !res.Ok() {
				return gluster.CommandFailed(res, "mountbroker add")
			}
		}
		if !gluster.RestartGlusterd(r, s.SlaveNodes) {
			return errors.New("restarting glusterd on slave nodes")
		}
	}
	if res := gluster.GsecCreate(r, s.Mnode); !res.Ok() {
		return gluster.CommandFailed(res, "gsec_create")
	}
	opts := gluster.GeorepCreateOptions{PushPem: true, SSHPort: s.SSHPort}
	if res := gluster.GeorepCreate(r, s.Mnode, s.MasterVol, s.Slave, opts); !res.Ok() {
		return gluster.CommandFailed(res, "geo-replication create")
	}
	if s.nonRoot() {
		cmd := cmdline.New(setPemKeysScript, s.Slave.User, s.MasterVol, s.Slave.Volume).String()
		if res := r.Run(s.Slave.Host, cmd); !res.Ok() {
			return gluster.CommandFailed(res, "set pem keys")
		}
	}
	if res := gluster.GeorepStart(r, s.Mnode, s.MasterVol, s.Slave, false); !res.Ok() {
		return gluster.CommandFailed(res, "geo-replication start")
	}
	logf.Log.Info("Geo-replication session started", "master", s.MasterVol, "slave", s.Slave.String())
	return nil
}

// TeardownGeorepSession stops and deletes the session, continuing past a
// failed stop.
func TeardownGeorepSession(r remote.Runner, s GeorepSession) error {
	if res := gluster.GeorepStop(r, s.Mnode, s.MasterVol, s.Slave, true); !res.Ok() {
		logf.Log.Info("geo-replication stop failed", "master", s.MasterVol, "slave", s.Slave.String(), "stderr", res.Stderr)
	}
	if res := gluster.GeorepDelete(r, s.Mnode, s.MasterVol, s.Slave, false); !res.Ok() {
		return gluster.CommandFailed(res, "geo-replication delete")
	}
	return nil
}

// IsGeorepActive reports whether every pair of the session is Active or
// Passive.
func IsGeorepActive(r remote.Runner, s GeorepSession) (bool, error) {
	pairs, err := gluster.GetGeorepStatus(r, s.Mnode, s.MasterVol, s.Slave)
	if err != nil {
		return false, err
	}
	if len(pairs) == 0 {
		return false, nil
	}
	for _, p := range pairs {
		if p.Status != "Active" && p.Status != "Passive" {
			return false, nil
		}
	}
	return true, nil
}
