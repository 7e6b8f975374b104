package glustertest

import (
	"context"

	"gluster-e2e/common"
	"gluster-e2e/common/e2e_config"
	"gluster-e2e/common/gluster"
	"gluster-e2e/common/remote"

	"github.com/pkg/errors"
)

// QuotaScenario enables quota on the volume after it is created.
type QuotaScenario struct {
	*Scenario
}

func NewQuotaScenario(ctx context.Context, r remote.Runner, cfg e2e_config.E2EConfig, voltype common.VolumeType) *QuotaScenario {
	return &QuotaScenario{Scenario: NewScenario(ctx, r, cfg, voltype)}
}

// SetupVolume creates the volume, enables quota unless a configured limit
// already did, and defers disabling it.
func (q *QuotaScenario) SetupVolume() error {
	if err := q.Scenario.SetupVolume(); err != nil {
		return err
	}
	q.Defer("disable quota", func() error {
		if res := gluster.QuotaDisable(q.R, q.Mnode, q.Volume.Name); !res.Ok() {
			return gluster.CommandFailed(res, "quota disable")
		}
		return nil
	})
	if q.Volume.QuotaLimit != "" {
		return nil
	}
	if res := gluster.QuotaEnable(q.R, q.Mnode, q.Volume.Name); !res.Ok() {
		return &ExecutionError{Step: "enable quota", Err: gluster.CommandFailed(res, "quota enable")}
	}
	return nil
}

func (q *QuotaScenario) SetupVolumeAndMount() error {
	if err := q.SetupVolume(); err != nil {
		return err
	}
	if err := q.MountVolume(); err != nil {
		return err
	}
	return q.VerifyReady()
}

// NfsGaneshaScenario exports the volume through an existing nfs-ganesha
// cluster and mounts it over NFS through the virtual IPs.
type NfsGaneshaScenario struct {
	*Scenario
}

func NewNfsGaneshaScenario(ctx context.Context, r remote.Runner, cfg e2e_config.E2EConfig, voltype common.VolumeType) *NfsGaneshaScenario {
	s := NewScenario(ctx, r, cfg, voltype)
	vips := cfg.Gluster.Vips
	for i, m := range s.Mounts {
		m.Protocol = common.MountNfs
		if len(vips) != 0 {
			m.Server = vips[i%len(vips)]
		}
	}
	return &NfsGaneshaScenario{Scenario: s}
}

func (n *NfsGaneshaScenario) SetupVolume() error {
	if !n.Cfg.Gluster.EnableNfsGanesha {
		return &ExecutionError{Step: "check nfs-ganesha", Err: errors.New("nfs-ganesha is not enabled in the configuration")}
	}
	if !gluster.IsNfsGaneshaClusterHealthy(n.R, n.Mnode) {
		return &ExecutionError{Step: "check nfs-ganesha", Err: errors.New("nfs-ganesha cluster is not healthy")}
	}
	if err := n.Scenario.SetupVolume(); err != nil {
		return err
	}
	n.Defer("unexport volume", func() error {
		if res := gluster.NfsGaneshaUnexportVolume(n.R, n.Mnode, n.Volume.Name); !res.Ok() {
			return gluster.CommandFailed(res, "unexport volume")
		}
		return nil
	})
	if res := gluster.NfsGaneshaExportVolume(n.R, n.Mnode, n.Volume.Name); !res.Ok() {
		return &ExecutionError{Step: "export volume", Err: gluster.CommandFailed(res, "export volume")}
	}
	return nil
}

func (n *NfsGaneshaScenario) SetupVolumeAndMount() error {
	if err := n.SetupVolume(); err != nil {
		return err
	}
	if err := n.MountVolume(); err != nil {
		return err
	}
	return n.VerifyReady()
}
