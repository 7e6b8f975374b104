package glustertest

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"gluster-e2e/common"
	"gluster-e2e/common/cluster"
	"gluster-e2e/common/dht"
	"gluster-e2e/common/e2e_config"
	"gluster-e2e/common/gluster"
	"gluster-e2e/common/mount"
	"gluster-e2e/common/remote"
	"gluster-e2e/common/workload"

	"github.com/pkg/errors"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// ExecutionError is returned by setup and teardown, naming the step that
// failed.
type ExecutionError struct {
	Step string
	Err  error
}

func (e *ExecutionError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Timeouts of the convergence waits, from the configuration.
type Timeouts struct {
	Heal            time.Duration
	HealInterval    time.Duration
	Rebalance       time.Duration
	DaemonOnline    time.Duration
	FixLayout       time.Duration
	VolumeProcesses time.Duration
	Glusterd        time.Duration
	IO              time.Duration
}

func TimeoutsOf(cfg e2e_config.E2EConfig) Timeouts {
	t := cfg.Timeouts
	return Timeouts{
		Heal:            e2e_config.Duration(t.Heal, common.DefaultHealTimeoutSecs*time.Second),
		HealInterval:    e2e_config.Duration(t.HealInterval, 120*time.Second),
		Rebalance:       e2e_config.Duration(t.Rebalance, common.DefaultRebalanceTimeoutSecs*time.Second),
		DaemonOnline:    e2e_config.Duration(t.DaemonOnline, common.DefaultDaemonOnlineTimeoutSecs*time.Second),
		FixLayout:       e2e_config.Duration(t.FixLayout, common.DefaultFixLayoutTimeoutSecs*time.Second),
		VolumeProcesses: e2e_config.Duration(t.VolumeProcesses, common.DefaultVolProcessTimeoutSecs*time.Second),
		Glusterd:        e2e_config.Duration(t.Glusterd, common.DefaultGlusterdStartTimeoutSecs*time.Second),
		IO:              e2e_config.Duration(t.IO, time.Hour),
	}
}

type cleanup struct {
	step string
	fn   func() error
}

// Scenario owns the volume, the mounts and the background IO of one test.
// Everything it sets up is released by Teardown in reverse order.
type Scenario struct {
	Ctx      context.Context
	R        remote.Runner
	Cfg      e2e_config.E2EConfig
	Timeouts Timeouts
	Mnode    string
	Servers  []string
	Volume   cluster.VolumeSpec
	Mounts   []*mount.GlusterMount
	IOProcs  []*workload.IOProc
	Rand     *rand.Rand
	Hasher   dht.Hasher

	cleanups []cleanup
}

// VolumeName is the configured volume name or one derived from the type.
func VolumeName(cfg e2e_config.E2EConfig, voltype common.VolumeType) string {
	if cfg.Volume.Name != "" {
		return cfg.Volume.Name
	}
	return "testvol_" + strings.ReplaceAll(string(voltype), "-", "_")
}

// ShapeOf reads the shape overrides of the configuration for voltype.
func ShapeOf(cfg e2e_config.E2EConfig, voltype common.VolumeType) cluster.Shape {
	v := cfg.Volume
	return cluster.Shape{
		Type:            voltype,
		DistCount:       v.DistCount,
		ReplicaCount:    v.ReplicaCount,
		ArbiterCount:    v.ArbiterCount,
		DisperseCount:   v.DisperseCount,
		RedundancyCount: v.RedundancyCount,
		Transport:       v.Transport,
	}.WithDefaults()
}

func NewScenario(ctx context.Context, r remote.Runner, cfg e2e_config.E2EConfig, voltype common.VolumeType) *Scenario {
	s := &Scenario{
		Ctx:      ctx,
		R:        r,
		Cfg:      cfg,
		Timeouts: TimeoutsOf(cfg),
		Mnode:    cfg.Mnode,
		Servers:  cfg.Servers,
		Volume: cluster.VolumeSpec{
			Name:    VolumeName(cfg, voltype),
			Shape:   ShapeOf(cfg, voltype),
			Options: cfg.Volume.Options,
			Uss:     cfg.Volume.Uss,
		},
		Hasher: dht.NewHasher(cfg.DHT.HashMode, r, cfg.Mnode, cfg.UploadDir),
	}
	if cfg.Volume.Quota.Enable {
		s.Volume.QuotaLimit = cfg.Volume.Quota.Limit
		s.Volume.QuotaPath = cfg.Volume.Quota.Path
	}
	s.Rand = NewRand(cfg.Seed, seedName(s.Volume.Name))
	s.Mounts = s.mountObjs()
	return s
}

// seedName keys the random choices of a scenario to the running suite, so
// suites sharing a volume type do not repeat each other.
func seedName(volume string) string {
	if gTestEnv.suite == "" {
		return volume
	}
	return gTestEnv.suite + "/" + volume
}

func (s *Scenario) mountObjs() []*mount.GlusterMount {
	configs := s.Cfg.Mounts
	if len(configs) == 0 {
		for _, c := range s.Cfg.Clients {
			configs = append(configs, e2e_config.MountConfig{Protocol: string(common.MountGlusterfs), Client: c})
		}
	}
	filled := make([]e2e_config.MountConfig, len(configs))
	for i, mc := range configs {
		if mc.Volname == "" {
			mc.Volname = s.Volume.Name
		}
		if mc.Server == "" {
			mc.Server = s.Mnode
		}
		filled[i] = mc
	}
	return mount.CreateMountObjs(filled, s.Cfg.ClientsInfo)
}

// BrickRoots maps every server to its configured brick roots.
func (s *Scenario) BrickRoots() map[string][]string {
	roots := map[string][]string{}
	for name, si := range s.Cfg.ServersInfo {
		host := si.Host
		if host == "" {
			host = name
		}
		roots[host] = si.BrickRoot
	}
	return roots
}

// Defer pushes a teardown step. Steps run last in, first out.
func (s *Scenario) Defer(step string, fn func() error) {
	s.cleanups = append(s.cleanups, cleanup{step: step, fn: fn})
}

// SetupVolume creates and starts the volume and defers its cleanup.
func (s *Scenario) SetupVolume() error {
	logf.Log.Info("Setting up volume", "volume", s.Volume.Name, "shape", s.Volume.Shape)
	s.Defer("cleanup volume", func() error {
		return cluster.CleanupVolume(s.R, s.Mnode, s.Volume.Name)
	})
	err := cluster.SetupVolume(s.Ctx, s.R, s.Mnode, s.Servers, s.BrickRoots(), s.Volume, s.Timeouts.VolumeProcesses)
	if err != nil {
		return &ExecutionError{Step: "setup volume", Err: err}
	}
	return nil
}

// MountVolume mounts every mount and defers the unmount.
func (s *Scenario) MountVolume() error {
	s.Defer("unmount volume", func() error {
		if !mount.UnmountAll(s.R, s.Mounts) {
			return errors.New("not every mount could be unmounted")
		}
		return nil
	})
	if !mount.MountAll(s.R, s.Mounts) {
		return &ExecutionError{Step: "mount volume", Err: errors.Errorf("mounting %s failed", s.Volume.Name)}
	}
	return nil
}

// SetupVolumeAndMount runs SetupVolume, MountVolume and VerifyReady.
func (s *Scenario) SetupVolumeAndMount() error {
	if err := s.SetupVolume(); err != nil {
		return err
	}
	if err := s.MountVolume(); err != nil {
		return err
	}
	return s.VerifyReady()
}

// VerifyReady checks that every brick and every daemon the volume type
// needs is online and every mount is mounted.
func (s *Scenario) VerifyReady() error {
	ok, err := cluster.VerifyAllProcessOfVolumeAreOnline(s.R, s.Mnode, s.Volume.Name)
	if err != nil {
		return &ExecutionError{Step: "verify volume processes", Err: err}
	}
	if !ok {
		return &ExecutionError{Step: "verify volume processes", Err: errors.Errorf("processes of %s are not online", s.Volume.Name)}
	}
	for _, m := range s.Mounts {
		if !m.IsMounted(s.R) {
			return &ExecutionError{Step: "verify mounts", Err: errors.Errorf("%s is not mounted", m.String())}
		}
	}
	return nil
}

// AddIO records background IO for Teardown to join.
func (s *Scenario) AddIO(procs ...*workload.IOProc) {
	s.IOProcs = append(s.IOProcs, procs...)
}

// Bricks lists the bricks of the volume.
func (s *Scenario) Bricks() ([]string, error) {
	return cluster.GetAllBricks(s.R, s.Mnode, s.Volume.Name)
}

// VolumeInfo reads the current volume info.
func (s *Scenario) VolumeInfo() (*gluster.VolumeInfo, error) {
	return gluster.GetVolume(s.R, s.Mnode, s.Volume.Name)
}

// Teardown joins background IO and runs every deferred step even when an
// earlier one fails. The first failure is returned. With retainOnFailure
// set, a failed test keeps its volume and mounts.
func (s *Scenario) Teardown(failed bool) error {
	var first error
	if len(s.IOProcs) != 0 {
		if !workload.WaitForIOToComplete(s.IOProcs, s.Timeouts.IO) {
			first = &ExecutionError{Step: "wait for io", Err: errors.Errorf("io still running after %v", s.Timeouts.IO)}
		}
		s.IOProcs = nil
	}
	if failed && s.Cfg.RetainOnFailure {
		logf.Log.Info("Retaining resources of failed test", "volume", s.Volume.Name, "steps", len(s.cleanups))
		s.cleanups = nil
		return first
	}
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		c := s.cleanups[i]
		logf.Log.Info("Teardown", "step", c.step)
		if err := c.fn(); err != nil {
			logf.Log.Info("Teardown step failed", "step", c.step, "error", err)
			if first == nil {
				first = &ExecutionError{Step: c.step, Err: err}
			}
		}
	}
	s.cleanups = nil
	return first
}
