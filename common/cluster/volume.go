package cluster

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gluster-e2e/common"
	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/gluster"
	"gluster-e2e/common/remote"

	"github.com/pkg/errors"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// Shape is the requested layout of a volume. Zero counts take the defaults
// of the type.
type Shape struct {
	Type            common.VolumeType
	DistCount       int
	ReplicaCount    int
	ArbiterCount    int
	DisperseCount   int
	RedundancyCount int
	Transport       string
	Force           bool
}

var defaultShapes = map[common.VolumeType]Shape{
	common.VolDistributed:           {DistCount: 4},
	common.VolReplicated:            {ReplicaCount: 3},
	common.VolDistributedReplicated: {DistCount: 2, ReplicaCount: 3},
	common.VolDispersed:             {DisperseCount: 6, RedundancyCount: 2},
	common.VolDistributedDispersed:  {DistCount: 2, DisperseCount: 6, RedundancyCount: 2},
	common.VolArbiter:               {ReplicaCount: 3, ArbiterCount: 1},
	common.VolDistributedArbiter:    {DistCount: 2, ReplicaCount: 3, ArbiterCount: 1},
}

// WithDefaults fills the zero counts of s from the defaults of its type.
func (s Shape) WithDefaults() Shape {
	d, ok := defaultShapes[s.Type]
	if !ok {
		return s
	}
	if s.DistCount == 0 {
		s.DistCount = d.DistCount
	}
	if s.ReplicaCount == 0 {
		s.ReplicaCount = d.ReplicaCount
	}
	if s.ArbiterCount == 0 {
		s.ArbiterCount = d.ArbiterCount
	}
	if s.DisperseCount == 0 {
		s.DisperseCount = d.DisperseCount
	}
	if s.RedundancyCount == 0 {
		s.RedundancyCount = d.RedundancyCount
	}
	if s.Transport == "" {
		s.Transport = "tcp"
	}
	return s
}

// SubvolSize is the number of bricks in one subvolume.
func (s Shape) SubvolSize() int {
	switch {
	case s.Type.IsReplicated():
		return s.ReplicaCount
	case s.Type.IsDispersed():
		return s.DisperseCount
	}
	return 1
}

// BrickCount is the number of bricks needed to create the volume.
func (s Shape) BrickCount() int {
	dist := 1
	if s.Type.IsDistributed() && s.DistCount > 0 {
		dist = s.DistCount
	}
	return dist * s.SubvolSize()
}

func (s Shape) createOptions() gluster.VolumeCreateOptions {
	opts := gluster.VolumeCreateOptions{Transport: s.Transport, Force: s.Force}
	switch {
	case s.Type.IsReplicated():
		opts.ReplicaCount = s.ReplicaCount
		opts.ArbiterCount = s.ArbiterCount
	case s.Type.IsDispersed():
		opts.DisperseCount = s.DisperseCount
		opts.RedundancyCount = s.RedundancyCount
	}
	return opts
}

func brickName(server, root, volname string, n int) string {
	return fmt.Sprintf("%s:%s/%s_brick%d", server, root, volname, n)
}

// formBricks hands out count bricks round robin over servers, each server
// cycling through its brick roots. Names already in use are skipped.
func formBricks(volname string, count, first int, servers []string, brickRoots map[string][]string, inUse map[string]bool) ([]string, error) {
	var usable []string
	for _, s := range servers {
		if len(brickRoots[s]) != 0 {
			usable = append(usable, s)
		}
	}
	if len(usable) == 0 {
		return nil, errors.Errorf("no brick roots configured for servers %v", servers)
	}
	var bricks []string
	for i, n := 0, first; len(bricks) < count; n++ {
		if n-first > count+len(inUse) {
			return nil, errors.Errorf("unable to form %d unique bricks for %s", count, volname)
		}
		server := usable[i%len(usable)]
		roots := brickRoots[server]
		b := brickName(server, roots[(i/len(usable))%len(roots)], volname, n)
		if inUse[b] {
			continue
		}
		bricks = append(bricks, b)
		i++
	}
	return bricks, nil
}

// FormBricksList returns the bricks of a new volume named
// <root>/<volname>_brick<N>.
func FormBricksList(volname string, count int, servers []string, brickRoots map[string][]string) ([]string, error) {
	return formBricks(volname, count, 0, servers, brickRoots, nil)
}

// FormBricksListToAddBrick returns enough new bricks to add one subvolume to
// the existing volume, a single brick for pure distribute.
func FormBricksListToAddBrick(r remote.Runner, mnode, volname string, servers []string, brickRoots map[string][]string) ([]string, error) {
	v, err := gluster.GetVolume(r, mnode, volname)
	if err != nil {
		return nil, err
	}
	size := v.SubvolSize()
	existing := v.BrickNames()
	inUse := map[string]bool{}
	for _, b := range existing {
		inUse[b] = true
	}
	return formBricks(volname, size, len(existing), servers, brickRoots, inUse)
}

// FormBricksForReplace returns one unused brick on the host of src.
func FormBricksForReplace(r remote.Runner, mnode, volname, src string, brickRoots map[string][]string) (string, error) {
	existing, err := GetAllBricks(r, mnode, volname)
	if err != nil {
		return "", err
	}
	inUse := map[string]bool{}
	for _, b := range existing {
		inUse[b] = true
	}
	host, _ := gluster.SplitBrick(src)
	bricks, err := formBricks(volname, 1, len(existing), []string{host}, brickRoots, inUse)
	if err != nil {
		return "", err
	}
	return bricks[0], nil
}

// VolumeSpec describes a volume SetupVolume creates.
type VolumeSpec struct {
	Name       string
	Shape      Shape
	Options    map[string]string
	QuotaLimit string
	QuotaPath  string
	Uss        bool
}

func volumeExists(r remote.Runner, mnode, volname string) (bool, error) {
	names, err := gluster.GetVolumeList(r, mnode)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == volname {
			return true, nil
		}
	}
	return false, nil
}

// SetupVolume creates and starts the volume and waits for its processes. An
// existing volume of the same name is reused as is.
func SetupVolume(ctx context.Context, r remote.Runner, mnode string, servers []string, brickRoots map[string][]string, spec VolumeSpec, timeout time.Duration) error {
	exists, err := volumeExists(r, mnode, spec.Name)
	if err != nil {
		return err
	}
	if exists {
		logf.Log.Info("Volume already exists", "volume", spec.Name)
		return nil
	}
	shape := spec.Shape.WithDefaults()
	bricks, err := FormBricksList(spec.Name, shape.BrickCount(), servers, brickRoots)
	if err != nil {
		return err
	}
	logf.Log.Info("Creating volume", "volume", spec.Name, "type", shape.Type, "bricks", bricks)
	if res := gluster.VolumeCreate(r, mnode, spec.Name, bricks, shape.createOptions()); !res.Ok() {
		return gluster.CommandFailed(res, "volume create")
	}
	if res := gluster.VolumeStart(r, mnode, spec.Name, false); !res.Ok() {
		return gluster.CommandFailed(res, "volume start")
	}
	if !WaitForVolumeProcessToBeOnline(ctx, r, mnode, spec.Name, timeout) {
		return errors.Errorf("processes of volume %s are not online", spec.Name)
	}
	if len(spec.Options) != 0 {
		if err := gluster.SetVolumeOptions(r, mnode, spec.Name, spec.Options); err != nil {
			return err
		}
	}
	if spec.QuotaLimit != "" {
		if res := gluster.QuotaEnable(r, mnode, spec.Name); !res.Ok() {
			return gluster.CommandFailed(res, "quota enable")
		}
		path := spec.QuotaPath
		if path == "" {
			path = "/"
		}
		if res := gluster.QuotaLimitUsage(r, mnode, spec.Name, path, spec.QuotaLimit, ""); !res.Ok() {
			return gluster.CommandFailed(res, "quota limit-usage")
		}
	}
	if spec.Uss {
		if err := gluster.EnableUss(r, mnode, spec.Name); err != nil {
			return err
		}
	}
	return nil
}

// CleanupVolume deletes the snapshots of the volume, force stops and deletes
// it and removes its brick directories. A missing volume is not an error.
func CleanupVolume(r remote.Runner, mnode, volname string) error {
	exists, err := volumeExists(r, mnode, volname)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	bricks, err := GetAllBricks(r, mnode, volname)
	if err != nil {
		return err
	}
	if snaps, err := gluster.SnapList(r, mnode, volname); err == nil && len(snaps) != 0 {
		if res := gluster.SnapDeleteByVolume(r, mnode, volname); !res.Ok() {
			return gluster.CommandFailed(res, "snapshot delete volume")
		}
	}
	if res := gluster.VolumeStop(r, mnode, volname, true); !res.Ok() {
		logf.Log.Info("volume stop force failed, deleting anyway", "volume", volname, "rc", res.Rc, "stderr", res.Stderr)
	}
	if res := gluster.VolumeDelete(r, mnode, volname); !res.Ok() {
		return gluster.CommandFailed(res, "volume delete")
	}
	byHost := map[string][]string{}
	for _, b := range bricks {
		h, p := gluster.SplitBrick(b)
		byHost[h] = append(byHost[h], p)
	}
	hosts := make([]string, 0, len(byHost))
	for h := range byHost {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	for _, h := range hosts {
		if res := r.Run(h, cmdline.New("rm", "-rf").Arg(byHost[h]...).String()); !res.Ok() {
			return gluster.CommandFailed(res, "remove brick directories")
		}
	}
	return nil
}

// ExpandVolume adds one subvolume worth of bricks and returns them.
func ExpandVolume(r remote.Runner, mnode, volname string, servers []string, brickRoots map[string][]string, force bool) ([]string, error) {
	bricks, err := FormBricksListToAddBrick(r, mnode, volname, servers, brickRoots)
	if err != nil {
		return nil, err
	}
	logf.Log.Info("Expanding volume", "volume", volname, "bricks", bricks)
	if res := gluster.AddBrick(r, mnode, volname, bricks, gluster.AddBrickOptions{Force: force}); !res.Ok() {
		return nil, gluster.CommandFailed(res, "add-brick")
	}
	return bricks, nil
}

// ShrinkVolume removes subvolume index (negative counts from the end),
// migrating its data before the commit.
func ShrinkVolume(ctx context.Context, r remote.Runner, mnode, volname string, index int, timeout time.Duration) error {
	subvols, err := GetSubvols(r, mnode, volname)
	if err != nil {
		return err
	}
	all := subvols.All()
	if index < 0 {
		index += len(all)
	}
	if len(all) < 2 || index < 0 || index >= len(all) {
		return errors.Errorf("cannot remove subvolume %d of %d from %s", index, len(all), volname)
	}
	bricks := all[index]
	logf.Log.Info("Shrinking volume", "volume", volname, "bricks", bricks)
	if res := gluster.RemoveBrick(r, mnode, volname, bricks, gluster.RemoveBrickStart, 0); !res.Ok() {
		return gluster.CommandFailed(res, "remove-brick start")
	}
	if !WaitForRemoveBrickToComplete(ctx, r, mnode, volname, bricks, timeout) {
		return errors.Errorf("remove-brick of %v did not complete", bricks)
	}
	if res := gluster.RemoveBrick(r, mnode, volname, bricks, gluster.RemoveBrickCommit, 0); !res.Ok() {
		return gluster.CommandFailed(res, "remove-brick commit")
	}
	return nil
}

// ReplaceBrickFromVolume replaces src with a new brick on the same host and
// returns the new brick.
func ReplaceBrickFromVolume(r remote.Runner, mnode, volname, src string, brickRoots map[string][]string) (string, error) {
	dst, err := FormBricksForReplace(r, mnode, volname, src, brickRoots)
	if err != nil {
		return "", err
	}
	logf.Log.Info("Replacing brick", "volume", volname, "src", src, "dst", dst)
	if res := gluster.ReplaceBrick(r, mnode, volname, src, dst); !res.Ok() {
		return "", gluster.CommandFailed(res, "replace-brick")
	}
	return dst, nil
}
