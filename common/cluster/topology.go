// Package cluster models volumes, bricks, subvolumes and daemons on top of
// the CLI adapters, and provides the predicates, waiters and fault
// injection the suites are built from.
package cluster

import (
	"strings"

	"gluster-e2e/common"
	"gluster-e2e/common/gluster"
	"gluster-e2e/common/remote"
)

// Subvols of a volume. Tier volumes fill Hot and Cold, every other type
// fills Volume.
type Subvols struct {
	Volume [][]string
	Hot    [][]string
	Cold   [][]string
}

// All returns the subvolumes in DHT order.
func (s Subvols) All() [][]string {
	if len(s.Hot) != 0 || len(s.Cold) != 0 {
		return append(append([][]string{}, s.Hot...), s.Cold...)
	}
	return s.Volume
}

func group(bricks []gluster.Brick, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var out [][]string
	for i := 0; i < len(bricks); i += size {
		end := i + size
		if end > len(bricks) {
			end = len(bricks)
		}
		var sv []string
		for _, b := range bricks[i:end] {
			sv = append(sv, b.Name)
		}
		out = append(out, sv)
	}
	return out
}

// SubvolsOf splits a volume's bricks into subvolumes.
func SubvolsOf(v *gluster.VolumeInfo) Subvols {
	if v.IsTier() {
		cold := v.ColdReplicaCount
		if v.ColdDisperseCount > 0 {
			cold = v.ColdDisperseCount
		}
		return Subvols{Hot: group(v.HotBricks, v.HotReplicaCount), Cold: group(v.ColdBricks, cold)}
	}
	return Subvols{Volume: group(v.Bricks, v.SubvolSize())}
}

// GetSubvols returns the subvolumes of volname.
func GetSubvols(r remote.Runner, mnode, volname string) (Subvols, error) {
	v, err := gluster.GetVolume(r, mnode, volname)
	if err != nil {
		return Subvols{}, err
	}
	return SubvolsOf(v), nil
}

// GetAllBricks returns every brick of volname as host:/path.
func GetAllBricks(r remote.Runner, mnode, volname string) ([]string, error) {
	v, err := gluster.GetVolume(r, mnode, volname)
	if err != nil {
		return nil, err
	}
	return v.BrickNames(), nil
}

func brickNames(bricks []gluster.Brick) []string {
	var out []string
	for _, b := range bricks {
		out = append(out, b.Name)
	}
	return out
}

func GetHotTierBricks(r remote.Runner, mnode, volname string) ([]string, error) {
	v, err := gluster.GetVolume(r, mnode, volname)
	if err != nil {
		return nil, err
	}
	return brickNames(v.HotBricks), nil
}

func GetColdTierBricks(r remote.Runner, mnode, volname string) ([]string, error) {
	v, err := gluster.GetVolume(r, mnode, volname)
	if err != nil {
		return nil, err
	}
	return brickNames(v.ColdBricks), nil
}

// VolumeTypeOf classifies a volume the way volume shapes are requested.
func VolumeTypeOf(v *gluster.VolumeInfo) common.VolumeType {
	switch strings.ToLower(v.TypeStr) {
	case "distribute":
		return common.VolDistributed
	case "replicate":
		if v.ArbiterCount > 0 {
			return common.VolArbiter
		}
		return common.VolReplicated
	case "distributed-replicate":
		if v.ArbiterCount > 0 {
			return common.VolDistributedArbiter
		}
		return common.VolDistributedReplicated
	case "disperse":
		return common.VolDispersed
	case "distributed-disperse":
		return common.VolDistributedDispersed
	case "tier":
		return common.VolTier
	}
	return common.VolumeType(strings.ToLower(v.TypeStr))
}

func GetVolumeType(r remote.Runner, mnode, volname string) (common.VolumeType, error) {
	v, err := gluster.GetVolume(r, mnode, volname)
	if err != nil {
		return "", err
	}
	return VolumeTypeOf(v), nil
}

// IsDistributeVolume reports whether volname is a pure distribute volume,
// which has no self-heal.
func IsDistributeVolume(r remote.Runner, mnode, volname string) (bool, error) {
	t, err := GetVolumeType(r, mnode, volname)
	if err != nil {
		return false, err
	}
	return t == common.VolDistributed, nil
}

// brickHosts returns the distinct hosts of bricks in first-seen order.
func brickHosts(bricks []string) []string {
	seen := map[string]bool{}
	var hosts []string
	for _, b := range bricks {
		h, _ := gluster.SplitBrick(b)
		if !seen[h] {
			seen[h] = true
			hosts = append(hosts, h)
		}
	}
	return hosts
}
