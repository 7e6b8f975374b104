package workload

import (
	"regexp"
	"strings"

	"gluster-e2e/common"
	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/gluster"
	"gluster-e2e/common/mount"
	"gluster-e2e/common/remote"

	"github.com/pkg/errors"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// Checksum is the output of arequal-checksum, compared as a whole.
type Checksum string

var totalRE = regexp.MustCompile(`(?m)^\s*Total\s*:\s*(\S+)\s*$`)

// Total returns the value of the last Total line, the checksum of the whole
// tree. Earlier Total lines are entry counts.
func (c Checksum) Total() string {
	m := totalRE.FindAllStringSubmatch(string(c), -1)
	if len(m) == 0 {
		return ""
	}
	return m[len(m)-1][1]
}

func arequal(r remote.Runner, host, dir string, ignore ...string) (Checksum, error) {
	cmd := cmdline.New(common.ArequalCmd, "-p", dir)
	for _, i := range ignore {
		cmd.Arg("-i", i)
	}
	res := r.Run(host, cmd.String())
	if !res.Ok() {
		return "", gluster.CommandFailed(res, "arequal")
	}
	sum := Checksum(strings.TrimSpace(res.Stdout))
	if sum.Total() == "" {
		return "", gluster.ParseFailed(res, "arequal", errors.New("no total checksum"))
	}
	return sum, nil
}

// CollectMountsArequal returns the checksum of every mount, in mount order.
// Windows mounts are not supported by the checksum tool.
func CollectMountsArequal(r remote.Runner, mounts []*mount.GlusterMount) ([]Checksum, error) {
	var sums []Checksum
	for _, m := range mounts {
		if m.Platform == common.PlatformWindows {
			return nil, errors.Errorf("arequal on windows mount %s", m.String())
		}
		sum, err := arequal(r, m.Client, m.MountPoint, ".trashcan")
		if err != nil {
			return nil, err
		}
		sums = append(sums, sum)
	}
	return sums, nil
}

// CollectBricksArequal returns the checksum of every brick, leaving out the
// internal directories of the brick.
func CollectBricksArequal(r remote.Runner, bricks []string) ([]Checksum, error) {
	var sums []Checksum
	for _, b := range bricks {
		host, p := gluster.SplitBrick(b)
		sum, err := arequal(r, host, p, ".glusterfs", ".landfill", ".trashcan")
		if err != nil {
			return nil, err
		}
		sums = append(sums, sum)
	}
	return sums, nil
}

// AllEqual reports whether every checksum equals the first. The whole
// report is compared, so entry counts and metadata checksums must match
// as well as the final total.
func AllEqual(sums []Checksum) bool {
	for i := 1; i < len(sums); i++ {
		if strings.TrimSpace(string(sums[i])) != strings.TrimSpace(string(sums[0])) {
			logf.Log.Info("Checksum mismatch", "first", sums[0].Total(), "index", i, "other", sums[i].Total())
			return false
		}
	}
	return len(sums) != 0
}

// InstallArequal builds arequal from repo on hosts lacking the tool.
func InstallArequal(r remote.Runner, hosts []string, repo string) bool {
	ok := true
	for _, h := range hosts {
		if r.Run(h, cmdline.New("which", common.ArequalCmd).String()).Ok() {
			continue
		}
		if repo == "" {
			logf.Log.Info("arequal missing and no repo configured", "host", h)
			ok = false
			continue
		}
		cmd := cmdline.New("curl", "-fsSL", "-o", "/etc/yum.repos.d/arequal.repo", repo).
			And(cmdline.New("yum", "-y", "install", "arequal"))
		if res := r.Run(h, cmd.String()); !res.Ok() {
			logf.Log.Info("arequal install failed", "host", h, "rc", res.Rc, "stderr", res.Stderr)
			ok = false
		}
	}
	return ok
}
