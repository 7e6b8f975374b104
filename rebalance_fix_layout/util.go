package rebalance_fix_layout

import (
	"context"
	"strconv"
	"strings"

	"gluster-e2e/common"
	"gluster-e2e/common/cluster"
	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/dht"
	"gluster-e2e/common/e2e_config"
	"gluster-e2e/common/gluster"
	"gluster-e2e/common/glustertest"
	"gluster-e2e/common/remote"
	"gluster-e2e/common/workload"

	. "github.com/onsi/gomega"

	"github.com/pkg/errors"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

var scn *glustertest.Scenario

// dataFilesOnBrick counts regular files outside .glusterfs that are not
// linkto files.
func dataFilesOnBrick(r remote.Runner, brick string) (int, error) {
	host, p := gluster.SplitBrick(brick)
	cmd := cmdline.New("find", p, "-path", p+"/.glusterfs", "-prune", "-o", "-type", "f", "!", "-perm", "1000", "-print").
		Pipe(cmdline.New("wc", "-l")).String()
	res := r.Run(host, cmd)
	if !res.Ok() {
		return 0, errors.Errorf("counting files on %s: %s", brick, res.String())
	}
	return strconv.Atoi(strings.TrimSpace(res.Stdout))
}

func FixLayoutTest() {
	params := e2e_config.GetConfig().RebalanceFixLayout
	logf.Log.Info("Test", "parameters", params)

	r := glustertest.Runner()
	scn = glustertest.NewScenario(context.Background(), r, glustertest.Config(), common.VolDistributedArbiter)
	Expect(scn.SetupVolumeAndMount()).To(Succeed())
	vol := scn.Volume.Name
	m := scn.Mounts[0]

	proc, err := workload.CreateFiles(r, m, m.MountPoint+"/data", "file", params.NumFiles, "4KiB")
	Expect(err).ToNot(HaveOccurred())
	Expect(workload.ValidateIOProcs([]*workload.IOProc{proc})).To(BeTrue(), "creating files on %s", m.String())

	before, err := workload.CollectMountsArequal(r, scn.Mounts[:1])
	Expect(err).ToNot(HaveOccurred())

	added, err := cluster.ExpandVolume(r, scn.Mnode, vol, scn.Servers, scn.BrickRoots(), false)
	Expect(err).ToNot(HaveOccurred())
	logf.Log.Info("Added bricks", "volume", vol, "bricks", added)

	res := gluster.RebalanceStart(r, scn.Mnode, vol, gluster.RebalanceOptions{FixLayout: true})
	Expect(res.Ok()).To(BeTrue(), "starting fix-layout: %s", res.String())
	Expect(cluster.WaitForFixLayoutToComplete(scn.Ctx, r, scn.Mnode, vol, scn.Timeouts.FixLayout)).To(BeTrue(), "fix-layout of %s", vol)

	complete, err := dht.IsLayoutComplete(r, scn.Mnode, vol, "/data")
	Expect(err).ToNot(HaveOccurred())
	Expect(complete).To(BeTrue(), "layout of /data is not complete")

	after, err := workload.CollectMountsArequal(r, scn.Mounts[:1])
	Expect(err).ToNot(HaveOccurred())
	Expect(after[0].Total()).To(Equal(before[0].Total()), "arequal changed across fix-layout")

	for _, b := range added {
		n, err := dataFilesOnBrick(r, b)
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(BeZero(), "fix-layout moved %d files to %s", n, b)
	}

	st, err := gluster.GetRebalanceStatus(r, scn.Mnode, vol)
	Expect(err).ToNot(HaveOccurred())
	for _, node := range st.Nodes {
		Expect(node.Files).To(BeZero(), "rebalanced files on %s", node.NodeName)
	}
}
