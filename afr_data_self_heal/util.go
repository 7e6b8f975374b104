package afr_data_self_heal

import (
	"context"

	"gluster-e2e/common"
	"gluster-e2e/common/cluster"
	"gluster-e2e/common/e2e_config"
	"gluster-e2e/common/gluster"
	"gluster-e2e/common/glustertest"
	"gluster-e2e/common/workload"

	. "github.com/onsi/gomega"

	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

var scn *glustertest.Scenario

func DataSelfHealTest() {
	params := e2e_config.GetConfig().AfrDataSelfHeal
	logf.Log.Info("Test", "parameters", params)

	r := glustertest.Runner()
	scn = glustertest.NewScenario(context.Background(), r, glustertest.Config(), common.VolReplicated)
	Expect(scn.SetupVolumeAndMount()).To(Succeed())
	vol := scn.Volume.Name
	m := scn.Mounts[0]
	dir := m.MountPoint + "/files"

	proc, err := workload.CreateFiles(r, m, dir, "file", params.NumFiles, params.InitialSize)
	Expect(err).ToNot(HaveOccurred())
	Expect(workload.ValidateIOProcs([]*workload.IOProc{proc})).To(BeTrue(), "creating files on %s", m.String())

	before, err := workload.CollectMountsArequal(r, scn.Mounts[:1])
	Expect(err).ToNot(HaveOccurred())
	logf.Log.Info("Arequal before overwrite", "total", before[0].Total())

	subvols, err := cluster.GetSubvols(r, scn.Mnode, vol)
	Expect(err).ToNot(HaveOccurred())
	Expect(subvols.All()).ToNot(BeEmpty())
	offline := subvols.All()[0][:1]

	Expect(cluster.BringBricksOffline(r, vol, offline, nil, scn.Rand)).To(BeTrue(), "bringing %v offline", offline)
	down, err := cluster.AreBricksOffline(r, scn.Mnode, vol, offline)
	Expect(err).ToNot(HaveOccurred())
	Expect(down).To(BeTrue(), "bricks %v still online", offline)

	// dd truncates, so rewriting with the same names replaces the content
	proc, err = workload.CreateFiles(r, m, dir, "file", params.NumFiles, params.OverwriteSize)
	Expect(err).ToNot(HaveOccurred())
	Expect(workload.ValidateIOProcs([]*workload.IOProc{proc})).To(BeTrue(), "overwriting files on %s", m.String())

	Expect(cluster.BringBricksOnline(r, scn.Mnode, vol, offline, nil, scn.Rand)).To(BeTrue(), "bringing %v online", offline)
	Expect(cluster.WaitForVolumeProcessToBeOnline(scn.Ctx, r, scn.Mnode, vol, scn.Timeouts.VolumeProcesses)).To(BeTrue())

	res := gluster.TriggerHeal(r, scn.Mnode, vol)
	Expect(res.Ok()).To(BeTrue(), "triggering heal: %s", res.String())
	Expect(cluster.MonitorHealCompletion(scn.Ctx, r, scn.Mnode, vol, scn.Timeouts.Heal, scn.Timeouts.HealInterval)).To(BeTrue(), "heal of %s did not complete", vol)

	complete, err := cluster.IsHealComplete(r, scn.Mnode, vol)
	Expect(err).ToNot(HaveOccurred())
	Expect(complete).To(BeTrue())
	splitBrain, err := cluster.IsVolumeInSplitBrain(r, scn.Mnode, vol)
	Expect(err).ToNot(HaveOccurred())
	Expect(splitBrain).To(BeFalse(), "%s is in split-brain", vol)

	for _, sv := range subvols.All() {
		sums, err := workload.CollectBricksArequal(r, sv)
		Expect(err).ToNot(HaveOccurred())
		Expect(workload.AllEqual(sums)).To(BeTrue(), "bricks %v differ after heal", sv)
	}
}
