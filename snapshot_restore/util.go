package snapshot_restore

import (
	"context"

	"gluster-e2e/common"
	"gluster-e2e/common/e2e_config"
	"gluster-e2e/common/features"
	"gluster-e2e/common/gluster"
	"gluster-e2e/common/glustertest"
	"gluster-e2e/common/workload"

	. "github.com/onsi/gomega"

	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

var scn *glustertest.Scenario

func RestoreRoundTripTest() {
	params := e2e_config.GetConfig().SnapshotRestore
	logf.Log.Info("Test", "parameters", params)

	r := glustertest.Runner()
	scn = glustertest.NewScenario(context.Background(), r, glustertest.Config(), common.VolDistributedReplicated)
	Expect(scn.SetupVolumeAndMount()).To(Succeed())
	vol := scn.Volume.Name
	m := scn.Mounts[0]
	dir := m.MountPoint + "/files"

	proc, err := workload.CreateFiles(r, m, dir, "file", params.NumFiles, "1KiB")
	Expect(err).ToNot(HaveOccurred())
	Expect(workload.ValidateIOProcs([]*workload.IOProc{proc})).To(BeTrue(), "creating files on %s", m.String())

	before, err := workload.CollectMountsArequal(r, scn.Mounts[:1])
	Expect(err).ToNot(HaveOccurred())

	// a restore consumes the snapshot, delete whatever is left
	scn.Defer("delete snapshots", func() error {
		snaps, err := gluster.SnapList(r, scn.Mnode, vol)
		if err != nil {
			return err
		}
		for _, s := range snaps {
			if res := gluster.SnapDelete(r, scn.Mnode, s); !res.Ok() {
				return gluster.CommandFailed(res, "snapshot delete")
			}
		}
		return nil
	})
	res := gluster.SnapCreate(r, scn.Mnode, vol, params.SnapName, gluster.SnapCreateOptions{})
	Expect(res.Ok()).To(BeTrue(), "creating snapshot %s: %s", params.SnapName, res.String())

	cmd, err := workload.AppendFilesCmd(dir, "1KiB")
	Expect(err).ToNot(HaveOccurred())
	Expect(workload.ValidateIOProcs([]*workload.IOProc{workload.StartIO(r, m, cmd)})).To(BeTrue(), "appending to files")

	appended, err := workload.CollectMountsArequal(r, scn.Mounts[:1])
	Expect(err).ToNot(HaveOccurred())
	Expect(appended[0].Total()).ToNot(Equal(before[0].Total()), "appending did not change the checksum")

	err = features.RestoreSnapshot(scn.Ctx, r, scn.Mnode, vol, params.SnapName, features.RestoreOptions{
		GraphLoadWait: e2e_config.Duration(params.GraphLoadWait, 0),
		OnlineTimeout: scn.Timeouts.VolumeProcesses,
		Mounts:        scn.Mounts,
	})
	Expect(err).ToNot(HaveOccurred())

	after, err := workload.CollectMountsArequal(r, scn.Mounts[:1])
	Expect(err).ToNot(HaveOccurred())
	Expect(after[0].Total()).To(Equal(before[0].Total()), "restored data differs from the snapshot")
}
