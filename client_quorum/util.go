package client_quorum

import (
	"context"
	"path"

	"gluster-e2e/common"
	"gluster-e2e/common/cluster"
	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/e2e_config"
	"gluster-e2e/common/gluster"
	"gluster-e2e/common/glustertest"
	"gluster-e2e/common/mount"
	"gluster-e2e/common/workload"

	. "github.com/onsi/gomega"

	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

var scn *glustertest.Scenario

type fileOp struct {
	name string
	cmd  string
}

// blockedOps are the operations a client must refuse without quorum.
func blockedOps(mp string) []fileOp {
	p := func(name string) string { return path.Join(mp, name) }
	return []fileOp{
		{"create", cmdline.New("touch", p("test_file")).String()},
		{"mkdir", cmdline.New("mkdir", p("user1")).String()},
		{"hard link", cmdline.New("ln", p("file0"), p("file0_hardlink")).String()},
		{"soft link", cmdline.New("ln", "-s", p("file0"), p("file0_softlink")).String()},
		{"append", cmdline.New("echo", "quorum").Raw(">>").Arg(p("file1")).String()},
		{"truncate", cmdline.New("truncate", "-s", "0", p("file2")).String()},
		{"read", cmdline.New("cat", p("file3")).Raw("> /dev/null").String()},
	}
}

func runOp(m *mount.GlusterMount, op fileOp) *workload.IOProc {
	logf.Log.Info("Running", "op", op.name, "mount", m.String())
	return workload.StartIO(glustertest.Runner(), m, op.cmd)
}

func QuorumAutoTest() {
	params := e2e_config.GetConfig().ClientQuorum
	logf.Log.Info("Test", "parameters", params)

	r := glustertest.Runner()
	scn = glustertest.NewScenario(context.Background(), r, glustertest.Config(), common.VolReplicated)
	Expect(scn.SetupVolumeAndMount()).To(Succeed())
	vol := scn.Volume.Name
	m := scn.Mounts[0]

	err := gluster.SetVolumeOptions(r, scn.Mnode, vol, map[string]string{"cluster.quorum-type": "auto"})
	Expect(err).ToNot(HaveOccurred())

	proc, err := workload.CreateFiles(r, m, m.MountPoint, "file", params.NumFiles, "1KiB")
	Expect(err).ToNot(HaveOccurred())
	Expect(workload.ValidateIOProcs([]*workload.IOProc{proc})).To(BeTrue(), "creating files on %s", m.String())

	subvols, err := cluster.GetSubvols(r, scn.Mnode, vol)
	Expect(err).ToNot(HaveOccurred())
	offline := subvols.All()[0][:2]
	Expect(cluster.BringBricksOffline(r, vol, offline, nil, scn.Rand)).To(BeTrue(), "bringing %v offline", offline)
	down, err := cluster.AreBricksOffline(r, scn.Mnode, vol, offline)
	Expect(err).ToNot(HaveOccurred())
	Expect(down).To(BeTrue(), "bricks %v still online", offline)

	for _, op := range blockedOps(m.MountPoint) {
		proc := runOp(m, op)
		Expect(workload.IsIOProcsFailWithTransportError([]*workload.IOProc{proc})).
			To(BeTrue(), "%s succeeded or failed unexpectedly without quorum", op.name)
	}

	// listing may or may not be served without quorum
	for _, op := range []fileOp{
		{"ls", cmdline.New("ls", "-l", m.MountPoint).String()},
		{"stat", cmdline.New("stat", path.Join(m.MountPoint, "file0")).String()},
	} {
		res := runOp(m, op).Proc.Wait()
		if !res.Ok() {
			Expect(res.Stderr).To(ContainSubstring(common.ErrTransportNotConnected), "%s failed unexpectedly", op.name)
		}
	}

	Expect(cluster.BringBricksOnline(r, scn.Mnode, vol, offline, []cluster.OnlineMethod{cluster.OnlineVolumeStartForce}, scn.Rand)).To(BeTrue())
	Expect(cluster.WaitForVolumeProcessToBeOnline(scn.Ctx, r, scn.Mnode, vol, scn.Timeouts.VolumeProcesses)).To(BeTrue())

	// quorum is back, modifications go through again
	proc = runOp(m, blockedOps(m.MountPoint)[0])
	Expect(workload.ValidateIOProcs([]*workload.IOProc{proc})).To(BeTrue(), "create after quorum was restored")
}
