package dht_rename

import (
	"context"
	"path"

	"gluster-e2e/common"
	"gluster-e2e/common/cluster"
	"gluster-e2e/common/dht"
	"gluster-e2e/common/e2e_config"
	"gluster-e2e/common/glusterfile"
	"gluster-e2e/common/glustertest"
	"gluster-e2e/common/workload"

	. "github.com/onsi/gomega"

	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

var scn *glustertest.Scenario

// RenameToOtherSubvolTest renames a file to a name hashed to a different
// subvolume. The data stays where it was written, under the new name, and
// the new hashed subvolume gets a linkto file pointing at it.
func RenameToOtherSubvolTest(voltype common.VolumeType) {
	params := e2e_config.GetConfig().DhtRename
	logf.Log.Info("Test", "parameters", params, "voltype", voltype)

	r := glustertest.Runner()
	scn = glustertest.NewScenario(context.Background(), r, glustertest.Config(), voltype)
	Expect(scn.SetupVolumeAndMount()).To(Succeed())
	vol := scn.Volume.Name
	m := scn.Mounts[0]
	src := params.SrcName

	cmd, err := workload.WriteFileCmd(path.Join(m.MountPoint, src), "1KiB")
	Expect(err).ToNot(HaveOccurred())
	Expect(workload.ValidateIOProcs([]*workload.IOProc{workload.StartIO(r, m, cmd)})).To(BeTrue(), "creating %s", src)

	subvols, err := cluster.GetSubvols(r, scn.Mnode, vol)
	Expect(err).ToNot(HaveOccurred())
	Expect(len(subvols.All())).To(BeNumerically(">=", 2), "%s needs at least two subvolumes", vol)

	srcDir, srcIdx, err := dht.FindHashedSubvol(r, scn.Hasher, subvols.All(), "/", src)
	Expect(err).ToNot(HaveOccurred())
	dst, err := dht.FindNewHashed(r, scn.Hasher, subvols.All(), "/", src)
	Expect(err).ToNot(HaveOccurred())
	Expect(dst.Index).ToNot(Equal(srcIdx))
	logf.Log.Info("Rename", "src", src, "srcSubvol", srcDir.String(), "dst", dst.Name, "dstSubvol", dst.BrickDir.String())

	res := glusterfile.MoveFile(r, m.Client, path.Join(m.MountPoint, src), path.Join(m.MountPoint, dst.Name))
	Expect(res.Ok()).To(BeTrue(), "mv %s %s: %s", src, dst.Name, res.String())

	Expect(glusterfile.FileExists(r, m.Client, path.Join(m.MountPoint, src))).To(BeFalse(), "%s still resolves", src)
	Expect(glusterfile.FileExists(r, m.Client, path.Join(m.MountPoint, dst.Name))).To(BeTrue(), "%s does not resolve", dst.Name)

	data, err := glusterfile.GetFileStat(r, srcDir.Host(), srcDir.PathOf(dst.Name))
	Expect(err).ToNot(HaveOccurred())
	Expect(data.Size).To(BeNumerically(">", 0), "%s is not a data file", srcDir.PathOf(dst.Name))
	Expect(glusterfile.FileExists(r, srcDir.Host(), srcDir.PathOf(src))).To(BeFalse())

	linkto, err := glusterfile.IsLinktoFile(r, dst.BrickDir.Host(), dst.BrickDir.PathOf(dst.Name))
	Expect(err).ToNot(HaveOccurred())
	Expect(linkto).To(BeTrue(), "%s is not a linkto file", dst.BrickDir.PathOf(dst.Name))
}
