package features

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"gluster-e2e/common"
	"gluster-e2e/common/gluster"
	"gluster-e2e/common/mount"
	"gluster-e2e/common/remote/fakeremote"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

const (
	mnode    = "server1"
	brickOne = "server1:/bricks/b0/testvol_brick0"
	brickTwo = "server2:/bricks/b0/testvol_brick1"
	digest   = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
)

// signatureHex is a type 1 signature of version 2 over digest.
var signatureHex = "0x01" + "00000000000000" + "0200000000000000" + digest

var _ = Describe("Bitrot", func() {
	var fake *fakeremote.Runner

	BeforeEach(func() {
		fake = fakeremote.New()
		fake.On("server1", `^getfattr .* -n trusted.bit-rot.signature`,
			fakeremote.OK("# file: /bricks/b0/testvol_brick0/f1\ntrusted.bit-rot.signature="+signatureHex+"\n"))
		fake.On("server1", `^sha256sum`, fakeremote.OK(digest+"  /bricks/b0/testvol_brick0/f1\n"))
	})

	It("splits the signature header from the digest", func() {
		raw, _ := hex.DecodeString(signatureHex[2:])
		sig, err := ParseSignature(raw)
		Expect(err).ToNot(HaveOccurred())
		Expect(sig.Type).To(Equal(byte(1)))
		Expect(sig.Version).To(Equal(uint64(2)))
		Expect(sig.Digest).To(Equal(digest))

		_, err = ParseSignature(raw[:16])
		Expect(err).To(HaveOccurred())
	})

	It("matches the signature with the brick file checksum", func() {
		ok, err := IsFileSigned(fake, "server1", "/bricks/b0/testvol_brick0/f1", 2)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())

		ok, err = IsFileSigned(fake, "server1", "/bricks/b0/testvol_brick0/f1", 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("rejects a stale version or changed content", func() {
		ok, err := IsFileSigned(fake, "server1", "/bricks/b0/testvol_brick0/f1", 3)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse())

		fake.On("server1", `^sha256sum`, fakeremote.OK("00"+digest[2:]+"  f1\n"))
		ok, err = IsFileSigned(fake, "server1", "/bricks/b0/testvol_brick0/f1", 2)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("is indeterminate when the xattr cannot be read", func() {
		fake.On("server1", `^getfattr`, fakeremote.Fail(1, "No such attribute"))
		_, err := IsFileSigned(fake, "server1", "/bricks/b0/testvol_brick0/f1", 2)
		Expect(gluster.IsCommandError(err)).To(BeTrue())
	})

	It("detects the bad-file marker", func() {
		Expect(IsFileBad(nil)).To(BeFalse())
		Expect(IsFileBad(map[string]string{common.XattrGfid: "0x01"})).To(BeFalse())
		Expect(IsFileBad(map[string]string{common.XattrBitrotBadFile: "0x31"})).To(BeTrue())
	})

	It("collects corrupted gfids from every node", func() {
		st := &gluster.ScrubStatus{Nodes: []gluster.ScrubNode{
			{Node: "localhost"},
			{Node: "server2", CorruptedGfids: []string{"g1", "g2"}},
		}}
		Expect(CorruptedGfids(st)).To(Equal([]string{"g1", "g2"}))
	})
})

var _ = Describe("Quota", func() {
	var fake *fakeremote.Runner

	BeforeEach(func() {
		fake = fakeremote.New()
		fake.On(mnode, `^gluster volume quota testvol list / --xml$`, fakeremote.OK(quotaXML))
	})

	It("validates only the requested fields", func() {
		ok, err := QuotaValidate(fake, mnode, "testvol", "/", QuotaExpect{
			HardLimit:  Int64(Bytes("100MiB")),
			SlExceeded: Bool(true),
			HlExceeded: Bool(false),
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())

		ok, err = QuotaValidate(fake, mnode, "testvol", "/", QuotaExpect{SlExceeded: Bool(false)})
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("names brick logs after the brick path", func() {
		Expect(BrickLogFile(brickOne)).To(Equal("/var/log/glusterfs/bricks/bricks-b0-testvol_brick0.log"))
	})

	It("writes the same marker to every brick log", func() {
		marker, err := MarkBrickLogs(fake, []string{brickOne, brickTwo})
		Expect(err).ToNot(HaveOccurred())
		Expect(marker).To(HavePrefix("gluster-e2e-marker-"))
		calls := fake.CallsMatching(`^echo`)
		Expect(calls).To(HaveLen(2))
		Expect(calls[1].Host).To(Equal("server2"))
		Expect(calls[1].Cmd).To(Equal("echo " + marker + " >> /var/log/glusterfs/bricks/bricks-b0-testvol_brick1.log"))
	})

	It("sums alerts between markers over bricks", func() {
		fake.On("server1", `^awk`, fakeremote.OK("1\n"))
		fake.On("server2", `^awk`, fakeremote.OK("0\n"))
		n, err := CountQuotaAlerts(fake, []string{brickOne, brickTwo}, "m1", "m2")
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(1))
		Expect(fake.CallsMatching(`^awk`)[0].Cmd).To(ContainSubstring(`index($0, "120004")`))
	})

	It("fails the count on garbage output", func() {
		fake.On("", `^awk`, fakeremote.OK("awk: syntax error"))
		_, err := CountQuotaAlerts(fake, []string{brickOne}, "m1", "m2")
		Expect(gluster.IsParseError(err)).To(BeTrue())
	})
})

var _ = Describe("Snapshot", func() {
	var fake *fakeremote.Runner
	var m *mount.GlusterMount

	BeforeEach(func() {
		fake = fakeremote.New()
		fake.On(mnode, `^gluster volume info testvol --xml$`, fakeremote.OK(distVolInfoXML))
		fake.On(mnode, `^gluster volume status testvol --xml$`, fakeremote.OK(distVolStatusXML))
		m = &mount.GlusterMount{Protocol: common.MountGlusterfs, MountPoint: "/mnt/testvol", Server: mnode, Client: "client1", Volname: "testvol"}
	})

	It("restores in order and remounts a lost mount", func() {
		fake.On("client1", `^mount \| grep`, fakeremote.Fail(1, ""))
		err := RestoreSnapshot(context.Background(), fake, mnode, "testvol", "S1", RestoreOptions{
			OnlineTimeout: time.Second,
			Mounts:        []*mount.GlusterMount{m},
		})
		Expect(err).ToNot(HaveOccurred())
		var order []string
		for _, c := range fake.CallsMatching(`^gluster (volume (stop|start)|snapshot restore)`) {
			order = append(order, c.Cmd)
		}
		Expect(order).To(Equal([]string{
			"gluster volume stop testvol --mode=script",
			"gluster snapshot restore S1 --mode=script",
			"gluster volume start testvol --mode=script",
		}))
		Expect(fake.CallsMatching(`^mount -t glusterfs server1:/testvol /mnt/testvol$`)).To(HaveLen(1))
	})

	It("reports the failed step", func() {
		fake.On(mnode, `snapshot restore`, fakeremote.Fail(1, "snapshot restore: failed: Volume testvol is not stopped"))
		err := RestoreSnapshot(context.Background(), fake, mnode, "testvol", "S1", RestoreOptions{OnlineTimeout: time.Second})
		var re *RestoreError
		Expect(err).To(BeAssignableToTypeOf(re))
		Expect(err.(*RestoreError).Step).To(Equal(StepRestore))
		Expect(fake.CallsMatching(`volume start`)).To(BeEmpty())
	})

	It("lists snapshots under .snaps", func() {
		fake.On("client1", `^ls -1 /mnt/testvol/dir1/.snaps$`, fakeremote.OK("snap1\nsnap2\n"))
		snaps, err := ListSnapsDir(fake, m, "dir1")
		Expect(err).ToNot(HaveOccurred())
		Expect(snaps).To(Equal([]string{"snap1", "snap2"}))
	})

	It("requires snapd online on every node", func() {
		ok, err := IsSnapdOnline(fake, mnode, "testvol")
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Geo-replication", func() {
	var fake *fakeremote.Runner

	BeforeEach(func() {
		fake = fakeremote.New()
	})

	It("sets up a root session", func() {
		s := GeorepSession{Mnode: mnode, MasterVol: "testvol", Slave: gluster.GeorepSlave{Host: "slave1", Volume: "slavevol"}}
		Expect(SetupGeorepSession(fake, s)).To(Succeed())
		Expect(fake.CallsMatching(`gluster-mountbroker`)).To(BeEmpty())
		Expect(fake.CallsMatching(`^gluster volume geo-replication testvol slave1::slavevol create push-pem$`)).To(HaveLen(1))
		Expect(fake.CallsMatching(`^gluster volume geo-replication testvol slave1::slavevol start$`)).To(HaveLen(1))
	})

	It("adds a mountbroker for an unprivileged user", func() {
		s := GeorepSession{Mnode: mnode, MasterVol: "testvol", SlaveNodes: []string{"slave1", "slave2"},
			Slave: gluster.GeorepSlave{User: "geoaccount", Host: "slave1", Volume: "slavevol"}}
		Expect(SetupGeorepSession(fake, s)).To(Succeed())
		Expect(fake.CallsMatching(`^gluster-mountbroker add slavevol geoaccount$`)).To(HaveLen(2))
		pem := fake.CallsMatching(`set_geo_rep_pem_keys.sh`)
		Expect(pem).To(HaveLen(1))
		Expect(pem[0].Host).To(Equal("slave1"))
	})

	It("stops at a failed create", func() {
		fake.On(mnode, `geo-replication .* create`, fakeremote.Fail(1, "Passwordless ssh login has not been setup"))
		s := GeorepSession{Mnode: mnode, MasterVol: "testvol", Slave: gluster.GeorepSlave{Host: "slave1", Volume: "slavevol"}}
		Expect(SetupGeorepSession(fake, s)).ToNot(Succeed())
		Expect(fake.CallsMatching(`start`)).To(BeEmpty())
	})

	It("requires every pair active or passive", func() {
		s := GeorepSession{Mnode: mnode, MasterVol: "testvol", Slave: gluster.GeorepSlave{Host: "slave1", Volume: "slavevol"}}
		fake.On(mnode, `status --xml$`, fakeremote.OK(fmt.Sprintf(georepStatusXML, "Passive")))
		Expect(IsGeorepActive(fake, s)).To(BeTrue())
		fake.On(mnode, `status --xml$`, fakeremote.OK(fmt.Sprintf(georepStatusXML, "Faulty")))
		Expect(IsGeorepActive(fake, s)).To(BeFalse())
	})
})
