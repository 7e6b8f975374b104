package workload

import (
	"strings"
	"time"

	"gluster-e2e/common"
	"gluster-e2e/common/mount"
	"gluster-e2e/common/remote/fakeremote"
	"gluster-e2e/common/workload/genio"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

const arequalOut = `
Entry counts
Regular files   : 10
Directories     : 2
Symbolic links  : 0
Other           : 0
Total           : 12

Metadata checksums
Regular files   : 3e9
Directories     : 24d74c
Symbolic links  : 3e9
Other           : 3e9

Checksums
Regular files   : 8b5e8d2f0a7c1d4e
Directories     : 30302a00
Symbolic links  : 0
Other           : 0
Total           : 6a1f2c3e8d9b0f11
`

var _ = Describe("IO commands", func() {
	It("writes numbered files of the requested size", func() {
		cmd, err := CreateFilesCmd("/mnt/testvol/files", "file", 3, "1KiB")
		Expect(err).ToNot(HaveOccurred())
		Expect(cmd).To(Equal("mkdir -p /mnt/testvol/files && for i in $(seq 0 2); do " +
			"dd if=/dev/urandom of=/mnt/testvol/files/file$i bs=1024 count=1 status=none || exit 1; done"))
	})

	It("rejects sizes it cannot parse", func() {
		_, err := CreateFilesCmd("/mnt", "f", 1, "lots")
		Expect(err).To(HaveOccurred())
		_, err = AppendFilesCmd("/mnt", "")
		Expect(err).To(HaveOccurred())
	})

	It("writes whole megabytes with dd and remainders with head", func() {
		cmd, err := WriteFileCmd("/mnt/testvol/f1", "45MiB")
		Expect(err).ToNot(HaveOccurred())
		Expect(cmd).To(Equal("dd if=/dev/urandom of=/mnt/testvol/f1 bs=1M count=45 status=none"))

		cmd, err = WriteFileCmd("/mnt/testvol/f2", "1500B")
		Expect(err).ToNot(HaveOccurred())
		Expect(cmd).To(Equal("head -c 1500 /dev/urandom > /mnt/testvol/f2"))
	})
})

var _ = Describe("IO outcome", func() {
	var fake *fakeremote.Runner
	var mounts []*mount.GlusterMount

	BeforeEach(func() {
		fake = fakeremote.New()
		mounts = []*mount.GlusterMount{
			{Protocol: common.MountGlusterfs, MountPoint: "/mnt/testvol", Server: "server1", Client: "client1", Volname: "testvol"},
			{Protocol: common.MountGlusterfs, MountPoint: "/mnt/testvol", Server: "server1", Client: "client2", Volname: "testvol"},
		}
	})

	start := func() []*IOProc {
		var procs []*IOProc
		for _, m := range mounts {
			procs = append(procs, StartIO(fake, m, "touch "+m.MountPoint+"/f"))
		}
		return procs
	}

	It("passes when every proc exits zero", func() {
		procs := start()
		Expect(ValidateIOProcs(procs)).To(BeTrue())
		Expect(fake.Calls()[0].Async).To(BeTrue())
	})

	It("fails when one proc fails", func() {
		fake.On("client2", `^touch`, fakeremote.Fail(1, "touch: cannot touch: "+common.ErrInputOutput))
		Expect(ValidateIOProcs(start())).To(BeFalse())
	})

	It("expects every proc to fail with the given message", func() {
		fake.On("", `^touch`, fakeremote.Fail(1, "touch: cannot touch '/mnt/testvol/f': "+common.ErrReadOnlyFs))
		Expect(IsIOProcsFailWithROFS(start())).To(BeTrue())
		Expect(IsIOProcsFailWithTransportError(start())).To(BeFalse())
	})

	It("does not accept success as the expected failure", func() {
		fake.On("client1", `^touch`, fakeremote.Fail(1, common.ErrTransportNotConnected))
		Expect(IsIOProcsFailWithTransportError(start())).To(BeFalse())
	})

	It("joins finished procs", func() {
		Expect(WaitForIOToComplete(start(), time.Second)).To(BeTrue())
	})
})

var _ = Describe("Arequal", func() {
	var fake *fakeremote.Runner

	BeforeEach(func() {
		fake = fakeremote.New()
	})

	It("extracts the total checksum", func() {
		Expect(Checksum(arequalOut).Total()).To(Equal("6a1f2c3e8d9b0f11"))
		Expect(Checksum("garbage").Total()).To(BeEmpty())
	})

	It("collects mount checksums ignoring the trash directory", func() {
		fake.On("", `^arequal-checksum`, fakeremote.OK(arequalOut))
		m := &mount.GlusterMount{MountPoint: "/mnt/testvol", Client: "client1", Volname: "testvol"}
		sums, err := CollectMountsArequal(fake, []*mount.GlusterMount{m})
		Expect(err).ToNot(HaveOccurred())
		Expect(sums).To(HaveLen(1))
		Expect(fake.Calls()[0].Cmd).To(Equal("arequal-checksum -p /mnt/testvol -i .trashcan"))
	})

	It("refuses windows mounts", func() {
		m := &mount.GlusterMount{MountPoint: "Z:", Client: "win1", Platform: common.PlatformWindows}
		_, err := CollectMountsArequal(fake, []*mount.GlusterMount{m})
		Expect(err).To(HaveOccurred())
		Expect(fake.Calls()).To(BeEmpty())
	})

	It("collects brick checksums on the brick hosts", func() {
		fake.On("", `^arequal-checksum`, fakeremote.OK(arequalOut))
		sums, err := CollectBricksArequal(fake, []string{"server1:/bricks/b0/testvol_brick0", "server2:/bricks/b0/testvol_brick1"})
		Expect(err).ToNot(HaveOccurred())
		Expect(AllEqual(sums)).To(BeTrue())
		calls := fake.Calls()
		Expect(calls[1].Host).To(Equal("server2"))
		Expect(calls[1].Cmd).To(Equal("arequal-checksum -p /bricks/b0/testvol_brick1 -i .glusterfs -i .landfill -i .trashcan"))
	})

	It("reports checksum mismatches", func() {
		other := Checksum("Total           : 0000")
		Expect(AllEqual([]Checksum{Checksum(arequalOut), other})).To(BeFalse())
		Expect(AllEqual(nil)).To(BeFalse())
	})

	It("reports entry count mismatches behind an equal total", func() {
		other := Checksum(strings.Replace(arequalOut, "Regular files   : 10", "Regular files   : 9", 1))
		Expect(other.Total()).To(Equal(Checksum(arequalOut).Total()))
		Expect(AllEqual([]Checksum{Checksum(arequalOut), other})).To(BeFalse())
		Expect(AllEqual([]Checksum{Checksum(arequalOut), Checksum(arequalOut + "\n")})).To(BeTrue())
	})

	It("treats output without a total as a parse failure", func() {
		fake.On("", `^arequal-checksum`, fakeremote.OK("Entry counts\n"))
		_, err := CollectBricksArequal(fake, []string{"server1:/bricks/b0/testvol_brick0"})
		Expect(err).To(HaveOccurred())
	})

	It("installs arequal only where missing", func() {
		fake.On("server2", `^which`, fakeremote.Fail(1, ""))
		Expect(InstallArequal(fake, []string{"server1", "server2"}, "http://repo/arequal.repo")).To(BeTrue())
		installs := fake.CallsMatching(`yum -y install arequal`)
		Expect(installs).To(HaveLen(1))
		Expect(installs[0].Host).To(Equal("server2"))
	})
})

var _ = Describe("generate-io", func() {
	It("uploads a run configuration and starts the tool", func() {
		fake := fakeremote.New()
		m := &mount.GlusterMount{MountPoint: "/mnt/testvol", Client: "client1", Volname: "testvol"}
		proc, err := StartGenerateIO(fake, m, common.DefaultUploadDir, GenerateIOOptions{
			Workloads: []genio.Workload{{Name: "fio", Cmd: "fio --directory={dir}"}},
			Percent:   60,
			Timeout:   time.Minute,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(fake.Uploads()).To(HaveLen(1))
		Expect(fake.Uploads()[0].Remote).To(MatchRegexp(`^/usr/share/glustolibs/io/scripts/generate-io-[0-9a-f-]+\.yaml$`))
		Expect(proc.Proc.Cmd()).To(MatchRegexp(`^/usr/share/glustolibs/io/scripts/generate-io --config /usr/share/glustolibs/io/scripts/generate-io-[0-9a-f-]+\.yaml$`))
	})

	It("rejects an invalid run before uploading", func() {
		fake := fakeremote.New()
		m := &mount.GlusterMount{MountPoint: "/mnt/testvol", Client: "client1"}
		_, err := StartGenerateIO(fake, m, common.DefaultUploadDir, GenerateIOOptions{Percent: 60, Timeout: time.Minute})
		Expect(err).To(HaveOccurred())
		Expect(fake.Uploads()).To(BeEmpty())
	})

	It("uploads only a binary named generate-io", func() {
		fake := fakeremote.New()
		Expect(UploadGenerateIO(fake, []string{"client1"}, "/build/bin/other", "/opt")).To(BeFalse())
		Expect(UploadGenerateIO(fake, []string{"client1"}, "/build/bin/generate-io", "/opt")).To(BeTrue())
		Expect(fake.Uploads()[0].Remote).To(Equal("/opt/generate-io"))
	})
})
