package mount

import (
	"gluster-e2e/common"
	"gluster-e2e/common/e2e_config"
	"gluster-e2e/common/remote/fakeremote"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("GlusterMount", func() {
	var fake *fakeremote.Runner

	BeforeEach(func() {
		fake = fakeremote.New()
		fake.On("client1", `^mount \| grep`, fakeremote.Fail(1, ""))
	})

	fuse := func() *GlusterMount {
		return &GlusterMount{Protocol: common.MountGlusterfs, MountPoint: "/mnt/testvol", Server: "server1", Client: "client1", Volname: "testvol"}
	}

	It("builds mount commands per protocol", func() {
		m := fuse()
		Expect(m.MountCommand()).To(Equal("mount -t glusterfs server1:/testvol /mnt/testvol"))

		m.Protocol = common.MountNfs
		Expect(m.MountCommand()).To(Equal("mount -t nfs -o vers=3 server1:/testvol /mnt/testvol"))
		m.Options = "vers=4.1"
		Expect(m.MountCommand()).To(Equal("mount -t nfs -o vers=4.1 server1:/testvol /mnt/testvol"))

		m = fuse()
		m.Protocol = common.MountCifs
		m.SmbUser, m.SmbPasswd = "tester", "secret"
		Expect(m.MountCommand()).To(Equal("PASSWD=secret mount -t cifs -o username=tester //server1/gluster-testvol /mnt/testvol"))
	})

	It("keeps smb passwords out of the option list", func() {
		m := fuse()
		m.Protocol = common.MountCifs
		m.SmbUser, m.SmbPasswd = "tester", "p@ss, w;rd"
		m.Options = "vers=3.0"
		Expect(m.MountCommand()).To(Equal("PASSWD='p@ss, w;rd' mount -t cifs -o username=tester,vers=3.0 //server1/gluster-testvol /mnt/testvol"))
		Expect(m.Mount(fake).Ok()).To(BeTrue())
		Expect(fake.CallsMatching(`^PASSWD='p@ss, w;rd' mount -t cifs`)).To(HaveLen(1))
	})

	It("creates the mount point and mounts", func() {
		m := fuse()
		Expect(m.Mount(fake).Ok()).To(BeTrue())
		Expect(fake.CallsMatching(`^mkdir -p /mnt/testvol$`)).To(HaveLen(1))
		Expect(fake.CallsMatching(`^mount -t glusterfs`)).To(HaveLen(1))
	})

	It("is idempotent when already mounted", func() {
		fake.On("client1", `^mount \| grep`, fakeremote.OK(""))
		Expect(fuse().Mount(fake).Ok()).To(BeTrue())
		Expect(fake.CallsMatching(`^mount -t`)).To(BeEmpty())
	})

	It("falls back to forced and lazy unmount", func() {
		fake.On("client1", `^umount /mnt/testvol$`, fakeremote.Fail(32, "target is busy"))
		fake.On("client1", `^umount -f /mnt/testvol$`, fakeremote.Fail(32, "target is busy"))
		Expect(fuse().Unmount(fake).Ok()).To(BeTrue())
		Expect(fake.CallsMatching(`^umount -l /mnt/testvol$`)).To(HaveLen(1))
		Expect(fake.CallsMatching(`^rmdir /mnt/testvol$`)).To(HaveLen(1))
	})

	It("keeps the mount point when every unmount fails", func() {
		fake.On("client1", `^umount`, fakeremote.Fail(32, "target is busy"))
		Expect(fuse().Unmount(fake).Ok()).To(BeFalse())
		Expect(fake.CallsMatching(`^umount`)).To(HaveLen(3))
		Expect(fake.CallsMatching(`rmdir`)).To(BeEmpty())
	})

	It("captures the drive letter of an smb mount", func() {
		fake.On("win1", `^net use \*`, fakeremote.OK("Drive Z: is now connected to \\\\server1\\gluster-testvol.\r\n\r\nThe command completed successfully.\r\n"))
		m := &GlusterMount{Protocol: common.MountSmb, Server: "server1", Client: "win1", Volname: "testvol",
			SmbUser: "tester", SmbPasswd: "secret", User: common.DefaultWindowsUser, Platform: common.PlatformWindows}
		Expect(m.Mount(fake).Ok()).To(BeTrue())
		Expect(m.MountPoint).To(Equal("Z:"))
		calls := fake.CallsMatching(`^net use \*`)
		Expect(calls).To(HaveLen(1))
		Expect(calls[0].Cmd).To(Equal(`net use * \\server1\gluster-testvol /user:tester secret`))
		Expect(calls[0].User).To(Equal("Admin"))

		Expect(m.Unmount(fake).Ok()).To(BeTrue())
		Expect(fake.CallsMatching(`^net use Z: /d /y$`)).To(HaveLen(1))
	})
})

var _ = Describe("CreateMountObjs", func() {
	It("materialises num_of_mounts copies", func() {
		mounts := []e2e_config.MountConfig{
			{Protocol: "glusterfs", Server: "server1", Client: "client1", Volname: "testvol", NumOfMounts: 2},
			{Protocol: "nfs", Mountpoint: "/mnt/nfs", Server: "server2", Client: "client2", Volname: "testvol"},
			{Protocol: "smb", Server: "server1", Client: "win1", Volname: "testvol"},
		}
		clients := map[string]e2e_config.ClientInfo{"win1": {Host: "win1", Platform: "windows"}}
		objs := CreateMountObjs(mounts, clients)
		Expect(objs).To(HaveLen(4))
		Expect(objs[0].MountPoint).To(Equal("/mnt/testvol_0"))
		Expect(objs[1].MountPoint).To(Equal("/mnt/testvol_1"))
		Expect(objs[2].MountPoint).To(Equal("/mnt/nfs"))
		Expect(objs[2].Platform).To(Equal(common.PlatformLinux))
		Expect(objs[3].MountPoint).To(BeEmpty())
		Expect(objs[3].User).To(Equal(common.DefaultWindowsUser))
		Expect(Clients(objs)).To(Equal([]string{"client1", "client2", "win1"}))
	})
})
