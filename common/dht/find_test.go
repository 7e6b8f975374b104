package dht

import (
	"fmt"
	"strings"

	"gluster-e2e/common/remote"
	"gluster-e2e/common/remote/fakeremote"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
)

var subvols = [][]string{
	{"server1:/bricks/brick0/testvol_brick0", "server2:/bricks/brick0/testvol_brick1"},
	{"server1:/bricks/brick1/testvol_brick2", "server2:/bricks/brick1/testvol_brick3"},
}

func layoutOut(path string, low, high uint32) remote.Result {
	return fakeremote.OK(fmt.Sprintf("# file: %s\ntrusted.glusterfs.dht=0x0000000100000000%08x%08x\n\n", path, low, high))
}

// halves gives dir an even two subvolume layout.
func halves(fake *fakeremote.Runner, dir string) {
	p0 := strings.TrimSuffix("/bricks/brick0/testvol_brick0"+dir, "/")
	p1 := strings.TrimSuffix("/bricks/brick1/testvol_brick2"+dir, "/")
	fake.On("server1", `trusted.glusterfs.dht `+p0+`$`, layoutOut(p0, 0, 0x7fffffff))
	fake.On("server1", `trusted.glusterfs.dht `+p1+`$`, layoutOut(p1, 0x80000000, 0xffffffff))
}

var _ = Describe("Hashed subvolume search", func() {
	var fake *fakeremote.Runner

	BeforeEach(func() {
		fake = fakeremote.New()
		halves(fake, "/")
	})

	It("finds the subvolume containing the hash", func() {
		bd, idx, err := FindHashedSubvol(fake, LocalHasher{}, subvols, "/", "file0")
		Expect(err).ToNot(HaveOccurred())
		Expect(idx).To(Equal(1))
		Expect(bd.Brick).To(Equal(subvols[1][0]))
		Expect(bd.PathOf("file0")).To(Equal("/bricks/brick1/testvol_brick2/file0"))

		_, idx, err = FindHashedSubvol(fake, LocalHasher{}, subvols, "/", "src")
		Expect(err).ToNot(HaveOccurred())
		Expect(idx).To(Equal(0))
	})

	It("finds a subvolume the name does not hash to", func() {
		_, idx, err := FindNonhashedSubvol(fake, LocalHasher{}, subvols, "/", "src")
		Expect(err).ToNot(HaveOccurred())
		Expect(idx).To(Equal(1))
	})

	It("finds a new name hashing elsewhere", func() {
		found, err := FindNewHashed(fake, LocalHasher{}, subvols, "/", "src")
		Expect(err).ToNot(HaveOccurred())
		Expect(found.Name).To(Equal("2"))
		Expect(found.Index).To(Equal(1))
	})

	It("finds a name hashing to a specific subvolume", func() {
		found, err := FindSpecificHashed(fake, LocalHasher{}, subvols, "/", 0, "1")
		Expect(err).ToNot(HaveOccurred())
		Expect(found.Name).To(Equal("5"))

		_, err = FindSpecificHashed(fake, LocalHasher{}, subvols, "/", 2)
		Expect(err).To(HaveOccurred())
	})

	It("gives up when every candidate hashes to the same subvolume", func() {
		fake.On("server1", `testvol_brick0$`, layoutOut("/bricks/brick0/testvol_brick0", 0, 0xffffffff))
		fake.On("server1", `testvol_brick2$`, layoutOut("/bricks/brick1/testvol_brick2", 0, 0))
		_, err := FindNewHashed(fake, LocalHasher{}, subvols, "/", "src")
		Expect(errors.Is(err, ErrNoCandidate)).To(BeTrue())
	})

	It("reads each brick directory range once", func() {
		bd := NewBrickDir(fake, subvols[0][0], "/")
		for i := 0; i < 3; i++ {
			ok, err := bd.HashRangeContains(0x10)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
		}
		Expect(fake.CallsMatching(`getfattr`)).To(HaveLen(1))
	})

	It("reports an unreadable range as an error", func() {
		fake.On("server1", `getfattr`, fakeremote.Fail(1, "No such attribute"))
		_, _, err := FindHashedSubvol(fake, LocalHasher{}, subvols, "/", "src")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Remote hashing", func() {
	It("uploads the helper once and caches answers", func() {
		fake := fakeremote.New()
		fake.On("server1", `^python3 /usr/share/scripts/dm_hash.py src$`, fakeremote.OK("1965256737\n"))
		h := NewRemoteHasher(fake, "server1", "/usr/share/scripts")
		for i := 0; i < 2; i++ {
			v, err := h.Hash("src")
			Expect(err).ToNot(HaveOccurred())
			Expect(v).To(Equal(DMHash("src")))
		}
		Expect(fake.Uploads()).To(HaveLen(1))
		Expect(fake.Uploads()[0].Remote).To(Equal("/usr/share/scripts/dm_hash.py"))
		Expect(fake.CallsMatching(`dm_hash.py`)).To(HaveLen(1))
	})

	It("fails on unparseable output", func() {
		fake := fakeremote.New()
		fake.On("server1", `dm_hash.py`, fakeremote.OK("Traceback\n"))
		_, err := NewRemoteHasher(fake, "server1", "/tmp/s").Hash("x")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Layout validation", func() {
	const volInfo = `<cliOutput><opRet>0</opRet><opErrno>0</opErrno><opErrstr/><volInfo><volumes><volume>
<name>testvol</name><status>1</status><brickCount>4</brickCount><distCount>2</distCount><replicaCount>2</replicaCount>
<typeStr>Distributed-Replicate</typeStr><bricks>
<brick><name>server1:/bricks/brick0/testvol_brick0</name></brick>
<brick><name>server2:/bricks/brick0/testvol_brick1</name></brick>
<brick><name>server1:/bricks/brick1/testvol_brick2</name></brick>
<brick><name>server2:/bricks/brick1/testvol_brick3</name></brick>
</bricks></volume></volumes></volInfo></cliOutput>`

	var fake *fakeremote.Runner

	BeforeEach(func() {
		fake = fakeremote.New()
		fake.On("server1", `^gluster volume info testvol --xml$`, fakeremote.OK(volInfo))
		halves(fake, "/")
		halves(fake, "/dir1")
	})

	It("accepts a complete layout", func() {
		ok, err := IsLayoutComplete(fake, "server1", "testvol", "/dir1")
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("rejects a layout with a hole", func() {
		fake.On("server1", `testvol_brick2/dir1$`, layoutOut("/bricks/brick1/testvol_brick2/dir1", 0x90000000, 0xffffffff))
		ok, err := IsLayoutComplete(fake, "server1", "testvol", "/dir1")
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("validates every directory and file under a mount", func() {
		walk := `{"dir": "/mnt/testvol", "dirs": ["dir1"], "files": ["src"]}` + "\n" +
			`{"dir": "/mnt/testvol/dir1", "dirs": [], "files": ["file0"]}` + "\n"
		fake.On("client1", `walk_dir.py /mnt/testvol$`, fakeremote.OK(walk))
		opts := ValidateOptions{
			Client:     "client1",
			MountPoint: "/mnt/testvol",
			Mnode:      "server1",
			Volname:    "testvol",
			FileTypes:  FileTypeAll,
			Tests:      TestLayoutComplete | TestFileOnHashedBricks,
			UploadDir:  "/usr/share/scripts",
		}
		ok, err := ValidateFilesInDir(fake, LocalHasher{}, "/mnt/testvol", opts)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(fake.CallsMatching(`^ls /bricks/brick0/testvol_brick0/src$`)).To(HaveLen(1))
		Expect(fake.CallsMatching(`^ls /bricks/brick1/testvol_brick3/dir1/file0$`)).To(HaveLen(1))
	})

	It("fails when a file is missing on its hashed bricks", func() {
		fake.On("client1", `walk_dir.py`, fakeremote.OK(`{"dir": "/mnt/testvol", "dirs": [], "files": ["src"]}`))
		fake.On("server2", `^ls /bricks/brick0/testvol_brick1/src$`, fakeremote.Fail(2, "No such file or directory"))
		ok, err := ValidateFilesInDir(fake, LocalHasher{}, "/mnt/testvol", ValidateOptions{
			Client: "client1", MountPoint: "/mnt/testvol", Mnode: "server1", Volname: "testvol",
			FileTypes: FileTypeFiles, Tests: TestFileOnHashedBricks, UploadDir: "/tmp/s",
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse())
	})
})
