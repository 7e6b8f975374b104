package cluster

import (
	"context"
	"time"

	"gluster-e2e/common"
	"gluster-e2e/common/gluster"
	"gluster-e2e/common/remote/fakeremote"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

const mnode = "server1"

var (
	servers     = []string{"server1", "server2", "server3"}
	repBricks   = []string{"server1:/bricks/brick0/testvol_brick0", "server2:/bricks/brick0/testvol_brick1", "server3:/bricks/brick0/testvol_brick2"}
	distBricks  = []string{"server1:/bricks/brick0/dvol_brick0", "server2:/bricks/brick0/dvol_brick1"}
	brickRoots  = map[string][]string{"server1": {"/bricks/brick0"}, "server2": {"/bricks/brick0"}, "server3": {"/bricks/brick0"}}
	replicaInfo = volInfoXML("testvol", "Replicate", 3, repBricks)
)

var _ = Describe("Volume shapes", func() {
	It("fills defaults per type", func() {
		Expect(Shape{Type: common.VolReplicated}.WithDefaults().BrickCount()).To(Equal(3))
		Expect(Shape{Type: common.VolDistributed}.WithDefaults().BrickCount()).To(Equal(4))
		Expect(Shape{Type: common.VolDistributedReplicated}.WithDefaults().BrickCount()).To(Equal(6))
		Expect(Shape{Type: common.VolDispersed}.WithDefaults().BrickCount()).To(Equal(6))
		Expect(Shape{Type: common.VolDistributedDispersed}.WithDefaults().BrickCount()).To(Equal(12))
		Expect(Shape{Type: common.VolArbiter}.WithDefaults().BrickCount()).To(Equal(3))
		Expect(Shape{Type: common.VolDistributedArbiter}.WithDefaults().BrickCount()).To(Equal(6))
	})

	It("keeps explicit counts", func() {
		s := Shape{Type: common.VolDistributedReplicated, DistCount: 3, ReplicaCount: 2}.WithDefaults()
		Expect(s.BrickCount()).To(Equal(6))
		Expect(s.Transport).To(Equal("tcp"))
	})

	It("forms bricks round robin over servers and brick roots", func() {
		roots := map[string][]string{"s1": {"/b0", "/b1"}, "s2": {"/b0"}}
		bricks, err := FormBricksList("v", 4, []string{"s1", "s2"}, roots)
		Expect(err).ToNot(HaveOccurred())
		Expect(bricks).To(Equal([]string{"s1:/b0/v_brick0", "s2:/b0/v_brick1", "s1:/b1/v_brick2", "s2:/b0/v_brick3"}))
	})

	It("fails without brick roots", func() {
		_, err := FormBricksList("v", 2, []string{"s1"}, nil)
		Expect(err).To(HaveOccurred())
	})

	It("groups bricks into subvolumes", func() {
		var bricks []gluster.Brick
		for _, b := range append(repBricks, repBricks...) {
			bricks = append(bricks, gluster.Brick{Name: b})
		}
		v := &gluster.VolumeInfo{TypeStr: "Distributed-Replicate", ReplicaCount: 3, BrickCount: 6, Bricks: bricks}
		sv := SubvolsOf(v)
		Expect(sv.All()).To(HaveLen(2))
		Expect(sv.All()[1]).To(Equal(repBricks))
		Expect(VolumeTypeOf(v)).To(Equal(common.VolDistributedReplicated))
	})
})

var _ = Describe("Bricks", func() {
	var fake *fakeremote.Runner

	BeforeEach(func() {
		fake = fakeremote.New()
		fake.On(mnode, `^gluster volume info testvol --xml$`, fakeremote.OK(replicaInfo))
	})

	It("reports offline bricks from volume status", func() {
		fake.On(mnode, `^gluster volume status testvol --xml$`,
			fakeremote.OK(volStatusXML("testvol", repBricks, map[string]bool{repBricks[1]: true}, servers)))
		ok, err := AreBricksOnline(fake, mnode, "testvol", repBricks)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse())

		ok, err = AreBricksOffline(fake, mnode, "testvol", repBricks[1:2])
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())

		offline, err := GetOfflineBricksList(fake, mnode, "testvol")
		Expect(err).ToNot(HaveOccurred())
		Expect(offline).To(Equal(repBricks[1:2]))
		online, err := GetOnlineBricksList(fake, mnode, "testvol")
		Expect(err).ToNot(HaveOccurred())
		Expect(online).To(HaveLen(2))
	})

	It("is indeterminate when status cannot be read", func() {
		fake.On(mnode, `^gluster volume status`, fakeremote.Unreachable())
		_, err := AreBricksOnline(fake, mnode, "testvol", repBricks)
		Expect(err).To(HaveOccurred())
	})

	It("kills bricks on their own host", func() {
		Expect(BringBricksOffline(fake, "testvol", repBricks[:2], []OfflineMethod{OfflinePidFileKill}, nil)).To(BeTrue())
		calls := fake.CallsMatching(`^kill -9`)
		Expect(calls).To(HaveLen(2))
		Expect(calls[1].Host).To(Equal("server2"))
		Expect(calls[1].Cmd).To(ContainSubstring("/var/lib/glusterd/vols/testvol/run/server2-bricks-brick0-testvol_brick1.pid"))
	})

	It("reports a failed kill", func() {
		fake.On("server1", `kill`, fakeremote.Fail(1, "no such process"))
		Expect(BringBricksOffline(fake, "testvol", repBricks[:1], nil, nil)).To(BeFalse())
	})

	It("stops after volume start force", func() {
		Expect(BringBricksOnline(fake, mnode, "testvol", repBricks, []OnlineMethod{OnlineVolumeStartForce}, nil)).To(BeTrue())
		Expect(fake.CallsMatching(`^gluster volume start testvol force`)).To(HaveLen(1))
	})

	It("restarts glusterd on the brick host", func() {
		Expect(BringBricksOnline(fake, mnode, "testvol", repBricks[2:], []OnlineMethod{OnlineGlusterdRestart}, nil)).To(BeTrue())
		restarts := fake.CallsMatching(`^systemctl restart glusterd$`)
		Expect(restarts).To(HaveLen(1))
		Expect(restarts[0].Host).To(Equal("server3"))
		Expect(fake.CallsMatching(`^systemctl is-active glusterd$`)).ToNot(BeEmpty())
	})
})

var _ = Describe("Heal", func() {
	var fake *fakeremote.Runner

	BeforeEach(func() {
		fake = fakeremote.New()
		fake.On(mnode, `^gluster volume info testvol --xml$`, fakeremote.OK(replicaInfo))
	})

	It("has nothing to heal on a distribute volume", func() {
		fake.On(mnode, `^gluster volume info dvol --xml$`, fakeremote.OK(volInfoXML("dvol", "Distribute", 1, distBricks)))
		Expect(MonitorHealCompletion(context.Background(), fake, mnode, "dvol", time.Second, time.Millisecond)).To(BeTrue())
		Expect(fake.CallsMatching(`xattrop`)).To(BeEmpty())
	})

	It("waits for the xattrop index to drain", func() {
		fake.On("", `xattrop`, fakeremote.OK("0\n"))
		fake.On("server2", `^ls -1 /bricks/brick0/testvol_brick1/.glusterfs/indices/xattrop/ \| grep -ve xattrop- \| wc -l$`,
			fakeremote.OK("4\n"), fakeremote.OK("0\n"))
		Expect(MonitorHealCompletion(context.Background(), fake, mnode, "testvol", 5*time.Second, time.Millisecond)).To(BeTrue())
		Expect(len(fake.CallsMatching(`testvol_brick1/.glusterfs`))).To(Equal(2))
	})

	It("times out while entries remain", func() {
		fake.On("", `xattrop`, fakeremote.OK("2\n"))
		Expect(MonitorHealCompletion(context.Background(), fake, mnode, "testvol", 20*time.Millisecond, 5*time.Millisecond)).To(BeFalse())
	})

	It("requires exactly one self-heal daemon per node", func() {
		fake.On("", `^pgrep -f glustershd$`, fakeremote.OK("1234\n"))
		pids, err := GetSelfHealDaemonPid(fake, servers)
		Expect(err).ToNot(HaveOccurred())
		Expect(pids).To(HaveKeyWithValue("server3", 1234))

		fake.On("server2", `^pgrep -f glustershd$`, fakeremote.OK("1234\n5678\n"))
		_, err = GetSelfHealDaemonPid(fake, servers)
		Expect(err).To(HaveOccurred())
	})

	It("counts self-heal daemons against brick hosts", func() {
		fake.On(mnode, `^gluster volume status testvol --xml$`,
			fakeremote.OK(volStatusXML("testvol", repBricks, nil, servers[:2])))
		ok, err := AreAllSelfHealDaemonsOnline(fake, mnode, "testvol")
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Waiters", func() {
	var fake *fakeremote.Runner

	BeforeEach(func() {
		fake = fakeremote.New()
	})

	It("stops at a failed fix-layout", func() {
		fake.On(mnode, `rebalance testvol status`, fakeremote.OK(rebalanceXML("fix-layout failed")))
		start := time.Now()
		Expect(WaitForFixLayoutToComplete(context.Background(), fake, mnode, "testvol", time.Minute)).To(BeFalse())
		Expect(time.Since(start)).To(BeNumerically("<", 5*time.Second))
	})

	It("accepts a completed fix-layout", func() {
		fake.On(mnode, `rebalance testvol status`, fakeremote.OK(rebalanceXML("fix-layout completed")))
		Expect(WaitForFixLayoutToComplete(context.Background(), fake, mnode, "testvol", time.Minute)).To(BeTrue())
	})

	It("waits for glusterd", func() {
		Expect(WaitForGlusterdToStart(context.Background(), fake, servers, time.Second)).To(BeTrue())
	})

	It("attaches only peers other than mnode", func() {
		fake.On(mnode, `^gluster pool list --xml$`, fakeremote.OK(poolListXML()), fakeremote.OK(poolListXML("server2", "server3")))
		Expect(PeerAttachServers(context.Background(), fake, mnode, servers, 10*time.Second)).To(BeTrue())
		attached := fake.CallsMatching(`^gluster peer probe`)
		Expect(attached).To(HaveLen(2))
		Expect(attached[0].Cmd).To(Equal("gluster peer probe server2"))
	})
})

var _ = Describe("Volume lifecycle", func() {
	var fake *fakeremote.Runner

	BeforeEach(func() {
		fake = fakeremote.New()
	})

	It("creates, starts and configures a volume", func() {
		fake.On(mnode, `^gluster volume list$`, fakeremote.OK("No volumes present in cluster\n"))
		fake.On(mnode, `^gluster volume info testvol --xml$`, fakeremote.OK(replicaInfo))
		fake.On(mnode, `^gluster volume status testvol --xml$`, fakeremote.OK(volStatusXML("testvol", repBricks, nil, servers)))
		spec := VolumeSpec{
			Name:    "testvol",
			Shape:   Shape{Type: common.VolReplicated},
			Options: map[string]string{"cluster.quorum-type": "auto"},
		}
		Expect(SetupVolume(context.Background(), fake, mnode, servers, brickRoots, spec, time.Minute)).To(Succeed())
		create := fake.CallsMatching(`^gluster volume create`)
		Expect(create).To(HaveLen(1))
		Expect(create[0].Cmd).To(Equal("gluster volume create testvol replica 3 transport tcp " +
			"server1:/bricks/brick0/testvol_brick0 server2:/bricks/brick0/testvol_brick1 server3:/bricks/brick0/testvol_brick2 --mode=script"))
		Expect(fake.CallsMatching(`^gluster volume start testvol --mode=script$`)).To(HaveLen(1))
		Expect(fake.CallsMatching(`^gluster volume set testvol cluster.quorum-type auto`)).To(HaveLen(1))
	})

	It("reuses an existing volume", func() {
		fake.On(mnode, `^gluster volume list$`, fakeremote.OK("testvol\n"))
		Expect(SetupVolume(context.Background(), fake, mnode, servers, brickRoots, VolumeSpec{Name: "testvol"}, time.Minute)).To(Succeed())
		Expect(fake.CallsMatching(`volume create`)).To(BeEmpty())
	})

	It("reports a failed create", func() {
		fake.On(mnode, `^gluster volume list$`, fakeremote.OK(""))
		fake.On(mnode, `^gluster volume create`, fakeremote.Fail(1, "volume create: testvol: failed"))
		err := SetupVolume(context.Background(), fake, mnode, servers, brickRoots, VolumeSpec{Name: "testvol", Shape: Shape{Type: common.VolReplicated}}, time.Minute)
		Expect(gluster.IsCommandError(err)).To(BeTrue())
	})

	It("cleans up bricks on every host", func() {
		fake.On(mnode, `^gluster volume list$`, fakeremote.OK("testvol\n"))
		fake.On(mnode, `^gluster volume info testvol --xml$`, fakeremote.OK(replicaInfo))
		Expect(CleanupVolume(fake, mnode, "testvol")).To(Succeed())
		Expect(fake.CallsMatching(`^gluster volume stop testvol force --mode=script$`)).To(HaveLen(1))
		Expect(fake.CallsMatching(`^gluster volume delete testvol --mode=script$`)).To(HaveLen(1))
		rm := fake.CallsMatching(`^rm -rf `)
		Expect(rm).To(HaveLen(3))
		Expect(rm[0].Cmd).To(Equal("rm -rf /bricks/brick0/testvol_brick0"))
	})

	It("skips a missing volume", func() {
		fake.On(mnode, `^gluster volume list$`, fakeremote.OK("other\n"))
		Expect(CleanupVolume(fake, mnode, "testvol")).To(Succeed())
		Expect(fake.CallsMatching(`volume delete`)).To(BeEmpty())
	})

	It("adds one subvolume of unused bricks", func() {
		fake.On(mnode, `^gluster volume info testvol --xml$`, fakeremote.OK(replicaInfo))
		bricks, err := ExpandVolume(fake, mnode, "testvol", servers, brickRoots, false)
		Expect(err).ToNot(HaveOccurred())
		Expect(bricks).To(Equal([]string{"server1:/bricks/brick0/testvol_brick3", "server2:/bricks/brick0/testvol_brick4", "server3:/bricks/brick0/testvol_brick5"}))
		Expect(fake.CallsMatching(`^gluster volume add-brick testvol server1:`)).To(HaveLen(1))
	})

	It("refuses to shrink a single subvolume", func() {
		fake.On(mnode, `^gluster volume info testvol --xml$`, fakeremote.OK(replicaInfo))
		Expect(ShrinkVolume(context.Background(), fake, mnode, "testvol", -1, time.Minute)).ToNot(Succeed())
		Expect(fake.CallsMatching(`remove-brick`)).To(BeEmpty())
	})

	It("replaces a brick on the same host", func() {
		fake.On(mnode, `^gluster volume info testvol --xml$`, fakeremote.OK(replicaInfo))
		dst, err := ReplaceBrickFromVolume(fake, mnode, "testvol", repBricks[1], brickRoots)
		Expect(err).ToNot(HaveOccurred())
		Expect(dst).To(Equal("server2:/bricks/brick0/testvol_brick3"))
		Expect(fake.CallsMatching(`^gluster volume replace-brick testvol ` + repBricks[1] + ` ` + dst + ` commit force`)).To(HaveLen(1))
	})
})
