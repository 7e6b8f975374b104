package glustertest

import (
	"context"
	"errors"

	"gluster-e2e/common"
	"gluster-e2e/common/e2e_config"
	"gluster-e2e/common/remote/fakeremote"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

const poolListXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cliOutput><opRet>0</opRet><opErrno>0</opErrno><opErrstr/><peerStatus>
<peer><uuid>u1</uuid><hostname>localhost</hostname><connected>1</connected><stateStr>Connected</stateStr></peer>
<peer><uuid>u2</uuid><hostname>server2</hostname><connected>1</connected><stateStr>Peer in Cluster</stateStr></peer>
</peerStatus></cliOutput>`

func testConfig() e2e_config.E2EConfig {
	var cfg e2e_config.E2EConfig
	cfg.Mnode = "server1"
	cfg.Servers = []string{"server1", "server2"}
	cfg.Clients = []string{"client1", "client2"}
	cfg.ServersInfo = map[string]e2e_config.ServerInfo{
		"server1": {Host: "server1", BrickRoot: []string{"/bricks/brick0"}},
		"server2": {BrickRoot: []string{"/bricks/brick0", "/bricks/brick1"}},
	}
	return cfg
}

var _ = Describe("Scenario", func() {
	var fake *fakeremote.Runner

	BeforeEach(func() {
		fake = fakeremote.New()
	})

	It("names volumes after their type", func() {
		cfg := testConfig()
		Expect(VolumeName(cfg, common.VolDistributedReplicated)).To(Equal("testvol_distributed_replicated"))
		Expect(VolumeName(cfg, common.VolReplicated)).To(Equal("testvol_replicated"))
	})

	It("mounts the volume on every client by default", func() {
		s := NewScenario(context.Background(), fake, testConfig(), common.VolReplicated)
		Expect(s.Mounts).To(HaveLen(2))
		for i, m := range s.Mounts {
			Expect(m.Client).To(Equal(testConfig().Clients[i]))
			Expect(m.Volname).To(Equal("testvol_replicated"))
			Expect(m.Server).To(Equal("server1"))
			Expect(m.Protocol).To(Equal(common.MountGlusterfs))
		}
	})

	It("maps servers to brick roots", func() {
		s := NewScenario(context.Background(), fake, testConfig(), common.VolReplicated)
		Expect(s.BrickRoots()).To(Equal(map[string][]string{
			"server1": {"/bricks/brick0"},
			"server2": {"/bricks/brick0", "/bricks/brick1"},
		}))
	})

	It("runs teardown steps last in first out and keeps going after a failure", func() {
		s := NewScenario(context.Background(), fake, testConfig(), common.VolReplicated)
		var order []string
		step := func(name string, err error) {
			s.Defer(name, func() error {
				order = append(order, name)
				return err
			})
		}
		step("first", nil)
		step("second", errors.New("boom"))
		step("third", errors.New("later"))

		err := s.Teardown(false)
		Expect(order).To(Equal([]string{"third", "second", "first"}))

		var ee *ExecutionError
		Expect(errors.As(err, &ee)).To(BeTrue())
		Expect(ee.Step).To(Equal("third"))
		Expect(ee.Unwrap()).To(MatchError("later"))

		order = nil
		Expect(s.Teardown(false)).To(Succeed())
		Expect(order).To(BeEmpty())
	})

	It("retains resources of a failed test when asked to", func() {
		cfg := testConfig()
		cfg.RetainOnFailure = true
		s := NewScenario(context.Background(), fake, cfg, common.VolReplicated)
		ran := false
		s.Defer("cleanup volume", func() error {
			ran = true
			return nil
		})
		Expect(s.Teardown(true)).To(Succeed())
		Expect(ran).To(BeFalse())
	})

	It("cleans up a passed test even when retaining on failure", func() {
		cfg := testConfig()
		cfg.RetainOnFailure = true
		s := NewScenario(context.Background(), fake, cfg, common.VolReplicated)
		ran := false
		s.Defer("cleanup volume", func() error {
			ran = true
			return nil
		})
		Expect(s.Teardown(false)).To(Succeed())
		Expect(ran).To(BeTrue())
	})

	It("refuses an nfs-ganesha scenario when ganesha is not enabled", func() {
		n := NewNfsGaneshaScenario(context.Background(), fake, testConfig(), common.VolReplicated)
		err := n.SetupVolume()
		var ee *ExecutionError
		Expect(errors.As(err, &ee)).To(BeTrue())
		Expect(ee.Step).To(Equal("check nfs-ganesha"))
		Expect(fake.Calls()).To(BeEmpty())
	})

	It("mounts nfs-ganesha scenarios over the virtual IPs", func() {
		cfg := testConfig()
		cfg.Gluster.Vips = []string{"10.0.0.1", "10.0.0.2"}
		n := NewNfsGaneshaScenario(context.Background(), fake, cfg, common.VolReplicated)
		Expect(n.Mounts).To(HaveLen(2))
		Expect(n.Mounts[0].Server).To(Equal("10.0.0.1"))
		Expect(n.Mounts[1].Server).To(Equal("10.0.0.2"))
		Expect(n.Mounts[0].Protocol).To(Equal(common.MountNfs))
	})
})

var _ = Describe("Resource checks", func() {
	var fake *fakeremote.Runner

	BeforeEach(func() {
		fake = fakeremote.New()
		fake.On("", "systemctl is-active glusterd", fakeremote.OK("active"))
		fake.On("server1", "gluster pool list --xml", fakeremote.OK(poolListXML))
		fake.On("server1", "gluster volume list", fakeremote.OK("No volumes present in cluster\n"))
	})

	It("passes on a clean cluster", func() {
		Expect(ResourceCheck(fake, testConfig())).To(Succeed())
	})

	It("reports leftover volumes", func() {
		fake.On("server1", "gluster volume list", fakeremote.OK("testvol_replicated\n"))
		err := ResourceCheck(fake, testConfig())
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("testvol_replicated"))
	})

	It("reports leaked mounts", func() {
		fake.On("client2", "mount -t", fakeremote.OK("server1:/testvol on /mnt/testvol type fuse.glusterfs (rw)"))
		err := ResourceCheck(fake, testConfig())
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("client2"))
	})

	It("reports stopped glusterd", func() {
		fake.On("server2", "systemctl is-active glusterd", fakeremote.Fail(3, "inactive"))
		fake.On("server2", "pidof glusterd", fakeremote.Fail(1, ""))
		Expect(ResourceCheck(fake, testConfig())).To(HaveOccurred())
	})
})

var _ = Describe("Test environment", func() {
	It("rejects an unknown transport", func() {
		cfg := testConfig()
		cfg.Transport.Kind = "carrier-pigeon"
		_, err := NewRunner(context.Background(), cfg)
		Expect(err).To(MatchError(ContainSubstring("unknown transport kind")))
	})

	It("repeats random choices for a suite", func() {
		a, b := NewRand(0, "snapshot_restore"), NewRand(0, "snapshot_restore")
		Expect(a.Int63()).To(Equal(b.Int63()))
		c, d := NewRand(42, "x"), NewRand(42, "y")
		Expect(c.Intn(1000)).To(Equal(d.Intn(1000)))
	})

	It("keys scenario choices to the running suite", func() {
		defer func(prev string) { gTestEnv.suite = prev }(gTestEnv.suite)
		draw := func(suite string) int64 {
			gTestEnv.suite = suite
			return NewScenario(context.Background(), fakeremote.New(), testConfig(), common.VolReplicated).Rand.Int63()
		}
		Expect(draw("afr_data_self_heal")).To(Equal(draw("afr_data_self_heal")))
		Expect(draw("afr_data_self_heal")).ToNot(Equal(draw("snapshot_restore")))
	})
})
