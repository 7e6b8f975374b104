// Package glustertest bootstraps end-to-end suites and provides the scenario
// base every suite builds its volume, mounts and teardown on.
package glustertest

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"testing"
	"time"

	"gluster-e2e/common"
	"gluster-e2e/common/dht"
	agent "gluster-e2e/common/e2e-agent"
	"gluster-e2e/common/e2e_config"
	"gluster-e2e/common/locations"
	"gluster-e2e/common/loki"
	"gluster-e2e/common/remote"
	"gluster-e2e/common/reporter"
	"gluster-e2e/common/workload"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/pkg/errors"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

type TestEnvironment struct {
	Cfg    e2e_config.E2EConfig
	Runner *remote.Executor
	Rand   *rand.Rand
	Hasher dht.Hasher
	suite  string
}

var gTestEnv TestEnvironment

// InitTesting initialise testing and setup class name + report filename.
// Suites are skipped when no configuration file is named.
func InitTesting(t *testing.T, classname string, reportname string) {
	RegisterFailHandler(Fail)
	if !e2e_config.IsConfigured() {
		t.Skip("e2e_config_file is not set, skipping " + classname)
	}
	loki.SendLokiMarker("Start of test " + classname)
	RunSpecsWithDefaultAndCustomReporters(t, classname, reporter.GetReporters(reportname))
	loki.SendLokiMarker("End of test " + classname)
}

// NewRunner builds the executor over the transport named in the
// configuration.
func NewRunner(ctx context.Context, cfg e2e_config.E2EConfig) (*remote.Executor, error) {
	connect := e2e_config.Duration(cfg.Transport.ConnectTimeout, 30*time.Second)
	var t remote.Transport
	switch cfg.Transport.Kind {
	case "ssh", "":
		var err error
		t, err = remote.NewSSHTransport(remote.SSHConfig{
			Port:                  cfg.Transport.Port,
			KeyFile:               cfg.Transport.KeyFile,
			Password:              cfg.Transport.Password,
			KnownHostsFile:        cfg.Transport.KnownHostsFile,
			InsecureIgnoreHostKey: cfg.Transport.InsecureIgnoreHostKey,
			ConnectTimeout:        connect,
		})
		if err != nil {
			return nil, err
		}
	case "agent":
		t = agent.NewTransport(cfg.Transport.AgentPort, connect)
	case "local":
		t = remote.NewLocalTransport()
	default:
		return nil, errors.Errorf("unknown transport kind %q", cfg.Transport.Kind)
	}

	hosts := map[string]remote.HostInfo{}
	for name, ci := range cfg.ClientsInfo {
		hosts[name] = remote.HostInfo{User: ci.SuperUser, Platform: common.Platform(ci.Platform)}
	}
	return remote.NewExecutor(ctx, t, remote.Options{
		DefaultUser:    cfg.Transport.User,
		Hosts:          hosts,
		CommandTimeout: e2e_config.Duration(cfg.Transport.CommandTimeout, 0),
		Parallelism:    cfg.Transport.Parallelism,
	}), nil
}

// NewRand seeds the random choices of a suite. A zero seed derives one from
// the suite name so reruns repeat the same choices.
func NewRand(seed int64, suite string) *rand.Rand {
	if seed == 0 {
		h := fnv.New64a()
		_, _ = h.Write([]byte(suite))
		seed = int64(h.Sum64() >> 1)
	}
	logf.Log.Info("Random seed", "suite", suite, "seed", seed)
	return rand.New(rand.NewSource(seed))
}

func SetupTestEnv(suite string) {
	logf.SetLogger(zap.New(zap.UseDevMode(true), zap.WriteTo(GinkgoWriter)))

	By("bootstrapping test environment")
	cfg := e2e_config.GetConfig()
	fmt.Printf("Cluster under test: mnode %s, servers %v, clients %v\n", cfg.Mnode, cfg.Servers, cfg.Clients)

	r, err := NewRunner(context.Background(), cfg)
	Expect(err).ToNot(HaveOccurred())

	gTestEnv = TestEnvironment{
		Cfg:    cfg,
		Runner: r,
		Rand:   NewRand(cfg.Seed, suite),
		Hasher: dht.NewHasher(cfg.DHT.HashMode, r, cfg.Mnode, cfg.UploadDir),
		suite:  suite,
	}

	hosts := append(append([]string{}, cfg.Servers...), cfg.Clients...)
	Expect(workload.InstallArequal(r, hosts, cfg.Dependencies.TestingTools.Arequal.Repo)).To(BeTrue(), "arequal is not available")
}

// TeardownTestEnv writes the executor metrics and closes the connections.
func TeardownTestEnv() {
	if gTestEnv.Runner == nil {
		return
	}
	file := locations.GetMetricsFile(gTestEnv.suite)
	if err := gTestEnv.Runner.Metrics().WriteTextfile(file); err != nil {
		logf.Log.Info("Unable to write metrics", "file", file, "error", err)
	}
	if err := gTestEnv.Runner.Close(); err != nil {
		logf.Log.Info("Closing transport", "error", err)
	}
}

func Runner() *remote.Executor {
	return gTestEnv.Runner
}

func Config() e2e_config.E2EConfig {
	return gTestEnv.Cfg
}

func Rand() *rand.Rand {
	return gTestEnv.Rand
}

func Hasher() dht.Hasher {
	return gTestEnv.Hasher
}
