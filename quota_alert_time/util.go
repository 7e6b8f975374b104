package quota_alert_time

import (
	"context"
	"path"
	"strconv"
	"time"

	"gluster-e2e/common"
	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/e2e_config"
	"gluster-e2e/common/features"
	"gluster-e2e/common/gluster"
	"gluster-e2e/common/glustertest"
	"gluster-e2e/common/workload"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

const (
	alertTimeoutSecs = "120s"
	alertPollSecs    = "5s"
)

var scn *glustertest.QuotaScenario

func expectOK(res interface{ Ok() bool }, what string) {
	ExpectWithOffset(1, res.Ok()).To(BeTrue(), what)
}

func AlertTimeTest() {
	params := e2e_config.GetConfig().QuotaAlertTime
	logf.Log.Info("Test", "parameters", params)

	r := glustertest.Runner()
	scn = glustertest.NewQuotaScenario(context.Background(), r, glustertest.Config(), common.VolDistributedReplicated)
	Expect(scn.SetupVolumeAndMount()).To(Succeed())
	vol := scn.Volume.Name
	m := scn.Mounts[0]

	hard := features.Bytes(params.HardLimit)
	expectOK(gluster.QuotaLimitUsage(r, scn.Mnode, vol, "/", strconv.FormatInt(hard, 10), ""), "setting the hard limit")
	expectOK(gluster.QuotaSetSoftTimeout(r, scn.Mnode, vol, "0"), "setting soft-timeout")
	expectOK(gluster.QuotaSetHardTimeout(r, scn.Mnode, vol, "0"), "setting hard-timeout")
	expectOK(gluster.QuotaSetAlertTime(r, scn.Mnode, vol, "0"), "setting alert-time")

	ok, err := features.QuotaValidate(r, scn.Mnode, vol, "/", features.QuotaExpect{
		HardLimit:        features.Int64(hard),
		SoftLimitPercent: features.Int64(50),
	})
	Expect(err).ToNot(HaveOccurred())
	Expect(ok).To(BeTrue(), "quota limits of / are not as set")

	bricks, err := scn.Bricks()
	Expect(err).ToNot(HaveOccurred())
	mark := func() string {
		marker, err := features.MarkBrickLogs(r, bricks)
		ExpectWithOffset(1, err).ToNot(HaveOccurred())
		return marker
	}
	alertsSince := func(start string) func() (int, error) {
		return func() (int, error) {
			return features.CountQuotaAlerts(r, bricks, start, mark())
		}
	}
	slExceeded := func(want bool) func() (bool, error) {
		return func() (bool, error) {
			return features.QuotaValidate(r, scn.Mnode, vol, "/", features.QuotaExpect{SlExceeded: features.Bool(want)})
		}
	}
	write := func(name, size string) {
		cmd, err := workload.WriteFileCmd(path.Join(m.MountPoint, name), size)
		ExpectWithOffset(1, err).ToNot(HaveOccurred())
		ExpectWithOffset(1, workload.ValidateIOProcs([]*workload.IOProc{workload.StartIO(r, m, cmd)})).To(BeTrue(), "writing %s of %s", size, name)
	}

	By("writing below the soft limit")
	start := mark()
	write("file1", params.FirstWrite)
	Expect(alertsSince(start)()).To(BeZero(), "alert logged below the soft limit")

	By("crossing the soft limit")
	start = mark()
	write("file2", params.SecondWrite)
	Eventually(alertsSince(start), alertTimeoutSecs, alertPollSecs).Should(BeNumerically(">=", 1), "no soft limit alert")
	Eventually(slExceeded(true), alertTimeoutSecs, alertPollSecs).Should(BeTrue(), "sl_exceeded not set")

	By("dropping back below the soft limit")
	expectOK(r.Run(m.Client, cmdline.New("rm", "-f", path.Join(m.MountPoint, "file2")).String()), "removing file2")
	shrink := strconv.FormatInt(features.Bytes(params.ShrinkTo), 10)
	expectOK(r.Run(m.Client, cmdline.New("truncate", "-s", shrink, path.Join(m.MountPoint, "file1")).String()), "truncating file1")
	Eventually(slExceeded(false), alertTimeoutSecs, alertPollSecs).Should(BeTrue(), "sl_exceeded still set")

	start = mark()
	// alert-time 0 would repeat an alert at once if usage were still above
	time.Sleep(5 * time.Second)
	Expect(alertsSince(start)()).To(BeZero(), "alert logged below the soft limit")
}
