package features

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"gluster-e2e/common"
	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/gluster"
	"gluster-e2e/common/remote"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// QuotaExpect names the fields of a quota list entry to check, nil fields
// are not checked.
type QuotaExpect struct {
	HardLimit        *int64
	SoftLimitPercent *int64
	SoftLimitValue   *int64
	UsedSpace        *int64
	AvailSpace       *int64
	SlExceeded       *bool
	HlExceeded       *bool
}

func Int64(v int64) *int64 { return &v }

func Bool(v bool) *bool { return &v }

// Bytes converts a human readable size such as "100MiB", panicking on
// malformed constants.
func Bytes(size string) int64 {
	n, err := humanize.ParseBytes(size)
	if err != nil {
		panic(err)
	}
	return int64(n)
}

// QuotaValidate compares the quota list entry of path with want.
func QuotaValidate(r remote.Runner, mnode, volname, qpath string, want QuotaExpect) (bool, error) {
	limits, err := gluster.QuotaFetchList(r, mnode, volname, qpath)
	if err != nil {
		return false, err
	}
	got, ok := limits[qpath]
	if !ok {
		return false, errors.Errorf("no quota limit on %s of %s", qpath, volname)
	}
	ints := []struct {
		name string
		want *int64
		got  int64
	}{
		{"hard_limit", want.HardLimit, got.HardLimit},
		{"soft_limit_percent", want.SoftLimitPercent, got.SoftLimitPercent},
		{"soft_limit_value", want.SoftLimitValue, got.SoftLimitValue},
		{"used_space", want.UsedSpace, got.UsedSpace},
		{"avail_space", want.AvailSpace, got.AvailSpace},
	}
	match := true
	for _, f := range ints {
		if f.want != nil && *f.want != f.got {
			logf.Log.Info("Quota field differs", "volume", volname, "path", qpath, "field", f.name, "want", *f.want, "got", f.got)
			match = false
		}
	}
	bools := []struct {
		name string
		want *bool
		got  bool
	}{
		{"sl_exceeded", want.SlExceeded, got.SlExceeded},
		{"hl_exceeded", want.HlExceeded, got.HlExceeded},
	}
	for _, f := range bools {
		if f.want != nil && *f.want != f.got {
			logf.Log.Info("Quota field differs", "volume", volname, "path", qpath, "field", f.name, "want", *f.want, "got", f.got)
			match = false
		}
	}
	return match, nil
}

// BrickLogFile is the log file glusterfsd writes for brick.
func BrickLogFile(brick string) string {
	_, p := gluster.SplitBrick(brick)
	name := strings.ReplaceAll(strings.TrimPrefix(p, "/"), "/", "-")
	return path.Join(common.BrickLogDir, name+".log")
}

// MarkBrickLogs appends a unique marker line to the log of every brick and
// returns it. Alerts are counted between two markers.
func MarkBrickLogs(r remote.Runner, bricks []string) (string, error) {
	marker := "gluster-e2e-marker-" + uuid.New().String()
	for _, b := range bricks {
		host, _ := gluster.SplitBrick(b)
		cmd := cmdline.New("echo", marker).Raw(">>").Arg(BrickLogFile(b)).String()
		if res := r.Run(host, cmd); !res.Ok() {
			return "", gluster.CommandFailed(res, "log marker")
		}
	}
	return marker, nil
}

// CountLogMessages counts lines carrying msgID between the start and end
// markers, summed over the logs of every brick.
func CountLogMessages(r remote.Runner, bricks []string, start, end, msgID string) (int, error) {
	prog := fmt.Sprintf(`index($0, "%s") {f=1; next} index($0, "%s") {f=0} f && index($0, "%s") {c++} END {print c+0}`, start, end, msgID)
	total := 0
	for _, b := range bricks {
		host, _ := gluster.SplitBrick(b)
		res := r.Run(host, cmdline.New("awk", prog, BrickLogFile(b)).String())
		if !res.Ok() {
			return 0, gluster.CommandFailed(res, "count log messages")
		}
		n, err := strconv.Atoi(strings.TrimSpace(res.Stdout))
		if err != nil {
			return 0, gluster.ParseFailed(res, "count log messages", err)
		}
		total += n
	}
	return total, nil
}

// CountQuotaAlerts counts soft limit alerts between two markers.
func CountQuotaAlerts(r remote.Runner, bricks []string, start, end string) (int, error) {
	return CountLogMessages(r, bricks, start, end, common.QuotaSoftLimitAlertMsgID)
}
