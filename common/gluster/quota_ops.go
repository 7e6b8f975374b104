package gluster

import (
	"strconv"
	"strings"

	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/remote"

	"github.com/pkg/errors"
)

// QuotaNA is stored in numeric quota fields reported as N/A.
const QuotaNA int64 = -1

func quotaCmd(volname string, args ...string) *cmdline.Cmd {
	return cmdline.New("gluster", "volume", "quota", volname).Arg(args...)
}

func QuotaEnable(r remote.Runner, mnode, volname string) remote.Result {
	return r.Run(mnode, quotaCmd(volname, "enable").String())
}

func QuotaDisable(r remote.Runner, mnode, volname string) remote.Result {
	return r.Run(mnode, cmdline.New("gluster", "--mode=script", "volume", "quota", volname, "disable").String())
}

// QuotaLimitUsage sets a byte limit on path. softLimit is a percentage such
// as "80%" and may be empty for the volume default.
func QuotaLimitUsage(r remote.Runner, mnode, volname, path, limit, softLimit string) remote.Result {
	cmd := quotaCmd(volname, "limit-usage", path, limit).Arg(nonEmpty(softLimit)...).Arg("--mode=script")
	return r.Run(mnode, cmd.String())
}

func QuotaLimitObjects(r remote.Runner, mnode, volname, path, limit, softLimit string) remote.Result {
	cmd := quotaCmd(volname, "limit-objects", path, limit).Arg(nonEmpty(softLimit)...).Arg("--mode=script")
	return r.Run(mnode, cmd.String())
}

func QuotaRemove(r remote.Runner, mnode, volname, path string) remote.Result {
	return r.Run(mnode, quotaCmd(volname, "remove", path, "--mode=script").String())
}

func QuotaRemoveObjects(r remote.Runner, mnode, volname, path string) remote.Result {
	return r.Run(mnode, quotaCmd(volname, "remove-objects", path, "--mode=script").String())
}

func QuotaSetHardTimeout(r remote.Runner, mnode, volname, timeout string) remote.Result {
	return r.Run(mnode, quotaCmd(volname, "hard-timeout", timeout, "--mode=script").String())
}

func QuotaSetSoftTimeout(r remote.Runner, mnode, volname, timeout string) remote.Result {
	return r.Run(mnode, quotaCmd(volname, "soft-timeout", timeout, "--mode=script").String())
}

func QuotaSetAlertTime(r remote.Runner, mnode, volname, alertTime string) remote.Result {
	return r.Run(mnode, quotaCmd(volname, "alert-time", alertTime, "--mode=script").String())
}

func QuotaSetDefaultSoftLimit(r remote.Runner, mnode, volname, softLimit string) remote.Result {
	return r.Run(mnode, quotaCmd(volname, "default-soft-limit", softLimit, "--mode=script").String())
}

// QuotaLimit is one usage limit entry. Byte fields hold QuotaNA when the
// CLI reported N/A.
type QuotaLimit struct {
	Path             string
	HardLimit        int64
	SoftLimitPercent int64
	SoftLimitValue   int64
	UsedSpace        int64
	AvailSpace       int64
	SlExceeded       bool
	HlExceeded       bool
}

// QuotaObjectLimit is one object-count limit entry.
type QuotaObjectLimit struct {
	Path             string
	HardLimit        int64
	SoftLimitPercent int64
	SoftLimitValue   int64
	FileCount        int64
	DirCount         int64
	Available        int64
	SlExceeded       bool
	HlExceeded       bool
}

type rawQuotaLimit struct {
	Path             string `xml:"path"`
	HardLimit        string `xml:"hard_limit"`
	SoftLimitPercent string `xml:"soft_limit_percent"`
	SoftLimitValue   string `xml:"soft_limit_value"`
	UsedSpace        string `xml:"used_space"`
	AvailSpace       string `xml:"avail_space"`
	FileCount        string `xml:"file_count"`
	DirCount         string `xml:"dir_count"`
	Available        string `xml:"available"`
	SlExceeded       string `xml:"sl_exceeded"`
	HlExceeded       string `xml:"hl_exceeded"`
}

type quotaListReply struct {
	CLIStatus
	Limits []rawQuotaLimit `xml:"volQuota>limit"`
}

func quotaInt(field, s string) (int64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "N/A" || s == "" {
		return QuotaNA, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "field %s", field)
	}
	return n, nil
}

func quotaBool(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "Yes")
}

// quotaInts converts the named fields in order, stopping at the first
// malformed one.
func quotaInts(fields ...string) ([]int64, error) {
	out := make([]int64, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		n, err := quotaInt(fields[i], fields[i+1])
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func fetchQuotaList(r remote.Runner, mnode, volname, sub string, paths []string) (remote.Result, []rawQuotaLimit, error) {
	cmd := quotaCmd(volname, sub).Arg(paths...).Arg("--xml").String()
	res := r.Run(mnode, cmd)
	if !res.Ok() {
		return res, nil, commandFailed(res, "quota "+sub)
	}
	var reply quotaListReply
	if err := decodeXML(res, "quota "+sub, &reply); err != nil {
		return res, nil, err
	}
	return res, reply.Limits, nil
}

// QuotaFetchList returns the usage limits keyed by path, for every limited
// path when paths is empty.
func QuotaFetchList(r remote.Runner, mnode, volname string, paths ...string) (map[string]QuotaLimit, error) {
	res, raw, err := fetchQuotaList(r, mnode, volname, "list", paths)
	if err != nil {
		return nil, err
	}
	limits := make(map[string]QuotaLimit, len(raw))
	for _, l := range raw {
		n, err := quotaInts(
			"hard_limit", l.HardLimit,
			"soft_limit_percent", l.SoftLimitPercent,
			"soft_limit_value", l.SoftLimitValue,
			"used_space", l.UsedSpace,
			"avail_space", l.AvailSpace)
		if err != nil {
			return nil, parseFailed(res, "quota list", errors.Wrapf(err, "path %s", l.Path))
		}
		limits[l.Path] = QuotaLimit{
			Path:             l.Path,
			HardLimit:        n[0],
			SoftLimitPercent: n[1],
			SoftLimitValue:   n[2],
			UsedSpace:        n[3],
			AvailSpace:       n[4],
			SlExceeded:       quotaBool(l.SlExceeded),
			HlExceeded:       quotaBool(l.HlExceeded),
		}
	}
	return limits, nil
}

func QuotaFetchListObjects(r remote.Runner, mnode, volname string, paths ...string) (map[string]QuotaObjectLimit, error) {
	res, raw, err := fetchQuotaList(r, mnode, volname, "list-objects", paths)
	if err != nil {
		return nil, err
	}
	limits := make(map[string]QuotaObjectLimit, len(raw))
	for _, l := range raw {
		n, err := quotaInts(
			"hard_limit", l.HardLimit,
			"soft_limit_percent", l.SoftLimitPercent,
			"soft_limit_value", l.SoftLimitValue,
			"file_count", l.FileCount,
			"dir_count", l.DirCount,
			"available", l.Available)
		if err != nil {
			return nil, parseFailed(res, "quota list-objects", errors.Wrapf(err, "path %s", l.Path))
		}
		limits[l.Path] = QuotaObjectLimit{
			Path:             l.Path,
			HardLimit:        n[0],
			SoftLimitPercent: n[1],
			SoftLimitValue:   n[2],
			FileCount:        n[3],
			DirCount:         n[4],
			Available:        n[5],
			SlExceeded:       quotaBool(l.SlExceeded),
			HlExceeded:       quotaBool(l.HlExceeded),
		}
	}
	return limits, nil
}
