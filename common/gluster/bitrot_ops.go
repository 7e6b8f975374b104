package gluster

import (
	"regexp"
	"strconv"
	"strings"

	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/remote"

	"github.com/pkg/errors"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

func bitrotCmd(volname string, args ...string) *cmdline.Cmd {
	return cmdline.New("gluster", "volume", "bitrot", volname).Arg(args...)
}

func EnableBitrot(r remote.Runner, mnode, volname string) remote.Result {
	return r.Run(mnode, bitrotCmd(volname, "enable", "--mode=script").String())
}

func DisableBitrot(r remote.Runner, mnode, volname string) remote.Result {
	return r.Run(mnode, bitrotCmd(volname, "disable", "--mode=script").String())
}

var (
	scrubThrottles   = []string{"lazy", "normal", "aggressive"}
	scrubFrequencies = []string{"minute", "hourly", "daily", "weekly", "biweekly", "monthly"}
)

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// ScrubThrottle sets the scrubber impact, one of lazy, normal or aggressive.
func ScrubThrottle(r remote.Runner, mnode, volname, throttle string) remote.Result {
	cmd := bitrotCmd(volname, "scrub-throttle", throttle, "--mode=script").String()
	if !oneOf(throttle, scrubThrottles) {
		logf.Log.Info("invalid scrub throttle", "volume", volname, "throttle", throttle)
		return remote.UsageError(mnode, cmd)
	}
	return r.Run(mnode, cmd)
}

func ScrubFrequency(r remote.Runner, mnode, volname, freq string) remote.Result {
	cmd := bitrotCmd(volname, "scrub-frequency", freq, "--mode=script").String()
	if !oneOf(freq, scrubFrequencies) {
		logf.Log.Info("invalid scrub frequency", "volume", volname, "frequency", freq)
		return remote.UsageError(mnode, cmd)
	}
	return r.Run(mnode, cmd)
}

func ScrubPause(r remote.Runner, mnode, volname string) remote.Result {
	return r.Run(mnode, bitrotCmd(volname, "scrub", "pause", "--mode=script").String())
}

func ScrubResume(r remote.Runner, mnode, volname string) remote.Result {
	return r.Run(mnode, bitrotCmd(volname, "scrub", "resume", "--mode=script").String())
}

func ScrubOnDemand(r remote.Runner, mnode, volname string) remote.Result {
	return r.Run(mnode, bitrotCmd(volname, "scrub", "ondemand", "--mode=script").String())
}

type ScrubNode struct {
	Node               string
	ScrubbedFiles      int
	SkippedFiles       int
	LastCompletedScrub string
	Duration           string
	ErrorCount         int
	CorruptedGfids     []string
}

type ScrubStatus struct {
	Volume    string
	State     string
	Impact    string
	Frequency string
	BitrotLog string
	ScrubLog  string
	Nodes     []ScrubNode
}

var (
	scrubBlockSep = regexp.MustCompile(`(?m)^=+\s*$`)
	scrubHeader   = map[string]*regexp.Regexp{
		"volume":    regexp.MustCompile(`(?m)^Volume name\s*:\s*(.+?)\s*$`),
		"state":     regexp.MustCompile(`(?m)^State of scrub\s*:\s*(.+?)\s*$`),
		"impact":    regexp.MustCompile(`(?m)^Scrub impact\s*:\s*(.+?)\s*$`),
		"frequency": regexp.MustCompile(`(?m)^Scrub frequency\s*:\s*(.+?)\s*$`),
		"bitrotLog": regexp.MustCompile(`(?m)^Bitrot error log location\s*:\s*(.+?)\s*$`),
		"scrubLog":  regexp.MustCompile(`(?m)^Scrubber error log location\s*:\s*(.+?)\s*$`),
	}
	scrubNodeRE     = regexp.MustCompile(`(?m)^Node\s*:\s*(.+?)\s*$`)
	scrubScrubbedRE = regexp.MustCompile(`(?m)^Number of Scrubbed files\s*:\s*(\d+)`)
	scrubSkippedRE  = regexp.MustCompile(`(?m)^Number of Skipped files\s*:\s*(\d+)`)
	scrubLastRE     = regexp.MustCompile(`(?m)^Last completed scrub time\s*:\s*(.+?)\s*$`)
	scrubDurationRE = regexp.MustCompile(`(?m)^Duration of last scrub \(D:M:H:M:S\)\s*:\s*(.+?)\s*$`)
	scrubErrorsRE   = regexp.MustCompile(`(?m)^Error count\s*:\s*(\d+)`)
	corruptedMarker = "Corrupted object's [GFID]:"
	gfidRE          = regexp.MustCompile(`(?m)^\s*([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})`)
)

// ParseScrubStatus parses the text of bitrot scrub status.
func ParseScrubStatus(out string) (*ScrubStatus, error) {
	blocks := scrubBlockSep.Split(out, -1)
	header := map[string]string{}
	for k, re := range scrubHeader {
		m := re.FindStringSubmatch(blocks[0])
		if m == nil {
			return nil, errors.Errorf("scrub status header has no %s", k)
		}
		header[k] = m[1]
	}
	st := &ScrubStatus{
		Volume:    header["volume"],
		State:     header["state"],
		Impact:    header["impact"],
		Frequency: header["frequency"],
		BitrotLog: header["bitrotLog"],
		ScrubLog:  header["scrubLog"],
	}
	for _, b := range blocks[1:] {
		m := scrubNodeRE.FindStringSubmatch(b)
		if m == nil {
			continue
		}
		node, err := parseScrubNode(m[1], b)
		if err != nil {
			return nil, err
		}
		st.Nodes = append(st.Nodes, node)
	}
	if len(st.Nodes) == 0 {
		return nil, errors.New("scrub status lists no nodes")
	}
	return st, nil
}

func parseScrubNode(name, b string) (ScrubNode, error) {
	n := ScrubNode{Node: name}
	ints := []struct {
		re  *regexp.Regexp
		dst *int
	}{
		{scrubScrubbedRE, &n.ScrubbedFiles},
		{scrubSkippedRE, &n.SkippedFiles},
		{scrubErrorsRE, &n.ErrorCount},
	}
	for _, f := range ints {
		m := f.re.FindStringSubmatch(b)
		if m == nil {
			return n, errors.Errorf("node %s: no match for %s", name, f.re)
		}
		*f.dst, _ = strconv.Atoi(m[1])
	}
	if m := scrubLastRE.FindStringSubmatch(b); m != nil {
		n.LastCompletedScrub = m[1]
	}
	if m := scrubDurationRE.FindStringSubmatch(b); m != nil {
		n.Duration = m[1]
	}
	if i := strings.Index(b, corruptedMarker); i >= 0 {
		for _, m := range gfidRE.FindAllStringSubmatch(b[i+len(corruptedMarker):], -1) {
			n.CorruptedGfids = append(n.CorruptedGfids, m[1])
		}
	}
	return n, nil
}

// GetScrubStatus runs scrub status and parses it.
func GetScrubStatus(r remote.Runner, mnode, volname string) (*ScrubStatus, error) {
	res := r.Run(mnode, bitrotCmd(volname, "scrub", "status").String())
	if !res.Ok() {
		return nil, commandFailed(res, "scrub status")
	}
	st, err := ParseScrubStatus(res.Stdout)
	if err != nil {
		return nil, parseFailed(res, "scrub status", err)
	}
	return st, nil
}
