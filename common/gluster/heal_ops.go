package gluster

import (
	"strconv"

	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/remote"
)

type HealFile struct {
	Gfid string `xml:"gfid,attr"`
	Path string `xml:",chardata"`
}

// HealBrick is one brick entry of heal info. Entry counts are "-" for
// bricks that are not connected.
type HealBrick struct {
	HostUUID        string     `xml:"hostUuid,attr"`
	Name            string     `xml:"name"`
	Status          string     `xml:"status"`
	Files           []HealFile `xml:"file"`
	NumberOfEntries string     `xml:"numberOfEntries"`

	// heal info summary only
	TotalNumberOfEntries         string `xml:"totalNumberOfEntries"`
	NumberOfEntriesInHealPending string `xml:"numberOfEntriesInHealPending"`
	NumberOfEntriesInSplitBrain  string `xml:"numberOfEntriesInSplitBrain"`
	NumberOfEntriesPossiblyHeal  string `xml:"numberOfEntriesPossiblyHealing"`
}

// Entries returns the pending entry count, -1 when the brick did not report
// one.
func (b HealBrick) Entries() int {
	return atoiOr(b.NumberOfEntries, -1)
}

func (b HealBrick) SplitBrainEntries() int {
	return atoiOr(b.NumberOfEntriesInSplitBrain, -1)
}

func (b HealBrick) Connected() bool {
	return b.Status == "Connected"
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

type healInfoReply struct {
	CLIStatus
	Bricks []HealBrick `xml:"healInfo>bricks>brick"`
}

// HealInfoKind selects the heal info variant
type HealInfoKind string

const (
	HealInfoPending    HealInfoKind = ""
	HealInfoSummary    HealInfoKind = "summary"
	HealInfoSplitBrain HealInfoKind = "split-brain"
)

func getHealInfo(r remote.Runner, mnode, volname string, kind HealInfoKind) ([]HealBrick, error) {
	cmd := cmdline.New("gluster", "volume", "heal", volname, "info").Arg(nonEmpty(string(kind))...).Arg("--xml").String()
	var reply healInfoReply
	if err := runXML(r, mnode, cmd, "heal info "+string(kind), &reply); err != nil {
		return nil, err
	}
	return reply.Bricks, nil
}

func GetHealInfo(r remote.Runner, mnode, volname string) ([]HealBrick, error) {
	return getHealInfo(r, mnode, volname, HealInfoPending)
}

func GetHealInfoSummary(r remote.Runner, mnode, volname string) ([]HealBrick, error) {
	return getHealInfo(r, mnode, volname, HealInfoSummary)
}

func GetHealInfoSplitBrain(r remote.Runner, mnode, volname string) ([]HealBrick, error) {
	return getHealInfo(r, mnode, volname, HealInfoSplitBrain)
}

// TriggerHeal starts an index heal.
func TriggerHeal(r remote.Runner, mnode, volname string) remote.Result {
	return r.Run(mnode, cmdline.New("gluster", "volume", "heal", volname).String())
}

func TriggerHealFull(r remote.Runner, mnode, volname string) remote.Result {
	return r.Run(mnode, cmdline.New("gluster", "volume", "heal", volname, "full").String())
}

func EnableSelfHeal(r remote.Runner, mnode, volname string) remote.Result {
	return r.Run(mnode, cmdline.New("gluster", "volume", "heal", volname, "enable").String())
}

func DisableSelfHeal(r remote.Runner, mnode, volname string) remote.Result {
	return r.Run(mnode, cmdline.New("gluster", "volume", "heal", volname, "disable").String())
}
