package gluster

import (
	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/remote"
)

func snapCmd(args ...string) *cmdline.Cmd {
	return cmdline.New("gluster", "snapshot").Arg(args...)
}

type SnapCreateOptions struct {
	// Timestamp keeps the CLI default of suffixing the snapshot name with
	// the creation time.
	Timestamp   bool
	Description string
	Force       bool
}

func SnapCreate(r remote.Runner, mnode, volname, snapname string, opts SnapCreateOptions) remote.Result {
	cmd := snapCmd("create", snapname, volname).
		ArgIf(!opts.Timestamp, "no-timestamp").
		Opt("description", opts.Description).
		ArgIf(opts.Force, "force").
		Arg("--mode=script")
	return r.Run(mnode, cmd.String())
}

func SnapActivate(r remote.Runner, mnode, snapname string, force bool) remote.Result {
	return r.Run(mnode, snapCmd("activate", snapname).ArgIf(force, "force").Arg("--mode=script").String())
}

func SnapDeactivate(r remote.Runner, mnode, snapname string) remote.Result {
	return r.Run(mnode, snapCmd("deactivate", snapname, "--mode=script").String())
}

func SnapDelete(r remote.Runner, mnode, snapname string) remote.Result {
	return r.Run(mnode, snapCmd("delete", snapname, "--mode=script").String())
}

// SnapDeleteByVolume deletes every snapshot of volname.
func SnapDeleteByVolume(r remote.Runner, mnode, volname string) remote.Result {
	return r.Run(mnode, snapCmd("delete", "volume", volname, "--mode=script").String())
}

func SnapDeleteAll(r remote.Runner, mnode string) remote.Result {
	return r.Run(mnode, snapCmd("delete", "all", "--mode=script").String())
}

// SnapRestore restores a snapshot onto its stopped origin volume.
func SnapRestore(r remote.Runner, mnode, snapname string) remote.Result {
	return r.Run(mnode, snapCmd("restore", snapname, "--mode=script").String())
}

// SnapClone creates volume clonename from an activated snapshot.
func SnapClone(r remote.Runner, mnode, snapname, clonename string) remote.Result {
	return r.Run(mnode, snapCmd("clone", clonename, snapname, "--mode=script").String())
}

// SnapConfig sets a snapshot config key, cluster wide when volname is
// empty.
func SnapConfig(r remote.Runner, mnode, volname, key, value string) remote.Result {
	cmd := snapCmd("config").Arg(nonEmpty(volname)...).Arg(key, value, "--mode=script")
	return r.Run(mnode, cmd.String())
}

type snapListReply struct {
	CLIStatus
	Snapshots []string `xml:"snapList>snapshot"`
}

// SnapList lists snapshot names, of volname only when it is set.
func SnapList(r remote.Runner, mnode, volname string) ([]string, error) {
	cmd := snapCmd("list").Arg(nonEmpty(volname)...).Arg("--xml").String()
	var reply snapListReply
	if err := runXML(r, mnode, cmd, "snapshot list", &reply); err != nil {
		return nil, err
	}
	return reply.Snapshots, nil
}

type SnapInfo struct {
	Name         string `xml:"name"`
	UUID         string `xml:"uuid"`
	Description  string `xml:"description"`
	CreateTime   string `xml:"createTime"`
	VolCount     int    `xml:"volCount"`
	SnapVolName  string `xml:"snapVolume>name"`
	Status       string `xml:"snapVolume>status"`
	OriginVolume string `xml:"snapVolume>originVolume>name"`
}

func (s SnapInfo) IsActivated() bool {
	return s.Status == "Started"
}

type snapInfoReply struct {
	CLIStatus
	Snapshots []SnapInfo `xml:"snapInfo>snapshots>snapshot"`
}

// GetSnapInfo returns snapshot info keyed by name. snapname may be empty for
// every snapshot.
func GetSnapInfo(r remote.Runner, mnode, snapname string) (map[string]SnapInfo, error) {
	cmd := snapCmd("info").Arg(nonEmpty(snapname)...).Arg("--xml").String()
	var reply snapInfoReply
	if err := runXML(r, mnode, cmd, "snapshot info", &reply); err != nil {
		return nil, err
	}
	info := make(map[string]SnapInfo, len(reply.Snapshots))
	for _, s := range reply.Snapshots {
		info[s.Name] = s
	}
	return info, nil
}

// EnableUss exposes snapshots under .snaps on mounts of volname.
func EnableUss(r remote.Runner, mnode, volname string) error {
	return SetVolumeOptions(r, mnode, volname, map[string]string{"features.uss": "enable"})
}

func DisableUss(r remote.Runner, mnode, volname string) error {
	return SetVolumeOptions(r, mnode, volname, map[string]string{"features.uss": "disable"})
}
