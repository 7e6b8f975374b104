package gluster

import (
	"sort"
	"strconv"
	"strings"

	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/remote"

	"github.com/pkg/errors"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// Brick as reported by volume info
type Brick struct {
	Name      string `xml:"name"`
	HostUUID  string `xml:"hostUuid"`
	IsArbiter int    `xml:"isArbiter"`
}

// Host and Path split a brick name of the form host:/path.
func (b Brick) Host() string {
	host, _ := SplitBrick(b.Name)
	return host
}

func (b Brick) Path() string {
	_, path := SplitBrick(b.Name)
	return path
}

// SplitBrick splits host:/path. Hosts may be IPv6 literals so the split is
// at the last ":/".
func SplitBrick(brick string) (string, string) {
	i := strings.LastIndex(brick, ":/")
	if i < 0 {
		return brick, ""
	}
	return brick[:i], brick[i+1:]
}

type VolumeOption struct {
	Name  string `xml:"name"`
	Value string `xml:"value"`
}

type VolumeInfo struct {
	Name            string `xml:"name"`
	ID              string `xml:"id"`
	Status          int    `xml:"status"`
	StatusStr       string `xml:"statusStr"`
	SnapshotCount   int    `xml:"snapshotCount"`
	BrickCount      int    `xml:"brickCount"`
	DistCount       int    `xml:"distCount"`
	ReplicaCount    int    `xml:"replicaCount"`
	ArbiterCount    int    `xml:"arbiterCount"`
	DisperseCount   int    `xml:"disperseCount"`
	RedundancyCount int    `xml:"redundancyCount"`
	Type            int    `xml:"type"`
	TypeStr         string `xml:"typeStr"`
	Transport       int    `xml:"transport"`

	Bricks     []Brick        `xml:"bricks>brick"`
	HotBricks  []Brick        `xml:"bricks>hotBricks>brick"`
	ColdBricks []Brick        `xml:"bricks>coldBricks>brick"`
	Options    []VolumeOption `xml:"options>option"`

	// Tier volumes only
	HotReplicaCount   int `xml:"bricks>hotBricks>hotreplicaCount"`
	ColdReplicaCount  int `xml:"bricks>coldBricks>coldreplicaCount"`
	ColdDisperseCount int `xml:"bricks>coldBricks>colddisperseCount"`
}

func (v *VolumeInfo) IsStarted() bool {
	return v.Status == 1
}

func (v *VolumeInfo) IsTier() bool {
	return len(v.HotBricks) != 0 || strings.EqualFold(v.TypeStr, "Tier")
}

// BrickNames returns every brick of the volume in volume order, hot tier
// bricks first.
func (v *VolumeInfo) BrickNames() []string {
	var names []string
	for _, group := range [][]Brick{v.HotBricks, v.ColdBricks, v.Bricks} {
		for _, b := range group {
			names = append(names, b.Name)
		}
	}
	return names
}

// SubvolSize is the number of bricks in one distribute subvolume.
func (v *VolumeInfo) SubvolSize() int {
	t := strings.ToLower(v.TypeStr)
	switch {
	case strings.Contains(t, "replicate") && v.ReplicaCount > 0:
		return v.ReplicaCount
	case strings.Contains(t, "disperse") && v.DisperseCount > 0:
		return v.DisperseCount
	case t == "distribute":
		return 1
	case v.DistCount > 0:
		return v.DistCount
	}
	return 1
}

// SubvolCount is the number of distribute subvolumes.
func (v *VolumeInfo) SubvolCount() int {
	return v.BrickCount / v.SubvolSize()
}

func (v *VolumeInfo) OptionMap() map[string]string {
	m := make(map[string]string, len(v.Options))
	for _, o := range v.Options {
		m[o.Name] = o.Value
	}
	return m
}

type volInfoReply struct {
	CLIStatus
	Volumes []*VolumeInfo `xml:"volInfo>volumes>volume"`
}

func volArg(volname string) string {
	if volname == "" {
		return "all"
	}
	return volname
}

// GetVolumeInfo returns volume info keyed by volume name, for every volume
// when volname is empty.
func GetVolumeInfo(r remote.Runner, mnode, volname string) (map[string]*VolumeInfo, error) {
	cmd := cmdline.New("gluster", "volume", "info", volArg(volname), "--xml").String()
	var reply volInfoReply
	if err := runXML(r, mnode, cmd, "volume info", &reply); err != nil {
		return nil, err
	}
	info := make(map[string]*VolumeInfo, len(reply.Volumes))
	for _, v := range reply.Volumes {
		info[v.Name] = v
	}
	return info, nil
}

// GetVolume returns the info of a single volume.
func GetVolume(r remote.Runner, mnode, volname string) (*VolumeInfo, error) {
	info, err := GetVolumeInfo(r, mnode, volname)
	if err != nil {
		return nil, err
	}
	v, ok := info[volname]
	if !ok {
		return nil, &ParseError{Host: mnode, Cmd: "gluster volume info " + volname, Err: errors.Errorf("volume %s missing from reply", volname)}
	}
	return v, nil
}

// GetVolumeList lists the volume names known to the cluster.
func GetVolumeList(r remote.Runner, mnode string) ([]string, error) {
	res := r.Run(mnode, "gluster volume list")
	if !res.Ok() {
		return nil, commandFailed(res, "volume list")
	}
	var names []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "No volumes present") {
			continue
		}
		names = append(names, line)
	}
	return names, nil
}

type VolumeCreateOptions struct {
	ReplicaCount      int
	ArbiterCount      int
	DisperseCount     int
	DisperseDataCount int
	RedundancyCount   int
	Transport         string
	Force             bool
}

// VolumeCreate creates a volume from bricks. An arbiter count without a
// replica count is rejected before dispatch.
func VolumeCreate(r remote.Runner, mnode, volname string, bricks []string, opts VolumeCreateOptions) remote.Result {
	cmd := cmdline.New("gluster", "volume", "create", volname)
	if opts.ArbiterCount > 0 && opts.ReplicaCount == 0 {
		logf.Log.Info("arbiter count requires a replica count", "volume", volname)
		return remote.UsageError(mnode, cmd.String())
	}
	if opts.ReplicaCount > 0 {
		cmd.Arg("replica", strconv.Itoa(opts.ReplicaCount))
	}
	if opts.ArbiterCount > 0 {
		cmd.Arg("arbiter", strconv.Itoa(opts.ArbiterCount))
	}
	if opts.DisperseCount > 0 {
		cmd.Arg("disperse", strconv.Itoa(opts.DisperseCount))
	}
	if opts.DisperseDataCount > 0 {
		cmd.Arg("disperse-data", strconv.Itoa(opts.DisperseDataCount))
	}
	if opts.RedundancyCount > 0 {
		cmd.Arg("redundancy", strconv.Itoa(opts.RedundancyCount))
	}
	cmd.Opt("transport", opts.Transport)
	cmd.Arg(bricks...).Arg("--mode=script").ArgIf(opts.Force, "force")
	return r.Run(mnode, cmd.String())
}

func VolumeStart(r remote.Runner, mnode, volname string, force bool) remote.Result {
	cmd := cmdline.New("gluster", "volume", "start", volname).ArgIf(force, "force").Arg("--mode=script")
	return r.Run(mnode, cmd.String())
}

func VolumeStop(r remote.Runner, mnode, volname string, force bool) remote.Result {
	cmd := cmdline.New("gluster", "volume", "stop", volname).ArgIf(force, "force").Arg("--mode=script")
	return r.Run(mnode, cmd.String())
}

// VolumeDelete deletes the volume definition, brick directories are left
// alone.
func VolumeDelete(r remote.Runner, mnode, volname string) remote.Result {
	return r.Run(mnode, cmdline.New("gluster", "volume", "delete", volname, "--mode=script").String())
}

func VolumeReset(r remote.Runner, mnode, volname string, force bool) remote.Result {
	cmd := cmdline.New("gluster", "volume", "reset", volname).ArgIf(force, "force").Arg("--mode=script")
	return r.Run(mnode, cmd.String())
}

func ResetVolumeOption(r remote.Runner, mnode, volname, option string, force bool) remote.Result {
	cmd := cmdline.New("gluster", "volume", "reset", volname, option).ArgIf(force, "force").Arg("--mode=script")
	return r.Run(mnode, cmd.String())
}

// SetVolumeOptions sets options one at a time in name order and stops at the
// first failure. Use volname "all" for cluster wide options.
func SetVolumeOptions(r remote.Runner, mnode, volname string, options map[string]string) error {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd := cmdline.New("gluster", "volume", "set", volname, k, options[k], "--mode=script").String()
		if res := r.Run(mnode, cmd); !res.Ok() {
			return commandFailed(res, "volume set")
		}
	}
	return nil
}

// GetVolumeOptions returns the value of option, or of every option when
// option is empty.
func GetVolumeOptions(r remote.Runner, mnode, volname, option string) (map[string]string, error) {
	if option == "" {
		option = "all"
	}
	res := r.Run(mnode, cmdline.New("gluster", "volume", "get", volname, option).String())
	if !res.Ok() {
		return nil, commandFailed(res, "volume get")
	}
	opts := map[string]string{}
	for _, line := range strings.Split(res.Stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] == "Option" || strings.HasPrefix(fields[0], "---") {
			continue
		}
		opts[fields[0]] = strings.Join(fields[1:], " ")
	}
	if len(opts) == 0 {
		return nil, parseFailed(res, "volume get", errors.New("no options in output"))
	}
	return opts, nil
}

// StatusNode is one process of a volume: a brick or a daemon. Daemon entries
// carry the daemon name in Hostname and the host in Path.
type StatusNode struct {
	Hostname string `xml:"hostname"`
	Path     string `xml:"path"`
	PeerID   string `xml:"peerid"`
	Status   int    `xml:"status"`
	Port     string `xml:"port"`
	Pid      string `xml:"pid"`

	// Set with the detail option only
	SizeTotal   string `xml:"sizeTotal"`
	SizeFree    string `xml:"sizeFree"`
	Device      string `xml:"device"`
	FsName      string `xml:"fsName"`
	InodesTotal string `xml:"inodesTotal"`
	InodesFree  string `xml:"inodesFree"`
}

func (n StatusNode) Online() bool {
	return n.Status == 1
}

func (n StatusNode) IsBrick() bool {
	return strings.HasPrefix(n.Path, "/")
}

// BrickName is the host:/path form of a brick entry.
func (n StatusNode) BrickName() string {
	return n.Hostname + ":" + n.Path
}

type VolumeTask struct {
	Type      string `xml:"type"`
	ID        string `xml:"id"`
	Status    int    `xml:"status"`
	StatusStr string `xml:"statusStr"`
}

type VolumeStatus struct {
	Name      string       `xml:"volName"`
	NodeCount int          `xml:"nodeCount"`
	Nodes     []StatusNode `xml:"node"`
	Tasks     []VolumeTask `xml:"tasks>task"`
}

// Brick returns the status entry of brick host:/path, nil when the brick is
// not listed.
func (v *VolumeStatus) Brick(brick string) *StatusNode {
	for i := range v.Nodes {
		if v.Nodes[i].IsBrick() && v.Nodes[i].BrickName() == brick {
			return &v.Nodes[i]
		}
	}
	return nil
}

// Daemons returns the entries of a daemon such as "Self-heal Daemon".
func (v *VolumeStatus) Daemons(name string) []StatusNode {
	var out []StatusNode
	for _, n := range v.Nodes {
		if n.Hostname == name {
			out = append(out, n)
		}
	}
	return out
}

type volStatusReply struct {
	CLIStatus
	Volumes []*VolumeStatus `xml:"volStatus>volumes>volume"`
}

// Daemon names as reported in volume status
const (
	SelfHealDaemon = "Self-heal Daemon"
	NfsServer      = "NFS Server"
	QuotaDaemon    = "Quota Daemon"
	BitrotDaemon   = "Bitrot Daemon"
	ScrubberDaemon = "Scrubber Daemon"
	SnapshotDaemon = "Snapshot Daemon"
)

// GetVolumeStatus returns volume status keyed by volume name. service
// narrows it to one brick or daemon and option is one of detail, clients,
// mem, inode, fd or callpool.
func GetVolumeStatus(r remote.Runner, mnode, volname, service, option string) (map[string]*VolumeStatus, error) {
	cmd := cmdline.New("gluster", "volume", "status", volArg(volname)).Arg(nonEmpty(service, option)...).Arg("--xml").String()
	var reply volStatusReply
	if err := runXML(r, mnode, cmd, "volume status", &reply); err != nil {
		return nil, err
	}
	status := make(map[string]*VolumeStatus, len(reply.Volumes))
	for _, v := range reply.Volumes {
		status[v.Name] = v
	}
	return status, nil
}

// GetVolStatus is GetVolumeStatus for a single volume.
func GetVolStatus(r remote.Runner, mnode, volname string) (*VolumeStatus, error) {
	status, err := GetVolumeStatus(r, mnode, volname, "", "")
	if err != nil {
		return nil, err
	}
	v, ok := status[volname]
	if !ok {
		return nil, &ParseError{Host: mnode, Cmd: "gluster volume status " + volname, Err: errors.Errorf("volume %s missing from reply", volname)}
	}
	return v, nil
}

func nonEmpty(args ...string) []string {
	var out []string
	for _, a := range args {
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}
