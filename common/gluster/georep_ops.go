package gluster

import (
	"strconv"

	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/remote"

	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// GeorepSlave addresses the slave side of a session.
type GeorepSlave struct {
	User   string
	Host   string
	Volume string
}

func (s GeorepSlave) String() string {
	user := ""
	if s.User != "" && s.User != "root" {
		user = s.User + "@"
	}
	return user + s.Host + "::" + s.Volume
}

func georepCmd(mastervol string, slave GeorepSlave, args ...string) *cmdline.Cmd {
	return cmdline.New("gluster", "volume", "geo-replication", mastervol, slave.String()).Arg(args...)
}

type GeorepCreateOptions struct {
	PushPem  bool
	NoVerify bool
	SSHPort  int
	Force    bool
}

// GeorepCreate creates a session. push-pem and no-verify are mutually
// exclusive.
func GeorepCreate(r remote.Runner, mnode, mastervol string, slave GeorepSlave, opts GeorepCreateOptions) remote.Result {
	cmd := georepCmd(mastervol, slave, "create")
	if opts.PushPem && opts.NoVerify {
		logf.Log.Info("push-pem and no-verify are exclusive", "master", mastervol, "slave", slave.String())
		return remote.UsageError(mnode, cmd.String())
	}
	if opts.SSHPort > 0 {
		cmd.Arg("ssh-port", strconv.Itoa(opts.SSHPort))
	}
	cmd.ArgIf(opts.PushPem, "push-pem").ArgIf(opts.NoVerify, "no-verify").ArgIf(opts.Force, "force")
	return r.Run(mnode, cmd.String())
}

func georepAction(r remote.Runner, mnode, mastervol string, slave GeorepSlave, action string, force bool) remote.Result {
	cmd := georepCmd(mastervol, slave, action).ArgIf(force, "force")
	return r.Run(mnode, cmd.String())
}

func GeorepStart(r remote.Runner, mnode, mastervol string, slave GeorepSlave, force bool) remote.Result {
	return georepAction(r, mnode, mastervol, slave, "start", force)
}

func GeorepStop(r remote.Runner, mnode, mastervol string, slave GeorepSlave, force bool) remote.Result {
	return georepAction(r, mnode, mastervol, slave, "stop", force)
}

func GeorepPause(r remote.Runner, mnode, mastervol string, slave GeorepSlave, force bool) remote.Result {
	return georepAction(r, mnode, mastervol, slave, "pause", force)
}

func GeorepResume(r remote.Runner, mnode, mastervol string, slave GeorepSlave, force bool) remote.Result {
	return georepAction(r, mnode, mastervol, slave, "resume", force)
}

func GeorepDelete(r remote.Runner, mnode, mastervol string, slave GeorepSlave, resetSyncTime bool) remote.Result {
	cmd := georepCmd(mastervol, slave, "delete").ArgIf(resetSyncTime, "reset-sync-time")
	return r.Run(mnode, cmd.String())
}

func GeorepConfigSet(r remote.Runner, mnode, mastervol string, slave GeorepSlave, key, value string) remote.Result {
	return r.Run(mnode, georepCmd(mastervol, slave, "config", key, value).String())
}

type GeorepPair struct {
	MasterNode  string `xml:"master_node"`
	MasterBrick string `xml:"master_brick"`
	SlaveUser   string `xml:"slave_user"`
	Slave       string `xml:"slave"`
	SlaveNode   string `xml:"slave_node"`
	Status      string `xml:"status"`
	CrawlStatus string `xml:"crawl_status"`
}

type georepStatusReply struct {
	CLIStatus
	Pairs []GeorepPair `xml:"geoRep>volume>sessions>session>pair"`
}

// GetGeorepStatus returns one entry per master brick of the session.
func GetGeorepStatus(r remote.Runner, mnode, mastervol string, slave GeorepSlave) ([]GeorepPair, error) {
	cmd := georepCmd(mastervol, slave, "status", "--xml").String()
	var reply georepStatusReply
	if err := runXML(r, mnode, cmd, "geo-replication status", &reply); err != nil {
		return nil, err
	}
	return reply.Pairs, nil
}

// GsecCreate generates the common pem pub file on all nodes.
func GsecCreate(r remote.Runner, mnode string) remote.Result {
	return r.Run(mnode, "gluster system:: execute gsec_create")
}

func GeorepSSHKeyGenerate(r remote.Runner, mnode string) remote.Result {
	return r.Run(mnode, "gluster-georep-sshkey generate")
}

// MountbrokerSetup prepares unprivileged geo-rep on a slave node.
func MountbrokerSetup(r remote.Runner, slaveNode, root, group string) remote.Result {
	return r.Run(slaveNode, cmdline.New("gluster-mountbroker", "setup", root, group).String())
}

func MountbrokerAdd(r remote.Runner, slaveNode, slavevol, user string) remote.Result {
	return r.Run(slaveNode, cmdline.New("gluster-mountbroker", "add", slavevol, user).String())
}
