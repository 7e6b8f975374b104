package gluster

import (
	"strconv"

	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/remote"

	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

type AddBrickOptions struct {
	ReplicaCount int
	ArbiterCount int
	Force        bool
}

func AddBrick(r remote.Runner, mnode, volname string, bricks []string, opts AddBrickOptions) remote.Result {
	cmd := cmdline.New("gluster", "volume", "add-brick", volname)
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
	cmd.Arg(bricks...).ArgIf(opts.Force, "force").Arg("--mode=script")
	return r.Run(mnode, cmd.String())
}

// RemoveBrickPhase is the trailing keyword of remove-brick
type RemoveBrickPhase string

const (
	RemoveBrickStart  RemoveBrickPhase = "start"
	RemoveBrickStatus RemoveBrickPhase = "status"
	RemoveBrickStop   RemoveBrickPhase = "stop"
	RemoveBrickCommit RemoveBrickPhase = "commit"
	RemoveBrickForce  RemoveBrickPhase = "force"
)

func (p RemoveBrickPhase) valid() bool {
	switch p {
	case RemoveBrickStart, RemoveBrickStatus, RemoveBrickStop, RemoveBrickCommit, RemoveBrickForce:
		return true
	}
	return false
}

// RemoveBrick runs one phase of remove-brick. replicaCount is passed when it
// is non zero, to shrink the replica count.
func RemoveBrick(r remote.Runner, mnode, volname string, bricks []string, phase RemoveBrickPhase, replicaCount int) remote.Result {
	cmd := cmdline.New("gluster", "volume", "remove-brick", volname)
	if replicaCount > 0 {
		cmd.Arg("replica", strconv.Itoa(replicaCount))
	}
	cmd.Arg(bricks...)
	if !phase.valid() {
		logf.Log.Info("invalid remove-brick phase", "volume", volname, "phase", phase)
		return remote.UsageError(mnode, cmd.String())
	}
	cmd.Arg(string(phase), "--mode=script")
	return r.Run(mnode, cmd.String())
}

type removeBrickReply struct {
	CLIStatus
	Task TaskStatus `xml:"volRemoveBrick"`
}

// GetRemoveBrickStatus parses remove-brick status.
func GetRemoveBrickStatus(r remote.Runner, mnode, volname string, bricks []string) (*TaskStatus, error) {
	cmd := cmdline.New("gluster", "volume", "remove-brick", volname).Arg(bricks...).Arg("status", "--xml").String()
	var reply removeBrickReply
	if err := runXML(r, mnode, cmd, "remove-brick status", &reply); err != nil {
		return nil, err
	}
	return &reply.Task, nil
}

// ReplaceBrick replaces src with dst, only "commit force" is supported by
// the CLI.
func ReplaceBrick(r remote.Runner, mnode, volname, src, dst string) remote.Result {
	cmd := cmdline.New("gluster", "volume", "replace-brick", volname, src, dst, "commit", "force", "--mode=script")
	return r.Run(mnode, cmd.String())
}

type ResetBrickPhase string

const (
	ResetBrickStart  ResetBrickPhase = "start"
	ResetBrickCommit ResetBrickPhase = "commit"
)

// ResetBrick starts or commits a reset of src. dst and force only apply to
// commit.
func ResetBrick(r remote.Runner, mnode, volname, src string, phase ResetBrickPhase, dst string, force bool) remote.Result {
	cmd := cmdline.New("gluster", "volume", "reset-brick", volname, src)
	switch phase {
	case ResetBrickStart:
		if dst != "" || force {
			logf.Log.Info("reset-brick start takes no destination or force", "volume", volname)
			return remote.UsageError(mnode, cmd.String())
		}
		cmd.Arg("start")
	case ResetBrickCommit:
		if dst == "" {
			dst = src
		}
		cmd.Arg(dst, "commit").ArgIf(force, "force")
	default:
		logf.Log.Info("invalid reset-brick phase", "volume", volname, "phase", phase)
		return remote.UsageError(mnode, cmd.String())
	}
	return r.Run(mnode, cmd.Arg("--mode=script").String())
}
