package gluster

import (
	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/remote"

	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// TaskState is the statusStr of a rebalance or remove-brick node
type TaskState string

const (
	TaskNotStarted         TaskState = "not started"
	TaskInProgress         TaskState = "in progress"
	TaskCompleted          TaskState = "completed"
	TaskStopped            TaskState = "stopped"
	TaskFailed             TaskState = "failed"
	TaskFixLayoutStarted   TaskState = "fix-layout in progress"
	TaskFixLayoutCompleted TaskState = "fix-layout completed"
	TaskFixLayoutFailed    TaskState = "fix-layout failed"
	TaskFixLayoutStopped   TaskState = "fix-layout stopped"
)

// TaskNode holds the counters of one node, or the aggregate.
type TaskNode struct {
	NodeName  string    `xml:"nodeName"`
	ID        string    `xml:"id"`
	Files     int64     `xml:"files"`
	Size      int64     `xml:"size"`
	Lookups   int64     `xml:"lookups"`
	Failures  int64     `xml:"failures"`
	Skipped   int64     `xml:"skipped"`
	Status    int       `xml:"status"`
	StatusStr TaskState `xml:"statusStr"`
	Runtime   string    `xml:"runtime"`
}

type TaskStatus struct {
	TaskID    string     `xml:"task-id"`
	Op        int        `xml:"op"`
	NodeCount int        `xml:"nodeCount"`
	Nodes     []TaskNode `xml:"node"`
	Aggregate TaskNode   `xml:"aggregate"`
}

type rebalanceReply struct {
	CLIStatus
	Task TaskStatus `xml:"volRebalance"`
}

type RebalanceOptions struct {
	FixLayout bool
	Force     bool
}

// RebalanceStart starts a rebalance. fix-layout takes precedence over force,
// which is dropped with a warning.
func RebalanceStart(r remote.Runner, mnode, volname string, opts RebalanceOptions) remote.Result {
	if opts.FixLayout && opts.Force {
		logf.Log.Info("Warning: fix-layout and force both set, ignoring force", "volume", volname)
		opts.Force = false
	}
	cmd := cmdline.New("gluster", "volume", "rebalance", volname).
		ArgIf(opts.FixLayout, "fix-layout").
		Arg("start").
		ArgIf(opts.Force, "force").
		Arg("--mode=script")
	return r.Run(mnode, cmd.String())
}

func RebalanceStop(r remote.Runner, mnode, volname string) remote.Result {
	return r.Run(mnode, cmdline.New("gluster", "volume", "rebalance", volname, "stop", "--mode=script").String())
}

// GetRebalanceStatus parses rebalance status into per-node and aggregate
// counters.
func GetRebalanceStatus(r remote.Runner, mnode, volname string) (*TaskStatus, error) {
	cmd := cmdline.New("gluster", "volume", "rebalance", volname, "status", "--xml").String()
	var reply rebalanceReply
	if err := runXML(r, mnode, cmd, "rebalance status", &reply); err != nil {
		return nil, err
	}
	return &reply.Task, nil
}
