package cluster

import (
	"context"
	"time"

	"gluster-e2e/common/gluster"
	"gluster-e2e/common/remote"
	"gluster-e2e/common/waiter"

	"github.com/pkg/errors"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// taskStateIs builds a condition over the aggregate state of a task. States
// in failed are terminal.
func taskStateIs(fetch func() (*gluster.TaskStatus, error), done gluster.TaskState, failed ...gluster.TaskState) waiter.Condition {
	return func() (bool, error) {
		st, err := fetch()
		if err != nil {
			return false, err
		}
		state := st.Aggregate.StatusStr
		for _, f := range failed {
			if state == f {
				return false, waiter.Terminal(errors.Errorf("task state %q", state))
			}
		}
		if state != done {
			logf.Log.Info("Task not done", "state", state, "files", st.Aggregate.Files, "failures", st.Aggregate.Failures)
		}
		return state == done, nil
	}
}

// WaitForRebalanceToComplete polls rebalance status until the aggregate
// state is completed. A failed rebalance ends the wait.
func WaitForRebalanceToComplete(ctx context.Context, r remote.Runner, mnode, volname string, timeout time.Duration) bool {
	fetch := func() (*gluster.TaskStatus, error) { return gluster.GetRebalanceStatus(r, mnode, volname) }
	return waiter.For(ctx, "rebalance of "+volname+" complete", timeout, 10*time.Second,
		taskStateIs(fetch, gluster.TaskCompleted, gluster.TaskFailed))
}

// WaitForFixLayoutToComplete treats fix-layout failed as terminal.
func WaitForFixLayoutToComplete(ctx context.Context, r remote.Runner, mnode, volname string, timeout time.Duration) bool {
	fetch := func() (*gluster.TaskStatus, error) { return gluster.GetRebalanceStatus(r, mnode, volname) }
	return waiter.For(ctx, "fix-layout of "+volname+" complete", timeout, 10*time.Second,
		taskStateIs(fetch, gluster.TaskFixLayoutCompleted, gluster.TaskFixLayoutFailed, gluster.TaskFailed))
}

func WaitForRemoveBrickToComplete(ctx context.Context, r remote.Runner, mnode, volname string, bricks []string, timeout time.Duration) bool {
	fetch := func() (*gluster.TaskStatus, error) { return gluster.GetRemoveBrickStatus(r, mnode, volname, bricks) }
	return waiter.For(ctx, "remove-brick on "+volname+" complete", timeout, 10*time.Second,
		taskStateIs(fetch, gluster.TaskCompleted, gluster.TaskFailed))
}
