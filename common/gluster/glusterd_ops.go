package gluster

import (
	"regexp"

	"gluster-e2e/common/remote"

	"github.com/blang/semver"
	"github.com/pkg/errors"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

func glusterdCtl(r remote.Runner, servers []string, action string) bool {
	results := r.RunParallel(servers, "systemctl "+action+" glusterd")
	ok := true
	for host, res := range results {
		if !res.Ok() {
			logf.Log.Info("glusterd "+action+" failed", "host", host, "rc", res.Rc, "stderr", res.Stderr, "error", res.Err)
			ok = false
		}
	}
	return ok
}

func StartGlusterd(r remote.Runner, servers []string) bool {
	return glusterdCtl(r, servers, "start")
}

func StopGlusterd(r remote.Runner, servers []string) bool {
	return glusterdCtl(r, servers, "stop")
}

func RestartGlusterd(r remote.Runner, servers []string) bool {
	return glusterdCtl(r, servers, "restart")
}

// GlusterdState of one server
type GlusterdState int

const (
	GlusterdRunning GlusterdState = iota
	GlusterdStopped
	// GlusterdDead means the service is not active but a glusterd process
	// still exists.
	GlusterdDead
	GlusterdUnknown
)

// GetGlusterdState reports the glusterd service state of each server.
func GetGlusterdState(r remote.Runner, servers []string) map[string]GlusterdState {
	states := make(map[string]GlusterdState, len(servers))
	for host, res := range r.RunParallel(servers, "systemctl is-active glusterd") {
		switch {
		case res.Ok():
			states[host] = GlusterdRunning
		case res.TransportFailed():
			states[host] = GlusterdUnknown
		default:
			if r.Run(host, "pidof glusterd").Ok() {
				states[host] = GlusterdDead
			} else {
				states[host] = GlusterdStopped
			}
		}
	}
	return states
}

// IsGlusterdRunning reports whether glusterd is active on every server. An
// unreachable server makes the answer indeterminate.
func IsGlusterdRunning(r remote.Runner, servers []string) (bool, error) {
	for host, state := range GetGlusterdState(r, servers) {
		switch state {
		case GlusterdUnknown:
			return false, errors.Errorf("glusterd state of %s unknown", host)
		case GlusterdRunning:
		default:
			logf.Log.Info("glusterd not running", "host", host, "state", state)
			return false, nil
		}
	}
	return true, nil
}

var versionRE = regexp.MustCompile(`glusterfs (\d+)\.(\d+)(?:\.(\d+))?`)

// GetGlusterVersion parses the first line of gluster --version.
func GetGlusterVersion(r remote.Runner, host string) (semver.Version, error) {
	res := r.Run(host, "gluster --version")
	if !res.Ok() {
		return semver.Version{}, commandFailed(res, "gluster version")
	}
	return ParseGlusterVersion(res.Stdout)
}

func ParseGlusterVersion(out string) (semver.Version, error) {
	m := versionRE.FindStringSubmatch(out)
	if m == nil {
		return semver.Version{}, errors.Errorf("no version in %q", out)
	}
	patch := m[3]
	if patch == "" {
		patch = "0"
	}
	return semver.Parse(m[1] + "." + m[2] + "." + patch)
}
