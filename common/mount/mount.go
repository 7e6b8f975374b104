// Package mount mounts volumes on clients over fuse, nfs, cifs and, from
// windows clients, smb.
package mount

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"gluster-e2e/common"
	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/e2e_config"
	"gluster-e2e/common/remote"

	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// GlusterMount describes one mount of a volume on a client.
type GlusterMount struct {
	Protocol   common.MountProtocol
	MountPoint string
	Server     string
	Client     string
	Volname    string
	Options    string
	SmbUser    string
	SmbPasswd  string
	User       string
	Platform   common.Platform
}

func (m *GlusterMount) String() string {
	return fmt.Sprintf("%s:%s (%s %s:/%s)", m.Client, m.MountPoint, m.Protocol, m.Server, m.Volname)
}

func (m *GlusterMount) windows() bool {
	return m.Platform == common.PlatformWindows
}

func (m *GlusterMount) run(r remote.Runner, cmd string) remote.Result {
	if m.User != "" {
		return r.RunAs(m.Client, m.User, cmd)
	}
	return r.Run(m.Client, cmd)
}

// smbShare is the share name samba exports a volume under.
func (m *GlusterMount) smbShare() string {
	return "gluster-" + m.Volname
}

// options returns the -o value, nfs mounts default to version 3. The smb
// password is left out, see MountCommand.
func (m *GlusterMount) options() string {
	opts := m.Options
	if m.Protocol == common.MountNfs && !strings.Contains(opts, "vers") {
		if opts == "" {
			opts = "vers=3"
		} else {
			opts = "vers=3," + opts
		}
	}
	if m.Protocol == common.MountCifs || m.Protocol == common.MountSmb {
		var creds []string
		if m.SmbUser != "" {
			creds = append(creds, "username="+m.SmbUser)
		}
		if opts != "" {
			creds = append(creds, opts)
		}
		opts = strings.Join(creds, ",")
	}
	return opts
}

// MountCommand builds the command that mounts m on a linux client. The smb
// password goes through the PASSWD variable mount.cifs reads, since a comma
// in it would split the -o list.
func (m *GlusterMount) MountCommand() string {
	cmd := cmdline.New()
	var source string
	switch m.Protocol {
	case common.MountCifs, common.MountSmb:
		if m.SmbPasswd != "" {
			cmd.Raw("PASSWD=" + cmdline.Quote(m.SmbPasswd))
		}
		cmd.Arg("mount", "-t", "cifs")
		source = "//" + m.Server + "/" + m.smbShare()
	case common.MountNfs:
		cmd.Arg("mount", "-t", "nfs")
		source = m.Server + ":/" + m.Volname
	default:
		cmd.Arg("mount", "-t", "glusterfs")
		source = m.Server + ":/" + m.Volname
	}
	return cmd.Opt("-o", m.options()).Arg(source, m.MountPoint).String()
}

var driveRE = regexp.MustCompile(`Drive ([A-Z]:) is now connected`)

// Mount mounts m unless it is already mounted. For smb on windows the drive
// letter chosen by net use becomes the mount point.
func (m *GlusterMount) Mount(r remote.Runner) remote.Result {
	if m.IsMounted(r) {
		logf.Log.Info("Already mounted", "mount", m.String())
		return remote.Result{Host: m.Client}
	}
	if m.windows() {
		return m.netUse(r)
	}
	if res := m.run(r, cmdline.New("mkdir", "-p", m.MountPoint).String()); !res.Ok() {
		logf.Log.Info("Unable to create mount point", "mount", m.String(), "result", res.String())
		return res
	}
	res := m.run(r, m.MountCommand())
	if !res.Ok() {
		logf.Log.Info("Mount failed", "mount", m.String(), "rc", res.Rc, "stderr", res.Stderr, "error", res.Err)
	}
	return res
}

func (m *GlusterMount) netUse(r remote.Runner) remote.Result {
	target := m.MountPoint
	if target == "" || !isDrive(target) {
		target = "*"
	}
	cmd := fmt.Sprintf(`net use %s \\%s\%s`, target, m.Server, m.smbShare())
	if m.SmbUser != "" {
		cmd += " /user:" + m.SmbUser + " " + m.SmbPasswd
	}
	res := m.run(r, cmd)
	if !res.Ok() {
		logf.Log.Info("net use failed", "mount", m.String(), "rc", res.Rc, "stdout", res.Stdout, "stderr", res.Stderr)
		return res
	}
	if target == "*" {
		match := driveRE.FindStringSubmatch(res.Stdout)
		if match == nil {
			logf.Log.Info("No drive letter in net use output", "mount", m.String(), "stdout", res.Stdout)
			res.Rc = 1
			return res
		}
		m.MountPoint = match[1]
	}
	return res
}

var driveLetterRE = regexp.MustCompile(`^[A-Za-z]:$`)

func isDrive(s string) bool {
	return driveLetterRE.MatchString(s)
}

// IsMounted checks the mount table of the client, or net use on windows.
func (m *GlusterMount) IsMounted(r remote.Runner) bool {
	if m.windows() {
		if !isDrive(m.MountPoint) {
			return false
		}
		return m.run(r, "net use "+m.MountPoint).Ok()
	}
	if m.MountPoint == "" {
		return false
	}
	cmd := cmdline.New("mount").
		Pipe(cmdline.New("grep", "-w", "--", m.MountPoint)).
		Pipe(cmdline.New("grep", "-q", "--", m.Volname))
	return m.run(r, cmd.String()).Ok()
}

// Unmount tries a plain, a forced and a lazy unmount in turn and removes the
// empty mount point.
func (m *GlusterMount) Unmount(r remote.Runner) remote.Result {
	if m.windows() {
		res := m.run(r, "net use "+m.MountPoint+" /d /y")
		if !res.Ok() {
			logf.Log.Info("net use delete failed", "mount", m.String(), "stderr", res.Stderr)
		}
		return res
	}
	var res remote.Result
	for _, flags := range [][]string{nil, {"-f"}, {"-l"}} {
		res = m.run(r, cmdline.New("umount").Arg(flags...).Arg(m.MountPoint).String())
		if res.Ok() {
			break
		}
		logf.Log.Info("umount failed", "mount", m.String(), "flags", flags, "rc", res.Rc, "stderr", res.Stderr)
		if res.TransportFailed() {
			return res
		}
	}
	if res.Ok() {
		m.run(r, cmdline.New("rmdir", m.MountPoint).String())
	}
	return res
}

// CreateMountObjs expands configured mounts into descriptors. An entry with
// num_of_mounts above one yields mount points suffixed _0, _1 and so on.
func CreateMountObjs(mounts []e2e_config.MountConfig, clients map[string]e2e_config.ClientInfo) []*GlusterMount {
	var objs []*GlusterMount
	for _, mc := range mounts {
		n := mc.NumOfMounts
		if n < 1 {
			n = 1
		}
		info := clients[mc.Client]
		platform := common.Platform(info.Platform)
		if platform == "" {
			platform = common.PlatformLinux
		}
		user := info.SuperUser
		if user == "" && platform == common.PlatformWindows {
			user = common.DefaultWindowsUser
		}
		mp := mc.Mountpoint
		if mp == "" && platform != common.PlatformWindows {
			mp = path.Join("/mnt", mc.Volname)
		}
		for i := 0; i < n; i++ {
			point := mp
			if n > 1 && platform != common.PlatformWindows {
				point = fmt.Sprintf("%s_%d", mp, i)
			}
			objs = append(objs, &GlusterMount{
				Protocol:   common.MountProtocol(mc.Protocol),
				MountPoint: point,
				Server:     mc.Server,
				Client:     mc.Client,
				Volname:    mc.Volname,
				Options:    mc.Options,
				SmbUser:    mc.SmbUser,
				SmbPasswd:  mc.SmbPasswd,
				User:       user,
				Platform:   platform,
			})
		}
	}
	return objs
}

// MountAll mounts every descriptor and reports whether all succeeded.
func MountAll(r remote.Runner, mounts []*GlusterMount) bool {
	ok := true
	for _, m := range mounts {
		if !m.Mount(r).Ok() {
			ok = false
		}
	}
	return ok
}

// UnmountAll unmounts in reverse order.
func UnmountAll(r remote.Runner, mounts []*GlusterMount) bool {
	ok := true
	for i := len(mounts) - 1; i >= 0; i-- {
		if !mounts[i].Unmount(r).Ok() {
			ok = false
		}
	}
	return ok
}

// Clients returns the distinct clients of mounts in order.
func Clients(mounts []*GlusterMount) []string {
	seen := map[string]bool{}
	var clients []string
	for _, m := range mounts {
		if !seen[m.Client] {
			seen[m.Client] = true
			clients = append(clients, m.Client)
		}
	}
	return clients
}
