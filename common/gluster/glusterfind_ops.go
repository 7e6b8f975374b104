package gluster

import (
	"strconv"

	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/remote"

	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

type GfindCreateOptions struct {
	Force            bool
	ResetSessionTime bool
	Debug            bool
}

func GfindCreate(r remote.Runner, mnode, volname, session string, opts GfindCreateOptions) remote.Result {
	cmd := cmdline.New("glusterfind", "create", session, volname).
		ArgIf(opts.Force, "--force").
		ArgIf(opts.ResetSessionTime, "--reset-session-time").
		ArgIf(opts.Debug, "--debug")
	return r.Run(mnode, cmd.String())
}

func GfindDelete(r remote.Runner, mnode, volname, session string, debug bool) remote.Result {
	return r.Run(mnode, cmdline.New("glusterfind", "delete", session, volname).ArgIf(debug, "--debug").String())
}

// GfindList lists sessions, optionally narrowed to a session or a volume.
func GfindList(r remote.Runner, mnode, volname, session string, debug bool) remote.Result {
	cmd := cmdline.New("glusterfind", "list").
		Opt("--session", session).
		Opt("--volume", volname).
		ArgIf(debug, "--debug")
	return r.Run(mnode, cmd.String())
}

type GfindPreOptions struct {
	Full bool
	// Type is f, d or both and needs Full
	Type              string
	Debug             bool
	NoEncode          bool
	DisablePartial    bool
	OutputPrefix      string
	FieldSeparator    string
	RegenerateOutfile bool
	NoDelete          bool
	ResetSessionTime  bool
}

var gfindTypes = []string{"f", "d", "both"}

// GfindPre generates the changed file list of a session into outfile.
func GfindPre(r remote.Runner, mnode, volname, session, outfile string, opts GfindPreOptions) remote.Result {
	cmd := cmdline.New("glusterfind", "pre", session, volname, outfile)
	if opts.Type != "" && (!opts.Full || !oneOf(opts.Type, gfindTypes)) {
		logf.Log.Info("glusterfind --type needs --full and one of f, d or both", "session", session, "type", opts.Type)
		return remote.UsageError(mnode, cmd.String())
	}
	cmd.ArgIf(opts.Full, "--full").
		Opt("--type", opts.Type).
		ArgIf(opts.Debug, "--debug").
		ArgIf(opts.NoEncode, "--no-encode").
		ArgIf(opts.DisablePartial, "--disable-partial").
		Opt("--output-prefix", opts.OutputPrefix).
		Opt("--field-separator", opts.FieldSeparator).
		ArgIf(opts.RegenerateOutfile, "--regenerate-outfile").
		ArgIf(opts.NoDelete, "-N").
		ArgIf(opts.ResetSessionTime, "--reset-session-time")
	return r.Run(mnode, cmd.String())
}

func GfindPost(r remote.Runner, mnode, volname, session string, debug bool) remote.Result {
	return r.Run(mnode, cmdline.New("glusterfind", "post", session, volname).ArgIf(debug, "--debug").String())
}

type GfindQueryOptions struct {
	// Since is a unix timestamp, exclusive with Full
	Since          int64
	EndTime        int64
	Full           bool
	Type           string
	Debug          bool
	NoEncode       bool
	DisablePartial bool
	OutputPrefix   string
	FieldSeparator string
}

// GfindQuery lists files changed since a time, or every file with Full.
// Exactly one of Since and Full is required.
func GfindQuery(r remote.Runner, mnode, volname, outfile string, opts GfindQueryOptions) remote.Result {
	cmd := cmdline.New("glusterfind", "query", volname, outfile)
	switch {
	case opts.Since == 0 && !opts.Full:
		logf.Log.Info("glusterfind query needs --since-time or --full", "volume", volname)
		return remote.UsageError(mnode, cmd.String())
	case opts.Since != 0 && opts.Full:
		logf.Log.Info("glusterfind query takes only one of --since-time and --full", "volume", volname)
		return remote.UsageError(mnode, cmd.String())
	case opts.Type != "" && (!opts.Full || !oneOf(opts.Type, gfindTypes)):
		logf.Log.Info("glusterfind --type needs --full and one of f, d or both", "volume", volname, "type", opts.Type)
		return remote.UsageError(mnode, cmd.String())
	case opts.EndTime != 0 && opts.Since == 0:
		logf.Log.Info("glusterfind --end-time needs --since-time", "volume", volname)
		return remote.UsageError(mnode, cmd.String())
	}
	if opts.Since != 0 {
		cmd.Arg("--since-time", strconv.FormatInt(opts.Since, 10))
	}
	if opts.EndTime != 0 {
		cmd.Arg("--end-time", strconv.FormatInt(opts.EndTime, 10))
	}
	cmd.ArgIf(opts.Full, "--full").
		Opt("--type", opts.Type).
		ArgIf(opts.Debug, "--debug").
		ArgIf(opts.NoEncode, "--no-encode").
		ArgIf(opts.DisablePartial, "--disable-partial").
		Opt("--output-prefix", opts.OutputPrefix).
		Opt("--field-separator", opts.FieldSeparator)
	return r.Run(mnode, cmd.String())
}
