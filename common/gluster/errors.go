package gluster

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"gluster-e2e/common/remote"

	"github.com/pkg/errors"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// CommandError is returned when the command ran and failed, either with a
// non-zero exit status or with a non-zero opRet in its XML output.
type CommandError struct {
	Result   remote.Result
	OpRet    int
	OpErrstr string
}

func (e *CommandError) Error() string {
	if e.Result.TransportFailed() {
		return fmt.Sprintf("%s on %s: transport failure: %v", e.Result.Cmd, e.Result.Host, e.Result.Err)
	}
	if e.OpErrstr != "" {
		return fmt.Sprintf("%s on %s: opRet %d: %s", e.Result.Cmd, e.Result.Host, e.OpRet, e.OpErrstr)
	}
	return fmt.Sprintf("%s on %s: rc %d: %s", e.Result.Cmd, e.Result.Host, e.Result.Rc, strings.TrimSpace(e.Result.Stderr))
}

// ParseError is returned when the command succeeded but its output could
// not be understood.
type ParseError struct {
	Host string
	Cmd  string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing output of %s on %s: %v", e.Cmd, e.Host, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsCommandError reports whether err, or an error it wraps, is a CommandError.
func IsCommandError(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce)
}

func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// CLIStatus is the status header every --xml reply carries.
type CLIStatus struct {
	OpRet    int    `xml:"opRet"`
	OpErrno  int    `xml:"opErrno"`
	OpErrstr string `xml:"opErrstr"`
}

func (s CLIStatus) status() CLIStatus { return s }

type xmlReply interface {
	status() CLIStatus
}

func commandFailed(res remote.Result, stage string) error {
	logf.Log.Info("Command failed", "stage", stage, "host", res.Host, "cmd", res.Cmd, "rc", res.Rc, "stderr", res.Stderr, "error", res.Err)
	return &CommandError{Result: res}
}

func parseFailed(res remote.Result, stage string, err error) error {
	logf.Log.Info("Unable to parse command output", "stage", stage, "host", res.Host, "cmd", res.Cmd, "error", err)
	return &ParseError{Host: res.Host, Cmd: res.Cmd, Err: err}
}

// runXML runs an --xml command on host and decodes its reply into v.
func runXML(r remote.Runner, host, cmd, stage string, v xmlReply) error {
	res := r.Run(host, cmd)
	if !res.Ok() {
		return commandFailed(res, stage)
	}
	return decodeXML(res, stage, v)
}

func decodeXML(res remote.Result, stage string, v xmlReply) error {
	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		return parseFailed(res, stage, errors.New("empty output"))
	}
	dec := xml.NewDecoder(bytes.NewBufferString(out))
	if err := dec.Decode(v); err != nil {
		return parseFailed(res, stage, err)
	}
	if st := v.status(); st.OpRet != 0 {
		logf.Log.Info("Command reported failure", "stage", stage, "host", res.Host, "cmd", res.Cmd, "opRet", st.OpRet, "opErrstr", st.OpErrstr)
		return &CommandError{Result: res, OpRet: st.OpRet, OpErrstr: st.OpErrstr}
	}
	return nil
}

var errNoCtdbNodes = errors.New("no nodes in ctdb status")

// CommandFailed logs and wraps a failed result, for adapters built outside
// this package.
func CommandFailed(res remote.Result, stage string) error {
	return commandFailed(res, stage)
}

func ParseFailed(res remote.Result, stage string, err error) error {
	return parseFailed(res, stage, err)
}
