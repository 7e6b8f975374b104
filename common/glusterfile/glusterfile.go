// Package glusterfile reads and changes files on bricks and mounts: extended
// attributes, stat, checksums and the linkto and pathinfo conventions of the
// distribute translator.
package glusterfile

import (
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"

	"gluster-e2e/common"
	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/gluster"
	"gluster-e2e/common/remote"

	"github.com/pkg/errors"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// Encoding of getfattr values
type Encoding string

const (
	EncodingHex    Encoding = "hex"
	EncodingText   Encoding = "text"
	EncodingBase64 Encoding = "base64"
)

func parseFattrLines(out string) map[string]string {
	attrs := map[string]string{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			continue
		}
		v := kv[1]
		if len(v) >= 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
			v = v[1 : len(v)-1]
		}
		attrs[kv[0]] = v
	}
	return attrs
}

// GetFattr returns the value of one extended attribute. Hex values keep their
// 0x prefix and text values lose their quotes.
func GetFattr(r remote.Runner, host, fqpath, attr string, enc Encoding) (string, error) {
	cmd := cmdline.New("getfattr", "--absolute-names", "-e", string(enc), "-n", attr, fqpath).String()
	res := r.Run(host, cmd)
	if !res.Ok() {
		return "", gluster.CommandFailed(res, "getfattr")
	}
	v, ok := parseFattrLines(res.Stdout)[attr]
	if !ok {
		return "", gluster.ParseFailed(res, "getfattr", errors.Errorf("%s not in output", attr))
	}
	return v, nil
}

// GetFattrList returns every extended attribute of fqpath.
func GetFattrList(r remote.Runner, host, fqpath string, enc Encoding) (map[string]string, error) {
	cmd := cmdline.New("getfattr", "--absolute-names", "-d", "-m", ".", "-e", string(enc), fqpath).String()
	res := r.Run(host, cmd)
	if !res.Ok() {
		return nil, gluster.CommandFailed(res, "getfattr dump")
	}
	return parseFattrLines(res.Stdout), nil
}

// GetFattrBytes decodes a hex encoded attribute.
func GetFattrBytes(r remote.Runner, host, fqpath, attr string) ([]byte, error) {
	v, err := GetFattr(r, host, fqpath, attr, EncodingHex)
	if err != nil {
		return nil, err
	}
	b, err := hex.DecodeString(strings.TrimPrefix(v, "0x"))
	if err != nil {
		return nil, &gluster.ParseError{Host: host, Cmd: "getfattr " + attr, Err: err}
	}
	return b, nil
}

// SetFattr sets attr to value, both are quoted.
func SetFattr(r remote.Runner, host, fqpath, attr, value string) bool {
	res := r.Run(host, cmdline.New("setfattr", "-n", attr, "-v", value, fqpath).String())
	if !res.Ok() {
		logf.Log.Info("setfattr failed", "host", host, "path", fqpath, "attr", attr, "stderr", res.Stderr)
	}
	return res.Ok()
}

func DeleteFattr(r remote.Runner, host, fqpath, attr string) bool {
	res := r.Run(host, cmdline.New("setfattr", "-x", attr, fqpath).String())
	if !res.Ok() {
		logf.Log.Info("setfattr -x failed", "host", host, "path", fqpath, "attr", attr, "stderr", res.Stderr)
	}
	return res.Ok()
}

var pathinfoRE = regexp.MustCompile(`<POSIX\(([^)]*)\):([^:>]+):([^>]+)>`)

// ParsePathinfo returns host:/path of every brick in a pathinfo value.
func ParsePathinfo(value string) []string {
	var bricks []string
	for _, m := range pathinfoRE.FindAllStringSubmatch(value, -1) {
		bricks = append(bricks, m[2]+":"+m[3])
	}
	return bricks
}

// GetPathinfo asks the client stack on a mount which bricks hold fqpath.
func GetPathinfo(r remote.Runner, client, fqpath string) ([]string, error) {
	v, err := GetFattr(r, client, fqpath, common.XattrPathinfo, EncodingText)
	if err != nil {
		return nil, err
	}
	bricks := ParsePathinfo(v)
	if len(bricks) == 0 {
		return nil, &gluster.ParseError{Host: client, Cmd: "getfattr pathinfo " + fqpath, Err: errors.Errorf("no bricks in %q", v)}
	}
	return bricks, nil
}

type Stat struct {
	Size     int64
	Access   string
	UID      int
	GID      int
	Atime    int64
	Mtime    int64
	Ctime    int64
	FileType string
	Name     string
}

const statFormat = "%s:%a:%u:%g:%X:%Y:%Z:%F:%n"

func ParseStat(out string) (*Stat, error) {
	f := strings.SplitN(strings.TrimRight(out, "\n"), ":", 9)
	if len(f) != 9 {
		return nil, errors.Errorf("unexpected stat output %q", out)
	}
	st := &Stat{Access: f[1], FileType: f[7], Name: f[8]}
	var err error
	ints := []struct {
		s   string
		dst *int64
	}{{f[0], &st.Size}, {f[4], &st.Atime}, {f[5], &st.Mtime}, {f[6], &st.Ctime}}
	for _, i := range ints {
		if *i.dst, err = strconv.ParseInt(i.s, 10, 64); err != nil {
			return nil, errors.Wrapf(err, "stat output %q", out)
		}
	}
	if st.UID, err = strconv.Atoi(f[2]); err != nil {
		return nil, errors.Wrapf(err, "stat output %q", out)
	}
	if st.GID, err = strconv.Atoi(f[3]); err != nil {
		return nil, errors.Wrapf(err, "stat output %q", out)
	}
	return st, nil
}

func GetFileStat(r remote.Runner, host, fqpath string) (*Stat, error) {
	res := r.Run(host, cmdline.New("stat", "-c", statFormat, fqpath).String())
	if !res.Ok() {
		return nil, gluster.CommandFailed(res, "stat")
	}
	st, err := ParseStat(res.Stdout)
	if err != nil {
		return nil, gluster.ParseFailed(res, "stat", err)
	}
	return st, nil
}

// GetDhtLinkto returns the subvolume a linkto file points at.
func GetDhtLinkto(r remote.Runner, host, fqpath string) (string, error) {
	v, err := GetFattr(r, host, fqpath, common.XattrDhtLinkto, EncodingText)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(v, "\x00"), nil
}

// IsLinktoFile reports whether the brick file at fqpath is a DHT linkto
// file: sticky bit only, empty, carrying the linkto attribute.
func IsLinktoFile(r remote.Runner, host, fqpath string) (bool, error) {
	st, err := GetFileStat(r, host, fqpath)
	if err != nil {
		return false, err
	}
	if st.Access != "1000" || st.Size != 0 {
		return false, nil
	}
	attrs, err := GetFattrList(r, host, fqpath, EncodingText)
	if err != nil {
		return false, err
	}
	_, ok := attrs[common.XattrDhtLinkto]
	return ok, nil
}

// FileExists reports whether fqpath exists on host.
func FileExists(r remote.Runner, host, fqpath string) bool {
	return remote.FileExists(r, host, fqpath)
}

func checksum(r remote.Runner, host, fqpath, tool string) (string, error) {
	res := r.Run(host, cmdline.New(tool, fqpath).String())
	if !res.Ok() {
		return "", gluster.CommandFailed(res, tool)
	}
	f := strings.Fields(res.Stdout)
	if len(f) == 0 {
		return "", gluster.ParseFailed(res, tool, errors.New("empty output"))
	}
	return f[0], nil
}

func GetMd5sum(r remote.Runner, host, fqpath string) (string, error) {
	return checksum(r, host, fqpath, "md5sum")
}

func GetSha256sum(r remote.Runner, host, fqpath string) (string, error) {
	return checksum(r, host, fqpath, "sha256sum")
}

func MoveFile(r remote.Runner, host, src, dst string) remote.Result {
	return r.Run(host, cmdline.New("mv", src, dst).String())
}

func RemoveFile(r remote.Runner, host, fqpath string, force bool) remote.Result {
	return r.Run(host, cmdline.New("rm").ArgIf(force, "-f").Arg(fqpath).String())
}
