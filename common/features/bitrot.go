// Package features composes the CLI adapters, the cluster model and the
// waiters into checks for individual gluster features.
package features

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"time"

	"gluster-e2e/common"
	"gluster-e2e/common/cluster"
	"gluster-e2e/common/gluster"
	"gluster-e2e/common/glusterfile"
	"gluster-e2e/common/remote"
	"gluster-e2e/common/waiter"

	"github.com/pkg/errors"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// signaturePrefix is the signature type and version header in front of the
// digest in the signature xattr.
const signaturePrefix = 16

// Signature is a decoded trusted.bit-rot.signature value.
type Signature struct {
	Type    byte
	Version uint64
	Digest  string
}

// ParseSignature decodes the raw xattr value.
func ParseSignature(raw []byte) (Signature, error) {
	if len(raw) <= signaturePrefix {
		return Signature{}, errors.Errorf("signature of %d bytes is too short", len(raw))
	}
	return Signature{
		Type:    raw[0],
		Version: binary.LittleEndian.Uint64(raw[8:signaturePrefix]),
		Digest:  hex.EncodeToString(raw[signaturePrefix:]),
	}, nil
}

// IsFileSigned compares the signature the bitrot daemon stored for a brick
// file with a sha256 computed on the brick. A zero version matches any
// version.
func IsFileSigned(r remote.Runner, host, fqpath string, version uint64) (bool, error) {
	raw, err := glusterfile.GetFattrBytes(r, host, fqpath, common.XattrBitrotSign)
	if err != nil {
		return false, err
	}
	sig, err := ParseSignature(raw)
	if err != nil {
		return false, &gluster.ParseError{Host: host, Cmd: "getfattr signature " + fqpath, Err: err}
	}
	if version != 0 && sig.Version != version {
		logf.Log.Info("Signature version differs", "host", host, "path", fqpath, "want", version, "got", sig.Version)
		return false, nil
	}
	sum, err := glusterfile.GetSha256sum(r, host, fqpath)
	if err != nil {
		return false, err
	}
	if sum != sig.Digest {
		logf.Log.Info("Signature does not match content", "host", host, "path", fqpath, "signature", sig.Digest, "sha256", sum)
		return false, nil
	}
	return true, nil
}

// IsFileBad reports whether the xattrs of a brick file carry the bad-file
// marker set by the scrubber.
func IsFileBad(attrs map[string]string) bool {
	if attrs == nil {
		return false
	}
	_, ok := attrs[common.XattrBitrotBadFile]
	return ok
}

// IsBrickFileBad reads the xattrs of fqpath and applies IsFileBad.
func IsBrickFileBad(r remote.Runner, host, fqpath string) (bool, error) {
	attrs, err := glusterfile.GetFattrList(r, host, fqpath, glusterfile.EncodingHex)
	if err != nil {
		return false, err
	}
	return IsFileBad(attrs), nil
}

// AreBitrotDaemonsOnline reports whether bitd and the scrubber run on every
// server.
func AreBitrotDaemonsOnline(r remote.Runner, servers []string, volname string) bool {
	ok := true
	for host, rec := range cluster.GetDaemonRecords(r, servers, volname) {
		if rec.Bitd == 0 || rec.Scrub == 0 {
			logf.Log.Info("Bitrot daemons not running", "host", host, "bitd", rec.Bitd, "scrub", rec.Scrub)
			ok = false
		}
	}
	return ok
}

func WaitForBitrotDaemonsToBeOnline(ctx context.Context, r remote.Runner, servers []string, volname string, timeout time.Duration) bool {
	return waiter.For(ctx, "bitrot daemons of "+volname+" online", timeout, 5*time.Second, func() (bool, error) {
		return AreBitrotDaemonsOnline(r, servers, volname), nil
	})
}

// CorruptedGfids lists the gfids the scrubber reported on any node.
func CorruptedGfids(st *gluster.ScrubStatus) []string {
	var gfids []string
	for _, n := range st.Nodes {
		gfids = append(gfids, n.CorruptedGfids...)
	}
	return gfids
}

// WaitForScrubToFind waits until scrub status reports at least count
// corrupted objects.
func WaitForScrubToFind(ctx context.Context, r remote.Runner, mnode, volname string, count int, timeout time.Duration) bool {
	return waiter.For(ctx, "scrubber of "+volname+" to report corruption", timeout, 10*time.Second, func() (bool, error) {
		st, err := gluster.GetScrubStatus(r, mnode, volname)
		if err != nil {
			return false, err
		}
		return len(CorruptedGfids(st)) >= count, nil
	})
}
