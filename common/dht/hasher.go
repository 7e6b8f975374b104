package dht

import (
	_ "embed"
	"strconv"
	"strings"
	"sync"

	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/gluster"
	"gluster-e2e/common/remote"

	"github.com/pkg/errors"
)

// Hasher computes the distribute hash of a leaf name.
type Hasher interface {
	Hash(name string) (uint32, error)
}

// LocalHasher hashes on the control host.
type LocalHasher struct{}

func (LocalHasher) Hash(name string) (uint32, error) {
	return DMHash(name), nil
}

//go:embed scripts/dm_hash.py
var dmHashScript []byte

const dmHashScriptName = "dm_hash.py"

// RemoteHasher asks libglusterfs on a server, for builds whose hash differs
// from DMHash. The helper script is uploaded on first use.
type RemoteHasher struct {
	r         remote.Runner
	host      string
	uploadDir string

	once      sync.Once
	uploadErr error
	mu        sync.Mutex
	cache     map[string]uint32
}

func NewRemoteHasher(r remote.Runner, host, uploadDir string) *RemoteHasher {
	return &RemoteHasher{r: r, host: host, uploadDir: uploadDir, cache: map[string]uint32{}}
}

func (h *RemoteHasher) upload() error {
	h.once.Do(func() {
		if !remote.UploadContent(h.r, []string{h.host}, dmHashScriptName, dmHashScript, h.uploadDir) {
			h.uploadErr = errors.Errorf("unable to upload %s to %s", dmHashScriptName, h.host)
		}
	})
	return h.uploadErr
}

func (h *RemoteHasher) Hash(name string) (uint32, error) {
	h.mu.Lock()
	v, ok := h.cache[name]
	h.mu.Unlock()
	if ok {
		return v, nil
	}
	if err := h.upload(); err != nil {
		return 0, err
	}
	cmd := cmdline.New("python3", h.uploadDir+"/"+dmHashScriptName, name).String()
	res := h.r.Run(h.host, cmd)
	if !res.Ok() {
		return 0, gluster.CommandFailed(res, "dm hash")
	}
	n, err := strconv.ParseUint(strings.TrimSpace(res.Stdout), 10, 32)
	if err != nil {
		return 0, gluster.ParseFailed(res, "dm hash", err)
	}
	h.mu.Lock()
	h.cache[name] = uint32(n)
	h.mu.Unlock()
	return uint32(n), nil
}

// NewHasher returns a RemoteHasher on host for mode "remote" and a
// LocalHasher otherwise.
func NewHasher(mode string, r remote.Runner, host, uploadDir string) Hasher {
	if mode == "remote" {
		return NewRemoteHasher(r, host, uploadDir)
	}
	return LocalHasher{}
}
