package workload

import (
	"path"
	"path/filepath"
	"time"

	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/mount"
	"gluster-e2e/common/remote"
	"gluster-e2e/common/workload/genio"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// GenerateIOBinaryName is the file name of the generate-io tool on clients.
const GenerateIOBinaryName = "generate-io"

// UploadGenerateIO copies the generate-io binary built for clients into
// uploadDir on every client.
func UploadGenerateIO(r remote.Runner, clients []string, binary, uploadDir string) bool {
	if filepath.Base(binary) != GenerateIOBinaryName {
		logf.Log.Info("Unexpected generate-io binary name", "binary", binary)
		return false
	}
	return remote.UploadScripts(r, clients, []string{binary}, uploadDir)
}

// GenerateIOOptions selects the workloads and stop condition of one run.
type GenerateIOOptions struct {
	Workloads    []genio.Workload
	Percent      float64
	Timeout      time.Duration
	PollInterval time.Duration
}

// GenerateIOCmd uploads the run configuration to the client of m and returns
// the command running generate-io against the mount point.
func GenerateIOCmd(r remote.Runner, m *mount.GlusterMount, uploadDir string, opts GenerateIOOptions) (string, error) {
	cfg := genio.Config{
		Path:         m.MountPoint,
		Percent:      opts.Percent,
		Timeout:      opts.Timeout,
		PollInterval: opts.PollInterval,
		Workloads:    opts.Workloads,
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return "", err
	}
	name := "generate-io-" + uuid.New().String() + ".yaml"
	if !remote.UploadContent(r, []string{m.Client}, name, b, uploadDir) {
		return "", errors.Errorf("unable to upload %s to %s", name, m.Client)
	}
	return cmdline.New(path.Join(uploadDir, GenerateIOBinaryName), "--config", path.Join(uploadDir, name)).String(), nil
}

// StartGenerateIO runs generate-io in the background on the client of m.
func StartGenerateIO(r remote.Runner, m *mount.GlusterMount, uploadDir string, opts GenerateIOOptions) (*IOProc, error) {
	cmd, err := GenerateIOCmd(r, m, uploadDir, opts)
	if err != nil {
		return nil, err
	}
	return StartIO(r, m, cmd), nil
}
