package remote

import (
	"os"
	"path/filepath"

	"gluster-e2e/common/cmdline"

	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// UploadScripts copies local files into remoteDir on every host and marks
// them executable. It reports whether every host received every file.
func UploadScripts(r Runner, hosts []string, localPaths []string, remoteDir string) bool {
	ok := true
	for _, host := range hosts {
		if res := r.Run(host, cmdline.New("mkdir", "-p", remoteDir).String()); !res.Ok() {
			logf.Log.Info("Unable to create upload dir", "host", host, "dir", remoteDir, "result", res.String())
			ok = false
			continue
		}
		for _, p := range localPaths {
			dst := filepath.Join(remoteDir, filepath.Base(p))
			if err := r.Upload(host, p, dst); err != nil {
				logf.Log.Info("Upload failed", "host", host, "file", p, "error", err)
				ok = false
			}
		}
		if res := r.Run(host, cmdline.New("chmod", "-R", "+x", remoteDir).String()); !res.Ok() {
			logf.Log.Info("Unable to make scripts executable", "host", host, "dir", remoteDir, "result", res.String())
			ok = false
		}
	}
	return ok
}

// PathExists reports whether every path exists on host.
func PathExists(r Runner, host string, paths ...string) bool {
	if len(paths) == 0 {
		return false
	}
	return r.Run(host, cmdline.New("ls").Arg(paths...).String()).Ok()
}

// FileExists reports whether path exists on host.
func FileExists(r Runner, host, path string) bool {
	return PathExists(r, host, path)
}

// UploadContent writes content to a local temporary file called name and
// uploads it with UploadScripts. It is used for helper scripts embedded in
// the binary.
func UploadContent(r Runner, hosts []string, name string, content []byte, remoteDir string) bool {
	dir, err := os.MkdirTemp("", "gluster-e2e-upload-")
	if err != nil {
		logf.Log.Info("Unable to create temporary dir", "error", err)
		return false
	}
	defer os.RemoveAll(dir)
	local := filepath.Join(dir, name)
	if err := os.WriteFile(local, content, 0755); err != nil {
		logf.Log.Info("Unable to write script", "file", local, "error", err)
		return false
	}
	return UploadScripts(r, hosts, []string{local}, remoteDir)
}
