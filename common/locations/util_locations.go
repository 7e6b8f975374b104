package locations

// For now the relative paths are hardcoded, there may be a case to make this
// more generic and data driven.

import (
	"os"
	"path"

	"gluster-e2e/common/e2e_config"

	. "github.com/onsi/gomega"
)

func locationExists(path string) string {
	_, err := os.Stat(path)
	Expect(err).To(BeNil(), "%s", err)
	return path
}

// GetConfigurationsDir is where relative configuration file names resolve.
func GetConfigurationsDir() string {
	return locationExists(path.Clean(e2e_config.GetConfig().E2eRootDir + e2e_config.ConfigDir))
}

// GetArtifactsDir is created on demand.
func GetArtifactsDir() string {
	dir := path.Clean(e2e_config.GetConfig().E2eRootDir + "/artifacts")
	Expect(os.MkdirAll(dir, 0755)).To(Succeed())
	return dir
}

// GetMetricsFile names the metrics textfile of a suite, in the reports dir
// when one is configured and in the artifacts dir otherwise.
func GetMetricsFile(suite string) string {
	dir := e2e_config.GetConfig().ReportsDir
	if dir == "" {
		dir = GetArtifactsDir()
	}
	return path.Join(dir, "e2e."+suite+".prom")
}

// GetGenerateIOBinary is the client build of generate-io, configured or
// found in the artifacts dir.
func GetGenerateIOBinary() string {
	if p := e2e_config.GetConfig().GenerateIOBinary; p != "" {
		return locationExists(p)
	}
	return locationExists(path.Join(GetArtifactsDir(), "generate-io"))
}
