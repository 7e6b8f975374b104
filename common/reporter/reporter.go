package reporter

import (
	"os"

	"gluster-e2e/common/e2e_config"

	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/reporters"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// GetReporters returns a junit reporter writing
// <reportsDir>/e2e.<configName>.<name>-junit.xml, or none when no reports
// directory is configured.
func GetReporters(name string) []Reporter {
	cfg := e2e_config.GetConfig()

	if cfg.ReportsDir == "" {
		return []Reporter{}
	}
	if err := os.MkdirAll(cfg.ReportsDir, 0755); err != nil {
		logf.Log.Info("Unable to create reports dir", "dir", cfg.ReportsDir, "error", err)
		return []Reporter{}
	}
	testGroupPrefix := "e2e."
	if cfg.ConfigName != "" {
		testGroupPrefix += cfg.ConfigName + "."
	}
	xmlFileSpec := cfg.ReportsDir + "/" + testGroupPrefix + name + "-junit.xml"
	return []Reporter{reporters.NewJUnitReporter(xmlFileSpec)}
}
