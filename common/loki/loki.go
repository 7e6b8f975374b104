// Package loki pushes run markers to a Loki endpoint so that logs collected
// from the cluster can be lined up with the suites.
package loki

import (
	"bytes"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gluster-e2e/common/e2e_config"

	jsoniter "github.com/json-iterator/go"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

const defaultPushURL = "https://logs-prod-us-central1.grafana.net/loki/api/v1/push"

type stream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

type pushRequest struct {
	Streams []stream `json:"streams"`
}

type settings struct {
	user    string
	pw      string
	runID   string
	pushURL string
	enabled bool
}

var gSettings settings
var gOnce sync.Once

func load() {
	s := settings{
		user:    os.Getenv("grafana_api_user"),
		pw:      os.Getenv("grafana_api_pw"),
		runID:   os.Getenv("loki_run_id"),
		pushURL: os.Getenv("loki_push_url"),
	}
	if s.pushURL == "" {
		s.pushURL = defaultPushURL
	}
	var missing []string
	if s.user == "" {
		missing = append(missing, "grafana_api_user")
	}
	if s.pw == "" {
		missing = append(missing, "grafana_api_pw")
	}
	if s.runID == "" {
		missing = append(missing, "loki_run_id")
	}
	switch len(missing) {
	case 0:
		s.enabled = true
	case 3:
	default:
		// all should be defined or none
		logf.Log.Info("Invalid Loki config", "undefined", strings.Join(missing, ","))
	}
	gSettings = s
}

// MarkerBody renders the push request of one marker line.
func MarkerBody(runID, configName, text string, at time.Time) ([]byte, error) {
	req := pushRequest{Streams: []stream{{
		Stream: map[string]string{"run": runID, "config": configName, "app": "marker"},
		Values: [][2]string{{strconv.FormatInt(at.UnixNano(), 10), text}},
	}}}
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(&req)
}

// SendLokiMarker pushes text as a marker when the Loki credentials are set
// in the environment. Failures are logged and otherwise ignored.
func SendLokiMarker(text string) {
	gOnce.Do(load)
	if !gSettings.enabled {
		return
	}

	body, err := MarkerBody(gSettings.runID, e2e_config.GetConfig().ConfigName, text, time.Now())
	if err != nil {
		logf.Log.Info("Failed to encode Loki request", "error", err)
		return
	}
	req, err := http.NewRequest("POST", gSettings.pushURL, bytes.NewReader(body))
	if err != nil {
		logf.Log.Info("Failed to create Loki marker request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(gSettings.user, gSettings.pw)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		logf.Log.Info("Failed to send Loki marker", "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logf.Log.Info("Unexpected response from Grafana / Loki", "status code", resp.StatusCode)
	}
}
