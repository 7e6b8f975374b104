package agent

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"gluster-e2e/common/remote"

	"github.com/pkg/errors"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

type transport struct {
	port   string
	client *http.Client
}

// NewTransport returns a remote.Transport that runs commands through the
// e2e-agent listening on port of every host.
func NewTransport(port string, connectTimeout time.Duration) remote.Transport {
	if port == "" {
		port = RestPort
	}
	dialer := &net.Dialer{Timeout: connectTimeout}
	return &transport{
		port: port,
		client: &http.Client{
			Transport: &http.Transport{DialContext: dialer.DialContext},
		},
	}
}

func (t *transport) url(host, path string) string {
	return "http://" + net.JoinHostPort(host, t.port) + path
}

func (t *transport) sendRequest(ctx context.Context, reqType, url string, data interface{}, out interface{}) error {
	reqData := new(bytes.Buffer)
	if data != nil {
		if err := json.NewEncoder(reqData).Encode(data); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, reqType, url, reqData)
	if err != nil {
		return err
	}
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	bodyBytes, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var er ExecResponse
		if json.Unmarshal(bodyBytes, &er) == nil && er.Error != "" {
			return errors.Errorf("%s %s: %s", reqType, url, er.Error)
		}
		return errors.Errorf("%s %s: status %d", reqType, url, resp.StatusCode)
	}
	if out != nil {
		return json.Unmarshal(bodyBytes, out)
	}
	return nil
}

// IsAgentReachable checks if the agent on host answers
func IsAgentReachable(host, port string) error {
	t := NewTransport(port, 10*time.Second).(*transport)
	return t.sendRequest(context.Background(), "GET", t.url(host, "/"), nil, nil)
}

func (t *transport) Start(ctx context.Context, host, user, cmd string) (remote.Session, error) {
	var started AsyncStarted
	err := t.sendRequest(ctx, "POST", t.url(host, "/exec/async"), ExecRequest{Cmd: cmd, User: user}, &started)
	if err != nil {
		return nil, err
	}
	return &session{t: t, host: host, id: started.ID}, nil
}

func (t *transport) Upload(ctx context.Context, host, user, localPath, remotePath string) error {
	data, err := ioutil.ReadFile(localPath)
	if err != nil {
		return err
	}
	st, err := os.Stat(localPath)
	if err != nil {
		return err
	}
	u := t.url(host, "/upload") + "?" + url.Values{
		"path": {remotePath},
		"mode": {fmt.Sprintf("%o", st.Mode().Perm())},
	}.Encode()
	req, err := http.NewRequestWithContext(ctx, "PUT", u, bytes.NewReader(data))
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := ioutil.ReadAll(resp.Body)
		return errors.Errorf("upload to %s:%s failed: %s", host, remotePath, body)
	}
	return nil
}

func (t *transport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

type session struct {
	t    *transport
	host string
	id   string
}

func (s *session) path(suffix string) string {
	return s.t.url(s.host, "/exec/async/"+s.id+suffix)
}

func (s *session) Wait() (int, string, string, error) {
	var st AsyncStatus
	if err := s.t.sendRequest(context.Background(), "GET", s.path("?wait=true"), nil, &st); err != nil {
		return remote.RcTransportFailure, "", "", err
	}
	if !st.Done {
		return remote.RcTransportFailure, "", "", errors.Errorf("job %s on %s not complete", s.id, s.host)
	}
	if st.Error != "" {
		return remote.RcTransportFailure, st.Stdout, st.Stderr, errors.New(st.Error)
	}
	return st.Rc, st.Stdout, st.Stderr, nil
}

func (s *session) Signal(sig remote.Signal) error {
	return s.t.sendRequest(context.Background(), "POST", s.path("/signal"), SignalRequest{Signal: string(sig)}, nil)
}

// Close kills the job on the agent, which releases a pending Wait.
func (s *session) Close() error {
	err := s.t.sendRequest(context.Background(), "DELETE", s.path(""), nil, nil)
	if err != nil {
		logf.Log.Info("Failed to abandon agent job", "host", s.host, "id", s.id, "error", err)
	}
	return err
}
