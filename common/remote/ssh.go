package remote

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"gluster-e2e/common/cmdline"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

type SSHConfig struct {
	Port                  int
	KeyFile               string
	Password              string
	KnownHostsFile        string
	InsecureIgnoreHostKey bool
	ConnectTimeout        time.Duration
}

type sshTransport struct {
	cfg     SSHConfig
	auth    []ssh.AuthMethod
	hostKey ssh.HostKeyCallback

	mu      sync.Mutex
	clients map[string]*ssh.Client
}

// NewSSHTransport returns a transport that keeps one connection per
// user@host and opens a session per command.
func NewSSHTransport(cfg SSHConfig) (Transport, error) {
	t := &sshTransport{cfg: cfg, clients: map[string]*ssh.Client{}}
	if t.cfg.Port == 0 {
		t.cfg.Port = 22
	}
	if cfg.KeyFile != "" {
		keyPath, err := homedir.Expand(cfg.KeyFile)
		if err != nil {
			return nil, errors.Wrapf(err, "expanding %s", cfg.KeyFile)
		}
		key, err := ioutil.ReadFile(keyPath)
		switch {
		case err == nil:
			signer, err := ssh.ParsePrivateKey(key)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing ssh key %s", keyPath)
			}
			t.auth = append(t.auth, ssh.PublicKeys(signer))
		case cfg.Password == "":
			return nil, errors.Wrapf(err, "reading ssh key %s", keyPath)
		}
	}
	if cfg.Password != "" {
		t.auth = append(t.auth, ssh.Password(cfg.Password))
	}
	if len(t.auth) == 0 {
		return nil, errors.New("no ssh key or password configured")
	}

	if cfg.InsecureIgnoreHostKey {
		t.hostKey = ssh.InsecureIgnoreHostKey()
	} else {
		file := cfg.KnownHostsFile
		if file == "" {
			file = "~/.ssh/known_hosts"
		}
		file, err := homedir.Expand(file)
		if err != nil {
			return nil, errors.Wrapf(err, "expanding %s", cfg.KnownHostsFile)
		}
		cb, err := knownhosts.New(file)
		if err != nil {
			return nil, errors.Wrapf(err, "loading known hosts %s", file)
		}
		t.hostKey = cb
	}
	return t, nil
}

func (t *sshTransport) client(host, user string) (*ssh.Client, error) {
	key := user + "@" + host
	t.mu.Lock()
	c, ok := t.clients[key]
	t.mu.Unlock()
	if ok {
		return c, nil
	}

	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            t.auth,
		HostKeyCallback: t.hostKey,
		Timeout:         t.cfg.ConnectTimeout,
	}
	c, err := ssh.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(t.cfg.Port)), cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %s", key)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.clients[key]; ok {
		_ = c.Close()
		return existing, nil
	}
	t.clients[key] = c
	return c, nil
}

func (t *sshTransport) drop(host, user string) {
	key := user + "@" + host
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.clients[key]; ok {
		_ = c.Close()
		delete(t.clients, key)
	}
}

// newSession opens a session, redialling once when the cached connection
// turns out to be dead.
func (t *sshTransport) newSession(host, user string) (*ssh.Session, error) {
	c, err := t.client(host, user)
	if err != nil {
		return nil, err
	}
	sess, err := c.NewSession()
	if err == nil {
		return sess, nil
	}
	logf.Log.Info("ssh session failed, reconnecting", "host", host, "user", user, "error", err)
	t.drop(host, user)
	if c, err = t.client(host, user); err != nil {
		return nil, err
	}
	sess, err = c.NewSession()
	return sess, errors.Wrapf(err, "opening session on %s@%s", user, host)
}

func (t *sshTransport) Start(ctx context.Context, host, user, cmd string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess, err := t.newSession(host, user)
	if err != nil {
		return nil, err
	}
	s := &sshSession{sess: sess}
	sess.Stdout = &s.stdout
	sess.Stderr = &s.stderr
	if err := sess.Start(cmd); err != nil {
		_ = sess.Close()
		return nil, errors.Wrapf(err, "starting command on %s", host)
	}
	return s, nil
}

func (t *sshTransport) Upload(ctx context.Context, host, user, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	sess, err := t.newSession(host, user)
	if err != nil {
		return err
	}
	defer sess.Close()
	sess.Stdin = f
	dst := cmdline.Quote(remotePath)
	out, err := sess.CombinedOutput(fmt.Sprintf("cat > %s && chmod %o %s", dst, st.Mode().Perm(), dst))
	if err != nil {
		return errors.Wrapf(err, "uploading %s to %s:%s: %s", localPath, host, remotePath, out)
	}
	return nil
}

func (t *sshTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, c := range t.clients {
		_ = c.Close()
		delete(t.clients, key)
	}
	return nil
}

type sshSession struct {
	sess   *ssh.Session
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func (s *sshSession) Wait() (int, string, string, error) {
	err := s.sess.Wait()
	_ = s.sess.Close()
	stdout, stderr := s.stdout.String(), s.stderr.String()
	switch e := err.(type) {
	case nil:
		return 0, stdout, stderr, nil
	case *ssh.ExitError:
		if e.Signal() != "" && e.ExitStatus() == 0 {
			return rcForSignal(e.Signal()), stdout, stderr, nil
		}
		return e.ExitStatus(), stdout, stderr, nil
	default:
		return RcTransportFailure, stdout, stderr, err
	}
}

func (s *sshSession) Signal(sig Signal) error {
	return s.sess.Signal(ssh.Signal(sig))
}

func (s *sshSession) Close() error {
	return s.sess.Close()
}
