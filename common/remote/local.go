package remote

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type localTransport struct{}

// NewLocalTransport returns a transport that runs every command on the
// control host regardless of the host name, for single node labs and unit
// tests.
func NewLocalTransport() Transport {
	return localTransport{}
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}

func (localTransport) Start(ctx context.Context, host, username, cmd string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var c *exec.Cmd
	if username == "" || username == currentUser() {
		c = exec.Command("sh", "-c", cmd)
	} else {
		c = exec.Command("sudo", "-n", "-u", username, "sh", "-c", cmd)
	}
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	s := &localSession{cmd: c}
	c.Stdout = &s.stdout
	c.Stderr = &s.stderr
	if err := c.Start(); err != nil {
		return nil, errors.Wrap(err, "starting local command")
	}
	return s, nil
}

func (localTransport) Upload(ctx context.Context, host, username, localPath, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()
	st, err := src.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(remotePath), 0755); err != nil {
		return err
	}
	dst, err := os.OpenFile(remotePath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, st.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (localTransport) Close() error {
	return nil
}

type localSession struct {
	cmd    *exec.Cmd
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func (s *localSession) Wait() (int, string, string, error) {
	err := s.cmd.Wait()
	stdout, stderr := s.stdout.String(), s.stderr.String()
	if err == nil {
		return 0, stdout, stderr, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal()), stdout, stderr, nil
		}
		return exitErr.ExitCode(), stdout, stderr, nil
	}
	return RcTransportFailure, stdout, stderr, err
}

func (s *localSession) Signal(sig Signal) error {
	n, ok := signalNumbers[string(sig)]
	if !ok {
		return errors.Errorf("unsupported signal %s", sig)
	}
	return unix.Kill(-s.cmd.Process.Pid, unix.Signal(n))
}

func (s *localSession) Close() error {
	return s.Signal(SigKill)
}
