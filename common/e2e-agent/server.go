package agent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"

	"gluster-e2e/common/remote"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

const (
	InternalServerErrorCode      = 500
	UnprocessableEntityErrorCode = 422
	NotFoundErrorCode            = 404
)

type job struct {
	sess remote.Session
	done chan struct{}
	resp ExecResponse
}

// Server runs commands on the local node through the local transport.
type Server struct {
	transport remote.Transport
	mu        sync.Mutex
	jobs      map[string]*job
}

func NewServer() *Server {
	return &Server{
		transport: remote.NewLocalTransport(),
		jobs:      map[string]*job{},
	}
}

// Handler returns the agent router wrapped with access logging to accessLog
// and panic recovery.
func (s *Server) Handler(accessLog io.Writer) http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/", homePage)
	router.HandleFunc("/exec", s.execCmd).Methods("POST")
	router.HandleFunc("/exec/async", s.startAsync).Methods("POST")
	router.HandleFunc("/exec/async/{id}", s.asyncStatus).Methods("GET")
	router.HandleFunc("/exec/async/{id}", s.abandonAsync).Methods("DELETE")
	router.HandleFunc("/exec/async/{id}/signal", s.signalAsync).Methods("POST")
	router.HandleFunc("/upload", s.upload).Methods("PUT")
	return handlers.RecoveryHandler()(handlers.CombinedLoggingHandler(accessLog, router))
}

func homePage(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "Welcome home!\n")
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logf.Log.Info("Failed to encode response", "error", err)
	}
}

func decodeExec(w http.ResponseWriter, r *http.Request) (ExecRequest, bool) {
	var req ExecRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, UnprocessableEntityErrorCode, ExecResponse{Error: err.Error()})
		return req, false
	}
	if len(req.Cmd) == 0 {
		writeJSON(w, UnprocessableEntityErrorCode, ExecResponse{Error: "no command passed"})
		return req, false
	}
	return req, true
}

func (s *Server) start(req ExecRequest) (*job, error) {
	sess, err := s.transport.Start(context.Background(), "localhost", req.User, req.Cmd)
	if err != nil {
		return nil, err
	}
	j := &job{sess: sess, done: make(chan struct{})}
	go func() {
		rc, stdout, stderr, err := sess.Wait()
		j.resp = ExecResponse{Rc: rc, Stdout: stdout, Stderr: stderr}
		if err != nil {
			j.resp.Error = err.Error()
		}
		close(j.done)
	}()
	return j, nil
}

func (s *Server) execCmd(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeExec(w, r)
	if !ok {
		return
	}
	logf.Log.Info("exec", "cmd", req.Cmd, "user", req.User)
	j, err := s.start(req)
	if err != nil {
		writeJSON(w, InternalServerErrorCode, ExecResponse{Error: err.Error()})
		return
	}
	select {
	case <-j.done:
		writeJSON(w, http.StatusOK, j.resp)
	case <-r.Context().Done():
		_ = j.sess.Close()
	}
}

func (s *Server) startAsync(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeExec(w, r)
	if !ok {
		return
	}
	logf.Log.Info("exec async", "cmd", req.Cmd, "user", req.User)
	j, err := s.start(req)
	if err != nil {
		writeJSON(w, InternalServerErrorCode, ExecResponse{Error: err.Error()})
		return
	}
	id := uuid.New().String()
	s.mu.Lock()
	s.jobs[id] = j
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, AsyncStarted{ID: id})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (string, *job, bool) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	j, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, NotFoundErrorCode, ExecResponse{Error: "no such job " + id})
	}
	return id, j, ok
}

func (s *Server) forget(id string) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
}

// asyncStatus reports the state of a job. With wait=true it blocks until the
// job completes. A completed job is forgotten once reported.
func (s *Server) asyncStatus(w http.ResponseWriter, r *http.Request) {
	id, j, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		select {
		case <-j.done:
		case <-r.Context().Done():
			return
		}
	}
	select {
	case <-j.done:
		s.forget(id)
		writeJSON(w, http.StatusOK, AsyncStatus{ID: id, Done: true, ExecResponse: j.resp})
	default:
		writeJSON(w, http.StatusOK, AsyncStatus{ID: id})
	}
}

func (s *Server) signalAsync(w http.ResponseWriter, r *http.Request) {
	_, j, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req SignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, UnprocessableEntityErrorCode, ExecResponse{Error: err.Error()})
		return
	}
	if err := j.sess.Signal(remote.Signal(req.Signal)); err != nil {
		writeJSON(w, InternalServerErrorCode, ExecResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// abandonAsync kills a job and forgets it.
func (s *Server) abandonAsync(w http.ResponseWriter, r *http.Request) {
	id, j, ok := s.lookup(w, r)
	if !ok {
		return
	}
	select {
	case <-j.done:
	default:
		_ = j.sess.Close()
	}
	s.forget(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, UnprocessableEntityErrorCode, ExecResponse{Error: "no path passed"})
		return
	}
	mode, err := strconv.ParseUint(r.URL.Query().Get("mode"), 8, 32)
	if err != nil {
		mode = 0644
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(mode))
	if err == nil {
		_, err = io.Copy(f, r.Body)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}
	if err == nil {
		err = os.Chmod(path, os.FileMode(mode))
	}
	if err != nil {
		writeJSON(w, InternalServerErrorCode, ExecResponse{Error: err.Error()})
		return
	}
	logf.Log.Info("uploaded", "path", path, "mode", fmt.Sprintf("%o", mode))
	w.WriteHeader(http.StatusNoContent)
}
