// Package agent implements the e2e node agent: an HTTP service that runs
// shell commands on the node it is deployed on, and the remote transport
// that talks to it. It is the alternative to ssh for labs where the harness
// cannot hold ssh credentials.
package agent

import (
	jsoniter "github.com/json-iterator/go"
)

// RestPort is the port on which e2e-agent is listening by default
const RestPort = "10012"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type ExecRequest struct {
	Cmd  string `json:"cmd"`
	User string `json:"user,omitempty"`
}

type ExecResponse struct {
	Rc     int    `json:"rc"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	// Error is set when the agent could not run the command at all
	Error string `json:"error,omitempty"`
}

type AsyncStarted struct {
	ID string `json:"id"`
}

type AsyncStatus struct {
	ID   string `json:"id"`
	Done bool   `json:"done"`
	ExecResponse
}

type SignalRequest struct {
	Signal string `json:"signal"`
}
