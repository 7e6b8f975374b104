package gluster

import (
	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/remote"
)

type Peer struct {
	UUID      string `xml:"uuid"`
	Hostname  string `xml:"hostname"`
	Connected int    `xml:"connected"`
	StateStr  string `xml:"stateStr"`
}

func (p Peer) IsConnected() bool {
	return p.Connected == 1
}

type poolListReply struct {
	CLIStatus
	Peers []Peer `xml:"peerStatus>peer"`
}

func PeerAttach(r remote.Runner, mnode, server string) remote.Result {
	return r.Run(mnode, cmdline.New("gluster", "peer", "probe", server).String())
}

func PeerDetach(r remote.Runner, mnode, server string, force bool) remote.Result {
	cmd := cmdline.New("gluster", "peer", "detach", server).ArgIf(force, "force").Arg("--mode=script")
	return r.Run(mnode, cmd.String())
}

// GetPoolList returns the trusted storage pool as seen from mnode, mnode
// itself appears as localhost.
func GetPoolList(r remote.Runner, mnode string) ([]Peer, error) {
	var reply poolListReply
	if err := runXML(r, mnode, "gluster pool list --xml", "pool list", &reply); err != nil {
		return nil, err
	}
	return reply.Peers, nil
}
