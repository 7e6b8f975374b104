package cluster

import (
	"fmt"
	"strings"
)

const xmlOK = `<opRet>0</opRet><opErrno>0</opErrno><opErrstr/>`

// volInfoXML renders volume info of a started volume with the given bricks.
func volInfoXML(name, typeStr string, replica int, bricks []string) string {
	var b strings.Builder
	for _, br := range bricks {
		fmt.Fprintf(&b, "<brick uuid=\"u\">%s<name>%s</name><hostUuid>u</hostUuid><isArbiter>0</isArbiter></brick>", br, br)
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cliOutput>%s<volInfo><volumes><volume>
<name>%s</name><status>1</status><statusStr>Started</statusStr>
<brickCount>%d</brickCount><distCount>%d</distCount><replicaCount>%d</replicaCount>
<arbiterCount>0</arbiterCount><disperseCount>0</disperseCount><redundancyCount>0</redundancyCount>
<typeStr>%s</typeStr><bricks>%s</bricks><options/>
</volume><count>1</count></volumes></volInfo></cliOutput>`, xmlOK, name, len(bricks), replica, replica, typeStr, b.String())
}

// volStatusXML renders volume status, bricks in down are offline and every
// host in shd runs an online self-heal daemon.
func volStatusXML(name string, bricks []string, down map[string]bool, shd []string) string {
	var b strings.Builder
	for _, br := range bricks {
		i := strings.LastIndex(br, ":/")
		status := 1
		if down[br] {
			status = 0
		}
		fmt.Fprintf(&b, "<node><hostname>%s</hostname><path>%s</path><status>%d</status><pid>100</pid></node>", br[:i], br[i+1:], status)
	}
	for _, h := range shd {
		fmt.Fprintf(&b, "<node><hostname>Self-heal Daemon</hostname><path>%s</path><status>1</status><pid>200</pid></node>", h)
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cliOutput>%s<volStatus><volumes><volume><volName>%s</volName>%s<tasks/></volume></volumes></volStatus></cliOutput>`, xmlOK, name, b.String())
}

func rebalanceXML(state string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cliOutput>%s<volRebalance><nodeCount>1</nodeCount>
<node><nodeName>localhost</nodeName><files>0</files><statusStr>%s</statusStr></node>
<aggregate><files>0</files><statusStr>%s</statusStr></aggregate>
</volRebalance></cliOutput>`, xmlOK, state, state)
}

func poolListXML(connected ...string) string {
	var b strings.Builder
	b.WriteString("<peer><uuid>u1</uuid><hostname>localhost</hostname><connected>1</connected><stateStr>Connected</stateStr></peer>")
	for _, h := range connected {
		fmt.Fprintf(&b, "<peer><uuid>u-%s</uuid><hostname>%s</hostname><connected>1</connected><stateStr>Peer in Cluster</stateStr></peer>", h, h)
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cliOutput>%s<peerStatus>%s</peerStatus></cliOutput>`, xmlOK, b.String())
}
