package features

const xmlOK = `<opRet>0</opRet><opErrno>0</opErrno><opErrstr/>`

const distVolInfoXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cliOutput>` + xmlOK + `<volInfo><volumes><volume>
<name>testvol</name><status>1</status><statusStr>Started</statusStr>
<brickCount>2</brickCount><distCount>1</distCount><replicaCount>1</replicaCount>
<arbiterCount>0</arbiterCount><disperseCount>0</disperseCount><redundancyCount>0</redundancyCount>
<typeStr>Distribute</typeStr>
<bricks>
<brick uuid="u1">server1:/bricks/b0/testvol_brick0<name>server1:/bricks/b0/testvol_brick0</name><hostUuid>u1</hostUuid><isArbiter>0</isArbiter></brick>
<brick uuid="u2">server2:/bricks/b0/testvol_brick1<name>server2:/bricks/b0/testvol_brick1</name><hostUuid>u2</hostUuid><isArbiter>0</isArbiter></brick>
</bricks><options/>
</volume><count>1</count></volumes></volInfo></cliOutput>`

const distVolStatusXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cliOutput>` + xmlOK + `<volStatus><volumes><volume><volName>testvol</volName>
<node><hostname>server1</hostname><path>/bricks/b0/testvol_brick0</path><status>1</status><pid>101</pid></node>
<node><hostname>server2</hostname><path>/bricks/b0/testvol_brick1</path><status>1</status><pid>102</pid></node>
<node><hostname>Snapshot Daemon</hostname><path>localhost</path><status>1</status><pid>201</pid></node>
<node><hostname>Snapshot Daemon</hostname><path>server2</path><status>0</status><pid>-1</pid></node>
<tasks/></volume></volumes></volStatus></cliOutput>`

const quotaXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cliOutput>` + xmlOK + `<volQuota><limit>
<path>/</path>
<hard_limit>104857600</hard_limit>
<soft_limit_percent>50%</soft_limit_percent>
<soft_limit_value>52428800</soft_limit_value>
<used_space>68157440</used_space>
<avail_space>36700160</avail_space>
<sl_exceeded>Yes</sl_exceeded>
<hl_exceeded>No</hl_exceeded>
</limit></volQuota></cliOutput>`

const georepStatusXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cliOutput>` + xmlOK + `<geoRep><volume><name>testvol</name><sessions><session>
<pair><master_node>server1</master_node><master_brick>/bricks/b0/testvol_brick0</master_brick><slave_user>root</slave_user><slave>slave1::slavevol</slave><slave_node>slave1</slave_node><status>Active</status><crawl_status>Changelog Crawl</crawl_status></pair>
<pair><master_node>server2</master_node><master_brick>/bricks/b0/testvol_brick1</master_brick><slave_user>root</slave_user><slave>slave1::slavevol</slave><slave_node>slave1</slave_node><status>%s</status><crawl_status>N/A</crawl_status></pair>
</session></sessions></volume></geoRep></cliOutput>`
