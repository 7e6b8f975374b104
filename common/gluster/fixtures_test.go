package gluster

const volInfoXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cliOutput>
  <opRet>0</opRet>
  <opErrno>0</opErrno>
  <opErrstr/>
  <volInfo>
    <volumes>
      <volume>
        <name>testvol</name>
        <id>5a0d3d6c-0b1c-4a5d-8f0e-2a1b3c4d5e6f</id>
        <status>1</status>
        <statusStr>Started</statusStr>
        <snapshotCount>0</snapshotCount>
        <brickCount>6</brickCount>
        <distCount>3</distCount>
        <replicaCount>3</replicaCount>
        <arbiterCount>0</arbiterCount>
        <disperseCount>0</disperseCount>
        <redundancyCount>0</redundancyCount>
        <type>7</type>
        <typeStr>Distributed-Replicate</typeStr>
        <transport>0</transport>
        <bricks>
          <brick uuid="u1">server1:/bricks/brick0/testvol_brick0<name>server1:/bricks/brick0/testvol_brick0</name><hostUuid>u1</hostUuid><isArbiter>0</isArbiter></brick>
          <brick uuid="u2">server2:/bricks/brick0/testvol_brick1<name>server2:/bricks/brick0/testvol_brick1</name><hostUuid>u2</hostUuid><isArbiter>0</isArbiter></brick>
          <brick uuid="u3">server3:/bricks/brick0/testvol_brick2<name>server3:/bricks/brick0/testvol_brick2</name><hostUuid>u3</hostUuid><isArbiter>0</isArbiter></brick>
          <brick uuid="u1">server1:/bricks/brick1/testvol_brick3<name>server1:/bricks/brick1/testvol_brick3</name><hostUuid>u1</hostUuid><isArbiter>0</isArbiter></brick>
          <brick uuid="u2">server2:/bricks/brick1/testvol_brick4<name>server2:/bricks/brick1/testvol_brick4</name><hostUuid>u2</hostUuid><isArbiter>0</isArbiter></brick>
          <brick uuid="u3">server3:/bricks/brick1/testvol_brick5<name>server3:/bricks/brick1/testvol_brick5</name><hostUuid>u3</hostUuid><isArbiter>0</isArbiter></brick>
        </bricks>
        <optCount>2</optCount>
        <options>
          <option>
            <name>cluster.quorum-type</name>
            <value>auto</value>
          </option>
          <option>
            <name>transport.address-family</name>
            <value>inet</value>
          </option>
        </options>
      </volume>
      <count>1</count>
    </volumes>
  </volInfo>
</cliOutput>`

const volInfoFailedXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cliOutput>
  <opRet>-1</opRet>
  <opErrno>30800</opErrno>
  <opErrstr>Volume nosuchvol does not exist</opErrstr>
</cliOutput>`

const volStatusXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cliOutput>
  <opRet>0</opRet>
  <opErrno>0</opErrno>
  <opErrstr/>
  <volStatus>
    <volumes>
      <volume>
        <volName>testvol</volName>
        <nodeCount>5</nodeCount>
        <node>
          <hostname>server1</hostname>
          <path>/bricks/brick0/testvol_brick0</path>
          <peerid>u1</peerid>
          <status>1</status>
          <port>49152</port>
          <ports><tcp>49152</tcp><rdma>N/A</rdma></ports>
          <pid>2301</pid>
        </node>
        <node>
          <hostname>server2</hostname>
          <path>/bricks/brick0/testvol_brick1</path>
          <peerid>u2</peerid>
          <status>0</status>
          <port>N/A</port>
          <ports><tcp>N/A</tcp><rdma>N/A</rdma></ports>
          <pid>-1</pid>
        </node>
        <node>
          <hostname>server3</hostname>
          <path>/bricks/brick0/testvol_brick2</path>
          <peerid>u3</peerid>
          <status>1</status>
          <port>49152</port>
          <ports><tcp>49152</tcp><rdma>N/A</rdma></ports>
          <pid>2210</pid>
        </node>
        <node>
          <hostname>Self-heal Daemon</hostname>
          <path>localhost</path>
          <peerid>u1</peerid>
          <status>1</status>
          <port>N/A</port>
          <ports><tcp>N/A</tcp><rdma>N/A</rdma></ports>
          <pid>2330</pid>
        </node>
        <node>
          <hostname>Self-heal Daemon</hostname>
          <path>server2</path>
          <peerid>u2</peerid>
          <status>1</status>
          <port>N/A</port>
          <ports><tcp>N/A</tcp><rdma>N/A</rdma></ports>
          <pid>2277</pid>
        </node>
        <tasks/>
      </volume>
    </volumes>
  </volStatus>
</cliOutput>`

const rebalanceStatusXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cliOutput>
  <opRet>0</opRet>
  <opErrno>0</opErrno>
  <opErrstr/>
  <volRebalance>
    <task-id>8a4f2b38-2f0a-4f1e-9a5c-4b0e2d7f1c11</task-id>
    <op>3</op>
    <nodeCount>2</nodeCount>
    <node>
      <nodeName>localhost</nodeName>
      <id>u1</id>
      <files>0</files>
      <size>0</size>
      <lookups>0</lookups>
      <failures>0</failures>
      <skipped>0</skipped>
      <status>3</status>
      <statusStr>fix-layout completed</statusStr>
      <runtime>1.00</runtime>
    </node>
    <node>
      <nodeName>server2</nodeName>
      <id>u2</id>
      <files>0</files>
      <size>0</size>
      <lookups>0</lookups>
      <failures>0</failures>
      <skipped>0</skipped>
      <status>3</status>
      <statusStr>fix-layout completed</statusStr>
      <runtime>1.00</runtime>
    </node>
    <aggregate>
      <files>0</files>
      <size>0</size>
      <lookups>0</lookups>
      <failures>0</failures>
      <skipped>0</skipped>
      <status>3</status>
      <statusStr>fix-layout completed</statusStr>
      <runtime>1.00</runtime>
    </aggregate>
  </volRebalance>
</cliOutput>`

const quotaListXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cliOutput>
  <opRet>0</opRet>
  <opErrno>0</opErrno>
  <opErrstr/>
  <volQuota>
    <limit>
      <path>/</path>
      <hard_limit>104857600</hard_limit>
      <soft_limit_percent>50%</soft_limit_percent>
      <soft_limit_value>52428800</soft_limit_value>
      <used_space>68157440</used_space>
      <avail_space>36700160</avail_space>
      <sl_exceeded>Yes</sl_exceeded>
      <hl_exceeded>No</hl_exceeded>
    </limit>
    <limit>
      <path>/dir</path>
      <hard_limit>1048576</hard_limit>
      <soft_limit_percent>80%</soft_limit_percent>
      <soft_limit_value>838860</soft_limit_value>
      <used_space>N/A</used_space>
      <avail_space>N/A</avail_space>
      <sl_exceeded>N/A</sl_exceeded>
      <hl_exceeded>N/A</hl_exceeded>
    </limit>
  </volQuota>
</cliOutput>`

const healInfoXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cliOutput>
  <healInfo>
    <bricks>
      <brick hostUuid="u1">
        <name>server1:/bricks/brick0/testvol_brick0</name>
        <file gfid="e3a3f6e4-3a2b-4c1d-9e8f-0a1b2c3d4e5f">/file1</file>
        <file gfid="f4b4a7f5-4b3c-4d2e-8f9a-1b2c3d4e5f6a">/file2</file>
        <status>Connected</status>
        <numberOfEntries>2</numberOfEntries>
      </brick>
      <brick hostUuid="-">
        <name>server2:/bricks/brick0/testvol_brick1</name>
        <status>Transport endpoint is not connected</status>
        <numberOfEntries>-</numberOfEntries>
      </brick>
    </bricks>
  </healInfo>
  <opRet>0</opRet>
  <opErrno>0</opErrno>
  <opErrstr/>
</cliOutput>`

const scrubStatusText = `
Volume name : testvol

State of scrub: Active (Idle)

Scrub impact: lazy

Scrub frequency: biweekly

Bitrot error log location: /var/log/glusterfs/bitd.log

Scrubber error log location: /var/log/glusterfs/scrub.log


=========================================================

Node: localhost

Number of Scrubbed files: 10

Number of Skipped files: 0

Last completed scrub time: 2021-03-10 10:12:44

Duration of last scrub (D:M:H:M:S): 0:0:0:3

Error count: 0


=========================================================

Node: server2

Number of Scrubbed files: 9

Number of Skipped files: 1

Last completed scrub time: 2021-03-10 10:12:45

Duration of last scrub (D:M:H:M:S): 0:0:0:2

Error count: 2

Corrupted object's [GFID]:

6f68f2e3-8f8a-4e69-aa1f-2a7ea6cc0fcd ==> BRICK: /bricks/brick0/testvol_brick1
 path: /file1

0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d ==> BRICK: /bricks/brick0/testvol_brick1
 path: /dir/file2

=========================================================
`
