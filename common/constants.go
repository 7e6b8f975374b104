package common

// Directory on servers and clients into which helper scripts are uploaded.
const DefaultUploadDir = "/usr/share/glustolibs/io/scripts"

const GlusterdWorkDir = "/var/lib/glusterd"
const BrickLogDir = "/var/log/glusterfs/bricks"

// Daemon pid files.
const BitdPidFile = GlusterdWorkDir + "/bitd/run/bitd.pid"
const ScrubPidFile = GlusterdWorkDir + "/scrub/run/scrub.pid"

// Brick root relative directory holding pending-heal index entries.
const XattropDir = ".glusterfs/indices/xattrop"

// Extended attributes consumed by the harness.
const (
	XattrDhtLayout     = "trusted.glusterfs.dht"
	XattrPathinfo      = "trusted.glusterfs.pathinfo"
	XattrGfid          = "trusted.gfid"
	XattrDhtLinkto     = "trusted.glusterfs.dht.linkto"
	XattrBitrotSign    = "trusted.bit-rot.signature"
	XattrBitrotVer     = "trusted.bit-rot.version"
	XattrBitrotBadFile = "trusted.bit-rot.bad-file"
)

// Default convergence timeouts, overridable from the configuration file.
const (
	DefaultHealTimeoutSecs          = 1200
	DefaultRebalanceTimeoutSecs     = 300
	DefaultDaemonOnlineTimeoutSecs  = 300
	DefaultFixLayoutTimeoutSecs     = 300
	DefaultVolProcessTimeoutSecs    = 300
	DefaultGlusterdStartTimeoutSecs = 120
)

// Messages emitted by a client mount when IO fails in a known way.
const (
	ErrTransportNotConnected = "Transport endpoint is not connected"
	ErrInputOutput           = "Input/output error"
	ErrReadOnlyFs            = "Read-only file system"
)

// Quota alert message id logged in brick logs when a soft limit is crossed.
const QuotaSoftLimitAlertMsgID = "120004"

const ArequalCmd = "arequal-checksum"
