package common

import "strings"

type VolumeType string

const (
	VolDistributed           VolumeType = "distributed"
	VolReplicated            VolumeType = "replicated"
	VolDistributedReplicated VolumeType = "distributed-replicated"
	VolDispersed             VolumeType = "dispersed"
	VolDistributedDispersed  VolumeType = "distributed-dispersed"
	VolArbiter               VolumeType = "arbiter"
	VolDistributedArbiter    VolumeType = "distributed-arbiter"
	VolTier                  VolumeType = "tier"
)

// AllVolumeTypes in the order suites usually iterate them.
var AllVolumeTypes = []VolumeType{
	VolDistributed,
	VolReplicated,
	VolDistributedReplicated,
	VolDispersed,
	VolDistributedDispersed,
	VolArbiter,
	VolDistributedArbiter,
}

// IsDistributed is true when the type has more than one subvolume by construction.
func (v VolumeType) IsDistributed() bool {
	return v == VolDistributed || strings.HasPrefix(string(v), "distributed-")
}

func (v VolumeType) IsReplicated() bool {
	return strings.HasSuffix(string(v), "replicated") || strings.HasSuffix(string(v), "arbiter")
}

func (v VolumeType) IsDispersed() bool {
	return strings.HasSuffix(string(v), "dispersed")
}

type MountProtocol string

const (
	MountGlusterfs MountProtocol = "glusterfs"
	MountNfs       MountProtocol = "nfs"
	MountCifs      MountProtocol = "cifs"
	MountSmb       MountProtocol = "smb"
)

type Platform string

const (
	PlatformLinux   Platform = "linux"
	PlatformWindows Platform = "windows"
)

const DefaultSuperUser = "root"
const DefaultWindowsUser = "Admin"
