package dht

import (
	_ "embed"
	"path"
	"strings"

	"gluster-e2e/common/cluster"
	"gluster-e2e/common/cmdline"
	"gluster-e2e/common/gluster"
	"gluster-e2e/common/glusterfile"
	"gluster-e2e/common/remote"

	"github.com/blang/semver"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Volumes without a distribute layer have no ranges from this version on.
var noLeafLayoutSince = semver.MustParse("6.0.0")

// layoutApplies reports whether directories of the volume carry hash ranges.
func layoutApplies(r remote.Runner, mnode string, v *gluster.VolumeInfo) bool {
	if cluster.VolumeTypeOf(v).IsDistributed() {
		return true
	}
	ver, err := gluster.GetGlusterVersion(r, mnode)
	if err != nil {
		logf.Log.Info("Unable to read the gluster version, checking layout anyway", "error", err)
		return true
	}
	if ver.GTE(noLeafLayoutSince) {
		logf.Log.Info("Skipping layout check, volume has a single subvolume", "volume", v.Name, "version", ver.String())
		return false
	}
	return true
}

func checkLayout(l *Layout, dir string, balanced bool, skew float64) (bool, error) {
	ranges, err := l.Ranges()
	if err != nil {
		return false, err
	}
	if err := CheckRanges(ranges); err != nil {
		logf.Log.Info("Layout is not complete", "dir", dir, "error", err.Error())
		return false, nil
	}
	if balanced && !IsBalanced(ranges, skew) {
		logf.Log.Info("Layout is not balanced", "dir", dir, "ranges", ranges)
		return false, nil
	}
	return true, nil
}

// IsLayoutComplete reports whether the ranges of dir, relative to the volume
// root, cover the hash space with no hole and no overlap.
func IsLayoutComplete(r remote.Runner, mnode, volname, dir string) (bool, error) {
	v, err := gluster.GetVolume(r, mnode, volname)
	if err != nil {
		return false, err
	}
	if !layoutApplies(r, mnode, v) {
		return true, nil
	}
	return checkLayout(NewLayout(r, cluster.SubvolsOf(v).All(), dir), dir, false, 0)
}

// IsLayoutBalanced additionally requires every range to be within skew of an
// equal share.
func IsLayoutBalanced(r remote.Runner, mnode, volname, dir string, skew float64) (bool, error) {
	v, err := gluster.GetVolume(r, mnode, volname)
	if err != nil {
		return false, err
	}
	if !layoutApplies(r, mnode, v) {
		return true, nil
	}
	return checkLayout(NewLayout(r, cluster.SubvolsOf(v).All(), dir), dir, true, skew)
}

// FileType selects the entries ValidateFilesInDir looks at.
type FileType int

const (
	FileTypeDirs FileType = 1 << iota
	FileTypeFiles
)

const FileTypeAll = FileTypeDirs | FileTypeFiles

// TestType selects the checks ValidateFilesInDir runs.
type TestType int

const (
	TestLayoutComplete TestType = 1 << iota
	TestLayoutBalanced
	TestFileOnHashedBricks
)

type ValidateOptions struct {
	// Client mounts the volume at MountPoint.
	Client     string
	MountPoint string
	Mnode      string
	Volname    string
	FileTypes  FileType
	Tests      TestType
	// Skew tolerated by TestLayoutBalanced, 0.1 when zero.
	Skew      float64
	UploadDir string
}

// WalkEntry is one directory reported by the walker script.
type WalkEntry struct {
	Dir   string   `json:"dir"`
	Dirs  []string `json:"dirs"`
	Files []string `json:"files"`
}

//go:embed scripts/walk_dir.py
var walkScript []byte

const walkScriptName = "walk_dir.py"

// ParseWalk decodes the output of the walker script.
func ParseWalk(out string) ([]WalkEntry, error) {
	var entries []WalkEntry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var e WalkEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, errors.Wrapf(err, "walker line %q", line)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ValidateFilesInDir walks root on the client mount and runs the selected
// checks on every directory and file beneath it.
func ValidateFilesInDir(r remote.Runner, h Hasher, root string, opts ValidateOptions) (bool, error) {
	if opts.Skew == 0 {
		opts.Skew = 0.1
	}
	if !remote.UploadContent(r, []string{opts.Client}, walkScriptName, walkScript, opts.UploadDir) {
		return false, errors.Errorf("unable to upload %s to %s", walkScriptName, opts.Client)
	}
	res := r.Run(opts.Client, cmdline.New("python3", opts.UploadDir+"/"+walkScriptName, root).String())
	if !res.Ok() {
		return false, gluster.CommandFailed(res, "walk directory")
	}
	entries, err := ParseWalk(res.Stdout)
	if err != nil {
		return false, gluster.ParseFailed(res, "walk directory", err)
	}

	v, err := gluster.GetVolume(r, opts.Mnode, opts.Volname)
	if err != nil {
		return false, err
	}
	subvols := cluster.SubvolsOf(v).All()
	checkRanges := layoutApplies(r, opts.Mnode, v)

	ok := true
	for _, e := range entries {
		rel := path.Clean("/" + strings.TrimPrefix(e.Dir, opts.MountPoint))
		l := NewLayout(r, subvols, rel)
		if opts.FileTypes&FileTypeDirs != 0 && checkRanges && opts.Tests&(TestLayoutComplete|TestLayoutBalanced) != 0 {
			good, err := checkLayout(l, rel, opts.Tests&TestLayoutBalanced != 0, opts.Skew)
			if err != nil {
				return false, err
			}
			ok = ok && good
		}
		if opts.FileTypes&FileTypeFiles == 0 || opts.Tests&TestFileOnHashedBricks == 0 {
			continue
		}
		for _, f := range e.Files {
			good, err := fileOnHashedBricks(r, h, l, subvols, rel, f)
			if err != nil {
				return false, err
			}
			ok = ok && good
		}
	}
	return ok, nil
}

// fileOnHashedBricks checks that name exists, as data or as a linkto, on
// every brick of its hashed subvolume.
func fileOnHashedBricks(r remote.Runner, h Hasher, l *Layout, subvols [][]string, dir, name string) (bool, error) {
	hash, err := h.Hash(name)
	if err != nil {
		return false, err
	}
	i, err := l.Hashed(hash)
	if err != nil {
		return false, err
	}
	for _, brick := range subvols[i] {
		bd := NewBrickDir(r, brick, dir)
		if !glusterfile.FileExists(r, bd.Host(), bd.PathOf(name)) {
			logf.Log.Info("File missing on hashed brick", "file", path.Join(dir, name), "brick", brick)
			return false, nil
		}
	}
	return true, nil
}
