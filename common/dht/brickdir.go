package dht

import (
	"path"

	"gluster-e2e/common"
	"gluster-e2e/common/gluster"
	"gluster-e2e/common/glusterfile"
	"gluster-e2e/common/remote"
)

// BrickDir is a directory of the volume as stored on one brick.
type BrickDir struct {
	r     remote.Runner
	Brick string
	// Dir is relative to the volume root, "/" for the root itself.
	Dir string

	hr     *HashRange
	loaded bool
}

func NewBrickDir(r remote.Runner, brick, dir string) *BrickDir {
	if dir == "" {
		dir = "/"
	}
	return &BrickDir{r: r, Brick: brick, Dir: path.Clean("/" + dir)}
}

func (b *BrickDir) Host() string {
	h, _ := gluster.SplitBrick(b.Brick)
	return h
}

// Path is the absolute path of the directory on the brick host.
func (b *BrickDir) Path() string {
	_, p := gluster.SplitBrick(b.Brick)
	return path.Join(p, b.Dir)
}

// PathOf returns the brick host path of a child of the directory.
func (b *BrickDir) PathOf(name string) string {
	return path.Join(b.Path(), name)
}

func (b *BrickDir) String() string {
	return b.Host() + ":" + b.Path()
}

// HashRange reads the layout xattr once and caches it. ok is false when the
// directory has no range assigned.
func (b *BrickDir) HashRange() (HashRange, bool, error) {
	if !b.loaded {
		v, err := glusterfile.GetFattr(b.r, b.Host(), b.Path(), common.XattrDhtLayout, glusterfile.EncodingHex)
		if err != nil {
			return HashRange{}, false, err
		}
		hr, err := ParseLayoutXattr(v)
		if err != nil {
			return HashRange{}, false, &gluster.ParseError{Host: b.Host(), Cmd: "getfattr " + common.XattrDhtLayout + " " + b.Path(), Err: err}
		}
		b.hr = &hr
		b.loaded = true
	}
	return *b.hr, !b.hr.IsZero(), nil
}

// Refresh drops the cached range, after a fix-layout for example.
func (b *BrickDir) Refresh() {
	b.hr = nil
	b.loaded = false
}

func (b *BrickDir) HashRangeContains(hash uint32) (bool, error) {
	hr, _, err := b.HashRange()
	if err != nil {
		return false, err
	}
	return hr.Contains(hash), nil
}
