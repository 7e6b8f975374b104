package dht

import (
	"strconv"

	"gluster-e2e/common/remote"

	"github.com/pkg/errors"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// Candidate names tried by FindNewHashed and FindSpecificHashed are "1" to
// this bound, exclusive.
const candidateLimit = 5000

var (
	ErrNotHashed   = errors.New("no subvolume contains the hash")
	ErrNoCandidate = errors.New("no candidate name found")
)

// Layout holds the brick directories of one directory, one per subvolume,
// taken from the first brick of each.
type Layout struct {
	Dirs []*BrickDir
}

func NewLayout(r remote.Runner, subvols [][]string, parent string) *Layout {
	l := &Layout{}
	for _, sv := range subvols {
		if len(sv) == 0 {
			continue
		}
		l.Dirs = append(l.Dirs, NewBrickDir(r, sv[0], parent))
	}
	return l
}

// Ranges reads the range of every subvolume, zero for subvolumes without
// one.
func (l *Layout) Ranges() ([]HashRange, error) {
	ranges := make([]HashRange, 0, len(l.Dirs))
	for _, d := range l.Dirs {
		hr, _, err := d.HashRange()
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, hr)
	}
	return ranges, nil
}

// Hashed returns the subvolume index whose range contains hash.
func (l *Layout) Hashed(hash uint32) (int, error) {
	for i, d := range l.Dirs {
		ok, err := d.HashRangeContains(hash)
		if err != nil {
			return -1, err
		}
		if ok {
			return i, nil
		}
	}
	return -1, errors.Wrapf(ErrNotHashed, "hash 0x%08x", hash)
}

// FindHashedSubvol returns the brick directory and subvolume index name
// hashes to under parent.
func FindHashedSubvol(r remote.Runner, h Hasher, subvols [][]string, parent, name string) (*BrickDir, int, error) {
	hash, err := h.Hash(name)
	if err != nil {
		return nil, -1, err
	}
	l := NewLayout(r, subvols, parent)
	i, err := l.Hashed(hash)
	if err != nil {
		return nil, -1, errors.Wrapf(err, "name %s under %s", name, parent)
	}
	return l.Dirs[i], i, nil
}

// FindNonhashedSubvol returns the first subvolume name does not hash to.
func FindNonhashedSubvol(r remote.Runner, h Hasher, subvols [][]string, parent, name string) (*BrickDir, int, error) {
	hash, err := h.Hash(name)
	if err != nil {
		return nil, -1, err
	}
	l := NewLayout(r, subvols, parent)
	for i, d := range l.Dirs {
		ok, err := d.HashRangeContains(hash)
		if err != nil {
			return nil, -1, err
		}
		if !ok {
			return d, i, nil
		}
	}
	return nil, -1, errors.Errorf("%s hashes to every subvolume under %s", name, parent)
}

// NewHashed is a candidate name and where it hashes.
type NewHashed struct {
	Name     string
	BrickDir *BrickDir
	Index    int
}

func search(l *Layout, h Hasher, exclude map[string]bool, accept func(int) bool) (*NewHashed, error) {
	for n := 1; n < candidateLimit; n++ {
		name := strconv.Itoa(n)
		if exclude[name] {
			continue
		}
		hash, err := h.Hash(name)
		if err != nil {
			return nil, err
		}
		i, err := l.Hashed(hash)
		if errors.Is(err, ErrNotHashed) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if accept(i) {
			return &NewHashed{Name: name, BrickDir: l.Dirs[i], Index: i}, nil
		}
	}
	return nil, ErrNoCandidate
}

// FindNewHashed finds the first of the names "1" to "4999" that hashes to a
// different subvolume than oldname.
func FindNewHashed(r remote.Runner, h Hasher, subvols [][]string, parent, oldname string) (*NewHashed, error) {
	hash, err := h.Hash(oldname)
	if err != nil {
		return nil, err
	}
	l := NewLayout(r, subvols, parent)
	old, err := l.Hashed(hash)
	if err != nil {
		return nil, err
	}
	found, err := search(l, h, map[string]bool{oldname: true}, func(i int) bool { return i != old })
	if err != nil {
		logf.Log.Info("No name hashes away from the old subvolume", "parent", parent, "oldname", oldname)
	}
	return found, err
}

// FindSpecificHashed finds the first of the names "1" to "4999", excluding
// exclude, that hashes to subvolume target.
func FindSpecificHashed(r remote.Runner, h Hasher, subvols [][]string, parent string, target int, exclude ...string) (*NewHashed, error) {
	if target < 0 || target >= len(subvols) {
		return nil, errors.Errorf("subvolume %d out of %d", target, len(subvols))
	}
	skip := map[string]bool{}
	for _, e := range exclude {
		skip[e] = true
	}
	found, err := search(NewLayout(r, subvols, parent), h, skip, func(i int) bool { return i == target })
	if err != nil {
		logf.Log.Info("No name hashes to the subvolume", "parent", parent, "subvol", target)
	}
	return found, err
}
