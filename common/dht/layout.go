package dht

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const MaxHash = 0xFFFFFFFF

// HashRange is the inclusive [Low, High] range of one brick directory.
type HashRange struct {
	Low  uint32
	High uint32
}

// IsZero is true for a directory that carries a layout xattr without a
// range, as on a brick added before fix-layout.
func (h HashRange) IsZero() bool {
	return h.Low == 0 && h.High == 0
}

func (h HashRange) Contains(hash uint32) bool {
	return !h.IsZero() && hash >= h.Low && hash <= h.High
}

// Width is the number of hashes in the range.
func (h HashRange) Width() uint64 {
	if h.IsZero() {
		return 0
	}
	return uint64(h.High) - uint64(h.Low) + 1
}

func (h HashRange) String() string {
	return fmt.Sprintf("[0x%08x, 0x%08x]", h.Low, h.High)
}

// ParseLayoutXattr decodes the hex value of trusted.glusterfs.dht: sixteen
// big-endian bytes of which the last eight are the low and high bounds.
func ParseLayoutXattr(value string) (HashRange, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(value), "0x"))
	if err != nil {
		return HashRange{}, errors.Wrapf(err, "layout xattr %q", value)
	}
	if len(b) != 16 {
		return HashRange{}, errors.Errorf("layout xattr %q is %d bytes, expected 16", value, len(b))
	}
	return HashRange{Low: binary.BigEndian.Uint32(b[8:12]), High: binary.BigEndian.Uint32(b[12:16])}, nil
}

var (
	// ErrLayoutHole means part of the hash space is not assigned.
	ErrLayoutHole = errors.New("hole in layout")
	// ErrLayoutOverlap means a hash is assigned to more than one directory.
	ErrLayoutOverlap = errors.New("overlap in layout")
)

// CheckRanges verifies that ranges cover [0, MaxHash] exactly once. Zero
// ranges are ignored. The error wraps ErrLayoutHole or ErrLayoutOverlap.
func CheckRanges(ranges []HashRange) error {
	var rs []HashRange
	for _, r := range ranges {
		if !r.IsZero() {
			rs = append(rs, r)
		}
	}
	if len(rs) == 0 {
		return errors.Wrap(ErrLayoutHole, "no hash ranges")
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].Low < rs[j].Low })
	if rs[0].Low != 0 {
		return errors.Wrapf(ErrLayoutHole, "lowest hash is 0x%08x", rs[0].Low)
	}
	for i := 1; i < len(rs); i++ {
		prev, cur := uint64(rs[i-1].High), uint64(rs[i].Low)
		switch {
		case cur > prev+1:
			return errors.Wrapf(ErrLayoutHole, "between %v and %v", rs[i-1], rs[i])
		case cur < prev+1:
			return errors.Wrapf(ErrLayoutOverlap, "between %v and %v", rs[i-1], rs[i])
		}
	}
	if last := rs[len(rs)-1]; last.High != MaxHash {
		return errors.Wrapf(ErrLayoutHole, "highest hash is 0x%08x", last.High)
	}
	return nil
}

// IsBalanced reports whether every non-zero range is within skew (a
// fraction, 0.1 for ten percent) of an equal share of the hash space.
func IsBalanced(ranges []HashRange, skew float64) bool {
	var widths []uint64
	for _, r := range ranges {
		if !r.IsZero() {
			widths = append(widths, r.Width())
		}
	}
	if len(widths) == 0 {
		return false
	}
	ideal := float64(uint64(MaxHash)+1) / float64(len(widths))
	for _, w := range widths {
		if d := float64(w) - ideal; d > skew*ideal || -d > skew*ideal {
			return false
		}
	}
	return true
}
