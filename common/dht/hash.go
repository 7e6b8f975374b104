// Package dht reproduces the placement decisions of the distribute
// translator: the name hash, per brick directory hash ranges and the checks
// that the ranges of a directory form a complete, balanced layout.
package dht

import "encoding/binary"

const (
	dmDelta   = 0x9E3779B9
	dmFullRnd = 10
	dmPartRnd = 6
)

func dmRound(rounds int, a *[4]uint32, h0, h1 uint32) (uint32, uint32) {
	var sum uint32
	b0, b1 := h0, h1
	for n := 0; n < rounds; n++ {
		sum += dmDelta
		b0 += ((b1 << 4) + a[0]) ^ (b1 + sum) ^ ((b1 >> 5) + a[1])
		b1 += ((b0 << 4) + a[2]) ^ (b0 + sum) ^ ((b0 >> 5) + a[3])
	}
	return h0 + b0, h1 + b1
}

// DMHash is the Davies-Meyer name hash of the distribute translator. It
// hashes the leaf name only and matches gf_dm_hashfn bit for bit, including
// the sign extension of trailing bytes above 0x7f.
func DMHash(name string) uint32 {
	msg := []byte(name)
	n := uint32(len(msg))
	h0, h1 := uint32(0x9464a485), uint32(0x542e1a94)
	pad := n | n<<8
	pad |= pad << 16

	var a [4]uint32
	for len(msg) >= 16 {
		for j := range a {
			a[j] = binary.LittleEndian.Uint32(msg[4*j:])
		}
		h0, h1 = dmRound(dmPartRnd, &a, h0, h1)
		msg = msg[16:]
	}

	for j := range a {
		if len(msg) >= 4 {
			a[j] = binary.LittleEndian.Uint32(msg)
			msg = msg[4:]
			continue
		}
		a[j] = pad
		for _, c := range msg {
			a[j] = a[j]<<8 | uint32(int32(int8(c)))
		}
		msg = nil
	}
	h0, h1 = dmRound(dmFullRnd, &a, h0, h1)
	return h0 ^ h1
}
