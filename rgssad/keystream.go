package rgssad

import "math/big"

// The RGSSAD cipher keystream is a 32-bit linear congruential generator:
//
//	k_{i+1} = (k_i * lcgMultiplier + lcgIncrement) mod 2^32
//
// get_next() returns k_i and advances to k_{i+1}.
const (
	lcgMultiplier = 7
	lcgIncrement  = 3

	// defaultMetadataSeed is the fixed key the v1/v2 parser starts from.
	defaultMetadataSeed = 0xDEADCAFE
)

// skipStep holds the composed affine transform equivalent to applying the
// LCG 2^b times: k -> k*mul + add. inverseMul is mul's inverse mod 2^32,
// used to undo that many steps.
type skipStep struct {
	mul        uint32
	add        uint32
	inverseMul uint32
}

// skipTable[b] lets Skip/Rewind advance or rewind by n steps in O(log n) by
// decomposing n into its set bits. 64 entries cover the full uint64 range a
// caller could hand us, even though valid archives never need more than the
// low 30 (offsets are 32-bit and the keystream advances once per 4-byte
// block: 2^32/4 = 2^30 blocks).
var skipTable [64]skipStep

func init() {
	m, a := uint32(lcgMultiplier), uint32(lcgIncrement)
	im := modInverse32(m)
	for b := range skipTable {
		skipTable[b] = skipStep{mul: m, add: a, inverseMul: im}
		a = a * (m + 1)
		m = m * m
		im = im * im
	}
}

// modInverse32 returns x such that a*x = 1 mod 2^32. Panics if a is not
// invertible (even), which would mean the LCG multiplier itself was wrong;
// not something a caller can hit through this package's API.
func modInverse32(a uint32) uint32 {
	mod := new(big.Int).Lsh(big.NewInt(1), 32)
	inv := new(big.Int).ModInverse(big.NewInt(int64(a)), mod)
	if inv == nil {
		panic("rgssad: lcg multiplier has no inverse mod 2^32")
	}
	return uint32(inv.Uint64())
}

// keystream is the interface shared by Keystream and staticKeystream, so
// the XOR reader can be driven by either.
type keystream interface {
	Next() uint32
	Key() uint32
	Skip(n uint64)
	Rollback()
	Reset()
}

// Keystream is the full LCG keystream used for v1/v2 metadata and for every
// file's payload. It supports skipping forward and rewinding backward by an
// arbitrary number of blocks in O(log n), which is what makes random-access
// seeking on a decrypted stream practical.
type Keystream struct {
	seed uint32
	key  uint32
}

// NewKeystream creates a keystream starting at the given seed.
func NewKeystream(seed uint32) *Keystream {
	return &Keystream{seed: seed, key: seed}
}

// Next returns the current key and advances the keystream by one block.
func (k *Keystream) Next() uint32 {
	cur := k.key
	k.key = cur*lcgMultiplier + lcgIncrement
	return cur
}

// Key returns the current key without advancing the keystream.
func (k *Keystream) Key() uint32 { return k.key }

// Skip advances the keystream by n blocks in O(log n).
func (k *Keystream) Skip(n uint64) {
	key := k.key
	for b := 0; n != 0; b++ {
		if n&1 == 1 {
			key = key*skipTable[b].mul + skipTable[b].add
		}
		n >>= 1
	}
	k.key = key
}

// Rewind moves the keystream backward by n blocks in O(log n), using the
// precomputed modular inverses. The LCG multiplier (7) is coprime with
// 2^32, so rewind is always supported for this cipher.
func (k *Keystream) Rewind(n uint64) {
	key := k.key
	for b := 0; n != 0; b++ {
		if n&1 == 1 {
			key = (key - skipTable[b].add) * skipTable[b].inverseMul
		}
		n >>= 1
	}
	k.key = key
}

// Rollback undoes exactly one block, equivalent to Rewind(1). It is used by
// the XOR reader to correct the keystream after an unaligned read consumed
// a keystream value for a block whose data will be re-read next time.
func (k *Keystream) Rollback() { k.Rewind(1) }

// Reset returns the keystream to its initial seed.
func (k *Keystream) Reset() { k.key = k.seed }

// staticKeystream always returns the same key. Used while decrypting the v3
// entry table: every field in that table is XORed with the same metadata
// key, never advancing. Each v3 entry then carries its own per-file seed,
// which payload decryption drives through a full Keystream.
type staticKeystream struct {
	key uint32
}

func newStaticKeystream(key uint32) *staticKeystream {
	return &staticKeystream{key: key}
}

func (k *staticKeystream) Next() uint32  { return k.key }
func (k *staticKeystream) Key() uint32   { return k.key }
func (k *staticKeystream) Skip(n uint64) {}
func (k *staticKeystream) Rollback()     {}
func (k *staticKeystream) Reset()        {}
