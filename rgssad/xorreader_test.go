package rgssad

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// Property 6: round-trip. Encrypting P with a keystream (as v1 does for
// payloads) and reading it back through readUnaligned at the same
// left_offset yields P.
func TestXORReaderRoundTrip(t *testing.T) {
	plaintexts := [][]byte{
		nil,
		[]byte("a"),
		[]byte("ab"),
		[]byte("abc"),
		[]byte("abcd"),
		bytes.Repeat([]byte{0x42}, 4099),
	}
	for _, p := range plaintexts {
		for _, seed := range []uint32{0, 0xDEADCAFE, 0xFFFFFFFF} {
			cipher := encryptBytes(seed, p)
			xr := newXORReader(bytes.NewReader(cipher), NewKeystream(seed))
			got, err := xr.readUnaligned(0, len(p), 0)
			if err != nil {
				t.Fatalf("seed=0x%x len=%d: %v", seed, len(p), err)
			}
			if !bytes.Equal(got, p) {
				t.Fatalf("seed=0x%x: round trip mismatch: got %x, want %x", seed, got, p)
			}
		}
	}
}

// Property 7: reading 4k bytes at left_offset=0 matches the concatenation
// of k XORed 32-bit words from readU32.
func TestXORReaderAlignedMatchesWordReads(t *testing.T) {
	const k = 10
	raw := make([]byte, 4*k)
	for i := range raw {
		raw[i] = byte(i * 7)
	}
	seed := uint32(0xCAFEBABE)

	xr1 := newXORReader(bytes.NewReader(raw), NewKeystream(seed))
	words, consumed, err := xr1.readU32(0, k)
	if err != nil || consumed != int64(len(raw)) {
		t.Fatalf("readU32: %v (consumed %d)", err, consumed)
	}
	var viaWords bytes.Buffer
	for _, w := range words {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], w)
		viaWords.Write(b[:])
	}

	xr2 := newXORReader(bytes.NewReader(raw), NewKeystream(seed))
	viaUnaligned, err := xr2.readUnaligned(0, len(raw), 0)
	if err != nil {
		t.Fatalf("readUnaligned: %v", err)
	}

	if !bytes.Equal(viaWords.Bytes(), viaUnaligned) {
		t.Fatalf("aligned readU32 result differs from readUnaligned result:\n%x\n%x", viaWords.Bytes(), viaUnaligned)
	}
}

// Property 8: rollback invariant. After readUnaligned(len, off) with
// (len+off) mod 4 != 0, the next readUnaligned(m, (off+len) mod 4), which
// resumes inside the partially read block the way Stream.Read does, produces
// bytes identical to a single readUnaligned(len+m, off) issued against an
// equivalent fresh stream.
func TestXORReaderRollbackInvariant(t *testing.T) {
	seed := uint32(0x12345678)
	plain := bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}, 20)

	cases := []struct{ off, len1, len2 int }{
		{0, 5, 3},
		{1, 2, 9},
		{2, 1, 1},
		{3, 2, 16},
		{0, 7, 7},
	}
	for _, c := range cases {
		if (c.off+c.len1)%4 == 0 {
			t.Fatalf("test case %+v doesn't exercise an unaligned tail", c)
		}
		cipher := encryptBytes(seed, plain[:c.len1+c.len2])

		// Split read: readUnaligned(len1, off) then
		// readUnaligned(len2, (off+len1) mod 4).
		xr := newXORReader(bytes.NewReader(cipher), NewKeystream(seed))
		part1, err := xr.readUnaligned(0, c.len1, c.off)
		if err != nil {
			t.Fatalf("%+v: first read: %v", c, err)
		}
		part2, err := xr.readUnaligned(int64(c.len1), c.len2, (c.off+c.len1)%4)
		if err != nil {
			t.Fatalf("%+v: second read: %v", c, err)
		}
		split := append(append([]byte(nil), part1...), part2...)

		// Single read: readUnaligned(len1+len2, off) against a fresh stream.
		xrSingle := newXORReader(bytes.NewReader(cipher), NewKeystream(seed))
		single, err := xrSingle.readUnaligned(0, c.len1+c.len2, c.off)
		if err != nil {
			t.Fatalf("%+v: single read: %v", c, err)
		}

		if !bytes.Equal(split, single) {
			t.Fatalf("%+v: split read %x != single read %x", c, split, single)
		}
	}
}

func TestXORReaderU8TruncatesAtEOF(t *testing.T) {
	raw := []byte{1, 2, 3}
	xr := newXORReader(bytes.NewReader(raw), NewKeystream(0))
	data, consumed, err := xr.readU8(0, 10)
	if err != nil {
		t.Fatalf("readU8: %v", err)
	}
	if consumed != 3 || len(data) != 3 {
		t.Fatalf("expected truncated read of 3 bytes, got %d (len %d)", consumed, len(data))
	}
}

func TestXORReaderU32TruncatesToWholeBlocks(t *testing.T) {
	raw := []byte{1, 2, 3, 4, 5, 6} // 1.5 blocks
	xr := newXORReader(bytes.NewReader(raw), NewKeystream(0))
	words, consumed, err := xr.readU32(0, 2)
	if err != nil {
		t.Fatalf("readU32: %v", err)
	}
	if consumed != 4 || len(words) != 1 {
		t.Fatalf("expected 1 whole block (4 bytes) consumed, got %d bytes / %d words", consumed, len(words))
	}
}
