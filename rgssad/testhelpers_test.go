package rgssad

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/orcaman/writerseeker"
)

// testFile is one logical (name, plaintext payload) pair used to build a
// synthetic archive for a test.
type testFile struct {
	Name    string
	Payload []byte
}

// encryptBytes reproduces how a real RGSSAD writer stores a payload on
// disk: it runs plaintext through the same unaligned XOR transform
// (xorreader.go) that Stream.Read uses to undo it, starting a
// fresh full Keystream at seed. XOR is its own inverse, so this is
// literally the same code path as decryption exercised in the other
// direction, which doubles as a round-trip check on the transform itself.
func encryptBytes(seed uint32, plaintext []byte) []byte {
	xr := newXORReader(bytes.NewReader(plaintext), NewKeystream(seed))
	out, err := xr.readUnaligned(0, len(plaintext), 0)
	if err != nil {
		panic(err)
	}
	return append([]byte(nil), out...)
}

// xorU32LE encrypts a v1/v2 metadata word: XOR with the next keystream
// value, little-endian.
func xorU32LE(ks *Keystream, v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v^ks.Next())
	return b
}

// xorU8 encrypts v1/v2 filename bytes: one fresh keystream value per byte,
// low 8 bits only.
func xorU8(ks *Keystream, data []byte) []byte {
	out := make([]byte, len(data))
	for i, c := range data {
		out[i] = c ^ byte(ks.Next())
	}
	return out
}

// xorStaticBytes encrypts v3/Fux2Pack metadata bytes against a key that
// never advances: every 4-byte lane is XORed with the same little-endian
// key pattern, whether the data is a 16-byte fixed record or an unaligned
// filename.
func xorStaticBytes(key uint32, data []byte) []byte {
	var kb [4]byte
	binary.LittleEndian.PutUint32(kb[:], key)
	out := make([]byte, len(data))
	for i := range data {
		out[i] = data[i] ^ kb[i%4]
	}
	return out
}

// buildV1Archive serializes files as a v1/v2 RGSSAD archive (version 1 or
// 2; behavior is identical).
func buildV1Archive(version byte, files []testFile) []byte {
	var buf bytes.Buffer
	buf.WriteString("RGSSAD\x00")
	buf.WriteByte(version)

	ks := NewKeystream(defaultMetadataSeed)
	for _, f := range files {
		buf.Write(xorU32LE(ks, uint32(len(f.Name))))
		buf.Write(xorU8(ks, []byte(f.Name)))
		buf.Write(xorU32LE(ks, uint32(len(f.Payload))))
		seed := ks.Key()
		buf.Write(encryptBytes(seed, f.Payload))
	}
	return buf.Bytes()
}

// buildV3Archive serializes files as a v3 (fux2pack=false) or Fux2Pack
// (fux2pack=true) archive, using per-file seeds derived deterministically
// from the file index so tests can exercise distinct subkeys.
func buildV3Archive(fux2pack bool, metadataSeed uint32, files []testFile) []byte {
	var metadataKey uint32
	if fux2pack {
		metadataKey = metadataSeed
	} else {
		metadataKey = metadataSeed*9 + 3
	}

	const headerLen = 12
	recordsLen := 0
	for _, f := range files {
		recordsLen += 16 + len(f.Name)
	}
	const terminatorLen = 16
	payloadStart := headerLen + recordsLen + terminatorLen

	var buf bytes.Buffer
	if fux2pack {
		buf.WriteString("Fux2Pack")
	} else {
		buf.WriteString("RGSSAD\x00")
		buf.WriteByte(3)
	}
	var seedBytes [4]byte
	binary.LittleEndian.PutUint32(seedBytes[:], metadataSeed)
	buf.Write(seedBytes[:])

	offset := payloadStart
	type placed struct {
		offset, subkey uint32
	}
	var placements []placed
	for i, f := range files {
		subkey := 0x1000 + uint32(i)*0x777
		rec := make([]byte, 16)
		binary.LittleEndian.PutUint32(rec[0:4], uint32(offset))
		binary.LittleEndian.PutUint32(rec[4:8], uint32(len(f.Payload)))
		binary.LittleEndian.PutUint32(rec[8:12], subkey)
		binary.LittleEndian.PutUint32(rec[12:16], uint32(len(f.Name)))
		buf.Write(xorStaticBytes(metadataKey, rec))
		buf.Write(xorStaticBytes(metadataKey, []byte(f.Name)))
		placements = append(placements, placed{offset: uint32(offset), subkey: subkey})
		offset += len(f.Payload)
	}
	buf.Write(xorStaticBytes(metadataKey, make([]byte, 16))) // terminator: all-zero record

	for i, f := range files {
		buf.Write(encryptBytes(placements[i].subkey, f.Payload))
	}
	return buf.Bytes()
}

// writeTempArchive writes data to a temp file via writerseeker (building it
// entirely in memory first, the way internal/squashfs/writer_test.go builds
// its filesystem image before handing it to a real file) and returns the
// path, suitable for rgssad.Open which needs a real path to mmap.
func writeTempArchive(t *testing.T, data []byte) string {
	t.Helper()
	var ws writerseeker.WriterSeeker
	if _, err := ws.Write(data); err != nil {
		t.Fatalf("buffering archive: %v", err)
	}
	r, err := ws.Reader()
	if err != nil {
		t.Fatalf("reading back buffered archive: %v", err)
	}
	path := filepath.Join(t.TempDir(), "archive.rgssad")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.ReadFrom(r); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}
