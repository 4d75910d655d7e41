package rgssad

import (
	"encoding/binary"
	"io"

	"golang.org/x/xerrors"
)

// xorReader applies a keystream to bytes pulled from an io.ReaderAt. It is
// deliberately stateless with respect to position: every method takes the
// absolute archive offset to read from, so the same xorReader can serve a
// sequential metadata scan (parser.go keeps its own cursor) and a
// random-access entry stream (stream.go keeps its own virtual cursor)
// without either one fighting over a shared read position.
type xorReader struct {
	r  io.ReaderAt
	ks keystream
}

func newXORReader(r io.ReaderAt, ks keystream) *xorReader {
	return &xorReader{r: r, ks: ks}
}

// readU32 reads 4*n bytes at off and XORs them as n little-endian 32-bit
// words against successive keystream values. If fewer than 4*n bytes are
// available, the result is truncated to the whole blocks actually read and
// the keystream only advances for the blocks consumed. consumed reports how
// many raw bytes were read.
func (x *xorReader) readU32(off int64, n int) (words []uint32, consumed int64, err error) {
	buf := make([]byte, 4*n)
	read, err := x.r.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, 0, xerrors.Errorf("rgssad: read at %d: %w", off, err)
	}
	if err == io.EOF && read < len(buf) {
		blocks := read / 4
		words = make([]uint32, blocks)
		for i := range words {
			words[i] = binary.LittleEndian.Uint32(buf[i*4:]) ^ x.ks.Next()
		}
		return words, int64(blocks * 4), nil
	}
	words = make([]uint32, n)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(buf[i*4:]) ^ x.ks.Next()
	}
	return words, int64(len(buf)), nil
}

// readU8 reads n bytes at off, XORing each with the low 8 bits of a fresh
// keystream value (one full LCG step per byte). Used for v1/v2 filenames.
func (x *xorReader) readU8(off int64, n int) (data []byte, consumed int64, err error) {
	buf := make([]byte, n)
	read, err := x.r.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, 0, xerrors.Errorf("rgssad: read at %d: %w", off, err)
	}
	if err == io.EOF && read < len(buf) {
		buf = buf[:read]
	}
	out := make([]byte, len(buf))
	for i, b := range buf {
		out[i] = b ^ byte(x.ks.Next())
	}
	return out, int64(len(out)), nil
}

// readUnaligned reads lenBytes of plaintext starting leftOffset bytes into a
// 32-bit block at archive offset off. leftOffset must be in [0,4). It
// decrypts whole 4-byte blocks around the requested range, zero-padding the
// part of the first/last block that isn't real data, and rolls the
// keystream back one step if the final block wasn't fully consumed by this
// read (so the next unaligned read picks up the correct key).
func (x *xorReader) readUnaligned(off int64, lenBytes, leftOffset int) ([]byte, error) {
	if leftOffset < 0 || leftOffset > 3 {
		panic("rgssad: left_offset out of range")
	}
	nBlocks := (lenBytes + leftOffset + 3) / 4
	buf := make([]byte, 4*nBlocks)

	if lenBytes > 0 {
		read, err := x.r.ReadAt(buf[leftOffset:leftOffset+lenBytes], off)
		if read < lenBytes {
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return nil, xerrors.Errorf("rgssad: unaligned read at %d: %v: %w", off, err, ErrTruncated)
		}
	}

	for i := 0; i < nBlocks; i++ {
		word := binary.LittleEndian.Uint32(buf[i*4:]) ^ x.ks.Next()
		binary.LittleEndian.PutUint32(buf[i*4:], word)
	}

	result := buf[leftOffset : leftOffset+lenBytes]
	if (leftOffset+lenBytes)%4 != 0 {
		x.ks.Rollback()
	}
	return result, nil
}
