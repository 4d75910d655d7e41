package rgssad

import (
	"io"

	"golang.org/x/xerrors"
)

// Stream is a seekable, decrypting view of one archive entry's payload. It
// satisfies io.ReadSeekCloser. Every Stream owns its own virtual cursor and
// keystream state (cloned from the entry's seed), so siblings opened from
// the same Archive never interfere with each other; the shared mmap
// ReaderAt backing them needs no locking since reads are positional.
type Stream struct {
	r    io.ReaderAt
	base int64 // entry.offset: absolute archive offset of payload start
	size int64 // entry.size
	pos  int64 // virtual position in [0, size]
	ks   *Keystream
}

func newStream(r io.ReaderAt, offset, size, seed uint32) *Stream {
	return &Stream{
		r:    r,
		base: int64(offset),
		size: int64(size),
		ks:   NewKeystream(seed),
	}
}

// Read decrypts up to len(p) bytes starting at the stream's current
// position. At end of payload it returns (0, io.EOF).
func (s *Stream) Read(p []byte) (int, error) {
	remaining := s.size - s.pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	n := len(p)
	if int64(n) > remaining {
		n = int(remaining)
	}
	if n == 0 {
		return 0, nil
	}

	leftOffset := int(s.pos % 4)
	xr := newXORReader(s.r, s.ks)
	data, err := xr.readUnaligned(s.base+s.pos, n, leftOffset)
	if err != nil {
		return 0, xerrors.Errorf("rgssad: read at virtual offset %d: %w", s.pos, err)
	}
	copy(p, data)
	s.pos += int64(len(data))
	return len(data), nil
}

// Tell returns the stream's current virtual position, i.e. the number of
// plaintext bytes read (or seeked past) from the start of the payload.
func (s *Stream) Tell() int64 { return s.pos }

// Seek repositions the stream. The keystream is advanced, rewound, or reset
// as cheaply as possible (see package docs on Keystream.Skip/Rewind) so
// that the next Read resumes decryption from the correct block.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.pos + offset
	case io.SeekEnd:
		target = s.size + offset
	default:
		return 0, xerrors.Errorf("rgssad: seek: invalid whence %d: %w", whence, ErrInvalidArgument)
	}
	if target < 0 {
		return 0, xerrors.Errorf("rgssad: seek: negative position %d: %w", target, ErrInvalidArgument)
	}

	targetBlock := target / 4
	curBlock := s.pos / 4

	switch {
	case targetBlock >= curBlock:
		s.ks.Skip(uint64(targetBlock - curBlock))
	case targetBlock >= curBlock/2:
		s.ks.Rewind(uint64(curBlock - targetBlock))
	default:
		s.ks.Reset()
		s.ks.Skip(uint64(targetBlock))
	}

	s.pos = target
	return s.pos, nil
}

// Close releases the stream. The underlying archive mapping is owned by
// the Archive it was opened from and outlives any individual Stream.
func (s *Stream) Close() error { return nil }
