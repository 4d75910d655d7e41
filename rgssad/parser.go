package rgssad

import (
	"encoding/binary"
	"io"
	"unicode/utf8"

	"golang.org/x/xerrors"
)

// entryRecord is the transient parser output, before the directory tree is
// built from it. path uses backslash separators exactly as stored in the
// archive and is normalized/split by the tree builder, not here.
type entryRecord struct {
	path   string
	offset uint32
	size   uint32
	seed   uint32
}

var (
	magicRGSSAD   = [7]byte{'R', 'G', 'S', 'S', 'A', 'D', 0}
	magicFux2Pack = [8]byte{'F', 'u', 'x', '2', 'P', 'a', 'c', 'k'}
)

// format identifies which of the two metadata layouts an archive uses.
type format int

const (
	formatV1 format = iota
	formatV3
	formatFux2Pack
)

// detectFormat classifies the archive by its first 8 bytes.
func detectFormat(r io.ReaderAt) (format, error) {
	var header [8]byte
	if _, err := io.ReadFull(io.NewSectionReader(r, 0, 8), header[:]); err != nil {
		return 0, xerrors.Errorf("rgssad: reading header: %v: %w", err, ErrUnsupportedFormat)
	}
	if header == magicFux2Pack {
		return formatFux2Pack, nil
	}
	if [7]byte(header[:7]) == magicRGSSAD {
		switch header[7] {
		case 1, 2:
			return formatV1, nil
		case 3:
			return formatV3, nil
		}
	}
	return 0, xerrors.Errorf("rgssad: unrecognized header %x: %w", header, ErrUnsupportedFormat)
}

// parseMetadata dispatches to the version-specific parser and returns every
// entry record found. size is the total archive file size, used to detect
// v1/v2 payloads that run past end of file.
func parseMetadata(r io.ReaderAt, size int64, decode filenameDecoder) ([]entryRecord, error) {
	f, err := detectFormat(r)
	if err != nil {
		return nil, err
	}
	switch f {
	case formatV1:
		return parseV1(r, size, decode)
	case formatV3:
		return parseV3(r, size, decode, true)
	case formatFux2Pack:
		return parseV3(r, size, decode, false)
	default:
		panic("rgssad: unreachable")
	}
}

func parseV1(r io.ReaderAt, size int64, decode filenameDecoder) ([]entryRecord, error) {
	ks := NewKeystream(defaultMetadataSeed)
	xr := newXORReader(r, ks)

	var entries []entryRecord
	cursor := int64(8)
	for cursor < size {
		words, consumed, err := xr.readU32(cursor, 1)
		if err != nil {
			return nil, err
		}
		if consumed < 4 {
			return nil, xerrors.Errorf("rgssad: truncated filename length field at %d: %w", cursor, ErrTruncated)
		}
		cursor += consumed
		fnLen := words[0]

		fnBytes, consumed, err := xr.readU8(cursor, int(fnLen))
		if err != nil {
			return nil, err
		}
		if consumed < int64(fnLen) {
			return nil, xerrors.Errorf("rgssad: truncated filename at %d: %w", cursor, ErrTruncated)
		}
		cursor += consumed

		name, err := decode(fnBytes)
		if err != nil {
			return nil, err
		}

		words, consumed, err = xr.readU32(cursor, 1)
		if err != nil {
			return nil, err
		}
		if consumed < 4 {
			return nil, xerrors.Errorf("rgssad: truncated file size field at %d: %w", cursor, ErrTruncated)
		}
		cursor += consumed
		fSize := words[0]

		offset := cursor
		seed := ks.Key()
		if offset+int64(fSize) > size {
			return nil, xerrors.Errorf("rgssad: entry %q payload (offset %d, size %d) extends past end of file (%d): %w", name, offset, fSize, size, ErrTruncated)
		}

		entries = append(entries, entryRecord{path: name, offset: uint32(offset), size: fSize, seed: seed})
		cursor += int64(fSize)
	}
	return entries, nil
}

func parseV3(r io.ReaderAt, size int64, decode filenameDecoder, derive bool) ([]entryRecord, error) {
	var seedBuf [4]byte
	if _, err := io.ReadFull(io.NewSectionReader(r, 8, 4), seedBuf[:]); err != nil {
		return nil, xerrors.Errorf("rgssad: reading metadata seed: %v: %w", err, ErrTruncated)
	}
	metadataSeed := binary.LittleEndian.Uint32(seedBuf[:])

	var metadataKey uint32
	if derive {
		metadataKey = metadataSeed*9 + 3
	} else {
		metadataKey = metadataSeed
	}

	ks := newStaticKeystream(metadataKey)
	xr := newXORReader(r, ks)

	var entries []entryRecord
	cursor := int64(12)
	for {
		words, consumed, err := xr.readU32(cursor, 4)
		if err != nil {
			return nil, err
		}
		if consumed < 16 {
			return nil, xerrors.Errorf("rgssad: truncated entry record at %d: %w", cursor, ErrTruncated)
		}
		cursor += consumed

		fOffset, fSize, subkey, fnLen := words[0], words[1], words[2], words[3]
		if fOffset == 0 {
			break
		}

		fnBytes, err := xr.readUnaligned(cursor, int(fnLen), 0)
		if err != nil {
			return nil, err
		}
		cursor += int64(fnLen)

		name, err := decode(fnBytes)
		if err != nil {
			return nil, err
		}

		if int64(fOffset)+int64(fSize) > size {
			return nil, xerrors.Errorf("rgssad: entry %q payload (offset %d, size %d) extends past end of file (%d): %w", name, fOffset, fSize, size, ErrTruncated)
		}

		entries = append(entries, entryRecord{path: name, offset: fOffset, size: fSize, seed: subkey})
	}
	return entries, nil
}

// filenameDecoder turns raw decrypted filename bytes into a string. The
// default, strictUTF8Decoder, rejects anything that isn't valid UTF-8.
type filenameDecoder func([]byte) (string, error)

func strictUTF8Decoder(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", xerrors.Errorf("rgssad: filename %q: %w", b, ErrInvalidUTF8)
	}
	return string(b), nil
}
