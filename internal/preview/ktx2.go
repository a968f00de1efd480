package preview

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
)

// ContainerHeader holds the fields of a KTX2 container header this service
// cares about. Derived, read-only; produced by ParseContainerHeader.
type ContainerHeader struct {
	VkFormat               uint32
	PixelWidth             uint32
	PixelHeight            uint32
	LevelCount             uint32
	SupercompressionScheme uint32
}

// LevelIndexEntry locates one mip level's payload inside a container file.
type LevelIndexEntry struct {
	ByteOffset             uint64
	ByteLength             uint64
	UncompressedByteLength uint64
}

// containerMagic is the 12-byte KTX2 file identifier.
var containerMagic = []byte{0xAB, 0x4B, 0x54, 0x58, 0x20, 0x32, 0x30, 0xBB, 0x0D, 0x0A, 0x1A, 0x0A}

// Fixed byte offsets of the header fields, from the start of the file.
const (
	offVkFormat         = 12
	offPixelWidth       = 20
	offPixelHeight      = 24
	offLevelCount       = 40
	offSupercompression = 44

	containerHeaderSize = 48
	levelIndexOffset    = 80
	levelIndexEntrySize = 24
)

// VkFormat values the raw decode path understands.
const (
	vkFormatUndefined     = 0 // payload is Basis-Universal-compressed
	vkFormatR8G8B8A8Unorm = 37
	vkFormatR8G8B8A8SRGB  = 43
	vkFormatRGBA16SFloat  = 97
)

var (
	// ErrShortHeader is returned when the input ends before the last header
	// field. Callers treat it as "no metadata available", never as fatal.
	ErrShortHeader = errors.New("container header truncated")

	// ErrNotContainer is returned when the input does not start with the
	// container file identifier.
	ErrNotContainer = errors.New("not a container file")

	// ErrBadLevelIndex is returned when the level index is truncated or an
	// entry points outside the file.
	ErrBadLevelIndex = errors.New("container level index out of bounds")
)

// IsContainerFile reports whether data begins with the container identifier.
func IsContainerFile(data []byte) bool {
	return len(data) >= len(containerMagic) && bytes.Equal(data[:len(containerMagic)], containerMagic)
}

// ParseContainerHeader reads the fixed-offset header fields from data.
// It is total over arbitrary input: any byte sequence shorter than the header
// yields ErrShortHeader, never a panic. The magic is not checked here so the
// parser can be pointed at any stream; use IsContainerFile for detection.
func ParseContainerHeader(data []byte) (ContainerHeader, error) {
	if len(data) < containerHeaderSize {
		return ContainerHeader{}, errors.Wrapf(ErrShortHeader, "got %d bytes, need %d", len(data), containerHeaderSize)
	}
	return ContainerHeader{
		VkFormat:               binary.LittleEndian.Uint32(data[offVkFormat:]),
		PixelWidth:             binary.LittleEndian.Uint32(data[offPixelWidth:]),
		PixelHeight:            binary.LittleEndian.Uint32(data[offPixelHeight:]),
		LevelCount:             binary.LittleEndian.Uint32(data[offLevelCount:]),
		SupercompressionScheme: binary.LittleEndian.Uint32(data[offSupercompression:]),
	}, nil
}

// ReadContainerHeader reads just enough of r to parse the header.
// Short reads and I/O errors surface as ErrShortHeader-wrapped failures so
// callers can degrade to "no metadata" uniformly.
func ReadContainerHeader(r io.Reader) (ContainerHeader, error) {
	buf := make([]byte, containerHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return ContainerHeader{}, errors.WithSecondaryError(ErrShortHeader, err)
	}
	return ParseContainerHeader(buf)
}

// CompressionFormat maps the header to a Basis supercompression label.
// ok is false when vkFormat is nonzero: the payload is a raw GPU format and
// carries no Basis layer regardless of the supercompression scheme field.
func (h ContainerHeader) CompressionFormat() (label string, ok bool) {
	if h.VkFormat != vkFormatUndefined {
		return "", false
	}
	if h.SupercompressionScheme == 1 {
		return "ETC1S", true
	}
	return "UASTC", true
}

// ParseLevelIndex reads levelCount index entries starting at the fixed level
// index offset. Every entry is bounds-checked against len(data) so a corrupt
// index cannot cause an out-of-range read later.
func ParseLevelIndex(data []byte, levelCount uint32) ([]LevelIndexEntry, error) {
	if levelCount == 0 {
		levelCount = 1 // level count 0 means "one level, no implied mip chain"
	}
	end := levelIndexOffset + int(levelCount)*levelIndexEntrySize
	if end < 0 || len(data) < end {
		return nil, errors.Wrapf(ErrBadLevelIndex, "index needs %d bytes, file has %d", end, len(data))
	}
	entries := make([]LevelIndexEntry, levelCount)
	for i := range entries {
		off := levelIndexOffset + i*levelIndexEntrySize
		e := LevelIndexEntry{
			ByteOffset:             binary.LittleEndian.Uint64(data[off:]),
			ByteLength:             binary.LittleEndian.Uint64(data[off+8:]),
			UncompressedByteLength: binary.LittleEndian.Uint64(data[off+16:]),
		}
		if e.ByteOffset+e.ByteLength < e.ByteOffset || e.ByteOffset+e.ByteLength > uint64(len(data)) {
			return nil, errors.Wrapf(ErrBadLevelIndex, "level %d spans [%d, %d) in %d-byte file",
				i, e.ByteOffset, e.ByteOffset+e.ByteLength, len(data))
		}
		entries[i] = e
	}
	return entries, nil
}
