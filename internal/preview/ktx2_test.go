package preview

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// buildHeader returns a minimal container file prefix with the given header
// fields at their fixed offsets.
func buildHeader(vkFormat, width, height, levels, scheme uint32) []byte {
	data := make([]byte, containerHeaderSize)
	copy(data, containerMagic)
	binary.LittleEndian.PutUint32(data[offVkFormat:], vkFormat)
	binary.LittleEndian.PutUint32(data[offPixelWidth:], width)
	binary.LittleEndian.PutUint32(data[offPixelHeight:], height)
	binary.LittleEndian.PutUint32(data[offLevelCount:], levels)
	binary.LittleEndian.PutUint32(data[offSupercompression:], scheme)
	return data
}

func TestParseContainerHeader(t *testing.T) {
	data := buildHeader(37, 1024, 512, 11, 0)

	hdr, err := ParseContainerHeader(data)
	if err != nil {
		t.Fatalf("ParseContainerHeader: %v", err)
	}
	if hdr.VkFormat != 37 || hdr.PixelWidth != 1024 || hdr.PixelHeight != 512 {
		t.Errorf("unexpected header: %+v", hdr)
	}
	if hdr.LevelCount != 11 || hdr.SupercompressionScheme != 0 {
		t.Errorf("unexpected level/scheme: %+v", hdr)
	}
}

func TestParseContainerHeader_short_input(t *testing.T) {
	// Total over every length below the header size: a failure value, never a panic.
	full := buildHeader(0, 16, 16, 1, 1)
	for n := 0; n < containerHeaderSize; n++ {
		_, err := ParseContainerHeader(full[:n])
		if !errors.Is(err, ErrShortHeader) {
			t.Fatalf("len %d: expected ErrShortHeader, got %v", n, err)
		}
	}
}

func TestParseContainerHeader_garbage(t *testing.T) {
	garbage := bytes.Repeat([]byte{0xDE, 0xAD}, containerHeaderSize)
	if _, err := ParseContainerHeader(garbage); err != nil {
		t.Fatalf("garbage of sufficient length should still parse: %v", err)
	}
}

func TestReadContainerHeader_truncated_stream(t *testing.T) {
	_, err := ReadContainerHeader(bytes.NewReader([]byte{0xAB, 0x4B}))
	if !errors.Is(err, ErrShortHeader) {
		t.Errorf("expected ErrShortHeader, got %v", err)
	}
}

func TestCompressionFormat_mapping(t *testing.T) {
	cases := []struct {
		name      string
		vkFormat  uint32
		scheme    uint32
		wantLabel string
		wantOK    bool
	}{
		{"basis_scheme_1_is_etc1s", 0, 1, "ETC1S", true},
		{"basis_scheme_0_is_uastc", 0, 0, "UASTC", true},
		{"basis_scheme_2_is_uastc", 0, 2, "UASTC", true},
		{"raw_format_has_no_basis_layer", 37, 1, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hdr := ContainerHeader{VkFormat: tc.vkFormat, SupercompressionScheme: tc.scheme}
			label, ok := hdr.CompressionFormat()
			if label != tc.wantLabel || ok != tc.wantOK {
				t.Errorf("got (%q, %v), want (%q, %v)", label, ok, tc.wantLabel, tc.wantOK)
			}
		})
	}
}

func TestIsContainerFile(t *testing.T) {
	if !IsContainerFile(buildHeader(0, 1, 1, 1, 0)) {
		t.Error("header with magic should be detected")
	}
	if IsContainerFile([]byte("not a texture")) {
		t.Error("arbitrary bytes should not be detected")
	}
	if IsContainerFile(nil) {
		t.Error("nil should not be detected")
	}
}

func TestParseLevelIndex(t *testing.T) {
	t.Run("reads_entries", func(t *testing.T) {
		data := make([]byte, levelIndexOffset+2*levelIndexEntrySize+64)
		binary.LittleEndian.PutUint64(data[levelIndexOffset:], uint64(levelIndexOffset+48))
		binary.LittleEndian.PutUint64(data[levelIndexOffset+8:], 16)
		binary.LittleEndian.PutUint64(data[levelIndexOffset+16:], 16)
		binary.LittleEndian.PutUint64(data[levelIndexOffset+24:], uint64(levelIndexOffset+48+16))
		binary.LittleEndian.PutUint64(data[levelIndexOffset+32:], 4)
		binary.LittleEndian.PutUint64(data[levelIndexOffset+40:], 4)

		entries, err := ParseLevelIndex(data, 2)
		if err != nil {
			t.Fatalf("ParseLevelIndex: %v", err)
		}
		if len(entries) != 2 || entries[0].ByteLength != 16 || entries[1].ByteLength != 4 {
			t.Errorf("unexpected entries: %+v", entries)
		}
	})

	t.Run("zero_level_count_means_one_level", func(t *testing.T) {
		data := make([]byte, levelIndexOffset+levelIndexEntrySize)
		entries, err := ParseLevelIndex(data, 0)
		if err != nil {
			t.Fatalf("ParseLevelIndex: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("expected 1 entry, got %d", len(entries))
		}
	})

	t.Run("truncated_index", func(t *testing.T) {
		data := make([]byte, levelIndexOffset+levelIndexEntrySize-1)
		if _, err := ParseLevelIndex(data, 1); !errors.Is(err, ErrBadLevelIndex) {
			t.Errorf("expected ErrBadLevelIndex, got %v", err)
		}
	})

	t.Run("entry_past_end_of_file", func(t *testing.T) {
		data := make([]byte, levelIndexOffset+levelIndexEntrySize)
		binary.LittleEndian.PutUint64(data[levelIndexOffset:], 1<<40)
		binary.LittleEndian.PutUint64(data[levelIndexOffset+8:], 16)
		if _, err := ParseLevelIndex(data, 1); !errors.Is(err, ErrBadLevelIndex) {
			t.Errorf("expected ErrBadLevelIndex, got %v", err)
		}
	})
}
