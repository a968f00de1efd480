package preview

import "time"

// AssetID uniquely identifies a previewable asset. For file-backed assets it
// is the path relative to one of the scanned roots; for virtual packed
// textures it is the PackedID string.
type AssetID string

// TextureRef is a reference to a source texture (no ownership of pixel data).
type TextureRef string

// MipLevel is one resolution tier of a texture's mip chain. Immutable once
// constructed; owned by the RenderableTexture that contains it.
type MipLevel struct {
	Level    uint32
	Width    uint32
	Height   uint32
	Pixels   []byte
	RowPitch uint32
}

// RenderableTexture is the decoded, upload-ready form of an asset. It is
// produced once per load attempt and handed to the Renderer, which becomes
// the sole owner of the GPU-side copies; the coordinator keeps no reference
// after handoff.
type RenderableTexture struct {
	Width             uint32
	Height            uint32
	MipLevels         []MipLevel
	IsSRGB            bool
	HasAlpha          bool
	IsHDR             bool
	CompressionFormat string // "" when the payload carries no Basis layer
	SourceFormatLabel string
}

// AssetInfo is a catalog entry: header-derived metadata for one scanned asset.
type AssetInfo struct {
	ID                AssetID
	Path              string
	PixelWidth        uint32
	PixelHeight       uint32
	LevelCount        uint32
	CompressionFormat string // "ETC1S", "UASTC", or "" for raw payloads
	ScannedAt         time.Time
}

// ORMSources names the candidate source textures for a channel-packed
// texture. All fields are optional references; absence drives classification.
type ORMSources struct {
	AO       *TextureRef `json:"ao,omitempty"`
	Gloss    *TextureRef `json:"gloss,omitempty"`
	Metallic *TextureRef `json:"metallic,omitempty"`
	Specular *TextureRef `json:"specular,omitempty"`
	Height   *TextureRef `json:"height,omitempty"`
}

// PackingMode is the channel-packing classification result.
type PackingMode int

const (
	PackNone PackingMode = iota
	PackOG
	PackOGM
	PackOGMH
)

// String returns the mode-specific name suffix without the leading underscore.
func (m PackingMode) String() string {
	switch m {
	case PackOG:
		return "og"
	case PackOGM:
		return "ogm"
	case PackOGMH:
		return "ogmh"
	default:
		return "none"
	}
}

// PackedID identifies a virtual packed texture by its constituent sources and
// mode, not by a file path.
type PackedID string

// PackStatus is the lifecycle state of a VirtualPackedTexture.
type PackStatus string

const (
	StatusNotPacked   PackStatus = "not_packed"
	StatusReadyToPack PackStatus = "ready_to_pack"
	StatusPacked      PackStatus = "packed"
)

// VirtualPackedTexture is a derived texture that exists before any file does.
// It transitions to StatusPacked only after an external packing operation
// writes a concrete container file. Deleting it removes only the virtual
// entity, never the source textures.
type VirtualPackedTexture struct {
	ID          PackedID    `json:"id"`
	Name        string      `json:"name"`
	Mode        PackingMode `json:"-"`
	ModeLabel   string      `json:"mode"`
	Workflow    string      `json:"workflow"`
	Sources     ORMSources  `json:"sources"`
	MetalSource *TextureRef `json:"metal_source,omitempty"`
	Status      PackStatus  `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
}
