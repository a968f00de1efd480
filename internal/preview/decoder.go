package preview

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/image/draw"
)

// ErrUnsupportedEncoding is returned for payloads this decoder cannot convert
// in process: Basis-Universal-compressed data (an external transcoder's job)
// and supercompressed raw payloads.
var ErrUnsupportedEncoding = errors.New("payload encoding not decodable in process")

// rawFormat describes a VkFormat the raw container decode path understands.
type rawFormat struct {
	label         string
	bytesPerPixel uint32
	srgb          bool
	hdr           bool
}

var rawFormats = map[uint32]rawFormat{
	vkFormatR8G8B8A8Unorm: {label: "R8G8B8A8_UNORM", bytesPerPixel: 4},
	vkFormatR8G8B8A8SRGB:  {label: "R8G8B8A8_SRGB", bytesPerPixel: 4, srgb: true},
	vkFormatRGBA16SFloat:  {label: "R16G16B16A16_SFLOAT", bytesPerPixel: 8, hdr: true},
}

// FileDecoder reads asset files from disk and converts them into
// RenderableTextures. Container files take the raw-payload path; plain images
// are decoded with the stdlib and get a generated mip chain.
type FileDecoder struct{}

// NewFileDecoder returns a FileDecoder.
func NewFileDecoder() *FileDecoder {
	return &FileDecoder{}
}

// Decode implements Decoder. It checks ctx between the header parse, each
// level read, and each generated mip, so a superseded load stops promptly
// without touching the renderer.
func (d *FileDecoder) Decode(ctx context.Context, info AssetInfo) (*RenderableTexture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(info.Path)
	if err != nil {
		return nil, errors.Wrap(err, "read asset")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if IsContainerFile(data) {
		return d.decodeContainer(ctx, data)
	}
	return d.decodeImage(ctx, data, filepath.Ext(info.Path))
}

// decodeContainer handles the raw-payload container path. Basis payloads and
// supercompressed levels are refused with ErrUnsupportedEncoding.
func (d *FileDecoder) decodeContainer(ctx context.Context, data []byte) (*RenderableTexture, error) {
	hdr, err := ParseContainerHeader(data)
	if err != nil {
		return nil, err
	}

	if label, ok := hdr.CompressionFormat(); ok {
		return nil, errors.Wrapf(ErrUnsupportedEncoding, "%s payload needs a transcoder", label)
	}
	if hdr.SupercompressionScheme != 0 {
		return nil, errors.Wrapf(ErrUnsupportedEncoding, "supercompression scheme %d", hdr.SupercompressionScheme)
	}

	format, ok := rawFormats[hdr.VkFormat]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedEncoding, "vkFormat %d", hdr.VkFormat)
	}

	index, err := ParseLevelIndex(data, hdr.LevelCount)
	if err != nil {
		return nil, err
	}

	tex := &RenderableTexture{
		Width:             hdr.PixelWidth,
		Height:            hdr.PixelHeight,
		IsSRGB:            format.srgb,
		IsHDR:             format.hdr,
		SourceFormatLabel: format.label,
	}

	for level, entry := range index {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w := mipExtent(hdr.PixelWidth, level)
		h := mipExtent(hdr.PixelHeight, level)
		pixels := data[entry.ByteOffset : entry.ByteOffset+entry.ByteLength]
		if uint64(w)*uint64(h)*uint64(format.bytesPerPixel) > uint64(len(pixels)) {
			return nil, errors.Wrapf(ErrBadLevelIndex, "level %d payload shorter than %dx%d", level, w, h)
		}
		tex.MipLevels = append(tex.MipLevels, MipLevel{
			Level:    uint32(level),
			Width:    w,
			Height:   h,
			Pixels:   pixels,
			RowPitch: w * format.bytesPerPixel,
		})
	}

	if format.bytesPerPixel == 4 && len(tex.MipLevels) > 0 {
		tex.HasAlpha = hasTranslucentPixels(tex.MipLevels[0].Pixels)
	} else {
		tex.HasAlpha = format.hdr
	}
	return tex, nil
}

// decodeImage handles plain image files: decode, convert to RGBA, generate a
// mip chain by successive halving.
func (d *FileDecoder) decodeImage(ctx context.Context, data []byte, ext string) (*RenderableTexture, error) {
	var (
		img   image.Image
		label string
		err   error
	)
	switch strings.ToLower(ext) {
	case ".png":
		img, err = png.Decode(bytes.NewReader(data))
		label = "PNG"
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(bytes.NewReader(data))
		label = "JPEG"
	default:
		img, label, err = image.Decode(bytes.NewReader(data))
		label = strings.ToUpper(label)
	}
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := toRGBA(img)
	w := uint32(base.Bounds().Dx())
	h := uint32(base.Bounds().Dy())

	tex := &RenderableTexture{
		Width:             w,
		Height:            h,
		IsSRGB:            true,
		HasAlpha:          hasTranslucentPixels(base.Pix),
		SourceFormatLabel: label,
	}

	level := uint32(0)
	cur := base
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tex.MipLevels = append(tex.MipLevels, MipLevel{
			Level:    level,
			Width:    uint32(cur.Bounds().Dx()),
			Height:   uint32(cur.Bounds().Dy()),
			Pixels:   cur.Pix,
			RowPitch: uint32(cur.Stride),
		})
		if cur.Bounds().Dx() <= 1 && cur.Bounds().Dy() <= 1 {
			break
		}
		cur = halve(cur)
		level++
	}
	return tex, nil
}

// mipExtent returns max(1, extent>>level).
func mipExtent(extent uint32, level int) uint32 {
	e := extent >> uint(level)
	if e == 0 {
		return 1
	}
	return e
}

// toRGBA converts any decoded image to a tightly usable *image.RGBA.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Copy(rgba, image.Point{}, img, b, draw.Src, nil)
	return rgba
}

// halve downsamples src to half resolution (min 1) with bilinear filtering.
func halve(src *image.RGBA) *image.RGBA {
	w := src.Bounds().Dx() / 2
	if w < 1 {
		w = 1
	}
	h := src.Bounds().Dy() / 2
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// hasTranslucentPixels reports whether any RGBA8 pixel has alpha below 0xFF.
func hasTranslucentPixels(pix []byte) bool {
	for i := 3; i < len(pix); i += 4 {
		if pix[i] != 0xFF {
			return true
		}
	}
	return false
}
