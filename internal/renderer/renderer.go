// Package renderer provides implementations of the preview.Renderer handle.
// None of them lock internally: the render loop's thread affinity is the only
// serialization, exactly as the coordinator's suspend/resume protocol assumes.
package renderer

import (
	"log/slog"

	"texture-preview/internal/preview"
)

// Noop is a renderer for headless runs and tests: it tracks what was loaded
// and logs, but touches no GPU.
type Noop struct {
	log    *slog.Logger
	loaded *preview.RenderableTexture
	mask   uint32
}

// NewNoop returns a Noop renderer logging to log.
func NewNoop(log *slog.Logger) *Noop {
	return &Noop{log: log}
}

// Load implements preview.Renderer.
func (n *Noop) Load(tex *preview.RenderableTexture) {
	n.loaded = tex
	n.log.Debug("noop renderer load",
		slog.Int("width", int(tex.Width)),
		slog.Int("height", int(tex.Height)),
		slog.Int("mips", len(tex.MipLevels)))
}

// Render implements preview.Renderer.
func (n *Noop) Render() {}

// SetChannelMask implements preview.Renderer.
func (n *Noop) SetChannelMask(mask uint32) {
	n.mask = mask
}
