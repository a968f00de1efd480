package preview

import (
	"context"
	"log/slog"
	"sync"

	"texture-preview/internal/platform/metrics"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/semaphore"
)

// Decoder turns a cataloged asset into an upload-ready texture. Decode runs
// off the render loop and must honor ctx cancellation at its checkpoints.
type Decoder interface {
	Decode(ctx context.Context, info AssetInfo) (*RenderableTexture, error)
}

var (
	// ErrAssetNotFound is returned when a selection names an uncataloged asset.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrPreviewBusy is returned when another load holds the upload gate.
	// Not an error condition for the user: the load is dropped, not queued,
	// because the next selection would supersede a queued load anyway.
	ErrPreviewBusy = errors.New("another preview load is in flight")

	// ErrSuperseded is returned when a newer selection cancelled this load.
	// Expected control flow; never logged as an error.
	ErrSuperseded = errors.New("selection superseded by a newer one")
)

// generation is one selection's right to mutate the renderer. Exactly one
// generation is current at a time; superseding it cancels its context.
type generation struct {
	id     uint64
	asset  AssetID
	ctx    context.Context
	cancel context.CancelFunc
}

// Coordinator drives the per-selection load protocol: supersede, gate,
// suspend tick, decode, re-validate, upload+render, cleanup. Selections are
// cancel-and-replace, never queued; for any burst of selections only the last
// one's decoded result can reach the renderer.
type Coordinator struct {
	repo     Repository
	dec      Decoder
	loop     *RenderLoop
	renderer Renderer
	gate     *semaphore.Weighted
	log      *slog.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex // guards current and nextID, never held across decode or upload
	current *generation
	nextID  uint64
}

// NewCoordinator returns a Coordinator using the given collaborators.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewCoordinator(repo Repository, dec Decoder, loop *RenderLoop, r Renderer, log *slog.Logger, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		repo:     repo,
		dec:      dec,
		loop:     loop,
		renderer: r,
		gate:     semaphore.NewWeighted(1),
		log:      log,
		metrics:  m,
	}
}

// Select handles one selection event for asset id. It runs the decode phase
// on the calling goroutine and marshals the upload phase onto the render
// loop. Outcomes:
//
//   - nil: the asset's texture is loaded and rendered
//   - ErrAssetNotFound: unknown id, nothing touched
//   - ErrPreviewBusy: another load holds the gate; this one was dropped
//   - ErrSuperseded: a newer selection won; this result was discarded
//   - anything else: decode failure (the only outcome worth surfacing)
//
// Whatever the outcome, the render tick ends enabled, the gate ends released,
// and the generation slot is cleared only if it still belongs to this load.
func (c *Coordinator) Select(ctx context.Context, id AssetID) error {
	info, ok := c.repo.GetAsset(id)
	if !ok {
		return ErrAssetNotFound
	}

	gen := c.supersede(ctx, id)
	if c.metrics != nil {
		c.metrics.IncLoadsStarted()
	}

	defer func() {
		c.loop.ResumeTick()
		gen.cancel()
		c.clearGeneration(gen)
	}()

	c.loop.SuspendTick()

	tex, err := c.dec.Decode(gen.ctx, info)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			if c.metrics != nil {
				c.metrics.IncLoadsCancelled()
			}
			c.log.Debug("preview decode cancelled",
				slog.String("asset", string(id)),
				slog.Uint64("generation", gen.id))
			return ErrSuperseded
		}
		if c.metrics != nil {
			c.metrics.IncDecodeFailures()
		}
		c.log.Error("preview decode failed",
			slog.String("asset", string(id)),
			slog.String("error", err.Error()))
		return errors.Wrapf(err, "decode %s", id)
	}

	// The gate serializes upload phases only. Busy means another selection is
	// mid-upload right now; this load is dropped rather than queued since the
	// user's next selection would supersede a queued load anyway.
	if !c.gate.TryAcquire(1) {
		if c.metrics != nil {
			c.metrics.IncGateBusy()
		}
		c.log.Debug("preview load dropped, upload gate busy", slog.String("asset", string(id)))
		return ErrPreviewBusy
	}
	defer c.gate.Release(1)

	uploaded := false
	if doErr := c.loop.Do(gen.ctx, func() {
		// Re-validate on the render loop: a stale, slow decode must never
		// clobber a newer, faster one, even if a cancellation check was
		// missed during decode.
		if !c.isCurrent(gen) {
			return
		}
		c.renderer.Load(tex)
		c.renderer.Render()
		uploaded = true
	}); doErr != nil || !uploaded {
		if c.metrics != nil {
			c.metrics.IncLoadsCancelled()
		}
		c.log.Debug("preview result discarded, selection superseded",
			slog.String("asset", string(id)),
			slog.Uint64("generation", gen.id))
		return ErrSuperseded
	}

	if c.metrics != nil {
		c.metrics.IncLoadsCompleted()
	}
	c.log.Info("preview loaded",
		slog.String("asset", string(id)),
		slog.Int("mip_levels", len(tex.MipLevels)),
		slog.String("compression", tex.CompressionFormat))
	return nil
}

// SetChannelMask marshals a channel-mask change onto the render loop, since
// the renderer handle may only be touched there.
func (c *Coordinator) SetChannelMask(ctx context.Context, mask uint32) error {
	return c.loop.Do(ctx, func() {
		c.renderer.SetChannelMask(mask)
		c.renderer.Render()
	})
}

// supersede cancels whatever generation is current and installs a new one for
// asset id. Atomic under c.mu so back-to-back selections cannot interleave:
// every earlier generation is cancelled before the next becomes current.
func (c *Coordinator) supersede(ctx context.Context, id AssetID) *generation {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.current.cancel()
	}
	c.nextID++
	genCtx, cancel := context.WithCancel(ctx)
	gen := &generation{id: c.nextID, asset: id, ctx: genCtx, cancel: cancel}
	c.current = gen
	return gen
}

// clearGeneration nulls the slot only if it still holds gen: a late cleanup
// must never erase a newer generation's slot.
func (c *Coordinator) clearGeneration(gen *generation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == gen {
		c.current = nil
	}
}

// isCurrent reports whether gen still holds the right to mutate the renderer:
// it must still occupy the slot and must not have been cancelled. The slot
// identifies the selection, so a newer selection of any asset fails both a
// stale generation's slot check and its ctx.
func (c *Coordinator) isCurrent(gen *generation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == gen && gen.ctx.Err() == nil
}
