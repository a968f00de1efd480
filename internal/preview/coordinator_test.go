package preview

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type fakeRenderer struct {
	mu      sync.Mutex
	loads   []*RenderableTexture
	renders int
	masks   []uint32
}

func (f *fakeRenderer) Load(tex *RenderableTexture) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, tex)
}

func (f *fakeRenderer) Render() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renders++
}

func (f *fakeRenderer) SetChannelMask(mask uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.masks = append(f.masks, mask)
}

func (f *fakeRenderer) loadedLabels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	labels := make([]string, 0, len(f.loads))
	for _, tex := range f.loads {
		labels = append(labels, tex.SourceFormatLabel)
	}
	return labels
}

// fakeDecoder simulates per-asset decode latency and honors cancellation the
// way a real decode checkpoint would.
type fakeDecoder struct {
	delay   map[AssetID]time.Duration
	fail    map[AssetID]error
	started chan AssetID
}

func (d *fakeDecoder) Decode(ctx context.Context, info AssetInfo) (*RenderableTexture, error) {
	if d.started != nil {
		d.started <- info.ID
	}
	if delay := d.delay[info.ID]; delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := d.fail[info.ID]; err != nil {
		return nil, err
	}
	return &RenderableTexture{
		Width:             4,
		Height:            4,
		MipLevels:         []MipLevel{{Width: 4, Height: 4, RowPitch: 16, Pixels: make([]byte, 64)}},
		SourceFormatLabel: string(info.ID),
	}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCoordinator(t *testing.T, dec Decoder, assets ...AssetID) (*Coordinator, *fakeRenderer, *RenderLoop) {
	t.Helper()

	repo := NewInMemoryRepository()
	for _, id := range assets {
		repo.PutAsset(AssetInfo{ID: id, Path: string(id)})
	}

	rend := &fakeRenderer{}
	loop := NewRenderLoop(rend, 200, testLogger())
	coord := NewCoordinator(repo, dec, loop, rend, testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return coord, rend, loop
}

func TestCoordinator_Select_success(t *testing.T) {
	dec := &fakeDecoder{}
	coord, rend, loop := newTestCoordinator(t, dec, "stone.ktx2")

	if err := coord.Select(context.Background(), "stone.ktx2"); err != nil {
		t.Fatalf("Select: %v", err)
	}

	if got := rend.loadedLabels(); len(got) != 1 || got[0] != "stone.ktx2" {
		t.Errorf("expected one load of stone.ktx2, got %v", got)
	}
	if !loop.TickEnabled() {
		t.Error("render tick should be re-enabled after a successful load")
	}
}

func TestCoordinator_Select_unknown_asset(t *testing.T) {
	dec := &fakeDecoder{}
	coord, rend, _ := newTestCoordinator(t, dec)

	if err := coord.Select(context.Background(), "missing"); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("expected ErrAssetNotFound, got %v", err)
	}
	if len(rend.loadedLabels()) != 0 {
		t.Error("unknown asset must not touch the renderer")
	}
}

func TestCoordinator_Select_decode_failure_cleans_up(t *testing.T) {
	boom := errors.New("bad pixel data")
	dec := &fakeDecoder{fail: map[AssetID]error{"broken.ktx2": boom}}
	coord, rend, loop := newTestCoordinator(t, dec, "broken.ktx2", "stone.ktx2")

	err := coord.Select(context.Background(), "broken.ktx2")
	if !errors.Is(err, boom) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if len(rend.loadedLabels()) != 0 {
		t.Error("failed decode must not reach the renderer")
	}
	if !loop.TickEnabled() {
		t.Error("render tick must be re-enabled after a decode failure")
	}

	// The gate must have been released: a follow-up load succeeds.
	if err := coord.Select(context.Background(), "stone.ktx2"); err != nil {
		t.Fatalf("follow-up Select: %v", err)
	}
}

// TestCoordinator_freshest_wins is the core race: a slow decode for A is
// superseded by a fast decode for B issued while A is still in flight. B's
// data must be what ends up loaded; A must never call Load.
func TestCoordinator_freshest_wins(t *testing.T) {
	dec := &fakeDecoder{
		delay:   map[AssetID]time.Duration{"slow.ktx2": 500 * time.Millisecond, "fast.ktx2": 10 * time.Millisecond},
		started: make(chan AssetID, 2),
	}
	coord, rend, loop := newTestCoordinator(t, dec, "slow.ktx2", "fast.ktx2")

	slowErr := make(chan error, 1)
	go func() {
		slowErr <- coord.Select(context.Background(), "slow.ktx2")
	}()
	<-dec.started // slow decode is in flight

	time.Sleep(50 * time.Millisecond)
	if err := coord.Select(context.Background(), "fast.ktx2"); err != nil {
		t.Fatalf("fast Select: %v", err)
	}

	if err := <-slowErr; !errors.Is(err, ErrSuperseded) {
		t.Errorf("slow load should report ErrSuperseded, got %v", err)
	}

	if got := rend.loadedLabels(); len(got) != 1 || got[0] != "fast.ktx2" {
		t.Errorf("renderer must hold only the fast selection, got %v", got)
	}
	if !loop.TickEnabled() {
		t.Error("render tick must end enabled")
	}
}

// TestCoordinator_gate_busy_drops_load holds the upload gate the way an
// in-flight upload would and issues a selection: it must be dropped with
// ErrPreviewBusy, not queued behind the gate.
func TestCoordinator_gate_busy_drops_load(t *testing.T) {
	dec := &fakeDecoder{}
	coord, rend, loop := newTestCoordinator(t, dec, "first.ktx2", "second.ktx2")

	if !coord.gate.TryAcquire(1) {
		t.Fatal("gate should start free")
	}

	if err := coord.Select(context.Background(), "first.ktx2"); !errors.Is(err, ErrPreviewBusy) {
		t.Fatalf("expected ErrPreviewBusy, got %v", err)
	}
	if len(rend.loadedLabels()) != 0 {
		t.Error("a dropped load must not touch the renderer")
	}
	if !loop.TickEnabled() {
		t.Error("render tick must be re-enabled after a dropped load")
	}

	coord.gate.Release(1)

	// Cleanup totality: once the gate frees up, a new load works.
	if err := coord.Select(context.Background(), "second.ktx2"); err != nil {
		t.Fatalf("Select after gate release: %v", err)
	}
}

func TestCoordinator_generation_validity(t *testing.T) {
	coord, _, _ := newTestCoordinator(t, &fakeDecoder{}, "a.ktx2", "b.ktx2")

	first := coord.supersede(context.Background(), "a.ktx2")
	if !coord.isCurrent(first) {
		t.Fatal("a fresh generation must be current")
	}

	second := coord.supersede(context.Background(), "b.ktx2")
	if coord.isCurrent(first) {
		t.Error("a superseded generation must not stay current")
	}
	if first.ctx.Err() == nil {
		t.Error("superseding must cancel the previous generation")
	}
	if !coord.isCurrent(second) {
		t.Error("the superseding generation must be current")
	}

	second.cancel()
	if coord.isCurrent(second) {
		t.Error("a cancelled generation must not stay current")
	}
}

func TestCoordinator_SetChannelMask(t *testing.T) {
	dec := &fakeDecoder{}
	coord, rend, _ := newTestCoordinator(t, dec)

	if err := coord.SetChannelMask(context.Background(), 0x7); err != nil {
		t.Fatalf("SetChannelMask: %v", err)
	}

	rend.mu.Lock()
	defer rend.mu.Unlock()
	if len(rend.masks) != 1 || rend.masks[0] != 0x7 {
		t.Errorf("expected mask 0x7 recorded, got %v", rend.masks)
	}
}
