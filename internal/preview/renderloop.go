package preview

import (
	"context"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"
)

// Renderer is the single shared GPU handle this service draws with. It has no
// internal locking: all three methods must be called from the render loop's
// goroutine only. Load replaces whatever was previously loaded; Render
// redraws using whatever is currently loaded.
type Renderer interface {
	Load(tex *RenderableTexture)
	Render()
	SetChannelMask(mask uint32)
}

// DefaultTickRate is the render tick frequency in Hz when none is configured.
const DefaultTickRate = 60

// RenderLoop is the exclusive rendering thread: a single OS-thread-locked
// goroutine that owns the Renderer and runs both the periodic render tick and
// any work marshalled onto it via Do. The tick-enabled flag is the
// coordinator's suspend/resume protocol — disabling the tick, rather than
// locking around the renderer, is what keeps a tick from interleaving with a
// partially-constructed upload.
type RenderLoop struct {
	renderer    Renderer
	jobs        chan renderJob
	tickEnabled atomic.Bool
	interval    time.Duration
	log         *slog.Logger
}

type renderJob struct {
	fn   func()
	done chan struct{}
}

// NewRenderLoop returns a loop ticking at tickRate Hz. The tick starts
// enabled. Run must be called before Do is useful.
func NewRenderLoop(r Renderer, tickRate int, log *slog.Logger) *RenderLoop {
	if tickRate <= 0 {
		tickRate = DefaultTickRate
	}
	l := &RenderLoop{
		renderer: r,
		jobs:     make(chan renderJob),
		interval: time.Second / time.Duration(tickRate),
		log:      log,
	}
	l.tickEnabled.Store(true)
	return l
}

// Run owns the renderer until ctx is done. It locks the goroutine to its OS
// thread: GPU backends require every mutating call on one thread.
func (l *RenderLoop) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.log.Info("render loop started", slog.Duration("tick_interval", l.interval))
	for {
		select {
		case <-ctx.Done():
			l.log.Info("render loop stopped")
			return
		case job := <-l.jobs:
			job.fn()
			close(job.done)
		case <-ticker.C:
			if l.tickEnabled.Load() {
				l.renderer.Render()
			}
		}
	}
}

// Do runs fn on the render loop's goroutine and waits for it to finish.
// It returns ctx.Err if the caller's context ends before fn is scheduled.
// Once fn starts it always runs to completion.
func (l *RenderLoop) Do(ctx context.Context, fn func()) error {
	job := renderJob{fn: fn, done: make(chan struct{})}
	select {
	case l.jobs <- job:
	case <-ctx.Done():
		return ctx.Err()
	}
	<-job.done
	return nil
}

// SuspendTick stops the periodic tick from calling Render. It must be called
// before any renderer mutation and balanced by ResumeTick on every outcome.
func (l *RenderLoop) SuspendTick() {
	l.tickEnabled.Store(false)
}

// ResumeTick re-enables the periodic tick.
func (l *RenderLoop) ResumeTick() {
	l.tickEnabled.Store(true)
}

// TickEnabled reports whether the periodic tick is currently enabled.
func (l *RenderLoop) TickEnabled() bool {
	return l.tickEnabled.Load()
}
