package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"texture-preview/internal/platform/config"
	"texture-preview/internal/platform/logger"
	"texture-preview/internal/platform/metrics"
	"texture-preview/internal/preview"
	"texture-preview/internal/renderer"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	assetDirs := config.GetEnvList("ASSET_DIRS", []string{"."})
	scanWorkers := config.GetEnvInt("SCAN_WORKERS", preview.DefaultScanWorkers)
	scanTimeout := config.GetEnvDuration("SCAN_TIMEOUT", preview.DefaultScanTimeout)
	tickRate := config.GetEnvInt("TICK_RATE_HZ", preview.DefaultTickRate)
	rendererKind := config.GetEnv("RENDERER", "wgpu")
	forceFallback := config.GetEnvBool("FORCE_FALLBACK_ADAPTER", false)

	log := logger.New(logLevel, logFormat)

	// The wgpu device must be created on the goroutine that will own it;
	// main stays that goroutine and runs the render loop below.
	var rend preview.Renderer
	if rendererKind == "wgpu" {
		wr, err := renderer.NewWGPU(1024, 1024, forceFallback, log)
		if err != nil {
			log.Error("wgpu init failed, falling back to noop renderer", "error", err)
			rend = renderer.NewNoop(log)
		} else {
			defer wr.Release()
			rend = wr
		}
	} else {
		rend = renderer.NewNoop(log)
	}

	repo := preview.NewInMemoryRepository()
	met := metrics.New()
	loop := preview.NewRenderLoop(rend, tickRate, log)
	coord := preview.NewCoordinator(repo, preview.NewFileDecoder(), loop, rend, log, met)
	scanner := preview.NewScanner(repo, assetDirs, scanWorkers, scanTimeout, log)
	h := preview.NewHandler(coord, repo, scanner, log, met)

	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()

	go func() {
		if n, err := scanner.Scan(loopCtx); err != nil {
			log.Error("initial scan aborted", "error", err, "assets", n)
		}
	}()

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		met.Handler(func() {
			met.SetAssetsScanned(repo.AssetCount())
			met.SetPackedTextures(repo.PackedCount())
		}).ServeHTTP(w, req)
	})
	r.Route("/assets", func(r chi.Router) {
		r.Get("/", h.ListAssets)
		r.Post("/scan", h.Rescan)
		r.Route("/{asset_id}", func(r chi.Router) {
			r.Get("/", h.GetAsset)
			r.Post("/select", h.SelectAsset)
		})
	})
	r.Post("/materials/{material}/pack", h.PackMaterial)
	r.Route("/packed", func(r chi.Router) {
		r.Get("/", h.ListPacked)
		r.Post("/{packed_id}/complete", h.CompletePacked)
		r.Delete("/{packed_id}", h.DeletePacked)
	})
	r.Post("/renderer/channel-mask", h.SetChannelMask)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("previewd starting",
		"port", port,
		"asset_dirs", assetDirs,
		"renderer", rendererKind,
		"tick_rate_hz", tickRate,
	)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		log.Info("shutdown signal received, draining connections")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("shutdown error", "error", err)
		}
		stopLoop()
	}()

	// Main is the exclusive rendering thread.
	loop.Run(loopCtx)
	<-shutdownDone

	log.Info("previewd stopped")
}
