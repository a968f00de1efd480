package preview

import (
	"context"
	"image"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "image/jpeg" // DecodeConfig registration for plain-image assets
	_ "image/png"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultScanWorkers bounds the concurrent header reads during a bulk scan.
const DefaultScanWorkers = 4

// DefaultScanTimeout bounds one file's header read so a corrupt or locked
// file cannot stall the batch.
const DefaultScanTimeout = 2 * time.Second

// Scanner performs the bulk, best-effort background metadata scan: it walks
// the configured roots for previewable texture files (containers and plain
// images) and fills the catalog with header-derived metadata. Per-asset
// failures are skipped, never fatal.
type Scanner struct {
	repo    Repository
	roots   []string
	workers int
	timeout time.Duration
	log     *slog.Logger
}

// NewScanner returns a Scanner over the given roots. workers <= 0 and
// timeout <= 0 fall back to the defaults.
func NewScanner(repo Repository, roots []string, workers int, timeout time.Duration, log *slog.Logger) *Scanner {
	if workers <= 0 {
		workers = DefaultScanWorkers
	}
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}
	return &Scanner{repo: repo, roots: roots, workers: workers, timeout: timeout, log: log}
}

// Scan walks every root and catalogs each texture file found. It returns the
// number of assets cataloged. Unreadable directories and unparseable files
// are logged at Debug and skipped; only ctx cancellation aborts.
func (s *Scanner) Scan(ctx context.Context) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	results := make(chan AssetInfo)
	done := make(chan int)
	go func() {
		n := 0
		for info := range results {
			s.repo.PutAsset(info)
			n++
		}
		done <- n
	}()

	for _, root := range s.roots {
		root := root
		walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				s.log.Debug("scan skip", slog.String("path", path), slog.String("error", err.Error()))
				return nil
			}
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if d.IsDir() {
				return nil
			}
			var scan func(context.Context, string, string) (AssetInfo, error)
			switch strings.ToLower(filepath.Ext(path)) {
			case ".ktx2":
				scan = s.scanContainer
			case ".png", ".jpg", ".jpeg":
				scan = s.scanImage
			default:
				return nil
			}
			g.Go(func() error {
				info, scanErr := scan(gctx, root, path)
				if scanErr != nil {
					// Best effort: a bad file degrades to "no metadata",
					// it never aborts the batch.
					s.log.Debug("scan skip", slog.String("path", path), slog.String("error", scanErr.Error()))
					return nil
				}
				select {
				case results <- info:
				case <-gctx.Done():
					return gctx.Err()
				}
				return nil
			})
			return nil
		})
		if walkErr != nil && !errors.Is(walkErr, context.Canceled) {
			s.log.Debug("scan walk aborted", slog.String("root", root), slog.String("error", walkErr.Error()))
		}
	}

	err := g.Wait()
	close(results)
	n := <-done
	s.log.Info("scan finished", slog.Int("assets", n), slog.Int("roots", len(s.roots)))
	return n, err
}

// scanContainer reads just the container header of one file, bounded by the
// per-file timeout.
func (s *Scanner) scanContainer(ctx context.Context, root, path string) (AssetInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := readPrefix(ctx, path, containerHeaderSize)
	if err != nil {
		return AssetInfo{}, err
	}
	if !IsContainerFile(data) {
		return AssetInfo{}, ErrNotContainer
	}
	hdr, err := ParseContainerHeader(data)
	if err != nil {
		return AssetInfo{}, err
	}

	label, _ := hdr.CompressionFormat()
	info := s.newAssetInfo(root, path)
	info.PixelWidth = hdr.PixelWidth
	info.PixelHeight = hdr.PixelHeight
	info.LevelCount = hdr.LevelCount
	info.CompressionFormat = label
	return info, nil
}

// scanImage catalogs a plain-image asset (PNG/JPEG). Only the image config is
// read, not the pixels; the mip chain is generated at decode time, so the
// catalog records a single source level.
func (s *Scanner) scanImage(ctx context.Context, root, path string) (AssetInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cfg, err := readImageConfig(ctx, path)
	if err != nil {
		return AssetInfo{}, err
	}

	info := s.newAssetInfo(root, path)
	info.PixelWidth = uint32(cfg.Width)
	info.PixelHeight = uint32(cfg.Height)
	info.LevelCount = 1
	return info, nil
}

// newAssetInfo fills the path-derived fields shared by both scan paths.
func (s *Scanner) newAssetInfo(root, path string) AssetInfo {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	return AssetInfo{
		ID:        AssetID(filepath.ToSlash(rel)),
		Path:      path,
		ScannedAt: time.Now().UTC(),
	}
}

// readPrefix reads the first n bytes of path, abandoning the wait (not the
// underlying read) when ctx expires. Plain files have no read deadlines, so
// the read runs in its own goroutine.
func readPrefix(ctx context.Context, path string, n int) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		f, err := os.Open(path)
		if err != nil {
			ch <- result{nil, err}
			return
		}
		defer f.Close()
		buf := make([]byte, n)
		if _, err := io.ReadFull(f, buf); err != nil {
			ch <- result{nil, errors.WithSecondaryError(ErrShortHeader, err)}
			return
		}
		ch <- result{buf, nil}
	}()

	select {
	case r := <-ch:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// readImageConfig decodes only the image header of path, abandoning the wait
// when ctx expires, same as readPrefix.
func readImageConfig(ctx context.Context, path string) (image.Config, error) {
	type result struct {
		cfg image.Config
		err error
	}
	ch := make(chan result, 1)
	go func() {
		f, err := os.Open(path)
		if err != nil {
			ch <- result{err: err}
			return
		}
		defer f.Close()
		cfg, _, err := image.DecodeConfig(f)
		ch <- result{cfg, errors.Wrap(err, "decode image config")}
	}()

	select {
	case r := <-ch:
		return r.cfg, r.err
	case <-ctx.Done():
		return image.Config{}, ctx.Err()
	}
}
