// Package covers downloads and caches cover images in the background. Cover
// work is strictly best-effort: no failure here surfaces to the write path
// that enqueued it.
package covers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/fTr0ut/shelvesai/internal/store"
)

// Job is one cover download request.
type Job struct {
	CollectableID int64
	URL           string
}

// Worker drains a bounded job queue, fetching covers over HTTP and recording
// the cached path on the collectable row.
type Worker struct {
	store    store.Store
	client   *resty.Client
	cacheDir string
	jobs     chan Job
	log      zerolog.Logger

	startOnce sync.Once
	wg        sync.WaitGroup
}

func NewWorker(st store.Store, cacheDir string, queueSize int, log zerolog.Logger) *Worker {
	if queueSize < 1 {
		queueSize = 64
	}
	return &Worker{
		store:    st,
		client:   resty.New().SetTimeout(20 * time.Second),
		cacheDir: cacheDir,
		jobs:     make(chan Job, queueSize),
		log:      log.With().Str("component", "covers").Logger(),
	}
}

// Enqueue offers a job without blocking; false means the queue is full and
// the caller should move on.
func (w *Worker) Enqueue(collectableID int64, url string) bool {
	select {
	case w.jobs <- Job{CollectableID: collectableID, URL: url}:
		return true
	default:
		return false
	}
}

// Start launches the drain loop. It returns immediately; the loop stops when
// ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-w.jobs:
					if err := w.process(ctx, job); err != nil {
						w.log.Warn().Err(err).Int64("collectableId", job.CollectableID).
							Str("url", job.URL).Msg("cover download failed")
					}
				}
			}
		}()
	})
}

// Wait blocks until the drain loop has exited.
func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) process(ctx context.Context, job Job) error {
	resp, err := w.client.R().SetContext(ctx).Get(job.URL)
	if err != nil {
		return fmt.Errorf("fetch cover: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("fetch cover: status %d", resp.StatusCode())
	}
	body := resp.Body()
	if len(body) == 0 {
		return fmt.Errorf("fetch cover: empty body")
	}

	sum := sha256.Sum256(body)
	name := hex.EncodeToString(sum[:]) + extensionFor(resp.Header().Get("Content-Type"), job.URL)
	path := filepath.Join(w.cacheDir, name)

	if err := os.MkdirAll(w.cacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	// Same checksum means same bytes, so an existing file is already correct.
	if _, err := os.Stat(path); err != nil {
		if err := os.WriteFile(path, body, 0o644); err != nil {
			return fmt.Errorf("write cover: %w", err)
		}
	}

	if err := w.store.Collectables().SetCoverPath(ctx, job.CollectableID, path); err != nil {
		return fmt.Errorf("record cover path: %w", err)
	}
	w.log.Debug().Int64("collectableId", job.CollectableID).Str("path", path).Msg("cover cached")
	return nil
}

func extensionFor(contentType, url string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		return ".jpg"
	}
	if ext := strings.ToLower(filepath.Ext(url)); ext == ".png" || ext == ".webp" || ext == ".jpg" || ext == ".jpeg" {
		return ext
	}
	return ".img"
}
