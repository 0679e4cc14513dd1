package mirror

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"dbxdl/internal/models"
	"dbxdl/internal/remote"
	"dbxdl/pkg/utils"
)

// MaxWorkers caps the number of concurrent workers and therefore the number
// of listing calls in flight.
const MaxWorkers = 8

type Options struct {
	// Workers lowers the worker cap. Values outside 1..MaxWorkers mean
	// MaxWorkers.
	Workers int
	// AllowList restricts the walk to top-level folders with these names.
	// Files at the top level are always downloaded.
	AllowList []string
	Logger    *slog.Logger
}

// Pool mirrors a remote subtree using a fixed set of workers that share a
// folder queue.
type Pool struct {
	client remote.Client
	root   string
	opts   Options
	logger *slog.Logger
}

func NewPool(client remote.Client, root string, opts Options) *Pool {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{client: client, root: root, opts: opts, logger: logger}
}

// tally is the per-worker record of a run, merged after all workers exit.
type tally struct {
	folders int
	written int
	skipped int
	bytes   int64
	failed  []models.FailedFile
}

func (t *tally) add(r models.DownloadResult) {
	switch {
	case r.Status == models.StatusWritten:
		t.written++
		t.bytes += r.Bytes
	case r.Status == models.StatusSkippedExisting:
		t.skipped++
	case r.Status.Failed():
		var msg string
		if r.Err != nil {
			msg = r.Err.Error()
		}
		t.failed = append(t.failed, models.FailedFile{RemotePath: r.RemotePath, Status: r.Status, Error: msg})
	}
}

func (t *tally) merge(o tally) {
	t.folders += o.folders
	t.written += o.written
	t.skipped += o.skipped
	t.bytes += o.bytes
	t.failed = append(t.failed, o.failed...)
}

// Run lists path, downloads its files and walks every folder below it.
//
// The first listing failure or unexpected entry kind cancels the remaining
// work and is returned. Per-file failures are recorded in the summary and do
// not stop the run.
func (p *Pool) Run(ctx context.Context, path string) (*models.DownloadSummary, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)
	mat := NewMaterializer(p.client, p.root, logger)

	entries, err := ListAll(ctx, p.client, path)
	if err != nil {
		return nil, err
	}
	files, folders, err := models.Classify(entries)
	if err != nil {
		return nil, err
	}

	total := tally{folders: 1}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		total.add(mat.Download(ctx, f))
	}

	queue := newWorkQueue()
	for _, f := range folders {
		if !p.allowed(f.Name) {
			logger.Debug("skipping folder not in allow-list", "path", f.Path)
			continue
		}
		queue.Push(f.Path)
	}

	workers := poolSize(len(entries), p.opts.Workers)
	logger.Info("starting download", "path", path, "destination", p.root, "workers", workers, "queued", queue.Pending())

	tallies := make([]tally, workers)
	if queue.Pending() > 0 {
		g, gctx := errgroup.WithContext(ctx)
		stop := context.AfterFunc(gctx, queue.Abort)
		defer stop()

		for i := range workers {
			g.Go(func() error {
				return p.work(gctx, queue, mat, &tallies[i], logger.With("worker", i))
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, t := range tallies {
		total.merge(t)
	}

	summary := &models.DownloadSummary{
		RunID:            runID,
		SourcePath:       path,
		Destination:      p.root,
		Workers:          workers,
		FoldersListed:    total.folders,
		FilesWritten:     total.written,
		FilesSkipped:     total.skipped,
		FilesFailed:      len(total.failed),
		Failed:           total.failed,
		TotalSizeBytes:   total.bytes,
		TotalSizeHuman:   utils.FormatBytes(total.bytes),
		OperationTime:    utils.FormatTime(start),
		DownloadDuration: time.Since(start).Round(time.Millisecond).String(),
	}
	logger.Info("download finished",
		"folders", summary.FoldersListed,
		"written", summary.FilesWritten,
		"skipped", summary.FilesSkipped,
		"failed", summary.FilesFailed,
		"bytes", summary.TotalSizeBytes,
		"duration", summary.DownloadDuration)
	return summary, nil
}

func (p *Pool) work(ctx context.Context, queue *workQueue, mat *Materializer, t *tally, logger *slog.Logger) error {
	for {
		path, ok := queue.Pop()
		if !ok {
			return nil
		}
		if err := p.expand(ctx, queue, mat, t, logger, path); err != nil {
			queue.Abort()
			return err
		}
		queue.Done()
	}
}

// expand lists one folder, queues its subfolders and downloads its files.
// Subfolders are queued first so idle workers can start on them while this
// worker is busy with downloads.
func (p *Pool) expand(ctx context.Context, queue *workQueue, mat *Materializer, t *tally, logger *slog.Logger, path string) error {
	logger.Debug("listing folder", "path", path)
	entries, err := ListAll(ctx, p.client, path)
	if err != nil {
		return err
	}
	files, folders, err := models.Classify(entries)
	if err != nil {
		return err
	}
	t.folders++

	for _, f := range folders {
		queue.Push(f.Path)
	}
	for _, f := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.add(mat.Download(ctx, f))
	}
	return nil
}

func (p *Pool) allowed(name string) bool {
	return len(p.opts.AllowList) == 0 || slices.Contains(p.opts.AllowList, name)
}

// poolSize is min(n, limit) with limit clamped to 1..MaxWorkers, and at
// least one worker.
func poolSize(n, limit int) int {
	if limit <= 0 || limit > MaxWorkers {
		limit = MaxWorkers
	}
	return max(1, min(n, limit))
}
