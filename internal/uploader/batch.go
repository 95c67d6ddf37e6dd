package uploader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"visionlab/pkg/logger"
	"visionlab/pkg/models"
	"visionlab/pkg/ratelimit"
)

// DefaultBatchSize is the number of files sent per request
const DefaultBatchSize = 50

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".webp": true,
}

// Options controls UploadAll
type Options struct {
	Workers   int
	BatchSize int
	// Limiter paces batch requests when set
	Limiter ratelimit.Limiter
	// OnBatch is called from the collecting goroutine after each batch
	OnBatch func(BatchResult)
	Logger  logger.Logger
}

// Summary is the outcome of UploadAll
type Summary struct {
	Files  []string
	Failed []BatchResult
}

// Batches splits paths into jobs of at most size files each
func Batches(split models.DatasetSplit, paths []string, size int) []BatchJob {
	if size < 1 {
		size = DefaultBatchSize
	}

	var jobs []BatchJob
	for start := 0; start < len(paths); start += size {
		end := start + size
		if end > len(paths) {
			end = len(paths)
		}
		jobs = append(jobs, BatchJob{Index: len(jobs), Split: split, Paths: paths[start:end]})
	}
	return jobs
}

// UploadAll uploads paths to split in batches using a worker pool. It
// returns an error when any batch failed; the summary still lists what
// was stored.
func UploadAll(ctx context.Context, client DatasetUploader, split models.DatasetSplit, paths []string, opts Options) (Summary, error) {
	var summary Summary
	jobs := Batches(split, paths, opts.BatchSize)
	if len(jobs) == 0 {
		return summary, errors.New("no files to upload")
	}

	pool := NewWorkerPool(ctx, opts.Workers, client, opts.Logger)
	if opts.Limiter != nil {
		pool.SetLimiter(opts.Limiter)
	}
	pool.Start()

	go func() {
		defer pool.Stop()
		for _, job := range jobs {
			if err := pool.Submit(job); err != nil {
				return
			}
		}
	}()

	for result := range pool.Results() {
		if result.Error != nil {
			summary.Failed = append(summary.Failed, result)
		} else {
			summary.Files = append(summary.Files, result.Files...)
		}
		if opts.OnBatch != nil {
			opts.OnBatch(result)
		}
	}
	sort.Strings(summary.Files)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	if n := len(summary.Failed); n > 0 {
		return summary, fmt.Errorf("%d of %d batches failed: %w", n, len(jobs), summary.Failed[0].Error)
	}
	return summary, nil
}

// ExpandPaths replaces every directory in paths by the image files below
// it. Plain files are kept as given.
func ExpandPaths(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}

		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() && IsImagePath(path) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", p, err)
		}
	}
	return out, nil
}

// IsImagePath reports whether the extension names an image format
func IsImagePath(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}
