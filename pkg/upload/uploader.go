package upload

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"marinehub/pkg/domain"
)

// Options apply to every file of a batch.
type Options struct {
	Folder string
	Tags   []string
	// OnProgress receives the batch-wide percentage (0..100).
	OnProgress func(percent float64)
}

// Uploader sends batches of files to a Backend.
type Uploader struct {
	backend Backend
}

func NewUploader(backend Backend) *Uploader {
	return &Uploader{backend: backend}
}

// PrepareBatch validates every file without touching the network.
func PrepareBatch(files []File) ([]Prepared, error) {
	prepared := make([]Prepared, 0, len(files))
	for _, f := range files {
		p, err := Prepare(f)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, p)
	}
	return prepared, nil
}

// UploadBatch uploads all files in parallel. The batch succeeds or fails as
// a whole: the first failure cancels the remaining uploads. Cancelling ctx
// yields an error matching ErrCancelled.
func (u *Uploader) UploadBatch(ctx context.Context, files []File, opts Options) ([]domain.UploadedFile, error) {
	if u == nil || u.backend == nil {
		return nil, errors.New("upload backend not configured")
	}
	if len(files) == 0 {
		return nil, nil
	}
	prepared, err := PrepareBatch(files)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, context.Cause(ctx))
	}

	tracker := NewTracker(len(prepared), opts.OnProgress)
	results := make([]domain.UploadedFile, len(prepared))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range prepared {
		g.Go(func() error {
			tracker.Report(i, 0)
			if p.Content != nil {
				p.Content = newProgressReader(p.Content, p.Size, func(percent float64) {
					tracker.Report(i, percent)
				})
			}
			out, err := u.backend.Upload(gctx, p, opts)
			if err != nil {
				return err
			}
			tracker.Report(i, 100)
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, context.Cause(ctx))
		}
		return nil, err
	}
	return results, nil
}

// Remove deletes an uploaded asset when the backend supports it.
func (u *Uploader) Remove(ctx context.Context, file domain.UploadedFile) error {
	remover, ok := u.backend.(Remover)
	if !ok {
		return ErrNoBackendRemove
	}
	return remover.Remove(ctx, file)
}
