package pipeline

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"companion/internal/domain"
)

// BatchResult holds the images that were generated and the errors of those
// that were not, in request order.
type BatchResult struct {
	Images []domain.ImageRecord
	Errors []error
}

// GenerateBatch renders req.Count images from one extracted intent. Each
// image gets its own composition. Individual failures are collected; the
// call fails only when nothing was produced or the context ends.
func (s *Service) GenerateBatch(ctx context.Context, req GenerateRequest) (BatchResult, error) {
	req, err := req.validate(s.opts.BatchMaxCount)
	if err != nil {
		return BatchResult{}, err
	}
	ctx = withRequestID(ctx, req.RequestID)
	in, err := s.extract(ctx, req.Text, req.Character)
	if err != nil {
		return BatchResult{}, err
	}

	records := make([]*domain.ImageRecord, req.Count)
	errs := make([]error, req.Count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.BatchConcurrency)
	for i := 0; i < req.Count; i++ {
		g.Go(func() error {
			rec, err := s.generateOne(gctx, req, in)
			records[i], errs[i] = rec, err
			// Invalid intents fail every item alike; stop early.
			if errors.Is(err, domain.ErrInvalidIntent) {
				return err
			}
			return nil
		})
	}
	groupErr := g.Wait()

	var out BatchResult
	for i := range records {
		if records[i] != nil {
			out.Images = append(out.Images, *records[i])
		}
		if errs[i] != nil {
			out.Errors = append(out.Errors, errs[i])
		}
	}
	if len(out.Images) > 0 {
		return out, nil
	}
	if groupErr != nil {
		return out, groupErr
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, errors.Join(out.Errors...)
}
