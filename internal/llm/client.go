// Package llm starts streaming analysis calls against a hosted model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justsurfingit/resale-lister/internal/analysis"
	"go.uber.org/zap"
)

// MaxPhotos is the most images sent with one analysis.
const MaxPhotos = 4

var ErrNoInput = errors.New("analysis needs a description or at least one photo")

type Photo struct {
	MimeType string
	Data     []byte
}

type Request struct {
	Description string
	Notes       string
	// Known is a short summary of the item's current record, if any.
	Known  string
	Photos []Photo
}

func (r Request) Validate() error {
	if r.Description == "" && r.Notes == "" && len(r.Photos) == 0 {
		return ErrNoInput
	}
	if len(r.Photos) > MaxPhotos {
		return fmt.Errorf("at most %d photos, got %d", MaxPhotos, len(r.Photos))
	}
	return nil
}

// Client opens a token stream for one analysis.
type Client interface {
	StreamAnalysis(ctx context.Context, req Request) (analysis.TokenStream, error)
	Provider() string
}

// retryable lets an error opt out of further attempts.
type retryable interface {
	Retryable() bool
}

// retry executes f with exponential backoff until it succeeds, returns a
// non-retryable error, or attempts run out.
func retry(ctx context.Context, attempts int, sleep time.Duration, log *zap.Logger, f func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = f(); err == nil {
			return nil
		}
		var r retryable
		if errors.As(err, &r) && !r.Retryable() {
			return err
		}
		if i == attempts-1 {
			break
		}

		log.Warn("llm request failed, retrying", zap.Error(err), zap.Duration("backoff", sleep), zap.Int("attempt", i+1))
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
		sleep *= 2
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}
