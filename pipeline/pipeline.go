// Package pipeline fans out per-page fetch and model calls over the images
// resolved from one manifest. The core stays synchronous; concurrency, retry,
// and skip-and-continue policy live here at the orchestration layer.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/wjbmattingly/iiif-htr/invoke"
	"github.com/wjbmattingly/iiif-htr/manifest"
)

// PageResult is the outcome of processing one page. Err is set when the page
// could not be fetched or the model call itself failed; degraded model output
// is not an error and shows up as a non-valid Outcome.
type PageResult struct {
	Page    manifest.PageImage
	Outcome *invoke.Outcome
	Err     error
}

// Processor runs one invocation per resolved page.
type Processor struct {
	Resolver *manifest.Resolver // defaults to manifest.NewResolver()
	Invoker  *invoke.Invoker

	Workers  int           // concurrent pages (default: NumCPU)
	Attempts uint          // per-page attempts including the first (default: 3)
	Delay    time.Duration // base backoff between attempts (default: 1s)

	Logger *slog.Logger
}

// Run resolves the manifest's pages and processes each one independently.
// Results come back in page order; a failed page records its error and does
// not stop the rest of the batch.
func (p *Processor) Run(ctx context.Context, m *manifest.Manifest, base invoke.Request) []PageResult {
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}

	resolver := p.Resolver
	if resolver == nil {
		resolver = manifest.NewResolver()
	}

	pages := resolver.Images(m)
	log.Info("processing manifest", "canvases", len(m.Items), "pages", len(pages))

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]PageResult, len(pages))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for idx, page := range pages {
		wg.Add(1)
		sem <- struct{}{} // acquire
		go func(idx int, page manifest.PageImage) {
			defer wg.Done()
			defer func() { <-sem }() // release

			outcome, err := p.processPage(ctx, page, base)
			results[idx] = PageResult{Page: page, Outcome: outcome, Err: err}

			switch {
			case err != nil:
				log.Warn("page failed", "index", idx, "label", page.Label, "error", err)
			case !outcome.Valid:
				log.Info("page degraded", "index", idx, "label", page.Label, "request_id", outcome.RequestID)
			default:
				log.Debug("page processed", "index", idx, "label", page.Label, "request_id", outcome.RequestID)
			}
		}(idx, page)
	}

	wg.Wait()
	return results
}

// processPage issues the invocation for one page, retrying transient fetch
// and transport failures. Configuration errors are never retried.
func (p *Processor) processPage(ctx context.Context, page manifest.PageImage, base invoke.Request) (*invoke.Outcome, error) {
	req := base
	req.ImageURL = page.ImageURL
	req.ImagePath = ""

	attempts := p.Attempts
	if attempts == 0 {
		attempts = 3
	}
	delay := p.Delay
	if delay == 0 {
		delay = time.Second
	}

	var outcome *invoke.Outcome
	err := retry.Do(
		func() error {
			out, err := p.Invoker.Do(ctx, req)
			if err != nil {
				return err
			}
			outcome = out
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, invoke.ErrMissingImage) && !errors.Is(err, invoke.ErrNoClient)
		}),
	)
	return outcome, err
}
