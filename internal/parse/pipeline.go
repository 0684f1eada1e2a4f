// Package parse drives the byte reader and page decoder across a whole
// database file in bounded batches, publishing progress and partial results
// over an event stream and supporting cooperative cancellation.
package parse

import (
	"context"
	"errors"
	"time"

	"sqlite-viewer/internal/cache"
	"sqlite-viewer/internal/logging"
	"sqlite-viewer/internal/metrics"
	"sqlite-viewer/internal/reader"
	"sqlite-viewer/internal/sqlite"
)

const (
	// DefaultBatchSize is the number of pages decoded per batch. Control
	// returns to the scheduler between batches, which is what keeps a
	// consuming UI thread responsive during a full parse.
	DefaultBatchSize = 32

	// eventBuffer sizes the event channel; a slow consumer applies
	// backpressure once the buffer fills.
	eventBuffer = 64
)

// Pipeline decodes every page of one file generation. Runs are serialized by
// the owning session; a Pipeline itself holds no mutable state across runs.
type Pipeline struct {
	reader    *reader.Reader
	header    *sqlite.Header
	cache     *cache.Cache
	batchSize uint32
}

// New creates a pipeline over an open reader and validated header. A
// non-positive batchSize uses DefaultBatchSize.
func New(r *reader.Reader, h *sqlite.Header, c *cache.Cache, batchSize int) *Pipeline {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Pipeline{reader: r, header: h, cache: c, batchSize: uint32(batchSize)}
}

// Run starts a full parse and returns its event stream. The stream ends with
// either EventDone or EventFailed and is then closed. Cancellation via ctx is
// cooperative: it is honored at batch boundaries, and pages from completed
// batches remain cached and valid.
func (p *Pipeline) Run(ctx context.Context) <-chan Event {
	events := make(chan Event, eventBuffer)
	go p.run(ctx, events)
	return events
}

func (p *Pipeline) run(ctx context.Context, events chan<- Event) {
	defer close(events)

	start := time.Now()
	metrics.ParseIsRunning.Set(1)
	defer metrics.ParseIsRunning.Set(0)

	total := p.header.TotalPages(p.reader.Size())
	hints := p.freelistHints(total)

	for batchStart := uint32(1); batchStart <= total; batchStart += p.batchSize {
		select {
		case <-ctx.Done():
			logging.Info("parse cancelled after %d of %d pages", batchStart-1, total)
			metrics.ParseRunsTotal.WithLabelValues("cancelled").Inc()
			events <- Event{Kind: EventFailed, Err: ErrCancelled}
			return
		default:
		}

		batchEnd := batchStart + p.batchSize - 1
		if batchEnd > total {
			batchEnd = total
		}

		for n := batchStart; n <= batchEnd; n++ {
			page, warn, err := p.decodeOne(n, hints[n])
			if err != nil {
				metrics.ParseRunsTotal.WithLabelValues("failed").Inc()
				events <- Event{Kind: EventFailed, Err: err}
				return
			}
			if warn != "" {
				metrics.ParseWarningsTotal.Inc()
				events <- Event{Kind: EventWarning, PageNumber: n, Text: warn}
			}
			p.cache.Put(n, page)
			events <- Event{Kind: EventPageReady, Page: page}
		}

		metrics.ParseBatchesTotal.Inc()
		events <- Event{Kind: EventProgress, Progress: Progress{
			Done:        batchEnd,
			Total:       total,
			Elapsed:     time.Since(start),
			Cancellable: true,
		}}
	}

	metrics.ParseRunsTotal.WithLabelValues("done").Inc()
	metrics.ParseRunDuration.Observe(time.Since(start).Seconds())
	logging.Info("parsed %d pages in %v", total, time.Since(start))
	events <- Event{Kind: EventDone}
}

// decodeOne reads and decodes a single page. Localized problems (a corrupt
// page, an unreadable region) come back as a warning plus a zeroed Unknown
// fallback page so the run continues; only a vanished file is fatal.
func (p *Pipeline) decodeOne(n uint32, hint sqlite.DecodeHint) (*sqlite.Page, string, error) {
	raw, err := p.reader.ReadAt(p.header.PageOffset(n), int64(p.header.PageSize))
	if err != nil {
		if errors.Is(err, reader.ErrFileGone) {
			return nil, "", err
		}
		metrics.PagesDecodedTotal.WithLabelValues(sqlite.PageTypeUnknown.ShortName(), "corrupt").Inc()
		return p.fallbackPage(n), err.Error(), nil
	}

	decodeStart := time.Now()
	page, err := sqlite.DecodePage(n, raw, p.header, hint)
	metrics.PageDecodeDuration.Observe(time.Since(decodeStart).Seconds())
	if err != nil {
		metrics.PagesDecodedTotal.WithLabelValues(sqlite.PageTypeUnknown.ShortName(), "corrupt").Inc()
		return p.fallbackPage(n), err.Error(), nil
	}

	status := "ok"
	if len(page.Warnings) > 0 {
		status = "warning"
	}
	metrics.PagesDecodedTotal.WithLabelValues(page.Type.ShortName(), status).Inc()
	return page, "", nil
}

// fallbackPage is the zeroed Unknown summary cached in place of a page that
// could not be decoded, so one corrupt page never blocks the rest.
func (p *Pipeline) fallbackPage(n uint32) *sqlite.Page {
	return &sqlite.Page{
		Number:       n,
		Offset:       p.header.PageOffset(n),
		Size:         p.header.PageSize,
		Type:         sqlite.PageTypeUnknown,
		Inconsistent: true,
	}
}

// freelistHints walks the freelist trunk chain once, classifying trunk and
// leaf pages that cannot be recognized from their own images. The walk is
// cycle-guarded and bounded by the header's declared freelist size.
func (p *Pipeline) freelistHints(total uint32) map[uint32]sqlite.DecodeHint {
	hints := make(map[uint32]sqlite.DecodeHint)
	if p.header.FirstFreelistPage == 0 {
		return hints
	}

	limit := p.header.FreelistPages + 1
	trunk := p.header.FirstFreelistPage
	for trunk != 0 && trunk <= total && uint32(len(hints)) < limit {
		if _, seen := hints[trunk]; seen {
			logging.Warn("freelist trunk chain loops at page %d", trunk)
			break
		}
		hints[trunk] = sqlite.DecodeHintFreelistTrunk

		raw, err := p.reader.ReadAt(p.header.PageOffset(trunk), int64(p.header.PageSize))
		if err != nil {
			logging.Warn("freelist walk stopped at page %d: %v", trunk, err)
			break
		}
		page, err := sqlite.DecodePage(trunk, raw, p.header, sqlite.DecodeHintFreelistTrunk)
		if err != nil {
			logging.Warn("freelist walk stopped at page %d: %v", trunk, err)
			break
		}

		for _, leaf := range page.FreelistLeaves {
			if leaf >= 1 && leaf <= total && uint32(len(hints)) < limit {
				if _, seen := hints[leaf]; !seen {
					hints[leaf] = sqlite.DecodeHintFreelistLeaf
				}
			}
		}
		trunk = page.FreelistNext
	}

	return hints
}
