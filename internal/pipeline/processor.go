package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/casegest/internal/extract"
	"github.com/dgallion1/casegest/internal/parser"
	"github.com/dgallion1/casegest/internal/store"
	"github.com/dgallion1/casegest/internal/timeline"
)

// TextExtractor turns an uploaded blob into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, b parser.Blob) (*parser.Result, error)
}

// EventExtractor turns document text into timeline events.
type EventExtractor interface {
	ExtractEvents(ctx context.Context, text, documentID, documentName string) (extract.Extraction, error)
}

// Committer receives the merged result of a batch.
type Committer interface {
	Commit(docs []store.Document, events []timeline.Event) error
}

// Observer is notified of per-item and per-batch outcomes.
type Observer interface {
	ItemProcessed(outcome string)
	BatchFinished(status string, d time.Duration)
}

// Processor runs the items of a batch through a bounded pool and merges the
// successful results into the store in item order.
type Processor struct {
	text     TextExtractor
	events   EventExtractor
	store    Committer
	workers  int
	log      *slog.Logger
	observer Observer
	now      func() time.Time
}

func NewProcessor(text TextExtractor, events EventExtractor, st Committer, workers int, log *slog.Logger) *Processor {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		text:    text,
		events:  events,
		store:   st,
		workers: workers,
		log:     log,
		now:     time.Now,
	}
}

// SetObserver attaches a metrics observer.
func (p *Processor) SetObserver(o Observer) {
	p.observer = o
}

// Process handles every item of the batch. An item failure never affects its
// siblings. Once all items are done their documents and events are committed
// with a single store call, so the timeline sees the batch atomically and in
// upload order regardless of which item finished first.
func (p *Processor) Process(ctx context.Context, b *Batch) error {
	start := time.Now()
	log := p.log.With("batch_id", b.ID, "items", len(b.Items))
	log.Info("batch started")

	b.SetStatus(StatusExtractingText, "processing items")

	var g errgroup.Group
	g.SetLimit(p.workers)
	for _, it := range b.Items {
		g.Go(func() error {
			p.processItem(ctx, log, it)
			return nil
		})
	}
	_ = g.Wait()

	b.SetStatus(StatusMerging, "merging")
	var (
		docs    []store.Document
		events  []timeline.Event
		okItems []*Item
	)
	for _, it := range b.Items {
		if !it.ok() {
			continue
		}
		it.mu.Lock()
		docs = append(docs, it.doc)
		events = append(events, it.events...)
		it.mu.Unlock()
		okItems = append(okItems, it)
	}

	var commitErr error
	if len(docs) > 0 {
		if err := p.store.Commit(docs, events); err != nil {
			commitErr = fmt.Errorf("commit batch %s: %w", b.ID, err)
			log.Error("commit failed", "error", err)
			for _, it := range okItems {
				it.fail(KindInternal, err.Error())
			}
			okItems = nil
		}
	}

	status := StatusCompleted
	switch {
	case len(okItems) == 0:
		status = StatusFailed
	case len(okItems) < len(b.Items):
		status = StatusPartial
	}
	b.SetStatus(status, "done")

	elapsed := time.Since(start)
	if p.observer != nil {
		p.observer.BatchFinished(string(status), elapsed)
	}
	log.Info("batch finished", "status", status, "succeeded", len(okItems), "events", len(events), "duration_ms", elapsed.Milliseconds())
	return commitErr
}

func (p *Processor) processItem(ctx context.Context, batchLog *slog.Logger, it *Item) {
	log := batchLog.With("item", it.Index, "filename", it.Filename)

	it.setStatus(StatusExtractingText)
	it.mu.Lock()
	blob := parser.Blob{Data: it.data, MimeType: it.MimeType, Filename: it.Filename}
	it.mu.Unlock()

	res, err := p.text.Extract(ctx, blob)
	if err != nil {
		p.reject(log, it, classifyTextError(err), err)
		return
	}

	doc := store.NewDocument(it.Filename, string(res.SourceType), res.Text, p.now())
	log = log.With("document_id", doc.ID)

	it.setStatus(StatusExtractingEvents)
	ex, err := p.events.ExtractEvents(ctx, res.Text, doc.ID, doc.Name)
	if err != nil {
		p.reject(log, it, classifyEventError(err), err)
		return
	}

	var warnings []string
	if len(ex.Malformed) > 0 {
		warnings = append(warnings, WarningMalformedOutput)
	}
	it.succeed(doc, ex.Events, warnings)
	if p.observer != nil {
		p.observer.ItemProcessed("ok")
	}
	log.Info("item processed", "events", len(ex.Events), "warnings", len(warnings))
}

func (p *Processor) reject(log *slog.Logger, it *Item, kind ErrorKind, err error) {
	log.Warn("item rejected", "kind", kind, "error", err)
	it.fail(kind, err.Error())
	if p.observer != nil {
		p.observer.ItemProcessed(string(kind))
	}
}

func classifyTextError(err error) ErrorKind {
	switch {
	case errors.Is(err, parser.ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindInternal
	default:
		return KindExtractionFailure
	}
}

func classifyEventError(err error) ErrorKind {
	switch {
	case errors.Is(err, extract.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindInternal
	default:
		return KindServiceUnavailable
	}
}
