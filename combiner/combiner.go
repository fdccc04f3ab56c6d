// Package combiner assembles one document from an ordered batch of sources.
//
// Each source is resolved by its own Pipeline; pipelines run concurrently and
// share a cache scoped to the batch, so a document referenced by several
// sources is loaded once. Output pages follow submission order regardless of
// the order in which sources resolve. The first failing source aborts the
// batch, and exactly one of the success or failure callbacks runs.
package combiner

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wudi/pdfcombine/cache"
	"github.com/wudi/pdfcombine/document"
	"github.com/wudi/pdfcombine/errkind"
	"github.com/wudi/pdfcombine/loader"
	"github.com/wudi/pdfcombine/observability"
	"github.com/wudi/pdfcombine/source"
)

// Combiner runs combine batches. It is safe for concurrent use; batches share
// nothing but the configured collaborators.
type Combiner struct {
	lib         document.Library
	loader      *loader.Loader
	logger      observability.Logger
	tracer      observability.Tracer
	observer    Observer
	concurrency int
}

// Option configures a Combiner.
type Option func(*Combiner)

func WithLogger(l observability.Logger) Option { return func(c *Combiner) { c.logger = l } }
func WithTracer(t observability.Tracer) Option { return func(c *Combiner) { c.tracer = t } }
func WithObserver(o Observer) Option           { return func(c *Combiner) { c.observer = o } }

// WithMaxConcurrency bounds how many pipelines of a batch run at once.
// n <= 0 means one goroutine per source.
func WithMaxConcurrency(n int) Option { return func(c *Combiner) { c.concurrency = n } }

// New returns a Combiner. A nil ld gets a default loader over lib.
func New(lib document.Library, ld *loader.Loader, opts ...Option) *Combiner {
	c := &Combiner{
		lib:    lib,
		loader: ld,
		logger: observability.NopLogger{},
		tracer: observability.NopTracer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.loader == nil {
		c.loader = loader.New(lib, loader.WithLogger(c.logger), loader.WithTracer(c.tracer))
	}
	return c
}

// Combine resolves sources and calls onSuccess with the combined document or
// onFailure with the first error, exactly once. An empty batch fails with
// errkind.NoSources before Combine returns; otherwise Combine returns at once
// and the callback runs on another goroutine.
func (c *Combiner) Combine(ctx context.Context, sources []source.Descriptor, onSuccess func(document.Document), onFailure func(error)) {
	if onSuccess == nil {
		onSuccess = func(document.Document) {}
	}
	if onFailure == nil {
		onFailure = func(error) {}
	}
	if len(sources) == 0 {
		BatchesTotal.WithLabelValues("no_sources").Inc()
		onFailure(errkind.New(errkind.NoSources, nil))
		return
	}

	id := uuid.NewString()
	b := &batch{
		id:        id,
		c:         c,
		sources:   sources,
		slots:     make([]Resolution, len(sources)),
		cache:     cache.New(),
		logger:    c.logger.With(observability.String("batch", id)),
		onSuccess: onSuccess,
		onFailure: onFailure,
	}
	SourcesTotal.Add(float64(len(sources)))
	go b.run(ctx)
}

// CombineAndWait is Combine for callers that prefer to block.
func (c *Combiner) CombineAndWait(ctx context.Context, sources []source.Descriptor) (document.Document, error) {
	type result struct {
		doc document.Document
		err error
	}
	ch := make(chan result, 1)
	c.Combine(ctx, sources,
		func(doc document.Document) { ch <- result{doc: doc} },
		func(err error) { ch <- result{err: err} },
	)
	r := <-ch
	return r.doc, r.err
}

type batch struct {
	id        string
	c         *Combiner
	sources   []source.Descriptor
	slots     []Resolution
	cache     *cache.Cache
	logger    observability.Logger
	cancel    context.CancelFunc
	completed atomic.Bool
	started   time.Time
	onSuccess func(document.Document)
	onFailure func(error)
}

func (b *batch) run(ctx context.Context) {
	b.started = time.Now()
	ctx, span := b.c.tracer.StartSpan(ctx, observability.SpanBatch)
	defer span.Finish()
	span.SetTag("batch", b.id)
	span.SetTag("sources", len(b.sources))

	ctx, b.cancel = context.WithCancel(ctx)
	defer b.cancel()
	defer b.cache.Purge()

	b.logger.Debug("combine started", observability.Int("sources", len(b.sources)))

	g, gctx := errgroup.WithContext(ctx)
	if b.c.concurrency > 0 {
		g.SetLimit(b.c.concurrency)
	}
	for i, d := range b.sources {
		i := i // per-iteration copy; go.mod targets Go 1.21 loop semantics
		p := b.pipeline(i, d)
		g.Go(func() error {
			res, err := p.Run(gctx)
			if err != nil {
				b.fail(err)
				return err
			}
			b.slots[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// The first failing pipeline already completed the batch.
		span.SetError(err)
		return
	}

	doc, err := b.assemble(ctx)
	if err != nil {
		span.SetError(err)
		b.fail(err)
		return
	}
	b.succeed(doc)
}

func (b *batch) pipeline(i int, d source.Descriptor) *Pipeline {
	return &Pipeline{
		batch:    b.id,
		index:    i,
		desc:     d,
		cache:    b.cache,
		loader:   b.c.loader,
		logger:   b.logger,
		tracer:   b.c.tracer,
		observer: b.c.observer,
		state:    Pending,
	}
}

func (b *batch) assemble(ctx context.Context) (document.Document, error) {
	_, span := b.c.tracer.StartSpan(ctx, observability.SpanAssemble)
	defer span.Finish()

	asm := b.c.lib.NewAssembler()
	total := 0
	for _, res := range b.slots {
		pages, err := b.c.lib.ExtractPages(res.Loaded.Doc, res.Range.Start, res.Range.End)
		if err != nil {
			return nil, errkind.New(errkind.Unknown, err).WithSource(res.Index)
		}
		if err := asm.AppendPages(pages); err != nil {
			return nil, errkind.New(errkind.Unknown, err).WithSource(res.Index)
		}
		total += len(pages)
	}
	doc, err := asm.Document()
	if err != nil {
		return nil, errkind.Classify(err)
	}
	span.SetTag("pages", total)
	return doc, nil
}

func (b *batch) succeed(doc document.Document) {
	if !b.completed.CompareAndSwap(false, true) {
		return
	}
	took := time.Since(b.started)
	BatchesTotal.WithLabelValues("success").Inc()
	BatchDuration.Observe(took.Seconds())
	b.logger.Info("combine finished",
		observability.Int("sources", len(b.sources)),
		observability.Int("pages", doc.PageCount()),
		observability.Int("loads", b.cache.Stats().Loads),
		observability.Duration("took", took),
	)
	b.onSuccess(doc)
}

func (b *batch) fail(err error) {
	e := errkind.Classify(err)
	if !b.completed.CompareAndSwap(false, true) {
		b.logger.Debug("discarding error after completion", observability.Err(e))
		return
	}
	b.cancel()
	took := time.Since(b.started)
	BatchesTotal.WithLabelValues("failure").Inc()
	BatchDuration.Observe(took.Seconds())
	b.logger.Warn("combine failed",
		observability.String("kind", e.Kind.String()),
		observability.Int("source", e.Source),
		observability.Err(e.Err),
		observability.Duration("took", took),
	)
	b.onFailure(e)
}
