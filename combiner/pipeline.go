package combiner

import (
	"context"
	"fmt"

	"github.com/wudi/pdfcombine/cache"
	"github.com/wudi/pdfcombine/errkind"
	"github.com/wudi/pdfcombine/loader"
	"github.com/wudi/pdfcombine/observability"
	"github.com/wudi/pdfcombine/source"
)

// State is the resolution state of one source.
type State int

const (
	Pending State = iota
	Loading
	RangeChecking
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Loading:
		return "loading"
	case RangeChecking:
		return "range_checking"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether s is Resolved or Failed.
func (s State) Terminal() bool { return s == Resolved || s == Failed }

// Transition is a state change of the pipeline for source Index.
type Transition struct {
	Batch string
	Index int
	From  State
	To    State
	Err   error
}

// Observer receives pipeline transitions. It is called from pipeline
// goroutines and must be safe for concurrent use.
type Observer func(Transition)

// Resolution is the validated page range of one source.
type Resolution struct {
	Index  int
	Loaded *loader.Loaded
	Range  source.Range
}

// Pipeline resolves one descriptor: Pending → Loading → RangeChecking →
// Resolved, or Failed from any non-terminal state. It never retries.
type Pipeline struct {
	batch    string
	index    int
	desc     source.Descriptor
	cache    *cache.Cache
	loader   *loader.Loader
	logger   observability.Logger
	tracer   observability.Tracer
	observer Observer
	state    State
}

func (p *Pipeline) State() State { return p.state }

func (p *Pipeline) transition(to State, err error) {
	from := p.state
	p.state = to
	p.logger.Debug("pipeline transition",
		observability.Int("source", p.index),
		observability.String("from", from.String()),
		observability.String("to", to.String()),
	)
	if p.observer != nil {
		p.observer(Transition{Batch: p.batch, Index: p.index, From: from, To: to, Err: err})
	}
}

func (p *Pipeline) fail(err error) (Resolution, error) {
	e := errkind.Classify(err).WithSource(p.index)
	p.transition(Failed, e)
	return Resolution{}, e
}

// Run drives the pipeline to a terminal state.
func (p *Pipeline) Run(ctx context.Context) (Resolution, error) {
	ctx, span := p.tracer.StartSpan(ctx, observability.SpanPipeline)
	defer span.Finish()
	span.SetTag("source", p.index)

	res, err := p.run(ctx)
	if err != nil {
		span.SetError(err)
	}
	return res, err
}

func (p *Pipeline) run(ctx context.Context) (Resolution, error) {
	if err := ctx.Err(); err != nil {
		return p.fail(err)
	}

	p.transition(Loading, nil)
	loaded, err := p.load(ctx)
	if err != nil {
		return p.fail(err)
	}

	p.transition(RangeChecking, nil)
	r, err := source.ResolveRange(loaded.Pages, p.desc)
	if err != nil {
		return p.fail(err)
	}

	p.transition(Resolved, nil)
	return Resolution{Index: p.index, Loaded: loaded, Range: r}, nil
}

func (p *Pipeline) load(ctx context.Context) (*loader.Loaded, error) {
	content := p.desc.Content()
	id, err := source.IdentityOf(content)
	if err != nil {
		// No stable key: load directly so the loader reports the precise kind.
		return p.loader.Load(ctx, content)
	}
	return p.cache.GetOrLoad(ctx, id, func(ctx context.Context) (*loader.Loaded, error) {
		return p.loader.LoadAs(ctx, id, content)
	})
}
