package collector

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/JakeFAU/confluence-collector/internal/limiter"
	"github.com/JakeFAU/confluence-collector/internal/metrics"
	"github.com/JakeFAU/confluence-collector/internal/spaces"
)

// DefaultParallelism is the number of page transforms allowed in flight when
// Config.Parallelism is unset.
const DefaultParallelism = 15

// ErrStreamConsumed is yielded when a Stream is iterated a second time.
var ErrStreamConsumed = errors.New("document stream already consumed")

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Config tunes a Collector.
type Config struct {
	BaseURL          string
	Parallelism      int
	MaxPagesPerSpace int
}

// Collector runs the resolve, enumerate, transform pipeline.
type Collector struct {
	resolver    spaces.Resolver
	enumerator  *Enumerator
	transformer *Transformer
	limiter     *limiter.Limiter
	ids         IDGenerator
	logger      *zap.Logger
}

// New wires a Collector around a wiki fetcher and a space resolver.
func New(fetcher Fetcher, resolver spaces.Resolver, ids IDGenerator, cfg Config, logger *zap.Logger) (*Collector, error) {
	if fetcher == nil {
		return nil, errors.New("collector requires a fetcher")
	}
	if resolver == nil {
		return nil, errors.New("collector requires a space resolver")
	}
	if ids == nil {
		return nil, errors.New("collector requires an id generator")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Parallelism == 0 {
		cfg.Parallelism = DefaultParallelism
	}
	lim, err := limiter.New(cfg.Parallelism,
		limiter.WithHooks(metrics.IncTransformsInFlight, metrics.DecTransformsInFlight))
	if err != nil {
		return nil, fmt.Errorf("create transform limiter: %w", err)
	}
	logger = logger.Named("collector")
	return &Collector{
		resolver:    resolver,
		enumerator:  NewEnumerator(fetcher, cfg.BaseURL, cfg.MaxPagesPerSpace, logger),
		transformer: NewTransformer(fetcher, cfg.BaseURL),
		limiter:     lim,
		ids:         ids,
		logger:      logger,
	}, nil
}

// Collect prepares a run bound to ctx. No wiki traffic happens until the
// returned Stream is iterated; canceling ctx then stops the run.
func (c *Collector) Collect(ctx context.Context) *Stream {
	runID, err := c.ids.NewID()
	if err != nil {
		return &Stream{ctx: ctx, run: func(context.Context) ([]Document, error) { return nil, err }}
	}
	logger := c.logger.With(zap.String("run_id", runID))
	return &Stream{
		ctx:   ctx,
		runID: runID,
		run: func(ctx context.Context) ([]Document, error) {
			return c.run(ctx, logger)
		},
	}
}

func (c *Collector) run(ctx context.Context, logger *zap.Logger) ([]Document, error) {
	docs, err := c.collect(ctx, logger)
	if err != nil {
		metrics.ObserveRun(metrics.RunStatusFailed)
		logger.Error("collection run failed", zap.Error(err))
		return nil, err
	}
	metrics.ObserveRun(metrics.RunStatusOK)
	logger.Info("collection run finished", zap.Int("documents", len(docs)))
	return docs, nil
}

func (c *Collector) collect(ctx context.Context, logger *zap.Logger) ([]Document, error) {
	keys, err := c.resolver.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve spaces: %w", err)
	}
	logger.Info("collecting spaces", zap.Strings("spaces", keys))

	refs, err := c.enumerator.All(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("enumerate pages: %w", err)
	}
	logger.Info("enumerated pages", zap.Int("pages", len(refs)))

	results, err := limiter.Map(ctx, c.limiter, refs, func(ctx context.Context, ref string) *Document {
		doc, err := c.transformer.Page(ctx, ref)
		switch {
		case err != nil:
			metrics.ObservePage(metrics.OutcomeFailed)
			logger.Warn("skipping page", zap.String("page", ref), zap.Error(err))
			return nil
		case doc == nil:
			metrics.ObservePage(metrics.OutcomeSkipped)
			return nil
		default:
			metrics.ObservePage(metrics.OutcomeIndexed)
			return doc
		}
	})
	if err != nil {
		return nil, fmt.Errorf("transform pages: %w", err)
	}

	docs := make([]Document, 0, len(results))
	for _, doc := range results {
		if doc != nil {
			docs = append(docs, *doc)
		}
	}
	return docs, nil
}

// Stream is the lazy output of one collection run. It can be iterated once.
// It holds the context given to Collect; the run started by iteration is
// bound to it.
type Stream struct {
	ctx      context.Context
	runID    string
	run      func(context.Context) ([]Document, error)
	consumed atomic.Bool
}

// RunID identifies the run in logs and downstream sinks. It is empty if id
// generation failed, in which case iteration yields that error.
func (s *Stream) RunID() string {
	return s.runID
}

// Documents returns the run's documents in submission order. The run starts
// when iteration starts. A fatal error is yielded once with a zero Document and
// ends the sequence.
func (s *Stream) Documents() iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		if !s.consumed.CompareAndSwap(false, true) {
			yield(Document{}, ErrStreamConsumed)
			return
		}
		docs, err := s.run(s.ctx)
		if err != nil {
			yield(Document{}, err)
			return
		}
		for _, doc := range docs {
			if !yield(doc, nil) {
				return
			}
		}
	}
}
