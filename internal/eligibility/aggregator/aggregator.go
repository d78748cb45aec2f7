// Package aggregator folds one criterion's results over a primary address
// and its linked wallets into a single eligibility decision.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"attestor/internal/eligibility/criteria"
	"attestor/internal/eligibility/models"
	"attestor/internal/platform/tracer"
	"attestor/pkg/domain"
)

// DefaultConcurrency bounds the per-request fan-out of chain queries.
const DefaultConcurrency = 8

// ErrAllAddressesFailed is returned when no address could be verified. It
// always wraps the primary address's *criteria.ChainQueryError.
var ErrAllAddressesFailed = errors.New("eligibility could not be verified for any address")

// Evaluator checks one address against a criterion. criteria.Criterion
// implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, addr domain.Address) (models.Result, error)
}

type Aggregator struct {
	concurrency int
	tracer      tracer.Tracer
	logger      *slog.Logger
}

type Option func(*Aggregator)

// WithConcurrency sets how many addresses are verified at once.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(a *Aggregator) {
		a.tracer = t
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = l
	}
}

func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		concurrency: DefaultConcurrency,
		tracer:      tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate verifies primary and every secondary address, then folds the
// results in request order: eligible if any address is eligible, with the
// auxiliary value of the first eligible address, or the primary's own
// auxiliary value when none is.
//
// An address whose chain query failed counts as not eligible. When every
// address failed the result is ErrAllAddressesFailed. A cancelled context
// returns ctx.Err() and no result. Errors that are not chain query errors
// abort the aggregation.
func (a *Aggregator) Aggregate(ctx context.Context, primary domain.Address, secondary []domain.Address, ev Evaluator) (agg models.Aggregation, err error) {
	addrs := make([]domain.Address, 0, 1+len(secondary))
	addrs = append(addrs, primary)
	addrs = append(addrs, secondary...)

	ctx, span := a.tracer.Start(ctx, tracer.SpanAggregate, tracer.Int64(tracer.AttrWallets, int64(len(addrs))))
	defer func() { span.End(err) }()

	// Each goroutine owns one slot; the fold happens after Wait so the
	// outcome never depends on completion order.
	outcomes := make([]models.WalletOutcome, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, addr := range addrs {
		g.Go(func() error {
			res, verr := ev.Evaluate(gctx, addr)
			outcomes[i] = models.WalletOutcome{Address: addr, Result: res, Err: verr}
			if verr != nil && !criteria.IsChainQueryError(verr) {
				return verr
			}
			return nil
		})
	}
	waitErr := g.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return models.Aggregation{}, ctxErr
	}
	if waitErr != nil {
		return models.Aggregation{}, waitErr
	}

	a.recordFailures(ctx, span, outcomes)

	result, err := fold(outcomes)
	if err != nil {
		return models.Aggregation{}, err
	}
	span.SetAttributes(tracer.Bool(tracer.AttrEligible, result.Eligible))
	return models.Aggregation{Result: result, Outcomes: outcomes}, nil
}

func fold(outcomes []models.WalletOutcome) (models.Result, error) {
	failed := 0
	for _, o := range outcomes {
		if o.Failed() {
			failed++
			continue
		}
		if o.Result.Eligible {
			return models.Result{Eligible: true, Auxiliary: o.Result.Auxiliary}, nil
		}
	}
	primary := outcomes[0]
	if failed == len(outcomes) {
		return models.Result{}, fmt.Errorf("%w: %w", ErrAllAddressesFailed, primary.Err)
	}
	return models.Result{Eligible: false, Auxiliary: primary.Result.Auxiliary}, nil
}

func (a *Aggregator) recordFailures(ctx context.Context, span tracer.Span, outcomes []models.WalletOutcome) {
	failed := 0
	for i, o := range outcomes {
		if !o.Failed() {
			continue
		}
		failed++
		category := string(criteria.GetCategory(o.Err))
		span.AddEvent(tracer.EventWalletFailed,
			tracer.String(tracer.AttrWallet, tracer.HashAddress(o.Address.String())),
			tracer.String(tracer.AttrCategory, category),
		)
		if a.logger != nil {
			a.logger.DebugContext(ctx, "wallet verification failed",
				"index", i,
				"category", category,
				"error", o.Err,
			)
		}
	}
	span.SetAttributes(tracer.Int64(tracer.AttrFailed, int64(failed)))
}
