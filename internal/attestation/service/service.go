// Package service is the attestation entry point: it resolves the criterion,
// aggregates eligibility across the request's wallets and signs the result
// for the primary address.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"attestor/internal/attestation/metrics"
	"attestor/internal/attestation/signer"
	"attestor/internal/attestation/store"
	"attestor/internal/eligibility/aggregator"
	"attestor/internal/eligibility/criteria"
	"attestor/internal/eligibility/models"
	"attestor/internal/platform/tracer"
	"attestor/pkg/domain"
	dErrors "attestor/pkg/domain-errors"
	"attestor/pkg/requestcontext"
)

const (
	// DefaultTimeout bounds one request's chain queries.
	DefaultTimeout = 10 * time.Second

	receiptTimeout = 2 * time.Second
)

// CriterionRegistry resolves criteria. *criteria.Registry implements it.
type CriterionRegistry interface {
	Get(id models.CriterionID) (criteria.Criterion, bool)
	All() []criteria.Criterion
}

// Aggregator folds a criterion over the request's wallets.
type Aggregator interface {
	Aggregate(ctx context.Context, primary domain.Address, secondary []domain.Address, ev aggregator.Evaluator) (models.Aggregation, error)
}

// AttestationSigner signs the encoded attestation tuple.
type AttestationSigner interface {
	SignAttestation(att signer.Attestation) signer.Signature
	Address() domain.Address
}

type Service struct {
	registry   CriterionRegistry
	aggregator Aggregator
	signer     AttestationSigner
	receipts   store.Store
	metrics    *metrics.Metrics
	tracer     tracer.Tracer
	logger     *slog.Logger
	timeout    time.Duration
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithReceipts enables the receipt ledger. Writes are best effort and never
// fail a request.
func WithReceipts(r store.Store) Option {
	return func(s *Service) {
		s.receipts = r
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New panics on missing dependencies; they are wired once at startup.
func New(registry CriterionRegistry, agg Aggregator, sig AttestationSigner, opts ...Option) *Service {
	if registry == nil {
		panic("service.New: criterion registry is required")
	}
	if agg == nil {
		panic("service.New: aggregator is required")
	}
	if sig == nil {
		panic("service.New: signer is required")
	}
	s := &Service{
		registry:   registry,
		aggregator: agg,
		signer:     sig,
		tracer:     tracer.NewNoop(),
		logger:     slog.New(slog.DiscardHandler),
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle issues an attestation for req. The subject is always req.Primary,
// even when a secondary wallet established eligibility.
//
// Errors:
//   - CodeInvalidInput: unknown criterion; no chain query is made
//   - CodeUnavailable: no address could be verified
//   - CodeTimeout: the request deadline passed or the caller went away
func (s *Service) Handle(ctx context.Context, req models.EligibilityRequest) (result *models.Attestation, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanAttest, tracer.String(tracer.AttrCriterion, req.Criterion.String()))
	defer func() { span.End(err) }()

	crit, ok := s.registry.Get(req.Criterion)
	if !ok {
		s.recordFailure(req.Criterion, metrics.ReasonInvalidInput)
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown criterion")
	}
	span.SetAttributes(tracer.Int64(tracer.AttrChain, int64(crit.Chain)))

	aggCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	agg, err := s.aggregator.Aggregate(aggCtx, req.Primary, req.Secondary, crit)
	if s.metrics != nil {
		s.metrics.ObserveAggregation(crit.ID.String(), time.Since(start).Seconds(), 1+len(req.Secondary))
	}
	if err == nil {
		// A deadline that lands after the fold still voids the request.
		err = aggCtx.Err()
	}
	if err != nil {
		return nil, s.translateError(ctx, crit, err)
	}
	s.recordWalletFailures(crit.ID, agg.Outcomes)

	att := signer.NewAttestation(req.Primary, agg.Result.Eligible, agg.Result.Auxiliary)
	_, signSpan := s.tracer.Start(ctx, tracer.SpanSign)
	sig := s.signer.SignAttestation(att)
	signSpan.End(nil)

	result = &models.Attestation{
		ID:        uuid.New(),
		Result:    agg.Result,
		Subject:   req.Primary,
		Criterion: crit.ID,
		Chain:     crit.Chain,
		Signature: sig.Hex(),
		Signer:    s.signer.Address(),
		IssuedAt:  requestcontext.Now(ctx),
	}
	span.SetAttributes(tracer.Bool(tracer.AttrEligible, result.Result.Eligible))
	if s.metrics != nil {
		s.metrics.RecordAttestation(crit.ID.String(), result.Result.Eligible)
	}
	s.logger.InfoContext(ctx, "attestation issued",
		"attestation_id", result.ID,
		"criterion", crit.ID,
		"chain_id", crit.Chain,
		"eligible", result.Result.Eligible,
		"wallets", len(agg.Outcomes),
		"request_id", requestcontext.RequestID(ctx),
	)

	s.saveReceipt(ctx, result, len(agg.Outcomes))
	return result, nil
}

// Criteria lists the configured criteria ordered by ID.
func (s *Service) Criteria() []criteria.Criterion {
	return s.registry.All()
}

// SignerAddress is the address verifying contracts should trust.
func (s *Service) SignerAddress() domain.Address {
	return s.signer.Address()
}

// Receipts returns the newest receipts issued for subject.
func (s *Service) Receipts(ctx context.Context, subject domain.Address, limit int) ([]store.Receipt, error) {
	if s.receipts == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "receipt ledger is disabled")
	}
	receipts, err := s.receipts.ListBySubject(ctx, subject, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list receipts", "error", err)
		return nil, dErrors.New(dErrors.CodeInternal, "failed to list receipts")
	}
	return receipts, nil
}

// translateError maps aggregation failures to domain errors. Provider
// detail stays in the logs.
func (s *Service) translateError(ctx context.Context, crit criteria.Criterion, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		s.recordFailure(crit.ID, metrics.ReasonCancelled)
		s.logger.WarnContext(ctx, "eligibility check abandoned",
			"criterion", crit.ID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return dErrors.New(dErrors.CodeTimeout, "eligibility check timed out")
	case errors.Is(err, aggregator.ErrAllAddressesFailed):
		s.recordFailure(crit.ID, metrics.ReasonAllFailed)
		s.logger.ErrorContext(ctx, "chain data unavailable for every address",
			"criterion", crit.ID,
			"chain_id", crit.Chain,
			"category", criteria.GetCategory(err),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return dErrors.New(dErrors.CodeUnavailable, "eligibility could not be verified")
	default:
		s.recordFailure(crit.ID, metrics.ReasonInternal)
		s.logger.ErrorContext(ctx, "eligibility aggregation failed",
			"criterion", crit.ID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return dErrors.New(dErrors.CodeInternal, "internal error")
	}
}

func (s *Service) recordFailure(id models.CriterionID, reason string) {
	if s.metrics != nil {
		s.metrics.RecordFailure(id.String(), reason)
	}
}

func (s *Service) recordWalletFailures(id models.CriterionID, outcomes []models.WalletOutcome) {
	if s.metrics == nil {
		return
	}
	for _, o := range outcomes {
		if o.Failed() {
			s.metrics.RecordWalletFailure(id.String(), string(criteria.GetCategory(o.Err)))
		}
	}
}

// saveReceipt persists the receipt on a context detached from the request
// so a client disconnect after signing does not drop the ledger entry.
func (s *Service) saveReceipt(ctx context.Context, att *models.Attestation, wallets int) {
	if s.receipts == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), receiptTimeout)
	defer cancel()

	saveCtx, span := s.tracer.Start(saveCtx, tracer.SpanReceiptSave)
	err := s.receipts.Save(saveCtx, store.FromAttestation(att, wallets))
	span.End(err)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordReceiptWriteFailure()
		}
		s.logger.WarnContext(ctx, "failed to persist attestation receipt",
			"attestation_id", att.ID,
			"error", err,
		)
	}
}
