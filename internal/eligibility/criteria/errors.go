package criteria

import (
	"context"
	"errors"
	"fmt"

	"attestor/internal/eligibility/models"
	"attestor/internal/eligibility/ports"
	"attestor/pkg/domain"
)

// ErrorCategory normalizes chain-data failures independent of the provider.
type ErrorCategory string

const (
	ErrorTimeout          ErrorCategory = "timeout"
	ErrorBadData          ErrorCategory = "bad_data"
	ErrorProviderOutage   ErrorCategory = "provider_outage"
	ErrorRateLimited      ErrorCategory = "rate_limited"
	ErrorUnsupportedChain ErrorCategory = "unsupported_chain"
)

// ChainQueryError reports that the chain-data collaborator failed for one
// verification. It is final for that call; no retries happen in the core.
type ChainQueryError struct {
	Category   ErrorCategory
	Criterion  models.CriterionID
	Chain      domain.ChainID
	Underlying error
}

func (e *ChainQueryError) Error() string {
	return fmt.Sprintf("criterion %s on chain %s [%s]: %v", e.Criterion, e.Chain, e.Category, e.Underlying)
}

func (e *ChainQueryError) Unwrap() error {
	return e.Underlying
}

// IsChainQueryError reports whether err is, or wraps, a *ChainQueryError.
func IsChainQueryError(err error) bool {
	var qe *ChainQueryError
	return errors.As(err, &qe)
}

// GetCategory extracts the category, or "" when err is not a chain query error.
func GetCategory(err error) ErrorCategory {
	var qe *ChainQueryError
	if errors.As(err, &qe) {
		return qe.Category
	}
	return ""
}

func classify(id models.CriterionID, chain domain.ChainID, err error) error {
	if IsChainQueryError(err) {
		return err
	}

	var category ErrorCategory
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		category = ErrorTimeout
	case errors.Is(err, ports.ErrRateLimited):
		category = ErrorRateLimited
	case errors.Is(err, ports.ErrMalformedResponse):
		category = ErrorBadData
	case errors.Is(err, ports.ErrUnsupportedChain):
		category = ErrorUnsupportedChain
	case errors.Is(err, ports.ErrProviderUnavailable):
		category = ErrorProviderOutage
	default:
		return err
	}
	return &ChainQueryError{Category: category, Criterion: id, Chain: chain, Underlying: err}
}
