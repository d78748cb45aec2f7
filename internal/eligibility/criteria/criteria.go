// Package criteria defines the eligibility rules an attestation can be issued
// for. Every rule implements the same Verifier contract so aggregation and
// signing stay criterion-agnostic; the Registry maps criterion IDs to rules.
package criteria

import (
	"context"
	"fmt"
	"sort"

	"attestor/internal/eligibility/models"
	"attestor/pkg/domain"
)

// Verifier evaluates one eligibility rule for an address on a chain.
//
// Zero activity yields an ineligible result, never an error. Collaborator
// failures are returned as-is; Criterion.Evaluate classifies them.
type Verifier interface {
	Verify(ctx context.Context, addr domain.Address, chain domain.ChainID) (models.Result, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, addr domain.Address, chain domain.ChainID) (models.Result, error)

func (f VerifierFunc) Verify(ctx context.Context, addr domain.Address, chain domain.ChainID) (models.Result, error) {
	return f(ctx, addr, chain)
}

// Criterion binds a verifier to the chain it must query. The chain is fixed
// per criterion and never supplied by the caller.
type Criterion struct {
	ID          models.CriterionID
	Description string
	Chain       domain.ChainID
	Kind        Kind
	Verifier    Verifier
}

// Evaluate runs the verifier on the criterion's chain. Chain-data failures
// come back as *ChainQueryError; anything else is returned unchanged.
func (c Criterion) Evaluate(ctx context.Context, addr domain.Address) (models.Result, error) {
	res, err := c.Verifier.Verify(ctx, addr, c.Chain)
	if err != nil {
		return models.Result{}, classify(c.ID, c.Chain, err)
	}
	return res, nil
}

// Registry holds the configured criteria. It is populated at startup and
// read-only afterwards.
type Registry struct {
	criteria map[models.CriterionID]Criterion
}

func NewRegistry() *Registry {
	return &Registry{criteria: make(map[models.CriterionID]Criterion)}
}

// Register adds a criterion. IDs must be unique and every criterion needs a verifier.
func (r *Registry) Register(c Criterion) error {
	if c.ID == "" {
		return fmt.Errorf("criterion id is required")
	}
	if c.Verifier == nil {
		return fmt.Errorf("criterion %s: verifier is required", c.ID)
	}
	if c.Chain == 0 {
		return fmt.Errorf("criterion %s: chain is required", c.ID)
	}
	if _, exists := r.criteria[c.ID]; exists {
		return fmt.Errorf("criterion %s already registered", c.ID)
	}
	r.criteria[c.ID] = c
	return nil
}

// Get resolves a criterion by ID.
func (r *Registry) Get(id models.CriterionID) (Criterion, bool) {
	c, ok := r.criteria[id]
	return c, ok
}

// IDs returns the registered IDs in lexical order.
func (r *Registry) IDs() []models.CriterionID {
	ids := make([]models.CriterionID, 0, len(r.criteria))
	for id := range r.criteria {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// All returns the registered criteria ordered by ID.
func (r *Registry) All() []Criterion {
	out := make([]Criterion, 0, len(r.criteria))
	for _, id := range r.IDs() {
		out = append(out, r.criteria[id])
	}
	return out
}

func (r *Registry) Len() int { return len(r.criteria) }

// CapabilityChecker reports whether a chain has the providers a query needs.
// *chaindata.Router implements it.
type CapabilityChecker interface {
	Supports(chain domain.ChainID, needsAccount, needsHistory bool) bool
}

// Unservable returns the criteria whose chain lacks a provider their kind
// queries, ordered by ID. Every request for such a criterion would fail.
func (r *Registry) Unservable(caps CapabilityChecker) []Criterion {
	var out []Criterion
	for _, c := range r.All() {
		account, history := c.Kind.Needs()
		if !caps.Supports(c.Chain, account, history) {
			out = append(out, c)
		}
	}
	return out
}
