package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"attestor/internal/attestation/store"
	"attestor/internal/eligibility/criteria"
	"attestor/internal/eligibility/models"
	"attestor/pkg/domain"
	dErrors "attestor/pkg/domain-errors"
	"attestor/pkg/platform/httputil"
	pstrings "attestor/pkg/platform/strings"
	"attestor/pkg/requestcontext"
	"attestor/pkg/validation"
)

// Service is the attestation service as seen by the transport layer.
type Service interface {
	Handle(ctx context.Context, req models.EligibilityRequest) (*models.Attestation, error)
	Criteria() []criteria.Criterion
	SignerAddress() domain.Address
	Receipts(ctx context.Context, subject domain.Address, limit int) ([]store.Receipt, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the handler routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/criteria", h.HandleListCriteria)
	r.Get("/v1/eligibility/{criterion}", h.HandleCheckQuery)
	r.Post("/v1/eligibility/{criterion}", h.HandleCheckBody)
	r.Get("/v1/receipts/{address}", h.HandleListReceipts)
}

// EligibilityCheckRequest carries the primary address and the linked wallets.
type EligibilityCheckRequest struct {
	Address string   `json:"address" validate:"required,eth_addr"`
	Wallets []string `json:"wallets" validate:"max=10,dive,eth_addr"`
}

func (r *EligibilityCheckRequest) Normalize() {
	r.Address = strings.ToLower(strings.TrimSpace(r.Address))
	r.Wallets = pstrings.DedupeAndTrimLower(r.Wallets)
}

// Validate reports malformed addresses as invalid input.
func (r *EligibilityCheckRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, err.Error())
	}
	return nil
}

func (r *EligibilityCheckRequest) toModel(criterion string) (models.EligibilityRequest, error) {
	primary, err := domain.ParseAddress(r.Address)
	if err != nil {
		return models.EligibilityRequest{}, err
	}
	wallets, err := domain.ParseAddresses(r.Wallets)
	if err != nil {
		return models.EligibilityRequest{}, err
	}
	return models.NewEligibilityRequest(primary, wallets, models.CriterionID(criterion))
}

type AttestationResponse struct {
	ID        string  `json:"id"`
	Eligible  bool    `json:"eligible"`
	Auxiliary *string `json:"auxiliary,omitempty"`
	Signature string  `json:"signature"`
	Subject   string  `json:"subject"`
	Criterion string  `json:"criterion"`
	ChainID   uint64  `json:"chain_id"`
	Signer    string  `json:"signer"`
	IssuedAt  string  `json:"issued_at"`
}

type CriterionResponse struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"kind,omitempty"`
	ChainID     uint64 `json:"chain_id"`
	Chain       string `json:"chain"`
}

type CriteriaListResponse struct {
	Signer   string              `json:"signer"`
	Criteria []CriterionResponse `json:"criteria"`
}

type ReceiptsResponse struct {
	Receipts []store.Receipt `json:"receipts"`
}

// HandleCheckQuery handles GET /v1/eligibility/{criterion}?address=..&wallets=..
// Wallets may be comma-separated, repeated, or both.
func (h *Handler) HandleCheckQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	q := r.URL.Query()
	req := &EligibilityCheckRequest{
		Address: q.Get("address"),
		Wallets: pstrings.SplitList(q["wallets"]),
	}
	if err := httputil.PrepareRequest(req); err != nil {
		h.logger.WarnContext(ctx, "invalid eligibility query", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	h.check(w, r, req)
}

// HandleCheckBody handles POST /v1/eligibility/{criterion} with a JSON body.
func (h *Handler) HandleCheckBody(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[EligibilityCheckRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.check(w, r, req)
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request, req *EligibilityCheckRequest) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	criterion := chi.URLParam(r, "criterion")

	model, err := req.toModel(criterion)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid eligibility request", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	att, err := h.service.Handle(ctx, model)
	if err != nil {
		h.logger.ErrorContext(ctx, "eligibility check failed",
			"criterion", criterion,
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toAttestationResponse(att))
}

// HandleListCriteria handles GET /v1/criteria.
func (h *Handler) HandleListCriteria(w http.ResponseWriter, _ *http.Request) {
	all := h.service.Criteria()
	resp := CriteriaListResponse{
		Signer:   h.service.SignerAddress().String(),
		Criteria: make([]CriterionResponse, 0, len(all)),
	}
	for _, c := range all {
		resp.Criteria = append(resp.Criteria, CriterionResponse{
			ID:          c.ID.String(),
			Description: c.Description,
			Kind:        string(c.Kind),
			ChainID:     c.Chain.Uint64(),
			Chain:       c.Chain.Name(),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleListReceipts handles GET /v1/receipts/{address}?limit=N.
func (h *Handler) HandleListReceipts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	subject, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
	}

	receipts, err := h.service.Receipts(ctx, subject, limit)
	if err != nil {
		h.logger.WarnContext(ctx, "receipt lookup failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	if receipts == nil {
		receipts = []store.Receipt{}
	}
	httputil.WriteJSON(w, http.StatusOK, ReceiptsResponse{Receipts: receipts})
}

func toAttestationResponse(att *models.Attestation) AttestationResponse {
	return AttestationResponse{
		ID:        att.ID.String(),
		Eligible:  att.Result.Eligible,
		Auxiliary: att.Result.Auxiliary,
		Signature: att.Signature,
		Subject:   att.Subject.String(),
		Criterion: att.Criterion.String(),
		ChainID:   att.Chain.Uint64(),
		Signer:    att.Signer.String(),
		IssuedAt:  att.IssuedAt.UTC().Format(time.RFC3339),
	}
}
