package handler

//go:generate mockgen -source=handler.go -destination=mocks/handler_mock.go -package=mocks Service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"attestor/internal/attestation/handler/mocks"
	"attestor/internal/attestation/service"
	"attestor/internal/attestation/signer"
	"attestor/internal/attestation/store"
	"attestor/internal/eligibility/aggregator"
	"attestor/internal/eligibility/chaintest"
	"attestor/internal/eligibility/criteria"
	"attestor/internal/eligibility/models"
	"attestor/pkg/domain"
	dErrors "attestor/pkg/domain-errors"
	"attestor/pkg/platform/httputil"
	"attestor/pkg/testutil"
)

const (
	primaryHex = "0x1111111111111111111111111111111111111111"
	walletAHex = "0x2222222222222222222222222222222222222222"
	walletBHex = "0x3333333333333333333333333333333333333333"
)

var (
	primary = domain.MustAddress(primaryHex)
	walletA = domain.MustAddress(walletAHex)
	walletB = domain.MustAddress(walletBHex)
	signerA = domain.MustAddress("0x2c7536e3605d9c16a7a3d7b1898e529396a65c23")
)

type HandlerSuite struct {
	suite.Suite
	router      http.Handler
	ctrl        *gomock.Controller
	mockService *mocks.MockService
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockService = mocks.NewMockService(s.ctrl)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	r := chi.NewRouter()
	New(s.mockService, logger).Register(r)
	s.router = r
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func issued(req models.EligibilityRequest) *models.Attestation {
	return &models.Attestation{
		ID:        uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2"),
		Result:    models.Eligible(models.Aux("42")),
		Subject:   req.Primary,
		Criterion: req.Criterion,
		Chain:     domain.ChainEthereum,
		Signature: "0x" + strings.Repeat("ab", signer.SignatureLength),
		Signer:    signerA,
		IssuedAt:  time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (s *HandlerSuite) TestCheckQuery() {
	s.Run("returns the signed attestation", func() {
		want := models.EligibilityRequest{Primary: primary, Secondary: []domain.Address{walletA, walletB}, Criterion: "tx-count"}
		s.mockService.EXPECT().Handle(gomock.Any(), want).DoAndReturn(
			func(_ context.Context, req models.EligibilityRequest) (*models.Attestation, error) {
				return issued(req), nil
			})

		rec := s.do(http.MethodGet, "/v1/eligibility/tx-count?address="+primaryHex+"&wallets="+walletAHex+","+walletBHex, "")
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp AttestationResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.True(resp.Eligible)
		s.Equal("42", *resp.Auxiliary)
		s.Equal(primaryHex, resp.Subject)
		s.Equal("tx-count", resp.Criterion)
		s.Equal(uint64(1), resp.ChainID)
		s.Equal(signerA.String(), resp.Signer)
		s.Equal("2026-05-01T10:00:00Z", resp.IssuedAt)
		s.Len(resp.Signature, 2+2*signer.SignatureLength)
	})

	s.Run("repeated wallets, mixed case and duplicates collapse", func() {
		want := models.EligibilityRequest{Primary: primary, Secondary: []domain.Address{walletA}, Criterion: "tx-count"}
		s.mockService.EXPECT().Handle(gomock.Any(), want).DoAndReturn(
			func(_ context.Context, req models.EligibilityRequest) (*models.Attestation, error) {
				return issued(req), nil
			})

		upperA := "0x" + strings.ToUpper(walletAHex[2:])
		rec := s.do(http.MethodGet, "/v1/eligibility/tx-count?address="+primaryHex+"&wallets="+walletAHex+"&wallets="+upperA+","+primaryHex, "")
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("no wallets", func() {
		want := models.EligibilityRequest{Primary: primary, Secondary: []domain.Address{}, Criterion: "tx-count"}
		s.mockService.EXPECT().Handle(gomock.Any(), want).DoAndReturn(
			func(_ context.Context, req models.EligibilityRequest) (*models.Attestation, error) {
				return issued(req), nil
			})

		rec := s.do(http.MethodGet, "/v1/eligibility/tx-count?address="+primaryHex, "")
		s.Equal(http.StatusOK, rec.Code)
	})
}

func (s *HandlerSuite) TestCheckRejectsInvalidInput() {
	cases := map[string]string{
		"missing address":   "/v1/eligibility/tx-count",
		"malformed address": "/v1/eligibility/tx-count?address=0x1234",
		"missing prefix":    "/v1/eligibility/tx-count?address=" + primaryHex[2:],
		"malformed wallet":  "/v1/eligibility/tx-count?address=" + primaryHex + "&wallets=nope",
		"too many wallets":  "/v1/eligibility/tx-count?address=" + primaryHex + "&wallets=" + manyWallets(11),
	}
	for name, target := range cases {
		s.Run(name, func() {
			rec := s.do(http.MethodGet, target, "")
			s.Equal(http.StatusBadRequest, rec.Code)

			var resp httputil.ErrorResponse
			s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
			s.Equal("bad_request", resp.Error)
		})
	}
}

func (s *HandlerSuite) TestCheckBody() {
	s.Run("json body", func() {
		want := models.EligibilityRequest{Primary: primary, Secondary: []domain.Address{walletB}, Criterion: "base-active"}
		s.mockService.EXPECT().Handle(gomock.Any(), want).DoAndReturn(
			func(_ context.Context, req models.EligibilityRequest) (*models.Attestation, error) {
				return issued(req), nil
			})

		rec := s.do(http.MethodPost, "/v1/eligibility/base-active",
			fmt.Sprintf(`{"address":" %s ","wallets":["%s"]}`, primaryHex, walletBHex))
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("unknown fields are rejected", func() {
		rec := s.do(http.MethodPost, "/v1/eligibility/base-active", `{"address":"`+primaryHex+`","chain":1}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("invalid json", func() {
		rec := s.do(http.MethodPost, "/v1/eligibility/base-active", `not json`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("malformed wallet", func() {
		rec := s.do(http.MethodPost, "/v1/eligibility/base-active", `{"address":"`+primaryHex+`","wallets":["0xzz"]}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestServiceErrorMapping() {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{dErrors.New(dErrors.CodeInvalidInput, "unknown criterion"), http.StatusBadRequest, "bad_request"},
		{dErrors.New(dErrors.CodeUnavailable, "eligibility could not be verified"), http.StatusBadGateway, "upstream_unavailable"},
		{dErrors.New(dErrors.CodeTimeout, "eligibility check timed out"), http.StatusGatewayTimeout, "timeout"},
		{dErrors.New(dErrors.CodeInternal, "internal error"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		s.Run(tc.code, func() {
			s.mockService.EXPECT().Handle(gomock.Any(), gomock.Any()).Return(nil, tc.err)

			rec := s.do(http.MethodGet, "/v1/eligibility/whatever?address="+primaryHex, "")
			s.Equal(tc.status, rec.Code)

			var resp httputil.ErrorResponse
			s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
			s.Equal(tc.code, resp.Error)
			if tc.status >= http.StatusInternalServerError {
				s.Empty(resp.ErrorDescription)
			}
		})
	}
}

func (s *HandlerSuite) TestListCriteria() {
	s.mockService.EXPECT().SignerAddress().Return(signerA)
	s.mockService.EXPECT().Criteria().Return([]criteria.Criterion{
		{ID: "base-active-sender", Description: "Sent any transaction on Base", Chain: domain.ChainBase, Kind: criteria.KindActiveSender},
	})

	rec := s.do(http.MethodGet, "/v1/criteria", "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp CriteriaListResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal(signerA.String(), resp.Signer)
	s.Require().Len(resp.Criteria, 1)
	s.Equal("base", resp.Criteria[0].Chain)
	s.Equal(uint64(8453), resp.Criteria[0].ChainID)
	s.Equal("active_sender", resp.Criteria[0].Kind)
}

func (s *HandlerSuite) TestListReceipts() {
	s.Run("lists receipts", func() {
		s.mockService.EXPECT().Receipts(gomock.Any(), primary, 5).Return([]store.Receipt{{Subject: primary, Criterion: "tx-count"}}, nil)

		rec := s.do(http.MethodGet, "/v1/receipts/"+primaryHex+"?limit=5", "")
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp ReceiptsResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Require().Len(resp.Receipts, 1)
		s.Equal(primary, resp.Receipts[0].Subject)
	})

	s.Run("empty list is an array", func() {
		s.mockService.EXPECT().Receipts(gomock.Any(), primary, 0).Return(nil, nil)
		rec := s.do(http.MethodGet, "/v1/receipts/"+primaryHex, "")
		s.Require().Equal(http.StatusOK, rec.Code)
		s.JSONEq(`{"receipts":[]}`, rec.Body.String())
	})

	s.Run("bad address", func() {
		rec := s.do(http.MethodGet, "/v1/receipts/not-an-address", "")
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("bad limit", func() {
		rec := s.do(http.MethodGet, "/v1/receipts/"+primaryHex+"?limit=-1", "")
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("ledger disabled", func() {
		s.mockService.EXPECT().Receipts(gomock.Any(), primary, 0).Return(nil, dErrors.New(dErrors.CodeNotFound, "receipt ledger is disabled"))
		rec := s.do(http.MethodGet, "/v1/receipts/"+primaryHex, "")
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func manyWallets(n int) string {
	out := make([]string, 0, n)
	for i := range n {
		out = append(out, fmt.Sprintf("0x%040x", i+100))
	}
	return strings.Join(out, ",")
}

// Malformed input must be rejected before the chain-data collaborator sees
// a single query.
func TestMalformedAddressMakesNoChainQuery(t *testing.T) {
	chain := chaintest.New()
	registry := criteria.NewRegistry()
	if err := registry.Register(criteria.Criterion{
		ID:       "tx-count",
		Chain:    domain.ChainEthereum,
		Verifier: criteria.TransactionCount{Reader: chain, Min: 1},
	}); err != nil {
		t.Fatal(err)
	}
	sig, err := signer.FromHex(testutil.SignerKeyHex)
	if err != nil {
		t.Fatal(err)
	}
	svc := service.New(registry, aggregator.New(), sig)

	r := chi.NewRouter()
	New(svc, slog.New(slog.DiscardHandler)).Register(r)

	for _, target := range []string{
		"/v1/eligibility/tx-count?address=0xnot-an-address",
		"/v1/eligibility/tx-count?address=" + primaryHex + "&wallets=0x12",
		"/v1/eligibility/unknown?address=" + primaryHex,
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
	if calls := chain.Calls(); calls != 0 {
		t.Fatalf("chain queried %d times for invalid input", calls)
	}
}
