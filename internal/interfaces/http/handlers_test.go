package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/govalues/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/claims-service/internal/application/port"
	"github.com/garyjia/claims-service/internal/application/service"
	"github.com/garyjia/claims-service/internal/domain/entity"
	"github.com/garyjia/claims-service/internal/domain/workflow"
)

type mockClaimService struct {
	submitFunc        func(ctx context.Context, input service.SubmitClaimInput) (*entity.Claim, error)
	startReviewFunc   func(ctx context.Context, claimID string) (*entity.Claim, error)
	approveFunc       func(ctx context.Context, claimID string, amount *decimal.Decimal, reason string) (*entity.Claim, error)
	rejectFunc        func(ctx context.Context, claimID string, reason string) (*entity.Claim, error)
	payoutFunc        func(ctx context.Context, claimID string) (*entity.Claim, error)
	getFunc           func(ctx context.Context, claimID string) (*entity.Claim, error)
	listFunc          func(ctx context.Context, customerRef string) ([]*entity.Claim, error)
	getValidationFunc func(ctx context.Context, claimID string) (*entity.ValidationSummary, error)
	getHistoryFunc    func(ctx context.Context, claimID string) ([]*entity.ClaimHistory, error)
}

func (m *mockClaimService) SubmitClaim(ctx context.Context, input service.SubmitClaimInput) (*entity.Claim, error) {
	return m.submitFunc(ctx, input)
}

func (m *mockClaimService) StartReview(ctx context.Context, claimID string) (*entity.Claim, error) {
	return m.startReviewFunc(ctx, claimID)
}

func (m *mockClaimService) Approve(ctx context.Context, claimID string, amount *decimal.Decimal, reason string) (*entity.Claim, error) {
	return m.approveFunc(ctx, claimID, amount, reason)
}

func (m *mockClaimService) Reject(ctx context.Context, claimID string, reason string) (*entity.Claim, error) {
	return m.rejectFunc(ctx, claimID, reason)
}

func (m *mockClaimService) Payout(ctx context.Context, claimID string) (*entity.Claim, error) {
	return m.payoutFunc(ctx, claimID)
}

func (m *mockClaimService) GetClaim(ctx context.Context, claimID string) (*entity.Claim, error) {
	return m.getFunc(ctx, claimID)
}

func (m *mockClaimService) ListForCustomer(ctx context.Context, customerRef string) ([]*entity.Claim, error) {
	return m.listFunc(ctx, customerRef)
}

func (m *mockClaimService) GetValidation(ctx context.Context, claimID string) (*entity.ValidationSummary, error) {
	return m.getValidationFunc(ctx, claimID)
}

func (m *mockClaimService) GetHistory(ctx context.Context, claimID string) ([]*entity.ClaimHistory, error) {
	return m.getHistoryFunc(ctx, claimID)
}

var fixedTime = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func sampleClaim(status workflow.State) *entity.Claim {
	return &entity.Claim{
		ID:             "claim-1",
		PolicyRef:      "POL-1",
		CustomerRef:    "CUST-1",
		Description:    "Broken window",
		ReportedAmount: decimal.MustParse("250.50"),
		Status:         status,
		CreatedAt:      fixedTime,
		LastUpdatedAt:  fixedTime,
		Version:        1,
	}
}

func newTestServer(svc service.ClaimService, health HealthFunc) *Server {
	return NewServer(DefaultServerConfig(), svc, health, zap.NewNop())
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSubmitClaim_Created(t *testing.T) {
	var got service.SubmitClaimInput
	svc := &mockClaimService{
		submitFunc: func(_ context.Context, input service.SubmitClaimInput) (*entity.Claim, error) {
			got = input
			return sampleClaim(workflow.StateSubmitted), nil
		},
	}

	rec := do(t, newTestServer(svc, nil), http.MethodPost, "/claims",
		`{"policyId":"POL-1","customerId":"CUST-1","description":"Broken window","reportedAmount":250.50}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/claims/claim-1", rec.Header().Get("Location"))
	assert.Equal(t, "POL-1", got.PolicyRef)
	assert.Equal(t, "250.50", got.ReportedAmount.String())

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "claim-1", body["id"])
	assert.Equal(t, "SUBMITTED", body["status"])
	assert.Equal(t, 250.5, body["reportedAmount"])
	assert.Equal(t, false, body["approved"])
	assert.Nil(t, body["approvedAmount"])
}

func TestSubmitClaim_BadInput(t *testing.T) {
	svc := &mockClaimService{}
	s := newTestServer(svc, nil)

	tests := []struct {
		name string
		body string
	}{
		{"missing policy", `{"customerId":"CUST-1","description":"x","reportedAmount":1}`},
		{"missing description", `{"policyId":"POL-1","customerId":"CUST-1","reportedAmount":1}`},
		{"policy with spaces", `{"policyId":"POL 1","customerId":"CUST-1","description":"x","reportedAmount":1}`},
		{"amount not a number", `{"policyId":"POL-1","customerId":"CUST-1","description":"x","reportedAmount":"ten"}`},
		{"not json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/claims", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, TextCodeBadInput, body.TextCode)
			assert.Equal(t, "/claims", body.Path)
			assert.Equal(t, http.StatusBadRequest, body.Status)
		})
	}
}

func TestSubmitClaim_PublishFailureCarriesClaimID(t *testing.T) {
	svc := &mockClaimService{
		submitFunc: func(context.Context, service.SubmitClaimInput) (*entity.Claim, error) {
			return sampleClaim(workflow.StateSubmitted), fmt.Errorf("%w: broker down", port.ErrPublishFailure)
		},
	}

	rec := do(t, newTestServer(svc, nil), http.MethodPost, "/claims",
		`{"policyId":"POL-1","customerId":"CUST-1","description":"x","reportedAmount":"10"}`)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, TextCodeEventNotEmitted, body.TextCode)
	assert.Equal(t, "claim-1", body.ClaimID)
	assert.Equal(t, "/claims/claim-1", rec.Header().Get("Location"))
}

func TestGetClaim_AllowedActions(t *testing.T) {
	tests := []struct {
		status workflow.State
		want   []string
	}{
		{workflow.StateSubmitted, []string{"START_REVIEW"}},
		{workflow.StateInReview, []string{"APPROVE", "REJECT"}},
		{workflow.StateApproved, []string{"PAYOUT"}},
		{workflow.StatePaidOut, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			svc := &mockClaimService{
				getFunc: func(context.Context, string) (*entity.Claim, error) {
					return sampleClaim(tt.status), nil
				},
			}

			rec := do(t, newTestServer(svc, nil), http.MethodGet, "/claims/claim-1", nil)

			require.Equal(t, http.StatusOK, rec.Code)
			var body ClaimResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body.AllowedActions)
		})
	}
}

func TestGetClaim_NotFound(t *testing.T) {
	svc := &mockClaimService{
		getFunc: func(_ context.Context, id string) (*entity.Claim, error) {
			return nil, fmt.Errorf("%w: %s", entity.ErrNotFound, id)
		},
	}

	rec := do(t, newTestServer(svc, nil), http.MethodGet, "/claims/missing", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "Claim not found", body.Error)
	assert.Equal(t, TextCodeClaimNotFound, body.TextCode)
	assert.Contains(t, body.Message, "missing")
	assert.Equal(t, "/claims/missing", body.Path)
	assert.False(t, body.Timestamp.IsZero())
}

func TestTransitions_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid state", fmt.Errorf("%w: cannot payout", entity.ErrInvalidState), http.StatusConflict, TextCodeInvalidState},
		{"conflict", entity.ErrConflict, http.StatusConflict, TextCodeConflict},
		{"invalid argument", fmt.Errorf("%w: negative", entity.ErrInvalidArgument), http.StatusBadRequest, TextCodeBadInput},
		{"internal", fmt.Errorf("disk on fire"), http.StatusInternalServerError, TextCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockClaimService{
				payoutFunc: func(context.Context, string) (*entity.Claim, error) {
					return nil, tt.err
				},
			}
			rec := do(t, newTestServer(svc, nil), http.MethodPost, "/claims/claim-1/paid-out", nil)
			require.Equal(t, tt.wantStatus, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, body.TextCode)
			if tt.wantStatus == http.StatusInternalServerError {
				assert.NotContains(t, body.Message, "disk on fire")
			}
		})
	}
}

func TestApproveClaim(t *testing.T) {
	var gotAmount *decimal.Decimal
	var gotReason string
	svc := &mockClaimService{
		approveFunc: func(_ context.Context, _ string, amount *decimal.Decimal, reason string) (*entity.Claim, error) {
			gotAmount, gotReason = amount, reason
			if amount == nil {
				return nil, fmt.Errorf("%w: approved amount is required", entity.ErrInvalidArgument)
			}
			claim := sampleClaim(workflow.StateApproved)
			claim.Decision = &entity.Decision{ApprovedAmount: *amount, Reason: reason}
			return claim, nil
		},
	}
	s := newTestServer(svc, nil)

	rec := do(t, s, http.MethodPost, "/claims/claim-1/approve", `{"approvedAmount":200,"reason":"covered"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotAmount)
	assert.Equal(t, "200", gotAmount.String())
	assert.Equal(t, "covered", gotReason)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["approved"])
	assert.Equal(t, float64(200), body["approvedAmount"])
	assert.Equal(t, "covered", body["decisionReason"])

	rec = do(t, s, http.MethodPost, "/claims/claim-1/approve", `{"reason":"no amount"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, gotAmount)

	rec = do(t, s, http.MethodPost, "/claims/claim-1/approve", `{"approvedAmount":"lots"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRejectClaim_RequiresReason(t *testing.T) {
	called := false
	svc := &mockClaimService{
		rejectFunc: func(_ context.Context, _ string, reason string) (*entity.Claim, error) {
			called = true
			claim := sampleClaim(workflow.StateRejected)
			claim.Decision = &entity.Decision{ApprovedAmount: decimal.Zero, Reason: reason}
			return claim, nil
		},
	}
	s := newTestServer(svc, nil)

	rec := do(t, s, http.MethodPost, "/claims/claim-1/reject", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)

	rec = do(t, s, http.MethodPost, "/claims/claim-1/reject", `{"reason":"\u0000 "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)

	rec = do(t, s, http.MethodPost, "/claims/claim-1/reject", `{"reason":"not covered"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "REJECTED", body["status"])
	assert.Equal(t, false, body["approved"])
	assert.Equal(t, float64(0), body["approvedAmount"])
}

func TestListClaims(t *testing.T) {
	svc := &mockClaimService{
		listFunc: func(_ context.Context, customerRef string) ([]*entity.Claim, error) {
			if customerRef != "CUST-1" {
				return nil, nil
			}
			return []*entity.Claim{sampleClaim(workflow.StateSubmitted), sampleClaim(workflow.StateInReview)}, nil
		},
	}
	s := newTestServer(svc, nil)

	rec := do(t, s, http.MethodGet, "/claims?customerId=CUST-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body []ClaimResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, "IN_REVIEW", body[1].Status)

	rec = do(t, s, http.MethodGet, "/claims?customerId=CUST-2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/claims", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetValidation(t *testing.T) {
	svc := &mockClaimService{
		getValidationFunc: func(_ context.Context, claimID string) (*entity.ValidationSummary, error) {
			return entity.Summarize(claimID, []*entity.ValidationOutcome{
				entity.NewValidationOutcome(claimID, entity.SourcePolicy, true, "policy P-1 status ACTIVE", fixedTime),
			}), nil
		},
	}

	rec := do(t, newTestServer(svc, nil), http.MethodGet, "/claims/claim-1/validations", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body ValidationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_RECORDED", body.State)
	assert.False(t, body.Complete)
	require.NotNil(t, body.Policy)
	assert.Equal(t, "VALID", body.Policy.Verdict)
	assert.Nil(t, body.Customer)
}

func TestGetHistory(t *testing.T) {
	svc := &mockClaimService{
		getHistoryFunc: func(_ context.Context, claimID string) ([]*entity.ClaimHistory, error) {
			return []*entity.ClaimHistory{
				{ClaimID: claimID, NewStatus: "SUBMITTED", Action: "SUBMIT", Timestamp: fixedTime},
				{ClaimID: claimID, PreviousStatus: "SUBMITTED", NewStatus: "IN_REVIEW", Action: "START_REVIEW", Timestamp: fixedTime},
			}, nil
		},
	}

	rec := do(t, newTestServer(svc, nil), http.MethodGet, "/claims/claim-1/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body []HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, "IN_REVIEW", body[1].NewStatus)
}

func TestPingAndHealth(t *testing.T) {
	healthy := true
	s := newTestServer(&mockClaimService{}, func(context.Context) (bool, interface{}) {
		return healthy, map[string]string{"database": "ok"}
	})

	rec := do(t, s, http.MethodGet, "/claims/ping", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	healthy = false
	rec = do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
