package grpc

import (
	"context"
	"strings"

	"github.com/govalues/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/garyjia/claims-service/internal/application/service"
	"github.com/garyjia/claims-service/internal/domain/entity"
	"github.com/garyjia/claims-service/pkg/utils"
)

// ClaimsServer is the handler set registered for ClaimsService. Requests
// and responses are dynamic messages built from the claims descriptors.
type ClaimsServer interface {
	SubmitClaim(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error)
	GetClaim(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error)
	ListClaimsForCustomer(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error)
	ApproveClaim(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error)
	RejectClaim(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error)
	MarkClaimPaidOut(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error)
	StartReview(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error)
}

// Handlers serves the claims RPCs on top of the claim service
type Handlers struct {
	claims service.ClaimService
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(claims service.ClaimService, logger *zap.Logger) *Handlers {
	return &Handlers{claims: claims, logger: logger}
}

// SubmitClaim stores a new claim
func (h *Handlers) SubmitClaim(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error) {
	policyID := stringField(req, "policy_id")
	customerID := stringField(req, "customer_id")
	description := stringField(req, "description")

	for _, check := range []error{
		utils.ValidateReference("policy_id", policyID),
		utils.ValidateReference("customer_id", customerID),
		utils.ValidateText("description", description),
	} {
		if check != nil {
			return nil, toStatus(badRequest("%v", check), nil)
		}
	}
	if strings.TrimSpace(description) == "" {
		return nil, toStatus(badRequest("description is required"), nil)
	}

	amount, err := parseAmount("reported_amount", stringField(req, "reported_amount"))
	if err != nil {
		return nil, toStatus(err, nil)
	}

	claim, err := h.claims.SubmitClaim(ctx, service.SubmitClaimInput{
		PolicyRef:      strings.TrimSpace(policyID),
		CustomerRef:    strings.TrimSpace(customerID),
		Description:    utils.SanitizeString(description),
		ReportedAmount: amount,
	})
	if err != nil {
		return nil, h.fail(MethodSubmitClaim, err, claim)
	}
	return claimResponse(claim), nil
}

// GetClaim returns one claim
func (h *Handlers) GetClaim(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error) {
	claim, err := h.claims.GetClaim(ctx, stringField(req, "claim_id"))
	return h.respond(MethodGetClaim, claim, err)
}

// ListClaimsForCustomer returns a customer's claims
func (h *Handlers) ListClaimsForCustomer(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error) {
	customerID := strings.TrimSpace(stringField(req, "customer_id"))
	if customerID == "" {
		return nil, toStatus(badRequest("customer_id is required"), nil)
	}

	claims, err := h.claims.ListForCustomer(ctx, customerID)
	if err != nil {
		return nil, h.fail(MethodListClaimsForCustomer, err, nil)
	}
	return listClaimsResponse(claims), nil
}

// ApproveClaim records a positive decision. An empty approved_amount
// approves the reported amount.
func (h *Handlers) ApproveClaim(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error) {
	reason := stringField(req, "reason")
	if err := utils.ValidateText("reason", reason); err != nil {
		return nil, toStatus(badRequest("%v", err), nil)
	}

	var amount *decimal.Decimal
	if raw := strings.TrimSpace(stringField(req, "approved_amount")); raw != "" {
		d, err := parseAmount("approved_amount", raw)
		if err != nil {
			return nil, toStatus(err, nil)
		}
		amount = &d
	}

	claim, err := h.claims.Approve(ctx, stringField(req, "claim_id"), amount, utils.SanitizeString(reason))
	return h.respond(MethodApproveClaim, claim, err)
}

// RejectClaim records a negative decision; a reason is required
func (h *Handlers) RejectClaim(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error) {
	reason := utils.SanitizeString(stringField(req, "reason"))
	if reason == "" {
		return nil, toStatus(badRequest("reason is required"), nil)
	}
	if err := utils.ValidateText("reason", reason); err != nil {
		return nil, toStatus(badRequest("%v", err), nil)
	}

	claim, err := h.claims.Reject(ctx, stringField(req, "claim_id"), reason)
	return h.respond(MethodRejectClaim, claim, err)
}

// MarkClaimPaidOut pays out an approved claim
func (h *Handlers) MarkClaimPaidOut(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error) {
	claim, err := h.claims.Payout(ctx, stringField(req, "claim_id"))
	return h.respond(MethodMarkClaimPaidOut, claim, err)
}

// StartReview moves a submitted claim into review
func (h *Handlers) StartReview(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error) {
	claim, err := h.claims.StartReview(ctx, stringField(req, "claim_id"))
	return h.respond(MethodStartReview, claim, err)
}

func (h *Handlers) respond(method string, claim *entity.Claim, err error) (*dynamicpb.Message, error) {
	if err != nil {
		return nil, h.fail(method, err, claim)
	}
	return claimResponse(claim), nil
}

func (h *Handlers) fail(method string, err error, claim *entity.Claim) error {
	if code := codeFor(err); code == codes.Internal || code == codes.Unavailable {
		h.logger.Error("RPC failed", zap.String("method", method), zap.Error(err))
	}
	return toStatus(err, claim)
}
