package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/govalues/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/claims-service/internal/application/port"
	"github.com/garyjia/claims-service/internal/application/service"
	"github.com/garyjia/claims-service/internal/domain/entity"
	"github.com/garyjia/claims-service/pkg/utils"
)

// HealthFunc reports whether the service and its dependencies are usable,
// plus details for the response body
type HealthFunc func(ctx context.Context) (bool, interface{})

// Handlers contains all HTTP request handlers
type Handlers struct {
	claims service.ClaimService
	health HealthFunc
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(claims service.ClaimService, health HealthFunc, logger *zap.Logger) *Handlers {
	return &Handlers{
		claims: claims,
		health: health,
		logger: logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	healthy, details := true, interface{}(nil)
	if h.health != nil {
		healthy, details = h.health(c.Request.Context())
	}

	resp := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: details,
	}
	if !healthy {
		resp.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Ping handles GET /claims/ping
func (h *Handlers) Ping(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// SubmitClaim handles POST /claims
func (h *Handlers) SubmitClaim(c *gin.Context) {
	var req SubmitClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, badRequest("%v", err), "")
		return
	}

	for _, check := range []error{
		utils.ValidateReference("policyId", req.PolicyID),
		utils.ValidateReference("customerId", req.CustomerID),
		utils.ValidateText("description", req.Description),
	} {
		if check != nil {
			writeError(c, badRequest("%v", check), "")
			return
		}
	}

	amount, err := parseAmount("reportedAmount", req.ReportedAmount)
	if err != nil {
		writeError(c, err, "")
		return
	}

	claim, err := h.claims.SubmitClaim(c.Request.Context(), service.SubmitClaimInput{
		PolicyRef:      strings.TrimSpace(req.PolicyID),
		CustomerRef:    strings.TrimSpace(req.CustomerID),
		Description:    utils.SanitizeString(req.Description),
		ReportedAmount: amount,
	})
	if err != nil {
		h.fail(c, err, claim)
		return
	}

	c.Header("Location", "/claims/"+claim.ID)
	c.JSON(http.StatusCreated, toClaimResponse(claim))
}

// GetClaim handles GET /claims/:id
func (h *Handlers) GetClaim(c *gin.Context) {
	claim, err := h.claims.GetClaim(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, toClaimResponse(claim))
}

// ListClaims handles GET /claims?customerId=
func (h *Handlers) ListClaims(c *gin.Context) {
	customerID := strings.TrimSpace(c.Query("customerId"))
	if customerID == "" {
		writeError(c, badRequest("customerId query parameter is required"), "")
		return
	}

	claims, err := h.claims.ListForCustomer(c.Request.Context(), customerID)
	if err != nil {
		h.fail(c, err, nil)
		return
	}

	resp := make([]ClaimResponse, 0, len(claims))
	for _, claim := range claims {
		resp = append(resp, toClaimResponse(claim))
	}
	c.JSON(http.StatusOK, resp)
}

// StartReview handles POST /claims/:id/review
func (h *Handlers) StartReview(c *gin.Context) {
	claim, err := h.claims.StartReview(c.Request.Context(), c.Param("id"))
	h.respond(c, claim, err)
}

// ApproveClaim handles POST /claims/:id/approve
func (h *Handlers) ApproveClaim(c *gin.Context) {
	var req ApproveClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, badRequest("%v", err), "")
		return
	}

	if err := utils.ValidateText("reason", req.Reason); err != nil {
		writeError(c, badRequest("%v", err), "")
		return
	}

	var amount *decimal.Decimal
	if req.ApprovedAmount != nil {
		d, err := parseAmount("approvedAmount", *req.ApprovedAmount)
		if err != nil {
			writeError(c, err, "")
			return
		}
		amount = &d
	}

	claim, err := h.claims.Approve(c.Request.Context(), c.Param("id"), amount, utils.SanitizeString(req.Reason))
	h.respond(c, claim, err)
}

// RejectClaim handles POST /claims/:id/reject
func (h *Handlers) RejectClaim(c *gin.Context) {
	var req RejectClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, badRequest("reason is required"), "")
		return
	}
	reason := utils.SanitizeString(req.Reason)
	if reason == "" {
		writeError(c, badRequest("reason is required"), "")
		return
	}
	if err := utils.ValidateText("reason", reason); err != nil {
		writeError(c, badRequest("%v", err), "")
		return
	}

	claim, err := h.claims.Reject(c.Request.Context(), c.Param("id"), reason)
	h.respond(c, claim, err)
}

// PayoutClaim handles POST /claims/:id/paid-out
func (h *Handlers) PayoutClaim(c *gin.Context) {
	claim, err := h.claims.Payout(c.Request.Context(), c.Param("id"))
	h.respond(c, claim, err)
}

// GetValidation handles GET /claims/:id/validations
func (h *Handlers) GetValidation(c *gin.Context) {
	summary, err := h.claims.GetValidation(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, toValidationResponse(summary))
}

// GetHistory handles GET /claims/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	history, err := h.claims.GetHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, toHistoryResponse(history))
}

func (h *Handlers) respond(c *gin.Context, claim *entity.Claim, err error) {
	if err != nil {
		h.fail(c, err, claim)
		return
	}
	c.JSON(http.StatusOK, toClaimResponse(claim))
}

// fail writes the error body. A claim returned with a publish failure was
// stored, so its id travels with the error.
func (h *Handlers) fail(c *gin.Context, err error, claim *entity.Claim) {
	if toHTTPError(err).Code >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
	}

	claimID := ""
	if claim != nil && errors.Is(err, port.ErrPublishFailure) {
		claimID = claim.ID
		c.Header("Location", "/claims/"+claim.ID)
	}
	writeError(c, err, claimID)
}
