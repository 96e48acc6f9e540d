package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	goerrors "github.com/goliatone/go-errors"

	"github.com/garyjia/claims-service/internal/application/port"
	"github.com/garyjia/claims-service/internal/domain/entity"
)

// Text codes carried in error bodies
const (
	TextCodeClaimNotFound   = "CLAIM_NOT_FOUND"
	TextCodeInvalidState    = "CLAIM_INVALID_STATE"
	TextCodeConflict        = "CLAIM_CONFLICT"
	TextCodeBadInput        = "CLAIM_BAD_INPUT"
	TextCodeEventNotEmitted = "CLAIM_EVENT_NOT_PUBLISHED"
	TextCodeInternal        = "CLAIM_INTERNAL_ERROR"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
	TextCode  string    `json:"textCode"`
	// ClaimID is set when the claim was stored but its event was not published
	ClaimID string `json:"claimId,omitempty"`
}

// toHTTPError folds an application error into an envelope with status and text code
func toHTTPError(err error) *goerrors.Error {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return goerrors.Wrap(err, goerrors.CategoryNotFound, "Claim not found").
			WithCode(http.StatusNotFound).
			WithTextCode(TextCodeClaimNotFound)
	case errors.Is(err, entity.ErrInvalidState):
		return goerrors.Wrap(err, goerrors.CategoryConflict, "Claim is not in a state that allows this action").
			WithCode(http.StatusConflict).
			WithTextCode(TextCodeInvalidState)
	case errors.Is(err, entity.ErrConflict):
		return goerrors.Wrap(err, goerrors.CategoryConflict, "Claim was modified concurrently").
			WithCode(http.StatusConflict).
			WithTextCode(TextCodeConflict)
	case errors.Is(err, entity.ErrInvalidArgument):
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "Invalid request").
			WithCode(http.StatusBadRequest).
			WithTextCode(TextCodeBadInput)
	case errors.Is(err, port.ErrPublishFailure):
		return goerrors.Wrap(err, goerrors.CategoryExternal, "Claim event could not be published").
			WithCode(http.StatusBadGateway).
			WithTextCode(TextCodeEventNotEmitted)
	default:
		return goerrors.Wrap(err, goerrors.CategoryInternal, "Internal server error").
			WithCode(http.StatusInternalServerError).
			WithTextCode(TextCodeInternal)
	}
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{entity.ErrInvalidArgument}, args...)...)
}

// writeError renders err and aborts the request
func writeError(c *gin.Context, err error, claimID string) {
	rich := toHTTPError(err)
	status := rich.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}

	message := err.Error()
	if status >= http.StatusInternalServerError && !errors.Is(err, port.ErrPublishFailure) {
		message = "An unexpected error occurred"
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{
		Timestamp: time.Now().UTC(),
		Status:    status,
		Error:     rich.Message,
		Message:   message,
		Path:      c.Request.URL.Path,
		TextCode:  rich.TextCode,
		ClaimID:   claimID,
	})
}
