package grpc

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/garyjia/claims-service/internal/application/port"
	"github.com/garyjia/claims-service/internal/domain/entity"
)

// codeFor maps an application error kind onto a gRPC status code
func codeFor(err error) codes.Code {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, entity.ErrInvalidState):
		return codes.FailedPrecondition
	case errors.Is(err, entity.ErrConflict):
		return codes.Aborted
	case errors.Is(err, entity.ErrInvalidArgument):
		return codes.InvalidArgument
	case errors.Is(err, port.ErrPublishFailure):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// toStatus converts err into a status error. A claim returned with a
// publish failure was stored, so its id travels in the message.
func toStatus(err error, claim *entity.Claim) error {
	code := codeFor(err)
	switch {
	case code == codes.Unavailable && claim != nil:
		return status.Errorf(code, "claim %s stored but its event was not published: %v", claim.ID, err)
	case code == codes.Internal:
		return status.Error(code, "an unexpected error occurred")
	default:
		return status.Error(code, err.Error())
	}
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{entity.ErrInvalidArgument}, args...)...)
}
