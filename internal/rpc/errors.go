package rpc

import (
	"errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/danielpatrickdp/lossgate/internal/decision"
)

const errorDomain = "lossgate.v1"

// #region reasons
var reasons = []struct {
	reason string
	code   codes.Code
	err    error
}{
	{"INVALID_DISTRIBUTION", codes.InvalidArgument, decision.ErrInvalidDistribution},
	{"DIMENSION_MISMATCH", codes.InvalidArgument, decision.ErrDimensionMismatch},
	{"EMPTY_DECISION_SET", codes.InvalidArgument, decision.ErrEmptyDecisionSet},
	{"INVALID_LOSS", codes.InvalidArgument, decision.ErrInvalidLoss},
	{"INVALID_OPTIONS", codes.InvalidArgument, decision.ErrInvalidOptions},
	{"MALFORMED_REQUEST", codes.InvalidArgument, ErrMalformedRequest},
	{"AMBIGUOUS_SELECTION", codes.FailedPrecondition, decision.ErrAmbiguousSelection},
}

// #endregion reasons

// #region to-status
// toStatus converts a selector error into a gRPC status error carrying an
// ErrorInfo reason. Unknown errors become Internal.
func toStatus(err error) error {
	for _, r := range reasons {
		if !errors.Is(err, r.err) {
			continue
		}
		st, derr := status.New(r.code, err.Error()).WithDetails(&errdetails.ErrorInfo{
			Reason: r.reason,
			Domain: errorDomain,
		})
		if derr != nil {
			return status.Error(r.code, err.Error())
		}
		return st.Err()
	}
	return status.Error(codes.Internal, err.Error())
}

// #endregion to-status

// #region from-status
// remoteError keeps the server's message while unwrapping to the sentinel.
type remoteError struct {
	kind error
	msg  string
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.kind }

// fromStatus restores the sentinel error named by the status details, so
// errors.Is works on the client side. Other errors are returned wrapped.
func fromStatus(method string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%s rpc: %w", method, err)
	}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != errorDomain {
			continue
		}
		for _, r := range reasons {
			if r.reason == info.GetReason() {
				return fmt.Errorf("%s rpc: %w", method, &remoteError{kind: r.err, msg: st.Message()})
			}
		}
	}
	return fmt.Errorf("%s rpc: %w", method, err)
}

// #endregion from-status
