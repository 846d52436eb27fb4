package decision

import "errors"

// Validation failures. They are wrapped with detail, so compare with errors.Is.
var (
	ErrInvalidDistribution = errors.New("invalid distribution")
	ErrDimensionMismatch   = errors.New("dimension mismatch")
	ErrEmptyDecisionSet    = errors.New("empty decision set")
	ErrAmbiguousSelection  = errors.New("ambiguous selection")
	ErrInvalidLoss         = errors.New("invalid loss")
	ErrInvalidOptions      = errors.New("invalid options")
)

// IsSelectionError reports whether err is one of the selector's own failures
// rather than an I/O or transport error around it.
func IsSelectionError(err error) bool {
	for _, kind := range []error{
		ErrInvalidDistribution, ErrDimensionMismatch, ErrEmptyDecisionSet,
		ErrAmbiguousSelection, ErrInvalidLoss, ErrInvalidOptions,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
