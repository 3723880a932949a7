package arm64

import "fmt"

// InvalidRegisterError reports an operand string that does not name a
// register this encoder accepts.
type InvalidRegisterError struct{ Text string }

// Error implements error.
func (e *InvalidRegisterError) Error() string {
	return fmt.Sprintf("invalid register '%s'", e.Text)
}

// MismatchedWidthsError reports operands that disagree on width (mixing X
// and W, or D and S).
type MismatchedWidthsError struct{ Context string }

// Error implements error.
func (e *MismatchedWidthsError) Error() string {
	return fmt.Sprintf("mismatched operand widths: %s", e.Context)
}

// InvalidImmediateError reports an immediate outside the instruction's
// encodable range or alignment. Encoders always validate; none truncate.
type InvalidImmediateError struct {
	Value  int64
	Reason string
}

// Error implements error.
func (e *InvalidImmediateError) Error() string {
	return fmt.Sprintf("invalid immediate %d: %s", e.Value, e.Reason)
}

// InvalidShiftError reports a shift amount the instruction form cannot
// encode.
type InvalidShiftError struct {
	Amount  int
	Allowed string
}

// Error implements error.
func (e *InvalidShiftError) Error() string {
	return fmt.Sprintf("invalid shift amount %d: allowed %s", e.Amount, e.Allowed)
}
