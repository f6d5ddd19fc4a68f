package selector

import (
	"errors"
	"fmt"

	"github.com/roach88/unitsel/internal/ir"
)

// ErrorKind is the category of a selector error.
type ErrorKind string

const (
	// KindConfiguration covers malformed or inconsistent configuration.
	KindConfiguration ErrorKind = "ConfigurationError"

	// KindInitialization wraps a candidate's own initialization failure.
	KindInitialization ErrorKind = "InitializationError"

	// KindBurntToast signals a broken internal invariant, i.e. a defect in
	// the build stage rather than a user input problem.
	KindBurntToast ErrorKind = "BurntToast"

	// KindPropertyNotSupported reports a state configuration the template's
	// property package cannot satisfy.
	KindPropertyNotSupported ErrorKind = "PropertyNotSupportedError"
)

// Error codes (E300-E399).
const (
	ErrCodeNoCandidates        = "E301" // empty unit_disjunct
	ErrCodeInvalidCandidate    = "E302" // nil or duplicate candidate
	ErrCodeRelocation          = "E303" // candidate could not be moved into its branch
	ErrCodeUnsupportedFlag     = "E304" // dynamic or has_holdup set
	ErrCodeMissingTemplate     = "E305" // unit_source/unit_sink missing or without a package
	ErrCodePortIndex           = "E306" // port indices not contiguous from 1
	ErrCodeAmbiguousMapping    = "E307" // fan-out list length neither 1 nor N
	ErrCodeBranchOutOfRange    = "E308" // single-element list at port index > N
	ErrCodeForeignPoint        = "E309" // point not on the branch's candidate
	ErrCodeUnmappedBranch      = "E310" // branch left without an inlet or outlet edge
	ErrCodeExpansion           = "E311" // edge expansion failed
	ErrCodeAlreadyBuilt        = "E312" // Build called twice
	ErrCodeNotBuilt            = "E313" // Initialize before Build
	ErrCodePropertyUnsupported = "E320" // property package rejected the port args
	ErrCodePortState           = "E321" // port state could not be built
	ErrCodeUnitInit            = "E330" // candidate Initialize failed
	ErrCodeMissingEdge         = "E340" // branch has no inlet/outlet edge at init time
	ErrCodeUnusable            = "E341" // selector used after a failed build/initialize
	ErrCodePropagation         = "E342" // inlet seeding failed
	ErrCodeGuess               = "E350" // port guess names an unknown port or variable
)

// Error is the error type returned by Build and Initialize.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string

	// Branch is the 1-based branch index, or 0 when not branch specific.
	Branch int

	// Port is the 1-based port index, or 0 when not port specific.
	Port int

	// Direction is set together with Port.
	Direction ir.Direction

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s [%s]: %s", e.Kind, e.Code, e.Message)
	switch {
	case e.Branch > 0 && e.Port > 0:
		msg += fmt.Sprintf(" (branch=%d, %s=%d)", e.Branch, e.Direction, e.Port)
	case e.Branch > 0:
		msg += fmt.Sprintf(" (branch=%d)", e.Branch)
	case e.Port > 0:
		msg += fmt.Sprintf(" (%s=%d)", e.Direction, e.Port)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func configError(code, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Code: code, Message: fmt.Sprintf(format, args...)}
}

func burntToast(code, format string, args ...any) *Error {
	return &Error{Kind: KindBurntToast, Code: code, Message: fmt.Sprintf(format, args...)}
}

func isKind(err error, kind ErrorKind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// IsConfigurationError reports whether err is a ConfigurationError.
// Uses errors.As to handle wrapped errors.
func IsConfigurationError(err error) bool {
	return isKind(err, KindConfiguration)
}

// IsInitializationError reports whether err is an InitializationError.
func IsInitializationError(err error) bool {
	return isKind(err, KindInitialization)
}

// IsBurntToast reports whether err signals a broken internal invariant.
func IsBurntToast(err error) bool {
	return isKind(err, KindBurntToast)
}

// IsPropertyNotSupported reports whether err is a PropertyNotSupportedError.
func IsPropertyNotSupported(err error) bool {
	return isKind(err, KindPropertyNotSupported)
}

// ErrorCode returns the code of a selector error, or "" for other errors.
func ErrorCode(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
