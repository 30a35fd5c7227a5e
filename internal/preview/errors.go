package preview

import "errors"

// Error kinds surfaced by the pipeline. The Converter facade guarantees that
// every failure leaving the package matches exactly one of these via
// errors.Is; callers map them to transport status codes.
var (
	// ErrInvalidInput marks requests rejected before any engine ran:
	// empty buffer, buffer over the input size limit, or a filename with
	// no usable extension.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFormat marks files that need conversion but no engine
	// or preprocessor on this host can handle.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrConversionFailed marks well-formed-looking input the engine or
	// tool rejected (corrupt data, unexpected structure).
	ErrConversionFailed = errors.New("image conversion failed")

	// ErrTimeout marks a preprocessor subprocess that exceeded its wall
	// clock bound and was killed. Callers treat it like ErrConversionFailed;
	// it exists as a distinct kind for operational monitoring.
	ErrTimeout = errors.New("image conversion timed out")

	// ErrNoPreprocessor is the registry-level failure when every candidate
	// for a token probed unavailable. The facade re-expresses it as
	// ErrUnsupportedFormat before it leaves the package.
	ErrNoPreprocessor = errors.New("no preprocessor available")
)

// ConvertError carries an error kind together with diagnostic detail that is
// safe to log but must never reach end users (tool stderr can leak host
// paths and tool internals).
type ConvertError struct {
	kind   error
	msg    string
	detail string
	cause  error
}

func newConvertError(kind error, msg, detail string, cause error) *ConvertError {
	if msg == "" {
		msg = kind.Error()
	}
	return &ConvertError{kind: kind, msg: msg, detail: detail, cause: cause}
}

func invalidInputErr(msg string) *ConvertError {
	return newConvertError(ErrInvalidInput, msg, "", nil)
}

func unsupportedErr(msg string, cause error) *ConvertError {
	return newConvertError(ErrUnsupportedFormat, msg, "", cause)
}

func conversionFailedErr(msg, detail string, cause error) *ConvertError {
	return newConvertError(ErrConversionFailed, msg, detail, cause)
}

func timeoutErr(msg, detail string, cause error) *ConvertError {
	return newConvertError(ErrTimeout, msg, detail, cause)
}

// Error returns the user-safe message only.
func (e *ConvertError) Error() string {
	return e.msg
}

// Is matches the error against its kind so errors.Is(err, preview.ErrTimeout)
// and friends work without exposing concrete types.
func (e *ConvertError) Is(target error) bool {
	return target == e.kind
}

// Unwrap returns the underlying cause, if any.
func (e *ConvertError) Unwrap() error {
	return e.cause
}

// Kind returns the sentinel this error matches.
func (e *ConvertError) Kind() error {
	return e.kind
}

// Detail returns internal diagnostic output (tool stderr, engine message).
// Log it; never return it to clients.
func (e *ConvertError) Detail() string {
	return e.detail
}
