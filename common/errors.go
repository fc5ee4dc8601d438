package common

import (
	"encoding/json"
	"reflect"

	"github.com/JeffreyRichter/enum/enum"
	"github.com/pkg/errors"
)

// EErrorCode is the receiver for the ErrorCode enum.
var EErrorCode = ErrorCode(0)

type ErrorCode int32

func (ErrorCode) None() ErrorCode                      { return ErrorCode(0) }
func (ErrorCode) NetworkUnreachable() ErrorCode        { return ErrorCode(1) }
func (ErrorCode) TransportFailure() ErrorCode           { return ErrorCode(2) }
func (ErrorCode) AuthenticationFailure() ErrorCode      { return ErrorCode(3) }
func (ErrorCode) ClientRestorationFailure() ErrorCode   { return ErrorCode(4) }
func (ErrorCode) DecompositionFailure() ErrorCode       { return ErrorCode(5) }
func (ErrorCode) PersistenceFailure() ErrorCode         { return ErrorCode(6) }
func (ErrorCode) Canceled() ErrorCode                   { return ErrorCode(7) }
func (ErrorCode) InvalidState() ErrorCode               { return ErrorCode(8) }

func (c ErrorCode) String() string {
	return enum.StringInt(c, reflect.TypeOf(c))
}

func (c *ErrorCode) Parse(str string) error {
	val, err := enum.ParseInt(reflect.TypeOf(c), str, true, true)
	if err == nil {
		*c = val.(ErrorCode)
	}
	return err
}

func (c ErrorCode) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ErrorCode) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	return c.Parse(str)
}

// TransferError is the error type recorded on a BlobTransfer/BlockTransfer and
// reported to the delegate. It carries a code from the taxonomy plus the
// wrapped cause (via github.com/pkg/errors, so %+v on its Cause() prints the
// stack captured where the TransferError was created).
type TransferError struct {
	Code    ErrorCode
	Message string
	cause   error
}

func NewTransferError(code ErrorCode, message string, cause error) *TransferError {
	return &TransferError{Code: code, Message: message, cause: errors.WithStack(cause)}
}

func (e *TransferError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *TransferError) Cause() error { return e.cause }
func (e *TransferError) Unwrap() error { return e.cause }

// Retryable reports whether statusCode is one this package treats as
// transient and worth retrying with backoff.
func Retryable(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsTerminalErrorCode reports whether code represents an outcome that is
// never itself surfaced as a transfer failure: Canceled and InvalidState
// describe how a transfer ended, not why it failed.
func IsTerminalErrorCode(code ErrorCode) bool {
	return code == EErrorCode.Canceled() || code == EErrorCode.InvalidState()
}
