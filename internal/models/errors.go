package models

import "errors"

// ErrorKind classifies failures surfaced to the user.
type ErrorKind string

const (
	KindNoFileSelected       ErrorKind = "NoFileSelected"
	KindLocalReadFailure     ErrorKind = "LocalReadFailure"
	KindValidation           ErrorKind = "ValidationError"
	KindNetworkFailure       ErrorKind = "NetworkFailure"
	KindBackend              ErrorKind = "BackendError"
	KindClipboardUnavailable ErrorKind = "ClipboardUnavailable"
	KindClipboardWriteFailed ErrorKind = "ClipboardWriteFailed"
	KindShareUnavailable     ErrorKind = "ShareUnavailable"
	KindShareFailed          ErrorKind = "ShareFailed"
)

// ErrorInfo is a user-facing error: Message is what gets shown, Err keeps the cause.
type ErrorInfo struct {
	Err     error
	Kind    ErrorKind
	Message string
}

// NewErrorInfo builds an ErrorInfo. Message falls back to the cause's text.
func NewErrorInfo(kind ErrorKind, message string, cause error) *ErrorInfo {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &ErrorInfo{Kind: kind, Message: message, Err: cause}
}

func (e *ErrorInfo) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *ErrorInfo) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the ErrorKind carried by err, or "" when err holds no ErrorInfo.
func KindOf(err error) ErrorKind {
	var info *ErrorInfo
	if errors.As(err, &info) {
		return info.Kind
	}
	return ""
}
