package domain

import (
	"context"
	"errors"
)

// Error is a coded domain error. Handlers render it as {code, message} and never expose the cause.
type Error struct {
	Code  *Code
	Msg   string
	cause error
}

func (e *Error) Error() string {
	msg := e.Message()
	if e.cause != nil {
		return msg + ": " + e.cause.Error()
	}
	return msg
}

// Message returns the client-facing message.
func (e *Error) Message() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Code.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error carrying the same code value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code.Value == e.Code.Value
}

// WithMessage returns a copy with a client-facing message override.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Msg: msg, cause: e.cause}
}

// Wrap returns a copy that records cause for logging.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Code: e.Code, Msg: e.Msg, cause: cause}
}

// Coded errors returned by the application services.
var (
	ErrParam           = CodeParamError.Err()
	ErrLoginRequired   = CodeLoginRequired.Err()
	ErrLoginExpired    = CodeLoginExpired.Err()
	ErrTokenInvalid    = CodeTokenInvalid.Err()
	ErrTooManyRequests = CodeTooManyRequests.Err()

	ErrUserNotFound       = CodeUserNotFound.Err()
	ErrUserAlreadyExists  = CodeUserAlreadyExists.Err()
	ErrUserDisabled       = CodeUserDisabled.Err()
	ErrPhoneAlreadyExists = CodePhoneAlreadyExists.Err()

	ErrCodeInvalid    = CodeVerifyCodeError.Err()
	ErrCodeExpired    = CodeVerifyCodeExpired.Err()
	ErrDeliveryFailed = CodeVerifyCodeSendFailed.Err()

	ErrFamilyNotFound            = CodeFamilyNotFound.Err()
	ErrFamilyMemberNotFound      = CodeFamilyMemberNotFound.Err()
	ErrFamilyMemberExists        = CodeFamilyMemberExists.Err()
	ErrFamilyMemberLimitExceeded = CodeFamilyMemberLimitExceeded.Err()
	ErrInvalidInviteCode         = CodeInvalidInviteCode.Err()
	ErrInviteCodeExpired         = CodeInviteCodeExpired.Err()
	ErrPermissionDenied          = CodePermissionDenied.Err()
	ErrCannotLeaveFamily         = CodeCannotLeaveFamily.Err()
	ErrAlreadyInOtherFamily      = CodeConflict.Err().WithMessage("请先退出当前家庭")

	ErrInvalidDueDate = CodeInvalidDueDate.Err()

	ErrNotificationNotFound = CodeNotificationNotFound.Err()

	ErrFileTypeNotSupported = CodeFileTypeNotSupported.Err()
	ErrFileSizeExceeded     = CodeFileSizeExceeded.Err()
	ErrFileUploadFailed     = CodeFileUploadFailed.Err()

	ErrSystem             = CodeSystemError.Err()
	ErrDatabase           = CodeDatabaseError.Err()
	ErrServiceUnavailable = CodeServiceUnavailable.Err()
)

// StoreFailure maps an unexpected storage error to a coded error. Coded errors pass through unchanged.
func StoreFailure(err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrServiceUnavailable.Wrap(err)
	}
	return ErrDatabase.Wrap(err)
}
