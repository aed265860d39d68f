package domain

import "errors"

// Kind classifies errors for translation at the API boundary.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindDuplicate
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindDuplicate:
		return "duplicate_resource"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	}
	return "internal"
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) error { return &Error{Kind: KindValidation, Msg: msg} }

func Internal(msg string, err error) error { return &Error{Kind: KindInternal, Msg: msg, Err: err} }

var (
	ErrDuplicateEmail     = &Error{Kind: KindDuplicate, Msg: "Email is already registered"}
	ErrInvalidCredentials = &Error{Kind: KindUnauthorized, Msg: "Invalid email or password"}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Msg: "Invalid or expired token"}
	ErrForbidden          = &Error{Kind: KindForbidden, Msg: "Insufficient permissions"}
	ErrDeactivated        = &Error{Kind: KindForbidden, Msg: "Account is deactivated"}
	ErrNotFound           = &Error{Kind: KindNotFound, Msg: "Resource not found"}
	ErrRateLimited        = &Error{Kind: KindRateLimited, Msg: "Too many attempts, please try again later"}
	ErrWrongPassword      = &Error{Kind: KindValidation, Msg: "Current password is incorrect"}
	ErrInvalidActionToken = &Error{Kind: KindValidation, Msg: "Token is invalid or has expired"}
)

// KindOf reports the Kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// PublicMessage returns the client-safe message of err.
func PublicMessage(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Kind != KindInternal {
		return de.Msg
	}
	return "Internal server error"
}
