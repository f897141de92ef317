package igp

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	IGP_ERR_NOT_INITIALIZED      ErrorCode = "IGP_ERR_NOT_INITIALIZED"
	IGP_ERR_ALREADY_INITIALIZED  ErrorCode = "IGP_ERR_ALREADY_INITIALIZED"
	IGP_ERR_NO_ORACLE            ErrorCode = "IGP_ERR_NO_ORACLE"
	IGP_ERR_DUST_PAYMENT         ErrorCode = "IGP_ERR_DUST_PAYMENT"
	IGP_ERR_INSUFFICIENT_PAYMENT ErrorCode = "IGP_ERR_INSUFFICIENT_PAYMENT"
	IGP_ERR_UNAUTHORIZED         ErrorCode = "IGP_ERR_UNAUTHORIZED"
	IGP_ERR_INSUFFICIENT_BALANCE ErrorCode = "IGP_ERR_INSUFFICIENT_BALANCE"
	IGP_ERR_NO_PENDING_REFUND    ErrorCode = "IGP_ERR_NO_PENDING_REFUND"
	IGP_ERR_QUOTE_OVERFLOW       ErrorCode = "IGP_ERR_QUOTE_OVERFLOW"
	IGP_ERR_STATE                ErrorCode = "IGP_ERR_STATE"
)

type Error struct {
	Code ErrorCode
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Msg == "" && e.Err == nil:
		return string(e.Code)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Code, e.Msg)
	case e.Msg == "":
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func igperr(code ErrorCode, msg string) error {
	return &Error{Code: code, Msg: msg}
}

func igpwrap(code ErrorCode, err error) error {
	return &Error{Code: code, Err: err}
}

// CodeOf returns the code carried by err, or "" for foreign errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
