package mailbox

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	MBX_ERR_ALREADY_INITIALIZED ErrorCode = "MBX_ERR_ALREADY_INITIALIZED"
	MBX_ERR_NOT_INITIALIZED     ErrorCode = "MBX_ERR_NOT_INITIALIZED"
	MBX_ERR_INVALID_MESSAGE     ErrorCode = "MBX_ERR_INVALID_MESSAGE"
	MBX_ERR_WRONG_DESTINATION   ErrorCode = "MBX_ERR_WRONG_DESTINATION"
	MBX_ERR_ALREADY_DELIVERED   ErrorCode = "MBX_ERR_ALREADY_DELIVERED"
	MBX_ERR_ISM_REJECTED        ErrorCode = "MBX_ERR_ISM_REJECTED"
	MBX_ERR_UNKNOWN_RECIPIENT   ErrorCode = "MBX_ERR_UNKNOWN_RECIPIENT"
	MBX_ERR_UNAUTHORIZED        ErrorCode = "MBX_ERR_UNAUTHORIZED"
	MBX_ERR_STATE               ErrorCode = "MBX_ERR_STATE"
	MBX_ERR_TREE_FULL           ErrorCode = "MBX_ERR_TREE_FULL"
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

func mbxerr(code ErrorCode, msg string) error {
	return &Error{Code: code, Msg: msg}
}

func mbxwrap(code ErrorCode, err error) error {
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
