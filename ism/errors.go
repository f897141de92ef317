package ism

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ISM_ERR_BAD_SET           ErrorCode = "ISM_ERR_BAD_SET"
	ISM_ERR_METADATA          ErrorCode = "ISM_ERR_METADATA"
	ISM_ERR_SIG_INVALID       ErrorCode = "ISM_ERR_SIG_INVALID"
	ISM_ERR_THRESHOLD_NOT_MET ErrorCode = "ISM_ERR_THRESHOLD_NOT_MET"
	ISM_ERR_NO_ROUTE          ErrorCode = "ISM_ERR_NO_ROUTE"
)

type Error struct {
	Code ErrorCode
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func ismerr(code ErrorCode, msg string) error {
	return &Error{Code: code, Msg: msg}
}

// CodeOf returns the code carried by err, or "" for foreign errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
