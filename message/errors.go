package message

import "fmt"

type ErrorCode string

const (
	MSG_ERR_PARSE         ErrorCode = "MSG_ERR_PARSE"
	MSG_ERR_VERSION       ErrorCode = "MSG_ERR_VERSION"
	MSG_ERR_BODY_TOO_LONG ErrorCode = "MSG_ERR_BODY_TOO_LONG"
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

func msgerr(code ErrorCode, msg string) error {
	return &Error{Code: code, Msg: msg}
}

// CodeOf returns the code carried by err, or "" for foreign errors.
func CodeOf(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
