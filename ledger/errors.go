package ledger

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	LEDGER_ERR_MISSING_UTXO       ErrorCode = "LEDGER_ERR_MISSING_UTXO"
	LEDGER_ERR_UTXO_CONTENTION    ErrorCode = "LEDGER_ERR_UTXO_CONTENTION"
	LEDGER_ERR_DUPLICATE_MINT     ErrorCode = "LEDGER_ERR_DUPLICATE_MINT"
	LEDGER_ERR_VALUE_CONSERVATION ErrorCode = "LEDGER_ERR_VALUE_CONSERVATION"
	LEDGER_ERR_DATUM              ErrorCode = "LEDGER_ERR_DATUM"
	LEDGER_ERR_TX_INVALID         ErrorCode = "LEDGER_ERR_TX_INVALID"
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

func lederr(code ErrorCode, msg string) error {
	return &Error{Code: code, Msg: msg}
}

// IsContention reports whether err (anywhere in its chain) is the
// lost-the-race-for-an-output rejection. It is the only error class a caller
// may retry unmodified after refreshing state.
func IsContention(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == LEDGER_ERR_UTXO_CONTENTION
	}
	return false
}

// CodeOf returns the code carried by err, or "" for foreign errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
