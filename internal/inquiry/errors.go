package inquiry

import (
	"errors"
	"strconv"
)

var (
	// ErrTransport covers network errors, non-2xx statuses and undecodable bodies.
	ErrTransport = errors.New("transport failure")
	// ErrRejected means the backend answered with a non-zero logical code.
	ErrRejected = errors.New("backend rejected request")
	// ErrPollTimeout means every poll attempt came back empty.
	ErrPollTimeout = errors.New("no result within attempt budget")
	// ErrNoIdentifier means a successful create carried no request id.
	ErrNoIdentifier = errors.New("no request identifier")
)

// RejectedError carries the backend's logical code and message.
type RejectedError struct {
	Op   string
	Code int
	Msg  string
}

func (e *RejectedError) Error() string {
	return e.Op + " rejected: code=" + strconv.Itoa(e.Code) + " msg=" + e.Msg
}

func (e *RejectedError) Unwrap() error { return ErrRejected }
