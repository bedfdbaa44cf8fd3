package domain

import (
	"net/http"

	"github.com/pkg/errors"
)

var (
	ErrPasteTooLarge  = NewErr("PASTE_TOO_LARGE", "paste too large", http.StatusRequestEntityTooLarge)
	ErrInvalidRequest = NewErr("INVALID_REQUEST", "invalid request", http.StatusBadRequest)
	ErrIngestAborted  = NewErr("INGEST_ABORTED", "request body aborted", http.StatusBadRequest)
	ErrPasteNotFound  = NewErr("PASTE_NOT_FOUND", "paste not found", http.StatusNotFound)
	ErrOverloaded     = NewErr("OVERLOADED", "server busy, try again later", http.StatusServiceUnavailable)
	ErrShuttingDown   = NewErr("SHUTTING_DOWN", "server shutting down", http.StatusServiceUnavailable)
	ErrSlugExhausted  = NewErr("SLUG_EXHAUSTED", "could not allocate a free slug", http.StatusServiceUnavailable)
	ErrStorage        = NewErr("STORAGE_ERROR", "storage error", http.StatusInternalServerError)
	ErrInternalServer = NewErr("INTERNAL_ERROR", "internal error", http.StatusInternalServerError)
)

type Err struct {
	Code   string `json:"code"`
	Msg    string `json:"message"`
	Status int    `json:"-"`
}

func (e *Err) Error() string { return e.Msg }
func NewErr(code, msg string, status int) *Err {
	return &Err{Code: code, Msg: msg, Status: status}
}

type ErrResp struct {
	Error ErrDetail `json:"error"`
}
type ErrDetail struct {
	Code string `json:"code"`
	Msg  string `json:"message"`
}

// find walks both pkg/errors causes and %w chains.
func find(err error) (*Err, bool) {
	var e *Err
	if errors.As(err, &e) {
		return e, true
	}
	if e, ok := errors.Cause(err).(*Err); ok {
		return e, true
	}
	return nil, false
}
func ToResp(err error) ErrResp {
	if e, ok := find(err); ok {
		return ErrResp{Error: ErrDetail{Code: e.Code, Msg: e.Msg}}
	}
	return ErrResp{Error: ErrDetail{Code: ErrInternalServer.Code, Msg: ErrInternalServer.Msg}}
}
func Status(err error) int {
	if e, ok := find(err); ok {
		return e.Status
	}
	return http.StatusInternalServerError
}
