package bizerror

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthenticated = errors.New("unauthenticated")

	ErrInvalidEvent         = errors.New("invalid event")
	ErrUnknownState         = errors.New("unknown state")
	ErrStatusTransition     = errors.New("invalid status transition")
	ErrMissingEntityID      = errors.New("entity id is required")
	ErrInvalidOrderBy       = errors.New("invalid orderBy")
	ErrDefinitionReferenced = errors.New("workflow definition is referenced")
	ErrLocked               = errors.New("resource is locked")
)

type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

type BizError interface {
	Respond() *BizErrorDetail
}

type BizErrorDetail struct {
	Status  int
	Code    string
	Message string

	Data  interface{}
	Cause error
}

type ErrBadParam struct {
	Cause error
}

func (e *ErrBadParam) Unwrap() error {
	return e.Cause
}
func (e *ErrBadParam) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "common.bad_param"
}
func (e *ErrBadParam) Respond() *BizErrorDetail {
	message := "common.bad_param"
	if e.Cause != nil {
		message = e.Cause.Error()
	}
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "common.bad_param", Message: message, Data: nil}
}

// ErrConflict is a uniqueness violation, it is surfaced as a bad request with its own message.
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}
func (e *ErrConflict) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "common.conflict", Message: e.Message}
}

var ErrNameInUse = &ErrConflict{Message: "Name already in use"}

type ErrInvalidFilterQuery struct {
	Cause error
}

func (e *ErrInvalidFilterQuery) Unwrap() error {
	return e.Cause
}
func (e *ErrInvalidFilterQuery) Error() string {
	return "invalid filter query: " + e.Cause.Error()
}
func (e *ErrInvalidFilterQuery) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "filter.invalid_query", Message: e.Error()}
}

// ErrUnsupportedFlowType is returned when an intent or flow type has no workflow definition mapped to it.
type ErrUnsupportedFlowType struct {
	Name string
}

func (e *ErrUnsupportedFlowType) Error() string {
	return e.Name + " is not supported"
}
func (e *ErrUnsupportedFlowType) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusNotFound, Code: "workflow.unsupported_flow_type", Message: e.Error()}
}
