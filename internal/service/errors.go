package service

import (
	"errors"
	"fmt"
)

// Kind: класс исхода операции. Транспорт переводит его в свои коды.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindPreconditionRequired
	KindForbidden
	KindConflict
	KindValidation
	KindSecurityIncident
	KindUnauthorized
	KindLocked
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPreconditionRequired:
		return "precondition_required"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindSecurityIncident:
		return "security_incident"
	case KindUnauthorized:
		return "unauthorized"
	case KindLocked:
		return "locked"
	default:
		return "internal"
	}
}

// Error: доменный исход. Fields заполняется для ошибок валидации.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	// Reason уточняет Conflict: по нему транспорт выбирает код.
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Причины конфликтов.
const (
	ReasonCapacity       = "capacity"
	ReasonDuplicate      = "duplicate"
	ReasonFiscalYear     = "fiscal_year"
	ReasonDeadline       = "deadline"
	ReasonVersion        = "version"
	ReasonStaffIDTaken   = "staff_id_taken"
	ReasonRetryableStore = "retryable"
)

var (
	ErrCapacityReached     = &Error{Kind: KindConflict, Reason: ReasonCapacity, Message: "Slot capacity reached"}
	ErrDuplicateForSlot    = &Error{Kind: KindConflict, Reason: ReasonDuplicate, Message: "Duplicate reservation for this slot"}
	ErrAlreadyReservedFY   = &Error{Kind: KindConflict, Reason: ReasonFiscalYear, Message: "Already reserved for this fiscal year"}
	ErrDeadlinePassed      = &Error{Kind: KindConflict, Reason: ReasonDeadline, Message: "Cancellation deadline passed"}
	ErrVersionMismatch     = &Error{Kind: KindConflict, Reason: ReasonVersion, Message: "Version mismatch"}
	ErrSlotUnavailable     = &Error{Kind: KindForbidden, Message: "Slot is not available for booking"}
	ErrInvalidCredentials  = &Error{Kind: KindUnauthorized, Message: "Invalid credentials"}
	ErrInvalidRefreshToken = &Error{Kind: KindUnauthorized, Message: "Invalid refresh token"}
	ErrRefreshReuse        = &Error{Kind: KindSecurityIncident, Message: "Refresh token reuse detected"}
	ErrPinLocked           = &Error{Kind: KindLocked, Message: "PIN locked"}
	ErrAccountInactive     = &Error{Kind: KindForbidden, Message: "Account is not active"}
	ErrPinReauthRequired   = &Error{Kind: KindPreconditionRequired, Message: "PIN re-authentication required"}
	ErrPinMismatch         = &Error{Kind: KindPreconditionRequired, Message: "PIN mismatch"}
	ErrProfileIncomplete   = &Error{Kind: KindPreconditionRequired, Message: "Profile must be completed before booking"}
	ErrPinChangeRequired   = &Error{Kind: KindPreconditionRequired, Message: "PIN must be changed before booking"}
	ErrRetryable           = &Error{Kind: KindConflict, Reason: ReasonRetryableStore, Message: "Concurrent update, retry the request"}
)

func notFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func conflict(reason, msg string) *Error {
	return &Error{Kind: KindConflict, Reason: reason, Message: msg}
}

// validation собирает ошибки по полям.
type validation struct {
	fields map[string]string
}

func (v *validation) add(field, msg string) {
	if v.fields == nil {
		v.fields = make(map[string]string)
	}
	if _, exists := v.fields[field]; !exists {
		v.fields[field] = msg
	}
}

func (v *validation) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: v.fields}
}

func invalidField(field, msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: map[string]string{field: msg}}
}

// KindOf возвращает класс ошибки; всё, что не *Error, считается внутренней ошибкой.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ReasonOf: уточнение конфликта, если есть.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
