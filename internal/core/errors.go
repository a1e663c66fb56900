package core

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error. The set is closed; adapters switch on it
// to choose a transport status.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindVerification
	KindNotFound
	KindContention
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindVerification:
		return "verification"
	case KindNotFound:
		return "not_found"
	case KindContention:
		return "contention"
	default:
		return "internal"
	}
}

// Code is the specific outcome within a Kind.
type Code string

const (
	CodeInvalidInput               Code = "INVALID_INPUT"
	CodeWarehouseNotFound          Code = "WAREHOUSE_NOT_FOUND"
	CodeBinNotFound                Code = "BIN_NOT_FOUND"
	CodeShipmentNotFound           Code = "SHIPMENT_NOT_FOUND"
	CodeWrongWarehouse             Code = "WRONG_WAREHOUSE"
	CodeCapacityExceeded           Code = "CAPACITY_EXCEEDED"
	CodeAlreadyOccupyingAnotherBin Code = "ALREADY_OCCUPYING_ANOTHER_BIN"
	CodeAlreadyProcessed           Code = "ALREADY_PROCESSED"
	CodeAlreadyPicked              Code = "ALREADY_PICKED"
	CodeAssignedToOther            Code = "ASSIGNED_TO_OTHER"
	CodeNotStored                  Code = "NOT_STORED"
	CodeBinUnavailable             Code = "BIN_UNAVAILABLE"
	CodeNoPickedPackages           Code = "NO_PICKED_PACKAGES"
	CodeNoOperators                Code = "NO_OPERATORS"
	CodeUnknownOperator            Code = "UNKNOWN_OPERATOR"
	CodeMismatch                   Code = "MISMATCH"
	CodeContention                 Code = "CONTENTION"
	CodeInternal                   Code = "INTERNAL_ERROR"
)

// Error is the tagged error returned by every engine operation.
type Error struct {
	Kind    Kind
	Code    Code
	Field   string // offending input field, validation errors only
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same Code, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Code == "" {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is. Returned errors carry richer messages.
var (
	ErrInvalidInput               = &Error{Kind: KindValidation, Code: CodeInvalidInput, Message: "invalid input"}
	ErrWarehouseNotFound          = &Error{Kind: KindNotFound, Code: CodeWarehouseNotFound, Message: "warehouse not found"}
	ErrBinNotFound                = &Error{Kind: KindNotFound, Code: CodeBinNotFound, Message: "bin not found"}
	ErrShipmentNotFound           = &Error{Kind: KindNotFound, Code: CodeShipmentNotFound, Message: "shipment not found"}
	ErrWrongWarehouse             = &Error{Kind: KindValidation, Code: CodeWrongWarehouse, Message: "bin belongs to another warehouse"}
	ErrCapacityExceeded           = &Error{Kind: KindConflict, Code: CodeCapacityExceeded, Message: "bin capacity exceeded"}
	ErrAlreadyOccupyingAnotherBin = &Error{Kind: KindConflict, Code: CodeAlreadyOccupyingAnotherBin, Message: "shipment already occupies another bin"}
	ErrAlreadyProcessed           = &Error{Kind: KindConflict, Code: CodeAlreadyProcessed, Message: "shipment already processed"}
	ErrAlreadyPicked              = &Error{Kind: KindConflict, Code: CodeAlreadyPicked, Message: "shipment already picked"}
	ErrAssignedToOther            = &Error{Kind: KindConflict, Code: CodeAssignedToOther, Message: "shipment assigned to another operator"}
	ErrNotStored                  = &Error{Kind: KindConflict, Code: CodeNotStored, Message: "shipment is not stored in a bin"}
	ErrBinUnavailable             = &Error{Kind: KindConflict, Code: CodeBinUnavailable, Message: "bin is unavailable"}
	ErrNoPickedPackages           = &Error{Kind: KindConflict, Code: CodeNoPickedPackages, Message: "no picked packages in bin"}
	ErrNoOperators                = &Error{Kind: KindConflict, Code: CodeNoOperators, Message: "no eligible operators"}
	ErrUnknownOperator            = &Error{Kind: KindNotFound, Code: CodeUnknownOperator, Message: "unknown operator"}
	ErrMismatch                   = &Error{Kind: KindVerification, Code: CodeMismatch, Message: "scanned identifier does not match"}
	ErrContention                 = &Error{Kind: KindContention, Code: CodeContention, Message: "store contention"}
)

func newError(sentinel *Error, format string, args ...any) *Error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Message: fmt.Sprintf(format, args...)}
}

func invalid(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidInput, Field: field, Message: fmt.Sprintf(format, args...)}
}

// BinNotFound is returned by stores when no bin has the given code.
func BinNotFound(code string) error {
	return newError(ErrBinNotFound, "bin %s not found", code)
}

// ShipmentNotFound is returned by stores when the tracking ID is unknown in the warehouse.
func ShipmentNotFound(warehouseID, trackingID string) error {
	return newError(ErrShipmentNotFound, "shipment %s not found in warehouse %s", trackingID, warehouseID)
}

// WarehouseNotFound is returned by stores when the warehouse does not exist.
func WarehouseNotFound(id string) error {
	return newError(ErrWarehouseNotFound, "warehouse %s not found", id)
}

// InvalidInput tags an adapter-level parse failure of field as a validation error.
func InvalidInput(field string, err error) error {
	return &Error{Kind: KindValidation, Code: CodeInvalidInput, Field: field, Message: "invalid " + field, Err: err}
}

// Contention wraps a transient store failure (lock timeout, serialization
// failure, deadlock) that the caller may retry.
func Contention(op string, err error) error {
	return &Error{Kind: KindContention, Code: CodeContention, Message: op, Err: err}
}

// Mismatch reports a scan that does not match the declared identifier.
func Mismatch(field, expected, scanned string) error {
	return &Error{
		Kind:    KindVerification,
		Code:    CodeMismatch,
		Field:   field,
		Message: fmt.Sprintf("scanned %s does not match expected %s", scanned, expected),
	}
}

// KindOf returns the Kind of err, or KindInternal for untagged errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the Code of err, or CodeInternal for untagged errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// FieldOf returns the offending field of a validation or verification error.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}

// IsRetryable reports whether err is transient store contention.
// Business outcomes are terminal and never retryable.
func IsRetryable(err error) bool {
	return KindOf(err) == KindContention
}
