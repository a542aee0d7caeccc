package contract

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// ErrorCode classifies every failure the registry surfaces to callers.
type ErrorCode string

const (
	// ErrorCodeInvalidTransition is returned when a status change violates a
	// precondition and force was not set. No mutation is applied.
	ErrorCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	// ErrorCodeMissingPrerequisite is an invalid transition caused by a
	// dependency or child dataset not being in a sufficient state; the
	// offending dataset UUIDs travel in Error.Details.
	ErrorCodeMissingPrerequisite ErrorCode = "MISSING_PREREQUISITE"
	// ErrorCodeHierarchyViolation signals a dataset attached to more or fewer
	// genomes than the single one the engine assumes. Fatal, not retried.
	ErrorCodeHierarchyViolation ErrorCode = "HIERARCHY_VIOLATION"
	ErrorCodeDatasetNotFound    ErrorCode = "DATASET_NOT_FOUND"
	ErrorCodeReleaseNotFound    ErrorCode = "RELEASE_NOT_FOUND"
	ErrorCodeGenomeNotFound     ErrorCode = "GENOME_NOT_FOUND"
	// ErrorCodeValidationFailed aggregates pre-release validation errors;
	// finalization aborts unless force.
	ErrorCodeValidationFailed ErrorCode = "PRE_RELEASE_VALIDATION_FAILED"
	// ErrorCodeAlreadyFinalized rejects finalizing a release that is already
	// Released without force.
	ErrorCodeAlreadyFinalized ErrorCode = "ALREADY_FINALIZED"

	ErrorCodeInvalidParameterValue ErrorCode = "INVALID_PARAMETER_VALUE"
	ErrorCodeResourceAlreadyExists ErrorCode = "RESOURCE_ALREADY_EXISTS"
	ErrorCodeBadRequest            ErrorCode = "BAD_REQUEST"
	ErrorCodeInternalError         ErrorCode = "INTERNAL_ERROR"
	ErrorCodeEndpointNotFound      ErrorCode = "ENDPOINT_NOT_FOUND"
)

// ValidationError names one dataset that fails a pre-release check.
type ValidationError struct {
	DatasetUUID string `json:"dataset_uuid"`
	Reason      string `json:"reason"`
}

func (v ValidationError) String() string {
	return fmt.Sprintf("%s: %s", v.DatasetUUID, v.Reason)
}

type Error struct {
	Code    ErrorCode         `json:"error_code"`
	Message string            `json:"message"`
	Details []ValidationError `json:"details,omitempty"`
	inner   error
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func NewErrorWith(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, inner: err}
}

// NewValidationError carries the aggregated list of per-dataset problems so
// the caller sees everything wrong in one pass.
func NewValidationError(message string, details []ValidationError) *Error {
	return &Error{Code: ErrorCodeValidationFailed, Message: message, Details: details}
}

func (e *Error) Error() string {
	if e.inner != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.inner)
	}

	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.inner
}

// Is makes errors.Is match on the error code alone.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)

	return ok && other.Code == e.Code
}

// StatusCode maps the error code onto an HTTP status for the wire surface.
func (e *Error) StatusCode() int {
	switch e.Code {
	case ErrorCodeInvalidTransition,
		ErrorCodeMissingPrerequisite,
		ErrorCodeAlreadyFinalized,
		ErrorCodeValidationFailed,
		ErrorCodeInvalidParameterValue,
		ErrorCodeBadRequest:
		return fiber.StatusBadRequest
	case ErrorCodeDatasetNotFound,
		ErrorCodeReleaseNotFound,
		ErrorCodeGenomeNotFound,
		ErrorCodeEndpointNotFound:
		return fiber.StatusNotFound
	case ErrorCodeResourceAlreadyExists:
		return fiber.StatusConflict
	case ErrorCodeHierarchyViolation:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}
