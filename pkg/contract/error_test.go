package contract

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestErrorStatusCode(t *testing.T) {
	testCases := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrorCodeInvalidTransition, fiber.StatusBadRequest},
		{ErrorCodeMissingPrerequisite, fiber.StatusBadRequest},
		{ErrorCodeValidationFailed, fiber.StatusBadRequest},
		{ErrorCodeAlreadyFinalized, fiber.StatusBadRequest},
		{ErrorCodeDatasetNotFound, fiber.StatusNotFound},
		{ErrorCodeReleaseNotFound, fiber.StatusNotFound},
		{ErrorCodeGenomeNotFound, fiber.StatusNotFound},
		{ErrorCodeResourceAlreadyExists, fiber.StatusConflict},
		{ErrorCodeHierarchyViolation, fiber.StatusUnprocessableEntity},
		{ErrorCodeInternalError, fiber.StatusInternalServerError},
	}

	for _, testCase := range testCases {
		t.Run(string(testCase.code), func(t *testing.T) {
			err := NewError(testCase.code, "boom")
			assert.Equal(t, testCase.expected, err.StatusCode())
		})
	}
}

func TestErrorIsMatchesOnCode(t *testing.T) {
	err := NewError(ErrorCodeDatasetNotFound, "no dataset with uuid=abc exists")
	wrapped := fmt.Errorf("lookup failed: %w", err)

	assert.True(t, errors.Is(wrapped, NewError(ErrorCodeDatasetNotFound, "")))
	assert.False(t, errors.Is(wrapped, NewError(ErrorCodeReleaseNotFound, "")))
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewErrorWith(ErrorCodeInternalError, "store unavailable", inner)

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "INTERNAL_ERROR")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNewValidationErrorCarriesDetails(t *testing.T) {
	details := []ValidationError{
		{DatasetUUID: "a", Reason: "genebuild dataset is Processing, expected Processed or Released"},
		{DatasetUUID: "b", Reason: "xrefs dataset is Submitted, expected Processed or Released"},
	}
	err := NewValidationError("pre-release validation failed", details)

	assert.Equal(t, ErrorCodeValidationFailed, err.Code)
	assert.Equal(t, details, err.Details)
}
