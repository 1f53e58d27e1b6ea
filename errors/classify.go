package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// Error codes the AWS services this program talks to are known to return.
const (
	CodeThrottling       = "ThrottlingException"
	CodeValidation       = "ValidationException"
	CodeAccessDenied     = "AccessDeniedException"
	CodeResourceNotFound = "ResourceNotFoundException"
	CodeNoSuchEntity     = "NoSuchEntity"
)

// ServiceError is a remote failure classified by its service error code.
// It replaces inspect-the-exception control flow with an explicit type:
// callers branch on Code (or the helpers below) instead of string-matching
// raw errors.
type ServiceError struct {
	Code    string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Throttled reports whether the service asked the caller to slow down.
func (e *ServiceError) Throttled() bool {
	return e.Code == CodeThrottling
}

// NotFound reports whether the service could not find the referenced
// resource or entity.
func (e *ServiceError) NotFound() bool {
	return e.Code == CodeResourceNotFound || e.Code == CodeNoSuchEntity
}

// Classify inspects err for a modeled AWS service error. It returns the
// classified form and true when the service responded with an error code,
// or nil and false for local and transport-level failures.
func Classify(err error) (*ServiceError, bool) {
	var api smithy.APIError
	if stderrors.As(err, &api) {
		return &ServiceError{Code: api.ErrorCode(), Message: api.ErrorMessage()}, true
	}
	return nil, false
}

// AsServiceError unwraps err to a *ServiceError if one is in its chain.
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}
