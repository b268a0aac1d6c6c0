package k8s

import (
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// UnauthorizedError is returned when the cluster rejects the credentials (HTTP 401).
type UnauthorizedError struct {
	Op  string
	Err error
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("%s: unauthorized: %v", e.Op, e.Err)
}

func (e *UnauthorizedError) Unwrap() error {
	return e.Err
}

func (e *UnauthorizedError) IsUnauthorized() {}

// ForbiddenError is returned when the credentials lack a permission (HTTP 403).
type ForbiddenError struct {
	Op  string
	Err error
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s: forbidden: %v", e.Op, e.Err)
}

func (e *ForbiddenError) Unwrap() error {
	return e.Err
}

func (e *ForbiddenError) IsForbidden() {}

// wrapAPIError classifies an API error so the logic layer can tell auth failures apart.
func wrapAPIError(op string, err error) error {
	switch {
	case apierrors.IsUnauthorized(err):
		return &UnauthorizedError{Op: op, Err: err}
	case apierrors.IsForbidden(err):
		return &ForbiddenError{Op: op, Err: err}
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
