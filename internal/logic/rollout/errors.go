package rollout

import "errors"

var (
	ErrInvalidCredential    = errors.New("invalid credentials")
	ErrAccessDenied         = errors.New("access denied")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrWaitTimedOut         = errors.New("timed out waiting for pods to be ready")
	ErrControllerLookup     = errors.New("get controller")
	ErrSaveReleaseHistory   = errors.New("failed to save release history")
)
