package rollout

import (
	"context"
	"log/slog"
)

// WorkloadKind is the port for one workload controller kind.
// Implementations are provided by adapters in the outbound layer.
type WorkloadKind interface {
	Kind() Kind

	// Handles reports whether obj is a definition of this kind.
	Handles(obj Object) bool

	// GetQuery returns nil and no error when the controller does not exist.
	GetQuery(
		ctx context.Context,
		namespace,
		name string,
	) (Object, error)

	ListQuery(
		ctx context.Context,
		namespace string,
		labels map[string]string,
	) ([]Object, error)

	CreateOrReplaceCommand(
		ctx context.Context,
		namespace string,
		definition Object,
	) (Object, error)

	ScaleCommand(
		ctx context.Context,
		namespace,
		name string,
		replicas int32,
	) error

	DeleteCommand(
		ctx context.Context,
		namespace,
		name string,
	) error

	PodCount(obj Object) (int, error)

	PodTemplate(obj Object) (*PodTemplate, error)
}

// Repository is the port interface for cluster operations.
type Repository interface {
	WorkloadKinds() []WorkloadKind

	ListPodsQuery(
		ctx context.Context,
		namespace string,
		labels map[string]string,
	) ([]Pod, error)

	ListEventsQuery(
		ctx context.Context,
		namespace string,
	) ([]Event, error)

	// GetVirtualServiceQuery returns nil and no error when the resource does not exist.
	GetVirtualServiceQuery(
		ctx context.Context,
		namespace,
		name string,
	) (*VirtualService, error)

	DeleteVirtualServiceCommand(
		ctx context.Context,
		namespace,
		name string,
	) error

	DeleteDestinationRuleCommand(
		ctx context.Context,
		namespace,
		name string,
	) error
}

// KeyValueStore is the port for a named string map resource.
type KeyValueStore interface {
	// GetQuery returns nil and no error when the resource does not exist.
	GetQuery(
		ctx context.Context,
		namespace,
		name string,
	) (map[string]string, error)

	CreateOrReplaceCommand(
		ctx context.Context,
		namespace,
		name string,
		data map[string]string,
	) error
}

// LogSink receives human-readable progress lines.
type LogSink interface {
	WriteLine(text string, level slog.Level)
}

// unauthorized is a private interface for checking HTTP 401 errors
// without importing the adapter package.
type unauthorized interface {
	IsUnauthorized()
}

// forbidden is a private interface for checking HTTP 403 errors.
type forbidden interface {
	IsForbidden()
}
