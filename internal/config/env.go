package config

import "time"

// Env key constants. All configuration env vars use ROLLOUT_ prefix;
// duration values support explicit units (e.g. 5m, 40s, 2h).

// Path to kubeconfig file. If unset, KUBECONFIG is used as fallback.
const envKeyKubeConfig = "ROLLOUT_KUBECONFIG"

// Kubernetes API server URL. If unset, KUBERNETES_MASTER is used as fallback.
const envKeyKubeMaster = "ROLLOUT_KUBE_MASTER"

// Log level: debug, info, warn, error.
const envKeyLogLevel = "ROLLOUT_LOG_LEVEL"

// Log format: json or text.
const envKeyLogFormat = "ROLLOUT_LOG_FORMAT"

// Port for health/readiness HTTP server.
const envKeyHTTPPort = "ROLLOUT_HTTP_PORT"

// Port for Prometheus metrics (GET /metrics).
const envKeyMetricsPort = "ROLLOUT_METRICS_PORT"

// Namespace of the workload. If unset, POD_NAMESPACE and then "default" are used.
const envKeyNamespace = "ROLLOUT_NAMESPACE"

// Cluster name shown in narration only.
const envKeyClusterName = "ROLLOUT_CLUSTER_NAME"

// Operation to run: scale, wait-ready, wait-stop, apply, delete, list, traffic,
// history-fetch, history-save, active-services.
const envKeyOperation = "ROLLOUT_OPERATION"

// Target controller name, e.g. myapp-canary-2.
const envKeyControllerName = "ROLLOUT_CONTROLLER_NAME"

// Replica counts. -1 as desired count follows the live controller count.
const (
	envKeyPreviousCount = "ROLLOUT_PREVIOUS_COUNT"
	envKeyDesiredCount  = "ROLLOUT_DESIRED_COUNT"
)

// Treat the controller as unversioned, so liveness gates always run.
const envKeyNotVersioned = "ROLLOUT_NOT_VERSIONED"

// Label selector (k=v,k2=v2) for wait-stop and list.
const envKeyLabelSelector = "ROLLOUT_LABEL_SELECTOR"

// Image repository prefix for active-services, e.g. registry.example.com/myapp.
const envKeyImagePrefix = "ROLLOUT_IMAGE_PREFIX"

// Release history settings.
const (
	envKeyReleaseName           = "ROLLOUT_RELEASE_NAME"
	envKeyReleaseHistoryBackend = "ROLLOUT_RELEASE_HISTORY_BACKEND"
	envKeyReleaseHistoryFile    = "ROLLOUT_RELEASE_HISTORY_FILE"
)

// Path to a YAML or JSON controller manifest for apply.
const envKeyManifestFile = "ROLLOUT_MANIFEST_FILE"

// Overall steady state wait. Units: s, m, h (e.g. 10m).
const (
	envKeySteadyStateTimeout = "ROLLOUT_STEADY_STATE_TIMEOUT"
	envMinSteadyStateTimeout = time.Second
)

// How long a controller lookup keeps retrying when every kind fails.
const (
	envKeyControllerLookupTimeout = "ROLLOUT_CONTROLLER_LOOKUP_TIMEOUT"
	envMinControllerLookupTimeout = time.Second
)

// Poll intervals of the convergence gates and the stop wait. Units: ms, s, m.
const (
	envKeyCountPollInterval   = "ROLLOUT_COUNT_POLL_INTERVAL"
	envKeyImagesPollInterval  = "ROLLOUT_IMAGES_POLL_INTERVAL"
	envKeyRunningPollInterval = "ROLLOUT_RUNNING_POLL_INTERVAL"
	envKeySteadyPollInterval  = "ROLLOUT_STEADY_POLL_INTERVAL"
	envKeyStopPollInterval    = "ROLLOUT_STOP_POLL_INTERVAL"
	envMinPollInterval        = 100 * time.Millisecond
)

// Standard k8s env keys used as fallback when ROLLOUT_* are unset.
const (
	envKeyKubeConfigFallback = "KUBECONFIG"
	envKeyKubeMasterFallback = "KUBERNETES_MASTER"
	envKeyNamespaceFallback  = "POD_NAMESPACE"
)
