package rollout

import "time"

const (
	// ReleaseHistoryKey is the data key holding the release history blob.
	ReleaseHistoryKey = "releaseHistory"

	// DefaultSteadyStateTimeout applies when a request carries no positive timeout.
	DefaultSteadyStateTimeout = 10 * time.Minute

	// UnlimitedReplicas asks the waiter to follow the live controller replica count.
	UnlimitedReplicas = -1

	revisionSeparator = "-"

	phaseRunning   = "Running"
	phaseFailed    = "Failed"
	phaseSucceeded = "Succeeded"

	conditionTrue = "True"

	// shortContainerIDLen matches the id length shown by container runtimes.
	shortContainerIDLen = 12

	noImage = "none"
)

// Default poll intervals between waiter ticks.
const (
	defaultControllerRetryInterval = time.Second
	defaultControllerLookupTimeout = 2 * time.Minute
	defaultCountPollInterval       = 5 * time.Second
	defaultImagesPollInterval      = 5 * time.Second
	defaultRunningPollInterval     = 10 * time.Second
	defaultSteadyPollInterval      = 15 * time.Second
	defaultTickErrorInterval       = 15 * time.Second
	defaultStopPollInterval        = 5 * time.Second
)

// Gate names reported to metrics.
const (
	gateCount   = "count"
	gateImages  = "images"
	gateRunning = "running"
	gateSteady  = "steady"
)

// trackQualifiers are the name suffixes of a release track that shares the routing
// resource of its base service.
var trackQualifiers = []string{"canary", "stable", "primary", "blue", "green"}
