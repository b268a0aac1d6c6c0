package appstate

import (
	"time"
)

// healthChecker is an internal interface for health checking
type healthChecker interface {
	IsHealthy() bool
}

// readyChecker is an internal interface for readiness checking
type readyChecker interface {
	IsReady() bool
}

// statusGetter is an internal interface for getting the application status
type statusGetter interface {
	GetState() State
	GetUptime() time.Duration
	GetStartTime() time.Time
	GetJob() Job
}
