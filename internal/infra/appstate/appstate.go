package appstate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/skillcoder/rollout-verifier/internal/infra/logging"
	"github.com/skillcoder/rollout-verifier/internal/infra/shutdown"
)

// State represents the application state
type State string

const (
	// StateInit is the initial state when the application is created
	StateInit State = "init"

	// StateStarting is the state when the application is starting up
	StateStarting State = "starting"

	// StateRunning is the state when the application is running normally
	StateRunning State = "running"

	// StateTerminating is the state when the application is shutting down
	StateTerminating State = "terminating"

	// StateTerminated is the final state when the application has terminated
	StateTerminated State = "terminated"
)

// JobStatus is the progress of the single rollout operation this process runs.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is a point-in-time copy of the operation progress.
type Job struct {
	Operation  string
	Status     JobStatus
	Error      string
	LastLine   string
	LastLevel  slog.Level
	Lines      int
	StartedAt  *time.Time
	FinishedAt *time.Time
}

const defaultShutdownersCount = 10

var _ logging.Observer = (*AppState)(nil)

// AppState manages the application state with thread-safe operations
type AppState struct {
	mu                  sync.RWMutex
	logger              *slog.Logger
	startedAt           time.Time
	readyAt             *time.Time
	terminatingAt       *time.Time
	state               State
	quit                <-chan os.Signal
	terminationFilePath string
	job                 Job
	shutdowners         []shutdown.Shutdowner
}

// New creates a new AppState with the given start time
func New(
	logger *slog.Logger,
	appStart time.Time,
	terminationFilePath string,
	quit <-chan os.Signal,
) *AppState {
	return &AppState{
		logger:              logger,
		startedAt:           appStart,
		state:               StateInit,
		quit:                quit,
		terminationFilePath: terminationFilePath,
		job:                 Job{Status: JobPending},
		shutdowners:         make([]shutdown.Shutdowner, 0, defaultShutdownersCount),
	}
}

func (s *AppState) RegisterShutdowner(shutdowner shutdown.Shutdowner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shutdowners = append(s.shutdowners, shutdowner)

	return nil
}

// SetStarting transitions the state from Init to Starting
func (s *AppState) SetStarting(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInit {
		return fmt.Errorf("set starting: %w", ErrInvalidStateTransition)
	}

	return s.setState(StateStarting)
}

// SetRunning transitions the state from Starting to Running
func (s *AppState) SetRunning(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		// Check termination file after initialization
		if shutdown.CheckTerminationFile(ctx, s.logger, s.terminationFilePath) {
			pid := os.Getpid()
			s.logger.InfoContext(ctx, "termination file found after initialization, sending SIGTERM",
				"pid", pid,
			)

			killErr := syscall.Kill(pid, syscall.SIGTERM)
			if killErr != nil {
				s.logger.ErrorContext(ctx, "failed to send SIGTERM",
					"reason", killErr,
					"pid", pid,
				)
			}
		}
	}()

	if s.state != StateStarting {
		return fmt.Errorf("set running: %w", ErrInvalidStateTransition)
	}

	now := time.Now()
	s.readyAt = &now

	return s.setState(StateRunning)
}

// SetTerminating transitions the state to Terminating
func (s *AppState) SetTerminating(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminated {
		return fmt.Errorf("set terminating: %w", ErrAlreadyTerminated)
	}

	now := time.Now()
	s.terminatingAt = &now

	return s.setState(StateTerminating)
}

// setState is an internal method to set the state
func (s *AppState) setState(newState State) error {
	if s.state == StateTerminated {
		return fmt.Errorf("set state: %w", ErrAlreadyTerminated)
	}

	s.state = newState

	return nil
}

// StartJob marks the operation as running. It can only be called once.
func (s *AppState) StartJob(ctx context.Context, operation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job.Status != JobPending {
		return fmt.Errorf("start job %s: %w", operation, ErrJobAlreadyStarted)
	}

	now := time.Now()
	s.job.Operation = operation
	s.job.Status = JobRunning
	s.job.StartedAt = &now

	s.logger.InfoContext(ctx, "job started", "operation", operation)

	return nil
}

// FinishJob records the operation outcome. A nil error means success.
func (s *AppState) FinishJob(ctx context.Context, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job.Status != JobRunning {
		return fmt.Errorf("finish job: %w", ErrJobNotRunning)
	}

	now := time.Now()
	s.job.FinishedAt = &now

	if err != nil {
		s.job.Status = JobFailed
		s.job.Error = err.Error()

		s.logger.ErrorContext(ctx, "job failed",
			"operation", s.job.Operation,
			"duration", now.Sub(*s.job.StartedAt),
			"reason", err,
		)

		return nil
	}

	s.job.Status = JobSucceeded

	s.logger.InfoContext(ctx, "job succeeded",
		"operation", s.job.Operation,
		"duration", now.Sub(*s.job.StartedAt),
	)

	return nil
}

// ObserveLine keeps the latest non-blank narration line for the status endpoint.
func (s *AppState) ObserveLine(text string, level slog.Level) {
	line := strings.TrimSpace(text)
	if line == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.job.LastLine = line
	s.job.LastLevel = level
	s.job.Lines++
}

// GetJob returns a copy of the operation progress.
func (s *AppState) GetJob() Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.job
}

// GetState returns the current application state
func (s *AppState) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// GetStartTime returns the time when the application started
func (s *AppState) GetStartTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.startedAt
}

// GetUptime returns the duration since the application started
func (s *AppState) GetUptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return time.Since(s.startedAt)
}

// IsHealthy returns true if the application is in a healthy state (running)
func (s *AppState) IsHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state == StateRunning
}

// IsReady returns true while running, unless the operation has failed.
func (s *AppState) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state == StateRunning && s.readyAt != nil && s.job.Status != JobFailed
}

// Quit returns the channel that will receive the signal when shutdown is requested
func (s *AppState) Quit() <-chan os.Signal {
	return s.quit
}

// Shutdown transitions the application to the terminated state
func (s *AppState) Shutdown(ctx context.Context) error {
	if s.GetState() == StateTerminated {
		return nil
	}

	if err := s.SetTerminating(ctx); err != nil {
		return fmt.Errorf("set terminating application state: %w", err)
	}

	s.mu.RLock()
	shutdowners := s.shutdowners
	s.mu.RUnlock()

	err := shutdown.GracefulShutdown(ctx, s.logger, shutdowners)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminated {
		return nil
	}

	s.state = StateTerminated

	return nil
}
