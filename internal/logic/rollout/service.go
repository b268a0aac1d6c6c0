package rollout

import (
	"context"
	"log/slog"
	"time"

	"k8s.io/utils/clock"
)

// Settings tunes the waits of the engine. Zero values fall back to defaults.
type Settings struct {
	ControllerRetryInterval time.Duration
	ControllerLookupTimeout time.Duration
	CountPollInterval       time.Duration
	ImagesPollInterval      time.Duration
	RunningPollInterval     time.Duration
	SteadyPollInterval      time.Duration
	TickErrorInterval       time.Duration
	StopPollInterval        time.Duration
	DefaultTimeout          time.Duration
}

// DefaultSettings returns the production poll intervals.
func DefaultSettings() Settings {
	return Settings{
		ControllerRetryInterval: defaultControllerRetryInterval,
		ControllerLookupTimeout: defaultControllerLookupTimeout,
		CountPollInterval:       defaultCountPollInterval,
		ImagesPollInterval:      defaultImagesPollInterval,
		RunningPollInterval:     defaultRunningPollInterval,
		SteadyPollInterval:      defaultSteadyPollInterval,
		TickErrorInterval:       defaultTickErrorInterval,
		StopPollInterval:        defaultStopPollInterval,
		DefaultTimeout:          DefaultSteadyStateTimeout,
	}
}

func (s Settings) withDefaults() Settings {
	def := DefaultSettings()

	fill := func(v *time.Duration, fallback time.Duration) {
		if *v <= 0 {
			*v = fallback
		}
	}

	fill(&s.ControllerRetryInterval, def.ControllerRetryInterval)
	fill(&s.ControllerLookupTimeout, def.ControllerLookupTimeout)
	fill(&s.CountPollInterval, def.CountPollInterval)
	fill(&s.ImagesPollInterval, def.ImagesPollInterval)
	fill(&s.RunningPollInterval, def.RunningPollInterval)
	fill(&s.SteadyPollInterval, def.SteadyPollInterval)
	fill(&s.TickErrorInterval, def.TickErrorInterval)
	fill(&s.StopPollInterval, def.StopPollInterval)
	fill(&s.DefaultTimeout, def.DefaultTimeout)

	return s
}

// Service is the workload rollout and steady state verification engine.
//
// It holds no per-call state: every wait owns its own latches and seen events,
// so a Service may be shared. Callers must serialize operations per controller.
type Service struct {
	logger   *slog.Logger
	repo     Repository
	history  KeyValueStore
	kinds    []WorkloadKind
	clock    clock.Clock
	settings Settings
}

// New creates a new rollout service. A nil clock uses the real clock.
func New(
	logger *slog.Logger,
	repo Repository,
	history KeyValueStore,
	settings Settings,
	clk clock.Clock,
) *Service {
	if clk == nil {
		clk = clock.RealClock{}
	}

	return &Service{
		logger:   logger.With("component", "rollout"),
		repo:     repo,
		history:  history,
		kinds:    orderKinds(repo.WorkloadKinds()),
		clock:    clk,
		settings: settings.withDefaults(),
	}
}

func (s *Service) timeout(requested time.Duration) time.Duration {
	if requested <= 0 {
		return s.settings.DefaultTimeout
	}

	return requested
}

// sleep waits for d and reports false when ctx is done first.
func (s *Service) sleep(ctx context.Context, d time.Duration) bool {
	timer := s.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C():
		return true
	}
}
