package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/labels"

	"github.com/skillcoder/rollout-verifier/internal/logic/rollout"
)

// Operation selects what a single run does.
type Operation string

const (
	OperationScale          Operation = "scale"
	OperationWaitReady      Operation = "wait-ready"
	OperationWaitStop       Operation = "wait-stop"
	OperationApply          Operation = "apply"
	OperationDelete         Operation = "delete"
	OperationList           Operation = "list"
	OperationTraffic        Operation = "traffic"
	OperationHistoryFetch   Operation = "history-fetch"
	OperationHistorySave    Operation = "history-save"
	OperationActiveServices Operation = "active-services"
)

var operations = []Operation{
	OperationScale,
	OperationWaitReady,
	OperationWaitStop,
	OperationApply,
	OperationDelete,
	OperationList,
	OperationTraffic,
	OperationHistoryFetch,
	OperationHistorySave,
	OperationActiveServices,
}

// Release history backends.
const (
	HistoryBackendConfigMap = "configmap"
	HistoryBackendSecret    = "secret"
)

const defaultNamespace = "default"

var (
	ErrInvalidValue    = errors.New("invalid value")
	ErrMissingRequired = errors.New("missing required value")
)

type Config struct {
	KubeConfig  string
	KubeMaster  string
	LogLevel    string
	LogFormat   string
	HTTPPort    string
	MetricsPort string

	Namespace      string
	ClusterName    string
	Operation      Operation
	ControllerName string
	PreviousCount  int
	DesiredCount   int
	NotVersioned   bool
	LabelSelector  map[string]string
	ImagePrefix    string

	ReleaseName           string
	ReleaseHistoryBackend string
	ReleaseHistoryFile    string
	ManifestFile          string

	SteadyStateTimeout      time.Duration
	ControllerLookupTimeout time.Duration
	CountPollInterval       time.Duration
	ImagesPollInterval      time.Duration
	RunningPollInterval     time.Duration
	SteadyPollInterval      time.Duration
	StopPollInterval        time.Duration
}

func Load() (*Config, error) {
	defaults := rollout.DefaultSettings()

	cfg := &Config{
		KubeConfig:            getEnvOrFallback(envKeyKubeConfig, envKeyKubeConfigFallback),
		KubeMaster:            getEnvOrFallback(envKeyKubeMaster, envKeyKubeMasterFallback),
		LogLevel:              getEnvOrDefault(envKeyLogLevel, "info"),
		LogFormat:             getEnvOrDefault(envKeyLogFormat, "json"),
		HTTPPort:              getEnvOrDefault(envKeyHTTPPort, "8080"),
		MetricsPort:           getEnvOrDefault(envKeyMetricsPort, "9090"),
		Namespace:             getEnvOrDefault(envKeyNamespace, getEnvOrDefault(envKeyNamespaceFallback, defaultNamespace)),
		ClusterName:           getEnvOrDefault(envKeyClusterName, "in-cluster"),
		Operation:             Operation(os.Getenv(envKeyOperation)),
		ControllerName:        os.Getenv(envKeyControllerName),
		ImagePrefix:           os.Getenv(envKeyImagePrefix),
		ReleaseName:           os.Getenv(envKeyReleaseName),
		ReleaseHistoryBackend: getEnvOrDefault(envKeyReleaseHistoryBackend, HistoryBackendConfigMap),
		ReleaseHistoryFile:    os.Getenv(envKeyReleaseHistoryFile),
		ManifestFile:          os.Getenv(envKeyManifestFile),
	}

	var err error

	if cfg.PreviousCount, err = parseInt(envKeyPreviousCount, "0", 0); err != nil {
		return nil, err
	}

	if cfg.DesiredCount, err = parseInt(envKeyDesiredCount, "-1", rollout.UnlimitedReplicas); err != nil {
		return nil, err
	}

	if cfg.NotVersioned, err = parseBool(envKeyNotVersioned, "false"); err != nil {
		return nil, err
	}

	if cfg.LabelSelector, err = parseSelector(envKeyLabelSelector); err != nil {
		return nil, err
	}

	durations := []struct {
		target   *time.Duration
		key      string
		fallback time.Duration
		minimum  time.Duration
	}{
		{&cfg.SteadyStateTimeout, envKeySteadyStateTimeout, defaults.DefaultTimeout, envMinSteadyStateTimeout},
		{&cfg.ControllerLookupTimeout, envKeyControllerLookupTimeout, defaults.ControllerLookupTimeout,
			envMinControllerLookupTimeout},
		{&cfg.CountPollInterval, envKeyCountPollInterval, defaults.CountPollInterval, envMinPollInterval},
		{&cfg.ImagesPollInterval, envKeyImagesPollInterval, defaults.ImagesPollInterval, envMinPollInterval},
		{&cfg.RunningPollInterval, envKeyRunningPollInterval, defaults.RunningPollInterval, envMinPollInterval},
		{&cfg.SteadyPollInterval, envKeySteadyPollInterval, defaults.SteadyPollInterval, envMinPollInterval},
		{&cfg.StopPollInterval, envKeyStopPollInterval, defaults.StopPollInterval, envMinPollInterval},
	}

	for _, d := range durations {
		*d.target, err = parseDuration(d.key, d.fallback.String(), d.minimum)
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Settings converts the wait configuration for the rollout service.
func (c *Config) Settings() rollout.Settings {
	settings := rollout.DefaultSettings()

	settings.DefaultTimeout = c.SteadyStateTimeout
	settings.ControllerLookupTimeout = c.ControllerLookupTimeout
	settings.CountPollInterval = c.CountPollInterval
	settings.ImagesPollInterval = c.ImagesPollInterval
	settings.RunningPollInterval = c.RunningPollInterval
	settings.SteadyPollInterval = c.SteadyPollInterval
	settings.StopPollInterval = c.StopPollInterval

	return settings
}

func (c *Config) validate() error {
	if !slices.Contains(operations, c.Operation) {
		return fmt.Errorf("%w: %s=%q", ErrInvalidValue, envKeyOperation, c.Operation)
	}

	if c.ReleaseHistoryBackend != HistoryBackendConfigMap && c.ReleaseHistoryBackend != HistoryBackendSecret {
		return fmt.Errorf("%w: %s=%q", ErrInvalidValue, envKeyReleaseHistoryBackend, c.ReleaseHistoryBackend)
	}

	switch c.Operation {
	case OperationScale, OperationWaitReady, OperationDelete, OperationTraffic, OperationActiveServices:
		if c.ControllerName == "" {
			return fmt.Errorf("%w: %s for %s", ErrMissingRequired, envKeyControllerName, c.Operation)
		}
	case OperationWaitStop:
		if len(c.LabelSelector) == 0 {
			return fmt.Errorf("%w: %s for %s", ErrMissingRequired, envKeyLabelSelector, c.Operation)
		}
	case OperationApply:
		if c.ManifestFile == "" {
			return fmt.Errorf("%w: %s for %s", ErrMissingRequired, envKeyManifestFile, c.Operation)
		}
	case OperationHistoryFetch, OperationHistorySave:
		if c.ReleaseName == "" {
			return fmt.Errorf("%w: %s for %s", ErrMissingRequired, envKeyReleaseName, c.Operation)
		}
	}

	if c.Operation == OperationHistorySave && c.ReleaseHistoryFile == "" {
		return fmt.Errorf("%w: %s for %s", ErrMissingRequired, envKeyReleaseHistoryFile, c.Operation)
	}

	if c.Operation == OperationActiveServices && c.ImagePrefix == "" {
		return fmt.Errorf("%w: %s for %s", ErrMissingRequired, envKeyImagePrefix, c.Operation)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value
}

func getEnvOrFallback(key, fallbackKey string) string {
	return getEnvOrDefault(key, os.Getenv(fallbackKey))
}

func parseDuration(key, defaultValue string, minimum time.Duration) (time.Duration, error) {
	raw := getEnvOrDefault(key, defaultValue)

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}

	if d < minimum {
		return 0, fmt.Errorf("%w: %s=%s is below minimum %s", ErrInvalidValue, key, d, minimum)
	}

	return d, nil
}

func parseInt(key, defaultValue string, minimum int) (int, error) {
	raw := getEnvOrDefault(key, defaultValue)

	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}

	if n < minimum {
		return 0, fmt.Errorf("%w: %s=%d is below minimum %d", ErrInvalidValue, key, n, minimum)
	}

	return n, nil
}

func parseBool(key, defaultValue string) (bool, error) {
	b, err := strconv.ParseBool(getEnvOrDefault(key, defaultValue))
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}

	return b, nil
}

func parseSelector(key string) (map[string]string, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return nil, nil
	}

	set, err := labels.ConvertSelectorToLabelsMap(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}

	return set, nil
}
