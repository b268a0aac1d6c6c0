package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/skillcoder/rollout-verifier/internal/adapters/outbound/k8s"
	"github.com/skillcoder/rollout-verifier/internal/config"
	"github.com/skillcoder/rollout-verifier/internal/httpserver"
	"github.com/skillcoder/rollout-verifier/internal/infra/logging"
	"github.com/skillcoder/rollout-verifier/internal/infra/metrics"
	"github.com/skillcoder/rollout-verifier/internal/infra/shutdown"
	"github.com/skillcoder/rollout-verifier/internal/logic/rollout"
)

const (
	// TerminationFilePath is created by the pod preStop hook.
	TerminationFilePath = "/mnt/signal/terminating"

	probeRetryInterval = time.Second
	probeMaxRetries    = 5

	jobResultSucceeded = "succeeded"
	jobResultFailed    = "failed"
)

type App struct {
	logger        *slog.Logger
	cfg           *config.Config
	appState      appstater
	signalHandler signalHandler
	servers       []appServer
	prober        versionProber
	verifier      verifier
	sink          rollout.LogSink
	out           io.Writer
}

// New creates a new application instance with all dependencies wired.
func New(logger *slog.Logger, cfg *config.Config, appState appstater) (*App, error) {
	// Create K8s config
	kubeConfig, err := clientcmd.BuildConfigFromFlags(
		cfg.KubeMaster,
		cfg.KubeConfig,
	)
	if err != nil {
		return nil, fmt.Errorf("build k8s config: %w", err)
	}

	// Create K8s clientset
	clientset, err := kubernetes.NewForConfig(kubeConfig)
	if err != nil {
		return nil, fmt.Errorf("create clientset: %w", err)
	}

	// Create dynamic client for DeploymentConfig and Istio resources
	dynamicClient, err := dynamic.NewForConfig(kubeConfig)
	if err != nil {
		return nil, fmt.Errorf("create dynamic client: %w", err)
	}

	// Create secondary adapters
	k8sRepo := k8s.New(logger, clientset, dynamicClient)
	historyStore := newHistoryStore(logger, cfg, clientset)

	// Create logic service (inject repository adapters)
	rolloutService := rollout.New(
		logger,
		k8sRepo,
		historyStore,
		cfg.Settings(),
		nil,
	)

	return &App{
		logger:        logger,
		cfg:           cfg,
		appState:      appState,
		signalHandler: shutdown.New(logger, appState, TerminationFilePath),
		servers: []appServer{
			httpserver.New(logger, appState, cfg.HTTPPort),
			httpserver.NewMetricsServer(logger, metrics.Gatherer(), cfg.MetricsPort),
		},
		prober:   clientset.Discovery(),
		verifier: rolloutService,
		sink:     logging.NewSink(logger, appState),
		out:      os.Stdout,
	}, nil
}

func newHistoryStore(logger *slog.Logger, cfg *config.Config, clientset kubernetes.Interface) rollout.KeyValueStore {
	if cfg.ReleaseHistoryBackend == config.HistoryBackendSecret {
		return k8s.NewSecretStore(logger, clientset)
	}

	return k8s.NewConfigMapStore(logger, clientset)
}

// Run executes the configured operation once and shuts the process down.
func (a *App) Run(originCtx context.Context) error {
	err := a.signalHandler.CheckTermination(originCtx)
	if err != nil {
		return fmt.Errorf("check termination: %w", err)
	}

	ctx, cancel := context.WithCancel(originCtx)
	defer cancel()

	go a.signalHandler.HandleSignals(ctx, cancel)

	if err := a.appState.SetStarting(ctx); err != nil {
		return fmt.Errorf("set starting application state: %w", err)
	}

	runErr := a.start(ctx)
	if runErr == nil {
		runErr = a.runJob(ctx)
	}

	shutdownErr := a.appState.Shutdown(originCtx)
	if shutdownErr != nil {
		shutdownErr = fmt.Errorf("shutdown application: %w", shutdownErr)
	}

	return errors.Join(runErr, shutdownErr)
}

func (a *App) start(ctx context.Context) error {
	readyChans := make([]<-chan struct{}, 0, len(a.servers))

	for _, srv := range a.servers {
		if err := a.appState.RegisterShutdowner(srv); err != nil {
			return fmt.Errorf("register %s: %w", srv.Name(), err)
		}

		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("start %s: %w", srv.Name(), err)
		}

		readyChans = append(readyChans, srv.Ready())
	}

	<-allChannelsClose(ctx, a.logger, readyChans...)

	if ctx.Err() != nil {
		return fmt.Errorf("wait for servers: %w", ctx.Err())
	}

	for _, srv := range a.servers {
		if err := srv.Ping(ctx); err != nil {
			return fmt.Errorf("ping %s: %w", srv.Name(), err)
		}
	}

	if err := a.probeAPIServer(ctx); err != nil {
		return err
	}

	if err := a.appState.SetRunning(ctx); err != nil {
		return fmt.Errorf("set running application state: %w", err)
	}

	return nil
}

// probeAPIServer fails fast on a wrong kubeconfig before any wait starts.
func (a *App) probeAPIServer(ctx context.Context) error {
	info, err := backoff.RetryNotifyWithData(
		a.prober.ServerVersion,
		backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(probeRetryInterval), probeMaxRetries), ctx),
		func(err error, next time.Duration) {
			a.logger.WarnContext(ctx, "kubernetes api server is not reachable, retrying",
				"reason", err,
				"next", next,
			)
		},
	)
	if err != nil {
		return fmt.Errorf("probe kubernetes api server: %w", err)
	}

	a.logger.InfoContext(ctx, "connected to kubernetes api server",
		"gitVersion", info.GitVersion,
		"platform", info.Platform,
	)

	return nil
}

func (a *App) runJob(ctx context.Context) error {
	operation := string(a.cfg.Operation)

	if err := a.appState.StartJob(ctx, operation); err != nil {
		return fmt.Errorf("start job: %w", err)
	}

	jobErr := a.execute(ctx)

	result := jobResultSucceeded
	if jobErr != nil {
		result = jobResultFailed
	}

	metrics.RecordJob(operation, result)

	if err := a.appState.FinishJob(ctx, jobErr); err != nil {
		return errors.Join(jobErr, fmt.Errorf("finish job: %w", err))
	}

	if jobErr != nil {
		return fmt.Errorf("%s: %w", operation, jobErr)
	}

	return nil
}

// allChannelsClose returns a channel that is closed once every input channel is closed
// or ctx is done.
func allChannelsClose(ctx context.Context, logger *slog.Logger, chans ...<-chan struct{}) <-chan struct{} {
	out := make(chan struct{})

	go func() {
		defer close(out)

		for i, ch := range chans {
			select {
			case <-ch:
			case <-ctx.Done():
				logger.DebugContext(ctx, "context done while waiting for components",
					"waiting", len(chans)-i,
				)

				return
			}
		}
	}()

	return out
}
