package app

import (
	"context"
	"log/slog"
	"os"
	"time"

	"k8s.io/apimachinery/pkg/version"

	"github.com/skillcoder/rollout-verifier/internal/infra/appstate"
	"github.com/skillcoder/rollout-verifier/internal/infra/shutdown"
	"github.com/skillcoder/rollout-verifier/internal/logic/rollout"
)

// appstater defines the interface for application state management
type appstater interface {
	RegisterShutdowner(shutdowner shutdown.Shutdowner) error
	Quit() <-chan os.Signal
	SetStarting(ctx context.Context) error
	SetRunning(ctx context.Context) error
	StartJob(ctx context.Context, operation string) error
	FinishJob(ctx context.Context, err error) error
	ObserveLine(text string, level slog.Level)
	GetJob() appstate.Job
	GetStartTime() time.Time
	GetState() appstate.State
	GetUptime() time.Duration
	IsHealthy() bool
	IsReady() bool
	Shutdown(ctx context.Context) error
}

type signalHandler interface {
	HandleSignals(ctx context.Context, cancel func())
	CheckTermination(ctx context.Context) error
}

type appServer interface {
	Ping(ctx context.Context) error
	Start(ctx context.Context) error
	Ready() <-chan struct{}
	shutdown.Shutdowner
}

// versionProber checks that the API server answers before any operation runs.
type versionProber interface {
	ServerVersion() (*version.Info, error)
}

// verifier is the part of the rollout engine the operations drive.
type verifier interface {
	SetControllerPodCount(ctx context.Context, req rollout.ScaleRequest, sink rollout.LogSink) ([]rollout.ContainerInfo, error)
	GetContainerInfosWhenReady(
		ctx context.Context,
		req rollout.ReadinessRequest,
		sink rollout.LogSink,
	) ([]rollout.ContainerInfo, error)
	WaitForPodsToStop(ctx context.Context, req rollout.StopRequest, sink rollout.LogSink) error
	RunningPods(ctx context.Context, namespace, controllerName string) ([]rollout.Pod, error)
	RunningPodsWithLabels(ctx context.Context, namespace string, labels map[string]string) ([]rollout.Pod, error)
	CreateOrReplaceController(ctx context.Context, namespace string, definition rollout.Object) (*rollout.Controller, error)
	DeleteController(ctx context.Context, namespace, name string) error
	GetControllers(ctx context.Context, namespace string, labels map[string]string) ([]*rollout.Controller, error)
	PodCount(ctrl *rollout.Controller) (int, error)
	GetTrafficPercent(ctx context.Context, namespace, controllerName string) (int, error)
	GetTrafficWeights(ctx context.Context, namespace, controllerName string) (map[string]int, error)
	DeleteVirtualService(ctx context.Context, namespace, serviceName string)
	DeleteDestinationRule(ctx context.Context, namespace, serviceName string)
	FetchReleaseHistory(ctx context.Context, namespace, releaseName string) (string, error)
	SaveReleaseHistory(ctx context.Context, namespace, releaseName, history string) error
	ActiveServiceCounts(ctx context.Context, namespace, controllerName string) ([]rollout.ActiveService, error)
	ActiveServiceImages(ctx context.Context, namespace, controllerName, imagePrefix string) (map[string]string, error)
}
