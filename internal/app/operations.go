package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/skillcoder/rollout-verifier/internal/adapters/outbound/k8s"
	"github.com/skillcoder/rollout-verifier/internal/config"
	"github.com/skillcoder/rollout-verifier/internal/logic/rollout"
)

const historyFileMode = 0o600

var (
	ErrPodsFailed       = errors.New("pods failed to reach steady state")
	ErrUnknownOperation = errors.New("unknown operation")
)

type operationResult struct {
	Operation string `json:"operation"`
	Result    any    `json:"result"`
}

type controllerSummary struct {
	Name     string       `json:"name"`
	Kind     rollout.Kind `json:"kind"`
	Replicas int          `json:"replicas"`
}

type trafficSummary struct {
	Controller string         `json:"controller"`
	Percent    int            `json:"percent"`
	Weights    map[string]int `json:"weights"`
}

type activeServicesSummary struct {
	Services []rollout.ActiveService `json:"services"`
	Images   map[string]string       `json:"images"`
}

func (a *App) execute(ctx context.Context) error {
	switch a.cfg.Operation {
	case config.OperationScale:
		return a.scale(ctx)
	case config.OperationWaitReady:
		return a.waitReady(ctx)
	case config.OperationWaitStop:
		return a.waitStop(ctx)
	case config.OperationApply:
		return a.apply(ctx)
	case config.OperationDelete:
		return a.deleteController(ctx)
	case config.OperationList:
		return a.listControllers(ctx)
	case config.OperationTraffic:
		return a.traffic(ctx)
	case config.OperationHistoryFetch:
		return a.fetchHistory(ctx)
	case config.OperationHistorySave:
		return a.saveHistory(ctx)
	case config.OperationActiveServices:
		return a.activeServices(ctx)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOperation, a.cfg.Operation)
	}
}

func (a *App) scale(ctx context.Context) error {
	infos, err := a.verifier.SetControllerPodCount(ctx, rollout.ScaleRequest{
		Namespace:      a.cfg.Namespace,
		ClusterName:    a.cfg.ClusterName,
		ControllerName: a.cfg.ControllerName,
		PreviousCount:  a.cfg.PreviousCount,
		DesiredCount:   a.cfg.DesiredCount,
		Timeout:        a.cfg.SteadyStateTimeout,
	}, a.sink)

	return a.reportContainerInfos(ctx, infos, err)
}

func (a *App) waitReady(ctx context.Context) error {
	originalPods, err := a.verifier.RunningPods(ctx, a.cfg.Namespace, a.cfg.ControllerName)
	if err != nil {
		return err
	}

	infos, err := a.verifier.GetContainerInfosWhenReady(ctx, rollout.ReadinessRequest{
		Namespace:      a.cfg.Namespace,
		ControllerName: a.cfg.ControllerName,
		PreviousCount:  a.cfg.PreviousCount,
		DesiredCount:   a.cfg.DesiredCount,
		Timeout:        a.cfg.SteadyStateTimeout,
		OriginalPods:   originalPods,
		IsNotVersioned: a.cfg.NotVersioned,
		Wait:           true,
	}, a.sink)

	return a.reportContainerInfos(ctx, infos, err)
}

// reportContainerInfos prints the evaluated pods even when the wait timed out.
func (a *App) reportContainerInfos(ctx context.Context, infos []rollout.ContainerInfo, waitErr error) error {
	if infos == nil && waitErr != nil {
		return waitErr
	}

	if err := a.report(ctx, infos); err != nil {
		return errors.Join(waitErr, err)
	}

	if waitErr != nil {
		return waitErr
	}

	failed := 0

	for _, info := range infos {
		if info.Status == rollout.StatusFailure {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrPodsFailed, failed, len(infos))
	}

	return nil
}

func (a *App) waitStop(ctx context.Context) error {
	originalPods, err := a.verifier.RunningPodsWithLabels(ctx, a.cfg.Namespace, a.cfg.LabelSelector)
	if err != nil {
		return err
	}

	return a.verifier.WaitForPodsToStop(ctx, rollout.StopRequest{
		Namespace:    a.cfg.Namespace,
		Labels:       a.cfg.LabelSelector,
		Timeout:      a.cfg.SteadyStateTimeout,
		OriginalPods: originalPods,
	}, a.sink)
}

func (a *App) apply(ctx context.Context) error {
	data, err := os.ReadFile(a.cfg.ManifestFile)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	definition, err := k8s.DecodeManifest(data)
	if err != nil {
		return fmt.Errorf("decode manifest %s: %w", a.cfg.ManifestFile, err)
	}

	ctrl, err := a.verifier.CreateOrReplaceController(ctx, a.cfg.Namespace, definition)
	if err != nil {
		return err
	}

	a.sink.WriteLine(fmt.Sprintf("Applied %s [%s] in cluster [%s]",
		ctrl.Kind, ctrl.Name(), a.cfg.ClusterName), slog.LevelInfo)

	return a.report(ctx, controllerSummary{Name: ctrl.Name(), Kind: ctrl.Kind, Replicas: a.replicas(ctx, ctrl)})
}

// deleteController removes the controller. Routing resources of the service go away
// together with its last running revision.
func (a *App) deleteController(ctx context.Context) error {
	err := a.verifier.DeleteController(ctx, a.cfg.Namespace, a.cfg.ControllerName)
	if err != nil {
		return err
	}

	a.sink.WriteLine(fmt.Sprintf("Deleted controller [%s] in cluster [%s]",
		a.cfg.ControllerName, a.cfg.ClusterName), slog.LevelInfo)

	if a.cfg.NotVersioned {
		return nil
	}

	remaining, err := a.verifier.ActiveServiceCounts(ctx, a.cfg.Namespace, a.cfg.ControllerName)
	if err != nil {
		return err
	}

	if len(remaining) > 0 {
		return nil
	}

	serviceName := rollout.ServiceNameFromControllerName(a.cfg.ControllerName)
	a.sink.WriteLine(fmt.Sprintf("No active revisions left, removing routing for [%s]", serviceName),
		slog.LevelInfo)

	a.verifier.DeleteVirtualService(ctx, a.cfg.Namespace, serviceName)
	a.verifier.DeleteDestinationRule(ctx, a.cfg.Namespace, serviceName)

	return nil
}

func (a *App) listControllers(ctx context.Context) error {
	controllers, err := a.verifier.GetControllers(ctx, a.cfg.Namespace, a.cfg.LabelSelector)
	if err != nil {
		return err
	}

	summaries := make([]controllerSummary, 0, len(controllers))
	for _, ctrl := range controllers {
		summaries = append(summaries, controllerSummary{
			Name:     ctrl.Name(),
			Kind:     ctrl.Kind,
			Replicas: a.replicas(ctx, ctrl),
		})
	}

	slices.SortFunc(summaries, func(x, y controllerSummary) int {
		return strings.Compare(x.Name, y.Name)
	})

	return a.report(ctx, summaries)
}

func (a *App) replicas(ctx context.Context, ctrl *rollout.Controller) int {
	n, err := a.verifier.PodCount(ctrl)
	if err != nil {
		a.logger.WarnContext(ctx, "failed to read controller replica count",
			"controller", ctrl.Name(),
			"kind", ctrl.Kind,
			"reason", err,
		)

		return 0
	}

	return n
}

func (a *App) traffic(ctx context.Context) error {
	weights, err := a.verifier.GetTrafficWeights(ctx, a.cfg.Namespace, a.cfg.ControllerName)
	if err != nil {
		return err
	}

	percent, err := a.verifier.GetTrafficPercent(ctx, a.cfg.Namespace, a.cfg.ControllerName)
	if err != nil {
		return err
	}

	return a.report(ctx, trafficSummary{Controller: a.cfg.ControllerName, Percent: percent, Weights: weights})
}

func (a *App) fetchHistory(ctx context.Context) error {
	history, err := a.verifier.FetchReleaseHistory(ctx, a.cfg.Namespace, a.cfg.ReleaseName)
	if err != nil {
		return err
	}

	if a.cfg.ReleaseHistoryFile == "" {
		_, err = fmt.Fprintln(a.out, history)
		if err != nil {
			return fmt.Errorf("write release history: %w", err)
		}

		return nil
	}

	err = os.WriteFile(a.cfg.ReleaseHistoryFile, []byte(history), historyFileMode)
	if err != nil {
		return fmt.Errorf("write release history: %w", err)
	}

	a.logger.InfoContext(ctx, "release history written",
		"release", a.cfg.ReleaseName,
		"path", a.cfg.ReleaseHistoryFile,
		"bytes", len(history),
	)

	return nil
}

func (a *App) saveHistory(ctx context.Context) error {
	data, err := os.ReadFile(a.cfg.ReleaseHistoryFile)
	if err != nil {
		return fmt.Errorf("read release history: %w", err)
	}

	return a.verifier.SaveReleaseHistory(ctx, a.cfg.Namespace, a.cfg.ReleaseName, string(data))
}

func (a *App) activeServices(ctx context.Context) error {
	services, err := a.verifier.ActiveServiceCounts(ctx, a.cfg.Namespace, a.cfg.ControllerName)
	if err != nil {
		return err
	}

	images, err := a.verifier.ActiveServiceImages(ctx, a.cfg.Namespace, a.cfg.ControllerName, a.cfg.ImagePrefix)
	if err != nil {
		return err
	}

	return a.report(ctx, activeServicesSummary{Services: services, Images: images})
}

func (a *App) report(ctx context.Context, result any) error {
	err := json.NewEncoder(a.out).Encode(operationResult{
		Operation: string(a.cfg.Operation),
		Result:    result,
	})
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to encode operation result", "reason", err)

		return fmt.Errorf("encode result: %w", err)
	}

	return nil
}
