package rollout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/skillcoder/rollout-verifier/internal/infra/metrics"
)

// SetControllerPodCount scales a controller from PreviousCount to DesiredCount and
// reports the resulting pods. The wait only runs when the size changed.
func (s *Service) SetControllerPodCount(
	ctx context.Context,
	req ScaleRequest,
	sink LogSink,
) ([]ContainerInfo, error) {
	startTime := s.clock.Now()
	logger := s.logger.With("controller", req.ControllerName, "namespace", req.Namespace)

	originalPods, err := s.RunningPods(ctx, req.Namespace, req.ControllerName)
	if err != nil {
		return nil, err
	}

	sizeChanged := req.PreviousCount != req.DesiredCount

	if sizeChanged {
		sink.WriteLine(fmt.Sprintf("Resizing controller [%s] in cluster [%s] from %d to %d instances",
			req.ControllerName, req.ClusterName, req.PreviousCount, req.DesiredCount), slog.LevelInfo)

		err = s.scale(ctx, req)
		if err != nil {
			logger.ErrorContext(ctx, "failed to scale controller", "reason", err)

			return nil, err
		}
	} else {
		sink.WriteLine(fmt.Sprintf("Controller [%s] in cluster [%s] stays at %d instances",
			req.ControllerName, req.ClusterName, req.DesiredCount), slog.LevelInfo)
	}

	return s.GetContainerInfosWhenReady(ctx, ReadinessRequest{
		Namespace:      req.Namespace,
		ControllerName: req.ControllerName,
		PreviousCount:  req.PreviousCount,
		DesiredCount:   req.DesiredCount,
		Timeout:        req.Timeout,
		OriginalPods:   originalPods,
		IsNotVersioned: false,
		Wait:           sizeChanged,
		StartTime:      startTime,
	}, sink)
}

func (s *Service) scale(ctx context.Context, req ScaleRequest) error {
	ctrl, err := s.GetController(ctx, req.Namespace, req.ControllerName)
	if err != nil {
		return err
	}

	if ctrl == nil {
		return fmt.Errorf("%w: Could not find a controller named %s", ErrInvalidRequest, req.ControllerName)
	}

	if ctrl.Kind == KindDaemonSet {
		return fmt.Errorf("%w: DaemonSet runs one instance per cluster node and cannot be scaled.",
			ErrUnsupportedOperation)
	}

	// A negative target follows the live replica count, so there is nothing to set.
	if req.DesiredCount < 0 {
		return nil
	}

	kind, ok := s.kindOf(ctrl.Kind)
	if !ok {
		return fmt.Errorf("%w: cannot scale kind %s", ErrUnsupportedOperation, ctrl.Kind)
	}

	err = kind.ScaleCommand(ctx, req.Namespace, req.ControllerName, int32(req.DesiredCount)) //nolint:gosec // replica counts fit int32
	if err != nil {
		return fmt.Errorf("scale %s %s: %w", ctrl.Kind, req.ControllerName, classifyClusterError(err))
	}

	metrics.RecordScale(string(ctrl.Kind))

	return nil
}
