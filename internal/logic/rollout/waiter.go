package rollout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/skillcoder/rollout-verifier/internal/infra/metrics"
)

// waitState holds the per-invocation latches of the convergence gates.
type waitState struct {
	countReached   bool
	imagesReached  bool
	runningReached bool
	steadyReached  bool

	seenEvents map[string]struct{}
}

func newWaitState() *waitState {
	return &waitState{seenEvents: make(map[string]struct{})}
}

// latch sets the gate flag and reports whether it was just flipped.
func latch(reached *bool) bool {
	if *reached {
		return false
	}

	*reached = true

	return true
}

type tickOutcome struct {
	pods  []Pod
	ready bool
	delay time.Duration
}

// waitTarget is the part of a readiness wait fixed at its start.
type waitTarget struct {
	req      ReadinessRequest
	template *PodTemplate
}

// needsLiveness reports whether the running and steady gates apply for the resolved desired count.
func (t waitTarget) needsLiveness(desired int) bool {
	return t.req.IsNotVersioned || desired > t.req.PreviousCount
}

// waitForPodsToBeRunning polls until every gate passes or the request timeout expires.
// On timeout it returns the remaining pods together with ErrWaitTimedOut.
func (s *Service) waitForPodsToBeRunning(ctx context.Context, req ReadinessRequest, sink LogSink) ([]Pod, error) {
	logger := s.logger.With("controller", req.ControllerName, "namespace", req.Namespace)

	ctrl, err := s.GetController(ctx, req.Namespace, req.ControllerName)
	if err != nil {
		return nil, err
	}

	if ctrl == nil {
		return nil, fmt.Errorf("%w: Could not find a controller named %s", ErrInvalidRequest, req.ControllerName)
	}

	template, err := s.PodTemplate(ctrl)
	if err != nil {
		return nil, err
	}

	if template == nil {
		return nil, fmt.Errorf("%w: controller %s has no pod template", ErrInvalidRequest, req.ControllerName)
	}

	target := waitTarget{req: req, template: template}

	waitCtx, cancel := context.WithTimeout(ctx, s.timeout(req.Timeout))
	defer cancel()

	state := newWaitState()

	for {
		outcome, err := s.readinessTick(waitCtx, target, state, sink)

		switch {
		case err == nil && outcome.ready:
			metrics.ObserveWait(metrics.OperationWaitReady, metrics.OutcomeReady, s.clock.Since(req.StartTime))
			logger.InfoContext(ctx, "pods are ready", "pods", len(outcome.pods))

			return outcome.pods, nil
		case err != nil && isFatal(err):
			metrics.ObserveWait(metrics.OperationWaitReady, metrics.OutcomeFailed, s.clock.Since(req.StartTime))

			return nil, err
		case err != nil && waitCtx.Err() == nil:
			logger.WarnContext(ctx, "readiness tick failed", "reason", err)
			sink.WriteLine("Error while waiting for pods to be ready", slog.LevelError)
			sink.WriteLine(err.Error(), slog.LevelError)
			sink.WriteLine("Continuing to wait...", slog.LevelError)

			outcome.delay = s.settings.TickErrorInterval
		}

		if waitCtx.Err() != nil || !s.sleep(waitCtx, outcome.delay) {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		metrics.ObserveWait(metrics.OperationWaitReady, metrics.OutcomeFailed, s.clock.Since(req.StartTime))

		return nil, err
	}

	metrics.ObserveWait(metrics.OperationWaitReady, metrics.OutcomeTimeout, s.clock.Since(req.StartTime))
	logger.WarnContext(ctx, "timed out waiting for pods to be ready")
	sink.WriteLine("Timed out waiting for pods to be ready", slog.LevelError)

	pods, err := s.repo.ListPodsQuery(ctx, req.Namespace, template.Labels)
	if err != nil {
		return nil, fmt.Errorf("%w: list pods: %w", ErrWaitTimedOut, classifyClusterError(err))
	}

	return pruneFinishedPods(pods), ErrWaitTimedOut
}

// readinessTick runs one poll of the readiness state machine.
func (s *Service) readinessTick(
	ctx context.Context,
	target waitTarget,
	state *waitState,
	sink LogSink,
) (tickOutcome, error) {
	req := target.req
	desired := req.DesiredCount

	ctrl, err := s.GetController(ctx, req.Namespace, req.ControllerName)
	if err != nil {
		return tickOutcome{}, err
	}

	if ctrl != nil {
		live, err := s.PodCount(ctrl)
		if err != nil {
			return tickOutcome{}, err
		}

		if req.DesiredCount == UnlimitedReplicas {
			desired = live
		} else if live != req.DesiredCount {
			sink.WriteLine(fmt.Sprintf("Replica count is set to %d instead of %d. [Could be due to HPA.]",
				live, req.DesiredCount), slog.LevelError)
		}
	} else {
		sink.WriteLine("Couldn't find controller "+req.ControllerName, slog.LevelWarn)
	}

	events := s.listEvents(ctx, req.Namespace, sink)
	s.showControllerEvents(ctx, events, req.ControllerName, state.seenEvents, req.StartTime, sink)

	listed, err := s.repo.ListPodsQuery(ctx, req.Namespace, target.template.Labels)
	if err != nil {
		return tickOutcome{}, fmt.Errorf("list pods: %w", classifyClusterError(err))
	}

	s.showPodEvents(ctx, events, podNamesInOrder(req.OriginalPods, listed), state.seenEvents, req.StartTime, sink)

	pods := pruneFinishedPods(listed)

	return s.evaluateGates(pods, desired, target, state, sink), nil
}

// evaluateGates checks the gates in order and narrates each one.
func (s *Service) evaluateGates(
	pods []Pod,
	desired int,
	target waitTarget,
	state *waitState,
	sink LogSink,
) tickOutcome {
	total := len(pods)

	if total != desired {
		sink.WriteLine(fmt.Sprintf("Waiting for desired number of pods [%d/%d]", total, desired), slog.LevelInfo)

		return tickOutcome{pods: pods, delay: s.settings.CountPollInterval}
	}

	if latch(&state.countReached) {
		metrics.RecordGateReached(gateCount)
		sink.WriteLine(fmt.Sprintf("Desired number of pods reached [%d/%d]", total, desired), slog.LevelInfo)
	}

	if desired > 0 {
		images := formatImages(target.template.Images)
		updated := countPods(pods, func(pod Pod) bool { return podHasImages(pod, target.template.Images) })

		if updated != total {
			sink.WriteLine(fmt.Sprintf("Waiting for pods to be updated with image %s [%d/%d]",
				images, updated, total), slog.LevelInfo)

			return tickOutcome{pods: pods, delay: s.settings.ImagesPollInterval}
		}

		if latch(&state.imagesReached) {
			metrics.RecordGateReached(gateImages)
			sink.WriteLine(fmt.Sprintf("Pods are updated with image %s [%d/%d]", images, updated, total),
				slog.LevelInfo)
		}
	}

	if !target.needsLiveness(desired) {
		return tickOutcome{pods: pods, ready: true}
	}

	running := countPods(pods, isRunning)
	if running != total {
		sink.WriteLine(fmt.Sprintf("Waiting for pods to be running [%d/%d]", running, total), slog.LevelInfo)

		return tickOutcome{pods: pods, delay: s.settings.RunningPollInterval}
	}

	if latch(&state.runningReached) {
		metrics.RecordGateReached(gateRunning)
		sink.WriteLine(fmt.Sprintf("Pods are running [%d/%d]", running, total), slog.LevelInfo)
	}

	steady := countPods(pods, inSteadyState)
	if steady != total {
		sink.WriteLine(fmt.Sprintf("Waiting for pods to reach steady state [%d/%d]", steady, total), slog.LevelInfo)

		return tickOutcome{pods: pods, delay: s.settings.SteadyPollInterval}
	}

	if latch(&state.steadyReached) {
		metrics.RecordGateReached(gateSteady)
		sink.WriteLine(fmt.Sprintf("Pods have reached steady state [%d/%d]", steady, total), slog.LevelInfo)
	}

	return tickOutcome{pods: pods, ready: true}
}

// WaitForPodsToStop polls until no pod matching the labels is left.
// Running out of time is narrated and is not an error.
func (s *Service) WaitForPodsToStop(ctx context.Context, req StopRequest, sink LogSink) error {
	if req.StartTime.IsZero() {
		req.StartTime = s.clock.Now()
	}

	logger := s.logger.With("namespace", req.Namespace, "labels", req.Labels)

	waitCtx, cancel := context.WithTimeout(ctx, s.timeout(req.Timeout))
	defer cancel()

	seen := make(map[string]struct{})

	for {
		sink.WriteLine("Waiting for pods to stop...", slog.LevelInfo)

		listed, err := s.repo.ListPodsQuery(waitCtx, req.Namespace, req.Labels)
		if err != nil && waitCtx.Err() == nil {
			metrics.ObserveWait(metrics.OperationWaitStop, metrics.OutcomeFailed, s.clock.Since(req.StartTime))

			return fmt.Errorf("list pods: %w", classifyClusterError(err))
		}

		if err == nil {
			events := s.listEvents(waitCtx, req.Namespace, sink)
			s.showPodEvents(waitCtx, events, podNamesInOrder(req.OriginalPods, listed), seen, req.StartTime, sink)

			if len(pruneFinishedPods(listed)) == 0 {
				metrics.ObserveWait(metrics.OperationWaitStop, metrics.OutcomeStopped, s.clock.Since(req.StartTime))
				logger.InfoContext(ctx, "pods stopped")

				return nil
			}
		}

		if waitCtx.Err() != nil || !s.sleep(waitCtx, s.settings.StopPollInterval) {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		metrics.ObserveWait(metrics.OperationWaitStop, metrics.OutcomeFailed, s.clock.Since(req.StartTime))

		return err
	}

	metrics.ObserveWait(metrics.OperationWaitStop, metrics.OutcomeTimeout, s.clock.Since(req.StartTime))
	logger.WarnContext(ctx, "timed out waiting for pods to stop")
	sink.WriteLine("Timed out waiting for pods to stop", slog.LevelError)

	return nil
}

func isFatal(err error) bool {
	return errors.Is(err, ErrInvalidCredential) ||
		errors.Is(err, ErrAccessDenied) ||
		errors.Is(err, ErrUnsupportedOperation)
}

func countPods(pods []Pod, match func(Pod) bool) int {
	n := 0

	for _, pod := range pods {
		if match(pod) {
			n++
		}
	}

	return n
}
