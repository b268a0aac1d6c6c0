package rollout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// GetContainerInfosWhenReady optionally waits for the controller pods to converge and
// then reports every pod as SUCCESS or FAILURE.
//
// A timed out wait still returns the evaluated pods, together with ErrWaitTimedOut.
func (s *Service) GetContainerInfosWhenReady(
	ctx context.Context,
	req ReadinessRequest,
	sink LogSink,
) ([]ContainerInfo, error) {
	if req.StartTime.IsZero() {
		req.StartTime = s.clock.Now()
	}

	pods := req.OriginalPods

	var waitErr error

	if req.Wait {
		waited, err := s.waitForPodsToBeRunning(ctx, req, sink)
		if err != nil && !errors.Is(err, ErrWaitTimedOut) {
			return nil, err
		}

		pods, waitErr = waited, err
		if waitErr != nil && waited == nil {
			return nil, waitErr
		}
	}

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

	var images []string
	if template != nil {
		images = template.Images
	}

	desired := req.DesiredCount
	if desired == UnlimitedReplicas {
		desired, err = s.PodCount(ctrl)
		if err != nil {
			return nil, err
		}
	}

	if req.Wait && len(pods) != desired {
		live, err := s.PodCount(ctrl)
		if err != nil {
			return nil, err
		}

		msg := ""
		if live != desired {
			msg = fmt.Sprintf("Controller replica count is set to %d instead of %d. ", live, desired)
		}

		sink.WriteLine(msg+fmt.Sprintf("Pod count did not reach desired count (%d/%d)", len(pods), desired),
			slog.LevelError)
	}

	liveness := waitTarget{req: req}.needsLiveness(desired)
	infos := make([]ContainerInfo, 0, len(pods))

	for _, pod := range pods {
		infos = append(infos, s.evaluatePod(pod, ctrl.Name(), images, desired, liveness, req.OriginalPods, sink))
	}

	return infos, waitErr
}

func (s *Service) evaluatePod(
	pod Pod,
	workloadName string,
	images []string,
	desired int,
	liveness bool,
	originalPods []Pod,
	sink LogSink,
) ContainerInfo {
	info := ContainerInfo{
		HostName:     pod.HostIP,
		PodName:      pod.Name,
		IP:           pod.PodIP,
		ContainerID:  firstContainerID(pod),
		WorkloadName: workloadName,
		NewContainer: !slices.ContainsFunc(originalPods, func(p Pod) bool { return p.Name == pod.Name }),
		Status:       StatusSuccess,
	}

	failures := make([]string, 0)

	if desired > 0 && !podHasImages(pod, images) {
		failures = append(failures, fmt.Sprintf("Pod %s does not have image %s", pod.Name, formatImages(images)))
	}

	if liveness {
		if !isRunning(pod) {
			failures = append(failures, fmt.Sprintf("Pod %s failed to start", pod.Name))
		}

		if !inSteadyState(pod) {
			failures = append(failures, fmt.Sprintf("Pod %s failed to reach steady state", pod.Name))
		}
	}

	if len(failures) == 0 {
		sink.WriteLine(fmt.Sprintf("Pod [%s] is running. Host IP: %s. Pod IP: %s", pod.Name, pod.HostIP, pod.PodIP),
			slog.LevelInfo)

		return info
	}

	state := podStateMessage(pod)

	for _, failure := range failures {
		sink.WriteLine(failure, slog.LevelError)
	}

	sink.WriteLine(state, slog.LevelError)
	sink.WriteLine("\nCheck Kubernetes console for more information", slog.LevelError)

	info.Status = StatusFailure
	info.Reason = strings.Join(append(failures, state), "; ")

	return info
}

func podStateMessage(pod Pod) string {
	containers := make([]string, 0, len(pod.ContainerStatuses))
	for _, status := range pod.ContainerStatuses {
		containers = append(containers, containerMessage(status))
	}

	conditions := make([]string, 0, len(pod.Conditions))
	for _, cond := range pod.Conditions {
		conditions = append(conditions, conditionMessage(cond))
	}

	return fmt.Sprintf("Pod [%s] has state [%s]. Current status: phase - %s. Container status: [%s]. Condition: [%s].",
		pod.Name,
		pod.Phase,
		pod.Phase,
		strings.Join(containers, "], ["),
		strings.Join(conditions, "], ["),
	)
}

func containerMessage(status ContainerStatus) string {
	switch {
	case status.Running != nil:
		return status.Name + ": Started at " + status.Running.StartedAt.Format(time.RFC3339)
	case status.Waiting != nil:
		return status.Name + ": " + status.Waiting.Reason + " - " + status.Waiting.Message
	case status.Terminated != nil:
		return status.Name + ": " + status.Terminated.Reason + " - " + status.Terminated.Message
	default:
		return status.Name
	}
}

func conditionMessage(cond PodCondition) string {
	msg := cond.Type + ": " + cond.Status

	if cond.Reason != "" {
		msg += " - " + cond.Reason
	}

	if cond.Message != "" {
		msg += " - " + cond.Message
	}

	return msg
}

func firstContainerID(pod Pod) string {
	for _, status := range pod.ContainerStatuses {
		if status.ContainerID != "" {
			return shortContainerID(status.ContainerID)
		}
	}

	return ""
}

// shortContainerID drops the runtime scheme (docker://) and truncates the id.
func shortContainerID(id string) string {
	if _, after, ok := strings.Cut(id, "://"); ok {
		id = after
	}

	if len(id) > shortContainerIDLen {
		return id[:shortContainerIDLen]
	}

	return id
}

// podHasImages reports whether the pod runs every image in want.
func podHasImages(pod Pod, want []string) bool {
	for _, image := range want {
		if !slices.Contains(pod.Images, image) {
			return false
		}
	}

	return true
}

func isRunning(pod Pod) bool {
	return pod.Phase == phaseRunning
}

func inSteadyState(pod Pod) bool {
	if len(pod.Conditions) == 0 {
		return false
	}

	for _, cond := range pod.Conditions {
		if cond.Status != conditionTrue {
			return false
		}
	}

	return true
}

func pruneFinishedPods(pods []Pod) []Pod {
	kept := make([]Pod, 0, len(pods))

	for _, pod := range pods {
		if pod.Phase == phaseFailed || pod.Phase == phaseSucceeded {
			continue
		}

		kept = append(kept, pod)
	}

	return kept
}

func formatImages(images []string) string {
	return "[" + strings.Join(images, ", ") + "]"
}
