package k8s

import (
	"slices"

	corev1 "k8s.io/api/core/v1"

	"github.com/skillcoder/rollout-verifier/internal/logic/rollout"
)

func toDomainPod(pod *corev1.Pod) rollout.Pod {
	out := rollout.Pod{
		Name:      pod.Name,
		Namespace: pod.Namespace,
		Labels:    pod.Labels,
		Phase:     string(pod.Status.Phase),
		HostIP:    pod.Status.HostIP,
		PodIP:     pod.Status.PodIP,
		Deleting:  pod.DeletionTimestamp != nil,
		Images:    containerImages(pod.Spec.Containers),
	}

	for i := range pod.Status.Conditions {
		cond := &pod.Status.Conditions[i]
		out.Conditions = append(out.Conditions, rollout.PodCondition{
			Type:    string(cond.Type),
			Status:  string(cond.Status),
			Reason:  cond.Reason,
			Message: cond.Message,
		})
	}

	for i := range pod.Status.ContainerStatuses {
		out.ContainerStatuses = append(out.ContainerStatuses, toDomainContainerStatus(&pod.Status.ContainerStatuses[i]))
	}

	return out
}

func toDomainContainerStatus(status *corev1.ContainerStatus) rollout.ContainerStatus {
	out := rollout.ContainerStatus{
		Name:        status.Name,
		Image:       status.Image,
		ContainerID: status.ContainerID,
	}

	switch {
	case status.State.Running != nil:
		out.Running = &rollout.ContainerRunning{StartedAt: status.State.Running.StartedAt.Time}
	case status.State.Waiting != nil:
		out.Waiting = &rollout.ContainerStateDetail{
			Reason:  status.State.Waiting.Reason,
			Message: status.State.Waiting.Message,
		}
	case status.State.Terminated != nil:
		out.Terminated = &rollout.ContainerStateDetail{
			Reason:  status.State.Terminated.Reason,
			Message: status.State.Terminated.Message,
		}
	}

	return out
}

func toDomainEvent(event *corev1.Event) rollout.Event {
	timestamp := event.LastTimestamp.Time

	switch {
	case !timestamp.IsZero():
	case !event.EventTime.IsZero():
		timestamp = event.EventTime.Time
	case !event.FirstTimestamp.IsZero():
		timestamp = event.FirstTimestamp.Time
	default:
		timestamp = event.CreationTimestamp.Time
	}

	return rollout.Event{
		Name:               event.Name,
		InvolvedObjectName: event.InvolvedObject.Name,
		Message:            event.Message,
		Type:               event.Type,
		Reason:             event.Reason,
		LastTimestamp:      timestamp,
	}
}

func toDomainPodTemplate(template *corev1.PodTemplateSpec) *rollout.PodTemplate {
	if template == nil {
		return nil
	}

	return &rollout.PodTemplate{
		Labels: template.Labels,
		Images: containerImages(template.Spec.Containers),
	}
}

// containerImages lists distinct container images in declaration order.
func containerImages(containers []corev1.Container) []string {
	images := make([]string, 0, len(containers))

	for i := range containers {
		if !slices.Contains(images, containers[i].Image) {
			images = append(images, containers[i].Image)
		}
	}

	return images
}
