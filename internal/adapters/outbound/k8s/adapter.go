package k8s

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"

	"github.com/skillcoder/rollout-verifier/internal/logic/rollout"
)

type adapter struct {
	logger    *slog.Logger
	clientset kubernetes.Interface
	dynamic   dynamic.Interface
	kinds     []rollout.WorkloadKind
}

// New creates a new K8s adapter.
func New(
	logger *slog.Logger,
	clientset kubernetes.Interface,
	dyn dynamic.Interface,
) rollout.Repository {
	logger = logger.With("adapter", "k8s")

	kinds := builtinWorkloads(logger, clientset)
	kinds = append(kinds, newDeploymentConfigWorkload(logger, dyn))

	return &adapter{
		logger:    logger,
		clientset: clientset,
		dynamic:   dyn,
		kinds:     kinds,
	}
}

var _ rollout.Repository = (*adapter)(nil)

func (a *adapter) WorkloadKinds() []rollout.WorkloadKind {
	return a.kinds
}

func (a *adapter) ListPodsQuery(
	ctx context.Context,
	namespace string,
	selector map[string]string,
) ([]rollout.Pod, error) {
	podList, err := a.clientset.CoreV1().Pods(namespace).List(ctx, listOptions(selector))
	if err != nil {
		return nil, wrapAPIError("list pods", err)
	}

	pods := make([]rollout.Pod, 0, len(podList.Items))
	for i := range podList.Items {
		pods = append(pods, toDomainPod(&podList.Items[i]))
	}

	slices.SortFunc(pods, func(x, y rollout.Pod) int {
		return cmp.Compare(x.Name, y.Name)
	})

	return pods, nil
}

func (a *adapter) ListEventsQuery(
	ctx context.Context,
	namespace string,
) ([]rollout.Event, error) {
	eventList, err := a.clientset.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, wrapAPIError("list events", err)
	}

	events := make([]rollout.Event, 0, len(eventList.Items))
	for i := range eventList.Items {
		events = append(events, toDomainEvent(&eventList.Items[i]))
	}

	slices.SortStableFunc(events, func(x, y rollout.Event) int {
		return x.LastTimestamp.Compare(y.LastTimestamp)
	})

	return events, nil
}
