package k8s

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/ptr"

	"github.com/skillcoder/rollout-verifier/internal/logic/rollout"
)

// defaultReplicas is what the API server assumes when spec.replicas is unset.
const defaultReplicas = 1

// typedClient is the subset of a generated client-go resource interface the adapter needs.
type typedClient[T any, L any] interface {
	Get(ctx context.Context, name string, opts metav1.GetOptions) (T, error)
	List(ctx context.Context, opts metav1.ListOptions) (L, error)
	Create(ctx context.Context, obj T, opts metav1.CreateOptions) (T, error)
	Update(ctx context.Context, obj T, opts metav1.UpdateOptions) (T, error)
	Patch(
		ctx context.Context,
		name string,
		pt types.PatchType,
		data []byte,
		opts metav1.PatchOptions,
		subresources ...string,
	) (T, error)
	Delete(ctx context.Context, name string, opts metav1.DeleteOptions) error
}

// typedWorkload implements rollout.WorkloadKind for one built-in workload type.
type typedWorkload[T rollout.Object, L any] struct {
	logger   *slog.Logger
	kind     rollout.Kind
	client   func(namespace string) typedClient[T, L]
	items    func(list L) []T
	podCount func(obj T) int
	template func(obj T) *corev1.PodTemplateSpec
}

var _ rollout.WorkloadKind = (*typedWorkload[*appsv1.Deployment, *appsv1.DeploymentList])(nil)

func (w *typedWorkload[T, L]) Kind() rollout.Kind {
	return w.kind
}

func (w *typedWorkload[T, L]) Handles(obj rollout.Object) bool {
	_, ok := obj.(T)

	return ok
}

func (w *typedWorkload[T, L]) GetQuery(ctx context.Context, namespace, name string) (rollout.Object, error) {
	obj, err := w.client(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}

		return nil, wrapAPIError("get "+string(w.kind), err)
	}

	return obj, nil
}

func (w *typedWorkload[T, L]) ListQuery(
	ctx context.Context,
	namespace string,
	selector map[string]string,
) ([]rollout.Object, error) {
	list, err := w.client(namespace).List(ctx, listOptions(selector))
	if err != nil {
		return nil, wrapAPIError("list "+string(w.kind), err)
	}

	items := w.items(list)
	out := make([]rollout.Object, 0, len(items))

	for _, item := range items {
		out = append(out, item)
	}

	return out, nil
}

// CreateOrReplaceCommand creates the object or replaces the existing one in place.
func (w *typedWorkload[T, L]) CreateOrReplaceCommand(
	ctx context.Context,
	namespace string,
	definition rollout.Object,
) (rollout.Object, error) {
	obj, ok := definition.(T)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a %s", rollout.ErrUnsupportedOperation, definition, w.kind)
	}

	obj.SetNamespace(namespace)
	client := w.client(namespace)

	created, err := client.Create(ctx, obj, metav1.CreateOptions{})
	if err == nil {
		return created, nil
	}

	if !apierrors.IsAlreadyExists(err) {
		return nil, wrapAPIError("create "+string(w.kind), err)
	}

	existing, err := client.Get(ctx, obj.GetName(), metav1.GetOptions{})
	if err != nil {
		return nil, wrapAPIError("get "+string(w.kind), err)
	}

	obj.SetResourceVersion(existing.GetResourceVersion())

	w.logger.DebugContext(ctx, "replacing existing controller",
		"kind", w.kind,
		"controller", obj.GetName(),
		"namespace", namespace,
	)

	updated, err := client.Update(ctx, obj, metav1.UpdateOptions{})
	if err != nil {
		return nil, wrapAPIError("replace "+string(w.kind), err)
	}

	return updated, nil
}

func (w *typedWorkload[T, L]) ScaleCommand(ctx context.Context, namespace, name string, replicas int32) error {
	patch, err := replicasPatch(replicas)
	if err != nil {
		return err
	}

	_, err = w.client(namespace).Patch(ctx, name, types.MergePatchType, patch, metav1.PatchOptions{})
	if err != nil {
		return wrapAPIError("scale "+string(w.kind), err)
	}

	return nil
}

func (w *typedWorkload[T, L]) DeleteCommand(ctx context.Context, namespace, name string) error {
	err := w.client(namespace).Delete(ctx, name, metav1.DeleteOptions{
		PropagationPolicy: ptr.To(metav1.DeletePropagationForeground),
	})
	if err != nil && !apierrors.IsNotFound(err) {
		return wrapAPIError("delete "+string(w.kind), err)
	}

	return nil
}

func (w *typedWorkload[T, L]) PodCount(obj rollout.Object) (int, error) {
	typed, ok := obj.(T)
	if !ok {
		return 0, fmt.Errorf("%w: %T is not a %s", rollout.ErrUnsupportedOperation, obj, w.kind)
	}

	return w.podCount(typed), nil
}

func (w *typedWorkload[T, L]) PodTemplate(obj rollout.Object) (*rollout.PodTemplate, error) {
	typed, ok := obj.(T)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a %s", rollout.ErrUnsupportedOperation, obj, w.kind)
	}

	return toDomainPodTemplate(w.template(typed)), nil
}

func builtinWorkloads(logger *slog.Logger, clientset kubernetes.Interface) []rollout.WorkloadKind {
	return []rollout.WorkloadKind{
		&typedWorkload[*corev1.ReplicationController, *corev1.ReplicationControllerList]{
			logger: logger,
			kind:   rollout.KindReplicationController,
			client: func(ns string) typedClient[*corev1.ReplicationController, *corev1.ReplicationControllerList] {
				return clientset.CoreV1().ReplicationControllers(ns)
			},
			items: func(list *corev1.ReplicationControllerList) []*corev1.ReplicationController {
				return itemPointers(list.Items)
			},
			podCount: func(obj *corev1.ReplicationController) int {
				return int(ptr.Deref(obj.Spec.Replicas, defaultReplicas))
			},
			template: func(obj *corev1.ReplicationController) *corev1.PodTemplateSpec {
				return obj.Spec.Template
			},
		},
		&typedWorkload[*appsv1.Deployment, *appsv1.DeploymentList]{
			logger: logger,
			kind:   rollout.KindDeployment,
			client: func(ns string) typedClient[*appsv1.Deployment, *appsv1.DeploymentList] {
				return clientset.AppsV1().Deployments(ns)
			},
			items: func(list *appsv1.DeploymentList) []*appsv1.Deployment {
				return itemPointers(list.Items)
			},
			podCount: func(obj *appsv1.Deployment) int {
				return int(ptr.Deref(obj.Spec.Replicas, defaultReplicas))
			},
			template: func(obj *appsv1.Deployment) *corev1.PodTemplateSpec {
				return &obj.Spec.Template
			},
		},
		&typedWorkload[*appsv1.ReplicaSet, *appsv1.ReplicaSetList]{
			logger: logger,
			kind:   rollout.KindReplicaSet,
			client: func(ns string) typedClient[*appsv1.ReplicaSet, *appsv1.ReplicaSetList] {
				return clientset.AppsV1().ReplicaSets(ns)
			},
			items: func(list *appsv1.ReplicaSetList) []*appsv1.ReplicaSet {
				return itemPointers(list.Items)
			},
			podCount: func(obj *appsv1.ReplicaSet) int {
				return int(ptr.Deref(obj.Spec.Replicas, defaultReplicas))
			},
			template: func(obj *appsv1.ReplicaSet) *corev1.PodTemplateSpec {
				return &obj.Spec.Template
			},
		},
		newStatefulSetWorkload(logger, clientset),
		&typedWorkload[*appsv1.DaemonSet, *appsv1.DaemonSetList]{
			logger: logger,
			kind:   rollout.KindDaemonSet,
			client: func(ns string) typedClient[*appsv1.DaemonSet, *appsv1.DaemonSetList] {
				return clientset.AppsV1().DaemonSets(ns)
			},
			items: func(list *appsv1.DaemonSetList) []*appsv1.DaemonSet {
				return itemPointers(list.Items)
			},
			podCount: func(obj *appsv1.DaemonSet) int {
				return int(obj.Status.DesiredNumberScheduled)
			},
			template: func(obj *appsv1.DaemonSet) *corev1.PodTemplateSpec {
				return &obj.Spec.Template
			},
		},
	}
}

func itemPointers[T any](items []T) []*T {
	out := make([]*T, 0, len(items))
	for i := range items {
		out = append(out, &items[i])
	}

	return out
}

func listOptions(selector map[string]string) metav1.ListOptions {
	if len(selector) == 0 {
		return metav1.ListOptions{}
	}

	return metav1.ListOptions{LabelSelector: labels.SelectorFromSet(selector).String()}
}

func replicasPatch(replicas int32) ([]byte, error) {
	patch := map[string]any{
		"spec": map[string]any{
			"replicas": replicas,
		},
	}

	patchBytes, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("marshal replicas patch: %w", err)
	}

	return patchBytes, nil
}
