package k8s

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	jsonpatch "gopkg.in/evanphx/json-patch.v4"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/ptr"

	"github.com/skillcoder/rollout-verifier/internal/logic/rollout"
)

// statefulSetWorkload patches an existing StatefulSet instead of replacing it.
type statefulSetWorkload struct {
	*typedWorkload[*appsv1.StatefulSet, *appsv1.StatefulSetList]
}

// statefulSetPatchable is the part of a StatefulSet sent in a patch.
type statefulSetPatchable struct {
	Metadata statefulSetPatchMeta   `json:"metadata"`
	Spec     appsv1.StatefulSetSpec `json:"spec"`
}

type statefulSetPatchMeta struct {
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

func newStatefulSetWorkload(logger *slog.Logger, clientset kubernetes.Interface) rollout.WorkloadKind {
	return &statefulSetWorkload{
		typedWorkload: &typedWorkload[*appsv1.StatefulSet, *appsv1.StatefulSetList]{
			logger: logger,
			kind:   rollout.KindStatefulSet,
			client: func(ns string) typedClient[*appsv1.StatefulSet, *appsv1.StatefulSetList] {
				return clientset.AppsV1().StatefulSets(ns)
			},
			items: func(list *appsv1.StatefulSetList) []*appsv1.StatefulSet {
				return itemPointers(list.Items)
			},
			podCount: func(obj *appsv1.StatefulSet) int {
				return int(ptr.Deref(obj.Spec.Replicas, defaultReplicas))
			},
			template: func(obj *appsv1.StatefulSet) *corev1.PodTemplateSpec {
				return &obj.Spec.Template
			},
		},
	}
}

// CreateOrReplaceCommand merge patches labels, annotations and spec of an existing
// StatefulSet and creates it otherwise.
func (w *statefulSetWorkload) CreateOrReplaceCommand(
	ctx context.Context,
	namespace string,
	definition rollout.Object,
) (rollout.Object, error) {
	obj, ok := definition.(*appsv1.StatefulSet)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a %s", rollout.ErrUnsupportedOperation, definition, w.kind)
	}

	obj.SetNamespace(namespace)
	client := w.client(namespace)

	existing, err := client.Get(ctx, obj.Name, metav1.GetOptions{})
	if err != nil {
		if !apierrors.IsNotFound(err) {
			return nil, wrapAPIError("get "+string(w.kind), err)
		}

		created, err := client.Create(ctx, obj, metav1.CreateOptions{})
		if err != nil {
			return nil, wrapAPIError("create "+string(w.kind), err)
		}

		return created, nil
	}

	patch, err := statefulSetPatch(existing, obj)
	if err != nil {
		return nil, err
	}

	w.logger.DebugContext(ctx, "patching existing stateful set",
		"controller", obj.Name,
		"namespace", namespace,
		"patch", string(patch),
	)

	patched, err := client.Patch(ctx, obj.Name, types.MergePatchType, patch, metav1.PatchOptions{})
	if err != nil {
		return nil, wrapAPIError("patch "+string(w.kind), err)
	}

	return patched, nil
}

func statefulSetPatch(existing, desired *appsv1.StatefulSet) ([]byte, error) {
	original, err := json.Marshal(patchableStatefulSet(existing))
	if err != nil {
		return nil, fmt.Errorf("marshal existing stateful set: %w", err)
	}

	modified, err := json.Marshal(patchableStatefulSet(desired))
	if err != nil {
		return nil, fmt.Errorf("marshal desired stateful set: %w", err)
	}

	patch, err := jsonpatch.CreateMergePatch(original, modified)
	if err != nil {
		return nil, fmt.Errorf("create stateful set merge patch: %w", err)
	}

	return patch, nil
}

func patchableStatefulSet(obj *appsv1.StatefulSet) statefulSetPatchable {
	return statefulSetPatchable{
		Metadata: statefulSetPatchMeta{
			Labels:      obj.Labels,
			Annotations: obj.Annotations,
		},
		Spec: obj.Spec,
	}
}
