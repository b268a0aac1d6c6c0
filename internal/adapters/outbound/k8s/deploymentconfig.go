package k8s

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"
	"k8s.io/utils/ptr"

	"github.com/skillcoder/rollout-verifier/internal/logic/rollout"
)

const deploymentConfigKind = "DeploymentConfig"

// DeploymentConfigResource is the OpenShift DeploymentConfig resource.
var DeploymentConfigResource = schema.GroupVersionResource{
	Group:    "apps.openshift.io",
	Version:  "v1",
	Resource: "deploymentconfigs",
}

// deploymentConfigWorkload reads OpenShift DeploymentConfigs as unstructured objects.
type deploymentConfigWorkload struct {
	logger  *slog.Logger
	dynamic dynamic.Interface
}

var _ rollout.WorkloadKind = (*deploymentConfigWorkload)(nil)

func newDeploymentConfigWorkload(logger *slog.Logger, dyn dynamic.Interface) rollout.WorkloadKind {
	return &deploymentConfigWorkload{
		logger:  logger,
		dynamic: dyn,
	}
}

func (w *deploymentConfigWorkload) Kind() rollout.Kind {
	return rollout.KindDeploymentConfig
}

func (w *deploymentConfigWorkload) Handles(obj rollout.Object) bool {
	u, ok := obj.(*unstructured.Unstructured)

	return ok && u.GetKind() == deploymentConfigKind
}

func (w *deploymentConfigWorkload) resource(namespace string) dynamic.ResourceInterface {
	return w.dynamic.Resource(DeploymentConfigResource).Namespace(namespace)
}

func (w *deploymentConfigWorkload) GetQuery(ctx context.Context, namespace, name string) (rollout.Object, error) {
	obj, err := w.resource(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}

		return nil, wrapAPIError("get DeploymentConfig", err)
	}

	return obj, nil
}

func (w *deploymentConfigWorkload) ListQuery(
	ctx context.Context,
	namespace string,
	selector map[string]string,
) ([]rollout.Object, error) {
	list, err := w.resource(namespace).List(ctx, listOptions(selector))
	if err != nil {
		return nil, wrapAPIError("list DeploymentConfig", err)
	}

	out := make([]rollout.Object, 0, len(list.Items))
	for i := range list.Items {
		out = append(out, &list.Items[i])
	}

	return out, nil
}

func (w *deploymentConfigWorkload) CreateOrReplaceCommand(
	ctx context.Context,
	namespace string,
	definition rollout.Object,
) (rollout.Object, error) {
	obj, ok := definition.(*unstructured.Unstructured)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a DeploymentConfig", rollout.ErrUnsupportedOperation, definition)
	}

	obj.SetNamespace(namespace)
	client := w.resource(namespace)

	created, err := client.Create(ctx, obj, metav1.CreateOptions{})
	if err == nil {
		return created, nil
	}

	if !apierrors.IsAlreadyExists(err) {
		return nil, wrapAPIError("create DeploymentConfig", err)
	}

	existing, err := client.Get(ctx, obj.GetName(), metav1.GetOptions{})
	if err != nil {
		return nil, wrapAPIError("get DeploymentConfig", err)
	}

	obj.SetResourceVersion(existing.GetResourceVersion())

	w.logger.DebugContext(ctx, "replacing existing controller",
		"kind", rollout.KindDeploymentConfig,
		"controller", obj.GetName(),
		"namespace", namespace,
	)

	updated, err := client.Update(ctx, obj, metav1.UpdateOptions{})
	if err != nil {
		return nil, wrapAPIError("replace DeploymentConfig", err)
	}

	return updated, nil
}

func (w *deploymentConfigWorkload) ScaleCommand(ctx context.Context, namespace, name string, replicas int32) error {
	patch, err := replicasPatch(replicas)
	if err != nil {
		return err
	}

	_, err = w.resource(namespace).Patch(ctx, name, types.MergePatchType, patch, metav1.PatchOptions{})
	if err != nil {
		return wrapAPIError("scale DeploymentConfig", err)
	}

	return nil
}

func (w *deploymentConfigWorkload) DeleteCommand(ctx context.Context, namespace, name string) error {
	err := w.resource(namespace).Delete(ctx, name, metav1.DeleteOptions{
		PropagationPolicy: ptr.To(metav1.DeletePropagationForeground),
	})
	if err != nil && !apierrors.IsNotFound(err) {
		return wrapAPIError("delete DeploymentConfig", err)
	}

	return nil
}

func (w *deploymentConfigWorkload) PodCount(obj rollout.Object) (int, error) {
	u, ok := obj.(*unstructured.Unstructured)
	if !ok {
		return 0, fmt.Errorf("%w: %T is not a DeploymentConfig", rollout.ErrUnsupportedOperation, obj)
	}

	replicas, found, err := unstructured.NestedInt64(u.Object, "spec", "replicas")
	if err != nil {
		return 0, fmt.Errorf("read DeploymentConfig replicas: %w", err)
	}

	if !found {
		return defaultReplicas, nil
	}

	return int(replicas), nil
}

func (w *deploymentConfigWorkload) PodTemplate(obj rollout.Object) (*rollout.PodTemplate, error) {
	u, ok := obj.(*unstructured.Unstructured)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a DeploymentConfig", rollout.ErrUnsupportedOperation, obj)
	}

	labels, _, err := unstructured.NestedStringMap(u.Object, "spec", "template", "metadata", "labels")
	if err != nil {
		return nil, fmt.Errorf("read DeploymentConfig template labels: %w", err)
	}

	containers, _, err := unstructured.NestedSlice(u.Object, "spec", "template", "spec", "containers")
	if err != nil {
		return nil, fmt.Errorf("read DeploymentConfig containers: %w", err)
	}

	images := make([]string, 0, len(containers))

	for _, c := range containers {
		container, ok := c.(map[string]any)
		if !ok {
			continue
		}

		image, _, _ := unstructured.NestedString(container, "image")
		if image != "" && !slices.Contains(images, image) {
			images = append(images, image)
		}
	}

	return &rollout.PodTemplate{Labels: labels, Images: images}, nil
}
