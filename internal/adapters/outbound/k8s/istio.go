package k8s

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/skillcoder/rollout-verifier/internal/logic/rollout"
)

// Istio routing resources.
var (
	VirtualServiceResource = schema.GroupVersionResource{
		Group:    "networking.istio.io",
		Version:  "v1alpha3",
		Resource: "virtualservices",
	}
	DestinationRuleResource = schema.GroupVersionResource{
		Group:    "networking.istio.io",
		Version:  "v1alpha3",
		Resource: "destinationrules",
	}
)

func (a *adapter) GetVirtualServiceQuery(
	ctx context.Context,
	namespace,
	name string,
) (*rollout.VirtualService, error) {
	obj, err := a.dynamic.Resource(VirtualServiceResource).Namespace(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}

		return nil, wrapAPIError("get virtual service", err)
	}

	return toDomainVirtualService(obj)
}

func (a *adapter) DeleteVirtualServiceCommand(ctx context.Context, namespace, name string) error {
	return a.deleteRouting(ctx, VirtualServiceResource, namespace, name)
}

func (a *adapter) DeleteDestinationRuleCommand(ctx context.Context, namespace, name string) error {
	return a.deleteRouting(ctx, DestinationRuleResource, namespace, name)
}

func (a *adapter) deleteRouting(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string) error {
	err := a.dynamic.Resource(gvr).Namespace(namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			a.logger.DebugContext(ctx, "routing resource already gone",
				"resource", gvr.Resource,
				"name", name,
				"namespace", namespace,
			)

			return nil
		}

		return wrapAPIError("delete "+gvr.Resource, err)
	}

	return nil
}

func toDomainVirtualService(obj *unstructured.Unstructured) (*rollout.VirtualService, error) {
	vs := &rollout.VirtualService{Name: obj.GetName()}

	httpRoutes, _, err := unstructured.NestedSlice(obj.Object, "spec", "http")
	if err != nil {
		return nil, fmt.Errorf("read virtual service http routes: %w", err)
	}

	for _, raw := range httpRoutes {
		httpRoute, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		destinations, _, err := unstructured.NestedSlice(httpRoute, "route")
		if err != nil {
			return nil, fmt.Errorf("read virtual service route: %w", err)
		}

		route := rollout.HTTPRoute{}

		for _, rawDest := range destinations {
			dest, ok := rawDest.(map[string]any)
			if !ok {
				continue
			}

			host, _, _ := unstructured.NestedString(dest, "destination", "host")
			subset, _, _ := unstructured.NestedString(dest, "destination", "subset")

			route.Route = append(route.Route, rollout.RouteDestination{
				Host:   host,
				Subset: subset,
				Weight: routeWeight(dest["weight"]),
			})
		}

		vs.HTTP = append(vs.HTTP, route)
	}

	return vs, nil
}

// routeWeight reads a weight decoded from JSON or YAML.
func routeWeight(v any) int {
	switch w := v.(type) {
	case int64:
		return int(w)
	case float64:
		return int(w)
	case int:
		return w
	default:
		return 0
	}
}
