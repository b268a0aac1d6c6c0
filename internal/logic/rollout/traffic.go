package rollout

import (
	"context"
	"fmt"
	"strconv"
)

// GetTrafficPercent returns the weight the routing resource gives to the controller revision.
// Missing routing data yields 0.
func (s *Service) GetTrafficPercent(ctx context.Context, namespace, controllerName string) (int, error) {
	revision, ok := RevisionFromControllerName(controllerName)
	if !ok {
		return 0, nil
	}

	vs, err := s.routingResource(ctx, namespace, controllerName)
	if err != nil || vs == nil || len(vs.HTTP) == 0 {
		return 0, err
	}

	subset := strconv.Itoa(revision)

	for _, route := range vs.HTTP[0].Route {
		if route.Subset == subset {
			return route.Weight, nil
		}
	}

	return 0, nil
}

// GetTrafficWeights maps every routed revision (prefix-subset) to its weight.
func (s *Service) GetTrafficWeights(ctx context.Context, namespace, controllerName string) (map[string]int, error) {
	weights := make(map[string]int)

	vs, err := s.routingResource(ctx, namespace, controllerName)
	if err != nil || vs == nil || len(vs.HTTP) == 0 {
		return weights, err
	}

	prefix := PrefixFromControllerName(controllerName)

	for _, route := range vs.HTTP[0].Route {
		weights[prefix+revisionSeparator+route.Subset] = route.Weight
	}

	return weights, nil
}

// DeleteVirtualService removes the routing resource of a service. Failures are only logged.
func (s *Service) DeleteVirtualService(ctx context.Context, namespace, serviceName string) {
	err := s.repo.DeleteVirtualServiceCommand(ctx, namespace, serviceName)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to delete virtual service",
			"name", serviceName,
			"namespace", namespace,
			"reason", err,
		)
	}
}

// DeleteDestinationRule removes the destination rule of a service. Failures are only logged.
func (s *Service) DeleteDestinationRule(ctx context.Context, namespace, serviceName string) {
	err := s.repo.DeleteDestinationRuleCommand(ctx, namespace, serviceName)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to delete destination rule",
			"name", serviceName,
			"namespace", namespace,
			"reason", err,
		)
	}
}

func (s *Service) routingResource(ctx context.Context, namespace, controllerName string) (*VirtualService, error) {
	for _, name := range routingNames(controllerName) {
		vs, err := s.repo.GetVirtualServiceQuery(ctx, namespace, name)
		if err != nil {
			return nil, fmt.Errorf("get virtual service %s: %w", name, classifyClusterError(err))
		}

		if vs != nil {
			return vs, nil
		}
	}

	return nil, nil
}
