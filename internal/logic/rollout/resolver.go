package rollout

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/skillcoder/rollout-verifier/internal/infra/metrics"
)

// kindResult is the outcome of one kind in a fan-out list.
type kindResult struct {
	kind  Kind
	items []Object
	err   error
}

func orderKinds(kinds []WorkloadKind) []WorkloadKind {
	byKind := make(map[Kind]WorkloadKind, len(kinds))
	for _, k := range kinds {
		byKind[k.Kind()] = k
	}

	ordered := make([]WorkloadKind, 0, len(resolutionOrder))

	for _, kind := range resolutionOrder {
		if k, ok := byKind[kind]; ok {
			ordered = append(ordered, k)
		}
	}

	return ordered
}

func (s *Service) kindOf(kind Kind) (WorkloadKind, bool) {
	for _, k := range s.kinds {
		if k.Kind() == kind {
			return k, true
		}
	}

	return nil, false
}

// GetController finds the controller named name among all supported kinds.
// It returns nil and no error when no kind has it.
//
// When every kind fails the whole probe is retried until the lookup timeout
// or ctx expires. Authentication and authorization failures are not retried.
func (s *Service) GetController(ctx context.Context, namespace, name string) (*Controller, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}

	logger := s.logger.With("controller", name, "namespace", namespace)

	lookupCtx, cancel := context.WithTimeout(ctx, s.settings.ControllerLookupTimeout)
	defer cancel()

	var lastErr error

	operation := func() (*Controller, error) {
		ctrl, err := s.probeController(lookupCtx, namespace, name)
		if err == nil {
			return ctrl, nil
		}

		if isAuthError(err) {
			return nil, backoff.Permanent(err)
		}

		lastErr = err

		return nil, err
	}

	notify := func(err error, next time.Duration) {
		metrics.RecordControllerLookupRetry()
		logger.WarnContext(ctx, "retrying controller lookup", "reason", err, "next", next)
	}

	ctrl, err := backoff.RetryNotifyWithData(
		operation,
		backoff.WithContext(backoff.NewConstantBackOff(s.settings.ControllerRetryInterval), lookupCtx),
		notify,
	)
	if err != nil {
		if lastErr != nil && !errors.Is(err, lastErr) {
			return nil, fmt.Errorf("%w %s: %w: %w", ErrControllerLookup, name, err, lastErr)
		}

		return nil, fmt.Errorf("%w %s: %w", ErrControllerLookup, name, err)
	}

	if ctrl != nil {
		logger.DebugContext(ctx, "got controller", "kind", ctrl.Kind)
	}

	return ctrl, nil
}

// probeController asks every kind once, in resolution order.
func (s *Service) probeController(ctx context.Context, namespace, name string) (*Controller, error) {
	failures := make(map[Kind]error, len(s.kinds))

	for _, kind := range s.kinds {
		obj, err := kind.GetQuery(ctx, namespace, name)
		if err != nil {
			var target unauthorized
			if errors.As(err, &target) {
				return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
			}

			failures[kind.Kind()] = err

			continue
		}

		if obj != nil {
			return &Controller{Kind: kind.Kind(), Object: obj}, nil
		}
	}

	if len(s.kinds) > 0 && len(failures) == len(s.kinds) {
		return nil, classifyClusterError(surfacedError(s.kinds, failures))
	}

	return nil, nil
}

// ListControllers lists controllers of every kind in namespace.
func (s *Service) ListControllers(ctx context.Context, namespace string) ([]*Controller, error) {
	return s.fanOutList(ctx, namespace, nil)
}

// GetControllers lists controllers of every kind matching labels.
func (s *Service) GetControllers(
	ctx context.Context,
	namespace string,
	labels map[string]string,
) ([]*Controller, error) {
	return s.fanOutList(ctx, namespace, labels)
}

func (s *Service) fanOutList(
	ctx context.Context,
	namespace string,
	labels map[string]string,
) ([]*Controller, error) {
	results := make([]kindResult, 0, len(s.kinds))

	for _, kind := range s.kinds {
		items, err := kind.ListQuery(ctx, namespace, labels)
		if err != nil {
			s.logger.DebugContext(ctx, "list controllers failed for kind",
				"kind", kind.Kind(),
				"namespace", namespace,
				"reason", err,
			)
		}

		results = append(results, kindResult{kind: kind.Kind(), items: items, err: err})
	}

	return aggregateControllers(results)
}

// aggregateControllers keeps items of successful kinds. It fails only when every kind failed.
func aggregateControllers(results []kindResult) ([]*Controller, error) {
	controllers := make([]*Controller, 0)
	failures := make(map[Kind]error)

	var firstFailed Kind

	for _, res := range results {
		if res.err != nil {
			if len(failures) == 0 {
				firstFailed = res.kind
			}

			failures[res.kind] = res.err

			continue
		}

		for _, obj := range res.items {
			controllers = append(controllers, &Controller{Kind: res.kind, Object: obj})
		}
	}

	if len(results) > 0 && len(failures) == len(results) {
		err, ok := failures[KindDeployment]
		if !ok {
			err = failures[firstFailed]
		}

		return nil, fmt.Errorf("list controllers: %w", classifyClusterError(err))
	}

	return controllers, nil
}

// PodCount returns the desired replica count of a controller.
func (s *Service) PodCount(ctrl *Controller) (int, error) {
	if ctrl == nil {
		return 0, fmt.Errorf("%w: controller is nil", ErrInvalidRequest)
	}

	kind, ok := s.kindOf(ctrl.Kind)
	if !ok {
		return 0, fmt.Errorf(
			"%w: Unhandled kubernetes resource type [%s] for getting the pod count",
			ErrUnsupportedOperation,
			ctrl.Kind,
		)
	}

	return kind.PodCount(ctrl.Object)
}

// PodTemplate returns the pod template of a controller, or nil for unknown kinds.
func (s *Service) PodTemplate(ctrl *Controller) (*PodTemplate, error) {
	if ctrl == nil {
		return nil, nil
	}

	kind, ok := s.kindOf(ctrl.Kind)
	if !ok {
		return nil, nil
	}

	return kind.PodTemplate(ctrl.Object)
}

// ControllerPodCount returns the replica count of the named controller and whether it exists.
func (s *Service) ControllerPodCount(ctx context.Context, namespace, name string) (int, bool, error) {
	ctrl, err := s.GetController(ctx, namespace, name)
	if err != nil {
		return 0, false, err
	}

	if ctrl == nil {
		return 0, false, nil
	}

	count, err := s.PodCount(ctrl)
	if err != nil {
		return 0, false, err
	}

	return count, true, nil
}

// DeleteController deletes the named controller of whichever kind it is. Absent controllers are ignored.
func (s *Service) DeleteController(ctx context.Context, namespace, name string) error {
	logger := s.logger.With("controller", name, "namespace", namespace)
	logger.InfoContext(ctx, "deleting controller")

	ctrl, err := s.GetController(ctx, namespace, name)
	if err != nil {
		return err
	}

	if ctrl == nil {
		logger.InfoContext(ctx, "controller not found, nothing to delete")

		return nil
	}

	kind, ok := s.kindOf(ctrl.Kind)
	if !ok {
		return fmt.Errorf("%w: cannot delete kind %s", ErrUnsupportedOperation, ctrl.Kind)
	}

	err = kind.DeleteCommand(ctx, namespace, name)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", ctrl.Kind, name, classifyClusterError(err))
	}

	return nil
}

// CreateOrReplaceController applies a controller definition based on its own kind.
func (s *Service) CreateOrReplaceController(
	ctx context.Context,
	namespace string,
	definition Object,
) (*Controller, error) {
	if definition == nil {
		return nil, fmt.Errorf("%w: definition is nil", ErrInvalidRequest)
	}

	for _, kind := range s.kinds {
		if !kind.Handles(definition) {
			continue
		}

		s.logger.InfoContext(ctx, "creating controller",
			"kind", kind.Kind(),
			"controller", definition.GetName(),
			"namespace", namespace,
		)

		obj, err := kind.CreateOrReplaceCommand(ctx, namespace, definition)
		if err != nil {
			return nil, fmt.Errorf("create or replace %s %s: %w",
				kind.Kind(), definition.GetName(), classifyClusterError(err))
		}

		return &Controller{Kind: kind.Kind(), Object: obj}, nil
	}

	return nil, fmt.Errorf(
		"%w: Unhandled kubernetes resource type [%s] for create or replace",
		ErrUnsupportedOperation,
		definition.GetObjectKind().GroupVersionKind().Kind,
	)
}

// RunningPods lists the pods selected by the named controller's template labels.
func (s *Service) RunningPods(ctx context.Context, namespace, controllerName string) ([]Pod, error) {
	ctrl, err := s.GetController(ctx, namespace, controllerName)
	if err != nil {
		return nil, err
	}

	template, err := s.PodTemplate(ctrl)
	if err != nil {
		return nil, err
	}

	if template == nil {
		return []Pod{}, nil
	}

	pods, err := s.repo.ListPodsQuery(ctx, namespace, template.Labels)
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", classifyClusterError(err))
	}

	return pods, nil
}

// RunningPodsWithLabels lists pods that are running and not being deleted.
func (s *Service) RunningPodsWithLabels(
	ctx context.Context,
	namespace string,
	labels map[string]string,
) ([]Pod, error) {
	pods, err := s.repo.ListPodsQuery(ctx, namespace, labels)
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", classifyClusterError(err))
	}

	return slices.DeleteFunc(pods, func(pod Pod) bool {
		return pod.Deleting || pod.Phase != phaseRunning
	}), nil
}

// ActiveServiceCounts returns the revisions of a service that still run pods, oldest first.
func (s *Service) ActiveServiceCounts(
	ctx context.Context,
	namespace,
	controllerName string,
) ([]ActiveService, error) {
	versioned, err := s.activeVersions(ctx, namespace, controllerName)
	if err != nil {
		return nil, err
	}

	active := make([]ActiveService, 0, len(versioned))
	for _, v := range versioned {
		active = append(active, v.ActiveService)
	}

	return active, nil
}

// ActiveServiceImages maps every active revision to its first image tagged from imagePrefix.
func (s *Service) ActiveServiceImages(
	ctx context.Context,
	namespace,
	controllerName,
	imagePrefix string,
) (map[string]string, error) {
	versioned, err := s.activeVersions(ctx, namespace, controllerName)
	if err != nil {
		return nil, err
	}

	images := make(map[string]string, len(versioned))

	for _, v := range versioned {
		image := noImage

		template, err := s.PodTemplate(v.controller)
		if err != nil {
			return nil, err
		}

		if template != nil {
			for _, candidate := range template.Images {
				if strings.HasPrefix(candidate, imagePrefix+":") {
					image = candidate

					break
				}
			}
		}

		images[v.Name] = image
	}

	return images, nil
}

type activeVersion struct {
	ActiveService

	controller *Controller
}

func (s *Service) activeVersions(ctx context.Context, namespace, controllerName string) ([]activeVersion, error) {
	prefix := PrefixFromControllerName(controllerName)

	controllers, err := s.ListControllers(ctx, namespace)
	if err != nil {
		return nil, err
	}

	versions := make([]activeVersion, 0)

	for _, ctrl := range controllers {
		name := ctrl.Name()
		if len(ctrl.Object.GetOwnerReferences()) > 0 || PrefixFromControllerName(name) != prefix {
			continue
		}

		revision, ok := RevisionFromControllerName(name)
		if !ok {
			continue
		}

		count, err := s.PodCount(ctrl)
		if err != nil || count <= 0 {
			continue
		}

		versions = append(versions, activeVersion{
			ActiveService: ActiveService{Name: name, Revision: revision, Count: count},
			controller:    ctrl,
		})
	}

	slices.SortStableFunc(versions, func(a, b activeVersion) int {
		return cmp.Compare(a.Revision, b.Revision)
	})

	return versions, nil
}

func surfacedError(kinds []WorkloadKind, failures map[Kind]error) error {
	if err, ok := failures[KindDeployment]; ok {
		return err
	}

	for _, k := range kinds {
		if err, ok := failures[k.Kind()]; ok {
			return err
		}
	}

	return nil
}

func classifyClusterError(err error) error {
	var unauthorizedErr unauthorized
	if errors.As(err, &unauthorizedErr) {
		return fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}

	var forbiddenErr forbidden
	if errors.As(err, &forbiddenErr) {
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	}

	return err
}

func isAuthError(err error) bool {
	return errors.Is(err, ErrInvalidCredential) || errors.Is(err, ErrAccessDenied)
}
