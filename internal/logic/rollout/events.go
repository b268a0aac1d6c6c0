package rollout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skillcoder/rollout-verifier/internal/infra/metrics"
)

const (
	eventScopePod        = "pod"
	eventScopeController = "controller"

	podEventsHeader        = "\n****  Kubernetes Pod Events  ****"
	controllerEventsHeader = "\n****  Kubernetes Controller Events  ****"
)

// correlate returns events about objects in scope that are newer than since and not yet seen.
// Returned events are marked as seen.
func correlate(events []Event, scope map[string]struct{}, seen map[string]struct{}, since time.Time) []Event {
	fresh := make([]Event, 0)

	for _, event := range events {
		if _, ok := seen[event.Name]; ok {
			continue
		}

		if _, ok := scope[event.InvolvedObjectName]; !ok {
			continue
		}

		if !event.LastTimestamp.After(since) {
			continue
		}

		seen[event.Name] = struct{}{}
		fresh = append(fresh, event)
	}

	return fresh
}

// listEvents fetches the namespace events once per poll. A failure is logged and
// narrated as a warning and yields no events.
func (s *Service) listEvents(ctx context.Context, namespace string, sink LogSink) []Event {
	events, err := s.repo.ListEventsQuery(ctx, namespace)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to list events", "namespace", namespace, "reason", err)
		sink.WriteLine("Failed to fetch events: "+err.Error(), slog.LevelWarn)

		return nil
	}

	return events
}

// showPodEvents writes new events of the given pods, grouped by pod in the given order.
func (s *Service) showPodEvents(
	ctx context.Context,
	events []Event,
	podNames []string,
	seen map[string]struct{},
	since time.Time,
	sink LogSink,
) {
	s.showEvents(ctx, events, eventScopePod, podEventsHeader, "  Pod: ", podNames, seen, since, sink)
}

func (s *Service) showControllerEvents(
	ctx context.Context,
	events []Event,
	controllerName string,
	seen map[string]struct{},
	since time.Time,
	sink LogSink,
) {
	s.showEvents(ctx, events, eventScopeController, controllerEventsHeader, "  Controller: ",
		[]string{controllerName}, seen, since, sink)
}

// showEvents never fails the caller: any problem is logged and narrated as a warning.
func (s *Service) showEvents(
	ctx context.Context,
	events []Event,
	scopeName string,
	header string,
	label string,
	names []string,
	seen map[string]struct{},
	since time.Time,
	sink LogSink,
) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "panic while showing events", "scope", scopeName, "reason", r)
			sink.WriteLine(fmt.Sprintf("Failed to show %s events: %v", scopeName, r), slog.LevelWarn)
		}
	}()

	if len(names) == 0 || len(events) == 0 {
		return
	}

	scope := make(map[string]struct{}, len(names))
	for _, name := range names {
		scope[name] = struct{}{}
	}

	fresh := correlate(events, scope, seen, since)
	if len(fresh) == 0 {
		return
	}

	metrics.RecordClusterEvents(scopeName, len(fresh))

	byObject := make(map[string][]Event, len(names))
	for _, event := range fresh {
		byObject[event.InvolvedObjectName] = append(byObject[event.InvolvedObjectName], event)
	}

	sink.WriteLine(header, slog.LevelInfo)

	for _, name := range names {
		objectEvents, ok := byObject[name]
		if !ok {
			continue
		}

		sink.WriteLine(label+name, slog.LevelInfo)

		for _, event := range objectEvents {
			sink.WriteLine("   - "+event.Message, slog.LevelInfo)
		}
	}

	sink.WriteLine("", slog.LevelInfo)
}

// podNamesInOrder lists original pod names first, then new current ones, without duplicates.
func podNamesInOrder(original, current []Pod) []string {
	names := make([]string, 0, len(original)+len(current))
	known := make(map[string]struct{}, len(original)+len(current))

	for _, group := range [][]Pod{original, current} {
		for _, pod := range group {
			if _, ok := known[pod.Name]; ok {
				continue
			}

			known[pod.Name] = struct{}{}
			names = append(names, pod.Name)
		}
	}

	return names
}
