package rollout

import (
	"context"
	"fmt"
)

// FetchReleaseHistory returns the stored history of a release, or "" when there is none.
func (s *Service) FetchReleaseHistory(ctx context.Context, namespace, releaseName string) (string, error) {
	data, err := s.history.GetQuery(ctx, namespace, releaseName)
	if err != nil {
		return "", fmt.Errorf("fetch release history %s: %w", releaseName, classifyClusterError(err))
	}

	return data[ReleaseHistoryKey], nil
}

// SaveReleaseHistory overwrites the history key of a release, keeping other keys intact.
func (s *Service) SaveReleaseHistory(ctx context.Context, namespace, releaseName, history string) error {
	data, err := s.history.GetQuery(ctx, namespace, releaseName)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveReleaseHistory, classifyClusterError(err))
	}

	if data == nil {
		data = make(map[string]string, 1)
	}

	data[ReleaseHistoryKey] = history

	err = s.history.CreateOrReplaceCommand(ctx, namespace, releaseName, data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveReleaseHistory, classifyClusterError(err))
	}

	s.logger.DebugContext(ctx, "saved release history", "release", releaseName, "namespace", namespace)

	return nil
}
