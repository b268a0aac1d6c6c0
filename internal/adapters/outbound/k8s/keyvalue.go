package k8s

import (
	"context"
	"log/slog"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/skillcoder/rollout-verifier/internal/logic/rollout"
)

type configMapStore struct {
	logger    *slog.Logger
	clientset kubernetes.Interface
}

// NewConfigMapStore keeps named string maps in ConfigMaps.
func NewConfigMapStore(logger *slog.Logger, clientset kubernetes.Interface) rollout.KeyValueStore {
	return &configMapStore{
		logger:    logger,
		clientset: clientset,
	}
}

var _ rollout.KeyValueStore = (*configMapStore)(nil)

func (s *configMapStore) GetQuery(ctx context.Context, namespace, name string) (map[string]string, error) {
	cm, err := s.clientset.CoreV1().ConfigMaps(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}

		return nil, wrapAPIError("get config map", err)
	}

	if cm.Data == nil {
		return map[string]string{}, nil
	}

	return cm.Data, nil
}

func (s *configMapStore) CreateOrReplaceCommand(
	ctx context.Context,
	namespace,
	name string,
	data map[string]string,
) error {
	client := s.clientset.CoreV1().ConfigMaps(namespace)
	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Data:       data,
	}

	_, err := client.Create(ctx, cm, metav1.CreateOptions{})
	if err == nil {
		return nil
	}

	if !apierrors.IsAlreadyExists(err) {
		return wrapAPIError("create config map", err)
	}

	existing, err := client.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return wrapAPIError("get config map", err)
	}

	cm.ResourceVersion = existing.ResourceVersion
	cm.Labels = existing.Labels
	cm.Annotations = existing.Annotations

	_, err = client.Update(ctx, cm, metav1.UpdateOptions{})
	if err != nil {
		return wrapAPIError("replace config map", err)
	}

	s.logger.DebugContext(ctx, "replaced config map", "name", name, "namespace", namespace)

	return nil
}

type secretStore struct {
	logger    *slog.Logger
	clientset kubernetes.Interface
}

// NewSecretStore keeps named string maps in opaque Secrets.
func NewSecretStore(logger *slog.Logger, clientset kubernetes.Interface) rollout.KeyValueStore {
	return &secretStore{
		logger:    logger,
		clientset: clientset,
	}
}

var _ rollout.KeyValueStore = (*secretStore)(nil)

func (s *secretStore) GetQuery(ctx context.Context, namespace, name string) (map[string]string, error) {
	secret, err := s.clientset.CoreV1().Secrets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}

		return nil, wrapAPIError("get secret", err)
	}

	data := make(map[string]string, len(secret.Data)+len(secret.StringData))
	for key, value := range secret.Data {
		data[key] = string(value)
	}

	for key, value := range secret.StringData {
		data[key] = value
	}

	return data, nil
}

func (s *secretStore) CreateOrReplaceCommand(
	ctx context.Context,
	namespace,
	name string,
	data map[string]string,
) error {
	client := s.clientset.CoreV1().Secrets(namespace)

	raw := make(map[string][]byte, len(data))
	for key, value := range data {
		raw[key] = []byte(value)
	}

	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Type:       corev1.SecretTypeOpaque,
		Data:       raw,
	}

	_, err := client.Create(ctx, secret, metav1.CreateOptions{})
	if err == nil {
		return nil
	}

	if !apierrors.IsAlreadyExists(err) {
		return wrapAPIError("create secret", err)
	}

	existing, err := client.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return wrapAPIError("get secret", err)
	}

	secret.ResourceVersion = existing.ResourceVersion
	secret.Labels = existing.Labels
	secret.Annotations = existing.Annotations

	_, err = client.Update(ctx, secret, metav1.UpdateOptions{})
	if err != nil {
		return wrapAPIError("replace secret", err)
	}

	s.logger.DebugContext(ctx, "replaced secret", "name", name, "namespace", namespace)

	return nil
}
