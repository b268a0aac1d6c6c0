package k8s

import (
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/yaml"

	"github.com/skillcoder/rollout-verifier/internal/logic/rollout"
)

var ErrInvalidManifest = errors.New("invalid manifest")

// DecodeManifest turns a single YAML or JSON controller definition into an object.
// Kinds known to client-go decode to their typed structs, anything else stays unstructured.
func DecodeManifest(data []byte) (rollout.Object, error) {
	raw, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	obj, gvk, err := scheme.Codecs.UniversalDeserializer().Decode(raw, nil, nil)
	if err == nil {
		typed, ok := obj.(rollout.Object)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no object metadata", ErrInvalidManifest, gvk)
		}

		return typed, nil
	}

	if !runtime.IsNotRegisteredError(err) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	u := &unstructured.Unstructured{}
	if err := u.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	if u.GetName() == "" {
		return nil, fmt.Errorf("%w: %s has no name", ErrInvalidManifest, u.GetKind())
	}

	return u, nil
}
