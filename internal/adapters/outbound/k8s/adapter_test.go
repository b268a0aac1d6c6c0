package k8s_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
	"k8s.io/utils/ptr"

	"github.com/skillcoder/rollout-verifier/internal/adapters/outbound/k8s"
	"github.com/skillcoder/rollout-verifier/internal/logic/rollout"
)

const testNamespace = "default"

func newDynamicClient(objects ...runtime.Object) *dynamicfake.FakeDynamicClient {
	return dynamicfake.NewSimpleDynamicClientWithCustomListKinds(
		runtime.NewScheme(),
		map[schema.GroupVersionResource]string{
			k8s.DeploymentConfigResource: "DeploymentConfigList",
			k8s.VirtualServiceResource:   "VirtualServiceList",
			k8s.DestinationRuleResource:  "DestinationRuleList",
		},
		objects...,
	)
}

func newDeployment(name string, replicas int32, image string) *appsv1.Deployment {
	labels := map[string]string{"app": name}

	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: testNamespace},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To(replicas),
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{Name: "app", Image: image},
						{Name: "sidecar", Image: image},
					},
				},
			},
		},
	}
}

func newDeploymentConfig(name string, replicas int64) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "apps.openshift.io/v1",
		"kind":       "DeploymentConfig",
		"metadata": map[string]any{
			"name":      name,
			"namespace": testNamespace,
		},
		"spec": map[string]any{
			"replicas": replicas,
			"template": map[string]any{
				"metadata": map[string]any{
					"labels": map[string]any{"app": name},
				},
				"spec": map[string]any{
					"containers": []any{
						map[string]any{"name": "app", "image": "registry/app:2"},
					},
				},
			},
		},
	}}
}

func workloadKind(t *testing.T, repo rollout.Repository, kind rollout.Kind) rollout.WorkloadKind {
	t.Helper()

	for _, k := range repo.WorkloadKinds() {
		if k.Kind() == kind {
			return k
		}
	}

	t.Fatalf("kind %s not registered", kind)

	return nil
}

func TestAdapter_WorkloadKinds(t *testing.T) {
	t.Parallel()

	repo := k8s.New(slog.Default(), fake.NewSimpleClientset(), newDynamicClient())

	kinds := make([]rollout.Kind, 0)
	for _, k := range repo.WorkloadKinds() {
		kinds = append(kinds, k.Kind())
	}

	assert.ElementsMatch(t, []rollout.Kind{
		rollout.KindReplicationController,
		rollout.KindDeployment,
		rollout.KindReplicaSet,
		rollout.KindStatefulSet,
		rollout.KindDaemonSet,
		rollout.KindDeploymentConfig,
	}, kinds)
}

func TestTypedWorkload_Deployment(t *testing.T) {
	t.Parallel()

	t.Run("get missing returns nil", func(t *testing.T) {
		t.Parallel()

		repo := k8s.New(slog.Default(), fake.NewSimpleClientset(), newDynamicClient())
		kind := workloadKind(t, repo, rollout.KindDeployment)

		obj, err := kind.GetQuery(t.Context(), testNamespace, "absent")
		require.NoError(t, err)
		assert.Nil(t, obj)
	})

	t.Run("pod count and template", func(t *testing.T) {
		t.Parallel()

		clientset := fake.NewSimpleClientset(newDeployment("myapp-1", 3, "registry/app:1"))
		repo := k8s.New(slog.Default(), clientset, newDynamicClient())
		kind := workloadKind(t, repo, rollout.KindDeployment)

		obj, err := kind.GetQuery(t.Context(), testNamespace, "myapp-1")
		require.NoError(t, err)
		require.NotNil(t, obj)

		count, err := kind.PodCount(obj)
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		template, err := kind.PodTemplate(obj)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"app": "myapp-1"}, template.Labels)
		assert.Equal(t, []string{"registry/app:1"}, template.Images)
	})

	t.Run("scale patches replicas", func(t *testing.T) {
		t.Parallel()

		clientset := fake.NewSimpleClientset(newDeployment("myapp-1", 1, "registry/app:1"))
		repo := k8s.New(slog.Default(), clientset, newDynamicClient())
		kind := workloadKind(t, repo, rollout.KindDeployment)

		err := kind.ScaleCommand(t.Context(), testNamespace, "myapp-1", 4)
		require.NoError(t, err)

		got, err := clientset.AppsV1().Deployments(testNamespace).Get(t.Context(), "myapp-1", metav1.GetOptions{})
		require.NoError(t, err)
		assert.Equal(t, int32(4), *got.Spec.Replicas)
	})

	t.Run("create or replace replaces existing", func(t *testing.T) {
		t.Parallel()

		clientset := fake.NewSimpleClientset(newDeployment("myapp-1", 1, "registry/app:1"))
		repo := k8s.New(slog.Default(), clientset, newDynamicClient())
		kind := workloadKind(t, repo, rollout.KindDeployment)

		definition := newDeployment("myapp-1", 2, "registry/app:2")
		require.True(t, kind.Handles(definition))

		obj, err := kind.CreateOrReplaceCommand(t.Context(), testNamespace, definition)
		require.NoError(t, err)
		assert.Equal(t, "myapp-1", obj.GetName())

		got, err := clientset.AppsV1().Deployments(testNamespace).Get(t.Context(), "myapp-1", metav1.GetOptions{})
		require.NoError(t, err)
		assert.Equal(t, "registry/app:2", got.Spec.Template.Spec.Containers[0].Image)
	})

	t.Run("delete missing is not an error", func(t *testing.T) {
		t.Parallel()

		repo := k8s.New(slog.Default(), fake.NewSimpleClientset(), newDynamicClient())
		kind := workloadKind(t, repo, rollout.KindDeployment)

		require.NoError(t, kind.DeleteCommand(t.Context(), testNamespace, "absent"))
	})
}

func TestTypedWorkload_ErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		giveErr       error
		wantUnauth    bool
		wantForbidden bool
	}{
		{
			name:       "unauthorized",
			giveErr:    apierrors.NewUnauthorized("bad token"),
			wantUnauth: true,
		},
		{
			name:          "forbidden",
			giveErr:       apierrors.NewForbidden(schema.GroupResource{Resource: "deployments"}, "myapp", errors.New("rbac")),
			wantForbidden: true,
		},
		{
			name:    "other",
			giveErr: apierrors.NewServiceUnavailable("down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			clientset := fake.NewSimpleClientset()
			clientset.PrependReactor("get", "deployments",
				func(k8stesting.Action) (bool, runtime.Object, error) {
					return true, nil, tt.giveErr
				})

			repo := k8s.New(slog.Default(), clientset, newDynamicClient())
			kind := workloadKind(t, repo, rollout.KindDeployment)

			_, err := kind.GetQuery(t.Context(), testNamespace, "myapp-1")
			require.Error(t, err)

			var unauthorized *k8s.UnauthorizedError
			assert.Equal(t, tt.wantUnauth, errors.As(err, &unauthorized))

			var forbidden *k8s.ForbiddenError
			assert.Equal(t, tt.wantForbidden, errors.As(err, &forbidden))
		})
	}
}

func TestTypedWorkload_DaemonSetPodCount(t *testing.T) {
	t.Parallel()

	ds := &appsv1.DaemonSet{
		ObjectMeta: metav1.ObjectMeta{Name: "agent", Namespace: testNamespace},
		Status:     appsv1.DaemonSetStatus{DesiredNumberScheduled: 5},
	}

	repo := k8s.New(slog.Default(), fake.NewSimpleClientset(ds), newDynamicClient())
	kind := workloadKind(t, repo, rollout.KindDaemonSet)

	count, err := kind.PodCount(ds)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestStatefulSetWorkload_CreateOrReplace(t *testing.T) {
	t.Parallel()

	newStatefulSet := func(replicas int32) *appsv1.StatefulSet {
		return &appsv1.StatefulSet{
			ObjectMeta: metav1.ObjectMeta{
				Name:      "db-1",
				Namespace: testNamespace,
				Labels:    map[string]string{"app": "db"},
			},
			Spec: appsv1.StatefulSetSpec{Replicas: ptr.To(replicas)},
		}
	}

	t.Run("creates when absent", func(t *testing.T) {
		t.Parallel()

		clientset := fake.NewSimpleClientset()
		repo := k8s.New(slog.Default(), clientset, newDynamicClient())
		kind := workloadKind(t, repo, rollout.KindStatefulSet)

		_, err := kind.CreateOrReplaceCommand(t.Context(), testNamespace, newStatefulSet(1))
		require.NoError(t, err)

		verbs := make([]string, 0)
		for _, action := range clientset.Actions() {
			verbs = append(verbs, action.GetVerb())
		}

		assert.Equal(t, []string{"get", "create"}, verbs)
	})

	t.Run("patches when present", func(t *testing.T) {
		t.Parallel()

		clientset := fake.NewSimpleClientset(newStatefulSet(1))
		repo := k8s.New(slog.Default(), clientset, newDynamicClient())
		kind := workloadKind(t, repo, rollout.KindStatefulSet)

		_, err := kind.CreateOrReplaceCommand(t.Context(), testNamespace, newStatefulSet(3))
		require.NoError(t, err)

		verbs := make([]string, 0)
		for _, action := range clientset.Actions() {
			verbs = append(verbs, action.GetVerb())
		}

		assert.Equal(t, []string{"get", "patch"}, verbs)

		got, err := clientset.AppsV1().StatefulSets(testNamespace).Get(t.Context(), "db-1", metav1.GetOptions{})
		require.NoError(t, err)
		assert.Equal(t, int32(3), *got.Spec.Replicas)
	})
}

func TestDeploymentConfigWorkload(t *testing.T) {
	t.Parallel()

	dyn := newDynamicClient(newDeploymentConfig("legacy-7", 2))
	repo := k8s.New(slog.Default(), fake.NewSimpleClientset(), dyn)
	kind := workloadKind(t, repo, rollout.KindDeploymentConfig)

	obj, err := kind.GetQuery(t.Context(), testNamespace, "legacy-7")
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.True(t, kind.Handles(obj))

	count, err := kind.PodCount(obj)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	template, err := kind.PodTemplate(obj)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"app": "legacy-7"}, template.Labels)
	assert.Equal(t, []string{"registry/app:2"}, template.Images)

	require.NoError(t, kind.ScaleCommand(t.Context(), testNamespace, "legacy-7", 5))

	obj, err = kind.GetQuery(t.Context(), testNamespace, "legacy-7")
	require.NoError(t, err)

	count, err = kind.PodCount(obj)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	missing, err := kind.GetQuery(t.Context(), testNamespace, "absent")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAdapter_ListPodsQuery(t *testing.T) {
	t.Parallel()

	started := metav1.NewTime(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "myapp-1-abc",
			Namespace: testNamespace,
			Labels:    map[string]string{"app": "myapp-1"},
		},
		Spec: corev1.PodSpec{Containers: []corev1.Container{{Name: "app", Image: "registry/app:1"}}},
		Status: corev1.PodStatus{
			Phase:  corev1.PodRunning,
			HostIP: "10.0.0.1",
			PodIP:  "10.1.0.1",
			Conditions: []corev1.PodCondition{
				{Type: corev1.PodReady, Status: corev1.ConditionTrue},
			},
			ContainerStatuses: []corev1.ContainerStatus{
				{
					Name:        "app",
					ContainerID: "containerd://0123456789abcdef",
					State:       corev1.ContainerState{Running: &corev1.ContainerStateRunning{StartedAt: started}},
				},
			},
		},
	}
	other := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "other",
			Namespace: testNamespace,
			Labels:    map[string]string{"app": "other"},
		},
	}

	repo := k8s.New(slog.Default(), fake.NewSimpleClientset(pod, other), newDynamicClient())

	pods, err := repo.ListPodsQuery(t.Context(), testNamespace, map[string]string{"app": "myapp-1"})
	require.NoError(t, err)
	require.Len(t, pods, 1)

	got := pods[0]
	assert.Equal(t, "myapp-1-abc", got.Name)
	assert.Equal(t, "Running", got.Phase)
	assert.Equal(t, "10.0.0.1", got.HostIP)
	assert.Equal(t, []string{"registry/app:1"}, got.Images)
	assert.Equal(t, []rollout.PodCondition{{Type: "Ready", Status: "True"}}, got.Conditions)
	require.Len(t, got.ContainerStatuses, 1)
	require.NotNil(t, got.ContainerStatuses[0].Running)
	assert.True(t, started.Time.Equal(got.ContainerStatuses[0].Running.StartedAt))
}

func TestAdapter_ListEventsQuery(t *testing.T) {
	t.Parallel()

	last := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	first := last.Add(-time.Minute)

	events := []runtime.Object{
		&corev1.Event{
			ObjectMeta:     metav1.ObjectMeta{Name: "ev-last", Namespace: testNamespace},
			InvolvedObject: corev1.ObjectReference{Name: "myapp-1-abc"},
			Message:        "Pulled image",
			LastTimestamp:  metav1.NewTime(last),
		},
		&corev1.Event{
			ObjectMeta:     metav1.ObjectMeta{Name: "ev-first", Namespace: testNamespace},
			InvolvedObject: corev1.ObjectReference{Name: "myapp-1"},
			Message:        "Scaled up",
			FirstTimestamp: metav1.NewTime(first),
		},
	}

	repo := k8s.New(slog.Default(), fake.NewSimpleClientset(events...), newDynamicClient())

	got, err := repo.ListEventsQuery(t.Context(), testNamespace)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "ev-first", got[0].Name)
	assert.True(t, first.Equal(got[0].LastTimestamp))
	assert.Equal(t, "ev-last", got[1].Name)
	assert.Equal(t, "myapp-1-abc", got[1].InvolvedObjectName)
}

func TestAdapter_VirtualService(t *testing.T) {
	t.Parallel()

	vs := &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "networking.istio.io/v1alpha3",
		"kind":       "VirtualService",
		"metadata": map[string]any{
			"name":      "myapp",
			"namespace": testNamespace,
		},
		"spec": map[string]any{
			"http": []any{
				map[string]any{
					"route": []any{
						map[string]any{
							"destination": map[string]any{"host": "myapp", "subset": "1"},
							"weight":      int64(80),
						},
						map[string]any{
							"destination": map[string]any{"host": "myapp", "subset": "2"},
							"weight":      int64(20),
						},
					},
				},
			},
		},
	}}

	repo := k8s.New(slog.Default(), fake.NewSimpleClientset(), newDynamicClient(vs))

	got, err := repo.GetVirtualServiceQuery(t.Context(), testNamespace, "myapp")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.HTTP, 1)
	assert.Equal(t, []rollout.RouteDestination{
		{Host: "myapp", Subset: "1", Weight: 80},
		{Host: "myapp", Subset: "2", Weight: 20},
	}, got.HTTP[0].Route)

	missing, err := repo.GetVirtualServiceQuery(t.Context(), testNamespace, "absent")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.DeleteVirtualServiceCommand(t.Context(), testNamespace, "myapp"))
	require.NoError(t, repo.DeleteDestinationRuleCommand(t.Context(), testNamespace, "myapp"))
}

func TestKeyValueStores(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		store func(*fake.Clientset) rollout.KeyValueStore
	}{
		{
			name: "config map",
			store: func(cs *fake.Clientset) rollout.KeyValueStore {
				return k8s.NewConfigMapStore(slog.Default(), cs)
			},
		},
		{
			name: "secret",
			store: func(cs *fake.Clientset) rollout.KeyValueStore {
				return k8s.NewSecretStore(slog.Default(), cs)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := tt.store(fake.NewSimpleClientset())

			got, err := store.GetQuery(t.Context(), testNamespace, "release")
			require.NoError(t, err)
			assert.Nil(t, got)

			require.NoError(t, store.CreateOrReplaceCommand(t.Context(), testNamespace, "release",
				map[string]string{"releaseHistory": "v1"}))
			require.NoError(t, store.CreateOrReplaceCommand(t.Context(), testNamespace, "release",
				map[string]string{"releaseHistory": "v2", "owner": "ci"}))

			got, err = store.GetQuery(t.Context(), testNamespace, "release")
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"releaseHistory": "v2", "owner": "ci"}, got)
		})
	}
}
