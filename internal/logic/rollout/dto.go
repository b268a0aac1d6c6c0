package rollout

import (
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// Kind tags one of the supported workload controller kinds.
type Kind string

const (
	KindReplicationController Kind = "ReplicationController"
	KindDeployment            Kind = "Deployment"
	KindReplicaSet            Kind = "ReplicaSet"
	KindStatefulSet           Kind = "StatefulSet"
	KindDaemonSet             Kind = "DaemonSet"
	KindDeploymentConfig      Kind = "DeploymentConfig"
)

// resolutionOrder is the order in which kinds are probed and listed.
var resolutionOrder = []Kind{
	KindReplicationController,
	KindDeployment,
	KindReplicaSet,
	KindStatefulSet,
	KindDaemonSet,
	KindDeploymentConfig,
}

// Object is a cluster resource with object metadata.
type Object interface {
	metav1.Object
	runtime.Object
}

// Controller is a workload controller read from the cluster, tagged with its kind.
type Controller struct {
	Kind   Kind
	Object Object
}

func (c *Controller) Name() string {
	return c.Object.GetName()
}

func (c *Controller) Namespace() string {
	return c.Object.GetNamespace()
}

// PodTemplate is the part of a controller pod template the waiter relies on.
type PodTemplate struct {
	Labels map[string]string
	Images []string
}

// Pod is a point-in-time snapshot of a pod.
type Pod struct {
	Name              string
	Namespace         string
	Labels            map[string]string
	Phase             string
	HostIP            string
	PodIP             string
	Deleting          bool
	Images            []string
	Conditions        []PodCondition
	ContainerStatuses []ContainerStatus
}

type PodCondition struct {
	Type    string
	Status  string
	Reason  string
	Message string
}

// ContainerStatus holds at most one of Running, Waiting or Terminated.
type ContainerStatus struct {
	Name        string
	Image       string
	ContainerID string
	Running     *ContainerRunning
	Waiting     *ContainerStateDetail
	Terminated  *ContainerStateDetail
}

type ContainerRunning struct {
	StartedAt time.Time
}

type ContainerStateDetail struct {
	Reason  string
	Message string
}

// Event is a cluster event. Name is unique within a namespace.
type Event struct {
	Name               string
	InvolvedObjectName string
	Message            string
	Type               string
	Reason             string
	LastTimestamp      time.Time
}

// Status is the outcome of a single pod after a rollout wait.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// ContainerInfo describes one pod of a controller after a rollout wait.
type ContainerInfo struct {
	HostName     string `json:"hostName"`
	PodName      string `json:"podName"`
	IP           string `json:"ip"`
	ContainerID  string `json:"containerId"`
	WorkloadName string `json:"workloadName"`
	NewContainer bool   `json:"newContainer"`
	Status       Status `json:"status"`
	Reason       string `json:"reason,omitempty"`
}

// VirtualService is the routing part of an Istio VirtualService.
type VirtualService struct {
	Name string
	HTTP []HTTPRoute
}

type HTTPRoute struct {
	Route []RouteDestination
}

type RouteDestination struct {
	Host   string
	Subset string
	Weight int
}

// ActiveService is a versioned controller that currently runs pods.
type ActiveService struct {
	Name     string `json:"name"`
	Revision int    `json:"revision"`
	Count    int    `json:"count"`
}

// ScaleRequest asks to move a controller from PreviousCount to DesiredCount pods.
type ScaleRequest struct {
	Namespace      string
	ClusterName    string
	ControllerName string
	PreviousCount  int
	DesiredCount   int
	Timeout        time.Duration
}

// ReadinessRequest describes a wait for controller pods to be ready.
//
// DesiredCount set to UnlimitedReplicas follows the live controller replica count.
// When Wait is false the OriginalPods are evaluated as is.
type ReadinessRequest struct {
	Namespace      string
	ControllerName string
	PreviousCount  int
	DesiredCount   int
	Timeout        time.Duration
	OriginalPods   []Pod
	IsNotVersioned bool
	Wait           bool
	StartTime      time.Time
}

// StopRequest describes a wait for all pods matching Labels to go away.
type StopRequest struct {
	Namespace    string
	Labels       map[string]string
	Timeout      time.Duration
	OriginalPods []Pod
	StartTime    time.Time
}
