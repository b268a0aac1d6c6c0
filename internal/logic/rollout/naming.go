package rollout

import (
	"slices"
	"strconv"
	"strings"
)

// Versioned controllers are named <prefix>-<revision>, e.g. myapp-canary-2.

// RevisionFromControllerName returns the numeric revision suffix of a controller name.
func RevisionFromControllerName(name string) (int, bool) {
	idx := strings.LastIndex(name, revisionSeparator)
	if idx < 0 {
		return 0, false
	}

	suffix := name[idx+len(revisionSeparator):]
	if suffix == "" || strings.TrimLeft(suffix, "0123456789") != "" {
		return 0, false
	}

	revision, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, false
	}

	return revision, true
}

// PrefixFromControllerName strips the revision suffix. Names without one are returned as is.
func PrefixFromControllerName(name string) string {
	if _, ok := RevisionFromControllerName(name); !ok {
		return name
	}

	return name[:strings.LastIndex(name, revisionSeparator)]
}

// ServiceNameFromControllerName returns the DNS-safe logical service name of a controller.
func ServiceNameFromControllerName(name string) string {
	return normalizeName(PrefixFromControllerName(name))
}

// ControllerName builds the controller name of a given revision.
func ControllerName(prefix string, revision int) string {
	return prefix + revisionSeparator + strconv.Itoa(revision)
}

// routingNames lists routing resource names for a controller, most specific first.
// A track qualified controller (myapp-canary-2) shares the routing resource of its
// base service (myapp).
func routingNames(controllerName string) []string {
	serviceName := ServiceNameFromControllerName(controllerName)
	names := []string{serviceName}

	idx := strings.LastIndex(serviceName, revisionSeparator)
	if idx > 0 && slices.Contains(trackQualifiers, serviceName[idx+len(revisionSeparator):]) {
		names = append(names, serviceName[:idx])
	}

	return names
}

func normalizeName(name string) string {
	return strings.NewReplacer(".", "-", "_", "-").Replace(strings.ToLower(name))
}
