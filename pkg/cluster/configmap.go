// Package cluster fetches the topology configuration from a Kubernetes
// ConfigMap. The ConfigMap carries the topology document under a "json"
// or "yaml" data key and the deployment environment under the "app-env"
// annotation. A missing ConfigMap or unusable data element is not an
// error: it resolves to the Unknown environment and an empty topology,
// so a namespace without configuration reconciles to a no-op.
package cluster

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/piwi3910/topiary/pkg/config"
	"github.com/piwi3910/topiary/pkg/envtag"
)

// DefaultConfigMapName is the ConfigMap looked up when none is named.
const DefaultConfigMapName = "sns-sqs-config"

// envAnnotation is the ConfigMap annotation carrying the environment
// name.
const envAnnotation = "app-env"

const (
	jsonDataKey = "json"
	yamlDataKey = "yaml"
)

// Source locates the in-cluster topology configuration.
type Source struct {
	// Namespace to read from. Empty selects the kubeconfig or
	// in-cluster namespace.
	Namespace string

	// ConfigMap name. Empty selects DefaultConfigMapName.
	ConfigMap string

	// KubeContext is the kubeconfig context to use. Empty selects the
	// current context, falling back to in-cluster configuration.
	KubeContext string

	// Log receives fetch diagnostics.
	Log zerolog.Logger
}

// Client builds a Kubernetes client from the kubeconfig (honoring the
// configured context) or the in-cluster service account, and resolves
// the effective namespace.
func (s Source) Client() (kubernetes.Interface, string, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	overrides := &clientcmd.ConfigOverrides{}
	if s.KubeContext != "" {
		overrides.CurrentContext = s.KubeContext
	}

	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides)

	restConfig, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, "", fmt.Errorf("failed to load Kubernetes configuration: %w", err)
	}

	namespace := s.Namespace
	if namespace == "" {
		namespace, _, err = clientConfig.Namespace()
		if err != nil || namespace == "" {
			namespace = "default"
		}
	}

	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create Kubernetes client: %w", err)
	}
	return client, namespace, nil
}

// Fetch reads the topology and environment from the named ConfigMap
// using the given client. The environment annotation is only honored
// when the ConfigMap carries a parseable topology, matching the
// behavior of treating a half-configured namespace as unconfigured.
func (s Source) Fetch(ctx context.Context, client kubernetes.Interface, namespace string, parser *config.Parser) (envtag.Tag, config.Topology, error) {
	name := s.ConfigMap
	if name == "" {
		name = DefaultConfigMapName
	}

	cm, err := client.CoreV1().ConfigMaps(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		s.Log.Warn().
			Str("configmap", name).
			Str("namespace", namespace).
			Msg("No topology ConfigMap in namespace")
		return envtag.Unknown, config.Topology{}, nil
	}
	if err != nil {
		return envtag.Unknown, nil, fmt.Errorf("failed to fetch ConfigMap %s/%s: %w", namespace, name, err)
	}

	env := envtag.Parse(cm.Annotations[envAnnotation])

	if len(cm.Data) == 0 {
		s.Log.Warn().
			Str("configmap", name).
			Msg("Topology ConfigMap has no data element")
		return envtag.Unknown, config.Topology{}, nil
	}

	if data, ok := cm.Data[jsonDataKey]; ok {
		topo, err := parser.ParseJSON(data)
		if err != nil {
			return envtag.Unknown, nil, err
		}
		return env, topo, nil
	}
	if data, ok := cm.Data[yamlDataKey]; ok {
		topo, err := parser.ParseYAML(data)
		if err != nil {
			return envtag.Unknown, nil, err
		}
		return env, topo, nil
	}

	s.Log.Warn().
		Str("configmap", name).
		Msg("Topology ConfigMap has no recognized data keys")
	return envtag.Unknown, config.Topology{}, nil
}

// Load combines Client and Fetch for callers that want the one-call
// path from kubeconfig to topology.
func (s Source) Load(ctx context.Context, parser *config.Parser) (envtag.Tag, config.Topology, error) {
	client, namespace, err := s.Client()
	if err != nil {
		return envtag.Unknown, nil, err
	}
	return s.Fetch(ctx, client, namespace, parser)
}
