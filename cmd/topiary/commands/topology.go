package commands

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/piwi3910/topiary/pkg/cluster"
	"github.com/piwi3910/topiary/pkg/config"
	"github.com/piwi3910/topiary/pkg/envtag"
)

// topologyFlags are the flags shared by every command that needs a
// resolved topology: the direct document sources and the cluster
// fallback.
type topologyFlags struct {
	jsonData string
	yamlData string
	jsonFile string
	yamlFile string

	envName     string
	namespace   string
	configMap   string
	kubeContext string
}

func (f *topologyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.jsonData, "json-data", "", "topology document as an inline JSON string")
	cmd.Flags().StringVar(&f.yamlData, "yaml-data", "", "topology document as an inline YAML string")
	cmd.Flags().StringVar(&f.jsonFile, "json-file", "", "path to a JSON topology document")
	cmd.Flags().StringVar(&f.yamlFile, "yaml-file", "", "path to a YAML topology document")

	cmd.Flags().StringVar(&f.envName, "env-name", "", "deployment environment name (overrides the ConfigMap annotation)")
	cmd.Flags().StringVar(&f.namespace, "namespace", "", "Kubernetes namespace holding the topology ConfigMap")
	cmd.Flags().StringVar(&f.configMap, "configmap", cluster.DefaultConfigMapName, "name of the topology ConfigMap")
	cmd.Flags().StringVar(&f.kubeContext, "kube-context", "", "kubeconfig context for the ConfigMap lookup")
}

// resolve loads the topology from the first populated direct source,
// falling back to the cluster ConfigMap when none is given. The
// --env-name flag always wins over the ConfigMap annotation.
func (f *topologyFlags) resolve(ctx context.Context, log zerolog.Logger) (envtag.Tag, config.Topology, error) {
	parser := config.NewParser()

	source := config.Source{
		JSONData: f.jsonData,
		YAMLData: f.yamlData,
		JSONFile: f.jsonFile,
		YAMLFile: f.yamlFile,
	}

	topo, direct, err := source.Resolve(parser)
	if err != nil {
		return envtag.Unknown, nil, err
	}

	env := envtag.Unknown
	if direct {
		env = envtag.Parse(f.envName)
		return env, topo, nil
	}

	src := cluster.Source{
		Namespace:   f.namespace,
		ConfigMap:   f.configMap,
		KubeContext: f.kubeContext,
		Log:         log,
	}
	env, topo, err = src.Load(ctx, parser)
	if err != nil {
		return envtag.Unknown, nil, err
	}
	if f.envName != "" {
		env = envtag.Parse(f.envName)
	}
	return env, topo, nil
}
