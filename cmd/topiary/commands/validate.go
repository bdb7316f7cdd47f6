package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/piwi3910/topiary/pkg/config"
	"github.com/piwi3910/topiary/pkg/envtag"
	"github.com/piwi3910/topiary/pkg/telemetry"
)

func newValidateCommand() *cobra.Command {
	var topoFlags topologyFlags

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the topology and show resolved names",
		Long: `Validate the topology document and print the physical resource names
it would provision, without touching AWS.`,
		Example: `  # Validate a file as it would apply in production
  topiary validate --yaml-file topology.yaml --env-name prod

  # Validate what the namespace's ConfigMap declares
  topiary validate --namespace payments`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := telemetry.DefaultConfig()
			cfg.Metrics.Enabled = false
			if verbose {
				cfg.Logging.Level = "debug"
			}
			tel, err := telemetry.New(cfg)
			if err != nil {
				return err
			}

			env, topo, err := topoFlags.resolve(cmd.Context(), tel.Logger.Zerolog())
			if err != nil {
				return err
			}

			return printResolved(env, topo)
		},
	}

	topoFlags.register(cmd)
	return cmd
}

// resolvedGroup is the validated view of one queue group.
type resolvedGroup struct {
	Queue  string   `json:"queue,omitempty"`
	Topics []string `json:"topics"`
}

// printResolved renders the physical names each group resolves to under
// the given environment.
func printResolved(env envtag.Tag, topo config.Topology) error {
	groups := make(map[string]resolvedGroup, len(topo))
	names := make([]string, 0, len(topo))
	for queueName, spec := range topo {
		group := resolvedGroup{Topics: make([]string, 0, len(spec.Topics))}
		if !config.IsSentinel(queueName) {
			group.Queue = envtag.PhysicalName(queueName, env)
		}
		for _, topic := range spec.Topics {
			group.Topics = append(group.Topics, envtag.PhysicalName(topic, env))
		}
		sort.Strings(group.Topics)
		groups[queueName] = group
		names = append(names, queueName)
	}
	sort.Strings(names)

	if jsonOutput {
		out := struct {
			Environment string                   `json:"environment"`
			Groups      map[string]resolvedGroup `json:"groups"`
		}{Environment: env.String(), Groups: groups}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Environment: %s\n", env)
	for _, name := range names {
		group := groups[name]
		if group.Queue == "" {
			fmt.Printf("Topics without a queue:\n")
		} else {
			fmt.Printf("Queue %s:\n", group.Queue)
		}
		if len(group.Topics) == 0 {
			fmt.Println("  (no topics)")
		}
		for _, topic := range group.Topics {
			fmt.Printf("  <- %s\n", topic)
		}
	}
	return nil
}
