// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package validate implements the `harness validate` command: checks a
// config file and, optionally, a workflow file without activating any
// provider or running a step.
package validate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/viamin/aidp-sub001/internal/config"
	"github.com/viamin/aidp-sub001/internal/workflow"
)

// NewCommand creates the validate command.
func NewCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate [workflow-file]",
		Short: "Validate the harness config and an optional workflow file",
		Long: `Validate checks that the config file parses and satisfies its
cross-reference invariants (default_provider and fallback_providers must
name configured providers, model_weights must be a subset of models).

If a workflow file is given, it is also parsed and checked for at least
one named step, without contacting any provider.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, configPath, args)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "harness.yaml", "path to the harness config file")
	return cmd
}

func runValidate(cmd *cobra.Command, configPath string, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}
	cmd.Printf("config %s is valid (default_provider=%s, %d provider(s))\n", configPath, cfg.DefaultProvider, len(cfg.Providers))
	for _, w := range cfg.Warnings() {
		cmd.Printf("warning: %s\n", w)
	}

	if len(args) == 1 {
		doc, err := workflow.LoadDocument(args[0])
		if err != nil {
			return fmt.Errorf("workflow invalid: %w", err)
		}
		cmd.Printf("workflow %s is valid (%d step(s))\n", args[0], len(doc.Steps))
	}

	return nil
}
