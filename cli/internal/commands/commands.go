/*
Copyright 2020 GramLabs, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package commands

import (
	"github.com/spf13/cobra"

	"github.com/thestormforge/husako/cli/internal/commander"
	"github.com/thestormforge/husako/cli/internal/commands/completion"
	"github.com/thestormforge/husako/cli/internal/commands/generate"
	"github.com/thestormforge/husako/cli/internal/commands/render"
	"github.com/thestormforge/husako/cli/internal/commands/version"
	"github.com/thestormforge/husako/internal/config"
)

// NewRootCommand creates a new top-level command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "husako",
		Short:             "Compile typed scripts into Kubernetes YAML",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}

	cfg := &config.HusakoConfig{}
	commander.ConfigGlobals(cfg, rootCmd)

	rootCmd.AddCommand(render.NewCommand(&render.Options{Config: cfg}))
	rootCmd.AddCommand(generate.NewCommand(&generate.Options{Config: cfg}))
	rootCmd.AddCommand(completion.NewCommand(&completion.Options{}))
	rootCmd.AddCommand(version.NewCommand(&version.Options{}))

	return rootCmd
}
