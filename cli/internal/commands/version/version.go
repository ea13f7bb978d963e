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

package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thestormforge/husako/cli/internal/commander"
)

// Info is set at build time via -ldflags.
var Info = struct {
	Version string
	Commit  string
}{Version: "dev"}

// Options is the configuration for the version command.
type Options struct {
	commander.IOStreams
}

// NewCommand returns the `version` cobra command.
func NewCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the husako version",
		Args:  cobra.NoArgs,

		PreRun: func(cmd *cobra.Command, args []string) { commander.SetStreams(&o.IOStreams, cmd) },
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(o.Out, "%s (%s)\n", Info.Version, Info.Commit)
			return err
		},
	}
}
