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

package commander

import (
	"context"
	"io"
	"io/ioutil"
	"os"

	"github.com/spf13/cobra"

	"github.com/thestormforge/husako/internal/config"
)

// IOStreams allows individual commands access to standard process streams (or their overrides).
type IOStreams struct {
	// In is used to access the standard input stream (or it's override)
	In io.Reader
	// Out is used to access the standard output stream (or it's override)
	Out io.Writer
	// ErrOut is used to access the standard error output stream (or it's override)
	ErrOut io.Writer
}

// OpenFile returns a read closer for the specified filename. If the filename is logically
// empty (i.e. "-"), the input stream is returned.
func (s *IOStreams) OpenFile(filename string) (io.ReadCloser, error) {
	if filename == "-" {
		return ioutil.NopCloser(s.In), nil
	}
	return os.Open(filename)
}

// SetStreams updates the streams using the supplied command
func SetStreams(streams *IOStreams, cmd *cobra.Command) {
	streams.Out = cmd.OutOrStdout()
	streams.ErrOut = cmd.ErrOrStderr()
	streams.In = cmd.InOrStdin()
}

// StreamsPreRun is intended to be used as a pre-run function for commands when no other action is required
func StreamsPreRun(streams *IOStreams) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		SetStreams(streams, cmd)
	}
}

// ConfigGlobals sets up persistent global flags for the husako project
// configuration and arranges for it to be loaded during the root
// command's persistent pre-run.
func ConfigGlobals(cfg *config.HusakoConfig, cmd *cobra.Command) {
	root := cmd.Root()

	root.PersistentFlags().StringVar(&cfg.Filename, "config", cfg.Filename, "path to the husako.yaml config `file` to use")
	_ = root.MarkFlagFilename("config")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error { return cfg.Load() }
}

// WithContextE wraps a function that accepts a context in one that accepts a command and argument slice
func WithContextE(runE func(context.Context) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error { return runE(cmd.Context()) }
}

// WithoutArgsE wraps a no-argument function in one that accepts a command and argument slice
func WithoutArgsE(runE func() error) func(*cobra.Command, []string) error {
	return func(*cobra.Command, []string) error { return runE() }
}

// AddPreRunE adds an error returning pre-run function to the supplied command, existing pre-run actions will run AFTER
// the supplied function, and only if the supplied pre-run function does not return an error
func AddPreRunE(cmd *cobra.Command, preRunE func(*cobra.Command, []string) error) {
	// Nothing set yet, just add it
	if cmd.PreRunE == nil && cmd.PreRun == nil {
		cmd.PreRunE = preRunE
		return
	}

	// Capture the existing function
	oldPreRunE := cmd.PreRunE
	oldPreRun := cmd.PreRun

	// Redefine the pre-run
	cmd.PreRun = nil
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if err := preRunE(cmd, args); err != nil {
			return err
		}
		if oldPreRunE != nil {
			return oldPreRunE(cmd, args)
		}
		if oldPreRun != nil {
			oldPreRun(cmd, args)
		}
		return nil
	}
}

// MapErrors wraps all of the error returning functions on the supplied command (and it's sub-commands) so that
// they pass any errors through the mapping function.
func MapErrors(cmd *cobra.Command, f func(error) error) {
	// Define a function which passes all errors through the supplied mapping function
	wrapE := func(runE func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
		if runE != nil {
			return func(cmd *cobra.Command, args []string) error {
				return f(runE(cmd, args))
			}
		}
		return nil
	}

	// Wrap all the error returning functions
	cmd.PersistentPreRunE = wrapE(cmd.PersistentPreRunE)
	cmd.PreRunE = wrapE(cmd.PreRunE)
	cmd.RunE = wrapE(cmd.RunE)
	cmd.PostRunE = wrapE(cmd.PostRunE)
	cmd.PersistentPostRunE = wrapE(cmd.PersistentPostRunE)

	// Recurse and wrap errors for all of the sub-commands
	for _, c := range cmd.Commands() {
		MapErrors(c, f)
	}
}
