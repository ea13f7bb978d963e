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

// Package render implements the `render` CLI command (spec.md §6).
package render

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/thestormforge/husako/cli/internal/commander"
	"github.com/thestormforge/husako/internal/config"
	"github.com/thestormforge/husako/internal/diagnostics"
	"github.com/thestormforge/husako/internal/render"
)

// Options is the configuration for the render command.
type Options struct {
	Config *config.HusakoConfig

	commander.IOStreams

	File             string
	AllowOutsideRoot bool
	OutputFile       string
	Watch            bool
}

// NewCommand returns the `render` cobra command.
func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Render a husako script to Kubernetes YAML",
		Args:  cobra.ExactArgs(1),

		PreRun: func(cmd *cobra.Command, args []string) {
			commander.SetStreams(&o.IOStreams, cmd)
			o.File = args[0]
		},
		RunE: func(cmd *cobra.Command, args []string) error { return o.run() },
	}

	cmd.Flags().BoolVar(&o.AllowOutsideRoot, "allow-outside-root", false, "permit imports outside the project root")
	cmd.Flags().StringVarP(&o.OutputFile, "output", "o", "", "write rendered YAML to `file` instead of stdout")
	cmd.Flags().BoolVar(&o.Watch, "watch", false, "re-render whenever the source file changes")

	return cmd
}

func (o *Options) run() error {
	if err := o.renderOnce(); err != nil {
		return err
	}
	if !o.Watch {
		return nil
	}
	return o.watch()
}

func (o *Options) renderOnce() error {
	src, err := os.ReadFile(o.File)
	if err != nil {
		return err
	}

	cfg := o.Config.Data()
	projectRoot := cfg.ProjectRoot
	if projectRoot == "" {
		projectRoot = filepath.Dir(o.File)
	}

	out, err := render.Render(string(src), o.File, render.Options{
		ProjectRoot:       projectRoot,
		AllowOutsideRoot:  o.AllowOutsideRoot || cfg.AllowOutsideRoot,
		TimeoutMS:         cfg.TimeoutMS,
		MaxHeapMB:         cfg.MaxHeapMB,
		GeneratedTypesDir: cfg.GeneratedTypesDir,
	})
	if err != nil {
		return err
	}

	if o.OutputFile == "" {
		_, err = fmt.Fprint(o.Out, out)
		return err
	}
	return os.WriteFile(o.OutputFile, []byte(out), 0o644)
}

// watch re-renders o.File whenever it changes, reporting (not exiting on)
// render errors so the watch loop survives a transient syntax error.
func (o *Options) watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return &diagnostics.Error{Kind: diagnostics.RuntimeInit, Cause: err}
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(o.File)); err != nil {
		return err
	}

	for event := range w.Events {
		if filepath.Clean(event.Name) != filepath.Clean(o.File) {
			continue
		}
		if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			continue
		}
		if err := o.renderOnce(); err != nil {
			fmt.Fprintln(o.ErrOut, err)
		}
	}
	return nil
}
